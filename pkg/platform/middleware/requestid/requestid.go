// Package requestid assigns each inbound request a correlation ID, honoring
// one supplied by an upstream proxy.
package requestid

import (
	"net/http"

	"github.com/google/uuid"

	"authgate/pkg/requestcontext"
)

// Header is the correlation ID header read from and echoed to clients.
const Header = "X-Request-Id"

// Middleware injects a request ID into the context and response headers.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get(Header)
		if reqID == "" {
			reqID = uuid.NewString()
		}
		ctx := requestcontext.WithRequestID(r.Context(), reqID)
		w.Header().Set(Header, reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
