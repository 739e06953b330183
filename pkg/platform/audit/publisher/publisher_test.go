package publisher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	audit "authgate/pkg/platform/audit"
	"authgate/pkg/platform/audit/store/memory"
)

func event(orgID, action string) audit.Event {
	return audit.Event{
		Timestamp:      time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		OrganizationID: orgID,
		Action:         action,
	}
}

func TestSyncEmitDeliversImmediately(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store)

	require.NoError(t, pub.Emit(context.Background(), event("o_acme", "auth.resolved")))

	events, err := pub.List(context.Background(), "o_acme")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "auth.resolved", events[0].Action)
}

type failingStore struct{}

func (failingStore) Append(ctx context.Context, event audit.Event) error {
	return errors.New("append failed")
}

func (failingStore) ListByOrganization(ctx context.Context, orgID string) ([]audit.Event, error) {
	return nil, nil
}

func TestSyncEmitSurfacesStoreError(t *testing.T) {
	pub := NewPublisher(failingStore{})
	assert.Error(t, pub.Emit(context.Background(), event("o_acme", "auth.resolved")))
}

func TestAsyncEmitFlushedOnClose(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(16))

	for range 5 {
		require.NoError(t, pub.Emit(context.Background(), event("o_acme", "auth.resolved")))
	}
	pub.Close()

	events, err := store.ListByOrganization(context.Background(), "o_acme")
	require.NoError(t, err)
	assert.Len(t, events, 5)
}

func TestAsyncEmitAfterCloseIsDropped(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(16))
	pub.Close()

	require.NoError(t, pub.Emit(context.Background(), event("o_acme", "auth.resolved")))

	events, err := store.ListByOrganization(context.Background(), "o_acme")
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestAsyncEmitConcurrent(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(256))

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = pub.Emit(context.Background(), event("o_acme", "auth.resolved"))
		}()
	}
	wg.Wait()
	pub.Close()

	events, err := store.ListByOrganization(context.Background(), "o_acme")
	require.NoError(t, err)
	assert.Len(t, events, 50)
}

func TestCloseIsIdempotent(t *testing.T) {
	pub := NewPublisher(memory.NewInMemoryStore(), WithAsyncBuffer(4))
	pub.Close()
	pub.Close()

	// Sync publishers have no worker; Close is a no-op.
	NewPublisher(memory.NewInMemoryStore()).Close()
}
