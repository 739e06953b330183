package audit

import "time"

// Event is emitted from domain logic to capture key auth decisions. Keep it
// transport-agnostic so stores and sinks can fan out.
//
// CredentialPrefix carries at most the first few characters of the presented
// credential; raw credentials never enter the audit trail.
type Event struct {
	Timestamp        time.Time
	OrganizationID   string
	Action           string
	Reason           string
	CredentialPrefix string
	RequestID        string
}

type AuditEvent string

const (
	EventAuthResolved     AuditEvent = "auth_resolved"
	EventAuthSystemBypass AuditEvent = "auth_system_bypass"
	EventAuthRejected     AuditEvent = "auth_rejected"
)
