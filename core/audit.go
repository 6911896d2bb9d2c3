package core

import "time"

// AuditAction names an auditable step of an auth flow.
type AuditAction string

const (
	AuditNonceIssued    AuditAction = "nonce.issued"
	AuditLoginSucceeded AuditAction = "login.succeeded"
	AuditLoginFailed    AuditAction = "login.failed"
	AuditTokenRefreshed AuditAction = "token.refreshed"
	AuditRefreshFailed  AuditAction = "token.refresh_failed"
	AuditLogout         AuditAction = "logout"
)

// AuditEvent is a fire-and-forget notification about an auth flow.
type AuditEvent struct {
	ID         string      `json:"id"`
	Action     AuditAction `json:"action"`
	IdentityID string      `json:"identity_id,omitempty"`
	Address    string      `json:"address,omitempty"`
	Code       Code        `json:"code,omitempty"`
	IP         string      `json:"ip,omitempty"`
	UserAgent  string      `json:"user_agent,omitempty"`
	OccurredAt time.Time   `json:"occurred_at"`
}

// Succeeded reports whether the event describes a successful step.
func (e AuditEvent) Succeeded() bool {
	return e.Code == ""
}
