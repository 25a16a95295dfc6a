package triage

import (
	"context"
	"time"
)

// Tracker is the backend tracker service as seen by the core.
// Implementations return *Error values with the matching Kind.
type Tracker interface {
	ListTickets(ctx context.Context) ([]TicketRecord, error)
	GetTicket(ctx context.Context, id string) (TicketRecord, error)
	SetTicketStatus(ctx context.Context, id, status string) (TicketRecord, error)
	AddComment(ctx context.Context, ticketID, body string) (Comment, error)
}

// Credential is an opaque bearer token. A zero ExpiresAt means the expiry
// is unknown.
type Credential struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

// Expired reports whether c is unusable at now.
func (c Credential) Expired(now time.Time) bool {
	if c.Token == "" {
		return true
	}
	return !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt)
}

// Authenticator is the auth collaborator.
type Authenticator interface {
	Login(ctx context.Context, username, password string) (Credential, error)
}
