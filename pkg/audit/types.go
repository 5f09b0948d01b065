// Package audit records who changed whose report permissions, when, and
// with what outcome. Events land in a local sqlite database so a support
// engineer can reconstruct an editing session after the fact.
package audit

import (
	"context"
	"time"
)

// EventType categorizes a permission audit event
type EventType string

const (
	// EventGrantApply is a reconciled permission edit (add/remove sets)
	EventGrantApply EventType = "grants.apply"
	// EventGrantRevokeAll is a remove-all-grants operation
	EventGrantRevokeAll EventType = "grants.revoke_all"
)

// EventStatus is the outcome of the recorded operation
type EventStatus string

const (
	StatusSuccess EventStatus = "success"
	StatusPartial EventStatus = "partial"
	StatusFailure EventStatus = "failure"
)

// Event is one recorded permission mutation
type Event struct {
	ID           string      `json:"id"`
	Type         EventType   `json:"type"`
	Status       EventStatus `json:"status"`
	ActorID      int64       `json:"actor_id"`
	TargetUserID int64       `json:"target_user_id"`
	TenantID     int64       `json:"tenant_id"`
	Added        []int64     `json:"added,omitempty"`
	Removed      []int64     `json:"removed,omitempty"`
	Detail       string      `json:"detail,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
}

// SearchFilter narrows an audit query
type SearchFilter struct {
	TargetUserID *int64
	TenantID     *int64
	Since        *time.Time
	Limit        int
}

// Log records and queries permission audit events
type Log interface {
	Record(ctx context.Context, event *Event) error
	Search(ctx context.Context, filter SearchFilter) ([]*Event, error)
}

// Nop is a Log that records nothing, for tests and audit-disabled setups
type Nop struct{}

func (Nop) Record(ctx context.Context, event *Event) error { return nil }

func (Nop) Search(ctx context.Context, filter SearchFilter) ([]*Event, error) {
	return nil, nil
}
