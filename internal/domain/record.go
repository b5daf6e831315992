package domain

import "time"

// Record is the capability surface shared by auditable, stateful records.
// Anything that stores or transports entities can work against this instead
// of a concrete type.
type Record interface {
	ID() string
	Code() string
	Name() string
	State() EntityState
	Version() int
	CreatedAt() time.Time
	UpdatedAt() time.Time

	MarkUpdated(actor string) error
	Activate(actor string) error
	Deactivate(actor string) error
	Delete(actor string) error

	IsActive() bool
	IsInactive() bool
	IsDeleted() bool

	Snapshot() Fields
}

var (
	_ Record = (*Entity)(nil)
	_ Record = (*Task)(nil)
)
