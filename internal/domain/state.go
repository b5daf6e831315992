package domain

import "fmt"

// EntityState is the lifecycle state of a record. The documented progression is
// inactive -> active -> deleted, but transitions are not restricted to adjacent
// states: a deleted record may be reactivated.
type EntityState int

const (
	StateInactive EntityState = 0
	StateActive   EntityState = 1
	StateDeleted  EntityState = 2
)

func (s EntityState) Valid() bool {
	return s >= StateInactive && s <= StateDeleted
}

func (s EntityState) String() string {
	switch s {
	case StateInactive:
		return "inactive"
	case StateActive:
		return "active"
	case StateDeleted:
		return "deleted"
	}
	return fmt.Sprintf("EntityState(%d)", int(s))
}
