package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Default factories. Constructors use these unless an Option overrides them;
// tests substitute fixed clocks and generators.

// NewID returns a random UUIDv4 in canonical text form.
func NewID() string { return uuid.NewString() }

// NowUTC returns the current instant in UTC.
func NowUTC() time.Time { return time.Now().UTC() }

// Attributes is a field-name -> value mapping accepted by the constructors.
// String fields take string or *string; state and version take int.
type Attributes map[string]any

// Option adjusts constructor behavior.
type Option func(*settings)

type settings struct {
	now     func() time.Time
	newID   func() string
	newCode func() string
}

// WithClock replaces the time source used for audit timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *settings) { s.now = now }
}

// WithIDFunc replaces the id generator.
func WithIDFunc(fn func() string) Option {
	return func(s *settings) { s.newID = fn }
}

// WithCodeFunc replaces the default-code generator used by NewTask.
func WithCodeFunc(fn func() string) Option {
	return func(s *settings) { s.newCode = fn }
}

func applyOptions(opts []Option) settings {
	s := settings{now: NowUTC, newID: NewID, newCode: NewTaskCode}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// Entity is the base record: identity, audit trail, soft-delete lifecycle and
// an optimistic-locking version counter. Fields are reached only through the
// accessor and mutator methods; every mutator re-validates the touched field
// and refreshes the updated_at timestamp.
//
// An Entity is not safe for concurrent mutation from multiple goroutines;
// synchronization is the caller's responsibility.
type Entity struct {
	id             string
	code           string
	name           string
	description    string
	entityType     string
	createdAt      time.Time
	createdBy      string
	updatedAt      time.Time
	updatedBy      string
	state          EntityState
	status         string
	version        int
	organizationID string
	projectID      string
	owner          string

	now func() time.Time
}

// New constructs an Entity from the given attributes. code and name are
// required; unknown attribute names fail construction. id, created_at and
// updated_at are always computed fresh, ignoring any caller-supplied values.
func New(attrs Attributes, opts ...Option) (*Entity, error) {
	return newEntity(attrs, applyOptions(opts))
}

func newEntity(attrs Attributes, s settings) (*Entity, error) {
	for k := range attrs {
		if _, ok := schemaFields[k]; !ok {
			return nil, ValidationError{Field: k, Kind: KindUnknownField, Detail: "not part of the entity schema"}
		}
	}
	now := s.now().UTC()
	e := &Entity{
		id:        s.newID(),
		createdAt: now,
		updatedAt: now,
		state:     StateActive,
		version:   1,
		now:       s.now,
	}
	for _, f := range []struct {
		name string
		dst  *string
	}{
		{FieldCode, &e.code},
		{FieldName, &e.name},
		{FieldDescription, &e.description},
		{FieldType, &e.entityType},
		{FieldCreatedBy, &e.createdBy},
		{FieldUpdatedBy, &e.updatedBy},
		{FieldStatus, &e.status},
		{FieldOrganizationID, &e.organizationID},
		{FieldProjectID, &e.projectID},
		{FieldOwner, &e.owner},
	} {
		v, err := stringAttr(attrs, f.name)
		if err != nil {
			return nil, err
		}
		if v != "" {
			*f.dst = v
		}
		if err := checkString(f.name, *f.dst); err != nil {
			return nil, err
		}
	}
	if v, ok := attrs[FieldState]; ok {
		n, err := intAttr(FieldState, v)
		if err != nil {
			return nil, err
		}
		if err := checkState(EntityState(n)); err != nil {
			return nil, err
		}
		e.state = EntityState(n)
	}
	if v, ok := attrs[FieldVersion]; ok {
		n, err := intAttr(FieldVersion, v)
		if err != nil {
			return nil, err
		}
		if err := checkVersion(n); err != nil {
			return nil, err
		}
		e.version = n
	}
	return e, nil
}

func stringAttr(attrs Attributes, field string) (string, error) {
	v, ok := attrs[field]
	if !ok || v == nil {
		return "", nil
	}
	switch s := v.(type) {
	case string:
		return s, nil
	case *string:
		if s == nil {
			return "", nil
		}
		return *s, nil
	}
	return "", ValidationError{Field: field, Kind: KindLength, Detail: fmt.Sprintf("expected string, got %T", v)}
}

func intAttr(field string, v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n == float64(int(n)) {
			return int(n), nil
		}
	}
	return 0, ValidationError{Field: field, Kind: KindRange, Detail: fmt.Sprintf("expected integer, got %v", v)}
}

// Accessors.

func (e *Entity) ID() string             { return e.id }
func (e *Entity) Code() string           { return e.code }
func (e *Entity) Name() string           { return e.name }
func (e *Entity) Description() string    { return e.description }
func (e *Entity) Type() string           { return e.entityType }
func (e *Entity) CreatedAt() time.Time   { return e.createdAt }
func (e *Entity) CreatedBy() string      { return e.createdBy }
func (e *Entity) UpdatedAt() time.Time   { return e.updatedAt }
func (e *Entity) UpdatedBy() string      { return e.updatedBy }
func (e *Entity) State() EntityState     { return e.state }
func (e *Entity) Status() string         { return e.status }
func (e *Entity) Version() int           { return e.version }
func (e *Entity) OrganizationID() string { return e.organizationID }
func (e *Entity) ProjectID() string      { return e.projectID }
func (e *Entity) Owner() string          { return e.owner }

func (e *Entity) nowUTC() time.Time {
	if e.now != nil {
		return e.now().UTC()
	}
	return NowUTC()
}

// touch refreshes updated_at. Every mutator funnels through here.
func (e *Entity) touch() { e.updatedAt = e.nowUTC() }

// Touch refreshes updated_at to now. Caller-chosen timestamps are never
// stored; this is the only way to write the field directly.
func (e *Entity) Touch() { e.touch() }

func (e *Entity) setString(field string, dst *string, value string) error {
	if err := checkString(field, value); err != nil {
		return err
	}
	*dst = value
	e.touch()
	return nil
}

// Mutators. Each validates the field against its declared constraint and
// refreshes updated_at.

func (e *Entity) SetCode(v string) error        { return e.setString(FieldCode, &e.code, v) }
func (e *Entity) SetName(v string) error        { return e.setString(FieldName, &e.name, v) }
func (e *Entity) SetDescription(v string) error { return e.setString(FieldDescription, &e.description, v) }
func (e *Entity) SetType(v string) error        { return e.setString(FieldType, &e.entityType, v) }
func (e *Entity) SetCreatedBy(v string) error   { return e.setString(FieldCreatedBy, &e.createdBy, v) }
func (e *Entity) SetUpdatedBy(v string) error   { return e.setString(FieldUpdatedBy, &e.updatedBy, v) }
func (e *Entity) SetStatus(v string) error      { return e.setString(FieldStatus, &e.status, v) }
func (e *Entity) SetOrganizationID(v string) error {
	return e.setString(FieldOrganizationID, &e.organizationID, v)
}
func (e *Entity) SetProjectID(v string) error { return e.setString(FieldProjectID, &e.projectID, v) }
func (e *Entity) SetOwner(v string) error     { return e.setString(FieldOwner, &e.owner, v) }

func (e *Entity) SetState(s EntityState) error {
	if err := checkState(s); err != nil {
		return err
	}
	e.state = s
	e.touch()
	return nil
}

// MarkUpdated refreshes updated_at, increments the version counter and, when a
// non-empty actor is given, records it as updated_by. An empty actor leaves
// the previous updated_by untouched.
func (e *Entity) MarkUpdated(actor string) error {
	if actor != "" {
		if err := checkString(FieldUpdatedBy, actor); err != nil {
			return err
		}
		e.updatedBy = actor
	}
	e.updatedAt = e.nowUTC()
	e.version++
	return nil
}

// Lifecycle transitions. No transition checks the prior state; a deleted
// record may be reactivated.

func (e *Entity) Deactivate(actor string) error {
	e.state = StateInactive
	return e.MarkUpdated(actor)
}

func (e *Entity) Activate(actor string) error {
	e.state = StateActive
	return e.MarkUpdated(actor)
}

// Delete soft-deletes the record: the state flips to deleted and all data
// stays readable.
func (e *Entity) Delete(actor string) error {
	e.state = StateDeleted
	return e.MarkUpdated(actor)
}

func (e *Entity) IsActive() bool   { return e.state == StateActive }
func (e *Entity) IsInactive() bool { return e.state == StateInactive }
func (e *Entity) IsDeleted() bool  { return e.state == StateDeleted }

func (e *Entity) shortString(kind string) string {
	return fmt.Sprintf("%s(id=%s, code=%s)", kind, e.id, e.code)
}

func (e *Entity) longString(kind string) string {
	return fmt.Sprintf("%s(id=%q, code=%q, name=%q, type=%q)", kind, e.id, e.code, e.name, e.entityType)
}

func (e *Entity) String() string   { return e.shortString("Entity") }
func (e *Entity) GoString() string { return e.longString("Entity") }
