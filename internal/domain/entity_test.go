package domain_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"taskline/internal/domain"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestNewEntityDefaults(t *testing.T) {
	e, err := domain.New(domain.Attributes{"code": "E-1", "name": "thing"})
	if err != nil {
		t.Fatalf("new entity: %v", err)
	}
	if _, err := uuid.Parse(e.ID()); err != nil {
		t.Fatalf("id %q is not a UUID: %v", e.ID(), err)
	}
	if e.State() != domain.StateActive {
		t.Fatalf("expected active state, got %v", e.State())
	}
	if e.Version() != 1 {
		t.Fatalf("expected version 1, got %d", e.Version())
	}
	if e.CreatedAt().IsZero() || e.UpdatedAt().Before(e.CreatedAt()) {
		t.Fatalf("audit timestamps not initialized: created=%v updated=%v", e.CreatedAt(), e.UpdatedAt())
	}
	if e.CreatedAt().Location() != time.UTC {
		t.Fatalf("created_at not UTC")
	}
}

func TestNewEntityRequiredFields(t *testing.T) {
	cases := []struct {
		name  string
		attrs domain.Attributes
		field string
	}{
		{"missing code", domain.Attributes{"name": "x"}, "code"},
		{"missing name", domain.Attributes{"code": "C-1"}, "name"},
		{"empty code", domain.Attributes{"code": "", "name": "x"}, "code"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := domain.New(tc.attrs)
			var ve domain.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if ve.Field != tc.field || ve.Kind != domain.KindRequired {
				t.Fatalf("unexpected error: %+v", ve)
			}
		})
	}
}

func TestNewEntityLengthBounds(t *testing.T) {
	long := strings.Repeat("x", 256)
	_, err := domain.New(domain.Attributes{"code": "C-1", "name": long})
	var ve domain.ValidationError
	if !errors.As(err, &ve) || ve.Field != "name" || ve.Kind != domain.KindLength {
		t.Fatalf("expected name length error, got %v", err)
	}
	// exactly at the bound is fine
	if _, err := domain.New(domain.Attributes{"code": "C-1", "name": strings.Repeat("x", 255)}); err != nil {
		t.Fatalf("255-char name should pass: %v", err)
	}
	_, err = domain.New(domain.Attributes{"code": "C-1", "name": "x", "description": strings.Repeat("d", 1001)})
	if !errors.As(err, &ve) || ve.Field != "description" {
		t.Fatalf("expected description length error, got %v", err)
	}
}

func TestNewEntityUnknownFieldRejected(t *testing.T) {
	_, err := domain.New(domain.Attributes{"code": "C-1", "name": "x", "priority": 3})
	var ve domain.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if ve.Field != "priority" || ve.Kind != domain.KindUnknownField {
		t.Fatalf("unexpected error: %+v", ve)
	}
}

func TestNewEntityStateAndVersionBounds(t *testing.T) {
	if _, err := domain.New(domain.Attributes{"code": "C", "name": "x", "state": 3}); err == nil {
		t.Fatal("state 3 should be rejected")
	}
	if _, err := domain.New(domain.Attributes{"code": "C", "name": "x", "version": 0}); err == nil {
		t.Fatal("version 0 should be rejected")
	}
	e, err := domain.New(domain.Attributes{"code": "C", "name": "x", "state": 0, "version": 7})
	if err != nil {
		t.Fatalf("valid state/version rejected: %v", err)
	}
	if !e.IsInactive() || e.Version() != 7 {
		t.Fatalf("state/version not applied: %v %d", e.State(), e.Version())
	}
}

func TestNewEntityIgnoresCallerAuditValues(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	e, err := domain.New(domain.Attributes{
		"code":       "C-1",
		"name":       "x",
		"id":         "not-a-real-id",
		"created_at": "2001-01-01T00:00:00Z",
		"updated_at": "2001-01-01T00:00:00Z",
	}, domain.WithClock(fixedClock(now)), domain.WithIDFunc(func() string { return "fixed-id" }))
	if err != nil {
		t.Fatalf("new entity: %v", err)
	}
	if e.ID() != "fixed-id" {
		t.Fatalf("caller id should be ignored, got %q", e.ID())
	}
	if !e.CreatedAt().Equal(now) || !e.UpdatedAt().Equal(now) {
		t.Fatalf("timestamps should come from the clock: %v %v", e.CreatedAt(), e.UpdatedAt())
	}
}

func TestMutatorsTouchUpdatedAt(t *testing.T) {
	current := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return current }
	e, err := domain.New(domain.Attributes{"code": "C-1", "name": "x"}, domain.WithClock(clock))
	if err != nil {
		t.Fatal(err)
	}
	before := e.UpdatedAt()
	current = current.Add(time.Minute)
	if err := e.SetDescription("updated"); err != nil {
		t.Fatal(err)
	}
	if !e.UpdatedAt().After(before) {
		t.Fatalf("updated_at not refreshed: %v", e.UpdatedAt())
	}
	if e.Version() != 1 {
		t.Fatalf("plain mutation must not bump version, got %d", e.Version())
	}
	// invalid assignment leaves the field and timestamp alone
	stamp := e.UpdatedAt()
	current = current.Add(time.Minute)
	if err := e.SetStatus(strings.Repeat("s", 51)); err == nil {
		t.Fatal("expected status length error")
	}
	if e.Status() != "" || !e.UpdatedAt().Equal(stamp) {
		t.Fatalf("failed mutation must not change anything")
	}
}

func TestTouchAlwaysWritesNow(t *testing.T) {
	current := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	e, err := domain.New(domain.Attributes{"code": "C-1", "name": "x"}, domain.WithClock(func() time.Time { return current }))
	if err != nil {
		t.Fatal(err)
	}
	current = current.Add(time.Hour)
	e.Touch()
	if !e.UpdatedAt().Equal(current) {
		t.Fatalf("touch should store now, got %v", e.UpdatedAt())
	}
}

func TestMarkUpdatedVersionMonotonic(t *testing.T) {
	e, err := domain.New(domain.Attributes{"code": "C-1", "name": "x"})
	if err != nil {
		t.Fatal(err)
	}
	const n = 10
	for i := 0; i < n; i++ {
		prev := e.Version()
		var err error
		switch i % 4 {
		case 0:
			err = e.MarkUpdated("alice")
		case 1:
			err = e.Deactivate("alice")
		case 2:
			err = e.Activate("alice")
		case 3:
			err = e.Delete("alice")
		}
		if err != nil {
			t.Fatal(err)
		}
		if e.Version() != prev+1 {
			t.Fatalf("version must grow by exactly 1: %d -> %d", prev, e.Version())
		}
	}
	if e.Version() != 1+n {
		t.Fatalf("expected version %d, got %d", 1+n, e.Version())
	}
}

func TestMarkUpdatedPreservesActor(t *testing.T) {
	e, err := domain.New(domain.Attributes{"code": "C-1", "name": "x"})
	if err != nil {
		t.Fatal(err)
	}
	if err := e.MarkUpdated("alice"); err != nil {
		t.Fatal(err)
	}
	if err := e.MarkUpdated(""); err != nil {
		t.Fatal(err)
	}
	if e.UpdatedBy() != "alice" {
		t.Fatalf("empty actor must not clear updated_by, got %q", e.UpdatedBy())
	}
	if e.Version() != 3 {
		t.Fatalf("both calls must bump the version, got %d", e.Version())
	}
}

func TestPredicatesMatchState(t *testing.T) {
	e, err := domain.New(domain.Attributes{"code": "C-1", "name": "x"})
	if err != nil {
		t.Fatal(err)
	}
	check := func(active, inactive, deleted bool) {
		t.Helper()
		if e.IsActive() != active || e.IsInactive() != inactive || e.IsDeleted() != deleted {
			t.Fatalf("predicates inconsistent for state %v", e.State())
		}
	}
	check(true, false, false)
	if err := e.Deactivate(""); err != nil {
		t.Fatal(err)
	}
	check(false, true, false)
	if err := e.Delete(""); err != nil {
		t.Fatal(err)
	}
	check(false, false, true)
}

func TestUnrestrictedTransitions(t *testing.T) {
	e, err := domain.New(domain.Attributes{"code": "C-1", "name": "x"})
	if err != nil {
		t.Fatal(err)
	}
	base := e.Version()
	if err := e.Delete("bob"); err != nil {
		t.Fatal(err)
	}
	if err := e.Activate("bob"); err != nil {
		t.Fatalf("reactivating a deleted record must succeed: %v", err)
	}
	if e.State() != domain.StateActive {
		t.Fatalf("expected active, got %v", e.State())
	}
	if e.Version() != base+2 {
		t.Fatalf("expected version %d, got %d", base+2, e.Version())
	}
}

func TestSoftDeleteKeepsData(t *testing.T) {
	e, err := domain.New(domain.Attributes{"code": "C-1", "name": "keep me", "description": "details"})
	if err != nil {
		t.Fatal(err)
	}
	if err := e.Delete("bob"); err != nil {
		t.Fatal(err)
	}
	if e.Name() != "keep me" || e.Description() != "details" {
		t.Fatal("soft delete must not drop data")
	}
}

func TestStringForms(t *testing.T) {
	e, err := domain.New(domain.Attributes{"code": "C-1", "name": "widget", "type": "gadget"},
		domain.WithIDFunc(func() string { return "id-1" }))
	if err != nil {
		t.Fatal(err)
	}
	if got := e.String(); got != "Entity(id=id-1, code=C-1)" {
		t.Fatalf("short form: %q", got)
	}
	long := e.GoString()
	if !strings.Contains(long, `"widget"`) || !strings.Contains(long, `"gadget"`) {
		t.Fatalf("long form missing name/type: %q", long)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	e, err := domain.New(domain.Attributes{
		"code": "C-1", "name": "widget", "owner": "alice", "organization_id": "org-1",
	}, domain.WithClock(fixedClock(now)))
	if err != nil {
		t.Fatal(err)
	}
	if err := e.MarkUpdated("alice"); err != nil {
		t.Fatal(err)
	}
	f := e.Snapshot()
	back, err := domain.FromFields(f)
	if err != nil {
		t.Fatalf("rehydrate: %v", err)
	}
	if back.ID() != e.ID() || back.Version() != e.Version() || back.UpdatedBy() != "alice" {
		t.Fatalf("round trip mismatch: %#v", back)
	}
	if !back.UpdatedAt().Equal(e.UpdatedAt()) {
		t.Fatalf("rehydration must not refresh timestamps")
	}
}

func TestFromFieldsValidates(t *testing.T) {
	f := domain.Fields{ID: "id-1", Code: "C-1", Name: "x", State: 5, Version: 1, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	if _, err := domain.FromFields(f); err == nil {
		t.Fatal("state 5 should be rejected on rehydration")
	}
	f.State = 1
	f.Version = 0
	if _, err := domain.FromFields(f); err == nil {
		t.Fatal("version 0 should be rejected on rehydration")
	}
}
