package domain_test

import (
	"errors"
	"regexp"
	"testing"

	"taskline/internal/domain"
)

var taskCodeRe = regexp.MustCompile(`^TASK-[0-9a-f]{8}$`)

func TestNewTaskDefaults(t *testing.T) {
	task, err := domain.NewTask(domain.Attributes{"name": "Buy milk"})
	if err != nil {
		t.Fatalf("new task: %v", err)
	}
	if task.Name() != "Buy milk" {
		t.Fatalf("name: %q", task.Name())
	}
	if !taskCodeRe.MatchString(task.Code()) {
		t.Fatalf("code %q does not match TASK-{8 hex}", task.Code())
	}
	if task.Status() != "pending" {
		t.Fatalf("expected pending status, got %q", task.Status())
	}
	if task.State() != domain.StateActive {
		t.Fatalf("expected active state, got %v", task.State())
	}
}

func TestNewTaskCodeUnique(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 200; i++ {
		task, err := domain.NewTask(domain.Attributes{"name": "t"})
		if err != nil {
			t.Fatal(err)
		}
		if _, dup := seen[task.Code()]; dup {
			t.Fatalf("duplicate code %q", task.Code())
		}
		seen[task.Code()] = struct{}{}
	}
}

func TestNewTaskExplicitOverrides(t *testing.T) {
	task, err := domain.NewTask(domain.Attributes{"name": "t", "code": "TASK-custom", "status": "in_progress"})
	if err != nil {
		t.Fatal(err)
	}
	if task.Code() != "TASK-custom" || task.Status() != "in_progress" {
		t.Fatalf("explicit values lost: %q %q", task.Code(), task.Status())
	}
}

func TestNewTaskUnknownFieldRejected(t *testing.T) {
	_, err := domain.NewTask(domain.Attributes{"name": "t", "due_date": "tomorrow"})
	var ve domain.ValidationError
	if !errors.As(err, &ve) || ve.Kind != domain.KindUnknownField {
		t.Fatalf("expected unknown-field error, got %v", err)
	}
}

func TestNewTaskDoesNotMutateCallerAttrs(t *testing.T) {
	attrs := domain.Attributes{"name": "t"}
	if _, err := domain.NewTask(attrs); err != nil {
		t.Fatal(err)
	}
	if _, ok := attrs["code"]; ok {
		t.Fatal("caller attributes were mutated")
	}
}

func TestTaskInheritsLifecycle(t *testing.T) {
	task, err := domain.NewTask(domain.Attributes{"name": "t"})
	if err != nil {
		t.Fatal(err)
	}
	if err := task.Deactivate("alice"); err != nil {
		t.Fatal(err)
	}
	if !task.IsInactive() || task.Version() != 2 {
		t.Fatalf("lifecycle not inherited: %v v%d", task.State(), task.Version())
	}
	if err := task.Delete("alice"); err != nil {
		t.Fatal(err)
	}
	if err := task.Activate("alice"); err != nil {
		t.Fatal(err)
	}
	if !task.IsActive() || task.Version() != 4 {
		t.Fatalf("reactivation failed: %v v%d", task.State(), task.Version())
	}
}

func TestTaskStringUsesTaskName(t *testing.T) {
	task, err := domain.NewTask(domain.Attributes{"name": "t", "code": "TASK-abc"},
		domain.WithIDFunc(func() string { return "id-1" }))
	if err != nil {
		t.Fatal(err)
	}
	if got := task.String(); got != "Task(id=id-1, code=TASK-abc)" {
		t.Fatalf("short form: %q", got)
	}
}

func TestTaskCodeFuncInjectable(t *testing.T) {
	task, err := domain.NewTask(domain.Attributes{"name": "t"},
		domain.WithCodeFunc(func() string { return "TASK-fixed" }))
	if err != nil {
		t.Fatal(err)
	}
	if task.Code() != "TASK-fixed" {
		t.Fatalf("code func not used: %q", task.Code())
	}
}
