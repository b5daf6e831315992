package domain

import "github.com/google/uuid"

// TaskCodePrefix prefixes auto-generated task codes.
const TaskCodePrefix = "TASK-"

// DefaultTaskStatus is the business status a new task starts in.
const DefaultTaskStatus = "pending"

// NewTaskCode returns "TASK-" plus the first 8 hex characters of a fresh
// UUIDv4.
func NewTaskCode() string {
	return TaskCodePrefix + uuid.NewString()[:8]
}

// Task is an Entity with task defaults: an auto-generated code and a business
// status starting at "pending". It adds no fields and no extra rules.
type Task struct {
	Entity
}

// NewTask constructs a Task. An explicit code or status in attrs overrides the
// defaults like any other field.
func NewTask(attrs Attributes, opts ...Option) (*Task, error) {
	s := applyOptions(opts)
	merged := make(Attributes, len(attrs)+2)
	for k, v := range attrs {
		merged[k] = v
	}
	if _, ok := merged[FieldCode]; !ok {
		merged[FieldCode] = s.newCode()
	}
	if _, ok := merged[FieldStatus]; !ok {
		merged[FieldStatus] = DefaultTaskStatus
	}
	e, err := newEntity(merged, s)
	if err != nil {
		return nil, err
	}
	return &Task{Entity: *e}, nil
}

func (t *Task) String() string   { return t.shortString("Task") }
func (t *Task) GoString() string { return t.longString("Task") }
