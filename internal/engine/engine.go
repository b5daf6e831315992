package engine

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"taskline/internal/config"
	"taskline/internal/domain"
	"taskline/internal/events"
	"taskline/internal/repo"
)

type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Events events.Writer
	Config *config.Config
	Now    func() time.Time
}

func New(db *sql.DB, cfg *config.Config) Engine {
	return Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Events: events.Writer{DB: db},
		Config: cfg,
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) clock() domain.Option {
	return domain.WithClock(func() time.Time { return e.now() })
}

// TaskCreateOptions are parameters for creating a task. Empty strings mean
// "not supplied"; code and status then fall back to the task defaults, and
// organization/project/owner to the configured defaults.
type TaskCreateOptions struct {
	Code           string
	Name           string
	Description    string
	Type           string
	Status         string
	OrganizationID string
	ProjectID      string
	Owner          string
	ActorID        string
}

func (e Engine) CreateTask(ctx context.Context, opts TaskCreateOptions) (domain.Fields, error) {
	if e.Config == nil {
		return domain.Fields{}, errors.New("config not loaded")
	}
	if opts.OrganizationID == "" {
		opts.OrganizationID = e.Config.Defaults.OrganizationID
	}
	if opts.ProjectID == "" {
		opts.ProjectID = e.Config.Defaults.ProjectID
	}
	if opts.Owner == "" {
		opts.Owner = e.Config.Defaults.Owner
	}
	attrs := domain.Attributes{domain.FieldName: opts.Name}
	for field, value := range map[string]string{
		domain.FieldCode:           opts.Code,
		domain.FieldDescription:    opts.Description,
		domain.FieldType:           opts.Type,
		domain.FieldStatus:         opts.Status,
		domain.FieldOrganizationID: opts.OrganizationID,
		domain.FieldProjectID:      opts.ProjectID,
		domain.FieldOwner:          opts.Owner,
		domain.FieldCreatedBy:      opts.ActorID,
	} {
		if value != "" {
			attrs[field] = value
		}
	}
	task, err := domain.NewTask(attrs, e.clock())
	if err != nil {
		return domain.Fields{}, err
	}
	f := task.Snapshot()
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Fields{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertTask(ctx, tx, f); err != nil {
		return domain.Fields{}, err
	}
	if err := e.Events.Append(ctx, tx, events.TaskCreated, "task", f.ID, opts.ActorID, events.EventPayload{
		"code":   f.Code,
		"name":   f.Name,
		"status": task.Status(),
	}); err != nil {
		return domain.Fields{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Fields{}, err
	}
	return f, nil
}

// TaskUpdateOptions encapsulates allowed updates. Nil pointers leave a field
// untouched; a pointer to "" clears an optional field.
type TaskUpdateOptions struct {
	ID             string
	Code           *string
	Name           *string
	Description    *string
	Type           *string
	Status         *string
	OrganizationID *string
	ProjectID      *string
	Owner          *string
	ActorID        string
}

func (e Engine) UpdateTask(ctx context.Context, opts TaskUpdateOptions) (domain.Fields, error) {
	task, loadedVersion, err := e.loadTask(ctx, opts.ID)
	if err != nil {
		return domain.Fields{}, err
	}
	for _, m := range []struct {
		value *string
		set   func(string) error
	}{
		{opts.Code, task.SetCode},
		{opts.Name, task.SetName},
		{opts.Description, task.SetDescription},
		{opts.Type, task.SetType},
		{opts.Status, task.SetStatus},
		{opts.OrganizationID, task.SetOrganizationID},
		{opts.ProjectID, task.SetProjectID},
		{opts.Owner, task.SetOwner},
	} {
		if m.value == nil {
			continue
		}
		if err := m.set(*m.value); err != nil {
			return domain.Fields{}, err
		}
	}
	if err := task.MarkUpdated(opts.ActorID); err != nil {
		return domain.Fields{}, err
	}
	return e.storeTask(ctx, task, loadedVersion, events.TaskUpdated, opts.ActorID, events.EventPayload{
		"version": task.Version(),
	})
}

func (e Engine) ActivateTask(ctx context.Context, id, actorID string) (domain.Fields, error) {
	return e.transition(ctx, id, actorID, events.TaskActivated, (*domain.Task).Activate)
}

func (e Engine) DeactivateTask(ctx context.Context, id, actorID string) (domain.Fields, error) {
	return e.transition(ctx, id, actorID, events.TaskDeactivated, (*domain.Task).Deactivate)
}

// DeleteTask soft-deletes: the row keeps all its data and stays readable.
func (e Engine) DeleteTask(ctx context.Context, id, actorID string) (domain.Fields, error) {
	return e.transition(ctx, id, actorID, events.TaskDeleted, (*domain.Task).Delete)
}

func (e Engine) transition(ctx context.Context, id, actorID, evtType string, apply func(*domain.Task, string) error) (domain.Fields, error) {
	task, loadedVersion, err := e.loadTask(ctx, id)
	if err != nil {
		return domain.Fields{}, err
	}
	if err := apply(task, actorID); err != nil {
		return domain.Fields{}, err
	}
	return e.storeTask(ctx, task, loadedVersion, evtType, actorID, events.EventPayload{
		"state":   int(task.State()),
		"version": task.Version(),
	})
}

func (e Engine) GetTask(ctx context.Context, id string) (domain.Fields, error) {
	return e.Repo.GetTask(ctx, id)
}

func (e Engine) ListTasks(ctx context.Context, f repo.TaskFilters) ([]domain.Fields, error) {
	return e.Repo.ListTasks(ctx, f)
}

func (e Engine) TaskEvents(ctx context.Context, id string, limit int) ([]repo.Event, error) {
	if _, err := e.Repo.GetTask(ctx, id); err != nil {
		return nil, err
	}
	return e.Repo.ListTaskEvents(ctx, id, limit)
}

func (e Engine) loadTask(ctx context.Context, id string) (*domain.Task, int, error) {
	f, err := e.Repo.GetTask(ctx, id)
	if err != nil {
		return nil, 0, err
	}
	task, err := domain.TaskFromFields(f, e.clock())
	if err != nil {
		return nil, 0, err
	}
	return task, f.Version, nil
}

func (e Engine) storeTask(ctx context.Context, task *domain.Task, expectedVersion int, evtType, actorID string, payload events.EventPayload) (domain.Fields, error) {
	f := task.Snapshot()
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Fields{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateTask(ctx, tx, f, expectedVersion); err != nil {
		return domain.Fields{}, err
	}
	if err := e.Events.Append(ctx, tx, evtType, "task", f.ID, actorID, payload); err != nil {
		return domain.Fields{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Fields{}, err
	}
	return f, nil
}
