package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"taskline/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var (
	ErrNotFound = errors.New("not found")

	// ErrVersionConflict is returned when an update carries a version that no
	// longer matches the stored row. Conflict detection lives here, not in the
	// entity layer.
	ErrVersionConflict = errors.New("version conflict")
)

const taskColumns = `id, code, name, description, type, created_at, created_by, updated_at, updated_by, state, status, version, organization_id, project_id, owner`

func (r Repo) InsertTask(ctx context.Context, tx *sql.Tx, f domain.Fields) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO tasks(`+taskColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		f.ID, f.Code, f.Name, nullablePtr(f.Description), nullablePtr(f.Type),
		formatTime(f.CreatedAt), nullablePtr(f.CreatedBy), formatTime(f.UpdatedAt), nullablePtr(f.UpdatedBy),
		f.State, nullablePtr(f.Status), f.Version,
		nullablePtr(f.OrganizationID), nullablePtr(f.ProjectID), nullablePtr(f.Owner))
	return err
}

// UpdateTask writes the full field set for the row whose stored version still
// equals expectedVersion. A vanished row yields ErrNotFound, a version
// mismatch ErrVersionConflict.
func (r Repo) UpdateTask(ctx context.Context, tx *sql.Tx, f domain.Fields, expectedVersion int) error {
	res, err := tx.ExecContext(ctx, `UPDATE tasks SET code=?, name=?, description=?, type=?, created_by=?, updated_at=?, updated_by=?, state=?, status=?, version=?, organization_id=?, project_id=?, owner=?
WHERE id=? AND version=?`,
		f.Code, f.Name, nullablePtr(f.Description), nullablePtr(f.Type), nullablePtr(f.CreatedBy),
		formatTime(f.UpdatedAt), nullablePtr(f.UpdatedBy), f.State, nullablePtr(f.Status), f.Version,
		nullablePtr(f.OrganizationID), nullablePtr(f.ProjectID), nullablePtr(f.Owner),
		f.ID, expectedVersion)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		var stored int
		err := tx.QueryRowContext(ctx, `SELECT version FROM tasks WHERE id=?`, f.ID).Scan(&stored)
		if err == sql.ErrNoRows {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return fmt.Errorf("task %s at version %d, expected %d: %w", f.ID, stored, expectedVersion, ErrVersionConflict)
	}
	return nil
}

func (r Repo) GetTask(ctx context.Context, id string) (domain.Fields, error) {
	return scanTask(r.DB.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id=?`, id))
}

func (r Repo) GetTaskByCode(ctx context.Context, code string) (domain.Fields, error) {
	return scanTask(r.DB.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE code=?`, code))
}

// TaskFilters narrows ListTasks. Soft-deleted rows are excluded unless
// IncludeDeleted is set or State explicitly asks for them.
type TaskFilters struct {
	State          *int
	Status         string
	OrganizationID string
	ProjectID      string
	Owner          string
	IncludeDeleted bool
}

func (r Repo) ListTasks(ctx context.Context, f TaskFilters) ([]domain.Fields, error) {
	var (
		where []string
		args  []any
	)
	if f.State != nil {
		where = append(where, "state=?")
		args = append(args, *f.State)
	} else if !f.IncludeDeleted {
		where = append(where, "state<>?")
		args = append(args, int(domain.StateDeleted))
	}
	if f.Status != "" {
		where = append(where, "status=?")
		args = append(args, f.Status)
	}
	if f.OrganizationID != "" {
		where = append(where, "organization_id=?")
		args = append(args, f.OrganizationID)
	}
	if f.ProjectID != "" {
		where = append(where, "project_id=?")
		args = append(args, f.ProjectID)
	}
	if f.Owner != "" {
		where = append(where, "owner=?")
		args = append(args, f.Owner)
	}
	q := `SELECT ` + taskColumns + ` FROM tasks`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY created_at ASC, id ASC"
	rows, err := r.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Fields
	for rows.Next() {
		t, err := scanTaskRow(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

func (r Repo) CountTasksByState(ctx context.Context) (map[string]int, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT state, COUNT(*) FROM tasks GROUP BY state`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := map[string]int{}
	for rows.Next() {
		var state, n int
		if err := rows.Scan(&state, &n); err != nil {
			return nil, err
		}
		counts[domain.EntityState(state).String()] = n
	}
	return counts, rows.Err()
}

type scannable interface {
	Scan(dest ...any) error
}

func scanTask(row *sql.Row) (domain.Fields, error) {
	t, err := scanTaskRow(row)
	if err == sql.ErrNoRows {
		return domain.Fields{}, ErrNotFound
	}
	return t, err
}

func scanTaskRow(row scannable) (domain.Fields, error) {
	var f domain.Fields
	var description, typ, createdBy, updatedBy, status, orgID, projectID, owner sql.NullString
	var createdAt, updatedAt string
	err := row.Scan(&f.ID, &f.Code, &f.Name, &description, &typ, &createdAt, &createdBy,
		&updatedAt, &updatedBy, &f.State, &status, &f.Version, &orgID, &projectID, &owner)
	if err != nil {
		return f, err
	}
	if f.CreatedAt, err = parseTime(createdAt); err != nil {
		return f, fmt.Errorf("task %s created_at: %w", f.ID, err)
	}
	if f.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return f, fmt.Errorf("task %s updated_at: %w", f.ID, err)
	}
	f.Description = optional(description)
	f.Type = optional(typ)
	f.CreatedBy = optional(createdBy)
	f.UpdatedBy = optional(updatedBy)
	f.Status = optional(status)
	f.OrganizationID = optional(orgID)
	f.ProjectID = optional(projectID)
	f.Owner = optional(owner)
	return f, nil
}

// Event is a row of the audit log.
type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

func (r Repo) ListTaskEvents(ctx context.Context, taskID string, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT id, ts, type, entity_kind, COALESCE(entity_id,''), actor_id, payload_json
FROM events WHERE entity_kind='task' AND entity_id=? ORDER BY id DESC LIMIT ?`, taskID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEvents(rows)
}

func (r Repo) LatestEvents(ctx context.Context, limit int, evtType string) ([]Event, error) {
	if limit <= 0 {
		limit = 20
	}
	var (
		where []string
		args  []any
	)
	if evtType != "" {
		where = append(where, "type=?")
		args = append(args, evtType)
	}
	q := `SELECT id, ts, type, entity_kind, COALESCE(entity_id,''), actor_id, payload_json FROM events`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY id DESC LIMIT ?"
	args = append(args, limit)
	rows, err := r.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEvents(rows)
}

// EventsAfter returns up to limit events with id greater than cursor, oldest
// first. The webhook dispatcher pages with this.
func (r Repo) EventsAfter(ctx context.Context, limit int, cursor int64) ([]Event, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT id, ts, type, entity_kind, COALESCE(entity_id,''), actor_id, payload_json
FROM events WHERE id>? ORDER BY id ASC LIMIT ?`, cursor, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEvents(rows)
}

func (r Repo) LatestEventID(ctx context.Context) (int64, error) {
	var id int64
	err := r.DB.QueryRowContext(ctx, `SELECT COALESCE(MAX(id),0) FROM events`).Scan(&id)
	return id, err
}

func collectEvents(rows *sql.Rows) ([]Event, error) {
	var res []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &e.EntityKind, &e.EntityID, &e.ActorID, &e.Payload); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

func optional(v sql.NullString) *string {
	if !v.Valid || v.String == "" {
		return nil
	}
	s := v.String
	return &s
}

func nullablePtr(v *string) any {
	if v == nil || *v == "" {
		return nil
	}
	return *v
}
