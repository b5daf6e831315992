package tasklinesdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client is a minimal Taskline HTTP API client.
type Client struct {
	BaseURL     string
	ActorID     string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Task represents the API task model.
type Task struct {
	ID             string  `json:"id"`
	Code           string  `json:"code"`
	Name           string  `json:"name"`
	Description    *string `json:"description,omitempty"`
	Type           *string `json:"type,omitempty"`
	CreatedAt      string  `json:"created_at"`
	CreatedBy      *string `json:"created_by,omitempty"`
	UpdatedAt      string  `json:"updated_at"`
	UpdatedBy      *string `json:"updated_by,omitempty"`
	State          int     `json:"state"`
	StateLabel     string  `json:"state_label"`
	Status         *string `json:"status,omitempty"`
	Version        int     `json:"version"`
	OrganizationID *string `json:"organization_id,omitempty"`
	ProjectID      *string `json:"project_id,omitempty"`
	Owner          *string `json:"owner,omitempty"`
}

// Event represents an audit log entry.
type Event struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts"`
	Type       string         `json:"type"`
	EntityKind string         `json:"entity_kind"`
	EntityID   string         `json:"entity_id"`
	ActorID    string         `json:"actor_id"`
	Payload    map[string]any `json:"payload"`
}

// CreateTaskParams carries optional fields for CreateTask. Nil pointers are
// omitted from the request.
type CreateTaskParams struct {
	Code           *string `json:"code,omitempty"`
	Name           string  `json:"name"`
	Description    *string `json:"description,omitempty"`
	Type           *string `json:"type,omitempty"`
	Status         *string `json:"status,omitempty"`
	OrganizationID *string `json:"organization_id,omitempty"`
	ProjectID      *string `json:"project_id,omitempty"`
	Owner          *string `json:"owner,omitempty"`
}

// UpdateTaskParams carries patch fields. Nil pointers leave the field
// unchanged; a pointer to "" clears an optional field.
type UpdateTaskParams struct {
	Code           *string `json:"code,omitempty"`
	Name           *string `json:"name,omitempty"`
	Description    *string `json:"description,omitempty"`
	Type           *string `json:"type,omitempty"`
	Status         *string `json:"status,omitempty"`
	OrganizationID *string `json:"organization_id,omitempty"`
	ProjectID      *string `json:"project_id,omitempty"`
	Owner          *string `json:"owner,omitempty"`
}

// ListTasksParams filters ListTasks.
type ListTasksParams struct {
	State          *int
	Status         string
	OrganizationID string
	ProjectID      string
	Owner          string
	IncludeDeleted bool
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// CreateTask creates a task.
func (c *Client) CreateTask(ctx context.Context, params CreateTaskParams) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodPost, "v0/tasks", params, &resp)
	return resp, err
}

// GetTask fetches a task by id.
func (c *Client) GetTask(ctx context.Context, id string) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodGet, c.taskPath(id, ""), nil, &resp)
	return resp, err
}

// ListTasks returns tasks matching the filters.
func (c *Client) ListTasks(ctx context.Context, params ListTasksParams) ([]Task, error) {
	q := url.Values{}
	if params.State != nil {
		q.Set("state", strconv.Itoa(*params.State))
	}
	if params.Status != "" {
		q.Set("status", params.Status)
	}
	if params.OrganizationID != "" {
		q.Set("organization_id", params.OrganizationID)
	}
	if params.ProjectID != "" {
		q.Set("project_id", params.ProjectID)
	}
	if params.Owner != "" {
		q.Set("owner", params.Owner)
	}
	if params.IncludeDeleted {
		q.Set("include_deleted", "true")
	}
	endpoint := "v0/tasks"
	if encoded := q.Encode(); encoded != "" {
		endpoint += "?" + encoded
	}
	var resp []Task
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// UpdateTask patches a task.
func (c *Client) UpdateTask(ctx context.Context, id string, params UpdateTaskParams) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodPatch, c.taskPath(id, ""), params, &resp)
	return resp, err
}

// ActivateTask sets the task state to active.
func (c *Client) ActivateTask(ctx context.Context, id string) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodPost, c.taskPath(id, "activate"), nil, &resp)
	return resp, err
}

// DeactivateTask sets the task state to inactive.
func (c *Client) DeactivateTask(ctx context.Context, id string) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodPost, c.taskPath(id, "deactivate"), nil, &resp)
	return resp, err
}

// DeleteTask soft-deletes the task; it stays readable afterwards.
func (c *Client) DeleteTask(ctx context.Context, id string) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodDelete, c.taskPath(id, ""), nil, &resp)
	return resp, err
}

// TaskEvents returns the audit trail of a task, newest first.
func (c *Client) TaskEvents(ctx context.Context, id string, limit int) ([]Event, error) {
	endpoint := c.taskPath(id, "events")
	if limit > 0 {
		endpoint = fmt.Sprintf("%s?limit=%d", endpoint, limit)
	}
	var resp []Event
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// Events returns recent audit events across all tasks.
func (c *Client) Events(ctx context.Context, limit int, evtType string) ([]Event, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if evtType != "" {
		q.Set("type", evtType)
	}
	endpoint := "v0/events"
	if encoded := q.Encode(); encoded != "" {
		endpoint += "?" + encoded
	}
	var resp []Event
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.ActorID != "":
		req.Header.Set("X-Actor-Id", c.ActorID)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) taskPath(id, sub string) string {
	p := fmt.Sprintf("v0/tasks/%s", url.PathEscape(id))
	if sub != "" {
		p += "/" + sub
	}
	return p
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
