package server

import (
	"encoding/json"
	"time"

	"taskline/internal/domain"
	"taskline/internal/repo"
)

// Request payloads

type CreateTaskRequest struct {
	Code           *string `json:"code,omitempty"`
	Name           string  `json:"name"`
	Description    *string `json:"description,omitempty"`
	Type           *string `json:"type,omitempty"`
	Status         *string `json:"status,omitempty"`
	OrganizationID *string `json:"organization_id,omitempty"`
	ProjectID      *string `json:"project_id,omitempty"`
	Owner          *string `json:"owner,omitempty"`
}

type UpdateTaskRequest struct {
	Code           *string `json:"code,omitempty"`
	Name           *string `json:"name,omitempty"`
	Description    *string `json:"description,omitempty"`
	Type           *string `json:"type,omitempty"`
	Status         *string `json:"status,omitempty"`
	OrganizationID *string `json:"organization_id,omitempty"`
	ProjectID      *string `json:"project_id,omitempty"`
	Owner          *string `json:"owner,omitempty"`
}

// Response payloads

type TaskResponse struct {
	ID             string  `json:"id"`
	Code           string  `json:"code"`
	Name           string  `json:"name"`
	Description    *string `json:"description,omitempty"`
	Type           *string `json:"type,omitempty"`
	CreatedAt      string  `json:"created_at" format:"date-time"`
	CreatedBy      *string `json:"created_by,omitempty"`
	UpdatedAt      string  `json:"updated_at" format:"date-time"`
	UpdatedBy      *string `json:"updated_by,omitempty"`
	State          int     `json:"state" minimum:"0" maximum:"2"`
	StateLabel     string  `json:"state_label" enum:"inactive,active,deleted"`
	Status         *string `json:"status,omitempty"`
	Version        int     `json:"version" minimum:"1"`
	OrganizationID *string `json:"organization_id,omitempty"`
	ProjectID      *string `json:"project_id,omitempty"`
	Owner          *string `json:"owner,omitempty"`
}

type EventResponse struct {
	ID         int64           `json:"id"`
	TS         string          `json:"ts" format:"date-time"`
	Type       string          `json:"type"`
	EntityKind string          `json:"entity_kind"`
	EntityID   string          `json:"entity_id,omitempty"`
	ActorID    string          `json:"actor_id,omitempty"`
	Payload    json.RawMessage `json:"payload"`
}

type StatusResponse struct {
	TaskCounts map[string]int `json:"task_counts"`
}

func taskResponse(f domain.Fields) TaskResponse {
	return TaskResponse{
		ID:             f.ID,
		Code:           f.Code,
		Name:           f.Name,
		Description:    f.Description,
		Type:           f.Type,
		CreatedAt:      f.CreatedAt.Format(time.RFC3339Nano),
		CreatedBy:      f.CreatedBy,
		UpdatedAt:      f.UpdatedAt.Format(time.RFC3339Nano),
		UpdatedBy:      f.UpdatedBy,
		State:          f.State,
		StateLabel:     domain.EntityState(f.State).String(),
		Status:         f.Status,
		Version:        f.Version,
		OrganizationID: f.OrganizationID,
		ProjectID:      f.ProjectID,
		Owner:          f.Owner,
	}
}

func mapTasks(items []domain.Fields) []TaskResponse {
	res := make([]TaskResponse, 0, len(items))
	for _, f := range items {
		res = append(res, taskResponse(f))
	}
	return res
}

func eventResponse(e repo.Event) EventResponse {
	payload := json.RawMessage([]byte("{}"))
	if e.Payload != "" && json.Valid([]byte(e.Payload)) {
		payload = json.RawMessage([]byte(e.Payload))
	}
	return EventResponse{
		ID:         e.ID,
		TS:         e.TS,
		Type:       e.Type,
		EntityKind: e.EntityKind,
		EntityID:   e.EntityID,
		ActorID:    e.ActorID,
		Payload:    payload,
	}
}

func mapEvents(items []repo.Event) []EventResponse {
	res := make([]EventResponse, 0, len(items))
	for _, e := range items {
		res = append(res, eventResponse(e))
	}
	return res
}
