package domain

import "time"

// Fields is the flat, serializable view of an entity. Storage and transport
// layers persist exactly this table; field names match the attribute names
// accepted by the constructors.
type Fields struct {
	ID             string    `json:"id"`
	Code           string    `json:"code"`
	Name           string    `json:"name"`
	Description    *string   `json:"description,omitempty"`
	Type           *string   `json:"type,omitempty"`
	CreatedAt      time.Time `json:"created_at" format:"date-time"`
	CreatedBy      *string   `json:"created_by,omitempty"`
	UpdatedAt      time.Time `json:"updated_at" format:"date-time"`
	UpdatedBy      *string   `json:"updated_by,omitempty"`
	State          int       `json:"state" minimum:"0" maximum:"2"`
	Status         *string   `json:"status,omitempty"`
	Version        int       `json:"version" minimum:"1"`
	OrganizationID *string   `json:"organization_id,omitempty"`
	ProjectID      *string   `json:"project_id,omitempty"`
	Owner          *string   `json:"owner,omitempty"`
}

// Snapshot returns a copy of the entity's current field values.
func (e *Entity) Snapshot() Fields {
	return Fields{
		ID:             e.id,
		Code:           e.code,
		Name:           e.name,
		Description:    optionalString(e.description),
		Type:           optionalString(e.entityType),
		CreatedAt:      e.createdAt,
		CreatedBy:      optionalString(e.createdBy),
		UpdatedAt:      e.updatedAt,
		UpdatedBy:      optionalString(e.updatedBy),
		State:          int(e.state),
		Status:         optionalString(e.status),
		Version:        e.version,
		OrganizationID: optionalString(e.organizationID),
		ProjectID:      optionalString(e.projectID),
		Owner:          optionalString(e.owner),
	}
}

// FromFields rehydrates an entity from stored field values. All constraints
// are re-checked; audit fields are taken as stored, not refreshed.
func FromFields(f Fields, opts ...Option) (*Entity, error) {
	s := applyOptions(opts)
	e := &Entity{
		id:             f.ID,
		code:           f.Code,
		name:           f.Name,
		description:    deref(f.Description),
		entityType:     deref(f.Type),
		createdAt:      f.CreatedAt.UTC(),
		createdBy:      deref(f.CreatedBy),
		updatedAt:      f.UpdatedAt.UTC(),
		updatedBy:      deref(f.UpdatedBy),
		state:          EntityState(f.State),
		status:         deref(f.Status),
		version:        f.Version,
		organizationID: deref(f.OrganizationID),
		projectID:      deref(f.ProjectID),
		owner:          deref(f.Owner),
		now:            s.now,
	}
	if e.id == "" {
		return nil, ValidationError{Field: FieldID, Kind: KindRequired, Detail: "value is required"}
	}
	for field, value := range map[string]string{
		FieldCode:           e.code,
		FieldName:           e.name,
		FieldDescription:    e.description,
		FieldType:           e.entityType,
		FieldCreatedBy:      e.createdBy,
		FieldUpdatedBy:      e.updatedBy,
		FieldStatus:         e.status,
		FieldOrganizationID: e.organizationID,
		FieldProjectID:      e.projectID,
		FieldOwner:          e.owner,
	} {
		if err := checkString(field, value); err != nil {
			return nil, err
		}
	}
	if err := checkState(e.state); err != nil {
		return nil, err
	}
	if err := checkVersion(e.version); err != nil {
		return nil, err
	}
	return e, nil
}

// TaskFromFields rehydrates a Task.
func TaskFromFields(f Fields, opts ...Option) (*Task, error) {
	e, err := FromFields(f, opts...)
	if err != nil {
		return nil, err
	}
	return &Task{Entity: *e}, nil
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
