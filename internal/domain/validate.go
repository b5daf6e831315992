package domain

import (
	"fmt"
	"unicode/utf8"
)

// Field names as they appear in storage and on the wire.
const (
	FieldID             = "id"
	FieldCode           = "code"
	FieldName           = "name"
	FieldDescription    = "description"
	FieldType           = "type"
	FieldCreatedAt      = "created_at"
	FieldCreatedBy      = "created_by"
	FieldUpdatedAt      = "updated_at"
	FieldUpdatedBy      = "updated_by"
	FieldState          = "state"
	FieldStatus         = "status"
	FieldVersion        = "version"
	FieldOrganizationID = "organization_id"
	FieldProjectID      = "project_id"
	FieldOwner          = "owner"
)

// Validation failure kinds.
const (
	KindRequired     = "required"
	KindLength       = "length"
	KindRange        = "range"
	KindUnknownField = "unknown_field"
)

// ValidationError reports a field-constraint violation. It is the only error
// kind the entity layer produces; construction that fails validation yields no
// instance.
type ValidationError struct {
	Field  string
	Kind   string
	Detail string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("field %s: %s", e.Field, e.Detail)
}

type stringRule struct {
	required bool
	min      int
	max      int
}

// stringRules is the single source of truth for string field bounds. Both the
// constructor pass and per-field mutators consult it.
var stringRules = map[string]stringRule{
	FieldCode:           {required: true, min: 1, max: 100},
	FieldName:           {required: true, min: 1, max: 255},
	FieldDescription:    {max: 1000},
	FieldType:           {max: 50},
	FieldCreatedBy:      {max: 255},
	FieldUpdatedBy:      {max: 255},
	FieldStatus:         {max: 50},
	FieldOrganizationID: {max: 100},
	FieldProjectID:      {max: 100},
	FieldOwner:          {max: 255},
}

// schemaFields is the closed set of constructible attribute names. Anything
// else is rejected, not silently dropped.
var schemaFields = map[string]struct{}{
	FieldID: {}, FieldCode: {}, FieldName: {}, FieldDescription: {},
	FieldType: {}, FieldCreatedAt: {}, FieldCreatedBy: {}, FieldUpdatedAt: {},
	FieldUpdatedBy: {}, FieldState: {}, FieldStatus: {}, FieldVersion: {},
	FieldOrganizationID: {}, FieldProjectID: {}, FieldOwner: {},
}

// ValidateField checks a string value against the declared constraint for the
// named field. Callers that stage field values outside an Entity (config
// defaults, request payloads) can reuse the constraint table through this.
func ValidateField(field, value string) error {
	if _, ok := stringRules[field]; !ok {
		return ValidationError{Field: field, Kind: KindUnknownField, Detail: "not part of the entity schema"}
	}
	return checkString(field, value)
}

func checkString(field, value string) error {
	rule := stringRules[field]
	if value == "" {
		if rule.required {
			return ValidationError{Field: field, Kind: KindRequired, Detail: "value is required"}
		}
		return nil
	}
	n := utf8.RuneCountInString(value)
	if n < rule.min {
		return ValidationError{Field: field, Kind: KindLength, Detail: fmt.Sprintf("length %d below minimum %d", n, rule.min)}
	}
	if rule.max > 0 && n > rule.max {
		return ValidationError{Field: field, Kind: KindLength, Detail: fmt.Sprintf("length %d exceeds maximum %d", n, rule.max)}
	}
	return nil
}

func checkState(s EntityState) error {
	if !s.Valid() {
		return ValidationError{Field: FieldState, Kind: KindRange, Detail: fmt.Sprintf("state %d not in {0,1,2}", int(s))}
	}
	return nil
}

func checkVersion(v int) error {
	if v < 1 {
		return ValidationError{Field: FieldVersion, Kind: KindRange, Detail: fmt.Sprintf("version %d below minimum 1", v)}
	}
	return nil
}
