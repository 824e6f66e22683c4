package api

import "strings"

// violations accumulates field errors so a request reports every invalid
// field at once instead of failing on the first.
type violations struct {
	fields []FieldViolation
}

func (v *violations) add(field, message string) {
	v.fields = append(v.fields, FieldViolation{Field: field, Message: message})
}

func (v *violations) requireString(field, value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		v.add(field, "must not be blank")
	}
	return trimmed
}

func (v *violations) err() error {
	if len(v.fields) == 0 {
		return nil
	}
	return &ValidationError{Violations: v.fields}
}
