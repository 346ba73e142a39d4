package model

import (
	"fmt"
	"strings"
)

// ValidationError holds a list of field-level validation errors.
type ValidationError struct {
	Errors []FieldError
}

// FieldError represents a single validation failure on a named field.
type FieldError struct {
	Field   string
	Message string
}

// Error formats the validation error as a semicolon-separated list of field messages.
func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		parts[i] = fe.Field + ": " + fe.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// HasErrors reports whether the validation error contains any field errors.
func (e *ValidationError) HasErrors() bool {
	return len(e.Errors) > 0
}

const maxTitleLen = 500

// ValidateTask checks a Task for constraint violations.
// It returns a *ValidationError if any rules fail, or nil if the task is valid.
func ValidateTask(t *Task) error {
	var ve ValidationError

	title := strings.TrimSpace(t.Title)
	if title == "" {
		ve.Errors = append(ve.Errors, FieldError{Field: "title", Message: "is required"})
	} else if len([]rune(title)) > maxTitleLen {
		ve.Errors = append(ve.Errors, FieldError{Field: "title", Message: "must be 500 characters or fewer"})
	}

	if !t.Quadrant.IsValid() {
		ve.Errors = append(ve.Errors, FieldError{
			Field:   "quadrant",
			Message: fmt.Sprintf("must be between 1 and 4, got %d", int(t.Quadrant)),
		})
	}

	if ve.HasErrors() {
		return &ve
	}
	return nil
}

// ValidateTaskPatch checks the fields a patch sets.
func ValidateTaskPatch(p TaskPatch) error {
	var ve ValidationError
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		ve.Errors = append(ve.Errors, FieldError{Field: "title", Message: "must not be empty"})
	}
	if p.Quadrant != nil && !p.Quadrant.IsValid() {
		ve.Errors = append(ve.Errors, FieldError{
			Field:   "quadrant",
			Message: fmt.Sprintf("must be between 1 and 4, got %d", int(*p.Quadrant)),
		})
	}
	if ve.HasErrors() {
		return &ve
	}
	return nil
}

// ValidateSection checks a Section for constraint violations.
func ValidateSection(s *Section) error {
	var ve ValidationError
	if strings.TrimSpace(s.Name) == "" {
		ve.Errors = append(ve.Errors, FieldError{Field: "name", Message: "is required"})
	}
	if ve.HasErrors() {
		return &ve
	}
	return nil
}

// ValidateSectionPatch checks the fields a section patch sets.
func ValidateSectionPatch(p SectionPatch) error {
	var ve ValidationError
	if p.Name != nil && strings.TrimSpace(*p.Name) == "" {
		ve.Errors = append(ve.Errors, FieldError{Field: "name", Message: "must not be empty"})
	}
	if ve.HasErrors() {
		return &ve
	}
	return nil
}
