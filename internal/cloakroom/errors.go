package cloakroom

import (
	"fmt"
	"strings"

	"github.com/erazemk/hramba/internal/model"
)

// FieldError describes one rejected draft field.
type FieldError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// ValidationError is returned when an intake draft has missing or malformed
// fields. Fields lists every offending field in declaration order.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Field + " " + f.Reason
	}
	return "invalid item: " + strings.Join(parts, "; ")
}

// CapacityExceededError is returned when a department is full.
type CapacityExceededError struct {
	Department model.Department
	Limit      int
}

func (e *CapacityExceededError) Error() string {
	return fmt.Sprintf("department %s is full (limit %d)", e.Department, e.Limit)
}

// NotFoundError is returned when no item carries the given code.
type NotFoundError struct {
	QRCode string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no item with code %q", e.QRCode)
}

// InvalidTransitionError is returned when an item cannot move to returned
// because of its current status.
type InvalidTransitionError struct {
	QRCode string
	Status model.ItemStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("item %q is already %s", e.QRCode, e.Status)
}
