package types

import (
	"fmt"
	"strings"
)

// DataError reports missing or invalid field, crop, weather or price data.
type DataError struct {
	Entity string
	ID     string
	Reason string
}

func (e *DataError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("data error: %s: %s", e.Entity, e.Reason)
	}
	return fmt.Sprintf("data error: %s %q: %s", e.Entity, e.ID, e.Reason)
}

func NewDataError(entity, id, format string, args ...any) *DataError {
	return &DataError{Entity: entity, ID: id, Reason: fmt.Sprintf(format, args...)}
}

// ValidationError rejects malformed constraints or configuration before solving.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Reason)
}

func NewValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// InfeasibleError is returned alongside a best-effort plan once the relaxation
// budget is spent.
type InfeasibleError struct {
	Violations []Violation
	Relaxation *Relaxation
}

func (e *InfeasibleError) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		if v.CropID != "" {
			parts = append(parts, fmt.Sprintf("%s(%s) short by %.4g", v.Kind, v.CropID, v.Amount))
		} else {
			parts = append(parts, fmt.Sprintf("%s short by %.4g", v.Kind, v.Amount))
		}
	}
	if len(parts) == 0 {
		return "infeasible: relaxation budget exhausted"
	}
	return "infeasible: " + strings.Join(parts, ", ")
}

// SolverTimeoutError carries the best incumbent found before the deadline.
type SolverTimeoutError struct {
	Plan *AllocationPlan
}

func (e *SolverTimeoutError) Error() string {
	if e.Plan == nil {
		return "solver timed out without an incumbent"
	}
	return fmt.Sprintf("solver timed out; returning incumbent with objective %.2f", e.Plan.ObjectiveValue)
}

const reasonNotFound = "not found"

func NotFound(entity, id string) *DataError {
	return &DataError{Entity: entity, ID: id, Reason: reasonNotFound}
}

// IsNotFound reports whether the referenced record does not exist, as opposed to
// existing with invalid content.
func (e *DataError) IsNotFound() bool { return e.Reason == reasonNotFound }
