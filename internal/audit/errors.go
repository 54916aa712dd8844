package audit

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrConfiguration marks errors the caller must fix in configuration.
	ErrConfiguration = errors.New("configuration error")
	// ErrInvariant marks a broken relationship between analysis inputs.
	ErrInvariant = errors.New("invariant violation")
)

// ConfigurationError indicates thresholds or schemas that do not match the
// scored field set.
type ConfigurationError struct {
	Reason string
	Fields []string
}

func (e *ConfigurationError) Error() string {
	if len(e.Fields) == 0 {
		return fmt.Sprintf("configuration error: %s", e.Reason)
	}
	return fmt.Sprintf("configuration error: %s: %s", e.Reason, strings.Join(e.Fields, ", "))
}

func (e *ConfigurationError) Unwrap() error { return ErrConfiguration }

// InvariantViolation indicates a field scored below 100% complete for which the
// joined record set holds no record with the gap. The join dropped the only
// offending rows.
type InvariantViolation struct {
	Field     string
	Percent   float64
	Threshold float64
}

func (e *InvariantViolation) Error() string {
	return fmt.Sprintf("invariant violation: field %s is %.2f%% complete (threshold %.2f) but no joined record is missing it",
		e.Field, e.Percent, e.Threshold)
}

func (e *InvariantViolation) Unwrap() error { return ErrInvariant }

// EmptyInputWarning flags an empty record set. Results stay well defined
// (0% complete, empty tabulation) but the caller should log it.
type EmptyInputWarning struct {
	Set       string
	Operation string
}

func (w *EmptyInputWarning) Error() string {
	return fmt.Sprintf("empty input: record set %q has no rows for %s", w.Set, w.Operation)
}

// CheckEmpty returns a warning when rs has no records, nil otherwise.
func CheckEmpty(rs RecordSet, operation string) *EmptyInputWarning {
	if len(rs.Records) > 0 {
		return nil
	}
	return &EmptyInputWarning{Set: rs.Name, Operation: operation}
}
