package component

import (
	"encoding/json"
	"errors"
	"fmt"
)

// IssueSeverity distinguishes hard failures from warnings.
type IssueSeverity string

const (
	SeverityError   IssueSeverity = "error"
	SeverityWarning IssueSeverity = "warning"
)

// Issue is one validation finding for a component payload.
type Issue struct {
	Kind     string
	Severity IssueSeverity
	Field    string
	Message  string
}

func (i Issue) String() string {
	if i.Field != "" {
		return fmt.Sprintf("%s %s: field %q: %s", i.Severity, i.Kind, i.Field, i.Message)
	}
	return fmt.Sprintf("%s %s: %s", i.Severity, i.Kind, i.Message)
}

// Validate checks a payload against the registry without keeping the
// decoded record. Unknown kinds and decode failures are errors; unknown
// top-level fields are warnings so forward-compatible data still loads.
func (r *Registry) Validate(kind string, payload json.RawMessage) []Issue {
	if !r.HasDecoder(kind) {
		return []Issue{{Kind: kind, Severity: SeverityError, Message: "no decoder registered"}}
	}
	var issues []Issue
	if _, err := r.Decode(kind, payload); err != nil {
		var de *DecodeError
		if errors.As(err, &de) {
			issues = append(issues, Issue{
				Kind:     kind,
				Severity: SeverityError,
				Field:    de.Field,
				Message:  string(de.Reason),
			})
		} else {
			issues = append(issues, Issue{Kind: kind, Severity: SeverityError, Message: err.Error()})
		}
		return issues
	}
	if proto, ok := recordPrototype(kind); ok {
		for _, f := range UnknownFields(payload, proto) {
			issues = append(issues, Issue{
				Kind:     kind,
				Severity: SeverityWarning,
				Field:    f,
				Message:  "unknown field",
			})
		}
	}
	return issues
}
