package grid

import "fmt"

// ConfigurationError reports invalid ladder or template parameters.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration: %s %s", e.Field, e.Reason)
}

// DataError reports an empty or malformed price series.
// Index is the offending row, or -1 when the series as a whole is bad.
type DataError struct {
	Index  int
	Reason string
}

func (e *DataError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("data: %s", e.Reason)
	}
	return fmt.Sprintf("data: row %d: %s", e.Index, e.Reason)
}

// StateError reports a transition the level or cycle state machine forbids.
type StateError struct {
	Subject string
	From    string
	To      string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("state: %s cannot move from %s to %s", e.Subject, e.From, e.To)
}

func configErr(field, format string, args ...any) error {
	return &ConfigurationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
