package openfloor

import "fmt"

// SchemaError reports a structural deserialization failure: a required field
// is absent or a value has the wrong JSON shape. Path locates the offending
// field from the root of the structure being decoded (e.g.
// "events[2].parameters.dialogEvent.speakerUri").
type SchemaError struct {
	Path    string
	Message string
	Value   any
}

func (e *SchemaError) Error() string {
	if e.Value != nil {
		return fmt.Sprintf("schema error at %s: %s (got %v)", e.Path, e.Message, e.Value)
	}
	return fmt.Sprintf("schema error at %s: %s", e.Path, e.Message)
}

func schemaErrorf(path string, value any, format string, args ...any) *SchemaError {
	return &SchemaError{Path: path, Message: fmt.Sprintf(format, args...), Value: value}
}

// ValidationError reports a semantic constraint violation caught at
// construction time, before any serialization is attempted.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func validationErrorf(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// UnknownEventTypeError reports an eventType discriminator with no
// registered decoder. The raw event structure is retained so the caller can
// decide to drop the event, keep it opaque or abort.
type UnknownEventTypeError struct {
	EventType string
	Raw       *Structure
}

func (e *UnknownEventTypeError) Error() string {
	return fmt.Sprintf("unknown event type %q", e.EventType)
}
