package services

import (
	"errors"
	"strings"
)

// Failure classes. Callers match them with errors.Is.
var (
	ErrExternalTool  = errors.New("external tool error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrTransient     = errors.New("transient failure")
)

// Error is a classified failure raised inside one component.
type Error struct {
	Class     error
	Component string
	Operation string
	Detail    string
	Err       error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Class.Error())
	b.WriteString(": ")
	wrote := false
	for _, part := range []string{e.Component, e.Operation, e.Detail} {
		if part == "" {
			continue
		}
		if wrote {
			b.WriteString(": ")
		}
		b.WriteString(part)
		wrote = true
	}
	if !wrote {
		b.WriteString("service failure")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap exposes both the class and the cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Class}
	}
	return []error{e.Class, e.Err}
}

// Wrap classifies err under class, which should be one of the sentinels
// above. A nil class is treated as transient.
func Wrap(class error, component, operation, detail string, err error) error {
	if class == nil {
		class = ErrTransient
	}
	return &Error{
		Class:     class,
		Component: strings.TrimSpace(component),
		Operation: strings.TrimSpace(operation),
		Detail:    strings.TrimSpace(detail),
		Err:       err,
	}
}
