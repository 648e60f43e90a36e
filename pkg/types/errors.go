package types

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds
var (
	ErrNotFound     = errors.New("not found")
	ErrTransport    = errors.New("transport failure")
	ErrIntegrity    = errors.New("integrity failure")
	ErrConfig       = errors.New("configuration error")
	ErrInvalidInput = errors.New("invalid input")
)

// NotFoundError reports an identifier that did not resolve, with optional
// "did you mean" suggestions.
type NotFoundError struct {
	Identifier  string
	Suggestions []FuzzyMatch
}

func (e *NotFoundError) Error() string {
	if len(e.Suggestions) == 0 {
		return fmt.Sprintf("not found: %s", e.Identifier)
	}
	names := make([]string, len(e.Suggestions))
	for i, s := range e.Suggestions {
		names[i] = s.Candidate
	}
	return fmt.Sprintf("not found: %s (did you mean: %s?)", e.Identifier, strings.Join(names, ", "))
}

// Is matches ErrNotFound
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// TransportError reports a failed or timed-out call to an embedding or
// reranking backend.
type TransportError struct {
	Backend    string
	Op         string
	StatusCode int  // 0 when the request never produced a response
	Timeout    bool // deadline exceeded before a response arrived
	Err        error
}

func (e *TransportError) Error() string {
	var b strings.Builder
	b.WriteString(e.Backend)
	if e.Op != "" {
		b.WriteString(" ")
		b.WriteString(e.Op)
	}
	switch {
	case e.Timeout:
		b.WriteString(": timed out")
	case e.StatusCode != 0:
		fmt.Fprintf(&b, ": status %d", e.StatusCode)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Is matches ErrTransport
func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IntegrityError reports a persisted index that cannot be trusted.
type IntegrityError struct {
	Path   string
	Reason string
	Err    error
}

func (e *IntegrityError) Error() string {
	msg := fmt.Sprintf("index %s: %s", e.Path, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is matches ErrIntegrity
func (e *IntegrityError) Is(target error) bool {
	return target == ErrIntegrity
}

func (e *IntegrityError) Unwrap() error {
	return e.Err
}

// ConfigError reports an invalid configuration value.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %s", e.Field, e.Reason)
}

// Is matches ErrConfig
func (e *ConfigError) Is(target error) bool {
	return target == ErrConfig
}
