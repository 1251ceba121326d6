// Package dataerr defines the error taxonomy shared by the pipeline stages.
package dataerr

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Kind classifies a pipeline failure.
type Kind string

const (
	KindSchema        Kind = "schema"
	KindDataIntegrity Kind = "data_integrity"
	KindMetricDomain  Kind = "metric_domain"
)

// Sentinels for errors.Is.
var (
	ErrSchema        = errors.New("schema error")
	ErrDataIntegrity = errors.New("data integrity error")
	ErrMetricDomain  = errors.New("metric domain error")
)

// Error carries the kind, a message, an optional cause and key/value context.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
	Context map[string]any
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", e.Kind, e.Message)
	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, " %s=%v", k, e.Context[k])
		}
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches the sentinel of the error's kind.
func (e *Error) Is(target error) bool {
	switch e.Kind {
	case KindSchema:
		return target == ErrSchema
	case KindDataIntegrity:
		return target == ErrDataIntegrity
	case KindMetricDomain:
		return target == ErrMetricDomain
	}
	return false
}

// WithContext adds a key/value pair and returns the same error.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

func newError(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Schema reports raw input that does not match the expected column layout.
func Schema(format string, args ...any) *Error {
	return newError(KindSchema, nil, format, args...)
}

// SchemaCause is Schema with an underlying cause.
func SchemaCause(cause error, format string, args ...any) *Error {
	return newError(KindSchema, cause, format, args...)
}

// DataIntegrity reports a violated invariant after cleaning.
func DataIntegrity(format string, args ...any) *Error {
	return newError(KindDataIntegrity, nil, format, args...)
}

// MetricDomain reports inputs for which a metric is undefined.
func MetricDomain(format string, args ...any) *Error {
	return newError(KindMetricDomain, nil, format, args...)
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}
