// Package ingesterr defines the typed error taxonomy shared across the
// ingestion engine, generalizing the teacher's ErrUsage/ErrConfigNotFound
// sentinel-error pattern (internal/app/app.go) into a small hierarchy that
// supports errors.Is/errors.As.
package ingesterr

import (
	"errors"
	"fmt"
)

// Kind discriminates the taxonomy so callers can branch with errors.Is
// against the package-level sentinels below, or errors.As against *Error
// to recover the offending component/resource.
type Kind int

const (
	// Config covers malformed or invalid YAML configuration.
	Config Kind = iota
	// Catalog covers failures reading a database's schema catalog.
	Catalog
	// Inference is a non-fatal schema-inference problem: the caller logs
	// and skips the offending table rather than aborting the run.
	Inference
	// DataSource covers failures reading from a file/SQL/API/RDF/SPARQL
	// data source.
	DataSource
	// Sink covers failures writing to the graph sink; callers retry at
	// batch granularity with bounded backoff before giving up.
	Sink
)

func (k Kind) String() string {
	switch k {
	case Config:
		return "config"
	case Catalog:
		return "catalog"
	case Inference:
		return "inference"
	case DataSource:
		return "data_source"
	case Sink:
		return "sink"
	default:
		return "unknown"
	}
}

// sentinels: errors.Is(err, ingesterr.ErrConfig) is true for any *Error of
// that Kind, regardless of the wrapped detail/cause.
var (
	ErrConfig     = errors.New("config error")
	ErrCatalog    = errors.New("catalog error")
	ErrInference  = errors.New("inference warning")
	ErrDataSource = errors.New("data source error")
	ErrSink       = errors.New("sink error")
)

func sentinelFor(k Kind) error {
	switch k {
	case Config:
		return ErrConfig
	case Catalog:
		return ErrCatalog
	case Inference:
		return ErrInference
	case DataSource:
		return ErrDataSource
	case Sink:
		return ErrSink
	default:
		return errors.New("unknown error")
	}
}

// Error is the concrete typed error. Component/Resource identify where the
// failure occurred (e.g. Component "catalog.postgres", Resource "orders")
// for log messages and error-As recovery; either may be empty.
type Error struct {
	Kind      Kind
	Component string
	Resource  string
	Cause     error
}

func New(kind Kind, component, resource string, cause error) *Error {
	return &Error{Kind: kind, Component: component, Resource: resource, Cause: cause}
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Component != "" {
		msg += fmt.Sprintf(" [%s]", e.Component)
	}
	if e.Resource != "" {
		msg += fmt.Sprintf(" (%s)", e.Resource)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return errors.Join(sentinelFor(e.Kind), e.Cause)
}

// IsFatal reports whether the error should abort the run. Only Inference
// is non-fatal: the caller logs it and continues.
func (e *Error) IsFatal() bool {
	return e.Kind != Inference
}

// InvariantViolation panics with a message identifying the broken
// invariant. It is never routed to a caller as a returned error — it
// indicates a programming error in this codebase, not a bad input.
func InvariantViolation(format string, args ...interface{}) {
	panic("ingesterr: invariant violation: " + fmt.Sprintf(format, args...))
}
