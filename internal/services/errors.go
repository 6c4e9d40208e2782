package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrExternalTool  = errors.New("external service error")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrTimeout       = errors.New("timeout")
	ErrTransient     = errors.New("transient failure")
)

var markers = []error{
	ErrExternalTool,
	ErrValidation,
	ErrConfiguration,
	ErrNotFound,
	ErrTimeout,
	ErrTransient,
}

// ErrorKind names the marker category of a wrapped error.
type ErrorKind string

const (
	KindUnknown       ErrorKind = "unknown"
	KindExternal      ErrorKind = "external"
	KindValidation    ErrorKind = "validation"
	KindConfiguration ErrorKind = "configuration"
	KindNotFound      ErrorKind = "not_found"
	KindTimeout       ErrorKind = "timeout"
	KindTransient     ErrorKind = "transient"
)

// ServiceError carries the structured context recorded by Wrap.
type ServiceError struct {
	Marker    error
	Worker    string
	Operation string
	Message   string
	Cause     error
}

func (e *ServiceError) Error() string {
	detail := buildDetail(e.Worker, e.Operation, e.Message)
	if e.Cause != nil {
		return fmt.Sprintf("%v: %s: %v", e.Marker, detail, e.Cause)
	}
	return fmt.Sprintf("%v: %s", e.Marker, detail)
}

func (e *ServiceError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Marker}
	}
	return []error{e.Marker, e.Cause}
}

// Wrap builds an error that includes worker context while tagging it with
// the provided marker for later classification. The marker should be one of
// the exported sentinel errors above.
func Wrap(marker error, worker, operation, message string, err error) error {
	if marker == nil {
		marker = ErrTransient
	}
	return &ServiceError{
		Marker:    marker,
		Worker:    strings.TrimSpace(worker),
		Operation: strings.TrimSpace(operation),
		Message:   strings.TrimSpace(message),
		Cause:     err,
	}
}

// ErrorDetails is the flattened view of a service error used for logging.
type ErrorDetails struct {
	Kind      ErrorKind
	Worker    string
	Operation string
	Message   string
	Cause     error
}

// Details extracts structured information from err. Errors not produced by
// Wrap still report their marker kind when one is present in the chain.
func Details(err error) ErrorDetails {
	if err == nil {
		return ErrorDetails{Kind: KindUnknown}
	}
	details := ErrorDetails{Kind: Kind(err), Message: strings.TrimSpace(err.Error())}
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		details.Worker = svcErr.Worker
		details.Operation = svcErr.Operation
		if svcErr.Message != "" {
			details.Message = svcErr.Message
		}
		details.Cause = svcErr.Cause
	}
	return details
}

// Kind reports the marker category present in err's chain.
func Kind(err error) ErrorKind {
	for _, marker := range markers {
		if errors.Is(err, marker) {
			return kindFor(marker)
		}
	}
	return KindUnknown
}

// Retryable reports whether err is worth retrying without operator action.
func Retryable(err error) bool {
	switch Kind(err) {
	case KindTimeout, KindTransient, KindExternal:
		return true
	default:
		return false
	}
}

func kindFor(marker error) ErrorKind {
	switch marker {
	case ErrExternalTool:
		return KindExternal
	case ErrValidation:
		return KindValidation
	case ErrConfiguration:
		return KindConfiguration
	case ErrNotFound:
		return KindNotFound
	case ErrTimeout:
		return KindTimeout
	case ErrTransient:
		return KindTransient
	default:
		return KindUnknown
	}
}

func buildDetail(worker, operation, message string) string {
	parts := make([]string, 0, 3)
	if worker = strings.TrimSpace(worker); worker != "" {
		parts = append(parts, worker)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
