package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTask indicates a queue message failed validation.
	ErrInvalidTask = errors.New("invalid task")

	// ErrInvalidSignature indicates the webhook body failed HMAC verification.
	ErrInvalidSignature = errors.New("invalid webhook signature")

	// ErrMissingInstitution indicates the webhook carried no institution code.
	ErrMissingInstitution = errors.New("missing institution parameter")

	// ErrInvalidJSON indicates the webhook body is not valid JSON.
	ErrInvalidJSON = errors.New("invalid JSON in request body")

	// ErrMissingBarcode indicates the webhook payload has no item barcode.
	ErrMissingBarcode = errors.New("barcode is missing")

	// ErrInstitutionNotFound indicates the institution code is not provisioned
	// in the directory.
	ErrInstitutionNotFound = errors.New("institution not found")

	// ErrMissingAPIKey indicates the institution has no catalog API credential.
	ErrMissingAPIKey = errors.New("institution has no api key")

	// ErrItemNotFound indicates the catalog reported no item for the barcode.
	ErrItemNotFound = errors.New("item not found")

	// ErrRetriesExhausted indicates every fetch attempt failed transiently.
	ErrRetriesExhausted = errors.New("retries exhausted")

	// ErrEnqueueFailed indicates a message could not be sent to a queue.
	ErrEnqueueFailed = errors.New("failed to enqueue message")

	// ErrUploadFailed indicates a blob could not be written.
	ErrUploadFailed = errors.New("failed to upload blob")
)

// Kind classifies an error so that callers can dispatch on it without
// inspecting library error types.
type Kind int

const (
	// KindUnknown is reported for errors that carry no kind.
	KindUnknown Kind = iota
	// KindValidation marks malformed input that reprocessing cannot fix.
	KindValidation
	// KindTransient marks network-level failures worth retrying.
	KindTransient
	// KindTerminal marks API-level failures such as not found.
	KindTerminal
	// KindInfrastructure marks provisioning or gateway failures that need an
	// operator.
	KindInfrastructure
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindTransient:
		return "transient"
	case KindTerminal:
		return "terminal"
	case KindInfrastructure:
		return "infrastructure"
	default:
		return "unknown"
	}
}

// Error attaches a Kind and the failing operation to an underlying error.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// E wraps err with kind and op. A nil err yields nil.
func E(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of the outermost *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	return KindOf(err) == KindTransient
}
