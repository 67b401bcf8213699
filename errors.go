package recall

import (
	"errors"
	"fmt"

	"github.com/recallio/recall-go/ai"
	"github.com/recallio/recall-go/store"
)

// ErrConfiguration reports missing or invalid credentials or options.
// It is surfaced immediately and never retried.
var ErrConfiguration = errors.New("configuration error")

// ErrNotFound reports a record id that does not exist for the owner.
var ErrNotFound = store.ErrMemoryNotFound

// ServiceError wraps an upstream extraction or embedding failure that
// survived the retry policy.
type ServiceError struct {
	Service string // "extraction" or "embedding"
	Err     error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s service: %v", e.Service, e.Err)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// StoreError wraps a persistence or query failure.
type StoreError struct {
	Err error
}

func (e *StoreError) Error() string { return fmt.Sprintf("store: %v", e.Err) }

func (e *StoreError) Unwrap() error { return e.Err }

// OpError carries the operation name and record id alongside the
// underlying cause, so callers can decide whether to retry.
type OpError struct {
	Op       string
	RecordID string
	Err      error
}

func (e *OpError) Error() string {
	if e.RecordID != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.RecordID, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *OpError) Unwrap() error { return e.Err }

func opErr(op, id string, err error) error {
	if err == nil {
		return nil
	}
	return &OpError{Op: op, RecordID: id, Err: err}
}

// retryable classifies an error for the backoff loop. Data-integrity
// failures and configuration problems are final; everything else from
// an upstream service is assumed transient.
func retryable(err error) bool {
	switch {
	case errors.Is(err, ErrConfiguration),
		errors.Is(err, ai.ErrMalformedExtraction),
		errors.Is(err, ai.ErrDimensionMismatch),
		errors.Is(err, store.ErrMemoryNotFound):
		return false
	}
	return true
}
