package domain

import "fmt"

// StoreUnavailableError reports a connectivity or backend failure. It is a
// fault, distinct from absence: lookups that find nothing return nil values
// with a nil error. Callers may retry; nothing in the stores escalates this
// to a process-terminating condition.
type StoreUnavailableError struct {
	Store string
	Op    string
	Err   error
}

func (e *StoreUnavailableError) Error() string {
	return fmt.Sprintf("store unavailable, store=%s, op=%s, err=%v", e.Store, e.Op, e.Err)
}

func (e *StoreUnavailableError) Unwrap() error { return e.Err }

// ValidationError reports a malformed payload rejected at the call site,
// before it reaches any write queue.
type ValidationError struct {
	Op     string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid payload, op=%s, reason=%s", e.Op, e.Reason)
}
