package ledger

import (
	"errors"
	"fmt"

	"hisab/internal/core"
	"hisab/internal/store"
)

var ErrNotAuthenticated = errors.New("Not authenticated")

// AuthError is returned when an operation needs a signed-in user and there
// is none.
type AuthError struct {
	Op string
}

func (e *AuthError) Error() string {
	return ErrNotAuthenticated.Error()
}

func (e *AuthError) Unwrap() error {
	return ErrNotAuthenticated
}

// StoreError wraps a failure reported by the data provider.
type StoreError struct {
	Op         string
	Collection string
	Err        error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Collection, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// Message is the text safe to show to the user, or "" when the cause is
// internal.
func (e *StoreError) Message() string {
	switch {
	case errors.Is(e.Err, store.ErrNoOwner):
		return ErrNotAuthenticated.Error()
	case errors.Is(e.Err, store.ErrForbidden):
		return "You do not have access to this record"
	case errors.Is(e.Err, store.ErrConflict):
		return "This record already exists"
	default:
		return ""
	}
}

// UserMessage picks the notification text for err.
func UserMessage(err error, fallback string) string {
	var verr *core.ValidationError
	if errors.As(err, &verr) {
		return verr.Message
	}
	if errors.Is(err, ErrNotAuthenticated) {
		return ErrNotAuthenticated.Error()
	}
	var serr *StoreError
	if errors.As(err, &serr) {
		if msg := serr.Message(); msg != "" {
			return msg
		}
	}
	return fallback
}

func storeErr(op, collection string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, Collection: collection, Err: err}
}
