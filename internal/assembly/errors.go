package assembly

import (
	"context"
	"errors"
	"fmt"
	"syscall"

	"mailreel/internal/services"
)

// Error reports an assembly failure and whether retrying later may help.
type Error struct {
	Kind services.Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("assemble %s: %s failure", e.Op, e.Kind)
	}
	return fmt.Sprintf("assemble %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Transient reports whether the failure may succeed on a later run.
func (e *Error) Transient() bool { return e.Kind == services.KindTransient }

func permanent(op string, err error) *Error {
	return &Error{Kind: services.KindPermanent, Op: op, Err: err}
}

func transient(op string, err error) *Error {
	return &Error{Kind: services.KindTransient, Op: op, Err: err}
}

// classify maps a muxer or filesystem error onto an assembly error.
func classify(op string, err error) *Error {
	if err == nil {
		return nil
	}
	var existing *Error
	if errors.As(err, &existing) {
		return existing
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return transient(op, err)
	case errors.Is(err, syscall.ENOSPC), errors.Is(err, syscall.EAGAIN), errors.Is(err, syscall.ENOMEM):
		return transient(op, err)
	}
	if services.IsRetryable(err) {
		return transient(op, err)
	}
	return permanent(op, err)
}
