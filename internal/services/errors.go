package services

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
)

var (
	ErrExternalTool      = errors.New("external tool error")
	ErrValidation        = errors.New("validation error")
	ErrConfiguration     = errors.New("configuration error")
	ErrNotFound          = errors.New("not found")
	ErrTimeout           = errors.New("timeout")
	ErrTransient         = errors.New("transient failure")
	ErrResourceExhausted = errors.New("resource exhausted")
)

// Kind is the coarse failure class reported on item outcomes.
type Kind string

const (
	KindTransient Kind = "transient"
	KindPermanent Kind = "permanent"
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Classify maps an error onto the transient/permanent split. Transient
// failures (timeouts, rate limits, resource exhaustion) are eligible for a
// caller-level retry; everything else is permanent. A nil error has no kind.
func Classify(err error) Kind {
	if err == nil {
		return ""
	}
	if IsRetryable(err) {
		return KindTransient
	}
	return KindPermanent
}

// IsRetryable reports whether err carries a transient marker.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	switch {
	case errors.Is(err, ErrTransient), errors.Is(err, ErrTimeout), errors.Is(err, ErrResourceExhausted):
		return true
	case errors.Is(err, context.DeadlineExceeded):
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return false
}

// retryAfterError is implemented by transport errors that carry a server
// supplied retry hint.
type retryAfterError interface {
	RetryAfterHint() time.Duration
}

// RetryAfter extracts a server supplied retry delay from err, if any.
func RetryAfter(err error) (time.Duration, bool) {
	var hinted retryAfterError
	if errors.As(err, &hinted) {
		if d := hinted.RetryAfterHint(); d > 0 {
			return d, true
		}
	}
	return 0, false
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
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
