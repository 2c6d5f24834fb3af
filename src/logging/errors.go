// Package logging classifies provider errors for log output.
package logging

import (
	"context"
	"errors"
	"strings"
)

// IsRateLimit reports whether err looks like an upstream rate limit.
func IsRateLimit(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "rate_limit") || strings.Contains(msg, "rate limit") || strings.Contains(msg, "429")
}

// Kind names the class of err for a log line.
func Kind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case IsRateLimit(err):
		return "rate_limited"
	default:
		return "error"
	}
}
