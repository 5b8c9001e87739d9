// Package metrics emits session lifecycle metrics through a statsd.Sink.
package metrics

import (
	"time"

	obserrors "github.com/target/inventory-console/internal/observability/errors"
	"github.com/target/inventory-console/internal/observability/statsd"
)

// Result constants for metric tagging.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultNoop    = "noop"
)

// Session operations.
const (
	OpLogin        = "login"
	OpRegister     = "register"
	OpLogout       = "logout"
	OpRefresh      = "refresh"
	OpMe           = "me"
	OpRestore      = "restore"
	OpRevoke       = "revoke"
	OpUnauthorized = "unauthorized"
)

// SessionEvent captures one session operation outcome.
type SessionEvent struct {
	Operation string
	Result    string
	Duration  time.Duration
	Err       error
}

// EmitSessionEvent emits session.operation (count) and session.duration (timing).
func EmitSessionEvent(sink statsd.Sink, in SessionEvent) {
	if sink == nil {
		return
	}

	tags := map[string]string{
		"operation": in.Operation,
		"result":    in.Result,
	}
	if in.Err != nil && in.Result == ResultError {
		if class := obserrors.Classify(in.Err); class != "" {
			tags["error_class"] = class
		}
	}

	sink.Count("session.operation", 1, tags)
	if in.Duration > 0 {
		sink.Timing("session.duration", in.Duration, CloneTags(tags))
	}
}

// ResultFor maps an error to ResultSuccess or ResultError.
func ResultFor(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultSuccess
}

// CloneTags creates a shallow copy of a tag map.
func CloneTags(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
