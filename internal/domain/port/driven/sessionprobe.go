package driven

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ericfisherdev/sessionwatch/internal/domain/model"
)

// ProbeErrorKind distinguishes the two failure modes of a session probe.
// The distinction matters: a rejected credential is a definite answer about
// the credential, a transport failure says nothing about it.
type ProbeErrorKind string

const (
	// ProbeKindRejected means the remote endpoint answered and refused the
	// credential (non-success status, or an unparseable session body).
	ProbeKindRejected ProbeErrorKind = "credential_rejected"

	// ProbeKindTransport means the remote endpoint could not be reached:
	// DNS failure, connection reset, or timeout. The credential's state is
	// unknown and must not be downgraded because of it.
	ProbeKindTransport ProbeErrorKind = "transport_failure"
)

// ProbeError is the typed failure returned by SessionProbe.Probe.
type ProbeError struct {
	Kind       ProbeErrorKind
	StatusCode int // HTTP status for rejections, 0 otherwise
	Err        error
}

func (e *ProbeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("session probe %s: %v", e.Kind, e.Err)
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("session probe %s: remote returned %d", e.Kind, e.StatusCode)
	}
	return fmt.Sprintf("session probe %s", e.Kind)
}

func (e *ProbeError) Unwrap() error { return e.Err }

// SessionProbe defines the driven port for looking up a session credential
// at the remote identity endpoint. Implementations perform a single bounded
// network call per invocation, never retry, and never mutate anything.
type SessionProbe interface {
	// Probe resolves the secret into a session descriptor. Failures are
	// returned as *ProbeError; callers branch on its Kind.
	Probe(ctx context.Context, secret string) (*model.SessionDescriptor, error)

	// FetchAccountDetail retrieves the remote's raw account/plan metadata
	// for display. The payload is opaque to the engine and never feeds
	// classification.
	FetchAccountDetail(ctx context.Context, secret string) (json.RawMessage, error)
}
