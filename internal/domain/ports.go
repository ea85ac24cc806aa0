package domain

import (
	"context"
	"time"
)

// RequestStore is the strongly-consistent, compare-and-swap-capable record
// store. It is the single source of truth for request state; the
// conditional UpdateStatus write is the only concurrency control in the
// system. Implemented by store.DynamoStore.
type RequestStore interface {
	// Create persists a new request. The request id must not already exist.
	Create(ctx context.Context, req *Request) error
	// Get returns the request or a NotFoundError.
	Get(ctx context.Context, requestID string) (*Request, error)
	// List returns every stored request.
	List(ctx context.Context) ([]Request, error)
	// UpdateStatus applies upd only when the record's current status equals
	// expect. A mismatch returns an InvalidStateTransitionError and writes
	// nothing. On success the updated request is returned.
	UpdateStatus(ctx context.Context, requestID string, expect Status, upd StatusUpdate) (*Request, error)
	// SetScheduleRef records the pending auto-revocation trigger reference.
	SetScheduleRef(ctx context.Context, requestID, ref string) error
}

// GrantOutcome is the result of a provider create-assignment call.
// AlreadyExists is the named idempotent-success case: the binding was in
// place before the call, so there is no creation handle to poll.
type GrantOutcome struct {
	AlreadyExists bool
	// Handle identifies the asynchronous creation for status polling.
	Handle string
}

// RevokeOutcome is the result of a provider delete-assignment call.
// AlreadyAbsent means the binding was gone before the call, which the
// controller treats as success.
type RevokeOutcome struct {
	AlreadyAbsent bool
}

// AssignmentState is a polled provider-side operation state.
type AssignmentState string

const (
	AssignmentInProgress AssignmentState = "IN_PROGRESS"
	AssignmentSucceeded  AssignmentState = "SUCCEEDED"
	AssignmentFailed     AssignmentState = "FAILED"
)

// AuthorizationProvider wraps the external access-control system.
// Provider-specific already-exists and not-found conditions are translated
// into the idempotent-success outcomes; every other failure surfaces as a
// ProviderError. Implemented by provider.SSOAdminProvider.
type AuthorizationProvider interface {
	Grant(ctx context.Context, a Assignment) (GrantOutcome, error)
	PollStatus(ctx context.Context, handle string) (AssignmentState, string, error)
	Revoke(ctx context.Context, a Assignment) (RevokeOutcome, error)
}

// ScheduleAdapter wraps the external future-time trigger service. The
// schedule name is derived deterministically from the request id so that
// cancellation never needs a secondary lookup. Implemented by
// schedule.EventBridgeAdapter.
type ScheduleAdapter interface {
	// ScheduleOnce registers a one-shot trigger delivering payload at when
	// (UTC) and returns an opaque reference usable with Cancel.
	ScheduleOnce(ctx context.Context, name string, when time.Time, payload TriggerPayload) (string, error)
	// Cancel removes a pending trigger. A trigger that no longer exists is
	// not an error.
	Cancel(ctx context.Context, ref string) error
}

// IdentityResolver looks up a principal in the external identity store.
// Implemented by identity.StoreResolver.
type IdentityResolver interface {
	// ResolveUser matches an email address or username and returns the
	// principal, or a NotFoundError.
	ResolveUser(ctx context.Context, emailOrUsername string) (*PrincipalRef, error)
}

// Notifier delivers best-effort outbound messages. Failures are returned
// for logging but never affect lifecycle correctness. Implemented by
// notify.Notifier.
type Notifier interface {
	ApprovalRequested(ctx context.Context, req *Request) error
	AccessGranted(ctx context.Context, req *Request) error
	AccessDenied(ctx context.Context, req *Request) error
	AccessRevoked(ctx context.Context, req *Request) error
}
