// Package testutil provides shared in-memory and mock implementations of
// domain interfaces for use in tests across the codebase.
package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/felix-codexyz/just-in-time-aws-access-management/internal/domain"
)

// === Request store ===

// MemoryStore is an in-memory RequestStore with real compare-and-swap
// semantics, so lifecycle tests exercise the same precondition behavior
// the DynamoDB store provides.
type MemoryStore struct {
	mu       sync.Mutex
	requests map[string]domain.Request

	// UpdateStatusFn overrides UpdateStatus when set. Tests use it to
	// inject commit races between a read and its conditional write.
	UpdateStatusFn func(ctx context.Context, requestID string, expect domain.Status, upd domain.StatusUpdate) (*domain.Request, error)
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{requests: make(map[string]domain.Request)}
}

// Create implements domain.RequestStore.
func (s *MemoryStore) Create(_ context.Context, req *domain.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.requests[req.RequestID]; ok {
		return domain.ErrInvalidStateTransition("request %s already exists", req.RequestID)
	}
	s.requests[req.RequestID] = *req
	return nil
}

// Get implements domain.RequestStore.
func (s *MemoryStore) Get(_ context.Context, requestID string) (*domain.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[requestID]
	if !ok {
		return nil, domain.ErrNotFound("request %s not found", requestID)
	}
	return &req, nil
}

// List implements domain.RequestStore.
func (s *MemoryStore) List(_ context.Context) ([]domain.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Request, 0, len(s.requests))
	for _, req := range s.requests {
		out = append(out, req)
	}
	return out, nil
}

// UpdateStatus implements domain.RequestStore with CAS on the expected
// status.
func (s *MemoryStore) UpdateStatus(ctx context.Context, requestID string, expect domain.Status, upd domain.StatusUpdate) (*domain.Request, error) {
	if fn := s.UpdateStatusFn; fn != nil {
		return fn(ctx, requestID, expect, upd)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[requestID]
	if !ok || req.Status != expect {
		return nil, domain.ErrInvalidStateTransition("request %s is not %s", requestID, expect)
	}
	req.Status = upd.To
	if upd.ApproverEmail != nil {
		req.ApproverEmail = *upd.ApproverEmail
	}
	if upd.ApprovalComments != nil {
		req.ApprovalComments = *upd.ApprovalComments
	}
	if upd.ApprovedAt != nil {
		t := *upd.ApprovedAt
		req.ApprovedAt = &t
	}
	if upd.GrantedAt != nil {
		t := *upd.GrantedAt
		req.GrantedAt = &t
	}
	if upd.AssignmentRequestID != nil {
		req.AssignmentRequestID = *upd.AssignmentRequestID
	}
	if upd.RevokedAt != nil {
		t := *upd.RevokedAt
		req.RevokedAt = &t
	}
	if upd.RevokedBy != nil {
		req.RevokedBy = *upd.RevokedBy
	}
	if upd.RevocationType != nil {
		req.RevocationType = *upd.RevocationType
	}
	if upd.ErrorDetail != nil {
		req.ErrorDetail = *upd.ErrorDetail
	}
	if upd.ClearScheduleRef {
		req.ScheduleRef = ""
	}
	s.requests[requestID] = req
	return &req, nil
}

// SetScheduleRef implements domain.RequestStore.
func (s *MemoryStore) SetScheduleRef(_ context.Context, requestID, ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[requestID]
	if !ok {
		return domain.ErrNotFound("request %s not found", requestID)
	}
	req.ScheduleRef = ref
	s.requests[requestID] = req
	return nil
}

// Seed inserts a request directly, bypassing Create's duplicate check.
func (s *MemoryStore) Seed(req domain.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests[req.RequestID] = req
}

// === Authorization provider ===

// MockProvider implements domain.AuthorizationProvider with scriptable
// behavior and call recording.
type MockProvider struct {
	mu sync.Mutex

	GrantFn  func(ctx context.Context, a domain.Assignment) (domain.GrantOutcome, error)
	PollFn   func(ctx context.Context, handle string) (domain.AssignmentState, string, error)
	RevokeFn func(ctx context.Context, a domain.Assignment) (domain.RevokeOutcome, error)

	GrantCalls  []domain.Assignment
	PollCalls   []string
	RevokeCalls []domain.Assignment
}

// Grant implements the interface method, defaulting to a synchronous
// success with handle "op-1".
func (m *MockProvider) Grant(ctx context.Context, a domain.Assignment) (domain.GrantOutcome, error) {
	m.mu.Lock()
	m.GrantCalls = append(m.GrantCalls, a)
	m.mu.Unlock()
	if m.GrantFn != nil {
		return m.GrantFn(ctx, a)
	}
	return domain.GrantOutcome{Handle: "op-1"}, nil
}

// PollStatus implements the interface method, defaulting to SUCCEEDED.
func (m *MockProvider) PollStatus(ctx context.Context, handle string) (domain.AssignmentState, string, error) {
	m.mu.Lock()
	m.PollCalls = append(m.PollCalls, handle)
	m.mu.Unlock()
	if m.PollFn != nil {
		return m.PollFn(ctx, handle)
	}
	return domain.AssignmentSucceeded, "", nil
}

// Revoke implements the interface method, defaulting to success.
func (m *MockProvider) Revoke(ctx context.Context, a domain.Assignment) (domain.RevokeOutcome, error) {
	m.mu.Lock()
	m.RevokeCalls = append(m.RevokeCalls, a)
	m.mu.Unlock()
	if m.RevokeFn != nil {
		return m.RevokeFn(ctx, a)
	}
	return domain.RevokeOutcome{}, nil
}

// === Schedule adapter ===

// ScheduledCall records one ScheduleOnce invocation.
type ScheduledCall struct {
	Name    string
	When    time.Time
	Payload domain.TriggerPayload
}

// MockScheduler implements domain.ScheduleAdapter with call recording.
type MockScheduler struct {
	mu sync.Mutex

	ScheduleFn func(ctx context.Context, name string, when time.Time, payload domain.TriggerPayload) (string, error)
	CancelFn   func(ctx context.Context, ref string) error

	Scheduled []ScheduledCall
	Cancelled []string
}

// ScheduleOnce implements the interface method, defaulting to a
// scheduler-style ARN.
func (m *MockScheduler) ScheduleOnce(ctx context.Context, name string, when time.Time, payload domain.TriggerPayload) (string, error) {
	m.mu.Lock()
	m.Scheduled = append(m.Scheduled, ScheduledCall{Name: name, When: when, Payload: payload})
	m.mu.Unlock()
	if m.ScheduleFn != nil {
		return m.ScheduleFn(ctx, name, when, payload)
	}
	return "arn:aws:scheduler:us-east-1:111111111111:schedule/default/" + name, nil
}

// Cancel implements the interface method.
func (m *MockScheduler) Cancel(ctx context.Context, ref string) error {
	m.mu.Lock()
	m.Cancelled = append(m.Cancelled, ref)
	m.mu.Unlock()
	if m.CancelFn != nil {
		return m.CancelFn(ctx, ref)
	}
	return nil
}

// === Identity resolver ===

// MockIdentity implements domain.IdentityResolver over a fixed user set
// keyed by email or username.
type MockIdentity struct {
	Users map[string]domain.PrincipalRef
}

// ResolveUser implements the interface method.
func (m *MockIdentity) ResolveUser(_ context.Context, emailOrUsername string) (*domain.PrincipalRef, error) {
	if ref, ok := m.Users[emailOrUsername]; ok {
		return &ref, nil
	}
	return nil, domain.ErrNotFound("user %s not found in identity store", emailOrUsername)
}

// === Notifier ===

// MockNotifier implements domain.Notifier, recording request IDs per
// notification kind.
type MockNotifier struct {
	mu sync.Mutex

	Err error // returned from every call when set

	ApprovalRequests []string
	Granted          []string
	Denied           []string
	Revoked          []string
}

func (m *MockNotifier) record(list *[]string, req *domain.Request) error {
	m.mu.Lock()
	*list = append(*list, req.RequestID)
	m.mu.Unlock()
	return m.Err
}

// ApprovalRequested implements the interface method.
func (m *MockNotifier) ApprovalRequested(_ context.Context, req *domain.Request) error {
	return m.record(&m.ApprovalRequests, req)
}

// AccessGranted implements the interface method.
func (m *MockNotifier) AccessGranted(_ context.Context, req *domain.Request) error {
	return m.record(&m.Granted, req)
}

// AccessDenied implements the interface method.
func (m *MockNotifier) AccessDenied(_ context.Context, req *domain.Request) error {
	return m.record(&m.Denied, req)
}

// AccessRevoked implements the interface method.
func (m *MockNotifier) AccessRevoked(_ context.Context, req *domain.Request) error {
	return m.record(&m.Revoked, req)
}
