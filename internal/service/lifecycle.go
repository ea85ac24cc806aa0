// Package service implements the access request lifecycle: submission,
// approval, grant, and manual and scheduled revocation.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/felix-codexyz/just-in-time-aws-access-management/internal/config"
	"github.com/felix-codexyz/just-in-time-aws-access-management/internal/domain"
	"github.com/felix-codexyz/just-in-time-aws-access-management/internal/policy"
)

// LifecycleConfig holds the tunable lifecycle parameters.
type LifecycleConfig struct {
	MaxDurationMinutes int
	PollMaxAttempts    int
	PollInterval       time.Duration
}

// LifecycleService drives every status transition of an access request.
// The store's conditional update is the only concurrency control: each
// operation reads the request, performs the external action, and commits
// the transition with a compare-and-swap on the status it read. A lost
// race surfaces as an InvalidStateTransitionError, never as a double
// transition.
type LifecycleService struct {
	store     domain.RequestStore
	provider  domain.AuthorizationProvider
	scheduler domain.ScheduleAdapter
	notifier  domain.Notifier
	identity  domain.IdentityResolver
	policy    *policy.RiskPolicy
	catalog   *config.Catalog
	cfg       LifecycleConfig
	log       *slog.Logger
}

// NewLifecycleService creates a new LifecycleService.
func NewLifecycleService(
	store domain.RequestStore,
	provider domain.AuthorizationProvider,
	scheduler domain.ScheduleAdapter,
	notifier domain.Notifier,
	identity domain.IdentityResolver,
	riskPolicy *policy.RiskPolicy,
	catalog *config.Catalog,
	cfg LifecycleConfig,
	logger *slog.Logger,
) *LifecycleService {
	return &LifecycleService{
		store:     store,
		provider:  provider,
		scheduler: scheduler,
		notifier:  notifier,
		identity:  identity,
		policy:    riskPolicy,
		catalog:   catalog,
		cfg:       cfg,
		log:       logger.With("component", "lifecycle"),
	}
}

// SubmitInput is the external form of a new access request.
type SubmitInput struct {
	RequesterEmail  string
	TargetName      string
	CapabilityName  string
	DurationMinutes int
	Reason          string
}

// Submit validates and persists a new request. Low-risk capabilities are
// granted immediately; high-risk ones stay PENDING until a manual
// approval decision.
func (s *LifecycleService) Submit(ctx context.Context, in SubmitInput) (*domain.Request, error) {
	if strings.TrimSpace(in.RequesterEmail) == "" {
		return nil, domain.ErrValidation("requester email is required")
	}
	if strings.TrimSpace(in.Reason) == "" {
		return nil, domain.ErrValidation("reason is required")
	}
	if in.DurationMinutes <= 0 {
		return nil, domain.ErrValidation("duration must be positive, got %d", in.DurationMinutes)
	}
	if in.DurationMinutes > s.cfg.MaxDurationMinutes {
		return nil, domain.ErrValidation("duration %d exceeds maximum of %d minutes", in.DurationMinutes, s.cfg.MaxDurationMinutes)
	}

	targetID, ok := s.catalog.AccountID(in.TargetName)
	if !ok {
		return nil, domain.ErrValidation("unknown target %q", in.TargetName)
	}
	capability, ok := s.catalog.PermissionSet(in.CapabilityName)
	if !ok {
		return nil, domain.ErrValidation("unknown capability %q", in.CapabilityName)
	}
	tier, ok := s.policy.RiskFor(in.CapabilityName)
	if !ok {
		return nil, domain.ErrValidation("no risk tier for capability %q", in.CapabilityName)
	}

	principal, err := s.identity.ResolveUser(ctx, in.RequesterEmail)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	req := &domain.Request{
		RequestID:       domain.NewID(),
		PrincipalID:     principal.ID,
		PrincipalEmail:  principal.Email,
		TargetID:        targetID,
		TargetName:      in.TargetName,
		CapabilityRef:   capability.ARN,
		CapabilityName:  in.CapabilityName,
		RiskTier:        tier,
		Status:          domain.StatusPending,
		Reason:          in.Reason,
		DurationMinutes: in.DurationMinutes,
		RequestedAt:     now,
		ExpiresAt:       now.Add(time.Duration(in.DurationMinutes) * time.Minute),
	}
	if err := s.store.Create(ctx, req); err != nil {
		return nil, err
	}
	s.log.Info("request submitted",
		"request_id", req.RequestID,
		"principal", req.PrincipalEmail,
		"target", req.TargetName,
		"capability", req.CapabilityName,
		"risk_tier", req.RiskTier,
	)

	if policy.RequiresApproval(tier) {
		if err := s.notifier.ApprovalRequested(ctx, req); err != nil {
			s.log.Warn("approval notification failed", "request_id", req.RequestID, "error", err)
		}
		return req, nil
	}
	return s.activate(ctx, req, nil)
}

// ApprovalInput carries the manual decision on a pending request.
type ApprovalInput struct {
	ApproverEmail string
	Comments      string
}

// Approve grants a pending request. The approval fields are committed in
// the same conditional write as the PENDING -> ACTIVE transition, so a
// duplicate or racing decision observes a conflict instead of granting
// twice.
func (s *LifecycleService) Approve(ctx context.Context, requestID string, in ApprovalInput) (*domain.Request, error) {
	if strings.TrimSpace(in.ApproverEmail) == "" {
		return nil, domain.ErrValidation("approver email is required")
	}
	req, err := s.store.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.Status != domain.StatusPending {
		return nil, domain.ErrInvalidStateTransition("request %s is %s, not PENDING", requestID, req.Status)
	}
	return s.activate(ctx, req, &in)
}

// Deny rejects a pending request. Terminal; the provider is never
// touched.
func (s *LifecycleService) Deny(ctx context.Context, requestID string, in ApprovalInput) (*domain.Request, error) {
	if strings.TrimSpace(in.ApproverEmail) == "" {
		return nil, domain.ErrValidation("approver email is required")
	}
	req, err := s.store.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.Status != domain.StatusPending {
		return nil, domain.ErrInvalidStateTransition("request %s is %s, not PENDING", requestID, req.Status)
	}
	now := time.Now().UTC()
	denied, err := s.store.UpdateStatus(ctx, requestID, domain.StatusPending, domain.StatusUpdate{
		To:               domain.StatusDenied,
		ApproverEmail:    &in.ApproverEmail,
		ApprovalComments: &in.Comments,
		ApprovedAt:       &now,
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("request denied", "request_id", requestID, "approver", in.ApproverEmail)
	if err := s.notifier.AccessDenied(ctx, denied); err != nil {
		s.log.Warn("denial notification failed", "request_id", requestID, "error", err)
	}
	return denied, nil
}

// Revoke tears down an active request ahead of its expiry. The provider
// call runs before the status commit, so a request is only marked
// REVOKED once the binding is confirmed gone.
func (s *LifecycleService) Revoke(ctx context.Context, requestID, revokerEmail string) (*domain.Request, error) {
	if strings.TrimSpace(revokerEmail) == "" {
		return nil, domain.ErrValidation("revoker email is required")
	}
	req, err := s.store.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.Status != domain.StatusActive {
		return nil, domain.ErrInvalidStateTransition("request %s is %s, not ACTIVE", requestID, req.Status)
	}

	outcome, err := s.provider.Revoke(ctx, req.Assignment())
	if err != nil {
		s.fail(ctx, requestID, domain.StatusActive, err)
		return nil, err
	}
	if outcome.AlreadyAbsent {
		s.log.Info("assignment already absent", "request_id", requestID)
	}

	if req.ScheduleRef != "" {
		if err := s.scheduler.Cancel(ctx, req.ScheduleRef); err != nil {
			s.log.Warn("schedule cancellation failed", "request_id", requestID, "schedule_ref", req.ScheduleRef, "error", err)
		}
	}

	now := time.Now().UTC()
	revType := domain.RevocationManual
	revoked, err := s.store.UpdateStatus(ctx, requestID, domain.StatusActive, domain.StatusUpdate{
		To:               domain.StatusRevoked,
		RevokedAt:        &now,
		RevokedBy:        &revokerEmail,
		RevocationType:   &revType,
		ClearScheduleRef: true,
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("request revoked", "request_id", requestID, "revoked_by", revokerEmail)
	if err := s.notifier.AccessRevoked(ctx, revoked); err != nil {
		s.log.Warn("revocation notification failed", "request_id", requestID, "error", err)
	}
	return revoked, nil
}

// AutoRevoke handles the expiry trigger. It is deliberately tolerant:
// the trigger is the one caller that may arrive late or twice, so an
// unknown request, a non-ACTIVE status, or a lost commit race are all
// no-op successes.
func (s *LifecycleService) AutoRevoke(ctx context.Context, payload domain.TriggerPayload) error {
	req, err := s.store.Get(ctx, payload.RequestID)
	if err != nil {
		var nf *domain.NotFoundError
		if errors.As(err, &nf) {
			s.log.Warn("expiry trigger for unknown request", "request_id", payload.RequestID)
			return nil
		}
		return err
	}
	if req.Status != domain.StatusActive {
		s.log.Info("expiry trigger skipped, request not active",
			"request_id", payload.RequestID, "status", req.Status)
		return nil
	}

	// The payload is self-contained so the revoke works even if stored
	// fields changed shape between scheduling and delivery.
	assignment := domain.Assignment{
		PrincipalID:   payload.PrincipalID,
		TargetID:      payload.TargetID,
		CapabilityRef: payload.CapabilityRef,
	}
	outcome, err := s.provider.Revoke(ctx, assignment)
	if err != nil {
		s.fail(ctx, payload.RequestID, domain.StatusActive, err)
		return err
	}
	if outcome.AlreadyAbsent {
		s.log.Info("assignment already absent", "request_id", payload.RequestID)
	}

	if req.ScheduleRef != "" {
		if err := s.scheduler.Cancel(ctx, req.ScheduleRef); err != nil {
			s.log.Warn("fired schedule cleanup failed", "request_id", payload.RequestID, "schedule_ref", req.ScheduleRef, "error", err)
		}
	}

	now := time.Now().UTC()
	system := "system"
	revType := domain.RevocationScheduled
	revoked, err := s.store.UpdateStatus(ctx, payload.RequestID, domain.StatusActive, domain.StatusUpdate{
		To:               domain.StatusRevoked,
		RevokedAt:        &now,
		RevokedBy:        &system,
		RevocationType:   &revType,
		ClearScheduleRef: true,
	})
	if err != nil {
		var ist *domain.InvalidStateTransitionError
		if errors.As(err, &ist) {
			// A concurrent manual revoke won the commit. The provider call
			// above was idempotent, so nothing is left to undo.
			s.log.Info("expiry trigger lost commit race", "request_id", payload.RequestID)
			return nil
		}
		return err
	}
	s.log.Info("request auto-revoked", "request_id", payload.RequestID)
	if err := s.notifier.AccessRevoked(ctx, revoked); err != nil {
		s.log.Warn("revocation notification failed", "request_id", payload.RequestID, "error", err)
	}
	return nil
}

// Get returns a single request.
func (s *LifecycleService) Get(ctx context.Context, requestID string) (*domain.Request, error) {
	return s.store.Get(ctx, requestID)
}

// List returns all requests, newest first.
func (s *LifecycleService) List(ctx context.Context) ([]domain.Request, error) {
	requests, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(requests, func(i, j int) bool {
		if !requests[i].RequestedAt.Equal(requests[j].RequestedAt) {
			return requests[i].RequestedAt.After(requests[j].RequestedAt)
		}
		return requests[i].RequestID < requests[j].RequestID
	})
	return requests, nil
}

// activate runs the grant sub-protocol for a PENDING request: provider
// grant, bounded status polling, the PENDING -> ACTIVE commit, and
// best-effort expiry scheduling and notification. approval is nil for
// low-risk auto-grants.
func (s *LifecycleService) activate(ctx context.Context, req *domain.Request, approval *ApprovalInput) (*domain.Request, error) {
	outcome, err := s.provider.Grant(ctx, req.Assignment())
	if err != nil {
		s.fail(ctx, req.RequestID, domain.StatusPending, err)
		return nil, err
	}

	if outcome.AlreadyExists {
		s.log.Info("assignment already exists", "request_id", req.RequestID)
	} else if err := s.awaitAssignment(ctx, req.RequestID, outcome.Handle); err != nil {
		s.fail(ctx, req.RequestID, domain.StatusPending, err)
		return nil, err
	}

	now := time.Now().UTC()
	upd := domain.StatusUpdate{
		To:                  domain.StatusActive,
		GrantedAt:           &now,
		AssignmentRequestID: &outcome.Handle,
	}
	if approval != nil {
		upd.ApproverEmail = &approval.ApproverEmail
		upd.ApprovalComments = &approval.Comments
		upd.ApprovedAt = &now
	}
	active, err := s.store.UpdateStatus(ctx, req.RequestID, domain.StatusPending, upd)
	if err != nil {
		return nil, err
	}
	s.log.Info("access granted",
		"request_id", req.RequestID,
		"principal", req.PrincipalEmail,
		"expires_at", req.ExpiresAt,
	)

	s.scheduleRevocation(ctx, active)

	if err := s.notifier.AccessGranted(ctx, active); err != nil {
		s.log.Warn("grant notification failed", "request_id", req.RequestID, "error", err)
	}
	return active, nil
}

// scheduleRevocation registers the expiry trigger. Failures are logged
// and swallowed: the request stays ACTIVE and manually revocable, which
// beats rolling back a grant that already happened.
func (s *LifecycleService) scheduleRevocation(ctx context.Context, req *domain.Request) {
	payload := domain.TriggerPayload{
		RequestID:     req.RequestID,
		PrincipalID:   req.PrincipalID,
		TargetID:      req.TargetID,
		CapabilityRef: req.CapabilityRef,
	}
	ref, err := s.scheduler.ScheduleOnce(ctx, domain.ScheduleName(req.RequestID), req.ExpiresAt, payload)
	if err != nil {
		s.log.Error("expiry scheduling failed, request requires manual revocation",
			"request_id", req.RequestID, "expires_at", req.ExpiresAt, "error", err)
		return
	}
	if err := s.store.SetScheduleRef(ctx, req.RequestID, ref); err != nil {
		s.log.Warn("recording schedule ref failed", "request_id", req.RequestID, "schedule_ref", ref, "error", err)
		return
	}
	req.ScheduleRef = ref
}

var errAssignmentInProgress = errors.New("assignment creation still in progress")

// awaitAssignment polls the provider until the assignment creation
// reaches a terminal state or the attempt budget runs out. Only an
// explicit FAILED state is an error; a poll failure or an exhausted
// budget is logged and treated as granted, matching the provider's
// eventual consistency.
func (s *LifecycleService) awaitAssignment(ctx context.Context, requestID, handle string) error {
	var failed bool
	backoff := retry.WithMaxRetries(uint64(s.cfg.PollMaxAttempts), retry.NewConstant(s.cfg.PollInterval))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		state, reason, err := s.provider.PollStatus(ctx, handle)
		if err != nil {
			return err
		}
		switch state {
		case domain.AssignmentSucceeded:
			return nil
		case domain.AssignmentFailed:
			failed = true
			return domain.ErrProvider("ASSIGNMENT_FAILED", "assignment creation failed: %s", reason)
		default:
			return retry.RetryableError(errAssignmentInProgress)
		}
	})
	if err == nil {
		return nil
	}
	if failed {
		return err
	}
	s.log.Warn("assignment status not confirmed, proceeding",
		"request_id", requestID, "handle", handle, "error", err)
	return nil
}

// fail moves a request into the terminal ERROR state, recording the
// cause. A lost race here means another transition already landed; the
// original error is still returned to the caller either way.
func (s *LifecycleService) fail(ctx context.Context, requestID string, from domain.Status, cause error) {
	detail := fmt.Sprintf("%s -> ERROR: %v", from, cause)
	if _, err := s.store.UpdateStatus(ctx, requestID, from, domain.StatusUpdate{
		To:          domain.StatusError,
		ErrorDetail: &detail,
	}); err != nil {
		s.log.Warn("error-state transition lost", "request_id", requestID, "from", from, "error", err)
		return
	}
	s.log.Error("request entered error state", "request_id", requestID, "from", from, "cause", cause)
}
