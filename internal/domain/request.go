package domain

import "time"

// Status is the lifecycle state of an access request. Transitions are
// monotonic: PENDING -> ACTIVE -> REVOKED, PENDING -> DENIED, and ERROR
// from PENDING or ACTIVE on an unrecoverable provider failure. DENIED,
// REVOKED and ERROR are terminal.
type Status string

const (
	StatusPending Status = "PENDING"
	StatusActive  Status = "ACTIVE"
	StatusDenied  Status = "DENIED"
	StatusRevoked Status = "REVOKED"
	StatusError   Status = "ERROR"
)

// Terminal reports whether no further status transition is allowed.
func (s Status) Terminal() bool {
	return s == StatusDenied || s == StatusRevoked || s == StatusError
}

// RiskTier classifies a capability. HIGH requires manual approval before
// the grant runs; LOW is granted at submission.
type RiskTier string

const (
	RiskLow  RiskTier = "LOW"
	RiskHigh RiskTier = "HIGH"
)

// RevocationType records how an ACTIVE request was revoked.
type RevocationType string

const (
	RevocationManual    RevocationType = "MANUAL"
	RevocationScheduled RevocationType = "SCHEDULED"
)

// Request is the sole persistent entity: one temporary-access request,
// keyed by RequestID. Identity, target, and capability fields are resolved
// once at submission and never change; only Status and the fields tied to
// a specific transition (approval, grant, revocation) mutate afterwards.
type Request struct {
	RequestID string `dynamodbav:"RequestId" json:"requestId"`

	PrincipalID    string `dynamodbav:"PrincipalId" json:"principalId"`
	PrincipalEmail string `dynamodbav:"PrincipalEmail" json:"principalEmail"`

	TargetID   string `dynamodbav:"TargetId" json:"targetId"`
	TargetName string `dynamodbav:"TargetName" json:"targetName"`

	CapabilityRef  string `dynamodbav:"CapabilityRef" json:"capabilityRef"`
	CapabilityName string `dynamodbav:"CapabilityName" json:"capabilityName"`

	RiskTier RiskTier `dynamodbav:"RiskTier" json:"riskTier"`
	Status   Status   `dynamodbav:"Status" json:"status"`

	Reason          string `dynamodbav:"Reason" json:"reason"`
	DurationMinutes int    `dynamodbav:"DurationMinutes" json:"durationMinutes"`

	RequestedAt time.Time `dynamodbav:"RequestedAt,unixtime" json:"requestedAt"`
	ExpiresAt   time.Time `dynamodbav:"ExpiresAt,unixtime" json:"expiresAt"`

	ApproverEmail    string     `dynamodbav:"ApproverEmail,omitempty" json:"approverEmail,omitempty"`
	ApprovalComments string     `dynamodbav:"ApprovalComments,omitempty" json:"approvalComments,omitempty"`
	ApprovedAt       *time.Time `dynamodbav:"ApprovedAt,unixtime,omitempty" json:"approvedAt,omitempty"`

	GrantedAt *time.Time `dynamodbav:"GrantedAt,unixtime,omitempty" json:"grantedAt,omitempty"`
	RevokedAt *time.Time `dynamodbav:"RevokedAt,unixtime,omitempty" json:"revokedAt,omitempty"`

	RevokedBy      string         `dynamodbav:"RevokedBy,omitempty" json:"revokedBy,omitempty"`
	RevocationType RevocationType `dynamodbav:"RevocationType,omitempty" json:"revocationType,omitempty"`

	// AssignmentRequestID is the provider-side identifier of the account
	// assignment creation, recorded after a successful grant.
	AssignmentRequestID string `dynamodbav:"AssignmentRequestId,omitempty" json:"assignmentRequestId,omitempty"`

	// ScheduleRef is the ARN of the pending auto-revocation trigger. At
	// most one live ref exists per request; it is cleared on revocation.
	ScheduleRef string `dynamodbav:"ScheduleRef,omitempty" json:"scheduleRef,omitempty"`

	ErrorDetail string `dynamodbav:"ErrorDetail,omitempty" json:"errorDetail,omitempty"`
}

// StatusUpdate describes a single conditional status transition. Only
// non-nil fields are written; the store applies the update only when the
// record's current status equals the expected status passed alongside it.
type StatusUpdate struct {
	To Status

	ApproverEmail    *string
	ApprovalComments *string
	ApprovedAt       *time.Time

	GrantedAt           *time.Time
	AssignmentRequestID *string

	RevokedAt      *time.Time
	RevokedBy      *string
	RevocationType *RevocationType

	ErrorDetail *string

	// ClearScheduleRef removes the pending trigger reference as part of
	// the same write.
	ClearScheduleRef bool
}

// PrincipalRef is an identity-store user resolved from an email address
// or username.
type PrincipalRef struct {
	ID    string
	Email string
}

// TriggerPayload is the self-contained input the schedule trigger delivers
// at expiry. It carries everything revocation needs so the trigger never
// has to re-read the store before invoking.
type TriggerPayload struct {
	RequestID     string `json:"requestId"`
	PrincipalID   string `json:"principalId"`
	TargetID      string `json:"targetId"`
	CapabilityRef string `json:"capabilityRef"`
}

// ScheduleName derives the deterministic trigger name for a request so
// cancellation never needs a secondary lookup.
func ScheduleName(requestID string) string {
	return "revoke-" + requestID
}

// Assignment identifies a provider-side principal-to-target binding.
type Assignment struct {
	PrincipalID   string
	TargetID      string
	CapabilityRef string
}

// Assignment returns the provider-side binding this request describes.
func (r *Request) Assignment() Assignment {
	return Assignment{
		PrincipalID:   r.PrincipalID,
		TargetID:      r.TargetID,
		CapabilityRef: r.CapabilityRef,
	}
}
