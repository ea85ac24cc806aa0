// Package provider wraps the AWS Identity Center (SSO Admin) API behind
// the AuthorizationProvider port. Provider-specific already-exists and
// not-found conditions become the named idempotent-success outcomes so
// callers never string-match error codes.
package provider

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssoadmin"
	"github.com/aws/aws-sdk-go-v2/service/ssoadmin/types"
	"github.com/aws/smithy-go"

	"github.com/felix-codexyz/just-in-time-aws-access-management/internal/domain"
)

// SSOAdminAPI is the subset of the SSO Admin client the provider uses.
type SSOAdminAPI interface {
	CreateAccountAssignment(ctx context.Context, params *ssoadmin.CreateAccountAssignmentInput, optFns ...func(*ssoadmin.Options)) (*ssoadmin.CreateAccountAssignmentOutput, error)
	DescribeAccountAssignmentCreationStatus(ctx context.Context, params *ssoadmin.DescribeAccountAssignmentCreationStatusInput, optFns ...func(*ssoadmin.Options)) (*ssoadmin.DescribeAccountAssignmentCreationStatusOutput, error)
	DeleteAccountAssignment(ctx context.Context, params *ssoadmin.DeleteAccountAssignmentInput, optFns ...func(*ssoadmin.Options)) (*ssoadmin.DeleteAccountAssignmentOutput, error)
}

// SSOAdminProvider creates and deletes Identity Center account assignments.
type SSOAdminProvider struct {
	client      SSOAdminAPI
	instanceARN string
}

// NewSSOAdminProvider builds a provider for the given Identity Center
// instance.
func NewSSOAdminProvider(client SSOAdminAPI, instanceARN string) *SSOAdminProvider {
	return &SSOAdminProvider{client: client, instanceARN: instanceARN}
}

// Grant creates the principal-to-account assignment. An assignment that
// already exists is reported as the AlreadyExists outcome, not an error.
func (p *SSOAdminProvider) Grant(ctx context.Context, a domain.Assignment) (domain.GrantOutcome, error) {
	out, err := p.client.CreateAccountAssignment(ctx, &ssoadmin.CreateAccountAssignmentInput{
		InstanceArn:      aws.String(p.instanceARN),
		TargetId:         aws.String(a.TargetID),
		TargetType:       types.TargetTypeAwsAccount,
		PermissionSetArn: aws.String(a.CapabilityRef),
		PrincipalType:    types.PrincipalTypeUser,
		PrincipalId:      aws.String(a.PrincipalID),
	})
	if err != nil {
		var conflict *types.ConflictException
		if errors.As(err, &conflict) {
			return domain.GrantOutcome{AlreadyExists: true}, nil
		}
		return domain.GrantOutcome{}, providerError("create assignment", err)
	}
	status := out.AccountAssignmentCreationStatus
	if status == nil || status.RequestId == nil {
		return domain.GrantOutcome{}, domain.ErrProvider("", "create assignment returned no request id")
	}
	if status.Status == types.StatusValuesFailed {
		return domain.GrantOutcome{}, domain.ErrProvider("",
			"assignment creation failed: %s", aws.ToString(status.FailureReason))
	}
	return domain.GrantOutcome{Handle: aws.ToString(status.RequestId)}, nil
}

// PollStatus reports the state of an asynchronous assignment creation.
func (p *SSOAdminProvider) PollStatus(ctx context.Context, handle string) (domain.AssignmentState, string, error) {
	out, err := p.client.DescribeAccountAssignmentCreationStatus(ctx, &ssoadmin.DescribeAccountAssignmentCreationStatusInput{
		InstanceArn:                        aws.String(p.instanceARN),
		AccountAssignmentCreationRequestId: aws.String(handle),
	})
	if err != nil {
		return "", "", providerError("describe assignment status", err)
	}
	status := out.AccountAssignmentCreationStatus
	if status == nil {
		return "", "", domain.ErrProvider("", "describe assignment status returned nothing")
	}
	switch status.Status {
	case types.StatusValuesSucceeded:
		return domain.AssignmentSucceeded, "", nil
	case types.StatusValuesFailed:
		return domain.AssignmentFailed, aws.ToString(status.FailureReason), nil
	default:
		return domain.AssignmentInProgress, "", nil
	}
}

// Revoke deletes the assignment. An assignment that no longer exists is
// reported as the AlreadyAbsent outcome, not an error.
func (p *SSOAdminProvider) Revoke(ctx context.Context, a domain.Assignment) (domain.RevokeOutcome, error) {
	_, err := p.client.DeleteAccountAssignment(ctx, &ssoadmin.DeleteAccountAssignmentInput{
		InstanceArn:      aws.String(p.instanceARN),
		TargetId:         aws.String(a.TargetID),
		TargetType:       types.TargetTypeAwsAccount,
		PermissionSetArn: aws.String(a.CapabilityRef),
		PrincipalType:    types.PrincipalTypeUser,
		PrincipalId:      aws.String(a.PrincipalID),
	})
	if err != nil {
		var notFound *types.ResourceNotFoundException
		if errors.As(err, &notFound) {
			return domain.RevokeOutcome{AlreadyAbsent: true}, nil
		}
		return domain.RevokeOutcome{}, providerError("delete assignment", err)
	}
	return domain.RevokeOutcome{}, nil
}

// providerError converts an SDK error into a ProviderError carrying the
// service error code when one is present.
func providerError(op string, err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return domain.ErrProvider(apiErr.ErrorCode(), "%s: %s", op, apiErr.ErrorMessage())
	}
	return domain.ErrProvider("", "%s: %v", op, err)
}
