package provider

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssoadmin"
	"github.com/aws/aws-sdk-go-v2/service/ssoadmin/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felix-codexyz/just-in-time-aws-access-management/internal/domain"
)

type fakeSSOAdmin struct {
	createIn   *ssoadmin.CreateAccountAssignmentInput
	createOut  *ssoadmin.CreateAccountAssignmentOutput
	createErr  error
	describeFn func() (*ssoadmin.DescribeAccountAssignmentCreationStatusOutput, error)
	deleteIn   *ssoadmin.DeleteAccountAssignmentInput
	deleteErr  error
}

func (f *fakeSSOAdmin) CreateAccountAssignment(_ context.Context, in *ssoadmin.CreateAccountAssignmentInput, _ ...func(*ssoadmin.Options)) (*ssoadmin.CreateAccountAssignmentOutput, error) {
	f.createIn = in
	return f.createOut, f.createErr
}

func (f *fakeSSOAdmin) DescribeAccountAssignmentCreationStatus(_ context.Context, _ *ssoadmin.DescribeAccountAssignmentCreationStatusInput, _ ...func(*ssoadmin.Options)) (*ssoadmin.DescribeAccountAssignmentCreationStatusOutput, error) {
	return f.describeFn()
}

func (f *fakeSSOAdmin) DeleteAccountAssignment(_ context.Context, in *ssoadmin.DeleteAccountAssignmentInput, _ ...func(*ssoadmin.Options)) (*ssoadmin.DeleteAccountAssignmentOutput, error) {
	f.deleteIn = in
	if f.deleteErr != nil {
		return nil, f.deleteErr
	}
	return &ssoadmin.DeleteAccountAssignmentOutput{}, nil
}

var testAssignment = domain.Assignment{
	PrincipalID:   "user-1",
	TargetID:      "111111111111",
	CapabilityRef: "arn:aws:sso:::permissionSet/ssoins-1/ps-s3",
}

func TestGrant_ReturnsHandle(t *testing.T) {
	fake := &fakeSSOAdmin{createOut: &ssoadmin.CreateAccountAssignmentOutput{
		AccountAssignmentCreationStatus: &types.AccountAssignmentOperationStatus{
			RequestId: aws.String("op-123"),
			Status:    types.StatusValuesInProgress,
		},
	}}
	p := NewSSOAdminProvider(fake, "arn:aws:sso:::instance/ssoins-1")

	out, err := p.Grant(context.Background(), testAssignment)
	require.NoError(t, err)
	assert.Equal(t, "op-123", out.Handle)
	assert.False(t, out.AlreadyExists)

	assert.Equal(t, types.TargetTypeAwsAccount, fake.createIn.TargetType)
	assert.Equal(t, types.PrincipalTypeUser, fake.createIn.PrincipalType)
	assert.Equal(t, "user-1", *fake.createIn.PrincipalId)
}

func TestGrant_ConflictIsIdempotentSuccess(t *testing.T) {
	fake := &fakeSSOAdmin{createErr: &types.ConflictException{Message: aws.String("assignment exists")}}
	p := NewSSOAdminProvider(fake, "arn:aws:sso:::instance/ssoins-1")

	out, err := p.Grant(context.Background(), testAssignment)
	require.NoError(t, err)
	assert.True(t, out.AlreadyExists)
	assert.Empty(t, out.Handle)
}

func TestGrant_OtherErrorIsProviderError(t *testing.T) {
	fake := &fakeSSOAdmin{createErr: &types.ThrottlingException{Message: aws.String("slow down")}}
	p := NewSSOAdminProvider(fake, "arn:aws:sso:::instance/ssoins-1")

	_, err := p.Grant(context.Background(), testAssignment)
	var provErr *domain.ProviderError
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, "ThrottlingException", provErr.Code)
}

func TestPollStatus_Terminal(t *testing.T) {
	cases := []struct {
		status types.StatusValues
		reason *string
		want   domain.AssignmentState
	}{
		{types.StatusValuesSucceeded, nil, domain.AssignmentSucceeded},
		{types.StatusValuesFailed, aws.String("duplicate principal"), domain.AssignmentFailed},
		{types.StatusValuesInProgress, nil, domain.AssignmentInProgress},
	}
	for _, tc := range cases {
		fake := &fakeSSOAdmin{describeFn: func() (*ssoadmin.DescribeAccountAssignmentCreationStatusOutput, error) {
			return &ssoadmin.DescribeAccountAssignmentCreationStatusOutput{
				AccountAssignmentCreationStatus: &types.AccountAssignmentOperationStatus{
					Status:        tc.status,
					FailureReason: tc.reason,
				},
			}, nil
		}}
		p := NewSSOAdminProvider(fake, "arn:aws:sso:::instance/ssoins-1")

		state, reason, err := p.PollStatus(context.Background(), "op-123")
		require.NoError(t, err)
		assert.Equal(t, tc.want, state)
		if tc.reason != nil {
			assert.Equal(t, *tc.reason, reason)
		}
	}
}

func TestRevoke_NotFoundIsIdempotentSuccess(t *testing.T) {
	fake := &fakeSSOAdmin{deleteErr: &types.ResourceNotFoundException{Message: aws.String("gone")}}
	p := NewSSOAdminProvider(fake, "arn:aws:sso:::instance/ssoins-1")

	out, err := p.Revoke(context.Background(), testAssignment)
	require.NoError(t, err)
	assert.True(t, out.AlreadyAbsent)
}

func TestRevoke_Success(t *testing.T) {
	fake := &fakeSSOAdmin{}
	p := NewSSOAdminProvider(fake, "arn:aws:sso:::instance/ssoins-1")

	out, err := p.Revoke(context.Background(), testAssignment)
	require.NoError(t, err)
	assert.False(t, out.AlreadyAbsent)
	assert.Equal(t, "111111111111", *fake.deleteIn.TargetId)
}
