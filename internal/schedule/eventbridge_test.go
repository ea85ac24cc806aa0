package schedule

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/scheduler"
	"github.com/aws/aws-sdk-go-v2/service/scheduler/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felix-codexyz/just-in-time-aws-access-management/internal/domain"
)

type fakeScheduler struct {
	createIn  *scheduler.CreateScheduleInput
	createErr error
	deleteIn  *scheduler.DeleteScheduleInput
	deleteErr error
}

func (f *fakeScheduler) CreateSchedule(_ context.Context, in *scheduler.CreateScheduleInput, _ ...func(*scheduler.Options)) (*scheduler.CreateScheduleOutput, error) {
	f.createIn = in
	if f.createErr != nil {
		return nil, f.createErr
	}
	arn := "arn:aws:scheduler:us-east-1:111111111111:schedule/" + *in.GroupName + "/" + *in.Name
	return &scheduler.CreateScheduleOutput{ScheduleArn: aws.String(arn)}, nil
}

func (f *fakeScheduler) DeleteSchedule(_ context.Context, in *scheduler.DeleteScheduleInput, _ ...func(*scheduler.Options)) (*scheduler.DeleteScheduleOutput, error) {
	f.deleteIn = in
	if f.deleteErr != nil {
		return nil, f.deleteErr
	}
	return &scheduler.DeleteScheduleOutput{}, nil
}

type fakeEventBridge struct {
	removedRule *string
	deletedRule *string
}

func (f *fakeEventBridge) RemoveTargets(_ context.Context, in *eventbridge.RemoveTargetsInput, _ ...func(*eventbridge.Options)) (*eventbridge.RemoveTargetsOutput, error) {
	f.removedRule = in.Rule
	return &eventbridge.RemoveTargetsOutput{}, nil
}

func (f *fakeEventBridge) DeleteRule(_ context.Context, in *eventbridge.DeleteRuleInput, _ ...func(*eventbridge.Options)) (*eventbridge.DeleteRuleOutput, error) {
	f.deletedRule = in.Name
	return &eventbridge.DeleteRuleOutput{}, nil
}

func newAdapter(s *fakeScheduler, e *fakeEventBridge) *EventBridgeAdapter {
	return NewEventBridgeAdapter(s, e, "default",
		"arn:aws:lambda:us-east-1:111111111111:function:jit-revoke",
		"arn:aws:iam::111111111111:role/jit-scheduler")
}

func TestScheduleOnce(t *testing.T) {
	fake := &fakeScheduler{}
	a := newAdapter(fake, &fakeEventBridge{})

	when := time.Date(2026, 9, 1, 14, 30, 0, 0, time.UTC)
	ref, err := a.ScheduleOnce(context.Background(), "revoke-req-1", when, domain.TriggerPayload{
		RequestID:     "req-1",
		PrincipalID:   "user-1",
		TargetID:      "111111111111",
		CapabilityRef: "arn:aws:sso:::permissionSet/ssoins-1/ps-s3",
	})
	require.NoError(t, err)
	assert.Contains(t, ref, "schedule/default/revoke-req-1")

	in := fake.createIn
	assert.Equal(t, "at(2026-09-01T14:30:00)", *in.ScheduleExpression)
	assert.Equal(t, "UTC", *in.ScheduleExpressionTimezone)
	assert.Equal(t, types.FlexibleTimeWindowModeOff, in.FlexibleTimeWindow.Mode)
	assert.JSONEq(t, `{
		"requestId": "req-1",
		"principalId": "user-1",
		"targetId": "111111111111",
		"capabilityRef": "arn:aws:sso:::permissionSet/ssoins-1/ps-s3"
	}`, *in.Target.Input)
}

func TestScheduleOnce_FailureIsSchedulingError(t *testing.T) {
	fake := &fakeScheduler{createErr: &types.ServiceQuotaExceededException{Message: aws.String("too many schedules")}}
	a := newAdapter(fake, &fakeEventBridge{})

	_, err := a.ScheduleOnce(context.Background(), "revoke-req-1", time.Now(), domain.TriggerPayload{RequestID: "req-1"})
	var schedErr *domain.SchedulingError
	assert.ErrorAs(t, err, &schedErr)
}

func TestCancel_SchedulerARN(t *testing.T) {
	fake := &fakeScheduler{}
	a := newAdapter(fake, &fakeEventBridge{})

	err := a.Cancel(context.Background(), "arn:aws:scheduler:us-east-1:111111111111:schedule/default/revoke-req-1")
	require.NoError(t, err)
	assert.Equal(t, "revoke-req-1", *fake.deleteIn.Name)
	assert.Equal(t, "default", *fake.deleteIn.GroupName)
}

func TestCancel_SchedulerNotFoundIgnored(t *testing.T) {
	fake := &fakeScheduler{deleteErr: &types.ResourceNotFoundException{Message: aws.String("gone")}}
	a := newAdapter(fake, &fakeEventBridge{})

	err := a.Cancel(context.Background(), "arn:aws:scheduler:us-east-1:111111111111:schedule/default/revoke-req-1")
	assert.NoError(t, err)
}

func TestCancel_LegacyRuleARN(t *testing.T) {
	events := &fakeEventBridge{}
	a := newAdapter(&fakeScheduler{}, events)

	err := a.Cancel(context.Background(), "arn:aws:events:us-east-1:111111111111:rule/revoke-req-1")
	require.NoError(t, err)
	assert.Equal(t, "revoke-req-1", *events.removedRule)
	assert.Equal(t, "revoke-req-1", *events.deletedRule)
}

func TestCancel_UnknownRef(t *testing.T) {
	a := newAdapter(&fakeScheduler{}, &fakeEventBridge{})

	err := a.Cancel(context.Background(), "not-an-arn")
	var schedErr *domain.SchedulingError
	assert.ErrorAs(t, err, &schedErr)
}
