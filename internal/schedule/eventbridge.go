// Package schedule wraps the AWS future-time trigger services behind the
// ScheduleAdapter port. New triggers always go through EventBridge
// Scheduler one-shot schedules; cancellation also understands the legacy
// EventBridge cron-rule ARN format so records written by the older
// mechanism stay cancellable through the same reference.
package schedule

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	ebtypes "github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/aws/aws-sdk-go-v2/service/scheduler"
	"github.com/aws/aws-sdk-go-v2/service/scheduler/types"

	"github.com/felix-codexyz/just-in-time-aws-access-management/internal/domain"
)

// SchedulerAPI is the subset of the EventBridge Scheduler client used.
type SchedulerAPI interface {
	CreateSchedule(ctx context.Context, params *scheduler.CreateScheduleInput, optFns ...func(*scheduler.Options)) (*scheduler.CreateScheduleOutput, error)
	DeleteSchedule(ctx context.Context, params *scheduler.DeleteScheduleInput, optFns ...func(*scheduler.Options)) (*scheduler.DeleteScheduleOutput, error)
}

// EventBridgeAPI is the subset of the EventBridge client used for legacy
// rule cancellation.
type EventBridgeAPI interface {
	RemoveTargets(ctx context.Context, params *eventbridge.RemoveTargetsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.RemoveTargetsOutput, error)
	DeleteRule(ctx context.Context, params *eventbridge.DeleteRuleInput, optFns ...func(*eventbridge.Options)) (*eventbridge.DeleteRuleOutput, error)
}

// EventBridgeAdapter registers one-shot revocation triggers and cancels
// them by ARN.
type EventBridgeAdapter struct {
	schedules SchedulerAPI
	events    EventBridgeAPI
	group     string
	targetARN string
	roleARN   string
}

// NewEventBridgeAdapter builds an adapter. targetARN is what the scheduler
// invokes at expiry; roleARN is the role it assumes to do so.
func NewEventBridgeAdapter(schedules SchedulerAPI, events EventBridgeAPI, group, targetARN, roleARN string) *EventBridgeAdapter {
	return &EventBridgeAdapter{
		schedules: schedules,
		events:    events,
		group:     group,
		targetARN: targetARN,
		roleARN:   roleARN,
	}
}

// ScheduleOnce creates a one-shot schedule firing at when (UTC) that
// delivers the payload verbatim to the revocation target.
func (a *EventBridgeAdapter) ScheduleOnce(ctx context.Context, name string, when time.Time, payload domain.TriggerPayload) (string, error) {
	input, err := json.Marshal(payload)
	if err != nil {
		return "", domain.ErrScheduling("marshal trigger payload for %s: %v", name, err)
	}
	out, err := a.schedules.CreateSchedule(ctx, &scheduler.CreateScheduleInput{
		Name:                       aws.String(name),
		GroupName:                  aws.String(a.group),
		ScheduleExpression:         aws.String(fmt.Sprintf("at(%s)", when.UTC().Format("2006-01-02T15:04:05"))),
		ScheduleExpressionTimezone: aws.String("UTC"),
		FlexibleTimeWindow:         &types.FlexibleTimeWindow{Mode: types.FlexibleTimeWindowModeOff},
		State:                      types.ScheduleStateEnabled,
		Target: &types.Target{
			Arn:     aws.String(a.targetARN),
			RoleArn: aws.String(a.roleARN),
			Input:   aws.String(string(input)),
		},
	})
	if err != nil {
		return "", domain.ErrScheduling("create schedule %s: %v", name, err)
	}
	return aws.ToString(out.ScheduleArn), nil
}

// Cancel removes a pending trigger by its ARN, handling both the
// scheduler and the legacy rule format. A trigger that no longer exists
// is success.
func (a *EventBridgeAdapter) Cancel(ctx context.Context, ref string) error {
	name := ref[strings.LastIndex(ref, "/")+1:]
	switch {
	case strings.Contains(ref, ":scheduler:"):
		_, err := a.schedules.DeleteSchedule(ctx, &scheduler.DeleteScheduleInput{
			Name:      aws.String(name),
			GroupName: aws.String(a.group),
		})
		if err != nil {
			var notFound *types.ResourceNotFoundException
			if errors.As(err, &notFound) {
				return nil
			}
			return domain.ErrScheduling("delete schedule %s: %v", name, err)
		}
		return nil
	case strings.Contains(ref, ":events:"):
		if _, err := a.events.RemoveTargets(ctx, &eventbridge.RemoveTargetsInput{
			Rule: aws.String(name),
			Ids:  []string{"1"},
		}); err != nil {
			var notFound *ebtypes.ResourceNotFoundException
			if !errors.As(err, &notFound) {
				return domain.ErrScheduling("remove rule targets %s: %v", name, err)
			}
		}
		if _, err := a.events.DeleteRule(ctx, &eventbridge.DeleteRuleInput{
			Name: aws.String(name),
		}); err != nil {
			var notFound *ebtypes.ResourceNotFoundException
			if errors.As(err, &notFound) {
				return nil
			}
			return domain.ErrScheduling("delete rule %s: %v", name, err)
		}
		return nil
	default:
		return domain.ErrScheduling("unrecognized schedule reference %q", ref)
	}
}
