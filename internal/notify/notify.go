// Package notify sends best-effort messages to requesters (SES email) and
// approvers (SNS topic). Delivery failures surface as NotificationError
// for logging; they never alter lifecycle state. Either channel can be
// disabled by leaving its configuration empty.
package notify

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	sestypes "github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"

	"github.com/felix-codexyz/just-in-time-aws-access-management/internal/domain"
)

// SESAPI is the subset of the SES client used.
type SESAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SNSAPI is the subset of the SNS client used.
type SNSAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// Notifier delivers lifecycle notifications.
type Notifier struct {
	ses      SESAPI
	sns      SNSAPI
	sender   string
	topicARN string
}

// New builds a notifier. Empty sender disables requester mail; empty
// topicARN disables approver notifications.
func New(ses SESAPI, sns SNSAPI, sender, topicARN string) *Notifier {
	return &Notifier{ses: ses, sns: sns, sender: sender, topicARN: topicARN}
}

// ApprovalRequested publishes a pending high-risk request to the approver
// topic.
func (n *Notifier) ApprovalRequested(ctx context.Context, req *domain.Request) error {
	if n.topicARN == "" {
		return nil
	}
	message := fmt.Sprintf(
		"JIT Access Approval Required\n\n"+
			"Request ID: %s\nUser: %s\nAccount: %s\nPermission Set: %s\nReason: %s\n\n"+
			"This is a HIGH RISK access request requiring approval.\n",
		req.RequestID, req.PrincipalEmail, req.TargetName, req.CapabilityName, req.Reason)
	_, err := n.sns.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(n.topicARN),
		Subject:  aws.String(fmt.Sprintf("JIT Access Approval Required - %s", req.PrincipalEmail)),
		Message:  aws.String(message),
	})
	if err != nil {
		return domain.ErrNotification("publish approval request %s: %v", req.RequestID, err)
	}
	return nil
}

// AccessGranted mails the requester that access is active.
func (n *Notifier) AccessGranted(ctx context.Context, req *domain.Request) error {
	body := fmt.Sprintf(
		"Your JIT access request has been APPROVED and access is now ACTIVE.\n\n"+
			"Account: %s\nPermission Set: %s\nExpires: %s\nDuration: %d minutes\n\n"+
			"Your access will be automatically revoked at the expiration time.\n\nRequest ID: %s\n",
		req.TargetName, req.CapabilityName, req.ExpiresAt.UTC().Format("2006-01-02 15:04:05 UTC"),
		req.DurationMinutes, req.RequestID)
	return n.sendMail(ctx, req, fmt.Sprintf("JIT Access Granted - %s", req.CapabilityName), body)
}

// AccessDenied mails the requester that the request was denied.
func (n *Notifier) AccessDenied(ctx context.Context, req *domain.Request) error {
	body := fmt.Sprintf(
		"Your JIT access request has been DENIED.\n\n"+
			"Account: %s\nPermission Set: %s\nApprover: %s\nReason: %s\n\nRequest ID: %s\n",
		req.TargetName, req.CapabilityName, req.ApproverEmail, req.ApprovalComments, req.RequestID)
	return n.sendMail(ctx, req, "JIT Access Request DENIED", body)
}

// AccessRevoked mails the requester that access was removed.
func (n *Notifier) AccessRevoked(ctx context.Context, req *domain.Request) error {
	how := "automatically REVOKED as the time limit has expired"
	if req.RevocationType == domain.RevocationManual {
		how = fmt.Sprintf("MANUALLY REVOKED by %s", req.RevokedBy)
	}
	body := fmt.Sprintf(
		"Your JIT access has been %s.\n\n"+
			"Account: %s\nPermission Set: %s\nAccess Duration: %d minutes\n\n"+
			"If you still need access, please submit a new request.\n\nRequest ID: %s\n",
		how, req.TargetName, req.CapabilityName, req.DurationMinutes, req.RequestID)
	return n.sendMail(ctx, req, fmt.Sprintf("JIT Access REVOKED - %s", req.CapabilityName), body)
}

func (n *Notifier) sendMail(ctx context.Context, req *domain.Request, subject, body string) error {
	if n.sender == "" {
		return nil
	}
	_, err := n.ses.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(n.sender),
		Destination: &sestypes.Destination{
			ToAddresses: []string{req.PrincipalEmail},
		},
		Content: &sestypes.EmailContent{
			Simple: &sestypes.Message{
				Subject: &sestypes.Content{Data: aws.String(subject)},
				Body: &sestypes.Body{
					Text: &sestypes.Content{Data: aws.String(body)},
				},
			},
		},
	})
	if err != nil {
		return domain.ErrNotification("send mail for %s to %s: %v", req.RequestID, req.PrincipalEmail, err)
	}
	return nil
}
