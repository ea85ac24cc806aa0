// Package app provides application-level wiring for the just-in-time
// access controller following hexagonal architecture.
package app

import (
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/identitystore"
	"github.com/aws/aws-sdk-go-v2/service/scheduler"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/ssoadmin"

	"github.com/felix-codexyz/just-in-time-aws-access-management/internal/config"
	"github.com/felix-codexyz/just-in-time-aws-access-management/internal/identity"
	"github.com/felix-codexyz/just-in-time-aws-access-management/internal/notify"
	"github.com/felix-codexyz/just-in-time-aws-access-management/internal/policy"
	"github.com/felix-codexyz/just-in-time-aws-access-management/internal/provider"
	"github.com/felix-codexyz/just-in-time-aws-access-management/internal/schedule"
	"github.com/felix-codexyz/just-in-time-aws-access-management/internal/service"
	"github.com/felix-codexyz/just-in-time-aws-access-management/internal/store"
)

// Deps holds the external dependencies that main() must provide: config,
// an AWS client configuration, and the logger.
type Deps struct {
	Cfg    *config.Config
	AWS    aws.Config
	Logger *slog.Logger
}

// App holds the fully wired application.
type App struct {
	Lifecycle *service.LifecycleService
}

// New wires every adapter and the lifecycle service from the provided
// deps. All AWS clients share the one client configuration.
func New(deps Deps) *App {
	cfg := deps.Cfg

	requestStore := store.NewDynamoStore(dynamodb.NewFromConfig(deps.AWS), cfg.TableName)
	authProvider := provider.NewSSOAdminProvider(ssoadmin.NewFromConfig(deps.AWS), cfg.InstanceARN)
	resolver := identity.NewStoreResolver(identitystore.NewFromConfig(deps.AWS), cfg.IdentityStoreID)
	scheduleAdapter := schedule.NewEventBridgeAdapter(
		scheduler.NewFromConfig(deps.AWS),
		eventbridge.NewFromConfig(deps.AWS),
		cfg.ScheduleGroup,
		cfg.RevokeTargetARN,
		cfg.SchedulerRole,
	)
	notifier := notify.New(
		sesv2.NewFromConfig(deps.AWS),
		sns.NewFromConfig(deps.AWS),
		cfg.SenderEmail,
		cfg.ApprovalTopicARN,
	)

	lifecycle := service.NewLifecycleService(
		requestStore,
		authProvider,
		scheduleAdapter,
		notifier,
		resolver,
		policy.New(&cfg.Catalog),
		&cfg.Catalog,
		service.LifecycleConfig{
			MaxDurationMinutes: cfg.MaxDurationMinutes,
			PollMaxAttempts:    cfg.PollMaxAttempts,
			PollInterval:       cfg.PollInterval,
		},
		deps.Logger,
	)
	return &App{Lifecycle: lifecycle}
}
