// Package app assembles the stores, clients and services shared by the
// binaries under cmd/.
package app

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/rs/zerolog"

	"condo-assistant/handler"
	"condo-assistant/internal/config"
	"condo-assistant/internal/dispatch"
	"condo-assistant/internal/identity"
	"condo-assistant/internal/integrations/objectstore"
	"condo-assistant/internal/integrations/paramstore"
	"condo-assistant/internal/integrations/reports"
	"condo-assistant/internal/integrations/shortener"
	"condo-assistant/internal/integrations/whatsapp"
	"condo-assistant/internal/media"
	"condo-assistant/internal/repository"
	"condo-assistant/internal/sweeper"
	"condo-assistant/internal/usecase"
)

const (
	paramWhatsAppToken = "whatsapp-token"
	paramAppSecret     = "app-secret"
)

// LoadAWS loads the default AWS configuration for the configured region.
func LoadAWS(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		return aws.Config{}, fmt.Errorf("app: load AWS config: %w", err)
	}
	return awsCfg, nil
}

func newObjectStore(awsCfg aws.Config, cfg *config.Config, log zerolog.Logger) (*objectstore.Store, error) {
	return objectstore.New(awss3.NewFromConfig(awsCfg), cfg.MediaBucket, cfg.AWSRegion, cfg.MediaPublicBaseURL, log)
}

// NewWebhook wires the conversation engine behind the webhook handler.
func NewWebhook(awsCfg aws.Config, cfg *config.Config, log zerolog.Logger) (*handler.Handler, error) {
	if err := cfg.ValidateWebhook(); err != nil {
		return nil, err
	}

	// ---- Stores ----
	dynamo := awsdynamodb.NewFromConfig(awsCfg)
	contexts, err := repository.NewContextStore(dynamo, cfg.StateTable)
	if err != nil {
		return nil, fmt.Errorf("app: context store: %w", err)
	}
	directory, err := repository.NewDirectory(dynamo, cfg.DirectoryTable, cfg.DirectoryLookupIndex)
	if err != nil {
		return nil, fmt.Errorf("app: directory: %w", err)
	}
	audit, err := repository.NewAuditLog(dynamo, cfg.AuditTable)
	if err != nil {
		return nil, fmt.Errorf("app: audit log: %w", err)
	}
	deletions, err := repository.NewDeletionStore(dynamo, cfg.DeletionTable)
	if err != nil {
		return nil, fmt.Errorf("app: deletion store: %w", err)
	}

	// ---- Secrets ----
	params, err := paramstore.New(awsssm.NewFromConfig(awsCfg))
	if err != nil {
		return nil, fmt.Errorf("app: param store: %w", err)
	}
	token, err := paramstore.NewSecret(params, cfg.ParamPrefix, paramWhatsAppToken)
	if err != nil {
		return nil, fmt.Errorf("app: whatsapp token: %w", err)
	}
	appSecret, err := paramstore.NewSecret(params, cfg.ParamPrefix, paramAppSecret)
	if err != nil {
		return nil, fmt.Errorf("app: app secret: %w", err)
	}

	// ---- Clients ----
	wa, err := whatsapp.NewClient(token, cfg.WhatsAppPhoneNumberID,
		whatsapp.WithBaseURL(cfg.WhatsAppBaseURL),
		whatsapp.WithTimeout(cfg.HTTPTimeout),
		whatsapp.WithRetries(cfg.SendMaxRetries, 0),
	)
	if err != nil {
		return nil, fmt.Errorf("app: whatsapp client: %w", err)
	}
	objects, err := newObjectStore(awsCfg, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("app: object store: %w", err)
	}
	renderer, err := reports.NewClient(cfg.ReportRendererURL, cfg.HTTPTimeout)
	if err != nil {
		return nil, fmt.Errorf("app: report renderer: %w", err)
	}
	links := shortener.NewClient(cfg.ShortenerURL, cfg.HTTPTimeout, log)

	// ---- Services ----
	resolver, err := identity.NewResolver(directory, log)
	if err != nil {
		return nil, fmt.Errorf("app: resolver: %w", err)
	}
	pipeline, err := media.NewPipeline(wa, objects, cfg.MediaMaxBytes, log)
	if err != nil {
		return nil, fmt.Errorf("app: media pipeline: %w", err)
	}
	dispatcher, err := dispatch.NewDispatcher(wa, audit, log)
	if err != nil {
		return nil, fmt.Errorf("app: dispatcher: %w", err)
	}
	engine, err := usecase.NewEngine(usecase.Deps{
		Contexts:   contexts,
		Resolver:   resolver,
		Directory:  directory,
		Dispatcher: dispatcher,
		Media:      pipeline,
		Objects:    objects,
		Deletions:  deletions,
		Reports:    renderer,
		Shortener:  links,
	}, cfg.StatementTTL, log)
	if err != nil {
		return nil, fmt.Errorf("app: engine: %w", err)
	}

	return handler.NewHandler(engine, contexts, dispatcher, handler.Options{
		VerifyToken: cfg.WhatsAppVerifyToken,
		AppSecret:   appSecret,
	}, log)
}

// NewSweeper wires the ephemeral file sweeper.
func NewSweeper(awsCfg aws.Config, cfg *config.Config, log zerolog.Logger) (*sweeper.Sweeper, error) {
	deletions, err := repository.NewDeletionStore(awsdynamodb.NewFromConfig(awsCfg), cfg.DeletionTable)
	if err != nil {
		return nil, fmt.Errorf("app: deletion store: %w", err)
	}
	objects, err := newObjectStore(awsCfg, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("app: object store: %w", err)
	}
	return sweeper.New(deletions, objects, sweeper.Options{
		BatchSize:      cfg.SweepBatchSize,
		Retention:      cfg.SweepRetention,
		ReclaimBatches: cfg.SweepReclaimBatches,
	}, log)
}
