// Package app assembles queue, collaborators and services from configuration.
// Both the HTTP service and the operator CLI build through it.
package app

import (
	"context"
	"fmt"

	"github.com/reelqueue/platform/pkg/assets"
	"github.com/reelqueue/platform/pkg/caption"
	"github.com/reelqueue/platform/pkg/common/config"
	"github.com/reelqueue/platform/pkg/common/database"
	"github.com/reelqueue/platform/pkg/common/httpclient"
	"github.com/reelqueue/platform/pkg/common/logger"
	"github.com/reelqueue/platform/pkg/history"
	"github.com/reelqueue/platform/pkg/pipeline"
	"github.com/reelqueue/platform/pkg/publisher"
	"github.com/reelqueue/platform/pkg/queue"
)

const (
	BackendSheets   = "sheets"
	BackendWorkbook = "workbook"

	ClaimNone  = "none"
	ClaimRedis = "redis"
	ClaimFile  = "file"
)

// Queue bundles the store-side pieces every operation shares.
type Queue struct {
	Store    queue.Store
	Schema   *queue.Schema
	Selector *queue.Selector
	Updater  *queue.Updater
}

func NewQueue(ctx context.Context, cfg *config.Config) (*Queue, error) {
	schema, err := queue.LoadSchema(cfg.QueueSchema)
	if err != nil {
		return nil, err
	}
	if cfg.QueueSheet != "" {
		schema.Sheet = cfg.QueueSheet
	}

	store, err := NewStore(ctx, cfg, schema)
	if err != nil {
		return nil, err
	}
	claimer, err := NewClaimer(ctx, cfg)
	if err != nil {
		return nil, err
	}

	return &Queue{
		Store:    store,
		Schema:   schema,
		Selector: queue.NewSelector(store, schema, claimer, cfg.ClaimTTL),
		Updater:  queue.NewUpdater(store, schema),
	}, nil
}

func NewStore(ctx context.Context, cfg *config.Config, schema *queue.Schema) (queue.Store, error) {
	switch cfg.QueueBackend {
	case "", BackendSheets:
		if err := cfg.RequireSheets(); err != nil {
			return nil, err
		}
		client := queue.NewSheetsHTTPClient(ctx, queue.SheetsAuth{
			AccessToken:         cfg.SheetsAccessToken,
			ServiceAccountEmail: cfg.SheetsServiceAccountMail,
			PrivateKey:          cfg.SheetsPrivateKey,
			TokenURL:            cfg.SheetsTokenURL,
		}, cfg.OutboundTimeout)
		return queue.NewSheetsStore(client, cfg.SheetsBaseURL, cfg.SheetsSpreadsheetID), nil
	case BackendWorkbook:
		return queue.NewWorkbookStore(cfg.WorkbookPath, schema), nil
	default:
		return nil, fmt.Errorf("unknown queue backend %q", cfg.QueueBackend)
	}
}

func NewClaimer(ctx context.Context, cfg *config.Config) (queue.Claimer, error) {
	switch cfg.ClaimBackend {
	case "", ClaimNone:
		return queue.NopClaimer{}, nil
	case ClaimRedis:
		client, err := database.GetRedis(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return queue.NewRedisClaimer(client, "reelqueue:claim:"), nil
	case ClaimFile:
		claimer, err := queue.NewFileClaimer(cfg.ClaimLockDir)
		if err != nil {
			return nil, err
		}
		return claimer, nil
	default:
		return nil, fmt.Errorf("unknown claim backend %q", cfg.ClaimBackend)
	}
}

// NewHistory opens the postgres history repository when enabled. The returned
// repository is nil when history is off.
func NewHistory(cfg *config.Config) (history.Recorder, *history.Repository, error) {
	if !cfg.HistoryEnabled {
		return history.Nop{}, nil, nil
	}
	db, err := database.GetPostgres(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("connect history database: %w", err)
	}
	repo := history.NewRepository(db)
	if err := repo.AutoMigrate(); err != nil {
		return nil, nil, fmt.Errorf("migrate history: %w", err)
	}
	return repo, repo, nil
}

// NewPipeline wires the collaborators that have credentials. Missing ones are
// logged here and reported by the operation that needs them.
func NewPipeline(cfg *config.Config, q *Queue, rec history.Recorder) *pipeline.Service {
	deps := pipeline.Deps{
		Selector: q.Selector,
		Updater:  q.Updater,
		History:  rec,
	}

	if err := cfg.RequireLLM(); err != nil {
		logger.Log.WithError(err).Warn("caption generation disabled")
	} else {
		deps.Captioner = caption.NewClient(caption.Config{
			APIKey:  cfg.LLMAPIKey,
			BaseURL: cfg.LLMBaseURL,
			Model:   cfg.LLMModelName,
		}, httpclient.New("llm", cfg.OutboundTimeout))
	}

	if err := cfg.RequireInstagram(); err != nil {
		logger.Log.WithError(err).Warn("instagram publishing disabled")
	} else {
		deps.Publisher = publisher.NewClient(publisher.Config{
			GraphURL:    cfg.InstagramGraphURL,
			APIVersion:  cfg.InstagramAPIVersion,
			UserID:      cfg.InstagramUserID,
			AccessToken: cfg.InstagramAccessToken,
		}, httpclient.New("instagram", cfg.OutboundTimeout))
	}

	if err := cfg.RequireCloudinary(); err != nil {
		logger.Log.WithError(err).Warn("asset cleanup disabled")
	} else {
		deps.Assets = assets.NewClient(assets.Config{
			BaseURL:      cfg.CloudinaryBaseURL,
			CloudName:    cfg.CloudinaryCloudName,
			APIKey:       cfg.CloudinaryAPIKey,
			APISecret:    cfg.CloudinaryAPISecret,
			ResourceType: cfg.CloudinaryResourceType,
		}, httpclient.New("cloudinary", cfg.OutboundTimeout))
	}

	return pipeline.NewService(deps)
}
