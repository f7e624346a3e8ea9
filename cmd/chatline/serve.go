package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/chatlinehq/chatline/internal/compose"
	"github.com/chatlinehq/chatline/internal/config"
	"github.com/chatlinehq/chatline/internal/conversation"
	"github.com/chatlinehq/chatline/internal/db"
	"github.com/chatlinehq/chatline/internal/handlers"
	"github.com/chatlinehq/chatline/internal/identity"
	"github.com/chatlinehq/chatline/internal/ingest"
	"github.com/chatlinehq/chatline/internal/instance"
	"github.com/chatlinehq/chatline/internal/logger"
	"github.com/chatlinehq/chatline/internal/media"
	"github.com/chatlinehq/chatline/internal/message"
	"github.com/chatlinehq/chatline/internal/outbox"
	"github.com/chatlinehq/chatline/internal/provider"
	"github.com/chatlinehq/chatline/internal/server"
	"github.com/chatlinehq/chatline/internal/storage/localfs"
	"github.com/chatlinehq/chatline/internal/trigger"
	"github.com/chatlinehq/chatline/internal/webhook"
)

func runServe() {
	fx.New(
		fx.Provide(
			provideConfig,
			provideLogger,
			provideDBConn,
			provideProviderClient,
			provideInstanceService,
			provideNormalizer,
			provideIdentityService,
			provideConversationService,
			provideMediaService,
			provideMessageService,
			provideIngestService,
			provideComposeService,
			provideOutboxWorker,
			provideServer,
		),
		fx.Invoke(
			startOutboxWorker,
			startServer,
		),
		fx.WithLogger(func(log *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: log.With(slog.String("component", "fx"))}
		}),
	).Run()
}

func provideConfig() (config.Config, error) {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func provideLogger(cfg config.Config) *slog.Logger {
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return logger.L
}

func provideDBConn(lc fx.Lifecycle, cfg config.Config) (*pgxpool.Pool, error) {
	pool, err := db.Open(context.Background(), cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	lc.Append(fx.Hook{OnStop: func(ctx context.Context) error { pool.Close(); return nil }})
	return pool, nil
}

func provideProviderClient(log *slog.Logger, cfg config.Config) *provider.Client {
	return provider.NewClient(log, provider.Options{
		BaseURL: cfg.Provider.BaseURL,
		APIKey:  cfg.Provider.APIKey,
	})
}

func provideInstanceService(log *slog.Logger, pool *pgxpool.Pool) *instance.Service {
	return instance.NewService(log, instance.NewPGStore(pool))
}

func provideNormalizer(log *slog.Logger, instances *instance.Service) *webhook.Normalizer {
	return webhook.NewNormalizer(log, instances)
}

func provideIdentityService(log *slog.Logger, pool *pgxpool.Pool, cfg config.Config, client *provider.Client) *identity.Service {
	timeout := time.Duration(cfg.Provider.LookupTimeoutSeconds) * time.Second
	return identity.NewService(log, identity.NewPGStore(pool), client, timeout)
}

func provideConversationService(log *slog.Logger, pool *pgxpool.Pool) *conversation.Service {
	return conversation.NewService(log, conversation.NewPGStore(pool))
}

func provideMediaService(log *slog.Logger, cfg config.Config) (*media.Service, error) {
	store, err := localfs.New(cfg.Storage.Root, cfg.Storage.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("init media storage: %w", err)
	}
	return media.NewService(log, store), nil
}

func provideMessageService(log *slog.Logger, pool *pgxpool.Pool) *message.Service {
	return message.NewService(log, message.NewPGStore(pool))
}

func provideIngestService(
	log *slog.Logger,
	normalizer *webhook.Normalizer,
	identities *identity.Service,
	conversations *conversation.Service,
	mediaService *media.Service,
	messages *message.Service,
	instances *instance.Service,
) *ingest.Service {
	return ingest.NewService(log, normalizer, identities, conversations, mediaService, messages, instances)
}

func provideComposeService(
	log *slog.Logger,
	instances *instance.Service,
	identities *identity.Service,
	conversations *conversation.Service,
	client *provider.Client,
	messages *message.Service,
) *compose.Service {
	return compose.NewService(log, instances, identities, conversations, client, messages)
}

func provideOutboxWorker(log *slog.Logger, pool *pgxpool.Pool, cfg config.Config) *outbox.Worker {
	dispatcher := trigger.NewClient(log, trigger.Options{
		AnalysisURL:      cfg.Triggers.AnalysisURL,
		TranscriptionURL: cfg.Triggers.TranscriptionURL,
		Timeout:          time.Duration(cfg.Triggers.TimeoutSeconds) * time.Second,
	})
	return outbox.NewWorker(log, outbox.NewPGStore(pool), dispatcher, outbox.Options{
		PollSeconds:    cfg.Triggers.PollSeconds,
		BatchSize:      cfg.Triggers.BatchSize,
		MaxAttempts:    cfg.Triggers.MaxAttempts,
		BackoffSeconds: cfg.Triggers.BackoffSeconds,
	})
}

func provideServer(
	log *slog.Logger,
	cfg config.Config,
	ingestService *ingest.Service,
	conversations *conversation.Service,
	messages *message.Service,
	composeService *compose.Service,
) *server.Server {
	return server.New(log, server.Options{
		Addr:      cfg.Server.Addr,
		JWTSecret: cfg.Auth.JWTSecret,
	},
		handlers.NewPingHandler(),
		handlers.NewMediaHandler(cfg.Storage.Root),
		handlers.NewWebhookHandler(log, ingestService),
		handlers.NewConversationHandler(log, conversations, messages),
		handlers.NewMessageHandler(log, composeService),
	)
}

func startOutboxWorker(lc fx.Lifecycle, worker *outbox.Worker) {
	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error { return worker.Start(ctx) },
		OnStop:  func(_ context.Context) error { cancel(); worker.Stop(); return nil },
	})
}

func startServer(lc fx.Lifecycle, srv *server.Server) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error { srv.Start(); return nil },
		OnStop:  func(ctx context.Context) error { return srv.Stop(ctx) },
	})
}
