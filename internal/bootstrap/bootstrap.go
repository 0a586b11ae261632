package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"time"

	"google.golang.org/api/option"

	httpadapter "github.com/vikram-trellis/corgi-hack/internal/adapters/http"
	"github.com/vikram-trellis/corgi-hack/internal/config"
	"github.com/vikram-trellis/corgi-hack/internal/core/ports"
	"github.com/vikram-trellis/corgi-hack/internal/core/usecase"
	"github.com/vikram-trellis/corgi-hack/internal/infrastructure/cache"
	"github.com/vikram-trellis/corgi-hack/internal/infrastructure/export"
	"github.com/vikram-trellis/corgi-hack/internal/infrastructure/extractor/plaintext"
	"github.com/vikram-trellis/corgi-hack/internal/infrastructure/llm"
	"github.com/vikram-trellis/corgi-hack/internal/infrastructure/llm/gemini"
	"github.com/vikram-trellis/corgi-hack/internal/infrastructure/llm/ollama"
	"github.com/vikram-trellis/corgi-hack/internal/infrastructure/llm/openai"
	"github.com/vikram-trellis/corgi-hack/internal/infrastructure/queue/nats"
	"github.com/vikram-trellis/corgi-hack/internal/infrastructure/repository/postgres"
	"github.com/vikram-trellis/corgi-hack/internal/infrastructure/resilience"
	"github.com/vikram-trellis/corgi-hack/internal/infrastructure/schema"
	"github.com/vikram-trellis/corgi-hack/internal/infrastructure/storage/gcs"
	"github.com/vikram-trellis/corgi-hack/internal/infrastructure/storage/localfs"
)

const extractorMaxChars = 200_000

// Options carries the process specific observers. Nil fields disable the matching signal.
type Options struct {
	Logger      *slog.Logger
	Resilience  resilience.Observer
	AICalls     llm.CallRecorder
	Conversions ports.ConversionObserver
}

type App struct {
	Config config.Config
	DB     *sql.DB

	Queue *nats.Queue

	PolicyHolders *usecase.PolicyHolderUseCase
	Autoupload    *usecase.AutouploadEmailUseCase
	Claims        *usecase.ClaimUseCase
	Inbox         *usecase.InboxUseCase
	Converter     *usecase.ConversionUseCase
	Documents     *usecase.DocumentUseCase
	Analysis      *usecase.AnalysisUseCase
	Intake        *usecase.IntakeUseCase

	closers []io.Closer
}

func New(ctx context.Context, cfg config.Config, opts Options) (_ *App, err error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	app := &App{Config: cfg}
	defer func() {
		if err != nil {
			app.Close()
		}
	}()

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	app.DB = db
	app.closers = append(app.closers, db)
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	exec := resilience.NewExecutor(resilienceConfig(cfg), logger, opts.Resilience)

	blobs, err := newBlobStore(ctx, cfg, exec, app)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	queue, err := nats.New(cfg.NATSURL, nats.Options{
		SubjectPrefix:      cfg.NATSSubjectPrefix,
		ResilienceExecutor: exec,
		Logger:             logger,
	})
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}
	app.Queue = queue
	app.closers = append(app.closers, closerFunc(func() error { queue.Close(); return nil }))

	generator, err := newGenerator(ctx, cfg, exec, app)
	if err != nil {
		return nil, fmt.Errorf("init ai provider: %w", err)
	}
	instrumented := llm.NewInstrumented(generator, cfg.AIProvider, opts.AICalls)

	catalog, err := schema.Load()
	if err != nil {
		return nil, fmt.Errorf("load analysis schemas: %w", err)
	}

	holders := postgres.NewPolicyHolderRepository(db)
	aliases := postgres.NewAutouploadEmailRepository(db)
	claims := postgres.NewClaimRepository(db)
	inbox := postgres.NewInboxRepository(db)
	docs := postgres.NewDocumentRepository(db)
	ledger := postgres.NewConversionRepository(db)
	uow := postgres.NewUnitOfWork(db, cfg.ConversionTransactional)
	intakeUOW := postgres.NewUnitOfWork(db, true)
	stats := cache.NewInboxStats(cfg.InboxStatsTTL)

	app.PolicyHolders = usecase.NewPolicyHolderUseCase(holders)
	app.Autoupload = usecase.NewAutouploadEmailUseCase(aliases, holders, cfg.AutouploadDomain)
	app.Claims = usecase.NewClaimUseCase(claims, holders)
	app.Inbox = usecase.NewInboxUseCase(inbox, holders, stats, export.NewXLSXExporter())
	app.Converter = usecase.NewConversionUseCase(uow, inbox, claims, docs, ledger, queue, stats, opts.Conversions, logger)
	app.Documents = usecase.NewDocumentUseCase(docs, blobs, claims, inbox, logger)
	app.Analysis = usecase.NewAnalysisUseCase(
		instrumented,
		catalog,
		plaintext.NewExtractor(extractorMaxChars),
		docs,
		blobs,
		cfg.AIInlineText,
		logger,
	).WithMaxFileBytes(cfg.AnalysisMaxFileBytes)
	app.Intake = usecase.NewIntakeUseCase(intakeUOW, aliases, holders, inbox, docs, app.Analysis, queue, stats, logger)

	logger.Info("bootstrap_complete",
		"ai_provider", cfg.AIProvider,
		"ai_inline_text", cfg.AIInlineText,
		"storage_backend", cfg.StorageBackend,
		"conversion_transactional", cfg.ConversionTransactional,
	)
	return app, nil
}

// Services exposes the use cases as the HTTP adapter's inbound ports.
func (a *App) Services() httpadapter.Services {
	return httpadapter.Services{
		PolicyHolders: a.PolicyHolders,
		Autoupload:    a.Autoupload,
		Claims:        a.Claims,
		Inbox:         a.Inbox,
		Converter:     a.Converter,
		Documents:     a.Documents,
		Analysis:      a.Analysis,
		Intake:        a.Intake,
	}
}

// Close releases resources in reverse acquisition order.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i].Close()
	}
	a.closers = nil
}

func resilienceConfig(cfg config.Config) resilience.Config {
	return resilience.Config{
		RetryMaxAttempts:        cfg.RetryMaxAttempts,
		RetryInitialBackoff:     cfg.RetryInitialBackoff,
		RetryMaxBackoff:         cfg.RetryMaxBackoff,
		RetryJitter:             cfg.RetryJitter,
		RetryBudget:             cfg.RetryBudget,
		BreakerEnabled:          cfg.BreakerEnabled,
		BreakerMinRequests:      nonNegative(cfg.BreakerMinRequests),
		BreakerFailureRatio:     cfg.BreakerFailureRatio,
		BreakerOpenTimeout:      cfg.BreakerOpenTimeout,
		BreakerHalfOpenMaxCalls: nonNegative(cfg.BreakerHalfOpenMaxCalls),
	}
}

func nonNegative(n int) uint32 {
	if n < 0 {
		return 0
	}
	return uint32(n)
}

func newBlobStore(ctx context.Context, cfg config.Config, exec *resilience.Executor, app *App) (ports.BlobStore, error) {
	switch cfg.StorageBackend {
	case "gcs":
		var clientOpts []option.ClientOption
		if cfg.GCSCredentialsFile != "" {
			clientOpts = append(clientOpts, option.WithCredentialsFile(cfg.GCSCredentialsFile))
		}
		store, err := gcs.New(ctx, cfg.GCSBucket, cfg.GCSPublicBaseURL, exec, clientOpts...)
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, store)
		return store, nil
	case "localfs", "":
		return localfs.New(cfg.StoragePath, cfg.StorageBaseURL)
	default:
		return nil, fmt.Errorf("unsupported storage backend %q", cfg.StorageBackend)
	}
}

func newGenerator(ctx context.Context, cfg config.Config, exec *resilience.Executor, app *App) (ports.Generator, error) {
	timeout := time.Duration(cfg.AITimeoutSeconds) * time.Second
	switch cfg.AIProvider {
	case "gemini":
		client, err := gemini.New(ctx, cfg.GeminiProjectID, cfg.GeminiRegion, cfg.GeminiModel, exec)
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, client)
		return client, nil
	case "openai":
		return openai.New(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel, exec)
	case "ollama":
		return ollama.New(cfg.OllamaURL, cfg.OllamaModel, timeout, exec), nil
	default:
		return nil, fmt.Errorf("unsupported ai provider %q", cfg.AIProvider)
	}
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }
