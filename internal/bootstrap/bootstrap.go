package bootstrap

import (
	"context"
	"fmt"

	"github.com/kirillkom/contract-analyzer/internal/config"
	"github.com/kirillkom/contract-analyzer/internal/core/ports"
	"github.com/kirillkom/contract-analyzer/internal/core/usecase"
	"github.com/kirillkom/contract-analyzer/internal/infrastructure/extractor"
	"github.com/kirillkom/contract-analyzer/internal/infrastructure/queue/nats"
	"github.com/kirillkom/contract-analyzer/internal/infrastructure/report/html"
	"github.com/kirillkom/contract-analyzer/internal/infrastructure/report/xlsx"
	"github.com/kirillkom/contract-analyzer/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/contract-analyzer/internal/infrastructure/resilience"
	"github.com/kirillkom/contract-analyzer/internal/infrastructure/segmenter"
	"github.com/kirillkom/contract-analyzer/internal/infrastructure/storage/localfs"
)

type App struct {
	Config config.Config

	Queue     ports.MessageQueue
	Repo      ports.DocumentRepository
	IngestUC  *usecase.IngestDocumentUseCase
	AnalyzeUC *usecase.AnalyzeUseCase
	AskUC     *usecase.AskUseCase
	ReportUC  *usecase.ReportUseCase

	closeFn func()
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	guardCfg := resilience.DefaultConfig()
	guardCfg.Enabled = cfg.BreakerEnabled
	guard := resilience.NewGuard(guardCfg)

	var cleanup closers
	fail := func(err error) (*App, error) {
		cleanup.closeAll()
		return nil, err
	}

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	cleanup.add(func() { _ = db.Close() })
	repo := postgres.NewDocumentRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		return fail(fmt.Errorf("ensure schema: %w", err))
	}
	clauseRepo := postgres.NewClauseRepository(db)

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		return fail(fmt.Errorf("init object storage: %w", err))
	}

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{Guard: guard})
	if err != nil {
		return fail(fmt.Errorf("init message queue: %w", err))
	}
	cleanup.add(queue.Close)

	embedder, store, generator, scanner, err := newRetrievalStack(ctx, cfg, guard, &cleanup)
	if err != nil {
		return fail(err)
	}

	index := usecase.NewClauseIndex(embedder, store, cfg.QdrantCollectionPrefix)
	analyzeUC := usecase.NewAnalyzeUseCase(
		repo,
		clauseRepo,
		extractor.NewComposite(storage),
		segmenter.New(cfg.SegmentMaxClauseChars, cfg.SegmentMergeHeadings),
		scanner,
		index,
	)
	askUC := usecase.NewAskUseCase(
		usecase.NewRetriever(index),
		usecase.NewAnswerComposer(generator, cfg.GenerationMaxTokens),
		cfg.RAGTopK,
		cfg.AskDegradeOnGenerationError,
	)
	reportUC := usecase.NewReportUseCase(repo, analyzeUC).
		Register("html", html.New(0)).
		Register("xlsx", xlsx.New())

	return &App{
		Config: cfg,
		Queue:  queue,
		Repo:   repo,

		IngestUC:  usecase.NewIngestDocumentUseCase(repo, storage, queue),
		AnalyzeUC: analyzeUC,
		AskUC:     askUC,
		ReportUC:  reportUC,

		closeFn: cleanup.closeAll,
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

// closers releases resources in reverse order of acquisition.
type closers []func()

func (c *closers) add(fn func()) {
	*c = append(*c, fn)
}

func (c *closers) closeAll() {
	for i := len(*c) - 1; i >= 0; i-- {
		(*c)[i]()
	}
	*c = nil
}
