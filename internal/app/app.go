package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"AutoNews/internal/config"
	"AutoNews/internal/corpus"
	"AutoNews/internal/dedup"
	apperrors "AutoNews/internal/errors"
	"AutoNews/internal/infrastructure/llm"
	"AutoNews/internal/infrastructure/ml"
	"AutoNews/internal/infrastructure/parser"
	"AutoNews/internal/infrastructure/scheduler"
	"AutoNews/internal/infrastructure/storage"
	"AutoNews/internal/infrastructure/telegram"
	"AutoNews/internal/logging"
	"AutoNews/internal/ports"
	"AutoNews/internal/publish"
	"AutoNews/internal/scanner"
	"AutoNews/internal/usecase"
)

const shutdownTimeout = 30 * time.Second

// Application owns the shared state of one process: the corpus, the
// publish queue and the two long-running tasks built on them.
type Application struct {
	cfg    config.Config
	logger *slog.Logger

	corpus     *corpus.Corpus
	queueStore *storage.BoltQueue
	queue      *publish.Queue
	pipeline   *usecase.Pipeline
	worker     *publish.Worker
	scheduler  *usecase.Scheduler
	alerter    ports.Alerter
}

// New loads the corpus and the durable queue and wires every adapter.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	if cfg.Telegram.BotToken == "" || cfg.Telegram.ChatID == "" {
		return nil, apperrors.NewConfiguration("telegram.botToken and telegram.chatId are required to run")
	}

	corp, err := OpenCorpus(ctx, cfg, baseLogger)
	if err != nil {
		return nil, err
	}

	queueStore, err := storage.OpenBoltQueue(cfg.Queue.Path)
	if err != nil {
		corp.Close()
		return nil, apperrors.NewPersistence("open queue", err)
	}

	queue, err := publish.NewQueue(publish.QueueOptions{
		Store:   queueStore,
		Shuffle: cfg.Delivery.ShuffleEnabled(),
		Logger:  logging.Component(baseLogger, "queue"),
	})
	if err != nil {
		queueStore.Close()
		corp.Close()
		return nil, err
	}

	embedder := ml.NewClient(cfg.Embedder.Endpoint, cfg.Embedder.APIKey, cfg.Embedder.MaxRetries)
	cascade := NewCascade(cfg, corp, embedder, baseLogger)

	bot := telegram.NewBot(cfg.Telegram, logging.Component(baseLogger, "telegram"))
	var adminAlerter ports.Alerter
	if cfg.Telegram.AdminChatID != "" {
		adminAlerter = telegram.NewAdminAlerter(bot, cfg.Telegram.AdminChatID, logging.Component(baseLogger, "alerts"))
	} else {
		baseLogger.Warn("telegram.adminChatId is empty, operator alerts are only logged")
	}
	alerter := publish.NewDedupAlerter(adminAlerter, publish.NewAlertDeduplicator(), logging.Component(baseLogger, "alerts"))

	worker := publish.NewWorker(publish.WorkerDeps{
		Queue:     queue,
		Corpus:    corp,
		Embedder:  embedder,
		Publisher: telegram.NewChannelPublisher(bot, cfg.Telegram.ChatID),
		Alerter:   alerter,
		Config: publish.WorkerConfig{
			PostInterval: cfg.Delivery.PostInterval,
			RetryBackoff: cfg.Delivery.RetryBackoff,
			PollInterval: cfg.Delivery.PollInterval,
			SendTimeout:  cfg.Delivery.SendTimeout,
			EmbedTimeout: cfg.Dedup.CallTimeout,
			MaxAttempts:  cfg.Queue.MaxAttempts,
		},
		Logger: logging.Component(baseLogger, "worker"),
	})

	registry := scanner.NewRegistry()
	registry.Register(parser.NewHTMLScanner(&http.Client{Timeout: 30 * time.Second}, logging.Component(baseLogger, "scanner.html")))
	source := parser.NewStrategySource(registry, cfg.Sites, logging.Component(baseLogger, "source"))

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Source:  source,
		Corpus:  corp,
		Checker: cascade,
		Queue:   queue,
		SimHigh: cfg.Dedup.SimHigh,
		Logger:  logging.Component(baseLogger, "pipeline"),
	})

	sched := usecase.NewScheduler(
		scheduler.NewIntervalScheduler(cfg.Scheduler.Interval),
		pipeline,
		logging.Component(baseLogger, "scheduler"),
	)

	return &Application{
		cfg:        cfg,
		logger:     baseLogger,
		corpus:     corp,
		queueStore: queueStore,
		queue:      queue,
		pipeline:   pipeline,
		worker:     worker,
		scheduler:  sched,
		alerter:    alerter,
	}, nil
}

// OpenCorpus opens the configured backend and rebuilds the similarity index from it.
func OpenCorpus(ctx context.Context, cfg config.Config, logger *slog.Logger) (*corpus.Corpus, error) {
	store, err := openCorpusStore(ctx, cfg.Corpus)
	if err != nil {
		return nil, apperrors.NewPersistence("open corpus store", err)
	}

	corp, err := corpus.Open(ctx, store, cfg.Corpus.Dimension, logging.Component(logger, "corpus"))
	if err != nil {
		store.Close()
		return nil, err
	}
	return corp, nil
}

func openCorpusStore(ctx context.Context, cfg config.CorpusConfig) (ports.CorpusStore, error) {
	switch cfg.Backend {
	case config.BackendSQLite:
		return storage.OpenSQLite(ctx, cfg.DSN)
	case config.BackendPostgres:
		return storage.OpenPostgres(ctx, cfg.DSN)
	case config.BackendFile, "":
		return storage.NewFileStore(cfg.Path), nil
	default:
		return nil, fmt.Errorf("unknown corpus backend %q", cfg.Backend)
	}
}

// NewCascade builds the duplicate cascade over index with the configured
// reranker and judge.
func NewCascade(cfg config.Config, index dedup.Index, embedder ports.Embedder, logger *slog.Logger) *dedup.Cascade {
	if embedder == nil {
		embedder = ml.NewClient(cfg.Embedder.Endpoint, cfg.Embedder.APIKey, cfg.Embedder.MaxRetries)
	}

	var reranker ports.Reranker
	if cfg.Reranker.Endpoint != "" {
		reranker = ml.NewClient(cfg.Reranker.Endpoint, cfg.Reranker.APIKey, cfg.Reranker.MaxRetries)
	}

	return dedup.NewCascade(dedup.CascadeDeps{
		Index:    index,
		Embedder: embedder,
		Reranker: reranker,
		Judge:    newJudge(cfg.Judge, logger),
		Config: dedup.Config{
			SimHigh:     cfg.Dedup.SimHigh,
			RerankHigh:  cfg.Dedup.RerankHigh,
			JudgeMin:    cfg.Dedup.JudgeMin,
			RerankTopN:  cfg.Dedup.RerankTopN,
			JudgeTopN:   cfg.Dedup.JudgeTopN,
			CallTimeout: cfg.Dedup.CallTimeout,
		},
		Logger: logging.Component(logger, "cascade"),
	})
}

func newJudge(cfg config.JudgeConfig, logger *slog.Logger) ports.Judge {
	switch cfg.Provider {
	case config.JudgeAnthropic:
		return llm.NewAnthropicJudge(cfg, logging.Component(logger, "judge.anthropic"))
	case config.JudgeOpenAI:
		if cfg.APIKey == "" {
			logger.Warn("judge api key is empty, judge stage disabled")
			return nil
		}
		return llm.NewChatJudge(cfg, logging.Component(logger, "judge.chat"))
	default:
		return nil
	}
}

// Run starts the ingestion scheduler and the delivery worker and blocks
// until ctx is cancelled or the worker stops on a persistence failure.
func (a *Application) Run(ctx context.Context) error {
	stats := a.corpus.Stats()
	a.logger.Info("autonews started",
		"corpus_entries", stats.Entries,
		"indexed", stats.WithEmbedding,
		"queued", a.queue.Len(),
		"sites", len(a.cfg.Sites))
	a.notifyStartup(ctx, stats)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.worker.Run(gctx)
	})

	g.Go(func() error {
		if err := a.scheduler.Start(gctx); err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
		<-gctx.Done()

		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := a.scheduler.Stop(stopCtx); err != nil {
			a.logger.Warn("ingestion did not stop in time", "error", err)
		}
		return nil
	})

	err := g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (a *Application) notifyStartup(ctx context.Context, stats corpus.Stats) {
	text := fmt.Sprintf("AutoNews started: %d entries in corpus, %d posts queued", stats.Entries, a.queue.Len())
	alertCtx, cancel := context.WithTimeout(ctx, a.cfg.Delivery.SendTimeout)
	defer cancel()
	if err := a.alerter.Alert(alertCtx, text, ""); err != nil {
		a.logger.Warn("startup notice failed", "error", err)
	}
}

// RunOnce performs a single ingestion sweep without starting delivery.
func (a *Application) RunOnce(ctx context.Context) (usecase.CycleReport, error) {
	return a.pipeline.RunCycle(ctx)
}

// Close releases the queue database and the corpus store.
func (a *Application) Close() error {
	var errs []error
	if a.queueStore != nil {
		errs = append(errs, a.queueStore.Close())
	}
	if a.corpus != nil {
		errs = append(errs, a.corpus.Close())
	}
	return errors.Join(errs...)
}
