package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"NewsPoster/internal/approval"
	"NewsPoster/internal/config"
	"NewsPoster/internal/domain"
	"NewsPoster/internal/generation"
	"NewsPoster/internal/handler"
	"NewsPoster/internal/infrastructure/corpus"
	"NewsPoster/internal/infrastructure/llm"
	"NewsPoster/internal/infrastructure/parser"
	"NewsPoster/internal/infrastructure/queue"
	"NewsPoster/internal/infrastructure/scheduler"
	"NewsPoster/internal/infrastructure/slackbot"
	"NewsPoster/internal/infrastructure/storage/postgres"
	"NewsPoster/internal/infrastructure/targets"
	"NewsPoster/internal/infrastructure/telegram"
	"NewsPoster/internal/logging"
	"NewsPoster/internal/metrics"
	"NewsPoster/internal/ports"
	"NewsPoster/internal/publish"
	"NewsPoster/internal/scanner"
	"NewsPoster/internal/usecase"
	"NewsPoster/pkg/logger"
)

const (
	fetchTimeout    = 20 * time.Second
	shutdownTimeout = 10 * time.Second
)

// Application wires configs to the pipeline stages. Every stage opens only
// the stores and clients it needs.
type Application struct {
	cfg    config.Config
	logger *slog.Logger
}

// New builds an application instance.
func New(cfg config.Config, baseLogger *slog.Logger) *Application {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}
	return &Application{cfg: cfg, logger: baseLogger}
}

// Migrate applies the database schema.
func (a *Application) Migrate() error {
	if err := postgres.Migrate(a.cfg.Database.DSN); err != nil {
		return err
	}
	a.logger.Info("database schema is up to date")
	return nil
}

// Ingest fetches news from every configured site once.
func (a *Application) Ingest(ctx context.Context) error {
	db, err := postgres.Open(ctx, a.cfg.Database.DSN)
	if err != nil {
		return err
	}
	defer db.Close()

	reg := metrics.NewRegistry()
	report, err := a.ingestor(db, metrics.NewCollector(reg)).Ingest(ctx)
	a.logger.Info("ingest finished", "fetched", report.Fetched, "new", report.Inserted)
	a.pushMetrics(ctx, "ingest", reg)
	return err
}

// Generate runs one generation pass over the stored news.
func (a *Application) Generate(ctx context.Context) error {
	return a.runPipeline(ctx, false)
}

// Run ingests and then generates.
func (a *Application) Run(ctx context.Context) error {
	return a.runPipeline(ctx, true)
}

func (a *Application) runPipeline(ctx context.Context, ingest bool) error {
	db, err := postgres.Open(ctx, a.cfg.Database.DSN)
	if err != nil {
		return err
	}
	defer db.Close()

	rdb, err := queue.Connect(ctx, a.cfg.Redis.URL)
	if err != nil {
		return err
	}
	defer rdb.Close()

	reg := metrics.NewRegistry()
	pipeline, err := a.pipeline(db, rdb, ingest, metrics.NewCollector(reg))
	if err != nil {
		return err
	}
	_, err = pipeline.Run(ctx)
	a.pushMetrics(ctx, "generate", reg)
	return err
}

// Schedule runs ingest and generation on the configured cron expression until ctx ends.
func (a *Application) Schedule(ctx context.Context) error {
	if err := scheduler.Validate(a.cfg.Scheduler.CronExpression); err != nil {
		return err
	}

	db, err := postgres.Open(ctx, a.cfg.Database.DSN)
	if err != nil {
		return err
	}
	defer db.Close()

	rdb, err := queue.Connect(ctx, a.cfg.Redis.URL)
	if err != nil {
		return err
	}
	defer rdb.Close()

	reg := metrics.NewRegistry()
	pipeline, err := a.pipeline(db, rdb, true, metrics.NewCollector(reg))
	if err != nil {
		return err
	}

	loc := a.cfg.Scheduler.Location()
	driver := scheduler.NewCronScheduler(a.cfg.Scheduler.CronExpression, loc, logger.Component(a.logger, "cron"))
	sched := usecase.NewScheduler(driver, pipeline, logger.Component(a.logger, "scheduler"))
	if err := sched.Start(ctx); err != nil {
		return err
	}
	a.logger.Info("scheduler started", "cron", a.cfg.Scheduler.CronExpression, "timezone", loc.String())

	g, gctx := errgroup.WithContext(ctx)
	a.serveMetrics(gctx, g, reg)
	g.Go(func() error {
		<-gctx.Done()
		stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return sched.Stop(stopCtx)
	})
	return g.Wait()
}

// Approvals serves the reviewer webhook and moves vetted drafts into review.
func (a *Application) Approvals(ctx context.Context) error {
	db, err := postgres.Open(ctx, a.cfg.Database.DSN)
	if err != nil {
		return err
	}
	defer db.Close()

	rdb, err := queue.Connect(ctx, a.cfg.Redis.URL)
	if err != nil {
		return err
	}
	defer rdb.Close()

	reg := metrics.NewRegistry()
	rec := metrics.NewCollector(reg)

	vetted := queue.NewRedisQueue(rdb, a.cfg.Redis.KeyPrefix, queue.Vetted)
	approved := queue.NewRedisQueue(rdb, a.cfg.Redis.KeyPrefix, queue.Approved)

	deps := approval.GatewayDeps{
		Drafts:   postgres.NewDraftStore(db),
		Store:    postgres.NewApprovalStore(db),
		Approved: approved,
		Alerter:  a.alerter(),
		Metrics:  rec,
		Logger:   logger.Component(a.logger, "gateway"),
	}
	var editor handler.Editor
	if channel, err := slackbot.NewChannel(a.cfg.Approval.Slack); err != nil {
		a.logger.Warn("slack is not configured, reviews are only reachable over http", "error", err)
	} else {
		deps.Channel = channel
		editor = channel
	}
	if a.cfg.Approval.Slack.SigningSecret == "" {
		a.logger.Warn("slack signing secret is empty, webhook requests are not verified")
	}
	gateway := approval.NewGateway(deps)

	router := handler.NewRouter(handler.RouterDeps{
		Reviewer:      gateway,
		Editor:        editor,
		SigningSecret: a.cfg.Approval.Slack.SigningSecret,
		Metrics:       metrics.Handler(reg),
		Backlog:       approved.Len,
		Logger:        logger.Component(a.logger, "http"),
	})
	server := &http.Server{
		Addr:              a.cfg.Approval.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	intake := usecase.NewApprovalIntake(gateway, usecase.WorkerDeps{
		Queue:       vetted,
		Wait:        a.cfg.Approval.IntakeWait,
		SweepEvery:  a.cfg.Reconcile.Interval,
		SweepWindow: a.cfg.Reconcile.Window,
		Logger:      logger.Component(a.logger, "intake"),
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.Info("approval server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("approval server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return intake.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// Publisher consumes approved drafts and posts them to the configured targets.
func (a *Application) Publisher(ctx context.Context) error {
	db, err := postgres.Open(ctx, a.cfg.Database.DSN)
	if err != nil {
		return err
	}
	defer db.Close()

	rdb, err := queue.Connect(ctx, a.cfg.Redis.URL)
	if err != nil {
		return err
	}
	defer rdb.Close()

	reg := metrics.NewRegistry()
	dispatcher, err := a.dispatcher(db, metrics.NewCollector(reg))
	if err != nil {
		return err
	}
	worker := usecase.NewPublishWorker(dispatcher, nil, usecase.WorkerDeps{
		Queue:       queue.NewRedisQueue(rdb, a.cfg.Redis.KeyPrefix, queue.Approved),
		Wait:        a.cfg.Publish.QueueWait,
		SweepEvery:  a.cfg.Reconcile.Interval,
		SweepWindow: a.cfg.Reconcile.Window,
		Logger:      logger.Component(a.logger, "publisher"),
	})

	g, gctx := errgroup.WithContext(ctx)
	a.serveMetrics(gctx, g, reg)
	g.Go(func() error {
		return worker.Run(gctx)
	})
	return g.Wait()
}

// PublishDraft posts one approved draft directly, skipping targets that already succeeded.
func (a *Application) PublishDraft(ctx context.Context, draftID string, names []string) error {
	db, err := postgres.Open(ctx, a.cfg.Database.DSN)
	if err != nil {
		return err
	}
	defer db.Close()

	reg := metrics.NewRegistry()
	dispatcher, err := a.dispatcher(db, metrics.NewCollector(reg))
	if err != nil {
		return err
	}
	records, err := dispatcher.Publish(ctx, draftID, names)
	for _, rec := range records {
		a.logger.Info("publish result", "draft", draftID, "target", rec.Target, "success", rec.Success, "post", rec.ExternalPostID, "error", rec.Error)
	}
	a.pushMetrics(ctx, "publish", reg)
	return err
}

// serveMetrics adds a /metrics server to g when a listen address is configured.
func (a *Application) serveMetrics(ctx context.Context, g *errgroup.Group, reg prometheus.Gatherer) {
	addr := a.cfg.Metrics.ListenAddr
	if addr == "" {
		return
	}
	g.Go(func() error {
		a.logger.Info("metrics server listening", "addr", addr)
		return metrics.Serve(ctx, addr, reg)
	})
}

// pushMetrics hands the counters of a one-shot command to the Pushgateway, if one is configured.
func (a *Application) pushMetrics(ctx context.Context, job string, reg prometheus.Gatherer) {
	url := a.cfg.Metrics.PushURL
	if url == "" {
		return
	}
	pushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), fetchTimeout)
	defer cancel()
	if err := metrics.Push(pushCtx, url, job, reg); err != nil {
		a.logger.Warn("metrics push failed", "job", job, "error", err)
	}
}

func (a *Application) ingestor(db *sql.DB, rec metrics.Recorder) *usecase.Ingestor {
	client := parser.NewSafeClient(fetchTimeout)

	registry := scanner.NewRegistry()
	registry.Register(parser.NewRSSScanner(client, logger.Component(a.logger, "scanner.rss")))
	registry.Register(parser.NewNewsAPIScanner(client))

	source := parser.NewStrategySource(registry, a.cfg.Sites, a.cfg.Pipeline.NewsLookback, logger.Component(a.logger, "source"))
	return usecase.NewIngestor(usecase.IngestDeps{
		Source:  source,
		News:    postgres.NewNewsStore(db),
		Metrics: rec,
		Logger:  logger.Component(a.logger, "ingest"),
	})
}

func (a *Application) pipeline(db *sql.DB, rdb *redis.Client, ingest bool, rec metrics.Recorder) (*usecase.Pipeline, error) {
	writer, err := llm.New(a.cfg.Generation)
	if err != nil {
		return nil, fmt.Errorf("generation client: %w", err)
	}

	var judge ports.Completer
	if !a.cfg.Critic.SkipJudge {
		judgeCfg := a.cfg.Generation
		if a.cfg.Critic.Model != "" {
			judgeCfg.Model = a.cfg.Critic.Model
		}
		judgeCfg.Temperature = 0
		if judge, err = llm.New(judgeCfg); err != nil {
			return nil, fmt.Errorf("judge client: %w", err)
		}
	}

	styles, err := a.styleCorpus()
	if err != nil {
		return nil, err
	}

	drafts := postgres.NewDraftStore(db)
	coordinator := generation.NewRetryCoordinator(generation.CoordinatorDeps{
		Generator:   generation.NewGenerator(writer, a.cfg.Generation),
		Critic:      generation.NewCritic(judge, a.cfg.Critic),
		Drafts:      drafts,
		Metrics:     rec,
		Logger:      logger.Component(a.logger, "coordinator"),
		MaxAttempts: a.cfg.Pipeline.MaxAttempts,
	})

	deps := usecase.PipelineDeps{
		News:         postgres.NewNewsStore(db),
		Usage:        drafts,
		Styles:       styles,
		Runner:       coordinator,
		Vetted:       queue.NewRedisQueue(rdb, a.cfg.Redis.KeyPrefix, queue.Vetted),
		Alerter:      a.alerter(),
		Logger:       logger.Component(a.logger, "pipeline"),
		Config:       a.cfg.Pipeline,
		StyleSamples: a.cfg.Generation.StyleSamples,
	}
	if ingest {
		deps.Ingestor = a.ingestor(db, rec)
	}
	return usecase.NewPipeline(deps), nil
}

func (a *Application) styleCorpus() (ports.StyleCorpus, error) {
	path := a.cfg.Generation.StyleCorpusPath
	if path == "" {
		a.logger.Warn("no style corpus configured, drafts use the default voice")
		return corpus.New(nil), nil
	}
	c, err := corpus.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("style corpus: %w", err)
	}
	a.logger.Info("style corpus loaded", "path", path, "examples", c.Len())
	return c, nil
}

func (a *Application) dispatcher(db *sql.DB, rec metrics.Recorder) (*publish.Dispatcher, error) {
	var posts []ports.PostTarget
	for _, name := range a.cfg.Publish.Targets {
		target, err := a.target(name)
		if err != nil {
			a.logger.Warn("publish target skipped", "target", name, "error", err)
			continue
		}
		posts = append(posts, target)
	}
	if len(posts) == 0 {
		return nil, fmt.Errorf("no publish target is configured: %w", domain.ErrInvalidInput)
	}

	return publish.NewDispatcher(publish.DispatcherDeps{
		Approvals: postgres.NewApprovalStore(db),
		Records:   postgres.NewPublishStore(db),
		Targets:   posts,
		Alerter:   a.alerter(),
		Metrics:   rec,
		Logger:    logger.Component(a.logger, "dispatcher"),
	}), nil
}

func (a *Application) target(name string) (ports.PostTarget, error) {
	switch name {
	case targets.TwitterName:
		t, err := targets.NewTwitter(a.cfg.Publish.Twitter)
		if err != nil {
			return nil, err
		}
		return t, nil
	case targets.LinkedInName:
		l, err := targets.NewLinkedIn(a.cfg.Publish.LinkedIn)
		if err != nil {
			return nil, err
		}
		return l, nil
	default:
		return nil, fmt.Errorf("unknown target %q", name)
	}
}

func (a *Application) alerter() ports.Alerter {
	tg := telegram.NewAlerter(a.cfg.Alerts.Telegram)
	if tg.Configured() {
		return tg
	}
	return logAlerter{logger: logger.Component(a.logger, "alerts")}
}

// logAlerter is used when no operator channel is configured.
type logAlerter struct {
	logger *slog.Logger
}

func (l logAlerter) Alert(_ context.Context, message string) error {
	l.logger.Error("operator alert", "message", message)
	return nil
}
