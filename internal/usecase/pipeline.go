package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"NewsPoster/internal/config"
	"NewsPoster/internal/domain"
	"NewsPoster/internal/generation"
	"NewsPoster/internal/ports"
)

// SessionRunner runs one generate/critique session.
type SessionRunner interface {
	Run(ctx context.Context, s generation.Session) (generation.Outcome, error)
}

// NewsUsage reports which news items already fed a draft.
type NewsUsage interface {
	UsedNewsIDs(ctx context.Context, ids []string) (map[string]bool, error)
}

// PipelineDeps wires the generation stage. Ingestor is optional; without it
// the pipeline works on whatever the news store already holds.
type PipelineDeps struct {
	Ingestor     *Ingestor
	News         ports.NewsReader
	Usage        NewsUsage
	Styles       ports.StyleCorpus
	Runner       SessionRunner
	Vetted       ports.DraftQueue
	Alerter      ports.Alerter
	Logger       *slog.Logger
	Config       config.PipelineConfig
	StyleSamples int
}

// RunReport summarizes one pipeline run.
type RunReport struct {
	Sessions int
	Vetted   []string
	Rejected int
	Failed   int
}

// Pipeline batches fresh news into sessions and hands vetted drafts to review.
type Pipeline struct {
	ingestor     *Ingestor
	news         ports.NewsReader
	usage        NewsUsage
	styles       ports.StyleCorpus
	runner       SessionRunner
	vetted       ports.DraftQueue
	alerter      ports.Alerter
	logger       *slog.Logger
	cfg          config.PipelineConfig
	styleSamples int
	now          func() time.Time
	newID        func() string
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	cfg := deps.Config
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 1
	}
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = 1
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	return &Pipeline{
		ingestor:     deps.Ingestor,
		news:         deps.News,
		usage:        deps.Usage,
		styles:       deps.Styles,
		runner:       deps.Runner,
		vetted:       deps.Vetted,
		alerter:      deps.Alerter,
		logger:       logger,
		cfg:          cfg,
		styleSamples: deps.StyleSamples,
		now:          time.Now,
		newID:        uuid.NewString,
	}
}

// Run ingests (when configured), then runs one session per batch of unused news.
// Sessions are independent: a rejected or failed session does not stop the rest,
// and every session error is returned joined.
func (p *Pipeline) Run(ctx context.Context) (RunReport, error) {
	var report RunReport
	if p.runner == nil || p.news == nil {
		return report, nil
	}

	if p.ingestor != nil {
		if _, err := p.ingestor.Ingest(ctx); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return report, ctxErr
			}
			p.logger.Warn("ingestion failed, using last news snapshot", "error", err)
		}
	}

	fresh, err := p.freshNews(ctx)
	if err != nil {
		return report, err
	}
	if len(fresh) == 0 {
		p.logger.Info("no unused news, nothing to generate")
		return report, nil
	}

	batches := batch(fresh, p.cfg.BatchSize, p.cfg.MaxSessions)
	report.Sessions = len(batches)
	p.logger.Info("starting generation", "news", len(fresh), "sessions", len(batches))

	var (
		mu   sync.Mutex
		errs []error
	)
	g := new(errgroup.Group)
	g.SetLimit(p.cfg.Concurrency)

	for _, items := range batches {
		g.Go(func() error {
			id, err := p.runSession(ctx, items)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				report.Vetted = append(report.Vetted, id)
			case errors.Is(err, domain.ErrCriticRejection):
				report.Rejected++
				errs = append(errs, err)
			default:
				report.Failed++
				errs = append(errs, err)
			}
			return nil
		})
	}
	_ = g.Wait()

	p.logger.Info("generation finished",
		"sessions", report.Sessions,
		"vetted", len(report.Vetted),
		"rejected", report.Rejected,
		"failed", report.Failed,
	)
	return report, errors.Join(errs...)
}

func (p *Pipeline) freshNews(ctx context.Context) ([]domain.NewsItem, error) {
	var since time.Time
	if p.cfg.NewsLookback > 0 {
		since = p.now().Add(-p.cfg.NewsLookback)
	}
	items, err := p.news.RecentNews(ctx, since, 0)
	if err != nil {
		return nil, fmt.Errorf("load news: %w", err)
	}
	if p.usage == nil || len(items) == 0 {
		return items, nil
	}

	used, err := p.usage.UsedNewsIDs(ctx, domain.NewsIDs(items))
	if err != nil {
		return nil, fmt.Errorf("load used news: %w", err)
	}
	fresh := items[:0]
	for _, item := range items {
		if !used[item.ID] {
			fresh = append(fresh, item)
		}
	}
	return fresh, nil
}

func (p *Pipeline) runSession(ctx context.Context, items []domain.NewsItem) (string, error) {
	session := generation.Session{ID: p.newID(), News: items}
	log := p.logger.With("session", session.ID)

	if p.styles != nil && p.styleSamples > 0 {
		styles, err := p.styles.SampleStyles(ctx, p.styleSamples)
		if err != nil {
			log.Warn("style samples unavailable", "error", err)
		}
		session.Styles = styles
	}

	out, err := p.runner.Run(ctx, session)
	if err != nil {
		var rejection *domain.CriticRejectionError
		if errors.As(err, &rejection) {
			log.Error("session rejected by critic", "draft", rejection.DraftID, "attempts", rejection.Attempts, "violated", rejection.Violated)
			p.alert(ctx, log, rejectionMessage(rejection, items))
		} else {
			log.Error("session failed", "error", err)
		}
		return "", err
	}

	if p.vetted != nil {
		if err := p.vetted.Enqueue(ctx, out.Draft.ID); err != nil {
			log.Error("vetted draft not queued", "draft", out.Draft.ID, "error", err)
			p.alert(ctx, log, fmt.Sprintf("Vetted draft %s was not queued for review: %v", out.Draft.ID, err))
			return "", fmt.Errorf("queue draft %s: %w", out.Draft.ID, err)
		}
	}
	log.Info("draft queued for review", "draft", out.Draft.ID, "attempt", out.Draft.AttemptNumber)
	return out.Draft.ID, nil
}

func (p *Pipeline) alert(ctx context.Context, log *slog.Logger, message string) {
	if p.alerter == nil {
		return
	}
	if err := p.alerter.Alert(ctx, message); err != nil {
		log.Warn("operator alert failed", "error", err)
	}
}

func rejectionMessage(rej *domain.CriticRejectionError, items []domain.NewsItem) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Draft rejected by critic after %d attempts\n", rej.Attempts)
	fmt.Fprintf(&b, "Session: %s\nDraft: %s\n", rej.SessionID, rej.DraftID)
	if len(rej.Violated) > 0 {
		ids := make([]string, len(rej.Violated))
		for i, id := range rej.Violated {
			ids[i] = string(id)
		}
		fmt.Fprintf(&b, "Violated: %s\n", strings.Join(ids, ", "))
	}
	for _, item := range items {
		fmt.Fprintf(&b, "- %s\n", item.Title)
	}
	return strings.TrimRight(b.String(), "\n")
}

func batch(items []domain.NewsItem, size, limit int) [][]domain.NewsItem {
	var out [][]domain.NewsItem
	for start := 0; start < len(items) && len(out) < limit; start += size {
		end := min(start+size, len(items))
		out = append(out, items[start:end])
	}
	return out
}
