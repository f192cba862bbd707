package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"NewsPoster/internal/approval"
	"NewsPoster/internal/domain"
	"NewsPoster/internal/ports"
)

const (
	defaultQueueWait   = 5 * time.Second
	defaultRetryDelay  = 10 * time.Second
	defaultSweepEvery  = time.Minute
	defaultSweepWindow = 72 * time.Hour
)

// Submitter hands a vetted draft to human review. Reconcile picks up vetted
// drafts whose queue hand-off was lost.
type Submitter interface {
	Submit(ctx context.Context, draftID string) (approval.Handle, error)
	Reconcile(ctx context.Context, since time.Time) (int, error)
}

// Publisher posts an approved draft to the given targets. Reconcile picks up
// approved drafts whose queue hand-off was lost.
type Publisher interface {
	Publish(ctx context.Context, draftID string, targets []string) ([]domain.PublishRecord, error)
	Reconcile(ctx context.Context, since time.Time) (int, error)
}

// WorkerDeps configures a queue consumer. A negative RetryDelay requeues
// immediately. The consumer reconciles state changed in the last SweepWindow
// on start and every SweepEvery; a negative SweepEvery disables it.
type WorkerDeps struct {
	Queue       ports.DraftQueue
	Wait        time.Duration
	RetryDelay  time.Duration
	SweepEvery  time.Duration
	SweepWindow time.Duration
	Logger      *slog.Logger
}

type worker struct {
	queue       ports.DraftQueue
	wait        time.Duration
	retryDelay  time.Duration
	sweepEvery  time.Duration
	sweepWindow time.Duration
	logger      *slog.Logger
}

func newWorker(deps WorkerDeps) worker {
	w := worker{
		queue:       deps.Queue,
		wait:        deps.Wait,
		retryDelay:  deps.RetryDelay,
		sweepEvery:  deps.SweepEvery,
		sweepWindow: deps.SweepWindow,
		logger:      deps.Logger,
	}
	if w.wait <= 0 {
		w.wait = defaultQueueWait
	}
	if w.sweepEvery == 0 {
		w.sweepEvery = defaultSweepEvery
	}
	if w.sweepWindow <= 0 {
		w.sweepWindow = defaultSweepWindow
	}
	if w.retryDelay < 0 {
		w.retryDelay = 0
	} else if deps.RetryDelay == 0 {
		w.retryDelay = defaultRetryDelay
	}
	if w.logger == nil {
		w.logger = slog.New(slog.DiscardHandler)
	}
	return w
}

type sweepFunc func(ctx context.Context, since time.Time) (int, error)

// loop consumes the queue until ctx is done, running reconcile between reads
// when it is due. handle returns retry=true when the draft should go back
// on the queue.
func (w worker) loop(ctx context.Context, handle func(context.Context, string) (bool, error), reconcile sweepFunc) error {
	var nextSweep time.Time
	for {
		if w.sweepEvery > 0 && !time.Now().Before(nextSweep) {
			w.sweep(ctx, reconcile)
			nextSweep = time.Now().Add(w.sweepEvery)
		}
		if _, err := w.step(ctx, handle); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			w.logger.Error("queue operation failed", "error", err)
			if !sleep(ctx, w.retryDelay) {
				return nil
			}
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

func (w worker) step(ctx context.Context, handle func(context.Context, string) (bool, error)) (bool, error) {
	id, ok, err := w.queue.Dequeue(ctx, w.wait)
	if err != nil {
		return false, fmt.Errorf("dequeue: %w", err)
	}
	if !ok {
		return false, nil
	}

	retry, err := handle(ctx, id)
	if err == nil {
		return true, nil
	}
	if !retry {
		w.logger.Error("draft dropped", "draft", id, "error", err)
		return true, nil
	}

	w.logger.Warn("draft requeued", "draft", id, "retry_in", w.retryDelay, "error", err)
	if !sleep(ctx, w.retryDelay) {
		ctx = context.WithoutCancel(ctx)
	}
	if qErr := w.queue.Enqueue(ctx, id); qErr != nil {
		return true, fmt.Errorf("requeue %s: %w", id, qErr)
	}
	return true, nil
}

func (w worker) sweep(ctx context.Context, reconcile sweepFunc) (int, error) {
	picked, err := reconcile(ctx, time.Now().Add(-w.sweepWindow))
	if err != nil && ctx.Err() == nil {
		w.logger.Error("reconcile sweep failed", "picked", picked, "error", err)
	} else if picked > 0 {
		w.logger.Info("reconcile sweep picked up drafts", "picked", picked)
	}
	return picked, err
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// ApprovalIntake moves vetted drafts from the queue into the approval gateway.
type ApprovalIntake struct {
	worker
	gateway Submitter
}

// NewApprovalIntake builds the vetted-queue consumer.
func NewApprovalIntake(gateway Submitter, deps WorkerDeps) *ApprovalIntake {
	return &ApprovalIntake{worker: newWorker(deps), gateway: gateway}
}

// Run consumes the vetted queue until ctx is cancelled.
func (a *ApprovalIntake) Run(ctx context.Context) error {
	a.logger.Info("approval intake started")
	return a.loop(ctx, a.submit, a.gateway.Reconcile)
}

// Sweep submits vetted drafts from the sweep window that never reached review.
func (a *ApprovalIntake) Sweep(ctx context.Context) (int, error) {
	return a.sweep(ctx, a.gateway.Reconcile)
}

// RunOnce handles at most one queued draft; handled is false when the queue was empty.
func (a *ApprovalIntake) RunOnce(ctx context.Context) (handled bool, err error) {
	return a.step(ctx, a.submit)
}

func (a *ApprovalIntake) submit(ctx context.Context, id string) (bool, error) {
	handle, err := a.gateway.Submit(ctx, id)
	switch {
	case err == nil:
		a.logger.Info("draft awaiting review", "draft", id, "ref", handle.ChannelRef)
		return false, nil
	case errors.Is(err, domain.ErrNotVetted), errors.Is(err, domain.ErrNotFound):
		return false, err
	default:
		return true, err
	}
}

// PublishWorker moves approved drafts from the queue to the publish targets.
type PublishWorker struct {
	worker
	publisher Publisher
	targets   []string
}

// NewPublishWorker builds the approved-queue consumer. An empty target list
// publishes to every configured target.
func NewPublishWorker(publisher Publisher, targets []string, deps WorkerDeps) *PublishWorker {
	return &PublishWorker{worker: newWorker(deps), publisher: publisher, targets: targets}
}

// Run consumes the approved queue until ctx is cancelled.
func (p *PublishWorker) Run(ctx context.Context) error {
	p.logger.Info("publish worker started", "targets", p.targets)
	return p.loop(ctx, p.publish, p.publisher.Reconcile)
}

// Sweep publishes approved drafts from the sweep window that were never attempted.
func (p *PublishWorker) Sweep(ctx context.Context) (int, error) {
	return p.sweep(ctx, p.publisher.Reconcile)
}

// RunOnce handles at most one queued draft.
func (p *PublishWorker) RunOnce(ctx context.Context) (handled bool, err error) {
	return p.step(ctx, p.publish)
}

// Per-target failures are already recorded and alerted by the dispatcher;
// they are retried by an operator, not by the queue.
func (p *PublishWorker) publish(ctx context.Context, id string) (bool, error) {
	records, err := p.publisher.Publish(ctx, id, p.targets)
	switch {
	case err == nil:
		p.logger.Info("draft publish complete", "draft", id, "targets", len(records))
		return false, nil
	case errors.Is(err, domain.ErrPublishFailure),
		errors.Is(err, domain.ErrNotApproved),
		errors.Is(err, domain.ErrNotFound):
		return false, err
	default:
		return true, err
	}
}
