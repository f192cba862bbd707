// Package publish posts approved drafts to external targets.
package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"NewsPoster/internal/domain"
	"NewsPoster/internal/metrics"
	"NewsPoster/internal/ports"
)

const (
	errTargetNotConfigured = "target not configured"
	defaultClaimLease      = 10 * time.Minute
)

type claimState int

const (
	targetPosted claimState = iota
	targetAlreadyPublished
	targetBusy
)

// DispatcherDeps wires the dispatcher. Approvals is read-only. ClaimLease
// bounds how long a crashed poster blocks its (draft, target) pair.
type DispatcherDeps struct {
	Approvals  ports.ApprovalReader
	Records    ports.PublishStore
	Targets    []ports.PostTarget
	Alerter    ports.Alerter
	Metrics    metrics.Recorder
	Logger     *slog.Logger
	ClaimLease time.Duration
}

// Dispatcher posts drafts that carry an approve decision, one record per target.
type Dispatcher struct {
	approvals ports.ApprovalReader
	records   ports.PublishStore
	targets   map[string]ports.PostTarget
	order     []string
	alerter   ports.Alerter
	metrics   metrics.Recorder
	logger    *slog.Logger
	lease     time.Duration
	now       func() time.Time
}

func NewDispatcher(deps DispatcherDeps) *Dispatcher {
	rec := deps.Metrics
	if rec == nil {
		rec = metrics.Discard{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	lease := deps.ClaimLease
	if lease <= 0 {
		lease = defaultClaimLease
	}
	d := &Dispatcher{
		approvals: deps.Approvals,
		records:   deps.Records,
		targets:   map[string]ports.PostTarget{},
		alerter:   deps.Alerter,
		metrics:   rec,
		logger:    logger,
		lease:     lease,
		now:       time.Now,
	}
	for _, t := range deps.Targets {
		if _, dup := d.targets[t.Name()]; dup {
			continue
		}
		d.targets[t.Name()] = t
		d.order = append(d.order, t.Name())
	}
	return d
}

// ApprovedText returns the text a reviewer approved, or domain.ErrNotApproved.
func (d *Dispatcher) ApprovedText(ctx context.Context, draftID string) (string, error) {
	decision, err := d.approvals.Decision(ctx, draftID)
	if errors.Is(err, domain.ErrNotFound) {
		return "", fmt.Errorf("draft %s: %w", draftID, domain.ErrNotApproved)
	}
	if err != nil {
		return "", fmt.Errorf("load decision for %s: %w", draftID, err)
	}
	if decision.Decision != domain.DecisionApprove {
		return "", fmt.Errorf("draft %s decision is %s: %w", draftID, decision.Decision, domain.ErrNotApproved)
	}
	if decision.EditedText != "" {
		return decision.EditedText, nil
	}

	entry, err := d.approvals.Pending(ctx, draftID)
	if err != nil {
		return "", fmt.Errorf("load approved draft %s: %w", draftID, err)
	}
	return entry.Draft.Text, nil
}

// Publish posts an approved draft to each requested target independently.
// Targets that already have a successful record are skipped and their record
// is returned as is. A target claimed by a concurrent Publish is skipped and
// left out of the result. An empty target list means every configured target.
// Per-target failures are recorded and reported together as domain.ErrPublishFailure.
func (d *Dispatcher) Publish(ctx context.Context, draftID string, targets []string) ([]domain.PublishRecord, error) {
	text, err := d.ApprovedText(ctx, draftID)
	if err != nil {
		return nil, err
	}

	existing, err := d.records.Records(ctx, draftID)
	if err != nil {
		return nil, fmt.Errorf("load publish records for %s: %w", draftID, err)
	}
	done := domain.SuccessfulTargets(existing)

	if len(targets) == 0 {
		targets = d.order
	}

	var (
		out    []domain.PublishRecord
		failed []string
		seen   = map[string]struct{}{}
	)
	for _, name := range targets {
		name = strings.TrimSpace(name)
		if _, dup := seen[name]; dup || name == "" {
			continue
		}
		seen[name] = struct{}{}

		if rec, ok := done[name]; ok {
			d.logger.Debug("target already published, skipping", "draft", draftID, "target", name)
			out = append(out, rec)
			continue
		}

		rec, state, err := d.publishTarget(ctx, draftID, name, text)
		if err != nil {
			return out, err
		}
		switch state {
		case targetBusy:
			d.logger.Warn("target claimed by another publisher, skipping", "draft", draftID, "target", name)
			continue
		case targetAlreadyPublished:
			out = append(out, rec)
			continue
		}
		d.metrics.RecordPublish(name, rec.Success)
		out = append(out, rec)

		if !rec.Success {
			failed = append(failed, name)
			d.logger.Warn("publish failed", "draft", draftID, "target", name, "error", rec.Error)
			continue
		}
		d.logger.Info("draft published", "draft", draftID, "target", name, "post", rec.ExternalPostID)
	}

	if len(failed) == 0 {
		return out, nil
	}

	failure := fmt.Errorf("draft %s to %s: %w", draftID, strings.Join(failed, ", "), domain.ErrPublishFailure)
	if d.alerter != nil {
		if err := d.alerter.Alert(ctx, "Publish failed: "+failure.Error()); err != nil {
			d.logger.Warn("operator alert failed", "error", err)
		}
	}
	return out, failure
}

// publishTarget posts under the (draft, target) claim. The records are read
// again after claiming since another holder may have finished in between.
func (d *Dispatcher) publishTarget(ctx context.Context, draftID, name, text string) (domain.PublishRecord, claimState, error) {
	claimed, err := d.records.Claim(ctx, draftID, name, d.lease)
	if err != nil {
		return domain.PublishRecord{}, targetBusy, fmt.Errorf("claim %s/%s: %w", draftID, name, err)
	}
	if !claimed {
		return domain.PublishRecord{}, targetBusy, nil
	}

	release := true
	defer func() {
		if !release {
			return
		}
		if err := d.records.Release(context.WithoutCancel(ctx), draftID, name); err != nil {
			d.logger.Warn("release publish claim failed", "draft", draftID, "target", name, "error", err)
		}
	}()

	existing, err := d.records.Records(ctx, draftID)
	if err != nil {
		return domain.PublishRecord{}, targetBusy, fmt.Errorf("load publish records for %s: %w", draftID, err)
	}
	if rec, ok := domain.SuccessfulTargets(existing)[name]; ok {
		return rec, targetAlreadyPublished, nil
	}

	rec := d.post(ctx, draftID, name, text)
	if err := d.records.AppendRecord(ctx, rec); err != nil {
		// An unrecorded post keeps its claim until the lease runs out.
		release = !rec.Success
		return rec, targetPosted, fmt.Errorf("store publish record %s/%s: %w", draftID, name, err)
	}
	return rec, targetPosted, nil
}

// Reconcile publishes drafts approved at or after since that have no record
// at all for some configured target, which is what a lost hand-off from the
// approval stage leaves behind. Targets that already failed are left to an
// operator. It returns how many drafts it picked up.
func (d *Dispatcher) Reconcile(ctx context.Context, since time.Time) (int, error) {
	approved, err := d.approvals.ApprovedSince(ctx, since)
	if err != nil {
		return 0, fmt.Errorf("list approved drafts: %w", err)
	}

	var (
		picked int
		errs   []error
	)
	for _, decision := range approved {
		existing, err := d.records.Records(ctx, decision.DraftID)
		if err != nil {
			errs = append(errs, fmt.Errorf("load publish records for %s: %w", decision.DraftID, err))
			continue
		}
		missing := d.untried(existing)
		if len(missing) == 0 {
			continue
		}

		picked++
		d.logger.Warn("approved draft was never published, picking it up", "draft", decision.DraftID, "targets", missing)
		if _, err := d.Publish(ctx, decision.DraftID, missing); err != nil && !errors.Is(err, domain.ErrPublishFailure) {
			errs = append(errs, err)
		}
	}
	return picked, errors.Join(errs...)
}

// untried lists configured targets with no record of any kind.
func (d *Dispatcher) untried(records []domain.PublishRecord) []string {
	tried := make(map[string]struct{}, len(records))
	for _, r := range records {
		tried[r.Target] = struct{}{}
	}
	var out []string
	for _, name := range d.order {
		if _, ok := tried[name]; !ok {
			out = append(out, name)
		}
	}
	return out
}

func (d *Dispatcher) post(ctx context.Context, draftID, name, text string) domain.PublishRecord {
	rec := domain.PublishRecord{DraftID: draftID, Target: name}

	target, ok := d.targets[name]
	if !ok {
		rec.Error = errTargetNotConfigured
		rec.AttemptedAt = d.now().UTC()
		return rec
	}

	id, err := target.Post(ctx, text, "")
	rec.AttemptedAt = d.now().UTC()
	if err != nil {
		rec.Error = err.Error()
		return rec
	}
	rec.Success = true
	rec.ExternalPostID = id
	return rec
}
