package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"NewsPoster/internal/domain"
	"NewsPoster/internal/ports"
)

// DraftStore persists drafts and their critique history.
type DraftStore struct {
	db *sql.DB
}

var _ ports.DraftStore = (*DraftStore)(nil)

// NewDraftStore wires a sql.DB implementation.
func NewDraftStore(db *sql.DB) *DraftStore {
	return &DraftStore{db: db}
}

func (s *DraftStore) SaveDraft(ctx context.Context, draft domain.Draft) error {
	b := psql.Insert("drafts").
		Columns("id", "session_id", "source_news_ids", "text", "attempt_number", "status", "created_at").
		Values(draft.ID, draft.SessionID, pq.StringArray(draft.SourceNewsIDs), draft.Text, draft.AttemptNumber, string(draft.Status), draft.CreatedAt)
	if _, err := exec(ctx, s.db, b); err != nil {
		return fmt.Errorf("insert draft %s: %w", draft.ID, err)
	}
	return nil
}

func (s *DraftStore) Draft(ctx context.Context, id string) (domain.Draft, error) {
	return loadDraft(ctx, s.db, selectDraftQuery(id))
}

// DraftsByStatus lists drafts in status created at or after since, oldest first.
func (s *DraftStore) DraftsByStatus(ctx context.Context, status domain.DraftStatus, since time.Time) ([]domain.Draft, error) {
	rows, err := query(ctx, s.db, draftsByStatusQuery(status, since))
	if err != nil {
		return nil, fmt.Errorf("query drafts by status: %w", err)
	}

	var out []domain.Draft
	for rows.Next() {
		d, err := scanDraft(rows)
		if err != nil {
			return nil, closeRows(rows, fmt.Errorf("scan draft: %w", err))
		}
		out = append(out, d)
	}
	if err := closeRows(rows, nil); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *DraftStore) AppendCritique(ctx context.Context, result domain.CritiqueResult) error {
	if _, err := exec(ctx, s.db, insertCritiqueQuery(result)); err != nil {
		return fmt.Errorf("insert critique for %s: %w", result.DraftID, err)
	}
	return nil
}

// Critiques returns the history oldest first.
func (s *DraftStore) Critiques(ctx context.Context, draftID string) ([]domain.CritiqueResult, error) {
	rows, err := query(ctx, s.db, critiquesQuery(draftID, false))
	if err != nil {
		return nil, fmt.Errorf("query critiques: %w", err)
	}
	return scanCritiques(rows, draftID)
}

func (s *DraftStore) UpdateStatus(ctx context.Context, id string, from, to domain.DraftStatus) error {
	return s.transition(ctx, s.db, id, from, to)
}

// MarkPendingApproval locks the draft, checks that its latest critique
// passed and only then moves it to pending_approval.
func (s *DraftStore) MarkPendingApproval(ctx context.Context, id string) error {
	return withTx(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := loadDraft(ctx, tx, selectDraftQuery(id).Suffix("FOR UPDATE")); err != nil {
			return err
		}

		rows, err := query(ctx, tx, critiquesQuery(id, true))
		if err != nil {
			return fmt.Errorf("query latest critique: %w", err)
		}
		history, err := scanCritiques(rows, id)
		if err != nil {
			return err
		}
		if len(history) == 0 || !history[0].Passed() {
			return fmt.Errorf("draft %s: %w", id, domain.ErrNotVetted)
		}

		return s.transition(ctx, tx, id, domain.StatusCritiqued, domain.StatusPendingApproval)
	})
}

// UsedNewsIDs reports which of ids already fed a stored draft.
func (s *DraftStore) UsedNewsIDs(ctx context.Context, ids []string) (map[string]bool, error) {
	used := map[string]bool{}
	if len(ids) == 0 {
		return used, nil
	}

	rows, err := query(ctx, s.db, usedNewsQuery(ids))
	if err != nil {
		return nil, fmt.Errorf("query used news: %w", err)
	}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, closeRows(rows, fmt.Errorf("scan news id: %w", err))
		}
		used[id] = true
	}
	if err := closeRows(rows, nil); err != nil {
		return nil, err
	}
	return used, nil
}

func (s *DraftStore) transition(ctx context.Context, db execer, id string, from, to domain.DraftStatus) error {
	if !domain.CanTransition(from, to) {
		return fmt.Errorf("draft %s %s -> %s: %w", id, from, to, domain.ErrInvalidTransition)
	}

	res, err := exec(ctx, db, updateStatusQuery(id, from, to))
	if err != nil {
		return fmt.Errorf("update draft %s status: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 1 {
		return nil
	}

	current, err := loadDraft(ctx, db, selectDraftQuery(id))
	if err != nil {
		return err
	}
	return fmt.Errorf("draft %s is %s, expected %s: %w", id, current.Status, from, domain.ErrInvalidTransition)
}

var draftColumns = []string{"id", "session_id", "source_news_ids", "text", "attempt_number", "status", "created_at"}

func selectDraftQuery(id string) sq.SelectBuilder {
	return psql.Select(draftColumns...).
		From("drafts").
		Where(sq.Eq{"id": id})
}

func draftsByStatusQuery(status domain.DraftStatus, since time.Time) sq.SelectBuilder {
	return psql.Select(draftColumns...).
		From("drafts").
		Where(sq.Eq{"status": string(status)}).
		Where(sq.GtOrEq{"created_at": since}).
		OrderBy("created_at ASC")
}

func loadDraft(ctx context.Context, db execer, b sq.SelectBuilder) (domain.Draft, error) {
	row, err := queryRow(ctx, db, b)
	if err != nil {
		return domain.Draft{}, err
	}
	d, err := scanDraft(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Draft{}, fmt.Errorf("draft: %w", domain.ErrNotFound)
		}
		return domain.Draft{}, fmt.Errorf("scan draft: %w", err)
	}
	return d, nil
}

func scanDraft(row rowScanner) (domain.Draft, error) {
	var (
		d      domain.Draft
		ids    pq.StringArray
		status string
	)
	if err := row.Scan(&d.ID, &d.SessionID, &ids, &d.Text, &d.AttemptNumber, &status, &d.CreatedAt); err != nil {
		return domain.Draft{}, err
	}
	d.SourceNewsIDs = []string(ids)
	d.Status = domain.DraftStatus(status)
	return d, nil
}

func insertCritiqueQuery(r domain.CritiqueResult) sq.InsertBuilder {
	violated := make(pq.StringArray, 0, len(r.ViolatedRules))
	for _, rule := range r.ViolatedRules {
		violated = append(violated, string(rule))
	}
	return psql.Insert("critiques").
		Columns("draft_id", "verdict", "violated_rules", "feedback", "rule_set_version", "created_at").
		Values(r.DraftID, string(r.Verdict), violated, r.FeedbackText, r.RuleSetVersion, r.CreatedAt)
}

// critiquesQuery lists the history oldest first, or only the newest entry.
func critiquesQuery(draftID string, latestOnly bool) sq.SelectBuilder {
	b := psql.Select("verdict", "violated_rules", "feedback", "rule_set_version", "created_at").
		From("critiques").
		Where(sq.Eq{"draft_id": draftID})
	if latestOnly {
		return b.OrderBy("id DESC").Limit(1)
	}
	return b.OrderBy("id ASC")
}

func scanCritiques(rows *sql.Rows, draftID string) ([]domain.CritiqueResult, error) {
	var out []domain.CritiqueResult
	for rows.Next() {
		var (
			r        domain.CritiqueResult
			verdict  string
			violated pq.StringArray
		)
		if err := rows.Scan(&verdict, &violated, &r.FeedbackText, &r.RuleSetVersion, &r.CreatedAt); err != nil {
			return nil, closeRows(rows, fmt.Errorf("scan critique: %w", err))
		}
		r.DraftID = draftID
		r.Verdict = domain.Verdict(verdict)
		for _, rule := range violated {
			r.ViolatedRules = append(r.ViolatedRules, domain.RuleID(rule))
		}
		out = append(out, r)
	}
	if err := closeRows(rows, nil); err != nil {
		return nil, err
	}
	return out, nil
}

func updateStatusQuery(id string, from, to domain.DraftStatus) sq.UpdateBuilder {
	return psql.Update("drafts").
		Set("status", string(to)).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": id, "status": string(from)})
}

func usedNewsQuery(ids []string) sq.SelectBuilder {
	return psql.Select("DISTINCT u.news_id").
		From("drafts d, unnest(d.source_news_ids) AS u(news_id)").
		Where("u.news_id = ANY(?)", pq.StringArray(ids)).
		Where(sq.NotEq{"d.status": string(domain.StatusAbandoned)})
}
