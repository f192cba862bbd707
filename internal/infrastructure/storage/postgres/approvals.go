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

// ApprovalStore persists pending reviews, edits and terminal decisions.
// Edits and decisions lock the pending row, so they are serialized per draft.
type ApprovalStore struct {
	db *sql.DB
}

var _ ports.ApprovalStore = (*ApprovalStore)(nil)

// NewApprovalStore wires a sql.DB implementation.
func NewApprovalStore(db *sql.DB) *ApprovalStore {
	return &ApprovalStore{db: db}
}

var pendingColumns = []string{
	"p.draft_id", "p.session_id", "p.source_news_ids", "p.original_text", "p.attempt_number",
	"p.draft_created_at", "p.text", "p.status", "p.revision", "p.channel_ref",
	"p.last_edited_by", "p.submitted_at", "p.updated_at",
}

func (s *ApprovalStore) Register(ctx context.Context, entry domain.PendingApproval) (domain.PendingApproval, bool, error) {
	res, err := exec(ctx, s.db, registerQuery(entry))
	if err != nil {
		return domain.PendingApproval{}, false, fmt.Errorf("register %s: %w", entry.Draft.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return domain.PendingApproval{}, false, fmt.Errorf("rows affected: %w", err)
	}

	stored, err := s.Pending(ctx, entry.Draft.ID)
	if err != nil {
		return domain.PendingApproval{}, false, err
	}
	return stored, n == 1, nil
}

func (s *ApprovalStore) SetChannelRef(ctx context.Context, draftID, ref string) error {
	b := psql.Update("approval_pending").
		Set("channel_ref", ref).
		Where(sq.Eq{"draft_id": draftID})
	res, err := exec(ctx, s.db, b)
	if err != nil {
		return fmt.Errorf("set channel ref %s: %w", draftID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("pending %s: %w", draftID, domain.ErrNotFound)
	}
	return nil
}

func (s *ApprovalStore) AppendEdit(ctx context.Context, edit domain.Edit) (domain.PendingApproval, error) {
	var updated domain.PendingApproval
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		p, err := loadPending(ctx, tx, selectPendingQuery(edit.DraftID).Suffix("FOR UPDATE OF p"))
		if err != nil {
			return err
		}
		if p.Status != domain.StatusPendingApproval {
			return fmt.Errorf("draft %s: %w", edit.DraftID, domain.ErrAlreadyResolved)
		}

		insert := psql.Insert("approval_edits").
			Columns("draft_id", "text", "actor", "edited_at").
			Values(edit.DraftID, edit.Text, edit.Actor, edit.EditedAt)
		if _, err := exec(ctx, tx, insert); err != nil {
			return fmt.Errorf("insert edit: %w", err)
		}

		p.Text = edit.Text
		p.Revision++
		p.LastEditedBy = edit.Actor
		p.UpdatedAt = edit.EditedAt
		update := psql.Update("approval_pending").
			Set("text", p.Text).
			Set("revision", p.Revision).
			Set("last_edited_by", p.LastEditedBy).
			Set("updated_at", p.UpdatedAt).
			Where(sq.Eq{"draft_id": edit.DraftID})
		if _, err := exec(ctx, tx, update); err != nil {
			return fmt.Errorf("update pending text: %w", err)
		}
		updated = p
		return nil
	})
	return updated, err
}

// Decide records the first terminal decision; the primary key on
// approval_decisions makes later writers fail with ErrAlreadyResolved.
func (s *ApprovalStore) Decide(ctx context.Context, decision domain.ApprovalDecision) (domain.ApprovalDecision, error) {
	var status domain.DraftStatus
	switch decision.Decision {
	case domain.DecisionApprove:
		status = domain.StatusApproved
	case domain.DecisionReject:
		status = domain.StatusRejectedByHuman
	default:
		return domain.ApprovalDecision{}, fmt.Errorf("decision %q is not terminal: %w", decision.Decision, domain.ErrInvalidInput)
	}

	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		p, err := loadPending(ctx, tx, selectPendingQuery(decision.DraftID).Suffix("FOR UPDATE OF p"))
		if err != nil {
			return err
		}
		if decision.Decision == domain.DecisionApprove && p.Edited() {
			decision.EditedText = p.Text
		}

		res, err := exec(ctx, tx, insertDecisionQuery(decision))
		if err != nil {
			return fmt.Errorf("insert decision: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("draft %s: %w", decision.DraftID, domain.ErrAlreadyResolved)
		}

		update := psql.Update("approval_pending").
			Set("status", string(status)).
			Set("updated_at", decision.DecidedAt).
			Where(sq.Eq{"draft_id": decision.DraftID})
		if _, err := exec(ctx, tx, update); err != nil {
			return fmt.Errorf("update pending status: %w", err)
		}
		return nil
	})
	if err != nil {
		return domain.ApprovalDecision{}, err
	}
	return decision, nil
}

func (s *ApprovalStore) Pending(ctx context.Context, draftID string) (domain.PendingApproval, error) {
	return loadPending(ctx, s.db, selectPendingQuery(draftID))
}

func (s *ApprovalStore) Decision(ctx context.Context, draftID string) (domain.ApprovalDecision, error) {
	b := psql.Select(decisionColumns...).
		From("approval_decisions").
		Where(sq.Eq{"draft_id": draftID})
	row, err := queryRow(ctx, s.db, b)
	if err != nil {
		return domain.ApprovalDecision{}, err
	}

	d, err := scanDecision(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ApprovalDecision{}, fmt.Errorf("decision %s: %w", draftID, domain.ErrNotFound)
		}
		return domain.ApprovalDecision{}, fmt.Errorf("scan decision: %w", err)
	}
	return d, nil
}

// ApprovedSince returns approve decisions taken at or after since, oldest first.
func (s *ApprovalStore) ApprovedSince(ctx context.Context, since time.Time) ([]domain.ApprovalDecision, error) {
	rows, err := query(ctx, s.db, approvedSinceQuery(since))
	if err != nil {
		return nil, fmt.Errorf("query approved: %w", err)
	}

	var out []domain.ApprovalDecision
	for rows.Next() {
		d, err := scanDecision(rows)
		if err != nil {
			return nil, closeRows(rows, fmt.Errorf("scan decision: %w", err))
		}
		out = append(out, d)
	}
	if err := closeRows(rows, nil); err != nil {
		return nil, err
	}
	return out, nil
}

// ListPending returns unresolved entries, oldest first.
func (s *ApprovalStore) ListPending(ctx context.Context) ([]domain.PendingApproval, error) {
	rows, err := query(ctx, s.db, listPendingQuery())
	if err != nil {
		return nil, fmt.Errorf("query pending: %w", err)
	}

	var out []domain.PendingApproval
	for rows.Next() {
		p, err := scanPending(rows)
		if err != nil {
			return nil, closeRows(rows, err)
		}
		out = append(out, p)
	}
	if err := closeRows(rows, nil); err != nil {
		return nil, err
	}
	return out, nil
}

func registerQuery(entry domain.PendingApproval) sq.InsertBuilder {
	d := entry.Draft
	return psql.Insert("approval_pending").
		Columns("draft_id", "session_id", "source_news_ids", "original_text", "attempt_number",
			"draft_created_at", "text", "status", "revision", "channel_ref", "last_edited_by",
			"submitted_at", "updated_at").
		Values(d.ID, d.SessionID, pq.StringArray(d.SourceNewsIDs), d.Text, d.AttemptNumber,
			d.CreatedAt, entry.Text, string(entry.Status), entry.Revision, entry.ChannelRef, entry.LastEditedBy,
			entry.SubmittedAt, entry.UpdatedAt).
		Suffix("ON CONFLICT (draft_id) DO NOTHING")
}

func insertDecisionQuery(d domain.ApprovalDecision) sq.InsertBuilder {
	return psql.Insert("approval_decisions").
		Columns("draft_id", "decision", "actor", "edited_text", "decided_at").
		Values(d.DraftID, string(d.Decision), d.Actor, d.EditedText, d.DecidedAt).
		Suffix("ON CONFLICT (draft_id) DO NOTHING")
}

var decisionColumns = []string{"draft_id", "decision", "actor", "edited_text", "decided_at"}

func approvedSinceQuery(since time.Time) sq.SelectBuilder {
	return psql.Select(decisionColumns...).
		From("approval_decisions").
		Where(sq.Eq{"decision": string(domain.DecisionApprove)}).
		Where(sq.GtOrEq{"decided_at": since}).
		OrderBy("decided_at ASC")
}

func scanDecision(row rowScanner) (domain.ApprovalDecision, error) {
	var (
		d        domain.ApprovalDecision
		decision string
	)
	if err := row.Scan(&d.DraftID, &decision, &d.Actor, &d.EditedText, &d.DecidedAt); err != nil {
		return domain.ApprovalDecision{}, err
	}
	d.Decision = domain.Decision(decision)
	return d, nil
}

func selectPendingQuery(draftID string) sq.SelectBuilder {
	return psql.Select(pendingColumns...).
		From("approval_pending p").
		Where(sq.Eq{"p.draft_id": draftID})
}

func listPendingQuery() sq.SelectBuilder {
	return psql.Select(pendingColumns...).
		From("approval_pending p").
		LeftJoin("approval_decisions d ON d.draft_id = p.draft_id").
		Where(sq.Eq{"d.draft_id": nil}).
		OrderBy("p.submitted_at ASC")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPending(row rowScanner) (domain.PendingApproval, error) {
	var (
		p      domain.PendingApproval
		ids    pq.StringArray
		status string
	)
	err := row.Scan(&p.Draft.ID, &p.Draft.SessionID, &ids, &p.Draft.Text, &p.Draft.AttemptNumber,
		&p.Draft.CreatedAt, &p.Text, &status, &p.Revision, &p.ChannelRef,
		&p.LastEditedBy, &p.SubmittedAt, &p.UpdatedAt)
	if err != nil {
		return domain.PendingApproval{}, err
	}
	p.Draft.SourceNewsIDs = []string(ids)
	p.Draft.Status = domain.StatusPendingApproval
	p.Status = domain.DraftStatus(status)
	return p, nil
}

func loadPending(ctx context.Context, db execer, b sq.SelectBuilder) (domain.PendingApproval, error) {
	row, err := queryRow(ctx, db, b)
	if err != nil {
		return domain.PendingApproval{}, err
	}
	p, err := scanPending(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.PendingApproval{}, fmt.Errorf("pending: %w", domain.ErrNotFound)
		}
		return domain.PendingApproval{}, fmt.Errorf("scan pending: %w", err)
	}
	return p, nil
}
