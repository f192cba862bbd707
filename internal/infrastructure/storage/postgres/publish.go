package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"NewsPoster/internal/domain"
	"NewsPoster/internal/ports"
)

// PublishStore persists per-target posting outcomes and posting claims.
type PublishStore struct {
	db *sql.DB
}

var _ ports.PublishStore = (*PublishStore)(nil)

// NewPublishStore wires a sql.DB implementation.
func NewPublishStore(db *sql.DB) *PublishStore {
	return &PublishStore{db: db}
}

func (s *PublishStore) Records(ctx context.Context, draftID string) ([]domain.PublishRecord, error) {
	b := psql.Select("draft_id", "target", "success", "external_post_id", "error", "attempted_at").
		From("publish_records").
		Where(sq.Eq{"draft_id": draftID}).
		OrderBy("id ASC")
	rows, err := query(ctx, s.db, b)
	if err != nil {
		return nil, fmt.Errorf("query publish records: %w", err)
	}

	var out []domain.PublishRecord
	for rows.Next() {
		var r domain.PublishRecord
		if err := rows.Scan(&r.DraftID, &r.Target, &r.Success, &r.ExternalPostID, &r.Error, &r.AttemptedAt); err != nil {
			return nil, closeRows(rows, fmt.Errorf("scan publish record: %w", err))
		}
		out = append(out, r)
	}
	if err := closeRows(rows, nil); err != nil {
		return nil, err
	}
	return out, nil
}

// AppendRecord stores an attempt; a second success for the same target is
// dropped by the partial unique index.
func (s *PublishStore) AppendRecord(ctx context.Context, record domain.PublishRecord) error {
	if _, err := exec(ctx, s.db, insertRecordQuery(record)); err != nil {
		return fmt.Errorf("insert publish record: %w", err)
	}
	return nil
}

// Claim inserts the claim row, or takes over one older than lease.
func (s *PublishStore) Claim(ctx context.Context, draftID, target string, lease time.Duration) (bool, error) {
	res, err := exec(ctx, s.db, claimQuery(draftID, target, lease))
	if err != nil {
		return false, fmt.Errorf("claim %s/%s: %w", draftID, target, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

func (s *PublishStore) Release(ctx context.Context, draftID, target string) error {
	b := psql.Delete("publish_claims").
		Where(sq.Eq{"draft_id": draftID, "target": target})
	if _, err := exec(ctx, s.db, b); err != nil {
		return fmt.Errorf("release %s/%s: %w", draftID, target, err)
	}
	return nil
}

func claimQuery(draftID, target string, lease time.Duration) sq.InsertBuilder {
	return psql.Insert("publish_claims").
		Columns("draft_id", "target", "claimed_at").
		Values(draftID, target, sq.Expr("NOW()")).
		Suffix("ON CONFLICT (draft_id, target) DO UPDATE SET claimed_at = NOW() "+
			"WHERE publish_claims.claimed_at < NOW() - make_interval(secs => ?)", lease.Seconds())
}

func insertRecordQuery(r domain.PublishRecord) sq.InsertBuilder {
	return psql.Insert("publish_records").
		Columns("draft_id", "target", "success", "external_post_id", "error", "attempted_at").
		Values(r.DraftID, r.Target, r.Success, r.ExternalPostID, r.Error, r.AttemptedAt).
		Suffix("ON CONFLICT DO NOTHING")
}
