package audit

import (
	"context"
	"database/sql"
)

// PostgresRepo appends audit events via database/sql (pgx stdlib).
//
// Assumed table (INSERT-only; consider a trigger to block UPDATE/DELETE):
//
//	CREATE TABLE audit_events (
//	    id          TEXT PRIMARY KEY,
//	    type        TEXT NOT NULL,
//	    campaign_id TEXT,
//	    call_id     TEXT,
//	    phone       TEXT,
//	    message     TEXT NOT NULL DEFAULT '',
//	    metadata    TEXT NOT NULL DEFAULT '',
//	    created_at  TIMESTAMPTZ NOT NULL
//	);
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) Append(ctx context.Context, e Event) error {
	const q = `
INSERT INTO audit_events (id, type, campaign_id, call_id, phone, message, metadata, created_at)
VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), NULLIF($5, ''), $6, $7, $8)
`
	_, err := r.db.ExecContext(ctx, q, e.ID, e.Type, e.CampaignID, e.CallID, e.Phone, e.Message, e.Metadata, e.CreatedAt)
	return err
}
