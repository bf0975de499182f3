package calls

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
)

// PostgresRepo persists calls in Postgres via database/sql (pgx stdlib).
//
// It assumes the following table exists:
//
//	CREATE TABLE calls (
//	    id          TEXT PRIMARY KEY,
//	    contact_id  TEXT NOT NULL REFERENCES contacts(id),
//	    campaign_id TEXT REFERENCES campaigns(id),
//	    direction   TEXT NOT NULL,
//	    status      TEXT NOT NULL,
//	    transcript  TEXT NOT NULL DEFAULT '',
//	    analysis    JSONB,
//	    duration    INT NOT NULL DEFAULT 0,
//	    created_at  TIMESTAMPTZ NOT NULL,
//	    ended_at    TIMESTAMPTZ
//	);
//	CREATE INDEX calls_campaign_created_idx ON calls (campaign_id, created_at DESC);
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) Create(ctx context.Context, c Call) error {
	if c.ID == "" || c.ContactID == "" {
		return ErrInvalidArgument
	}
	analysis, err := marshalAnalysis(c.Analysis)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO calls (id, contact_id, campaign_id, direction, status, transcript, analysis, duration, created_at, ended_at)
VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, $8, $9, $10)
`
	_, err = r.db.ExecContext(ctx, q,
		c.ID, c.ContactID, c.CampaignID, c.Direction, c.Status,
		c.Transcript, analysis, c.DurationSeconds, c.CreatedAt, c.EndedAt,
	)
	return err
}

func (r *PostgresRepo) Get(ctx context.Context, id string) (Call, error) {
	const q = selectCall + ` WHERE c.id = $1`
	return scanCall(r.db.QueryRowContext(ctx, q, id))
}

func (r *PostgresRepo) LatestByPhone(ctx context.Context, phone string) (Call, error) {
	if phone == "" {
		return Call{}, ErrInvalidArgument
	}
	const q = selectCall + `
JOIN contacts ct ON ct.id = c.contact_id
WHERE ct.phone = $1
ORDER BY c.created_at DESC
LIMIT 1
`
	return scanCall(r.db.QueryRowContext(ctx, q, phone))
}

func (r *PostgresRepo) UpdateStatus(ctx context.Context, id string, status CallStatus) error {
	if err := r.checkTransition(ctx, id, status); err != nil {
		return err
	}
	const q = `UPDATE calls SET status = $2 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, q, id, status)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *PostgresRepo) Finalize(ctx context.Context, id string, out Outcome) error {
	if err := r.checkTransition(ctx, id, out.Status); err != nil {
		return err
	}
	analysis, err := marshalAnalysis(out.Analysis)
	if err != nil {
		return err
	}
	const q = `
UPDATE calls
SET status = $2, transcript = $3, analysis = $4, duration = $5, ended_at = $6
WHERE id = $1
`
	res, err := r.db.ExecContext(ctx, q, id, out.Status, out.Transcript, analysis, out.DurationSeconds, out.EndedAt)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// checkTransition guards the state machine at the write path. The read and
// the update are not atomic; sequential dispatch plus single-row terminal
// writes keep that window harmless.
func (r *PostgresRepo) checkTransition(ctx context.Context, id string, to CallStatus) error {
	var current CallStatus
	const q = `SELECT status FROM calls WHERE id = $1`
	if err := r.db.QueryRowContext(ctx, q, id).Scan(&current); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	if !CanTransition(current, to) {
		return ErrInvalidTransition
	}
	return nil
}

func (r *PostgresRepo) ListByCampaign(ctx context.Context, campaignID string, limit int) ([]Call, error) {
	q := selectCall + ` WHERE c.campaign_id = $1 ORDER BY c.created_at DESC`
	args := []any{campaignID}
	if limit > 0 {
		q += ` LIMIT $2`
		args = append(args, limit)
	}
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Call, 0)
	for rows.Next() {
		c, err := scanCall(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

const selectCall = `
SELECT c.id, c.contact_id, COALESCE(c.campaign_id, ''), c.direction, c.status,
       c.transcript, c.analysis, c.duration, c.created_at, c.ended_at
FROM calls c`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCall(row rowScanner) (Call, error) {
	var c Call
	var analysis []byte
	if err := row.Scan(
		&c.ID, &c.ContactID, &c.CampaignID, &c.Direction, &c.Status,
		&c.Transcript, &analysis, &c.DurationSeconds, &c.CreatedAt, &c.EndedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Call{}, ErrNotFound
		}
		return Call{}, err
	}
	if len(analysis) > 0 {
		if err := json.Unmarshal(analysis, &c.Analysis); err != nil {
			return Call{}, err
		}
	}
	return c, nil
}

func marshalAnalysis(m map[string]any) ([]byte, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
