package settings

import (
	"context"
	"database/sql"
	"errors"
)

// PostgresRepo persists settings via database/sql (pgx stdlib).
//
// Assumed table:
//
//	CREATE TABLE settings (
//	    key   TEXT PRIMARY KEY,
//	    value TEXT NOT NULL
//	);
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) Get(ctx context.Context, key string) (string, error) {
	const q = `SELECT value FROM settings WHERE key = $1`
	var v string
	if err := r.db.QueryRowContext(ctx, q, key).Scan(&v); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", err
	}
	return v, nil
}

func (r *PostgresRepo) Set(ctx context.Context, key, value string) error {
	const q = `
INSERT INTO settings (key, value) VALUES ($1, $2)
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value
`
	_, err := r.db.ExecContext(ctx, q, key, value)
	return err
}

func (r *PostgresRepo) All(ctx context.Context) (map[string]string, error) {
	const q = `SELECT key, value FROM settings`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]string{}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, rows.Err()
}
