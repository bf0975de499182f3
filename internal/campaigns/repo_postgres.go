package campaigns

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"dialer-platform/internal/calls"
	"dialer-platform/pkg/utils"
)

// PostgresRepo persists campaigns and contacts via database/sql (pgx stdlib).
//
// Assumed tables:
//
//	CREATE TABLE campaigns (
//	    id              TEXT PRIMARY KEY,
//	    name            TEXT NOT NULL,
//	    status          TEXT NOT NULL,
//	    prompt_template TEXT NOT NULL DEFAULT '',
//	    created_at      TIMESTAMPTZ NOT NULL
//	);
//	CREATE TABLE contacts (
//	    id          TEXT PRIMARY KEY,
//	    campaign_id TEXT REFERENCES campaigns(id),
//	    phone       TEXT NOT NULL,
//	    name        TEXT NOT NULL DEFAULT '',
//	    attributes  JSONB,
//	    created_at  TIMESTAMPTZ NOT NULL
//	);
//	CREATE INDEX contacts_phone_idx ON contacts (phone);
//	CREATE INDEX contacts_campaign_idx ON contacts (campaign_id, created_at);
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) CreateCampaign(ctx context.Context, c Campaign) error {
	if c.ID == "" {
		return ErrInvalidArgument
	}
	const q = `
INSERT INTO campaigns (id, name, status, prompt_template, created_at)
VALUES ($1, $2, $3, $4, $5)
`
	_, err := r.db.ExecContext(ctx, q, c.ID, c.Name, c.Status, c.PromptTemplate, c.CreatedAt)
	return err
}

func (r *PostgresRepo) CreateCampaignWithContacts(ctx context.Context, c Campaign, contacts []Contact) error {
	if c.ID == "" {
		return ErrInvalidArgument
	}
	for _, ct := range contacts {
		if ct.ID == "" || ct.Phone == "" {
			return ErrInvalidArgument
		}
	}
	const q = `
INSERT INTO campaigns (id, name, status, prompt_template, created_at)
VALUES ($1, $2, $3, $4, $5)
`
	return utils.WithTx(ctx, r.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, q, c.ID, c.Name, c.Status, c.PromptTemplate, c.CreatedAt); err != nil {
			return err
		}
		return insertContacts(ctx, tx, contacts)
	})
}

func (r *PostgresRepo) GetCampaign(ctx context.Context, id string) (Campaign, error) {
	const q = `
SELECT id, name, status, prompt_template, created_at
FROM campaigns
WHERE id = $1
`
	var c Campaign
	if err := r.db.QueryRowContext(ctx, q, id).Scan(&c.ID, &c.Name, &c.Status, &c.PromptTemplate, &c.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Campaign{}, ErrNotFound
		}
		return Campaign{}, err
	}
	return c, nil
}

func (r *PostgresRepo) ListCampaigns(ctx context.Context) ([]Campaign, error) {
	const q = `
SELECT id, name, status, prompt_template, created_at
FROM campaigns
ORDER BY created_at DESC
`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Campaign, 0)
	for rows.Next() {
		var c Campaign
		if err := rows.Scan(&c.ID, &c.Name, &c.Status, &c.PromptTemplate, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) GetCampaignDetail(ctx context.Context, id string) (Detail, error) {
	camp, err := r.GetCampaign(ctx, id)
	if err != nil {
		return Detail{}, err
	}
	d := Detail{Campaign: camp}

	contacts, err := r.listContacts(ctx, id)
	if err != nil {
		return Detail{}, err
	}

	history, err := r.listCallsByContact(ctx, id)
	if err != nil {
		return Detail{}, err
	}

	for _, ct := range contacts {
		d.Contacts = append(d.Contacts, ContactWithCalls{Contact: ct, Calls: history[ct.ID]})
	}
	return d, nil
}

func (r *PostgresRepo) CreateContacts(ctx context.Context, contacts []Contact) error {
	for _, ct := range contacts {
		if ct.ID == "" || ct.Phone == "" {
			return ErrInvalidArgument
		}
	}
	return utils.WithTx(ctx, r.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		return insertContacts(ctx, tx, contacts)
	})
}

func insertContacts(ctx context.Context, tx *sql.Tx, contacts []Contact) error {
	const q = `
INSERT INTO contacts (id, campaign_id, phone, name, attributes, created_at)
VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6)
`
	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, ct := range contacts {
		attrs, err := marshalAttributes(ct.Attributes)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, ct.ID, ct.CampaignID, ct.Phone, ct.Name, attrs, ct.CreatedAt); err != nil {
			return err
		}
	}
	return nil
}

func (r *PostgresRepo) FindContactByPhone(ctx context.Context, phone string) (Contact, error) {
	if phone == "" {
		return Contact{}, ErrInvalidArgument
	}
	const q = `
SELECT id, COALESCE(campaign_id, ''), phone, name, attributes, created_at
FROM contacts
WHERE phone = $1
ORDER BY created_at
LIMIT 1
`
	return scanContact(r.db.QueryRowContext(ctx, q, phone))
}

func (r *PostgresRepo) CreateContact(ctx context.Context, c Contact) error {
	return r.CreateContacts(ctx, []Contact{c})
}

func (r *PostgresRepo) listContacts(ctx context.Context, campaignID string) ([]Contact, error) {
	const q = `
SELECT id, COALESCE(campaign_id, ''), phone, name, attributes, created_at
FROM contacts
WHERE campaign_id = $1
ORDER BY created_at
`
	rows, err := r.db.QueryContext(ctx, q, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Contact, 0)
	for rows.Next() {
		ct, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ct)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) listCallsByContact(ctx context.Context, campaignID string) (map[string][]calls.Call, error) {
	const q = `
SELECT c.id, c.contact_id, COALESCE(c.campaign_id, ''), c.direction, c.status, c.duration, c.created_at
FROM calls c
JOIN contacts ct ON ct.id = c.contact_id
WHERE ct.campaign_id = $1
ORDER BY c.created_at
`
	rows, err := r.db.QueryContext(ctx, q, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string][]calls.Call{}
	for rows.Next() {
		var c calls.Call
		if err := rows.Scan(&c.ID, &c.ContactID, &c.CampaignID, &c.Direction, &c.Status, &c.DurationSeconds, &c.CreatedAt); err != nil {
			return nil, err
		}
		out[c.ContactID] = append(out[c.ContactID], c)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanContact(row rowScanner) (Contact, error) {
	var ct Contact
	var attrs []byte
	if err := row.Scan(&ct.ID, &ct.CampaignID, &ct.Phone, &ct.Name, &attrs, &ct.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Contact{}, ErrNotFound
		}
		return Contact{}, err
	}
	if len(attrs) > 0 {
		if err := json.Unmarshal(attrs, &ct.Attributes); err != nil {
			return Contact{}, err
		}
	}
	return ct, nil
}

func marshalAttributes(m map[string]any) ([]byte, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}
