package settings

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Document holds the platform settings as one JSON document.
type Document struct {
	SiteName        string `json:"site_name"`
	ContactEmail    string `json:"contact_email"`
	DefaultCurrency string `json:"default_currency"`
	AllowAnonymous  bool   `json:"allow_anonymous"`
	MaintenanceMode bool   `json:"maintenance_mode"`
}

// PublicView is the subset safe to expose without authentication.
type PublicView struct {
	SiteName        string `json:"site_name"`
	ContactEmail    string `json:"contact_email"`
	DefaultCurrency string `json:"default_currency"`
	AllowAnonymous  bool   `json:"allow_anonymous"`
}

// Defaults returns the document used before any admin has saved one.
func Defaults() Document {
	return Document{
		SiteName:        "Ataa",
		DefaultCurrency: "sar",
		AllowAnonymous:  true,
	}
}

// Public projects the safe subset of a document.
func (d Document) Public() PublicView {
	return PublicView{
		SiteName:        d.SiteName,
		ContactEmail:    d.ContactEmail,
		DefaultCurrency: d.DefaultCurrency,
		AllowAnonymous:  d.AllowAnonymous,
	}
}

// Repository persists the settings document.
type Repository interface {
	Load(ctx context.Context) (Document, error)
	Save(ctx context.Context, doc Document) error
}

const documentKey = "platform"

// PGRepository stores the document as a single JSON row.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// Load reads the stored document; defaults apply before the first save.
func (r *PGRepository) Load(ctx context.Context) (Document, error) {
	var raw []byte
	err := r.pool.QueryRow(ctx, `SELECT value FROM settings WHERE key = $1`, documentKey).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Defaults(), nil
		}
		return Document{}, err
	}
	doc := Defaults()
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Document{}, err
	}
	return doc, nil
}

// Save upserts the document.
func (r *PGRepository) Save(ctx context.Context, doc Document) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO settings (key, value, updated_at) VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`,
		documentKey, raw)
	return err
}

var _ Repository = (*PGRepository)(nil)
