// Package postgres implements store.Repository on pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mwhittaker87/clearcrawl/internal/config"
	"github.com/mwhittaker87/clearcrawl/internal/store"
)

// db is the subset of pgxpool.Pool the repository uses. Tests substitute a
// pgxmock pool through the same interface.
type db interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repo is the pgx-backed repository.
type Repo struct {
	db   db
	pool *pgxpool.Pool
}

// New connects a pool and applies the schema.
func New(ctx context.Context, cfg config.DBConfig) (*Repo, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	repo := &Repo{db: pool, pool: pool}
	if err := repo.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return repo, nil
}

// NewWithDB wraps an existing querier, used by tests.
func NewWithDB(q db) *Repo {
	return &Repo{db: q}
}

// Close releases the pool.
func (r *Repo) Close() {
	if r.pool != nil {
		r.pool.Close()
	}
}

func (r *Repo) ensureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := r.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

// UpsertStore inserts or refreshes a store row, latest attributes winning.
func (r *Repo) UpsertStore(ctx context.Context, s store.Store) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO stores (id, retailer, name, city, state, zip)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			retailer = EXCLUDED.retailer,
			name = EXCLUDED.name,
			city = EXCLUDED.city,
			state = EXCLUDED.state,
			zip = EXCLUDED.zip`,
		s.ID, s.Retailer, s.Name, s.City, s.State, s.Zip)
	if err != nil {
		return fmt.Errorf("upsert store %s: %w", s.ID, err)
	}
	return nil
}

// UpsertItem inserts or refreshes a catalog item keyed by (sku, retailer).
func (r *Repo) UpsertItem(ctx context.Context, item store.Item) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO items (sku, retailer, title, category, product_url, image_url)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (sku, retailer) DO UPDATE SET
			title = EXCLUDED.title,
			category = EXCLUDED.category,
			product_url = EXCLUDED.product_url,
			image_url = EXCLUDED.image_url`,
		item.SKU, item.Retailer, item.Title, item.Category, item.ProductURL, item.ImageURL)
	if err != nil {
		return fmt.Errorf("upsert item %s: %w", item.SKU, err)
	}
	return nil
}

// InsertObservation appends one price fact and returns its id.
func (r *Repo) InsertObservation(ctx context.Context, obs store.Observation) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO observations
			(ts, retailer, store_id, zip, sku, price, was_price, pct_off,
			 availability, clearance)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`,
		obs.TS, obs.Retailer, obs.StoreID, obs.Zip, obs.SKU,
		obs.Price, obs.WasPrice, obs.PctOff, obs.Availability, obs.Clearance,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert observation %s/%s: %w", obs.StoreID, obs.SKU, err)
	}
	return id, nil
}

// GetLastObservation returns the newest observation for (storeID, sku).
func (r *Repo) GetLastObservation(ctx context.Context, storeID, sku string) (store.Observation, error) {
	var obs store.Observation
	err := r.db.QueryRow(ctx, `
		SELECT id, ts, retailer, store_id, zip, sku, price, was_price, pct_off,
		       availability, clearance
		FROM observations
		WHERE store_id = $1 AND sku = $2
		ORDER BY ts DESC
		LIMIT 1`,
		storeID, sku,
	).Scan(&obs.ID, &obs.TS, &obs.Retailer, &obs.StoreID, &obs.Zip, &obs.SKU,
		&obs.Price, &obs.WasPrice, &obs.PctOff, &obs.Availability, &obs.Clearance)
	if errors.Is(err, pgx.ErrNoRows) {
		return store.Observation{}, store.ErrNotFound
	}
	if err != nil {
		return store.Observation{}, fmt.Errorf("get last observation %s/%s: %w", storeID, sku, err)
	}
	return obs, nil
}

// InsertAlert appends one fired transition and returns its id.
func (r *Repo) InsertAlert(ctx context.Context, alert store.Alert) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO alerts (ts, type, retailer, store_id, sku, price, was_price, pct_off, note)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`,
		alert.TS, string(alert.Type), alert.Retailer, alert.StoreID, alert.SKU,
		alert.Price, alert.WasPrice, alert.PctOff, alert.Note,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert alert %s/%s: %w", alert.StoreID, alert.SKU, err)
	}
	return id, nil
}

// InsertQuarantine preserves a rejected row with its raw payload.
func (r *Repo) InsertQuarantine(ctx context.Context, rec store.QuarantineRecord) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO quarantine (ts, retailer, store_id, sku, zip, state, category, reason, payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		rec.TS, rec.Retailer, rec.StoreID, rec.SKU, rec.Zip, rec.State, rec.Category, rec.Reason, rec.Payload)
	if err != nil {
		return fmt.Errorf("insert quarantine: %w", err)
	}
	return nil
}

// PurgeQuarantine deletes quarantine rows older than the cutoff.
func (r *Repo) PurgeQuarantine(ctx context.Context, olderThan time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM quarantine WHERE ts < $1`, olderThan)
	if err != nil {
		return 0, fmt.Errorf("purge quarantine: %w", err)
	}
	return tag.RowsAffected(), nil
}

// LatestObservations returns the newest observation per (store, sku) joined
// with item and store attributes, newest first.
func (r *Repo) LatestObservations(ctx context.Context, limit int) ([]store.FlattenedRow, error) {
	rows, err := r.db.Query(ctx, `
		SELECT o.ts, o.retailer, o.store_id, s.name, o.zip, o.sku,
		       i.title, i.category, o.price, o.was_price, o.pct_off,
		       o.clearance, o.availability, i.product_url, i.image_url
		FROM (
			SELECT *, ROW_NUMBER() OVER (PARTITION BY store_id, sku ORDER BY ts DESC) AS rn
			FROM observations
		) o
		JOIN items i ON i.sku = o.sku AND i.retailer = o.retailer
		JOIN stores s ON s.id = o.store_id
		WHERE o.rn = 1
		ORDER BY o.ts DESC
		LIMIT $1`,
		limit)
	if err != nil {
		return nil, fmt.Errorf("latest observations: %w", err)
	}
	defer rows.Close()

	var out []store.FlattenedRow
	for rows.Next() {
		var row store.FlattenedRow
		if err := rows.Scan(&row.TS, &row.Retailer, &row.StoreID, &row.StoreName,
			&row.Zip, &row.SKU, &row.Title, &row.Category, &row.Price, &row.WasPrice,
			&row.PctOff, &row.Clearance, &row.Availability, &row.ProductURL,
			&row.ImageURL); err != nil {
			return nil, fmt.Errorf("scan latest observation: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("latest observations: %w", err)
	}
	return out, nil
}

// LastObservationTime reports the newest observation timestamp overall.
func (r *Repo) LastObservationTime(ctx context.Context) (time.Time, error) {
	var ts *time.Time
	err := r.db.QueryRow(ctx, `SELECT MAX(ts) FROM observations`).Scan(&ts)
	if err != nil {
		return time.Time{}, fmt.Errorf("last observation time: %w", err)
	}
	if ts == nil {
		return time.Time{}, store.ErrNotFound
	}
	return *ts, nil
}

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS stores (
		id       TEXT PRIMARY KEY,
		retailer TEXT NOT NULL,
		name     TEXT NOT NULL DEFAULT '',
		city     TEXT NOT NULL DEFAULT '',
		state    TEXT NOT NULL DEFAULT '',
		zip      TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS items (
		sku         TEXT NOT NULL,
		retailer    TEXT NOT NULL,
		title       TEXT NOT NULL DEFAULT '',
		category    TEXT NOT NULL DEFAULT '',
		product_url TEXT NOT NULL DEFAULT '',
		image_url   TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (sku, retailer)
	)`,
	`CREATE TABLE IF NOT EXISTS observations (
		id           BIGSERIAL PRIMARY KEY,
		ts           TIMESTAMPTZ NOT NULL,
		retailer     TEXT NOT NULL,
		store_id     TEXT NOT NULL,
		zip          TEXT NOT NULL DEFAULT '',
		sku          TEXT NOT NULL,
		price        DOUBLE PRECISION,
		was_price    DOUBLE PRECISION,
		pct_off      DOUBLE PRECISION,
		availability TEXT NOT NULL DEFAULT '',
		clearance    BOOLEAN NOT NULL DEFAULT FALSE
	)`,
	`CREATE INDEX IF NOT EXISTS observations_store_sku_ts
		ON observations (store_id, sku, ts DESC)`,
	`CREATE TABLE IF NOT EXISTS alerts (
		id        BIGSERIAL PRIMARY KEY,
		ts        TIMESTAMPTZ NOT NULL,
		type      TEXT NOT NULL,
		retailer  TEXT NOT NULL,
		store_id  TEXT NOT NULL,
		sku       TEXT NOT NULL,
		price     DOUBLE PRECISION,
		was_price DOUBLE PRECISION,
		pct_off   DOUBLE PRECISION,
		note      TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS quarantine (
		id       BIGSERIAL PRIMARY KEY,
		ts       TIMESTAMPTZ NOT NULL,
		retailer TEXT NOT NULL,
		store_id TEXT NOT NULL DEFAULT '',
		sku      TEXT NOT NULL DEFAULT '',
		zip      TEXT NOT NULL DEFAULT '',
		state    TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL DEFAULT '',
		reason   TEXT NOT NULL,
		payload  TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS quarantine_ts ON quarantine (ts)`,
}
