// Package store defines the persistence types and the Repository interface
// shared by the pipeline, exporter, and health surface. The interface keeps
// the crawl core decoupled from the Postgres implementation.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by lookups when no row matches.
var ErrNotFound = errors.New("not found")

// Store identifies one retail location. The id is retailer-assigned, or
// synthesized as "zip:<zip>" when the store context never resolved.
type Store struct {
	ID       string
	Retailer string
	Name     string
	City     string
	State    string
	Zip      string
}

// Item is a catalog entry identified by (SKU, retailer). Latest-wins on
// every attribute.
type Item struct {
	SKU        string
	Retailer   string
	Title      string
	Category   string
	ProductURL string
	ImageURL   string
}

// Observation is one immutable, timestamped price fact. Current state for a
// (store, SKU) pair is always the most recent observation by timestamp.
type Observation struct {
	ID           int64
	TS           time.Time
	Retailer     string
	StoreID      string
	StoreName    string
	Zip          string
	SKU          string
	Title        string
	Category     string
	Price        *float64
	WasPrice     *float64
	PctOff       *float64
	Availability string
	ProductURL   string
	ImageURL     string
	Clearance    bool
}

// AlertType partitions alerts by the transition rule that fired.
type AlertType string

// Alert transition rules.
const (
	AlertNewClearance AlertType = "new_clearance"
	AlertPriceDrop    AlertType = "price_drop"
)

// Alert records one fired transition rule. Never mutated.
type Alert struct {
	ID       int64
	TS       time.Time
	Type     AlertType
	Retailer string
	StoreID  string
	SKU      string
	Price    *float64
	WasPrice *float64
	PctOff   *float64
	Note     string
}

// QuarantineRecord preserves a harvested row that failed validation.
type QuarantineRecord struct {
	ID       int64
	TS       time.Time
	Retailer string
	StoreID  string
	SKU      string
	Zip      string
	State    string
	Category string
	Reason   string
	Payload  string
}

// FlattenedRow is one denormalized latest-observation row for CSV export.
type FlattenedRow struct {
	TS           time.Time
	Retailer     string
	StoreID      string
	StoreName    string
	Zip          string
	SKU          string
	Title        string
	Category     string
	Price        *float64
	WasPrice     *float64
	PctOff       *float64
	Clearance    bool
	Availability string
	ProductURL   string
	ImageURL     string
}

// Repository is the persistence collaborator consumed by the pipeline,
// exporter, and health surface.
type Repository interface {
	UpsertStore(ctx context.Context, s Store) error
	UpsertItem(ctx context.Context, item Item) error
	InsertObservation(ctx context.Context, obs Observation) (int64, error)
	// GetLastObservation returns the most recent observation for the logical
	// key, or ErrNotFound when the key has never been observed.
	GetLastObservation(ctx context.Context, storeID, sku string) (Observation, error)
	InsertAlert(ctx context.Context, alert Alert) (int64, error)
	InsertQuarantine(ctx context.Context, rec QuarantineRecord) error
	// PurgeQuarantine bulk-deletes quarantine rows older than the cutoff and
	// returns the number removed.
	PurgeQuarantine(ctx context.Context, olderThan time.Time) (int64, error)
	// LatestObservations returns the newest observation per (store, SKU)
	// joined with item and store attributes, newest first.
	LatestObservations(ctx context.Context, limit int) ([]FlattenedRow, error)
	// LastObservationTime reports the newest observation timestamp across all
	// keys, for the health surface.
	LastObservationTime(ctx context.Context) (time.Time, error)
	Close()
}
