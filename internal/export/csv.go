// Package export writes the latest-observation snapshot to CSV for
// spreadsheet users.
package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/mwhittaker87/clearcrawl/internal/store"
)

var header = []string{
	"ts_utc", "retailer", "store_id", "store_name", "zip", "sku", "title",
	"category", "price", "price_was", "pct_off", "clearance", "availability",
	"product_url", "image_url",
}

// CSV exports the newest observation per (store, SKU) after each cycle.
type CSV struct {
	Repo  store.Repository
	Path  string
	Limit int
}

// New constructs the exporter.
func New(repo store.Repository, path string, limit int) *CSV {
	if limit <= 0 {
		limit = 1000
	}
	return &CSV{Repo: repo, Path: path, Limit: limit}
}

// Write queries the snapshot and replaces the file atomically.
func (e *CSV) Write(ctx context.Context) (int, error) {
	rows, err := e.Repo.LatestObservations(ctx, e.Limit)
	if err != nil {
		return 0, fmt.Errorf("export query: %w", err)
	}

	if dir := filepath.Dir(e.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return 0, fmt.Errorf("export dir: %w", err)
		}
	}
	tmp := e.Path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return 0, fmt.Errorf("create export: %w", err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		f.Close()
		return 0, fmt.Errorf("write header: %w", err)
	}
	for _, row := range rows {
		if err := w.Write(formatRow(row)); err != nil {
			f.Close()
			return 0, fmt.Errorf("write row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return 0, fmt.Errorf("flush export: %w", err)
	}
	if err := f.Close(); err != nil {
		return 0, fmt.Errorf("close export: %w", err)
	}
	if err := os.Rename(tmp, e.Path); err != nil {
		return 0, fmt.Errorf("rename export: %w", err)
	}
	return len(rows), nil
}

func formatRow(row store.FlattenedRow) []string {
	return []string{
		row.TS.UTC().Format(time.RFC3339),
		row.Retailer,
		row.StoreID,
		row.StoreName,
		row.Zip,
		row.SKU,
		row.Title,
		row.Category,
		formatPrice(row.Price),
		formatPrice(row.WasPrice),
		formatPct(row.PctOff),
		strconv.FormatBool(row.Clearance),
		row.Availability,
		row.ProductURL,
		row.ImageURL,
	}
}

func formatPrice(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', 2, 64)
}

func formatPct(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', 4, 64)
}
