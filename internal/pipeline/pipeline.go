// Package pipeline turns raw harvested records into durable observations:
// validation and quarantine, store/item upserts, append-only price facts,
// and the alert transition rules.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mwhittaker87/clearcrawl/internal/notify"
	"github.com/mwhittaker87/clearcrawl/internal/progress"
	"github.com/mwhittaker87/clearcrawl/internal/scrape"
	"github.com/mwhittaker87/clearcrawl/internal/store"
)

// Clock supplies observation timestamps.
type Clock interface {
	Now() time.Time
}

// Publisher receives quarantine and alert progress events. *progress.Hub
// satisfies it; nil disables publishing.
type Publisher interface {
	Publish(ev progress.Event)
}

// StoreMeta identifies the bound store for a batch of records.
type StoreMeta struct {
	ID    string
	Name  string
	State string
	Zip   string
}

// Stats summarizes one ProcessRecords call.
type Stats struct {
	Observed     int
	Quarantined  int
	Skipped      int
	NewClearance int
	PriceDrops   int
}

// Pipeline persists records and evaluates alerts.
type Pipeline struct {
	Repo           store.Repository
	Notifier       notify.Notifier
	Clock          Clock
	Log            *zap.Logger
	Retailer       string
	CategoryFilter string
	Thresholds     Thresholds
	Progress       Publisher
}

// New constructs a Pipeline. prog may be nil.
func New(repo store.Repository, notifier notify.Notifier, clock Clock, log *zap.Logger,
	retailer, categoryFilter string, thresholds Thresholds, prog Publisher) *Pipeline {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &Pipeline{
		Repo:           repo,
		Notifier:       notifier,
		Clock:          clock,
		Log:            log.Named("pipeline"),
		Retailer:       retailer,
		CategoryFilter: categoryFilter,
		Thresholds:     thresholds,
		Progress:       prog,
	}
}

func (p *Pipeline) publish(ev progress.Event) {
	if p.Progress != nil {
		p.Progress.Publish(ev)
	}
}

// ProcessRecords ingests one harvested batch for a bound store. Individual
// record failures quarantine or log; only persistence-level failures on the
// store row itself abort the batch.
func (p *Pipeline) ProcessRecords(ctx context.Context, meta StoreMeta, records []scrape.ProductRecord) (Stats, error) {
	var stats Stats

	if err := p.Repo.UpsertStore(ctx, store.Store{
		ID:       meta.ID,
		Retailer: p.Retailer,
		Name:     meta.Name,
		City:     CityFromStoreName(meta.Name),
		State:    meta.State,
		Zip:      meta.Zip,
	}); err != nil {
		return stats, fmt.Errorf("upsert store: %w", err)
	}

	now := p.Clock.Now()
	for _, rec := range records {
		if !categoryAccepted(p.CategoryFilter, rec.Category) {
			stats.Skipped++
			continue
		}
		if rec.SKU == "" {
			rec.SKU = scrape.SKUFromURL(rec.ProductURL)
		}
		if rec.SKU == "" {
			p.quarantine(ctx, meta, rec, now, ReasonMissingSKU)
			stats.Quarantined++
			continue
		}

		v, reason, ok := validateRecord(rec)
		if !ok {
			p.quarantine(ctx, meta, rec, now, reason)
			stats.Quarantined++
			continue
		}

		if err := p.Repo.UpsertItem(ctx, store.Item{
			SKU:        rec.SKU,
			Retailer:   p.Retailer,
			Title:      rec.Title,
			Category:   rec.Category,
			ProductURL: rec.ProductURL,
			ImageURL:   rec.ImageURL,
		}); err != nil {
			p.Log.Error("item upsert failed, record dropped",
				zap.String("sku", rec.SKU), zap.Error(err))
			continue
		}

		prior, err := p.priorObservation(ctx, meta.ID, rec.SKU)
		if err != nil {
			p.Log.Error("prior lookup failed, record dropped",
				zap.String("sku", rec.SKU), zap.Error(err))
			continue
		}

		obs := store.Observation{
			TS:           now,
			Retailer:     p.Retailer,
			StoreID:      meta.ID,
			Zip:          meta.Zip,
			SKU:          rec.SKU,
			Price:        v.Price,
			WasPrice:     v.WasPrice,
			PctOff:       v.PctOff,
			Availability: rec.Availability,
			Clearance:    rec.Clearance,
		}
		if _, err := p.Repo.InsertObservation(ctx, obs); err != nil {
			p.Log.Error("observation insert failed",
				zap.String("sku", rec.SKU), zap.Error(err))
			continue
		}
		stats.Observed++

		p.evaluateAlerts(ctx, meta, rec, prior, obs, &stats)
	}

	return stats, nil
}

func (p *Pipeline) priorObservation(ctx context.Context, storeID, sku string) (*store.Observation, error) {
	prior, err := p.Repo.GetLastObservation(ctx, storeID, sku)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &prior, nil
}

func (p *Pipeline) evaluateAlerts(ctx context.Context, meta StoreMeta, rec scrape.ProductRecord,
	prior *store.Observation, obs store.Observation, stats *Stats) {

	if shouldAlertNewClearance(prior, obs) {
		stats.NewClearance++
		p.fireAlert(ctx, meta, store.Alert{
			TS:       obs.TS,
			Type:     store.AlertNewClearance,
			Retailer: p.Retailer,
			StoreID:  meta.ID,
			SKU:      obs.SKU,
			Price:    obs.Price,
			WasPrice: obs.WasPrice,
			PctOff:   obs.PctOff,
			Note:     rec.Title,
		}, newClearanceMessage(meta, rec, obs))
	}

	if fired, drop := shouldAlertPriceDrop(prior, obs, p.Thresholds, rec.Category); fired {
		stats.PriceDrops++
		p.fireAlert(ctx, meta, store.Alert{
			TS:       obs.TS,
			Type:     store.AlertPriceDrop,
			Retailer: p.Retailer,
			StoreID:  meta.ID,
			SKU:      obs.SKU,
			Price:    obs.Price,
			WasPrice: prior.Price,
			PctOff:   &drop,
			Note:     rec.Title,
		}, priceDropMessage(meta, rec, prior, obs))
	}
}

// fireAlert records the alert durably, then notifies. A notification failure
// is logged and swallowed: the durable record is the source of truth.
func (p *Pipeline) fireAlert(ctx context.Context, meta StoreMeta, alert store.Alert, message string) {
	if _, err := p.Repo.InsertAlert(ctx, alert); err != nil {
		p.Log.Error("alert insert failed",
			zap.String("type", string(alert.Type)), zap.String("sku", alert.SKU), zap.Error(err))
		return
	}
	p.publish(progress.Event{
		Stage:  progress.StageAlertEmitted,
		Zip:    meta.Zip,
		Reason: string(alert.Type),
		Note:   alert.SKU,
	})
	if err := p.Notifier.Notify(ctx, message); err != nil {
		p.Log.Warn("alert notification failed",
			zap.String("type", string(alert.Type)), zap.String("sku", alert.SKU), zap.Error(err))
	}
}

func (p *Pipeline) quarantine(ctx context.Context, meta StoreMeta, rec scrape.ProductRecord,
	now time.Time, reason string) {

	payload, _ := json.Marshal(rec)
	err := p.Repo.InsertQuarantine(ctx, store.QuarantineRecord{
		TS:       now,
		Retailer: p.Retailer,
		StoreID:  meta.ID,
		SKU:      rec.SKU,
		Zip:      meta.Zip,
		State:    meta.State,
		Category: rec.Category,
		Reason:   reason,
		Payload:  string(payload),
	})
	if err != nil {
		p.Log.Error("quarantine insert failed", zap.String("reason", reason), zap.Error(err))
		return
	}
	p.publish(progress.Event{
		Stage:    progress.StageQuarantined,
		Zip:      meta.Zip,
		Category: rec.Category,
		Reason:   reason,
	})
	p.Log.Warn("record quarantined",
		zap.String("reason", reason),
		zap.String("sku", rec.SKU),
		zap.String("price_text", rec.PriceText))
}

func newClearanceMessage(meta StoreMeta, rec scrape.ProductRecord, obs store.Observation) string {
	var b strings.Builder
	fmt.Fprintf(&b, "NEW CLEARANCE: %s", rec.Title)
	if obs.Price != nil {
		fmt.Fprintf(&b, " at $%.2f", *obs.Price)
	}
	if obs.PctOff != nil {
		fmt.Fprintf(&b, " (%.0f%% off)", *obs.PctOff*100)
	}
	fmt.Fprintf(&b, " @ %s (%s)", meta.Name, meta.Zip)
	if rec.ProductURL != "" {
		fmt.Fprintf(&b, "\n%s", rec.ProductURL)
	}
	return b.String()
}

func priceDropMessage(meta StoreMeta, rec scrape.ProductRecord, prior *store.Observation, obs store.Observation) string {
	var b strings.Builder
	fmt.Fprintf(&b, "PRICE DROP: %s", rec.Title)
	if prior.Price != nil && obs.Price != nil {
		fmt.Fprintf(&b, " $%.2f -> $%.2f", *prior.Price, *obs.Price)
	}
	fmt.Fprintf(&b, " @ %s (%s)", meta.Name, meta.Zip)
	if rec.ProductURL != "" {
		fmt.Fprintf(&b, "\n%s", rec.ProductURL)
	}
	return b.String()
}

var directionSuffixes = map[string]bool{
	"north": true, "south": true, "east": true, "west": true,
	"n": true, "s": true, "e": true, "w": true,
	"ne": true, "nw": true, "se": true, "sw": true,
	"northeast": true, "northwest": true, "southeast": true, "southwest": true,
	"central": true, "downtown": true,
}

// CityFromStoreName guesses the city from a store display name by stripping
// trailing direction words: "Salem South" yields "Salem".
func CityFromStoreName(name string) string {
	fields := strings.Fields(name)
	for len(fields) > 1 && directionSuffixes[strings.ToLower(fields[len(fields)-1])] {
		fields = fields[:len(fields)-1]
	}
	return strings.Join(fields, " ")
}
