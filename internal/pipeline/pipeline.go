// Package pipeline turns one scraped payload into a ranked list of offers that
// beat the traveler's original price, and caches the outcome.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/staywatch/room-deals/backend/internal/cache"
	"github.com/staywatch/room-deals/backend/internal/decode"
	"github.com/staywatch/room-deals/backend/internal/models"
	"github.com/staywatch/room-deals/backend/internal/repair"
)

// Outcome classifies a successful run for user messaging.
type Outcome string

const (
	// OffersFound: at least one offer beat the baseline.
	OffersFound Outcome = "offers_found"
	// NoListings: the collaborator explicitly found nothing for these dates.
	NoListings Outcome = "no_listings"
	// NoCheaperRooms: listings decoded fine but none beat the baseline.
	NoCheaperRooms Outcome = "no_cheaper_rooms"
)

// Message returns the user-facing line for an outcome.
func (o Outcome) Message() string {
	switch o {
	case NoListings:
		return "no listings available, try different dates"
	case NoCheaperRooms:
		return "no cheaper rooms found"
	default:
		return "cheaper rooms found"
	}
}

// Request carries the caller context for one price check.
type Request struct {
	Stay     models.Stay
	RoomType string
	Baseline float64
}

// Result is the output of one completed run.
type Result struct {
	Outcome Outcome
	Offers  models.ResultSet
}

// Runner executes price checks against an injected result cache.
type Runner struct {
	store cache.Store
	log   *slog.Logger
}

// NewRunner wires a pipeline runner.
func NewRunner(store cache.Store, log *slog.Logger) *Runner {
	return &Runner{store: store, log: log}
}

// RunRaw executes the full chain on a raw scraped blob: repair, decode,
// baseline filter, dedupe, rank, cache. Repair failures (ErrMalformedPayload,
// ErrNoValidCandidates) abort the run without touching the cache; a prior
// entry for the same stay stays valid.
func (r *Runner) RunRaw(ctx context.Context, req Request, payload string) (Result, error) {
	repaired, err := repair.Repair(payload)
	if errors.Is(err, repair.ErrEmptyResult) {
		return Result{Outcome: NoListings, Offers: models.ResultSet{}}, nil
	}
	if err != nil {
		return Result{}, err
	}

	offers, err := decode.FromRepaired(repaired)
	if err != nil {
		return Result{}, fmt.Errorf("decode payload: %w", err)
	}

	return r.finish(ctx, req, offers)
}

// RunRooms executes the chain on a structured collaborator response. The
// room-type match filter applies here; raw payloads are already scoped to the
// requested room by the scrape itself.
func (r *Runner) RunRooms(ctx context.Context, req Request, rooms []models.RoomRecord) (Result, error) {
	return r.finish(ctx, req, decode.FromRooms(rooms, req.RoomType))
}

func (r *Runner) finish(ctx context.Context, req Request, offers []models.Offer) (Result, error) {
	survivors := rank(dedupe(belowBaseline(offers, req.Baseline)))
	if len(survivors) == 0 {
		return Result{Outcome: NoCheaperRooms, Offers: models.ResultSet{}}, nil
	}

	key := req.Stay.CacheKey()
	if err := r.store.Put(ctx, key, survivors); err != nil {
		// The computed set is still good; hand it back and let the next
		// successful run refresh the cache.
		r.log.Warn("cache write failed", slog.String("key", key), slog.Any("err", err))
	}

	return Result{Outcome: OffersFound, Offers: survivors}, nil
}

// Cached returns the last stored result set for a stay, if any.
func (r *Runner) Cached(ctx context.Context, stay models.Stay) (models.ResultSet, bool, error) {
	return r.store.Get(ctx, stay.CacheKey())
}

// belowBaseline keeps offers strictly cheaper than what the traveler paid.
func belowBaseline(offers []models.Offer, baseline float64) []models.Offer {
	kept := make([]models.Offer, 0, len(offers))
	for _, offer := range offers {
		if offer.TotalPrice < baseline {
			kept = append(kept, offer)
		}
	}
	return kept
}

// dedupe drops later offers with an already-seen (roomType, totalPrice) pair.
// Input is still in scrape order, so first occurrence wins.
func dedupe(offers []models.Offer) []models.Offer {
	seen := make(map[string]struct{}, len(offers))
	kept := make([]models.Offer, 0, len(offers))
	for _, offer := range offers {
		key := fmt.Sprintf("%s|%.2f", offer.RoomType, offer.TotalPrice)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		kept = append(kept, offer)
	}
	return kept
}

// rank sorts ascending by total price; ties keep scrape order.
func rank(offers []models.Offer) models.ResultSet {
	sort.SliceStable(offers, func(i, j int) bool {
		return offers[i].TotalPrice < offers[j].TotalPrice
	})
	return offers
}
