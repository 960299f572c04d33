// Package decay ages memory importance over time.
//
// A periodic pass scans active records; records not accessed within the
// staleness window have their decay factor attenuated, and records whose
// effective importance drops below the deactivation threshold are excluded
// from retrieval. The pass is safe to run alongside live retrieval: every
// write is a per-record update, never a global lock, so readers observe at
// worst a record mid-transition — either still visible or already narrowed.
package decay

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/engram-ai/engram-go/pkg/storage"
)

// Default tuning for the decay pass.
const (
	DefaultStalenessWindow = 72 * time.Hour
	DefaultAttenuation     = 0.95
	DefaultFloor           = 0.05
	DefaultDeactivateBelow = 0.1
	DefaultInterval        = time.Hour
)

// Config tunes the decay scheduler. Zero values take the documented defaults.
type Config struct {
	// StalenessWindow is how long a record may go unaccessed before it
	// starts decaying.
	StalenessWindow time.Duration

	// Attenuation multiplies the decay factor of each stale record per pass.
	Attenuation float64

	// Floor is the minimum decay factor; attenuation never goes below it.
	Floor float64

	// DeactivateBelow is the effective-importance threshold under which a
	// record is deactivated.
	DeactivateBelow float64

	// Interval is the period of the Run loop.
	Interval time.Duration
}

// PassStats summarizes one decay pass.
type PassStats struct {
	// RunID uniquely identifies the pass in logs.
	RunID string

	// Scanned is the number of active records visited.
	Scanned int

	// Decayed is the number of records whose decay factor was lowered.
	Decayed int

	// Deactivated is the number of records switched inactive.
	Deactivated int

	// Errors is the number of per-record failures logged and skipped.
	Errors int
}

// Scheduler runs decay passes over a store.
type Scheduler struct {
	store storage.Store
	cfg   Config
}

// NewScheduler creates a decay scheduler over store.
func NewScheduler(store storage.Store, cfg Config) *Scheduler {
	if cfg.StalenessWindow == 0 {
		cfg.StalenessWindow = DefaultStalenessWindow
	}
	if cfg.Attenuation == 0 {
		cfg.Attenuation = DefaultAttenuation
	}
	if cfg.Floor == 0 {
		cfg.Floor = DefaultFloor
	}
	if cfg.DeactivateBelow == 0 {
		cfg.DeactivateBelow = DefaultDeactivateBelow
	}
	if cfg.Interval == 0 {
		cfg.Interval = DefaultInterval
	}
	return &Scheduler{store: store, cfg: cfg}
}

// RunPass executes one decay pass.
//
// Each stale record's decay factor is attenuated down to the floor; records
// whose effective importance falls below the deactivation threshold are
// switched inactive. An individual record failure is logged under the pass's
// run ID and skipped — it never aborts the rest of the pass.
func (s *Scheduler) RunPass(ctx context.Context) (*PassStats, error) {
	stats := &PassStats{RunID: uuid.NewString()}

	records, err := s.store.GetActive(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	for _, record := range records {
		stats.Scanned++

		ref := record.CreatedAt
		if record.LastAccessedAt != nil {
			ref = *record.LastAccessedAt
		}
		if now.Sub(ref) < s.cfg.StalenessWindow {
			continue
		}

		factor := record.DecayFactor * s.cfg.Attenuation
		if factor < s.cfg.Floor {
			factor = s.cfg.Floor
		}

		if factor < record.DecayFactor {
			mut := &storage.Mutation{DecayFactor: &factor}
			if err := s.store.Update(ctx, record.ID, mut); err != nil {
				log.Printf("[decay] run %s: update record %d: %v", stats.RunID, record.ID, err)
				stats.Errors++
				continue
			}
			stats.Decayed++
		}

		if record.Importance*factor < s.cfg.DeactivateBelow {
			if err := s.store.SetActive(ctx, record.ID, false); err != nil {
				log.Printf("[decay] run %s: deactivate record %d: %v", stats.RunID, record.ID, err)
				stats.Errors++
				continue
			}
			stats.Deactivated++
		}
	}

	log.Printf("[decay] run %s: scanned=%d decayed=%d deactivated=%d errors=%d",
		stats.RunID, stats.Scanned, stats.Decayed, stats.Deactivated, stats.Errors)

	return stats, nil
}

// Run executes passes on the configured interval until ctx is done.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.RunPass(ctx); err != nil {
				log.Printf("[decay] pass failed: %v", err)
			}
		}
	}
}
