// Package reports loads bet history from the ledger and turns it into
// analytics reports, with Redis caching when configured.
package reports

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/XavierBriggs/fortuna/services/bet-ledger/internal/cache"
	"github.com/XavierBriggs/fortuna/services/bet-ledger/internal/config"
	"github.com/XavierBriggs/fortuna/services/bet-ledger/internal/db"
	"github.com/XavierBriggs/fortuna/services/bet-ledger/internal/metrics"
	"github.com/XavierBriggs/fortuna/services/bet-ledger/pkg/analytics"
	"github.com/XavierBriggs/fortuna/services/bet-ledger/pkg/models"
)

// Cache stores computed reports by filter set
// in numbered generations; Invalidate starts a new one.
type Cache interface {
	Version(ctx context.Context) (int64, error)
	Get(ctx context.Context, version int64, filters models.BetFilters, dest interface{}) error
	Set(ctx context.Context, version int64, filters models.BetFilters, value interface{}) error
	Invalidate(ctx context.Context) (int64, error)
}

// Dataset is a fetched and normalized slice of the ledger
type Dataset struct {
	Snapshot *analytics.Snapshot
	Partial  bool
	Fetched  int
}

// Result is a computed report plus how it was produced
type Result struct {
	ReportID    string            `json:"report_id"`
	GeneratedAt time.Time         `json:"generated_at"`
	Filters     models.BetFilters `json:"filters"`
	Partial     bool              `json:"partial"`
	Fetched     int               `json:"fetched"`
	Cached      bool              `json:"cached"`
	Report      analytics.Report  `json:"report"`
}

// Service computes reports over the ledger
type Service struct {
	store  db.BetReader
	cache  Cache
	cfg    config.AnalyticsConfig
	logger zerolog.Logger
}

// NewService creates a report service. cache may be nil to disable caching.
func NewService(store db.BetReader, cache Cache, cfg config.AnalyticsConfig, logger zerolog.Logger) *Service {
	return &Service{
		store:  store,
		cache:  cache,
		cfg:    cfg,
		logger: logger.With().Str("component", "reports").Logger(),
	}
}

// Options returns the analytics options configured for this service
func (s *Service) Options() analytics.Options {
	return analytics.Options{
		MinCategoryBets: s.cfg.MinCategoryBets,
		OddsWidth:       s.cfg.OddsWidth,
	}
}

// Load fetches up to the configured limit of bets matching filters. A
// fetch that fails midway still yields a Dataset, flagged Partial.
func (s *Service) Load(ctx context.Context, filters models.BetFilters) (*Dataset, error) {
	records, err := db.FetchAll(ctx, s.store, filters, s.cfg.PageSize, s.cfg.FetchLimit)

	var partial *db.PartialError
	switch {
	case errors.As(err, &partial):
		metrics.PartialFetches.Inc()
		s.logger.Warn().Err(partial.Err).Int("fetched", partial.Fetched).Msg("analyzing partial ledger")
	case err != nil:
		return nil, fmt.Errorf("fetch bets: %w", err)
	}

	return &Dataset{
		Snapshot: analytics.NewSnapshot(records),
		Partial:  partial != nil,
		Fetched:  len(records),
	}, nil
}

// Prior loads the period of equal length right before filters.Since.
// ok is false when filters do not describe a closed range.
func (s *Service) Prior(ctx context.Context, filters models.BetFilters) (bets []analytics.Bet, ok bool, err error) {
	prev, ok := filters.PreviousPeriod()
	if !ok {
		return nil, false, nil
	}

	ds, err := s.Load(ctx, prev)
	if err != nil {
		return nil, true, fmt.Errorf("load previous period: %w", err)
	}
	return ds.Snapshot.Bets(), true, nil
}

// Report computes the full report for filters. With compare set the KPIs
// carry a comparison against the previous period and the cache is bypassed.
func (s *Service) Report(ctx context.Context, filters models.BetFilters, compare bool) (*Result, error) {
	useCache := s.cache != nil && !compare

	// pinned before the load; an Invalidate during the request orphans this write
	var version int64
	if useCache {
		v, err := s.cache.Version(ctx)
		if err != nil {
			s.logger.Warn().Err(err).Msg("report cache version read failed")
			useCache = false
		}
		version = v
	}

	if useCache {
		var cached Result
		err := s.cache.Get(ctx, version, filters, &cached)
		if err == nil {
			cached.Cached = true
			return &cached, nil
		}
		if !errors.Is(err, cache.ErrMiss) {
			s.logger.Warn().Err(err).Msg("report cache read failed")
		}
	}

	ds, err := s.Load(ctx, filters)
	if err != nil {
		return nil, err
	}

	opts := s.Options()
	if compare {
		prior, ok, err := s.Prior(ctx, filters)
		if err != nil {
			return nil, err
		}
		if ok {
			opts.Prior = nonNil(prior)
		}
	}

	result := &Result{
		ReportID:    uuid.New().String(),
		GeneratedAt: time.Now().UTC(),
		Filters:     filters,
		Partial:     ds.Partial,
		Fetched:     ds.Fetched,
		Report:      s.compute(ds.Snapshot, opts),
	}

	// partial reports are never cached so the next request retries the fetch
	if useCache && !result.Partial {
		if err := s.cache.Set(ctx, version, filters, result); err != nil {
			s.logger.Warn().Err(err).Msg("report cache write failed")
		}
	}

	return result, nil
}

// Refresh drops every cached report and recomputes the unfiltered one
func (s *Service) Refresh(ctx context.Context) (*Result, error) {
	if s.cache != nil {
		if _, err := s.cache.Invalidate(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("report cache invalidation failed")
		}
	}
	return s.Report(ctx, models.BetFilters{}, false)
}

func (s *Service) compute(snap *analytics.Snapshot, opts analytics.Options) analytics.Report {
	start := time.Now()
	report := snap.Report(opts)
	metrics.ReportComputeSeconds.Observe(time.Since(start).Seconds())
	metrics.ReportBets.Observe(float64(len(snap.Bets())))
	return report
}

func nonNil(bets []analytics.Bet) []analytics.Bet {
	if bets == nil {
		return []analytics.Bet{}
	}
	return bets
}
