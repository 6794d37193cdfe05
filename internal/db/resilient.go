package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/XavierBriggs/fortuna/services/bet-ledger/internal/config"
	"github.com/XavierBriggs/fortuna/services/bet-ledger/internal/metrics"
	"github.com/XavierBriggs/fortuna/services/bet-ledger/internal/retry"
	"github.com/XavierBriggs/fortuna/services/bet-ledger/pkg/models"
)

// ErrCircuitOpen is returned while the breaker rejects ledger calls
var ErrCircuitOpen = errors.New("ledger circuit breaker open")

// ResilientLedger wraps a LedgerDB with retries and a circuit breaker
type ResilientLedger struct {
	next   LedgerDB
	cb     *gobreaker.CircuitBreaker
	policy *retry.RetryPolicy
	logger zerolog.Logger
}

// NewResilientLedger wraps next with the breaker and retry settings from cfg
func NewResilientLedger(next LedgerDB, cfg config.BreakerConfig, logger zerolog.Logger) *ResilientLedger {
	r := &ResilientLedger{
		next:   next,
		logger: logger.With().Str("component", "ledger").Logger(),
	}

	st := gobreaker.Settings{Name: "ledger-db"}
	st.Interval = cfg.Interval
	st.Timeout = cfg.Timeout
	st.ReadyToTrip = func(counts gobreaker.Counts) bool {
		if counts.ConsecutiveFailures >= cfg.MaxFailures {
			return true
		}
		if counts.Requests < 20 {
			return false
		}
		return float64(counts.TotalFailures)/float64(counts.Requests) > 0.05
	}
	st.IsSuccessful = func(err error) bool {
		return err == nil || errors.Is(err, context.Canceled)
	}
	st.OnStateChange = func(name string, from, to gobreaker.State) {
		metrics.BreakerState.WithLabelValues(name).Set(float64(to))
		r.logger.Warn().
			Str("breaker", name).
			Str("from", from.String()).
			Str("to", to.String()).
			Msg("circuit breaker state changed")
	}
	r.cb = gobreaker.NewCircuitBreaker(st)

	r.policy = retry.NewRetryPolicy(cfg.RetryAttempts, cfg.RetryDelay).
		WithRetryable(func(err error) bool {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return false
			}
			return IsTransient(err)
		})

	return r
}

// State exposes the breaker state for health reporting
func (r *ResilientLedger) State() gobreaker.State {
	return r.cb.State()
}

func (r *ResilientLedger) GetBets(ctx context.Context, filters models.BetFilters) ([]models.Bet, error) {
	return call(ctx, r, "get_bets", func(ctx context.Context) ([]models.Bet, error) {
		return r.next.GetBets(ctx, filters)
	})
}

func (r *ResilientLedger) GetBookmakers(ctx context.Context) ([]models.Bookmaker, error) {
	return call(ctx, r, "get_bookmakers", r.next.GetBookmakers)
}

func (r *ResilientLedger) GetBookmaker(ctx context.Context, name string) (*models.Bookmaker, error) {
	return call(ctx, r, "get_bookmaker", func(ctx context.Context) (*models.Bookmaker, error) {
		return r.next.GetBookmaker(ctx, name)
	})
}

// Ping bypasses the breaker so health checks see the real database state
func (r *ResilientLedger) Ping(ctx context.Context) error {
	return r.next.Ping(ctx)
}

func (r *ResilientLedger) Close() error {
	return r.next.Close()
}

func call[T any](ctx context.Context, r *ResilientLedger, op string, fn func(context.Context) (T, error)) (T, error) {
	var out T
	err := r.policy.ExecuteContext(ctx, func(ctx context.Context) error {
		v, err := r.cb.Execute(func() (interface{}, error) {
			return fn(ctx)
		})
		if err != nil {
			r.logger.Debug().Err(err).Str("op", op).Msg("ledger call failed")
			return err
		}
		out = v.(T)
		return nil
	})

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return out, fmt.Errorf("%w: %s", ErrCircuitOpen, op)
	}
	return out, err
}
