package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/XavierBriggs/fortuna/services/bet-ledger/internal/config"
	"github.com/XavierBriggs/fortuna/services/bet-ledger/pkg/models"
)

// BetReader is the part of the ledger the analytics fetch path needs
type BetReader interface {
	GetBets(ctx context.Context, filters models.BetFilters) ([]models.Bet, error)
}

// LedgerDB defines the interface for ledger database operations
type LedgerDB interface {
	BetReader
	GetBookmakers(ctx context.Context) ([]models.Bookmaker, error)
	GetBookmaker(ctx context.Context, name string) (*models.Bookmaker, error)
	Ping(ctx context.Context) error
	Close() error
}

const betColumns = `
	id, COALESCE(category, '') AS category, bet_type, bookmaker,
	COALESCE(tournament, '') AS tournament, COALESCE(description, '') AS description,
	COALESCE(match_label, '') AS match_label, stake, odds, bonus_amount, turbo,
	outcome, profit, bet_date, placed_at`

// LedgerPostgres implements LedgerDB on top of Postgres
type LedgerPostgres struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewLedgerPostgres opens and verifies a connection pool to the ledger database
func NewLedgerPostgres(cfg config.DatabaseConfig) (*LedgerPostgres, error) {
	db, err := sqlx.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return NewLedgerFromDB(db, cfg.QueryTimeout), nil
}

// NewLedgerFromDB wraps an existing pool
func NewLedgerFromDB(db *sqlx.DB, timeout time.Duration) *LedgerPostgres {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &LedgerPostgres{db: db, timeout: timeout}
}

// GetBets retrieves bets matching filters, oldest first
func (l *LedgerPostgres) GetBets(ctx context.Context, filters models.BetFilters) ([]models.Bet, error) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	query := "SELECT" + betColumns + "\n\tFROM bets\n\tWHERE 1=1"
	args := []interface{}{}
	argIdx := 1

	if filters.Since != nil {
		query += fmt.Sprintf(" AND bet_date >= $%d", argIdx)
		args = append(args, *filters.Since)
		argIdx++
	}

	if filters.Until != nil {
		query += fmt.Sprintf(" AND bet_date <= $%d", argIdx)
		args = append(args, *filters.Until)
		argIdx++
	}

	if filters.Bookmaker != "" {
		query += fmt.Sprintf(" AND bookmaker = $%d", argIdx)
		args = append(args, filters.Bookmaker)
		argIdx++
	}

	if filters.BetType != "" {
		query += fmt.Sprintf(" AND bet_type = $%d", argIdx)
		args = append(args, filters.BetType)
		argIdx++
	}

	query += " ORDER BY bet_date ASC, id ASC"

	if filters.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, filters.Limit)
		argIdx++
	}

	if filters.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, filters.Offset)
	}

	bets := []models.Bet{}
	if err := l.db.SelectContext(ctx, &bets, query, args...); err != nil {
		return nil, fmt.Errorf("query bets: %w", err)
	}

	return bets, nil
}

// GetBookmakers lists every bookmaker with its balance
func (l *LedgerPostgres) GetBookmakers(ctx context.Context) ([]models.Bookmaker, error) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	books := []models.Bookmaker{}
	if err := l.db.SelectContext(ctx, &books, `SELECT id, name, balance FROM bookmakers ORDER BY name ASC`); err != nil {
		return nil, fmt.Errorf("query bookmakers: %w", err)
	}
	return books, nil
}

// GetBookmaker retrieves a single bookmaker by name. It returns nil when
// no such bookmaker exists.
func (l *LedgerPostgres) GetBookmaker(ctx context.Context, name string) (*models.Bookmaker, error) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	var b models.Bookmaker
	err := l.db.GetContext(ctx, &b, `SELECT id, name, balance FROM bookmakers WHERE name = $1`, name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query bookmaker: %w", err)
	}
	return &b, nil
}

// Ping checks database connectivity
func (l *LedgerPostgres) Ping(ctx context.Context) error {
	return l.db.PingContext(ctx)
}

// Close closes the connection pool
func (l *LedgerPostgres) Close() error {
	return l.db.Close()
}

// IsTransient reports whether a failed query is worth retrying. Postgres
// errors for bad syntax, undefined objects, data exceptions and auth
// failures are permanent, as are cancelled contexts.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Class() {
		case "22", "28", "42":
			return false
		}
	}
	return true
}
