package db

import (
	"context"
	"fmt"

	"github.com/XavierBriggs/fortuna/services/bet-ledger/pkg/models"
)

// PartialError reports a fetch that failed after some pages were read.
// The bets returned alongside it are still valid.
type PartialError struct {
	Fetched int
	Err     error
}

func (e *PartialError) Error() string {
	return fmt.Sprintf("partial fetch after %d bets: %v", e.Fetched, e.Err)
}

func (e *PartialError) Unwrap() error { return e.Err }

// FetchAll pages through the ledger until it runs dry or limit bets have
// been read. filters.Limit, when set, lowers limit; filters.Offset is the
// starting offset.
func FetchAll(ctx context.Context, store BetReader, filters models.BetFilters, pageSize, limit int) ([]models.Bet, error) {
	if filters.Limit > 0 && (limit <= 0 || filters.Limit < limit) {
		limit = filters.Limit
	}
	if pageSize <= 0 {
		pageSize = limit
	}
	if pageSize <= 0 {
		filters.Limit = 0
		return store.GetBets(ctx, filters)
	}

	var all []models.Bet
	page := filters

	for limit <= 0 || len(all) < limit {
		page.Limit = pageSize
		if limit > 0 && limit-len(all) < pageSize {
			page.Limit = limit - len(all)
		}

		bets, err := store.GetBets(ctx, page)
		if err != nil {
			if len(all) == 0 {
				return nil, err
			}
			return all, &PartialError{Fetched: len(all), Err: err}
		}

		all = append(all, bets...)
		if len(bets) < page.Limit {
			break
		}
		page.Offset += len(bets)
	}

	return all, nil
}
