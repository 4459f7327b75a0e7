package usecase

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"finance-copilot/internal/domain"
	"finance-copilot/internal/domain/model"
	"finance-copilot/internal/domain/ports/repository"
	"finance-copilot/internal/infra/logging"
)

// Compile-time check
var _ WatchlistUseCase = (*watchlistUC)(nil)

type WatchlistUseCase interface {
	// Add is idempotent: an already-followed symbol returns the stored item.
	Add(ctx context.Context, userID, symbol, name string) (*model.WatchlistItem, error)
	Remove(ctx context.Context, userID, symbol string) error
	// List refreshes prices best-effort and tags each item Fresh or Stale.
	List(ctx context.Context, userID string) ([]model.PricedItem, error)
	Contains(ctx context.Context, userID, symbol string) (bool, error)
	Symbols(ctx context.Context, userID string) ([]string, error)
}

var errWatchlistFull = &domain.ValidationError{Reason: "Watchlist is full (max 20 symbols)", Cause: domain.ErrWatchlistFull}

// watchlistMarket is the part of the market gateway the watchlist needs.
type watchlistMarket interface {
	Quote(ctx context.Context, symbol string) (*model.Quote, error)
	SearchSymbols(ctx context.Context, query string) ([]model.SymbolMatch, error)
}

type watchlistUC struct {
	items  repository.WatchlistRepository
	market watchlistMarket
	tm     repository.TransactionManager
	log    *zerolog.Logger
}

func NewWatchlistUseCase(items repository.WatchlistRepository, market watchlistMarket, tm repository.TransactionManager, logger *zerolog.Logger) *watchlistUC {
	return &watchlistUC{items: items, market: market, tm: tm, log: logger}
}

func (w *watchlistUC) Add(ctx context.Context, userID, symbol, name string) (*model.WatchlistItem, error) {
	defer logging.TraceDuration(w.log, "WatchlistUC.Add")()
	sym := model.NormalizeSymbol(symbol)
	if sym == "" {
		return nil, domain.NewValidationError("Symbol is required")
	}

	existing, err := w.items.FindByUserSymbol(ctx, nil, userID, sym)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	// provider calls happen before the user lock is taken
	if name == "" {
		name = w.resolveName(ctx, sym)
	}
	it := model.NewWatchlistItem(userID, sym, name)
	if q, err := w.market.Quote(ctx, sym); err == nil {
		it.SetPrice(q.CurrentPrice, q.ChangePercent)
	} else {
		logging.With(ctx, w.log).Warn().Err(err).Str("symbol", sym).Msg("watchlist add without price")
	}

	var out *model.WatchlistItem
	err = w.tm.WithTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(ctx context.Context, tx repository.Tx) error {
		if err := w.items.LockUser(ctx, tx, userID); err != nil {
			return err
		}
		existing, err := w.items.FindByUserSymbol(ctx, tx, userID, sym)
		if err == nil {
			out = existing
			return nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		n, err := w.items.CountByUser(ctx, tx, userID)
		if err != nil {
			return err
		}
		if n >= model.MaxWatchlistItems {
			return errWatchlistFull
		}
		if err := w.items.Save(ctx, tx, it); err != nil {
			return err
		}
		out = it
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (w *watchlistUC) resolveName(ctx context.Context, sym string) string {
	matches, err := w.market.SearchSymbols(ctx, sym)
	if err != nil || len(matches) == 0 {
		return sym
	}
	for _, m := range matches {
		if m.Symbol == sym && m.Description != "" {
			return m.Description
		}
	}
	if matches[0].Description != "" {
		return matches[0].Description
	}
	return sym
}

func (w *watchlistUC) Remove(ctx context.Context, userID, symbol string) error {
	defer logging.TraceDuration(w.log, "WatchlistUC.Remove")()
	return w.items.Delete(ctx, nil, userID, model.NormalizeSymbol(symbol))
}

func (w *watchlistUC) List(ctx context.Context, userID string) ([]model.PricedItem, error) {
	defer logging.TraceDuration(w.log, "WatchlistUC.List")()
	items, err := w.items.ListByUser(ctx, nil, userID)
	if err != nil {
		return nil, err
	}
	log := logging.With(ctx, w.log)
	out := make([]model.PricedItem, 0, len(items))
	for _, it := range items {
		q, err := w.market.Quote(ctx, it.Symbol)
		if err != nil {
			log.Warn().Err(err).Str("symbol", it.Symbol).Msg("price refresh failed; serving last known")
			out = append(out, model.PricedItem{Item: it, Freshness: model.Stale})
			continue
		}
		it.SetPrice(q.CurrentPrice, q.ChangePercent)
		if err := w.items.UpdatePrice(ctx, nil, it.ID, q.CurrentPrice, q.ChangePercent); err != nil {
			log.Warn().Err(err).Str("symbol", it.Symbol).Msg("persist refreshed price failed")
		}
		out = append(out, model.PricedItem{Item: it, Freshness: model.Fresh})
	}
	return out, nil
}

func (w *watchlistUC) Contains(ctx context.Context, userID, symbol string) (bool, error) {
	_, err := w.items.FindByUserSymbol(ctx, nil, userID, model.NormalizeSymbol(symbol))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, domain.ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

func (w *watchlistUC) Symbols(ctx context.Context, userID string) ([]string, error) {
	items, err := w.items.ListByUser(ctx, nil, userID)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.Symbol)
	}
	return out, nil
}
