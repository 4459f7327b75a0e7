package repository

import (
	"context"

	"finance-copilot/internal/domain/model"
)

// -----------------------------
// Watchlist
// -----------------------------

type WatchlistRepository interface {
	// Save inserts the item; (user_id, symbol) is unique.
	Save(ctx context.Context, tx Tx, it *model.WatchlistItem) error
	FindByUserSymbol(ctx context.Context, tx Tx, userID, symbol string) (*model.WatchlistItem, error)
	ListByUser(ctx context.Context, tx Tx, userID string) ([]*model.WatchlistItem, error)
	CountByUser(ctx context.Context, tx Tx, userID string) (int, error)
	// LockUser serializes watchlist writers of one user until tx ends.
	// A nil tx makes it a no-op.
	LockUser(ctx context.Context, tx Tx, userID string) error
	UpdatePrice(ctx context.Context, tx Tx, id string, price, changePct float64) error
	// Delete returns domain.ErrNotFound when the symbol is not on the list.
	Delete(ctx context.Context, tx Tx, userID, symbol string) error
}
