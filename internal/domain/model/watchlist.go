package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// MaxWatchlistItems caps the number of symbols a user may follow.
const MaxWatchlistItems = 20

type WatchlistItem struct {
	ID            string
	UserID        string
	Symbol        string
	Name          string
	AddedAt       time.Time
	CurrentPrice  *float64
	ChangePercent *float64
}

func NewWatchlistItem(userID, symbol, name string) *WatchlistItem {
	sym := NormalizeSymbol(symbol)
	if strings.TrimSpace(name) == "" {
		name = sym
	}
	return &WatchlistItem{
		ID:      uuid.NewString(),
		UserID:  userID,
		Symbol:  sym,
		Name:    strings.TrimSpace(name),
		AddedAt: time.Now().UTC(),
	}
}

// SetPrice records the latest observed quote.
func (w *WatchlistItem) SetPrice(price, changePct float64) {
	w.CurrentPrice = &price
	w.ChangePercent = &changePct
}

// Freshness tags whether an item's price fields were refreshed on this read.
type Freshness string

const (
	Fresh Freshness = "fresh"
	Stale Freshness = "stale"
)

// PricedItem is a watchlist entry annotated with how current its price is.
type PricedItem struct {
	Item      *WatchlistItem
	Freshness Freshness
}

func NormalizeSymbol(s string) string { return strings.ToUpper(strings.TrimSpace(s)) }
