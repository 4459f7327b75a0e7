package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"finance-copilot/internal/domain"
	"finance-copilot/internal/domain/model"
	"finance-copilot/internal/domain/ports/repository"
)

var _ repository.WatchlistRepository = (*WatchlistRepo)(nil)

type WatchlistRepo struct {
	pool *pgxpool.Pool
}

func NewWatchlistRepo(pool *pgxpool.Pool) *WatchlistRepo {
	return &WatchlistRepo{pool: pool}
}

const watchlistColumns = `id, user_id, symbol, name, added_at, current_price, change_percent`

func (r *WatchlistRepo) Save(ctx context.Context, tx repository.Tx, it *model.WatchlistItem) error {
	exec, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	const q = `INSERT INTO watchlist_items (` + watchlistColumns + `) VALUES ($1,$2,$3,$4,$5,$6,$7);`
	if _, err := exec.Exec(ctx, q, it.ID, it.UserID, it.Symbol, it.Name, it.AddedAt, it.CurrentPrice, it.ChangePercent); err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("save watchlist item: %w", err)
	}
	return nil
}

func (r *WatchlistRepo) FindByUserSymbol(ctx context.Context, tx repository.Tx, userID, symbol string) (*model.WatchlistItem, error) {
	exec, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	q := `SELECT ` + watchlistColumns + ` FROM watchlist_items WHERE user_id = $1 AND symbol = $2`
	var it model.WatchlistItem
	if err := exec.QueryRow(ctx, q, userID, symbol).Scan(
		&it.ID, &it.UserID, &it.Symbol, &it.Name, &it.AddedAt, &it.CurrentPrice, &it.ChangePercent); err != nil {
		return nil, notFound(err)
	}
	return &it, nil
}

func (r *WatchlistRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string) ([]*model.WatchlistItem, error) {
	exec, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	q := `SELECT ` + watchlistColumns + ` FROM watchlist_items WHERE user_id = $1 ORDER BY added_at ASC`
	rows, err := exec.Query(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("list watchlist: %w", err)
	}
	defer rows.Close()
	var out []*model.WatchlistItem
	for rows.Next() {
		var it model.WatchlistItem
		if err := rows.Scan(&it.ID, &it.UserID, &it.Symbol, &it.Name, &it.AddedAt, &it.CurrentPrice, &it.ChangePercent); err != nil {
			return nil, err
		}
		out = append(out, &it)
	}
	return out, rows.Err()
}

func (r *WatchlistRepo) CountByUser(ctx context.Context, tx repository.Tx, userID string) (int, error) {
	exec, err := getExecutor(r.pool, tx)
	if err != nil {
		return 0, err
	}
	var n int
	if err := exec.QueryRow(ctx, `SELECT COUNT(*) FROM watchlist_items WHERE user_id = $1`, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count watchlist: %w", err)
	}
	return n, nil
}

// LockUser takes a transaction-scoped advisory lock keyed by the user. It is
// released on commit or rollback; with a nil tx there is nothing to hold it.
func (r *WatchlistRepo) LockUser(ctx context.Context, tx repository.Tx, userID string) error {
	if tx == nil {
		return nil
	}
	exec, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	if _, err := exec.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext('watchlist:' || $1::text))`, userID); err != nil {
		return fmt.Errorf("lock watchlist: %w", err)
	}
	return nil
}

func (r *WatchlistRepo) UpdatePrice(ctx context.Context, tx repository.Tx, id string, price, changePct float64) error {
	exec, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	_, err = exec.Exec(ctx,
		`UPDATE watchlist_items SET current_price = $2, change_percent = $3 WHERE id = $1`,
		id, price, changePct)
	return err
}

func (r *WatchlistRepo) Delete(ctx context.Context, tx repository.Tx, userID, symbol string) error {
	exec, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	tag, err := exec.Exec(ctx, `DELETE FROM watchlist_items WHERE user_id = $1 AND symbol = $2`, userID, symbol)
	if err != nil {
		return fmt.Errorf("delete watchlist item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
