//go:build integration

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v4"

	"finance-copilot/internal/domain"
	"finance-copilot/internal/domain/model"
	"finance-copilot/internal/domain/ports/repository"
)

func TestWatchlistRepo_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}
	repo := NewWatchlistRepo(testPool)
	ctx := context.Background()

	cleanup(t)
	u := seedUser(t, "wl_user")

	it := model.NewWatchlistItem(u.ID, "aapl", "Apple")
	if err := repo.Save(ctx, nil, it); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := repo.Save(ctx, nil, model.NewWatchlistItem(u.ID, "AAPL", "")); !errors.Is(err, domain.ErrAlreadyExists) {
		t.Fatalf("duplicate symbol should conflict, got %v", err)
	}

	if err := repo.UpdatePrice(ctx, nil, it.ID, 190.1, -0.4); err != nil {
		t.Fatalf("UpdatePrice: %v", err)
	}
	got, err := repo.FindByUserSymbol(ctx, nil, u.ID, "AAPL")
	if err != nil || got.CurrentPrice == nil || *got.CurrentPrice != 190.1 {
		t.Fatalf("price not persisted: %v %+v", err, got)
	}

	if n, _ := repo.CountByUser(ctx, nil, u.ID); n != 1 {
		t.Fatalf("CountByUser = %d", n)
	}
	if err := repo.Delete(ctx, nil, u.ID, "AAPL"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := repo.Delete(ctx, nil, u.ID, "AAPL"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("second delete should be ErrNotFound, got %v", err)
	}

	t.Run("user lock serializes transactions", func(t *testing.T) {
		tm := NewTxManager(testPool)
		if err := repo.LockUser(ctx, nil, u.ID); err != nil {
			t.Fatalf("nil tx must be a no-op: %v", err)
		}

		held := make(chan struct{})
		release := make(chan struct{})
		done := make(chan error, 1)
		go func() {
			done <- tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
				if err := repo.LockUser(ctx, tx, u.ID); err != nil {
					return err
				}
				close(held)
				<-release
				return nil
			})
		}()
		<-held

		waitCtx, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
		defer cancel()
		err := tm.WithTx(waitCtx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
			return repo.LockUser(ctx, tx, u.ID)
		})
		if err == nil {
			t.Fatal("second transaction acquired a held user lock")
		}
		close(release)
		if err := <-done; err != nil {
			t.Fatalf("first transaction: %v", err)
		}
		if err := tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
			return repo.LockUser(ctx, tx, u.ID)
		}); err != nil {
			t.Fatalf("lock not released on commit: %v", err)
		}
	})
}
