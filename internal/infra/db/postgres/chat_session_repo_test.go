//go:build integration

package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"finance-copilot/internal/domain"
	"finance-copilot/internal/domain/model"
	"finance-copilot/internal/infra/security"
)

func TestChatSessionRepo_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}
	ctx := context.Background()

	t.Run("malformed id is not found", func(t *testing.T) {
		repo := NewChatSessionRepo(testPool, nil)
		if _, err := repo.FindByID(ctx, nil, "not-a-uuid"); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("want ErrNotFound, got %v", err)
		}
	})

	t.Run("messages are ordered and windowed", func(t *testing.T) {
		cleanup(t)
		repo := NewChatSessionRepo(testPool, nil)
		u := seedUser(t, "chat_user")
		s := model.NewChatSession(u.ID, "hello")
		if err := repo.Save(ctx, nil, s); err != nil {
			t.Fatalf("Save: %v", err)
		}
		for i := 0; i < 5; i++ {
			m := model.NewChatMessage(s.ID, model.RoleUser, fmt.Sprintf("m%d", i))
			if err := repo.InsertMessage(ctx, nil, m); err != nil {
				t.Fatalf("InsertMessage: %v", err)
			}
		}

		all, err := repo.ListMessages(ctx, nil, s.ID, 0)
		if err != nil || len(all) != 5 {
			t.Fatalf("ListMessages all: %v %d", err, len(all))
		}
		last, _ := repo.ListMessages(ctx, nil, s.ID, 2)
		if len(last) != 2 || last[0].Content != "m3" || last[1].Content != "m4" {
			t.Fatalf("window wrong: %v", last)
		}

		n, err := repo.DeleteOldestMessages(ctx, nil, s.ID, 2)
		if err != nil || n != 2 {
			t.Fatalf("DeleteOldestMessages: %d %v", n, err)
		}
		if c, _ := repo.CountMessages(ctx, nil, s.ID); c != 3 {
			t.Fatalf("count after prune = %d", c)
		}
		all, _ = repo.ListMessages(ctx, nil, s.ID, 0)
		if all[0].Content != "m2" {
			t.Fatalf("oldest survivors wrong: %s", all[0].Content)
		}
	})

	t.Run("summary and listing", func(t *testing.T) {
		cleanup(t)
		repo := NewChatSessionRepo(testPool, nil)
		u := seedUser(t, "sum_user")
		older := model.NewChatSession(u.ID, "first")
		newer := model.NewChatSession(u.ID, "second")
		newer.UpdatedAt = older.UpdatedAt.Add(time.Second)
		_ = repo.Save(ctx, nil, older)
		_ = repo.Save(ctx, nil, newer)

		at := time.Now().UTC().Add(time.Minute)
		if err := repo.UpdateSummary(ctx, nil, older.ID, "about AAPL", at); err != nil {
			t.Fatalf("UpdateSummary: %v", err)
		}
		list, err := repo.ListByUser(ctx, nil, u.ID, 10)
		if err != nil || len(list) != 2 {
			t.Fatalf("ListByUser: %v", err)
		}
		if list[0].ID != older.ID || list[0].SummaryText() != "about AAPL" {
			t.Fatalf("summary update should bump recency: %+v", list[0])
		}

		if err := repo.Delete(ctx, nil, older.ID); err != nil {
			t.Fatalf("Delete: %v", err)
		}
		if _, err := repo.FindByID(ctx, nil, older.ID); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("content is sealed at rest when a key is set", func(t *testing.T) {
		cleanup(t)
		enc, err := security.NewEncryptionService("0123456789abcdef0123456789abcdef")
		if err != nil {
			t.Fatalf("NewEncryptionService: %v", err)
		}
		repo := NewChatSessionRepo(testPool, enc)
		u := seedUser(t, "enc_user")
		s := model.NewChatSession(u.ID, "secret")
		_ = repo.Save(ctx, nil, s)
		if err := repo.InsertMessage(ctx, nil, model.NewChatMessage(s.ID, model.RoleUser, "my portfolio")); err != nil {
			t.Fatalf("InsertMessage: %v", err)
		}

		var raw string
		if err := testPool.QueryRow(ctx, `SELECT content FROM chat_messages WHERE session_id = $1`, s.ID).Scan(&raw); err != nil {
			t.Fatalf("raw select: %v", err)
		}
		if !security.IsSealed(raw) {
			t.Fatalf("stored content is plaintext: %q", raw)
		}
		msgs, err := repo.ListMessages(ctx, nil, s.ID, 0)
		if err != nil || msgs[0].Content != "my portfolio" {
			t.Fatalf("decrypt on read failed: %v", err)
		}
	})
}
