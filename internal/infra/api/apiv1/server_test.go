//go:build !integration

package apiv1_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"finance-copilot/internal/domain"
	"finance-copilot/internal/domain/model"
	apiv1 "finance-copilot/internal/infra/api/apiv1"
	"finance-copilot/internal/usecase"
)

//
// ---------------- use case fakes ----------------
//
// Each fake embeds its interface so only the methods a test touches need a
// body; calling anything else panics on the nil embedded value.

const goodToken = "good-token"

type fakeAuth struct {
	usecase.AuthUseCase

	loginErr    error
	registerErr error
	registered  *usecase.RegisterInput
	loggedOut   string
}

func (f *fakeAuth) Authenticate(ctx context.Context, token string) (*model.User, error) {
	if token != goodToken {
		return nil, domain.ErrUnauthorized
	}
	return &model.User{ID: "u1", Username: "alice", IsActive: true}, nil
}

func (f *fakeAuth) Register(ctx context.Context, in usecase.RegisterInput) (*model.User, error) {
	if f.registerErr != nil {
		return nil, f.registerErr
	}
	f.registered = &in
	return &model.User{ID: "u1", Email: in.Email, Username: in.Username, IsActive: true, CreatedAt: time.Now()}, nil
}

func (f *fakeAuth) Login(ctx context.Context, username, password string) (*usecase.LoginResult, error) {
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	return &usecase.LoginResult{
		Token:     goodToken,
		ExpiresAt: time.Now().Add(time.Hour),
		User:      &model.User{ID: "u1", Username: username, IsActive: true},
	}, nil
}

func (f *fakeAuth) Logout(ctx context.Context, userID, token string) error {
	f.loggedOut = userID + ":" + token
	return nil
}

func (f *fakeAuth) Me(ctx context.Context, userID string) (*model.User, error) {
	return &model.User{ID: userID, Username: "alice", IsActive: true}, nil
}

type fakeMarket struct {
	usecase.MarketUseCase

	quoteErr   error
	resolution string
	days       int
}

func (f *fakeMarket) Quote(ctx context.Context, symbol string) (*model.Quote, error) {
	if f.quoteErr != nil {
		return nil, f.quoteErr
	}
	return &model.Quote{Symbol: strings.ToUpper(symbol), CurrentPrice: 187.5}, nil
}

func (f *fakeMarket) Candles(ctx context.Context, symbol, resolution string, days int) ([]model.Candle, error) {
	f.resolution, f.days = resolution, days
	return []model.Candle{{Symbol: symbol, Close: 1}}, nil
}

type fakeWatchlist struct {
	usecase.WatchlistUseCase
	addErr error
}

func (f *fakeWatchlist) Add(ctx context.Context, userID, symbol, name string) (*model.WatchlistItem, error) {
	if f.addErr != nil {
		return nil, f.addErr
	}
	return &model.WatchlistItem{UserID: userID, Symbol: symbol, Name: name}, nil
}

func (f *fakeWatchlist) List(ctx context.Context, userID string) ([]model.PricedItem, error) {
	return []model.PricedItem{
		{Item: &model.WatchlistItem{Symbol: "AAPL", CurrentPrice: model.Float(187.5)}, Freshness: model.Fresh},
		{Item: &model.WatchlistItem{Symbol: "MSFT"}, Freshness: model.Stale},
	}, nil
}

type fakeChat struct {
	usecase.ChatUseCase

	mu    sync.Mutex
	calls []string
}

func (f *fakeChat) Chat(ctx context.Context, userID, message, sessionID string) (*usecase.ChatReply, error) {
	f.mu.Lock()
	f.calls = append(f.calls, userID+"|"+message+"|"+sessionID)
	f.mu.Unlock()
	if sessionID == "" {
		sessionID = "s-new"
	} else if !model.ValidID(sessionID) {
		return nil, domain.ErrNotFound
	}
	return &usecase.ChatReply{Role: "assistant", Content: "hi", Timestamp: time.Now(), SessionID: sessionID}, nil
}

func (f *fakeChat) GetSession(ctx context.Context, userID, sessionID string) (*usecase.SessionDetail, error) {
	return nil, domain.ErrNotFound
}

type fakeKnowledge struct {
	usecase.KnowledgeUseCase
	uploaded string
	deleted  string
}

func (f *fakeKnowledge) UploadDocument(ctx context.Context, userID, filename string, data []byte) (*model.Document, error) {
	f.uploaded = filename
	return &model.Document{ID: "d1", OwnerID: &userID, Title: filename, Content: string(data)}, nil
}

func (f *fakeKnowledge) DeleteDocument(ctx context.Context, id, userID string) error {
	f.deleted = id
	if !model.ValidID(id) {
		return domain.ErrNotFound
	}
	return nil
}

func (f *fakeKnowledge) Search(ctx context.Context, query, userID string, limit int) ([]model.SearchHit, error) {
	return []model.SearchHit{{Title: "Tesla primer", Content: query, Score: 0.5}}, nil
}

// countingLimiter allows the first limit hits per key.
type countingLimiter struct {
	mu   sync.Mutex
	hits map[string]int
	err  error
}

func (l *countingLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if l.err != nil {
		return false, l.err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.hits[key]++
	return l.hits[key] <= limit, nil
}

//
// -------------------- test helpers --------------------
//

type fixture struct {
	auth      *fakeAuth
	market    *fakeMarket
	watchlist *fakeWatchlist
	chat      *fakeChat
	knowledge *fakeKnowledge
	handler   http.Handler
}

func newLogger() *zerolog.Logger { l := zerolog.Nop(); return &l }

func newFixture(opts apiv1.Options) *fixture {
	f := &fixture{
		auth:      &fakeAuth{},
		market:    &fakeMarket{},
		watchlist: &fakeWatchlist{},
		chat:      &fakeChat{},
		knowledge: &fakeKnowledge{},
	}
	srv := apiv1.NewServer(f.auth, f.market, nil, f.watchlist, f.chat, f.knowledge, opts, newLogger())
	f.handler = apiv1.NewRouter(srv)
	return f
}

func (f *fixture) do(t *testing.T, method, path, body string, authed bool) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Buffer
	if body != "" {
		rd = bytes.NewBufferString(body)
	} else {
		rd = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	if authed {
		req.Header.Set("Authorization", "Bearer "+goodToken)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func detail(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Detail string `json:"detail"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode detail: %v (body=%s)", err, rec.Body.String())
	}
	return body.Detail
}

//
// -------------------- tests --------------------
//

func TestHealth_IsPublic(t *testing.T) {
	f := newFixture(apiv1.Options{})
	rec := f.do(t, http.MethodGet, "/api/health", "", false)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "healthy") {
		t.Fatalf("got %d %s", rec.Code, rec.Body.String())
	}
}

func TestAuth_ProtectedRoutes(t *testing.T) {
	f := newFixture(apiv1.Options{})

	t.Run("missing token", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/api/watchlist/all", "", false)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("want 401, got %d", rec.Code)
		}
		if rec.Header().Get("WWW-Authenticate") != "Bearer" {
			t.Fatal("missing WWW-Authenticate header")
		}
	})

	t.Run("unknown token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
		req.Header.Set("Authorization", "Bearer nope")
		rec := httptest.NewRecorder()
		f.handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("want 401, got %d", rec.Code)
		}
		if got := detail(t, rec); got != "Could not validate credentials" {
			t.Fatalf("detail = %q", got)
		}
	})

	t.Run("valid token reaches handler", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/api/auth/me", "", true)
		if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"id":"u1"`) {
			t.Fatalf("got %d %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("logout passes user and raw token", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/auth/logout", "", true)
		if rec.Code != http.StatusOK {
			t.Fatalf("got %d", rec.Code)
		}
		if f.auth.loggedOut != "u1:"+goodToken {
			t.Fatalf("logout args = %q", f.auth.loggedOut)
		}
	})
}

func TestLogin_ErrorMapping(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantDetail string
	}{
		{"bad credentials", &domain.ValidationError{Reason: "Incorrect username or password", Cause: domain.ErrUnauthorized}, http.StatusUnauthorized, "Incorrect username or password"},
		{"inactive", &domain.ValidationError{Reason: "Inactive user", Cause: domain.ErrForbidden}, http.StatusForbidden, "Inactive user"},
		{"plain validation", domain.NewValidationError("Username is required"), http.StatusBadRequest, "Username is required"},
		{"internal", errors.New("pool closed"), http.StatusInternalServerError, "Internal server error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(apiv1.Options{})
			f.auth.loginErr = tc.err
			rec := f.do(t, http.MethodPost, "/api/auth/login", `{"username":"alice","password":"password1"}`, false)
			if rec.Code != tc.wantStatus {
				t.Fatalf("want %d, got %d", tc.wantStatus, rec.Code)
			}
			if got := detail(t, rec); got != tc.wantDetail {
				t.Fatalf("detail = %q, want %q", got, tc.wantDetail)
			}
		})
	}

	t.Run("success returns bearer token", func(t *testing.T) {
		f := newFixture(apiv1.Options{})
		rec := f.do(t, http.MethodPost, "/api/auth/login", `{"username":"alice","password":"password1"}`, false)
		if rec.Code != http.StatusOK {
			t.Fatalf("got %d %s", rec.Code, rec.Body.String())
		}
		var body struct {
			AccessToken string `json:"access_token"`
			TokenType   string `json:"token_type"`
		}
		_ = json.NewDecoder(rec.Body).Decode(&body)
		if body.AccessToken != goodToken || body.TokenType != "bearer" {
			t.Fatalf("unexpected body %+v", body)
		}
	})
}

func TestRegister(t *testing.T) {
	t.Run("invalid email never reaches the use case", func(t *testing.T) {
		f := newFixture(apiv1.Options{})
		rec := f.do(t, http.MethodPost, "/api/auth/register",
			`{"email":"nope","username":"alice","password":"password1","confirm_password":"password1"}`, false)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("want 400, got %d", rec.Code)
		}
		if f.auth.registered != nil {
			t.Fatal("use case called despite invalid body")
		}
	})

	t.Run("created", func(t *testing.T) {
		f := newFixture(apiv1.Options{})
		rec := f.do(t, http.MethodPost, "/api/auth/register",
			`{"email":"a@example.com","username":"alice","password":"password1","confirm_password":"password1","age":30}`, false)
		if rec.Code != http.StatusCreated {
			t.Fatalf("want 201, got %d %s", rec.Code, rec.Body.String())
		}
		if f.auth.registered == nil || f.auth.registered.Age == nil || *f.auth.registered.Age != 30 {
			t.Fatalf("register input = %+v", f.auth.registered)
		}
	})

	t.Run("duplicate username", func(t *testing.T) {
		f := newFixture(apiv1.Options{})
		f.auth.registerErr = domain.NewValidationError("Username already registered")
		rec := f.do(t, http.MethodPost, "/api/auth/register",
			`{"email":"a@example.com","username":"alice","password":"password1","confirm_password":"password1"}`, false)
		if rec.Code != http.StatusBadRequest || detail(t, rec) != "Username already registered" {
			t.Fatalf("got %d", rec.Code)
		}
	})
}

func TestStock_Routes(t *testing.T) {
	t.Run("upstream failure is 502 with provider details", func(t *testing.T) {
		f := newFixture(apiv1.Options{})
		f.market.quoteErr = &domain.UpstreamError{What: "quote", Symbol: "ZZZZ", Details: []string{"finnhub: unknown symbol"}}
		rec := f.do(t, http.MethodGet, "/api/stock/quote/ZZZZ", "", true)
		if rec.Code != http.StatusBadGateway {
			t.Fatalf("want 502, got %d", rec.Code)
		}
		if got := detail(t, rec); !strings.HasPrefix(got, "Unable to fetch quote for ZZZZ.") {
			t.Fatalf("detail = %q", got)
		}
	})

	t.Run("quote body", func(t *testing.T) {
		f := newFixture(apiv1.Options{})
		rec := f.do(t, http.MethodGet, "/api/stock/quote/aapl", "", true)
		if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"current_price":187.5`) {
			t.Fatalf("got %d %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("candle query defaults and binding", func(t *testing.T) {
		f := newFixture(apiv1.Options{})
		if rec := f.do(t, http.MethodGet, "/api/stock/candle/AAPL", "", true); rec.Code != http.StatusOK {
			t.Fatalf("got %d", rec.Code)
		}
		if f.market.resolution != "D" || f.market.days != 30 {
			t.Fatalf("defaults = %s/%d", f.market.resolution, f.market.days)
		}
		if rec := f.do(t, http.MethodGet, "/api/stock/candle/AAPL?resolution=W&days=90", "", true); rec.Code != http.StatusOK {
			t.Fatalf("got %d", rec.Code)
		}
		if f.market.resolution != "W" || f.market.days != 90 {
			t.Fatalf("bound = %s/%d", f.market.resolution, f.market.days)
		}
		if rec := f.do(t, http.MethodGet, "/api/stock/candle/AAPL?days=abc", "", true); rec.Code != http.StatusBadRequest {
			t.Fatalf("want 400 for non-numeric days, got %d", rec.Code)
		}
	})

	t.Run("search requires q", func(t *testing.T) {
		f := newFixture(apiv1.Options{})
		if rec := f.do(t, http.MethodGet, "/api/stock/search", "", true); rec.Code != http.StatusBadRequest {
			t.Fatalf("want 400, got %d", rec.Code)
		}
	})
}

func TestWatchlist_Routes(t *testing.T) {
	t.Run("full watchlist is 400 with reason", func(t *testing.T) {
		f := newFixture(apiv1.Options{})
		f.watchlist.addErr = &domain.ValidationError{Reason: "Watchlist is full (max 20 symbols)", Cause: domain.ErrWatchlistFull}
		rec := f.do(t, http.MethodPost, "/api/watchlist/add", `{"symbol":"AAPL","name":"Apple"}`, true)
		if rec.Code != http.StatusBadRequest || detail(t, rec) != "Watchlist is full (max 20 symbols)" {
			t.Fatalf("got %d", rec.Code)
		}
	})

	t.Run("list marks stale items", func(t *testing.T) {
		f := newFixture(apiv1.Options{})
		rec := f.do(t, http.MethodGet, "/api/watchlist/all", "", true)
		var items []struct {
			Symbol string `json:"symbol"`
			Stale  bool   `json:"stale"`
		}
		if err := json.NewDecoder(rec.Body).Decode(&items); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(items) != 2 || items[0].Stale || !items[1].Stale {
			t.Fatalf("items = %+v", items)
		}
	})
}

func TestChat_Routes(t *testing.T) {
	t.Run("reply carries session id", func(t *testing.T) {
		f := newFixture(apiv1.Options{})
		rec := f.do(t, http.MethodPost, "/api/chatbot/chat", `{"message":"What's AAPL doing today?"}`, true)
		if rec.Code != http.StatusOK {
			t.Fatalf("got %d %s", rec.Code, rec.Body.String())
		}
		var body struct {
			Role      string `json:"role"`
			SessionID string `json:"session_id"`
		}
		_ = json.NewDecoder(rec.Body).Decode(&body)
		if body.Role != "assistant" || body.SessionID != "s-new" {
			t.Fatalf("body = %+v", body)
		}
		if f.chat.calls[0] != "u1|What's AAPL doing today?|" {
			t.Fatalf("call = %q", f.chat.calls[0])
		}
	})

	t.Run("extra context object is ignored", func(t *testing.T) {
		f := newFixture(apiv1.Options{})
		rec := f.do(t, http.MethodPost, "/api/chatbot/chat", `{"message":"hi","context":{"page":"dashboard"}}`, true)
		if rec.Code != http.StatusOK {
			t.Fatalf("got %d %s", rec.Code, rec.Body.String())
		}
		if f.chat.calls[0] != "u1|hi|" {
			t.Fatalf("call = %q", f.chat.calls[0])
		}
	})

	t.Run("empty message rejected", func(t *testing.T) {
		f := newFixture(apiv1.Options{})
		if rec := f.do(t, http.MethodPost, "/api/chatbot/chat", `{"message":""}`, true); rec.Code != http.StatusBadRequest {
			t.Fatalf("want 400, got %d", rec.Code)
		}
	})

	t.Run("rate limit answers 429 before the orchestrator", func(t *testing.T) {
		lim := &countingLimiter{hits: map[string]int{}}
		f := newFixture(apiv1.Options{Limiter: lim, ChatPerMinute: 2})
		for i := 0; i < 2; i++ {
			if rec := f.do(t, http.MethodPost, "/api/chatbot/chat", `{"message":"hi"}`, true); rec.Code != http.StatusOK {
				t.Fatalf("call %d: got %d", i, rec.Code)
			}
		}
		rec := f.do(t, http.MethodPost, "/api/chatbot/chat", `{"message":"hi"}`, true)
		if rec.Code != http.StatusTooManyRequests {
			t.Fatalf("want 429, got %d", rec.Code)
		}
		if len(f.chat.calls) != 2 {
			t.Fatalf("orchestrator entered %d times", len(f.chat.calls))
		}
	})

	t.Run("limiter outage lets chat through", func(t *testing.T) {
		lim := &countingLimiter{hits: map[string]int{}, err: errors.New("redis down")}
		f := newFixture(apiv1.Options{Limiter: lim, ChatPerMinute: 1})
		if rec := f.do(t, http.MethodPost, "/api/chatbot/chat", `{"message":"hi"}`, true); rec.Code != http.StatusOK {
			t.Fatalf("got %d", rec.Code)
		}
	})

	t.Run("foreign session is 404", func(t *testing.T) {
		f := newFixture(apiv1.Options{})
		if rec := f.do(t, http.MethodGet, "/api/chatbot/sessions/other", "", true); rec.Code != http.StatusNotFound {
			t.Fatalf("want 404, got %d", rec.Code)
		}
	})

	t.Run("malformed session id is 404", func(t *testing.T) {
		f := newFixture(apiv1.Options{})
		rec := f.do(t, http.MethodPost, "/api/chatbot/chat", `{"message":"hi","session_id":"abc"}`, true)
		if rec.Code != http.StatusNotFound || detail(t, rec) != "Not found" {
			t.Fatalf("want 404, got %d %s", rec.Code, rec.Body.String())
		}
	})
}

func TestRAG_Routes(t *testing.T) {
	t.Run("upload previews long content", func(t *testing.T) {
		f := newFixture(apiv1.Options{})
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		fw, _ := mw.CreateFormFile("file", "notes.txt")
		_, _ = fw.Write([]byte(strings.Repeat("a", 600)))
		_ = mw.Close()

		req := httptest.NewRequest(http.MethodPost, "/api/rag/documents/upload", &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		req.Header.Set("Authorization", "Bearer "+goodToken)
		rec := httptest.NewRecorder()
		f.handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("got %d %s", rec.Code, rec.Body.String())
		}
		var doc struct {
			Title   string `json:"title"`
			Content string `json:"content"`
		}
		_ = json.NewDecoder(rec.Body).Decode(&doc)
		if doc.Title != "notes.txt" || len(doc.Content) != 503 || !strings.HasSuffix(doc.Content, "...") {
			t.Fatalf("doc = %q (%d)", doc.Title, len(doc.Content))
		}
	})

	t.Run("upload without file", func(t *testing.T) {
		f := newFixture(apiv1.Options{})
		if rec := f.do(t, http.MethodPost, "/api/rag/documents/upload", "", true); rec.Code != http.StatusBadRequest {
			t.Fatalf("want 400, got %d", rec.Code)
		}
	})

	t.Run("search", func(t *testing.T) {
		f := newFixture(apiv1.Options{})
		rec := f.do(t, http.MethodPost, "/api/rag/search", `{"query":"tesla","limit":3}`, true)
		if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"score":0.5`) {
			t.Fatalf("got %d %s", rec.Code, rec.Body.String())
		}
		if rec := f.do(t, http.MethodPost, "/api/rag/search", `{"query":"tesla","limit":500}`, true); rec.Code != http.StatusBadRequest {
			t.Fatalf("want 400 for limit above 50, got %d", rec.Code)
		}
	})

	t.Run("malformed document id is 404", func(t *testing.T) {
		f := newFixture(apiv1.Options{})
		if rec := f.do(t, http.MethodDelete, "/api/rag/documents/abc", "", true); rec.Code != http.StatusNotFound {
			t.Fatalf("want 404, got %d %s", rec.Code, rec.Body.String())
		}
		if f.knowledge.deleted != "abc" {
			t.Fatalf("id not passed through: %q", f.knowledge.deleted)
		}
	})
}

func TestMetricsRoute(t *testing.T) {
	f := newFixture(apiv1.Options{Metrics: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("# metrics"))
	})})
	rec := f.do(t, http.MethodGet, "/metrics", "", false)
	if rec.Code != http.StatusOK || rec.Body.String() != "# metrics" {
		t.Fatalf("got %d %s", rec.Code, rec.Body.String())
	}
}
