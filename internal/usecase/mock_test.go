//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"finance-copilot/internal/domain"
	"finance-copilot/internal/domain/model"
	"finance-copilot/internal/domain/ports/adapter"
	"finance-copilot/internal/domain/ports/repository"
)

// newTestLogger creates a silent zerolog.Logger for use in tests.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

// errMalformedKey is what Postgres raises when a non-UUID reaches a UUID column.
var errMalformedKey = &pgconn.PgError{Code: "22P02", Message: "invalid input syntax for type uuid"}

// =============================
// Transactions
// =============================

type MockTxManager struct {
	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error

	mu    sync.Mutex
	Calls int
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

func NewMockTxManager() *MockTxManager { return &MockTxManager{} }

// MockTx stands in for a database transaction; release funcs run when the
// transaction ends, the way Postgres frees xact-scoped locks.
type MockTx struct {
	release []func()
}

func (t *MockTx) onEnd(f func()) { t.release = append(t.release, f) }

// WithTx runs fn immediately with a fresh MockTx unless WithTxFunc is set.
func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	m.mu.Lock()
	m.Calls++
	m.mu.Unlock()
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	tx := &MockTx{}
	defer func() {
		for i := len(tx.release) - 1; i >= 0; i-- {
			tx.release[i]()
		}
	}()
	return fn(ctx, tx)
}

// =============================
// Repositories
// =============================

// ---- Mock UserRepository ----

type MockUserRepo struct {
	mu   sync.Mutex
	byID map[string]*model.User

	SaveFunc     func(ctx context.Context, tx repository.Tx, u *model.User) error
	FindByIDFunc func(ctx context.Context, tx repository.Tx, id string) (*model.User, error)
}

var _ repository.UserRepository = (*MockUserRepo)(nil)

func NewMockUserRepo() *MockUserRepo { return &MockUserRepo{byID: map[string]*model.User{}} }

func (r *MockUserRepo) Save(ctx context.Context, tx repository.Tx, u *model.User) error {
	if r.SaveFunc != nil {
		return r.SaveFunc(ctx, tx, u)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *u
	r.byID[cp.ID] = &cp
	return nil
}

func (r *MockUserRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.User, error) {
	if r.FindByIDFunc != nil {
		return r.FindByIDFunc(ctx, tx, id)
	}
	return r.find(func(u *model.User) bool { return u.ID == id })
}

func (r *MockUserRepo) FindByUsername(ctx context.Context, tx repository.Tx, username string) (*model.User, error) {
	return r.find(func(u *model.User) bool { return u.Username == username })
}

func (r *MockUserRepo) FindByEmail(ctx context.Context, tx repository.Tx, email string) (*model.User, error) {
	return r.find(func(u *model.User) bool { return strings.EqualFold(u.Email, email) })
}

func (r *MockUserRepo) FindByVerificationToken(ctx context.Context, tx repository.Tx, token string) (*model.User, error) {
	return r.find(func(u *model.User) bool { return u.VerificationToken != nil && *u.VerificationToken == token })
}

func (r *MockUserRepo) find(match func(*model.User) bool) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.byID {
		if match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

// ---- Mock AuthSessionRepository ----

type MockAuthSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*model.AuthSession
	Touched  []string

	TouchFunc func(ctx context.Context, tx repository.Tx, id string, at time.Time) error
}

var _ repository.AuthSessionRepository = (*MockAuthSessionRepo)(nil)

func NewMockAuthSessionRepo() *MockAuthSessionRepo {
	return &MockAuthSessionRepo{sessions: map[string]*model.AuthSession{}}
}

func (r *MockAuthSessionRepo) Save(ctx context.Context, tx repository.Tx, s *model.AuthSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *s
	r.sessions[cp.ID] = &cp
	return nil
}

func (r *MockAuthSessionRepo) FindByToken(ctx context.Context, tx repository.Tx, userID, tokenHash string) (*model.AuthSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		if s.UserID == userID && s.TokenHash == tokenHash {
			cp := *s
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *MockAuthSessionRepo) Touch(ctx context.Context, tx repository.Tx, id string, at time.Time) error {
	if r.TouchFunc != nil {
		return r.TouchFunc(ctx, tx, id, at)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Touched = append(r.Touched, id)
	if s, ok := r.sessions[id]; ok {
		s.LastActivity = at
	}
	return nil
}

func (r *MockAuthSessionRepo) Deactivate(ctx context.Context, tx repository.Tx, userID, tokenHash string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	hit := false
	for _, s := range r.sessions {
		if s.UserID == userID && s.TokenHash == tokenHash && s.IsActive {
			s.IsActive = false
			hit = true
		}
	}
	return hit, nil
}

func (r *MockAuthSessionRepo) DeactivateAll(ctx context.Context, tx repository.Tx, userID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, s := range r.sessions {
		if s.UserID == userID && s.IsActive {
			s.IsActive = false
			n++
		}
	}
	return n, nil
}

func (r *MockAuthSessionRepo) ListActive(ctx context.Context, tx repository.Tx, userID string, now time.Time) ([]*model.AuthSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.AuthSession
	for _, s := range r.sessions {
		if s.UserID == userID && s.Valid(now) {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *MockAuthSessionRepo) DeleteExpired(ctx context.Context, tx repository.Tx, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, s := range r.sessions {
		if !s.ExpiresAt.After(now) {
			delete(r.sessions, id)
			n++
		}
	}
	return n, nil
}

// ---- Mock ChatSessionRepository ----

type MockChatSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*model.ChatSession
	messages map[string][]*model.ChatMessage

	InsertMessageFunc func(ctx context.Context, tx repository.Tx, m *model.ChatMessage) error
}

var _ repository.ChatSessionRepository = (*MockChatSessionRepo)(nil)

func NewMockChatSessionRepo() *MockChatSessionRepo {
	return &MockChatSessionRepo{
		sessions: map[string]*model.ChatSession{},
		messages: map[string][]*model.ChatMessage{},
	}
}

func (r *MockChatSessionRepo) Save(ctx context.Context, tx repository.Tx, s *model.ChatSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *s
	r.sessions[cp.ID] = &cp
	return nil
}

func (r *MockChatSessionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.ChatSession, error) {
	if !model.ValidID(id) {
		return nil, errMalformedKey
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *MockChatSessionRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string, limit int) ([]*model.ChatSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.ChatSession
	for _, s := range r.sessions {
		if s.UserID == userID {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MockChatSessionRepo) Delete(ctx context.Context, tx repository.Tx, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; !ok {
		return domain.ErrNotFound
	}
	delete(r.sessions, id)
	delete(r.messages, id)
	return nil
}

func (r *MockChatSessionRepo) UpdateSummary(ctx context.Context, tx repository.Tx, id, summary string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return domain.ErrNotFound
	}
	s.Summary = &summary
	s.UpdatedAt = at
	return nil
}

func (r *MockChatSessionRepo) InsertMessage(ctx context.Context, tx repository.Tx, m *model.ChatMessage) error {
	if r.InsertMessageFunc != nil {
		return r.InsertMessageFunc(ctx, tx, m)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *m
	r.messages[m.SessionID] = append(r.messages[m.SessionID], &cp)
	return nil
}

func (r *MockChatSessionRepo) CountMessages(ctx context.Context, tx repository.Tx, sessionID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.messages[sessionID]), nil
}

func (r *MockChatSessionRepo) DeleteOldestMessages(ctx context.Context, tx repository.Tx, sessionID string, n int) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	msgs := r.messages[sessionID]
	if n > len(msgs) {
		n = len(msgs)
	}
	r.messages[sessionID] = append([]*model.ChatMessage(nil), msgs[n:]...)
	return int64(n), nil
}

func (r *MockChatSessionRepo) SetMessageCount(ctx context.Context, tx repository.Tx, sessionID string, count int, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sessionID]
	if !ok {
		return domain.ErrNotFound
	}
	s.MessageCount = count
	s.UpdatedAt = at
	return nil
}

func (r *MockChatSessionRepo) ListMessages(ctx context.Context, tx repository.Tx, sessionID string, last int) ([]*model.ChatMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	msgs := r.messages[sessionID]
	if last > 0 && len(msgs) > last {
		msgs = msgs[len(msgs)-last:]
	}
	out := make([]*model.ChatMessage, 0, len(msgs))
	for _, m := range msgs {
		cp := *m
		out = append(out, &cp)
	}
	return out, nil
}

// Seed stores n alternating user/assistant messages and updates the count.
func (r *MockChatSessionRepo) Seed(sessionID string, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := 0; i < n; i++ {
		role := model.RoleUser
		if i%2 == 1 {
			role = model.RoleAssistant
		}
		r.messages[sessionID] = append(r.messages[sessionID], model.NewChatMessage(sessionID, role, fmt.Sprintf("message %d", i)))
	}
	if s, ok := r.sessions[sessionID]; ok {
		s.MessageCount = len(r.messages[sessionID])
	}
}

// ---- Mock WatchlistRepository ----

type MockWatchlistRepo struct {
	mu    sync.Mutex
	items []*model.WatchlistItem

	UpdatePriceCalls int
	LockCalls        int

	userLocks sync.Map // userID -> *sync.Mutex
}

var _ repository.WatchlistRepository = (*MockWatchlistRepo)(nil)

func NewMockWatchlistRepo() *MockWatchlistRepo { return &MockWatchlistRepo{} }

func (r *MockWatchlistRepo) Save(ctx context.Context, tx repository.Tx, it *model.WatchlistItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, x := range r.items {
		if x.UserID == it.UserID && x.Symbol == it.Symbol {
			return domain.ErrAlreadyExists
		}
	}
	cp := *it
	r.items = append(r.items, &cp)
	return nil
}

func (r *MockWatchlistRepo) FindByUserSymbol(ctx context.Context, tx repository.Tx, userID, symbol string) (*model.WatchlistItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, x := range r.items {
		if x.UserID == userID && x.Symbol == symbol {
			cp := *x
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *MockWatchlistRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string) ([]*model.WatchlistItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.WatchlistItem
	for _, x := range r.items {
		if x.UserID == userID {
			cp := *x
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *MockWatchlistRepo) CountByUser(ctx context.Context, tx repository.Tx, userID string) (int, error) {
	items, _ := r.ListByUser(ctx, tx, userID)
	return len(items), nil
}

// LockUser blocks while another MockTx holds the same user's lock.
func (r *MockWatchlistRepo) LockUser(ctx context.Context, tx repository.Tx, userID string) error {
	r.mu.Lock()
	r.LockCalls++
	r.mu.Unlock()
	mt, ok := tx.(*MockTx)
	if !ok {
		return nil
	}
	v, _ := r.userLocks.LoadOrStore(userID, &sync.Mutex{})
	l := v.(*sync.Mutex)
	l.Lock()
	mt.onEnd(l.Unlock)
	return nil
}

func (r *MockWatchlistRepo) UpdatePrice(ctx context.Context, tx repository.Tx, id string, price, changePct float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.UpdatePriceCalls++
	for _, x := range r.items {
		if x.ID == id {
			x.SetPrice(price, changePct)
			return nil
		}
	}
	return domain.ErrNotFound
}

func (r *MockWatchlistRepo) Delete(ctx context.Context, tx repository.Tx, userID, symbol string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, x := range r.items {
		if x.UserID == userID && x.Symbol == symbol {
			r.items = append(r.items[:i], r.items[i+1:]...)
			return nil
		}
	}
	return domain.ErrNotFound
}

// ---- Mock DocumentRepository ----

type MockDocumentRepo struct {
	mu   sync.Mutex
	docs map[string]*model.Document
}

var _ repository.DocumentRepository = (*MockDocumentRepo)(nil)

func NewMockDocumentRepo() *MockDocumentRepo { return &MockDocumentRepo{docs: map[string]*model.Document{}} }

func (r *MockDocumentRepo) Save(ctx context.Context, tx repository.Tx, d *model.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *d
	r.docs[cp.ID] = &cp
	return nil
}

func (r *MockDocumentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Document, error) {
	if !model.ValidID(id) {
		return nil, errMalformedKey
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.docs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (r *MockDocumentRepo) ListByOwner(ctx context.Context, tx repository.Tx, ownerID string, limit int) ([]*model.Document, error) {
	return r.filter(limit, func(d *model.Document) bool { return d.OwnedBy(ownerID) }), nil
}

func (r *MockDocumentRepo) SearchText(ctx context.Context, tx repository.Tx, query, userID string, limit int) ([]*model.Document, error) {
	q := strings.ToLower(query)
	return r.filter(limit, func(d *model.Document) bool {
		return d.VisibleTo(userID) &&
			(strings.Contains(strings.ToLower(d.Title), q) || strings.Contains(strings.ToLower(d.Content), q))
	}), nil
}

func (r *MockDocumentRepo) Delete(ctx context.Context, tx repository.Tx, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.docs[id]; !ok {
		return domain.ErrNotFound
	}
	delete(r.docs, id)
	return nil
}

func (r *MockDocumentRepo) SetIndexed(ctx context.Context, tx repository.Tx, id string, indexed bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.docs[id]
	if !ok {
		return domain.ErrNotFound
	}
	d.Indexed = indexed
	return nil
}

func (r *MockDocumentRepo) ListUnindexed(ctx context.Context, tx repository.Tx, limit int) ([]*model.Document, error) {
	return r.filter(limit, func(d *model.Document) bool { return !d.Indexed }), nil
}

func (r *MockDocumentRepo) filter(limit int, keep func(*model.Document) bool) []*model.Document {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Document
	for _, d := range r.docs {
		if keep(d) {
			cp := *d
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// ---- Mock VectorIndex ----

// MockVectorIndex returns the stored documents in insertion order with a
// fixed distance; SearchErr forces the text fallback.
type MockVectorIndex struct {
	mu      sync.Mutex
	entries []model.VectorMatch

	SearchErr error
	DeleteErr error
	Deleted   []string
}

var _ repository.VectorIndex = (*MockVectorIndex)(nil)

func (v *MockVectorIndex) Upsert(ctx context.Context, d *model.Document, embedding []float32) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.entries = append(v.entries, model.VectorMatch{
		DocumentID: d.ID, OwnerID: d.OwnerID, Title: d.Title, Content: d.Content, Distance: 0.2,
	})
	return nil
}

func (v *MockVectorIndex) Search(ctx context.Context, embedding []float32, k int) ([]model.VectorMatch, error) {
	if v.SearchErr != nil {
		return nil, v.SearchErr
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	out := append([]model.VectorMatch(nil), v.entries...)
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

func (v *MockVectorIndex) Delete(ctx context.Context, documentID string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.Deleted = append(v.Deleted, documentID)
	return v.DeleteErr
}

// =============================
// Adapters
// =============================

// ---- Mock Embedder ----

type MockEmbedder struct {
	Err   error
	Calls int
}

func (e *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.Calls++
	if e.Err != nil {
		return nil, e.Err
	}
	return []float32{1, 0, 0}, nil
}

// ---- Mock AIServiceAdapter ----

type MockAI struct {
	mu sync.Mutex

	ChatFunc          func(ctx context.Context, model string, msgs []adapter.Message) (string, error)
	ChatWithToolsFunc func(ctx context.Context, req adapter.ChatRequest) (adapter.ChatResponse, error)

	ChatCalls      [][]adapter.Message
	ToolCallsSeen  int
	LastToolsModel string
}

var _ adapter.AIServiceAdapter = (*MockAI)(nil)

func (m *MockAI) ListModels(ctx context.Context) ([]string, error) { return []string{"mock"}, nil }

func (m *MockAI) CountTokens(ctx context.Context, model string, msgs []adapter.Message) (int, error) {
	n := 0
	for _, x := range msgs {
		n += len(x.Content) / 4
	}
	return n, nil
}

func (m *MockAI) Chat(ctx context.Context, model string, msgs []adapter.Message) (string, error) {
	m.mu.Lock()
	m.ChatCalls = append(m.ChatCalls, msgs)
	m.mu.Unlock()
	if m.ChatFunc != nil {
		return m.ChatFunc(ctx, model, msgs)
	}
	return "mock reply", nil
}

func (m *MockAI) ChatWithUsage(ctx context.Context, model string, msgs []adapter.Message) (string, adapter.Usage, error) {
	text, err := m.Chat(ctx, model, msgs)
	return text, adapter.Usage{}, err
}

func (m *MockAI) ChatWithTools(ctx context.Context, req adapter.ChatRequest) (adapter.ChatResponse, error) {
	m.mu.Lock()
	m.ToolCallsSeen++
	m.LastToolsModel = req.Model
	m.mu.Unlock()
	if m.ChatWithToolsFunc != nil {
		return m.ChatWithToolsFunc(ctx, req)
	}
	return adapter.ChatResponse{Text: "agent reply"}, nil
}

// ChatCount is the number of direct Chat calls so far.
func (m *MockAI) ChatCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.ChatCalls)
}

// ---- Mock MarketProvider ----

type MockMarketProvider struct {
	NameValue string

	QuoteFunc   func(ctx context.Context, symbol string) (*model.Quote, error)
	CandlesFunc func(ctx context.Context, symbol, resolution string, days int) ([]model.Candle, error)
	MetricsFunc func(ctx context.Context, symbol string) (*model.Metrics, error)
	SearchFunc  func(ctx context.Context, query string, limit int) ([]model.SymbolMatch, error)

	mu         sync.Mutex
	QuoteCalls int
}

var _ adapter.MarketProvider = (*MockMarketProvider)(nil)

var errNotImplemented = errors.New("not implemented")

func (p *MockMarketProvider) Name() string { return p.NameValue }

func (p *MockMarketProvider) Quote(ctx context.Context, symbol string) (*model.Quote, error) {
	p.mu.Lock()
	p.QuoteCalls++
	p.mu.Unlock()
	if p.QuoteFunc != nil {
		return p.QuoteFunc(ctx, symbol)
	}
	return nil, errNotImplemented
}

func (p *MockMarketProvider) Candles(ctx context.Context, symbol, resolution string, days int) ([]model.Candle, error) {
	if p.CandlesFunc != nil {
		return p.CandlesFunc(ctx, symbol, resolution, days)
	}
	return nil, errNotImplemented
}

func (p *MockMarketProvider) Metrics(ctx context.Context, symbol string) (*model.Metrics, error) {
	if p.MetricsFunc != nil {
		return p.MetricsFunc(ctx, symbol)
	}
	return nil, errNotImplemented
}

func (p *MockMarketProvider) SearchSymbols(ctx context.Context, query string, limit int) ([]model.SymbolMatch, error) {
	if p.SearchFunc != nil {
		return p.SearchFunc(ctx, query, limit)
	}
	return nil, errNotImplemented
}

// ---- Mock NewsProvider ----

type MockNewsProvider struct {
	CompanyErr error
	Items      []model.NewsItem
	Categories []string
}

func (n *MockNewsProvider) CompanyNews(ctx context.Context, symbol string, days int) ([]model.NewsItem, error) {
	if n.CompanyErr != nil {
		return nil, n.CompanyErr
	}
	return n.Items, nil
}

func (n *MockNewsProvider) GeneralNews(ctx context.Context, category string) ([]model.NewsItem, error) {
	n.Categories = append(n.Categories, category)
	return n.Items, nil
}

// ---- Mock QuoteCache ----

type MockQuoteCache struct {
	mu     sync.Mutex
	quotes map[string]model.Quote
}

var _ adapter.QuoteCache = (*MockQuoteCache)(nil)

func NewMockQuoteCache() *MockQuoteCache { return &MockQuoteCache{quotes: map[string]model.Quote{}} }

func (c *MockQuoteCache) GetQuote(ctx context.Context, symbol string) (*model.Quote, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	q, ok := c.quotes[symbol]
	if !ok {
		return nil, false
	}
	return &q, true
}

func (c *MockQuoteCache) StoreQuote(ctx context.Context, q *model.Quote, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.quotes[q.Symbol] = *q
	return nil
}

// =============================
// Security doubles
// =============================

type fakeHasher struct{}

func (fakeHasher) Hash(pw string) (string, error) { return "hashed:" + pw, nil }
func (fakeHasher) Verify(hash, pw string) bool    { return hash == "hashed:"+pw }

// fakeTokens issues "tok:<user>:<n>" tokens.
type fakeTokens struct {
	mu sync.Mutex
	n  int
}

func (f *fakeTokens) Mint(userID, username string) (string, time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.n++
	return fmt.Sprintf("tok:%s:%d", userID, f.n), time.Now().Add(time.Hour), nil
}

func (f *fakeTokens) Parse(raw string) (string, error) {
	parts := strings.Split(raw, ":")
	if len(parts) != 3 || parts[0] != "tok" {
		return "", errors.New("malformed token")
	}
	return parts[1], nil
}

// =============================
// Fixtures
// =============================

func quoteOf(sym string, price float64) *model.Quote {
	return &model.Quote{Symbol: sym, CurrentPrice: price, ChangePercent: 1.5, Volume: 1000}
}

// okProvider serves a fixed quote for any symbol plus a search result.
func okProvider(name string, price float64) *MockMarketProvider {
	return &MockMarketProvider{
		NameValue: name,
		QuoteFunc: func(ctx context.Context, symbol string) (*model.Quote, error) {
			return quoteOf(symbol, price), nil
		},
		SearchFunc: func(ctx context.Context, query string, limit int) ([]model.SymbolMatch, error) {
			return []model.SymbolMatch{{Symbol: strings.ToUpper(query), Description: strings.ToUpper(query) + " Inc", Type: "Common Stock"}}, nil
		},
	}
}
