package model

// Quote is a point-in-time price snapshot.
type Quote struct {
	Symbol        string  `json:"symbol"`
	CurrentPrice  float64 `json:"current_price"`
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"change_percent"`
	High          float64 `json:"high"`
	Low           float64 `json:"low"`
	Open          float64 `json:"open"`
	PreviousClose float64 `json:"previous_close"`
	Volume        int64   `json:"volume"`
	Timestamp     int64   `json:"timestamp"`
}

// Candle is one OHLCV bar.
type Candle struct {
	Symbol    string  `json:"symbol"`
	Timestamp int64   `json:"timestamp"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    int64   `json:"volume"`
}

// Metrics holds the eight fundamental fields; nil means the provider had no value.
type Metrics struct {
	Symbol        string   `json:"symbol"`
	PERatio       *float64 `json:"pe_ratio"`
	EPS           *float64 `json:"eps"`
	MarketCap     *float64 `json:"market_cap"`
	DividendYield *float64 `json:"dividend_yield"`
	ProfitMargin  *float64 `json:"profit_margin"`
	RevenueGrowth *float64 `json:"revenue_growth"`
	PriceToBook   *float64 `json:"price_to_book"`
	DebtToEquity  *float64 `json:"debt_to_equity"`
}

// MetricFieldCount is the completeness denominator.
const MetricFieldCount = 8

func (m *Metrics) fields() []**float64 {
	return []**float64{
		&m.PERatio, &m.EPS, &m.MarketCap, &m.DividendYield,
		&m.ProfitMargin, &m.RevenueGrowth, &m.PriceToBook, &m.DebtToEquity,
	}
}

// Completeness is the fraction of non-nil fields.
func (m *Metrics) Completeness() float64 {
	if m == nil {
		return 0
	}
	n := 0
	for _, f := range m.fields() {
		if *f != nil {
			n++
		}
	}
	return float64(n) / MetricFieldCount
}

// FillFrom copies every field that is nil in m but set in other.
// Fields already present in m are never overwritten.
func (m *Metrics) FillFrom(other *Metrics) {
	if other == nil {
		return
	}
	dst, src := m.fields(), other.fields()
	for i := range dst {
		if *dst[i] == nil && *src[i] != nil {
			v := **src[i]
			*dst[i] = &v
		}
	}
	if m.Symbol == "" {
		m.Symbol = other.Symbol
	}
}

type NewsItem struct {
	ID             int64    `json:"id,omitempty"`
	Title          string   `json:"title"`
	Source         string   `json:"source"`
	URL            string   `json:"url"`
	Summary        string   `json:"summary,omitempty"`
	Image          string   `json:"image,omitempty"`
	PublishedAt    int64    `json:"published_at"`
	RelatedSymbols []string `json:"related_symbols,omitempty"`
}

type SymbolMatch struct {
	Symbol      string `json:"symbol"`
	Description string `json:"description"`
	Type        string `json:"type"`
}

type Insight struct {
	Symbol      string   `json:"symbol"`
	Summary     string   `json:"summary"`
	KeyPoints   []string `json:"key_points"`
	GeneratedAt string   `json:"generated_at"`
}

type CompanyAnalysis struct {
	Symbol      string   `json:"symbol"`
	Metrics     *Metrics `json:"metrics"`
	HealthScore float64  `json:"health_score"`
	AISummary   string   `json:"ai_summary"`
}

// HealthScore is a coarse fundamentals heuristic in [0.5, 1.0].
func HealthScore(m *Metrics) float64 {
	score := 0.5
	if m == nil {
		return score
	}
	if m.PERatio != nil && *m.PERatio >= 10 && *m.PERatio <= 25 {
		score += 0.1
	}
	if m.ProfitMargin != nil && *m.ProfitMargin > 0.1 {
		score += 0.1
	}
	if m.RevenueGrowth != nil && *m.RevenueGrowth > 0 {
		score += 0.1
	}
	if m.DebtToEquity != nil && *m.DebtToEquity < 1.0 {
		score += 0.1
	}
	if score > 1.0 {
		score = 1.0
	}
	return score
}

// Float returns a pointer to v; handy for optional metric fields.
func Float(v float64) *float64 { return &v }
