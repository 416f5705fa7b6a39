// Package models defines data structures for Pulse
package models

import (
	"time"
)

// Market identifies the exchange group a report covers.
type Market string

const (
	MarketKR Market = "KR"
	MarketUS Market = "US"
)

// Valid reports whether m is a supported market.
func (m Market) Valid() bool {
	return m == MarketKR || m == MarketUS
}

// Currency returns the quote currency for the market.
func (m Market) Currency() string {
	if m == MarketKR {
		return "KRW"
	}
	return "USD"
}

// Trend is the technical direction of a ticker.
type Trend string

const (
	TrendUp   Trend = "up"
	TrendDown Trend = "down"
	TrendFlat Trend = "flat"
)

// Rating is the investment recommendation attached to a report.
type Rating string

const (
	RatingStrongBuy Rating = "StrongBuy"
	RatingBuy       Rating = "Buy"
	RatingHold      Rating = "Hold"
	RatingSell      Rating = "Sell"
)

// AnalysisReport is a generated stock analysis article. Reports are never
// mutated after they are finalized; the collection only appends and evicts.
type AnalysisReport struct {
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
	Market    Market `json:"market" validate:"required,oneof=KR US"`
	Ticker    string `json:"ticker" validate:"required"`

	Price             float64           `json:"price" validate:"gte=0"`
	Currency          string            `json:"currency"`
	TargetPrice       float64           `json:"targetPrice" validate:"gte=0"`
	TechnicalAnalysis TechnicalAnalysis `json:"technicalAnalysis"`

	Title          string   `json:"title" validate:"required"`
	Summary        string   `json:"summary" validate:"required"`
	Reasons        []string `json:"reasons"`
	MacroContext   string   `json:"macroContext,omitempty"`
	ValuationCheck string   `json:"valuationCheck,omitempty"`
	FullContent    string   `json:"fullContent" validate:"required"`
	FAQs           []FAQ    `json:"faqs" validate:"dive"`
	Peers          []Peer   `json:"peers" validate:"dive"`

	SentimentScore   float64      `json:"sentimentScore" validate:"gte=0,lte=100"`
	FearGreedIndex   float64      `json:"fearGreedIndex" validate:"gte=0,lte=100"`
	InvestmentRating Rating       `json:"investmentRating" validate:"oneof=StrongBuy Buy Hold Sell"`
	Sources          []Source     `json:"sources,omitempty"`
	ChartData        []ChartPoint `json:"chartData,omitempty"`
}

// TechnicalAnalysis holds chart levels asserted by the model.
type TechnicalAnalysis struct {
	Support    float64 `json:"support" validate:"gte=0"`
	Resistance float64 `json:"resistance" validate:"gte=0"`
	Trend      Trend   `json:"trend" validate:"oneof=up down flat"`
	Details    string  `json:"details"`
}

// FAQ is a question/answer pair rendered as structured data.
type FAQ struct {
	Question string `json:"question" validate:"required"`
	Answer   string `json:"answer" validate:"required"`
}

// Peer is a competitor comparison row.
type Peer struct {
	Name        string  `json:"name" validate:"required"`
	Symbol      string  `json:"symbol"`
	Price       float64 `json:"price"`
	Performance string  `json:"performance"`
	DiffReason  string  `json:"diffReason,omitempty"`
}

// Source is a grounding citation collected from the web search tool.
type Source struct {
	Title string `json:"title"`
	URI   string `json:"uri"`
}

// ChartPoint is one price sample of the report chart.
type ChartPoint struct {
	Time  string  `json:"time"`
	Price float64 `json:"price"`
}

// CreatedAt parses the report timestamp. A zero time is returned on failure.
func (r *AnalysisReport) CreatedAt() time.Time {
	t, err := time.Parse(time.RFC3339Nano, r.Timestamp)
	if err != nil {
		return time.Time{}
	}
	return t
}

// ReportSummary is a manifest entry: a report without its long-form body.
type ReportSummary struct {
	ID               string  `json:"id"`
	Timestamp        string  `json:"timestamp"`
	Market           Market  `json:"market"`
	Ticker           string  `json:"ticker"`
	Title            string  `json:"title"`
	Summary          string  `json:"summary"`
	Price            float64 `json:"price"`
	Currency         string  `json:"currency"`
	SentimentScore   float64 `json:"sentimentScore"`
	InvestmentRating Rating  `json:"investmentRating"`
}

// Summarize projects the report into its manifest entry.
func (r *AnalysisReport) Summarize() ReportSummary {
	return ReportSummary{
		ID:               r.ID,
		Timestamp:        r.Timestamp,
		Market:           r.Market,
		Ticker:           r.Ticker,
		Title:            r.Title,
		Summary:          r.Summary,
		Price:            r.Price,
		Currency:         r.Currency,
		SentimentScore:   r.SentimentScore,
		InvestmentRating: r.InvestmentRating,
	}
}

// ResearchFacts is the output of the research pass of a two-pass run:
// the chosen subject plus the numeric facts the writing pass builds on.
type ResearchFacts struct {
	Ticker           string   `json:"ticker"`
	Name             string   `json:"name"`
	Price            float64  `json:"price"`
	Currency         string   `json:"currency"`
	ChangePercent    float64  `json:"changePercent"`
	TargetPrice      float64  `json:"targetPrice"`
	Support          float64  `json:"support"`
	Resistance       float64  `json:"resistance"`
	Trend            string   `json:"trend"`
	SentimentScore   float64  `json:"sentimentScore"`
	FearGreedIndex   float64  `json:"fearGreedIndex"`
	InvestmentRating string   `json:"investmentRating"`
	Catalysts        []string `json:"catalysts"`
	Peers            []Peer   `json:"peers"`
}

// RecentTickers returns the tickers of the first n reports plus any report
// created at or after since, de-duplicated in the order given. reports must
// be most-recent-first.
func RecentTickers(reports []*AnalysisReport, n int, since time.Time) []string {
	seen := make(map[string]bool)
	var tickers []string
	for i, r := range reports {
		if i >= n && (since.IsZero() || r.CreatedAt().Before(since)) {
			continue
		}
		if r.Ticker == "" || seen[r.Ticker] {
			continue
		}
		seen[r.Ticker] = true
		tickers = append(tickers, r.Ticker)
	}
	return tickers
}
