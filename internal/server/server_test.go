package server

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/bobmcallan/pulse/internal/app"
	"github.com/bobmcallan/pulse/internal/common"
	"github.com/bobmcallan/pulse/internal/models"
)

// testNow is a Wednesday evening in Seoul, inside the US window.
var testNow = time.Date(2026, 3, 4, 20, 0, 0, 0, time.FixedZone("KST", 9*60*60))

// stubLLM answers every call with the same text or error. A non-nil block
// holds calls until it is closed.
type stubLLM struct {
	mu    sync.Mutex
	text  string
	err   error
	calls int
	block chan struct{}
}

func (s *stubLLM) Generate(ctx context.Context, req models.CompletionRequest) (*models.Completion, error) {
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &models.Completion{Text: s.text, Model: req.Model}, nil
}

// CheckCredentials reports a scripted missing-credential error without a call.
func (s *stubLLM) CheckCredentials(ctx context.Context) error {
	if errors.Is(s.err, models.ErrMissingCredential) {
		return s.err
	}
	return nil
}

// stubMarketClient quotes every symbol at a fixed price.
type stubMarketClient struct {
	price float64
}

func (s *stubMarketClient) Name() string { return "yahoo" }

func (s *stubMarketClient) GetSnapshot(ctx context.Context, symbol string) (*models.Snapshot, error) {
	return &models.Snapshot{Symbol: symbol, Price: s.price, Currency: "USD"}, nil
}

func (s *stubMarketClient) GetHistory(ctx context.Context, symbol string, window time.Duration) ([]models.PricePoint, error) {
	return []models.PricePoint{
		{Time: testNow.Add(-2 * time.Hour), Price: s.price - 1},
		{Time: testNow.Add(-time.Hour), Price: s.price},
	}, nil
}

// newTestServer builds a Server over a temp file store.
func newTestServer(t *testing.T, llm *stubLLM) *Server {
	t.Helper()
	dir := t.TempDir()

	config := `
[storage]
backend = "file"
path = "` + filepath.ToSlash(filepath.Join(dir, "data")) + `"

[schedule]
enabled = false

[analysis]
max_attempts = 1
`
	configPath := filepath.Join(dir, "pulse.toml")
	if err := os.WriteFile(configPath, []byte(config), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	a, err := app.NewApp(configPath,
		app.WithLLMClient(llm),
		app.WithMarketDataClient(&stubMarketClient{price: 97.5}),
		app.WithLogger(common.NewSilentLogger()),
		app.WithClock(func() time.Time { return testNow }),
	)
	if err != nil {
		t.Fatalf("NewApp failed: %v", err)
	}
	t.Cleanup(a.Close)

	return NewServer(a)
}

func seedReport(t *testing.T, s *Server, i int, market models.Market, ticker string) *models.AnalysisReport {
	t.Helper()
	r := &models.AnalysisReport{
		ID:               fmt.Sprintf("report-%d", i),
		Timestamp:        testNow.UTC().Add(time.Duration(i) * time.Minute).Format(time.RFC3339),
		Market:           market,
		Ticker:           ticker,
		Price:            100,
		Currency:         market.Currency(),
		Title:            ticker + " outlook",
		Summary:          "summary",
		FullContent:      "## Overview\n\n| a | b |\n|---|---|\n| 1 | 2 |\n\n<script>alert(1)</script>",
		InvestmentRating: models.RatingBuy,
		TechnicalAnalysis: models.TechnicalAnalysis{
			Support:    95,
			Resistance: 110,
			Trend:      models.TrendUp,
		},
		ChartData: []models.ChartPoint{
			{Time: "03/04 09:00", Price: 98},
			{Time: "03/04 10:00", Price: 99.5},
			{Time: "03/04 11:00", Price: 100},
		},
	}
	if err := s.app.Store.Append(context.Background(), r); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	return r
}

func testReportJSON(ticker string) string {
	return `{
  "title": "` + ticker + ` outlook",
  "ticker": "` + ticker + `",
  "price": 100,
  "currency": "USD",
  "summary": "summary",
  "sentimentScore": 70,
  "fearGreedIndex": 55,
  "targetPrice": 120,
  "investmentRating": "Buy",
  "reasons": ["one", "two", "three"],
  "technicalAnalysis": {"support": 90, "resistance": 110, "trend": "up", "details": "steady"},
  "peers": [],
  "fullContent": "## Overview\nBody",
  "faqs": [{"question": "Q?", "answer": "A."}]
}`
}
