package analysis

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bobmcallan/pulse/internal/common"
	"github.com/bobmcallan/pulse/internal/models"
	"github.com/bobmcallan/pulse/internal/storage"
)

// recordingTimer fires immediately and records every requested wait.
type recordingTimer struct {
	mu    sync.Mutex
	waits []time.Duration
	c     chan time.Time
}

func newRecordingTimer() *recordingTimer {
	return &recordingTimer{c: make(chan time.Time, 1)}
}

func (r *recordingTimer) Start(d time.Duration) {
	r.mu.Lock()
	r.waits = append(r.waits, d)
	r.mu.Unlock()
	r.c <- time.Now()
}

func (r *recordingTimer) Stop() {}

func (r *recordingTimer) C() <-chan time.Time { return r.c }

func (r *recordingTimer) Waits() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.waits...)
}

// reply is one scripted LLM outcome.
type reply struct {
	text      string
	grounding []models.GroundingChunk
	err       error
}

// fakeLLM replays scripted replies in order; the last one repeats.
type fakeLLM struct {
	mu       sync.Mutex
	replies  []reply
	requests []models.CompletionRequest
	block    chan struct{}
	credErr  error
}

func (f *fakeLLM) CheckCredentials(ctx context.Context) error {
	return f.credErr
}

func (f *fakeLLM) Generate(ctx context.Context, req models.CompletionRequest) (*models.Completion, error) {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	idx := len(f.requests)
	f.requests = append(f.requests, req)
	if idx >= len(f.replies) {
		idx = len(f.replies) - 1
	}
	r := f.replies[idx]
	if r.err != nil {
		return nil, r.err
	}
	return &models.Completion{Text: r.text, Grounding: r.grounding, Model: req.Model}, nil
}

func (f *fakeLLM) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func (f *fakeLLM) Request(i int) models.CompletionRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[i]
}

// fakeMarket returns canned market data per ticker.
type fakeMarket struct {
	mu      sync.Mutex
	data    map[string]*models.MarketData
	fetched []string
}

func (f *fakeMarket) Fetch(ctx context.Context, ticker string, market models.Market) *models.MarketData {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetched = append(f.fetched, ticker)
	if md, ok := f.data[ticker]; ok {
		return md
	}
	return &models.MarketData{Ticker: ticker, Symbol: ticker, Market: market}
}

func (f *fakeMarket) FormatSymbol(ticker string, market models.Market) string {
	return ticker
}

func (f *fakeMarket) Fetched() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.fetched...)
}

// failingStore rejects every append.
type failingStore struct {
	*storage.FileReportStore
}

func (f failingStore) Append(ctx context.Context, report *models.AnalysisReport) error {
	return fmt.Errorf("disk full")
}

// 2026-03-04 is a Wednesday; 20:00 KST selects the US market.
var testNow = time.Date(2026, 3, 4, 20, 0, 0, 0, time.FixedZone("KST", 9*60*60))

func testAnalysisConfig() common.AnalysisConfig {
	return common.AnalysisConfig{
		Mode:                 ModeSingle,
		MaxAttempts:          3,
		QuotaBackoff:         "10s",
		TransientBackoff:     "5s",
		ExcludeRecent:        10,
		ExcludeWindow:        "168h",
		AppendSourcesSection: true,
		Language:             "Korean",
	}
}

type fixture struct {
	svc    *Service
	llm    *fakeLLM
	market *fakeMarket
	store  *storage.FileReportStore
	timer  *recordingTimer
}

func newFixture(t *testing.T, cfg common.AnalysisConfig, now time.Time, replies ...reply) *fixture {
	t.Helper()

	logger := common.NewSilentLogger()
	store, err := storage.NewFileReportStore(logger, t.TempDir(), 500, 0)
	if err != nil {
		t.Fatalf("NewFileReportStore failed: %v", err)
	}

	clock := common.NewMarketClock(common.ScheduleConfig{Timezone: "Asia/Seoul", KROpenHour: 9, KRCloseHour: 16}).
		WithNow(func() time.Time { return now })

	llm := &fakeLLM{replies: replies}
	market := &fakeMarket{data: map[string]*models.MarketData{}}
	timer := newRecordingTimer()

	svc := NewService(llm, market, store, clock, cfg, "gemini-test", logger)
	svc.SetTimer(timer)

	return &fixture{svc: svc, llm: llm, market: market, store: store, timer: timer}
}

func reportJSON(ticker string, price float64) string {
	return fmt.Sprintf(`{
  "title": "%[1]s 주가 전망",
  "ticker": "%[1]s",
  "price": %[2]g,
  "currency": "USD",
  "summary": "%[1]s summary",
  "sentimentScore": 72,
  "fearGreedIndex": 61,
  "targetPrice": 210,
  "investmentRating": "Buy",
  "reasons": ["AI demand", "Margin expansion", "New products"],
  "macroContext": "Rates steady",
  "valuationCheck": "Forward PER 28x",
  "technicalAnalysis": {"support": 160, "resistance": 185, "trend": "상승", "details": "Golden cross"},
  "peers": [{"name": "NVIDIA", "symbol": "NVDA", "price": 120, "performance": "+2%%", "diffReason": "Share"}],
  "fullContent": "## Overview\nBody",
  "faqs": [{"question": "Buy?", "answer": "Analysts lean positive."}]
}`, ticker, price)
}
