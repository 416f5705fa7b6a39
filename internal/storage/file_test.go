package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/bobmcallan/pulse/internal/common"
	"github.com/bobmcallan/pulse/internal/models"
)

// --- Test helpers ---

func newTestStore(t *testing.T, dir string, max int) *FileReportStore {
	t.Helper()
	fs, err := NewFileReportStore(common.NewSilentLogger(), dir, max, 0)
	if err != nil {
		t.Fatalf("NewFileReportStore failed: %v", err)
	}
	return fs
}

var baseTime = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

func testReport(i int, ticker string) *models.AnalysisReport {
	return &models.AnalysisReport{
		ID:               fmt.Sprintf("report-%d", i),
		Timestamp:        baseTime.Add(time.Duration(i) * time.Hour).Format(time.RFC3339),
		Market:           models.MarketUS,
		Ticker:           ticker,
		Title:            ticker + " outlook",
		Summary:          "summary",
		FullContent:      "## body",
		InvestmentRating: models.RatingHold,
		TechnicalAnalysis: models.TechnicalAnalysis{
			Trend: models.TrendFlat,
		},
	}
}

func ids(reports []*models.AnalysisReport) []string {
	out := make([]string, len(reports))
	for i, r := range reports {
		out[i] = r.ID
	}
	return out
}

// --- Tests ---

func TestFileReportStore_AppendIsMostRecentFirst(t *testing.T) {
	ctx := context.Background()
	fs := newTestStore(t, t.TempDir(), 10)

	for i, ticker := range []string{"AMD", "NVDA", "TSLA"} {
		if err := fs.Append(ctx, testReport(i, ticker)); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	reports, err := fs.List(ctx, 0)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	got := ids(reports)
	want := []string{"report-2", "report-1", "report-0"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("List = %v, want %v", got, want)
	}

	limited, _ := fs.List(ctx, 2)
	if len(limited) != 2 || limited[0].ID != "report-2" {
		t.Errorf("List(2) = %v", ids(limited))
	}
}

func TestFileReportStore_CapEvictsExactlyOldest(t *testing.T) {
	ctx := context.Background()
	fs := newTestStore(t, t.TempDir(), 3)

	for i := 0; i < 3; i++ {
		if err := fs.Append(ctx, testReport(i, fmt.Sprintf("T%d", i))); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}
	if err := fs.Append(ctx, testReport(3, "T3")); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	reports, _ := fs.List(ctx, 0)
	got := ids(reports)
	want := []string{"report-3", "report-2", "report-1"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("after cap eviction List = %v, want %v", got, want)
	}
	if n, _ := fs.Count(ctx); n != 3 {
		t.Errorf("Count = %d, want 3", n)
	}
}

func TestFileReportStore_ReloadsFromDisk(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	fs := newTestStore(t, dir, 10)
	if err := fs.Append(ctx, testReport(1, "AMD")); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := fs.Append(ctx, testReport(2, "NVDA")); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	reopened := newTestStore(t, dir, 10)
	reports, _ := reopened.List(ctx, 0)
	if len(reports) != 2 || reports[0].Ticker != "NVDA" {
		t.Fatalf("reloaded = %v", ids(reports))
	}

	// no temp files left behind
	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		if e.Name() != ReportsFile {
			t.Errorf("unexpected file %s", e.Name())
		}
	}
}

func TestFileReportStore_ReloadTrimsToSmallerCap(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	fs := newTestStore(t, dir, 10)
	for i := 0; i < 5; i++ {
		fs.Append(ctx, testReport(i, fmt.Sprintf("T%d", i)))
	}

	smaller := newTestStore(t, dir, 2)
	if n, _ := smaller.Count(ctx); n != 2 {
		t.Errorf("Count = %d, want 2", n)
	}
}

func TestFileReportStore_CorruptFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ReportsFile), []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewFileReportStore(common.NewSilentLogger(), dir, 10, 0); err == nil {
		t.Fatal("expected parse error for corrupt collection")
	}
}

func TestFileReportStore_GetNotFound(t *testing.T) {
	ctx := context.Background()
	fs := newTestStore(t, t.TempDir(), 10)
	fs.Append(ctx, testReport(1, "AMD"))

	r, err := fs.Get(ctx, "report-1")
	if err != nil || r.Ticker != "AMD" {
		t.Fatalf("Get = %v, %v", r, err)
	}

	_, err = fs.Get(ctx, "missing")
	if !errors.Is(err, models.ErrReportNotFound) {
		t.Errorf("expected ErrReportNotFound, got %v", err)
	}
}

func TestFileReportStore_ListReturnsCopies(t *testing.T) {
	ctx := context.Background()
	fs := newTestStore(t, t.TempDir(), 10)
	fs.Append(ctx, testReport(1, "AMD"))

	reports, _ := fs.List(ctx, 0)
	reports[0].Ticker = "MUTATED"

	again, _ := fs.Get(ctx, "report-1")
	if again.Ticker != "AMD" {
		t.Errorf("stored report mutated through List result")
	}
}

func TestFileReportStore_RecentTickers(t *testing.T) {
	ctx := context.Background()
	fs := newTestStore(t, t.TempDir(), 50)

	// report-0 is oldest; hours apart
	for i, ticker := range []string{"OLD", "AAPL", "AMD", "NVDA", "AMD", "TSLA"} {
		fs.Append(ctx, testReport(i, ticker))
	}

	// 2 most recent: TSLA, AMD; window from report-2 adds NVDA (AMD dedup)
	since := baseTime.Add(2 * time.Hour)
	got, err := fs.RecentTickers(ctx, 2, since)
	if err != nil {
		t.Fatalf("RecentTickers failed: %v", err)
	}
	want := []string{"TSLA", "AMD", "NVDA"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("RecentTickers = %v, want %v", got, want)
	}

	all, _ := fs.RecentTickers(ctx, 10, time.Time{})
	if len(all) != 5 {
		t.Errorf("RecentTickers(10) = %v, want 5 unique tickers", all)
	}
}

func TestFileReportStore_ConcurrentAppendsKeepCap(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	fs := newTestStore(t, dir, 5)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := fs.Append(ctx, testReport(i, fmt.Sprintf("T%d", i))); err != nil {
				t.Errorf("Append %d failed: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	if n, _ := fs.Count(ctx); n != 5 {
		t.Errorf("Count = %d, want 5", n)
	}
	reopened := newTestStore(t, dir, 5)
	if n, _ := reopened.Count(ctx); n != 5 {
		t.Errorf("persisted Count = %d, want 5", n)
	}
}

func TestFileReportStore_RotatesVersions(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	fs, err := NewFileReportStore(common.NewSilentLogger(), dir, 10, 2)
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 3; i++ {
		fs.Append(ctx, testReport(i, "AMD"))
	}

	for _, name := range []string{ReportsFile, ReportsFile + ".v1", ReportsFile + ".v2"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("expected %s: %v", name, err)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, ReportsFile+".v3")); !os.IsNotExist(err) {
		t.Errorf("v3 should not exist")
	}
}

func TestNewReportStore_Backends(t *testing.T) {
	ctx := context.Background()

	store, err := NewReportStore(ctx, common.NewSilentLogger(), common.StorageConfig{Path: t.TempDir()})
	if err != nil {
		t.Fatalf("file backend: %v", err)
	}
	if _, ok := store.(*FileReportStore); !ok {
		t.Errorf("default backend = %T, want *FileReportStore", store)
	}

	if _, err := NewReportStore(ctx, common.NewSilentLogger(), common.StorageConfig{Backend: "surrealdb"}); err == nil {
		t.Error("expected error for surrealdb without address")
	}
	if _, err := NewReportStore(ctx, common.NewSilentLogger(), common.StorageConfig{Backend: "s3"}); err == nil {
		t.Error("expected error for unknown backend")
	}
}

func TestManifest(t *testing.T) {
	ctx := context.Background()
	fs := newTestStore(t, t.TempDir(), 10)
	fs.Append(ctx, testReport(1, "AMD"))
	fs.Append(ctx, testReport(2, "NVDA"))

	summaries, err := Manifest(ctx, fs, "", 1)
	if err != nil {
		t.Fatalf("Manifest failed: %v", err)
	}
	if len(summaries) != 1 || summaries[0].Ticker != "NVDA" || summaries[0].Title != "NVDA outlook" {
		t.Errorf("Manifest = %+v", summaries)
	}
}

func TestManifest_FiltersByMarket(t *testing.T) {
	ctx := context.Background()
	fs := newTestStore(t, t.TempDir(), 10)

	kr := testReport(1, "005930")
	kr.Market = models.MarketKR
	fs.Append(ctx, kr)
	fs.Append(ctx, testReport(2, "AMD"))
	fs.Append(ctx, testReport(3, "NVDA"))

	summaries, err := Manifest(ctx, fs, models.MarketKR, 5)
	if err != nil {
		t.Fatalf("Manifest failed: %v", err)
	}
	if len(summaries) != 1 || summaries[0].Ticker != "005930" {
		t.Errorf("KR manifest = %+v", summaries)
	}

	summaries, _ = Manifest(ctx, fs, models.MarketUS, 1)
	if len(summaries) != 1 || summaries[0].Ticker != "NVDA" {
		t.Errorf("US manifest = %+v", summaries)
	}
}
