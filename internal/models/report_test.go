package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRecentTickers(t *testing.T) {
	base := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	at := func(h int, ticker string) *AnalysisReport {
		return &AnalysisReport{Ticker: ticker, Timestamp: base.Add(time.Duration(h) * time.Hour).Format(time.RFC3339)}
	}
	// most-recent-first
	reports := []*AnalysisReport{at(5, "TSLA"), at(4, "AMD"), at(3, "NVDA"), at(2, "AMD"), at(1, "AAPL"), at(0, "OLD")}

	assert.Equal(t, []string{"TSLA", "AMD"}, RecentTickers(reports, 2, time.Time{}))
	assert.Equal(t, []string{"TSLA", "AMD", "NVDA"}, RecentTickers(reports, 2, base.Add(2*time.Hour)))
	assert.Equal(t, []string{"TSLA", "AMD", "NVDA", "AAPL"}, RecentTickers(reports, 0, base.Add(time.Hour)))
	assert.Empty(t, RecentTickers(nil, 10, base))
}

func TestAnalysisReport_CreatedAt(t *testing.T) {
	r := &AnalysisReport{Timestamp: "2026-03-02T09:30:00.123Z"}
	assert.Equal(t, time.Date(2026, 3, 2, 9, 30, 0, 123000000, time.UTC), r.CreatedAt().UTC())

	bad := &AnalysisReport{Timestamp: "yesterday"}
	assert.True(t, bad.CreatedAt().IsZero())
}
