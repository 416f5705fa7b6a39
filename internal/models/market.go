package models

import (
	"time"
)

// Snapshot is a best-effort current quote for a ticker.
type Snapshot struct {
	Symbol        string    `json:"symbol"`
	Name          string    `json:"name,omitempty"`
	Price         float64   `json:"price"`
	Currency      string    `json:"currency"`
	Change        float64   `json:"change"`
	ChangePercent float64   `json:"changePercent"`
	MarketCap     float64   `json:"marketCap,omitempty"`
	Volume        int64     `json:"volume,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
	Source        string    `json:"source,omitempty"` // "yahoo" or "eodhd"
}

// PricePoint is a single hourly close.
type PricePoint struct {
	Time  time.Time `json:"time"`
	Price float64   `json:"price"`
}

// MarketData is the supplemental data gathered for one report. Either part
// may be nil when the provider failed.
type MarketData struct {
	Ticker   string       `json:"ticker"`
	Symbol   string       `json:"symbol"`
	Market   Market       `json:"market"`
	Snapshot *Snapshot    `json:"snapshot,omitempty"`
	History  []PricePoint `json:"history,omitempty"`
}

// HasPrice reports whether a usable snapshot price was obtained.
func (m *MarketData) HasPrice() bool {
	return m != nil && m.Snapshot != nil && m.Snapshot.Price > 0
}

// ChartLabelFormat is the time label layout used for chart points.
const ChartLabelFormat = "01/02 15:04"

// ChartData converts the history into labelled chart points in the
// market's local time.
func (m *MarketData) ChartData() []ChartPoint {
	if m == nil || len(m.History) == 0 {
		return nil
	}
	loc := m.Market.Location()
	points := make([]ChartPoint, 0, len(m.History))
	for _, p := range m.History {
		if p.Price <= 0 {
			continue
		}
		points = append(points, ChartPoint{
			Time:  p.Time.In(loc).Format(ChartLabelFormat),
			Price: p.Price,
		})
	}
	return points
}

// Location returns the exchange timezone of the market.
func (m Market) Location() *time.Location {
	name, offset := "America/New_York", -5*60*60
	if m == MarketKR {
		name, offset = "Asia/Seoul", 9*60*60
	}
	if loc, err := time.LoadLocation(name); err == nil {
		return loc
	}
	return time.FixedZone(string(m), offset)
}
