// Package marketdata provides best-effort supplemental market data
package marketdata

import (
	"context"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/sync/errgroup"

	"github.com/bobmcallan/pulse/internal/interfaces"
	"github.com/bobmcallan/pulse/internal/models"
)

const (
	DefaultHistoryWindow = 5 * 24 * time.Hour
	DefaultFetchTimeout  = 20 * time.Second
)

// Service implements MarketDataService
type Service struct {
	client  interfaces.MarketDataClient
	window  time.Duration
	timeout time.Duration
	logger  arbor.ILogger
}

// NewService creates a new market data service
func NewService(client interfaces.MarketDataClient, logger arbor.ILogger) *Service {
	return &Service{
		client:  client,
		window:  DefaultHistoryWindow,
		timeout: DefaultFetchTimeout,
		logger:  logger,
	}
}

// SetHistoryWindow overrides the history lookback
func (s *Service) SetHistoryWindow(window time.Duration) {
	if window > 0 {
		s.window = window
	}
}

// FormatSymbol adapts a ticker to the configured provider
func (s *Service) FormatSymbol(ticker string, market models.Market) string {
	if s.client == nil {
		return FormatSymbol("", ticker, market)
	}
	return FormatSymbol(s.client.Name(), ticker, market)
}

// Fetch issues the snapshot and history requests concurrently and waits for
// both. Failures are logged and leave the corresponding part nil; Fetch
// itself never fails.
func (s *Service) Fetch(ctx context.Context, ticker string, market models.Market) *models.MarketData {
	symbol := s.FormatSymbol(ticker, market)
	data := &models.MarketData{
		Ticker: ticker,
		Symbol: symbol,
		Market: market,
	}
	if s.client == nil || symbol == "" {
		return data
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	var g errgroup.Group

	g.Go(func() error {
		snap, err := s.client.GetSnapshot(ctx, symbol)
		if err != nil {
			s.logger.Warn().Err(err).Str("symbol", symbol).Str("provider", s.client.Name()).Msg("Snapshot unavailable")
			return nil
		}
		if snap.Currency == "" {
			snap.Currency = market.Currency()
		}
		data.Snapshot = snap
		return nil
	})

	g.Go(func() error {
		points, err := s.client.GetHistory(ctx, symbol, s.window)
		if err != nil {
			s.logger.Warn().Err(err).Str("symbol", symbol).Str("provider", s.client.Name()).Msg("Price history unavailable")
			return nil
		}
		filtered := points[:0]
		for _, p := range points {
			if p.Price > 0 {
				filtered = append(filtered, p)
			}
		}
		data.History = filtered
		return nil
	})

	_ = g.Wait()

	s.logger.Debug().
		Str("symbol", symbol).
		Bool("snapshot", data.Snapshot != nil).
		Int("history_points", len(data.History)).
		Int64("duration_ms", time.Since(start).Milliseconds()).
		Msg("Market data fetched")

	return data
}
