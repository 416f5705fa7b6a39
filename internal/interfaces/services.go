package interfaces

import (
	"context"

	"github.com/bobmcallan/pulse/internal/models"
)

// AnalysisService runs the discover-and-analyze pipeline
type AnalysisService interface {
	// Generate runs one orchestration and persists the resulting report.
	// Returns models.ErrGenerationInProgress if a run is already outstanding.
	Generate(ctx context.Context, req models.GenerateRequest) (*models.AnalysisReport, error)

	// Start acquires the run guard and runs the orchestration in the background
	Start(ctx context.Context, req models.GenerateRequest) error

	// Running reports whether a run is outstanding
	Running() bool

	// Status returns the current run status
	Status() models.RunStatus

	// Exclusions returns the tickers the next run will be told to avoid
	Exclusions(ctx context.Context) ([]string, error)
}

// MarketDataService gathers best-effort supplemental market data
type MarketDataService interface {
	// Fetch returns whatever snapshot and history could be obtained; it never fails
	Fetch(ctx context.Context, ticker string, market models.Market) *models.MarketData

	// FormatSymbol adapts a ticker to the configured provider's symbol format
	FormatSymbol(ticker string, market models.Market) string
}
