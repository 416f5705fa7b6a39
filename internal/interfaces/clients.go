// Package interfaces defines service contracts for Pulse
package interfaces

import (
	"context"
	"time"

	"github.com/bobmcallan/pulse/internal/models"
)

// LLMClient provides access to a language model completion API
type LLMClient interface {
	// Generate runs one completion. Implementations do not retry.
	Generate(ctx context.Context, req models.CompletionRequest) (*models.Completion, error)

	// CheckCredentials fails with models.ErrMissingCredential when no usable
	// key is configured. It makes no network call.
	CheckCredentials(ctx context.Context) error
}

// MarketDataClient provides quotes and price history from a finance data provider
type MarketDataClient interface {
	// Name identifies the provider ("yahoo", "eodhd")
	Name() string

	// GetSnapshot retrieves the current quote for an already formatted symbol
	GetSnapshot(ctx context.Context, symbol string) (*models.Snapshot, error)

	// GetHistory retrieves hourly closes covering the lookback window
	GetHistory(ctx context.Context, symbol string, window time.Duration) ([]models.PricePoint, error)
}
