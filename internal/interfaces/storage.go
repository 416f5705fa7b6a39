package interfaces

import (
	"context"
	"time"

	"github.com/bobmcallan/pulse/internal/models"
)

// ReportStore is the capped, most-recent-first report collection.
// Implementations serialise writes so the ordering and cap hold under
// concurrent appends.
type ReportStore interface {
	// Append inserts the report at the head and evicts the oldest entries beyond the cap
	Append(ctx context.Context, report *models.AnalysisReport) error

	// List returns up to limit reports, most recent first. limit <= 0 returns all
	List(ctx context.Context, limit int) ([]*models.AnalysisReport, error)

	// Get returns a report by id or models.ErrReportNotFound
	Get(ctx context.Context, id string) (*models.AnalysisReport, error)

	// RecentTickers returns the tickers of the n most recent reports plus any
	// created at or after since, de-duplicated in recency order
	RecentTickers(ctx context.Context, n int, since time.Time) ([]string, error)

	// Count returns the number of stored reports
	Count(ctx context.Context) (int, error)

	// Close releases backend resources
	Close() error
}
