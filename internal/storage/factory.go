package storage

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/bobmcallan/pulse/internal/common"
	"github.com/bobmcallan/pulse/internal/interfaces"
	"github.com/bobmcallan/pulse/internal/models"
	"github.com/bobmcallan/pulse/internal/storage/surrealdb"
)

// Backend type constants.
const (
	BackendFile      = "file"
	BackendSurrealDB = "surrealdb"
)

// NewReportStore creates a report store based on the configuration.
// Supported backends: "file" (default), "surrealdb".
func NewReportStore(ctx context.Context, logger arbor.ILogger, config common.StorageConfig) (interfaces.ReportStore, error) {
	backend := config.Backend
	if backend == "" {
		backend = BackendFile
	}

	switch backend {
	case BackendFile:
		return NewFileReportStore(logger, config.Path, config.MaxReports, config.Versions)

	case BackendSurrealDB:
		if config.Address == "" {
			return nil, fmt.Errorf("surrealdb backend requires storage.address")
		}
		return surrealdb.NewReportStore(ctx, logger, config)

	default:
		return nil, fmt.Errorf("unknown storage backend: %s (supported: file, surrealdb)", backend)
	}
}

// Manifest projects the newest reports into their summaries. A non-empty
// market keeps only that market's reports; limit <= 0 returns all.
func Manifest(ctx context.Context, store interfaces.ReportStore, market models.Market, limit int) ([]models.ReportSummary, error) {
	fetch := limit
	if market != "" {
		fetch = 0
	}
	reports, err := store.List(ctx, fetch)
	if err != nil {
		return nil, err
	}
	summaries := make([]models.ReportSummary, 0, len(reports))
	for _, r := range reports {
		if market != "" && r.Market != market {
			continue
		}
		summaries = append(summaries, r.Summarize())
		if limit > 0 && len(summaries) == limit {
			break
		}
	}
	return summaries, nil
}
