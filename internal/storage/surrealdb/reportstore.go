// Package surrealdb stores the report collection in SurrealDB.
package surrealdb

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
	"github.com/ternarybob/arbor"

	"github.com/bobmcallan/pulse/internal/common"
	"github.com/bobmcallan/pulse/internal/models"
)

// ReportTable holds one record per report, keyed by report id.
const ReportTable = "analysis_report"

// ReportStore implements interfaces.ReportStore using SurrealDB.
// Appends are serialised so trimming to the cap sees a consistent table.
type ReportStore struct {
	db     *surrealdb.DB
	logger arbor.ILogger
	max    int
	owned  bool

	mu sync.Mutex
}

// Connect opens a connection, signs in and selects the namespace and database.
func Connect(ctx context.Context, config common.StorageConfig) (*surrealdb.DB, error) {
	db, err := surrealdb.New(config.Address)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SurrealDB: %w", err)
	}

	if _, err := db.SignIn(ctx, map[string]interface{}{
		"user": config.Username,
		"pass": config.Password,
	}); err != nil {
		db.Close(ctx)
		return nil, fmt.Errorf("failed to sign in to SurrealDB: %w", err)
	}

	if err := db.Use(ctx, config.Namespace, config.Database); err != nil {
		db.Close(ctx)
		return nil, fmt.Errorf("failed to select namespace/database: %w", err)
	}
	return db, nil
}

// NewReportStore connects using config and prepares the report table.
func NewReportStore(ctx context.Context, logger arbor.ILogger, config common.StorageConfig) (*ReportStore, error) {
	db, err := Connect(ctx, config)
	if err != nil {
		return nil, err
	}
	s, err := NewReportStoreWithDB(ctx, db, logger, config.MaxReports)
	if err != nil {
		db.Close(ctx)
		return nil, err
	}
	s.owned = true

	logger.Info().
		Str("address", config.Address).
		Str("namespace", config.Namespace).
		Str("database", config.Database).
		Msg("SurrealDB report store initialized")
	return s, nil
}

// NewReportStoreWithDB uses an existing connection. The caller keeps ownership of db.
func NewReportStoreWithDB(ctx context.Context, db *surrealdb.DB, logger arbor.ILogger, maxReports int) (*ReportStore, error) {
	if maxReports <= 0 {
		maxReports = 500
	}

	// SurrealDB v3 errors on querying non-existent tables
	for _, sql := range []string{
		"DEFINE TABLE IF NOT EXISTS " + ReportTable + " SCHEMALESS",
		"DEFINE INDEX IF NOT EXISTS " + ReportTable + "_created ON " + ReportTable + " FIELDS created_ms",
	} {
		if _, err := surrealdb.Query[any](ctx, db, sql, nil); err != nil {
			return nil, fmt.Errorf("failed to prepare %s: %w", ReportTable, err)
		}
	}

	return &ReportStore{db: db, logger: logger, max: maxReports}, nil
}

func (s *ReportStore) Append(ctx context.Context, report *models.AnalysisReport) error {
	if report == nil {
		return fmt.Errorf("nil report")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	created := report.CreatedAt()
	if created.IsZero() {
		created = time.Now()
	}

	sql := `UPSERT $rid SET
		report_id = $report_id, market = $market, ticker = $ticker,
		created_ms = $created_ms, report = $report`
	vars := map[string]any{
		"rid":        surrealmodels.NewRecordID(ReportTable, report.ID),
		"report_id":  report.ID,
		"market":     string(report.Market),
		"ticker":     report.Ticker,
		"created_ms": created.UnixMilli(),
		"report":     report,
	}
	if _, err := surrealdb.Query[any](ctx, s.db, sql, vars); err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}

	trim := `DELETE ` + ReportTable + ` WHERE report_id NOT IN
		(SELECT VALUE report_id FROM ` + ReportTable + ` ORDER BY created_ms DESC LIMIT $max)`
	if _, err := surrealdb.Query[any](ctx, s.db, trim, map[string]any{"max": s.max}); err != nil {
		s.logger.Warn().Err(err).Int("max", s.max).Msg("Failed to trim report table")
	}
	return nil
}

func (s *ReportStore) List(ctx context.Context, limit int) ([]*models.AnalysisReport, error) {
	sql := "SELECT VALUE report FROM " + ReportTable + " ORDER BY created_ms DESC"
	vars := map[string]any{}
	if limit > 0 {
		sql += " LIMIT $limit"
		vars["limit"] = limit
	}

	results, err := surrealdb.Query[[]models.AnalysisReport](ctx, s.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}

	var reports []*models.AnalysisReport
	if results != nil && len(*results) > 0 {
		for i := range (*results)[0].Result {
			reports = append(reports, &(*results)[0].Result[i])
		}
	}
	return reports, nil
}

func (s *ReportStore) Get(ctx context.Context, id string) (*models.AnalysisReport, error) {
	sql := "SELECT VALUE report FROM $rid"
	vars := map[string]any{"rid": surrealmodels.NewRecordID(ReportTable, id)}

	results, err := surrealdb.Query[[]models.AnalysisReport](ctx, s.db, sql, vars)
	if err != nil {
		if isNotFoundError(err) {
			return nil, fmt.Errorf("%w: %s", models.ErrReportNotFound, id)
		}
		return nil, fmt.Errorf("failed to get report: %w", err)
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, fmt.Errorf("%w: %s", models.ErrReportNotFound, id)
	}
	return &(*results)[0].Result[0], nil
}

// RecentTickers reads ticker and creation time of every row, newest first,
// and applies the shared exclusion rule. The table is capped so the scan is bounded.
func (s *ReportStore) RecentTickers(ctx context.Context, n int, since time.Time) ([]string, error) {
	type tickerRow struct {
		Ticker    string `json:"ticker"`
		CreatedMs int64  `json:"created_ms"`
	}

	sql := "SELECT ticker, created_ms FROM " + ReportTable + " ORDER BY created_ms DESC"
	results, err := surrealdb.Query[[]tickerRow](ctx, s.db, sql, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to read recent tickers: %w", err)
	}

	var rows []*models.AnalysisReport
	if results != nil && len(*results) > 0 {
		for _, r := range (*results)[0].Result {
			rows = append(rows, &models.AnalysisReport{
				Ticker:    r.Ticker,
				Timestamp: time.UnixMilli(r.CreatedMs).UTC().Format(time.RFC3339Nano),
			})
		}
	}
	return models.RecentTickers(rows, n, since), nil
}

func (s *ReportStore) Count(ctx context.Context) (int, error) {
	type countResult struct {
		Cnt int `json:"cnt"`
	}
	results, err := surrealdb.Query[[]countResult](ctx, s.db, "SELECT count() AS cnt FROM "+ReportTable+" GROUP ALL", nil)
	if err != nil {
		return 0, fmt.Errorf("failed to count reports: %w", err)
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return 0, nil
	}
	return (*results)[0].Result[0].Cnt, nil
}

// Close releases the connection when the store opened it.
func (s *ReportStore) Close() error {
	if !s.owned {
		return nil
	}
	return s.db.Close(context.Background())
}

func isNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "not found") || strings.Contains(msg, "does not exist")
}
