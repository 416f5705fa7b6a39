package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/ternarybob/arbor"

	"github.com/bobmcallan/pulse/internal/common"
	"github.com/bobmcallan/pulse/internal/interfaces"
	"github.com/bobmcallan/pulse/internal/models"
	"github.com/bobmcallan/pulse/internal/storage"
)

// handleGetVersion implements the get_version tool
func handleGetVersion() server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		result := fmt.Sprintf("Pulse MCP Server\nVersion: %s\nBuild: %s\nCommit: %s\nStatus: OK",
			common.GetVersion(), common.GetBuild(), common.GetGitCommit())
		return textResult(result), nil
	}
}

// handleListReports implements the list_reports tool
func handleListReports(store interfaces.ReportStore, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		limit := request.GetInt("limit", 10)
		if limit <= 0 {
			limit = 10
		}
		if limit > 50 {
			limit = 50
		}

		market, err := parseMarket(request.GetString("market", ""))
		if err != nil {
			return errorResult(fmt.Sprintf("Error: %v", err)), nil
		}

		summaries, err := storage.Manifest(ctx, store, market, limit)
		if err != nil {
			logger.Error().Err(err).Msg("List reports failed")
			return errorResult(fmt.Sprintf("List error: %v", err)), nil
		}

		return textResult(formatReportList(summaries)), nil
	}
}

// handleGetReport implements the get_report tool
func handleGetReport(store interfaces.ReportStore, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := request.RequireString("id")
		if err != nil || strings.TrimSpace(id) == "" {
			return errorResult("Error: id parameter is required"), nil
		}

		report, err := store.Get(ctx, strings.TrimSpace(id))
		if errors.Is(err, models.ErrReportNotFound) {
			return errorResult(fmt.Sprintf("Report not found: %s", id)), nil
		}
		if err != nil {
			logger.Error().Err(err).Str("report_id", id).Msg("Get report failed")
			return errorResult(fmt.Sprintf("Get error: %v", err)), nil
		}

		return textResult(formatReport(report)), nil
	}
}

// handleGenerateReport implements the generate_report tool
func handleGenerateReport(analysis interfaces.AnalysisService, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		market, err := parseMarket(request.GetString("market", ""))
		if err != nil {
			return errorResult(fmt.Sprintf("Error: %v", err)), nil
		}

		req := models.GenerateRequest{
			Market:  market,
			Ticker:  strings.ToUpper(strings.TrimSpace(request.GetString("ticker", ""))),
			Trigger: "mcp",
		}

		if !request.GetBool("wait", false) {
			if err := analysis.Start(ctx, req); err != nil {
				return generateErrorResult(err), nil
			}
			return textResult("Report generation started. Use get_status to follow progress."), nil
		}

		report, err := analysis.Generate(ctx, req)
		if err != nil {
			if !errors.Is(err, models.ErrGenerationInProgress) {
				logger.Error().Err(err).Msg("Generate report failed")
			}
			return generateErrorResult(err), nil
		}

		return textResult(formatReport(report)), nil
	}
}

// handleGetStatus implements the get_status tool
func handleGetStatus(analysis interfaces.AnalysisService, clock *common.MarketClock) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		exclusions, _ := analysis.Exclusions(ctx)
		return textResult(formatStatus(analysis.Status(), clock.CurrentMarket(), exclusions)), nil
	}
}

func generateErrorResult(err error) *mcp.CallToolResult {
	if errors.Is(err, models.ErrGenerationInProgress) {
		return errorResult("A report is already being generated. Try again once it finishes.")
	}
	return errorResult(fmt.Sprintf("Generation failed: %v", err))
}

// parseMarket accepts "", "KR" or "US" in any case.
func parseMarket(s string) (models.Market, error) {
	m := models.Market(strings.ToUpper(strings.TrimSpace(s)))
	if m == "" || m.Valid() {
		return m, nil
	}
	return "", fmt.Errorf("unsupported market %q (supported: KR, US)", s)
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(text),
		},
	}
}

func errorResult(message string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(message),
		},
		IsError: true,
	}
}
