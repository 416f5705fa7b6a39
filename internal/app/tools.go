package app

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// createGetVersionTool returns the get_version tool definition
func createGetVersionTool() mcp.Tool {
	return mcp.NewTool("get_version",
		mcp.WithDescription("Get the Pulse MCP server version and status. Use this to verify connectivity."),
	)
}

// createListReportsTool returns the list_reports tool definition
func createListReportsTool() mcp.Tool {
	return mcp.NewTool("list_reports",
		mcp.WithDescription("List the most recent stock analysis reports, newest first."),
		mcp.WithNumber("limit",
			mcp.Description("Maximum reports to return (default: 10, max: 50)"),
		),
		mcp.WithString("market",
			mcp.Description("Only list reports for this market: 'KR' or 'US'"),
		),
	)
}

// createGetReportTool returns the get_report tool definition
func createGetReportTool() mcp.Tool {
	return mcp.NewTool("get_report",
		mcp.WithDescription("Get a stock analysis report by id, including the full article body and cited sources."),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Report id as returned by list_reports (e.g., 'report-1772622000000-1a2b3c4d')"),
		),
	)
}

// createGenerateReportTool returns the generate_report tool definition
func createGenerateReportTool() mcp.Tool {
	return mcp.NewTool("generate_report",
		mcp.WithDescription("Discover a trending stock and publish a new analysis report. Runs in the background unless wait is true; only one generation may run at a time."),
		mcp.WithString("market",
			mcp.Description("Market to cover: 'KR' or 'US' (default: chosen by the current Seoul time)"),
		),
		mcp.WithString("ticker",
			mcp.Description("Analyze this ticker instead of letting the model pick one"),
		),
		mcp.WithBoolean("wait",
			mcp.Description("Block until the report is published (default: false)"),
		),
	)
}

// createGetStatusTool returns the get_status tool definition
func createGetStatusTool() mcp.Tool {
	return mcp.NewTool("get_status",
		mcp.WithDescription("Get the generator status: current stage, last published report and last failure."),
	)
}
