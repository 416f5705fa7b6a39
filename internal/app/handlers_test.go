package app

import (
	"context"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/bobmcallan/pulse/internal/common"
	"github.com/bobmcallan/pulse/internal/models"
)

func callText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("empty tool result")
	}
	return result.Content[0].(mcp.TextContent).Text
}

func TestHandleGetReport_MissingID(t *testing.T) {
	a := newTestApp(t, &stubLLM{})
	handler := handleGetReport(a.Store, a.Logger)

	request := mcp.CallToolRequest{}
	request.Params.Arguments = map[string]interface{}{}

	result, err := handler(context.Background(), request)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !result.IsError {
		t.Error("Expected error result for missing id")
	}
}

func TestHandleGetReport_NotFound(t *testing.T) {
	a := newTestApp(t, &stubLLM{})
	handler := handleGetReport(a.Store, a.Logger)

	request := mcp.CallToolRequest{}
	request.Params.Arguments = map[string]interface{}{"id": "report-missing"}

	result, _ := handler(context.Background(), request)
	if !result.IsError || !strings.Contains(callText(t, result), "not found") {
		t.Errorf("Expected not found error, got %+v", result)
	}
}

func TestHandleListReports_Empty(t *testing.T) {
	a := newTestApp(t, &stubLLM{})
	handler := handleListReports(a.Store, a.Logger)

	result, _ := handler(context.Background(), mcp.CallToolRequest{})
	if result.IsError {
		t.Fatalf("Unexpected error result: %v", result.Content)
	}
	if text := callText(t, result); text != "No reports published yet." {
		t.Errorf("text = %q", text)
	}
}

func TestHandleListReports_BadMarket(t *testing.T) {
	a := newTestApp(t, &stubLLM{})
	handler := handleListReports(a.Store, a.Logger)

	request := mcp.CallToolRequest{}
	request.Params.Arguments = map[string]interface{}{"market": "JP"}

	result, _ := handler(context.Background(), request)
	if !result.IsError {
		t.Error("Expected error result for unsupported market")
	}
}

func TestHandleGenerateReport_BackgroundStart(t *testing.T) {
	analysis := &recordingAnalysis{}
	handler := handleGenerateReport(analysis, common.NewSilentLogger())

	request := mcp.CallToolRequest{}
	request.Params.Arguments = map[string]interface{}{"market": "kr", "ticker": " 005930 "}

	result, _ := handler(context.Background(), request)
	if result.IsError {
		t.Fatalf("Unexpected error result: %v", result.Content)
	}
	if !strings.Contains(callText(t, result), "started") {
		t.Errorf("text = %q", callText(t, result))
	}

	reqs := analysis.Requests()
	if len(reqs) != 1 {
		t.Fatalf("requests = %d, want 1", len(reqs))
	}
	want := models.GenerateRequest{Market: models.MarketKR, Ticker: "005930", Trigger: "mcp"}
	if reqs[0] != want {
		t.Errorf("request = %+v, want %+v", reqs[0], want)
	}
}

func TestHandleGenerateReport_Busy(t *testing.T) {
	analysis := &recordingAnalysis{err: models.ErrGenerationInProgress}
	handler := handleGenerateReport(analysis, common.NewSilentLogger())

	request := mcp.CallToolRequest{}
	request.Params.Arguments = map[string]interface{}{"wait": true}

	result, _ := handler(context.Background(), request)
	if !result.IsError || !strings.Contains(callText(t, result), "already being generated") {
		t.Errorf("Expected busy error, got %+v", result)
	}
}

func TestHandleGetStatus(t *testing.T) {
	a := newTestApp(t, &stubLLM{})
	handler := handleGetStatus(a.Analysis, a.Clock)

	result, _ := handler(context.Background(), mcp.CallToolRequest{})
	text := callText(t, result)
	if !strings.Contains(text, "**State:** idle") {
		t.Errorf("Expected idle state, got: %s", text)
	}
	if !strings.Contains(text, "**Current Market Window:** US") {
		t.Errorf("Expected US window at 20:00 KST, got: %s", text)
	}
}

func TestParseMarket(t *testing.T) {
	cases := map[string]models.Market{"": "", "kr": models.MarketKR, " US ": models.MarketUS}
	for in, want := range cases {
		got, err := parseMarket(in)
		if err != nil || got != want {
			t.Errorf("parseMarket(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := parseMarket("HK"); err == nil {
		t.Error("expected error for HK")
	}
}

func TestFormatPrice(t *testing.T) {
	cases := []struct {
		v        float64
		currency string
		want     string
	}{
		{72500, "KRW", "72500 KRW"},
		{172.35, "USD", "172.35 USD"},
		{97.5, "", "97.5"},
		{0, "", "0"},
	}
	for _, c := range cases {
		if got := formatPrice(c.v, c.currency); got != c.want {
			t.Errorf("formatPrice(%v, %q) = %q, want %q", c.v, c.currency, got, c.want)
		}
	}
}
