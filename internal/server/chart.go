package server

import (
	"bytes"
	"fmt"
	"math"
	"net/http"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/bobmcallan/pulse/internal/models"
)

// RenderPriceChart renders the report's hourly closes as a PNG line chart.
// Support and resistance are drawn as dashed levels when set.
// Returns raw PNG bytes.
func RenderPriceChart(report *models.AnalysisReport) ([]byte, error) {
	points := report.ChartData
	if len(points) < 2 {
		return nil, fmt.Errorf("need at least 2 data points, got %d", len(points))
	}

	xValues := make([]float64, len(points))
	yValues := make([]float64, len(points))
	for i, p := range points {
		xValues[i] = float64(i)
		yValues[i] = p.Price
	}

	series := []chart.Series{
		chart.ContinuousSeries{
			Name: report.Ticker,
			Style: chart.Style{
				StrokeColor: drawing.ColorFromHex("2563eb"), // blue-600
				StrokeWidth: 2.5,
			},
			XValues: xValues,
			YValues: yValues,
		},
	}

	ta := report.TechnicalAnalysis
	if ta.Support > 0 {
		series = append(series, levelSeries("Support", ta.Support, len(points), "16a34a"))
	}
	if ta.Resistance > 0 {
		series = append(series, levelSeries("Resistance", ta.Resistance, len(points), "dc2626"))
	}

	graph := chart.Chart{
		Title:  fmt.Sprintf("%s (%s)", report.Ticker, report.Currency),
		Width:  900,
		Height: 400,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 10, Right: 20, Bottom: 10},
		},
		XAxis: chart.XAxis{
			TickPosition: chart.TickPositionBetweenTicks,
			ValueFormatter: func(v interface{}) string {
				if f, ok := v.(float64); ok {
					i := int(math.Round(f))
					if i >= 0 && i < len(points) {
						return points[i].Time
					}
				}
				return ""
			},
		},
		YAxis: chart.YAxis{
			ValueFormatter: func(v interface{}) string {
				if f, ok := v.(float64); ok {
					return fmt.Sprintf("%.2f", f)
				}
				return ""
			},
		},
		Series: series,
	}

	graph.Elements = []chart.Renderable{
		chart.LegendLeft(&graph),
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("chart render failed: %w", err)
	}

	return buf.Bytes(), nil
}

// levelSeries is a flat dashed line across the chart.
func levelSeries(name string, level float64, n int, hex string) chart.ContinuousSeries {
	return chart.ContinuousSeries{
		Name: name,
		Style: chart.Style{
			StrokeColor:     drawing.ColorFromHex(hex),
			StrokeWidth:     1.5,
			StrokeDashArray: []float64{5.0, 3.0},
		},
		XValues: []float64{0, float64(n - 1)},
		YValues: []float64{level, level},
	}
}

// handleReportChart serves GET /api/reports/{id}/chart.png
func (s *Server) handleReportChart(w http.ResponseWriter, r *http.Request, id string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	report, ok := s.loadReport(w, r, id)
	if !ok {
		return
	}

	png, err := RenderPriceChart(report)
	if err != nil {
		WriteError(w, http.StatusNotFound, "No chart data for report")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}
