package server

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// markdown renders report bodies. Raw HTML in the model output is not
// passed through.
var markdown = goldmark.New(
	goldmark.WithExtensions(
		extension.GFM, // tables, strikethrough, autolinks
	),
	goldmark.WithRendererOptions(
		html.WithHardWraps(),
	),
)

// RenderContentHTML converts a report's markdown body to an HTML fragment.
func RenderContentHTML(body string) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(body), &buf); err != nil {
		return "", fmt.Errorf("markdown render failed: %w", err)
	}
	return buf.String(), nil
}

// handleReportContent serves GET /api/reports/{id}/content.html
func (s *Server) handleReportContent(w http.ResponseWriter, r *http.Request, id string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	report, ok := s.loadReport(w, r, id)
	if !ok {
		return
	}

	body, err := RenderContentHTML(report.FullContent)
	if err != nil {
		s.logger.Error().Err(err).Str("report_id", id).Msg("Failed to render report content")
		WriteError(w, http.StatusInternalServerError, "Failed to render report content")
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(body))
}
