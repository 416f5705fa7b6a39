package server

import (
	"net/http"
	"strings"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/bobmcallan/pulse/internal/common"
)

// registerRoutes sets up all REST API routes on the mux.
func (s *Server) registerRoutes(mux *http.ServeMux) {
	// System
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/version", s.handleVersion)
	mux.HandleFunc("/api/status", s.handleStatus)

	// Reports
	mux.HandleFunc("/api/reports/", s.routeReports)
	mux.HandleFunc("/api/reports", s.handleReportList)
	mux.HandleFunc("/api/generate", s.handleGenerate)

	// MCP over Streamable HTTP
	mux.Handle("/mcp", mcpserver.NewStreamableHTTPServer(s.app.MCPServer,
		mcpserver.WithStateLess(true),
	))
}

// routeReports dispatches /api/reports/{id}[/chart.png|/content.html]
func (s *Server) routeReports(w http.ResponseWriter, r *http.Request) {
	id := PathParam(r, "/api/reports/", "")
	if id == "" {
		s.handleReportList(w, r)
		return
	}
	subpath := strings.TrimPrefix(strings.TrimPrefix(r.URL.Path, "/api/reports/"+id), "/")

	switch subpath {
	case "":
		s.handleReportGet(w, r, id)
	case "chart.png":
		s.handleReportChart(w, r, id)
	case "content.html":
		s.handleReportContent(w, r, id)
	default:
		WriteError(w, http.StatusNotFound, "Not found")
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet, http.MethodHead) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet, http.MethodHead) {
		return
	}
	WriteJSON(w, http.StatusOK, common.GetVersionInfo())
}
