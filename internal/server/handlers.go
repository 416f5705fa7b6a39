package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/bobmcallan/pulse/internal/clients/gemini"
	"github.com/bobmcallan/pulse/internal/models"
	"github.com/bobmcallan/pulse/internal/storage"
)

const (
	defaultListLimit = 20
	maxListLimit     = 500
)

// statusResponse is the body of GET /api/status.
type statusResponse struct {
	models.RunStatus
	CurrentMarket models.Market `json:"current_market"`
	Exclusions    []string      `json:"exclusions"`
	Reports       int           `json:"reports"`
}

// handleStatus serves GET /api/status
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	ctx := r.Context()

	resp := statusResponse{
		RunStatus:     s.app.Analysis.Status(),
		CurrentMarket: s.app.Clock.CurrentMarket(),
		Exclusions:    []string{},
	}
	if exclusions, err := s.app.Analysis.Exclusions(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("Status: failed to compute exclusions")
	} else if exclusions != nil {
		resp.Exclusions = exclusions
	}
	if n, err := s.app.Store.Count(ctx); err == nil {
		resp.Reports = n
	}

	WriteJSON(w, http.StatusOK, resp)
}

// handleReportList serves GET /api/reports?limit=&market=
func (s *Server) handleReportList(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	limit := QueryInt(r, "limit", defaultListLimit, 1, maxListLimit)
	market := models.Market(strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("market"))))
	if market != "" && !market.Valid() {
		WriteError(w, http.StatusBadRequest, "market must be KR or US")
		return
	}

	summaries, err := storage.Manifest(r.Context(), s.app.Store, market, limit)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to list reports")
		WriteError(w, http.StatusInternalServerError, "Failed to list reports")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"reports": summaries,
		"count":   len(summaries),
	})
}

// handleReportGet serves GET /api/reports/{id}
func (s *Server) handleReportGet(w http.ResponseWriter, r *http.Request, id string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	report, ok := s.loadReport(w, r, id)
	if !ok {
		return
	}
	WriteJSON(w, http.StatusOK, report)
}

// loadReport fetches a report, writing 404 or 500 on failure.
func (s *Server) loadReport(w http.ResponseWriter, r *http.Request, id string) (*models.AnalysisReport, bool) {
	report, err := s.app.Store.Get(r.Context(), id)
	if errors.Is(err, models.ErrReportNotFound) {
		WriteError(w, http.StatusNotFound, "Report not found")
		return nil, false
	}
	if err != nil {
		s.logger.Error().Err(err).Str("report_id", id).Msg("Failed to load report")
		WriteError(w, http.StatusInternalServerError, "Failed to load report")
		return nil, false
	}
	return report, true
}

// handleGenerate serves POST /api/generate[?wait=true]
// Without wait the run starts in the background and 202 is returned.
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	if !s.requireAdmin(w, r) {
		return
	}

	var req models.GenerateRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	req.Market = models.Market(strings.ToUpper(strings.TrimSpace(string(req.Market))))
	req.Ticker = strings.ToUpper(strings.TrimSpace(req.Ticker))
	req.Trigger = "api"
	if req.Market != "" && !req.Market.Valid() {
		WriteError(w, http.StatusBadRequest, "market must be KR or US")
		return
	}

	if !QueryBool(r, "wait") {
		if err := s.app.Analysis.Start(r.Context(), req); err != nil {
			s.writeGenerateError(w, err)
			return
		}
		WriteJSON(w, http.StatusAccepted, map[string]string{
			"status":  "started",
			"message": "Report generation started.",
		})
		return
	}

	report, err := s.app.Analysis.Generate(r.Context(), req)
	if err != nil {
		s.writeGenerateError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, report)
}

func (s *Server) writeGenerateError(w http.ResponseWriter, err error) {
	if errors.Is(err, models.ErrGenerationInProgress) {
		WriteErrorWithCode(w, http.StatusConflict, err.Error(), string(models.ErrorClassBusy))
		return
	}
	class := gemini.Classify(err)
	WriteErrorWithCode(w, http.StatusBadGateway, models.StatusMessage(class), string(class))
}
