package models

import "time"

// RunState is the orchestrator state machine position.
type RunState string

const (
	RunStateIdle             RunState = "idle"
	RunStateSelectingSubject RunState = "selecting_subject"
	RunStateFetchingMarket   RunState = "fetching_market_data"
	RunStateInvoking         RunState = "invoking"
	RunStateExtracting       RunState = "extracting"
	RunStateReconciling      RunState = "reconciling"
	RunStateFinalizing       RunState = "finalizing"
	RunStateDone             RunState = "done"
	RunStateFailed           RunState = "failed"
)

// GenerateRequest parameters a single discover-and-analyze run.
// Zero values select the market by clock and let the model pick the ticker.
type GenerateRequest struct {
	Market Market `json:"market,omitempty"`
	Ticker string `json:"ticker,omitempty"`
	// Trigger records who started the run ("schedule", "api", "mcp", "cli").
	Trigger string `json:"trigger,omitempty"`
}

// RunStatus reports the orchestrator's current and last outcome.
type RunStatus struct {
	State      RunState   `json:"state"`
	Running    bool       `json:"running"`
	Market     Market     `json:"market,omitempty"`
	Pass       int        `json:"pass,omitempty"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	LastReport string     `json:"last_report_id,omitempty"`
	LastTicker string     `json:"last_ticker,omitempty"`
	LastError  string     `json:"last_error,omitempty"`
	ErrorClass ErrorClass `json:"error_class,omitempty"`
	Message    string     `json:"message,omitempty"`
	TotalRuns  int        `json:"total_runs"`
	FailedRuns int        `json:"failed_runs"`
}
