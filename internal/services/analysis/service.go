// Package analysis runs the discover-and-analyze pipeline: prompt, model
// call with retry, JSON extraction, grounding, reconciliation and persistence.
package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/ternarybob/arbor"

	"github.com/bobmcallan/pulse/internal/clients/gemini"
	"github.com/bobmcallan/pulse/internal/common"
	"github.com/bobmcallan/pulse/internal/interfaces"
	"github.com/bobmcallan/pulse/internal/models"
)

// TimestampFormat is the ISO-8601 UTC layout of report timestamps.
const TimestampFormat = "2006-01-02T15:04:05.000Z07:00"

const (
	ModeSingle  = "single"
	ModeTwoPass = "two_pass"
)

// ErrUnsupportedMarket is returned for a request naming a market other than KR or US.
var ErrUnsupportedMarket = errors.New("unsupported market")

// Service implements AnalysisService
type Service struct {
	llm     interfaces.LLMClient
	invoker *Invoker
	market  interfaces.MarketDataService
	store   interfaces.ReportStore
	clock   *common.MarketClock
	prompts *PromptBuilder
	config  common.AnalysisConfig
	logger  arbor.ILogger

	running atomic.Bool
	mu      sync.RWMutex
	status  models.RunStatus

	newID func(time.Time) string
}

// NewService creates a new analysis service
func NewService(
	llm interfaces.LLMClient,
	market interfaces.MarketDataService,
	store interfaces.ReportStore,
	clock *common.MarketClock,
	config common.AnalysisConfig,
	model string,
	logger arbor.ILogger,
) *Service {
	return &Service{
		llm:     llm,
		invoker: NewInvoker(llm, config, logger),
		market:  market,
		store:   store,
		clock:   clock,
		prompts: NewPromptBuilder(model, config.Language),
		config:  config,
		logger:  logger,
		status:  models.RunStatus{State: models.RunStateIdle},
		newID:   newReportID,
	}
}

// SetTimer replaces the retry backoff timer.
func (s *Service) SetTimer(t backoff.Timer) {
	s.invoker.SetTimer(t)
}

func newReportID(t time.Time) string {
	return fmt.Sprintf("report-%d-%s", t.UnixMilli(), uuid.NewString()[:8])
}

// Generate runs one orchestration to completion. Only one run may be
// outstanding; a concurrent call returns models.ErrGenerationInProgress.
func (s *Service) Generate(ctx context.Context, req models.GenerateRequest) (*models.AnalysisReport, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, models.ErrGenerationInProgress
	}
	defer s.running.Store(false)
	return s.run(ctx, req)
}

// Start acquires the run guard and executes the orchestration in the
// background, detached from ctx cancellation.
func (s *Service) Start(ctx context.Context, req models.GenerateRequest) error {
	if !s.running.CompareAndSwap(false, true) {
		return models.ErrGenerationInProgress
	}
	go func() {
		defer s.running.Store(false)
		_, _ = s.run(context.WithoutCancel(ctx), req)
	}()
	return nil
}

// Running reports whether a run is outstanding.
func (s *Service) Running() bool {
	return s.running.Load()
}

// Status returns a copy of the current run status
func (s *Service) Status() models.RunStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Exclusions returns the tickers of the most recent reports plus any
// published within the exclusion window.
func (s *Service) Exclusions(ctx context.Context) ([]string, error) {
	since := s.clock.Now().Add(-s.config.GetExcludeWindow())
	tickers, err := s.store.RecentTickers(ctx, s.config.ExcludeRecent, since)
	if err != nil {
		return nil, fmt.Errorf("recent tickers: %w", err)
	}
	return tickers, nil
}

func (s *Service) run(ctx context.Context, req models.GenerateRequest) (*models.AnalysisReport, error) {
	now := s.clock.Now()
	market := models.Market(strings.ToUpper(string(req.Market)))
	if market == "" {
		market = s.clock.MarketAt(now)
	}

	s.begin(market, now)
	start := time.Now()
	log := s.logger.WithCorrelationId(uuid.NewString())
	log.Info().Str("market", string(market)).Str("ticker", req.Ticker).Str("trigger", req.Trigger).Str("mode", s.config.Mode).Msg("Report generation started")

	if !market.Valid() {
		return nil, s.fail(fmt.Errorf("%w: %q", ErrUnsupportedMarket, req.Market))
	}
	if err := s.llm.CheckCredentials(ctx); err != nil {
		return nil, s.fail(fmt.Errorf("model credentials: %w", err))
	}

	s.setState(models.RunStateSelectingSubject)
	excluded, err := s.Exclusions(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Exclusion list unavailable, continuing without it")
		excluded = nil
	}

	in := PromptInput{
		Market:   market,
		Excluded: excluded,
		Ticker:   strings.ToUpper(strings.TrimSpace(req.Ticker)),
		Now:      now,
	}
	if in.Ticker != "" {
		s.setState(models.RunStateFetchingMarket)
		in.Prefetched = s.market.Fetch(ctx, in.Ticker, market)
	}

	var res *passResult
	if s.config.Mode == ModeTwoPass {
		res, err = s.runTwoPass(ctx, in)
	} else {
		res, err = s.runSinglePass(ctx, in)
	}
	if err != nil {
		return nil, s.fail(err)
	}

	s.setState(models.RunStateReconciling)
	report, err := models.NewAnalysisReportFromMap(res.object, market)
	if err != nil {
		return nil, s.fail(&models.MalformedResponseError{Raw: res.raw, Cause: err})
	}
	if slices.Contains(excluded, report.Ticker) {
		log.Warn().Str("ticker", report.Ticker).Msg("Model selected an excluded ticker")
	}

	md := res.marketData
	if md == nil || !strings.EqualFold(md.Ticker, report.Ticker) {
		s.setState(models.RunStateFetchingMarket)
		md = s.market.Fetch(ctx, report.Ticker, market)
		s.setState(models.RunStateReconciling)
	}
	s.reconcile(report, md)

	s.setState(models.RunStateFinalizing)
	s.finalize(report, s.clock.Now(), res.grounding)
	if err := report.Validate(); err != nil {
		return nil, s.fail(&models.MalformedResponseError{Raw: res.raw, Cause: err})
	}
	if err := s.store.Append(ctx, report); err != nil {
		return nil, s.fail(fmt.Errorf("save report: %w", err))
	}

	s.succeed(report)
	log.Info().
		Str("id", report.ID).
		Str("ticker", report.Ticker).
		Str("market", string(report.Market)).
		Int("sources", len(report.Sources)).
		Int64("duration_ms", time.Since(start).Milliseconds()).
		Msg("Report published")
	return report, nil
}

type passResult struct {
	object     map[string]any
	raw        string
	grounding  [][]models.GroundingChunk
	marketData *models.MarketData
}

func (s *Service) runSinglePass(ctx context.Context, in PromptInput) (*passResult, error) {
	s.setPass(1)
	s.setState(models.RunStateInvoking)
	completion, err := s.invoker.Invoke(ctx, s.prompts.SinglePass(in))
	if err != nil {
		return nil, fmt.Errorf("model call: %w", err)
	}

	s.setState(models.RunStateExtracting)
	obj, err := ExtractJSON(completion.Text)
	if err != nil {
		return nil, err
	}
	return &passResult{
		object:     obj,
		raw:        completion.Text,
		grounding:  [][]models.GroundingChunk{completion.Grounding},
		marketData: in.Prefetched,
	}, nil
}

// runTwoPass researches with the search tool, fetches market data for the
// chosen ticker, then writes the article from the research facts. Writing
// pass fields win over research fields except the ticker.
func (s *Service) runTwoPass(ctx context.Context, in PromptInput) (*passResult, error) {
	s.setPass(1)
	s.setState(models.RunStateInvoking)
	research, err := s.invoker.Invoke(ctx, s.prompts.ResearchPass(in))
	if err != nil {
		return nil, fmt.Errorf("research pass: %w", err)
	}

	s.setState(models.RunStateExtracting)
	factsObj, err := ExtractJSON(research.Text)
	if err != nil {
		return nil, err
	}
	facts, err := models.NewResearchFactsFromMap(factsObj)
	if err != nil {
		return nil, &models.MalformedResponseError{Raw: research.Text, Cause: err}
	}
	factsJSON, err := json.MarshalIndent(factsObj, "", "  ")
	if err != nil {
		return nil, &models.MalformedResponseError{Raw: research.Text, Cause: err}
	}

	if in.Prefetched == nil || !strings.EqualFold(in.Prefetched.Ticker, facts.Ticker) {
		s.setState(models.RunStateFetchingMarket)
		in.Prefetched = s.market.Fetch(ctx, facts.Ticker, in.Market)
	}
	in.Ticker = facts.Ticker

	s.setPass(2)
	s.setState(models.RunStateInvoking)
	article, err := s.invoker.Invoke(ctx, s.prompts.WritingPass(in, string(factsJSON)))
	if err != nil {
		return nil, fmt.Errorf("writing pass: %w", err)
	}

	s.setState(models.RunStateExtracting)
	obj, err := ExtractJSON(article.Text)
	if err != nil {
		return nil, err
	}

	merged := maps.Clone(factsObj)
	maps.Copy(merged, obj)
	merged["ticker"] = facts.Ticker

	return &passResult{
		object:     merged,
		raw:        article.Text,
		grounding:  [][]models.GroundingChunk{research.Grounding, article.Grounding},
		marketData: in.Prefetched,
	}, nil
}

// reconcile overwrites model-asserted price fields with the market snapshot
// and attaches the chart series. Without a snapshot the model values stay.
func (s *Service) reconcile(report *models.AnalysisReport, md *models.MarketData) {
	if md == nil {
		return
	}
	if md.HasPrice() {
		if report.Price != md.Snapshot.Price {
			s.logger.Debug().
				Str("ticker", report.Ticker).
				Str("model_price", formatNumber(report.Price)).
				Str("market_price", formatNumber(md.Snapshot.Price)).
				Msg("Price reconciled against market data")
		}
		report.Price = md.Snapshot.Price
		if md.Snapshot.Currency != "" {
			report.Currency = md.Snapshot.Currency
		}
	}
	report.ChartData = md.ChartData()
}

// finalize stamps the report with the completion instant.
func (s *Service) finalize(report *models.AnalysisReport, completed time.Time, grounding [][]models.GroundingChunk) {
	report.ID = s.newID(completed)
	report.Timestamp = completed.UTC().Format(TimestampFormat)
	report.Sources = CollectSources(grounding...)
	if s.config.AppendSourcesSection {
		report.FullContent += SourcesSection(report.Sources, s.prompts.Language())
	}
}

func (s *Service) begin(market models.Market, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	started := now
	s.status.State = models.RunStateSelectingSubject
	s.status.Running = true
	s.status.Market = market
	s.status.Pass = 0
	s.status.StartedAt = &started
	s.status.FinishedAt = nil
	s.status.LastError = ""
	s.status.ErrorClass = models.ErrorClassNone
	s.status.Message = "Generating report."
	s.status.TotalRuns++
}

func (s *Service) setState(state models.RunState) {
	s.mu.Lock()
	s.status.State = state
	s.mu.Unlock()
	s.logger.Debug().Str("state", string(state)).Msg("Run state")
}

func (s *Service) setPass(pass int) {
	s.mu.Lock()
	s.status.Pass = pass
	s.mu.Unlock()
}

func (s *Service) fail(err error) error {
	class := gemini.Classify(err)
	finished := s.clock.Now()

	s.mu.Lock()
	s.status.State = models.RunStateFailed
	s.status.Running = false
	s.status.FinishedAt = &finished
	s.status.LastError = err.Error()
	s.status.ErrorClass = class
	s.status.Message = models.StatusMessage(class)
	s.status.FailedRuns++
	s.mu.Unlock()

	event := s.logger.Error().Err(err).Str("class", string(class))
	var malformed *models.MalformedResponseError
	if errors.As(err, &malformed) {
		event = event.Int("raw_chars", len(malformed.Raw))
	}
	event.Msg("Report generation failed")
	return err
}

func (s *Service) succeed(report *models.AnalysisReport) {
	finished := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.State = models.RunStateDone
	s.status.Running = false
	s.status.FinishedAt = &finished
	s.status.LastReport = report.ID
	s.status.LastTicker = report.Ticker
	s.status.ErrorClass = models.ErrorClassNone
	s.status.Message = models.StatusMessage(models.ErrorClassNone)
}
