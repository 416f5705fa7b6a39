package analysis

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ternarybob/arbor"

	"github.com/bobmcallan/pulse/internal/clients/gemini"
	"github.com/bobmcallan/pulse/internal/common"
	"github.com/bobmcallan/pulse/internal/interfaces"
	"github.com/bobmcallan/pulse/internal/models"
)

// Invoker calls the model with a bounded linear retry on transient errors.
type Invoker struct {
	llm              interfaces.LLMClient
	maxAttempts      int
	quotaBackoff     time.Duration
	transientBackoff time.Duration
	timer            backoff.Timer
	logger           arbor.ILogger
}

// NewInvoker creates an invoker from the analysis config.
func NewInvoker(llm interfaces.LLMClient, cfg common.AnalysisConfig, logger arbor.ILogger) *Invoker {
	return &Invoker{
		llm:              llm,
		maxAttempts:      cfg.MaxAttempts,
		quotaBackoff:     cfg.GetQuotaBackoff(),
		transientBackoff: cfg.GetTransientBackoff(),
		logger:           logger,
	}
}

// SetTimer replaces the backoff timer.
func (i *Invoker) SetTimer(t backoff.Timer) {
	i.timer = t
}

// Invoke runs req, retrying quota, overload, network and empty-response
// failures up to the attempt budget. Quota errors wait attempt × quota
// backoff, other transient errors attempt × transient backoff.
func (i *Invoker) Invoke(ctx context.Context, req models.CompletionRequest) (*models.Completion, error) {
	policy := common.RetryPolicy{
		MaxAttempts: i.maxAttempts,
		Backoff: common.LinearBackoff(func(err error) time.Duration {
			if gemini.Classify(err) == models.ErrorClassQuota {
				return i.quotaBackoff
			}
			return i.transientBackoff
		}),
		IsRetryable: gemini.IsRetryable,
		Notify: func(attempt int, err error, wait time.Duration) {
			i.logger.Warn().
				Err(err).
				Int("attempt", attempt).
				Int("max_attempts", i.maxAttempts).
				Str("class", string(gemini.Classify(err))).
				Str("wait", wait.String()).
				Msg("Model call failed, retrying")
		},
		Timer: i.timer,
	}

	return common.Retry(ctx, policy, func(ctx context.Context, attempt int) (*models.Completion, error) {
		start := time.Now()
		completion, err := i.llm.Generate(ctx, req)
		if err != nil {
			return nil, err
		}
		i.logger.Debug().
			Int("attempt", attempt).
			Bool("web_search", req.WebSearch).
			Int("chars", len(completion.Text)).
			Int("grounding", len(completion.Grounding)).
			Int64("duration_ms", time.Since(start).Milliseconds()).
			Msg("Model call succeeded")
		return completion, nil
	})
}
