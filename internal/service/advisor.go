package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/TWRT/smarttask/internal/metrics"
	"github.com/TWRT/smarttask/internal/models"
)

const (
	EmptyWorkloadSummary    = "You have no tasks yet. Start by adding a new task!"
	WorkloadSummaryFallback = "Unable to reach the AI assistant right now."
)

const (
	opTaskAdvice      = "task_advice"
	opWorkloadSummary = "workload_summary"
)

var errAdvisorDisabled = errors.New("advisor disabled")

const taskAdvicePrompt = `Analyse the following task and suggest how to tackle it.
Title: %s
Description: %s

Reply with a single JSON object and nothing else, in exactly this shape:
{
  "suggestedPriority": "Low" | "Medium" | "High" | "Urgent",
  "suggestedSubTasks": string[],
  "tips": string (a short piece of advice for doing this well)
}`

const workloadSummaryPrompt = `Here is my task list: %s
Give a short assessment (at most 3 sentences) of my workload and what I should prioritise right now.`

// Advisor produces AI suggestions. It never returns errors to callers: a nil
// model, a failed call or an unparseable reply degrade to "no advice" or a
// fixed fallback string.
type Advisor struct {
	model   llms.Model
	limiter *rate.Limiter
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewAdvisor accepts a nil model, which disables advice. ratePerMinute <= 0 disables limiting.
func NewAdvisor(model llms.Model, ratePerMinute float64, logger *zap.Logger, m *metrics.Metrics) *Advisor {
	if logger == nil {
		logger = zap.NewNop()
	}
	limit := rate.Inf
	burst := 1
	if ratePerMinute > 0 {
		limit = rate.Limit(ratePerMinute / 60)
		burst = max(1, int(ratePerMinute/12))
	}
	return &Advisor{
		model:   model,
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger,
		metrics: m,
	}
}

func (a *Advisor) Enabled() bool {
	return a != nil && a.model != nil
}

// GetTaskAdvice returns nil on any failure.
func (a *Advisor) GetTaskAdvice(ctx context.Context, title, description string) *models.Advice {
	if !a.Enabled() {
		a.observe(opTaskAdvice, metrics.OutcomeDisabled)
		return nil
	}

	text, err := a.generate(ctx, fmt.Sprintf(taskAdvicePrompt, title, description))
	if err != nil {
		a.logger.Warn("task advice request failed", zap.Error(err))
		a.observe(opTaskAdvice, metrics.OutcomeFailed)
		return nil
	}

	advice, err := parseAdvice(text)
	if err != nil {
		a.logger.Warn("task advice response rejected", zap.Error(err))
		a.observe(opTaskAdvice, metrics.OutcomeFailed)
		return nil
	}

	a.observe(opTaskAdvice, metrics.OutcomeOK)
	return advice
}

// GetWorkloadSummary never calls the model for an empty list.
func (a *Advisor) GetWorkloadSummary(ctx context.Context, tasks []models.Task) string {
	if len(tasks) == 0 {
		a.observe(opWorkloadSummary, metrics.OutcomeSkipped)
		return EmptyWorkloadSummary
	}
	if !a.Enabled() {
		a.observe(opWorkloadSummary, metrics.OutcomeDisabled)
		return WorkloadSummaryFallback
	}

	payload, err := json.Marshal(tasks)
	if err != nil {
		a.logger.Warn("encode tasks for summary", zap.Error(err))
		a.observe(opWorkloadSummary, metrics.OutcomeFailed)
		return WorkloadSummaryFallback
	}

	text, err := a.generate(ctx, fmt.Sprintf(workloadSummaryPrompt, payload))
	if err != nil {
		a.logger.Warn("workload summary request failed", zap.Error(err), zap.Int("tasks", len(tasks)))
		a.observe(opWorkloadSummary, metrics.OutcomeFailed)
		return WorkloadSummaryFallback
	}
	text = strings.TrimSpace(text)
	if text == "" {
		a.observe(opWorkloadSummary, metrics.OutcomeFailed)
		return WorkloadSummaryFallback
	}

	a.observe(opWorkloadSummary, metrics.OutcomeOK)
	return text
}

func (a *Advisor) generate(ctx context.Context, prompt string) (string, error) {
	if a.model == nil {
		return "", errAdvisorDisabled
	}
	if err := a.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}
	return llms.GenerateFromSinglePrompt(ctx, a.model, prompt, llms.WithTemperature(0.3))
}

func (a *Advisor) observe(op, outcome string) {
	if a == nil {
		return
	}
	a.metrics.ObserveAdvisory(op, outcome)
}

type adviceResponse struct {
	SuggestedPriority string   `json:"suggestedPriority"`
	SuggestedSubTasks []string `json:"suggestedSubTasks"`
	Tips              *string  `json:"tips"`
}

// parseAdvice accepts a bare JSON object, optionally wrapped in a code fence or prose.
func parseAdvice(text string) (*models.Advice, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return nil, fmt.Errorf("no JSON object in response")
	}

	var resp adviceResponse
	if err := json.Unmarshal([]byte(text[start:end+1]), &resp); err != nil {
		return nil, fmt.Errorf("decode advice: %w", err)
	}
	if resp.SuggestedSubTasks == nil || resp.Tips == nil {
		return nil, fmt.Errorf("advice is missing required fields")
	}
	priority, err := models.ParsePriority(resp.SuggestedPriority)
	if err != nil {
		return nil, fmt.Errorf("advice priority: %w", err)
	}

	subTasks := make([]string, 0, len(resp.SuggestedSubTasks))
	for _, s := range resp.SuggestedSubTasks {
		if s = strings.TrimSpace(s); s != "" {
			subTasks = append(subTasks, s)
		}
	}
	return &models.Advice{
		Priority: priority,
		SubTasks: subTasks,
		Tips:     strings.TrimSpace(*resp.Tips),
	}, nil
}
