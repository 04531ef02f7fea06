package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/sectorscope/internal/common"
	"github.com/ternarybob/sectorscope/internal/interfaces"
	"golang.org/x/time/rate"
)

// ErrGenerationTimeout is returned when a single generation call exceeds its timeout
var ErrGenerationTimeout = errors.New("text generation timed out")

// Service implements interfaces.TextGenerator on top of a Provider.
// Every call waits on a shared rate limiter and runs under its own timeout.
type Service struct {
	provider Provider
	limiter  *rate.Limiter
	timeout  time.Duration
	model    string
	logger   arbor.ILogger
}

// Compile-time interface assertion
var _ interfaces.TextGenerator = (*Service)(nil)

// NewService creates a text generation service from LLM config
func NewService(provider Provider, config *common.LLMConfig, model string, logger arbor.ILogger) *Service {
	interval := common.ParseDurationOr(config.RateLimit, 0)
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}

	return &Service{
		provider: provider,
		limiter:  rate.NewLimiter(limit, 1),
		timeout:  common.ParseDurationOr(config.Timeout, 5*time.Minute),
		model:    model,
		logger:   logger,
	}
}

// Generate waits for the limiter, then sends the request under the per-call timeout
func (s *Service) Generate(ctx context.Context, request interfaces.GenerationRequest) (string, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter wait: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	resp, err := s.provider.GenerateContent(callCtx, &ContentRequest{
		Task:        request.Task,
		System:      request.System,
		Prompt:      request.Prompt,
		Attachment:  request.Attachment,
		Model:       s.model,
		Temperature: request.Temperature,
		MaxTokens:   request.MaxTokens,
	})
	if err != nil {
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			s.logger.Warn().
				Str("task", request.Task).
				Dur("timeout", s.timeout).
				Msg("Text generation call timed out")
			return "", fmt.Errorf("%w after %s: %v", ErrGenerationTimeout, s.timeout, err)
		}
		return "", err
	}

	s.logger.Debug().
		Str("task", request.Task).
		Str("provider", string(resp.Provider)).
		Str("model", resp.Model).
		Int("response_length", len(resp.Text)).
		Dur("duration", time.Since(start)).
		Msg("Text generation completed")

	return resp.Text, nil
}
