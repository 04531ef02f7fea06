package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/sectorscope/internal/interfaces"
	"github.com/ternarybob/sectorscope/internal/models"
)

// ErrUnparseableResponse is returned when a structured response cannot be decoded
var ErrUnparseableResponse = interfaces.ErrUnparseableResponse

// Analyst turns the raw text generator into the narrow capabilities used by the pipeline
type Analyst struct {
	generator  interfaces.TextGenerator
	homeMarket string
	validate   *validator.Validate
	logger     arbor.ILogger
}

// Compile-time interface assertions
var (
	_ interfaces.Summarizer         = (*Analyst)(nil)
	_ interfaces.IndustryClassifier = (*Analyst)(nil)
	_ interfaces.IndustryAssessor   = (*Analyst)(nil)
	_ interfaces.KeywordExtractor   = (*Analyst)(nil)
)

// taskProfile fixes the framing and sampling of one kind of call
type taskProfile struct {
	name        string
	system      string
	temperature float32
	maxTokens   int
}

var (
	summarizeProfile = taskProfile{name: "summarize_chunk", system: markdownSystem, temperature: 0.1, maxTokens: 8192}
	mergeProfile     = taskProfile{name: "merge_summaries", system: markdownSystem, temperature: 0.1, maxTokens: 16384}
	classifyProfile  = taskProfile{name: "classify", system: jsonSystem, temperature: 0.1, maxTokens: 4096}
	evaluateProfile  = taskProfile{name: "evaluate", system: jsonSystem, temperature: 0.3, maxTokens: 2048}
	scoreProfile     = taskProfile{name: "score", system: jsonSystem, temperature: 0.1, maxTokens: 256}
	keywordsProfile  = taskProfile{name: "extract_keywords", system: jsonSystem, temperature: 0.4, maxTokens: 2048}
)

func (a *Analyst) generate(ctx context.Context, profile taskProfile, prompt string, attachment *interfaces.Attachment) (string, error) {
	return a.generator.Generate(ctx, interfaces.GenerationRequest{
		Task:        profile.name,
		System:      profile.system,
		Prompt:      prompt,
		Attachment:  attachment,
		Temperature: profile.temperature,
		MaxTokens:   profile.maxTokens,
	})
}

// NewAnalyst creates an Analyst evaluating from the given home-market investor lens
func NewAnalyst(generator interfaces.TextGenerator, homeMarket string, logger arbor.ILogger) *Analyst {
	return &Analyst{
		generator:  generator,
		homeMarket: homeMarket,
		validate:   validator.New(),
		logger:     logger,
	}
}

// SummarizeChunk produces a fact-preserving summary of one page range
func (a *Analyst) SummarizeChunk(ctx context.Context, chunk interfaces.ChunkContext, document *interfaces.Attachment) (string, error) {
	text, err := a.generate(ctx, summarizeProfile, chunkSummaryPrompt(chunk), document)
	if err != nil {
		return "", fmt.Errorf("summarise pages %d-%d: %w", chunk.StartPage, chunk.EndPage, err)
	}
	return stripCodeFences(text), nil
}

// MergeSummaries combines ordered partial summaries into one document
func (a *Analyst) MergeSummaries(ctx context.Context, partials []string) (string, error) {
	text, err := a.generate(ctx, mergeProfile, mergeSummariesPrompt(partials), nil)
	if err != nil {
		return "", fmt.Errorf("merge %d summaries: %w", len(partials), err)
	}
	return stripCodeFences(text), nil
}

type classifyResponse struct {
	Classifications []interfaces.Classification `json:"classifications"`
}

// Classify asks for industry labels. Labels are returned as generated; vocabulary
// filtering is the caller's responsibility.
func (a *Analyst) Classify(ctx context.Context, docs []interfaces.ClassifyInput, vocabulary []string) ([]interfaces.Classification, error) {
	text, err := a.generate(ctx, classifyProfile, classifyPrompt(docs, vocabulary), nil)
	if err != nil {
		return nil, fmt.Errorf("classify %d documents: %w", len(docs), err)
	}

	var resp classifyResponse
	if err := decodeJSON(text, &resp); err != nil {
		return nil, err
	}
	return resp.Classifications, nil
}

type evaluateResponse struct {
	Sentiment  string   `json:"sentiment"`
	Summary    string   `json:"summary" validate:"required"`
	KeyDrivers []string `json:"key_drivers"`
	KeyRisks   []string `json:"key_risks"`
}

// Evaluate runs the first evaluation pass for one industry
func (a *Analyst) Evaluate(ctx context.Context, industry string, texts []string) (*models.UnscoredEvaluation, error) {
	text, err := a.generate(ctx, evaluateProfile, evaluatePrompt(industry, a.homeMarket, texts), nil)
	if err != nil {
		return nil, fmt.Errorf("evaluate %s: %w", industry, err)
	}

	var resp evaluateResponse
	if err := decodeJSON(text, &resp); err != nil {
		return nil, err
	}
	if err := a.validate.Struct(resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnparseableResponse, err)
	}

	sentiment, ok := models.ParseSentiment(resp.Sentiment)
	if !ok {
		a.logger.Warn().
			Str("industry", industry).
			Str("sentiment", resp.Sentiment).
			Msg("Unknown sentiment in evaluation, using NEUTRAL")
	}

	return &models.UnscoredEvaluation{
		IndustryName: industry,
		Sentiment:    sentiment,
		Summary:      strings.TrimSpace(resp.Summary),
		KeyDrivers:   nonEmpty(resp.KeyDrivers),
		KeyRisks:     nonEmpty(resp.KeyRisks),
	}, nil
}

// Score runs the confidence pass. A response that cannot be read as a number in
// [0,1] yields models.DefaultConfidence rather than an error.
func (a *Analyst) Score(ctx context.Context, evaluation *models.UnscoredEvaluation, excerpts []string) (float64, error) {
	text, err := a.generate(ctx, scoreProfile, scorePrompt(evaluation, excerpts), nil)
	if err != nil {
		return 0, fmt.Errorf("score %s: %w", evaluation.IndustryName, err)
	}

	confidence, ok := ParseConfidence(text)
	if !ok {
		a.logger.Warn().
			Str("industry", evaluation.IndustryName).
			Str("response", truncate(text, 200)).
			Float64("fallback", models.DefaultConfidence).
			Msg("Could not parse confidence score, using default")
	}
	return confidence, nil
}

type keywordsResponse struct {
	Keywords []models.Keyword `json:"keywords"`
}

// ExtractKeywords summarises texts into keywords, dropping entries that fail validation
func (a *Analyst) ExtractKeywords(ctx context.Context, texts []string) ([]models.Keyword, error) {
	text, err := a.generate(ctx, keywordsProfile, keywordsPrompt(texts), nil)
	if err != nil {
		return nil, fmt.Errorf("extract keywords: %w", err)
	}

	var resp keywordsResponse
	if err := decodeJSON(text, &resp); err != nil {
		return nil, err
	}

	keywords := make([]models.Keyword, 0, len(resp.Keywords))
	for _, k := range resp.Keywords {
		k.Impact = models.KeywordImpact(strings.ToLower(strings.TrimSpace(string(k.Impact))))
		if err := a.validate.Struct(k); err != nil {
			a.logger.Warn().Str("label", k.Label).Err(err).Msg("Dropping invalid keyword")
			continue
		}
		keywords = append(keywords, k)
	}

	if len(keywords) == 0 {
		return nil, fmt.Errorf("%w: no valid keywords", ErrUnparseableResponse)
	}
	return keywords, nil
}

type confidenceResponse struct {
	Confidence *float64 `json:"confidence"`
}

// ParseConfidence reads a confidence value from a JSON object or a bare number.
// It returns models.DefaultConfidence and false when the value is missing,
// non-numeric or outside [0,1].
func ParseConfidence(text string) (float64, bool) {
	cleaned := stripCodeFences(text)

	var value float64
	var resp confidenceResponse
	if err := json.Unmarshal([]byte(cleaned), &resp); err == nil && resp.Confidence != nil {
		value = *resp.Confidence
	} else {
		parsed, err := strconv.ParseFloat(strings.TrimSpace(cleaned), 64)
		if err != nil {
			return models.DefaultConfidence, false
		}
		value = parsed
	}

	if math.IsNaN(value) || value < 0 || value > 1 {
		return models.DefaultConfidence, false
	}
	return value, true
}

// decodeJSON strips code fences and decodes the first JSON object in text
func decodeJSON(text string, v interface{}) error {
	cleaned := stripCodeFences(text)
	if start := strings.Index(cleaned, "{"); start > 0 {
		cleaned = cleaned[start:]
	}
	if end := strings.LastIndex(cleaned, "}"); end >= 0 && end < len(cleaned)-1 {
		cleaned = cleaned[:end+1]
	}

	if err := json.Unmarshal([]byte(cleaned), v); err != nil {
		return fmt.Errorf("%w: %v", ErrUnparseableResponse, err)
	}
	return nil
}

// stripCodeFences removes a surrounding markdown code fence if present
func stripCodeFences(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```markdown")
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(text, "```")
	}
	return strings.TrimSpace(text)
}

func nonEmpty(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
