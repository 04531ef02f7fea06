package llm

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/sectorscope/internal/common"
	"github.com/ternarybob/sectorscope/internal/interfaces"
	"google.golang.org/genai"
)

// ProviderType names a text generation backend
type ProviderType string

const (
	ProviderGemini ProviderType = "gemini"
	ProviderClaude ProviderType = "claude"
)

// ContentRequest is a provider-agnostic generation call
type ContentRequest struct {
	Task        string
	System      string
	Prompt      string
	Attachment  *interfaces.Attachment
	Model       string
	Temperature float32 // 0 uses the provider config
	MaxTokens   int     // 0 uses the provider config
}

// ContentResponse is the text returned by a provider
type ContentResponse struct {
	Text     string
	Provider ProviderType
	Model    string
}

// Provider generates content for a ContentRequest
type Provider interface {
	GenerateContent(ctx context.Context, request *ContentRequest) (*ContentResponse, error)
}

// ProviderFactory routes requests to Gemini or Claude and owns their clients
type ProviderFactory struct {
	geminiConfig *common.GeminiConfig
	claudeConfig *common.ClaudeConfig
	llmConfig    *common.LLMConfig
	retry        RetryPolicy
	logger       arbor.ILogger

	mu           sync.Mutex
	geminiClient *genai.Client
	claudeClient *anthropic.Client
}

// NewProviderFactory creates a factory; clients are built on first use
func NewProviderFactory(
	geminiConfig *common.GeminiConfig,
	claudeConfig *common.ClaudeConfig,
	llmConfig *common.LLMConfig,
	logger arbor.ILogger,
) *ProviderFactory {
	return &ProviderFactory{
		geminiConfig: geminiConfig,
		claudeConfig: claudeConfig,
		llmConfig:    llmConfig,
		retry:        DefaultRetryPolicy(),
		logger:       logger,
	}
}

// ValidateCredentials fails with common.ErrMissingAPIKey when the default
// provider has no key in config or environment.
func (f *ProviderFactory) ValidateCredentials() error {
	var err error
	if ProviderType(f.llmConfig.DefaultProvider) == ProviderClaude {
		_, err = common.ResolveAPIKey(string(ProviderClaude), f.claudeConfig.APIKey)
	} else {
		_, err = common.ResolveAPIKey(string(ProviderGemini), f.geminiConfig.APIKey)
	}
	return err
}

var modelPrefixes = map[string]ProviderType{
	"claude/":    ProviderClaude,
	"anthropic/": ProviderClaude,
	"claude-":    ProviderClaude,
	"gemini/":    ProviderGemini,
	"google/":    ProviderGemini,
	"gemini-":    ProviderGemini,
}

// DetectProvider picks the backend from a model name such as "claude-sonnet-4"
// or "gemini/gemini-3-flash". Unknown or empty names use the default provider.
func (f *ProviderFactory) DetectProvider(model string) ProviderType {
	lower := strings.ToLower(model)
	for prefix, provider := range modelPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return provider
		}
	}
	return ProviderType(f.llmConfig.DefaultProvider)
}

// NormalizeModel strips a "provider/" routing prefix
func (f *ProviderFactory) NormalizeModel(model string) string {
	if i := strings.Index(model, "/"); i >= 0 {
		if _, ok := modelPrefixes[strings.ToLower(model[:i+1])]; ok {
			return model[i+1:]
		}
	}
	return model
}

func (f *ProviderFactory) gemini(ctx context.Context) (*genai.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.geminiClient != nil {
		return f.geminiClient, nil
	}

	apiKey, err := common.ResolveAPIKey(string(ProviderGemini), f.geminiConfig.APIKey)
	if err != nil {
		return nil, err
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	f.geminiClient = client
	return client, nil
}

func (f *ProviderFactory) claude() (*anthropic.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.claudeClient != nil {
		return f.claudeClient, nil
	}

	apiKey, err := common.ResolveAPIKey(string(ProviderClaude), f.claudeConfig.APIKey)
	if err != nil {
		return nil, err
	}
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	f.claudeClient = &client
	return f.claudeClient, nil
}

// GenerateContent sends the request to the provider its model belongs to
func (f *ProviderFactory) GenerateContent(ctx context.Context, request *ContentRequest) (*ContentResponse, error) {
	provider := f.DetectProvider(request.Model)
	model := f.NormalizeModel(request.Model)

	f.logger.Debug().
		Str("provider", string(provider)).
		Str("model", model).
		Str("task", request.Task).
		Int("prompt_length", len(request.Prompt)).
		Bool("attachment", request.Attachment != nil).
		Msg("Generating content")

	if provider == ProviderClaude {
		return f.generateClaude(ctx, request, model)
	}
	return f.generateGemini(ctx, request, model)
}

// claudeParams maps a request onto the Messages API; PDFs travel as document blocks
func (f *ProviderFactory) claudeParams(request *ContentRequest, model string) (anthropic.MessageNewParams, error) {
	if model == "" {
		model = f.claudeConfig.Model
	}
	maxTokens := request.MaxTokens
	if maxTokens <= 0 {
		maxTokens = f.claudeConfig.MaxTokens
	}
	temperature := request.Temperature
	if temperature <= 0 {
		temperature = f.claudeConfig.Temperature
	}

	blocks := make([]anthropic.ContentBlockParamUnion, 0, 2)
	if a := request.Attachment; a != nil {
		if a.MIMEType != "application/pdf" {
			return anthropic.MessageNewParams{}, fmt.Errorf("claude cannot take %s attachments", a.MIMEType)
		}
		blocks = append(blocks, anthropic.NewDocumentBlock(anthropic.Base64PDFSourceParam{
			Data: base64.StdEncoding.EncodeToString(a.Data),
		}))
	}
	blocks = append(blocks, anthropic.NewTextBlock(request.Prompt))

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(maxTokens),
		Messages:  []anthropic.MessageParam{anthropic.NewUserMessage(blocks...)},
	}
	if temperature > 0 {
		params.Temperature = anthropic.Float(float64(temperature))
	}
	if request.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: request.System}}
	}
	return params, nil
}

func (f *ProviderFactory) generateClaude(ctx context.Context, request *ContentRequest, model string) (*ContentResponse, error) {
	client, err := f.claude()
	if err != nil {
		return nil, err
	}
	params, err := f.claudeParams(request, model)
	if err != nil {
		return nil, err
	}

	var message *anthropic.Message
	err = f.retry.Do(ctx, f.logger, ProviderClaude, request.Task, func() error {
		var callErr error
		message, callErr = client.Messages.New(ctx, params)
		return callErr
	})
	if err != nil {
		return nil, fmt.Errorf("claude %s failed: %w", request.Task, err)
	}

	var text strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return nil, fmt.Errorf("claude %s returned no text", request.Task)
	}
	return &ContentResponse{Text: text.String(), Provider: ProviderClaude, Model: string(params.Model)}, nil
}

// geminiContents maps a request onto GenerateContent; PDFs travel as inline parts
func (f *ProviderFactory) geminiContents(request *ContentRequest) ([]*genai.Content, *genai.GenerateContentConfig) {
	parts := make([]*genai.Part, 0, 2)
	if a := request.Attachment; a != nil {
		parts = append(parts, genai.NewPartFromBytes(a.Data, a.MIMEType))
	}
	parts = append(parts, genai.NewPartFromText(request.Prompt))

	temperature := request.Temperature
	if temperature <= 0 {
		temperature = f.geminiConfig.Temperature
	}
	config := &genai.GenerateContentConfig{Temperature: genai.Ptr(temperature)}
	if request.MaxTokens > 0 {
		config.MaxOutputTokens = int32(request.MaxTokens)
	}
	if request.System != "" {
		config.SystemInstruction = genai.NewContentFromText(request.System, genai.RoleUser)
	}

	return []*genai.Content{{Role: genai.RoleUser, Parts: parts}}, config
}

func (f *ProviderFactory) generateGemini(ctx context.Context, request *ContentRequest, model string) (*ContentResponse, error) {
	client, err := f.gemini(ctx)
	if err != nil {
		return nil, err
	}
	if model == "" {
		model = f.geminiConfig.Model
	}
	contents, config := f.geminiContents(request)

	var resp *genai.GenerateContentResponse
	err = f.retry.Do(ctx, f.logger, ProviderGemini, request.Task, func() error {
		var callErr error
		resp, callErr = client.Models.GenerateContent(ctx, model, contents, config)
		return callErr
	})
	if err != nil {
		return nil, fmt.Errorf("gemini %s failed: %w", request.Task, err)
	}

	if resp == nil || len(resp.Candidates) == 0 || resp.Text() == "" {
		return nil, fmt.Errorf("gemini %s returned no text", request.Task)
	}
	return &ContentResponse{Text: resp.Text(), Provider: ProviderGemini, Model: model}, nil
}
