package llm

import (
	"context"
	"fmt"
	"sync"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// OpenAIClient implements Client for OpenAI chat models through langchaingo.
type OpenAIClient struct {
	config *Config
	mu     sync.Mutex
	models map[string]llms.Model
	apiKey string
}

// NewOpenAIClient creates a new OpenAI client. Models are created lazily per tier.
func NewOpenAIClient(config *Config, apiKey string) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	return &OpenAIClient{
		config: config,
		models: make(map[string]llms.Model),
		apiKey: apiKey,
	}, nil
}

func (c *OpenAIClient) model(tier ModelTier, jsonMode bool) (llms.Model, string, error) {
	name := c.config.GetModel(tier)
	if name == "" {
		return nil, "", fmt.Errorf("no model configured for tier %s", tier)
	}

	key := name
	if jsonMode {
		key += "#json"
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if m, ok := c.models[key]; ok {
		return m, name, nil
	}

	opts := []openai.Option{openai.WithToken(c.apiKey), openai.WithModel(name)}
	if jsonMode {
		opts = append(opts, openai.WithResponseFormat(openai.ResponseFormatJSON))
	}
	m, err := openai.New(opts...)
	if err != nil {
		return nil, name, &Error{Provider: ProviderOpenAI, Model: name, Message: "failed to create client", Cause: err}
	}
	c.models[key] = m
	return m, name, nil
}

func (c *OpenAIClient) generate(ctx context.Context, prompt string, tier ModelTier, jsonMode bool) (string, error) {
	m, name, err := c.model(tier, jsonMode)
	if err != nil {
		return "", err
	}

	var callOpts []llms.CallOption
	if c.config.Temperature > 0 {
		callOpts = append(callOpts, llms.WithTemperature(float64(c.config.Temperature)))
	}
	text, err := llms.GenerateFromSinglePrompt(ctx, m, prompt, callOpts...)
	if err != nil {
		return "", &Error{Provider: ProviderOpenAI, Model: name, Message: "failed to generate content", Cause: err}
	}
	if text == "" {
		return "", &Error{Provider: ProviderOpenAI, Model: name, Message: "empty response"}
	}
	return text, nil
}

// GenerateContent generates text content using the specified model tier
func (c *OpenAIClient) GenerateContent(ctx context.Context, prompt string, tier ModelTier) (string, error) {
	return c.generate(ctx, prompt, tier, false)
}

// GenerateJSON generates JSON content using the specified model tier
func (c *OpenAIClient) GenerateJSON(ctx context.Context, prompt string, tier ModelTier) (string, error) {
	text, err := c.generate(ctx, prompt, tier, true)
	if err != nil {
		return "", err
	}
	return CleanJSONBlock(text), nil
}

// GetModel returns the model name for a tier
func (c *OpenAIClient) GetModel(tier ModelTier) string {
	return c.config.GetModel(tier)
}

// Close is a no-op; langchaingo clients hold no long-lived resources.
func (c *OpenAIClient) Close() error {
	return nil
}
