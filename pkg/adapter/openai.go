package adapter

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// OpenAIClient implements LLM and Embedder against any OpenAI-compatible
// endpoint. Local model servers (LM Studio, Ollama) expose the same API,
// so base URL and a dummy key are enough to run fully offline.
type OpenAIClient struct {
	llm *openai.LLM
}

type OpenAIConfig struct {
	BaseURL        string
	APIKey         string
	Model          string
	EmbeddingModel string
}

func NewOpenAI(cfg OpenAIConfig) (*OpenAIClient, error) {
	opts := []openai.Option{
		openai.WithToken(cfg.APIKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Model != "" {
		opts = append(opts, openai.WithModel(cfg.Model))
	}
	if cfg.EmbeddingModel != "" {
		opts = append(opts, openai.WithEmbeddingModel(cfg.EmbeddingModel))
	}

	llm, err := openai.New(opts...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create openai client")
	}

	return &OpenAIClient{llm: llm}, nil
}

func (c *OpenAIClient) Complete(ctx context.Context, prompt string, opts CompleteOptions) (string, error) {
	out, err := llms.GenerateFromSinglePrompt(ctx, c.llm, prompt,
		llms.WithTemperature(opts.Temperature),
		llms.WithMaxTokens(opts.MaxTokens),
	)
	if err != nil {
		return "", translateLLMError(err, "failed to generate completion")
	}

	return out, nil
}

func (c *OpenAIClient) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.llm.CreateEmbedding(ctx, []string{text})
	if err != nil {
		return nil, translateLLMError(err, "failed to create embedding")
	}

	if len(vectors) == 0 {
		return nil, goerr.New("no embedding returned")
	}

	return vectors[0], nil
}
