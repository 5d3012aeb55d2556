package services

import (
	"context"
	"errors"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// TokenStream is an incremental sequence of assistant text fragments.
// Recv returns io.EOF after the final fragment.
type TokenStream interface {
	Recv() (string, error)
	Close() error
}

type AIConfig struct {
	APIKey         string
	FallbackAPIKey string // optional second credential
	BaseURL        string
	Model          string

	Temperature      float32
	MaxTokens        int
	FrequencyPenalty float32
	PresencePenalty  float32
	Timeout          time.Duration
}

// AIClient wraps the completion provider. Errors from the provider are
// returned as-is; classification and retry policy belong to the caller.
type AIClient struct {
	cfg AIConfig
}

func NewAIClient(cfg AIConfig) *AIClient {
	return &AIClient{cfg: cfg}
}

// HasFallback reports whether a secondary credential is configured.
func (a *AIClient) HasFallback() bool {
	return a.cfg.FallbackAPIKey != ""
}

// client builds a provider client for the requested credential. Building one
// per call keeps the credential choice local to the request instead of in
// shared state.
func (a *AIClient) client(secondary bool) *openai.Client {
	key := a.cfg.APIKey
	if secondary {
		key = a.cfg.FallbackAPIKey
	}

	config := openai.DefaultConfig(key)
	if a.cfg.BaseURL != "" {
		config.BaseURL = a.cfg.BaseURL
	}
	if a.cfg.Timeout > 0 {
		config.HTTPClient = &http.Client{Timeout: a.cfg.Timeout}
	}

	return openai.NewClientWithConfig(config)
}

// Complete issues the tool-eligible, non-streaming completion call and
// returns the first choice's message.
func (a *AIClient) Complete(ctx context.Context, secondary bool, messages []openai.ChatCompletionMessage, tools []openai.Tool) (openai.ChatCompletionMessage, error) {
	resp, err := a.client(secondary).CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:            a.cfg.Model,
		Messages:         messages,
		Tools:            tools,
		Temperature:      a.cfg.Temperature,
		MaxTokens:        a.cfg.MaxTokens,
		FrequencyPenalty: a.cfg.FrequencyPenalty,
		PresencePenalty:  a.cfg.PresencePenalty,
	})
	if err != nil {
		return openai.ChatCompletionMessage{}, err
	}
	if len(resp.Choices) == 0 {
		return openai.ChatCompletionMessage{}, errors.New("completion returned no choices")
	}

	return resp.Choices[0].Message, nil
}

// Stream issues the streaming completion call.
func (a *AIClient) Stream(ctx context.Context, secondary bool, messages []openai.ChatCompletionMessage) (TokenStream, error) {
	s, err := a.client(secondary).CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:            a.cfg.Model,
		Messages:         messages,
		Temperature:      a.cfg.Temperature,
		FrequencyPenalty: a.cfg.FrequencyPenalty,
		PresencePenalty:  a.cfg.PresencePenalty,
		Stream:           true,
	})
	if err != nil {
		return nil, err
	}

	return &completionStream{inner: s}, nil
}

type completionStream struct {
	inner *openai.ChatCompletionStream
}

func (s *completionStream) Recv() (string, error) {
	// Skip frames without text content (role headers, finish markers).
	for {
		resp, err := s.inner.Recv()
		if err != nil {
			return "", err
		}
		if len(resp.Choices) == 0 {
			continue
		}
		if delta := resp.Choices[0].Delta.Content; delta != "" {
			return delta, nil
		}
	}
}

func (s *completionStream) Close() error {
	return s.inner.Close()
}
