package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

const defaultOpenAIModel = openai.GPT4oMini

// OpenAI talks to the OpenAI chat completions API. The same implementation
// serves any OpenAI-compatible local inference server (Ollama, LM Studio)
// through a custom base URL, where no real key is needed.
type OpenAI struct {
	client *openai.Client
	model  string
	name   string
}

// NewOpenAI creates the hosted OpenAI variant.
func NewOpenAI(apiKey, model string) (*OpenAI, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, &AuthError{Provider: "openai", Err: errors.New("api key is required")}
	}
	if model == "" {
		model = defaultOpenAIModel
	}
	return &OpenAI{
		client: openai.NewClient(apiKey),
		model:  model,
		name:   "openai",
	}, nil
}

// NewLocal creates the local-endpoint variant against an OpenAI-compatible
// server reachable at baseURL.
func NewLocal(baseURL, model string) (*OpenAI, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("local endpoint base url is required")
	}
	cfg := openai.DefaultConfig("not-needed")
	cfg.BaseURL = strings.TrimSuffix(baseURL, "/") + "/v1"

	return &OpenAI{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
		name:   "local",
	}, nil
}

func (o *OpenAI) Name() string { return o.name }

// Complete sends one chat completion request.
func (o *OpenAI) Complete(ctx context.Context, req Request) (string, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.System},
			{Role: openai.ChatMessageRoleUser, Content: req.Prompt},
		},
		Temperature: req.Temperature,
	})
	if err != nil {
		return "", o.classify(err)
	}

	if len(resp.Choices) == 0 {
		return "", &TransientError{Provider: o.name, Err: errors.New("no choices in response")}
	}
	return resp.Choices[0].Message.Content, nil
}

func (o *OpenAI) classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return classifyStatus(o.name, apiErr.HTTPStatusCode, err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return classifyStatus(o.name, reqErr.HTTPStatusCode, err)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", o.name, err)
	}
	// Connection-level failures have no status; treat as transient.
	return &TransientError{Provider: o.name, Err: err}
}
