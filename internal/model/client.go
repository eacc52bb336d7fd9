package model

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"

	"scanbay/internal/config"
	"scanbay/internal/ratelimit"
	"scanbay/internal/services"
)

const defaultTimeout = 60 * time.Second

// backoffPolicy shapes the rate-limit retry delays. MaxAttempts is unused
// here; the client's own retry counter bounds the loop.
var backoffPolicy = ratelimit.Policy{
	BaseDelay: 2 * time.Second,
	MaxDelay:  32 * time.Second,
	Jitter:    0.25,
}

// Completer is the completion operation the orchestrator depends on.
type Completer interface {
	Complete(ctx context.Context, conv *Conversation, opts Options) (*Response, error)
}

// Client calls the generative model API.
type Client struct {
	client       openai.Client
	defaultModel string
	timeout      time.Duration
	maxRetries   int
	sleep        func(context.Context, time.Duration) error
}

var _ Completer = (*Client)(nil)

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithSleeper overrides how backoff sleeps are performed (useful for tests).
func WithSleeper(fn func(context.Context, time.Duration) error) ClientOption {
	return func(c *Client) {
		if fn != nil {
			c.sleep = fn
		}
	}
}

// New creates a model client from the llm configuration section.
func New(cfg config.LLM, opts ...ClientOption) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, services.Wrap(services.ErrConfiguration, "model", "new", "api key required", nil)
	}
	// The SDK's transport-level retries are disabled so the backoff policy
	// below is the only retry path.
	requestOpts := []option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(0)}
	if baseURL := strings.TrimSpace(cfg.BaseURL); baseURL != "" {
		requestOpts = append(requestOpts, option.WithBaseURL(baseURL))
	}

	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	maxRetries := cfg.RetryAttempts
	if maxRetries < 0 {
		maxRetries = 0
	}

	client := &Client{
		client:       openai.NewClient(requestOpts...),
		defaultModel: strings.TrimSpace(cfg.Model),
		timeout:      timeout,
		maxRetries:   maxRetries,
		sleep:        sleepWithContext,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Complete sends the conversation and returns the assistant reply. Rate
// limits are retried with exponential backoff up to the configured ceiling;
// other failures surface immediately.
func (c *Client) Complete(ctx context.Context, conv *Conversation, opts Options) (*Response, error) {
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = c.defaultModel
	}
	if model == "" {
		return nil, services.Wrap(services.ErrConfiguration, "model", "complete", "no model configured", nil)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(model),
		Messages: toMessageParams(conv),
	}
	if len(opts.Tools) > 0 {
		params.Tools = toToolParams(opts.Tools)
	}
	if opts.Schema != nil {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &shared.ResponseFormatJSONSchemaParam{
				JSONSchema: shared.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   opts.SchemaName,
					Schema: opts.Schema,
					Strict: openai.Bool(true),
				},
			},
		}
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			if err := c.sleep(ctx, backoffPolicy.Delay(attempt)); err != nil {
				return nil, err
			}
		}

		completion, err := c.client.Chat.Completions.New(ctx, params)
		if err != nil {
			lastErr = err
			if isRateLimitError(err) {
				continue
			}
			return nil, services.Wrap(services.ErrNetwork, "model", "complete", "api call failed", err)
		}
		if len(completion.Choices) == 0 {
			return nil, services.Wrap(services.ErrNetwork, "model", "complete", "no completion choices returned", nil)
		}
		return buildResponse(completion), nil
	}
	return nil, services.Wrap(services.ErrRateLimited, "model", "complete",
		fmt.Sprintf("rate limited after %d retries", c.maxRetries), lastErr)
}

func buildResponse(completion *openai.ChatCompletion) *Response {
	message := completion.Choices[0].Message
	raw := message.ToParam()

	resp := &Response{
		Message: Message{
			Role:    RoleAssistant,
			Content: message.Content,
			raw:     &raw,
		},
		Content: message.Content,
		Model:   string(completion.Model),
	}
	for _, call := range message.ToolCalls {
		toolCall := ToolCall{
			ID:        call.ID,
			Name:      call.Function.Name,
			Arguments: call.Function.Arguments,
		}
		resp.ToolCalls = append(resp.ToolCalls, toolCall)
		resp.Message.ToolCalls = append(resp.Message.ToolCalls, toolCall)
	}
	return resp
}

// toMessageParams converts the conversation to the provider wire form.
// Assistant messages captured from a previous completion reuse their exact
// wire form so tool-call ids stay consistent.
func toMessageParams(conv *Conversation) []openai.ChatCompletionMessageParamUnion {
	params := make([]openai.ChatCompletionMessageParamUnion, 0, conv.Len())
	for _, msg := range conv.Messages() {
		if msg.raw != nil {
			params = append(params, *msg.raw)
			continue
		}
		switch msg.Role {
		case RoleSystem:
			params = append(params, openai.SystemMessage(msg.Content))
		case RoleUser:
			params = append(params, openai.UserMessage(msg.Content))
		case RoleAssistant:
			params = append(params, openai.AssistantMessage(msg.Content))
		case RoleTool:
			params = append(params, openai.ToolMessage(msg.Content, msg.ToolCallID))
		}
	}
	return params
}

func toToolParams(tools []ToolDefinition) []openai.ChatCompletionToolUnionParam {
	params := make([]openai.ChatCompletionToolUnionParam, 0, len(tools))
	for _, tool := range tools {
		params = append(params, openai.ChatCompletionFunctionTool(shared.FunctionDefinitionParam{
			Name:        tool.Name,
			Description: openai.String(tool.Description),
			Parameters:  shared.FunctionParameters(tool.Parameters),
		}))
	}
	return params
}

func isRateLimitError(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429
	}
	return false
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
