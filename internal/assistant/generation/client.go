// Package generation talks to a local Ollama generate endpoint.
package generation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	einocb "github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/go-resty/resty/v2"

	"github.com/docqa-assistant/server/internal/assistant/model"
	"github.com/docqa-assistant/server/internal/assistant/observers"
	errx "github.com/docqa-assistant/server/internal/core/error"
	logx "github.com/docqa-assistant/server/pkg/logger"
)

const (
	// DefaultURL is the generate endpoint of a default local Ollama install.
	DefaultURL = "http://localhost:11434/api/generate"

	// MissingResponseText is returned when a well-formed reply has no response field.
	MissingResponseText = "No response text found in the API response."

	maxErrSnippet = 200
)

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response        *string `json:"response"`
	Error           string  `json:"error,omitempty"`
	PromptEvalCount int     `json:"prompt_eval_count,omitempty"`
	EvalCount       int     `json:"eval_count,omitempty"`
}

// usage maps Ollama's eval counters onto eino's token usage.
func (r *generateResponse) usage() *einomodel.TokenUsage {
	if r.PromptEvalCount == 0 && r.EvalCount == 0 {
		return nil
	}
	return &einomodel.TokenUsage{
		PromptTokens:     r.PromptEvalCount,
		CompletionTokens: r.EvalCount,
		TotalTokens:      r.PromptEvalCount + r.EvalCount,
	}
}

type Client struct {
	http     *resty.Client
	endpoint string
	model    string
}

// NewClient builds a client for config.URL. Without a timeout a call waits for as
// long as the endpoint takes.
func NewClient(config model.GenerationConfig) *Client {
	endpoint := config.URL
	if endpoint == "" {
		endpoint = DefaultURL
	}
	hc := resty.New().
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetRetryCount(0)
	if config.Timeout > 0 {
		hc.SetTimeout(config.Timeout)
	}
	return &Client{http: hc, endpoint: endpoint, model: config.Model}
}

// Model returns the configured model identifier.
func (c *Client) Model() string {
	return c.model
}

// Generate sends prompt to the endpoint with streaming disabled and returns the
// generated text. modelName overrides the configured model when non-empty.
func (c *Client) Generate(ctx context.Context, prompt, modelName string) (string, error) {
	if modelName == "" {
		modelName = c.model
	}

	ctx = einocb.InitCallbacks(ctx, &einocb.RunInfo{
		Name:      "OllamaGenerate",
		Type:      "Ollama",
		Component: components.ComponentOfChatModel,
	}, observers.NewModelCallbacks())
	modelConfig := &einomodel.Config{Model: modelName}
	ctx = einocb.OnStart(ctx, &einomodel.CallbackInput{
		Messages: []*schema.Message{schema.UserMessage(prompt)},
		Config:   modelConfig,
	})

	text, usage, err := c.generate(ctx, prompt, modelName)
	if err != nil {
		einocb.OnError(ctx, err)
		return "", err
	}
	einocb.OnEnd(ctx, &einomodel.CallbackOutput{
		Message:    schema.AssistantMessage(text, nil),
		Config:     modelConfig,
		TokenUsage: usage,
	})
	return text, nil
}

func (c *Client) generate(ctx context.Context, prompt, modelName string) (string, *einomodel.TokenUsage, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(generateRequest{Model: modelName, Prompt: prompt, Stream: false}).
		Post(c.endpoint)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(ctxErr, context.DeadlineExceeded) {
			logx.Warn().Err(err).Str("model", modelName).Msg("generation abandoned by caller")
			return "", nil, errx.Canceled(ctxErr)
		}
		logx.Error().Err(err).Str("endpoint", c.endpoint).Str("model", modelName).Msg("API call to Ollama failed")
		return "", nil, errx.Connectivity(err, modelName)
	}

	body := resp.Body()
	if resp.IsError() {
		err := fmt.Errorf("ollama returned status %d: %s", resp.StatusCode(), upstreamError(body))
		logx.Error().Err(err).Str("endpoint", c.endpoint).Str("model", modelName).Msg("API call to Ollama failed")
		return "", nil, errx.Connectivity(err, modelName)
	}

	var out generateResponse
	if err := json.Unmarshal(body, &out); err != nil {
		logx.Error().Err(err).Str("body", snippet(body)).Msg("failed to decode JSON from Ollama API")
		return "", nil, errx.ResponseFormat(err)
	}
	if out.Response == nil {
		logx.Warn().Str("model", modelName).Str("body", snippet(body)).Msg("Ollama reply has no response field")
		return MissingResponseText, out.usage(), nil
	}

	logx.Debug().Str("model", modelName).Dur("elapsed", resp.Time()).Msg("generation completed")
	return *out.Response, out.usage(), nil
}

// upstreamError prefers Ollama's {"error": "..."} message over the raw body.
func upstreamError(body []byte) string {
	var e generateResponse
	if err := json.Unmarshal(body, &e); err == nil && e.Error != "" {
		return e.Error
	}
	return snippet(body)
}

func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > maxErrSnippet {
		return s[:maxErrSnippet] + "..."
	}
	return s
}
