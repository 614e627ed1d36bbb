// Package openai adapts the OpenAI API to the pipeline's Responder
// contract. Two concrete variants exist, selected once by exact model
// name: the chat-completions endpoint for gpt-3.5-turbo and the legacy
// completions endpoint for text-davinci-003.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	gopenai "github.com/sashabaranov/go-openai"

	"wechat-bridge/internal/domain"
)

const (
	ModelChat       = "gpt-3.5-turbo"
	ModelCompletion = "text-davinci-003"
)

// ErrUnsupportedModel is returned by New when the configured model does
// not name a known variant.
var ErrUnsupportedModel = errors.New("openai: unsupported model")

// Responder is the upstream capability consumed by the pipeline.
type Responder interface {
	Respond(ctx context.Context, history []domain.ConversationTurn, text string) (string, error)
}

// Getter supplies the API key parameter. Satisfied by paramstore.Client.
type Getter interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

// Config carries everything needed to construct a Responder.
type Config struct {
	Model        string
	ParamGetter  Getter
	ParamPrefix  string
	SystemPrompt string
	BaseURL      string
	HTTPClient   *http.Client
}

// New resolves the model name to its variant. An unrecognized model is a
// configuration error reported here, before any request is handled.
func New(cfg Config) (Responder, error) {
	if cfg.ParamGetter == nil {
		return nil, errors.New("openai: param getter must not be nil")
	}
	cfg.ParamPrefix = strings.TrimRight(strings.TrimSpace(cfg.ParamPrefix), "/")
	if cfg.ParamPrefix == "" {
		return nil, errors.New("openai: parameter prefix must not be empty")
	}

	base := &client{
		getter:       cfg.ParamGetter,
		paramPrefix:  cfg.ParamPrefix,
		systemPrompt: cfg.SystemPrompt,
		baseURL:      cfg.BaseURL,
		httpClient:   cfg.HTTPClient,
	}

	switch cfg.Model {
	case ModelChat:
		return &chatResponder{client: base}, nil
	case ModelCompletion:
		return &completionResponder{client: base}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedModel, cfg.Model)
	}
}

// client holds the shared state of both variants. The API key is fetched
// from the parameter store on first use and reused for the process
// lifetime.
type client struct {
	getter       Getter
	paramPrefix  string
	systemPrompt string
	baseURL      string
	httpClient   *http.Client

	apiOnce sync.Once
	api     *gopenai.Client
	apiErr  error
}

func (c *client) resolveAPI(ctx context.Context) (*gopenai.Client, error) {
	c.apiOnce.Do(func() {
		key, err := fetchAPIKey(ctx, c.getter, c.paramPrefix+"/openai-api-key")
		if err != nil {
			c.apiErr = err
			return
		}
		conf := gopenai.DefaultConfig(key)
		if c.baseURL != "" {
			conf.BaseURL = strings.TrimRight(c.baseURL, "/")
		}
		if c.httpClient != nil {
			conf.HTTPClient = c.httpClient
		}
		c.api = gopenai.NewClientWithConfig(conf)
	})
	return c.api, c.apiErr
}

// tokenPayload is the JSON shape stored in the parameter store for the
// API key.
type tokenPayload struct {
	Token string `json:"token"`
}

func fetchAPIKey(ctx context.Context, getter Getter, name string) (string, error) {
	raw, err := getter.GetParameter(ctx, name)
	if err != nil {
		return "", fmt.Errorf("openai: fetch API key: %w", err)
	}
	var tp tokenPayload
	if err := json.Unmarshal([]byte(raw), &tp); err != nil {
		return "", fmt.Errorf("openai: unmarshal API key parameter as JSON: %w", err)
	}
	if strings.TrimSpace(tp.Token) == "" {
		return "", errors.New("openai: API key parameter has empty token")
	}
	return tp.Token, nil
}

// chatResponder talks to the chat-completions endpoint.
type chatResponder struct {
	*client
}

func (c *chatResponder) Respond(ctx context.Context, history []domain.ConversationTurn, text string) (string, error) {
	api, err := c.resolveAPI(ctx)
	if err != nil {
		return "", err
	}

	resp, err := api.CreateChatCompletion(ctx, gopenai.ChatCompletionRequest{
		Model:    ModelChat,
		Messages: toProviderMessages(chatMessages(c.systemPrompt, history, text)),
	})
	if err != nil {
		return "", fmt.Errorf("openai: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai: no choices in chat completion response")
	}
	return resp.Choices[0].Message.Content, nil
}

// completionResponder talks to the legacy completions endpoint, flattening
// the history into a dialogue transcript.
type completionResponder struct {
	*client
}

func (c *completionResponder) Respond(ctx context.Context, history []domain.ConversationTurn, text string) (string, error) {
	api, err := c.resolveAPI(ctx)
	if err != nil {
		return "", err
	}

	resp, err := api.CreateCompletion(ctx, gopenai.CompletionRequest{
		Model:     ModelCompletion,
		Prompt:    transcriptPrompt(c.systemPrompt, history, text),
		MaxTokens: 1000,
	})
	if err != nil {
		return "", fmt.Errorf("openai: completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai: no choices in completion response")
	}
	return strings.TrimSpace(resp.Choices[0].Text), nil
}
