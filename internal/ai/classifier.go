// Package ai talks to an OpenAI-compatible chat completions endpoint.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/nhle/mailbot/internal/model"
)

// APIError is a non-2xx answer from the provider.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (%d): %s", e.StatusCode, e.Message)
}

// IsAPIError reports whether err (or any error in its chain) is an APIError.
func IsAPIError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr)
}

// Options configures a Classifier. Zero values fall back to defaults.
type Options struct {
	BaseURL     string
	Model       string
	Temperature float64
	HTTPClient  *http.Client
	Logger      zerolog.Logger
}

// Classifier sends prompts to the chat completions API and returns the
// first choice's content unchanged.
type Classifier struct {
	apiKey      string
	baseURL     string
	model       string
	temperature float64
	client      *http.Client
	logger      zerolog.Logger
}

// NewClassifier creates a classifier that authenticates with apiKey.
func NewClassifier(apiKey string, opts Options) *Classifier {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = model.DefaultAIBaseURL
	}
	modelName := opts.Model
	if modelName == "" {
		modelName = model.DefaultAIModel
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{}
	}

	return &Classifier{
		apiKey:      apiKey,
		baseURL:     baseURL,
		model:       modelName,
		temperature: opts.Temperature,
		client:      client,
		logger:      opts.Logger.With().Str("module", "ai").Logger(),
	}
}

// Model returns the model name sent with each request.
func (c *Classifier) Model() string {
	return c.model
}

// Classify sends prompt as the user message and returns the raw answer.
// It does not retry; timeouts come from ctx.
func (c *Classifier) Classify(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	resp, err := c.callAPI(ctx, NewConversation(prompt))
	if err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", errors.New("API returned no choices")
	}

	c.logger.Debug().
		Str("model", resp.Model).
		Int("prompt_tokens", resp.Usage.PromptTokens).
		Int("completion_tokens", resp.Usage.CompletionTokens).
		Dur("elapsed", time.Since(start)).
		Msg("Classification complete")

	return resp.Choices[0].Message.Content, nil
}

// callAPI makes a single request to the chat completions API.
func (c *Classifier) callAPI(ctx context.Context, messages []Message) (*apiResponse, error) {
	reqBody := apiRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: c.temperature,
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(bodyBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling chat completions API: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr apiErrorResponse
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error.Message != "" {
			return nil, &APIError{StatusCode: resp.StatusCode, Message: apiErr.Error.Message}
		}
		return nil, &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(respBody))}
	}

	var result apiResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	return &result, nil
}

// --- Chat completions API types ---

type apiRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
}

type apiResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index   int `json:"index"`
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

type apiErrorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}
