package openaihttp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/time/rate"
)

const (
	defaultBaseURL     = "https://api.openai.com"
	defaultModel       = "gpt-4o-mini"
	defaultTimeout     = 30 * time.Second
	defaultMaxRetries  = 2
	defaultBaseBackoff = 500 * time.Millisecond

	maxTokens   = 500
	temperature = 0.7
)

type Client struct {
	model      string
	apiKey     string
	baseURL    string
	httpc      *http.Client
	limiter    *rate.Limiter
	maxRetries int
}

func New(baseURL, apiKey, model string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if model == "" {
		model = defaultModel
	}
	return &Client{
		model:   model,
		apiKey:  apiKey,
		baseURL: baseURL,
		httpc: &http.Client{
			Timeout: defaultTimeout,
		},
		limiter:    rate.NewLimiter(rate.Limit(2), 4),
		maxRetries: defaultMaxRetries,
	}
}

type chatRequest struct {
	Model       string        `json:"model"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
	Messages    []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

type retryableError struct {
	err error
}

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

func isRetryable(err error) bool {
	var re *retryableError
	return errors.As(err, &re)
}

func (c *Client) Complete(ctx context.Context, systemPrompt, userMessage string) (string, error) {
	if c.apiKey == "" {
		return "", errors.New("openai api key is not configured")
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return "", errors.Wrap(err, "rate limiter")
	}

	req := chatRequest{
		Model:       c.model,
		MaxTokens:   maxTokens,
		Temperature: temperature,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userMessage},
		},
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := defaultBaseBackoff * time.Duration(1<<(attempt-1))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		answer, err := c.doRequest(ctx, req)
		if err == nil {
			return answer, nil
		}
		lastErr = err
		if !isRetryable(err) {
			return "", err
		}
	}
	return "", errors.Wrap(lastErr, "max retries exceeded")
}

func (c *Client) doRequest(ctx context.Context, req chatRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", errors.Wrap(err, "marshal request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", errors.Wrap(err, "new request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpc.Do(httpReq)
	if err != nil {
		return "", &retryableError{err: errors.Wrap(err, "do request")}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Wrap(err, "read response")
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return "", &retryableError{err: fmt.Errorf("openai http %d: %s", resp.StatusCode, respBody)}
	}
	if resp.StatusCode != http.StatusOK {
		var ae apiError
		if json.Unmarshal(respBody, &ae) == nil && ae.Error.Message != "" {
			return "", fmt.Errorf("openai http %d: %s", resp.StatusCode, ae.Error.Message)
		}
		return "", fmt.Errorf("openai http %d: %s", resp.StatusCode, respBody)
	}

	var cr chatResponse
	if err := json.Unmarshal(respBody, &cr); err != nil {
		return "", errors.Wrap(err, "decode response")
	}
	if len(cr.Choices) == 0 {
		return "", errors.New("empty completion response")
	}
	return cr.Choices[0].Message.Content, nil
}
