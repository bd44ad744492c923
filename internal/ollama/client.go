// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ollama provides the HTTP client for communicating with Ollama API.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/jeranaias/wcaglens/internal/i18n"
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// ClientError represents an error from the Ollama client.
type ClientError struct {
	Type    ErrorType
	Message string
	Cause   error
}

func (e *ClientError) Error() string {
	if e.Cause != nil && !strings.Contains(e.Message, e.Cause.Error()) {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *ClientError) Unwrap() error {
	return e.Cause
}

// ErrorType categorizes client errors for handling.
type ErrorType int

const (
	ErrTypeUnknown ErrorType = iota

	// ErrTypeConnection covers transport failures: connection refused,
	// DNS failure, per-attempt timeout. These are retried.
	ErrTypeConnection

	// ErrTypeInvalidResponse covers protocol failures: malformed JSON,
	// an HTTP error status. These abort immediately, no retry.
	ErrTypeInvalidResponse

	// ErrTypeChat is the terminal boundary error Chat returns after
	// retries are exhausted or a protocol failure occurred. Its message
	// is suitable for direct display to the user.
	ErrTypeChat
)

// IsChatError reports whether err is the terminal boundary error from Chat.
func IsChatError(err error) bool {
	var clientErr *ClientError
	return errors.As(err, &clientErr) && clientErr.Type == ErrTypeChat
}

// isTransient reports whether err is a transport-level failure worth
// retrying. Protocol failures are never transient.
func isTransient(err error) bool {
	var clientErr *ClientError
	return errors.As(err, &clientErr) && clientErr.Type == ErrTypeConnection
}

// =============================================================================
// CLIENT CONFIGURATION
// =============================================================================

// Defaults mirror the behavior of the chat endpoint contract.
const (
	// DefaultBaseURL is the standard local Ollama address.
	DefaultBaseURL = "http://localhost:11434"

	// DefaultNumCtx is the context window requested on every chat call.
	DefaultNumCtx = 4096

	// DefaultTimeout is the base per-attempt timeout when none is given.
	DefaultTimeout = 120 * time.Second

	// defaultMaxAttempts bounds the retry loop.
	defaultMaxAttempts = 3

	// defaultRetryBackoff is the fixed wait between transport retries.
	defaultRetryBackoff = 2 * time.Second

	// defaultTimeoutStep widens the per-attempt timeout on each retry:
	// attempt k runs with base + k*step.
	defaultTimeoutStep = 30 * time.Second
)

// ClientConfig holds configuration options for the Ollama client.
type ClientConfig struct {
	// BaseURL is the Ollama API base URL (default: http://localhost:11434).
	// A trailing slash is stripped.
	BaseURL string

	// MaxAttempts is the total number of chat attempts including the
	// first (default: 3).
	MaxAttempts int

	// RetryBackoff is the fixed delay between attempts after a
	// transport failure (default: 2s). The backoff does not grow.
	RetryBackoff time.Duration

	// TimeoutStep is added to the per-attempt timeout on each retry
	// (default: 30s).
	TimeoutStep time.Duration

	// Messages supplies localized error text (default: English).
	Messages i18n.Strings

	// Logger receives retry and discovery diagnostics.
	Logger *log.Logger
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() *ClientConfig {
	return &ClientConfig{
		BaseURL:      DefaultBaseURL,
		MaxAttempts:  defaultMaxAttempts,
		RetryBackoff: defaultRetryBackoff,
		TimeoutStep:  defaultTimeoutStep,
		Messages:     i18n.ForCode("en"),
		Logger:       log.Default().WithPrefix("ollama"),
	}
}

// =============================================================================
// CLIENT
// =============================================================================

// Client handles communication with the Ollama API.
// It is stateless between calls and safe for concurrent use.
//
// Example:
//
//	client := ollama.NewClient("http://localhost:11434")
//	resp, err := client.Chat(ctx, "llama3.2", transcript, systemPrompt, 120*time.Second)
type Client struct {
	config     *ClientConfig
	httpClient *http.Client

	// sleep is swapped out in tests to avoid real backoff waits.
	sleep func(time.Duration)
}

// NewClient creates a client for the given base URL with default settings.
// An empty baseURL selects the default local address.
func NewClient(baseURL string) *Client {
	cfg := DefaultConfig()
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return NewClientWithConfig(cfg)
}

// NewClientWithConfig creates a client with custom configuration.
func NewClientWithConfig(config *ClientConfig) *Client {
	if config == nil {
		config = DefaultConfig()
	}

	// Fill in defaults for any zero values
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	if config.MaxAttempts == 0 {
		config.MaxAttempts = defaultMaxAttempts
	}
	if config.RetryBackoff == 0 {
		config.RetryBackoff = defaultRetryBackoff
	}
	if config.TimeoutStep == 0 {
		config.TimeoutStep = defaultTimeoutStep
	}
	if config.Messages == (i18n.Strings{}) {
		config.Messages = i18n.ForCode("en")
	}
	if config.Logger == nil {
		config.Logger = log.Default().WithPrefix("ollama")
	}

	return &Client{
		config: config,
		// The per-attempt deadline lives on the request context, so the
		// shared client carries no Timeout of its own.
		httpClient: &http.Client{},
		sleep:      time.Sleep,
	}
}

// =============================================================================
// CHAT
// =============================================================================

// Chat sends the transcript to /api/chat and returns the complete
// response.
//
// If systemPrompt is non-empty it is prepended as a synthetic system
// turn on the outgoing request only; the caller's transcript slice is
// never modified.
//
// Transport failures are retried up to MaxAttempts with a fixed
// backoff, widening the per-attempt timeout by TimeoutStep each retry.
// Protocol failures abort immediately. Either way the returned error is
// a single *ClientError of type ErrTypeChat whose message is fit for
// end-user display.
func (c *Client) Chat(ctx context.Context, model string, transcript []Message, systemPrompt string, timeout time.Duration) (*ChatResponse, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	outgoing := transcript
	if systemPrompt != "" {
		outgoing = make([]Message, 0, len(transcript)+1)
		outgoing = append(outgoing, NewSystemMessage(systemPrompt))
		outgoing = append(outgoing, transcript...)
	}

	body, err := json.Marshal(ChatRequest{
		Model:    model,
		Messages: outgoing,
		Stream:   false,
		Options:  &Options{NumCtx: DefaultNumCtx},
	})
	if err != nil {
		return nil, &ClientError{
			Type:    ErrTypeChat,
			Message: fmt.Sprintf(c.config.Messages.APIError, err),
			Cause:   err,
		}
	}

	var lastMessage string
	var lastErr error
	for attempt := 0; attempt < c.config.MaxAttempts; attempt++ {
		resp, err := c.doChat(ctx, body, c.attemptTimeout(timeout, attempt))
		if err == nil {
			return resp, nil
		}

		if !isTransient(err) {
			return nil, &ClientError{
				Type:    ErrTypeChat,
				Message: fmt.Sprintf(c.config.Messages.APIError, err),
				Cause:   err,
			}
		}

		lastErr = err
		lastMessage = fmt.Sprintf(c.config.Messages.ConnectionError, attempt+1, c.config.MaxAttempts, err)
		c.config.Logger.Warn("chat attempt failed",
			"attempt", attempt+1,
			"max", c.config.MaxAttempts,
			"err", err)

		if attempt+1 < c.config.MaxAttempts {
			c.sleep(c.config.RetryBackoff)
		}
	}

	if lastMessage == "" {
		lastMessage = c.config.Messages.UnknownError
	}
	return nil, &ClientError{Type: ErrTypeChat, Message: lastMessage, Cause: lastErr}
}

// attemptTimeout returns the per-attempt timeout: base + attempt*step,
// attempt counting from zero.
func (c *Client) attemptTimeout(base time.Duration, attempt int) time.Duration {
	return base + time.Duration(attempt)*c.config.TimeoutStep
}

// doChat performs one POST to /api/chat within the given timeout.
func (c *Client) doChat(ctx context.Context, body []byte, timeout time.Duration) (*ChatResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, &ClientError{Type: ErrTypeConnection, Message: "failed to create request", Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Connection refused, DNS failure and deadline expiry all land
		// here; each one is worth a retry.
		return nil, &ClientError{Type: ErrTypeConnection, Message: "request failed", Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr apiError
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error != "" {
			return nil, &ClientError{Type: ErrTypeInvalidResponse, Message: apiErr.Error}
		}
		return nil, &ClientError{
			Type:    ErrTypeInvalidResponse,
			Message: "chat request failed: " + resp.Status,
		}
	}

	var result ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to decode response", Cause: err}
	}

	return &result, nil
}

// =============================================================================
// MODEL DISCOVERY
// =============================================================================

// ListModels retrieves the names of locally available models from
// /api/tags. Discovery is best-effort: any failure yields an empty
// list, never an error, so callers can populate a model picker without
// guarding the call.
func (c *Client) ListModels(ctx context.Context, timeout time.Duration) []string {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+"/api/tags", nil)
	if err != nil {
		return nil
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.config.Logger.Debug("model discovery failed", "err", err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.config.Logger.Debug("model discovery failed", "status", resp.Status)
		return nil
	}

	var result ListModelsResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		c.config.Logger.Debug("model discovery failed", "err", err)
		return nil
	}

	names := make([]string, 0, len(result.Models))
	for _, m := range result.Models {
		if m.Name != "" {
			names = append(names, m.Name)
		}
	}
	return names
}

// =============================================================================
// HEALTH CHECK
// =============================================================================

// CheckRunning verifies that the Ollama server is reachable.
func (c *Client) CheckRunning(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL, nil)
	if err != nil {
		return &ClientError{Type: ErrTypeConnection, Message: "failed to create request", Cause: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &ClientError{Type: ErrTypeConnection, Message: "Ollama is not running", Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &ClientError{
			Type:    ErrTypeConnection,
			Message: "unexpected status from Ollama: " + resp.Status,
		}
	}

	return nil
}

// GetConfig returns the client configuration.
func (c *Client) GetConfig() *ClientConfig {
	return c.config
}
