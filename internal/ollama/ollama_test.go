// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ollama provides the HTTP client for communicating with Ollama API.
package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jeranaias/wcaglens/internal/i18n"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

// fakeTransport scripts per-attempt responses for the shared http.Client.
type fakeTransport struct {
	mu       sync.Mutex
	calls    int
	deadline []time.Duration // remaining time to deadline, per attempt
	bodies   [][]byte        // request body, per attempt
	handler  func(attempt int, req *http.Request) (*http.Response, error)
}

func (f *fakeTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	f.mu.Lock()
	attempt := f.calls
	f.calls++
	if d, ok := req.Context().Deadline(); ok {
		f.deadline = append(f.deadline, time.Until(d))
	}
	if req.Body != nil {
		b, _ := io.ReadAll(req.Body)
		f.bodies = append(f.bodies, b)
	}
	f.mu.Unlock()
	return f.handler(attempt, req)
}

func (f *fakeTransport) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func okResponse(content string) *http.Response {
	body := `{"model":"llama3.2","message":{"role":"assistant","content":` +
		string(mustJSON(content)) + `},"done":true}`
	return &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
	}
}

func mustJSON(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}

// newTestClient returns a client with scripted transport, no real
// sleeping, and a record of every backoff requested.
func newTestClient(ft *fakeTransport) (*Client, *[]time.Duration) {
	c := NewClient("http://127.0.0.1:1")
	c.httpClient.Transport = ft
	var slept []time.Duration
	c.sleep = func(d time.Duration) { slept = append(slept, d) }
	return c, &slept
}

// =============================================================================
// MESSAGE TESTS
// =============================================================================

func TestNewUserMessage(t *testing.T) {
	msg := NewUserMessage("Hello")

	if msg.Role != RoleUser {
		t.Errorf("Role = %q, want 'user'", msg.Role)
	}

	if msg.Content != "Hello" {
		t.Errorf("Content = %q, want 'Hello'", msg.Content)
	}
}

func TestNewAssistantMessage(t *testing.T) {
	msg := NewAssistantMessage("Response")

	if msg.Role != RoleAssistant {
		t.Errorf("Role = %q, want 'assistant'", msg.Role)
	}
}

func TestNewSystemMessage(t *testing.T) {
	msg := NewSystemMessage("You are a WCAG expert")

	if msg.Role != RoleSystem {
		t.Errorf("Role = %q, want 'system'", msg.Role)
	}
}

// =============================================================================
// CHAT TESTS
// =============================================================================

func TestClient_Chat_Success(t *testing.T) {
	var gotPath, gotContentType string
	var gotReq ChatRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotContentType = r.Header.Get("Content-Type")
		_ = json.NewDecoder(r.Body).Decode(&gotReq)
		w.Write([]byte(`{"model":"llama3.2","message":{"role":"assistant","content":"looks accessible"},"done":true}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	transcript := []Message{NewUserMessage("analyze this button")}

	resp, err := client.Chat(context.Background(), "llama3.2", transcript, "", 30*time.Second)
	require.NoError(t, err)
	require.Equal(t, "looks accessible", resp.Content())

	require.Equal(t, "/api/chat", gotPath)
	require.Equal(t, "application/json", gotContentType)
	require.Equal(t, "llama3.2", gotReq.Model)
	require.False(t, gotReq.Stream)
	require.NotNil(t, gotReq.Options)
	require.Equal(t, DefaultNumCtx, gotReq.Options.NumCtx)
	require.Equal(t, transcript, gotReq.Messages)
}

func TestClient_Chat_SystemPromptPrepended(t *testing.T) {
	ft := &fakeTransport{handler: func(int, *http.Request) (*http.Response, error) {
		return okResponse("ok"), nil
	}}
	client, _ := newTestClient(ft)

	transcript := []Message{NewUserMessage("question")}
	_, err := client.Chat(context.Background(), "llama3.2", transcript, "be brief", time.Minute)
	require.NoError(t, err)

	var sent ChatRequest
	require.NoError(t, json.Unmarshal(ft.bodies[0], &sent))
	require.Len(t, sent.Messages, 2)
	require.Equal(t, RoleSystem, sent.Messages[0].Role)
	require.Equal(t, "be brief", sent.Messages[0].Content)
	require.Equal(t, "question", sent.Messages[1].Content)

	// The caller's transcript is never mutated to include the system turn.
	require.Equal(t, []Message{NewUserMessage("question")}, transcript)
}

func TestClient_Chat_RetriesTransportFailure(t *testing.T) {
	ft := &fakeTransport{handler: func(attempt int, _ *http.Request) (*http.Response, error) {
		if attempt < 2 {
			return nil, errors.New("connection refused")
		}
		return okResponse("third time lucky"), nil
	}}
	client, slept := newTestClient(ft)

	resp, err := client.Chat(context.Background(), "llama3.2", []Message{NewUserMessage("hi")}, "", time.Minute)
	require.NoError(t, err)
	require.Equal(t, "third time lucky", resp.Content())
	require.Equal(t, 3, ft.callCount())

	// Fixed 2s backoff between attempts, none after success.
	require.Equal(t, []time.Duration{2 * time.Second, 2 * time.Second}, *slept)
}

func TestClient_Chat_TimeoutWidensPerAttempt(t *testing.T) {
	ft := &fakeTransport{handler: func(attempt int, _ *http.Request) (*http.Response, error) {
		if attempt < 2 {
			return nil, errors.New("no route to host")
		}
		return okResponse("ok"), nil
	}}
	client, _ := newTestClient(ft)

	base := 90 * time.Second
	_, err := client.Chat(context.Background(), "llama3.2", []Message{NewUserMessage("hi")}, "", base)
	require.NoError(t, err)

	require.Len(t, ft.deadline, 3)
	want := []time.Duration{base, base + 30*time.Second, base + 60*time.Second}
	for i, w := range want {
		require.InDelta(t, w.Seconds(), ft.deadline[i].Seconds(), 2.0,
			"attempt %d deadline", i+1)
	}
}

func TestAttemptTimeout(t *testing.T) {
	client := NewClient("")

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 120 * time.Second},
		{1, 150 * time.Second},
		{2, 180 * time.Second}, // third attempt: base + 60s
	}

	for _, tc := range tests {
		if got := client.attemptTimeout(120*time.Second, tc.attempt); got != tc.want {
			t.Errorf("attemptTimeout(120s, %d) = %v, want %v", tc.attempt, got, tc.want)
		}
	}
}

func TestClient_Chat_FailsAfterMaxAttempts(t *testing.T) {
	ft := &fakeTransport{handler: func(int, *http.Request) (*http.Response, error) {
		return nil, errors.New("connection refused")
	}}
	client, slept := newTestClient(ft)

	_, err := client.Chat(context.Background(), "llama3.2", []Message{NewUserMessage("hi")}, "", time.Minute)
	require.Error(t, err)
	require.True(t, IsChatError(err))
	require.Contains(t, err.Error(), "3/3")
	require.Equal(t, 3, ft.callCount())
	require.Len(t, *slept, 2)
}

func TestClient_Chat_LocalizedFailureMessage(t *testing.T) {
	ft := &fakeTransport{handler: func(int, *http.Request) (*http.Response, error) {
		return nil, errors.New("connection refused")
	}}

	cfg := DefaultConfig()
	cfg.Messages = i18n.ForCode("tr")
	client := NewClientWithConfig(cfg)
	client.httpClient.Transport = ft
	client.sleep = func(time.Duration) {}

	_, err := client.Chat(context.Background(), "llama3.2", []Message{NewUserMessage("merhaba")}, "", time.Minute)
	require.Error(t, err)
	require.Contains(t, err.Error(), "Bağlantı hatası (deneme 3/3)")
}

func TestClient_Chat_ProtocolErrorNoRetry(t *testing.T) {
	ft := &fakeTransport{handler: func(int, *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusInternalServerError,
			Status:     "500 Internal Server Error",
			Body:       io.NopCloser(strings.NewReader(`{"error":"model failed to load"}`)),
		}, nil
	}}
	client, slept := newTestClient(ft)

	_, err := client.Chat(context.Background(), "llama3.2", []Message{NewUserMessage("hi")}, "", time.Minute)
	require.Error(t, err)
	require.True(t, IsChatError(err))
	require.Contains(t, err.Error(), "model failed to load")

	// A protocol failure aborts immediately: one attempt, no backoff.
	require.Equal(t, 1, ft.callCount())
	require.Empty(t, *slept)
}

func TestClient_Chat_MalformedJSONNoRetry(t *testing.T) {
	ft := &fakeTransport{handler: func(int, *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(strings.NewReader("not json at all")),
		}, nil
	}}
	client, _ := newTestClient(ft)

	_, err := client.Chat(context.Background(), "llama3.2", []Message{NewUserMessage("hi")}, "", time.Minute)
	require.Error(t, err)
	require.True(t, IsChatError(err))
	require.Equal(t, 1, ft.callCount())
}

func TestClient_Chat_MissingContentIsEmpty(t *testing.T) {
	ft := &fakeTransport{handler: func(int, *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(strings.NewReader(`{"done":true}`)),
		}, nil
	}}
	client, _ := newTestClient(ft)

	resp, err := client.Chat(context.Background(), "llama3.2", []Message{NewUserMessage("hi")}, "", time.Minute)
	require.NoError(t, err)
	require.Equal(t, "", resp.Content())
}

// =============================================================================
// MODEL DISCOVERY TESTS
// =============================================================================

func TestClient_ListModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			t.Errorf("path = %q, want /api/tags", r.URL.Path)
		}
		w.Write([]byte(`{"models":[{"name":"llama3.2"},{"name":"qwen2.5:7b"}]}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	models := client.ListModels(context.Background(), 5*time.Second)
	require.Equal(t, []string{"llama3.2", "qwen2.5:7b"}, models)
}

func TestClient_ListModels_BestEffort(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}},
		{"garbage body", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("garbage"))
		}},
		{"empty list", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"models":[]}`))
		}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(tc.handler)
			defer srv.Close()

			client := NewClient(srv.URL)
			models := client.ListModels(context.Background(), 5*time.Second)
			require.Empty(t, models)
		})
	}
}

func TestClient_ListModels_Unreachable(t *testing.T) {
	// Nothing listens here; discovery must swallow the failure.
	client := NewClient("http://127.0.0.1:1")
	models := client.ListModels(context.Background(), time.Second)
	require.Empty(t, models)
}

// =============================================================================
// HEALTH CHECK TESTS
// =============================================================================

func TestClient_CheckRunning(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Ollama is running"))
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	require.NoError(t, client.CheckRunning(context.Background()))
}

func TestClient_CheckRunning_Down(t *testing.T) {
	client := NewClient("http://127.0.0.1:1")
	require.Error(t, client.CheckRunning(context.Background()))
}

// =============================================================================
// CONFIG TESTS
// =============================================================================

func TestNewClient_Defaults(t *testing.T) {
	client := NewClient("")
	cfg := client.GetConfig()

	if cfg.BaseURL != DefaultBaseURL {
		t.Errorf("BaseURL = %q, want %q", cfg.BaseURL, DefaultBaseURL)
	}
	if cfg.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d, want 3", cfg.MaxAttempts)
	}
	if cfg.RetryBackoff != 2*time.Second {
		t.Errorf("RetryBackoff = %v, want 2s", cfg.RetryBackoff)
	}
	if cfg.TimeoutStep != 30*time.Second {
		t.Errorf("TimeoutStep = %v, want 30s", cfg.TimeoutStep)
	}
}

func TestNewClient_TrimsTrailingSlash(t *testing.T) {
	client := NewClient("http://localhost:11434/")
	if got := client.GetConfig().BaseURL; got != "http://localhost:11434" {
		t.Errorf("BaseURL = %q", got)
	}
}
