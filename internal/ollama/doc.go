// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ollama provides the HTTP client for communicating with Ollama API.
//
// The client covers the two endpoints the analyst core consumes:
// non-streaming chat completions (/api/chat) and best-effort model
// discovery (/api/tags).
//
// # Key Types
//
//   - Client: stateless HTTP client, safe for concurrent use
//   - Message: one conversation turn with role and content
//   - ChatRequest / ChatResponse: wire structures for /api/chat
//   - ClientError: typed error with transport/protocol/terminal categories
//
// # Retry Behavior
//
// Chat retries transport failures (connection refused, DNS failure,
// timeout) up to three attempts with a fixed 2-second backoff, widening
// the per-attempt timeout by 30 seconds each retry. Protocol failures
// (bad JSON, HTTP error status) abort immediately. Callers always see a
// single terminal error whose message is safe to display verbatim.
//
// # Usage
//
//	client := ollama.NewClient("http://localhost:11434")
//	resp, err := client.Chat(ctx, "llama3.2", transcript, systemPrompt, 120*time.Second)
//	if err != nil {
//	    // err.Error() is user-displayable
//	}
//	text := resp.Content()
package ollama
