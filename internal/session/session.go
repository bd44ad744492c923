// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session orchestrates one analysis conversation with the model.
package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/jeranaias/wcaglens/internal/config"
	"github.com/jeranaias/wcaglens/internal/i18n"
	"github.com/jeranaias/wcaglens/internal/ollama"
	"github.com/jeranaias/wcaglens/internal/plaintext"
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// StateError indicates an operation was invoked in the wrong session
// lifecycle state.
type StateError struct {
	Reason string
}

func (e *StateError) Error() string {
	return e.Reason
}

// Sentinel errors for lifecycle misuse.
var (
	// ErrAlreadyStarted is returned by StartAnalysis on a session that
	// already holds an analysis.
	ErrAlreadyStarted = &StateError{Reason: "session already has an analysis"}

	// ErrNotStarted is returned by Ask before any analysis has run.
	ErrNotStarted = &StateError{Reason: "no analysis has been run yet"}

	// ErrBusy is returned while a previous operation is still in flight.
	ErrBusy = &StateError{Reason: "an operation is already in flight"}
)

// =============================================================================
// COLLABORATORS
// =============================================================================

// Chatter is the chat transport the session dispatches through.
// *ollama.Client satisfies it.
type Chatter interface {
	Chat(ctx context.Context, model string, transcript []ollama.Message, systemPrompt string, timeout time.Duration) (*ollama.ChatResponse, error)
}

// ClientFunc builds the transport for one operation from the settings
// snapshot taken at its start. Clients are stateless and cheap, so a
// fresh one per operation keeps URL and language changes effective
// without any shared mutable configuration.
type ClientFunc func(snap config.Snapshot) Chatter

// SnapshotFunc supplies the settings snapshot read once per operation.
type SnapshotFunc func() config.Snapshot

func defaultClientFunc(snap config.Snapshot) Chatter {
	cfg := ollama.DefaultConfig()
	cfg.BaseURL = snap.OllamaURL
	cfg.Messages = i18n.ForCode(snap.Language)
	return ollama.NewClientWithConfig(cfg)
}

// =============================================================================
// CALL FUTURE
// =============================================================================

// Call is the pending outcome of one exchange. The network round trip
// runs on its own goroutine; Wait blocks until it finishes. There is no
// cancellation once dispatched; the per-attempt timeout inside the
// transport is the only bound on duration.
type Call struct {
	done chan struct{}
	text string
	err  error
}

func newCall() *Call {
	return &Call{done: make(chan struct{})}
}

func (c *Call) complete(text string, err error) {
	c.text = text
	c.err = err
	close(c.done)
}

// Done is closed when the exchange has finished.
func (c *Call) Done() <-chan struct{} {
	return c.done
}

// Wait blocks until the exchange finishes and returns the normalized
// assistant text or the terminal error.
func (c *Call) Wait() (string, error) {
	<-c.done
	return c.text, c.err
}

// =============================================================================
// SESSION
// =============================================================================

// Session owns the transcript of one analysis conversation. The
// transcript only ever contains turns that round-tripped successfully:
// assistant turns are stored raw (the model sees its own words back,
// not the normalized rendering), and a failed exchange leaves the
// transcript exactly as it was.
//
// Operations are not reentrant. Busy reports an in-flight operation and
// a second dispatch returns ErrBusy rather than interleaving requests.
type Session struct {
	id        string
	createdAt time.Time

	clients  ClientFunc
	snapshot SnapshotFunc
	logger   *log.Logger

	busy atomic.Bool

	mu         sync.Mutex
	transcript []ollama.Message
	updatedAt  time.Time
}

// New creates an empty session. A nil clients falls back to real
// Ollama transports; a nil snapshot falls back to built-in defaults.
func New(clients ClientFunc, snapshot SnapshotFunc) *Session {
	if clients == nil {
		clients = defaultClientFunc
	}
	if snapshot == nil {
		snapshot = func() config.Snapshot { return config.Default() }
	}
	now := time.Now()
	return &Session{
		id:        uuid.NewString(),
		createdAt: now,
		updatedAt: now,
		clients:   clients,
		snapshot:  snapshot,
		logger:    log.Default().WithPrefix("session"),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// CreatedAt returns when the session was created.
func (s *Session) CreatedAt() time.Time {
	return s.createdAt
}

// UpdatedAt returns when the transcript last changed.
func (s *Session) UpdatedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updatedAt
}

// Busy reports whether an operation is in flight. The contract is
// cooperative: callers check Busy before dispatching rather than
// queueing behind one another.
func (s *Session) Busy() bool {
	return s.busy.Load()
}

// Len returns the number of turns in the transcript.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.transcript)
}

// Transcript returns a copy of the conversation turns. The session
// remains the sole owner of the underlying transcript.
func (s *Session) Transcript() []ollama.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ollama.Message, len(s.transcript))
	copy(out, s.transcript)
	return out
}

// =============================================================================
// OPERATIONS
// =============================================================================

// StartAnalysis runs the first exchange of a session: the system prompt
// and the analysis prompt go out, and on success the transcript becomes
// [system, user, assistant(raw)]. Valid only on an empty session;
// ErrAlreadyStarted otherwise.
//
// The returned Call completes with the normalized assistant text.
func (s *Session) StartAnalysis(ctx context.Context, userPrompt, systemPrompt string) (*Call, error) {
	if !s.busy.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}

	s.mu.Lock()
	started := len(s.transcript) > 0
	s.mu.Unlock()
	if started {
		s.busy.Store(false)
		return nil, ErrAlreadyStarted
	}

	snap := s.snapshot()
	client := s.clients(snap)
	call := newCall()

	go func() {
		// The flag is cleared before the call completes so a caller
		// woken by Wait always observes an idle session, and cleared
		// via defer so a panicking exchange cannot leave the session
		// locked forever.
		text, err := func() (string, error) {
			defer s.busy.Store(false)

			resp, err := client.Chat(ctx, snap.OllamaModel,
				[]ollama.Message{ollama.NewUserMessage(userPrompt)},
				systemPrompt, snap.Timeout())
			if err != nil {
				s.logger.Warn("analysis failed", "session", s.id, "err", err)
				return "", err
			}

			raw := resp.Content()
			s.mu.Lock()
			if systemPrompt != "" {
				s.transcript = append(s.transcript, ollama.NewSystemMessage(systemPrompt))
			}
			s.transcript = append(s.transcript,
				ollama.NewUserMessage(userPrompt),
				ollama.NewAssistantMessage(raw))
			s.updatedAt = time.Now()
			s.mu.Unlock()

			return s.normalize(raw, snap), nil
		}()
		call.complete(text, err)
	}()

	return call, nil
}

// Ask runs a follow-up exchange. The question is appended as a user
// turn and the whole transcript is sent, so the model keeps the full
// context of the analysis. On failure the speculative user turn is
// rolled back; the transcript never records a question that got no
// answer. Requires a prior analysis; ErrNotStarted otherwise.
func (s *Session) Ask(ctx context.Context, question string) (*Call, error) {
	if !s.busy.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}

	s.mu.Lock()
	if len(s.transcript) == 0 {
		s.mu.Unlock()
		s.busy.Store(false)
		return nil, ErrNotStarted
	}
	s.transcript = append(s.transcript, ollama.NewUserMessage(question))
	outgoing := make([]ollama.Message, len(s.transcript))
	copy(outgoing, s.transcript)
	s.mu.Unlock()

	snap := s.snapshot()
	client := s.clients(snap)
	call := newCall()

	go func() {
		text, err := func() (string, error) {
			defer s.busy.Store(false)

			resp, err := client.Chat(ctx, snap.OllamaModel, outgoing, "", snap.Timeout())
			if err != nil {
				s.mu.Lock()
				s.transcript = s.transcript[:len(s.transcript)-1]
				s.mu.Unlock()
				s.logger.Warn("follow-up failed", "session", s.id, "err", err)
				return "", err
			}

			raw := resp.Content()
			s.mu.Lock()
			s.transcript = append(s.transcript, ollama.NewAssistantMessage(raw))
			s.updatedAt = time.Now()
			s.mu.Unlock()

			return s.normalize(raw, snap), nil
		}()
		call.complete(text, err)
	}()

	return call, nil
}

// normalize renders raw model output for display using the markers of
// the snapshot's language. The raw text already went into the
// transcript; only the returned copy is rewritten.
func (s *Session) normalize(raw string, snap config.Snapshot) string {
	msgs := i18n.ForCode(snap.Language)
	n := plaintext.New(plaintext.Markers{
		CodeStart: msgs.CodeStart,
		CodeEnd:   msgs.CodeEnd,
	})
	return n.Normalize(raw)
}
