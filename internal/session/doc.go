// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session orchestrates one analysis conversation with the model.
//
// A Session wraps an ordered transcript of system/user/assistant turns
// and exposes two operations: StartAnalysis for the first exchange and
// Ask for follow-ups. Both dispatch their network round trip on a
// worker goroutine and hand back a Call future, so a caller's thread is
// never blocked by a model that takes a minute to answer.
//
// # Transcript Invariants
//
//   - turns are append-only and never reordered or deduplicated
//   - assistant turns are stored raw; normalization applies only to the
//     text handed back for display
//   - a failed exchange leaves the transcript untouched, including
//     rolling back the speculative user turn of a failed Ask
//
// # Concurrency
//
// One operation may be in flight per session. Busy is a cooperative
// flag for callers; a conflicting dispatch fails fast with ErrBusy.
// The flag is cleared on every exit path of the worker. Operations
// read their settings snapshot once at dispatch and hold it for the
// whole exchange.
package session
