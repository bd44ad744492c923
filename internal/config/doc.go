// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides loading and saving of analyst settings.
//
// Settings are read into an immutable Snapshot. Components take one
// Snapshot at the start of an operation and hold it for the duration,
// which keeps a mid-operation settings change from producing a request
// built from two different configurations.
//
// # Sources
//
// In order of precedence:
//   - WCAGLENS_* environment variables
//   - ~/.wcaglens/config.toml
//   - Built-in defaults
//
// Validation clamps rather than rejects: an out-of-range timeout is
// pulled to the nearest bound, an unknown WCAG version or level falls
// back to the default. Settings written by older versions therefore
// always load.
//
// A Watcher is available for callers that want to re-snapshot when the
// file changes on disk.
package config
