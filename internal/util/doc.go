// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small string and file utilities shared across the module.
//
// The string helpers are rune-aware: element metadata extracted from assistive
// technology APIs is arbitrary UTF-8 and must never be cut mid-character.
package util
