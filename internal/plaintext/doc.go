// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package plaintext converts markdown-like model output into flat text
// that reads well linearly through a screen reader.
//
// Markdown structure is visual: emphasis, tables and headings rely on
// symbols a screen reader either spells out or skips. Normalize rewrites
// that structure into punctuation-stable plain text:
//
//   - fenced code blocks become content between spoken start/end markers
//   - tables become tab-separated rows with separator rows dropped
//   - headings become =-wrapped lines (levels 1-3) or bare text (4-6)
//   - emphasis markers are stripped, inner text kept
//   - list markers become an indented bullet glyph or "N. "
//   - inline code becomes [bracketed] text, links become "text (url)"
//
// The conversion is an ordered pipeline of pure stages. Order matters:
// code fences are isolated first so no later stage invents structure
// inside them, tables are reflowed before stray pipes are collapsed,
// and whitespace is bounded last. Normalize is total and idempotent.
//
// # Usage
//
//	n := plaintext.New(plaintext.Markers{
//	    CodeStart: "--- Kod Başlangıcı ---",
//	    CodeEnd:   "--- Kod Sonu ---",
//	})
//	speech := n.Normalize(modelOutput)
package plaintext
