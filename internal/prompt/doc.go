// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package prompt assembles the chat prompts for a WCAG analysis.
//
// The model is asked to review one UI element. The host extracts that
// element's accessibility metadata into an ElementInfo; HTML renders it
// as a pseudo-HTML fragment the model can reason about, and
// SystemPrompt/AnalysisPrompt wrap it in localized instructions that
// pin the WCAG version and conformance level.
//
// Prompts exist in Turkish and English; the language code from the
// settings snapshot selects between them.
package prompt
