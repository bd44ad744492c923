// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package i18n provides the localized strings the core emits to users.
package i18n

import "golang.org/x/text/language"

// =============================================================================
// LANGUAGE MATCHING
// =============================================================================

// Supported lists the languages the module ships strings for.
// Turkish is first because it is the original default audience.
var Supported = []language.Tag{
	language.Turkish,
	language.English,
}

var matcher = language.NewMatcher(Supported)

// Match resolves a configured language code (e.g. "tr", "en", "en-US")
// to a supported tag. Unknown or empty codes fall back to Turkish,
// matching the default configuration.
func Match(code string) language.Tag {
	if code == "" {
		return language.Turkish
	}
	tag, err := language.Parse(code)
	if err != nil {
		return language.Turkish
	}
	_, idx, _ := matcher.Match(tag)
	return Supported[idx]
}

// =============================================================================
// STRING CATALOG
// =============================================================================

// Strings holds every user-facing message the core produces.
// Format strings use the fmt verbs noted per field.
type Strings struct {
	// CodeStart and CodeEnd delimit code blocks in normalized text so a
	// screen reader announces where literal code begins and ends.
	CodeStart string
	CodeEnd   string

	// ConnectionError formats a transport failure: attempt, max, error.
	ConnectionError string

	// APIError formats a non-retryable failure: error.
	APIError string

	// UnknownError is the terminal message when no cause was recorded.
	UnknownError string

	// QuestionHeader formats the echoed follow-up question: question text.
	QuestionHeader string
}

var catalogs = map[language.Tag]Strings{
	language.Turkish: {
		CodeStart:       "--- Kod Başlangıcı ---",
		CodeEnd:         "--- Kod Sonu ---",
		ConnectionError: "Bağlantı hatası (deneme %d/%d): %v",
		APIError:        "API hatası: %v",
		UnknownError:    "Bilinmeyen hata",
		QuestionHeader:  "--- Soru: %s ---",
	},
	language.English: {
		CodeStart:       "--- Code Start ---",
		CodeEnd:         "--- Code End ---",
		ConnectionError: "Connection error (attempt %d/%d): %v",
		APIError:        "API error: %v",
		UnknownError:    "Unknown error",
		QuestionHeader:  "--- Question: %s ---",
	},
}

// Lookup returns the string catalog for a supported tag.
// Tags outside the catalog resolve through Match semantics to Turkish.
func Lookup(tag language.Tag) Strings {
	if s, ok := catalogs[tag]; ok {
		return s
	}
	_, idx, _ := matcher.Match(tag)
	return catalogs[Supported[idx]]
}

// ForCode combines Match and Lookup for callers holding a raw config value.
func ForCode(code string) Strings {
	return Lookup(Match(code))
}
