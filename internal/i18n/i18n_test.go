// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package i18n

import (
	"testing"

	"golang.org/x/text/language"
)

func TestMatch(t *testing.T) {
	tests := []struct {
		name string
		code string
		want language.Tag
	}{
		{"turkish", "tr", language.Turkish},
		{"english", "en", language.English},
		{"english region variant", "en-US", language.English},
		{"turkish region variant", "tr-TR", language.Turkish},
		{"unsupported falls back", "de", language.Turkish},
		{"empty falls back", "", language.Turkish},
		{"garbage falls back", "not a tag!!", language.Turkish},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Match(tc.code); got != tc.want {
				t.Errorf("Match(%q) = %v, want %v", tc.code, got, tc.want)
			}
		})
	}
}

func TestLookup(t *testing.T) {
	en := Lookup(language.English)
	if en.CodeStart != "--- Code Start ---" {
		t.Errorf("CodeStart = %q", en.CodeStart)
	}

	tr := Lookup(language.Turkish)
	if tr.CodeStart != "--- Kod Başlangıcı ---" {
		t.Errorf("CodeStart = %q", tr.CodeStart)
	}

	// Every supported language must have a complete catalog.
	for _, tag := range Supported {
		s := Lookup(tag)
		if s.CodeStart == "" || s.CodeEnd == "" || s.ConnectionError == "" ||
			s.APIError == "" || s.UnknownError == "" || s.QuestionHeader == "" {
			t.Errorf("catalog for %v has empty entries: %+v", tag, s)
		}
	}
}

func TestForCode(t *testing.T) {
	if got := ForCode("en").CodeEnd; got != "--- Code End ---" {
		t.Errorf("ForCode(en).CodeEnd = %q", got)
	}
	if got := ForCode("xx").CodeEnd; got != "--- Kod Sonu ---" {
		t.Errorf("ForCode(xx).CodeEnd = %q", got)
	}
}
