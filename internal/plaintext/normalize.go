// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package plaintext converts markdown-like model output into flat text
// that reads well linearly, one line at a time, through a screen reader.
package plaintext

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// =============================================================================
// MARKERS
// =============================================================================

// Markers are the lines that delimit literal code in the output.
// Content between them is preserved verbatim, including markdown
// control characters.
type Markers struct {
	CodeStart string
	CodeEnd   string
}

// DefaultMarkers returns English code block markers.
func DefaultMarkers() Markers {
	return Markers{
		CodeStart: "--- Code Start ---",
		CodeEnd:   "--- Code End ---",
	}
}

// =============================================================================
// NORMALIZER
// =============================================================================

// A stage rewrites the intermediate text. Stages run in a fixed order;
// each stage's precondition is the postcondition of the one before it.
type stage func(string) string

// Normalizer converts structured markup to plain text. The zero value is
// not usable; construct with New or use the package-level Normalize.
type Normalizer struct {
	pipeline []stage
}

// New creates a Normalizer with the given code block markers.
func New(m Markers) Normalizer {
	if m.CodeStart == "" || m.CodeEnd == "" {
		m = DefaultMarkers()
	}
	return Normalizer{
		pipeline: []stage{
			replaceCodeBlocks(m),
			reflowTables,
			convertHeadings,
			stripEmphasis,
			convertLists,
			convertInlineCode,
			convertLinks,
			convertRules,
			stripBlockquotes,
			collapseStrayPipes,
			tidyWhitespace,
		},
	}
}

// Normalize runs the full pipeline. It is pure and total: any input
// produces an output, and already-normalized text passes through
// unchanged. The order of stages matters; see each stage for why.
func (n Normalizer) Normalize(text string) string {
	if text == "" {
		return ""
	}
	for _, s := range n.pipeline {
		text = s(text)
	}
	return norm.NFC.String(text)
}

// Normalize converts text using the default English markers.
func Normalize(text string) string {
	return New(DefaultMarkers()).Normalize(text)
}

// =============================================================================
// PIPELINE STAGES
// =============================================================================

var (
	reFencedBlock   = regexp.MustCompile("(?s)```\\w*\\n(.*?)```")
	reStrayFence    = regexp.MustCompile("```")
	reTableBlock    = regexp.MustCompile(`(?m)(?:^\|.+\|$\n?)+`)
	reTableSep      = regexp.MustCompile(`^\|?\s*[-:]+\s*\|`)
	reHeading6      = regexp.MustCompile(`(?m)^######\s*(.+)$`)
	reHeading5      = regexp.MustCompile(`(?m)^#####\s*(.+)$`)
	reHeading4      = regexp.MustCompile(`(?m)^####\s*(.+)$`)
	reHeading3      = regexp.MustCompile(`(?m)^###\s*(.+)$`)
	reHeading2      = regexp.MustCompile(`(?m)^##\s*(.+)$`)
	reHeading1      = regexp.MustCompile(`(?m)^#\s*(.+)$`)
	reBoldItalic    = regexp.MustCompile(`\*\*\*(.+?)\*\*\*`)
	reBold          = regexp.MustCompile(`\*\*(.+?)\*\*`)
	reUnderBold     = regexp.MustCompile(`__(.+?)__`)
	reItalic        = regexp.MustCompile(`\*(.+?)\*`)
	reUnderItalic   = regexp.MustCompile(`_(.+?)_`)
	reBullet        = regexp.MustCompile(`(?m)^\s*[-*+]\s+`)
	reOrdered       = regexp.MustCompile(`(?m)^\s*(\d+)\.\s+`)
	reInlineCode    = regexp.MustCompile("`([^`]+)`")
	reLink          = regexp.MustCompile(`\[([^\]]+)\]\(([^)]+)\)`)
	reRule          = regexp.MustCompile(`(?m)^[-*_]{3,}$`)
	reBlockquote    = regexp.MustCompile(`(?m)^>\s*`)
	rePipe          = regexp.MustCompile(`\s*\|\s*`)
	reExtraNewlines = regexp.MustCompile(`\n{3,}`)
	reTrailingSpace = regexp.MustCompile(`[ \t]+\n`)
)

const ruleWidth = 40

// replaceCodeBlocks swaps fenced code blocks for their inner content
// wrapped in start/end marker lines, then deletes stray fences. Runs
// first so later stages never touch literal code content boundaries.
// An empty block yields the two marker lines with nothing between them.
func replaceCodeBlocks(m Markers) stage {
	return func(text string) string {
		text = reFencedBlock.ReplaceAllStringFunc(text, func(block string) string {
			inner := reFencedBlock.FindStringSubmatch(block)[1]
			return "\n" + m.CodeStart + "\n" + inner + m.CodeEnd + "\n"
		})
		return reStrayFence.ReplaceAllString(text, "")
	}
}

// reflowTables rewrites each run of pipe-wrapped lines: separator rows
// are dropped, remaining rows lose their outer pipes and have cells
// joined with tabs. Must run before collapseStrayPipes, which would
// otherwise destroy the cell boundaries.
func reflowTables(text string) string {
	return reTableBlock.ReplaceAllStringFunc(text, func(block string) string {
		trailing := ""
		if strings.HasSuffix(block, "\n") {
			trailing = "\n"
		}
		var rows []string
		for _, line := range strings.Split(strings.TrimSuffix(block, "\n"), "\n") {
			if reTableSep.MatchString(line) {
				continue
			}
			cells := strings.Split(strings.Trim(line, "|"), "|")
			for i, c := range cells {
				cells[i] = strings.TrimSpace(c)
			}
			rows = append(rows, strings.Join(cells, "\t"))
		}
		return strings.Join(rows, "\n") + trailing
	})
}

// convertHeadings de-emphasizes levels 4-6 to bare text and wraps
// levels 1-3 in =, ==, === markers, each surrounded by blank lines.
// Deeper levels are matched first so "####" is never consumed by the
// "#" pattern.
func convertHeadings(text string) string {
	text = reHeading6.ReplaceAllString(text, "\n$1\n")
	text = reHeading5.ReplaceAllString(text, "\n$1\n")
	text = reHeading4.ReplaceAllString(text, "\n$1\n")
	text = reHeading3.ReplaceAllString(text, "\n=== $1 ===\n")
	text = reHeading2.ReplaceAllString(text, "\n== $1 ==\n")
	text = reHeading1.ReplaceAllString(text, "\n= $1 =\n")
	return text
}

// stripEmphasis removes bold/italic markers, widest pattern first so
// ***both*** resolves before ** and * get a chance to mis-pair.
func stripEmphasis(text string) string {
	text = reBoldItalic.ReplaceAllString(text, "$1")
	text = reBold.ReplaceAllString(text, "$1")
	text = reUnderBold.ReplaceAllString(text, "$1")
	text = reItalic.ReplaceAllString(text, "$1")
	text = reUnderItalic.ReplaceAllString(text, "$1")
	return text
}

// convertLists turns unordered bullets into an indented bullet glyph
// and re-indents ordered markers, preserving the original numbering.
// Runs after stripEmphasis so "* item" bullets survive the italic pass
// (the bullet pattern requires trailing whitespace, emphasis does not).
func convertLists(text string) string {
	text = reBullet.ReplaceAllString(text, "  • ")
	text = reOrdered.ReplaceAllString(text, "  $1. ")
	return text
}

// convertInlineCode wraps single-backtick spans in square brackets.
func convertInlineCode(text string) string {
	return reInlineCode.ReplaceAllString(text, "[$1]")
}

// convertLinks rewrites [text](url) as "text (url)".
func convertLinks(text string) string {
	return reLink.ReplaceAllString(text, "$1 ($2)")
}

// convertRules replaces horizontal rules with a fixed-width separator
// line of = characters surrounded by blank lines. Runs after
// convertLists; the bullet pattern requires whitespace after the
// marker, so "---" lines are still intact here.
func convertRules(text string) string {
	return reRule.ReplaceAllString(text, "\n"+strings.Repeat("=", ruleWidth)+"\n")
}

// stripBlockquotes removes leading > markers.
func stripBlockquotes(text string) string {
	return reBlockquote.ReplaceAllString(text, "")
}

// collapseStrayPipes replaces pipes left over from malformed tables
// with two spaces. By this point every well-formed table has already
// been reflowed, so any remaining pipe is noise.
func collapseStrayPipes(text string) string {
	return rePipe.ReplaceAllString(text, "  ")
}

// tidyWhitespace collapses runs of 3+ newlines to exactly two, strips
// trailing whitespace before newlines, and trims the whole result.
// Runs last: earlier stages insert surrounding blank lines freely and
// rely on this stage to bound them.
func tidyWhitespace(text string) string {
	text = reExtraNewlines.ReplaceAllString(text, "\n\n")
	text = reTrailingSpace.ReplaceAllString(text, "\n")
	return strings.TrimSpace(text)
}
