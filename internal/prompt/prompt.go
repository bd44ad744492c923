// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package prompt assembles the chat prompts for a WCAG analysis.
package prompt

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"

	"github.com/jeranaias/wcaglens/internal/i18n"
	"github.com/jeranaias/wcaglens/internal/util"
)

// =============================================================================
// SYSTEM PROMPT
// =============================================================================

const systemPromptTR = `Sen bir WCAG erişilebilirlik uzmanısın. Görevin, verilen HTML elementini WCAG %s standartlarına göre %s seviyesinde analiz etmektir.

Analiz sonucunda şunları belirt:
1. **Tespit Edilen Sorunlar**: Her sorun için WCAG kriterini ve açıklamasını yaz
2. **Önem Derecesi**: Kritik, Yüksek, Orta, Düşük
3. **Düzeltme Önerileri**: Her sorun için somut kod önerileri
4. **Genel Değerlendirme**: Elementin erişilebilirlik durumu

Yanıtını Türkçe olarak ver. Teknik terimleri açıkla.`

const systemPromptEN = `You are a WCAG accessibility expert. Your task is to analyze the given HTML element according to WCAG %s standards at %s conformance level.

In your analysis, include:
1. **Issues Found**: For each issue, specify the WCAG criterion and explanation
2. **Severity**: Critical, High, Medium, Low
3. **Remediation**: Specific code suggestions for each issue
4. **Overall Assessment**: Accessibility status of the element

Provide your response in English. Explain technical terms.`

// SystemPrompt returns the system turn for an analysis conversation,
// targeting the given WCAG version ("2.2") and level ("AA") in the
// user's language.
func SystemPrompt(langCode, wcagVersion, wcagLevel string) string {
	if i18n.Match(langCode) == language.Turkish {
		return fmt.Sprintf(systemPromptTR, wcagVersion, wcagLevel)
	}
	return fmt.Sprintf(systemPromptEN, wcagVersion, wcagLevel)
}

// =============================================================================
// ANALYSIS PROMPT
// =============================================================================

const analysisPromptTR = `Aşağıdaki HTML elementini WCAG erişilebilirlik açısından analiz et:

` + "```html\n%s\n```" + `

Ek Bağlam: %s

Lütfen detaylı bir WCAG analizi yap.`

const analysisPromptEN = `Analyze the following HTML element for WCAG accessibility:

` + "```html\n%s\n```" + `

Additional Context: %s

Please provide a detailed WCAG analysis.`

// AnalysisPrompt returns the first user turn: the element rendered as
// HTML plus free-form context, wrapped in the localized instruction.
func AnalysisPrompt(html, context, langCode string) string {
	if i18n.Match(langCode) == language.Turkish {
		return fmt.Sprintf(analysisPromptTR, html, context)
	}
	return fmt.Sprintf(analysisPromptEN, html, context)
}

// =============================================================================
// ELEMENT RENDERING
// =============================================================================

// Rendering limits. Long values add tokens without adding signal.
const (
	maxContentRunes     = 200
	maxDescriptionRunes = 100
)

// ElementInfo is the accessibility metadata extracted from a focused
// UI element by the host. The package only consumes this value; how a
// host produces it is its own business.
type ElementInfo struct {
	// Role is the accessibility role display name (e.g. "button").
	Role string

	// Name, Description and Value are the element's accessible texts.
	Name        string
	Description string
	Value       string

	// States are the active state display names ("checked", "disabled").
	States []string

	// Attributes carries raw attributes from the accessibility API,
	// e.g. "tag", "class" and "id" where the host exposes them.
	Attributes map[string]string

	// ChildCount is the number of accessible children.
	ChildCount int
}

// HTML renders the element as a pseudo-HTML fragment for the model:
// annotation comments, then a single tag with ARIA attributes derived
// from the element's states, then a child count comment. The model
// sees familiar markup instead of raw accessibility-API fields.
func (e ElementInfo) HTML() string {
	var b strings.Builder

	b.WriteString("<!-- Element Info -->\n")
	fmt.Fprintf(&b, "<!-- Role: %s -->\n", e.roleName())
	if len(e.States) > 0 {
		fmt.Fprintf(&b, "<!-- States: %s -->\n", strings.Join(e.States, ", "))
	}

	attrs := []string{fmt.Sprintf("role=%q", e.roleName())}
	if e.Name != "" {
		attrs = append(attrs, fmt.Sprintf("aria-label=%q", escapeAttr(e.Name)))
	}
	if e.Description != "" {
		desc := util.TruncateRunesNoEllipsis(escapeAttr(e.Description), maxDescriptionRunes)
		attrs = append(attrs, fmt.Sprintf("aria-describedby=\"[%s]\"", desc))
	}
	attrs = append(attrs, e.stateAttrs()...)

	if class, ok := e.Attributes["class"]; ok {
		attrs = append(attrs, fmt.Sprintf("class=%q", class))
	}
	if id, ok := e.Attributes["id"]; ok {
		attrs = append(attrs, fmt.Sprintf("id=%q", id))
	}

	content := e.Value
	if content == "" {
		content = e.Name
	}
	content = util.TruncateRunes(content, maxContentRunes)

	tag := e.tag()
	fmt.Fprintf(&b, "<%s %s>%s</%s>", tag, strings.Join(attrs, " "), content, tag)

	if e.ChildCount > 0 {
		fmt.Fprintf(&b, "\n<!-- Child element count: %d -->", e.ChildCount)
	}

	return b.String()
}

func (e ElementInfo) roleName() string {
	if e.Role == "" {
		return "element"
	}
	return e.Role
}

// stateAttrs maps state display names to ARIA attributes. Both English
// and Turkish state words are recognized because the host reports them
// in the screen reader's own language.
func (e ElementInfo) stateAttrs() []string {
	var attrs []string
	for _, state := range e.States {
		sl := strings.ToLower(state)
		switch {
		case strings.Contains(sl, "checked") || strings.Contains(sl, "işaretli"):
			attrs = append(attrs, `aria-checked="true"`)
		case strings.Contains(sl, "selected") || strings.Contains(sl, "seçili"):
			attrs = append(attrs, `aria-selected="true"`)
		case strings.Contains(sl, "expanded") || strings.Contains(sl, "genişletilmiş"):
			attrs = append(attrs, `aria-expanded="true"`)
		case strings.Contains(sl, "collapsed") || strings.Contains(sl, "daraltılmış"):
			attrs = append(attrs, `aria-expanded="false"`)
		case strings.Contains(sl, "required") || strings.Contains(sl, "gerekli"):
			attrs = append(attrs, `aria-required="true"`)
		case strings.Contains(sl, "invalid") || strings.Contains(sl, "geçersiz"):
			attrs = append(attrs, `aria-invalid="true"`)
		case strings.Contains(sl, "disabled") || strings.Contains(sl, "devre dışı"):
			attrs = append(attrs, "disabled")
		case strings.Contains(sl, "readonly") || strings.Contains(sl, "salt okunur"):
			attrs = append(attrs, "readonly")
		case strings.Contains(sl, "focusable") || strings.Contains(sl, "odaklanabilir"):
			attrs = append(attrs, `tabindex="0"`)
		}
	}
	return attrs
}

// roleTags maps role display names to the closest HTML tag.
var roleTags = map[string]string{
	"button":        "button",
	"link":          "a",
	"edit":          "input",
	"editable text": "input",
	"check box":     "input",
	"checkbox":      "input",
	"radio button":  "input",
	"combo box":     "select",
	"list":          "ul",
	"list item":     "li",
	"table":         "table",
	"heading":       "h2",
	"graphic":       "img",
	"paragraph":     "p",
}

// tag picks the rendered tag: an explicit "tag" attribute from the
// accessibility API wins, then the role mapping, then div.
func (e ElementInfo) tag() string {
	if tag, ok := e.Attributes["tag"]; ok && tag != "" {
		return tag
	}
	if tag, ok := roleTags[strings.ToLower(e.Role)]; ok {
		return tag
	}
	return "div"
}

// escapeAttr makes a value safe inside a double-quoted HTML attribute.
func escapeAttr(s string) string {
	s = strings.ReplaceAll(s, `"`, "&quot;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}
