package transform

import (
	"bytes"
	"encoding/json"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"
)

var shoutingPattern = regexp.MustCompile(`^[A-Z\s.,!?'-]+$`)

// normalizeShouting rewrites all-caps sentences to sentence case. Acronyms
// and proper nouns are lowered too.
func normalizeShouting(text string) string {
	if len(text) <= 15 || !strings.Contains(text, " ") || !shoutingPattern.MatchString(text) {
		return text
	}
	first, size := utf8.DecodeRuneInString(text)
	return string(first) + strings.ToLower(text[size:])
}

var trackingParams = map[string]bool{
	"utm_source":   true,
	"utm_medium":   true,
	"utm_campaign": true,
	"utm_term":     true,
	"utm_content":  true,
	"si":           true,
	"igshid":       true,
	"fbclid":       true,
	"gclid":        true,
}

// stripTracking removes tracking query parameters from a lone URL. The
// remaining parameters keep their order and encoding.
func stripTracking(text, markup string) (Result, bool) {
	candidate := strings.TrimSpace(text)
	if !strings.HasPrefix(candidate, "http") || !strings.Contains(candidate, "utm_") ||
		strings.ContainsAny(candidate, " \t\n\r") {
		return Result{}, false
	}

	u, err := url.Parse(candidate)
	if err != nil || u.Host == "" {
		return Result{}, false
	}

	parts := strings.Split(u.RawQuery, "&")
	kept := parts[:0]
	removed := false
	for _, part := range parts {
		key, _, _ := strings.Cut(part, "=")
		if unescaped, err := url.QueryUnescape(key); err == nil {
			key = unescaped
		}
		if trackingParams[key] {
			removed = true
			continue
		}
		kept = append(kept, part)
	}
	if !removed {
		return Result{}, false
	}

	u.RawQuery = strings.Join(kept, "&")
	clean := u.String()
	return Result{Text: clean, Markdown: clean}, true
}

// prettyJSON re-indents JSON objects and arrays with two spaces. Text that
// is already in that form is terminal: no later rule may rewrite it.
func prettyJSON(text, markup string) (Result, bool) {
	trimmed := strings.TrimSpace(text)
	if len(trimmed) < 2 {
		return Result{}, false
	}
	first, last := trimmed[0], trimmed[len(trimmed)-1]
	if !(first == '{' && last == '}') && !(first == '[' && last == ']') {
		return Result{}, false
	}

	var compact bytes.Buffer
	if err := json.Compact(&compact, []byte(trimmed)); err != nil {
		return Result{}, false
	}
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, compact.Bytes(), "", "  "); err != nil {
		return Result{}, false
	}

	out := pretty.String()
	if !strings.Contains(out, "\n") {
		return Result{}, false
	}
	if out == text {
		return Result{Text: text, HTML: markup}, true
	}
	return Result{Text: out, Markdown: "```json\n" + out + "\n```"}, true
}

// healLineBreaks joins lines broken mid-paragraph, as produced by copying
// from PDFs. Blank-line paragraph breaks survive. The result is only taken
// when it is shorter than the input and does not turn into markdown, math or
// a comma grid once joined.
func healLineBreaks(text, markup string) (Result, bool) {
	if markup != "" || utf8.RuneCountInString(text) <= 100 ||
		strings.Count(text, "\n") < 3 || strings.Contains(text, "\t") {
		return Result{}, false
	}

	lines := strings.Split(text, "\n")
	out := []string{lines[0]}
	for _, line := range lines[1:] {
		last := out[len(out)-1]
		if last == "" || line == "" {
			out = append(out, line)
			continue
		}
		out[len(out)-1] = strings.TrimRight(last, " ") + " " + strings.TrimLeft(line, " ")
	}

	fixed := strings.Join(out, "\n")
	if fixed == text || len(fixed) >= len(text) {
		return Result{}, false
	}
	if looksLikeMarkdown(fixed) || hasMath(fixed) {
		return Result{}, false
	}
	if _, ok := commaGrid(fixed, markup); ok {
		return Result{}, false
	}
	return Result{Text: fixed}, true
}
