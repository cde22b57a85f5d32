// Package transform classifies clipboard content and rewrites it through an
// ordered chain of rules. Process is a pure function of its inputs.
package transform

import "strings"

// Skip reasons reported by the preservation rule.
const (
	ReasonStyled    = "styled"
	ReasonPreserved = "preserved"
)

// spreadsheetMarkers identify markup produced by spreadsheet applications.
var spreadsheetMarkers = []string{
	"data-sheets-value",
	"data-sheets-userformat",
	"data-sheets-root",
	"google-sheets-html-origin",
	"br-re-calc",
	"x-office-spreadsheet",
	"urn:schemas-microsoft-com:office:excel",
}

// Result is the outcome of one pipeline run. Markdown is filled on every
// path where markup is present, including when nothing changed.
type Result struct {
	Text       string `json:"text"`
	HTML       string `json:"html"`
	Markdown   string `json:"markdown"`
	Changed    bool   `json:"changed"`
	SkipReason string `json:"skipReason,omitempty"`
}

type rule func(text, markup string) (Result, bool)

// contentRules run in order after normalization; the first match wins.
var contentRules = []rule{
	stripTracking,
	prettyJSON,
	tabGrid,
	commaGrid,
	renderMarkdown,
}

// Process runs the pipeline over the clipboard's text, its markup (may be
// empty) and the foreground application name (may be empty).
func Process(text, markup, activeApp string) Result {
	if markup != "" {
		if res, ok := preserve(text, markup); ok {
			return finish(res, text, markup)
		}
	}

	adjusted := normalizeShouting(text)
	quotes := wantsSmartQuotes(adjusted, activeApp)
	if quotes {
		adjusted = applySmartQuotes(adjusted)
	}

	for _, r := range contentRules {
		if res, ok := r(adjusted, markup); ok {
			return finish(res, text, markup)
		}
	}
	if res, ok := healLineBreaks(adjusted, markup); ok {
		// Quote pairs split across lines only meet once healed.
		if quotes {
			res.Text = applySmartQuotes(res.Text)
		}
		return finish(res, text, markup)
	}
	return finish(Result{Text: adjusted, HTML: markup}, text, markup)
}

// preserve handles spreadsheet markup: tables are re-styled in place, and
// anything else is passed through untouched.
func preserve(text, markup string) (Result, bool) {
	lower := strings.ToLower(markup)
	found := false
	for _, marker := range spreadsheetMarkers {
		if strings.Contains(lower, marker) {
			found = true
			break
		}
	}
	if !found {
		return Result{}, false
	}

	passthrough := Result{Text: text, HTML: markup, SkipReason: ReasonPreserved}
	if !hasTableStructure(markup) {
		return passthrough, true
	}
	styled, err := styleFragment(markup, false)
	if err != nil {
		return passthrough, true
	}
	return Result{Text: text, HTML: styled, SkipReason: ReasonStyled}, true
}

// finish derives Changed from the inputs and fills the markdown view.
func finish(res Result, text, markup string) Result {
	res.Changed = res.Text != text || res.HTML != markup
	if res.Markdown == "" && res.HTML != "" {
		res.Markdown = htmlToMarkdown(res.HTML)
	}
	return res
}
