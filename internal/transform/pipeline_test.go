package transform

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sheetsTable = `<meta charset="utf-8"><table data-sheets-root="1"><tbody>` +
	`<tr><td data-sheets-value="{&quot;1&quot;:2}">Name</td><td>Age</td></tr>` +
	`<tr><td>Ann</td><td style="color: red;">31</td></tr></tbody></table>`

func TestShoutingExample(t *testing.T) {
	res := Process("HELLO WORLD THIS IS LOUD", "", "")
	assert.True(t, res.Changed)
	assert.Equal(t, "Hello world this is loud", res.Text)
}

func TestShortShoutingUntouched(t *testing.T) {
	res := Process("STOP NOW", "", "")
	assert.False(t, res.Changed)
	assert.Equal(t, "STOP NOW", res.Text)
}

func TestJSONExample(t *testing.T) {
	res := Process(`{"a":1}`, "", "")
	require.True(t, res.Changed)
	assert.Equal(t, "{\n  \"a\": 1\n}", res.Text)
	assert.Equal(t, "```json\n{\n  \"a\": 1\n}\n```", res.Markdown)
	assert.Empty(t, res.HTML)
}

func TestInvalidJSONFallsThrough(t *testing.T) {
	res := Process(`{"a":1`, "", "")
	assert.False(t, res.Changed)
	assert.Equal(t, `{"a":1`, res.Text)
}

func TestGridExample(t *testing.T) {
	res := Process("a\tb\nc\td", "", "")
	require.True(t, res.Changed)
	assert.Equal(t, "a\tb\nc\td", res.Text)
	assert.Contains(t, res.HTML, "<table")
	assert.Equal(t, 2, strings.Count(res.HTML, "<tr>"))
	assert.Equal(t, 2, strings.Count(res.HTML, "<th "))
	assert.Equal(t, 2, strings.Count(res.HTML, "<td "))
	assert.NotEmpty(t, res.Markdown)
}

func TestProseWithCommasIsNotGrid(t *testing.T) {
	text := "Well, I think so, but maybe not.\nAnyway, see you soon."
	res := Process(text, "", "")
	assert.False(t, res.Changed)
	assert.NotContains(t, res.HTML, "<table")
}

func TestCSVGrid(t *testing.T) {
	res := Process("name,age,city\nann,31,paris\nbob,40,rome", "", "")
	require.True(t, res.Changed)
	assert.Equal(t, 3, strings.Count(res.HTML, "<tr>"))
}

func TestPreservedSpreadsheetMarkup(t *testing.T) {
	markup := `<meta charset="utf-8"><span data-sheets-value="{&quot;1&quot;:3,&quot;3&quot;:42}">42</span>`
	res := Process("42", markup, "")
	assert.False(t, res.Changed)
	assert.Equal(t, markup, res.HTML)
	assert.Equal(t, ReasonPreserved, res.SkipReason)
	assert.Equal(t, "42", res.Markdown)
}

func TestStyledSpreadsheetTable(t *testing.T) {
	res := Process("Name\tAge\nAnn\t31", sheetsTable, "")
	require.True(t, res.Changed)
	assert.Equal(t, ReasonStyled, res.SkipReason)
	assert.Equal(t, "Name\tAge\nAnn\t31", res.Text)
	assert.Contains(t, res.HTML, "border-collapse: collapse")
	assert.Contains(t, res.HTML, "background-color: #f3f2f1")
	assert.Contains(t, res.HTML, "color: red;")
	assert.Contains(t, res.Markdown, "Ann")
}

func TestPreservationSkipsNormalization(t *testing.T) {
	markup := `<span data-sheets-value="x">THIS IS A LOUD CELL VALUE</span>`
	res := Process("THIS IS A LOUD CELL VALUE", markup, "")
	assert.False(t, res.Changed)
	assert.Equal(t, "THIS IS A LOUD CELL VALUE", res.Text)
}

func TestTrackingStripped(t *testing.T) {
	in := "https://example.com/post?utm_source=news&id=3&utm_medium=mail#top"
	res := Process(in, "", "")
	require.True(t, res.Changed)
	assert.Equal(t, "https://example.com/post?id=3#top", res.Text)
	assert.Equal(t, res.Text, res.Markdown)
	assert.Empty(t, res.HTML)
}

func TestTrackingOnlyQueryDropsQuestionMark(t *testing.T) {
	res := Process("https://example.com/?utm_campaign=x&si=abc", "", "")
	assert.Equal(t, "https://example.com/", res.Text)
}

func TestURLWithoutKnownTrackingUntouched(t *testing.T) {
	in := "https://example.com/?utm_id=7"
	res := Process(in, "", "")
	assert.False(t, res.Changed)
	assert.Equal(t, in, res.Text)
}

func TestMarkdownRendering(t *testing.T) {
	in := "# Title\n\nSome **bold** and `code`."
	res := Process(in, "", "")
	require.True(t, res.Changed)
	assert.Equal(t, in, res.Text)
	assert.Equal(t, in, res.Markdown)
	assert.Contains(t, res.HTML, "<h1>Title</h1>")
	assert.Contains(t, res.HTML, "<strong>bold</strong>")
	assert.Contains(t, res.HTML, `<code style="background-color: #f4f4f4; padding: 2px 4px`)
}

func TestMarkdownTableStyled(t *testing.T) {
	in := "| a | b |\n|---|---|\n| 1 | 2 |"
	res := Process(in, "", "")
	require.True(t, res.Changed)
	assert.Contains(t, res.HTML, `<table style="border-collapse: collapse`)
	assert.Contains(t, res.HTML, "<th style=")
	assert.Contains(t, res.HTML, `<td style="border: 1px solid #d1d1d1`)
}

func TestMarkdownSkippedWhenMarkupPresent(t *testing.T) {
	res := Process("# Title", "<h1>Title</h1>", "")
	assert.False(t, res.Changed)
	assert.Equal(t, "<h1>Title</h1>", res.HTML)
	assert.Equal(t, "# Title", res.Markdown)
}

func TestInlineMath(t *testing.T) {
	res := Process(`Euler says $e^{i\pi}+1=0$ always`, "", "")
	require.True(t, res.Changed)
	assert.Contains(t, res.HTML, "https://latex.codecogs.com/svg.image?e%5E%7Bi%5Cpi%7D%2B1%3D0")
	assert.Contains(t, res.HTML, `alt="e^{i\pi}+1=0"`)
}

func TestBlockMath(t *testing.T) {
	res := Process("Area:\n\n$$ \\pi r^2 $$", "", "")
	require.True(t, res.Changed)
	assert.Contains(t, res.HTML, "svg.image?%5Cpi%20r%5E2")
}

func TestCurrencyIsNotMath(t *testing.T) {
	assert.False(t, hasMath("it costs $5 and $10 today"))
	res := Process("it costs $5 and $10 today", "", "")
	assert.False(t, res.Changed)
}

func TestLineBreakHealing(t *testing.T) {
	in := "The quick brown fox jumps over \n" +
		"the lazy dog while the cat \n" +
		"watches from the window and \n" +
		"wonders about lunch.\n\n" +
		"A second paragraph stays apart."
	res := Process(in, "", "")
	require.True(t, res.Changed)
	assert.Equal(t,
		"The quick brown fox jumps over the lazy dog while the cat watches from the window and wonders about lunch.\n\n"+
			"A second paragraph stays apart.",
		res.Text)
	assert.Empty(t, res.Markdown)
}

const healedParagraph = "The quick brown fox jumps over \n" +
	"the lazy dog while the cat \n" +
	"watches from the window and \n" +
	"wonders about lunch."

const splitLinkParagraph = "Please read the installation notes in \n" +
	"the appendix and then consult [the \n" +
	"reference manual](http://example.com/manual) before \n" +
	"running the tool for the first time."

const splitQuoteParagraph = "Le guide dit \"ouvrir la \n" +
	"fenêtre\" puis fermer la porte à clé \n" +
	"avant de partir très tôt le matin \n" +
	"pour éviter les embouteillages."

func TestLineBreakHealingSkipsHiddenMarkdown(t *testing.T) {
	res := Process(splitLinkParagraph, "", "")
	assert.False(t, res.Changed)
	assert.Equal(t, splitLinkParagraph, res.Text)
	assert.Empty(t, res.HTML)
}

func TestLineBreakHealingQuotesJoinedPairs(t *testing.T) {
	res := Process(splitQuoteParagraph, "", "")
	require.True(t, res.Changed)
	assert.NotContains(t, res.Text, "\n")
	assert.NotContains(t, res.Text, `"`)
}

func TestLineBreakHealingRequiresShorterResult(t *testing.T) {
	in := strings.Repeat("line of text that is plain\n", 5)
	res := Process(in, "", "")
	assert.False(t, res.Changed)
}

func TestFallbackCarriesQuoteChanges(t *testing.T) {
	res := Process(`He said "hello" and it's fine`, "", "")
	assert.True(t, res.Changed)
	assert.Equal(t, "He said “hello” and it’s fine", res.Text)
}

func TestNoChangeKeepsInput(t *testing.T) {
	res := Process("plain words", "", "")
	assert.Equal(t, Result{Text: "plain words"}, res)
}

func TestDeterministic(t *testing.T) {
	in := "# Notes\n\n- item with \"quotes\"\n- $x^2$"
	assert.Equal(t, Process(in, "", "Notes"), Process(in, "", "Notes"))
}

func TestIdempotent(t *testing.T) {
	longJSON := `{"name":"quark","tags":["clipboard","sync","mesh"],"nested":{"a":1,"b":[true,false,null]},"description":"a fairly long value"}`

	cases := []struct {
		name   string
		text   string
		markup string
	}{
		{"shouting", "HELLO WORLD THIS IS LOUD", ""},
		{"json", longJSON, ""},
		{"grid", "a\tb\nc\td", ""},
		{"csv", "x,y,z\n1,2,3", ""},
		{"url", "https://example.com/?utm_source=a&q=1", ""},
		{"markdown", "## Heading\n\n* one\n* two", ""},
		{"quotes", `She wrote "yes" -- then 'no'`, ""},
		{"styled", "Name\tAge\nAnn\t31", sheetsTable},
		{"preserved", "42", `<span data-sheets-value="42">42</span>`},
		{"healed", healedParagraph, ""},
		{"healed link", splitLinkParagraph, ""},
		{"healed quotes", splitQuoteParagraph, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			first := Process(tc.text, tc.markup, "")
			second := Process(first.Text, first.HTML, "")
			assert.False(t, second.Changed, "second pass rewrote output")
			assert.Equal(t, first.Text, second.Text)
			assert.Equal(t, first.HTML, second.HTML)
		})
	}
}
