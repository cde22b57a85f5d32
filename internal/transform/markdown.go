package transform

import (
	"bytes"
	"html"
	"net/url"
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"
)

const mathRenderURL = "https://latex.codecogs.com/svg.image?"

var markdownCues = []*regexp.Regexp{
	regexp.MustCompile(`(?m)^#+\s`),
	regexp.MustCompile(`\*\*[^*]+\*\*`),
	regexp.MustCompile(`\[.+?\]\(.+?\)`),
	regexp.MustCompile(`(?m)^\s*[-*+]\s`),
	regexp.MustCompile(`(?m)^\s*\d+\.\s`),
	regexp.MustCompile("(?m)^```"),
	regexp.MustCompile("`[^`]+`"),
	regexp.MustCompile(`(?m)^> `),
}

var tableSeparator = regexp.MustCompile(`(?m)^[-:| ]+$`)

var (
	blockMath = regexp.MustCompile(`(?s)\$\$\s*(.*?)\s*\$\$`)
	// Inline math needs non-space characters next to both delimiters so
	// that "$5 and $10" stays prose.
	inlineMath = regexp.MustCompile(`\$([^\s$]|[^\s$][^$\n]*?[^\s$])\$`)
)

var markdownRenderer = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(gmhtml.WithUnsafe()),
)

func looksLikeMarkdown(text string) bool {
	for _, re := range markdownCues {
		if re.MatchString(text) {
			return true
		}
	}
	return strings.Contains(text, "|") && tableSeparator.MatchString(text)
}

func hasMath(text string) bool {
	return blockMath.MatchString(text) || inlineMath.MatchString(text)
}

// replaceMath swaps math spans for images served by the formula renderer.
func replaceMath(text string) string {
	text = blockMath.ReplaceAllStringFunc(text, func(m string) string {
		formula := strings.TrimSpace(blockMath.FindStringSubmatch(m)[1])
		return `<div style="text-align: center; margin: 1em 0;"><img src="` + mathImageURL(formula) +
			`" alt="` + html.EscapeString(formula) + `" /></div>`
	})
	return inlineMath.ReplaceAllStringFunc(text, func(m string) string {
		formula := strings.TrimSpace(inlineMath.FindStringSubmatch(m)[1])
		return `<img style="vertical-align: middle;" src="` + mathImageURL(formula) +
			`" alt="` + html.EscapeString(formula) + `" />`
	})
}

func mathImageURL(formula string) string {
	return mathRenderURL + strings.ReplaceAll(url.QueryEscape(formula), "+", "%20")
}

// renderMarkdown converts Markdown (with math) to inline-styled HTML. The
// markdown view is the source text itself.
func renderMarkdown(text, markup string) (Result, bool) {
	if markup != "" || (!looksLikeMarkdown(text) && !hasMath(text)) {
		return Result{}, false
	}

	var buf bytes.Buffer
	if err := markdownRenderer.Convert([]byte(replaceMath(text)), &buf); err != nil {
		return Result{}, false
	}
	styled, err := styleFragment(buf.String(), true)
	if err != nil {
		return Result{}, false
	}
	return Result{Text: text, HTML: styled, Markdown: text}, true
}

// htmlToMarkdown is the auxiliary markdown view of markup. It returns "" when
// the markup cannot be converted.
func htmlToMarkdown(markup string) string {
	if strings.TrimSpace(markup) == "" {
		return ""
	}
	conv := md.NewConverter("", true, nil)
	conv.Use(plugin.GitHubFlavored())
	out, err := conv.ConvertString(markup)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(out)
}
