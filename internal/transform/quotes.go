package transform

import (
	"regexp"
	"strings"
	"unicode"
)

type quoteStyle int

const (
	quotesEnglish quoteStyle = iota
	quotesFrench
	quotesGerman
	quotesSpanish
)

const (
	frenchMarks  = "éèêëàâäôöûüçœ"
	germanMarks  = "äöüß"
	spanishMarks = "ñáéíóú¿¡"
)

var (
	englishOpenSingle = regexp.MustCompile(`(^|[-\x{2014}\s(\["])'`)
	englishOpenDouble = regexp.MustCompile(`(^|[-\x{2014}/\[(\x{2018}\s])"`)
)

// codeMarkers are substrings that make text look like source code, where
// curly quotes would break it.
var codeMarkers = []string{"function", "const ", "=>", "};", "#include", "func ", "def "}

// codeApps are foreground applications whose copies are treated as code.
var codeApps = []string{"Visual Studio Code", "Cursor", "Xcode", "Terminal", "iTerm", "GoLand", "IntelliJ", "Sublime Text", "Vim"}

func wantsSmartQuotes(text, activeApp string) bool {
	if !strings.ContainsAny(text, `"'`) {
		return false
	}
	trimmed := strings.TrimSpace(text)
	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		return false
	}
	for _, m := range codeMarkers {
		if strings.Contains(text, m) {
			return false
		}
	}
	for _, app := range codeApps {
		if activeApp != "" && strings.Contains(activeApp, app) {
			return false
		}
	}
	return true
}

// detectQuoteStyle counts language-specific letters; the highest count wins
// and ties go to French, then German, then Spanish.
func detectQuoteStyle(text string) quoteStyle {
	var fr, de, es int
	for _, r := range strings.ToLower(text) {
		if strings.ContainsRune(frenchMarks, r) {
			fr++
		}
		if strings.ContainsRune(germanMarks, r) {
			de++
		}
		if strings.ContainsRune(spanishMarks, r) {
			es++
		}
	}

	switch {
	case fr == 0 && de == 0 && es == 0:
		return quotesEnglish
	case fr >= de && fr >= es:
		return quotesFrench
	case de >= es:
		return quotesGerman
	default:
		return quotesSpanish
	}
}

func applySmartQuotes(text string) string {
	switch detectQuoteStyle(text) {
	case quotesFrench:
		text = replaceQuotePairs(text, '"', "« ", " »")
		text = replaceQuotePairs(text, '\'', "‹ ", " ›")
	case quotesGerman:
		text = replaceQuotePairs(text, '"', "„", "“")
		text = replaceQuotePairs(text, '\'', "‚", "‘")
	case quotesSpanish:
		text = replaceQuotePairs(text, '"', "«", "»")
		text = englishSingles(text)
	default:
		text = englishSingles(text)
		text = englishOpenDouble.ReplaceAllString(text, "${1}“")
		text = strings.ReplaceAll(text, `"`, "”")
	}
	return replaceDoubleHyphens(text)
}

// replaceDoubleHyphens turns "--" into an em dash unless it is part of a
// longer run of hyphens or touches a pipe, which keeps rules and table
// separators intact.
func replaceDoubleHyphens(text string) string {
	if !strings.Contains(text, "--") {
		return text
	}
	runes := []rune(text)
	var b strings.Builder
	b.Grow(len(text))
	for i := 0; i < len(runes); i++ {
		if runes[i] == '-' && i+1 < len(runes) && runes[i+1] == '-' &&
			!isRuleRune(runes, i-1) && !isRuleRune(runes, i+2) {
			b.WriteRune('—')
			i++
			continue
		}
		b.WriteRune(runes[i])
	}
	return b.String()
}

func isRuleRune(runes []rune, i int) bool {
	if i < 0 || i >= len(runes) {
		return false
	}
	return runes[i] == '-' || runes[i] == '|' || runes[i] == ':'
}

func englishSingles(text string) string {
	text = englishOpenSingle.ReplaceAllString(text, "${1}‘")
	return strings.ReplaceAll(text, "'", "’")
}

// replaceQuotePairs rewrites q…q spans whose opening quote starts the text or
// follows whitespace and whose closing quote ends the text or precedes
// whitespace or . , ! ?. Spans never cross a line break.
func replaceQuotePairs(text string, q rune, open, close string) string {
	runes := []rune(text)
	var b strings.Builder
	b.Grow(len(text))

	for i := 0; i < len(runes); i++ {
		if runes[i] == q && (i == 0 || unicode.IsSpace(runes[i-1])) {
			if end := closingQuote(runes, i+1, q); end >= 0 {
				b.WriteString(open)
				b.WriteString(string(runes[i+1 : end]))
				b.WriteString(close)
				i = end
				continue
			}
		}
		b.WriteRune(runes[i])
	}
	return b.String()
}

func closingQuote(runes []rune, from int, q rune) int {
	for j := from; j < len(runes) && runes[j] != '\n'; j++ {
		if runes[j] != q {
			continue
		}
		if j+1 == len(runes) || unicode.IsSpace(runes[j+1]) || strings.ContainsRune(".,!?", runes[j+1]) {
			return j
		}
	}
	return -1
}
