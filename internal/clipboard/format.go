package clipboard

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf16"
)

var (
	appleHTMLData  = regexp.MustCompile(`(?i)«data HTML([0-9A-F]+)»`)
	cfHTMLFragment = regexp.MustCompile(`(?is)<!--StartFragment-->(.*?)<!--EndFragment-->`)
	cfHTMLHeader   = regexp.MustCompile(`(?is)^Version:.*?\r?\nStartHTML:.*?\r?\nEndHTML:.*?\r?\nStartFragment:.*?\r?\nEndFragment:.*?\r?\n`)
)

const cfHTMLHeaderFormat = "Version:0.9\r\nStartHTML:%010d\r\nEndHTML:%010d\r\nStartFragment:%010d\r\nEndFragment:%010d\r\n"

// decodeAppleHTML extracts the markup from osascript's «data HTML…» literal.
func decodeAppleHTML(out string) string {
	m := appleHTMLData.FindStringSubmatch(out)
	if m == nil {
		return ""
	}
	b, err := hex.DecodeString(m[1])
	if err != nil {
		return ""
	}
	return string(b)
}

// extractCFHTMLFragment returns the fragment of a Windows CF_HTML payload.
func extractCFHTMLFragment(raw string) string {
	if m := cfHTMLFragment.FindStringSubmatch(raw); m != nil {
		return m[1]
	}
	return cfHTMLHeader.ReplaceAllString(raw, "")
}

// encodeCFHTML wraps fragment in a CF_HTML envelope with byte offsets.
func encodeCFHTML(fragment string) string {
	const prefix = "<html><body>\r\n<!--StartFragment-->"
	const suffix = "<!--EndFragment-->\r\n</body></html>"

	headerLen := len(fmt.Sprintf(cfHTMLHeaderFormat, 0, 0, 0, 0))
	startHTML := headerLen
	startFragment := startHTML + len(prefix)
	endFragment := startFragment + len(fragment)
	endHTML := endFragment + len(suffix)

	return fmt.Sprintf(cfHTMLHeaderFormat, startHTML, endHTML, startFragment, endFragment) +
		prefix + fragment + suffix
}

// encodePowerShell encodes script for powershell -EncodedCommand (UTF-16LE, base64).
func encodePowerShell(script string) string {
	units := utf16.Encode([]rune(script))
	b := make([]byte, 0, len(units)*2)
	for _, u := range units {
		b = append(b, byte(u), byte(u>>8))
	}
	return base64.StdEncoding.EncodeToString(b)
}

func normalizeNewlines(s string) string {
	return strings.ReplaceAll(s, "\r\n", "\n")
}
