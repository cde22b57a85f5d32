package transform

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Inline styles applied to generated and re-styled markup so that paste
// targets without stylesheet support still render borders and shading.
const (
	tableStyle  = "border-collapse: collapse; font-family: sans-serif; font-size: 14px"
	cellStyle   = "border: 1px solid #d1d1d1; padding: 6px 12px"
	headerStyle = cellStyle + "; background-color: #f3f2f1; text-align: left"
	preStyle    = "background-color: #f4f4f4; padding: 12px; border-radius: 8px; font-family: monospace; overflow-x: auto"
	codeStyle   = "background-color: #f4f4f4; padding: 2px 4px; border-radius: 4px; font-family: monospace"
)

// styleFragment parses markup as a body fragment, applies inline styles to
// tables (and to code when withCode is set) and renders it back.
func styleFragment(markup string, withCode bool) (string, error) {
	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(markup), body)
	if err != nil {
		return "", err
	}

	for _, n := range nodes {
		applyStyles(n, withCode, false)
	}

	var buf bytes.Buffer
	for _, n := range nodes {
		if err := html.Render(&buf, n); err != nil {
			return "", err
		}
	}
	return buf.String(), nil
}

func applyStyles(n *html.Node, withCode, inPre bool) {
	if n.Type == html.ElementNode {
		switch n.DataAtom {
		case atom.Table:
			setStyle(n, tableStyle)
		case atom.Th:
			setStyle(n, headerStyle)
		case atom.Td:
			if isImplicitHeader(n) {
				setStyle(n, headerStyle)
			} else {
				setStyle(n, cellStyle)
			}
		case atom.Pre:
			if withCode {
				setStyle(n, preStyle)
				inPre = true
			}
		case atom.Code:
			if withCode && !inPre {
				setStyle(n, codeStyle)
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		applyStyles(c, withCode, inPre)
	}
}

// isImplicitHeader reports whether td sits in the first row of a table that
// has no th cells. Spreadsheet exports mark headers this way.
func isImplicitHeader(td *html.Node) bool {
	row := td.Parent
	if row == nil || row.DataAtom != atom.Tr {
		return false
	}
	table := row.Parent
	for table != nil && table.DataAtom != atom.Table {
		table = table.Parent
	}
	if table == nil || findFirst(table, atom.Th) != nil {
		return false
	}
	return findFirst(table, atom.Tr) == row
}

func findFirst(n *html.Node, a atom.Atom) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom == a {
			return c
		}
		if c.Type == html.ElementNode && c.DataAtom == atom.Table {
			continue
		}
		if found := findFirst(c, a); found != nil {
			return found
		}
	}
	return nil
}

func setStyle(n *html.Node, style string) {
	for i, attr := range n.Attr {
		if attr.Namespace == "" && strings.EqualFold(attr.Key, "style") {
			n.Attr[i].Val = mergeStyle(attr.Val, style)
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: "style", Val: mergeStyle("", style)})
}

// mergeStyle puts the declarations of ours first and keeps the existing
// declarations whose property ours does not set. Applying it twice yields
// the same string.
func mergeStyle(existing, ours string) string {
	decls := splitDeclarations(ours)
	set := make(map[string]bool, len(decls))
	for _, d := range decls {
		set[d[0]] = true
	}
	for _, d := range splitDeclarations(existing) {
		if !set[d[0]] {
			decls = append(decls, d)
			set[d[0]] = true
		}
	}

	parts := make([]string, 0, len(decls))
	for _, d := range decls {
		parts = append(parts, d[0]+": "+d[1])
	}
	return strings.Join(parts, "; ") + ";"
}

func splitDeclarations(style string) [][2]string {
	var out [][2]string
	for _, decl := range strings.Split(style, ";") {
		prop, val, ok := strings.Cut(decl, ":")
		if !ok {
			continue
		}
		prop = strings.ToLower(strings.TrimSpace(prop))
		val = strings.TrimSpace(val)
		if prop == "" || val == "" {
			continue
		}
		out = append(out, [2]string{prop, val})
	}
	return out
}
