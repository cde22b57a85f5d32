package transform

import (
	"html"
	"strings"
)

type grid struct {
	rows [][]string
	cols int
}

// analyzeGrid splits text into rows on delim and decides whether it is
// tabular. Tabs are accepted loosely since spreadsheets emit ragged rows;
// commas need every row to agree on more than two columns.
func analyzeGrid(text, delim string) (grid, bool) {
	body := strings.TrimSuffix(strings.TrimSuffix(text, "\n"), "\r")
	lines := strings.Split(body, "\n")
	if len(lines) < 2 {
		return grid{}, false
	}

	g := grid{rows: make([][]string, len(lines))}
	minCols := -1
	withDelim := 0
	for i, line := range lines {
		line = strings.TrimSuffix(line, "\r")
		if strings.Contains(line, delim) {
			withDelim++
		}
		g.rows[i] = strings.Split(line, delim)
		n := len(g.rows[i])
		if n > g.cols {
			g.cols = n
		}
		if minCols < 0 || n < minCols {
			minCols = n
		}
	}

	if delim == "\t" {
		majority := withDelim > 0 && 2*withDelim >= len(lines)
		consistent := len(g.rows[0]) > 1 && len(g.rows[0]) == len(g.rows[1])
		return g, majority || consistent
	}
	return g, g.cols > 2 && minCols == g.cols
}

// renderTable emits a bordered table with a shaded header row. Short rows
// are padded to the widest row and trailing blank rows are dropped.
func renderTable(g grid) string {
	rows := g.rows
	for len(rows) > 0 && rowIsBlank(rows[len(rows)-1]) {
		rows = rows[:len(rows)-1]
	}

	var b strings.Builder
	b.WriteString(`<table style="` + tableStyle + `;">` + "\n")
	for i, row := range rows {
		tag, style := "td", cellStyle
		if i == 0 {
			tag, style = "th", headerStyle
		}

		b.WriteString("  <tr>\n")
		for j := 0; j < g.cols; j++ {
			var cell string
			if j < len(row) {
				cell = strings.TrimSpace(row[j])
			}
			b.WriteString("    <" + tag + ` style="` + style + `;">`)
			b.WriteString(html.EscapeString(cell))
			b.WriteString("</" + tag + ">\n")
		}
		b.WriteString("  </tr>\n")
	}
	b.WriteString("</table>")
	return b.String()
}

func rowIsBlank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func hasTableStructure(markup string) bool {
	return strings.Contains(strings.ToLower(markup), "<table")
}

func tabGrid(text, markup string) (Result, bool) {
	if hasTableStructure(markup) {
		return Result{}, false
	}
	g, ok := analyzeGrid(text, "\t")
	if !ok {
		return Result{}, false
	}
	return Result{Text: text, HTML: renderTable(g)}, true
}

func commaGrid(text, markup string) (Result, bool) {
	if markup != "" {
		return Result{}, false
	}
	g, ok := analyzeGrid(text, ",")
	if !ok {
		return Result{}, false
	}
	return Result{Text: text, HTML: renderTable(g)}, true
}
