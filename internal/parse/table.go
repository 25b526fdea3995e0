package parse

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/construdata/proposta-cli/internal/brl"
	"github.com/construdata/proposta-cli/internal/model"
)

// Column-role keyword sets. Vendor PDFs vary column order and language
// register, so matching is accent-insensitive substring search.
var (
	descriptionKeywords = []string{"descricao", "produto", "item", "material", "mercadoria", "description"}
	quantityKeywords    = []string{"quantidade", "qtd", "qtde", "quant", "qty"}
	unitPriceKeywords   = []string{"valor unitario", "preco unitario", "unitario", "vl unit", "unit price", "preco"}
	totalKeywords       = []string{"valor total", "total", "subtotal"}
	unitKeywords        = []string{"unidade", "und", "un.", "unit"}
)

var accentStripper = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// fold lowercases and strips accents so "Descrição" matches "descricao".
func fold(s string) string {
	out, _, err := transform.String(accentStripper, strings.ToLower(strings.TrimSpace(s)))
	if err != nil {
		return strings.ToLower(strings.TrimSpace(s))
	}
	return out
}

func matchesAny(cell string, keywords []string) bool {
	folded := fold(cell)
	if folded == "" {
		return false
	}
	for _, kw := range keywords {
		if strings.Contains(folded, kw) {
			return true
		}
	}
	return false
}

// columnMapping assigns a cell index to each column role. -1 means the role
// was not found by keyword and the positional fallback applies.
type columnMapping struct {
	description int
	quantity    int
	unit        int
	unitPrice   int
	total       int
}

// headerKeywordHits counts how many distinct column roles a row mentions.
func headerKeywordHits(cells []string) int {
	hits := 0
	for _, set := range [][]string{descriptionKeywords, quantityKeywords, unitPriceKeywords, totalKeywords} {
		for _, cell := range cells {
			if matchesAny(cell, set) {
				hits++
				break
			}
		}
	}
	return hits
}

// findHeaderRow scans the first few rows and picks the one that names at
// least two column roles. The boolean is false when no row qualifies; the
// table is then headerless and every row is data.
func findHeaderRow(rows [][]string) (int, bool) {
	limit := len(rows)
	if limit > 5 {
		limit = 5
	}
	best, bestHits := 0, 0
	for i := 0; i < limit; i++ {
		if hits := headerKeywordHits(rows[i]); hits > bestHits {
			best, bestHits = i, hits
		}
	}
	return best, bestHits >= 2
}

// inferColumns maps column roles from the header row by keyword, falling back
// to fixed positions (description, quantity, unit price, total) for any role
// the keywords left unmapped. A role is never left unassigned when the row
// has enough cells.
func inferColumns(header []string) columnMapping {
	m := columnMapping{description: -1, quantity: -1, unit: -1, unitPrice: -1, total: -1}

	for i, cell := range header {
		switch {
		case m.description < 0 && matchesAny(cell, descriptionKeywords):
			m.description = i
		case m.quantity < 0 && matchesAny(cell, quantityKeywords):
			m.quantity = i
		// "total" must win over "preço" substring overlap, and price columns
		// over the bare "unit" substring: order matters here.
		case m.total < 0 && matchesAny(cell, totalKeywords):
			m.total = i
		case m.unitPrice < 0 && matchesAny(cell, unitPriceKeywords):
			m.unitPrice = i
		case m.unit < 0 && matchesAny(cell, unitKeywords):
			m.unit = i
		}
	}

	n := len(header)
	if m.description < 0 && n > 0 {
		m.description = 0
	}
	if m.quantity < 0 && n > 1 {
		m.quantity = 1
	}
	if m.unitPrice < 0 && n > 2 {
		m.unitPrice = 2
	}
	if m.total < 0 && n > 3 {
		m.total = 3
	}
	return m
}

func cellAt(cells []string, idx int) string {
	if idx < 0 || idx >= len(cells) {
		return ""
	}
	return strings.TrimSpace(cells[idx])
}

var unitCodePattern = regexp.MustCompile(`(?i)\b(PC|UN|UND|M2|M3|M|KG|L|CX|SC|PCT|RL|BR|GL|MIL)\b`)

// extractRow pulls one candidate line item from a data row. The boolean
// reports whether the row passed validity checks.
func extractRow(cells []string, m columnMapping, rowIndex int) (model.LineItem, bool) {
	item := model.LineItem{
		Description: cellAt(cells, m.description),
		Quantity:    brl.ParseNumber(cellAt(cells, m.quantity)),
		UnitPrice:   brl.ParseCurrency(cellAt(cells, m.unitPrice)),
		Total:       brl.ParseCurrency(cellAt(cells, m.total)),
		Unit:        model.DefaultUnit,
	}

	if m.unit >= 0 {
		if u := cellAt(cells, m.unit); u != "" {
			item.Unit = strings.ToUpper(u)
		}
	} else if match := unitCodePattern.FindString(strings.Join(cells, " ")); match != "" {
		item.Unit = strings.ToUpper(match)
	}

	// Documents often omit the stated total; recompute when the parts exist.
	if item.Total == 0 && item.Quantity > 0 && item.UnitPrice > 0 {
		item.Total = item.Quantity * item.UnitPrice
	}

	if !item.Valid() {
		return model.LineItem{}, false
	}
	return item, true
}

// itemsFromRows runs header detection and walks every data row. It never
// stops early: dropping trailing rows silently loses line items on long
// proposals.
func itemsFromRows(rows [][]string) []model.LineItem {
	if len(rows) == 0 {
		return nil
	}

	headerIdx, hasHeader := findHeaderRow(rows)
	mapping := inferColumns(rows[headerIdx])

	var items []model.LineItem
	for i, row := range rows {
		if hasHeader && i == headerIdx {
			continue
		}
		if item, ok := extractRow(row, mapping, i); ok {
			items = append(items, item)
		}
	}
	return items
}

var cellSplitter = regexp.MustCompile(`\t|;|\s{2,}`)

// rowsFromText converts plain extracted text into table rows by splitting
// lines on runs of whitespace, tabs or semicolons, the layouts pdf text
// extraction produces.
func rowsFromText(text string) [][]string {
	var rows [][]string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		cells := cellSplitter.Split(line, -1)
		cleaned := make([]string, 0, len(cells))
		for _, c := range cells {
			if c = strings.TrimSpace(c); c != "" {
				cleaned = append(cleaned, c)
			}
		}
		if len(cleaned) >= 2 {
			rows = append(rows, cleaned)
		}
	}
	return rows
}
