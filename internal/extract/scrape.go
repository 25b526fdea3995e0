package extract

import (
	"bytes"
	"context"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"
)

// minUsableTextLen is the threshold below which the scraper falls back to
// keyword-window extraction.
const minUsableTextLen = 100

// Scraper recovers human-readable text from a PDF without any remote
// service. It first tries the embedded text layer, then falls back to
// pattern-scraping the raw byte buffer.
type Scraper struct{}

// NewScraper creates the direct-text extraction tier.
func NewScraper() *Scraper {
	return &Scraper{}
}

// ExtractText never fails for non-empty input: when nothing readable is
// found it returns whatever fragments the keyword scan recovered, possibly
// an empty string, with a nil error. The caller judges usability.
func (s *Scraper) ExtractText(ctx context.Context, data []byte, fileName string) (string, error) {
	if text := textLayer(data); len(text) >= minUsableTextLen {
		zap.L().Debug("direct tier used embedded text layer",
			zap.String("file", fileName),
			zap.Int("chars", len(text)),
		)
		return text, nil
	}
	return scrapeBytes(data), nil
}

// textLayer reads the PDF's embedded text layer. The reader panics on some
// malformed cross-reference tables, so the pass is isolated with recover.
func textLayer(data []byte) (text string) {
	defer func() {
		if r := recover(); r != nil {
			zap.L().Debug("text layer read panicked", zap.Any("cause", r))
			text = ""
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return ""
	}
	plain, err := reader.GetPlainText()
	if err != nil {
		return ""
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return ""
	}
	return collapseWhitespace(buf.String())
}

// Ordered pattern list applied to the latin-1 decoded buffer. Earlier
// patterns recover the most structure.
var scrapePatterns = []*regexp.Regexp{
	// Runs of readable characters long enough to be words or phrases.
	regexp.MustCompile(`[A-Za-zÀ-ÿ0-9][A-Za-zÀ-ÿ0-9 .,;:/%$°ºª&()\-]{5,}`),
	// Parenthesized and bracketed text groups (PDF string literals).
	regexp.MustCompile(`\(([^()]{4,})\)`),
	regexp.MustCompile(`\[([^\[\]]{4,})\]`),
	// Currency amounts.
	regexp.MustCompile(`R\$\s*[\d.,]+`),
	// Dates.
	regexp.MustCompile(`\d{1,2}/\d{1,2}/\d{2,4}`),
	// Quantity-unit pairs.
	regexp.MustCompile(`(?i)\d+[.,]?\d*\s*(?:PC|UN|UND|M2|M3|M|KG|L|CX|SC|PCT)\b`),
}

// Domain vocabulary used for bounded context-window extraction when pattern
// scraping recovers too little.
var domainKeywords = []string{
	"CLIENTE", "VENDEDOR", "TOTAL", "SUBTOTAL", "PROPOSTA", "ORCAMENTO",
	"ORÇAMENTO", "PAGAMENTO", "ENTREGA", "GESSO", "PLACA", "PERFIL",
	"ARGAMASSA", "CIMENTO", "DRYWALL", "FORRO", "PARAFUSO", "MASSA",
}

const keywordWindow = 120

// scrapeBytes decodes the buffer one byte per character and applies the
// pattern list, concatenating matches in document order.
func scrapeBytes(data []byte) string {
	decoded := decodeLatin1(data)

	var fragments []string
	for _, re := range scrapePatterns {
		for _, m := range re.FindAllString(decoded, -1) {
			if cleaned := cleanFragment(m); cleaned != "" {
				fragments = append(fragments, cleaned)
			}
		}
	}

	text := collapseWhitespace(strings.Join(fragments, "\n"))
	if len(text) >= minUsableTextLen {
		return text
	}

	// Too little recovered: scan for domain keywords and keep a bounded
	// context window around each hit.
	upper := strings.ToUpper(decoded)
	var windows []string
	for _, kw := range domainKeywords {
		idx := 0
		for {
			pos := strings.Index(upper[idx:], kw)
			if pos < 0 {
				break
			}
			pos += idx
			start := pos - keywordWindow/2
			if start < 0 {
				start = 0
			}
			end := pos + keywordWindow
			if end > len(decoded) {
				end = len(decoded)
			}
			if w := cleanFragment(decoded[start:end]); w != "" {
				windows = append(windows, w)
			}
			idx = pos + len(kw)
		}
	}

	if len(windows) > 0 {
		text = collapseWhitespace(text + "\n" + strings.Join(windows, "\n"))
	}
	return text
}

// decodeLatin1 maps each byte to its codepoint so single-byte-encoded PDF
// string data survives the conversion.
func decodeLatin1(data []byte) string {
	runes := make([]rune, len(data))
	for i, b := range data {
		runes[i] = rune(b)
	}
	return string(runes)
}

var controlChars = regexp.MustCompile(`[\x00-\x08\x0b\x0c\x0e-\x1f\x7f]`)
var multiSpace = regexp.MustCompile(`[ \t]{2,}`)
var multiNewline = regexp.MustCompile(`\n{3,}`)

func cleanFragment(s string) string {
	s = controlChars.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)
	if len([]rune(s)) < 4 {
		return ""
	}
	return s
}

func collapseWhitespace(s string) string {
	s = controlChars.ReplaceAllString(s, " ")
	s = multiSpace.ReplaceAllString(s, "  ")
	s = multiNewline.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
