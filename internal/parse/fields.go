package parse

import (
	"regexp"
	"strings"
)

// fieldMatcher is a pure "first match wins" extractor tried in sequence.
type fieldMatcher func(text string) (string, bool)

func regexMatcher(re *regexp.Regexp) fieldMatcher {
	return func(text string) (string, bool) {
		m := re.FindStringSubmatch(text)
		if len(m) < 2 {
			return "", false
		}
		v := strings.TrimSpace(m[1])
		if v == "" {
			return "", false
		}
		return v, true
	}
}

// firstMatch evaluates matchers in order and returns the first hit.
func firstMatch(text string, matchers []fieldMatcher) (string, bool) {
	for _, m := range matchers {
		if v, ok := m(text); ok {
			return v, true
		}
	}
	return "", false
}

const (
	minNameLen = 6
	maxNameLen = 50
)

// nonNameVocabulary rejects table headers and generic document words that a
// loose regex can capture as a client name.
var nonNameVocabulary = map[string]struct{}{
	"descricao": {}, "produto": {}, "quantidade": {}, "valor unitario": {},
	"valor total": {}, "orcamento": {}, "proposta comercial": {},
	"proposta": {}, "pedido de venda": {}, "condicoes de pagamento": {},
	"cnpj": {}, "endereco": {}, "telefone": {},
}

// boundName applies the length bound for name-like fields and rejects known
// non-name vocabulary.
func boundName(v string) (string, bool) {
	v = strings.TrimSpace(strings.Trim(v, ".,:;-"))
	n := len([]rune(v))
	if n < minNameLen || n > maxNameLen {
		return "", false
	}
	if _, bad := nonNameVocabulary[fold(v)]; bad {
		return "", false
	}
	return v, true
}

func namedMatcher(re *regexp.Regexp) fieldMatcher {
	inner := regexMatcher(re)
	return func(text string) (string, bool) {
		v, ok := inner(text)
		if !ok {
			return "", false
		}
		return boundName(v)
	}
}

var clientMatchers = []fieldMatcher{
	namedMatcher(regexp.MustCompile(`(?i)cliente[:\s]+([^\n\r]+)`)),
	namedMatcher(regexp.MustCompile(`(?i)raz[aã]o social[:\s]+([^\n\r]+)`)),
	namedMatcher(regexp.MustCompile(`(?i)(?:para|a/c|destinat[aá]rio)[:\s]+([^\n\r]+)`)),
	namedMatcher(regexp.MustCompile(`(?i)empresa[:\s]+([^\n\r]+)`)),
}

var vendorMatchers = []fieldMatcher{
	namedMatcher(regexp.MustCompile(`(?i)vendedor(?:a)?[:\s]+([^\n\r]+)`)),
	namedMatcher(regexp.MustCompile(`(?i)respons[aá]vel[:\s]+([^\n\r]+)`)),
	namedMatcher(regexp.MustCompile(`(?i)consultor(?:a)?[:\s]+([^\n\r]+)`)),
	namedMatcher(regexp.MustCompile(`(?i)atendente[:\s]+([^\n\r]+)`)),
}

var proposalNumberMatchers = []fieldMatcher{
	regexMatcher(regexp.MustCompile(`(?i)proposta\s*(?:n[°ºo.]*\s*)?[:#]?\s*(\d[\d./-]*)`)),
	regexMatcher(regexp.MustCompile(`(?i)or[cç]amento\s*(?:n[°ºo.]*\s*)?[:#]?\s*(\d[\d./-]*)`)),
	regexMatcher(regexp.MustCompile(`(?i)pedido\s*(?:n[°ºo.]*\s*)?[:#]?\s*(\d[\d./-]*)`)),
}

var dateMatchers = []fieldMatcher{
	regexMatcher(regexp.MustCompile(`(?i)data[:\s]+(\d{1,2}/\d{1,2}/\d{2,4})`)),
	regexMatcher(regexp.MustCompile(`(\d{1,2}/\d{1,2}/\d{4})`)),
	regexMatcher(regexp.MustCompile(`(\d{1,2}\s+de\s+\w+\s+de\s+\d{4})`)),
}

var paymentMatchers = []fieldMatcher{
	regexMatcher(regexp.MustCompile(`(?i)(?:condi[cç][oõ]es?\s+de\s+)?pagamento[:\s]+([^\n\r]+)`)),
	regexMatcher(regexp.MustCompile(`(?i)(?:forma\s+de\s+pagamento)[:\s]+([^\n\r]+)`)),
	regexMatcher(regexp.MustCompile(`(?i)(\d+\s*x\s*(?:de\s*)?R\$\s*[\d.,]+)`)),
	regexMatcher(regexp.MustCompile(`(?i)([aà]\s*vista[^\n\r]*)`)),
}

var deliveryMatchers = []fieldMatcher{
	regexMatcher(regexp.MustCompile(`(?i)(?:prazo\s+de\s+)?entrega[:\s]+([^\n\r]+)`)),
	regexMatcher(regexp.MustCompile(`(?i)frete[:\s]+([^\n\r]+)`)),
}

var statedTotalMatchers = []fieldMatcher{
	regexMatcher(regexp.MustCompile(`(?i)valor\s+total[:\s]*R?\$?\s*([\d.,]+)`)),
	regexMatcher(regexp.MustCompile(`(?i)total\s+geral[:\s]*R?\$?\s*([\d.,]+)`)),
	regexMatcher(regexp.MustCompile(`(?i)\btotal[:\s]*R?\$?\s*([\d.,]+)`)),
}

var statedSubtotalMatchers = []fieldMatcher{
	regexMatcher(regexp.MustCompile(`(?i)subtotal[:\s]*R?\$?\s*([\d.,]+)`)),
}
