package aiparse

import "strings"

// systemPrompt describes the extraction task and pins the output contract.
const systemPrompt = "Você é um extrator de propostas comerciais de materiais de construção. " +
	"Receberá o texto OCR de uma proposta em português e deve retornar SOMENTE um objeto JSON, " +
	"sem comentários e sem texto fora do JSON, no formato exato:\n" +
	`{"client":"","vendor":"","proposal_number":"","date":"","items":[{"description":"","quantity":0,"unit":"UN","unit_price":0,"total":0}],"subtotal":0,"total":0,"payment_terms":"","delivery":""}` + "\n" +
	"Regras: valores numéricos em ponto flutuante (use ponto como separador decimal); " +
	"inclua TODAS as linhas de itens da tabela, nunca apenas as primeiras; " +
	`campos ausentes recebem "N/A" (strings) ou 0 (números); nunca use null.`

// BuildPrompts returns the system and user messages for one extraction call.
func BuildPrompts(ocrText string) (system, user string) {
	var b strings.Builder
	b.WriteString("Texto extraído do documento:\n\n")
	b.WriteString(ocrText)
	b.WriteString("\n\nRetorne o JSON agora.")
	return systemPrompt, b.String()
}
