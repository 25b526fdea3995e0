package parse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/construdata/proposta-cli/internal/model"
	"github.com/construdata/proposta-cli/pkg/doccloud"
)

const proposalText = `GessoMax Materiais de Construção Ltda
PROPOSTA COMERCIAL
Orçamento nº: 2026-0457
Data: 01/08/2026
Cliente: Construtora Alfa Ltda
Vendedor: Ricardo Mendes
Condições de Pagamento: 30/60 dias
Entrega: 5 dias úteis
VALOR TOTAL: R$ 17.188,80`

func proposalTable() doccloud.Table {
	return doccloud.Table{Rows: [][]string{
		{"Descrição", "Qtd", "Und", "Valor Unitário", "Valor Total"},
		{"Placa Gesso ST 12,5mm 1.80x1.20", "100", "PC", "62,01", "6.201,00"},
		{"Perfil Canaleta F530 3m", "300", "PC", "19,71", "5.913,00"},
		{"Arame Galvanizado nº 10", "120", "PC", "16,11", "1.933,20"},
		{"Massa para Drywall 25kg", "24", "SC", "130,90", "3.141,60"},
	}}
}

func TestParse_FullDocument(t *testing.T) {
	result := &doccloud.ExtractionResult{
		Elements: []doccloud.Element{{Path: "//Document/P", Text: proposalText}},
		Tables:   []doccloud.Table{proposalTable()},
	}

	p := NewParser(1.0).Parse("req-1", result)

	assert.Equal(t, "Construtora Alfa Ltda", p.Client)
	assert.Equal(t, "Ricardo Mendes", p.Vendor)
	assert.Equal(t, "2026-0457", p.ProposalNumber)
	assert.Equal(t, "01/08/2026", p.Date)
	assert.Equal(t, "30/60 dias", p.PaymentTerms)
	assert.Equal(t, "5 dias úteis", p.Delivery)
	require.Len(t, p.Items, 4)
	assert.InDelta(t, 17188.80, p.Subtotal, 0.001)
	assert.InDelta(t, 17188.80, p.Total, 0.001)
	assert.True(t, Usable(p))
}

func TestParse_MissingFieldsKeepDefaults(t *testing.T) {
	result := &doccloud.ExtractionResult{
		Elements: []doccloud.Element{{Text: "documento sem campos reconhecíveis"}},
	}

	p := NewParser(1.0).Parse("req-2", result)

	assert.Equal(t, model.UnknownClient, p.Client)
	assert.Equal(t, model.NotAvailable, p.Vendor)
	assert.Equal(t, model.NotAvailable, p.ProposalNumber)
	assert.Equal(t, model.NotAvailable, p.PaymentTerms)
	assert.NotNil(t, p.Items)
	assert.Empty(t, p.Items)
	assert.False(t, Usable(p))
}

func TestParse_StatedTotalWinsOverComputed(t *testing.T) {
	result := &doccloud.ExtractionResult{
		Elements: []doccloud.Element{{Text: "Cliente: Construtora Alfa Ltda\nVALOR TOTAL: R$ 18.000,00"}},
		Tables:   []doccloud.Table{proposalTable()},
	}

	p := NewParser(1.0).Parse("req-3", result)

	assert.InDelta(t, 17188.80, p.Subtotal, 0.001)
	assert.InDelta(t, 18000.00, p.Total, 0.001, "stated total is preserved, not recomputed")
}

func TestParse_TextRowsWhenNoTables(t *testing.T) {
	text := "Cliente: Construtora Alfa Ltda\n" +
		"Placa Gesso ST 12,5mm  100  62,01  6.201,00\n" +
		"Perfil Canaleta F530  300  19,71  5.913,00\n"
	result := &doccloud.ExtractionResult{
		Elements: []doccloud.Element{{Text: text}},
	}

	p := NewParser(1.0).Parse("req-4", result)

	require.Len(t, p.Items, 2)
	assert.InDelta(t, 12114.00, p.Subtotal, 0.001)
}

func TestParseText(t *testing.T) {
	text := proposalText + "\n" +
		"Placa Gesso ST 12,5mm  100  62,01  6.201,00\n" +
		"Massa para Drywall 25kg  24  130,90  3.141,60\n"

	p := NewParser(1.0).ParseText("req-5", text)

	assert.Equal(t, "Construtora Alfa Ltda", p.Client)
	require.Len(t, p.Items, 2)
	assert.InDelta(t, 9342.60, p.Subtotal, 0.001)
	assert.InDelta(t, 17188.80, p.Total, 0.001, "stated document total wins")
}

func TestParse_ClientNameBounds(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"too short", "Cliente: Ana", model.UnknownClient},
		{"header vocabulary", "Cliente: Proposta Comercial", model.UnknownClient},
		{"trailing punctuation trimmed", "Cliente: Construtora Alfa Ltda.", "Construtora Alfa Ltda"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := &doccloud.ExtractionResult{Elements: []doccloud.Element{{Text: tt.text}}}
			p := NewParser(1.0).Parse("req", result)
			assert.Equal(t, tt.want, p.Client)
		})
	}
}

func TestQuality(t *testing.T) {
	empty := model.NewProposal()
	assert.Zero(t, Quality(empty))

	full := model.NewProposal()
	full.Client = "Construtora Alfa Ltda"
	full.Vendor = "Ricardo Mendes"
	full.PaymentTerms = "30/60 dias"
	full.Total = 17188.80
	full.Items = []model.LineItem{{Description: "Placa Gesso ST", Quantity: 100, UnitPrice: 62.01, Total: 6201.00}}
	assert.InDelta(t, 1.0, Quality(full), 0.001)

	partial := model.NewProposal()
	partial.Client = "Construtora Alfa Ltda"
	partial.Total = 6201.00
	assert.InDelta(t, 0.45, Quality(partial), 0.001)

	unpriced := model.NewProposal()
	unpriced.Items = []model.LineItem{{Description: "Placa Gesso ST", Quantity: 100}}
	assert.InDelta(t, 0.15, Quality(unpriced), 0.001)
}
