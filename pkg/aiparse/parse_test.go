package aiparse

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/construdata/proposta-cli/internal/model"
)

func TestStripCodeFence(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bare json", `{"a":1}`, `{"a":1}`},
		{"json fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"plain fence", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"leading whitespace", "  \n```json\n{\"a\":1}\n```  ", `{"a":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, stripCodeFence(tt.in))
		})
	}
}

func TestLooseNumber(t *testing.T) {
	var item looseLineItem
	require.NoError(t, json.Unmarshal(
		[]byte(`{"description":"Placa","quantity":100,"unit_price":"62,01","total":null}`),
		&item,
	))

	assert.InDelta(t, 100, item.Quantity.value(), 0.001)
	assert.Zero(t, item.UnitPrice.value(), "comma-decimal strings are not silently misread")
	assert.Zero(t, item.Total.value())

	var priced looseLineItem
	require.NoError(t, json.Unmarshal([]byte(`{"unit_price":"62.01"}`), &priced))
	assert.InDelta(t, 62.01, priced.UnitPrice.value(), 0.001)
}

func TestDecodeProposal(t *testing.T) {
	raw := "```json\n" + `{
		"client": "Construtora Alfa Ltda",
		"vendor": "null",
		"proposal_number": "2026-0457",
		"date": "01/08/2026",
		"items": [
			{"description": "Placa Gesso ST", "quantity": 100, "unit": "PC", "unit_price": 62.01, "total": 0},
			{"description": "Qtd", "quantity": 1, "unit_price": 1, "total": 1},
			{"description": "Massa Drywall", "quantity": "24", "unit_price": "130.90", "total": "3141.60"}
		],
		"subtotal": 0,
		"total": "9342.60",
		"payment_terms": "30/60 dias",
		"delivery": ""
	}` + "\n```"

	p, err := decodeProposal(raw)
	require.NoError(t, err)

	assert.Equal(t, "Construtora Alfa Ltda", p.Client)
	assert.Equal(t, model.NotAvailable, p.Vendor, `"null" string keeps the default`)
	assert.Equal(t, model.NotAvailable, p.Delivery, "empty string keeps the default")
	assert.Equal(t, "30/60 dias", p.PaymentTerms)

	require.Len(t, p.Items, 2, "header-echo rows are dropped")
	assert.InDelta(t, 6201.00, p.Items[0].Total, 0.001, "missing total recomputed from qty x price")
	assert.Equal(t, "PC", p.Items[0].Unit)
	assert.Equal(t, "UN", p.Items[1].Unit, "missing unit defaults")

	assert.InDelta(t, 9342.60, p.Subtotal, 0.001, "zero subtotal recomputed from items")
	assert.InDelta(t, 9342.60, p.Total, 0.001)
}

func TestDecodeProposal_NotJSON(t *testing.T) {
	_, err := decodeProposal("desculpe, não consegui processar o documento")
	require.Error(t, err)
}

func TestExtractProposal_OpenAIEndpoint(t *testing.T) {
	completion := `{"client":"Construtora Alfa Ltda","items":[{"description":"Placa Gesso ST","quantity":100,"unit_price":62.01,"total":6201.00}],"total":6201.00}`

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.Contains(t, req.Messages[1].Content, "Texto extraído do documento")

		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": completion}},
			},
		})
	}))
	t.Cleanup(srv.Close)

	client := NewOpenAIClient("test-key", WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))

	p, err := ExtractProposal(context.Background(), client, "Cliente: Construtora Alfa Ltda")
	require.NoError(t, err)
	assert.Equal(t, "Construtora Alfa Ltda", p.Client)
	require.Len(t, p.Items, 1)
	assert.InDelta(t, 6201.00, p.Total, 0.001)
}

func TestNewClient_ProviderSelection(t *testing.T) {
	_, err := NewClient(Config{Provider: "openai"})
	require.Error(t, err, "a key is required")

	c, err := NewClient(Config{Provider: "", Key: "k"})
	require.NoError(t, err)
	assert.NotNil(t, c)

	c, err = NewClient(Config{Provider: "anthropic", Key: "k"})
	require.NoError(t, err)
	assert.NotNil(t, c)

	_, err = NewClient(Config{Provider: "cohere", Key: "k"})
	require.Error(t, err)
}
