package aiparse

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/construdata/proposta-cli/internal/model"
)

// ExtractProposal sends the OCR text to the completion service and decodes
// the response into a Proposal. The model occasionally fences its JSON in a
// code block or drifts on numeric types; both are tolerated.
func ExtractProposal(ctx context.Context, client Client, ocrText string) (*model.Proposal, error) {
	system, user := BuildPrompts(ocrText)

	raw, err := client.Complete(ctx, system, user)
	if err != nil {
		return nil, err
	}

	return decodeProposal(raw)
}

func decodeProposal(raw string) (*model.Proposal, error) {
	cleaned := stripCodeFence(raw)

	var loose struct {
		Client         string           `json:"client"`
		Vendor         string           `json:"vendor"`
		ProposalNumber string           `json:"proposal_number"`
		Date           string           `json:"date"`
		Items          []looseLineItem  `json:"items"`
		Subtotal       json.RawMessage  `json:"subtotal"`
		Total          json.RawMessage  `json:"total"`
		PaymentTerms   string           `json:"payment_terms"`
		Delivery       string           `json:"delivery"`
	}
	if err := json.Unmarshal([]byte(cleaned), &loose); err != nil {
		return nil, eris.Wrap(err, "aiparse: decode completion json")
	}

	p := model.NewProposal()
	setIfPresent(&p.Client, loose.Client)
	setIfPresent(&p.Vendor, loose.Vendor)
	setIfPresent(&p.ProposalNumber, loose.ProposalNumber)
	setIfPresent(&p.Date, loose.Date)
	setIfPresent(&p.PaymentTerms, loose.PaymentTerms)
	setIfPresent(&p.Delivery, loose.Delivery)

	for _, li := range loose.Items {
		item := model.LineItem{
			Description: strings.TrimSpace(li.Description),
			Quantity:    li.Quantity.value(),
			Unit:        li.Unit,
			UnitPrice:   li.UnitPrice.value(),
			Total:       li.Total.value(),
		}
		if item.Unit == "" {
			item.Unit = model.DefaultUnit
		}
		if item.Total == 0 && item.Quantity > 0 && item.UnitPrice > 0 {
			item.Total = item.Quantity * item.UnitPrice
		}
		if item.Valid() {
			p.Items = append(p.Items, item)
		}
	}

	p.Subtotal = looseNumber(loose.Subtotal).value()
	if p.Subtotal == 0 {
		p.Subtotal = p.ItemsTotal()
	}
	p.Total = looseNumber(loose.Total).value()
	if p.Total == 0 {
		p.Total = p.Subtotal
	}

	return p, nil
}

func setIfPresent(dst *string, v string) {
	v = strings.TrimSpace(v)
	if v != "" && !strings.EqualFold(v, "null") {
		*dst = v
	}
}

type looseLineItem struct {
	Description string          `json:"description"`
	Quantity    looseNumber     `json:"quantity"`
	Unit        string          `json:"unit"`
	UnitPrice   looseNumber     `json:"unit_price"`
	Total       looseNumber     `json:"total"`
}

// looseNumber accepts a JSON number, a numeric string, or null.
type looseNumber []byte

func (n *looseNumber) UnmarshalJSON(data []byte) error {
	*n = append((*n)[:0], data...)
	return nil
}

func (n looseNumber) value() float64 {
	s := strings.Trim(strings.TrimSpace(string(n)), `"`)
	if s == "" || s == "null" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 {
		return 0
	}
	return v
}

// stripCodeFence removes a surrounding ```json ... ``` fence when present.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	if idx := strings.LastIndex(s, "```"); idx >= 0 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}
