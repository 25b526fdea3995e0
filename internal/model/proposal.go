// Package model defines the extraction pipeline's data contracts.
package model

import (
	"math"
	"strings"
	"time"
)

// Sentinel values used when a field could not be identified in the document.
const (
	UnknownClient = "Cliente não identificado"
	NotAvailable  = "N/A"
	DefaultUnit   = "UN"
)

// ExtractionMethod identifies which tier produced a result.
type ExtractionMethod string

const (
	MethodRemoteService     ExtractionMethod = "remote-service"
	MethodDirectText        ExtractionMethod = "direct-text"
	MethodSyntheticFallback ExtractionMethod = "synthetic-fallback"
)

// RunStatus is the terminal state of an extraction run.
type RunStatus string

const (
	StatusCompleted RunStatus = "completed"
	StatusDegraded  RunStatus = "degraded"
	StatusFailed    RunStatus = "failed"
)

// LineItem is a single priced row recovered from a proposal table.
// Instances are built once during a parse pass and never mutated after.
type LineItem struct {
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	Unit        string  `json:"unit"`
	UnitPrice   float64 `json:"unit_price"`
	Total       float64 `json:"total"`
}

// headerOnlyDescriptions guards against a stray second header row being
// ingested as data.
var headerOnlyDescriptions = map[string]struct{}{
	"descrição": {}, "descricao": {}, "produto": {}, "item": {},
	"quantidade": {}, "qtd": {}, "qtde": {}, "unidade": {},
	"valor": {}, "preço": {}, "preco": {}, "total": {}, "subtotal": {},
	"valor unitário": {}, "valor unitario": {}, "valor total": {},
	"description": {}, "quantity": {}, "price": {},
}

// Valid reports whether the row carries enough signal to be kept.
// A row needs a real description and at least one positive numeric field.
// Never panics, regardless of field contents.
func (li LineItem) Valid() bool {
	desc := strings.TrimSpace(li.Description)
	if len([]rune(desc)) <= 2 {
		return false
	}
	if _, headerish := headerOnlyDescriptions[strings.ToLower(desc)]; headerish {
		return false
	}
	return li.Quantity > 0 || li.UnitPrice > 0 || li.Total > 0
}

// Proposal is the pipeline's output contract: the normalized record of one
// commercial document. All string fields default to their sentinels and all
// numeric fields to zero; Items is never nil.
type Proposal struct {
	Client         string     `json:"client"`
	Vendor         string     `json:"vendor"`
	ProposalNumber string     `json:"proposal_number"`
	Date           string     `json:"date"`
	Items          []LineItem `json:"items"`
	Subtotal       float64    `json:"subtotal"`
	Total          float64    `json:"total"`
	PaymentTerms   string     `json:"payment_terms"`
	Delivery       string     `json:"delivery"`
}

// NewProposal returns a Proposal with every field at its documented default.
func NewProposal() *Proposal {
	return &Proposal{
		Client:         UnknownClient,
		Vendor:         NotAvailable,
		ProposalNumber: NotAvailable,
		Date:           NotAvailable,
		Items:          []LineItem{},
		PaymentTerms:   NotAvailable,
		Delivery:       NotAvailable,
	}
}

// ItemsTotal sums the totals of all line items.
func (p *Proposal) ItemsTotal() float64 {
	var sum float64
	for _, it := range p.Items {
		sum += it.Total
	}
	return sum
}

// TotalsConsistent reports whether the stated subtotal agrees with the sum of
// line-item totals within tolerance. An empty item list is always consistent.
func (p *Proposal) TotalsConsistent(tolerance float64) bool {
	if len(p.Items) == 0 {
		return true
	}
	return math.Abs(p.Subtotal-p.ItemsTotal()) <= tolerance
}

// ExtractionRun records one pass of a document through the pipeline.
type ExtractionRun struct {
	ID        string           `json:"id"`
	UserID    string           `json:"user_id"`
	FileName  string           `json:"file_name"`
	FileSize  int64            `json:"file_size"`
	Method    ExtractionMethod `json:"method"`
	Status    RunStatus        `json:"status"`
	Client    string           `json:"identified_client"`
	Total     float64          `json:"extracted_total"`
	Quality   float64          `json:"quality_score"`
	ElapsedMS int64            `json:"elapsed_ms"`
	RawResult string           `json:"raw_result_json,omitempty"`
	Proposal  *Proposal        `json:"structured_result,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}
