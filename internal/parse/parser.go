// Package parse turns raw extraction output (text and tables) into a
// normalized commercial proposal record.
package parse

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/construdata/proposta-cli/internal/brl"
	"github.com/construdata/proposta-cli/internal/model"
	"github.com/construdata/proposta-cli/pkg/doccloud"
)

// ParseError indicates local parsing produced no usable items or totals.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse: no usable content: %s", e.Reason)
}

// Parser builds Proposal records from extraction results.
type Parser struct {
	// TotalTolerance is the absolute BRL discrepancy between the computed and
	// the stated total above which an advisory warning is logged.
	TotalTolerance float64
}

// NewParser creates a Parser with the given total-consistency tolerance.
func NewParser(tolerance float64) *Parser {
	if tolerance <= 0 {
		tolerance = 1.0
	}
	return &Parser{TotalTolerance: tolerance}
}

// Parse builds a Proposal from a structured remote extraction result. Every
// row of every table is walked; text fields come from the concatenated
// fragment blob.
func (p *Parser) Parse(requestID string, result *doccloud.ExtractionResult) *model.Proposal {
	text := result.Text()
	proposal := p.parseFields(text)

	for _, table := range result.Tables {
		proposal.Items = append(proposal.Items, itemsFromRows(table.Rows)...)
	}
	// Documents where tables were not recognized still carry tabular text.
	if len(proposal.Items) == 0 {
		proposal.Items = append(proposal.Items, itemsFromRows(rowsFromText(text))...)
	}

	p.finishTotals(requestID, text, proposal)
	return proposal
}

// ParseText builds a Proposal from plain extracted text: field regexes over
// the blob, table rows inferred from line structure.
func (p *Parser) ParseText(requestID, text string) *model.Proposal {
	proposal := p.parseFields(text)
	proposal.Items = append(proposal.Items, itemsFromRows(rowsFromText(text))...)
	p.finishTotals(requestID, text, proposal)
	return proposal
}

// Usable reports whether a parse produced enough content to stand as a
// result. A proposal with neither items nor a recognized total is not.
func Usable(proposal *model.Proposal) bool {
	return len(proposal.Items) > 0 || proposal.Total > 0
}

func (p *Parser) parseFields(text string) *model.Proposal {
	proposal := model.NewProposal()

	if v, ok := firstMatch(text, clientMatchers); ok {
		proposal.Client = v
	}
	if v, ok := firstMatch(text, vendorMatchers); ok {
		proposal.Vendor = v
	}
	if v, ok := firstMatch(text, proposalNumberMatchers); ok {
		proposal.ProposalNumber = v
	}
	if v, ok := firstMatch(text, dateMatchers); ok {
		proposal.Date = v
	}
	if v, ok := firstMatch(text, paymentMatchers); ok {
		proposal.PaymentTerms = v
	}
	if v, ok := firstMatch(text, deliveryMatchers); ok {
		proposal.Delivery = v
	}

	return proposal
}

// finishTotals computes the subtotal from accepted items, applies any stated
// total from the free text, and runs the advisory consistency check.
func (p *Parser) finishTotals(requestID, text string, proposal *model.Proposal) {
	proposal.Subtotal = proposal.ItemsTotal()
	if proposal.Subtotal == 0 {
		if v, ok := firstMatch(text, statedSubtotalMatchers); ok {
			proposal.Subtotal = brl.ParseCurrency(v)
		}
	}

	proposal.Total = proposal.Subtotal

	if v, ok := firstMatch(text, statedTotalMatchers); ok {
		stated := brl.ParseCurrency(v)
		if stated > 0 {
			proposal.Total = stated
			// A discrepancy beyond tolerance usually means missed rows, not
			// bad arithmetic. Advisory only; the pipeline continues.
			if len(proposal.Items) > 0 {
				diff := stated - proposal.Subtotal
				if diff < 0 {
					diff = -diff
				}
				if diff > p.TotalTolerance {
					zap.L().Warn("computed subtotal diverges from stated total",
						zap.String("request_id", requestID),
						zap.Float64("computed", proposal.Subtotal),
						zap.Float64("stated", stated),
						zap.Int("items", len(proposal.Items)),
					)
				}
			}
		}
	}
}
