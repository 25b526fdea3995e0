package parse

import "github.com/construdata/proposta-cli/internal/model"

// Quality scores a parsed proposal between 0 and 1 for observability. The
// score never drives control flow; it lets operators separate confident
// extractions from best-effort guesses.
func Quality(p *model.Proposal) float64 {
	var score float64

	if p.Client != "" && p.Client != model.UnknownClient {
		score += 0.25
	}
	if p.Vendor != "" && p.Vendor != model.NotAvailable {
		score += 0.15
	}
	if len(p.Items) > 0 {
		score += 0.15
		for _, it := range p.Items {
			if it.UnitPrice > 0 {
				score += 0.15
				break
			}
		}
	}
	if p.Total > 0 {
		score += 0.2
	}
	if p.PaymentTerms != "" && p.PaymentTerms != model.NotAvailable {
		score += 0.1
	}

	if score > 1 {
		score = 1
	}
	return score
}
