package extract

import (
	"context"
	"fmt"
	"hash/fnv"

	"github.com/construdata/proposta-cli/internal/model"
)

// ErrFallbackDisabled is returned when the synthetic tier is reached in
// production mode. Returning fabricated commercial data silently is worse
// than a hard error.
type ErrFallbackDisabled struct {
	FileName string
}

func (e *ErrFallbackDisabled) Error() string {
	return "extract: synthetic fallback disabled in production for " + e.FileName
}

// Synthetic is the last-resort tier: a hand-authored, internally consistent
// example proposal, varied deterministically by filename so repeated failures
// over different files remain distinguishable.
type Synthetic struct {
	// Production disables the tier entirely (fail closed).
	Production bool
}

// NewSynthetic creates the synthetic fallback tier.
func NewSynthetic(production bool) *Synthetic {
	return &Synthetic{Production: production}
}

var syntheticClients = []string{
	"Construtora Horizonte Ltda",
	"Incorporadora Vale Verde",
	"Engenharia Mattos e Filhos",
}

var syntheticVendors = []string{
	"Carlos Mendes",
	"Ana Paula Ferreira",
	"Roberto Silva",
}

// Proposal builds the deterministic fallback record for a file. In
// production it fails closed with ErrFallbackDisabled.
func (s *Synthetic) Proposal(fileName string) (*model.Proposal, error) {
	if s.Production {
		return nil, &ErrFallbackDisabled{FileName: fileName}
	}

	h := fnv.New32a()
	h.Write([]byte(fileName)) //nolint:errcheck
	seed := h.Sum32()

	p := model.NewProposal()
	p.Client = syntheticClients[seed%uint32(len(syntheticClients))]
	p.Vendor = syntheticVendors[(seed>>8)%uint32(len(syntheticVendors))]
	p.ProposalNumber = fmt.Sprintf("%04d", 1000+seed%9000)
	p.Date = "01/01/2026"
	p.PaymentTerms = "30 dias"
	p.Delivery = "A combinar"
	p.Items = []model.LineItem{
		{Description: "Placa de Gesso Standard 1,80x1,20m", Quantity: 100, Unit: "PC", UnitPrice: 62.01, Total: 6201.00},
		{Description: "Perfil F530 Galvanizado 3m", Quantity: 300, Unit: "PC", UnitPrice: 19.71, Total: 5913.00},
		{Description: "Massa para Drywall 28kg", Quantity: 24, Unit: "SC", UnitPrice: 130.90, Total: 3141.60},
	}
	p.Subtotal = p.ItemsTotal()
	p.Total = p.Subtotal

	return p, nil
}

// ExtractText renders the synthetic proposal as plain text so the tier fits
// the Extractor contract when only text is wanted.
func (s *Synthetic) ExtractText(_ context.Context, _ []byte, fileName string) (string, error) {
	p, err := s.Proposal(fileName)
	if err != nil {
		return "", err
	}

	text := fmt.Sprintf("CLIENTE: %s\nVENDEDOR: %s\nPROPOSTA Nº %s\nDATA: %s\n",
		p.Client, p.Vendor, p.ProposalNumber, p.Date)
	for _, it := range p.Items {
		text += fmt.Sprintf("%s  %.0f %s  R$ %.2f  R$ %.2f\n",
			it.Description, it.Quantity, it.Unit, it.UnitPrice, it.Total)
	}
	text += fmt.Sprintf("TOTAL: R$ %.2f\nPAGAMENTO: %s\nENTREGA: %s\n",
		p.Total, p.PaymentTerms, p.Delivery)

	return text, nil
}
