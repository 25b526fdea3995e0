// Package extract obtains raw text from uploaded PDFs. Three tiers exist:
// the remote document-processing API, direct local scraping of the byte
// buffer, and a deterministic synthetic fallback. The orchestrator sequences
// them; this package implements each tier.
package extract

import "context"

// Extractor extracts text content from a PDF byte buffer.
type Extractor interface {
	ExtractText(ctx context.Context, data []byte, fileName string) (string, error)
}
