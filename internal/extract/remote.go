package extract

import (
	"context"

	"github.com/construdata/proposta-cli/pkg/doccloud"
)

// Remote extracts text through the remote document-processing API. Typed
// errors (AuthError, UploadError, TimeoutError, MalformedResponseError) pass
// through unchanged for the orchestrator to classify.
type Remote struct {
	client doccloud.Client
}

// NewRemote creates the remote extraction tier.
func NewRemote(client doccloud.Client) *Remote {
	return &Remote{client: client}
}

// ExtractText runs the full remote job and returns the concatenated text.
func (r *Remote) ExtractText(ctx context.Context, data []byte, fileName string) (string, error) {
	result, err := r.ExtractResult(ctx, data, fileName)
	if err != nil {
		return "", err
	}
	return result.Text(), nil
}

// ExtractResult runs the full remote job and returns the structured result,
// preserving table data for the parser.
func (r *Remote) ExtractResult(ctx context.Context, data []byte, fileName string) (*doccloud.ExtractionResult, error) {
	result, err := r.client.ExtractDocument(ctx, data, fileName)
	if err != nil {
		return nil, err
	}
	if len(result.Elements) == 0 && len(result.Tables) == 0 {
		return nil, &EmptyResultError{FileName: fileName}
	}
	return result, nil
}

// EmptyResultError indicates the remote service completed but recognized no
// content, which the orchestrator treats like any other tier failure.
type EmptyResultError struct {
	FileName string
}

func (e *EmptyResultError) Error() string {
	return "extract: remote service returned no recognizable content for " + e.FileName
}
