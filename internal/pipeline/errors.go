package pipeline

import (
	"errors"
	"fmt"

	"github.com/construdata/proposta-cli/internal/extract"
	"github.com/construdata/proposta-cli/pkg/doccloud"
)

// Failure is the caller-visible hard error produced only when the final
// fallback tier also failed. It carries the correlation id and remediation
// hints; a raw fault never reaches the caller.
type Failure struct {
	RequestID   string
	Err         error
	Suggestions []string
}

func (f *Failure) Error() string {
	return fmt.Sprintf("pipeline: extraction failed (request %s): %v", f.RequestID, f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// defaultSuggestions are the remediation hints attached to a hard failure.
var defaultSuggestions = []string{
	"Verifique se o arquivo é um PDF válido",
	"Reduza o tamanho do arquivo (máximo 15MB)",
	"Tente novamente em alguns minutos",
}

// failureReason classifies a tier error for the structured log entry.
func failureReason(err error) string {
	var credErr *doccloud.CredentialError
	var authErr *doccloud.AuthError
	var uploadErr *doccloud.UploadError
	var subErr *doccloud.SubmissionError
	var timeoutErr *doccloud.TimeoutError
	var malformedErr *doccloud.MalformedResponseError
	var emptyErr *extract.EmptyResultError
	var disabledErr *extract.ErrFallbackDisabled

	switch {
	case errors.As(err, &credErr):
		return "missing-credentials"
	case errors.As(err, &authErr):
		return "auth-rejected"
	case errors.As(err, &uploadErr):
		return "upload-failed"
	case errors.As(err, &subErr):
		return "submission-failed"
	case errors.As(err, &timeoutErr):
		return "timeout-" + timeoutErr.Step
	case errors.As(err, &malformedErr):
		return "malformed-response"
	case errors.As(err, &emptyErr):
		return "empty-result"
	case errors.As(err, &disabledErr):
		return "fallback-disabled"
	default:
		return "error"
	}
}
