package doccloud

import (
	"fmt"
	"strings"
	"time"
)

// CredentialError indicates required configuration is missing. Raised before
// any network call is attempted.
type CredentialError struct {
	Missing []string
}

func (e *CredentialError) Error() string {
	return fmt.Sprintf("doccloud: missing credentials: %s", strings.Join(e.Missing, ", "))
}

// AuthError indicates the token exchange was rejected or malformed.
type AuthError struct {
	StatusCode int
	Body       string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("doccloud: authentication failed: HTTP %d: %s", e.StatusCode, e.Body)
}

// UploadError indicates the asset upload failed or returned no asset id.
type UploadError struct {
	StatusCode int
	Reason     string
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("doccloud: upload failed (HTTP %d): %s", e.StatusCode, e.Reason)
}

// SubmissionError indicates the extraction job could not be submitted.
type SubmissionError struct {
	StatusCode int
	Reason     string
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("doccloud: job submission failed (HTTP %d): %s", e.StatusCode, e.Reason)
}

// TimeoutError indicates a bounded step exceeded its time or attempt budget.
// Step identifies which stage of the job timed out.
type TimeoutError struct {
	Step     string
	Attempts int
	Elapsed  time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("doccloud: %s timed out after %d attempts in %s", e.Step, e.Attempts, e.Elapsed)
}

// MalformedResponseError indicates a remote payload was missing an expected
// field. Path identifies the access point that failed.
type MalformedResponseError struct {
	Path string
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("doccloud: malformed response: missing or invalid %s", e.Path)
}
