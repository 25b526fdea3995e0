// Package doccloud is a client for the remote document-processing API used to
// extract text and tables from uploaded PDFs. A job moves through
// authenticate -> upload -> start extraction -> poll -> download.
package doccloud

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/construdata/proposta-cli/internal/resilience"
)

const defaultBaseURL = "https://api.doccloud.io/v1"

// Client defines the document-processing API operations.
type Client interface {
	Authenticate(ctx context.Context) (string, error)
	UploadAsset(ctx context.Context, token string, data []byte, fileName string) (string, error)
	StartExtraction(ctx context.Context, token, assetID string) (string, error)
	PollResult(ctx context.Context, token, location string, opts ...PollOption) (*JobStatus, error)
	DownloadResult(ctx context.Context, downloadURL string) ([]byte, error)
	ExtractDocument(ctx context.Context, data []byte, fileName string) (*ExtractionResult, error)
}

// Credentials holds the client-credential fields required by the API.
type Credentials struct {
	ClientID     string
	ClientSecret string
	OrgID        string
}

// Validate returns a CredentialError listing any missing fields.
func (c Credentials) Validate() error {
	var missing []string
	if c.ClientID == "" {
		missing = append(missing, "client_id")
	}
	if c.ClientSecret == "" {
		missing = append(missing, "client_secret")
	}
	if c.OrgID == "" {
		missing = append(missing, "org_id")
	}
	if len(missing) > 0 {
		return &CredentialError{Missing: missing}
	}
	return nil
}

// JobStatus is the decoded polling response for an extraction job.
type JobStatus struct {
	Status      string
	DownloadURL string
}

// Option configures the httpClient.
type Option func(*httpClient)

// WithBaseURL overrides the default base URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = u
	}
}

// WithHTTPClient sets a custom *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithUploadTimeout bounds the multipart asset upload.
func WithUploadTimeout(d time.Duration) Option {
	return func(c *httpClient) {
		c.uploadTimeout = d
	}
}

type httpClient struct {
	creds         Credentials
	baseURL       string
	uploadTimeout time.Duration
	pollOpts      []PollOption
	http          *http.Client
}

// NewClient creates a document-processing API client. It fails fast with a
// CredentialError when required credential fields are absent.
func NewClient(creds Credentials, opts ...Option) (Client, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}
	c := &httpClient{
		creds:         creds,
		baseURL:       defaultBaseURL,
		uploadTimeout: 30 * time.Second,
		http: &http.Client{
			Timeout: 60 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// WithPollOptions sets default polling options for ExtractDocument.
func WithPollOptions(opts ...PollOption) Option {
	return func(c *httpClient) {
		c.pollOpts = opts
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// Authenticate exchanges stored client credentials for a bearer token.
func (c *httpClient) Authenticate(ctx context.Context) (string, error) {
	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {c.creds.ClientID},
		"client_secret": {c.creds.ClientSecret},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/oauth/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", eris.Wrap(err, "doccloud: create token request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-Org-Id", c.creds.OrgID)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", eris.Wrap(err, "doccloud: token exchange")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", eris.Wrap(err, "doccloud: read token response")
	}

	if resp.StatusCode != http.StatusOK {
		return "", &AuthError{StatusCode: resp.StatusCode, Body: truncate(string(body), 200)}
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return "", &AuthError{StatusCode: resp.StatusCode, Body: "unparseable token payload"}
	}
	if tr.AccessToken == "" {
		return "", &AuthError{StatusCode: resp.StatusCode, Body: "empty access_token"}
	}

	return tr.AccessToken, nil
}

type uploadResponse struct {
	AssetID string `json:"assetID"`
}

// UploadAsset uploads the PDF bytes as a multipart form under a bounded
// timeout and returns the server-assigned asset id.
func (c *httpClient) UploadAsset(ctx context.Context, token string, data []byte, fileName string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.uploadTimeout)
	defer cancel()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", fileName)
	if err != nil {
		return "", eris.Wrap(err, "doccloud: create multipart part")
	}
	if _, err := part.Write(data); err != nil {
		return "", eris.Wrap(err, "doccloud: write multipart body")
	}
	if err := mw.Close(); err != nil {
		return "", eris.Wrap(err, "doccloud: close multipart writer")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/assets", &buf)
	if err != nil {
		return "", eris.Wrap(err, "doccloud: create upload request")
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", &TimeoutError{Step: "upload", Attempts: 1, Elapsed: c.uploadTimeout}
		}
		return "", eris.Wrap(err, "doccloud: upload asset")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", eris.Wrap(err, "doccloud: read upload response")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &UploadError{StatusCode: resp.StatusCode, Reason: truncate(string(body), 200)}
	}

	var ur uploadResponse
	if err := json.Unmarshal(body, &ur); err != nil || ur.AssetID == "" {
		return "", &UploadError{StatusCode: resp.StatusCode, Reason: "response missing assetID"}
	}

	return ur.AssetID, nil
}

type extractionRequest struct {
	AssetID  string   `json:"assetID"`
	Elements []string `json:"elementsToExtract"`
}

// StartExtraction submits a job descriptor requesting text and table
// extraction and returns the polling location.
func (c *httpClient) StartExtraction(ctx context.Context, token, assetID string) (string, error) {
	body, err := json.Marshal(extractionRequest{
		AssetID:  assetID,
		Elements: []string{"text", "tables"},
	})
	if err != nil {
		return "", eris.Wrap(err, "doccloud: marshal extraction request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/operation/extractpdf", bytes.NewReader(body))
	if err != nil {
		return "", eris.Wrap(err, "doccloud: create extraction request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", eris.Wrap(err, "doccloud: submit extraction")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, _ := io.ReadAll(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &SubmissionError{StatusCode: resp.StatusCode, Reason: truncate(string(respBody), 200)}
	}

	location := resp.Header.Get("Location")
	if location == "" {
		return "", &SubmissionError{StatusCode: resp.StatusCode, Reason: "response missing Location header"}
	}

	return location, nil
}

// DownloadResult fetches the final structured payload under its own timeout.
func (c *httpClient) DownloadResult(ctx context.Context, downloadURL string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, downloadURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "doccloud: create download request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, &TimeoutError{Step: "download", Attempts: 1, Elapsed: 30 * time.Second}
		}
		return nil, eris.Wrap(err, "doccloud: download result")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("doccloud: download returned HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "doccloud: read download body")
	}

	return data, nil
}

// ExtractDocument runs the full job lifecycle for one document. Auth and
// upload are retried on transient failures; polling carries its own dual
// bound.
func (c *httpClient) ExtractDocument(ctx context.Context, data []byte, fileName string) (*ExtractionResult, error) {
	retryCfg := resilience.DefaultRetryConfig()

	token, err := resilience.DoVal(ctx, retryCfg, func(ctx context.Context) (string, error) {
		return c.Authenticate(ctx)
	})
	if err != nil {
		return nil, err
	}

	assetID, err := resilience.DoVal(ctx, retryCfg, func(ctx context.Context) (string, error) {
		return c.UploadAsset(ctx, token, data, fileName)
	})
	if err != nil {
		return nil, err
	}

	location, err := c.StartExtraction(ctx, token, assetID)
	if err != nil {
		return nil, err
	}

	status, err := c.PollResult(ctx, token, location, c.pollOpts...)
	if err != nil {
		return nil, err
	}

	raw, err := c.DownloadResult(ctx, status.DownloadURL)
	if err != nil {
		return nil, err
	}

	return DecodeResult(raw)
}

func (c *httpClient) get(ctx context.Context, token, rawURL string) (*http.Response, error) {
	target := rawURL
	if !strings.HasPrefix(rawURL, "http") {
		target = c.baseURL + rawURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, eris.Wrap(err, "doccloud: create request")
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return c.http.Do(req)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return fmt.Sprintf("%s... (%d bytes)", s[:n], len(s))
}
