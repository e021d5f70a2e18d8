// Package transfer implements the remote translation API: uploading
// source files, triggering their processing, querying translation status,
// and downloading finished translation archives.
//
// Every call is a single HTTP round trip with an explicit contract; the
// package never retries. Re-polling is the caller's job.
//
// Authentication uses a static bearer token. Uploads may proceed without
// one (the server may still reject them); processing, status and download
// calls refuse to run unauthenticated.
package transfer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ErrNoToken is returned by calls that require authentication when the
// client has no token configured.
var ErrNoToken = errors.New("no API token configured")

// HTTPError describes a non-success response from the translation API.
type HTTPError struct {
	// Op is the failed operation: "upload", "process", "status" or "download".
	Op string
	// StatusCode is the HTTP status returned by the server.
	StatusCode int
	// Body is the response body, truncated for display.
	Body string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s failed: HTTP %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s failed: HTTP %d: %s", e.Op, e.StatusCode, e.Body)
}

// IsNotFound reports whether the server answered 404.
func (e *HTTPError) IsNotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// ---------------------------------------------------------------------------
// Client
// ---------------------------------------------------------------------------

// Client talks to one translation service.
type Client struct {
	// BaseURL is the service endpoint, e.g. https://translate.example.com/api/v1.
	BaseURL string
	// Token is the bearer token. Empty means unauthenticated.
	Token string
	// HTTPClient is used for all requests. New sets a 30-second-timeout
	// client; replace it to tune timeouts or proxying.
	HTTPClient *http.Client
	// UserAgent is sent with every request when non-empty.
	UserAgent string
}

// New returns a Client for the given service.
func New(baseURL, token string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		Token:      token,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: 30 * time.Second}
}

// setHeaders applies the auth and agent headers to a request.
func (c *Client) setHeaders(req *http.Request) {
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
}

// Submission identifies one source file on both sides of the wire.
type Submission struct {
	// SourcePath is the local file whose content is sent.
	SourcePath string
	// RelativePath is the remote identity (the file_path field).
	RelativePath string
	// OutputPattern is the output template (the output_file_path field).
	OutputPattern string
	// Tag is the grouping label (the file_tag_name field).
	Tag string
	// Additional are secondary output templates, sent as a JSON array in
	// the additional_translation_files field when non-empty.
	Additional []string
}

// ---------------------------------------------------------------------------
// Upload
// ---------------------------------------------------------------------------

// Upload submits a source file. Success is exactly HTTP 201; any other
// answer is an *HTTPError. Upload is the one call allowed without a token.
func (c *Client) Upload(ctx context.Context, s Submission) error {
	fields := []formField{
		{"file_path", s.RelativePath},
		{"output_file_path", s.OutputPattern},
		{"file_tag_name", s.Tag},
	}
	if len(s.Additional) > 0 {
		blob, err := json.Marshal(s.Additional)
		if err != nil {
			return fmt.Errorf("encoding additional files: %w", err)
		}
		fields = append(fields, formField{"additional_translation_files", string(blob)})
	}

	body, contentType, err := multipartBody(fields, s.SourcePath)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.BaseURL+"/source_files", body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)
	c.setHeaders(req)

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return readHTTPError("upload", resp)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Start processing
// ---------------------------------------------------------------------------

// StartProcessing asks the service to begin translating an uploaded file.
// The file content is re-submitted, matching the service contract.
// Success is exactly HTTP 200. Requires a token.
func (c *Client) StartProcessing(ctx context.Context, s Submission) error {
	if c.Token == "" {
		return ErrNoToken
	}

	fields := []formField{
		{"file_path", s.RelativePath},
		{"file_tag_name", s.Tag},
	}
	body, contentType, err := multipartBody(fields, s.SourcePath)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, "PUT", c.BaseURL+"/source_files/process", body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)
	c.setHeaders(req)

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return readHTTPError("process", resp)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Status
// ---------------------------------------------------------------------------

// GetStatus queries the translation state of a file. 404 is a defined
// outcome (NotFound), not an error; any other non-200 answer is an
// *HTTPError. Requires a token.
func (c *Client) GetStatus(ctx context.Context, relPath, tag string) (Status, error) {
	if c.Token == "" {
		return Status{}, ErrNoToken
	}

	req, err := http.NewRequestWithContext(ctx, "GET", c.queryURL("translation_status", relPath, tag), nil)
	if err != nil {
		return Status{}, err
	}
	req.Header.Set("Accept", "application/json")
	c.setHeaders(req)

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return Status{}, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		io.Copy(io.Discard, resp.Body)
		return Status{State: NotFound}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return Status{}, readHTTPError("status", resp)
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Status{}, fmt.Errorf("reading response: %w", err)
	}

	var payload struct {
		Status       *string  `json:"status"`
		Completeness *float64 `json:"completeness"`
	}
	if err := json.Unmarshal(respBody, &payload); err != nil {
		return Status{}, fmt.Errorf("parsing status response: %w (body: %s)", err, truncate(string(respBody), 300))
	}

	st := Status{State: Pending, Raw: RawUnknown}
	if payload.Completeness != nil {
		st.Completeness = *payload.Completeness
	}
	if payload.Status == nil || *payload.Status == "" {
		return st, nil
	}
	st.Raw = *payload.Status
	if st.Raw == "completed" {
		st.State = Ready
	}
	return st, nil
}

// ---------------------------------------------------------------------------
// Download
// ---------------------------------------------------------------------------

// DownloadArchive fetches the ZIP of finished translations for a file and
// copies it into w. Success is exactly HTTP 200. Requires a token.
func (c *Client) DownloadArchive(ctx context.Context, relPath, tag string, w io.Writer) error {
	if c.Token == "" {
		return ErrNoToken
	}

	req, err := http.NewRequestWithContext(ctx, "GET", c.queryURL("download_translations", relPath, tag), nil)
	if err != nil {
		return err
	}
	c.setHeaders(req)

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return readHTTPError("download", resp)
	}

	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("reading archive: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// CheckCommand renders the manual status-check invocation shown to users
// for jobs the run could not see through to completion.
func (c *Client) CheckCommand(relPath, tag string) string {
	return fmt.Sprintf("sjt status --file %s --tag %s --api-url %s", relPath, tag, c.BaseURL)
}

// queryURL builds {base}/source_files/{endpoint}?file_path=…&file_tag_name=….
func (c *Client) queryURL(endpoint, relPath, tag string) string {
	q := url.Values{}
	q.Set("file_path", relPath)
	q.Set("file_tag_name", tag)
	return fmt.Sprintf("%s/source_files/%s?%s", c.BaseURL, endpoint, q.Encode())
}

type formField struct {
	name  string
	value string
}

// multipartBody builds a multipart/form-data body: the given fields in
// order, then the file content under the "file" field.
func multipartBody(fields []formField, filePath string) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for _, f := range fields {
		if err := w.WriteField(f.name, f.value); err != nil {
			return nil, "", fmt.Errorf("encoding field %s: %w", f.name, err)
		}
	}

	src, err := os.Open(filePath)
	if err != nil {
		return nil, "", fmt.Errorf("opening %s: %w", filePath, err)
	}
	defer src.Close()

	part, err := w.CreateFormFile("file", filepath.Base(filePath))
	if err != nil {
		return nil, "", fmt.Errorf("encoding file part: %w", err)
	}
	if _, err := io.Copy(part, src); err != nil {
		return nil, "", fmt.Errorf("reading %s: %w", filePath, err)
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

// readHTTPError drains a non-success response into an *HTTPError.
func readHTTPError(op string, resp *http.Response) error {
	respBody, _ := io.ReadAll(resp.Body)
	return &HTTPError{
		Op:         op,
		StatusCode: resp.StatusCode,
		Body:       truncate(strings.TrimSpace(string(respBody)), 500),
	}
}

// truncate shortens s to maxLen characters for display.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
