package gateway

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
	"strings"

	"github.com/mgomes/resumefind/internal/models"
	"go.uber.org/zap"
)

const (
	contentType     = "application/json"
	sessionIDHeader = "X-Session-ID"
	uploadField     = "files"
)

// Client wraps every backend endpoint. It is the only place that performs network I/O.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	sessionID  string
	logger     *zap.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

func WithSessionID(id string) Option {
	return func(c *Client) {
		c.sessionID = id
	}
}

type Status struct {
	IndexedCount  int
	Active        models.Source
	UploadedFiles []string
}

type SearchResult struct {
	Candidates []models.Candidate
	Notice     string
}

type UploadResult struct {
	UploadedFiles []string
	IndexedCount  int
}

type statusResponse struct {
	IndexedResumes int    `json:"indexed_resumes"`
	CurrentSource  string `json:"current_source"`
}

type filesResponse struct {
	Files []string `json:"files"`
}

type searchRequest struct {
	Query string `json:"query"`
}

type searchResponse struct {
	Candidates []models.Candidate `json:"candidates"`
	Message    string             `json:"message"`
}

type uploadResponse struct {
	Files        []string `json:"files"`
	IndexedCount int      `json:"indexed_count"`
}

type sourceRequest struct {
	Source models.Source `json:"source"`
}

type countResponse struct {
	IndexedCount int `json:"indexed_count"`
}

func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid API URL %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid API URL %q: scheme must be http or https", baseURL)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid API URL %q: missing host", baseURL)
	}

	c := &Client{
		baseURL:    u,
		httpClient: &http.Client{},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// FetchStatus reads the status snapshot. The uploaded file list is only
// requested when the backend reports the uploaded source as active.
func (c *Client) FetchStatus(ctx context.Context) (Status, error) {
	var snapshot statusResponse
	if err := c.doJSON(ctx, "fetch status", http.MethodGet, "/", nil, "", &snapshot); err != nil {
		return Status{}, err
	}

	status := Status{
		IndexedCount: snapshot.IndexedResumes,
		Active:       models.SourceLocal,
	}
	if models.Source(snapshot.CurrentSource) != models.SourceUploaded {
		return status, nil
	}

	var files filesResponse
	if err := c.doJSON(ctx, "fetch uploaded resumes", http.MethodGet, "/uploaded-resumes", nil, "", &files); err != nil {
		// Without the file list the snapshot cannot satisfy the uploaded invariant.
		c.logger.Warn("dropping status snapshot without uploaded file list",
			zap.Int("indexed", snapshot.IndexedResumes), zap.Error(err))
		return Status{}, err
	}
	status.Active = models.SourceUploaded
	status.UploadedFiles = files.Files

	return status, nil
}

// Search expects a query that is non-empty after trimming.
func (c *Client) Search(ctx context.Context, query string) (SearchResult, error) {
	body, err := json.Marshal(searchRequest{Query: query})
	if err != nil {
		return SearchResult{}, err
	}

	var resp searchResponse
	if err := c.doJSON(ctx, "search", http.MethodPost, "/search", bytes.NewReader(body), contentType, &resp); err != nil {
		return SearchResult{}, err
	}

	c.logger.Debug("search finished", zap.Int("candidates", len(resp.Candidates)))

	return SearchResult{Candidates: resp.Candidates, Notice: resp.Message}, nil
}

// UploadResumes sends docs as one multipart request. Callers must not pass an empty slice.
func (c *Client) UploadResumes(ctx context.Context, docs []models.Document) (UploadResult, error) {
	var b bytes.Buffer
	w := multipart.NewWriter(&b)
	for _, doc := range docs {
		part, err := w.CreateFormFile(uploadField, doc.Name)
		if err != nil {
			return UploadResult{}, err
		}
		if _, err := part.Write(doc.Data); err != nil {
			return UploadResult{}, err
		}
	}
	if err := w.Close(); err != nil {
		return UploadResult{}, err
	}

	var resp uploadResponse
	if err := c.doJSON(ctx, "upload resumes", http.MethodPost, "/upload-resumes", &b, w.FormDataContentType(), &resp); err != nil {
		return UploadResult{}, err
	}

	return UploadResult{UploadedFiles: resp.Files, IndexedCount: resp.IndexedCount}, nil
}

func (c *Client) SetActiveSource(ctx context.Context, source models.Source) (int, error) {
	body, err := json.Marshal(sourceRequest{Source: source})
	if err != nil {
		return 0, err
	}

	var resp countResponse
	if err := c.doJSON(ctx, "set resume source", http.MethodPost, "/set-resume-source", bytes.NewReader(body), contentType, &resp); err != nil {
		return 0, err
	}
	return resp.IndexedCount, nil
}

func (c *Client) ClearUploads(ctx context.Context) (int, error) {
	var resp countResponse
	if err := c.doJSON(ctx, "clear uploads", http.MethodDelete, "/clear-uploads", nil, "", &resp); err != nil {
		return 0, err
	}
	return resp.IndexedCount, nil
}

// ResolveResumeURL builds the document URL for a resume locator. It performs no I/O.
func (c *Client) ResolveResumeURL(locator string) (*url.URL, error) {
	filename := ResumeFilename(locator)
	switch filename {
	case "":
		return nil, fmt.Errorf("resume locator %q has no filename", locator)
	case ".", "..":
		return nil, fmt.Errorf("resume locator %q does not name a file", locator)
	}
	// JoinPath expects escaped segments.
	return c.baseURL.JoinPath("resume", url.PathEscape(filename)), nil
}

// ResumeFilename returns the final path segment of locator, accepting both
// backslash and slash separators.
func ResumeFilename(locator string) string {
	locator = strings.TrimSpace(locator)
	if i := strings.LastIndexAny(locator, `\/`); i >= 0 {
		return locator[i+1:]
	}
	return locator
}

func (c *Client) doJSON(ctx context.Context, op, method, path string, body io.Reader, bodyType string, target interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.JoinPath(path).String(), body)
	if err != nil {
		return err
	}

	req.Header.Set("Accept", contentType)
	if bodyType != "" {
		req.Header.Set("Content-Type", bodyType)
	}
	if c.sessionID != "" {
		req.Header.Set(sessionIDHeader, c.sessionID)
	}

	resp, err := c.request(req)
	if err != nil {
		return &NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close() //nolint:errcheck

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &NetworkError{Op: op, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Debug("bad status from backend", zap.String("op", op), zap.Int("status", resp.StatusCode))
		return &HTTPError{Op: op, Status: resp.StatusCode, Detail: parseDetail(data)}
	}

	if target == nil {
		return nil
	}
	if err := json.Unmarshal(data, target); err != nil {
		return &NetworkError{Op: op, Err: fmt.Errorf("unparsable response: %w", err)}
	}

	return nil
}

func (c *Client) request(req *http.Request) (*http.Response, error) {
	c.logger.Debug("make request", zap.String("method", req.Method), zap.String("url", req.URL.String()))
	return c.httpClient.Do(req)
}

// parseDetail extracts FastAPI's {"detail": ...} message when present.
func parseDetail(data []byte) string {
	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(data, &payload); err != nil || len(payload.Detail) == 0 {
		return ""
	}

	var text string
	if err := json.Unmarshal(payload.Detail, &text); err == nil {
		return text
	}
	return string(payload.Detail)
}

// IsNetwork reports whether err is a NetworkError.
func IsNetwork(err error) bool {
	var netErr *NetworkError
	return errors.As(err, &netErr)
}
