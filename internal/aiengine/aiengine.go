// Package aiengine provides the HTTP client for the upstream
// extraction/classification service.
//
// Every call is bounded by a timeout and validates the response shape
// before trusting it; a malformed payload is reported as an error so
// the caller can run the local fallback path instead. The client never
// logs or propagates upstream text without the caller seeing the error.
package aiengine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/GraminSeva/TriageLine/internal/models"
)

// DefaultTimeout bounds every remote call.
const DefaultTimeout = 30 * time.Second

// Opts holds configuration options for the AI engine client.
type Opts struct {
	// BaseURL is the root URL of the AI engine, e.g. "http://localhost:8001".
	BaseURL string
	// Timeout bounds each request. Zero means DefaultTimeout.
	Timeout time.Duration
	// HTTPClient overrides the transport, mainly for tests.
	HTTPClient *http.Client
}

// Option configures the AI engine client.
type Option func(*Opts)

// WithBaseURL sets the AI engine base URL.
func WithBaseURL(url string) Option {
	return func(o *Opts) { o.BaseURL = url }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *Opts) { o.Timeout = d }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *Opts) { o.HTTPClient = c }
}

// Client calls the upstream AI engine endpoints.
type Client struct {
	baseURL string
	timeout time.Duration
	http    *http.Client
}

// NewClient creates an AI engine client. Returns nil when no base URL
// is configured, which callers treat as "remote permanently
// unavailable" and run local rules only.
func NewClient(opts ...Option) *Client {
	var o Opts
	for _, opt := range opts {
		opt(&o)
	}
	if strings.TrimSpace(o.BaseURL) == "" {
		slog.Info("aiengine.NewClient: no base URL configured, remote classification disabled")
		return nil
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.HTTPClient == nil {
		o.HTTPClient = &http.Client{}
	}
	slog.Info("aiengine.NewClient: client created", "baseURL", o.BaseURL, "timeout", o.Timeout)
	return &Client{
		baseURL: strings.TrimRight(o.BaseURL, "/"),
		timeout: o.Timeout,
		http:    o.HTTPClient,
	}
}

// ScopeResult is the response of POST /scope.
type ScopeResult struct {
	Scope   models.Scope `json:"scope"`
	LLMUsed bool         `json:"llmUsed"`
}

// IntentResult is the response of POST /intent, which combines the
// intent gate with extraction to save a round trip.
type IntentResult struct {
	Intent       models.Intent               `json:"intent"`
	Reply        string                      `json:"reply"`
	Extracted    *models.StructuredComplaint `json:"extracted"`
	LLMUsed      bool                        `json:"llmUsed"`
	FallbackUsed bool                        `json:"fallbackUsed"`
}

// ExplainResult is the response of POST /explain.
type ExplainResult struct {
	Explanation  string   `json:"explanation"`
	Disclaimer   string   `json:"disclaimer"`
	TimeToAct    string   `json:"timeToAct"`
	TopReasons   []string `json:"topReasons"`
	WatchFor     []string `json:"watchFor"`
	UrgencyBadge string   `json:"urgencyBadge"`
}

// GeneralAnswerResult is the response of POST /general-answer.
type GeneralAnswerResult struct {
	Reply string `json:"reply"`
}

// ClassifyScope calls POST /scope.
func (c *Client) ClassifyScope(ctx context.Context, text, language string) (*ScopeResult, error) {
	var out ScopeResult
	err := c.postJSON(ctx, "/scope", map[string]string{"text": text, "language": language}, &out)
	if err != nil {
		return nil, err
	}
	switch out.Scope {
	case models.ScopeOutOfScope, models.ScopeNonMedicalSafe, models.ScopeMedical:
	default:
		return nil, fmt.Errorf("aiengine: invalid scope %q: %w", out.Scope, models.ErrRemoteUnavailable)
	}
	return &out, nil
}

// ClassifyIntent calls POST /intent.
func (c *Client) ClassifyIntent(ctx context.Context, text, language string) (*IntentResult, error) {
	var out IntentResult
	err := c.postJSON(ctx, "/intent", map[string]string{"text": text, "language": language}, &out)
	if err != nil {
		return nil, err
	}
	if !models.IsValidIntent(out.Intent) {
		return nil, fmt.Errorf("aiengine: invalid intent %q: %w", out.Intent, models.ErrRemoteUnavailable)
	}
	if out.Extracted != nil {
		out.Extracted.Normalize()
	}
	return &out, nil
}

// Extract calls POST /extract for text whose intent result carried no
// embedded extraction.
func (c *Client) Extract(ctx context.Context, text, language, source string) (*models.StructuredComplaint, error) {
	var out models.StructuredComplaint
	err := c.postJSON(ctx, "/extract", map[string]string{
		"text": text, "language": language, "source": source,
	}, &out)
	if err != nil {
		return nil, err
	}
	out.Normalize()
	return &out, nil
}

// Classify calls POST /classify. The result is advisory only: the
// deterministic rule engine remains the source of the final tier.
func (c *Client) Classify(ctx context.Context, structured models.StructuredComplaint, language string) (*models.ClassificationResult, error) {
	var out models.ClassificationResult
	err := c.postJSON(ctx, "/classify", map[string]any{
		"structured": structured, "language": language,
	}, &out)
	if err != nil {
		return nil, err
	}
	if !models.IsValidUrgency(out.Urgency) || !models.IsValidCareLevel(out.CareLevel) {
		return nil, fmt.Errorf("aiengine: invalid classification %s/%s: %w",
			out.Urgency, out.CareLevel, models.ErrRemoteUnavailable)
	}
	return &out, nil
}

// Explain calls POST /explain for a human-readable rationale.
func (c *Client) Explain(ctx context.Context, result models.ClassificationResult, structured models.StructuredComplaint, language string) (*ExplainResult, error) {
	var out ExplainResult
	err := c.postJSON(ctx, "/explain", map[string]any{
		"urgency":     result.Urgency,
		"careLevel":   result.CareLevel,
		"structured":  structured,
		"reasonCodes": result.ReasonCodes,
		"language":    language,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// GeneralAnswer calls POST /general-answer for NON_MEDICAL_SAFE chat.
func (c *Client) GeneralAnswer(ctx context.Context, text, language string) (*GeneralAnswerResult, error) {
	var out GeneralAnswerResult
	err := c.postJSON(ctx, "/general-answer", map[string]string{"text": text, "language": language}, &out)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(out.Reply) == "" {
		return nil, fmt.Errorf("aiengine: empty general answer: %w", models.ErrRemoteUnavailable)
	}
	return &out, nil
}

// postJSON posts a JSON body and decodes a JSON response, converting
// transport errors, bad statuses, and malformed bodies into wrapped
// errors the caller maps onto fallback behavior.
func (c *Client) postJSON(ctx context.Context, path string, body, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("aiengine: failed to marshal request for %s: %w", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("aiengine: failed to build request for %s: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		slog.Warn("aiengine.postJSON: request failed", "path", path, "error", err)
		return fmt.Errorf("aiengine: request to %s failed: %w", path, models.ErrRemoteUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		slog.Warn("aiengine.postJSON: unexpected status", "path", path, "status", resp.StatusCode)
		return fmt.Errorf("aiengine: %s returned status %d: %w", path, resp.StatusCode, models.ErrRemoteUnavailable)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		slog.Warn("aiengine.postJSON: malformed response body", "path", path, "error", err)
		return fmt.Errorf("aiengine: malformed response from %s: %w", path, models.ErrRemoteUnavailable)
	}
	return nil
}
