package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/certvine/certflow/gap"
)

// httpClient is the shared JSON-over-HTTP plumbing for the collaborator
// clients. Non-2xx statuses map onto the typed failure codes: 429 is rate
// limited, 5xx is unavailable, 4xx is invalid input.
type httpClient struct {
	service string
	baseURL string
	client  *http.Client
}

func newHTTPClient(service, baseURL string, client *http.Client) httpClient {
	if client == nil {
		client = http.DefaultClient
	}
	return httpClient{service: service, baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

func (c httpClient) postJSON(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return InvalidInput(c.service, fmt.Errorf("marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return InvalidInput(c.service, fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return Unavailable(c.service, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return RateLimited(c.service, fmt.Errorf("status %d", resp.StatusCode))
	case resp.StatusCode >= 500:
		return Unavailable(c.service, fmt.Errorf("status %d", resp.StatusCode))
	case resp.StatusCode >= 400:
		return InvalidInput(c.service, fmt.Errorf("status %d", resp.StatusCode))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return Unknown(c.service, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func (c httpClient) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return InvalidInput(c.service, fmt.Errorf("build request: %w", err))
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return Unavailable(c.service, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return RateLimited(c.service, fmt.Errorf("status %d", resp.StatusCode))
	case resp.StatusCode >= 500:
		return Unavailable(c.service, fmt.Errorf("status %d", resp.StatusCode))
	case resp.StatusCode >= 400:
		return InvalidInput(c.service, fmt.Errorf("status %d", resp.StatusCode))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return Unknown(c.service, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

// ──────────────────────────────────────────────────
// HTTP adapter implementations
// ──────────────────────────────────────────────────

// HTTPAssessmentGenerator calls a question-generation service over HTTP.
type HTTPAssessmentGenerator struct {
	httpClient
}

// NewHTTPAssessmentGenerator creates a client for a question-generation
// service at baseURL. A nil client falls back to http.DefaultClient.
func NewHTTPAssessmentGenerator(baseURL string, client *http.Client) *HTTPAssessmentGenerator {
	return &HTTPAssessmentGenerator{newHTTPClient("assessment-generator", baseURL, client)}
}

// GenerateAssessment requests a generated quiz for the profile.
func (g *HTTPAssessmentGenerator) GenerateAssessment(ctx context.Context, req AssessmentRequest) (*Assessment, error) {
	var a Assessment
	if err := g.postJSON(ctx, "/v1/assessments", req, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// HTTPFormService calls a form/spreadsheet service over HTTP.
type HTTPFormService struct {
	httpClient
}

// NewHTTPFormService creates a client for a form service at baseURL.
func NewHTTPFormService(baseURL string, client *http.Client) *HTTPFormService {
	return &HTTPFormService{newHTTPClient("form-service", baseURL, client)}
}

// DeployForm publishes the assessment as an external form.
func (f *HTTPFormService) DeployForm(ctx context.Context, a *Assessment) (*FormHandle, error) {
	var h FormHandle
	if err := f.postJSON(ctx, "/v1/forms", a, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// ReleaseForm tears down a deployed form and its result sink.
func (f *HTTPFormService) ReleaseForm(ctx context.Context, resultRef string) error {
	return f.postJSON(ctx, "/v1/forms/"+url.PathEscape(resultRef)+"/release", struct{}{}, nil)
}

// ValidateReference checks the reference shape without calling out.
// Result references are opaque but never empty, never whitespace, and
// never contain path separators.
func (f *HTTPFormService) ValidateReference(ref string) error {
	if strings.TrimSpace(ref) == "" {
		return InvalidInput(f.service, fmt.Errorf("empty reference"))
	}
	if strings.ContainsAny(ref, "/\\ \t\n") {
		return InvalidInput(f.service, fmt.Errorf("malformed reference %q", ref))
	}
	return nil
}

// FetchResults retrieves learner responses for a results reference.
func (f *HTTPFormService) FetchResults(ctx context.Context, resultRef string) ([]gap.Response, error) {
	if err := f.ValidateReference(resultRef); err != nil {
		return nil, err
	}
	var responses []gap.Response
	if err := f.getJSON(ctx, "/v1/results/"+url.PathEscape(resultRef), &responses); err != nil {
		return nil, err
	}
	return responses, nil
}

// HTTPTaxonomyProvider fetches certification taxonomies over HTTP.
type HTTPTaxonomyProvider struct {
	httpClient
}

// NewHTTPTaxonomyProvider creates a client for a taxonomy service at baseURL.
func NewHTTPTaxonomyProvider(baseURL string, client *http.Client) *HTTPTaxonomyProvider {
	return &HTTPTaxonomyProvider{newHTTPClient("taxonomy", baseURL, client)}
}

// Taxonomy resolves the skill taxonomy for a certification reference.
func (t *HTTPTaxonomyProvider) Taxonomy(ctx context.Context, certificationRef string) (*gap.Taxonomy, error) {
	var tax gap.Taxonomy
	if err := t.getJSON(ctx, "/v1/taxonomies/"+url.PathEscape(certificationRef), &tax); err != nil {
		return nil, err
	}
	return &tax, nil
}

// HTTPContentGenerator calls a content-rendering service over HTTP.
type HTTPContentGenerator struct {
	httpClient
	format string
}

// NewHTTPContentGenerator creates a client for a rendering service at
// baseURL producing the given format (e.g. "slides", "video").
func NewHTTPContentGenerator(format, baseURL string, client *http.Client) *HTTPContentGenerator {
	return &HTTPContentGenerator{
		httpClient: newHTTPClient("content-"+format, baseURL, client),
		format:     format,
	}
}

// GenerateContent renders learning content from the remediation plan.
func (g *HTTPContentGenerator) GenerateContent(ctx context.Context, plan *gap.Plan) (*ContentRef, error) {
	var ref ContentRef
	if err := g.postJSON(ctx, "/v1/render/"+url.PathEscape(g.format), plan, &ref); err != nil {
		return nil, err
	}
	return &ref, nil
}
