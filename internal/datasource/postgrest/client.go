// Package postgrest introspects Supabase tables through the PostgREST API.
//
// Two strategies are available:
//   - AnalyzeTable samples rows and infers types from decoded values. It
//     needs at least one visible row and never sees primary keys.
//   - TableSchema reads the OpenAPI description PostgREST serves at
//     /rest/v1/. It works on empty tables and picks up key markers from
//     column descriptions.
//
// Row Level Security can hide rows from the API key in use, so an "empty"
// table may not be empty.
package postgrest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"contractgen/internal/logging"
	"contractgen/internal/schema"
)

// DefaultTimeout bounds every HTTP request.
const DefaultTimeout = 10 * time.Second

const hostSuffix = ".supabase.co"

// Options configure a Client.
type Options struct {
	// HTTPClient replaces the default client with a DefaultTimeout.
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Client talks to one Supabase project.
type Client struct {
	projectURL string
	apiKey     string
	http       *http.Client
	log        *zap.Logger
}

// StatusError is a non-2xx PostgREST response.
type StatusError struct {
	StatusCode int
	Table      string
	Body       string
}

func (e *StatusError) Error() string {
	if e.Table != "" {
		return fmt.Sprintf("postgrest: %s: HTTP %d", e.Table, e.StatusCode)
	}
	return fmt.Sprintf("postgrest: HTTP %d", e.StatusCode)
}

// ValidateProjectURL accepts https URLs whose host ends in .supabase.co and
// that carry nothing past the host but an optional trailing slash.
func ValidateProjectURL(projectURL string) error {
	if !strings.HasPrefix(projectURL, "https://") {
		return schema.Validationf("Project URL must start with 'https://': %s", projectURL)
	}
	u, err := url.Parse(projectURL)
	if err != nil || u.Scheme != "https" || u.User != nil ||
		!strings.HasSuffix(u.Hostname(), hostSuffix) ||
		(u.Path != "" && u.Path != "/") || u.RawQuery != "" || u.Fragment != "" || u.ForceQuery {
		return schema.Validationf("Project URL must be a valid Supabase URL (*.supabase.co): %s", projectURL)
	}
	return nil
}

// New validates projectURL and returns a client authenticating with apiKey.
func New(projectURL, apiKey string, opt Options) (*Client, error) {
	if err := ValidateProjectURL(projectURL); err != nil {
		return nil, err
	}
	hc := opt.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: DefaultTimeout}
	}
	return &Client{
		projectURL: strings.TrimRight(projectURL, "/"),
		apiKey:     apiKey,
		http:       hc,
		log:        logging.OrNop(opt.Logger),
	}, nil
}

// ProjectURL returns the project URL without a trailing slash.
func (c *Client) ProjectURL() string { return c.projectURL }

type response struct {
	header http.Header
	body   []byte
}

// get issues GET /rest/v1/<path>. Non-2xx responses become *StatusError.
func (c *Client) get(ctx context.Context, path string, query url.Values, header http.Header) (response, error) {
	u := c.projectURL + "/rest/v1/" + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return response{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Debug("postgrest request failed", zap.String("path", path), logging.Error(err))
		return response{}, fmt.Errorf("Failed to connect to Supabase project at %s: %w", c.projectURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return response{}, fmt.Errorf("read response: %w", err)
	}
	c.log.Debug("postgrest request",
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(body)),
		zap.Duration("elapsed", time.Since(start)),
	)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return response{}, &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	return response{header: resp.Header, body: body}, nil
}

// tableError maps a failure while reading table to the documented
// messages. Errors that already carry a kind pass through.
func tableError(err error, table string) error {
	var se *StatusError
	if errors.As(err, &se) {
		switch se.StatusCode {
		case http.StatusNotFound:
			return schema.NotFoundf("Table '%s' not found in Supabase project", table)
		case http.StatusUnauthorized:
			return schema.Connectivity(fmt.Sprintf("Authentication failed. Check that the API key is valid and has access to table '%s'", table), nil)
		case http.StatusForbidden:
			return schema.Connectivity(fmt.Sprintf("Access denied to table '%s'. Check Row Level Security (RLS) policies and API key permissions", table), nil)
		}
		se.Table = table
	}
	var typed *schema.Error
	if errors.As(err, &typed) {
		return err
	}
	return schema.Connectivity(fmt.Sprintf("Failed to analyze Supabase table '%s'", table), err)
}
