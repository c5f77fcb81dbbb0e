package postgrest

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"contractgen/internal/openapi"
	"contractgen/internal/schema"
)

const listPrefix = "Failed to list Supabase tables"

var openAPIAccept = http.Header{"Accept": {"application/openapi+json, application/json"}}

// Spec fetches the OpenAPI description of the exposed schema.
func (c *Client) Spec(ctx context.Context) (*openapi.Document, error) {
	resp, err := c.get(ctx, "", nil, openAPIAccept)
	if err != nil {
		return nil, err
	}
	return openapi.Parse(resp.body)
}

// ListTables returns the tables and views PostgREST exposes to the API
// key, sorted by name. RPC functions and nested paths are skipped.
func (c *Client) ListTables(ctx context.Context) ([]string, error) {
	doc, err := c.Spec(ctx)
	if err != nil {
		return nil, listError(err)
	}

	tables := []string{}
	for _, p := range doc.Paths() {
		if !strings.HasPrefix(p, "/") || strings.HasPrefix(p, "/rpc/") {
			continue
		}
		name := strings.TrimLeft(p, "/")
		if name == "" || strings.Contains(name, "/") {
			continue
		}
		tables = append(tables, name)
	}
	sort.Strings(tables)
	c.log.Debug("supabase tables listed", zap.Int("count", len(tables)))
	return tables, nil
}

func listError(err error) error {
	var se *StatusError
	if errors.As(err, &se) {
		switch se.StatusCode {
		case http.StatusUnauthorized:
			return schema.Connectivity(listPrefix+": Authentication failed. Check that the API key is valid", nil)
		case http.StatusForbidden:
			return schema.Connectivity(listPrefix+": Access denied. Check API key permissions", nil)
		}
		return schema.Connectivity(listPrefix+": HTTP "+strconv.Itoa(se.StatusCode), nil)
	}
	var typed *schema.Error
	if errors.As(err, &typed) {
		return &schema.Error{Kind: typed.Kind, Msg: listPrefix + ": " + typed.Error()}
	}
	return schema.Connectivity(listPrefix, err)
}
