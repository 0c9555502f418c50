// Package aicore is a typed HTTP client for the SAP AI Core control
// plane: deployment listing and resource group listing.
package aicore

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/sap-samples/ai-core-gateway/internal/config"
	"github.com/sap-samples/ai-core-gateway/internal/gatewayerr"
	"github.com/sap-samples/ai-core-gateway/internal/token"
)

// Client talks to the AI Core control plane using bearer tokens sourced
// from a token.Cache.
type Client struct {
	baseURL       string
	resourceGroup string
	tokens        *token.Cache
	httpClient    *http.Client
}

// ClientOption customizes a Client built with NewClient.
type ClientOption func(*Client)

// WithHTTPClient overrides the underlying *http.Client (e.g. for tests).
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient builds an AI Core client from resolved config and a shared
// token cache.
func NewClient(cred config.Credentials, tokens *token.Cache, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:       cred.AICoreAPIURL,
		resourceGroup: cred.ResourceGroup,
		tokens:        tokens,
		httpClient:    &http.Client{Timeout: config.DefaultDialTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListDeployments returns every deployment in resourceGroup (or the
// client's configured default when resourceGroup is empty).
func (c *Client) ListDeployments(ctx context.Context, resourceGroup string) ([]Deployment, error) {
	if resourceGroup == "" {
		resourceGroup = c.resourceGroup
	}

	var out deploymentsResponse
	if err := c.get(ctx, "/v2/lm/deployments", resourceGroup, &out); err != nil {
		return nil, err
	}

	deployments := make([]Deployment, 0, len(out.Resources))
	for _, d := range out.Resources {
		deployments = append(deployments, d.toDeployment())
	}
	return deployments, nil
}

// ListResourceGroups returns every resource group identifier visible to
// the configured credentials.
func (c *Client) ListResourceGroups(ctx context.Context) ([]string, error) {
	var out resourceGroupsResponse
	if err := c.get(ctx, "/v2/admin/resourceGroups", "", &out); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(out.Resources))
	for _, rg := range out.Resources {
		ids = append(ids, rg.ResourceGroupID)
	}
	return ids, nil
}

// get issues a control-plane GET, retrying exactly once (with a forced
// token refresh) if the first attempt comes back 401 — the same
// invalidate-and-retry contract the Proxy Engine applies to upstream
// model requests.
func (c *Client) get(ctx context.Context, path, resourceGroup string, dst any) error {
	status, body, err := c.doGet(ctx, path, resourceGroup)
	if err != nil {
		return err
	}
	if status == http.StatusUnauthorized {
		c.tokens.Invalidate()
		status, body, err = c.doGet(ctx, path, resourceGroup)
		if err != nil {
			return err
		}
	}

	switch {
	case status == http.StatusUnauthorized:
		return gatewayerr.Auth(fmt.Sprintf("ai core rejected token for %s", path), nil)
	case status >= 500:
		return gatewayerr.UpstreamTransient(fmt.Sprintf("ai core returned %d for %s", status, path), nil)
	case status >= 400:
		return gatewayerr.UpstreamMalformed(fmt.Sprintf("ai core returned %d for %s", status, path), nil)
	}

	if err := json.Unmarshal(body, dst); err != nil {
		return gatewayerr.UpstreamMalformed(fmt.Sprintf("ai core response for %s did not match expected shape", path), err)
	}
	return nil
}

func (c *Client) doGet(ctx context.Context, path, resourceGroup string) (int, []byte, error) {
	tok, err := c.tokens.GetToken(ctx)
	if err != nil {
		return 0, nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return 0, nil, gatewayerr.UpstreamTransient("building ai core request", err)
	}
	req.Header.Set("Authorization", "Bearer "+tok.AccessToken)
	if resourceGroup != "" {
		req.Header.Set("ai-resource-group", resourceGroup)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, gatewayerr.UpstreamTransient(fmt.Sprintf("ai core request to %s failed", path), err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return 0, nil, gatewayerr.UpstreamTransient("reading ai core response", err)
	}
	return resp.StatusCode, body, nil
}
