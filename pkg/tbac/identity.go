// Package tbac implements the task-based access control gate: a
// bidirectional token exchange with an identity service establishing that
// the calling agent may send messages here and that this service may
// answer it.
package tbac

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/outshift/triagent/pkg/httpclient"
)

// IdentityClient is the subset of the identity service used by the gate.
// One client acts on behalf of one principal, identified by its API key.
type IdentityClient interface {
	// AccessToken obtains a token scoped to the target service.
	AccessToken(ctx context.Context, targetServiceID string) (string, error)

	// Authorize verifies a token presented by a peer.
	Authorize(ctx context.Context, token string) (bool, error)
}

// identityClient talks to the identity service over HTTP. Exchanges are
// never retried; a failed exchange stays failed until the process
// restarts.
type identityClient struct {
	baseURL string
	apiKey  string
	http    *httpclient.Client
}

// NewIdentityClient creates a client for one principal.
func NewIdentityClient(baseURL, apiKey string, opts ...httpclient.Option) IdentityClient {
	opts = append([]httpclient.Option{httpclient.WithRetryStrategy(httpclient.NeverRetry)}, opts...)
	return &identityClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    httpclient.New(opts...),
	}
}

func (c *identityClient) AccessToken(ctx context.Context, targetServiceID string) (string, error) {
	var result struct {
		AccessToken string `json:"access_token"`
	}
	payload := map[string]string{"agentic_service_id": targetServiceID}
	if err := c.post(ctx, "/v1/access_token", payload, &result); err != nil {
		return "", err
	}
	if result.AccessToken == "" {
		return "", fmt.Errorf("identity service returned empty access token")
	}
	return result.AccessToken, nil
}

func (c *identityClient) Authorize(ctx context.Context, token string) (bool, error) {
	var result struct {
		Authorized bool `json:"authorized"`
	}
	payload := map[string]string{"token": token}
	if err := c.post(ctx, "/v1/authorize", payload, &result); err != nil {
		return false, err
	}
	return result.Authorized, nil
}

func (c *identityClient) post(ctx context.Context, path string, payload, result any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal identity payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build identity request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Api-Key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		if resp != nil {
			defer resp.Body.Close()
			msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
			return fmt.Errorf("identity service %s: HTTP %d: %s", path, resp.StatusCode, strings.TrimSpace(string(msg)))
		}
		return fmt.Errorf("identity service %s: %w", path, err)
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("identity service %s: malformed response: %w", path, err)
	}
	return nil
}
