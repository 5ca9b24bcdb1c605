// Package labclient implements the HTTP client for the external lab
// management backend. Every call goes through the same-origin proxy shape
// ({path, method, body} plus the `x-user-email` header); the client mints a
// bearer token per request so the upstream can authorize the hop.
package labclient // import "github.com/splunklabhq/splunklab/backend/services/labclient"

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/splunklabhq/splunklab/backend/services/auth"
	"github.com/splunklabhq/splunklab/backend/services/types"
	"github.com/splunklabhq/splunklab/backend/services/utils"
)

// Client talks to the lab backend. It is safe for concurrent use.
type Client struct {
	// BaseURL is the lab backend's root URL, without a trailing slash.
	BaseURL string

	// SigningSecret signs the per-request bearer tokens. Shared with the
	// backend.
	SigningSecret string

	// HTTPClient is the underlying transport. Initialize sets a default
	// with a transport-level timeout; the dashboard itself specifies no
	// per-request timeout.
	HTTPClient *http.Client
}

// Initialize validates the client configuration and sets transport defaults.
func (c *Client) Initialize() error {
	if c.BaseURL == "" {
		return utils.MakeError("lab backend base URL is empty")
	}
	if c.SigningSecret == "" {
		return utils.MakeError("lab backend signing secret is empty")
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	return nil
}

// do forwards one proxy-shaped request upstream on behalf of the given user
// and decodes the JSON response into out (when out is non-nil).
func (c *Client) do(ctx context.Context, email types.UserEmail, preq proxyRequest, out interface{}) error {
	var bodyReader io.Reader
	if preq.Body != nil {
		raw, err := json.Marshal(preq.Body)
		if err != nil {
			return utils.MakeError("couldn't marshal request body for %s: %s", preq.Path, err)
		}
		bodyReader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, preq.Method, c.BaseURL+preq.Path, bodyReader)
	if err != nil {
		return utils.MakeError("couldn't create request for %s: %s", preq.Path, err)
	}

	token, err := auth.MintProxyToken(email, c.SigningSecret)
	if err != nil {
		return utils.MakeError("couldn't mint bearer for %s: %s", preq.Path, err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-user-email", string(email))
	req.Header.Set("Authorization", "Bearer "+string(token))
	// Lets the upstream correlate its logs with ours.
	req.Header.Set("x-request-id", utils.RandHex(8))

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return utils.MakeError("request to %s failed: %s", preq.Path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return utils.MakeError("couldn't read response from %s: %s", preq.Path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return utils.MakeError("request to %s returned status %v: %s", preq.Path, resp.StatusCode, string(raw))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return utils.MakeError("couldn't unmarshal response from %s: %s", preq.Path, err)
	}

	return nil
}
