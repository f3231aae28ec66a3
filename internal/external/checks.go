// internal/external/checks.go
package external

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"licence-service/internal/common/logger"
)

// CheckClient calls the external verification gateway. Every failure mode
// (transport error, non-2xx, undecodable body) is fail-closed: the check
// reports false and the scheduler's retry policy decides whether to re-run.
type CheckClient struct {
	httpClient *http.Client
	baseURL    string
	logger     logger.Logger
}

type checkResponse struct {
	Passed  bool   `json:"passed"`
	Message string `json:"message,omitempty"`
}

func NewCheckClient(baseURL string, timeout time.Duration, log logger.Logger) *CheckClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &CheckClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		logger:     log.WithFields(map[string]interface{}{"component": "external-checks"}),
	}
}

// CheckAuthority runs the legal-record check for the identity code.
func (c *CheckClient) CheckAuthority(ctx context.Context, iin string) bool {
	return c.check(ctx, "authority", iin)
}

// CheckMedical runs the medical-fitness check for the identity code.
func (c *CheckClient) CheckMedical(ctx context.Context, iin string) bool {
	return c.check(ctx, "medical", iin)
}

func (c *CheckClient) check(ctx context.Context, kind, iin string) bool {
	endpoint := fmt.Sprintf("%s/api/%s/check?iin=%s", c.baseURL, kind, url.QueryEscape(iin))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		c.logger.Error("check request build failed", map[string]interface{}{
			"check": kind,
			"error": err.Error(),
		})
		return false
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("check call failed", map[string]interface{}{
			"check": kind,
			"error": err.Error(),
		})
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn("check returned non-success status", map[string]interface{}{
			"check":  kind,
			"status": resp.StatusCode,
		})
		return false
	}

	var result checkResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		c.logger.Error("check response decode failed", map[string]interface{}{
			"check": kind,
			"error": err.Error(),
		})
		return false
	}

	c.logger.Info("check completed", map[string]interface{}{
		"check":  kind,
		"passed": result.Passed,
	})
	return result.Passed
}
