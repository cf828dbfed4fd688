// gateway.go implements the proxy gateway: one authenticated HTTP call against
// a resolved cluster's management API, with failures classified into the closed
// taxonomy in errors.go. The gateway is stateless between calls; the only
// shared state is the http.Client's normal connection pool.
package rabbit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rabbit-console/rabbit-console/internal/cluster"
	"github.com/rabbit-console/rabbit-console/internal/telemetry"
)

// maxReasonLength bounds raw upstream bodies carried into error reasons.
// Truncation lands on a rune boundary so the reason stays valid UTF-8.
const maxReasonLength = 200

// Gateway executes single management API calls.
type Gateway struct {
	client *http.Client
}

// NewGateway creates a Gateway whose calls are bounded by timeout. The timeout
// covers connect, TLS, request write, and response read; expiry is classified
// as unreachable like any other transport failure.
func NewGateway(timeout time.Duration) *Gateway {
	return &Gateway{
		client: &http.Client{Timeout: timeout},
	}
}

// Do performs one call against ep's management API and returns the raw
// response body. Credentials from ep are injected as HTTP basic auth and are
// held only for the duration of the call. Failed calls return a *ProxyError;
// no retry is attempted at this layer.
func (g *Gateway) Do(ctx context.Context, ep *cluster.Endpoint, method, path string, body any) ([]byte, error) {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, NewProxyError(KindUnclassified, 0, "failed to encode request body", err)
		}
		reqBody = bytes.NewReader(data)
	}

	url := strings.TrimRight(ep.BaseURL, "/") + path
	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return nil, NewProxyError(KindUnclassified, 0, "failed to create request", err)
	}
	req.SetBasicAuth(ep.Username, ep.Password)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := g.client.Do(req)
	telemetry.UpstreamCallDuration.WithLabelValues(ep.ClusterName).Observe(time.Since(start).Seconds())
	if err != nil {
		telemetry.UpstreamCallsTotal.WithLabelValues(ep.ClusterName, method, string(KindUnreachable)).Inc()
		// Timeouts, connection refusal, and DNS failures all surface here as a
		// *url.Error; the cluster is unreachable either way.
		return nil, NewProxyError(KindUnreachable, 0, "cluster is unreachable", err)
	}
	defer resp.Body.Close()

	respBody, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		telemetry.UpstreamCallsTotal.WithLabelValues(ep.ClusterName, method, string(KindUnreachable)).Inc()
		return nil, NewProxyError(KindUnreachable, 0, "failed to read upstream response", readErr)
	}

	if resp.StatusCode >= 400 {
		perr := classifyResponse(resp.StatusCode, respBody)
		telemetry.UpstreamCallsTotal.WithLabelValues(ep.ClusterName, method, string(perr.Kind)).Inc()
		return nil, perr
	}

	telemetry.UpstreamCallsTotal.WithLabelValues(ep.ClusterName, method, "ok").Inc()
	return respBody, nil
}

// classifyResponse maps an upstream error response onto the closed taxonomy.
// The management API reuses generic status codes for operationally distinct
// conditions, so the structured JSON error body ({"error","reason"}) is
// inspected first; plain-text matching is the fallback for older versions
// that return unstructured bodies.
func classifyResponse(status int, body []byte) *ProxyError {
	reason := extractReason(body)

	switch {
	case status == http.StatusUnauthorized:
		return NewProxyError(KindAuthenticationFailed, status, orDefault(reason, "invalid cluster credentials"), nil)
	case status == http.StatusForbidden:
		return NewProxyError(KindAuthorizationDenied, status, orDefault(reason, "insufficient cluster permissions"), nil)
	case status == http.StatusNotFound:
		// Some versions answer 404 with an access-refused reason for vhosts the
		// user cannot see. Prefer the structured reason for disambiguation.
		lower := strings.ToLower(reason)
		if strings.Contains(lower, "access") && strings.Contains(lower, "refused") {
			return NewProxyError(KindAuthorizationDenied, status, reason, nil)
		}
		return NewProxyError(KindNotFound, status, orDefault(reason, "resource not found"), nil)
	case status >= 500:
		return NewProxyError(KindUpstreamInternal, status, orDefault(reason, "upstream internal error"), nil)
	case status == http.StatusBadRequest || status == http.StatusPreconditionFailed:
		// Precondition failures (if-unused / if-empty deletes) come back as 400
		// with a structured reason; surface them unchanged as invalid input so
		// the caller sees exactly what the upstream rejected.
		return NewProxyError(KindInvalidInput, status, orDefault(reason, "upstream rejected request"), nil)
	default:
		return NewProxyError(KindUnclassified, status, orDefault(reason, fmt.Sprintf("unexpected upstream status %d", status)), nil)
	}
}

// extractReason pulls the human-readable reason from a structured upstream
// error body, falling back to the trimmed raw body.
func extractReason(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	var ue upstreamError
	if err := json.Unmarshal(body, &ue); err == nil {
		if ue.Reason != "" {
			return ue.Reason
		}
		if ue.Error != "" {
			return ue.Error
		}
	}
	s := strings.TrimSpace(string(body))
	if len(s) > maxReasonLength {
		cut := maxReasonLength
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		s = s[:cut]
	}
	return s
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
