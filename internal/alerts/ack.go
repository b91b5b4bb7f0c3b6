package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	phmerrors "github.com/vibesense/phmwatch/internal/errors"
)

// DefaultAcknowledgedBy is sent when no operator name is configured.
const DefaultAcknowledgedBy = "user"

// HTTPAcknowledger acknowledges alerts through the backend REST API:
// POST {BaseURL}/api/alerts/acknowledge/{id}.
type HTTPAcknowledger struct {
	BaseURL        string
	AcknowledgedBy string
	Client         *http.Client
}

// NewHTTPAcknowledger returns an acknowledger with a bounded request timeout.
func NewHTTPAcknowledger(baseURL, acknowledgedBy string, timeout time.Duration) *HTTPAcknowledger {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPAcknowledger{
		BaseURL:        baseURL,
		AcknowledgedBy: acknowledgedBy,
		Client:         &http.Client{Timeout: timeout},
	}
}

type ackRequest struct {
	AcknowledgedBy string `json:"acknowledged_by"`
}

// Endpoint returns the acknowledgement URL for id.
func (h *HTTPAcknowledger) Endpoint(id string) string {
	return strings.TrimSuffix(h.BaseURL, "/") + "/api/alerts/acknowledge/" + url.PathEscape(id)
}

// Acknowledge implements Acknowledger. Any 2xx response is success.
func (h *HTTPAcknowledger) Acknowledge(ctx context.Context, id string) error {
	if id == "" {
		return phmerrors.New(phmerrors.ErrAck, "Cannot acknowledge an alert without an id", "")
	}

	who := h.AcknowledgedBy
	if who == "" {
		who = DefaultAcknowledgedBy
	}
	body, err := json.Marshal(ackRequest{AcknowledgedBy: who})
	if err != nil {
		return phmerrors.WrapWithCode(err, phmerrors.ErrAck, "Cannot encode acknowledgement", "")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.Endpoint(id), bytes.NewReader(body))
	if err != nil {
		return phmerrors.WrapWithCode(err, phmerrors.ErrAck,
			fmt.Sprintf("Invalid acknowledgement URL %q", h.Endpoint(id)),
			"Check server.api_base in the config file")
	}
	req.Header.Set("Content-Type", "application/json")

	client := h.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return phmerrors.WrapWithCode(err, phmerrors.ErrAck,
			fmt.Sprintf("Failed to acknowledge alert %s", id),
			"Check that the backend API is reachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return phmerrors.New(phmerrors.ErrAck,
			fmt.Sprintf("Backend rejected acknowledgement of alert %s: %s", id, resp.Status),
			strings.TrimSpace(string(snippet)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
