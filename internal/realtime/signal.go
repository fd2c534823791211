package realtime

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/voxline/voxline/internal/reliability"
)

// SignalClient exchanges WebRTC SDP with the realtime endpoint over HTTPS.
// The endpoint answers a complete offer in one round trip; there is no
// trickle ICE on the remote side.
type SignalClient struct {
	APIKey   string
	CallsURL string
	Model    string
	HTTP     *http.Client
}

func (c *SignalClient) httpClient() *http.Client {
	if c.HTTP != nil {
		return c.HTTP
	}
	return &http.Client{Timeout: 10 * time.Second}
}

// ExchangeSDP posts an SDP offer and returns the endpoint's SDP answer.
func (c *SignalClient) ExchangeSDP(ctx context.Context, offerSDP string) (string, error) {
	u := c.CallsURL
	if c.Model != "" {
		sep := "?"
		if strings.Contains(u, "?") {
			sep = "&"
		}
		u = u + sep + "model=" + c.Model
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, strings.NewReader(offerSDP))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Content-Type", "application/sdp")

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return "", fmt.Errorf("sdp exchange: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read sdp answer: %w", err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("sdp exchange status %d (retryable=%v): %s",
			resp.StatusCode, reliability.IsRetryableHTTPStatus(resp.StatusCode), strings.TrimSpace(string(body)))
	}
	return string(body), nil
}
