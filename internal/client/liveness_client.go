package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/streampulse/viewership-service/pkg/log"
)

const defaultLivenessTimeout = 8 * time.Second

// LivenessClient asks the ingest side whether a stream is currently
// live. Calls are bounded by a timeout; timeout or any failure reports
// not live rather than blocking the caller.
type LivenessClient struct {
	baseURL    string
	httpClient *http.Client
}

type livenessResponse struct {
	Live bool `json:"live"`
}

// NewLivenessClient creates a liveness probe client.
func NewLivenessClient(baseURL string, timeout time.Duration) *LivenessClient {
	if timeout <= 0 {
		timeout = defaultLivenessTimeout
	}
	return &LivenessClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// IsLive reports whether the stream is currently live.
func (c *LivenessClient) IsLive(ctx context.Context, streamID string) bool {
	l := log.Ctx(ctx)

	url := fmt.Sprintf("%s/streams/%s/status", c.baseURL, streamID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		l.Error().Err(err).Str(log.FieldStreamID, streamID).Msg("failed to create liveness request")
		return false
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		l.Warn().Err(err).Str(log.FieldStreamID, streamID).Msg("liveness probe failed")
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false
	}

	var body livenessResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		l.Warn().Err(err).Str(log.FieldStreamID, streamID).Msg("failed to decode liveness response")
		return false
	}
	return body.Live
}
