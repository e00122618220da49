package publisher

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Request signing headers expected by the hosted push API.
const (
	headerPushKey       = "X-Push-Key"
	headerPushSignature = "X-Push-Signature"
)

const defaultPushTimeout = 8 * time.Second

// PushPublisher delivers events to a hosted pub/sub push API over HTTP.
// Each request body is signed with HMAC-SHA256 of the shared secret.
type PushPublisher struct {
	endpoint   string
	key        string
	secret     []byte
	httpClient *http.Client
}

// NewPushPublisher creates a publisher for the hosted push API.
func NewPushPublisher(cfg PushConfig) *PushPublisher {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultPushTimeout
	}
	return &PushPublisher{
		endpoint:   cfg.Endpoint,
		key:        cfg.Key,
		secret:     []byte(cfg.Secret),
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (p *PushPublisher) Publish(ctx context.Context, channel, event string, payload interface{}) error {
	e, err := NewEvent(event, channel, payload)
	if err != nil {
		return fmt.Errorf("failed to build event: %w", err)
	}

	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	url := fmt.Sprintf("%s/events", p.endpoint)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create push request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(headerPushKey, p.key)
	req.Header.Set(headerPushSignature, p.sign(body))

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("push request failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("push API returned status: %d", resp.StatusCode)
	}
	return nil
}

func (p *PushPublisher) sign(body []byte) string {
	mac := hmac.New(sha256.New, p.secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func (p *PushPublisher) Close() error {
	p.httpClient.CloseIdleConnections()
	return nil
}
