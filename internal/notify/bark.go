package notify

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-json-experiment/json"
)

const barkGroup = "agentdesk"

// BarkNotifier pushes to a Bark device URL such as https://api.day.app/<key>.
type BarkNotifier struct {
	deviceURL string
	client    *http.Client
}

type barkPush struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Group string `json:"group"`
	Level string `json:"level,omitempty"`
}

// NewBarkNotifier validates the device URL.
func NewBarkNotifier(deviceURL string) (*BarkNotifier, error) {
	deviceURL = strings.TrimRight(strings.TrimSpace(deviceURL), "/")
	if !strings.HasPrefix(deviceURL, "http://") && !strings.HasPrefix(deviceURL, "https://") {
		return nil, fmt.Errorf("bark url must be an http(s) device URL, got %q", deviceURL)
	}
	return &BarkNotifier{deviceURL: deviceURL, client: &http.Client{Timeout: 10 * time.Second}}, nil
}

func (b *BarkNotifier) Send(ctx context.Context, title, body string) error {
	payload, err := json.Marshal(barkPush{Title: title, Body: body, Group: barkGroup, Level: "active"})
	if err != nil {
		return fmt.Errorf("encode bark push: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.deviceURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create bark request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("send bark push: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		return fmt.Errorf("bark answered %s", resp.Status)
	}
	return nil
}
