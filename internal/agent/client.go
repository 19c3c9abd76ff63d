package agent

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-json-experiment/json"

	"agentdesk/internal/core"
)

const (
	statusPath = "/api/status"
	runPath    = "/api/agent/run"
)

// Client talks to the agent service over HTTP.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a client for the agent service at baseURL.
// Timeouts are left to the caller's context.
func NewClient(baseURL string, httpClient *http.Client) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("agent url is empty")
	}
	if httpClient == nil {
		httpClient = &http.Client{
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				TLSHandshakeTimeout: 10 * time.Second,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}
	return &Client{baseURL: baseURL, client: httpClient}, nil
}

// BaseURL returns the normalized service URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// FileURL joins the base URL and a server-relative file path.
func (c *Client) FileURL(path string) string {
	return c.baseURL + path
}

// Status calls GET /api/status and returns the response status code.
func (c *Client) Status(ctx context.Context) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+statusPath, nil)
	if err != nil {
		return 0, fmt.Errorf("create status request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

type runRequest struct {
	Task string `json:"task"`
}

type runFile struct {
	Path string `json:"path"`
	Name string `json:"name"`
	Size int64  `json:"size"`
}

type runResponse struct {
	Success   bool      `json:"success"`
	Task      string    `json:"task,omitempty"`
	Timestamp string    `json:"timestamp,omitempty"`
	Output    string    `json:"output,omitempty"`
	Files     []runFile `json:"files,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// Run calls POST /api/agent/run. A non-2xx answer is returned as
// *core.TransportError without reading the body.
func (c *Client) Run(ctx context.Context, task string) (*core.RunReply, error) {
	payload, err := json.Marshal(runRequest{Task: task})
	if err != nil {
		return nil, fmt.Errorf("encode run request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+runPath, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create run request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &core.TransportError{StatusCode: resp.StatusCode, StatusText: statusText(resp)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read run response: %w", err)
	}
	var out runResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode run response: %w", err)
	}
	return out.reply(), nil
}

func (r runResponse) reply() *core.RunReply {
	files := make([]core.GeneratedFile, 0, len(r.Files))
	for _, f := range r.Files {
		size := f.Size
		if size < 0 {
			size = 0
		}
		files = append(files, core.GeneratedFile{Name: f.Name, Size: size, Path: f.Path})
	}
	return &core.RunReply{
		Success:   r.Success,
		Task:      r.Task,
		Timestamp: r.Timestamp,
		Output:    r.Output,
		Files:     files,
		Error:     r.Error,
	}
}

// statusText extracts the reason phrase, e.g. "Internal Server Error" from "500 Internal Server Error".
func statusText(resp *http.Response) string {
	code := fmt.Sprintf("%d ", resp.StatusCode)
	if text := strings.TrimPrefix(resp.Status, code); text != resp.Status && text != "" {
		return text
	}
	return http.StatusText(resp.StatusCode)
}
