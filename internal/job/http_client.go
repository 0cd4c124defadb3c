package job

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
)

const defaultTaskID = "gemini-generate"

// HTTPClient talks to a hosted task runner: jobs are triggered by task id
// and their runs are retrieved by handle.
type HTTPClient struct {
	BaseURL string
	APIKey  string
	TaskID  string
	HTTP    *http.Client
}

func NewHTTPClient(baseURL, apiKey, taskID string) *HTTPClient {
	if strings.TrimSpace(taskID) == "" {
		taskID = defaultTaskID
	}
	return &HTTPClient{
		BaseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		APIKey:  strings.TrimSpace(apiKey),
		TaskID:  taskID,
		HTTP:    &http.Client{Timeout: 30 * time.Second},
	}
}

type triggerBody struct {
	Payload Request `json:"payload"`
}

type runBody struct {
	ID     string  `json:"id"`
	Status string  `json:"status"`
	Output *Output `json:"output,omitempty"`
}

func (c *HTTPClient) Submit(ctx context.Context, req Request) (Handle, error) {
	if c == nil || c.BaseURL == "" {
		return Handle{}, &DispatchError{Reason: "task runner url is not configured"}
	}
	body, err := json.Marshal(triggerBody{Payload: req})
	if err != nil {
		return Handle{}, &DispatchError{Reason: "encode request", Err: err}
	}
	endpoint := c.BaseURL + "/api/v1/tasks/" + url.PathEscape(c.TaskID) + "/trigger"
	var out runBody
	if err := c.do(ctx, http.MethodPost, endpoint, body, &out); err != nil {
		return Handle{}, &DispatchError{Reason: "trigger " + c.TaskID, Err: err}
	}
	if strings.TrimSpace(out.ID) == "" {
		return Handle{}, &DispatchError{Reason: "task runner returned no run id"}
	}
	return Handle{ID: out.ID}, nil
}

func (c *HTTPClient) Status(ctx context.Context, h Handle) (StatusReport, error) {
	if c == nil || c.BaseURL == "" {
		return StatusReport{}, fmt.Errorf("task runner url is not configured")
	}
	endpoint := c.BaseURL + "/api/v3/runs/" + url.PathEscape(h.ID)
	var out runBody
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &out); err != nil {
		return StatusReport{}, err
	}
	status, ok := ParseStatus(out.Status)
	if !ok {
		return StatusReport{}, fmt.Errorf("unknown run status %q", out.Status)
	}
	return StatusReport{Status: status, Output: out.Output}, nil
}

func (c *HTTPClient) do(ctx context.Context, method, endpoint string, body []byte, out any) error {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}
	client := c.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s: status %d: %s", method, endpoint, resp.StatusCode, redactMedia(strings.TrimSpace(string(raw))))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
