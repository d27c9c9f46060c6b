package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const defaultTimeout = 30 * time.Second

// PoyoClient implements Gateway against the Poyo generation API.
type PoyoClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewPoyoClient returns a Poyo gateway client. timeout bounds every request;
// zero means the default.
func NewPoyoClient(baseURL, apiKey string, timeout time.Duration) *PoyoClient {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &PoyoClient{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// envelope is the Poyo response wrapper: code 200 means success, anything
// else carries an error message.
type envelope struct {
	Code    int             `json:"code"`
	Success bool            `json:"success"`
	Msg     string          `json:"msg"`
	Data    json.RawMessage `json:"data"`
	Err     *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (e *envelope) errorMessage(fallback string) string {
	if e.Err != nil && e.Err.Message != "" {
		return e.Err.Message
	}
	if e.Msg != "" {
		return e.Msg
	}
	return fallback
}

func (c *PoyoClient) do(ctx context.Context, op, method, path string, body any) (*envelope, error) {
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal %s request: %w", op, err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &Error{Op: op, Message: err.Error()}
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, &Error{Op: op, Message: fmt.Sprintf("invalid response (HTTP %d)", resp.StatusCode)}
	}
	return &env, nil
}

// Submit starts a generation task.
func (c *PoyoClient) Submit(ctx context.Context, model string, params json.RawMessage) (string, error) {
	env, err := c.do(ctx, "submit", http.MethodPost, "/api/generate/submit", map[string]any{
		"model": model,
		"input": params,
	})
	if err != nil {
		return "", err
	}
	if env.Code != 200 {
		return "", &Error{Op: "submit", Message: env.errorMessage("task submission rejected")}
	}
	var data struct {
		TaskID string `json:"task_id"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil || data.TaskID == "" {
		return "", &Error{Op: "submit", Message: "response missing task_id"}
	}
	return data.TaskID, nil
}

// poyoFile is one output artifact in a finished task.
type poyoFile struct {
	FileType string `json:"file_type"`
	FileURL  string `json:"file_url"`
}

// PollStatus reports the current state of a task.
func (c *PoyoClient) PollStatus(ctx context.Context, taskID string) (*Status, error) {
	env, err := c.do(ctx, "poll", http.MethodGet, "/api/generate/status/"+taskID, nil)
	if err != nil {
		return nil, err
	}
	if env.Code != 200 {
		return nil, &Error{Op: "poll", Message: env.errorMessage("status check rejected")}
	}
	var data struct {
		Status       string     `json:"status"`
		Progress     int        `json:"progress"`
		ErrorMessage string     `json:"error_message"`
		Files        []poyoFile `json:"files"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, &Error{Op: "poll", Message: "malformed status payload"}
	}

	st := &Status{Progress: data.Progress, ErrorMessage: data.ErrorMessage}
	switch data.Status {
	case "finished":
		st.State = StateFinished
		st.OutputURL = pickMediaURL(data.Files)
	case "failed":
		st.State = StateFailed
	default:
		st.State = StatePending
	}
	return st, nil
}

// pickMediaURL prefers the first video or image artifact, then falls back to
// the first file of any type.
func pickMediaURL(files []poyoFile) string {
	for _, f := range files {
		if f.FileType == "video" || f.FileType == "image" {
			return f.FileURL
		}
	}
	if len(files) > 0 {
		return files[0].FileURL
	}
	return ""
}

// UploadReferenceAsset copies a caller-supplied asset URL into the provider.
func (c *PoyoClient) UploadReferenceAsset(ctx context.Context, fileURL string) (string, error) {
	env, err := c.do(ctx, "upload", http.MethodPost, "/api/common/upload/url", map[string]any{
		"file_url": fileURL,
	})
	if err != nil {
		return "", err
	}
	if env.Code != 200 || !env.Success {
		return "", &Error{Op: "upload", Message: env.errorMessage("reference upload rejected")}
	}
	var data struct {
		FileURL string `json:"file_url"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil || data.FileURL == "" {
		return "", &Error{Op: "upload", Message: "response missing file_url"}
	}
	return data.FileURL, nil
}

var _ Gateway = (*PoyoClient)(nil)
