package callable

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/goccy/go-json"
)

// Client invokes callable operations by name.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient builds a client for baseURL. Calls are bounded only by their context; a nil
// httpClient gets one with no timeout of its own.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

type responseEnvelope struct {
	Result json.RawMessage `json:"result"`
	Error  *errorBody      `json:"error"`
}

// Call invokes the operation name with data as input and decodes the result into out.
// idToken may be empty for unauthenticated calls. Failures reported by the server are
// returned as *Error.
func (c *Client) Call(ctx context.Context, name, idToken string, data, out interface{}) error {
	if data == nil {
		data = struct{}{}
	}
	body, err := json.Marshal(map[string]interface{}{"data": data})
	if err != nil {
		return fmt.Errorf("encode %s request: %w", name, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+name, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build %s request: %w", name, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if idToken != "" {
		req.Header.Set("Authorization", "Bearer "+idToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("call %s: %w", name, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s response: %w", name, err)
	}

	var env responseEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		if resp.StatusCode != http.StatusOK {
			return Errorf(CodeInternal, "%s failed with status %d: %s", name, resp.StatusCode, strings.TrimSpace(string(raw)))
		}
		return fmt.Errorf("decode %s response: %w", name, err)
	}
	if env.Error != nil {
		return NewError(CodeFromStatus(env.Error.Status), env.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return Errorf(CodeInternal, "%s failed with status %d", name, resp.StatusCode)
	}
	if out == nil || len(env.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return fmt.Errorf("decode %s result: %w", name, err)
	}
	return nil
}
