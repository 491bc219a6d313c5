package fnrpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync/atomic"
)

// Client calls JSON-RPC methods on a server over HTTP POST.
type Client struct {
	url    string
	http   *http.Client
	nextID atomic.Uint64
}

// NewClient returns a client posting to url. A nil httpClient means
// http.DefaultClient.
func NewClient(url string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Client{
		url:  url,
		http: httpClient,
	}
}

// Call invokes method with params and decodes the result into result, which
// may be nil to discard it. An error object in the response is returned as
// *Error.
func (c *Client) Call(ctx context.Context, method string, params,
	result any) error {

	rawParams, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("unable to encode params: %w", err)
	}

	id := strconv.FormatUint(c.nextID.Add(1), 10)
	body, err := json.Marshal(&Request{
		JSONRPC: Version,
		ID:      json.RawMessage(id),
		Method:  method,
		Params:  rawParams,
	})
	if err != nil {
		return fmt.Errorf("unable to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, c.url, bytes.NewReader(body),
	)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	httpResp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("unable to call %v: %w", method, err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(
		httpResp.Body, DefaultMaxRequestSize,
	))
	if err != nil {
		return fmt.Errorf("unable to read response: %w", err)
	}
	if httpResp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected http status %v: %s",
			httpResp.Status, bytes.TrimSpace(respBody))
	}

	var resp Response
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return fmt.Errorf("unable to decode response: %w", err)
	}
	if resp.Error != nil {
		return resp.Error
	}
	if string(resp.ID) != id {
		return fmt.Errorf("response id %s does not match request "+
			"id %s", resp.ID, id)
	}

	if result == nil {
		return nil
	}

	return json.Unmarshal(resp.Result, result)
}
