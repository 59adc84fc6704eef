package inventory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Client is the store-side view of the stock RPC. Infrastructure
// failures (unreachable warehouse, non-2xx) come back as errors so the
// orchestrator can branch to compensation; domain outcomes ride in the
// response structs.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		HTTP:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) CheckStock(ctx context.Context, req CheckStockRequest) (CheckStockResponse, error) {
	var resp CheckStockResponse
	err := c.post(ctx, "/rpc/check-stock", req, &resp)
	return resp, err
}

func (c *Client) ReserveStock(ctx context.Context, req ReserveStockRequest) (ReserveStockResponse, error) {
	var resp ReserveStockResponse
	err := c.post(ctx, "/rpc/reserve-stock", req, &resp)
	return resp, err
}

func (c *Client) CommitStock(ctx context.Context, req CommitStockRequest) (CommitStockResponse, error) {
	var resp CommitStockResponse
	err := c.post(ctx, "/rpc/commit-stock", req, &resp)
	return resp, err
}

func (c *Client) RollbackStock(ctx context.Context, req RollbackStockRequest) (RollbackStockResponse, error) {
	var resp RollbackStockResponse
	err := c.post(ctx, "/rpc/rollback-stock", req, &resp)
	return resp, err
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("warehouse rpc %s: %w", path, err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("warehouse rpc %s: status %d", path, res.StatusCode)
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("warehouse rpc %s: decode: %w", path, err)
	}
	return nil
}
