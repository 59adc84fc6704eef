package shipping

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Client requests one shipment leg from the delivery tracker per
// delivery package returned by commitStock.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{BaseURL: baseURL, HTTP: &http.Client{Timeout: 10 * time.Second}}
}

// ShipmentID is chosen by the store so a retried request creates the
// same shipment instead of a second one.
type CreateShipmentRequest struct {
	ShipmentID       string `json:"shipment_id"`
	OrderID          string `json:"order_id"`
	WarehouseAddress string `json:"warehouse_address"`
	ProductID        string `json:"product_id"`
	Quantity         int    `json:"quantity"`
}

type CreateShipmentResponse struct {
	ShipmentID string `json:"shipment_id"`
	Status     string `json:"status"`
}

func (c *Client) CreateShipment(ctx context.Context, req CreateShipmentRequest) (CreateShipmentResponse, error) {
	var resp CreateShipmentResponse
	body, err := json.Marshal(req)
	if err != nil {
		return resp, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/shipments", bytes.NewReader(body))
	if err != nil {
		return resp, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	res, err := c.HTTP.Do(httpReq)
	if err != nil {
		return resp, fmt.Errorf("delivery rpc: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode >= 300 {
		return resp, fmt.Errorf("delivery rpc: status %d", res.StatusCode)
	}
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		return resp, fmt.Errorf("delivery rpc: decode: %w", err)
	}
	return resp, nil
}
