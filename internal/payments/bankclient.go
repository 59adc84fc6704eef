package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// BankClient is the synchronous side of the external processor: it
// accepts or rejects an instruction immediately. Completion arrives
// later through the payment webhook.
type BankClient interface {
	CreatePayment(ctx context.Context, orderID string, amountCents int) (bankRef string, err error)
	CreateRefund(ctx context.Context, bankRef, orderID string, amountCents int, reason string) error
}

type HTTPBankClient struct {
	BaseURL string
	HTTP    *http.Client
}

func NewBankClient(baseURL string) *HTTPBankClient {
	return &HTTPBankClient{BaseURL: baseURL, HTTP: &http.Client{Timeout: 10 * time.Second}}
}

type bankPaymentReq struct {
	OrderID     string `json:"order_id"`
	AmountCents int    `json:"amount_cents"`
}

type bankPaymentResp struct {
	PaymentID string `json:"payment_id"`
	Status    string `json:"status"`
}

type bankRefundReq struct {
	PaymentID   string `json:"payment_id"`
	OrderID     string `json:"order_id"`
	AmountCents int    `json:"amount_cents"`
	Reason      string `json:"reason"`
}

func (c *HTTPBankClient) CreatePayment(ctx context.Context, orderID string, amountCents int) (string, error) {
	var resp bankPaymentResp
	if err := c.post(ctx, "/api/payments", bankPaymentReq{OrderID: orderID, AmountCents: amountCents}, &resp); err != nil {
		return "", err
	}
	return resp.PaymentID, nil
}

func (c *HTTPBankClient) CreateRefund(ctx context.Context, bankRef, orderID string, amountCents int, reason string) error {
	return c.post(ctx, "/api/refunds", bankRefundReq{
		PaymentID: bankRef, OrderID: orderID, AmountCents: amountCents, Reason: reason,
	}, &struct{}{})
}

func (c *HTTPBankClient) post(ctx context.Context, path string, in, out any) error {
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
		return fmt.Errorf("bank rpc %s: %w", path, err)
	}
	defer res.Body.Close()

	if res.StatusCode >= 300 {
		return fmt.Errorf("bank rpc %s: status %d", path, res.StatusCode)
	}
	return json.NewDecoder(res.Body).Decode(out)
}
