package httpx

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/leejamie-42/online-store/internal/orders"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func testLog() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func TestWriteOrderError_StatusMapping(t *testing.T) {
	h := &OrdersHandler{Log: testLog()}

	cases := []struct {
		err  error
		want int
	}{
		{orders.ErrValidation, http.StatusUnprocessableEntity},
		{orders.ErrStockConflict, http.StatusConflict},
		{orders.ErrNotCancellable, http.StatusConflict},
		{orders.ErrNotFound, http.StatusNotFound},
		{errors.New("db down"), http.StatusBadGateway},
	}
	for _, c := range cases {
		rec := httptest.NewRecorder()
		h.writeOrderError(rec, c.err)
		assert.Equal(t, c.want, rec.Code, "error %v", c.err)
	}
}

func TestWriteOrderError_UnwrapsWrappedErrors(t *testing.T) {
	h := &OrdersHandler{Log: testLog()}
	rec := httptest.NewRecorder()

	h.writeOrderError(rec, errors.Join(errors.New("context"), orders.ErrStockConflict))

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestPaymentWebhook_RejectsUnknownStatus(t *testing.T) {
	// unknown statuses are rejected before the saga is touched
	h := &WebhooksHandler{Log: testLog()}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/payment",
		strings.NewReader(`{"orderId":"ord-1","paymentId":"pay-1","status":"SOMETHING_ELSE"}`))

	h.payment(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestPaymentWebhook_RequiresIdentity(t *testing.T) {
	h := &WebhooksHandler{Log: testLog()}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/payment",
		strings.NewReader(`{"status":"BPAY_PAYMENT_COMPLETED"}`))

	h.payment(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestDeliveryWebhook_RejectsUnknownEvent(t *testing.T) {
	h := &WebhooksHandler{Log: testLog()}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/delivery",
		strings.NewReader(`{"shipmentId":"ship-1","event":"TELEPORTED"}`))

	h.delivery(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestDeliveryWebhook_RejectsMissingShipment(t *testing.T) {
	h := &WebhooksHandler{Log: testLog()}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/delivery",
		strings.NewReader(`{"event":"PICKED_UP"}`))

	h.delivery(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}
