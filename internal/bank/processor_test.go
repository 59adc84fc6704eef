package bank

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func frozenProcessor(delay time.Duration) (*Processor, *time.Time) {
	p := NewProcessor(delay)
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return now }
	return p, &now
}

func TestAcceptPayment_IdempotentOnOrder(t *testing.T) {
	p, _ := frozenProcessor(time.Second)

	first := p.AcceptPayment("ord-1", 5000)
	second := p.AcceptPayment("ord-1", 5000)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "PROCESSING", second.Status)
}

func TestDuePayments_OnlyAfterDelay(t *testing.T) {
	p, now := frozenProcessor(3 * time.Second)
	p.AcceptPayment("ord-1", 5000)

	assert.Empty(t, p.DuePayments())

	*now = now.Add(3 * time.Second)
	due := p.DuePayments()
	require.Len(t, due, 1)
	assert.Equal(t, "ord-1", due[0].OrderID)
}

func TestSettlePayment_RemovesFromDue(t *testing.T) {
	p, now := frozenProcessor(time.Second)
	ins := p.AcceptPayment("ord-1", 5000)
	*now = now.Add(time.Second)

	p.SettlePayment(ins.ID)

	assert.Empty(t, p.DuePayments())
}

func TestAcceptRefund_UnknownPayment(t *testing.T) {
	p, _ := frozenProcessor(time.Second)

	_, err := p.AcceptRefund("pay-missing", "ord-1", 5000, "ORDER_CANCELLED")

	assert.ErrorIs(t, err, ErrUnknownPayment)
}

func TestAcceptRefund_RequiresSettledPayment(t *testing.T) {
	p, _ := frozenProcessor(time.Second)
	ins := p.AcceptPayment("ord-1", 5000)

	_, err := p.AcceptRefund(ins.ID, "ord-1", 5000, "ORDER_CANCELLED")

	assert.ErrorIs(t, err, ErrNotSettled)
}

func TestAcceptRefund_OnePerPayment(t *testing.T) {
	p, _ := frozenProcessor(time.Second)
	ins := p.AcceptPayment("ord-1", 5000)
	p.SettlePayment(ins.ID)

	_, err := p.AcceptRefund(ins.ID, "ord-1", 5000, "ORDER_CANCELLED")
	require.NoError(t, err)

	_, err = p.AcceptRefund(ins.ID, "ord-1", 5000, "ORDER_CANCELLED")
	assert.ErrorIs(t, err, ErrRefundExists)
}

func TestRefundLifecycle_DueThenSettled(t *testing.T) {
	p, now := frozenProcessor(2 * time.Second)
	ins := p.AcceptPayment("ord-1", 5000)
	p.SettlePayment(ins.ID)

	rf, err := p.AcceptRefund(ins.ID, "ord-1", 5000, "SHIPMENT_LOST")
	require.NoError(t, err)
	assert.Empty(t, p.DueRefunds())

	*now = now.Add(2 * time.Second)
	due := p.DueRefunds()
	require.Len(t, due, 1)
	assert.Equal(t, rf.ID, due[0].ID)

	p.SettleRefund(ins.ID)
	assert.Empty(t, p.DueRefunds())
}
