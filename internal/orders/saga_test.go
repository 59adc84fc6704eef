package orders

import (
	"context"
	"errors"
	"testing"

	"github.com/leejamie-42/online-store/internal/inventory"
	"github.com/leejamie-42/online-store/internal/payments"
	"github.com/leejamie-42/online-store/internal/shipping"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sagaFixture struct {
	saga      *Saga
	orders    *fakeOrders
	warehouse *fakeWarehouse
	payments  *fakePayments
	legs      *fakeLegs
	delivery  *fakeDelivery
	guard     *fakeGuard
	emails    *fakePublisher
	refunds   *fakePublisher
	rollbacks *fakePublisher
}

func newSagaFixture() *sagaFixture {
	f := &sagaFixture{
		orders: newFakeOrders(),
		warehouse: &fakeWarehouse{
			ReserveRes:  inventory.ReserveStockResponse{Success: true, ReservedFromWarehouses: []string{"wh-east"}},
			CommitRes:   inventory.CommitStockResponse{Success: true},
			RollbackRes: inventory.RollbackStockResponse{RolledBack: true},
		},
		payments:  &fakePayments{},
		legs:      newFakeLegs(),
		delivery:  &fakeDelivery{},
		guard:     newFakeGuard(),
		emails:    &fakePublisher{},
		refunds:   &fakePublisher{},
		rollbacks: &fakePublisher{},
	}
	f.orders.products["prod-keyboard"] = Product{
		ID: "prod-keyboard", Name: "Keyboard", PriceCents: 2500, Stock: 150, Published: true,
	}
	f.saga = &Saga{
		Orders:      f.orders,
		Warehouse:   f.warehouse,
		Payments:    f.payments,
		Legs:        f.legs,
		Delivery:    f.delivery,
		Guard:       f.guard,
		RollbackPub: f.rollbacks,
		RefundPub:   f.refunds,
		EmailPub:    f.emails,
		ServiceName: "store",
		Log:         testLog(),
	}
	return f
}

var testShipping = ShippingInfo{Name: "Jamie Lee", Address: "1 Harbor St", Phone: "555-0100"}

func (f *sagaFixture) placeOrder(t *testing.T) Order {
	t.Helper()
	o, err := f.saga.CreateOrder(context.Background(), "user-1", "prod-keyboard", 2, testShipping)
	require.NoError(t, err)
	return o
}

func TestCreateOrder_Success(t *testing.T) {
	f := newSagaFixture()

	o := f.placeOrder(t)

	assert.Equal(t, StatusPending, o.Status)
	assert.Equal(t, 5000, o.TotalCents)
	assert.Equal(t, 1, f.payments.CreateCalls)
	assert.Equal(t, 1, f.emails.count())
	assert.Equal(t, StatusPending, f.orders.status(o.ID))
}

func TestCreateOrder_RejectsInvalidInput(t *testing.T) {
	f := newSagaFixture()

	_, err := f.saga.CreateOrder(context.Background(), "user-1", "prod-keyboard", 0, testShipping)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.saga.CreateOrder(context.Background(), "user-1", "prod-unknown", 1, testShipping)
	assert.ErrorIs(t, err, ErrValidation)

	assert.Equal(t, 0, f.payments.CreateCalls)
}

func TestCreateOrder_InsufficientStock(t *testing.T) {
	f := newSagaFixture()
	f.warehouse.ReserveRes = inventory.ReserveStockResponse{Success: false, Message: "insufficient stock"}

	_, err := f.saga.CreateOrder(context.Background(), "user-1", "prod-keyboard", 9999, testShipping)

	assert.ErrorIs(t, err, ErrStockConflict)
	assert.Empty(t, f.orders.orders)
	assert.Equal(t, 0, f.payments.CreateCalls)
}

func TestCreateOrder_PaymentFailureCompensatesReservation(t *testing.T) {
	f := newSagaFixture()
	f.payments.CreateErr = errors.New("bank unreachable")

	_, err := f.saga.CreateOrder(context.Background(), "user-1", "prod-keyboard", 2, testShipping)

	require.Error(t, err)
	assert.Equal(t, 1, f.warehouse.rollbackCalls())
	// the parked row stays CANCELLED so nothing ships later
	for id := range f.orders.orders {
		assert.Equal(t, StatusCancelled, f.orders.status(id))
	}
	assert.Equal(t, 0, f.emails.count())
}

func TestCancelOrder_RunsBothCompensations(t *testing.T) {
	f := newSagaFixture()
	o := f.placeOrder(t)

	cancelled, err := f.saga.CancelOrder(context.Background(), o.ID, "user-1", "changed my mind")

	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, cancelled.Status)
	assert.Equal(t, StatusCancelled, f.orders.status(o.ID))
	assert.Equal(t, 1, f.payments.refundCalls())
	assert.Equal(t, 1, f.warehouse.rollbackCalls())
}

func TestCancelOrder_WrongUserLooksLikeNotFound(t *testing.T) {
	f := newSagaFixture()
	o := f.placeOrder(t)

	_, err := f.saga.CancelOrder(context.Background(), o.ID, "user-2", "")

	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, StatusPending, f.orders.status(o.ID))
}

func TestCancelOrder_TooLate(t *testing.T) {
	f := newSagaFixture()
	o := f.placeOrder(t)
	_, err := f.orders.Transition(context.Background(), o.ID, StatusProcessing)
	require.NoError(t, err)
	_, err = f.orders.Transition(context.Background(), o.ID, StatusPickedUp)
	require.NoError(t, err)

	_, err = f.saga.CancelOrder(context.Background(), o.ID, "user-1", "")

	assert.ErrorIs(t, err, ErrNotCancellable)
	assert.Equal(t, 0, f.payments.refundCalls())
	assert.Equal(t, 0, f.warehouse.rollbackCalls())
}

func TestCancelOrder_RefundFailureQueuesRetry(t *testing.T) {
	f := newSagaFixture()
	o := f.placeOrder(t)
	f.payments.RefundErr = errors.New("db down")

	_, err := f.saga.CancelOrder(context.Background(), o.ID, "user-1", "")

	require.NoError(t, err)
	assert.Equal(t, 1, f.refunds.count())
}

func TestCancelOrder_RollbackRPCFailureQueuesRetry(t *testing.T) {
	f := newSagaFixture()
	o := f.placeOrder(t)
	f.warehouse.RollbackErr = errors.New("warehouse unreachable")

	_, err := f.saga.CancelOrder(context.Background(), o.ID, "user-1", "")

	require.NoError(t, err)
	assert.Equal(t, 1, f.rollbacks.count())
}

func TestOnPaymentCompleted_CommitsAndRequestsShipments(t *testing.T) {
	f := newSagaFixture()
	o := f.placeOrder(t)
	f.warehouse.CommitRes = inventory.CommitStockResponse{
		Success: true,
		DeliveryPackages: []inventory.DeliveryPackage{
			{WarehouseAddress: "12 East Dock Rd", ProductID: "prod-keyboard", Quantity: 100},
			{WarehouseAddress: "7 North Yard Ave", ProductID: "prod-keyboard", Quantity: 20},
		},
	}

	err := f.saga.OnPaymentCompleted(context.Background(), "pay-1:BPAY_PAYMENT_COMPLETED", o.ID)

	require.NoError(t, err)
	assert.Equal(t, 1, f.warehouse.CommitCalls)
	assert.Equal(t, StatusProcessing, f.orders.status(o.ID))
	require.Len(t, f.delivery.Requests, 2)
	legs, _ := f.legs.LegsByOrder(context.Background(), o.ID)
	assert.Len(t, legs, 2)
	// the leg row and the tracker share an id, so webhooks address legs directly
	for _, req := range f.delivery.Requests {
		assert.NotEmpty(t, req.ShipmentID)
		assert.Equal(t, o.ID, req.OrderID)
	}
}

func TestOnPaymentCompleted_DuplicateWebhookIsAbsorbed(t *testing.T) {
	f := newSagaFixture()
	o := f.placeOrder(t)
	eventID := "pay-1:BPAY_PAYMENT_COMPLETED"

	require.NoError(t, f.saga.OnPaymentCompleted(context.Background(), eventID, o.ID))
	require.NoError(t, f.saga.OnPaymentCompleted(context.Background(), eventID, o.ID))

	assert.Equal(t, 1, f.warehouse.CommitCalls)
	assert.Equal(t, 1, f.payments.CompletedCalls)
}

func TestOnPaymentCompleted_EarlyWebhookAsksForRetry(t *testing.T) {
	f := newSagaFixture()
	f.payments.CompletedErr = payments.ErrPaymentNotFound
	eventID := "pay-1:BPAY_PAYMENT_COMPLETED"

	err := f.saga.OnPaymentCompleted(context.Background(), eventID, "ord-not-yet-visible")

	assert.ErrorIs(t, err, ErrRetryLater)
	// marker released so the sender's retry is not treated as a duplicate
	assert.False(t, f.guard.marked(eventID))
}

func TestOnPaymentCompleted_CommitFailureReleasesMarker(t *testing.T) {
	f := newSagaFixture()
	o := f.placeOrder(t)
	f.warehouse.CommitErr = errors.New("warehouse unreachable")
	eventID := "pay-1:BPAY_PAYMENT_COMPLETED"

	err := f.saga.OnPaymentCompleted(context.Background(), eventID, o.ID)

	require.Error(t, err)
	assert.False(t, f.guard.marked(eventID))
}

func TestOnPaymentCompleted_LostRaceToCancelRefunds(t *testing.T) {
	f := newSagaFixture()
	o := f.placeOrder(t)
	_, err := f.orders.Transition(context.Background(), o.ID, StatusCancelled)
	require.NoError(t, err)

	err = f.saga.OnPaymentCompleted(context.Background(), "pay-1:BPAY_PAYMENT_COMPLETED", o.ID)

	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, f.orders.status(o.ID))
	assert.Equal(t, 1, f.payments.refundCalls())
	// committed stock is never restocked automatically
	assert.Equal(t, 0, f.warehouse.rollbackCalls())
}

func TestOnPaymentCompleted_StaleEventWithNoReservation(t *testing.T) {
	f := newSagaFixture()
	o := f.placeOrder(t)
	f.warehouse.CommitRes = inventory.CommitStockResponse{Success: false, Message: "No reservation found for order"}

	err := f.saga.OnPaymentCompleted(context.Background(), "pay-1:BPAY_PAYMENT_COMPLETED", o.ID)

	require.NoError(t, err)
	assert.Equal(t, StatusPending, f.orders.status(o.ID))
	assert.Empty(t, f.delivery.Requests)
}

func TestOnRefundCompleted_Duplicate(t *testing.T) {
	f := newSagaFixture()
	eventID := "pay-1:REFUND_COMPLETED"

	require.NoError(t, f.saga.OnRefundCompleted(context.Background(), eventID, "ord-1"))
	require.NoError(t, f.saga.OnRefundCompleted(context.Background(), eventID, "ord-1"))

	assert.Equal(t, 1, f.payments.RefundCompletedCalls)
}

func TestOnShipmentEvent_UnknownShipmentAsksForRetry(t *testing.T) {
	f := newSagaFixture()
	eventID := "ship-1:PICKED_UP"

	err := f.saga.OnShipmentEvent(context.Background(), eventID, "ship-1", shipping.LegPickedUp)

	assert.ErrorIs(t, err, ErrRetryLater)
	assert.False(t, f.guard.marked(eventID))
}

func TestOnShipmentEvent_AdvancesOrderWithLegs(t *testing.T) {
	f := newSagaFixture()
	o := f.placeOrder(t)
	_, err := f.orders.Transition(context.Background(), o.ID, StatusProcessing)
	require.NoError(t, err)
	f.legs.seed(shipping.Leg{ID: "leg-1", OrderID: o.ID, Status: shipping.LegProcessing})
	f.legs.seed(shipping.Leg{ID: "leg-2", OrderID: o.ID, Status: shipping.LegProcessing})

	err = f.saga.OnShipmentEvent(context.Background(), "leg-1:PICKED_UP", "leg-1", shipping.LegPickedUp)

	require.NoError(t, err)
	assert.Equal(t, StatusPickedUp, f.orders.status(o.ID))
}

func TestOnShipmentEvent_MissedWebhookStillAdvances(t *testing.T) {
	// the PICKED_UP event never arrives; IN_TRANSIT and DELIVERED must
	// still carry the leg and the order forward
	f := newSagaFixture()
	o := f.placeOrder(t)
	_, err := f.orders.Transition(context.Background(), o.ID, StatusProcessing)
	require.NoError(t, err)
	f.legs.seed(shipping.Leg{ID: "leg-1", OrderID: o.ID, Status: shipping.LegProcessing})

	err = f.saga.OnShipmentEvent(context.Background(), "leg-1:IN_TRANSIT", "leg-1", shipping.LegInTransit)
	require.NoError(t, err)

	legs, _ := f.legs.LegsByOrder(context.Background(), o.ID)
	assert.Equal(t, shipping.LegInTransit, legs[0].Status)
	assert.Equal(t, StatusDelivering, f.orders.status(o.ID))

	err = f.saga.OnShipmentEvent(context.Background(), "leg-1:DELIVERED", "leg-1", shipping.LegDelivered)
	require.NoError(t, err)
	assert.Equal(t, StatusDelivered, f.orders.status(o.ID))
}

func TestOnShipmentEvent_AllLegsDelivered(t *testing.T) {
	f := newSagaFixture()
	o := f.placeOrder(t)
	_, err := f.orders.Transition(context.Background(), o.ID, StatusProcessing)
	require.NoError(t, err)
	f.legs.seed(shipping.Leg{ID: "leg-1", OrderID: o.ID, Status: shipping.LegDelivered, Progress: 100})
	f.legs.seed(shipping.Leg{ID: "leg-2", OrderID: o.ID, Status: shipping.LegInTransit, Progress: 60})
	emailsBefore := f.emails.count()

	err = f.saga.OnShipmentEvent(context.Background(), "leg-2:DELIVERED", "leg-2", shipping.LegDelivered)

	require.NoError(t, err)
	assert.Equal(t, StatusDelivered, f.orders.status(o.ID))
	assert.Equal(t, emailsBefore+1, f.emails.count())
}

func TestOnShipmentEvent_LostLegCancelsAndCompensates(t *testing.T) {
	f := newSagaFixture()
	o := f.placeOrder(t)
	_, err := f.orders.Transition(context.Background(), o.ID, StatusProcessing)
	require.NoError(t, err)
	f.legs.seed(shipping.Leg{ID: "leg-1", OrderID: o.ID, Status: shipping.LegDelivered, Progress: 100})
	f.legs.seed(shipping.Leg{ID: "leg-2", OrderID: o.ID, Status: shipping.LegInTransit, Progress: 60})

	err = f.saga.OnShipmentEvent(context.Background(), "leg-2:LOST", "leg-2", shipping.LegLost)

	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, f.orders.status(o.ID))
	assert.Equal(t, 1, f.payments.refundCalls())
	assert.Equal(t, 1, f.warehouse.rollbackCalls())
}

func TestOnShipmentEvent_LostWhileOthersStillMoving(t *testing.T) {
	f := newSagaFixture()
	o := f.placeOrder(t)
	_, err := f.orders.Transition(context.Background(), o.ID, StatusProcessing)
	require.NoError(t, err)
	f.legs.seed(shipping.Leg{ID: "leg-1", OrderID: o.ID, Status: shipping.LegInTransit, Progress: 60})
	f.legs.seed(shipping.Leg{ID: "leg-2", OrderID: o.ID, Status: shipping.LegPickedUp, Progress: 20})

	err = f.saga.OnShipmentEvent(context.Background(), "leg-2:LOST", "leg-2", shipping.LegLost)

	require.NoError(t, err)
	// the remaining moving leg keeps the order alive
	assert.NotEqual(t, StatusCancelled, f.orders.status(o.ID))
	assert.Equal(t, 0, f.payments.refundCalls())
}

func TestOnShipmentEvent_StaleEventIgnored(t *testing.T) {
	f := newSagaFixture()
	o := f.placeOrder(t)
	f.legs.seed(shipping.Leg{ID: "leg-1", OrderID: o.ID, Status: shipping.LegDelivered, Progress: 100})

	err := f.saga.OnShipmentEvent(context.Background(), "leg-1:PICKED_UP", "leg-1", shipping.LegPickedUp)

	require.NoError(t, err)
	legs, _ := f.legs.LegsByOrder(context.Background(), o.ID)
	assert.Equal(t, shipping.LegDelivered, legs[0].Status)
}

func TestView_RecomputesRollupFromLegs(t *testing.T) {
	f := newSagaFixture()
	o := f.placeOrder(t)
	f.legs.seed(shipping.Leg{ID: "leg-1", OrderID: o.ID, Status: shipping.LegPickedUp, Progress: 20})
	f.legs.seed(shipping.Leg{ID: "leg-2", OrderID: o.ID, Status: shipping.LegInTransit, Progress: 60})

	v, err := f.saga.View(context.Background(), o.ID)

	require.NoError(t, err)
	assert.Equal(t, shipping.DeliveryInTransit, v.Delivery.Status)
	assert.Equal(t, 40, v.Delivery.Progress)
	assert.Len(t, v.Legs, 2)
}
