package orders

import (
	"context"
	"io"
	"sync"

	"github.com/leejamie-42/online-store/internal/inventory"
	"github.com/leejamie-42/online-store/internal/payments"
	"github.com/leejamie-42/online-store/internal/shipping"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

func testLog() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

// fakeOrders keeps orders in a map and enforces the real transition
// table, so races between cancel and payment resolve the same way the
// row-locked repository resolves them.
type fakeOrders struct {
	mu        sync.Mutex
	orders    map[string]*Order
	products  map[string]Product
	CreateErr error
}

func newFakeOrders() *fakeOrders {
	return &fakeOrders{
		orders:   make(map[string]*Order),
		products: make(map[string]Product),
	}
}

func (f *fakeOrders) Create(_ context.Context, o *Order) error {
	if f.CreateErr != nil {
		return f.CreateErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *o
	f.orders[o.ID] = &cp
	return nil
}

func (f *fakeOrders) Get(_ context.Context, orderID string) (Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[orderID]
	if !ok {
		return Order{}, ErrNotFound
	}
	return *o, nil
}

func (f *fakeOrders) Transition(_ context.Context, orderID string, to Status) (Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[orderID]
	if !ok {
		return "", ErrNotFound
	}
	if !CanTransition(o.Status, to) {
		return o.Status, ErrInvalidTransition
	}
	o.Status = to
	return to, nil
}

func (f *fakeOrders) GetProduct(_ context.Context, productID string) (Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[productID]
	if !ok {
		return Product{}, ErrProductNotFound
	}
	return p, nil
}

func (f *fakeOrders) status(orderID string) Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.orders[orderID].Status
}

// fakeWarehouse implements WarehouseClient with canned responses.
type fakeWarehouse struct {
	ReserveRes  inventory.ReserveStockResponse
	ReserveErr  error
	CommitRes   inventory.CommitStockResponse
	CommitErr   error
	RollbackRes inventory.RollbackStockResponse
	RollbackErr error

	mu            sync.Mutex
	CommitCalls   int
	RollbackCalls int
}

func (f *fakeWarehouse) ReserveStock(_ context.Context, _ inventory.ReserveStockRequest) (inventory.ReserveStockResponse, error) {
	return f.ReserveRes, f.ReserveErr
}

func (f *fakeWarehouse) CommitStock(_ context.Context, _ inventory.CommitStockRequest) (inventory.CommitStockResponse, error) {
	f.mu.Lock()
	f.CommitCalls++
	f.mu.Unlock()
	return f.CommitRes, f.CommitErr
}

func (f *fakeWarehouse) RollbackStock(_ context.Context, _ inventory.RollbackStockRequest) (inventory.RollbackStockResponse, error) {
	f.mu.Lock()
	f.RollbackCalls++
	f.mu.Unlock()
	return f.RollbackRes, f.RollbackErr
}

func (f *fakeWarehouse) rollbackCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.RollbackCalls
}

// fakePayments implements PaymentCoordinator.
type fakePayments struct {
	CreateErr          error
	RefundErr          error
	CompletedErr       error
	RefundCompletedErr error

	mu                   sync.Mutex
	CreateCalls          int
	RefundCalls          int
	CompletedCalls       int
	RefundCompletedCalls int
}

func (f *fakePayments) CreatePayment(_ context.Context, orderID string, amountCents int) (payments.Payment, error) {
	f.mu.Lock()
	f.CreateCalls++
	f.mu.Unlock()
	if f.CreateErr != nil {
		return payments.Payment{}, f.CreateErr
	}
	return payments.Payment{OrderID: orderID, AmountCents: amountCents}, nil
}

func (f *fakePayments) Refund(_ context.Context, _, _ string) error {
	f.mu.Lock()
	f.RefundCalls++
	f.mu.Unlock()
	return f.RefundErr
}

func (f *fakePayments) OnPaymentCompleted(_ context.Context, _ string) (bool, error) {
	f.mu.Lock()
	f.CompletedCalls++
	f.mu.Unlock()
	if f.CompletedErr != nil {
		return false, f.CompletedErr
	}
	return true, nil
}

func (f *fakePayments) OnRefundCompleted(_ context.Context, _ string) (bool, error) {
	f.mu.Lock()
	f.RefundCompletedCalls++
	f.mu.Unlock()
	if f.RefundCompletedErr != nil {
		return false, f.RefundCompletedErr
	}
	return true, nil
}

func (f *fakePayments) refundCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.RefundCalls
}

// fakeLegs enforces the real leg transition table.
type fakeLegs struct {
	mu        sync.Mutex
	legs      map[string]*shipping.Leg
	CreateErr error
}

func newFakeLegs() *fakeLegs {
	return &fakeLegs{legs: make(map[string]*shipping.Leg)}
}

func (f *fakeLegs) seed(l shipping.Leg) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := l
	f.legs[l.ID] = &cp
}

func (f *fakeLegs) CreateLeg(_ context.Context, l shipping.Leg) error {
	if f.CreateErr != nil {
		return f.CreateErr
	}
	f.seed(l)
	return nil
}

func (f *fakeLegs) LegsByOrder(_ context.Context, orderID string) ([]shipping.Leg, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []shipping.Leg
	for _, l := range f.legs {
		if l.OrderID == orderID {
			out = append(out, *l)
		}
	}
	return out, nil
}

func (f *fakeLegs) TransitionLeg(_ context.Context, legID string, to shipping.LegStatus) (shipping.Leg, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.legs[legID]
	if !ok {
		return shipping.Leg{}, false, shipping.ErrLegNotFound
	}
	if l.Status == to {
		return *l, false, nil
	}
	if !shipping.CanTransitionLeg(l.Status, to) {
		return *l, false, shipping.ErrInvalidLegTransition
	}
	l.Status = to
	if to != shipping.LegLost {
		l.Progress = shipping.ProgressFor(to)
	}
	return *l, true, nil
}

// fakeDelivery records shipment requests.
type fakeDelivery struct {
	Err      error
	Requests []shipping.CreateShipmentRequest
}

func (f *fakeDelivery) CreateShipment(_ context.Context, req shipping.CreateShipmentRequest) (shipping.CreateShipmentResponse, error) {
	if f.Err != nil {
		return shipping.CreateShipmentResponse{}, f.Err
	}
	f.Requests = append(f.Requests, req)
	return shipping.CreateShipmentResponse{ShipmentID: req.ShipmentID, Status: "PROCESSING"}, nil
}

// fakeGuard is an in-memory stand-in for the Redis dedup guard.
type fakeGuard struct {
	mu   sync.Mutex
	seen map[string]bool
	Err  error
}

func newFakeGuard() *fakeGuard {
	return &fakeGuard{seen: make(map[string]bool)}
}

func (f *fakeGuard) CheckAndMark(_ context.Context, eventID string) (bool, error) {
	if f.Err != nil {
		return false, f.Err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.seen[eventID] {
		return true, nil
	}
	f.seen[eventID] = true
	return false, nil
}

func (f *fakeGuard) Unmark(_ context.Context, eventID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.seen, eventID)
}

func (f *fakeGuard) marked(eventID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.seen[eventID]
}

// fakePublisher captures published messages.
type fakePublisher struct {
	mu       sync.Mutex
	Messages [][]byte
}

func (f *fakePublisher) Publish(_, value []byte, _ ...kafkago.Header) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Messages = append(f.Messages, value)
}

func (f *fakePublisher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Messages)
}
