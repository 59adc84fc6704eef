package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/leejamie-42/online-store/internal/events"
	"github.com/leejamie-42/online-store/internal/idempotency"
	"github.com/leejamie-42/online-store/internal/inventory"
	"github.com/leejamie-42/online-store/internal/kafkax"
	"github.com/leejamie-42/online-store/internal/metrics"
	"github.com/leejamie-42/online-store/internal/payments"
	"github.com/leejamie-42/online-store/internal/shipping"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

var (
	// Conflict: total warehouse stock cannot cover the request.
	ErrStockConflict = errors.New("insufficient stock")
	// Conflict: order already past the cancellable states.
	ErrNotCancellable = errors.New("order not cancellable")
	// Validation: caller's fault, rejected before any side effect.
	ErrValidation = errors.New("invalid request")
	// Retryable: the event arrived before the local rows are visible.
	// The webhook sender gets a non-2xx and tries again.
	ErrRetryLater = errors.New("not yet visible, retry")
)

// Collaborator surfaces, narrowed to what the saga calls. The concrete
// types (inventory.Client, payments.Coordinator, shipping.Repo/Client,
// idempotency.Guard) satisfy them; tests swap in fakes.

type OrderStore interface {
	Create(ctx context.Context, o *Order) error
	Get(ctx context.Context, orderID string) (Order, error)
	Transition(ctx context.Context, orderID string, to Status) (Status, error)
	GetProduct(ctx context.Context, productID string) (Product, error)
}

type WarehouseClient interface {
	ReserveStock(ctx context.Context, req inventory.ReserveStockRequest) (inventory.ReserveStockResponse, error)
	CommitStock(ctx context.Context, req inventory.CommitStockRequest) (inventory.CommitStockResponse, error)
	RollbackStock(ctx context.Context, req inventory.RollbackStockRequest) (inventory.RollbackStockResponse, error)
}

type PaymentCoordinator interface {
	CreatePayment(ctx context.Context, orderID string, amountCents int) (payments.Payment, error)
	Refund(ctx context.Context, orderID, reason string) error
	OnPaymentCompleted(ctx context.Context, orderID string) (bool, error)
	OnRefundCompleted(ctx context.Context, orderID string) (bool, error)
}

type LegStore interface {
	CreateLeg(ctx context.Context, l shipping.Leg) error
	LegsByOrder(ctx context.Context, orderID string) ([]shipping.Leg, error)
	TransitionLeg(ctx context.Context, legID string, to shipping.LegStatus) (shipping.Leg, bool, error)
}

type DeliveryClient interface {
	CreateShipment(ctx context.Context, req shipping.CreateShipmentRequest) (shipping.CreateShipmentResponse, error)
}

type Guard interface {
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
	Unmark(ctx context.Context, eventID string)
}

type publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

var _ Guard = (*idempotency.Guard)(nil)

// Saga drives the order lifecycle forward on success and backward
// (compensation) on failure. There is no distributed transaction: each
// step is local, and failures after a completed step are answered with
// an explicit compensating action, never an automatic rollback.
type Saga struct {
	Orders    OrderStore
	Warehouse WarehouseClient
	Payments  PaymentCoordinator
	Legs      LegStore
	Delivery  DeliveryClient
	Guard     Guard

	RollbackPub publisher // inventory.rollback
	RefundPub   publisher // payment.refund
	EmailPub    publisher // email.notifications

	ServiceName string
	Log         *logrus.Entry
}

// CreateOrder: reserve -> persist PENDING -> request payment. The order
// row is only written once stock is held; a failed payment request
// compensates the reservation before surfacing the failure.
func (s *Saga) CreateOrder(ctx context.Context, userID, productID string, qty int, ship ShippingInfo) (Order, error) {
	if userID == "" || productID == "" || qty <= 0 || ship.Address == "" || ship.Name == "" {
		return Order{}, fmt.Errorf("%w: user, product, positive quantity and shipping required", ErrValidation)
	}
	product, err := s.Orders.GetProduct(ctx, productID)
	if err != nil {
		if errors.Is(err, ErrProductNotFound) {
			return Order{}, fmt.Errorf("%w: unknown product %s", ErrValidation, productID)
		}
		return Order{}, err
	}

	orderID := uuid.NewString()
	res, err := s.Warehouse.ReserveStock(ctx, inventory.ReserveStockRequest{
		ProductID: productID, Quantity: qty, OrderID: orderID,
	})
	if err != nil {
		// nothing was reserved, nothing to clean up
		return Order{}, fmt.Errorf("reserve stock: %w", err)
	}
	if !res.Success {
		return Order{}, fmt.Errorf("%w: %s", ErrStockConflict, res.Message)
	}

	o := Order{
		ID:         orderID,
		UserID:     userID,
		ProductID:  productID,
		Quantity:   qty,
		TotalCents: product.PriceCents * qty,
		Shipping:   ship,
		Status:     StatusPending,
	}
	if err := s.Orders.Create(ctx, &o); err != nil {
		s.rollbackStock(ctx, o, events.ReasonPaymentFailed)
		return Order{}, fmt.Errorf("persist order: %w", err)
	}

	if _, err := s.Payments.CreatePayment(ctx, orderID, o.TotalCents); err != nil {
		// infrastructure failure on the creation path: compensate the
		// reservation, park the order in CANCELLED, then surface
		s.rollbackStock(ctx, o, events.ReasonPaymentFailed)
		if _, terr := s.Orders.Transition(ctx, orderID, StatusCancelled); terr != nil {
			s.Log.WithError(terr).WithField("order_id", orderID).Error("cancel after payment failure")
		}
		return Order{}, fmt.Errorf("create payment: %w", err)
	}

	s.publishEmail(o, events.EmailOrderCreated)
	s.Log.WithFields(logrus.Fields{
		"order_id": orderID, "user_id": userID, "total_cents": o.TotalCents,
	}).Info("order created")
	return o, nil
}

// CancelOrder is permitted only from PENDING or PROCESSING; the row's
// current status decides, so a cancel racing a payment webhook resolves
// to exactly one winner. Refund and stock rollback are independent
// compensations and run concurrently; a failure of either is retried
// out of band via its compensation topic and never blocks the cancel.
func (s *Saga) CancelOrder(ctx context.Context, orderID, userID, reason string) (Order, error) {
	o, err := s.Orders.Get(ctx, orderID)
	if err != nil {
		return Order{}, err
	}
	if o.UserID != userID {
		return Order{}, ErrNotFound
	}

	if _, err := s.Orders.Transition(ctx, orderID, StatusCancelled); err != nil {
		if errors.Is(err, ErrInvalidTransition) {
			return Order{}, fmt.Errorf("%w: status %s", ErrNotCancellable, o.Status)
		}
		return Order{}, err
	}
	o.Status = StatusCancelled

	s.compensate(ctx, o, events.ReasonOrderCancelled)
	s.publishEmail(o, events.EmailOrderCancelled)
	s.Log.WithFields(logrus.Fields{"order_id": orderID, "reason": reason}).Info("order cancelled")
	return o, nil
}

// OnPaymentCompleted handles the payment webhook: commit the reserved
// stock, request one shipment per delivery package, move the order to
// PROCESSING. Duplicate deliveries are absorbed by the guard; a commit
// that finds no reservation is a stale event and a no-op.
func (s *Saga) OnPaymentCompleted(ctx context.Context, eventID, orderID string) error {
	if dup, err := s.Guard.CheckAndMark(ctx, eventID); err != nil {
		return err
	} else if dup {
		s.Log.WithField("event_id", eventID).Debug("duplicate payment webhook, skipped")
		return nil
	}

	if _, err := s.Payments.OnPaymentCompleted(ctx, orderID); err != nil {
		s.Guard.Unmark(ctx, eventID)
		if errors.Is(err, payments.ErrPaymentNotFound) {
			return fmt.Errorf("%w: payment for order %s", ErrRetryLater, orderID)
		}
		return err
	}

	commit, err := s.Warehouse.CommitStock(ctx, inventory.CommitStockRequest{OrderID: orderID})
	if err != nil {
		// commit is idempotent; release the marker so the redelivery retries it
		s.Guard.Unmark(ctx, eventID)
		return fmt.Errorf("commit stock: %w", err)
	}
	if !commit.Success {
		s.Log.WithField("order_id", orderID).Debug("commit found no reservation, stale event")
		return nil
	}

	for _, pkg := range commit.DeliveryPackages {
		legID := uuid.NewString()
		leg := shipping.Leg{
			ID:               legID,
			OrderID:          orderID,
			WarehouseAddress: pkg.WarehouseAddress,
			ProductID:        pkg.ProductID,
			Quantity:         pkg.Quantity,
			Status:           shipping.LegProcessing,
			Progress:         0,
		}
		if err := s.Legs.CreateLeg(ctx, leg); err != nil {
			s.Log.WithError(err).WithField("order_id", orderID).Error("persist shipment leg")
			continue
		}
		if _, err := s.Delivery.CreateShipment(ctx, shipping.CreateShipmentRequest{
			ShipmentID:       legID,
			OrderID:          orderID,
			WarehouseAddress: pkg.WarehouseAddress,
			ProductID:        pkg.ProductID,
			Quantity:         pkg.Quantity,
		}); err != nil {
			s.Log.WithError(err).WithFields(logrus.Fields{
				"order_id": orderID, "leg_id": legID,
			}).Error("shipment request failed")
		}
	}

	if _, err := s.Orders.Transition(ctx, orderID, StatusProcessing); err != nil {
		if errors.Is(err, ErrInvalidTransition) {
			// lost the race against a concurrent cancel: the money was
			// captured for a cancelled order, so compensate with a refund.
			// Committed stock stays committed (no automatic restock).
			s.Log.WithField("order_id", orderID).Warn("payment completed for cancelled order, refunding")
			s.refundOrQueue(ctx, orderID, events.ReasonOrderCancelled)
			return nil
		}
		return err
	}
	s.Log.WithField("order_id", orderID).Info("payment completed, stock committed, shipments requested")
	return nil
}

// OnRefundCompleted settles the refund and payment rows.
func (s *Saga) OnRefundCompleted(ctx context.Context, eventID, orderID string) error {
	if dup, err := s.Guard.CheckAndMark(ctx, eventID); err != nil {
		return err
	} else if dup {
		s.Log.WithField("event_id", eventID).Debug("duplicate refund webhook, skipped")
		return nil
	}
	if _, err := s.Payments.OnRefundCompleted(ctx, orderID); err != nil {
		s.Guard.Unmark(ctx, eventID)
		if errors.Is(err, payments.ErrPaymentNotFound) {
			return fmt.Errorf("%w: payment for order %s", ErrRetryLater, orderID)
		}
		return err
	}
	return nil
}

// OnShipmentEvent applies one delivery webhook to its leg, then re-derives
// the order-level delivery status from all legs of the order.
func (s *Saga) OnShipmentEvent(ctx context.Context, eventID, shipmentID string, to shipping.LegStatus) error {
	if dup, err := s.Guard.CheckAndMark(ctx, eventID); err != nil {
		return err
	} else if dup {
		s.Log.WithField("event_id", eventID).Debug("duplicate delivery webhook, skipped")
		return nil
	}

	leg, changed, err := s.Legs.TransitionLeg(ctx, shipmentID, to)
	if err != nil {
		if errors.Is(err, shipping.ErrLegNotFound) {
			s.Guard.Unmark(ctx, eventID)
			return fmt.Errorf("%w: shipment %s", ErrRetryLater, shipmentID)
		}
		if errors.Is(err, shipping.ErrInvalidLegTransition) {
			// out-of-order or stale event; current row state wins
			s.Log.WithError(err).WithField("shipment_id", shipmentID).Warn("ignoring stale delivery event")
			return nil
		}
		s.Guard.Unmark(ctx, eventID)
		return err
	}
	if !changed {
		return nil
	}

	legs, err := s.Legs.LegsByOrder(ctx, leg.OrderID)
	if err != nil {
		return err
	}
	d := shipping.Rollup(legs)

	switch d.Status {
	case shipping.DeliveryDelivered:
		if err := s.advance(ctx, leg.OrderID, StatusDelivered); err != nil {
			return err
		}
		o, err := s.Orders.Get(ctx, leg.OrderID)
		if err == nil {
			s.publishEmail(o, events.EmailOrderDelivered)
		}
		s.Log.WithField("order_id", leg.OrderID).Info("all legs delivered")
	case shipping.DeliveryLost:
		return s.onShipmentLost(ctx, leg.OrderID)
	case shipping.DeliveryInTransit:
		target := StatusPickedUp
		if to == shipping.LegInTransit || to == shipping.LegDelivered {
			target = StatusDelivering
		}
		if err := s.advance(ctx, leg.OrderID, target); err != nil {
			return err
		}
	}
	return nil
}

// onShipmentLost fires once every leg is terminal and at least one is
// lost: same compensation path as an explicit cancellation.
func (s *Saga) onShipmentLost(ctx context.Context, orderID string) error {
	o, err := s.Orders.Get(ctx, orderID)
	if err != nil {
		return err
	}
	if _, err := s.Orders.Transition(ctx, orderID, StatusCancelled); err != nil {
		if errors.Is(err, ErrInvalidTransition) {
			s.Log.WithField("order_id", orderID).Debug("order not cancellable, lost shipment handled out of band")
			return nil
		}
		return err
	}
	o.Status = StatusCancelled
	s.compensate(ctx, o, events.ReasonShipmentLost)
	s.publishEmail(o, events.EmailOrderCancelled)
	s.Log.WithField("order_id", orderID).Warn("shipment lost, order cancelled")
	return nil
}

// OrderView is the order plus its freshly recomputed delivery roll-up.
type OrderView struct {
	Order
	Delivery shipping.Delivery `json:"delivery"`
	Legs     []shipping.Leg    `json:"legs,omitempty"`
}

// View recomputes the delivery status from the current legs on every
// read; it is never served from a persisted aggregate.
func (s *Saga) View(ctx context.Context, orderID string) (OrderView, error) {
	o, err := s.Orders.Get(ctx, orderID)
	if err != nil {
		return OrderView{}, err
	}
	legs, err := s.Legs.LegsByOrder(ctx, orderID)
	if err != nil {
		return OrderView{}, err
	}
	return OrderView{Order: o, Delivery: shipping.Rollup(legs), Legs: legs}, nil
}

// ---- compensations ----

// compensate runs refund and stock rollback concurrently. Both must
// eventually be attempted even if one fails: failures are queued on the
// compensation topics for out-of-band retry and never block the caller.
func (s *Saga) compensate(ctx context.Context, o Order, reason string) {
	metrics.Compensations.WithLabelValues(reason).Inc()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.refundOrQueue(gctx, o.ID, reason)
		return nil
	})
	g.Go(func() error {
		s.rollbackStock(gctx, o, reason)
		return nil
	})
	_ = g.Wait()
}

func (s *Saga) refundOrQueue(ctx context.Context, orderID, reason string) {
	err := s.Payments.Refund(ctx, orderID, reason)
	switch {
	case err == nil:
		return
	case errors.Is(err, payments.ErrDuplicateRefund):
		s.Log.WithField("order_id", orderID).Debug("refund already requested")
	case errors.Is(err, payments.ErrPaymentNotCompleted):
		// money was never captured; if the completion webhook arrives
		// later it finds a CANCELLED order and triggers the refund then
		s.Log.WithField("order_id", orderID).Debug("no completed payment to refund")
	case errors.Is(err, payments.ErrPaymentNotFound):
		s.Log.WithField("order_id", orderID).Debug("no payment row to refund")
	default:
		s.Log.WithError(err).WithField("order_id", orderID).Error("refund failed, queued for retry")
		s.publishRefundEvent(orderID, reason)
	}
}

// rollbackStock tries the synchronous rollback first and falls back to
// the compensation topic, where the warehouse consumer retries it.
func (s *Saga) rollbackStock(ctx context.Context, o Order, reason string) {
	res, err := s.Warehouse.RollbackStock(ctx, inventory.RollbackStockRequest{OrderID: o.ID})
	if err == nil {
		if !res.RolledBack {
			s.Log.WithField("order_id", o.ID).Debug("nothing to roll back")
		}
		return
	}
	s.Log.WithError(err).WithField("order_id", o.ID).Error("rollback rpc failed, queued for retry")
	s.publishRollbackEvent(o, reason)
}

// advance steps an order through the forward chain up to target. Steps
// the order already passed surface as invalid transitions and are
// skipped; the chain can only move forward, never regress.
func (s *Saga) advance(ctx context.Context, orderID string, target Status) error {
	chain := []Status{StatusPickedUp, StatusDelivering, StatusDelivered}
	for _, st := range chain {
		if _, err := s.Orders.Transition(ctx, orderID, st); err != nil && !errors.Is(err, ErrInvalidTransition) {
			return err
		}
		if st == target {
			break
		}
	}
	return nil
}

// ---- event publishing ----

func (s *Saga) publishRollbackEvent(o Order, reason string) {
	if s.RollbackPub == nil {
		return
	}
	env := events.New(events.EventInventoryRollback, s.ServiceName, o.ID, events.InventoryRollbackPayload{
		OrderID:     o.ID,
		ProductID:   o.ProductID,
		Amount:      o.Quantity,
		Reason:      reason,
		RequestedAt: time.Now().UTC(),
	})
	s.RollbackPub.Publish(events.PartitionKey(o.ID), kafkax.MustMarshal(env),
		kafkago.Header{Key: "x-event-type", Value: []byte(events.EventInventoryRollback)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

func (s *Saga) publishRefundEvent(orderID, reason string) {
	if s.RefundPub == nil {
		return
	}
	env := events.New(events.EventRefundRequested, s.ServiceName, orderID, events.RefundPayload{
		OrderID: orderID,
		Reason:  reason,
	})
	s.RefundPub.Publish(events.PartitionKey(orderID), kafkax.MustMarshal(env),
		kafkago.Header{Key: "x-event-type", Value: []byte(events.EventRefundRequested)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

// publishEmail is fire-and-forget: notification failures never block
// the main flow.
func (s *Saga) publishEmail(o Order, template string) {
	if s.EmailPub == nil {
		return
	}
	env := events.New(events.EventEmailRequested, s.ServiceName, o.ID, events.EmailPayload{
		To:       o.UserID,
		Template: template,
		OrderID:  o.ID,
		Data: map[string]string{
			"product_id":  o.ProductID,
			"total_cents": fmt.Sprintf("%d", o.TotalCents),
		},
	})
	s.EmailPub.Publish(events.PartitionKey(o.ID), kafkax.MustMarshal(env),
		kafkago.Header{Key: "x-event-type", Value: []byte(events.EventEmailRequested)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
