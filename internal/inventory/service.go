package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/leejamie-42/online-store/internal/events"
	"github.com/leejamie-42/online-store/internal/kafkax"
	"github.com/leejamie-42/online-store/internal/metrics"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

// Store is what the engine needs from persistence. *Repo satisfies it;
// tests swap in a fake.
type Store interface {
	TotalAvailable(ctx context.Context, productID string) (int, error)
	Reserve(ctx context.Context, orderID, productID string, qty int) ([]string, error)
	Commit(ctx context.Context, orderID string) ([]DeliveryPackage, error)
	Rollback(ctx context.Context, orderID string) (bool, error)
	RollbackEvent(ctx context.Context, eventID, orderID string) (applied, rolledBack bool, err error)
	ProductForOrder(ctx context.Context, orderID string) (string, error)
	ProductSnapshot(ctx context.Context, productID string) (Snapshot, error)
}

type Service struct {
	Repo        Store
	Producer    *kafkax.Producer // warehouse.product-updates; nil in tests
	ServiceName string
	Log         *logrus.Entry
}

func (s *Service) CheckStock(ctx context.Context, req CheckStockRequest) (CheckStockResponse, error) {
	total, err := s.Repo.TotalAvailable(ctx, req.ProductID)
	if err != nil {
		return CheckStockResponse{}, err
	}
	return CheckStockResponse{Available: total >= req.Quantity, TotalAvailable: total}, nil
}

func (s *Service) ReserveStock(ctx context.Context, req ReserveStockRequest) (ReserveStockResponse, error) {
	reservedFrom, err := s.Repo.Reserve(ctx, req.OrderID, req.ProductID, req.Quantity)
	if errors.Is(err, ErrInsufficientStock) {
		metrics.Reservations.WithLabelValues("insufficient").Inc()
		s.Log.WithFields(logrus.Fields{"order_id": req.OrderID, "product_id": req.ProductID}).
			Info("reserve rejected, insufficient stock")
		return ReserveStockResponse{Success: false, Message: err.Error()}, nil
	}
	if err != nil {
		metrics.Reservations.WithLabelValues("error").Inc()
		return ReserveStockResponse{}, err
	}
	metrics.Reservations.WithLabelValues("reserved").Inc()
	s.Log.WithFields(logrus.Fields{
		"order_id": req.OrderID, "product_id": req.ProductID,
		"qty": req.Quantity, "warehouses": reservedFrom,
	}).Info("stock reserved")
	s.publishSnapshot(ctx, req.ProductID)
	return ReserveStockResponse{
		Success:                true,
		Message:                fmt.Sprintf("reserved %d from %d warehouse(s)", req.Quantity, len(reservedFrom)),
		ReservedFromWarehouses: reservedFrom,
	}, nil
}

func (s *Service) CommitStock(ctx context.Context, req CommitStockRequest) (CommitStockResponse, error) {
	pkgs, err := s.Repo.Commit(ctx, req.OrderID)
	if errors.Is(err, ErrNoReservation) {
		// stale or duplicate commit; the caller treats this as a no-op
		s.Log.WithField("order_id", req.OrderID).Debug("commit skipped, no reservation")
		return CommitStockResponse{Success: false, Message: msgNoReservation}, nil
	}
	if err != nil {
		return CommitStockResponse{}, err
	}
	s.Log.WithFields(logrus.Fields{"order_id": req.OrderID, "legs": len(pkgs)}).Info("stock committed")
	return CommitStockResponse{Success: true, Message: "committed", DeliveryPackages: pkgs}, nil
}

func (s *Service) RollbackStock(ctx context.Context, req RollbackStockRequest) (RollbackStockResponse, error) {
	// resolve the product first: after the rollback commits the rows are
	// ROLLED_BACK and still name it, but this keeps one code path
	productID, _ := s.Repo.ProductForOrder(ctx, req.OrderID)

	rolledBack, err := s.Repo.Rollback(ctx, req.OrderID)
	if err != nil {
		return RollbackStockResponse{}, err
	}
	if !rolledBack {
		s.Log.WithField("order_id", req.OrderID).Debug("rollback skipped, no reservation")
		return RollbackStockResponse{RolledBack: false, Message: msgNoReservation}, nil
	}
	s.Log.WithField("order_id", req.OrderID).Info("reservation rolled back, stock restored")
	s.publishSnapshot(ctx, productID)
	return RollbackStockResponse{RolledBack: true, Message: "rolled back"}, nil
}

func (s *Service) publishSnapshot(ctx context.Context, productID string) {
	if s.Producer == nil || productID == "" {
		return
	}
	snap, err := s.Repo.ProductSnapshot(ctx, productID)
	if err != nil {
		s.Log.WithError(err).WithField("product_id", productID).Warn("product snapshot failed")
		return
	}
	s.PublishSnapshot(snap)
}

// PublishSnapshot emits one product-update event for the store's read model.
func (s *Service) PublishSnapshot(snap Snapshot) {
	if s.Producer == nil {
		return
	}
	env := events.New(events.EventProductUpdated, s.ServiceName, snap.ID, events.ProductUpdatePayload{
		ProductID:  snap.ID,
		Name:       snap.Name,
		PriceCents: snap.PriceCents,
		Stock:      snap.TotalStock,
		Published:  snap.Published,
		UpdatedAt:  time.Now().UTC(),
	})
	s.Producer.Publish(events.PartitionKey(snap.ID), kafkax.MustMarshal(env),
		kafkago.Header{Key: "x-event-type", Value: []byte(events.EventProductUpdated)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
