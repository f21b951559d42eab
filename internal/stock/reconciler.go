package stock

import (
	"context"
	"log"

	"github.com/NicolaiBoKunkel/e-commerce-project/internal/events"
)

type Publisher interface {
	Publish(ctx context.Context, env events.Envelope) error
}

// Reconciler consumes ORDER_SHIPPED events and settles them against the
// inventory. Decrements are per item and best-effort: lines that succeed are
// not rolled back when a later line fails. Failed lines trigger one
// STOCK_UPDATE_FAILED compensation event for the order.
type Reconciler struct {
	repo   Repository
	pub    Publisher
	logger *log.Logger
}

func NewReconciler(repo Repository, pub Publisher, logger *log.Logger) *Reconciler {
	return &Reconciler{repo: repo, pub: pub, logger: logger}
}

// HandleEvent is the bus handler for the reconciler's queue; only
// ORDER_SHIPPED is acted on.
func (r *Reconciler) HandleEvent(ctx context.Context, env events.Envelope) error {
	if env.Type != events.TypeOrderShipped {
		return nil
	}
	return r.handleOrderShipped(ctx, env)
}

func (r *Reconciler) handleOrderShipped(ctx context.Context, env events.Envelope) error {
	var failed []events.FailedLine

	for _, line := range env.Products {
		ok, available, err := r.repo.DecrementIfAvailable(ctx, line.ProductID, line.Quantity)
		if err != nil {
			// A storage error on one line must not block the rest of the
			// order; the line simply isn't settled this delivery.
			r.logger.Printf("decrement %s for order %s: %v", line.ProductID, env.OrderID, err)
			continue
		}
		if !ok {
			r.logger.Printf("insufficient stock for %s: requested %d, available %d",
				line.ProductID, line.Quantity, available)
			failed = append(failed, events.FailedLine{
				ProductID: line.ProductID,
				Requested: line.Quantity,
				Available: available,
			})
			continue
		}
		r.logger.Printf("decremented stock of %s by %d for order %s", line.ProductID, line.Quantity, env.OrderID)
	}

	if len(failed) == 0 {
		// Successful settlement is silent: the orchestrator already recorded
		// SHIPPED optimistically.
		return nil
	}

	comp := events.NewStockUpdateFailed(env.UserID, env.OrderID, failed)
	if err := r.pub.Publish(ctx, comp); err != nil {
		r.logger.Printf("publish STOCK_UPDATE_FAILED for order %s: %v", env.OrderID, err)
		return err
	}

	r.logger.Printf("published STOCK_UPDATE_FAILED for order %s (%d lines)", env.OrderID, len(failed))
	return nil
}
