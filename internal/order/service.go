package order

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/NicolaiBoKunkel/e-commerce-project/internal/client"
	"github.com/NicolaiBoKunkel/e-commerce-project/internal/events"
)

type UserLookup interface {
	GetUser(ctx context.Context, id string) (*client.User, error)
}

type ProductLookup interface {
	GetProduct(ctx context.Context, id string) (*client.Product, error)
}

type Publisher interface {
	Publish(ctx context.Context, env events.Envelope) error
}

// Service owns the order lifecycle: idempotent creation, the admin shipping
// transition and the compensation that finalizes failed orders.
type Service struct {
	repo     Repository
	users    UserLookup
	products ProductLookup
	pub      Publisher
	logger   *log.Logger
}

func NewService(repo Repository, users UserLookup, products ProductLookup, pub Publisher, logger *log.Logger) *Service {
	return &Service{repo: repo, users: users, products: products, pub: pub, logger: logger}
}

// Create validates the user and every product, computes the total from the
// catalog's unit prices and persists a PENDING order. When an idempotency key
// is supplied, repeated calls return the already-persisted order unchanged;
// the race between concurrent duplicates is closed by the storage-level
// uniqueness constraint, not by the lookup here.
func (s *Service) Create(ctx context.Context, userID string, items []Item, idempotencyKey string) (*Order, error) {
	if userID == "" || len(items) == 0 {
		return nil, fmt.Errorf("%w: userId and at least one item are required", ErrValidation)
	}

	if idempotencyKey != "" {
		existing, err := s.repo.GetByIdempotencyKey(ctx, idempotencyKey)
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}

	if _, err := s.users.GetUser(ctx, userID); err != nil {
		if errors.Is(err, client.ErrNotFound) {
			return nil, fmt.Errorf("%w: unknown user %s", ErrValidation, userID)
		}
		return nil, fmt.Errorf("%w: user lookup: %v", ErrUpstreamUnavailable, err)
	}

	var total float64
	for _, it := range items {
		if it.ProductID == "" || it.Quantity < 1 {
			return nil, fmt.Errorf("%w: invalid item %+v", ErrValidation, it)
		}
		p, err := s.products.GetProduct(ctx, it.ProductID)
		if err != nil {
			if errors.Is(err, client.ErrNotFound) {
				return nil, fmt.Errorf("%w: unknown product %s", ErrValidation, it.ProductID)
			}
			return nil, fmt.Errorf("%w: product lookup: %v", ErrUpstreamUnavailable, err)
		}
		total += p.Price * float64(it.Quantity)
	}

	o := &Order{
		UserID:         userID,
		Items:          items,
		TotalAmount:    total,
		Status:         StatusPending,
		IdempotencyKey: idempotencyKey,
	}

	if err := s.repo.Create(ctx, o); err != nil {
		if errors.Is(err, ErrDuplicateKey) && idempotencyKey != "" {
			// A concurrent request with the same key won the insert.
			return s.repo.GetByIdempotencyKey(ctx, idempotencyKey)
		}
		return nil, err
	}

	ev := events.NewOrderPlaced(o.UserID, "Your order has been placed and is pending shipment.")
	if err := s.pub.Publish(ctx, ev); err != nil {
		// The order is already committed; creation does not fail because the
		// notification could not go out.
		s.logger.Printf("publish ORDER_PLACED for order %s: %v", o.ID, err)
	}

	return o, nil
}

// MarkShipped transitions PENDING -> SHIPPED and publishes ORDER_SHIPPED,
// triggering inventory reconciliation. SHIPPED is provisional: compensation
// may still revise it to FAILED.
func (s *Service) MarkShipped(ctx context.Context, orderID string) (*Order, error) {
	o, err := s.repo.UpdateStatus(ctx, orderID, []Status{StatusPending}, StatusShipped)
	if err != nil {
		return o, err
	}

	lines := make([]events.ProductLine, 0, len(o.Items))
	for _, it := range o.Items {
		lines = append(lines, events.ProductLine{ProductID: it.ProductID, Quantity: it.Quantity})
	}

	ev := events.NewOrderShipped(o.UserID, o.ID, "Your order has been shipped.", lines)
	if err := s.pub.Publish(ctx, ev); err != nil {
		s.logger.Printf("publish ORDER_SHIPPED for order %s: %v", o.ID, err)
	}

	return o, nil
}

func (s *Service) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	return s.repo.GetByID(ctx, orderID)
}

func (s *Service) ListOrdersForUser(ctx context.Context, userID string) ([]Order, error) {
	return s.repo.ListByUser(ctx, userID)
}

func (s *Service) ListAllOrders(ctx context.Context) ([]Order, error) {
	return s.repo.ListAll(ctx)
}

// HandleEvent is the bus handler for the order service's queue. The queue
// receives every envelope on the fanout; only stock compensation events are
// acted on.
func (s *Service) HandleEvent(ctx context.Context, env events.Envelope) error {
	if env.Type != events.TypeStockUpdateFailed {
		return nil
	}
	return s.handleStockUpdateFailed(ctx, env)
}

// handleStockUpdateFailed finalizes the compensation: the order moves to
// FAILED and an ORDER_FAILED event notifies the user. Compensation is
// best-effort, so a missing or already-failed order is logged and acked
// rather than redelivered.
func (s *Service) handleStockUpdateFailed(ctx context.Context, env events.Envelope) error {
	o, err := s.repo.UpdateStatus(ctx, env.OrderID, []Status{StatusPending, StatusShipped}, StatusFailed)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.logger.Printf("compensation for unknown order %s, dropping", env.OrderID)
			return nil
		}
		if errors.Is(err, ErrInvalidTransition) {
			s.logger.Printf("order %s already finalized as %s, dropping compensation", env.OrderID, o.Status)
			return nil
		}
		return err
	}

	s.logger.Printf("order %s failed: %d products could not be fulfilled", o.ID, len(env.FailedProducts))

	ev := events.NewOrderFailed(o.UserID, o.ID, "Your order could not be fulfilled due to insufficient stock.")
	if err := s.pub.Publish(ctx, ev); err != nil {
		s.logger.Printf("publish ORDER_FAILED for order %s: %v", o.ID, err)
	}
	return nil
}
