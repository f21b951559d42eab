package integration

import (
	"context"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/NicolaiBoKunkel/e-commerce-project/internal/bus"
	"github.com/NicolaiBoKunkel/e-commerce-project/internal/client"
	"github.com/NicolaiBoKunkel/e-commerce-project/internal/db"
	"github.com/NicolaiBoKunkel/e-commerce-project/internal/events"
	"github.com/NicolaiBoKunkel/e-commerce-project/internal/notification"
	"github.com/NicolaiBoKunkel/e-commerce-project/internal/order"
	"github.com/NicolaiBoKunkel/e-commerce-project/internal/stock"
	"github.com/NicolaiBoKunkel/e-commerce-project/internal/testutil"
)

// collaborators serves the user and product lookups the orchestrator
// validates against.
func collaborators(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /internal/users/u1", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"u1","username":"alice","email":"alice@example.com","role":"user"}`))
	})
	mux.HandleFunc("GET /internal/products/p1", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"p1","name":"widget","price":50,"stock":5}`))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

type saga struct {
	orders    *order.Service
	orderRepo order.Repository
	stockRepo stock.Repository
	notes     *notification.Store
}

// startSaga wires all three services onto one broker, the way the compose
// deployment does.
func startSaga(t *testing.T, ctx context.Context) *saga {
	t.Helper()

	logger := log.New(io.Discard, "", 0)

	conn := testutil.StartRabbitMQ(t)

	dsn := testutil.StartPostgres(t)
	require.NoError(t, db.MigrateOrders(dsn, logger))
	require.NoError(t, db.MigrateStock(dsn, logger))

	sqlDB, err := db.OpenOrders(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	pool, err := db.NewPool(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	pub, err := bus.NewPublisher(conn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pub.Close() })

	ext := collaborators(t)

	orderRepo := order.NewRepository(sqlDB)
	orderSvc := order.NewService(orderRepo,
		client.NewUserClient(ext.URL, ext.Client()),
		client.NewProductClient(ext.URL, ext.Client()),
		pub, logger)

	stockRepo := stock.NewPostgresRepository(pool)
	reconciler := stock.NewReconciler(stockRepo, pub, logger)

	notes := notification.NewStore(rdb, logger)
	projector := notification.NewProjector(notes, logger)

	require.NoError(t, bus.Subscribe(ctx, conn, bus.QueueName("order-service"), orderSvc.HandleEvent, logger))
	require.NoError(t, bus.Subscribe(ctx, conn, bus.QueueName("stock-reconciler"), reconciler.HandleEvent, logger))
	require.NoError(t, bus.Subscribe(ctx, conn, bus.QueueName("notification-service"), projector.HandleEvent, logger))

	return &saga{orders: orderSvc, orderRepo: orderRepo, stockRepo: stockRepo, notes: notes}
}

func TestShipmentDecrementsStock(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := startSaga(t, ctx)
	require.NoError(t, s.stockRepo.SetAvailable(ctx, "p1", 5))

	o, err := s.orders.Create(ctx, "u1", []order.Item{{ProductID: "p1", Quantity: 2}}, "")
	require.NoError(t, err)
	require.Equal(t, float64(100), o.TotalAmount)
	require.Equal(t, order.StatusPending, o.Status)

	shipped, err := s.orders.MarkShipped(ctx, o.ID)
	require.NoError(t, err)
	require.Equal(t, order.StatusShipped, shipped.Status)

	require.Eventually(t, func() bool {
		item, err := s.stockRepo.Get(ctx, "p1")
		return err == nil && item.Available == 3
	}, 15*time.Second, 100*time.Millisecond, "reconciler should settle the shipment")

	// Successful settlement must not revise the order.
	time.Sleep(time.Second)
	got, err := s.orderRepo.GetByID(ctx, o.ID)
	require.NoError(t, err)
	require.Equal(t, order.StatusShipped, got.Status)

	// The user saw placement and shipment, newest first.
	require.Eventually(t, func() bool {
		ns, err := s.notes.List(ctx, "u1")
		return err == nil && len(ns) == 2
	}, 15*time.Second, 100*time.Millisecond)

	ns, err := s.notes.List(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, events.TypeOrderShipped, ns[0].Type)
	require.Equal(t, events.TypeOrderPlaced, ns[1].Type)
}

func TestInsufficientStockCompensatesOrder(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := startSaga(t, ctx)
	require.NoError(t, s.stockRepo.SetAvailable(ctx, "p1", 1))

	o, err := s.orders.Create(ctx, "u1", []order.Item{{ProductID: "p1", Quantity: 2}}, "")
	require.NoError(t, err)

	_, err = s.orders.MarkShipped(ctx, o.ID)
	require.NoError(t, err)

	// Compensation flows back: reconciler publishes STOCK_UPDATE_FAILED,
	// orchestrator finalizes the order as FAILED.
	require.Eventually(t, func() bool {
		got, err := s.orderRepo.GetByID(ctx, o.ID)
		return err == nil && got.Status == order.StatusFailed
	}, 20*time.Second, 100*time.Millisecond)

	// Stock was never driven negative.
	item, err := s.stockRepo.Get(ctx, "p1")
	require.NoError(t, err)
	require.Equal(t, 1, item.Available)

	// The user was told about the failure.
	require.Eventually(t, func() bool {
		ns, err := s.notes.List(ctx, "u1")
		if err != nil {
			return false
		}
		for _, n := range ns {
			if n.Type == events.TypeOrderFailed {
				return true
			}
		}
		return false
	}, 15*time.Second, 100*time.Millisecond)
}
