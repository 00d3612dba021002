package handler

import (
	"context"
	"io"
	"log/slog"
	"net"
	"testing"

	"github.com/shopspring/decimal"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"

	"github.com/rl1809/order-reservation/internal/adapter/storage"
	"github.com/rl1809/order-reservation/internal/core/domain"
	"github.com/rl1809/order-reservation/internal/core/service"
)

func newGRPCClient(t *testing.T) *OrderServiceClient {
	t.Helper()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := storage.NewMemoryAdapter()
	_, err := store.CreateProduct(context.Background(), domain.Product{
		ID:    "p1",
		Price: decimal.RequireFromString("1.50"),
		Stock: 2,
	})
	if err != nil {
		t.Fatalf("seed product: %v", err)
	}
	svc := service.NewOrderService(store, store, 0, service.WithLogger(log))

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	RegisterOrderServiceServer(srv, NewGRPCHandler(svc, log))
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	return NewOrderServiceClient(conn)
}

func TestGRPC_CreateAndGetOrder(t *testing.T) {
	client := newGRPCClient(t)
	ctx := context.Background()

	reply, err := client.CreateOrder(ctx, &CreateOrderRequest{
		UserID: "alice",
		Items:  []OrderItemRequest{{ProductID: "p1", Quantity: 2}},
	})
	if err != nil {
		t.Fatalf("rpc failed: %v", err)
	}
	if !reply.Success || reply.Order == nil {
		t.Fatalf("expected success, got %+v", reply)
	}
	if !reply.Order.Total.Equal(decimal.RequireFromString("3.00")) {
		t.Errorf("expected total 3.00, got %s", reply.Order.Total)
	}

	got, err := client.GetOrder(ctx, &GetOrderRequest{OrderID: reply.Order.ID, UserID: "alice"})
	if err != nil {
		t.Fatalf("rpc failed: %v", err)
	}
	if !got.Success || got.Order.ID != reply.Order.ID {
		t.Errorf("expected the same order back, got %+v", got)
	}
}

func TestGRPC_FailuresInReply(t *testing.T) {
	client := newGRPCClient(t)
	ctx := context.Background()

	reply, err := client.CreateOrder(ctx, &CreateOrderRequest{
		UserID: "alice",
		Items:  []OrderItemRequest{{ProductID: "p1", Quantity: 3}},
	})
	if err != nil {
		t.Fatalf("domain failures must not be rpc errors: %v", err)
	}
	if reply.Success || reply.Error == nil || reply.Error.Kind != "insufficient_stock" {
		t.Errorf("expected insufficient_stock, got %+v", reply)
	}

	reply, err = client.GetOrder(ctx, &GetOrderRequest{OrderID: "missing", UserID: "alice"})
	if err != nil {
		t.Fatalf("rpc failed: %v", err)
	}
	if reply.Success || reply.Error.Kind != "not_found" {
		t.Errorf("expected not_found, got %+v", reply.Error)
	}
}
