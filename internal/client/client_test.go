package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGetUser(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/internal/users/u1":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id":"u1","username":"alice","email":"alice@example.com","role":"user"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewUserClient(srv.URL, srv.Client())

	u, err := c.GetUser(context.Background(), "u1")
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if u.ID != "u1" || u.Username != "alice" || u.Role != "user" {
		t.Fatalf("unexpected user: %+v", u)
	}

	if _, err := c.GetUser(context.Background(), "ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetProduct(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/internal/products/p1":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id":"p1","name":"widget","price":50,"stock":5}`))
		case "/internal/products/broken":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewProductClient(srv.URL, srv.Client())

	p, err := c.GetProduct(context.Background(), "p1")
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if p.Price != 50 || p.Stock != 5 {
		t.Fatalf("unexpected product: %+v", p)
	}

	if _, err := c.GetProduct(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	// Non-404 failures are upstream errors, not validation misses.
	if _, err := c.GetProduct(context.Background(), "broken"); err == nil || errors.Is(err, ErrNotFound) {
		t.Fatalf("expected upstream error, got %v", err)
	}
}

func TestClientHonorsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	c := NewUserClient(srv.URL, srv.Client())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := c.GetUser(ctx, "u1"); err == nil {
		t.Fatal("expected context error")
	}
}
