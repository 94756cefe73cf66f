package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"testing"
	"time"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestServer_ServeAndShutdown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	srv := New(handler, Options{ShutdownTimeout: time.Second}, quietLogger())

	var order []string
	srv.OnShutdown("postgres", func(context.Context) error {
		order = append(order, "postgres")
		return nil
	})
	srv.OnShutdown("redis", func(context.Context) error {
		order = append(order, "redis")
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/")
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusTeapot {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusTeapot)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Serve returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}

	if len(order) != 2 || order[0] != "redis" || order[1] != "postgres" {
		t.Errorf("shutdown order = %v, want [redis postgres]", order)
	}
}

func TestServer_ShutdownErrorsAreJoined(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	srv := New(http.NotFoundHandler(), Options{ShutdownTimeout: time.Second}, quietLogger())
	boom := errors.New("boom")
	srv.OnShutdown("redis", func(context.Context) error { return boom })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := srv.Serve(ctx, ln); !errors.Is(err, boom) {
		t.Fatalf("Serve = %v, want wrapped boom", err)
	}
}

func TestServer_Addr(t *testing.T) {
	srv := New(http.NotFoundHandler(), Options{Port: 8080}, nil)
	if srv.Addr() != ":8080" {
		t.Errorf("Addr() = %q, want :8080", srv.Addr())
	}
}
