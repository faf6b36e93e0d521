package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"syscall"
	"testing"
	"time"

	"jotter/internal/api"
	"jotter/internal/config"
)

func TestStartingUpClassifiesDialErrors(t *testing.T) {
	refused := &net.OpError{Op: "dial", Net: "tcp", Err: os.NewSyscallError("connect", syscall.ECONNREFUSED)}
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "refused", err: fmt.Errorf("ping: %w", refused), want: true},
		{name: "timeout", err: context.DeadlineExceeded, want: true},
		{name: "api error", err: &api.APIError{Status: 404}, want: false},
		{name: "other", err: errors.New("tls: handshake failure"), want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := startingUp(tt.err); got != tt.want {
				t.Fatalf("startingUp(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestWaitForServerReturnsOnceHealthy(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok","backend":"local"}`))
	}))
	defer ts.Close()

	if err := waitForServer(context.Background(), api.NewClient(ts.URL), time.Second); err != nil {
		t.Fatalf("wait: %v", err)
	}
}

func TestWaitForServerSurfacesForeignService(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	defer ts.Close()

	err := waitForServer(context.Background(), api.NewClient(ts.URL), time.Second)
	var apiErr *api.APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusNotFound {
		t.Fatalf("expected the 404 from the foreign service, got %v", err)
	}
}

func TestWithClientUsesRunningServer(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok","backend":"local"}`))
	}))
	defer ts.Close()

	cfg := config.Default()
	cfg.APIURL = ts.URL
	called := false
	err := withClient(context.Background(), &cfg, func(client *api.Client) error {
		called = true
		return client.Ping(context.Background())
	})
	if err != nil {
		t.Fatalf("with client: %v", err)
	}
	if !called {
		t.Fatal("expected callback to run")
	}
}
