package utils

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestCheckPublicURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{name: "public host", url: "https://cdn.example.com/a.png"},
		{name: "public ip", url: "http://8.8.8.8/a.png"},
		{name: "loopback", url: "http://127.0.0.1/x.png", wantErr: true},
		{name: "localhost name", url: "http://localhost:8080/x.png", wantErr: true},
		{name: "private", url: "http://10.1.2.3/x.png", wantErr: true},
		{name: "metadata", url: "http://169.254.169.254/latest/meta-data", wantErr: true},
		{name: "ipv6 loopback", url: "http://[::1]/x.png", wantErr: true},
		{name: "mapped loopback", url: "http://[::ffff:127.0.0.1]/x.png", wantErr: true},
		{name: "shared address space", url: "http://100.64.0.1/x.png", wantErr: true},
		{name: "unspecified", url: "http://0.0.0.0/x.png", wantErr: true},
		{name: "file scheme", url: "file:///etc/passwd", wantErr: true},
		{name: "no host", url: "http:///x.png", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckPublicURL(tt.url)
			if tt.wantErr && err == nil {
				t.Fatalf("expected %s to be rejected", tt.url)
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestPublicHTTPClientRefusesLoopbackDial(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, server.URL, nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	resp, err := NewPublicHTTPClient(5 * time.Second).Do(req)
	if err == nil {
		resp.Body.Close()
		t.Fatal("expected dial to be refused")
	}
	if !errors.Is(err, ErrNonPublicAddress) {
		t.Fatalf("expected ErrNonPublicAddress, got %v", err)
	}
	if hits.Load() != 0 {
		t.Fatalf("server should not be reached, got %d hits", hits.Load())
	}
}
