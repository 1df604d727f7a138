package connection

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNewHTTPClient(t *testing.T) {
	tests := []struct {
		server string
		want   string
	}{
		{"http://localhost:5391", "http://localhost:5391"},
		{"https://localhost:5391/", "https://localhost:5391"},
		{"127.0.0.1:5391", "http://127.0.0.1:5391"},
	}
	for _, tt := range tests {
		if got := NewHTTPClient(tt.server).BaseURL(); got != tt.want {
			t.Errorf("NewHTTPClient(%q).BaseURL() = %q, want %q", tt.server, got, tt.want)
		}
	}
}

func TestHTTPClient_GetJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "svcreg-cli/1.0" {
			t.Errorf("User-Agent = %q", r.Header.Get("User-Agent"))
		}
		switch r.URL.Path {
		case "/debug/stats":
			w.Write([]byte(`{"code":"OK","message":"Success","data":{"live":3,"tokens":1}}`))
		case "/ready":
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"code":"SR-SYS-5030","message":"not ready"}`))
		case "/broken":
			w.WriteHeader(http.StatusBadGateway)
			w.Write([]byte(`<html>`))
		default:
			w.Write([]byte(`not json`))
		}
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL)
	ctx := context.Background()

	var stats struct {
		Live   int `json:"live"`
		Tokens int `json:"tokens"`
	}
	if err := client.GetJSON(ctx, "/debug/stats", &stats); err != nil {
		t.Fatalf("GetJSON() error = %v", err)
	}
	if stats.Live != 3 || stats.Tokens != 1 {
		t.Errorf("stats = %+v", stats)
	}

	err := client.GetJSON(ctx, "/ready", nil)
	if err == nil || !strings.Contains(err.Error(), "[SR-SYS-5030] not ready") {
		t.Errorf("ready error = %v", err)
	}

	err = client.GetJSON(ctx, "/broken", nil)
	if err == nil || !strings.Contains(err.Error(), "status 502") {
		t.Errorf("broken error = %v", err)
	}

	err = client.GetJSON(ctx, "/other", nil)
	if err == nil || !strings.Contains(err.Error(), "parse response") {
		t.Errorf("other error = %v", err)
	}
}

func TestHTTPClient_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	if err := NewHTTPClient(url).GetJSON(context.Background(), "/health", nil); err == nil {
		t.Error("expected error for closed server")
	}
}
