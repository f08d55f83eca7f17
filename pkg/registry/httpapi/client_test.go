package httpapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"pipehooks/pkg/registry"
)

func registryServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/targets/", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer api-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch r.URL.EscapedPath() {
		case "/api/v1/targets/acme%2Fshop":
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"key":"acme/shop","name":"shop","namespace":"acme","default_branch":"main"}`))
		case "/api/v1/targets/acme%2Fshop/branches/main":
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"name":"main","pipelines":{"build":"github-go-beego-app-build"}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestLookupTarget(t *testing.T) {
	server := registryServer(t)
	client := New(Config{BaseURL: server.URL, Token: "api-token"})

	target, err := client.LookupTarget(context.Background(), "acme/shop")
	if err != nil {
		t.Fatalf("lookup target: %v", err)
	}
	if target.Namespace != "acme" || target.DefaultBranch != "main" {
		t.Fatalf("unexpected target: %+v", target)
	}
}

func TestLookupBranch(t *testing.T) {
	server := registryServer(t)
	client := New(Config{BaseURL: server.URL, Token: "api-token"})

	target := &registry.TargetRecord{Key: "acme/shop"}
	branch, err := client.LookupBranch(context.Background(), target, "main")
	if err != nil {
		t.Fatalf("lookup branch: %v", err)
	}
	if branch.Pipelines["build"] != "github-go-beego-app-build" {
		t.Fatalf("unexpected branch record: %+v", branch)
	}
	if branch.TargetKey != "acme/shop" {
		t.Fatalf("expected target key backfilled, got %q", branch.TargetKey)
	}
}

// TestLookupNotFound tests that a 404 maps onto the registry miss sentinel.
func TestLookupNotFound(t *testing.T) {
	server := registryServer(t)
	client := New(Config{BaseURL: server.URL, Token: "api-token"})

	_, err := client.LookupTarget(context.Background(), "acme/unknown")
	if !errors.Is(err, registry.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLookupServerError(t *testing.T) {
	server := registryServer(t)
	client := New(Config{BaseURL: server.URL})

	_, err := client.LookupTarget(context.Background(), "acme/shop")
	if err == nil || errors.Is(err, registry.ErrNotFound) {
		t.Fatalf("expected a non-miss error without credentials, got %v", err)
	}
}
