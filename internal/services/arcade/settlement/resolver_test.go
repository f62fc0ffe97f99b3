package settlement

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	apperrors "github.com/gemfall/arcade/internal/errors"
)

func TestResolveAddressReturnsFirstVerified(t *testing.T) {
	var gotPath, gotKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path + "?" + r.URL.RawQuery
		gotKey = r.Header.Get("x-api-key")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"users":[{"verified_addresses":{"eth_addresses":["0xAbc0000000000000000000000000000000000001","0xdef"]}}]}`))
	}))
	defer server.Close()

	resolver, err := NewHTTPResolver(server.URL, "secret-key")
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}
	address, err := resolver.ResolveAddress(context.Background(), "12345")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if address != "0xAbc0000000000000000000000000000000000001" {
		t.Fatalf("address = %q", address)
	}
	if gotPath != "/v2/farcaster/user/bulk?fids=12345" {
		t.Fatalf("path = %q", gotPath)
	}
	if gotKey != "secret-key" {
		t.Fatalf("api key header = %q", gotKey)
	}
}

func TestResolveAddressNoVerifiedAddress(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"users":[{"verified_addresses":{"eth_addresses":[]}}]}`))
	}))
	defer server.Close()

	resolver, err := NewHTTPResolver(server.URL, "")
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}
	_, err = resolver.ResolveAddress(context.Background(), "12345")
	if !apperrors.IsCode(err, apperrors.CodeNoDestination) {
		t.Fatalf("expected CodeNoDestination, got %v", err)
	}
}

func TestResolveAddressUnknownPlayer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer server.Close()

	resolver, err := NewHTTPResolver(server.URL, "")
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}
	_, err = resolver.ResolveAddress(context.Background(), "99999")
	if !apperrors.IsCode(err, apperrors.CodeNoDestination) {
		t.Fatalf("expected CodeNoDestination, got %v", err)
	}
}

func TestResolveAddressUpstreamFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer server.Close()

	resolver, err := NewHTTPResolver(server.URL, "")
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}
	_, err = resolver.ResolveAddress(context.Background(), "12345")
	if err == nil {
		t.Fatal("expected error for upstream failure")
	}
	if apperrors.GetCode(err) != apperrors.CodeUnknown {
		t.Fatalf("expected uncoded error for caller to classify, got %v", err)
	}
}

func TestNewHTTPResolverRequiresBaseURL(t *testing.T) {
	if _, err := NewHTTPResolver("  ", "key"); err == nil {
		t.Fatal("expected error for blank base url")
	}
}
