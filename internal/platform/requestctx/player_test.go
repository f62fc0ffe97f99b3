package requestctx

import (
	"context"
	"testing"
)

func TestPlayerIDRoundTrip(t *testing.T) {
	ctx := WithPlayerID(context.Background(), "fid-746")
	if got := PlayerIDFromContext(ctx); got != "fid-746" {
		t.Fatalf("player id = %q, want %q", got, "fid-746")
	}
}

func TestPlayerIDMissing(t *testing.T) {
	if got := PlayerIDFromContext(context.Background()); got != "" {
		t.Fatalf("expected empty player id, got %q", got)
	}
}

func TestPlayerIDNilContext(t *testing.T) {
	if got := PlayerIDFromContext(nil); got != "" {
		t.Fatalf("expected empty player id, got %q", got)
	}
	ctx := WithPlayerID(nil, "fid-1")
	if got := PlayerIDFromContext(ctx); got != "fid-1" {
		t.Fatalf("player id = %q, want %q", got, "fid-1")
	}
}
