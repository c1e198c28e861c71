package observability

import (
	"context"
	"testing"
	"time"
)

func TestInitTracer_EmptyEndpointIsNoop(t *testing.T) {
	shutdown, err := InitTracer(context.Background(), "wgfctl", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if shutdown == nil {
		t.Fatal("expected shutdown function to be non-nil")
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("no-op shutdown returned %v", err)
	}
}

func TestInitTracer_LazyConnection(t *testing.T) {
	shutdown, err := InitTracer(context.Background(), "wgfctl", "localhost:4317")
	if err != nil {
		t.Fatalf("unreachable collector should not fail init: %v", err)
	}
	if shutdown == nil {
		t.Fatal("expected shutdown function to be non-nil")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()
	_ = shutdown(shutdownCtx)
}
