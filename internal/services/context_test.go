package services_test

import (
	"context"
	"testing"

	"mailreel/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithMessageID(ctx, "m1")
	ctx = services.WithBatchID(ctx, "batch-7")
	ctx = services.WithStage(ctx, "script")
	ctx = services.WithRequestID(ctx, "req-123")

	if id, ok := services.MessageIDFromContext(ctx); !ok || id != "m1" {
		t.Fatalf("unexpected message id: %v %v", id, ok)
	}
	if id, ok := services.BatchIDFromContext(ctx); !ok || id != "batch-7" {
		t.Fatalf("unexpected batch id: %v %v", id, ok)
	}
	if stage, ok := services.StageFromContext(ctx); !ok || stage != "script" {
		t.Fatalf("unexpected stage: %v %v", stage, ok)
	}
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-123" {
		t.Fatalf("unexpected request id: %v %v", rid, ok)
	}
}

func TestBlankValuesPreserveContext(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithStage(ctx, "")
	ctx = services.WithMessageID(ctx, "")
	if _, ok := services.StageFromContext(ctx); ok {
		t.Fatal("expected no stage value")
	}
	if _, ok := services.MessageIDFromContext(ctx); ok {
		t.Fatal("expected no message id value")
	}
}
