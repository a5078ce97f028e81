package services_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"shelfcast/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithBookID(ctx, "book-42")
	ctx = services.WithJobID(ctx, "job-1")
	ctx = services.WithOperation(ctx, "fetch")
	ctx = services.WithRequestID(ctx, "req-123")

	if id, ok := services.BookIDFromContext(ctx); !ok || id != "book-42" {
		t.Fatalf("unexpected book id: %v %v", id, ok)
	}
	if id, ok := services.JobIDFromContext(ctx); !ok || id != "job-1" {
		t.Fatalf("unexpected job id: %v %v", id, ok)
	}
	if op, ok := services.OperationFromContext(ctx); !ok || op != "fetch" {
		t.Fatalf("unexpected operation: %v %v", op, ok)
	}
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-123" {
		t.Fatalf("unexpected request id: %v %v", rid, ok)
	}
}

func TestBlankValuesPreserveContext(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithOperation(ctx, "")
	ctx = services.WithBookID(ctx, "")
	if _, ok := services.OperationFromContext(ctx); ok {
		t.Fatal("expected no operation value")
	}
	if _, ok := services.BookIDFromContext(ctx); ok {
		t.Fatal("expected no book id value")
	}
}

func TestWrapTagsMarker(t *testing.T) {
	base := errors.New("connection reset")
	err := services.Wrap(services.ErrTransient, "catalog", "get book", "", base)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped cause, got %v", err)
	}
	if !strings.Contains(err.Error(), "catalog: get book") {
		t.Fatalf("expected detail in message, got %q", err.Error())
	}
}

func TestWrapExposesComponent(t *testing.T) {
	err := fmt.Errorf("fetch: %w", services.Wrap(nil, "transcode", "ffmpeg", "exit 1", nil))
	var classified *services.Error
	if !errors.As(err, &classified) {
		t.Fatalf("expected *services.Error in %v", err)
	}
	if classified.Component != "transcode" || !errors.Is(err, services.ErrTransient) {
		t.Fatalf("unexpected classification: %+v", classified)
	}
	if got := classified.Error(); got != "transient failure: transcode: ffmpeg: exit 1" {
		t.Fatalf("message = %q", got)
	}
}
