package localfs

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/vikram-trellis/corgi-hack/internal/core/domain"
)

func TestPutOpenDeleteRoundTrip(t *testing.T) {
	store, err := New(t.TempDir(), "http://files.local/docs/")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ctx := context.Background()

	url, err := store.Put(ctx, "CLM1/01HZX.pdf", "application/pdf", strings.NewReader("payload"))
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if url != "http://files.local/docs/CLM1/01HZX.pdf" {
		t.Fatalf("unexpected url %s", url)
	}

	rc, err := store.Open(ctx, url)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	raw, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(raw) != "payload" {
		t.Fatalf("unexpected content %q", raw)
	}

	if err := store.Delete(ctx, url); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := store.Delete(ctx, url); err != nil {
		t.Fatalf("second Delete() error = %v", err)
	}
	if _, err := store.Open(ctx, url); !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestRejectsTraversalAndForeignURLs(t *testing.T) {
	store, err := New(t.TempDir(), "")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ctx := context.Background()

	if _, err := store.Put(ctx, "../escape.txt", "", strings.NewReader("x")); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for traversal, got %v", err)
	}
	if _, err := store.Open(ctx, "https://storage.example.com/roof.jpg"); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for foreign url, got %v", err)
	}
}
