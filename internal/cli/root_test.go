package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/vikram-trellis/corgi-hack/internal/core/domain"
	"github.com/vikram-trellis/corgi-hack/internal/core/ports"
)

type inboxFake struct {
	ports.InboxService
	stats    domain.InboxStats
	exported domain.InboxFilter
}

func (f *inboxFake) Stats(context.Context) (domain.InboxStats, error) { return f.stats, nil }

func (f *inboxFake) Export(_ context.Context, filter domain.InboxFilter, w io.Writer) error {
	f.exported = filter
	_, err := w.Write([]byte("xlsx"))
	return err
}

type converterFake struct {
	ports.InboxConverter
	convertRef   domain.InboxRef
	reconcileRef domain.InboxRef
	reconcileTo  string
	olderThan    time.Duration
	limit        int
	err          error
}

func (f *converterFake) Convert(_ context.Context, ref domain.InboxRef) (*domain.ConversionResult, error) {
	f.convertRef = ref
	if f.err != nil {
		return nil, f.err
	}
	return &domain.ConversionResult{ConvertedClaimID: "claim_1", OriginalInboxID: "inbox_1", DocumentsTransferred: 2}, nil
}

func (f *converterFake) Reconcile(_ context.Context, ref domain.InboxRef, claimID string) (*domain.ConversionResult, error) {
	f.reconcileRef = ref
	f.reconcileTo = claimID
	return &domain.ConversionResult{ConvertedClaimID: claimID, OriginalInboxID: ref.Value}, nil
}

func (f *converterFake) ReconcilePending(_ context.Context, olderThan time.Duration, limit int) (int, error) {
	f.olderThan = olderThan
	f.limit = limit
	return 3, nil
}

func run(t *testing.T, deps Deps, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand(deps)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func depsWith(inbox *inboxFake, conv *converterFake, closed *bool) Deps {
	return Deps{
		Open: func(context.Context) (*Runtime, error) {
			return &Runtime{Inbox: inbox, Converter: conv, Close: func() { *closed = true }}, nil
		},
	}
}

func TestConvertPrintsResultAndClosesRuntime(t *testing.T) {
	conv := &converterFake{}
	closed := false
	out, err := run(t, depsWith(&inboxFake{}, conv, &closed), "convert", "INB-ABCD1234")
	if err != nil {
		t.Fatalf("convert error = %v", err)
	}
	if conv.convertRef.Kind != domain.ByExternalID {
		t.Fatalf("expected external ref, got %+v", conv.convertRef)
	}
	var result domain.ConversionResult
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("output is not json: %v\n%s", err, out)
	}
	if result.ConvertedClaimID != "claim_1" || result.DocumentsTransferred != 2 {
		t.Fatalf("unexpected result %+v", result)
	}
	if !closed {
		t.Fatalf("expected runtime to be closed")
	}
}

func TestConvertReturnsUseCaseError(t *testing.T) {
	conv := &converterFake{err: &domain.AlreadyConvertedError{InboxID: "inbox_1", ConvertedClaimID: "claim_9"}}
	closed := false
	_, err := run(t, depsWith(&inboxFake{}, conv, &closed), "convert", "inbox_1")
	if !domain.IsKind(err, domain.ErrAlreadyConverted) {
		t.Fatalf("expected already converted error, got %v", err)
	}
}

func TestReconcileWithClaim(t *testing.T) {
	conv := &converterFake{}
	closed := false
	if _, err := run(t, depsWith(&inboxFake{}, conv, &closed), "reconcile", "inbox_1", "claim_7"); err != nil {
		t.Fatalf("reconcile error = %v", err)
	}
	if conv.reconcileRef.Value != "inbox_1" || conv.reconcileTo != "claim_7" {
		t.Fatalf("unexpected reconcile call ref=%+v claim=%q", conv.reconcileRef, conv.reconcileTo)
	}
}

func TestReconcilePendingUsesFlags(t *testing.T) {
	conv := &converterFake{}
	closed := false
	out, err := run(t, depsWith(&inboxFake{}, conv, &closed), "reconcile", "--pending", "--older-than", "10m", "--limit", "7")
	if err != nil {
		t.Fatalf("reconcile --pending error = %v", err)
	}
	if conv.olderThan != 10*time.Minute || conv.limit != 7 {
		t.Fatalf("unexpected sweep olderThan=%s limit=%d", conv.olderThan, conv.limit)
	}
	if !strings.Contains(out, "reconciled 3 pending conversions") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestReconcileArgumentValidation(t *testing.T) {
	closed := false
	deps := depsWith(&inboxFake{}, &converterFake{}, &closed)
	if _, err := run(t, deps, "reconcile"); err == nil {
		t.Fatalf("expected error without inbox id")
	}
	if _, err := run(t, deps, "reconcile", "--pending", "inbox_1"); err == nil {
		t.Fatalf("expected error for --pending with arguments")
	}
	if closed {
		t.Fatalf("runtime must not be opened for invalid arguments")
	}
}

func TestStatsPrintsCounts(t *testing.T) {
	inbox := &inboxFake{stats: domain.NewInboxStats(map[domain.InboxStatus]int{domain.InboxNew: 4, domain.InboxConverted: 1})}
	closed := false
	out, err := run(t, depsWith(inbox, &converterFake{}, &closed), "stats")
	if err != nil {
		t.Fatalf("stats error = %v", err)
	}
	var stats domain.InboxStats
	if err := json.Unmarshal([]byte(out), &stats); err != nil {
		t.Fatalf("output is not json: %v", err)
	}
	if stats.Total != 5 || stats.ByStatus[domain.InboxNew] != 4 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestExportWritesFile(t *testing.T) {
	inbox := &inboxFake{}
	closed := false
	path := filepath.Join(t.TempDir(), "out.xlsx")
	if _, err := run(t, depsWith(inbox, &converterFake{}, &closed), "export", "-o", path, "--status", "new"); err != nil {
		t.Fatalf("export error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	if string(data) != "xlsx" || inbox.exported.InboxStatus != domain.InboxNew {
		t.Fatalf("unexpected export data=%q filter=%+v", data, inbox.exported)
	}
}

func TestMigrate(t *testing.T) {
	called := false
	out, err := run(t, Deps{Migrate: func(context.Context) error { called = true; return nil }}, "migrate")
	if err != nil || !called {
		t.Fatalf("migrate err=%v called=%v", err, called)
	}
	if !strings.Contains(out, "schema is up to date") {
		t.Fatalf("unexpected output %q", out)
	}

	boom := errors.New("boom")
	_, err = run(t, Deps{Migrate: func(context.Context) error { return boom }}, "migrate")
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped migrate error, got %v", err)
	}
}

func TestMissingDependency(t *testing.T) {
	if _, err := run(t, Deps{}, "stats"); !errors.Is(err, errMissingDependency) {
		t.Fatalf("expected missing dependency error, got %v", err)
	}
}
