package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	logx "domwatch/pkg/logx"
)

func openTestStore(t *testing.T, dir string) Store {
	t.Helper()
	s, err := Open(Config{Driver: "file", Path: filepath.Join(dir, "store")}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if s == nil {
		t.Fatal("Open returned nil store for file driver")
	}
	return s
}

func TestOpenDisabled(t *testing.T) {
	t.Parallel()

	for _, driver := range []string{"", "none", " None "} {
		s, err := Open(Config{Driver: driver}, logx.Nop())
		if err != nil {
			t.Fatalf("Open(%q): %v", driver, err)
		}
		if s != nil {
			t.Fatalf("Open(%q) should return nil store", driver)
		}
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	t.Parallel()

	if _, err := Open(Config{Driver: "etcd"}, logx.Nop()); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestOpenFileRequiresPath(t *testing.T) {
	t.Parallel()

	if _, err := Open(Config{Driver: "file"}, logx.Nop()); err == nil {
		t.Fatal("expected error for missing path")
	}
}

func TestFileAuditAppend(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s := openTestStore(t, dir)
	defer s.Close()

	ctx := context.Background()
	entries := []AuditEntry{
		{UserID: 7, Username: "alice", ChatID: 7, Action: "subscribe", Domain: "example.com", OK: true},
		{UserID: 9, Action: "unsubscribe", Domain: "other.com", OK: false, Error: "not subscribed to other.com"},
	}
	for _, e := range entries {
		if err := s.AppendAudit(ctx, e); err != nil {
			t.Fatalf("AppendAudit: %v", err)
		}
	}
}

func TestFileMarksRoundTrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s := openTestStore(t, dir)
	defer s.Close()

	ctx := context.Background()
	until := time.Now().Add(time.Hour)
	if err := s.PutMark(ctx, "seen:example.com:listing:l1", until); err != nil {
		t.Fatalf("PutMark: %v", err)
	}

	got, ok, err := s.GetMark(ctx, "seen:example.com:listing:l1")
	if err != nil || !ok {
		t.Fatalf("GetMark = (%v, %v, %v)", got, ok, err)
	}
	// Stored at millisecond precision.
	if got.UnixMilli() != until.UnixMilli() {
		t.Fatalf("mark time = %v, want %v", got, until)
	}

	if _, ok, err := s.GetMark(ctx, "seen:example.com:listing:other"); err != nil || ok {
		t.Fatalf("missing key: ok = %v, err = %v", ok, err)
	}
	if _, ok, err := s.GetMark(ctx, "  "); err != nil || ok {
		t.Fatalf("blank key: ok = %v, err = %v", ok, err)
	}
}

func TestFileMarksSurviveReopen(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	ctx := context.Background()

	s := openTestStore(t, dir)
	until := time.Now().Add(time.Hour)
	if err := s.PutMark(ctx, "k1", until); err != nil {
		t.Fatalf("PutMark: %v", err)
	}
	expired := time.Now().Add(-time.Minute)
	if err := s.PutMark(ctx, "old", expired); err != nil {
		t.Fatalf("PutMark: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Reopen: journal replay restores live marks and drops expired ones.
	s2 := openTestStore(t, dir)
	defer s2.Close()

	if _, ok, err := s2.GetMark(ctx, "k1"); err != nil || !ok {
		t.Fatalf("k1 after reopen: ok = %v, err = %v", ok, err)
	}
	if _, ok, err := s2.GetMark(ctx, "old"); err != nil || ok {
		t.Fatalf("expired mark survived reopen: ok = %v, err = %v", ok, err)
	}
}

func TestFileOpsAfterClose(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s := openTestStore(t, dir)
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	// Second close is a no-op.
	if err := s.Close(); err != nil {
		t.Fatalf("double Close: %v", err)
	}

	ctx := context.Background()
	if err := s.AppendAudit(ctx, AuditEntry{Action: "subscribe"}); err == nil {
		t.Fatal("AppendAudit after Close should fail")
	}
	if err := s.PutMark(ctx, "k", time.Now().Add(time.Hour)); err == nil {
		t.Fatal("PutMark after Close should fail")
	}
}
