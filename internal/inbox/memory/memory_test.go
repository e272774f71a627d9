package memory

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"expensebot/internal/core"
)

func TestFetchWindowAndOrder(t *testing.T) {
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	s := New(
		core.InboundMessage{ID: "old", ReceivedAt: now.AddDate(0, 0, -10)},
		core.InboundMessage{ID: "a", ReceivedAt: now.Add(-48 * time.Hour)},
		core.InboundMessage{ID: "b", ReceivedAt: now.Add(-time.Hour)},
		core.InboundMessage{ReceivedAt: now},
	)
	s.now = func() time.Time { return now }

	got, err := s.Fetch(context.Background(), time.Time{}, 0)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(got) != 2 || got[0].ID != "b" || got[1].ID != "a" {
		t.Fatalf("unexpected messages: %+v", got)
	}

	got, _ = s.Fetch(context.Background(), now.AddDate(0, 0, -1), 0)
	if len(got) != 1 || got[0].ID != "b" {
		t.Fatalf("since filter: %+v", got)
	}

	got, _ = s.Fetch(context.Background(), now.AddDate(0, 0, -30), 1)
	if len(got) != 1 {
		t.Fatalf("max not applied: %d", len(got))
	}
}

func TestFetchCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := New().Fetch(ctx, time.Time{}, 1); err == nil {
		t.Fatal("expected context error")
	}
}

func TestNewFromDir(t *testing.T) {
	dir := t.TempDir()
	many := `[
  {"id": "r1", "subject": "Receipt", "sender": "shop@example.com", "body": "Total $9.99", "received_at": "2024-03-14T08:00:00Z"},
  {"id": "r2", "subject": "Invoice", "sender": "bill@example.com", "body": "` + strings.Repeat("z", 2100) + `", "received_at": "2024-03-13T08:00:00Z"}
]`
	one := `{"id": "n1", "subject": "News", "sender": "news@example.com", "body": "hello", "received_at": "2024-03-12T08:00:00Z"}`
	if err := os.WriteFile(filepath.Join(dir, "a.json"), []byte(many), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "b.json"), []byte(one), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := NewFromDir(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	got, err := s.Fetch(context.Background(), time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), 10)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(got))
	}
	if got[0].ID != "r1" || got[2].ID != "n1" {
		t.Fatalf("unexpected order: %s %s %s", got[0].ID, got[1].ID, got[2].ID)
	}
	if len(got[1].Body) != 2000 {
		t.Fatalf("body not truncated: %d", len(got[1].Body))
	}
}

func TestNewFromDirBadFixture(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "bad.json"), []byte("{"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewFromDir(dir); err == nil {
		t.Fatal("expected parse error")
	}
}
