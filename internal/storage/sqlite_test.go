package storage

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/honeytrace/honeypot/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "records.sqlite"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func newRecord() model.AttackRecord {
	return model.AttackRecord{
		SessionID:     "sess-1",
		StartedAt:     time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC),
		SourceAddress: "203.0.113.7",
		Port:          2323,
		Protocol:      model.ProtocolTelnet,
		Banner:        "Ubuntu 20.04.3 LTS",
	}
}

func TestSaveRecordAssignsIDAndUpdatesInPlace(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	rec := newRecord()
	if err := st.SaveRecord(ctx, &rec); err != nil {
		t.Fatalf("first save: %v", err)
	}
	if rec.ID == "" {
		t.Fatal("expected ID to be assigned")
	}
	firstID := rec.ID

	rec.Username = "admin"
	rec.Password = "1234"
	rec.Commands = append(rec.Commands,
		model.CommandEntry{Timestamp: rec.StartedAt.Add(time.Second), Command: "pwd"},
		model.CommandEntry{Timestamp: rec.StartedAt.Add(2 * time.Second), Command: "exit"},
	)
	rec.EndedAt = rec.StartedAt.Add(3 * time.Second)
	rec.CloseReason = model.CloseExit
	if err := st.SaveRecord(ctx, &rec); err != nil {
		t.Fatalf("second save: %v", err)
	}
	if rec.ID != firstID {
		t.Fatalf("ID changed on update: %q -> %q", firstID, rec.ID)
	}

	n, err := st.CountRecords(ctx)
	if err != nil {
		t.Fatalf("CountRecords: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 row after upsert, got %d", n)
	}

	got, err := st.GetRecord(ctx, firstID)
	if err != nil {
		t.Fatalf("GetRecord: %v", err)
	}
	if got.Username != "admin" || got.Password != "1234" {
		t.Fatalf("credentials not persisted: %+v", got)
	}
	lines := got.CommandLines()
	if len(lines) != 2 || lines[0] != "pwd" || lines[1] != "exit" {
		t.Fatalf("commands = %v", lines)
	}
	if !got.EndedAt.Equal(rec.EndedAt) || got.CloseReason != model.CloseExit {
		t.Fatalf("final state not persisted: %+v", got)
	}
	if got.Protocol != model.ProtocolTelnet || got.Port != 2323 {
		t.Fatalf("identity fields wrong: %+v", got)
	}
}

func TestSaveRecordValidation(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	if err := st.SaveRecord(ctx, nil); err == nil {
		t.Fatal("expected error for nil record")
	}
	rec := newRecord()
	rec.SessionID = ""
	if err := st.SaveRecord(ctx, &rec); err == nil {
		t.Fatal("expected error for empty session id")
	}
}

func TestGetRecordNotFound(t *testing.T) {
	st := openTestStore(t)
	if _, err := st.GetRecord(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestConcurrentSaves(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 32)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec := newRecord()
			if err := st.SaveRecord(ctx, &rec); err != nil {
				errs <- err
				return
			}
			rec.Username = "root"
			errs <- st.SaveRecord(ctx, &rec)
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent save: %v", err)
		}
	}
	n, err := st.CountRecords(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 32 {
		t.Fatalf("expected 32 records, got %d", n)
	}
}
