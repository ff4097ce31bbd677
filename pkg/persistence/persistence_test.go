package persistence

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"coach/pkg/proto"
	"coach/pkg/session"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "coach.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSaveAndLoadSnapshot(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	sess := session.New("two sum", nil)
	sess.TransitionTo(proto.StageArticulation)
	sess.IdentifiedPattern = "Hash Table / Two Pointer"
	if err := sess.AddMessage(proto.RoleUser, "find the pair"); err != nil {
		t.Fatal(err)
	}

	if err := store.SaveSnapshot(ctx, sess); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	restored, err := store.LoadSnapshot(ctx, sess.ID)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if restored.CurrentStage != proto.StageArticulation {
		t.Errorf("stage = %s", restored.CurrentStage)
	}
	if restored.IdentifiedPattern != sess.IdentifiedPattern {
		t.Errorf("pattern = %q", restored.IdentifiedPattern)
	}
	if len(restored.Log) != 1 {
		t.Errorf("log length = %d", len(restored.Log))
	}
}

func TestSaveSnapshotUpserts(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	sess := session.New("two sum", nil)
	if err := store.SaveSnapshot(ctx, sess); err != nil {
		t.Fatal(err)
	}

	sess.TransitionTo(proto.StageArticulation)
	if err := store.SaveSnapshot(ctx, sess); err != nil {
		t.Fatal(err)
	}

	restored, err := store.LoadSnapshot(ctx, sess.ID)
	if err != nil {
		t.Fatal(err)
	}
	if restored.CurrentStage != proto.StageArticulation {
		t.Errorf("second save should overwrite, stage = %s", restored.CurrentStage)
	}
}

func TestLoadMissingSession(t *testing.T) {
	store := openTestStore(t)

	_, err := store.LoadSnapshot(context.Background(), "no-such-id")
	if !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("err = %v, want ErrSessionNotFound", err)
	}
}

func TestEndSession(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	sess := session.New("two sum", nil)
	if err := store.SaveSnapshot(ctx, sess); err != nil {
		t.Fatal(err)
	}

	if err := store.EndSession(ctx, sess.ID, StatusCompleted); err != nil {
		t.Fatalf("end failed: %v", err)
	}

	active, err := store.ActiveSessions(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := active[sess.ID]; ok {
		t.Error("completed session should not be active")
	}

	if err := store.EndSession(ctx, sess.ID, "running"); err == nil {
		t.Error("non-terminal status should be rejected")
	}
	if err := store.EndSession(ctx, "no-such-id", StatusAbandoned); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("err = %v, want ErrSessionNotFound", err)
	}
}

func TestActiveSessions(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	first := session.New("problem one", nil)
	second := session.New("problem two", nil)
	second.TransitionTo(proto.StageArticulation)

	for _, sess := range []*session.State{first, second} {
		if err := store.SaveSnapshot(ctx, sess); err != nil {
			t.Fatal(err)
		}
	}

	active, err := store.ActiveSessions(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 2 {
		t.Fatalf("active sessions = %d, want 2", len(active))
	}
	if active[second.ID] != proto.StageArticulation {
		t.Errorf("stage for %s = %s", second.ID, active[second.ID])
	}
}
