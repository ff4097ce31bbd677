package logx

import (
	"testing"
	"time"
)

func TestLoggerBuffersEntries(t *testing.T) {
	logger := NewLogger("test-component")
	before := time.Now().UTC().Add(-time.Second)

	logger.Info("turn processed for %s", "sess-1")
	logger.Warn("retrying generation")

	recent := RecentEntries(before)
	if len(recent) < 2 {
		t.Fatalf("expected at least 2 buffered entries, got %d", len(recent))
	}

	last := recent[len(recent)-1]
	if last.Name != "test-component" {
		t.Errorf("entry name = %q", last.Name)
	}
	if last.Level != string(LevelWarn) {
		t.Errorf("entry level = %q", last.Level)
	}
	if last.Message != "retrying generation" {
		t.Errorf("entry message = %q", last.Message)
	}
}

func TestPackageLevelHelpersUseSystemLogger(t *testing.T) {
	before := time.Now().UTC().Add(-time.Second)

	Infof("listener ready on %s", ":9090")
	Warnf("slow scrape")

	var names []string
	for _, e := range RecentEntries(before) {
		if e.Name == "system" {
			names = append(names, e.Level+": "+e.Message)
		}
	}
	if len(names) < 2 {
		t.Fatalf("expected 2 system entries, got %v", names)
	}
	if names[len(names)-2] != "INFO: listener ready on :9090" {
		t.Errorf("unexpected info entry %q", names[len(names)-2])
	}
	if names[len(names)-1] != "WARN: slow scrape" {
		t.Errorf("unexpected warn entry %q", names[len(names)-1])
	}
}

func TestDebugSuppressedByDefault(t *testing.T) {
	SetDebug(false)
	logger := NewLogger("debug-test")
	before := time.Now().UTC().Add(-time.Second)

	logger.Debug("hidden")
	for _, e := range RecentEntries(before) {
		if e.Name == "debug-test" {
			t.Fatal("debug entries should be suppressed when debug is off")
		}
	}

	SetDebug(true)
	defer SetDebug(false)
	logger.Debug("visible")

	found := false
	for _, e := range RecentEntries(before) {
		if e.Name == "debug-test" && e.Message == "visible" {
			found = true
		}
	}
	if !found {
		t.Error("debug entry should be buffered when debug is on")
	}
}

func TestInitAndClose(t *testing.T) {
	dir := t.TempDir()
	if err := Init(dir, false); err != nil {
		t.Fatalf("init failed: %v", err)
	}
	NewLogger("file-test").Info("written to file")
	if err := Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	// Closing twice is safe.
	if err := Close(); err != nil {
		t.Errorf("second close failed: %v", err)
	}
}
