package session

import (
	"testing"

	"github.com/jeff-barlow-spady/ramble/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.RecordingsDir = t.TempDir()
	cfg.ModelPath = ""
	return cfg
}

func TestNewSessionWiresSubsystems(t *testing.T) {
	s := New(testConfig(t))
	if s.backend == nil || s.mixer == nil || s.detector == nil || s.controller == nil || s.worker == nil {
		t.Fatalf("expected all subsystems wired, got %+v", s)
	}
}

func TestCheckModelStatusMissingPath(t *testing.T) {
	s := New(testConfig(t))
	available, path := s.CheckModelStatus()
	if available {
		t.Fatalf("expected unavailable model for empty path")
	}
	if path != "" {
		t.Fatalf("expected empty path echoed back, got %q", path)
	}
}

func TestGetPTTStatusDefaultsToInactive(t *testing.T) {
	s := New(testConfig(t))
	status := s.GetPTTStatus()
	if status.IsActive {
		t.Fatalf("expected PTT inactive before any key events")
	}
}

func TestSetTranscribeEnabledRoundTrips(t *testing.T) {
	s := New(testConfig(t))
	if err := s.SetTranscribeEnabled(false); err != nil {
		t.Fatalf("unexpected error disabling transcribe: %v", err)
	}
	if err := s.SetTranscribeEnabled(true); err != nil {
		t.Fatalf("unexpected error re-enabling transcribe: %v", err)
	}
}
