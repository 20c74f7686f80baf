package config

import "testing"

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.SampleRate != 48000 {
		t.Errorf("expected default SampleRate 48000, got %d", cfg.SampleRate)
	}
	if cfg.RingBufferSeconds != 30 {
		t.Errorf("expected default RingBufferSeconds 30, got %d", cfg.RingBufferSeconds)
	}
	if cfg.VoicedThresholdDB != -40 {
		t.Errorf("expected default VoicedThresholdDB -40, got %v", cfg.VoicedThresholdDB)
	}
	if cfg.WhisperThresholdDB != -50 {
		t.Errorf("expected default WhisperThresholdDB -50, got %v", cfg.WhisperThresholdDB)
	}
	if cfg.VoicedOnsetMS != 100 || cfg.WhisperOnsetMS != 150 {
		t.Errorf("unexpected onset defaults: voiced=%d whisper=%d", cfg.VoicedOnsetMS, cfg.WhisperOnsetMS)
	}
	if cfg.HoldMS != 300 {
		t.Errorf("expected default HoldMS 300, got %d", cfg.HoldMS)
	}
	if cfg.VADLookbackMS != 200 || cfg.PTTLookbackMS != 100 {
		t.Errorf("unexpected lookback defaults: vad=%d ptt=%d", cfg.VADLookbackMS, cfg.PTTLookbackMS)
	}
	if cfg.OverflowSplitFraction != 0.9 {
		t.Errorf("expected default OverflowSplitFraction 0.9, got %v", cfg.OverflowSplitFraction)
	}
	if cfg.RecordingMode != RecordingModeMixed {
		t.Errorf("expected default RecordingMode mixed, got %v", cfg.RecordingMode)
	}
	if cfg.TranscriptionMode != TranscriptionModeAutomatic {
		t.Errorf("expected default TranscriptionMode automatic, got %v", cfg.TranscriptionMode)
	}
	if !cfg.AECEnabled {
		t.Error("expected AEC enabled by default")
	}
}

func TestCurrentConfig(t *testing.T) {
	if Current == nil {
		t.Fatal("Current config should not be nil")
	}
	if Current.SampleRate != 48000 {
		t.Errorf("expected Current.SampleRate 48000, got %d", Current.SampleRate)
	}
}
