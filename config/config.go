// Package config persists FlowSTT's application configuration to a
// platform-canonical directory as JSON.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/jeff-barlow-spady/ramble/pkg/audio"
)

// RecordingMode selects how the mixer combines microphone and system audio.
// Persisted as a string for a human-readable config file; ToAudio converts
// to the mixer's internal int-keyed representation.
type RecordingMode string

const (
	RecordingModeMixed      RecordingMode = "mixed"
	RecordingModeEchoCancel RecordingMode = "echo_cancel"
)

// ToAudio converts the persisted recording mode to the audio package's
// runtime representation, defaulting to Mixed for an unrecognized value.
func (r RecordingMode) ToAudio() audio.RecordingMode {
	if r == RecordingModeEchoCancel {
		return audio.RecordingModeEchoCancel
	}
	return audio.RecordingModeMixed
}

// RecordingModeFromAudio is ToAudio's inverse, used to keep the persisted
// config in sync when the runtime mode changes at the session layer.
func RecordingModeFromAudio(m audio.RecordingMode) RecordingMode {
	if m == audio.RecordingModeEchoCancel {
		return RecordingModeEchoCancel
	}
	return RecordingModeMixed
}

// TranscriptionMode selects what triggers segment capture.
type TranscriptionMode string

const (
	TranscriptionModeAutomatic  TranscriptionMode = "automatic"
	TranscriptionModePushToTalk TranscriptionMode = "push_to_talk"
)

// Config holds the full FlowSTT application configuration.
type Config struct {
	SampleRate        int    `json:"sample_rate"`
	RingBufferSeconds int    `json:"ring_buffer_seconds"`
	RecordingsDir     string `json:"recordings_dir"`
	ModelPath         string `json:"model_path"`

	PTTKey string `json:"ptt_key"`

	VoicedThresholdDB  float64 `json:"voiced_threshold_db"`
	WhisperThresholdDB float64 `json:"whisper_threshold_db"`
	VoicedOnsetMS      int     `json:"voiced_onset_ms"`
	WhisperOnsetMS     int     `json:"whisper_onset_ms"`
	HoldMS             int     `json:"hold_ms"`
	VADLookbackMS      int     `json:"vad_lookback_ms"`
	PTTLookbackMS      int     `json:"ptt_lookback_ms"`

	OverflowSplitFraction float64 `json:"overflow_split_fraction"`

	AECEnabled        bool              `json:"aec_enabled"`
	RecordingMode     RecordingMode     `json:"recording_mode"`
	TranscriptionMode TranscriptionMode `json:"transcription_mode"`

	Debug bool `json:"debug"`
}

// DefaultConfig returns the configuration defaults fixed by the spec's
// external-interfaces section.
func DefaultConfig() *Config {
	recordingsDir, err := GetRecordingsDir()
	if err != nil {
		recordingsDir = "./recordings"
	}
	modelPath, err := GetDefaultModelPath()
	if err != nil {
		modelPath = ""
	}

	return &Config{
		SampleRate:        48000,
		RingBufferSeconds: 30,
		RecordingsDir:     recordingsDir,
		ModelPath:         modelPath,

		PTTKey: defaultPTTKey(),

		VoicedThresholdDB:  -40,
		WhisperThresholdDB: -50,
		VoicedOnsetMS:      100,
		WhisperOnsetMS:     150,
		HoldMS:             300,
		VADLookbackMS:      200,
		PTTLookbackMS:      100,

		OverflowSplitFraction: 0.9,

		AECEnabled:        true,
		RecordingMode:     RecordingModeMixed,
		TranscriptionMode: TranscriptionModeAutomatic,

		Debug: false,
	}
}

// defaultPTTKey is Right-Option on macOS and the nearest equivalent
// elsewhere, per the spec's default-parameters table.
func defaultPTTKey() string {
	if runtime.GOOS == "darwin" {
		return "RightOption"
	}
	return "RightControl"
}

// Current holds the process-wide active configuration.
var Current = DefaultConfig()

// GetAppDir returns FlowSTT's platform-canonical application directory,
// creating it if necessary.
func GetAppDir() (string, error) {
	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("APPDATA")
		if base == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get user home directory: %w", err)
			}
			base = filepath.Join(home, "AppData", "Roaming")
		}
		base = filepath.Join(base, "FlowSTT")
	default:
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get user home directory: %w", err)
		}
		base = filepath.Join(home, ".flowstt")
	}

	if err := os.MkdirAll(base, 0755); err != nil {
		return "", fmt.Errorf("failed to create app directory: %w", err)
	}
	return base, nil
}

// GetConfigFilePath returns the path to the persisted config file.
func GetConfigFilePath() (string, error) {
	appDir, err := GetAppDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(appDir, "config.json"), nil
}

// GetRecordingsDir returns the directory where finalized segment WAV files
// are written, creating it if necessary.
func GetRecordingsDir() (string, error) {
	appDir, err := GetAppDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(appDir, "recordings")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create recordings directory: %w", err)
	}
	return dir, nil
}

// GetDefaultModelPath returns the platform-canonical path at which the
// Whisper model file is expected, per the spec's external-interfaces
// section. It does not guarantee the file exists.
func GetDefaultModelPath() (string, error) {
	var cacheDir string
	var err error
	switch runtime.GOOS {
	case "windows":
		cacheDir = os.Getenv("LOCALAPPDATA")
		if cacheDir == "" {
			home, herr := os.UserHomeDir()
			if herr != nil {
				return "", fmt.Errorf("failed to get user home directory: %w", herr)
			}
			cacheDir = filepath.Join(home, "AppData", "Local")
		}
	case "darwin":
		home, herr := os.UserHomeDir()
		if herr != nil {
			return "", fmt.Errorf("failed to get user home directory: %w", herr)
		}
		cacheDir = filepath.Join(home, "Library", "Caches")
	default:
		cacheDir, err = os.UserCacheDir()
		if err != nil {
			return "", fmt.Errorf("failed to get user cache directory: %w", err)
		}
	}
	return filepath.Join(cacheDir, "flowstt", "whisper", "ggml-base.en.bin"), nil
}

// LoadConfig loads the configuration from disk into Current, writing
// defaults on first run.
func LoadConfig() error {
	configPath, err := GetConfigFilePath()
	if err != nil {
		return fmt.Errorf("failed to get config file path: %w", err)
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		Current = DefaultConfig()
		return SaveConfig()
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	Current = cfg
	return nil
}

// SaveConfig persists Current to disk.
func SaveConfig() error {
	configPath, err := GetConfigFilePath()
	if err != nil {
		return fmt.Errorf("failed to get config file path: %w", err)
	}

	data, err := json.MarshalIndent(Current, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
