package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	if !cfg.Simulation.AutomaticBonds {
		t.Error("expected automatic bonds on by default")
	}
	if !cfg.Simulation.SendBeepsAndMessages {
		t.Error("expected signal delivery on by default")
	}
	if cfg.Telemetry.WindowRounds != 10 {
		t.Errorf("expected default window of 10 rounds, got %d", cfg.Telemetry.WindowRounds)
	}
}

func TestLoadMergesUserFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := "simulation:\n  send_beeps_and_messages: false\ntelemetry:\n  window_rounds: 3\n"
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Simulation.SendBeepsAndMessages {
		t.Error("user file should disable signal delivery")
	}
	if cfg.Telemetry.WindowRounds != 3 {
		t.Errorf("expected window of 3 rounds, got %d", cfg.Telemetry.WindowRounds)
	}
	// Untouched fields keep their defaults.
	if !cfg.Simulation.AutomaticBonds {
		t.Error("automatic bonds default should survive the merge")
	}
}

func TestLoadClampsWindow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("telemetry:\n  window_rounds: 0\n"), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Telemetry.WindowRounds != 1 {
		t.Errorf("expected clamp to 1, got %d", cfg.Telemetry.WindowRounds)
	}
}

func TestWriteYAMLRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.yaml")
	cfg := Default()
	cfg.Telemetry.WindowRounds = 25
	if err := cfg.WriteYAML(path); err != nil {
		t.Fatalf("WriteYAML: %v", err)
	}
	back, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if back.Telemetry.WindowRounds != 25 {
		t.Errorf("round trip lost window setting, got %d", back.Telemetry.WindowRounds)
	}
}
