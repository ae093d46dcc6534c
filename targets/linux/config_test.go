//go:build linux

package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"flyer/core"
)

func TestLoadBoardConfigDefaults(t *testing.T) {
	cfg, err := LoadBoardConfig("")
	if err != nil {
		t.Fatalf("LoadBoardConfig failed: %v", err)
	}
	if cfg.Flight != core.DefaultConfig() {
		t.Errorf("Expected default flight config, got %+v", cfg.Flight)
	}
	if cfg.MotorPeriod != core.DefaultMotorPeriodUS {
		t.Errorf("Expected motor period %d, got %d", core.DefaultMotorPeriodUS, cfg.MotorPeriod)
	}
}

func TestLoadBoardConfigOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "board.yaml")
	data := []byte(`
receiver_lines: [5, 6, 13, 19]
led_line: -1
i2c_bus: 3
telemetry:
  device: /dev/ttyUSB0
flight:
  startup_delay: 2s
  gains:
    throttle: 10
  calibration:
    samples: 16
`)
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadBoardConfig(path)
	if err != nil {
		t.Fatalf("LoadBoardConfig failed: %v", err)
	}

	if cfg.ReceiverLines != [core.NumChannels]int{5, 6, 13, 19} {
		t.Errorf("Unexpected receiver lines %v", cfg.ReceiverLines)
	}
	if cfg.LEDLine != -1 || cfg.I2CBus != 3 {
		t.Errorf("Unexpected led %d / bus %d", cfg.LEDLine, cfg.I2CBus)
	}
	if cfg.Telemetry.Device != "/dev/ttyUSB0" || cfg.Telemetry.Baud != 115200 {
		t.Errorf("Unexpected telemetry config %+v", cfg.Telemetry)
	}
	if cfg.Flight.StartupDelay != 2*time.Second {
		t.Errorf("Expected 2s startup delay, got %v", cfg.Flight.StartupDelay)
	}
	if cfg.Flight.Gains.Throttle != 10 || cfg.Flight.Gains.PitchGyro != 8 {
		t.Errorf("Gains not overlaid: %+v", cfg.Flight.Gains)
	}
	if cfg.Flight.Calibration.Samples != 16 || cfg.Flight.Calibration.ReadDelay != 4*time.Millisecond {
		t.Errorf("Calibration not overlaid: %+v", cfg.Flight.Calibration)
	}
	if cfg.Chip != "gpiochip0" {
		t.Errorf("Expected default chip kept, got %q", cfg.Chip)
	}
}

func TestLoadBoardConfigMissing(t *testing.T) {
	if _, err := LoadBoardConfig(filepath.Join(t.TempDir(), "none.yaml")); err == nil {
		t.Error("Expected error for a missing file")
	}
}
