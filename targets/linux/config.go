//go:build linux

package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"flyer/core"
	"flyer/host/serial"
)

// BoardConfig maps the flight loop onto a Linux single-board computer
type BoardConfig struct {
	// GPIO character device and line offsets
	Chip          string                `yaml:"chip"`
	ReceiverLines [core.NumChannels]int `yaml:"receiver_lines"` // roll, pitch, yaw, throttle
	LEDLine       int                   `yaml:"led_line"`       // -1 for none

	// Sysfs PWM chip and channels for front, left, right, rear
	PWMChip     int                 `yaml:"pwm_chip"`
	MotorPWM    [core.NumMotors]int `yaml:"motor_pwm"`
	MotorPeriod uint32              `yaml:"motor_period_us"`

	// Two-wire bus number of the gyro (/dev/i2c-N)
	I2CBus int `yaml:"i2c_bus"`

	// Telemetry serial link; empty device disables it
	Telemetry serial.Config `yaml:"telemetry"`

	Flight core.Config `yaml:"flight"`
	Level  string      `yaml:"level"`
}

// DefaultBoardConfig is a Raspberry Pi wiring
func DefaultBoardConfig() BoardConfig {
	return BoardConfig{
		Chip:          "gpiochip0",
		ReceiverLines: [core.NumChannels]int{17, 27, 22, 23},
		LEDLine:       24,
		PWMChip:       0,
		MotorPWM:      [core.NumMotors]int{0, 1, 2, 3},
		MotorPeriod:   core.DefaultMotorPeriodUS,
		I2CBus:        1,
		Telemetry:     serial.Config{Baud: serial.DefaultBaud},
		Flight:        core.DefaultConfig(),
		Level:         "info",
	}
}

// LoadBoardConfig overlays a YAML file on the defaults
func LoadBoardConfig(path string) (BoardConfig, error) {
	cfg := DefaultBoardConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read board config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse board config %s: %w", path, err)
	}
	return cfg, nil
}
