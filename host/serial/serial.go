package serial

import (
	"io"
)

// Port represents a serial port interface
// This abstraction allows for different implementations:
// - Native serial (using github.com/tarm/serial)
// - In-memory pipes (for the bench and tests)
type Port interface {
	io.ReadWriteCloser

	// Flush discards any data buffered but not yet transmitted or read
	Flush() error
}

// Config holds serial port configuration
type Config struct {
	// Device path (e.g., "/dev/ttyUSB0", "COM9")
	Device string `yaml:"device"`

	// Baud rate of the flight controller's telemetry UART
	Baud int `yaml:"baud"`

	// Read timeout in milliseconds (0 = blocking)
	ReadTimeout int `yaml:"read_timeout_ms"`
}

// DefaultBaud is the telemetry UART rate used by the firmware
const DefaultBaud = 115200

// DefaultConfig returns the telemetry link configuration for device
func DefaultConfig(device string) *Config {
	return &Config{
		Device:      device,
		Baud:        DefaultBaud,
		ReadTimeout: 100,
	}
}
