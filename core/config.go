package core

import "time"

// Channel identifies one receiver input
type Channel uint8

// Receiver channels in the order the pins are wired on the board
const (
	Roll Channel = iota
	Pitch
	Yaw
	Throttle
	NumChannels
)

// String returns the channel name used in debug output
func (c Channel) String() string {
	switch c {
	case Roll:
		return "roll"
	case Pitch:
		return "pitch"
	case Yaw:
		return "yaw"
	case Throttle:
		return "throttle"
	default:
		return "unknown"
	}
}

// PulseWindow holds the validity windows applied to receiver edges, in microseconds
type PulseWindow struct {
	MinWidth uint32 `yaml:"min_width"` // Shortest accepted high pulse
	MaxWidth uint32 `yaml:"max_width"` // Longest accepted high pulse
	MinGap   uint32 `yaml:"min_gap"`   // Shortest accepted low gap before a rising edge
	MaxGap   uint32 `yaml:"max_gap"`   // Longest accepted low gap before a rising edge
}

// DefaultPulseWindow matches a 50Hz servo-style receiver
var DefaultPulseWindow = PulseWindow{
	MinWidth: 950,
	MaxWidth: 2075,
	MinGap:   12000,
	MaxGap:   24000,
}

// Gains are the per-axis sensitivity multipliers
type Gains struct {
	PitchStick int32 `yaml:"pitch_stick"`
	RollStick  int32 `yaml:"roll_stick"`
	YawStick   int32 `yaml:"yaw_stick"`
	PitchGyro  int32 `yaml:"pitch_gyro"`
	RollGyro   int32 `yaml:"roll_gyro"`
	YawGyro    int32 `yaml:"yaw_gyro"`
	Throttle   int32 `yaml:"throttle"`
}

// Polarity is the sign applied to a gyro axis after zero removal.
// Use -1 for a sensor mounted reversed on that axis.
type Polarity struct {
	Pitch int32 `yaml:"pitch"`
	Roll  int32 `yaml:"roll"`
	Yaw   int32 `yaml:"yaw"`
}

// CalibrationConfig controls the startup gyro averaging
type CalibrationConfig struct {
	Samples      int           `yaml:"samples"`
	ReadDelay    time.Duration `yaml:"read_delay"`   // Wait after each sensor read
	SampleDelay  time.Duration `yaml:"sample_delay"` // Wait between samples
	RequireValid bool          `yaml:"require_valid"`
}

// OutputConfig controls the motor output stage
type OutputConfig struct {
	// Saturate clamps commands to [Min, Max] before they reach the PWM driver.
	// Disabled by default so commands pass through unmodified.
	Saturate bool  `yaml:"saturate"`
	Min      int32 `yaml:"min"`
	Max      int32 `yaml:"max"`
}

// Config is the complete flight-loop configuration
type Config struct {
	Window       PulseWindow       `yaml:"window"`
	Gains        Gains             `yaml:"gains"`
	Polarity     Polarity          `yaml:"polarity"`
	Calibration  CalibrationConfig `yaml:"calibration"`
	Output       OutputConfig      `yaml:"output"`
	StartupDelay time.Duration     `yaml:"startup_delay"` // Time to accumulate receiver interrupts
	Telemetry    bool              `yaml:"telemetry"`
}

// DefaultConfig returns the hand-tuned reference values
func DefaultConfig() Config {
	return Config{
		Window: DefaultPulseWindow,
		Gains: Gains{
			PitchStick: 3,
			RollStick:  3,
			YawStick:   3,
			PitchGyro:  8,
			RollGyro:   9,
			YawGyro:    5,
			Throttle:   12,
		},
		Polarity: Polarity{Pitch: -1, Roll: -1, Yaw: 1},
		Calibration: CalibrationConfig{
			Samples:      32,
			ReadDelay:    4 * time.Millisecond,
			SampleDelay:  30 * time.Millisecond,
			RequireValid: true,
		},
		Output: OutputConfig{
			Saturate: false,
			Min:      0,
			Max:      MotorCompareTop,
		},
		StartupDelay: 1500 * time.Millisecond,
		Telemetry:    true,
	}
}
