// Flight controller main loop
// Owns the startup sequence and the per-cycle sense, scale, mix, output path.
package core

import (
	"errors"
	"sync/atomic"

	"flyer/protocol"
)

var (
	// ErrNotCalibrated is returned by Tick before Start has completed
	ErrNotCalibrated = errors.New("flight: not calibrated")

	// ErrChannelRange is returned for a receiver channel outside Roll..Throttle
	ErrChannelRange = errors.New("channel out of range")
)

// FlightState is the controller lifecycle state
type FlightState uint8

const (
	FlightStartup FlightState = iota
	FlightCalibrating
	FlightRunning
	FlightFailed
)

func (s FlightState) String() string {
	switch s {
	case FlightStartup:
		return "startup"
	case FlightCalibrating:
		return "calibrating"
	case FlightRunning:
		return "running"
	case FlightFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// StatusLED is a single output pin toggled to show the loop is alive
type StatusLED struct {
	gpio GPIODriver
	pin  GPIOPin
	on   bool
}

// NewStatusLED configures pin as an output, initially off
func NewStatusLED(gpio GPIODriver, pin GPIOPin) (*StatusLED, error) {
	if err := gpio.ConfigureOutput(pin); err != nil {
		return nil, err
	}
	if err := gpio.SetPin(pin, false); err != nil {
		return nil, err
	}
	return &StatusLED{gpio: gpio, pin: pin}, nil
}

// Toggle inverts the LED
func (l *StatusLED) Toggle() {
	l.on = !l.on
	l.gpio.SetPin(l.pin, l.on)
}

// On reports the last level written
func (l *StatusLED) On() bool {
	return l.on
}

// Flight runs the control loop. Tick and Start must be called from the same
// goroutine; the receiver side of PulseCapture runs in interrupt context.
type Flight struct {
	cfg     Config
	capture *PulseCapture
	sensor  GyroSensor
	output  *OutputStage

	led       *StatusLED
	telemetry protocol.OutputBuffer

	state   FlightState
	offsets Offsets
	gyro    GyroSample // Last sample used, kept across bus failures
	last    MotorCommand

	cycles        uint32
	busErrors     uint32
	invalidFrames uint32
	stop          uint32
}

// NewFlight creates a controller in the startup state
func NewFlight(cfg Config, capture *PulseCapture, sensor GyroSensor, output *OutputStage) *Flight {
	return &Flight{
		cfg:     cfg,
		capture: capture,
		sensor:  sensor,
		output:  output,
	}
}

// SetStatusLED sets the LED toggled per calibration sample and per cycle
func (f *Flight) SetStatusLED(led *StatusLED) {
	f.led = led
}

// SetTelemetry sets the sink for per-cycle telemetry records.
// Records are only written when Config.Telemetry is set.
func (f *Flight) SetTelemetry(out protocol.OutputBuffer) {
	f.telemetry = out
}

func (f *Flight) blink() {
	if f.led != nil {
		f.led.Toggle()
	}
}

// Start waits for the receiver to deliver a few frames, then calibrates.
// Motors are not driven until Start returns nil.
func (f *Flight) Start() error {
	if f.state != FlightStartup {
		return nil
	}

	Delay(f.cfg.StartupDelay)

	f.state = FlightCalibrating
	DebugPrintln("[FLIGHT] calibrating")

	off, err := Calibrate(f.sensor, f.capture, f.cfg.Calibration, f.blink)
	if err != nil {
		f.state = FlightFailed
		DebugPrintln("[FLIGHT] calibration failed: " + err.Error())
		return err
	}

	f.offsets = off
	// Zero rate until the first fresh sample
	f.gyro = GyroSample{Pitch: off.PitchGyro, Roll: off.RollGyro, Yaw: off.YawGyro, Valid: true}
	f.state = FlightRunning
	DebugPrintln("[FLIGHT] zero pitch=" + itoa(int(off.PitchGyro)) +
		" roll=" + itoa(int(off.RollGyro)) +
		" yaw=" + itoa(int(off.YawGyro)) +
		" samples=" + itoa(off.Samples))
	return nil
}

// Tick runs one control cycle: read the gyro, snapshot the sticks, emit
// telemetry, scale, mix and write all four motor outputs. A failed sensor
// read reuses the previous sample; the outputs are written regardless.
func (f *Flight) Tick() error {
	if f.state != FlightRunning {
		return ErrNotCalibrated
	}

	sample, err := f.sensor.ReadGyro()
	switch {
	case err != nil:
		f.busErrors++
	case !sample.Valid && f.cfg.Calibration.RequireValid:
		f.invalidFrames++
	default:
		f.gyro = sample
	}

	sticks := f.capture.Snapshot()

	if f.cfg.Telemetry && f.telemetry != nil {
		protocol.EncodeTelemetry(f.telemetry, protocol.Telemetry{
			PitchGyro: int16(f.gyro.Pitch),
			YawGyro:   int16(f.gyro.Yaw),
			RollGyro:  int16(f.gyro.Roll),
			Pitch:     int16(sticks[Pitch]),
			Yaw:       int16(sticks[Yaw]),
			Roll:      int16(sticks[Roll]),
			Throttle:  int16(sticks[Throttle]),
		})
	}

	scaled := Normalize(sticks, f.gyro, f.offsets, f.cfg)
	f.last = Mix(scaled, f.cfg.Gains.Throttle)
	werr := f.output.Write(f.last)

	f.blink()
	f.cycles++
	return werr
}

// Run calls Tick until Stop is called. Output errors are reported through
// the debug writer and do not end the loop.
func (f *Flight) Run() error {
	if f.state != FlightRunning {
		return ErrNotCalibrated
	}
	for atomic.LoadUint32(&f.stop) == 0 {
		if err := f.Tick(); err != nil {
			DebugPrintln("[FLIGHT] output error: " + err.Error())
		}
	}
	atomic.StoreUint32(&f.stop, 0)
	return nil
}

// Stop makes Run return after the current cycle
func (f *Flight) Stop() {
	atomic.StoreUint32(&f.stop, 1)
}

// Halt drives every motor to zero and marks the controller failed
func (f *Flight) Halt() error {
	f.state = FlightFailed
	f.last = MotorCommand{}
	return f.output.Stop()
}

// State returns the lifecycle state
func (f *Flight) State() FlightState {
	return f.state
}

// Offsets returns the zero references measured by Start
func (f *Flight) Offsets() Offsets {
	return f.offsets
}

// LastCommand returns the motor command of the most recent cycle
func (f *Flight) LastCommand() MotorCommand {
	return f.last
}

// Cycles returns the number of completed control cycles
func (f *Flight) Cycles() uint32 {
	return f.cycles
}

// BusErrors returns how many sensor reads failed since Start
func (f *Flight) BusErrors() uint32 {
	return f.busErrors
}

// InvalidFrames returns how many sensor frames lacked the gyro flag
func (f *Flight) InvalidFrames() uint32 {
	return f.invalidFrames
}
