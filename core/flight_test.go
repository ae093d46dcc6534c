package core

import (
	"errors"
	"testing"

	"flyer/protocol"
)

type flightRig struct {
	capture *PulseCapture
	gyro    *fakeGyro
	pwm     *MockPWMDriver
	gpio    *MockGPIODriver
	tele    *protocol.ScratchOutput
	flight  *Flight
}

// setSticks commits one frame per channel with the given widths
func (r *flightRig) setSticks(s Sticks) {
	for ch := Channel(0); ch < NumChannels; ch++ {
		r.capture.OnEdge(ch, 0, false)
		pulse(r.capture, ch, 20000, s[ch])
	}
}

func newFlightRig(t *testing.T, cfg Config) *flightRig {
	t.Helper()
	noDelay(t)

	r := &flightRig{
		capture: NewPulseCapture(cfg.Window),
		gyro:    &fakeGyro{samples: []GyroSample{{Pitch: 8000, Roll: 8000, Yaw: 8000, Valid: true}}},
		pwm:     NewMockPWMDriver(),
		gpio:    NewMockGPIODriver(),
		tele:    protocol.NewScratchOutput(),
	}
	out := NewOutputStage(r.pwm, testMotorPins, cfg.Output)
	r.flight = NewFlight(cfg, r.capture, r.gyro, out)

	led, err := NewStatusLED(r.gpio, 13)
	if err != nil {
		t.Fatalf("NewStatusLED failed: %v", err)
	}
	r.flight.SetStatusLED(led)
	r.flight.SetTelemetry(r.tele)
	return r
}

func TestFlightHover(t *testing.T) {
	r := newFlightRig(t, DefaultConfig())
	r.setSticks(Sticks{Roll: 1500, Pitch: 1500, Yaw: 1500, Throttle: 1200})

	if err := r.flight.Tick(); !errors.Is(err, ErrNotCalibrated) {
		t.Fatalf("Expected ErrNotCalibrated before Start, got %v", err)
	}
	if r.pwm.writes != 0 {
		t.Fatal("Motors driven before calibration")
	}

	if err := r.flight.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if r.flight.State() != FlightRunning {
		t.Fatalf("Expected running, got %v", r.flight.State())
	}

	r.tele.Reset()
	if err := r.flight.Tick(); err != nil {
		t.Fatalf("Tick failed: %v", err)
	}

	for i, pin := range testMotorPins {
		if got := r.pwm.values[pin]; got != 14400 {
			t.Errorf("Motor %d: expected 14400, got %d", i, got)
		}
	}
	if r.tele.Len() != protocol.TelemetrySize {
		t.Errorf("Expected one %d-byte telemetry record, got %d bytes", protocol.TelemetrySize, r.tele.Len())
	}
}

func TestFlightTelemetryRecord(t *testing.T) {
	r := newFlightRig(t, DefaultConfig())
	r.setSticks(Sticks{Roll: 1500, Pitch: 1500, Yaw: 1500, Throttle: 1100})
	if err := r.flight.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	r.gyro.samples = []GyroSample{{Pitch: 8010, Roll: 7990, Yaw: 8005, Valid: true}}
	r.gyro.reads = 0
	r.setSticks(Sticks{Roll: 1520, Pitch: 1480, Yaw: 1500, Throttle: 1300})

	r.tele.Reset()
	if err := r.flight.Tick(); err != nil {
		t.Fatalf("Tick failed: %v", err)
	}

	var dec protocol.TelemetryDecoder
	recs := dec.Decode(protocol.NewSliceInputBuffer(r.tele.Result()))
	if len(recs) != 1 {
		t.Fatalf("Expected 1 record, got %d", len(recs))
	}
	want := protocol.Telemetry{
		PitchGyro: 8010, YawGyro: 8005, RollGyro: 7990,
		Pitch: 1480, Yaw: 1500, Roll: 1520, Throttle: 1300,
	}
	if recs[0] != want {
		t.Errorf("got %+v, want %+v", recs[0], want)
	}
}

func TestFlightTelemetryDisabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Telemetry = false
	r := newFlightRig(t, cfg)
	r.setSticks(Sticks{1500, 1500, 1500, 1200})
	if err := r.flight.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := r.flight.Tick(); err != nil {
		t.Fatalf("Tick failed: %v", err)
	}
	if r.tele.Len() != 0 {
		t.Errorf("Expected no telemetry, got %d bytes", r.tele.Len())
	}
}

func TestFlightGyroFeedback(t *testing.T) {
	r := newFlightRig(t, DefaultConfig())
	r.setSticks(Sticks{1500, 1500, 1500, 1200})
	if err := r.flight.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// Nose pitching: raw pitch rate up by 10, polarity -1, gain 8
	r.gyro.samples = []GyroSample{{Pitch: 8010, Roll: 8000, Yaw: 8000, Valid: true}}
	r.gyro.reads = 0
	if err := r.flight.Tick(); err != nil {
		t.Fatalf("Tick failed: %v", err)
	}

	cmd := r.flight.LastCommand()
	if cmd.Front != 14400-80 || cmd.Rear != 14400+80 {
		t.Errorf("Unexpected pitch correction %+v", cmd)
	}
	if cmd.Left != 14400 || cmd.Right != 14400 {
		t.Errorf("Roll motors should be unaffected: %+v", cmd)
	}
}

func TestFlightBusErrorKeepsLastSample(t *testing.T) {
	r := newFlightRig(t, DefaultConfig())
	r.setSticks(Sticks{1500, 1500, 1500, 1200})
	if err := r.flight.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	r.gyro.samples = []GyroSample{{Pitch: 8000, Roll: 8010, Yaw: 8000, Valid: true}}
	r.gyro.reads = 0
	r.flight.Tick()
	before := r.flight.LastCommand()

	r.gyro.errs = []error{errors.New("nack"), errors.New("nack")}
	r.gyro.reads = 0
	writes := r.pwm.writes
	if err := r.flight.Tick(); err != nil {
		t.Fatalf("Tick failed: %v", err)
	}

	if r.flight.BusErrors() != 1 {
		t.Errorf("Expected 1 bus error, got %d", r.flight.BusErrors())
	}
	if r.pwm.writes != writes+NumMotors {
		t.Error("All four outputs must be written after a bus error")
	}
	if r.flight.LastCommand() != before {
		t.Errorf("Expected stale sample to give %+v, got %+v", before, r.flight.LastCommand())
	}
}

func TestFlightInvalidFrameKeepsLastSample(t *testing.T) {
	r := newFlightRig(t, DefaultConfig())
	r.setSticks(Sticks{1500, 1500, 1500, 1200})
	if err := r.flight.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	r.gyro.samples = []GyroSample{{Pitch: 0, Roll: 0, Yaw: 0, Valid: false}}
	r.gyro.reads = 0
	r.flight.Tick()

	if r.flight.InvalidFrames() != 1 {
		t.Errorf("Expected 1 invalid frame, got %d", r.flight.InvalidFrames())
	}
	for i, v := range r.flight.LastCommand().Values() {
		if v != 14400 {
			t.Errorf("Motor %d: extension frame leaked into the mix: %d", i, v)
		}
	}
}

func TestFlightCalibrationFailure(t *testing.T) {
	r := newFlightRig(t, DefaultConfig())
	r.gyro.samples = []GyroSample{{Valid: false}}

	if err := r.flight.Start(); !errors.Is(err, ErrNoValidSamples) {
		t.Fatalf("Expected ErrNoValidSamples, got %v", err)
	}
	if r.flight.State() != FlightFailed {
		t.Errorf("Expected failed state, got %v", r.flight.State())
	}
	if err := r.flight.Tick(); !errors.Is(err, ErrNotCalibrated) {
		t.Errorf("Expected ErrNotCalibrated, got %v", err)
	}
	if r.pwm.writes != 0 {
		t.Error("Motors driven after failed calibration")
	}
}

func TestFlightLEDBlinks(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Calibration.Samples = 3
	r := newFlightRig(t, cfg)
	r.setSticks(Sticks{1500, 1500, 1500, 1200})

	if err := r.flight.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	// Three calibration toggles leave the LED on
	if !r.gpio.pins[13] {
		t.Error("Expected LED on after an odd number of toggles")
	}
	r.flight.Tick()
	if r.gpio.pins[13] {
		t.Error("Expected LED toggled by the control cycle")
	}
	if r.flight.Cycles() != 1 {
		t.Errorf("Expected 1 cycle, got %d", r.flight.Cycles())
	}
}

func TestFlightRunStops(t *testing.T) {
	r := newFlightRig(t, DefaultConfig())
	r.setSticks(Sticks{1500, 1500, 1500, 1200})

	if err := r.flight.Run(); !errors.Is(err, ErrNotCalibrated) {
		t.Fatalf("Expected ErrNotCalibrated, got %v", err)
	}
	if err := r.flight.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// Stop from inside the loop once a few cycles have run
	r.flight.SetTelemetry(stopAfter{n: 5, f: r.flight})
	if err := r.flight.Run(); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if r.flight.Cycles() != 5 {
		t.Errorf("Expected 5 cycles, got %d", r.flight.Cycles())
	}

	if err := r.flight.Halt(); err != nil {
		t.Fatalf("Halt failed: %v", err)
	}
	for _, pin := range testMotorPins {
		if r.pwm.values[pin] != 0 {
			t.Errorf("Pin %d not zero after Halt", pin)
		}
	}
}

// stopAfter is a telemetry sink that stops the loop after n records
type stopAfter struct {
	n int
	f *Flight
}

func (s stopAfter) Output(data []byte) {
	if int(s.f.Cycles())+1 >= s.n {
		s.f.Stop()
	}
}
