package sim

import (
	"bytes"
	"testing"

	"flyer/core"
	"flyer/protocol"
)

func newStartedBench(t *testing.T, cfg core.Config) *Bench {
	t.Helper()
	b, err := NewBench(cfg)
	if err != nil {
		t.Fatalf("NewBench failed: %v", err)
	}
	t.Cleanup(b.Close)

	if err := b.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	return b
}

// settle runs enough cycles for new stick widths to arrive
func settle(t *testing.T, b *Bench) core.MotorCommand {
	t.Helper()
	var cmd core.MotorCommand
	for i := 0; i < 2*FramePeriodUS/int(b.CycleUS)+1; i++ {
		var err error
		if cmd, err = b.Step(); err != nil {
			t.Fatalf("Step failed: %v", err)
		}
	}
	return cmd
}

func TestBenchCalibration(t *testing.T) {
	b := newStartedBench(t, core.DefaultConfig())

	off := b.Flight().Offsets()
	zero := b.Bus.Zero
	if off.PitchGyro != zero.Pitch || off.RollGyro != zero.Roll || off.YawGyro != zero.Yaw {
		t.Errorf("Gyro zeros %+v do not match sensor rest %+v", off, zero)
	}
	want := core.Sticks{core.Roll: 1500, core.Pitch: 1500, core.Yaw: 1500, core.Throttle: 1000}
	if off.Sticks != want {
		t.Errorf("Expected stick zeros %v, got %v", want, off.Sticks)
	}
	if off.Samples != 32 {
		t.Errorf("Expected 32 samples, got %d", off.Samples)
	}
	if got := b.GPIO.Toggles(LEDPin); got != 32 {
		t.Errorf("Expected 32 LED toggles during calibration, got %d", got)
	}
	if b.PWM.Writes != 0 {
		t.Error("Motors written before the loop started")
	}
}

func TestBenchHover(t *testing.T) {
	b := newStartedBench(t, core.DefaultConfig())
	b.SetSticks(core.Sticks{core.Roll: 1500, core.Pitch: 1500, core.Yaw: 1500, core.Throttle: 1200})
	settle(t, b)

	for i, v := range b.Motors() {
		if v != 14400 {
			t.Errorf("Motor %d: expected 14400, got %d", i, v)
		}
	}
}

func TestBenchStickResponse(t *testing.T) {
	b := newStartedBench(t, core.DefaultConfig())

	b.SetSticks(core.Sticks{core.Roll: 1500, core.Pitch: 1600, core.Yaw: 1500, core.Throttle: 1200})
	cmd := settle(t, b)
	if cmd.Front != 14700 || cmd.Rear != 14100 || cmd.Left != 14400 || cmd.Right != 14400 {
		t.Errorf("Unexpected pitch response %+v", cmd)
	}

	b.SetSticks(core.Sticks{core.Roll: 1500, core.Pitch: 1500, core.Yaw: 1600, core.Throttle: 1200})
	cmd = settle(t, b)
	if cmd.Front != 14100 || cmd.Rear != 14100 || cmd.Left != 14700 || cmd.Right != 14700 {
		t.Errorf("Unexpected yaw response %+v", cmd)
	}
}

func TestBenchGyroCorrection(t *testing.T) {
	b := newStartedBench(t, core.DefaultConfig())
	b.SetSticks(core.Sticks{core.Roll: 1500, core.Pitch: 1500, core.Yaw: 1500, core.Throttle: 1200})
	settle(t, b)

	// Roll rate +10 counts: polarity -1, gain 9
	b.SetRates(0, 10, 0)
	cmd, err := b.Step()
	if err != nil {
		t.Fatalf("Step failed: %v", err)
	}
	if cmd.Left != 14400-90 || cmd.Right != 14400+90 {
		t.Errorf("Unexpected roll correction %+v", cmd)
	}
}

func TestBenchGlitchHoldsLastGood(t *testing.T) {
	b := newStartedBench(t, core.DefaultConfig())
	b.SetSticks(core.Sticks{core.Roll: 1500, core.Pitch: 1500, core.Yaw: 1500, core.Throttle: 1200})
	settle(t, b)

	// Out-of-window throttle pulses are ignored
	b.SetSticks(core.Sticks{core.Roll: 1500, core.Pitch: 1500, core.Yaw: 1500, core.Throttle: 2500})
	settle(t, b)

	if w := b.Capture().Width(core.Throttle); w != 1200 {
		t.Errorf("Expected throttle held at 1200, got %d", w)
	}
	if b.Capture().Rejected(core.Throttle) == 0 {
		t.Error("Expected rejected throttle edges")
	}
}

func TestBenchBusFailure(t *testing.T) {
	b := newStartedBench(t, core.DefaultConfig())
	b.SetSticks(core.Sticks{core.Roll: 1500, core.Pitch: 1500, core.Yaw: 1500, core.Throttle: 1200})
	settle(t, b)

	b.Bus.FailNext(3)
	writes := b.PWM.Writes
	if err := b.Run(3); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if got := b.Flight().BusErrors(); got != 3 {
		t.Errorf("Expected 3 bus errors, got %d", got)
	}
	if b.PWM.Writes != writes+3*core.NumMotors {
		t.Errorf("Expected all outputs written on every cycle")
	}
}

func TestBenchTelemetry(t *testing.T) {
	b := newStartedBench(t, core.DefaultConfig())
	b.SetSticks(core.Sticks{core.Roll: 1510, core.Pitch: 1490, core.Yaw: 1505, core.Throttle: 1300})
	settle(t, b)
	b.SetRates(3, -2, 1)

	b.Telemetry.Reset()
	if err := b.Run(4); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	var dec protocol.TelemetryDecoder
	recs := dec.Decode(protocol.NewSliceInputBuffer(b.Telemetry.Bytes()))
	if len(recs) != 4 {
		t.Fatalf("Expected 4 records, got %d", len(recs))
	}
	zero := b.Bus.Zero
	want := protocol.Telemetry{
		PitchGyro: int16(zero.Pitch + 3),
		YawGyro:   int16(zero.Yaw + 1),
		RollGyro:  int16(zero.Roll - 2),
		Pitch:     1490,
		Yaw:       1505,
		Roll:      1510,
		Throttle:  1300,
	}
	if recs[3] != want {
		t.Errorf("got %+v, want %+v", recs[3], want)
	}
}

func TestBenchDeterministic(t *testing.T) {
	run := func() []byte {
		b, err := NewBench(core.DefaultConfig())
		if err != nil {
			t.Fatalf("NewBench failed: %v", err)
		}
		defer b.Close()
		if err := b.Start(); err != nil {
			t.Fatalf("Start failed: %v", err)
		}
		b.SetSticks(core.Sticks{core.Roll: 1450, core.Pitch: 1550, core.Yaw: 1500, core.Throttle: 1400})
		b.SetRates(-4, 7, 2)
		if err := b.Run(50); err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		return append([]byte(nil), b.Telemetry.Bytes()...)
	}

	first := run()
	second := run()
	if !bytes.Equal(first, second) {
		t.Error("Two identical runs produced different telemetry")
	}
}
