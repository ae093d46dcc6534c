// Package sim runs the flight loop against simulated hardware on a virtual
// microsecond clock. Every run with the same inputs produces the same outputs.
package sim

import (
	"bytes"
	"time"

	"flyer/core"
)

const (
	// FramePeriodUS is the receiver frame period (50Hz)
	FramePeriodUS = 20000

	// DefaultCycleUS approximates one control cycle, dominated by the sensor read
	DefaultCycleUS = 2500
)

// Board pin numbers used on the bench
var (
	ReceiverPins = [core.NumChannels]core.GPIOPin{8, 9, 38, 50}
	MotorPins    = [core.NumMotors]core.PWMPin{6, 7, 16, 17}
	LEDPin       = core.GPIOPin(13)
)

// receiverChannel schedules the edges of one channel
type receiverChannel struct {
	width    uint32 // Width of the next pulse
	high     bool
	nextEdge uint32
}

// Bench wires a core.Flight to simulated receiver, gyro, motors and LED.
// The core clock and delay hooks are redirected to the bench until Close.
type Bench struct {
	Config core.Config

	GPIO *BenchGPIO
	Bus  *MotionPlusBus
	PWM  *RecordingPWM

	// Telemetry holds every record the flight loop has emitted
	Telemetry bytes.Buffer

	CycleUS uint32

	now      uint32
	receiver [core.NumChannels]receiverChannel
	capture  *core.PulseCapture
	sensor   *core.MotionPlus
	flight   *core.Flight
}

// NewBench builds a bench with sticks centred and throttle at idle
func NewBench(cfg core.Config) (*Bench, error) {
	b := &Bench{
		Config:  cfg,
		GPIO:    NewBenchGPIO(),
		Bus:     NewMotionPlusBus(),
		PWM:     NewRecordingPWM(),
		CycleUS: DefaultCycleUS,
	}

	core.SetClockSource(b.Now)
	core.SetDelayFunc(b.sleep)

	b.SetSticks(core.Sticks{core.Roll: 1500, core.Pitch: 1500, core.Yaw: 1500, core.Throttle: 1000})
	for ch := range b.receiver {
		// First rising edge lands one gap after the capture's zero reference
		b.receiver[ch].nextEdge = FramePeriodUS - b.receiver[ch].width
	}

	b.capture = core.NewPulseCapture(cfg.Window)
	if err := b.capture.Attach(b.GPIO, ReceiverPins); err != nil {
		b.Close()
		return nil, err
	}

	b.sensor = core.NewMotionPlus(b.Bus)

	out := core.NewOutputStage(b.PWM, MotorPins, cfg.Output)
	if err := out.Configure(core.DefaultMotorPeriodUS); err != nil {
		b.Close()
		return nil, err
	}

	led, err := core.NewStatusLED(b.GPIO, LEDPin)
	if err != nil {
		b.Close()
		return nil, err
	}

	b.flight = core.NewFlight(cfg, b.capture, b.sensor, out)
	b.flight.SetStatusLED(led)
	b.flight.SetTelemetry(writerOutput{&b.Telemetry})
	return b, nil
}

// Close detaches the bench from the core clock and delay hooks
func (b *Bench) Close() {
	if b.capture != nil {
		b.capture.Detach()
	}
	core.SetClockSource(nil)
	core.SetDelayFunc(nil)
}

// Now returns the virtual microsecond clock
func (b *Bench) Now() uint32 {
	return b.now
}

func (b *Bench) sleep(d time.Duration) {
	b.Advance(uint32(d / time.Microsecond))
}

// Advance moves the clock forward by us, delivering every receiver edge
// that falls inside the interval in time order.
func (b *Bench) Advance(us uint32) {
	end := b.now + us
	for {
		ch, ok := b.nextChannel()
		if !ok {
			break
		}
		at := b.receiver[ch].nextEdge
		if core.Elapsed(at, b.now) > core.Elapsed(end, b.now) {
			break
		}
		b.now = at
		b.fire(ch)
	}
	b.now = end
}

func (b *Bench) nextChannel() (core.Channel, bool) {
	best := core.Channel(0)
	for ch := core.Channel(1); ch < core.NumChannels; ch++ {
		if core.Elapsed(b.receiver[ch].nextEdge, b.now) < core.Elapsed(b.receiver[best].nextEdge, b.now) {
			best = ch
		}
	}
	return best, b.receiver[best].width > 0
}

func (b *Bench) fire(ch core.Channel) {
	r := &b.receiver[ch]
	r.high = !r.high
	b.GPIO.drive(ReceiverPins[ch], r.high)
	if r.high {
		r.nextEdge += r.width
	} else {
		r.nextEdge += FramePeriodUS - r.width
	}
}

// SetSticks sets the pulse widths sent from the next frame on
func (b *Bench) SetSticks(s core.Sticks) {
	for ch := range b.receiver {
		b.receiver[ch].width = s[ch]
	}
}

// SetRates sets the angular rates the gyro reports, in raw counts from rest
func (b *Bench) SetRates(pitch, roll, yaw int32) {
	b.Bus.Rates = core.GyroSample{Pitch: pitch, Roll: roll, Yaw: yaw}
}

// Start activates the gyro, then runs the startup delay and calibration on
// the virtual clock.
func (b *Bench) Start() error {
	if err := b.sensor.Configure(); err != nil {
		return err
	}
	return b.flight.Start()
}

// Step advances the clock by one cycle and runs one control cycle
func (b *Bench) Step() (core.MotorCommand, error) {
	b.Advance(b.CycleUS)
	err := b.flight.Tick()
	return b.flight.LastCommand(), err
}

// Run performs n control cycles, stopping at the first error
func (b *Bench) Run(n int) error {
	for i := 0; i < n; i++ {
		if _, err := b.Step(); err != nil {
			return err
		}
	}
	return nil
}

// Motors returns the compare values last written, in front/left/right/rear order
func (b *Bench) Motors() [core.NumMotors]core.PWMValue {
	var v [core.NumMotors]core.PWMValue
	for i, pin := range MotorPins {
		v[i] = b.PWM.Values[pin]
	}
	return v
}

// Flight returns the controller under test
func (b *Bench) Flight() *core.Flight {
	return b.flight
}

// Capture returns the receiver capture
func (b *Bench) Capture() *core.PulseCapture {
	return b.capture
}

// writerOutput adapts a bytes.Buffer to protocol.OutputBuffer
type writerOutput struct {
	buf *bytes.Buffer
}

func (w writerOutput) Output(data []byte) {
	w.buf.Write(data)
}
