package sim

import (
	"errors"

	"flyer/core"
)

// ErrNotActivated is returned when the gyro is read before activation
var ErrNotActivated = errors.New("motion plus not activated")

// ErrBusFault is returned for an injected bus failure
var ErrBusFault = errors.New("injected bus fault")

// MotionPlusBus is a two-wire bus with a single Wii Motion Plus on it.
// It satisfies drivers.I2C.
type MotionPlusBus struct {
	// Zero is the raw reading at rest on each axis
	Zero core.GyroSample

	// Rates are added to Zero for the next frames
	Rates core.GyroSample

	// ExtensionFrames makes the sensor return frames without the gyro flag
	ExtensionFrames bool

	activated bool
	failNext  int
	reads     int
}

// NewMotionPlusBus creates a bus whose sensor rests near mid-scale
func NewMotionPlusBus() *MotionPlusBus {
	return &MotionPlusBus{
		Zero: core.GyroSample{Pitch: 7995, Roll: 8110, Yaw: 7890},
	}
}

// FailNext makes the next n reads fail
func (b *MotionPlusBus) FailNext(n int) {
	b.failNext = n
}

// Reads returns the number of frame reads served
func (b *MotionPlusBus) Reads() int {
	return b.reads
}

// Tx implements drivers.I2C
func (b *MotionPlusBus) Tx(addr uint16, w, r []byte) error {
	switch addr {
	case core.MotionPlusInitAddress:
		if len(w) == 2 && w[0] == 0xFE && (w[1] == core.MotionPlusStandalone || w[1] == core.MotionPlusPassthrough) {
			b.activated = true
			return nil
		}
		return errors.New("unsupported register write")

	case core.MotionPlusAddress:
		if !b.activated {
			return ErrNotActivated
		}
		if b.failNext > 0 {
			b.failNext--
			return ErrBusFault
		}
		if len(r) == 0 {
			return nil
		}
		frame := b.frame()
		n := copy(r, frame[:])
		b.reads++
		if n < core.MotionPlusFrameSize {
			return core.ErrShortRead
		}
		return nil

	default:
		return errors.New("no device at address")
	}
}

func clamp14(v int32) int32 {
	if v < 0 {
		return 0
	}
	if v > 0x3FFF {
		return 0x3FFF
	}
	return v
}

func (b *MotionPlusBus) frame() [core.MotionPlusFrameSize]byte {
	yaw := clamp14(b.Zero.Yaw + b.Rates.Yaw)
	roll := clamp14(b.Zero.Roll + b.Rates.Roll)
	pitch := clamp14(b.Zero.Pitch + b.Rates.Pitch)

	var f [core.MotionPlusFrameSize]byte
	f[0] = byte(yaw)
	f[1] = byte(pitch)
	f[2] = byte(roll)
	f[3] = byte(yaw>>8) << 2
	f[4] = byte(pitch>>8) << 2
	f[5] = byte(roll>>8) << 2
	if !b.ExtensionFrames {
		f[5] |= 0x02
	}
	return f
}

// RecordingPWM is a PWM driver that keeps the latest compare value per pin
type RecordingPWM struct {
	Periods map[core.PWMPin]uint32
	Values  map[core.PWMPin]core.PWMValue
	Writes  int
}

func NewRecordingPWM() *RecordingPWM {
	return &RecordingPWM{
		Periods: make(map[core.PWMPin]uint32),
		Values:  make(map[core.PWMPin]core.PWMValue),
	}
}

func (p *RecordingPWM) ConfigureHardwarePWM(pin core.PWMPin, periodUS uint32) error {
	p.Periods[pin] = periodUS
	return nil
}

func (p *RecordingPWM) SetDutyCycle(pin core.PWMPin, value core.PWMValue) error {
	p.Writes++
	p.Values[pin] = value
	return nil
}

func (p *RecordingPWM) GetMaxValue() uint32 {
	return core.MotorCompareTop
}

// BenchGPIO models pins with pin-change interrupts
type BenchGPIO struct {
	levels   map[core.GPIOPin]bool
	handlers map[core.GPIOPin]core.EdgeHandler
	toggles  map[core.GPIOPin]int
}

func NewBenchGPIO() *BenchGPIO {
	return &BenchGPIO{
		levels:   make(map[core.GPIOPin]bool),
		handlers: make(map[core.GPIOPin]core.EdgeHandler),
		toggles:  make(map[core.GPIOPin]int),
	}
}

func (g *BenchGPIO) ConfigureOutput(pin core.GPIOPin) error {
	g.levels[pin] = false
	return nil
}

func (g *BenchGPIO) ConfigureInput(pin core.GPIOPin) error {
	return nil
}

func (g *BenchGPIO) SetPin(pin core.GPIOPin, value bool) error {
	if g.levels[pin] != value {
		g.toggles[pin]++
	}
	g.levels[pin] = value
	return nil
}

func (g *BenchGPIO) ReadPin(pin core.GPIOPin) bool {
	return g.levels[pin]
}

func (g *BenchGPIO) SetEdgeInterrupt(pin core.GPIOPin, handler core.EdgeHandler) error {
	if handler == nil {
		delete(g.handlers, pin)
		return nil
	}
	g.handlers[pin] = handler
	return nil
}

// drive sets an input level and runs its interrupt handler if the level changed
func (g *BenchGPIO) drive(pin core.GPIOPin, level bool) {
	if g.levels[pin] == level {
		return
	}
	g.levels[pin] = level
	if h, ok := g.handlers[pin]; ok {
		h(pin)
	}
}

// Toggles returns how many times an output pin changed level
func (g *BenchGPIO) Toggles(pin core.GPIOPin) int {
	return g.toggles[pin]
}
