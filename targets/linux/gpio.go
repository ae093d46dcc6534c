//go:build linux

package main

import (
	"fmt"
	"sync"
	"time"

	"github.com/warthog618/go-gpiocdev"

	"flyer/core"
)

// CdevGPIODriver implements core.GPIODriver on the GPIO character device.
// Pins are line offsets on a single chip.
type CdevGPIODriver struct {
	chip string

	mu    sync.Mutex
	lines map[core.GPIOPin]*gpiocdev.Line
}

// NewCdevGPIODriver creates a driver for chip (e.g. "gpiochip0")
func NewCdevGPIODriver(chip string) *CdevGPIODriver {
	return &CdevGPIODriver{
		chip:  chip,
		lines: make(map[core.GPIOPin]*gpiocdev.Line),
	}
}

func (d *CdevGPIODriver) request(pin core.GPIOPin, opts ...gpiocdev.LineReqOption) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if old, ok := d.lines[pin]; ok {
		old.Close()
		delete(d.lines, pin)
	}
	line, err := gpiocdev.RequestLine(d.chip, int(pin), opts...)
	if err != nil {
		return fmt.Errorf("failed to request line %d: %w", pin, err)
	}
	d.lines[pin] = line
	return nil
}

// ConfigureOutput configures a line as an output, initially low
func (d *CdevGPIODriver) ConfigureOutput(pin core.GPIOPin) error {
	return d.request(pin, gpiocdev.AsOutput(0), gpiocdev.WithConsumer("flyer"))
}

// ConfigureInput configures a line as an input
func (d *CdevGPIODriver) ConfigureInput(pin core.GPIOPin) error {
	return d.request(pin, gpiocdev.AsInput, gpiocdev.WithConsumer("flyer"))
}

// SetPin sets the line to high (true) or low (false)
func (d *CdevGPIODriver) SetPin(pin core.GPIOPin, value bool) error {
	d.mu.Lock()
	line, ok := d.lines[pin]
	d.mu.Unlock()
	if !ok {
		return fmt.Errorf("line %d not configured", pin)
	}
	v := 0
	if value {
		v = 1
	}
	return line.SetValue(v)
}

// ReadPin reads the current line level
func (d *CdevGPIODriver) ReadPin(pin core.GPIOPin) bool {
	d.mu.Lock()
	line, ok := d.lines[pin]
	d.mu.Unlock()
	if !ok {
		return false
	}
	v, err := line.Value()
	return err == nil && v != 0
}

// SetEdgeInterrupt re-requests the line with both-edge events delivered to handler
func (d *CdevGPIODriver) SetEdgeInterrupt(pin core.GPIOPin, handler core.EdgeHandler) error {
	if handler == nil {
		return d.ConfigureInput(pin)
	}
	return d.request(pin,
		gpiocdev.AsInput,
		gpiocdev.WithBothEdges,
		gpiocdev.WithConsumer("flyer"),
		gpiocdev.WithEventHandler(func(gpiocdev.LineEvent) {
			handler(pin)
		}))
}

// Close releases every requested line
func (d *CdevGPIODriver) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for pin, line := range d.lines {
		line.Close()
		delete(d.lines, pin)
	}
}

// Receiver feeds kernel-timestamped edges of the receiver lines into a
// PulseCapture. The kernel stamps each edge when it happens, so scheduling
// latency of the event goroutine does not distort the widths.
type Receiver struct {
	lines   *gpiocdev.Lines
	capture *core.PulseCapture
	channel map[int]core.Channel
}

// NewReceiver requests the four receiver lines with both-edge detection
func NewReceiver(chip string, offsets [core.NumChannels]int, capture *core.PulseCapture) (*Receiver, error) {
	r := &Receiver{
		capture: capture,
		channel: make(map[int]core.Channel, core.NumChannels),
	}
	for ch, off := range offsets {
		r.channel[off] = core.Channel(ch)
	}

	lines, err := gpiocdev.RequestLines(chip, offsets[:],
		gpiocdev.AsInput,
		gpiocdev.WithBothEdges,
		gpiocdev.WithConsumer("flyer-rx"),
		gpiocdev.WithEventHandler(r.handleEvent))
	if err != nil {
		return nil, fmt.Errorf("failed to request receiver lines: %w", err)
	}
	r.lines = lines
	return r, nil
}

func (r *Receiver) handleEvent(evt gpiocdev.LineEvent) {
	ch, ok := r.channel[evt.Offset]
	if !ok {
		return
	}
	now := uint32(evt.Timestamp / time.Microsecond)
	r.capture.OnEdge(ch, now, evt.Type == gpiocdev.LineEventRisingEdge)
}

// Close releases the receiver lines
func (r *Receiver) Close() error {
	return r.lines.Close()
}
