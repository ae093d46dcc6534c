// Receiver pulse-width capture
// Measures the high time of each servo-style receiver channel from pin-change
// interrupts, keeping the last width that passed the validity windows.
package core

import "sync/atomic"

// EdgeState records whether the most recent rising edge can start a trusted pulse
type EdgeState uint32

const (
	// EdgeUnconfirmed: the next falling edge cannot commit a width.
	// Initial state, and the state after every falling edge.
	EdgeUnconfirmed EdgeState = iota

	// EdgeConfirmed: a rising edge followed a low gap inside the gap window,
	// so the next falling edge commits its width if that is also in window.
	EdgeConfirmed
)

func (s EdgeState) String() string {
	if s == EdgeConfirmed {
		return "confirmed"
	}
	return "unconfirmed"
}

// ChannelTiming is the state of one receiver channel.
// Written only from interrupt context; every field is a single machine word
// so the main loop can load any of them atomically without masking interrupts.
type ChannelTiming struct {
	edge     uint32 // EdgeState
	riseTime uint32 // Timestamp of the last rising edge
	fallTime uint32 // Timestamp of the last falling edge
	lastGood uint32 // Last committed pulse width in microseconds
	rejected uint32 // Edges discarded by the validity windows
}

// Sticks is a snapshot of the last good width of every channel, indexed by Channel
type Sticks [NumChannels]uint32

// PulseCapture owns the timing state of all receiver channels
type PulseCapture struct {
	window   PulseWindow
	channels [NumChannels]ChannelTiming

	// Interrupt wiring
	gpio     GPIODriver
	pins     [NumChannels]GPIOPin
	masks    [NumChannels]uint32 // Pending-register bit for each channel
	clock    func() uint32
	attached bool
}

// NewPulseCapture creates a capture with all channels zeroed and unconfirmed
func NewPulseCapture(window PulseWindow) *PulseCapture {
	p := &PulseCapture{
		window: window,
		clock:  Micros,
	}
	for ch := Channel(0); ch < NumChannels; ch++ {
		p.masks[ch] = 1 << ch
	}
	return p
}

// edgeTransition is the per-channel transition table.
//
//	level  state        elapsed           next         commit
//	high   any          gap in window     confirmed    no
//	high   any          gap out of window unconfirmed  no
//	low    confirmed    width in window   unconfirmed  yes
//	low    any other                      unconfirmed  no
func edgeTransition(state EdgeState, high bool, elapsed uint32, w PulseWindow) (EdgeState, bool) {
	if high {
		if elapsed >= w.MinGap && elapsed <= w.MaxGap {
			return EdgeConfirmed, false
		}
		return EdgeUnconfirmed, false
	}
	if state == EdgeConfirmed && elapsed >= w.MinWidth && elapsed <= w.MaxWidth {
		return EdgeUnconfirmed, true
	}
	return EdgeUnconfirmed, false
}

// OnEdge classifies one level change of a channel observed at time now.
// high is the pin level after the change. Called from interrupt context:
// never blocks, O(1).
func (p *PulseCapture) OnEdge(ch Channel, now uint32, high bool) {
	if ch >= NumChannels {
		return
	}
	c := &p.channels[ch]
	state := EdgeState(atomic.LoadUint32(&c.edge))

	var elapsed uint32
	if high {
		elapsed = Elapsed(now, atomic.LoadUint32(&c.fallTime))
		atomic.StoreUint32(&c.riseTime, now)
	} else {
		elapsed = Elapsed(now, atomic.LoadUint32(&c.riseTime))
		atomic.StoreUint32(&c.fallTime, now)
	}

	next, commit := edgeTransition(state, high, elapsed, p.window)
	switch {
	case commit:
		atomic.StoreUint32(&c.lastGood, elapsed)
		RecordEdge(EvtWidthAccepted, ch, now, elapsed)
	case high && next == EdgeConfirmed:
		RecordEdge(EvtGapAccepted, ch, now, elapsed)
	case high:
		atomic.AddUint32(&c.rejected, 1)
		RecordEdge(EvtGapRejected, ch, now, elapsed)
	default:
		atomic.AddUint32(&c.rejected, 1)
		RecordEdge(EvtWidthRejected, ch, now, elapsed)
	}
	atomic.StoreUint32(&c.edge, uint32(next))
}

// SetPendingMask sets the pending-register bit that identifies a channel
func (p *PulseCapture) SetPendingMask(ch Channel, mask uint32) error {
	if ch >= NumChannels {
		return ErrChannelRange
	}
	p.masks[ch] = mask
	return nil
}

// HandlePending services every channel whose bit is set in pending, as a
// shared pin-change interrupt does. read returns the current level of a
// channel's pin. Returns the bits that were serviced so the caller can
// clear them. At most NumChannels iterations.
func (p *PulseCapture) HandlePending(pending, now uint32, read func(Channel) bool) uint32 {
	var serviced uint32
	for ch := Channel(0); ch < NumChannels; ch++ {
		mask := p.masks[ch]
		if mask&pending == 0 {
			continue
		}
		serviced |= mask
		p.OnEdge(ch, now, read(ch))
	}
	return serviced
}

// Attach configures the receiver pins as inputs and registers one edge
// interrupt per pin. Pins are listed in Channel order.
func (p *PulseCapture) Attach(gpio GPIODriver, pins [NumChannels]GPIOPin) error {
	p.gpio = gpio
	p.pins = pins
	for ch := Channel(0); ch < NumChannels; ch++ {
		if err := gpio.ConfigureInput(pins[ch]); err != nil {
			return err
		}
	}
	for ch := Channel(0); ch < NumChannels; ch++ {
		if err := gpio.SetEdgeInterrupt(pins[ch], p.pinChanged); err != nil {
			return err
		}
	}
	p.attached = true
	return nil
}

// Detach removes the edge interrupts registered by Attach
func (p *PulseCapture) Detach() error {
	if !p.attached {
		return nil
	}
	for ch := Channel(0); ch < NumChannels; ch++ {
		if err := p.gpio.SetEdgeInterrupt(p.pins[ch], nil); err != nil {
			return err
		}
	}
	p.attached = false
	return nil
}

// pinChanged is the interrupt handler registered for every receiver pin
func (p *PulseCapture) pinChanged(pin GPIOPin) {
	now := p.clock()
	for ch := Channel(0); ch < NumChannels; ch++ {
		if p.pins[ch] == pin {
			p.OnEdge(ch, now, p.gpio.ReadPin(pin))
			return
		}
	}
}

// Width returns the last good pulse width of a channel in microseconds
func (p *PulseCapture) Width(ch Channel) uint32 {
	if ch >= NumChannels {
		return 0
	}
	return atomic.LoadUint32(&p.channels[ch].lastGood)
}

// Snapshot returns the last good width of every channel.
// Each width is a single atomic load, so a value is never torn; values of
// different channels may come from different receiver frames.
func (p *PulseCapture) Snapshot() Sticks {
	var s Sticks
	for ch := Channel(0); ch < NumChannels; ch++ {
		s[ch] = atomic.LoadUint32(&p.channels[ch].lastGood)
	}
	return s
}

// State returns the current edge state of a channel
func (p *PulseCapture) State(ch Channel) EdgeState {
	if ch >= NumChannels {
		return EdgeUnconfirmed
	}
	return EdgeState(atomic.LoadUint32(&p.channels[ch].edge))
}

// Rejected returns how many edges of a channel failed a validity window
func (p *PulseCapture) Rejected(ch Channel) uint32 {
	if ch >= NumChannels {
		return 0
	}
	return atomic.LoadUint32(&p.channels[ch].rejected)
}
