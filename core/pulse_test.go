package core

import "testing"

// pulse drives one full receiver frame on ch: rising edge at rise, falling
// edge width microseconds later.
func pulse(p *PulseCapture, ch Channel, rise, width uint32) {
	p.OnEdge(ch, rise, true)
	p.OnEdge(ch, rise+width, false)
}

func TestEdgeTransitionTable(t *testing.T) {
	w := DefaultPulseWindow
	tests := []struct {
		name    string
		state   EdgeState
		high    bool
		elapsed uint32
		next    EdgeState
		commit  bool
	}{
		{"rise after good gap", EdgeUnconfirmed, true, 18500, EdgeConfirmed, false},
		{"rise at min gap", EdgeUnconfirmed, true, 12000, EdgeConfirmed, false},
		{"rise at max gap", EdgeConfirmed, true, 24000, EdgeConfirmed, false},
		{"rise after short gap", EdgeConfirmed, true, 11999, EdgeUnconfirmed, false},
		{"rise after long gap", EdgeUnconfirmed, true, 24001, EdgeUnconfirmed, false},
		{"fall with good width", EdgeConfirmed, false, 1500, EdgeUnconfirmed, true},
		{"fall at min width", EdgeConfirmed, false, 950, EdgeUnconfirmed, true},
		{"fall at max width", EdgeConfirmed, false, 2075, EdgeUnconfirmed, true},
		{"fall with short width", EdgeConfirmed, false, 949, EdgeUnconfirmed, false},
		{"fall with long width", EdgeConfirmed, false, 2076, EdgeUnconfirmed, false},
		{"fall while unconfirmed", EdgeUnconfirmed, false, 1500, EdgeUnconfirmed, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, commit := edgeTransition(tt.state, tt.high, tt.elapsed, w)
			if next != tt.next || commit != tt.commit {
				t.Errorf("got (%v, %v), want (%v, %v)", next, commit, tt.next, tt.commit)
			}
		})
	}
}

func TestPulseCaptureAcceptsValidFrame(t *testing.T) {
	p := NewPulseCapture(DefaultPulseWindow)

	// First falling edge establishes the gap reference
	p.OnEdge(Pitch, 100000, false)
	pulse(p, Pitch, 118500, 1500)

	if got := p.Width(Pitch); got != 1500 {
		t.Errorf("Expected width 1500, got %d", got)
	}
	if p.State(Pitch) != EdgeUnconfirmed {
		t.Errorf("Expected unconfirmed after falling edge, got %v", p.State(Pitch))
	}
	if p.Width(Roll) != 0 {
		t.Error("Other channels must not change")
	}
}

func TestPulseCaptureHoldsLastGood(t *testing.T) {
	p := NewPulseCapture(DefaultPulseWindow)

	p.OnEdge(Roll, 0, false)
	pulse(p, Roll, 18000, 1200)
	if p.Width(Roll) != 1200 {
		t.Fatalf("Expected width 1200, got %d", p.Width(Roll))
	}

	// Glitch: width too long after a good gap
	fall := uint32(18000 + 1200)
	pulse(p, Roll, fall+18000, 3000)
	if p.Width(Roll) != 1200 {
		t.Errorf("Out-of-window width replaced last good: %d", p.Width(Roll))
	}

	// Rising edge after a short gap, then an in-window width
	fall += 18000 + 3000
	pulse(p, Roll, fall+5000, 1600)
	if p.Width(Roll) != 1200 {
		t.Errorf("Width after a bad gap must not commit: %d", p.Width(Roll))
	}

	if got := p.Rejected(Roll); got != 4 {
		t.Errorf("Expected 4 rejected edges, got %d", got)
	}

	// Normal frame recovers
	fall += 5000 + 1600
	pulse(p, Roll, fall+18400, 1700)
	if p.Width(Roll) != 1700 {
		t.Errorf("Expected recovery to 1700, got %d", p.Width(Roll))
	}
}

func TestPulseCaptureConsecutiveRisingEdges(t *testing.T) {
	p := NewPulseCapture(DefaultPulseWindow)

	p.OnEdge(Yaw, 0, false)
	p.OnEdge(Yaw, 18000, true)
	if p.State(Yaw) != EdgeConfirmed {
		t.Fatal("Expected confirmed after good gap")
	}

	// A second rising edge measures the same gap again and stays confirmed
	p.OnEdge(Yaw, 19000, true)
	if p.State(Yaw) != EdgeConfirmed {
		t.Error("Repeated rising edge with good gap should stay confirmed")
	}
	p.OnEdge(Yaw, 20500, false)
	if p.Width(Yaw) != 1500 {
		t.Errorf("Width is measured from the latest rising edge, got %d", p.Width(Yaw))
	}
}

func TestPulseCaptureClockWrap(t *testing.T) {
	p := NewPulseCapture(DefaultPulseWindow)

	fall := uint32(0xFFFFFFFF - 10000)
	p.OnEdge(Throttle, fall, false)
	rise := fall + 18000 // wraps
	pulse(p, Throttle, rise, 1100)

	if got := p.Width(Throttle); got != 1100 {
		t.Errorf("Expected width 1100 across wraparound, got %d", got)
	}
}

func TestPulseCaptureIgnoresBadChannel(t *testing.T) {
	p := NewPulseCapture(DefaultPulseWindow)
	p.OnEdge(NumChannels, 100, true)

	if p.Width(NumChannels) != 0 || p.Rejected(NumChannels) != 0 {
		t.Error("Out-of-range channel reads should return zero")
	}
	if err := p.SetPendingMask(NumChannels, 1); err != ErrChannelRange {
		t.Errorf("Expected ErrChannelRange, got %v", err)
	}
}

func TestHandlePending(t *testing.T) {
	p := NewPulseCapture(DefaultPulseWindow)
	// Board bit positions for the receiver pins
	masks := [NumChannels]uint32{1 << 8, 1 << 9, 1 << 6, 1 << 2}
	for ch := Channel(0); ch < NumChannels; ch++ {
		if err := p.SetPendingMask(ch, masks[ch]); err != nil {
			t.Fatalf("SetPendingMask failed: %v", err)
		}
	}

	levels := [NumChannels]bool{}
	read := func(ch Channel) bool { return levels[ch] }

	// All channels fall, then rise together, then pitch and yaw fall
	p.HandlePending(masks[Roll]|masks[Pitch]|masks[Yaw]|masks[Throttle], 0, read)
	for ch := range levels {
		levels[ch] = true
	}
	p.HandlePending(masks[Roll]|masks[Pitch]|masks[Yaw]|masks[Throttle], 18000, read)

	levels[Pitch] = false
	levels[Yaw] = false
	serviced := p.HandlePending(masks[Pitch]|masks[Yaw]|1<<20, 19400, read)

	if serviced != masks[Pitch]|masks[Yaw] {
		t.Errorf("Expected serviced %#x, got %#x", masks[Pitch]|masks[Yaw], serviced)
	}
	if p.Width(Pitch) != 1400 || p.Width(Yaw) != 1400 {
		t.Errorf("Expected pitch and yaw 1400, got %d and %d", p.Width(Pitch), p.Width(Yaw))
	}
	if p.Width(Roll) != 0 || p.State(Roll) != EdgeConfirmed {
		t.Error("Roll should still be mid-pulse")
	}
}

func TestPulseCaptureAttach(t *testing.T) {
	gpio := NewMockGPIODriver()
	pins := [NumChannels]GPIOPin{8, 9, 38, 50}

	now := uint32(0)
	p := NewPulseCapture(DefaultPulseWindow)
	p.clock = func() uint32 { return now }

	if err := p.Attach(gpio, pins); err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	for _, pin := range pins {
		if !gpio.inputs[pin] {
			t.Errorf("Pin %d not configured as input", pin)
		}
	}

	gpio.Drive(pins[Throttle], false)
	now = 20000
	gpio.Drive(pins[Throttle], true)
	now = 21250
	gpio.Drive(pins[Throttle], false)

	sticks := p.Snapshot()
	if sticks[Throttle] != 1250 {
		t.Errorf("Expected throttle 1250, got %d", sticks[Throttle])
	}

	if err := p.Detach(); err != nil {
		t.Fatalf("Detach failed: %v", err)
	}
	if len(gpio.handlers) != 0 {
		t.Errorf("Expected handlers removed, %d left", len(gpio.handlers))
	}
}

func TestEdgeRingRecordsDecisions(t *testing.T) {
	ClearEdgeRing()
	t.Cleanup(ClearEdgeRing)

	p := NewPulseCapture(DefaultPulseWindow)
	p.OnEdge(Roll, 0, false)
	pulse(p, Roll, 18000, 1500)

	events := EdgeEvents()
	if len(events) != 3 {
		t.Fatalf("Expected 3 events, got %d", len(events))
	}
	kinds := []uint8{EvtWidthRejected, EvtGapAccepted, EvtWidthAccepted}
	for i, k := range kinds {
		if events[i].Kind != k {
			t.Errorf("Event %d: expected kind %d, got %d", i, k, events[i].Kind)
		}
	}
	if events[2].Elapsed != 1500 || events[2].Clock != 19500 {
		t.Errorf("Unexpected width event %+v", events[2])
	}

	var lines []string
	SetDebugWriter(func(s string) { lines = append(lines, s) })
	t.Cleanup(func() { SetDebugWriter(nil) })
	DumpEdgeRing()
	if len(lines) != 5 {
		t.Errorf("Expected header, 3 events and footer, got %d lines", len(lines))
	}
}
