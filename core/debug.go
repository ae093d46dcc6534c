package core

// DebugWriter is a function type for writing debug messages
type DebugWriter func(string)

// EdgeEvent captures one pulse-capture decision for post-mortem analysis
type EdgeEvent struct {
	Kind    uint8   // Event kind code
	Channel Channel // Receiver channel
	Clock   uint32  // Microsecond timestamp of the edge
	Elapsed uint32  // Width or gap measured at the edge
}

// Edge event kind codes
const (
	EvtWidthAccepted = 1 // Falling edge committed a new width
	EvtWidthRejected = 2 // Falling edge outside the width window or unconfirmed
	EvtGapAccepted   = 3 // Rising edge confirmed by a valid gap
	EvtGapRejected   = 4 // Rising edge after an out-of-window gap
)

const (
	EdgeRingSize = 32 // Keep last 32 events for post-mortem
)

var (
	// debugPrintln is the global debug print function (can be set by platform code)
	debugPrintln DebugWriter = func(s string) {} // No-op by default

	// debugEnabled controls whether debug output is active
	debugEnabled bool = false

	edgeRing        [EdgeRingSize]EdgeEvent
	edgeRingHead    uint8
	edgeRingEnabled bool = true
)

// SetDebugWriter sets the platform-specific debug output function
func SetDebugWriter(writer DebugWriter) {
	if writer == nil {
		writer = func(string) {}
	}
	debugPrintln = writer
}

// SetDebugEnabled enables or disables debug output
func SetDebugEnabled(enabled bool) {
	debugEnabled = enabled
}

// IsDebugEnabled returns whether debug output is enabled
func IsDebugEnabled() bool {
	return debugEnabled
}

// SetEdgeRingEnabled turns edge-event capture on or off
func SetEdgeRingEnabled(enabled bool) {
	edgeRingEnabled = enabled
}

// DebugPrintln writes a debug message using the platform-specific writer
func DebugPrintln(msg string) {
	if debugEnabled && debugPrintln != nil {
		debugPrintln(msg)
	}
}

// RecordEdge captures an edge event in the ring buffer.
// Safe to call from interrupt context; never blocks on tinygo.
func RecordEdge(kind uint8, ch Channel, clock, elapsed uint32) {
	if !edgeRingEnabled {
		return
	}
	state := disableInterrupts()
	idx := edgeRingHead
	edgeRing[idx] = EdgeEvent{
		Kind:    kind,
		Channel: ch,
		Clock:   clock,
		Elapsed: elapsed,
	}
	edgeRingHead = (idx + 1) % EdgeRingSize
	restoreInterrupts(state)
}

// EdgeEvents returns a copy of the ring, oldest first, skipping empty slots
func EdgeEvents() []EdgeEvent {
	state := disableInterrupts()
	ring := edgeRing
	start := edgeRingHead
	restoreInterrupts(state)

	events := make([]EdgeEvent, 0, EdgeRingSize)
	for i := uint8(0); i < EdgeRingSize; i++ {
		evt := ring[(start+i)%EdgeRingSize]
		if evt.Kind == 0 {
			continue
		}
		events = append(events, evt)
	}
	return events
}

// DumpEdgeRing writes the edge ring through the debug writer, oldest first
func DumpEdgeRing() {
	if debugPrintln == nil {
		return
	}

	debugPrintln("[EDGE] === Edge Ring Dump ===")
	for _, evt := range EdgeEvents() {
		var name string
		switch evt.Kind {
		case EvtWidthAccepted:
			name = "WIDTH_OK"
		case EvtWidthRejected:
			name = "WIDTH_BAD"
		case EvtGapAccepted:
			name = "GAP_OK"
		case EvtGapRejected:
			name = "GAP_BAD"
		default:
			name = "UNKNOWN"
		}

		debugPrintln("[EDGE] " + name +
			" ch=" + evt.Channel.String() +
			" clock=" + utoa(evt.Clock) +
			" us=" + utoa(evt.Elapsed))
	}
	debugPrintln("[EDGE] === End Dump ===")
}

// ClearEdgeRing clears the edge buffer
func ClearEdgeRing() {
	state := disableInterrupts()
	for i := range edgeRing {
		edgeRing[i] = EdgeEvent{}
	}
	edgeRingHead = 0
	restoreInterrupts(state)
}
