//go:build !tinygo

package core

import "sync"

// On regular Go the "interrupt context" is whichever goroutine delivers pin
// events (gpiocdev handlers on Linux, the bench in tests), so masking is a lock.
var interruptMu sync.Mutex

// State is a placeholder for interrupt state on regular Go
type State uintptr

// disableInterrupts excludes the edge-event goroutine until restoreInterrupts
func disableInterrupts() State {
	interruptMu.Lock()
	return 0
}

// restoreInterrupts releases the section entered by disableInterrupts
func restoreInterrupts(state State) {
	interruptMu.Unlock()
}
