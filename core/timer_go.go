//go:build !tinygo

package core

var systemTicks uint32

// getSystemTicks returns the manual microsecond counter (regular Go implementation)
func getSystemTicks() uint32 {
	return systemTicks
}

// setSystemTicks sets the manual microsecond counter (regular Go implementation)
func setSystemTicks(ticks uint32) {
	systemTicks = ticks
}
