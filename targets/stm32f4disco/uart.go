//go:build stm32f4disco

package main

import (
	"machine"
)

var telemetryUART *machine.UART

// InitTelemetryUART configures USART2 for the telemetry stream
func InitTelemetryUART() error {
	telemetryUART = machine.UART1 // USART2
	return telemetryUART.Configure(machine.UARTConfig{
		BaudRate: telemetryBaud,
		TX:       telemetryTX,
		RX:       telemetryRX,
	})
}

// uartOutput is a protocol.OutputBuffer that writes straight to the UART.
// Writes block until the bytes are in the transmit register.
type uartOutput struct {
	uart *machine.UART
}

func (u uartOutput) Output(data []byte) {
	u.uart.Write(data)
}

// debugWrite sends a debug line on the same UART.
// Only enabled when telemetry is off, so the two never interleave.
func debugWrite(s string) {
	telemetryUART.Write([]byte(s))
	telemetryUART.Write([]byte("\r\n"))
}
