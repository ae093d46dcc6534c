//go:build stm32f4disco

package main

// Board configuration
// Quadcopter pin mapping on an STM32F4 Discovery

import (
	"machine"

	"flyer/core"
)

// --- Receiver inputs ---
// One pin per EXTI line: lines 8, 9, 6 and 2 are all distinct.
var receiverPins = [core.NumChannels]machine.Pin{
	core.Roll:     machine.PA8,
	core.Pitch:    machine.PA9,
	core.Yaw:      machine.PC6,
	core.Throttle: machine.PD2,
}

// --- Motor outputs (TIM3 channels 1-4) ---
var motorPins = [core.NumMotors]machine.Pin{
	core.MotorFront: machine.PA6,
	core.MotorLeft:  machine.PA7,
	core.MotorRight: machine.PB0,
	core.MotorRear:  machine.PB1,
}

// --- Gyro bus (I2C2) ---
const (
	gyroSCL       = machine.PB10
	gyroSDA       = machine.PB11
	gyroFrequency = 100 * machine.KHz
)

// --- Telemetry UART (USART2, PA2/PA3; machine.UART1 on this board) ---
const (
	telemetryBaud = 115200
	telemetryTX   = machine.PA2
	telemetryRX   = machine.PA3
)

// --- Status LED ---
const statusLED = machine.LED

// flightConfig returns the loop configuration flown by this board
func flightConfig() core.Config {
	cfg := core.DefaultConfig()
	cfg.Telemetry = true
	return cfg
}
