//go:build stm32f4disco

package main

import (
	"machine"
	"time"

	"flyer/core"
)

func main() {
	// Clock first: receiver edges are timestamped from the first interrupt
	InitClock()

	if err := InitTelemetryUART(); err != nil {
		fail(nil)
	}

	cfg := flightConfig()
	core.SetDebugWriter(debugWrite)
	core.SetDebugEnabled(!cfg.Telemetry)
	core.DebugPrintln("[BOOT] flyer")

	// Register platform drivers
	gpioDriver := NewSTM32GPIODriver()
	core.SetGPIODriver(gpioDriver)
	pwmDriver := NewSTM32PWMDriver(machine.TIM3)
	core.SetPWMDriver(pwmDriver)

	led, err := core.NewStatusLED(core.MustGPIO(), core.GPIOPin(statusLED))
	if err != nil {
		fail(nil)
	}

	// Motors idle before anything else can move them
	var pins [core.NumMotors]core.PWMPin
	for i, p := range motorPins {
		pins[i] = core.PWMPin(p)
	}
	output := core.NewOutputStage(core.MustPWM(), pins, cfg.Output)
	if err := output.Configure(core.DefaultMotorPeriodUS); err != nil {
		fail(led)
	}
	output.Stop()

	// Receiver capture
	capture := core.NewPulseCapture(cfg.Window)
	var rxPins [core.NumChannels]core.GPIOPin
	for ch, p := range receiverPins {
		rxPins[ch] = core.GPIOPin(p)
	}
	if err := capture.Attach(core.MustGPIO(), rxPins); err != nil {
		fail(led)
	}

	// Gyro
	bus := &machine.I2C2
	if err := bus.Configure(machine.I2CConfig{SCL: gyroSCL, SDA: gyroSDA, Frequency: gyroFrequency}); err != nil {
		fail(led)
	}
	gyro := core.NewMotionPlus(bus)
	if err := gyro.Configure(); err != nil {
		core.DebugPrintln("[BOOT] gyro activation failed: " + err.Error())
		fail(led)
	}

	flight := core.NewFlight(cfg, capture, gyro, output)
	flight.SetStatusLED(led)
	flight.SetTelemetry(uartOutput{telemetryUART})

	if err := flight.Start(); err != nil {
		core.DumpEdgeRing()
		flight.Halt()
		fail(led)
	}

	flight.Run()
}

// fail parks the board with motors untouched, blinking the LED if there is one
func fail(led *core.StatusLED) {
	for {
		if led != nil {
			led.Toggle()
		}
		time.Sleep(100 * time.Millisecond)
	}
}
