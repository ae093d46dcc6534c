//go:build stm32f4disco

package main

import (
	"errors"
	"machine"

	"flyer/core"
)

// STM32GPIODriver implements the GPIODriver interface on STM32 pins
type STM32GPIODriver struct {
	// Track configured pins to prevent conflicts
	configuredPins map[core.GPIOPin]machine.Pin
}

// NewSTM32GPIODriver creates a new STM32 GPIO driver
func NewSTM32GPIODriver() *STM32GPIODriver {
	return &STM32GPIODriver{
		configuredPins: make(map[core.GPIOPin]machine.Pin),
	}
}

// ConfigureOutput configures a pin as a digital output
func (d *STM32GPIODriver) ConfigureOutput(pin core.GPIOPin) error {
	machinePin := machine.Pin(pin)
	machinePin.Configure(machine.PinConfig{Mode: machine.PinOutput})
	d.configuredPins[pin] = machinePin
	return nil
}

// ConfigureInput configures a pin as a floating input; the receiver drives it
func (d *STM32GPIODriver) ConfigureInput(pin core.GPIOPin) error {
	machinePin := machine.Pin(pin)
	machinePin.Configure(machine.PinConfig{Mode: machine.PinInput})
	d.configuredPins[pin] = machinePin
	return nil
}

// SetPin sets the pin to high (true) or low (false)
func (d *STM32GPIODriver) SetPin(pin core.GPIOPin, value bool) error {
	machinePin, exists := d.configuredPins[pin]
	if !exists {
		return errors.New("pin not configured")
	}
	machinePin.Set(value)
	return nil
}

// ReadPin reads the current pin state
func (d *STM32GPIODriver) ReadPin(pin core.GPIOPin) bool {
	return machine.Pin(pin).Get()
}

// SetEdgeInterrupt attaches handler to both edges of the pin's EXTI line
func (d *STM32GPIODriver) SetEdgeInterrupt(pin core.GPIOPin, handler core.EdgeHandler) error {
	machinePin := machine.Pin(pin)
	if handler == nil {
		return machinePin.SetInterrupt(0, nil)
	}
	return machinePin.SetInterrupt(machine.PinToggle, func(p machine.Pin) {
		handler(core.GPIOPin(p))
	})
}
