//go:build stm32f4disco

package main

import (
	"errors"
	"machine"

	"flyer/core"
)

// STM32PWMDriver drives the four ESC outputs from a single timer.
// Compare values are in units of core.MotorCompareTop per period and are
// rescaled to the timer's actual top.
type STM32PWMDriver struct {
	timer      *machine.TIM
	configured bool

	// Track pin to channel mapping
	channels map[core.PWMPin]uint8
}

// NewSTM32PWMDriver creates a driver on the given timer
func NewSTM32PWMDriver(timer *machine.TIM) *STM32PWMDriver {
	return &STM32PWMDriver{
		timer:    timer,
		channels: make(map[core.PWMPin]uint8),
	}
}

// GetMaxValue returns the compare value of a full period
func (d *STM32PWMDriver) GetMaxValue() uint32 {
	return core.MotorCompareTop
}

// ConfigureHardwarePWM configures a timer channel for the pin.
// All channels share the timer, so the first call sets the period.
func (d *STM32PWMDriver) ConfigureHardwarePWM(pin core.PWMPin, periodUS uint32) error {
	if !d.configured {
		err := d.timer.Configure(machine.PWMConfig{
			Period: uint64(periodUS) * 1000,
		})
		if err != nil {
			return err
		}
		d.configured = true
	}

	channel, err := d.timer.Channel(machine.Pin(pin))
	if err != nil {
		return err
	}
	d.channels[pin] = channel
	return nil
}

// SetDutyCycle sets the compare value for a pin
func (d *STM32PWMDriver) SetDutyCycle(pin core.PWMPin, value core.PWMValue) error {
	channel, exists := d.channels[pin]
	if !exists {
		return errors.New("pwm pin not configured")
	}

	top := uint64(d.timer.Top())
	duty := uint64(value) * top / core.MotorCompareTop
	d.timer.Set(channel, uint32(duty))
	return nil
}
