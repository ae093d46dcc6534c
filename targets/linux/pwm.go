//go:build linux

package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"golang.org/x/sys/unix"

	"flyer/core"
)

const (
	pwmClassDir   = "/sys/class/pwm"
	verifyTimeout = 2 * time.Second
)

// sysfsChannel is one exported PWM channel with its control files held open
type sysfsChannel struct {
	unit     int
	base     string
	period   *os.File
	duty     *os.File
	periodNs int64
	dutyNs   int64
}

// SysfsPWMDriver implements core.PWMDriver on a kernel PWM chip.
// Pins are channel numbers on the chip.
type SysfsPWMDriver struct {
	chipDir  string
	channels map[core.PWMPin]*sysfsChannel
}

// NewSysfsPWMDriver creates a driver for /sys/class/pwm/pwmchipN
func NewSysfsPWMDriver(chip int) *SysfsPWMDriver {
	return &SysfsPWMDriver{
		chipDir:  fmt.Sprintf("%s/pwmchip%d", pwmClassDir, chip),
		channels: make(map[core.PWMPin]*sysfsChannel),
	}
}

// GetMaxValue returns the compare value of a full period
func (d *SysfsPWMDriver) GetMaxValue() uint32 {
	return core.MotorCompareTop
}

// ConfigureHardwarePWM exports the channel, sets its period and enables it
// with zero duty.
func (d *SysfsPWMDriver) ConfigureHardwarePWM(pin core.PWMPin, periodUS uint32) error {
	unit := int(pin)
	base := fmt.Sprintf("%s/pwm%d", d.chipDir, unit)
	periodName := base + "/period"

	if err := export(periodName, d.chipDir+"/export", unit); err != nil {
		return fmt.Errorf("failed to export pwm%d: %w", unit, err)
	}
	pFile, err := os.OpenFile(periodName, os.O_RDWR, 0600)
	if err != nil {
		writeFile(d.chipDir+"/unexport", strconv.Itoa(unit))
		return err
	}
	dName := base + "/duty_cycle"
	if err := verifyFile(dName); err != nil {
		pFile.Close()
		writeFile(d.chipDir+"/unexport", strconv.Itoa(unit))
		return err
	}
	dFile, err := os.OpenFile(dName, os.O_RDWR, 0600)
	if err != nil {
		pFile.Close()
		writeFile(d.chipDir+"/unexport", strconv.Itoa(unit))
		return err
	}

	c := &sysfsChannel{unit: unit, base: base, period: pFile, duty: dFile, periodNs: -1, dutyNs: -1}
	if err := c.set(int64(periodUS)*1000, 0); err != nil {
		c.close(d.chipDir)
		return err
	}
	if err := writeFile(base+"/enable", "1"); err != nil {
		c.close(d.chipDir)
		return err
	}
	d.channels[pin] = c
	return nil
}

// SetDutyCycle converts a compare value into a duty time within the period
func (d *SysfsPWMDriver) SetDutyCycle(pin core.PWMPin, value core.PWMValue) error {
	c, ok := d.channels[pin]
	if !ok {
		return fmt.Errorf("pwm%d not configured", pin)
	}
	dutyNs := c.periodNs * int64(value) / core.MotorCompareTop
	if dutyNs > c.periodNs {
		dutyNs = c.periodNs
	}
	return c.set(c.periodNs, dutyNs)
}

// Close disables and unexports every channel
func (d *SysfsPWMDriver) Close() {
	for pin, c := range d.channels {
		c.close(d.chipDir)
		delete(d.channels, pin)
	}
}

// set writes period and duty. Duty may never exceed the current period, so
// the write order depends on the direction of the change.
func (c *sysfsChannel) set(periodNs, dutyNs int64) error {
	if dutyNs > c.periodNs {
		if _, err := c.period.WriteAt([]byte(strconv.FormatInt(periodNs, 10)), 0); err != nil {
			return err
		}
		if _, err := c.duty.WriteAt([]byte(strconv.FormatInt(dutyNs, 10)), 0); err != nil {
			return err
		}
	} else {
		if dutyNs != c.dutyNs {
			if _, err := c.duty.WriteAt([]byte(strconv.FormatInt(dutyNs, 10)), 0); err != nil {
				return err
			}
		}
		if periodNs != c.periodNs {
			if _, err := c.period.WriteAt([]byte(strconv.FormatInt(periodNs, 10)), 0); err != nil {
				return err
			}
		}
	}
	c.periodNs = periodNs
	c.dutyNs = dutyNs
	return nil
}

func (c *sysfsChannel) close(chipDir string) {
	writeFile(c.base+"/enable", "0")
	c.period.Close()
	c.duty.Close()
	writeFile(chipDir+"/unexport", strconv.Itoa(c.unit))
}

// export writes unit to expfile unless f is already accessible, then waits
// for udev to make f writable.
func export(f, expfile string, unit int) error {
	if err := unix.Access(f, unix.W_OK|unix.R_OK); err == nil {
		return nil
	}
	if err := writeFile(expfile, strconv.Itoa(unit)); err != nil {
		return err
	}
	return verifyFile(f)
}

func writeFile(name, s string) error {
	f, err := os.OpenFile(name, os.O_WRONLY, 0600)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.Write([]byte(s))
	return err
}

// verifyFile waits for f to become writable
func verifyFile(f string) error {
	sl := time.Millisecond
	for tout := time.Duration(0); tout < verifyTimeout; tout += sl {
		if err := unix.Access(f, unix.W_OK); err == nil {
			return nil
		}
		time.Sleep(sl)
	}
	return fmt.Errorf("%s: not writable", f)
}
