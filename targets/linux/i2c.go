//go:build linux

package main

import (
	"fmt"
	"sync"

	"github.com/d2r2/go-i2c"
	logger "github.com/d2r2/go-logger"

	"flyer/core"
)

func init() {
	// go-i2c logs every transfer at debug level
	logger.ChangePackageLogLevel("i2c", logger.InfoLevel)
}

// LinuxI2C implements drivers.I2C on /dev/i2c-N. A device handle is opened
// per target address on first use.
type LinuxI2C struct {
	bus int

	mu      sync.Mutex
	devices map[uint16]*i2c.I2C
}

// NewLinuxI2C creates an adapter for bus number bus
func NewLinuxI2C(bus int) *LinuxI2C {
	return &LinuxI2C{
		bus:     bus,
		devices: make(map[uint16]*i2c.I2C),
	}
}

func (b *LinuxI2C) device(addr uint16) (*i2c.I2C, error) {
	if dev, ok := b.devices[addr]; ok {
		return dev, nil
	}
	dev, err := i2c.NewI2C(uint8(addr), b.bus)
	if err != nil {
		return nil, fmt.Errorf("failed to open I2C device 0x%02x on bus %d: %w", addr, b.bus, err)
	}
	b.devices[addr] = dev
	return dev, nil
}

// Tx writes w then reads len(r) bytes as two transfers
func (b *LinuxI2C) Tx(addr uint16, w, r []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	dev, err := b.device(addr)
	if err != nil {
		return err
	}
	if len(w) > 0 {
		if _, err := dev.WriteBytes(w); err != nil {
			return err
		}
	}
	if len(r) > 0 {
		n, err := dev.ReadBytes(r)
		if err != nil {
			return err
		}
		if n < len(r) {
			return core.ErrShortRead
		}
	}
	return nil
}

// Close closes every open device handle
func (b *LinuxI2C) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	var firstErr error
	for addr, dev := range b.devices {
		if err := dev.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(b.devices, addr)
	}
	return firstErr
}
