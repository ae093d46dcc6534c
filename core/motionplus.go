package core

import (
	"errors"
	"time"

	"tinygo.org/x/drivers"
)

// Wii Motion Plus gyro extension on the two-wire bus.
// The extension answers at 0x53 until activated, then at 0x52.
const (
	MotionPlusInitAddress = 0x53
	MotionPlusAddress     = 0x52

	// Activation modes written to register 0xFE
	MotionPlusStandalone  = 0x04
	MotionPlusPassthrough = 0x05 // Nunchuk frames interleaved with gyro frames

	MotionPlusFrameSize = 6

	motionPlusSettle = 100 * time.Millisecond
)

// ErrShortRead is returned when the bus delivers fewer bytes than a frame
var ErrShortRead = errors.New("short sensor read")

// GyroSample is one raw three-axis angular-rate reading
type GyroSample struct {
	Pitch int32
	Roll  int32
	Yaw   int32
	Valid bool // Frame carried gyro data rather than extension data
}

// GyroSensor is a blocking source of raw gyro samples
type GyroSensor interface {
	ReadGyro() (GyroSample, error)
}

// DecodeMotionPlus extracts the rates from a 6-byte frame.
// High bits of each axis live in the upper six bits of bytes 3..5; bit 1 of
// byte 5 is set for gyro frames.
func DecodeMotionPlus(buf [MotionPlusFrameSize]byte) GyroSample {
	return GyroSample{
		Yaw:   int32(buf[3]>>2)<<8 + int32(buf[0]),
		Pitch: int32(buf[4]>>2)<<8 + int32(buf[1]),
		Roll:  int32(buf[5]>>2)<<8 + int32(buf[2]),
		Valid: buf[5]&0x02 != 0,
	}
}

// MotionPlus reads a Wii Motion Plus over any drivers.I2C bus
type MotionPlus struct {
	bus  drivers.I2C
	Mode byte

	reg [1]byte
	buf [MotionPlusFrameSize]byte
}

// NewMotionPlus creates a sensor in standalone mode. Call Configure before reading.
func NewMotionPlus(bus drivers.I2C) *MotionPlus {
	return &MotionPlus{
		bus:  bus,
		Mode: MotionPlusStandalone,
	}
}

// Configure activates the gyro extension and waits for it to move to its
// data address.
func (m *MotionPlus) Configure() error {
	Delay(motionPlusSettle)
	if err := m.bus.Tx(MotionPlusInitAddress, []byte{0xFE, m.Mode}, nil); err != nil {
		return err
	}
	Delay(motionPlusSettle)
	return nil
}

// ReadFrame performs the write-then-read transaction: register 0x00 then
// six data bytes after a repeated start.
func (m *MotionPlus) ReadFrame() ([MotionPlusFrameSize]byte, error) {
	m.reg[0] = 0x00
	if err := m.bus.Tx(MotionPlusAddress, m.reg[:], m.buf[:]); err != nil {
		return m.buf, err
	}
	return m.buf, nil
}

// ReadGyro reads and decodes one frame
func (m *MotionPlus) ReadGyro() (GyroSample, error) {
	frame, err := m.ReadFrame()
	if err != nil {
		return GyroSample{}, err
	}
	return DecodeMotionPlus(frame), nil
}
