package core

import "errors"

// ErrNoValidSamples is returned when calibration averaged nothing
var ErrNoValidSamples = errors.New("calibration: no valid gyro samples")

// StickSource provides the current receiver widths
type StickSource interface {
	Snapshot() Sticks
}

// Offsets are the zero references measured once at startup and never changed
type Offsets struct {
	PitchGyro int32
	RollGyro  int32
	YawGyro   int32

	// Stick centres; the throttle entry is the stick-off reading
	Sticks Sticks

	// Number of gyro samples included in the averages
	Samples int
}

// Calibrate averages the gyro while the vehicle is still, then records the
// current stick widths as centre positions. Samples that fail to read, or
// lack the gyro flag when RequireValid is set, are left out of the average.
// Averages use integer division, which truncates toward zero.
// blink, if not nil, is called once per sample.
func Calibrate(sensor GyroSensor, sticks StickSource, cfg CalibrationConfig, blink func()) (Offsets, error) {
	var (
		pitchSum, rollSum, yawSum int64
		count                     int
	)

	for i := 0; i < cfg.Samples; i++ {
		sample, err := sensor.ReadGyro()
		Delay(cfg.ReadDelay)
		if err == nil && (sample.Valid || !cfg.RequireValid) {
			pitchSum += int64(sample.Pitch)
			rollSum += int64(sample.Roll)
			yawSum += int64(sample.Yaw)
			count++
		}
		if blink != nil {
			blink()
		}
		Delay(cfg.SampleDelay)
	}

	if count == 0 {
		return Offsets{}, ErrNoValidSamples
	}

	return Offsets{
		PitchGyro: int32(pitchSum / int64(count)),
		RollGyro:  int32(rollSum / int64(count)),
		YawGyro:   int32(yawSum / int64(count)),
		Sticks:    sticks.Snapshot(),
		Samples:   count,
	}, nil
}
