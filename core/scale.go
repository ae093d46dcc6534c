package core

// Scaled holds one cycle's normalised inputs. No clamping is applied.
type Scaled struct {
	Throttle int32 // Raw throttle width; the mixer applies the throttle gain

	Pitch int32 // Stick commands relative to centre, times stick gain
	Roll  int32
	Yaw   int32

	PitchGyro int32 // Rates relative to zero, times polarity and gyro gain
	RollGyro  int32
	YawGyro   int32
}

// ScaleStick returns (raw - zero) * gain
func ScaleStick(raw, zero uint32, gain int32) int32 {
	return (int32(raw) - int32(zero)) * gain
}

// ScaleGyro returns polarity * (raw - zero) * gain
func ScaleGyro(raw, zero, polarity, gain int32) int32 {
	return polarity * (raw - zero) * gain
}

// Normalize removes the calibrated zeros and applies per-axis gains.
// Pure function, run once per control cycle.
func Normalize(sticks Sticks, gyro GyroSample, off Offsets, cfg Config) Scaled {
	g := cfg.Gains
	p := cfg.Polarity
	return Scaled{
		Throttle: int32(sticks[Throttle]),

		Pitch: ScaleStick(sticks[Pitch], off.Sticks[Pitch], g.PitchStick),
		Roll:  ScaleStick(sticks[Roll], off.Sticks[Roll], g.RollStick),
		Yaw:   ScaleStick(sticks[Yaw], off.Sticks[Yaw], g.YawStick),

		PitchGyro: ScaleGyro(gyro.Pitch, off.PitchGyro, p.Pitch, g.PitchGyro),
		RollGyro:  ScaleGyro(gyro.Roll, off.RollGyro, p.Roll, g.RollGyro),
		YawGyro:   ScaleGyro(gyro.Yaw, off.YawGyro, p.Yaw, g.YawGyro),
	}
}
