package core

// MotorCommand is one cycle's drive value for each rotor. Values are not
// bounded and may be negative.
type MotorCommand struct {
	Front int32
	Left  int32
	Right int32
	Rear  int32
}

// Motor output order used by the output stage
const (
	MotorFront = iota
	MotorLeft
	MotorRight
	MotorRear
	NumMotors
)

// Values returns the commands in output order
func (m MotorCommand) Values() [NumMotors]int32 {
	return [NumMotors]int32{m.Front, m.Left, m.Right, m.Rear}
}

// Mix combines throttle with stick and gyro feedback for a four-rotor frame
// with front/left/right/rear motors.
//
//	front = base + pitch - yaw
//	left  = base + roll  + yaw
//	right = base - roll  + yaw
//	rear  = base - pitch - yaw
//
// Left and right spin against front and rear, so yaw adds to one pair and
// subtracts from the other. Flipping any sign gives positive feedback.
func Mix(s Scaled, throttleGain int32) MotorCommand {
	base := s.Throttle * throttleGain
	roll := s.Roll + s.RollGyro
	pitch := s.Pitch + s.PitchGyro
	yaw := s.Yaw + s.YawGyro

	return MotorCommand{
		Front: base + pitch - yaw,
		Left:  base + roll + yaw,
		Right: base - roll + yaw,
		Rear:  base - pitch - yaw,
	}
}
