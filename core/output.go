package core

const (
	// MotorCompareTop is the compare value of a full motor PWM period
	MotorCompareTop = 60000

	// DefaultMotorPeriodUS is the motor PWM period (200Hz)
	DefaultMotorPeriodUS = 5000
)

// OutputStage writes motor commands to four PWM channels
type OutputStage struct {
	pwm  PWMDriver
	pins [NumMotors]PWMPin
	cfg  OutputConfig
	last [NumMotors]PWMValue
}

// NewOutputStage creates an output stage. Pins are in front/left/right/rear order.
func NewOutputStage(pwm PWMDriver, pins [NumMotors]PWMPin, cfg OutputConfig) *OutputStage {
	return &OutputStage{
		pwm:  pwm,
		pins: pins,
		cfg:  cfg,
	}
}

// Configure sets up all four pins for PWM output with the given period
func (o *OutputStage) Configure(periodUS uint32) error {
	for _, pin := range o.pins {
		if err := o.pwm.ConfigureHardwarePWM(pin, periodUS); err != nil {
			return err
		}
	}
	return nil
}

// compare converts a command into a compare value. Without saturation the
// low 16 bits pass through, the width of the timer compare register.
func (o *OutputStage) compare(v int32) PWMValue {
	if o.cfg.Saturate {
		if v < o.cfg.Min {
			v = o.cfg.Min
		}
		if v > o.cfg.Max {
			v = o.cfg.Max
		}
	}
	return PWMValue(uint16(v))
}

// Write sets all four channels, even when a value is unchanged or an
// earlier channel failed. Returns the first driver error.
func (o *OutputStage) Write(cmd MotorCommand) error {
	var firstErr error
	for i, v := range cmd.Values() {
		value := o.compare(v)
		o.last[i] = value
		if err := o.pwm.SetDutyCycle(o.pins[i], value); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Stop drives every channel to zero
func (o *OutputStage) Stop() error {
	return o.Write(MotorCommand{})
}

// Last returns the compare values of the most recent Write
func (o *OutputStage) Last() [NumMotors]PWMValue {
	return o.last
}
