package core

// PWMPin identifies a hardware pin capable of PWM output
type PWMPin uint32

// PWMValue is a compare value in the range 0 to GetMaxValue()
type PWMValue uint32

// PWMDriver is the abstract PWM interface that core code uses.
// Platform-specific implementations handle actual hardware control.
type PWMDriver interface {
	// ConfigureHardwarePWM configures a pin for hardware PWM output
	// periodUS: PWM period in microseconds
	ConfigureHardwarePWM(pin PWMPin, periodUS uint32) error

	// SetDutyCycle sets the compare value for a pin.
	// Must tolerate being called every cycle with the same value.
	SetDutyCycle(pin PWMPin, value PWMValue) error

	// GetMaxValue returns the compare value that maps to a full period
	GetMaxValue() uint32
}

// Global singleton used by core code.
var pwmDriver PWMDriver

// SetPWMDriver is called by target-specific code to register its driver.
func SetPWMDriver(d PWMDriver) {
	pwmDriver = d
}

// MustPWM returns the configured driver or panics if missing.
func MustPWM() PWMDriver {
	if pwmDriver == nil {
		panic("PWM driver not configured")
	}
	return pwmDriver
}
