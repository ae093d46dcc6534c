//go:build stm32f4disco

package main

import (
	"device/stm32"
	"machine"

	"flyer/core"
)

// InitClock starts TIM2 as a free-running 32-bit microsecond counter and
// registers it as the core clock. TIM2 runs from APB1 at twice the bus rate.
func InitClock() {
	stm32.RCC.APB1ENR.SetBits(stm32.RCC_APB1ENR_TIM2EN)

	timerHz := machine.CPUFrequency() / 2
	stm32.TIM2.CR1.Set(0)
	stm32.TIM2.PSC.Set(timerHz/1000000 - 1)
	stm32.TIM2.ARR.Set(0xFFFFFFFF)
	stm32.TIM2.CNT.Set(0)
	stm32.TIM2.EGR.Set(stm32.TIM_EGR_UG) // Load the prescaler
	stm32.TIM2.CR1.SetBits(stm32.TIM_CR1_CEN)

	core.SetClockSource(GetHardwareTime)
}

// GetHardwareTime reads the microsecond counter
func GetHardwareTime() uint32 {
	return stm32.TIM2.CNT.Get()
}
