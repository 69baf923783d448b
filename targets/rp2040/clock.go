//go:build rp2040 || rp2350

package main

import (
	"machine"

	"goec/core"
)

// initSysClock seeds the frequency model from the running CPU clock.
// The RP2 stays at a fixed frequency unless firmware changes it, in
// which case SetFreq retunes every I2C port divisor through the hooks.
func initSysClock() *core.SysClock {
	return core.NewSysClock(uint32(machine.CPUFrequency()))
}
