//go:build rp2040 || rp2350

package main

import (
	"machine"

	"goec/core"
)

// MachinePins implements core.PinDriver on top of machine.Pin.
//
// The RP2 GPIO has no true open-drain mode, so open-drain is emulated
// the usual way: driving low means output low, releasing high means
// switching to an input with pull-up and letting the bus pull-up win.
type MachinePins struct{}

func (MachinePins) SetAltFunc(pin core.Pin, fn int) error {
	p := machine.Pin(pin)
	if fn == 0 {
		// Plain GPIO; direction comes from the next Configure call.
		p.Configure(machine.PinConfig{Mode: machine.PinInput})
		return nil
	}
	p.Configure(machine.PinConfig{Mode: machine.PinI2C})
	return nil
}

func (MachinePins) Configure(pin core.Pin, mode core.PinMode) error {
	p := machine.Pin(pin)
	switch mode {
	case core.PinInput:
		p.Configure(machine.PinConfig{Mode: machine.PinInputPullup})
	case core.PinOutput:
		p.Configure(machine.PinConfig{Mode: machine.PinOutput})
	case core.PinOutputOpenDrain:
		// Start released; Set switches direction as levels change.
		p.Configure(machine.PinConfig{Mode: machine.PinInputPullup})
	}
	return nil
}

func (MachinePins) Set(pin core.Pin, level bool) error {
	p := machine.Pin(pin)
	if level {
		// Release the line and let the pull-up raise it.
		p.Configure(machine.PinConfig{Mode: machine.PinInputPullup})
	} else {
		p.Configure(machine.PinConfig{Mode: machine.PinOutput})
		p.Low()
	}
	return nil
}

func (MachinePins) Get(pin core.Pin) (bool, error) {
	return machine.Pin(pin).Get(), nil
}
