package core

import "time"

// Delay for bit-banging, corresponds roughly to a 100 kHz clock.
const bitbangDelay = 5 * time.Microsecond

// Number of attempts to unwedge each line. Worst-case stall is bounded
// by unwedgeSCLAttempts delays for the clock-wait phase plus
// unwedgeSDAAttempts*(9*2) delays for the data-recovery phase.
const (
	unwedgeSCLAttempts = 10
	unwedgeSDAAttempts = 3
)

// Nine pulses drain the worst case of a peer's internal bit counter
// (8 data bits plus the acknowledge bit), so a manufactured STOP
// reliably returns it to idle.
const unwedgePulses = 9

/*
 * Raw (bit-bang) mode
 */

// rawMode reroutes a port's pins between the hardware peripheral and
// plain GPIO. Entering takes the process-wide raw-mode token: leaving
// raw mode puts EVERY port back into peripheral routing, so a second
// port using raw mode concurrently would be reconfigured from
// underneath it.
func (c *Controller) rawMode(p *i2cPort, enable bool) error {
	if p.cfg.SCL == NoPin || p.cfg.SDA == NoPin {
		return ErrInvalidParam
	}

	if enable {
		if !c.rawMu.TryLock() {
			// Another port is mid-recovery; fail with no side effects.
			return ErrUnknown
		}

		// Take the pins out of alternate-function mode and drive them
		// open-drain, released high.
		c.pins.SetAltFunc(p.cfg.SDA, 0)
		c.pins.SetAltFunc(p.cfg.SCL, 0)

		c.pins.Configure(p.cfg.SCL, PinOutputOpenDrain)
		c.pins.Set(p.cfg.SCL, true)
		c.pins.Configure(p.cfg.SDA, PinOutputOpenDrain)
		c.pins.Set(p.cfg.SDA, true)
		return nil
	}

	// Return every configured port to peripheral routing. The port
	// locks guarantee no other port is mid-transaction here.
	for _, q := range c.ports {
		if q.cfg.SCL == NoPin || q.cfg.SDA == NoPin {
			continue
		}
		c.pins.SetAltFunc(q.cfg.SDA, c.altFunc)
		c.pins.SetAltFunc(q.cfg.SCL, c.altFunc)

		c.pins.Configure(q.cfg.SCL, PinOutput)
		c.pins.Configure(q.cfg.SDA, PinOutputOpenDrain)
	}

	c.rawMu.Unlock()
	return nil
}

func (c *Controller) rawSetSCL(p *i2cPort, level bool) {
	if p.cfg.SCL != NoPin {
		c.pins.Set(p.cfg.SCL, level)
	}
}

func (c *Controller) rawSetSDA(p *i2cPort, level bool) {
	if p.cfg.SDA != NoPin {
		c.pins.Set(p.cfg.SDA, level)
	}
}

// rawGet reads a line's true level. If we are driving the pin low it
// must be low; otherwise toggle it to an input to sample the real line
// state, then restore open-drain output.
func (c *Controller) rawGet(pin Pin) bool {
	if pin == NoPin {
		// No pin defined, appear idle.
		return true
	}

	if lvl, err := c.pins.Get(pin); err == nil && !lvl {
		return false
	}

	c.pins.Configure(pin, PinInput)
	lvl, _ := c.pins.Get(pin)
	c.pins.Configure(pin, PinOutputOpenDrain)

	return lvl
}

func (c *Controller) rawGetSCL(p *i2cPort) bool { return c.rawGet(p.cfg.SCL) }
func (c *Controller) rawGetSDA(p *i2cPort) bool { return c.rawGet(p.cfg.SDA) }

/*
 * Bus recovery
 */

// unwedge frees a bus whose peer kept power through our reset and is
// stuck mid-transaction, driving a line in a way that blocks traffic.
//
// If SCL is held low a peer is clock-extending and the only option is
// to wait for it to release. Otherwise, clock pulses out until the peer
// releases SDA, then manufacture a STOP; rinse and repeat until the bus
// reads idle or we run out of attempts. Depending on the peer's state
// machine it may not be possible to unwedge at all.
func (c *Controller) unwedge(p *i2cPort) error {
	if err := c.rawMode(p, true); err != nil {
		return ErrUnknown
	}

	err := c.unwedgeRaw(p)

	// Take the port back out of raw bit-bang mode.
	c.rawMode(p, false)

	return err
}

// unwedgeRaw runs the recovery sequence with raw mode already held.
func (c *Controller) unwedgeRaw(p *i2cPort) error {
	// If the clock is low, wait a while in case a peer is stretching it.
	if !c.rawGetSCL(p) {
		released := false
		for i := 0; i < unwedgeSCLAttempts; i++ {
			c.clk.Sleep(bitbangDelay)
			if c.rawGetSCL(p) {
				released = true
				break
			}
		}
		if !released {
			// A peer is holding the clock low and there is nothing
			// more we can do.
			DebugPrintln("I2C" + itoa(p.cfg.Port) + " unwedge failed, SCL is being held low")
			return ErrUnknown
		}
	}

	if c.rawGetSDA(p) {
		return nil
	}

	DebugPrintln("I2C" + itoa(p.cfg.Port) + " unwedge called with SDA held low")

	// Keep trying to unwedge the SDA line until we run out of attempts.
	for i := 0; i < unwedgeSDAAttempts; i++ {
		// Drive the clock high.
		c.rawSetSCL(p, true)
		c.clk.Sleep(bitbangDelay)

		// Clock through the problem by pulsing out up to nine bits. The
		// instant the peer releases SDA we can stop and send a STOP.
		for j := 0; j < unwedgePulses; j++ {
			if c.rawGetSDA(p) {
				break
			}
			c.rawSetSCL(p, false)
			c.clk.Sleep(bitbangDelay)
			c.rawSetSCL(p, true)
			c.clk.Sleep(bitbangDelay)
		}

		// Take control of SDA and issue a STOP: pull it low, then
		// release it while the clock is high.
		c.rawSetSDA(p, false)
		c.clk.Sleep(bitbangDelay)
		c.rawSetSDA(p, true)
		c.clk.Sleep(bitbangDelay)

		if c.rawGetSDA(p) && c.rawGetSCL(p) {
			break
		}
	}

	var err error
	if !c.rawGetSDA(p) {
		DebugPrintln("I2C" + itoa(p.cfg.Port) + " unwedge failed, SDA still low")
		err = ErrUnknown
	}
	if !c.rawGetSCL(p) {
		DebugPrintln("I2C" + itoa(p.cfg.Port) + " unwedge failed, SCL still low")
		err = ErrUnknown
	}

	return err
}
