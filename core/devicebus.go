package core

import "tinygo.org/x/drivers"

// DeviceBus adapts one controller port to the drivers.I2C interface so
// stock TinyGo device drivers can run on top of this driver. Each bus
// handle carries its own task for blocking waits.
type DeviceBus struct {
	c    *Controller
	port int
	task *Task
}

var _ drivers.I2C = (*DeviceBus)(nil)

// Bus returns a drivers.I2C view of the given port.
func (c *Controller) Bus(port int) *DeviceBus {
	return &DeviceBus{
		c:    c,
		port: port,
		task: NewTaskWithClock("i2c-bus"+itoa(port), c.clk),
	}
}

// Tx transmits w then receives into r as one exchange with a repeated
// START at the direction change. addr is the plain 7-bit address, per
// the drivers.I2C convention; it is shifted onto the wire here.
func (b *DeviceBus) Tx(addr uint16, w, r []byte) error {
	if err := b.c.Lock(b.port, true); err != nil {
		return err
	}
	defer b.c.Lock(b.port, false)

	return b.c.Transfer(b.task, b.port, addr<<1, w, r, true, true)
}
