// I2C master driver.
// Byte-at-a-time transaction engine over the I2CHardware interface, with
// interrupt-driven blocking waits, per-port locking, and stuck-bus
// recovery (see i2c_recovery.go).
package core

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
)

// Address flag bits. The wire address occupies the low byte (7-bit
// target plus the read/write direction bit); flags live above it.
const (
	// FlagBigEndian marks a device whose 16-bit registers are
	// transferred most significant byte first.
	FlagBigEndian uint16 = 1 << 8

	readBit uint8 = 0x01
)

// DefaultTimeout is the ceiling for one blocking byte step.
const DefaultTimeout = time.Second

// SCL low/high hold periods of the master timing unit, in system clock
// cycles. SCL_PERIOD = 2 * (1 + div) * (low + high) * CLK_PERIOD.
const (
	sclLowPeriods  = 6
	sclHighPeriods = 4
)

// PortConfig describes one I2C port in the board's port registry.
type PortConfig struct {
	// Name is the human-readable bus name ("batt_chg", "thermal", ...).
	Name string

	// Port is the hardware port number the peripheral knows it by.
	Port int

	// KBPS is the target bit rate in kbit/s.
	KBPS int

	// SCL and SDA are the pin mappings used for raw-mode recovery.
	// NoPin disables recovery on this port.
	SCL Pin
	SDA Pin

	// Timeout bounds each blocking byte step; zero means DefaultTimeout.
	Timeout time.Duration
}

// i2cPort is the runtime state of one configured port.
type i2cPort struct {
	cfg PortConfig

	// mu serializes transactions on this port.
	mu sync.Mutex

	// waiter is the task currently blocked on this port's completion
	// interrupt, or nil. Written by the lock holder, read by the
	// interrupt dispatch.
	waiter atomic.Pointer[Task]
}

func (p *i2cPort) timeout() time.Duration {
	if p.cfg.Timeout > 0 {
		return p.cfg.Timeout
	}
	return DefaultTimeout
}

// ControllerConfig assembles a Controller.
type ControllerConfig struct {
	Hardware I2CHardware
	Pins     PinDriver
	Ports    []PortConfig

	// PeripheralFunc is the pin alternate function that routes a pin to
	// the I2C peripheral. Defaults to 3.
	PeripheralFunc int

	// Clock drives wait deadlines and recovery delays. Defaults to the
	// real clock; tests inject their own.
	Clock clock.Clock
}

// Controller owns every configured I2C port. All mutable per-port state
// lives here rather than in package globals, indexed by port number.
type Controller struct {
	hw      I2CHardware
	pins    PinDriver
	clk     clock.Clock
	altFunc int

	ports []*i2cPort
	byNum map[int]*i2cPort

	// irqs maps interrupt identity to port number for ISR dispatch.
	irqs map[int]int

	// rawMu is the process-wide raw-mode token. Held by at most one
	// port at a time because leaving raw mode reroutes every port's
	// pins in one global action.
	rawMu sync.Mutex
}

// NewController builds the port registry and programs the initial
// timing divisors from sysclk. It keeps following clock changes through
// the sysclk hook.
func NewController(cfg ControllerConfig, sysclk *SysClock) (*Controller, error) {
	if cfg.Hardware == nil || cfg.Pins == nil || len(cfg.Ports) == 0 {
		return nil, ErrInvalidParam
	}

	c := &Controller{
		hw:      cfg.Hardware,
		pins:    cfg.Pins,
		clk:     cfg.Clock,
		altFunc: cfg.PeripheralFunc,
		byNum:   make(map[int]*i2cPort),
		irqs:    make(map[int]int),
	}
	if c.clk == nil {
		c.clk = clock.New()
	}
	if c.altFunc == 0 {
		c.altFunc = 3
	}

	for _, pc := range cfg.Ports {
		if _, dup := c.byNum[pc.Port]; dup {
			return nil, ErrInvalidParam
		}
		p := &i2cPort{cfg: pc}
		c.ports = append(c.ports, p)
		c.byNum[pc.Port] = p
	}

	// Enable each port as master; no task is waiting yet.
	for _, p := range c.ports {
		c.hw.ResetPort(p.cfg.Port)
	}

	if sysclk != nil {
		sysclk.OnFreqChange(c.clockChanged)
	}

	return c, nil
}

// clockChanged recomputes each port's timing divisor from the system
// clock frequency. The divisor is rounded up so the configured bit rate
// is an upper bound.
func (c *Controller) clockChanged(freqHz uint32) {
	for _, p := range c.ports {
		// div = CLK_FREQ / (SCL_FREQ * 2 * (low + high)) - 1
		d := uint32(2 * (sclLowPeriods + sclHighPeriods) * p.cfg.KBPS * 1000)
		div := (freqHz+d-1)/d - 1
		c.hw.SetClockDivisor(p.cfg.Port, div)
	}
}

// Ports returns the configured port numbers in registry order.
func (c *Controller) Ports() []PortConfig {
	out := make([]PortConfig, len(c.ports))
	for i, p := range c.ports {
		out[i] = p.cfg
	}
	return out
}

func (c *Controller) portByNumber(port int) (*i2cPort, error) {
	p, ok := c.byNum[port]
	if !ok {
		return nil, ErrInvalidParam
	}
	return p, nil
}

/*
 * Interrupt dispatch
 */

// BindIRQ maps an interrupt identity onto a port number so a single ISR
// trampoline can serve every port.
func (c *Controller) BindIRQ(irq, port int) {
	c.irqs[irq] = port
}

// ISR is the shared interrupt entry point; platforms hook each port's
// vector to it with the bound interrupt identity.
func (c *Controller) ISR(irq int) {
	if port, ok := c.irqs[irq]; ok {
		c.HandleInterrupt(port)
	}
}

// HandleInterrupt acknowledges a port's interrupt status and wakes the
// task waiting on it, if any; otherwise the interrupt is absorbed.
func (c *Controller) HandleInterrupt(port int) {
	p, ok := c.byNum[port]
	if !ok {
		return
	}
	c.hw.AckInterrupt(port)
	if t := p.waiter.Load(); t != nil {
		t.SetEvent(EventI2CIdle)
	}
}

/*
 * Blocking wait
 */

// waitIdle blocks the calling task until the port finishes its current
// bus cycle. Any unrelated event bits the task accumulates while
// suspended are re-posted so the wait is transparent to the caller's
// other pending work.
func (c *Controller) waitIdle(t *Task, p *i2cPort) error {
	var saved EventMask

	status := c.hw.Status(p.cfg.Port)
	for status&StatusBusy != 0 {
		// Port is busy, so wait for the interrupt.
		p.waiter.Store(t)
		c.hw.SetInterruptEnabled(p.cfg.Port, true)
		ev := t.Wait(p.timeout())
		c.hw.SetInterruptEnabled(p.cfg.Port, false)
		p.waiter.Store(nil)

		saved |= ev &^ EventI2CIdle
		if ev&EventTimer != 0 {
			// Restore any events that we saw while waiting
			if rest := saved &^ EventTimer; rest != 0 {
				t.SetEvent(rest)
			}
			return ErrTimeout
		}

		status = c.hw.Status(p.cfg.Port)
	}

	// Restore any events that we saw while waiting. EventTimer isn't
	// one, because we've handled it above.
	if saved != 0 {
		t.SetEvent(saved)
	}

	if status&faultBits != 0 {
		return ErrProtocol
	}
	return nil
}

/*
 * Transaction engine
 */

// transmitReceive transmits one block of raw data, then receives one
// block of raw data. start indicates the exchange begins from idle
// state; stop means it may be terminated with a STOP condition.
// Callers must hold the port lock. rx is filled as far as the exchange
// got, even when a later byte step fails.
func (c *Controller) transmitReceive(t *Task, p *i2cPort, addr uint16, tx, rx []byte, start, stop bool) error {
	if len(tx) == 0 && len(rx) == 0 {
		return nil
	}

	port := p.cfg.Port
	started := !start

	status := c.hw.Status(port)
	if !started &&
		(status&(StatusClockTimeout|StatusArbLost) != 0 ||
			c.hw.Lines(port) != LineIdle) {
		div := c.hw.ClockDivisor(port)
		lines := c.hw.Lines(port)

		DebugPrintln("I2C" + itoa(port) + " addr:0x" + hexByte(uint8(addr)) +
			" bad status 0x" + hexByte(uint8(status)) +
			" SCL=" + itoa(int(lines&LineSCLHigh)) +
			" SDA=" + itoa(int(lines>>1)))

		// Attempt to unwedge the port.
		c.unwedge(p)

		// Clock timeout or arbitration lost. Reset port to clear.
		c.hw.ResetPort(port)
		c.hw.SetClockDivisor(port, div)

		// We don't know what edges the peer saw, so sleep long enough
		// that it will see the new start condition below.
		c.clk.Sleep(time.Millisecond)
	}

	if len(tx) > 0 {
		c.hw.SetTarget(port, uint8(addr)&^readBit)
		for i, b := range tx {
			c.hw.WriteData(port, b)
			// Control sequence on a multi-byte write:
			//     0x3 0x1 0x1 ... 0x1 0x5
			// Single byte write: 0x7
			ctrl := CtrlRun
			if !started {
				started = true
				ctrl |= CtrlStart
			}
			// STOP only on the last byte, and only when no receive
			// phase follows.
			if stop && len(rx) == 0 && i == len(tx)-1 {
				ctrl |= CtrlStop
			}
			c.hw.Command(port, ctrl)

			if err := c.waitIdle(t, p); err != nil {
				return err
			}
		}
	}

	if len(rx) > 0 {
		if len(tx) > 0 {
			// Direction changed, so a repeated START is required.
			started = false
		}
		c.hw.SetTarget(port, uint8(addr)|readBit)
		for i := range rx {
			// Control sequence on a multi-byte read:
			//     0xb 0x9 0x9 ... 0x9 0x5
			// Single byte read: 0x7
			ctrl := CtrlRun
			if !started {
				started = true
				ctrl |= CtrlStart
			}
			// ACK every byte except the last one.
			if stop && i == len(rx)-1 {
				ctrl |= CtrlStop
			} else {
				ctrl |= CtrlAck
			}
			c.hw.Command(port, ctrl)

			if err := c.waitIdle(t, p); err != nil {
				return err
			}
			rx[i] = c.hw.ReadData(port)
		}
	}

	if c.hw.Status(port)&faultBits != 0 {
		return ErrProtocol
	}
	return nil
}

/*
 * Public API
 */

// Lock explicitly acquires (enable=true) or releases the port's
// exclusive lock, bracketing a sequence of chained Transfer calls.
func (c *Controller) Lock(port int, enable bool) error {
	p, err := c.portByNumber(port)
	if err != nil {
		return err
	}
	if enable {
		p.mu.Lock()
	} else {
		p.mu.Unlock()
	}
	return nil
}

// Transfer is the raw transaction primitive: transmit tx, then receive
// into rx, with independent START/STOP control so exchanges can be
// chained. Callers must bracket it with Lock; the convenience helpers
// below do their own locking.
func (c *Controller) Transfer(t *Task, port int, addr uint16, tx, rx []byte, start, stop bool) error {
	p, err := c.portByNumber(port)
	if err != nil {
		return err
	}
	return c.transmitReceive(t, p, addr, tx, rx, start, stop)
}

// Read8 reads one byte from a device register.
func (c *Controller) Read8(t *Task, port int, addr uint16, reg uint8) (uint8, error) {
	p, err := c.portByNumber(port)
	if err != nil {
		return 0, err
	}
	var buf [1]byte

	p.mu.Lock()
	err = c.transmitReceive(t, p, addr, []byte{reg}, buf[:], true, true)
	p.mu.Unlock()

	return buf[0], err
}

// Write8 writes one byte to a device register.
func (c *Controller) Write8(t *Task, port int, addr uint16, reg, value uint8) error {
	p, err := c.portByNumber(port)
	if err != nil {
		return err
	}

	p.mu.Lock()
	err = c.transmitReceive(t, p, addr, []byte{reg, value}, nil, true, true)
	p.mu.Unlock()

	return err
}

// Read16 reads a 16-bit word from a device register: transmit the 8-bit
// offset, then read two bytes. Byte order follows FlagBigEndian in addr.
func (c *Controller) Read16(t *Task, port int, addr uint16, reg uint8) (uint16, error) {
	p, err := c.portByNumber(port)
	if err != nil {
		return 0, err
	}
	var buf [2]byte

	p.mu.Lock()
	err = c.transmitReceive(t, p, addr, []byte{reg}, buf[:], true, true)
	p.mu.Unlock()

	if err != nil {
		return 0, err
	}
	if addr&FlagBigEndian != 0 {
		return uint16(buf[0])<<8 | uint16(buf[1]), nil
	}
	return uint16(buf[1])<<8 | uint16(buf[0]), nil
}

// Write16 writes a 16-bit word to a device register, byte order per
// FlagBigEndian in addr.
func (c *Controller) Write16(t *Task, port int, addr uint16, reg uint8, value uint16) error {
	p, err := c.portByNumber(port)
	if err != nil {
		return err
	}

	var buf [3]byte
	buf[0] = reg
	if addr&FlagBigEndian != 0 {
		buf[1] = uint8(value >> 8)
		buf[2] = uint8(value)
	} else {
		buf[1] = uint8(value)
		buf[2] = uint8(value >> 8)
	}

	p.mu.Lock()
	err = c.transmitReceive(t, p, addr, buf[:], nil, true, true)
	p.mu.Unlock()

	return err
}

// ReadString performs a block read: write the register offset and keep
// the exchange open without a STOP, read the one-byte block length,
// then read up to len(buf)-1 data bytes with a STOP on the last. buf is
// always NUL-terminated within its length.
func (c *Controller) ReadString(t *Task, port int, addr uint16, reg uint8, buf []byte) error {
	if len(buf) == 0 {
		return ErrInvalidParam
	}
	p, err := c.portByNumber(port)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	// Send device register offset and read back the block length.
	// Keep this exchange open without a stop.
	var blockLen [1]byte
	err = c.transmitReceive(t, p, addr, []byte{reg}, blockLen[:], true, false)
	if err != nil {
		return err
	}

	n := int(blockLen[0])
	if n > len(buf)-1 {
		n = len(buf) - 1
	}

	err = c.transmitReceive(t, p, addr, nil, buf[:n], false, true)
	buf[n] = 0

	return err
}
