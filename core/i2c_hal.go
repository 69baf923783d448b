package core

// I2CStatus is the master status register of one port.
type I2CStatus uint8

const (
	StatusBusy         I2CStatus = 1 << 0 // bus cycle in progress
	StatusError        I2CStatus = 1 << 1 // generic error / NACK
	StatusAddrNACK     I2CStatus = 1 << 2 // address byte not acknowledged
	StatusDataNACK     I2CStatus = 1 << 3 // data byte not acknowledged
	StatusArbLost      I2CStatus = 1 << 4 // lost arbitration to another master
	StatusIdle         I2CStatus = 1 << 5 // controller idle
	StatusBusBusy      I2CStatus = 1 << 6 // bus claimed by some master
	StatusClockTimeout I2CStatus = 1 << 7 // clock held low too long
)

// faultBits are the status bits that abort a transaction.
const faultBits = StatusClockTimeout | StatusArbLost | StatusError

// I2CControl requests one bus cycle from the hardware.
type I2CControl uint8

const (
	CtrlRun   I2CControl = 1 << 0 // execute a byte cycle
	CtrlStart I2CControl = 1 << 1 // generate a (repeated) START first
	CtrlStop  I2CControl = 1 << 2 // generate a STOP after the byte
	CtrlAck   I2CControl = 1 << 3 // acknowledge the received byte
)

// LineState reports the sampled levels of the two bus lines.
type LineState uint8

const (
	LineSCLHigh LineState = 1 << 0
	LineSDAHigh LineState = 1 << 1

	// LineIdle is both lines released high.
	LineIdle = LineSCLHigh | LineSDAHigh
)

// I2CHardware is the register-level interface to the I2C master
// peripheral. Core code drives one byte cycle at a time through it;
// platform code (or a test double) implements it.
type I2CHardware interface {
	// Status reads the port's master status bits.
	Status(port int) I2CStatus

	// SetTarget latches the target address byte (7-bit address in the
	// upper bits, read/write direction in bit 0) for following cycles.
	SetTarget(port int, addr uint8)

	// WriteData loads the data register with the next byte to transmit.
	WriteData(port int, b byte)

	// ReadData returns the data register after a receive cycle.
	ReadData(port int) byte

	// Command writes the control bits that kick off one bus cycle.
	Command(port int, ctrl I2CControl)

	// SetInterruptEnabled gates the port's completion interrupt sources.
	SetInterruptEnabled(port int, enable bool)

	// AckInterrupt acknowledges the port's pending interrupt status.
	AckInterrupt(port int)

	// Lines samples the current SCL/SDA levels as seen by the port.
	Lines(port int) LineState

	// SetClockDivisor programs the port's timing divisor.
	SetClockDivisor(port int, div uint32)

	// ClockDivisor reads back the port's current timing divisor.
	ClockDivisor(port int) uint32

	// ResetPort pulses the module reset for the port, waits a few
	// clocks, and re-enables master mode. The timing divisor is not
	// preserved; callers restore it afterwards.
	ResetPort(port int)
}
