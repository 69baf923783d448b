package core

// Pin identifies a hardware GPIO pin number.
type Pin uint32

// NoPin marks an absent pin mapping in a port table.
const NoPin Pin = 0xffffffff

// PinMode selects how a pin is driven when it is routed as plain GPIO.
type PinMode uint8

const (
	// PinInput floats the pin so its true line level can be read.
	PinInput PinMode = iota
	// PinOutput drives the pin push-pull.
	PinOutput
	// PinOutputOpenDrain drives low actively and releases for high.
	PinOutputOpenDrain
)

// PinDriver is the abstract pin-control interface that core code uses.
// Platform-specific implementations handle actual hardware control.
type PinDriver interface {
	// SetAltFunc routes the pin to a peripheral alternate function.
	// Function 0 returns the pin to plain GPIO.
	SetAltFunc(pin Pin, fn int) error

	// Configure sets the pin's GPIO direction and drive mode.
	Configure(pin Pin, mode PinMode) error

	// Set drives the pin high (true) or low (false).
	Set(pin Pin, level bool) error

	// Get reads the current pin level.
	Get(pin Pin) (bool, error)
}
