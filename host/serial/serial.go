// Serial port abstraction for the host-side console bridge.
package serial

// Config describes how to open a serial port.
type Config struct {
	Device string // e.g. "/dev/ttyACM0"
	Baud   int

	// ReadTimeout in milliseconds; zero blocks forever.
	ReadTimeout int
}

// Port is a serial connection to the EC debug console.
type Port interface {
	Read(b []byte) (int, error)
	Write(b []byte) (int, error)
	Close() error
}
