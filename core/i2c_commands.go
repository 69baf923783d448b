package core

import (
	"fmt"
	"io"
	"strconv"

	"goec/console"
)

// RegisterI2CCommands adds the driver's debug commands to the console
// shell. The shell runs as its own cooperative task.
func RegisterI2CCommands(sh *console.Shell, c *Controller) {
	t := NewTaskWithClock("console", c.clk)

	sh.Register(console.Command{
		Name:    "i2cread",
		ArgDesc: "port addr [count]",
		Help:    "Read bytes from an I2C device",
		Handler: func(w io.Writer, args []string) error {
			return cmdI2CRead(w, args, c, t)
		},
	})
	sh.Register(console.Command{
		Name:    "i2cscan",
		Help:    "Scan I2C ports for devices",
		Handler: func(w io.Writer, args []string) error {
			return cmdI2CScan(w, args, c, t)
		},
	})
}

func cmdI2CRead(w io.Writer, args []string, c *Controller, t *Task) error {
	if len(args) < 3 {
		return console.ErrParamCount
	}

	port, err := strconv.ParseInt(args[1], 0, 32)
	if err != nil {
		return ErrInvalidParam
	}
	if _, err := c.portByNumber(int(port)); err != nil {
		return err
	}

	addr, err := strconv.ParseUint(args[2], 0, 8)
	if err != nil || addr&0x01 != 0 {
		return ErrInvalidParam
	}

	count := 1
	if len(args) > 3 {
		n, err := strconv.ParseInt(args[3], 0, 32)
		if err != nil || n < 1 {
			return ErrInvalidParam
		}
		count = int(n)
	}

	fmt.Fprintf(w, "Reading %d bytes from %d:0x%02x:", count, port, addr)

	buf := make([]byte, count)
	c.Lock(int(port), true)
	err = c.Transfer(t, int(port), uint16(addr), nil, buf, true, true)
	c.Lock(int(port), false)
	if err != nil {
		fmt.Fprintln(w)
		return err
	}

	for _, b := range buf {
		fmt.Fprintf(w, " 0x%02x", b)
	}
	fmt.Fprintln(w)
	return nil
}

func cmdI2CScan(w io.Writer, args []string, c *Controller, t *Task) error {
	for _, pc := range c.Ports() {
		scanBus(w, c, t, pc)
	}
	return nil
}

func scanBus(w io.Writer, c *Controller, t *Task, pc PortConfig) {
	fmt.Fprintf(w, "Scanning %d %s", pc.Port, pc.Name)

	// Don't scan a busy port, since reads will just fail or time out.
	lines := c.hw.Lines(pc.Port)
	if lines != LineIdle {
		fmt.Fprintf(w, ": port busy (SDA=%d, SCL=%d)\n",
			(lines&LineSDAHigh)>>1, lines&LineSCLHigh)
		return
	}

	c.Lock(pc.Port, true)
	defer c.Lock(pc.Port, false)

	var buf [1]byte
	for a := 0; a < 0x100; a += 2 {
		fmt.Fprint(w, ".")

		// Do a single read.
		if err := c.Transfer(t, pc.Port, uint16(a), nil, buf[:], true, true); err == nil {
			fmt.Fprintf(w, "\n  0x%02x", a)
		}
	}
	fmt.Fprintln(w)
}
