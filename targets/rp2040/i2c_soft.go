//go:build rp2040 || rp2350

package main

import (
	"time"

	"goec/core"
)

// SoftI2C implements core.I2CHardware by bit-banging GPIO pins. The RP2
// I2C block has no byte-level control/status register model, so the
// port peripheral is synthesized in software: each Command executes one
// complete bus cycle and then raises the completion interrupt.
type SoftI2C struct {
	pins core.PinDriver

	// wiring maps port number to [SCL, SDA].
	wiring map[int][2]core.Pin

	ports map[int]*softPort

	// OnComplete is the interrupt trampoline, normally bound to
	// Controller.HandleInterrupt.
	OnComplete func(port int)
}

type softPort struct {
	target     uint8
	data       byte
	status     core.I2CStatus
	intEnabled bool
	divisor    uint32
}

const softBitDelay = 5 * time.Microsecond

// NewSoftI2C builds the software peripheral for the wired ports.
func NewSoftI2C(pins core.PinDriver, wiring map[int][2]core.Pin) *SoftI2C {
	s := &SoftI2C{
		pins:   pins,
		wiring: wiring,
		ports:  make(map[int]*softPort),
	}
	for port := range wiring {
		s.ports[port] = &softPort{}
	}
	return s
}

func (s *SoftI2C) port(n int) *softPort { return s.ports[n] }

func (s *SoftI2C) Status(port int) core.I2CStatus { return s.port(port).status }

func (s *SoftI2C) SetTarget(port int, addr uint8) { s.port(port).target = addr }

func (s *SoftI2C) WriteData(port int, b byte) { s.port(port).data = b }

func (s *SoftI2C) ReadData(port int) byte { return s.port(port).data }

func (s *SoftI2C) SetInterruptEnabled(port int, enable bool) {
	s.port(port).intEnabled = enable
}

func (s *SoftI2C) AckInterrupt(port int) {}

func (s *SoftI2C) Lines(port int) core.LineState {
	w := s.wiring[port]
	var lines core.LineState
	if lvl, _ := s.pins.Get(w[0]); lvl {
		lines |= core.LineSCLHigh
	}
	if lvl, _ := s.pins.Get(w[1]); lvl {
		lines |= core.LineSDAHigh
	}
	return lines
}

func (s *SoftI2C) SetClockDivisor(port int, div uint32) { s.port(port).divisor = div }

func (s *SoftI2C) ClockDivisor(port int) uint32 { return s.port(port).divisor }

func (s *SoftI2C) ResetPort(port int) {
	p := s.port(port)
	p.status = 0
	w := s.wiring[port]
	s.pins.Set(w[0], true)
	s.pins.Set(w[1], true)
	time.Sleep(softBitDelay)
}

// Command runs one byte cycle synchronously, then fires the completion
// interrupt so the waiting task wakes exactly as it would on a real
// interrupt-driven peripheral.
func (s *SoftI2C) Command(port int, ctrl core.I2CControl) {
	p := s.port(port)
	w := s.wiring[port]
	scl, sda := w[0], w[1]
	p.status = 0

	if ctrl&core.CtrlStart != 0 {
		s.startCond(scl, sda)
		// Address byte carries the direction bit.
		if !s.writeByte(scl, sda, p.target) {
			p.status |= core.StatusError | core.StatusAddrNACK
		}
	}

	if p.status&core.StatusError == 0 && ctrl&core.CtrlRun != 0 {
		if p.target&0x01 == 0 {
			if !s.writeByte(scl, sda, p.data) {
				p.status |= core.StatusError | core.StatusDataNACK
			}
		} else {
			p.data = s.readByte(scl, sda, ctrl&core.CtrlAck != 0)
		}
	}

	if ctrl&core.CtrlStop != 0 || p.status&core.StatusError != 0 {
		s.stopCond(scl, sda)
	}

	if p.intEnabled && s.OnComplete != nil {
		s.OnComplete(port)
	}
}

func (s *SoftI2C) startCond(scl, sda core.Pin) {
	s.pins.Set(sda, true)
	s.pins.Set(scl, true)
	time.Sleep(softBitDelay)
	s.pins.Set(sda, false)
	time.Sleep(softBitDelay)
	s.pins.Set(scl, false)
}

func (s *SoftI2C) stopCond(scl, sda core.Pin) {
	s.pins.Set(sda, false)
	time.Sleep(softBitDelay)
	s.pins.Set(scl, true)
	time.Sleep(softBitDelay)
	s.pins.Set(sda, true)
	time.Sleep(softBitDelay)
}

// writeByte shifts out one byte MSB first and samples the ACK bit.
func (s *SoftI2C) writeByte(scl, sda core.Pin, b byte) bool {
	for i := 7; i >= 0; i-- {
		s.pins.Set(sda, b&(1<<i) != 0)
		time.Sleep(softBitDelay)
		s.pins.Set(scl, true)
		time.Sleep(softBitDelay)
		s.pins.Set(scl, false)
	}

	// Release SDA and clock the acknowledge bit in.
	s.pins.Set(sda, true)
	time.Sleep(softBitDelay)
	s.pins.Set(scl, true)
	time.Sleep(softBitDelay)
	ack, _ := s.pins.Get(sda)
	s.pins.Set(scl, false)

	return !ack // ACK is the peer pulling SDA low
}

// readByte shifts in one byte MSB first and sends ACK or NACK.
func (s *SoftI2C) readByte(scl, sda core.Pin, ack bool) byte {
	var b byte

	s.pins.Set(sda, true)
	for i := 7; i >= 0; i-- {
		time.Sleep(softBitDelay)
		s.pins.Set(scl, true)
		time.Sleep(softBitDelay)
		if lvl, _ := s.pins.Get(sda); lvl {
			b |= 1 << i
		}
		s.pins.Set(scl, false)
	}

	s.pins.Set(sda, !ack)
	time.Sleep(softBitDelay)
	s.pins.Set(scl, true)
	time.Sleep(softBitDelay)
	s.pins.Set(scl, false)
	s.pins.Set(sda, true)

	return b
}
