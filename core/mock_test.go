package core

import (
	"sync"
	"time"
)

// mockDevice models a register-pointer peripheral: the first byte
// written after a START sets the register pointer, later writes store
// through it, and reads return successive registers.
type mockDevice struct {
	regs      [256]byte
	ptr       uint8
	expectPtr bool

	// writes records data bytes stored after the pointer, in order.
	writes []byte
}

type mockPortState struct {
	status     I2CStatus
	target     uint8
	data       byte
	intEnabled bool
	divisor    uint32
	lines      LineState
	resets     int
	acks       int
	ctrlLog    []I2CControl
}

// mockHW implements I2CHardware against a table of mock devices. In the
// default synchronous mode each Command completes before returning; in
// async mode it leaves the port busy and completes after asyncDelay on
// a timer, exercising the interrupt wait path.
type mockHW struct {
	mu      sync.Mutex
	ports   map[int]*mockPortState
	devices map[uint8]*mockDevice // keyed by write address (bit 0 clear)

	// isr is normally bound to Controller.HandleInterrupt.
	isr func(port int)

	async      bool
	asyncDelay time.Duration

	// stuckBusy makes every Command hang the port forever.
	stuckBusy bool

	// wire records every START and data byte in bus order.
	wire []wireEvent
}

type wireEvent struct {
	start bool
	write bool
	data  byte
}

func newMockHW(ports ...int) *mockHW {
	m := &mockHW{
		ports:   make(map[int]*mockPortState),
		devices: make(map[uint8]*mockDevice),
	}
	for _, p := range ports {
		m.ports[p] = &mockPortState{lines: LineIdle}
	}
	return m
}

func (m *mockHW) addDevice(addr uint8) *mockDevice {
	d := &mockDevice{}
	m.devices[addr&^0x01] = d
	return d
}

func (m *mockHW) port(n int) *mockPortState { return m.ports[n] }

func (m *mockHW) Status(port int) I2CStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.port(port).status
}

func (m *mockHW) SetTarget(port int, addr uint8) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.port(port).target = addr
}

func (m *mockHW) WriteData(port int, b byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.port(port).data = b
}

func (m *mockHW) ReadData(port int) byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.port(port).data
}

func (m *mockHW) Command(port int, ctrl I2CControl) {
	m.mu.Lock()
	ps := m.port(port)
	ps.ctrlLog = append(ps.ctrlLog, ctrl)
	// Error bits reflect the most recent cycle.
	ps.status &^= StatusError | StatusAddrNACK | StatusDataNACK

	if m.stuckBusy {
		ps.status |= StatusBusy
		m.mu.Unlock()
		return
	}

	if m.async {
		ps.status |= StatusBusy
		m.mu.Unlock()
		time.AfterFunc(m.asyncDelay, func() {
			m.complete(port, ctrl)
		})
		return
	}

	m.mu.Unlock()
	m.complete(port, ctrl)
}

// complete runs the byte cycle against the device table, clears the
// busy bit, and raises the completion interrupt.
func (m *mockHW) complete(port int, ctrl I2CControl) {
	m.mu.Lock()
	ps := m.port(port)
	dev := m.devices[ps.target&^0x01]

	if ctrl&CtrlStart != 0 {
		m.wire = append(m.wire, wireEvent{start: true})
		if dev == nil {
			ps.status |= StatusError | StatusAddrNACK
		} else if ps.target&0x01 == 0 {
			dev.expectPtr = true
		}
	}

	if dev != nil && ps.status&StatusError == 0 && ctrl&CtrlRun != 0 {
		if ps.target&0x01 == 0 {
			m.wire = append(m.wire, wireEvent{write: true, data: ps.data})
			if dev.expectPtr {
				dev.ptr = ps.data
				dev.expectPtr = false
			} else {
				dev.regs[dev.ptr] = ps.data
				dev.writes = append(dev.writes, ps.data)
				dev.ptr++
			}
		} else {
			ps.data = dev.regs[dev.ptr]
			dev.ptr++
			m.wire = append(m.wire, wireEvent{data: ps.data})
		}
	}

	ps.status &^= StatusBusy
	fire := ps.intEnabled && m.isr != nil
	m.mu.Unlock()

	if fire {
		m.isr(port)
	}
}

func (m *mockHW) SetInterruptEnabled(port int, enable bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.port(port).intEnabled = enable
}

func (m *mockHW) AckInterrupt(port int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.port(port).acks++
}

func (m *mockHW) Lines(port int) LineState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.port(port).lines
}

func (m *mockHW) SetClockDivisor(port int, div uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.port(port).divisor = div
}

func (m *mockHW) ClockDivisor(port int) uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.port(port).divisor
}

func (m *mockHW) ResetPort(port int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ps := m.port(port)
	ps.status = 0
	ps.lines = LineIdle
	ps.divisor = 0
	ps.resets++
}

func (m *mockHW) setStatus(port int, s I2CStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.port(port).status = s
}

func (m *mockHW) setLines(port int, l LineState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.port(port).lines = l
}

func (m *mockHW) controls(port int) []I2CControl {
	m.mu.Lock()
	defer m.mu.Unlock()
	ps := m.port(port)
	out := make([]I2CControl, len(ps.ctrlLog))
	copy(out, ps.ctrlLog)
	return out
}

func (m *mockHW) clearControls(port int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.port(port).ctrlLog = nil
}

// mockPins implements PinDriver with open-drain line semantics: the
// observed level is our drive ANDed with an external driver. An
// external SDA hold can be scripted to release after a number of SCL
// rising edges.
type mockPins struct {
	mu    sync.Mutex
	mode  map[Pin]PinMode
	drive map[Pin]bool // our drive; true = released
	ext   map[Pin]bool // external drive; absent = released
	alt   map[Pin]int

	setLog map[Pin][]bool

	sclPin, sdaPin  Pin
	sclRises        int
	releaseSDAAfter int // 0 disables the script
}

func newMockPins() *mockPins {
	return &mockPins{
		mode:   make(map[Pin]PinMode),
		drive:  make(map[Pin]bool),
		ext:    make(map[Pin]bool),
		alt:    make(map[Pin]int),
		setLog: make(map[Pin][]bool),
	}
}

func (m *mockPins) extLevel(pin Pin) bool {
	lvl, ok := m.ext[pin]
	return !ok || lvl
}

func (m *mockPins) ourLevel(pin Pin) bool {
	if m.mode[pin] == PinInput {
		return true
	}
	lvl, ok := m.drive[pin]
	return !ok || lvl
}

func (m *mockPins) SetAltFunc(pin Pin, fn int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alt[pin] = fn
	return nil
}

func (m *mockPins) Configure(pin Pin, mode PinMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mode[pin] = mode
	return nil
}

func (m *mockPins) Set(pin Pin, level bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.setLog[pin] = append(m.setLog[pin], level)

	prev := m.ourLevel(pin)
	m.drive[pin] = level

	// Script: count SCL rising edges and release SDA when due.
	if pin == m.sclPin && level && !prev && m.releaseSDAAfter > 0 {
		m.sclRises++
		if m.sclRises >= m.releaseSDAAfter {
			m.ext[m.sdaPin] = true
		}
	}
	return nil
}

func (m *mockPins) Get(pin Pin) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ourLevel(pin) && m.extLevel(pin), nil
}

func (m *mockPins) droveLow(pin Pin) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, lvl := range m.setLog[pin] {
		if !lvl {
			return true
		}
	}
	return false
}
