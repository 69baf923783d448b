package battery

import (
	"bytes"
	"errors"
	"testing"

	"goec/console"
	"goec/core"
)

// fakeI2C is a minimal I2CHardware that completes every cycle
// immediately and records the data bytes written on the bus.
type fakeI2C struct {
	target uint8
	data   byte
	writes []byte
}

func (f *fakeI2C) Status(port int) core.I2CStatus { return 0 }
func (f *fakeI2C) SetTarget(port int, addr uint8) { f.target = addr }
func (f *fakeI2C) WriteData(port int, b byte)     { f.data = b }
func (f *fakeI2C) ReadData(port int) byte         { return 0 }
func (f *fakeI2C) SetInterruptEnabled(int, bool)  {}
func (f *fakeI2C) AckInterrupt(port int)          {}
func (f *fakeI2C) Lines(port int) core.LineState  { return core.LineIdle }
func (f *fakeI2C) SetClockDivisor(int, uint32)    {}
func (f *fakeI2C) ClockDivisor(port int) uint32   { return 0 }
func (f *fakeI2C) ResetPort(port int)             {}

func (f *fakeI2C) Command(port int, ctrl core.I2CControl) {
	if f.target&0x01 == 0 {
		f.writes = append(f.writes, f.data)
	}
}

type fakePins struct{}

func (fakePins) SetAltFunc(core.Pin, int) error         { return nil }
func (fakePins) Configure(core.Pin, core.PinMode) error { return nil }
func (fakePins) Set(core.Pin, bool) error               { return nil }
func (fakePins) Get(core.Pin) (bool, error)             { return true, nil }

func newTestController(t *testing.T, hw *fakeI2C) *core.Controller {
	t.Helper()
	c, err := core.NewController(core.ControllerConfig{
		Hardware: hw,
		Pins:     fakePins{},
		Ports:    []core.PortConfig{{Name: "batt_chg", Port: 0, KBPS: 100, SCL: 2, SDA: 3}},
	}, core.NewSysClock(16000000))
	if err != nil {
		t.Fatalf("NewController failed: %v", err)
	}
	return c
}

func TestGetInfo(t *testing.T) {
	cases := []struct {
		version    int
		voltageMax int
	}{
		{0x00, 12900}, // AC14
		{0x02, 17600}, // AC14B3K
		{0x04, 12600}, // AC15
	}
	for _, tc := range cases {
		info, err := GetInfo(tc.version)
		if err != nil {
			t.Errorf("GetInfo(0x%02x) failed: %v", tc.version, err)
			continue
		}
		if info.VoltageMax != tc.voltageMax {
			t.Errorf("Board 0x%02x: expected VoltageMax %d, got %d",
				tc.version, tc.voltageMax, info.VoltageMax)
		}
	}
}

func TestGetInfoUnknownBoard(t *testing.T) {
	if _, err := GetInfo(0x07); !errors.Is(err, ErrUnknownBoard) {
		t.Errorf("Expected ErrUnknownBoard, got %v", err)
	}
}

func TestCutoff(t *testing.T) {
	hw := &fakeI2C{}
	c := newTestController(t, hw)
	task := core.NewTask("test")

	if err := Cutoff(task, c, 0, 0x16); err != nil {
		t.Fatalf("Cutoff failed: %v", err)
	}

	// Ship mode is a word write of 0xc574 to register 0x3a, least
	// significant byte first.
	want := []byte{0x3a, 0x74, 0xc5}
	if len(hw.writes) != len(want) {
		t.Fatalf("Expected %d bytes on the bus, got %d", len(want), len(hw.writes))
	}
	for i := range want {
		if hw.writes[i] != want[i] {
			t.Errorf("Byte %d: expected 0x%02x, got 0x%02x", i, want[i], hw.writes[i])
		}
	}
}

func TestBattCutoffCommand(t *testing.T) {
	hw := &fakeI2C{}
	c := newTestController(t, hw)

	sh := console.NewShell()
	RegisterCommands(sh, c, 0, 0x16)

	var out bytes.Buffer
	if err := sh.RunLine(&out, "battcutoff"); err != nil {
		t.Fatalf("battcutoff failed: %v", err)
	}
	if len(hw.writes) != 3 || hw.writes[0] != 0x3a {
		t.Errorf("battcutoff did not write the ship-mode register: % x", hw.writes)
	}
}
