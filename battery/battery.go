// Battery pack vendor provided charging profiles, selected by board
// ID strapping, plus ship-mode cutoff over the smart battery interface.
package battery

import (
	"errors"
	"io"

	"goec/console"
	"goec/core"
)

// Shutdown mode parameter to write to the manufacturer access register.
const (
	shipModeReg  uint8  = 0x3a
	shipModeData uint16 = 0xc574
)

// Info is one pack's charging profile.
type Info struct {
	VoltageMax    int // mV
	VoltageNormal int
	VoltageMin    int

	PrechargeCurrent int // mA

	// Temperature limits in degrees C.
	StartChargingMinC int
	StartChargingMaxC int
	ChargingMinC      int
	ChargingMaxC      int
	DischargingMinC   int
	DischargingMaxC   int
}

var infoAC14 = Info{
	VoltageMax:        12900,
	VoltageNormal:     11400,
	VoltageMin:        9000,
	PrechargeCurrent:  256,
	StartChargingMinC: 0,
	StartChargingMaxC: 50,
	ChargingMinC:      0,
	ChargingMaxC:      60,
	DischargingMinC:   0,
	DischargingMaxC:   75,
}

var infoAC15 = Info{
	// Newer pack, separated by board ID bit 3.
	VoltageMax:        12600,
	VoltageNormal:     10800,
	VoltageMin:        8250,
	PrechargeCurrent:  340,
	StartChargingMinC: 0,
	StartChargingMaxC: 50,
	ChargingMinC:      0,
	ChargingMaxC:      60,
	DischargingMinC:   -20,
	DischargingMaxC:   75,
}

var infoAC14B3K = Info{
	// Newer pack, separated by board ID bit 2.
	VoltageMax:        17600,
	VoltageNormal:     15400,
	VoltageMin:        12000,
	PrechargeCurrent:  340,
	StartChargingMinC: 0,
	StartChargingMaxC: 50,
	ChargingMinC:      0,
	ChargingMaxC:      60,
	DischargingMinC:   -20,
	DischargingMaxC:   60,
}

// ErrUnknownBoard means the board ID matches no known pack.
var ErrUnknownBoard = errors.New("unknown board version")

// GetInfo selects the charging profile for a board version.
//
// The system supports multiple batteries: AC14 is the original, only
// on boards with ID 0; AC15 on boards with only the third ID bit set;
// AC14B3K on boards with only the second ID bit set.
func GetInfo(boardVersion int) (*Info, error) {
	switch boardVersion {
	case 0x00:
		return &infoAC14, nil
	case 0x02:
		return &infoAC14B3K, nil
	case 0x04:
		return &infoAC15, nil
	default:
		return nil, ErrUnknownBoard
	}
}

// Cutoff puts the pack into ship mode by writing the shutdown
// parameter to the manufacturer access register.
func Cutoff(t *core.Task, c *core.Controller, port int, addr uint16) error {
	return c.Write16(t, port, addr, shipModeReg, shipModeData)
}

// RegisterCommands adds the battery console commands to the shell.
func RegisterCommands(sh *console.Shell, c *core.Controller, port int, addr uint16) {
	t := core.NewTask("console-batt")

	sh.Register(console.Command{
		Name: "battcutoff",
		Help: "Enable battery cutoff (ship mode)",
		Handler: func(w io.Writer, args []string) error {
			return Cutoff(t, c, port, addr)
		},
	})
}
