//go:build rp2040 || rp2350

package main

import (
	"machine"
	"time"

	"goec/battery"
	"goec/board"
	"goec/console"
	"goec/core"
	"goec/thermal"
)

const fanPWMPin = machine.GPIO9

func main() {
	time.Sleep(2 * time.Second) // Let USB CDC enumerate

	cfg := board.DefaultConfig()
	pins := MachinePins{}

	wiring := make(map[int][2]core.Pin)
	for _, pc := range cfg.PortConfigs() {
		if pc.SCL == core.NoPin || pc.SDA == core.NoPin {
			continue
		}
		wiring[pc.Port] = [2]core.Pin{pc.SCL, pc.SDA}
	}

	hw := NewSoftI2C(pins, wiring)
	sysclk := initSysClock()

	ctrl, err := core.NewController(core.ControllerConfig{
		Hardware:       hw,
		Pins:           pins,
		Ports:          cfg.PortConfigs(),
		PeripheralFunc: cfg.PeripheralFunc,
	}, sysclk)
	if err != nil {
		println("i2c init failed:", err.Error())
		return
	}
	hw.OnComplete = ctrl.HandleInterrupt

	core.SetDebugWriter(func(s string) {
		machine.Serial.Write([]byte(s + "\r\n"))
	})
	core.SetDebugEnabled(true)

	engine := initThermal(cfg, ctrl)

	sh := console.NewShell()
	core.RegisterI2CCommands(sh, ctrl)
	battery.RegisterCommands(sh, ctrl, cfg.Battery.Port, cfg.Battery.Addr)
	if engine != nil {
		thermal.RegisterCommands(sh, engine)

		go func() {
			for {
				engine.Control()
				time.Sleep(time.Second)
			}
		}()
	}

	println("EC console ready on", cfg.Name)
	consoleLoop(sh)
}

// initThermal builds the thermal engine from the board's sensor table.
func initThermal(cfg *board.Config, ctrl *core.Controller) *thermal.Engine {
	if len(cfg.TempSensors) == 0 {
		return nil
	}

	var sensors []thermal.Sensor
	var params []thermal.SensorParams
	for _, ts := range cfg.TempSensors {
		sensors = append(sensors,
			thermal.NewI2CSensor(ts.Name, ctrl, ts.Port, ts.Addr, ts.Reg, ts.OffsetK))
		params = append(params, thermal.SensorParams{
			// Limits in Kelvin: warn 95C, high 100C, halt 104C.
			Limits: [3]int{368, 373, 377},
			FanOff: 333, // 60C
			FanMax: 363, // 90C
		})
	}

	engine, err := thermal.NewEngine(sensors, params, thermal.Actions{
		Shutdown: func() {
			println("thermal: forcing shutdown")
		},
		Throttle: func(hard, on bool) {
			println("thermal: throttle hard =", hard, "on =", on)
		},
		SetFanPercent: setFanPercent,
		SensorFailure: func() {
			println("thermal: no sensors readable")
		},
	})
	if err != nil {
		println("thermal init failed:", err.Error())
		return nil
	}
	return engine
}

// pwmPeripheral abstracts over TinyGo's unexported *pwmGroup type.
type pwmPeripheral interface {
	Configure(config machine.PWMConfig) error
	Channel(pin machine.Pin) (uint8, error)
	Top() uint32
	Set(channel uint8, value uint32)
}

var fanPWM pwmPeripheral
var fanCh uint8

func setFanPercent(percent int) {
	if fanPWM == nil {
		// GPIO pin N maps to slice (N >> 1) & 0x7; GPIO9 is slice 4.
		pwm := pwmForSlice(uint8((uint32(fanPWMPin) >> 1) & 0x7))
		if err := pwm.Configure(machine.PWMConfig{Period: 40000}); err != nil { // 25 kHz
			return
		}
		ch, err := pwm.Channel(fanPWMPin)
		if err != nil {
			return
		}
		fanPWM = pwm
		fanCh = ch
	}
	fanPWM.Set(fanCh, fanPWM.Top()*uint32(percent)/100)
}

func pwmForSlice(slice uint8) pwmPeripheral {
	switch slice {
	case 0:
		return machine.PWM0
	case 1:
		return machine.PWM1
	case 2:
		return machine.PWM2
	case 3:
		return machine.PWM3
	case 4:
		return machine.PWM4
	case 5:
		return machine.PWM5
	case 6:
		return machine.PWM6
	default:
		return machine.PWM7
	}
}

// consoleLoop reads lines from the serial console, echoes them, and
// dispatches each to the shell.
func consoleLoop(sh *console.Shell) {
	line := make([]byte, 0, 80)
	machine.Serial.Write([]byte("> "))
	for {
		if machine.Serial.Buffered() == 0 {
			time.Sleep(time.Millisecond)
			continue
		}
		b, err := machine.Serial.ReadByte()
		if err != nil {
			continue
		}

		switch b {
		case '\r', '\n':
			machine.Serial.Write([]byte("\r\n"))
			if len(line) > 0 {
				if err := sh.RunLine(machine.Serial, string(line)); err != nil {
					machine.Serial.Write([]byte("error: " + err.Error() + "\r\n"))
				}
				line = line[:0]
			}
			machine.Serial.Write([]byte("> "))
		case 0x7f, 0x08: // backspace
			if len(line) > 0 {
				line = line[:len(line)-1]
				machine.Serial.Write([]byte("\b \b"))
			}
		default:
			if len(line) < cap(line) {
				line = append(line, b)
				machine.Serial.WriteByte(b)
			}
		}
	}
}
