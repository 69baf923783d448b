// Board definition: wiring tables for the I2C ports, temperature
// sensors, and the battery, loadable from JSON with defaults applied.
package board

import (
	"encoding/json"
	"time"

	"goec/core"
)

// I2CPortConfig is one row of the board's I2C port registry.
type I2CPortConfig struct {
	Name string `json:"name"`
	Port int    `json:"port"`
	KBPS int    `json:"kbps"`

	// SCL/SDA pin numbers for bit-bang recovery. Leaving both zero
	// means the pins are not wired for recovery on this port.
	SCL uint32 `json:"scl"`
	SDA uint32 `json:"sda"`

	TimeoutMS int `json:"timeout_ms"`
}

// TempSensorConfig describes one I2C temperature sensor.
type TempSensorConfig struct {
	Name string `json:"name"`
	Port int    `json:"port"`
	Addr uint16 `json:"addr"`
	Reg  uint8  `json:"reg"`

	// OffsetK converts the sensor reading to Kelvin.
	OffsetK int `json:"offset_k"`
}

// BatteryConfig locates the smart battery on the bus.
type BatteryConfig struct {
	Port int    `json:"port"`
	Addr uint16 `json:"addr"`

	// Version is the board ID strapping value selecting the charge
	// profile.
	Version int `json:"version"`
}

// Config is the full board definition.
type Config struct {
	Name string `json:"name"`

	// SysClockHz is the system clock frequency at boot.
	SysClockHz uint32 `json:"sys_clock_hz"`

	// PeripheralFunc is the pin alternate function for I2C routing.
	PeripheralFunc int `json:"peripheral_func"`

	I2CPorts    []I2CPortConfig    `json:"i2c_ports"`
	TempSensors []TempSensorConfig `json:"temp_sensors"`
	Battery     BatteryConfig      `json:"battery"`
}

// Load parses a JSON board definition and applies defaults.
func Load(jsonData []byte) (*Config, error) {
	var cfg Config
	if err := json.Unmarshal(jsonData, &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

// applyDefaults fills in missing configuration values with sensible defaults
func applyDefaults(cfg *Config) {
	if cfg.SysClockHz == 0 {
		cfg.SysClockHz = 16000000 // 16 MHz internal oscillator
	}
	if cfg.PeripheralFunc == 0 {
		cfg.PeripheralFunc = 3
	}
	if cfg.Battery.Addr == 0 {
		cfg.Battery.Addr = 0x16 // smart battery address
	}
	for i := range cfg.I2CPorts {
		p := &cfg.I2CPorts[i]
		if p.KBPS == 0 {
			p.KBPS = 100
		}
		if p.TimeoutMS == 0 {
			p.TimeoutMS = 1000
		}
	}
}

// PortConfigs converts the registry rows into driver port configs.
func (c *Config) PortConfigs() []core.PortConfig {
	out := make([]core.PortConfig, 0, len(c.I2CPorts))
	for _, p := range c.I2CPorts {
		pc := core.PortConfig{
			Name:    p.Name,
			Port:    p.Port,
			KBPS:    p.KBPS,
			SCL:     core.Pin(p.SCL),
			SDA:     core.Pin(p.SDA),
			Timeout: time.Duration(p.TimeoutMS) * time.Millisecond,
		}
		if p.SCL == 0 && p.SDA == 0 {
			pc.SCL = core.NoPin
			pc.SDA = core.NoPin
		}
		out = append(out, pc)
	}
	return out
}

// DefaultConfig returns the reference board definition: battery and
// charger share port 0, the lightbar runs fast mode on port 1, and the
// thermal sensors sit on port 5.
func DefaultConfig() *Config {
	cfg := &Config{
		Name:       "reference",
		SysClockHz: 16000000,
		I2CPorts: []I2CPortConfig{
			{Name: "batt_chg", Port: 0, KBPS: 100, SCL: 2, SDA: 3},
			{Name: "lightbar", Port: 1, KBPS: 400, SCL: 4, SDA: 5},
			{Name: "thermal", Port: 5, KBPS: 100, SCL: 6, SDA: 7},
		},
		TempSensors: []TempSensorConfig{
			{Name: "charger_die", Port: 5, Addr: 0x80, Reg: 0x01, OffsetK: 273},
			{Name: "pch_die", Port: 5, Addr: 0x82, Reg: 0x01, OffsetK: 273},
		},
		Battery: BatteryConfig{Port: 0, Addr: 0x16},
	}
	applyDefaults(cfg)
	return cfg
}
