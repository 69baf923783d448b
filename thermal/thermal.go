// Thermal engine: aggregates temperature sensors against three
// thresholds (warn, high, halt), latches threshold crossings, and
// derives the needed fan duty.
package thermal

import (
	"errors"

	"goec/core"
)

// Threshold indexes a sensor's limit set.
type Threshold int

const (
	ThreshWarn Threshold = iota
	ThreshHigh
	ThreshHalt

	threshCount
)

// SensorParams are the per-sensor limits, in Kelvin. A zero limit is
// unset and does not participate in aggregation.
type SensorParams struct {
	Limits [3]int

	// Fan duty interpolates from 0% at FanOff to 100% at FanMax.
	FanOff int
	FanMax int
}

// Sensor reads one temperature in Kelvin.
type Sensor interface {
	Name() string
	Read() (int, error)
}

// I2CSensor reads a one-byte temperature register over the I2C driver.
type I2CSensor struct {
	name string
	ctrl *core.Controller
	task *core.Task
	port int
	addr uint16
	reg  uint8

	// offsetK converts the register value to Kelvin.
	offsetK int
}

// NewI2CSensor wires a sensor on the given port/address/register.
func NewI2CSensor(name string, c *core.Controller, port int, addr uint16, reg uint8, offsetK int) *I2CSensor {
	return &I2CSensor{
		name:    name,
		ctrl:    c,
		task:    core.NewTask("temp-" + name),
		port:    port,
		addr:    addr,
		reg:     reg,
		offsetK: offsetK,
	}
}

func (s *I2CSensor) Name() string { return s.name }

func (s *I2CSensor) Read() (int, error) {
	v, err := s.ctrl.Read8(s.task, s.port, s.addr, s.reg)
	if err != nil {
		return 0, err
	}
	return int(int8(v)) + s.offsetK, nil
}

// Actions are the engine's outputs. Nil callbacks are skipped.
type Actions struct {
	// Shutdown forces the AP off when a halt threshold latches.
	Shutdown func()

	// Throttle turns AP throttling on or off; hard selects the
	// aggressive mechanism (high threshold) over the soft one (warn).
	Throttle func(hard, on bool)

	// SetFanPercent applies the aggregated fan duty.
	SetFanPercent func(percent int)

	// SensorFailure is raised when no sensor could be read at all.
	SensorFailure func()
}

// cond latches a boolean and remembers edge transitions, so actions
// fire once per crossing rather than continuously.
type cond struct {
	value    bool
	reported bool
}

func (c *cond) set(v bool) { c.value = v }

// wentTrue reports a false->true edge exactly once.
func (c *cond) wentTrue() bool {
	if c.value && !c.reported {
		c.reported = true
		return true
	}
	return false
}

// wentFalse reports a true->false edge exactly once.
func (c *cond) wentFalse() bool {
	if !c.value && c.reported {
		c.reported = false
		return true
	}
	return false
}

// ErrNoParams means the engine was built with mismatched tables.
var ErrNoParams = errors.New("sensor and parameter counts differ")

// Engine is the thermal control loop state.
type Engine struct {
	sensors []Sensor
	params  []SensorParams
	hot     [threshCount]cond
	acts    Actions
}

// NewEngine pairs sensors with their limit sets.
func NewEngine(sensors []Sensor, params []SensorParams, acts Actions) (*Engine, error) {
	if len(sensors) != len(params) {
		return nil, ErrNoParams
	}
	return &Engine{sensors: sensors, params: params, acts: acts}, nil
}

// Params returns the limit set for one sensor.
func (e *Engine) Params(i int) (SensorParams, bool) {
	if i < 0 || i >= len(e.params) {
		return SensorParams{}, false
	}
	return e.params[i], true
}

// SetParams replaces the limit set for one sensor.
func (e *Engine) SetParams(i int, p SensorParams) bool {
	if i < 0 || i >= len(e.params) {
		return false
	}
	e.params[i] = p
	return true
}

// Sensors returns the sensor list.
func (e *Engine) Sensors() []Sensor { return e.sensors }

// fanPercent maps a temperature onto fan duty between the off and max
// points.
func fanPercent(low, high, cur int) int {
	if cur < low {
		return 0
	}
	if cur > high {
		return 100
	}
	return 100 * (cur - low) / (high - low)
}

// Control runs one pass of the loop: read every sensor, aggregate the
// thresholds, fire edge actions, and apply the max needed fan duty.
// Any temp over a limit means hot; all temps must be back under it to
// be cool again.
func (e *Engine) Control() {
	var countOver, countUnder, numValidLimits [threshCount]int
	numSensorsRead := 0
	fmax := 0

	for i, s := range e.sensors {
		t, err := s.Read()
		if err != nil {
			continue
		}
		numSensorsRead++

		for j := Threshold(0); j < threshCount; j++ {
			limit := e.params[i].Limits[j]
			if limit != 0 {
				numValidLimits[j]++
				if t > limit {
					countOver[j]++
				} else if t < limit {
					countUnder[j]++
				}
			}
		}

		if e.params[i].FanOff != 0 && e.params[i].FanMax != 0 {
			if f := fanPercent(e.params[i].FanOff, e.params[i].FanMax, t); f > fmax {
				fmax = f
			}
		}
	}

	if numSensorsRead == 0 {
		// Nothing readable; report it and hope it gets better.
		if e.acts.SensorFailure != nil {
			e.acts.SensorFailure()
		}
		return
	}

	for j := Threshold(0); j < threshCount; j++ {
		if countOver[j] > 0 {
			e.hot[j].set(true)
		} else if countUnder[j] == numValidLimits[j] {
			e.hot[j].set(false)
		}
	}

	if e.hot[ThreshHalt].wentTrue() {
		core.DebugPrintln("thermal SHUTDOWN")
		if e.acts.Shutdown != nil {
			e.acts.Shutdown()
		}
	} else if e.hot[ThreshHalt].wentFalse() {
		// No automatic reboot; the user has to push the power button.
		core.DebugPrintln("thermal no longer shutdown")
	}

	if e.hot[ThreshHigh].wentTrue() {
		core.DebugPrintln("thermal HIGH")
		e.throttle(true, true)
	} else if e.hot[ThreshHigh].wentFalse() {
		core.DebugPrintln("thermal no longer high")
		e.throttle(true, false)
	}

	if e.hot[ThreshWarn].wentTrue() {
		core.DebugPrintln("thermal WARN")
		e.throttle(false, true)
	} else if e.hot[ThreshWarn].wentFalse() {
		core.DebugPrintln("thermal no longer warn")
		e.throttle(false, false)
	}

	if e.acts.SetFanPercent != nil {
		e.acts.SetFanPercent(fmax)
	}
}

func (e *Engine) throttle(hard, on bool) {
	if e.acts.Throttle != nil {
		e.acts.Throttle(hard, on)
	}
}
