package thermal

import (
	"fmt"
	"io"
	"strconv"

	"goec/console"
)

// RegisterCommands adds the thermal console commands to the shell.
func RegisterCommands(sh *console.Shell, e *Engine) {
	sh.Register(console.Command{
		Name:    "thermalget",
		Help:    "Print thermal parameters (degrees Kelvin)",
		Handler: func(w io.Writer, args []string) error { return cmdGet(w, e) },
	})
	sh.Register(console.Command{
		Name:    "thermalset",
		ArgDesc: "sensor warn [high [shutdown [fan_off [fan_max]]]]",
		Help:    "Set thermal parameters (degrees Kelvin). Use -1 to skip.",
		Handler: func(w io.Writer, args []string) error { return cmdSet(w, e, args) },
	})
}

func cmdGet(w io.Writer, e *Engine) error {
	fmt.Fprintln(w, "sensor  warn  high  halt   fan_off fan_max   name")
	for i, s := range e.Sensors() {
		p, _ := e.Params(i)
		fmt.Fprintf(w, " %2d      %3d   %3d    %3d    %3d     %3d     %s\n",
			i,
			p.Limits[ThreshWarn],
			p.Limits[ThreshHigh],
			p.Limits[ThreshHalt],
			p.FanOff,
			p.FanMax,
			s.Name())
	}
	return nil
}

func cmdSet(w io.Writer, e *Engine, args []string) error {
	if len(args) < 3 || len(args) > 7 {
		return console.ErrParamCount
	}

	n, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("bad sensor index %q", args[1])
	}
	p, ok := e.Params(n)
	if !ok {
		return fmt.Errorf("no sensor %d", n)
	}

	for i := 2; i < len(args); i++ {
		val, err := strconv.Atoi(args[i])
		if err != nil {
			return fmt.Errorf("bad value %q", args[i])
		}
		if val < 0 {
			continue
		}
		switch i {
		case 2:
			p.Limits[ThreshWarn] = val
		case 3:
			p.Limits[ThreshHigh] = val
		case 4:
			p.Limits[ThreshHalt] = val
		case 5:
			p.FanOff = val
		case 6:
			p.FanMax = val
		}
	}
	e.SetParams(n, p)

	return cmdGet(w, e)
}
