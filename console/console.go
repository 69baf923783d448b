// Debug console command shell.
// Commands register themselves with a Shell; input lines are tokenized
// and dispatched to the matching handler.
package console

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/google/shlex"
)

// Handler handles one console command. args[0] is the command name.
type Handler func(w io.Writer, args []string) error

// Command is one registered console command.
type Command struct {
	// Name is matched case-insensitively against the first token.
	Name string

	// ArgDesc describes the arguments, e.g. "port addr [count]".
	ArgDesc string

	// Help is a one-line description shown by the help command.
	Help string

	Handler Handler
}

var (
	// ErrUnknownCommand is returned for an unregistered command name.
	ErrUnknownCommand = errors.New("unknown command")

	// ErrParamCount is returned when a handler got the wrong number of
	// arguments.
	ErrParamCount = errors.New("wrong number of parameters")
)

// Shell holds the command registry and dispatches input lines.
type Shell struct {
	mu   sync.RWMutex
	cmds map[string]Command
}

// NewShell creates a shell with the built-in help command.
func NewShell() *Shell {
	s := &Shell{cmds: make(map[string]Command)}
	s.Register(Command{
		Name:    "help",
		Help:    "Print command list",
		Handler: s.cmdHelp,
	})
	return s
}

// Register adds a command to the registry. Re-registering a name
// replaces the previous command.
func (s *Shell) Register(cmd Command) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cmds[strings.ToLower(cmd.Name)] = cmd
}

// Lookup finds a command by name.
func (s *Shell) Lookup(name string) (Command, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cmd, ok := s.cmds[strings.ToLower(name)]
	return cmd, ok
}

// RunLine tokenizes one input line and dispatches it. Blank lines are
// ignored; handler errors are returned to the caller for reporting.
func (s *Shell) RunLine(w io.Writer, line string) error {
	args, err := shlex.Split(line)
	if err != nil {
		return err
	}
	if len(args) == 0 {
		return nil
	}

	cmd, ok := s.Lookup(args[0])
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCommand, args[0])
	}
	return cmd.Handler(w, args)
}

func (s *Shell) cmdHelp(w io.Writer, args []string) error {
	s.mu.RLock()
	names := make([]string, 0, len(s.cmds))
	for name := range s.cmds {
		names = append(names, name)
	}
	s.mu.RUnlock()
	sort.Strings(names)

	fmt.Fprintln(w, "Known commands:")
	for _, name := range names {
		cmd, _ := s.Lookup(name)
		if cmd.ArgDesc != "" {
			fmt.Fprintf(w, "  %-12s %s\n      %s\n", cmd.Name, cmd.ArgDesc, cmd.Help)
		} else {
			fmt.Fprintf(w, "  %-12s %s\n", cmd.Name, cmd.Help)
		}
	}
	return nil
}
