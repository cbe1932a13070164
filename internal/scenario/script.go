// Package scenario parses range scripts and runs them against the reference
// physics scene.
//
// A script is line oriented. Blank lines and lines starting with '#' are
// skipped. Arguments are separated by whitespace; double quotes group an
// argument and "" inside quotes is a literal quote.
//
//	session "Zeroing drill"
//	target plate sphere 0,0,25 0.5 100
//	target wall box 0,0,40 5,5,0.5 1000
//	firearm rifle Rifle at 0,1.6,0 facing 0,0,1
//	attach rifle Muzzle/Compensator
//	hold rifle 0.5
//	wait 1
//	reload rifle
//	tap rifle
package scenario

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/fpsframework/firearm/internal/geo"
	"github.com/fpsframework/firearm/internal/util"
	"github.com/fpsframework/firearm/pkg/core"
)

var (
	// ErrUnknownCommand is returned for a line whose first word is not a command.
	ErrUnknownCommand = errors.New("unknown command")
	// ErrInvalidArgs is returned when a command has the wrong arguments.
	ErrInvalidArgs = errors.New("invalid arguments")
)

// Op is a script command.
type Op int

const (
	OpSession Op = iota
	OpTarget
	OpFirearm
	OpAttach
	OpHold
	OpTap
	OpReload
	OpSwitchMode
	OpAim
	OpWait
)

var opNames = map[string]Op{
	"session": OpSession,
	"target":  OpTarget,
	"firearm": OpFirearm,
	"attach":  OpAttach,
	"hold":    OpHold,
	"tap":     OpTap,
	"reload":  OpReload,
	"mode":    OpSwitchMode,
	"aim":     OpAim,
	"wait":    OpWait,
}

func (o Op) String() string {
	for name, op := range opNames {
		if op == o {
			return name
		}
	}
	return "unknown"
}

// Shape names accepted by the target command.
const (
	ShapeSphere = "sphere"
	ShapeBox    = "box"
)

// Command is one parsed script line.
type Command struct {
	Line int
	Op   Op
	// Name is the session name, or the firearm or target ID.
	Name string

	// target
	Shape       string
	Position    core.Vec3
	Radius      float64
	HalfExtents core.Vec3
	Health      float64

	// firearm
	Preset string
	Facing core.Vec3

	// attach: Type/Name key
	Attachment string

	// hold and wait
	Duration float64
	// aim
	Aiming bool
}

// Script is a parsed scenario.
type Script struct {
	Commands []Command
}

// Parse reads a script. All line errors are collected and returned joined.
func Parse(src string) (*Script, error) {
	s := &Script{}
	var errs []error
	for i, raw := range strings.Split(src, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		args, err := splitArgs(line)
		if err != nil {
			errs = append(errs, fmt.Errorf("line %d: %w", i+1, err))
			continue
		}
		cmd, err := parseCommand(args)
		if err != nil {
			errs = append(errs, fmt.Errorf("line %d: %w", i+1, err))
			continue
		}
		cmd.Line = i + 1
		s.Commands = append(s.Commands, cmd)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return s, nil
}

// splitArgs splits on whitespace outside double quotes. Quoted arguments are
// returned unquoted with doubled quotes resolved.
func splitArgs(line string) ([]string, error) {
	var (
		args    []string
		start   = -1
		inQuote bool
	)
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case c == '"':
			if start < 0 {
				start = i
			}
			if inQuote && i+1 < len(line) && line[i+1] == '"' {
				i++
				continue
			}
			inQuote = !inQuote
		case (c == ' ' || c == '\t') && !inQuote:
			if start >= 0 {
				args = append(args, util.Unquote(line[start:i]))
				start = -1
			}
		default:
			if start < 0 {
				start = i
			}
		}
	}
	if inQuote {
		return nil, fmt.Errorf("unterminated quote: %w", ErrInvalidArgs)
	}
	if start >= 0 {
		args = append(args, util.Unquote(line[start:]))
	}
	return args, nil
}

func parseCommand(args []string) (Command, error) {
	op, ok := opNames[strings.ToLower(args[0])]
	if !ok {
		return Command{}, fmt.Errorf("%q: %w", args[0], ErrUnknownCommand)
	}
	cmd := Command{Op: op}
	rest := args[1:]

	want := func(n int) error {
		if len(rest) != n {
			return fmt.Errorf("%s takes %d arguments, got %d: %w", op, n, len(rest), ErrInvalidArgs)
		}
		return nil
	}

	var err error
	switch op {
	case OpSession:
		if err = want(1); err != nil {
			return cmd, err
		}
		cmd.Name = rest[0]

	case OpTarget:
		if len(rest) < 2 {
			return cmd, fmt.Errorf("target needs an ID and a shape: %w", ErrInvalidArgs)
		}
		cmd.Name, cmd.Shape = rest[0], strings.ToLower(rest[1])
		switch cmd.Shape {
		case ShapeSphere:
			if len(rest) != 5 {
				return cmd, fmt.Errorf("target sphere takes center, radius and health: %w", ErrInvalidArgs)
			}
			if cmd.Position, err = parseVec(rest[2]); err != nil {
				return cmd, err
			}
			if cmd.Radius, err = parsePositive("radius", rest[3]); err != nil {
				return cmd, err
			}
		case ShapeBox:
			if len(rest) != 5 {
				return cmd, fmt.Errorf("target box takes center, half extents and health: %w", ErrInvalidArgs)
			}
			if cmd.Position, err = parseVec(rest[2]); err != nil {
				return cmd, err
			}
			if cmd.HalfExtents, err = parseVec(rest[3]); err != nil {
				return cmd, err
			}
		default:
			return cmd, fmt.Errorf("unknown shape %q: %w", cmd.Shape, ErrInvalidArgs)
		}
		if cmd.Health, err = parsePositive("health", rest[4]); err != nil {
			return cmd, err
		}

	case OpFirearm:
		if len(rest) != 2 && len(rest) != 4 && len(rest) != 6 {
			return cmd, fmt.Errorf("firearm takes an ID, a preset and optional at/facing: %w", ErrInvalidArgs)
		}
		cmd.Name, cmd.Preset = rest[0], rest[1]
		cmd.Facing = core.Forward
		for i := 2; i < len(rest); i += 2 {
			v, err := parseVec(rest[i+1])
			if err != nil {
				return cmd, err
			}
			switch strings.ToLower(rest[i]) {
			case "at":
				cmd.Position = v
			case "facing":
				if v.IsZero() {
					return cmd, fmt.Errorf("facing must not be zero: %w", ErrInvalidArgs)
				}
				cmd.Facing = v
			default:
				return cmd, fmt.Errorf("unknown firearm option %q: %w", rest[i], ErrInvalidArgs)
			}
		}

	case OpAttach:
		if err = want(2); err != nil {
			return cmd, err
		}
		cmd.Name, cmd.Attachment = rest[0], rest[1]

	case OpHold:
		if err = want(2); err != nil {
			return cmd, err
		}
		cmd.Name = rest[0]
		if cmd.Duration, err = parsePositive("duration", rest[1]); err != nil {
			return cmd, err
		}

	case OpTap, OpReload, OpSwitchMode:
		if err = want(1); err != nil {
			return cmd, err
		}
		cmd.Name = rest[0]

	case OpAim:
		if err = want(2); err != nil {
			return cmd, err
		}
		cmd.Name = rest[0]
		switch strings.ToLower(rest[1]) {
		case "on":
			cmd.Aiming = true
		case "off":
		default:
			return cmd, fmt.Errorf("aim takes on or off, got %q: %w", rest[1], ErrInvalidArgs)
		}

	case OpWait:
		if err = want(1); err != nil {
			return cmd, err
		}
		if cmd.Duration, err = parsePositive("duration", rest[0]); err != nil {
			return cmd, err
		}
	}
	return cmd, nil
}

func parseVec(s string) (core.Vec3, error) {
	v, err := geo.Vec3FromString(s)
	if err != nil {
		return core.Vec3{}, fmt.Errorf("%q: %w", s, err)
	}
	return v, nil
}

func parsePositive(name, s string) (float64, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f <= 0 {
		return 0, fmt.Errorf("%s must be a positive number, got %q: %w", name, s, ErrInvalidArgs)
	}
	return f, nil
}
