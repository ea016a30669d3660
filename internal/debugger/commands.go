package debugger

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/beevik/prefixtree/v2"
	"github.com/bradleyjkemp/memviz"
	"github.com/kapitanov/chip8/internal/hal"
	"github.com/kapitanov/chip8/internal/machine"
	"github.com/kapitanov/chip8/internal/vm"
)

const (
	disasmLines    = 10
	memDumpBytes   = 32
	traceLines     = 16
	defaultBreakAt = "."
)

type command struct {
	name    string
	syntax  string
	brief   string
	handler func(ctx context.Context, d *Debugger, args []string) error
}

var commandList []command

var commands = prefixtree.New[*command]()

func init() {
	commandList = []command{
		{"breakpoint", "breakpoint add|remove|list [ADDR]", "Manage breakpoints", cmdBreakpoint},
		{"disasm", "disasm [ADDR] [N]", "Disassemble instructions", cmdDisasm},
		{"frame", "frame [N]", "Run N frames", cmdFrame},
		{"graph", "graph FILE", "Write a Graphviz dump of the machine state", cmdGraph},
		{"help", "help", "Show this list", cmdHelp},
		{"key", "key K down|up", "Press or release keypad key K", cmdKey},
		{"memory", "memory ADDR [LEN]", "Dump memory", cmdMemory},
		{"quirks", "quirks [cosmac|default|schip] | [NAME on|off]", "Show or change quirks", cmdQuirks},
		{"quit", "quit", "Leave the debugger", cmdQuit},
		{"registers", "registers", "Show registers and timers", cmdRegisters},
		{"reset", "reset", "Restart the program", cmdReset},
		{"run", "run", "Run until a breakpoint or the program loops", cmdRun},
		{"screen", "screen", "Show the display", cmdScreen},
		{"stack", "stack", "Show the call stack", cmdStack},
		{"step", "step [N]", "Execute N instructions", cmdStep},
		{"trace", "trace [N]", "Show the last N executed instructions", cmdTrace},
	}
	for i := range commandList {
		commands.Add(commandList[i].name, &commandList[i])
	}
	commands.Add("bp", &commandList[0])
	commands.Add("?", &commandList[4])
}

var quirkNames = prefixtree.New[func(*vm.Quirks) *bool]()

func init() {
	quirkNames.Add("shift-vy", func(q *vm.Quirks) *bool { return &q.ShiftUsesVY })
	quirkNames.Add("jump-vx", func(q *vm.Quirks) *bool { return &q.JumpUsesVX })
	quirkNames.Add("inc-i", func(q *vm.Quirks) *bool { return &q.IncrementIndex })
}

func cmdStep(ctx context.Context, d *Debugger, args []string) error {
	n, err := parseCount(args, 0, 1)
	if err != nil {
		d.println(err)
		return nil
	}

	for i := 0; i < n; i++ {
		if err := d.machine.Step(d.hal); err != nil {
			return d.hostError(err)
		}
	}

	d.nextDisasm = d.machine.CPU().PC()
	d.displayPC()
	return nil
}

func cmdFrame(ctx context.Context, d *Debugger, args []string) error {
	n, err := parseCount(args, 0, 1)
	if err != nil {
		d.println(err)
		return nil
	}

	for i := 0; i < n; i++ {
		if err := d.machine.RunFrame(ctx, d.hal); err != nil {
			if errors.Is(err, machine.ErrBreakpoint) {
				d.println("Breakpoint hit.")
				break
			}
			return d.hostError(err)
		}
	}

	d.displayPC()
	return nil
}

func cmdRun(ctx context.Context, d *Debugger, args []string) error {
	d.printf("Running from %04X. Press ctrl-C to break.\n", d.machine.CPU().PC())

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	wasLooped := d.machine.Looped()
	for {
		err := d.machine.RunFrame(ctx, d.hal)
		switch {
		case errors.Is(err, machine.ErrBreakpoint):
			d.println("Breakpoint hit.")
		case errors.Is(err, context.Canceled):
			d.println("Interrupted.")
		case err != nil:
			return d.hostError(err)
		case d.machine.Looped() && !wasLooped:
			d.println("Program looped.")
		default:
			continue
		}
		break
	}

	d.displayPC()
	return nil
}

// hostError decides whether a HAL error ends the session. Instruction faults
// in strict mode and host requests other than quit are reported only.
func (d *Debugger) hostError(err error) error {
	switch {
	case errors.Is(err, hal.ErrQuit):
		return errExit
	case errors.Is(err, hal.ErrReboot):
		d.machine.Reset()
		d.println("Rebooted.")
	case errors.Is(err, hal.ErrPause):
	default:
		d.printf("ERROR: %v.\n", err)
	}
	return nil
}

func cmdRegisters(ctx context.Context, d *Debugger, args []string) error {
	s := d.machine.Snapshot()

	d.displayPC()
	d.println(s.Registers.String())
	d.printf("pc=%04x delay=%02x sound=%02x sp=%d frames=%d ticks=%d\n",
		s.PC, s.Delay, s.Sound, len(s.Stack), s.Frames, s.Ticks)
	return nil
}

func cmdStack(ctx context.Context, d *Debugger, args []string) error {
	frames := d.machine.Snapshot().Stack
	if len(frames) == 0 {
		d.println("Stack is empty.")
		return nil
	}

	for i := len(frames) - 1; i >= 0; i-- {
		d.printf("%2d  %04X\n", i, frames[i])
	}
	return nil
}

func cmdMemory(ctx context.Context, d *Debugger, args []string) error {
	addr := d.nextDump
	if len(args) > 0 {
		a, err := d.parseAddr(args[0])
		if err != nil {
			d.println(err)
			return nil
		}
		addr = a
	}

	n, err := parseCount(args, 1, memDumpBytes)
	if err != nil {
		d.println(err)
		return nil
	}

	d.dumpMemory(addr, n)

	// an empty line continues where this dump ended
	d.nextDump = addr + uint16(n)
	d.lastLine = fmt.Sprintf("memory %04x %d", d.nextDump, n)
	return nil
}

func cmdDisasm(ctx context.Context, d *Debugger, args []string) error {
	addr := d.nextDisasm
	if addr == 0 {
		addr = d.machine.CPU().PC()
	}
	if len(args) > 0 {
		a, err := d.parseAddr(args[0])
		if err != nil {
			d.println(err)
			return nil
		}
		addr = a
	}

	n, err := parseCount(args, 1, disasmLines)
	if err != nil {
		d.println(err)
		return nil
	}

	for i := 0; i < n; i++ {
		d.println(d.disassemble(addr))
		addr += vm.InstructionSize
	}

	d.nextDisasm = addr
	d.lastLine = fmt.Sprintf("disasm %04x %d", addr, n)
	return nil
}

func cmdBreakpoint(ctx context.Context, d *Debugger, args []string) error {
	if len(args) == 0 {
		d.println("Syntax: breakpoint add|remove|list [ADDR]")
		return nil
	}

	switch op := strings.ToLower(args[0]); op {
	case "list":
		bps := d.machine.Breakpoints()
		if len(bps) == 0 {
			d.println("No breakpoints set.")
		}
		for _, addr := range bps {
			d.println(d.disassemble(addr))
		}

	case "add", "remove":
		at := defaultBreakAt
		if len(args) > 1 {
			at = args[1]
		}
		addr, err := d.parseAddr(at)
		if err != nil {
			d.println(err)
			return nil
		}

		if op == "add" {
			d.machine.AddBreakpoint(addr)
			d.printf("Breakpoint added at %04X.\n", addr)
			return nil
		}
		if !d.machine.RemoveBreakpoint(addr) {
			d.printf("No breakpoint at %04X.\n", addr)
			return nil
		}
		d.printf("Breakpoint removed at %04X.\n", addr)

	default:
		d.println("Syntax: breakpoint add|remove|list [ADDR]")
	}
	return nil
}

func cmdKey(ctx context.Context, d *Debugger, args []string) error {
	if len(args) != 2 {
		d.println("Syntax: key K down|up")
		return nil
	}

	k, err := strconv.ParseUint(args[0], 16, 8)
	if err != nil || k >= vm.KeyCount {
		d.printf("Invalid key %q.\n", args[0])
		return nil
	}
	key := vm.Key(k)

	switch strings.ToLower(args[1]) {
	case "down":
		d.machine.Keypad().KeyDown(key)
	case "up":
		d.machine.Keypad().KeyUp(key)
	default:
		d.println("Syntax: key K down|up")
	}
	return nil
}

func cmdScreen(ctx context.Context, d *Debugger, args []string) error {
	d.printf("%s", vm.RenderText(d.machine.Display().Pixels()))
	return nil
}

func cmdQuirks(ctx context.Context, d *Debugger, args []string) error {
	cpu := d.machine.CPU()
	q := cpu.Quirks()

	switch len(args) {
	case 0:
	case 1:
		preset, err := vm.QuirksPreset(args[0])
		if err != nil {
			d.println(err)
			return nil
		}
		q = preset

	case 2:
		field, err := quirkNames.FindValue(strings.ToLower(args[0]))
		if err != nil {
			d.printf("Unknown quirk %q.\n", args[0])
			return nil
		}

		switch strings.ToLower(args[1]) {
		case "on", "true", "1":
			*field(&q) = true
		case "off", "false", "0":
			*field(&q) = false
		default:
			d.printf("Invalid value %q.\n", args[1])
			return nil
		}

	default:
		d.println("Syntax: quirks [cosmac|default|schip] | [NAME on|off]")
		return nil
	}

	cpu.SetQuirks(q)
	d.println(q.String())
	return nil
}

func cmdGraph(ctx context.Context, d *Debugger, args []string) error {
	if len(args) != 1 {
		d.println("Syntax: graph FILE")
		return nil
	}

	// memviz ignores write errors
	var buf bytes.Buffer
	s := d.machine.Snapshot()
	memviz.Map(&buf, &s)

	if err := os.WriteFile(args[0], buf.Bytes(), 0o644); err != nil {
		d.printf("ERROR: %v.\n", err)
		return nil
	}
	d.printf("Wrote %s.\n", args[0])
	return nil
}

func cmdReset(ctx context.Context, d *Debugger, args []string) error {
	d.machine.Reset()
	d.trace.Clear()
	d.nextDisasm = 0
	d.nextDump = 0
	d.displayPC()
	return nil
}

func cmdTrace(ctx context.Context, d *Debugger, args []string) error {
	n, err := parseCount(args, 0, traceLines)
	if err != nil {
		d.println(err)
		return nil
	}

	for _, e := range d.trace.Last(n) {
		if e.Err != nil {
			d.printf(" %04X  %04X  %-20s %v\n", e.PC, e.Opcode, e.Name, e.Err)
			continue
		}
		d.printf(" %04X  %04X  %s\n", e.PC, e.Opcode, e.Name)
	}
	return nil
}

func cmdHelp(ctx context.Context, d *Debugger, args []string) error {
	d.println("Commands:")
	for _, c := range commandList {
		d.printf("    %-44s  %s\n", c.syntax, c.brief)
	}
	return nil
}

func cmdQuit(ctx context.Context, d *Debugger, args []string) error {
	return errExit
}
