// Package debugger is an interactive step debugger for a machine. Commands
// are read line by line and may be abbreviated to any unambiguous prefix.
package debugger

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/beevik/prefixtree/v2"
	"github.com/kapitanov/chip8/internal/machine"
	"github.com/kapitanov/chip8/internal/vm"
)

var errExit = errors.New("exit")

// A Debugger drives a machine from commands instead of the free running
// frame loop.
type Debugger struct {
	machine *machine.Machine
	hal     machine.HAL
	trace   *Trace

	input       *bufio.Scanner
	output      *bufio.Writer
	interactive bool

	lastLine   string
	nextDisasm uint16
	nextDump   uint16
}

func New(m *machine.Machine, hal machine.HAL, trace *Trace) *Debugger {
	return &Debugger{
		machine: m,
		hal:     hal,
		trace:   trace,
	}
}

// RunCommands accepts commands from r and writes the results to w until the
// input ends, quit is entered or the host asks to quit. If the commands are
// interactive, a prompt is displayed while waiting for the next command.
func (d *Debugger) RunCommands(ctx context.Context, r io.Reader, w io.Writer, interactive bool) error {
	d.input = bufio.NewScanner(r)
	d.output = bufio.NewWriter(w)
	d.interactive = interactive
	defer d.flush()

	d.displayPC()

	for {
		d.prompt()

		line, err := d.getLine()
		if err != nil {
			return nil
		}

		line = strings.TrimSpace(line)
		if line == "" {
			line = d.lastLine
		}
		if line == "" {
			continue
		}

		fields := strings.Fields(line)
		c, err := commands.FindValue(strings.ToLower(fields[0]))
		switch {
		case errors.Is(err, prefixtree.ErrPrefixNotFound):
			d.println("Command not found.")
			continue
		case errors.Is(err, prefixtree.ErrPrefixAmbiguous):
			d.println("Command is ambiguous.")
			continue
		case err != nil:
			d.printf("ERROR: %v.\n", err)
			continue
		}
		d.lastLine = line

		err = c.handler(ctx, d, fields[1:])
		switch {
		case errors.Is(err, errExit):
			return nil
		case err != nil:
			return err
		}
	}
}

func (d *Debugger) printf(format string, args ...any) {
	fmt.Fprintf(d.output, format, args...)
	d.flush()
}

func (d *Debugger) println(args ...any) {
	fmt.Fprintln(d.output, args...)
	d.flush()
}

func (d *Debugger) flush() {
	d.output.Flush()
}

func (d *Debugger) getLine() (string, error) {
	if d.input.Scan() {
		return d.input.Text(), nil
	}
	if d.input.Err() != nil {
		return "", d.input.Err()
	}
	return "", io.EOF
}

func (d *Debugger) prompt() {
	if d.interactive {
		d.printf("* ")
	}
}

func (d *Debugger) displayPC() {
	d.println(d.disassemble(d.machine.CPU().PC()))
}

// disassemble formats the instruction at addr as "0200  6005  mov v0, 5",
// marking the PC with '>' and breakpoints with '*'.
func (d *Debugger) disassemble(addr uint16) string {
	mem := d.machine.Memory()
	opcode := uint16(mem.Read(addr))<<8 | uint16(mem.Read(addr+1))

	marker := ' '
	if addr == d.machine.CPU().PC() {
		marker = '>'
	}
	for _, bp := range d.machine.Breakpoints() {
		if bp == addr {
			marker = '*'
		}
	}

	return fmt.Sprintf("%c%04X  %04X  %s", marker, addr, opcode, vm.Disassemble(opcode))
}

// dumpMemory prints n bytes from addr, eight to a row.
func (d *Debugger) dumpMemory(addr uint16, n int) {
	const perRow = 8

	mem := d.machine.Memory()
	var sb strings.Builder
	for i := 0; i < n; i += perRow {
		row := min(perRow, n-i)
		a := addr + uint16(i)

		sb.Reset()
		fmt.Fprintf(&sb, "%04X ", a)
		for _, b := range mem.ReadRange(a, row) {
			fmt.Fprintf(&sb, " %02X", b)
		}
		d.println(sb.String())
	}
}

// parseAddr accepts hexadecimal with an optional "0x" or "$" prefix, or "."
// for the PC.
func (d *Debugger) parseAddr(s string) (uint16, error) {
	if s == "." {
		return d.machine.CPU().PC(), nil
	}

	s = strings.TrimPrefix(strings.TrimPrefix(strings.ToLower(s), "0x"), "$")
	v, err := strconv.ParseUint(s, 16, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid address %q", s)
	}
	return uint16(v), nil
}

func parseCount(args []string, i, def int) (int, error) {
	if len(args) <= i {
		return def, nil
	}

	n, err := strconv.Atoi(args[i])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid count %q", args[i])
	}
	return n, nil
}
