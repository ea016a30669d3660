package vm

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
)

// Diagnostics receives instruction traces and faults. Implementations must
// not alter VM state.
type Diagnostics interface {
	Executed(pc uint16, op Operation)
	Fault(pc uint16, op Operation, err error)
}

// LogDiagnostics writes traces at debug level and faults at warn level.
type LogDiagnostics struct {
	Logger *slog.Logger
}

func (d LogDiagnostics) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.Default()
	}
	return d.Logger
}

func (d LogDiagnostics) Executed(pc uint16, op Operation) {
	logger := d.logger()
	if !logger.Enabled(context.Background(), slog.LevelDebug) {
		return
	}

	logger.Debug(
		"exec",
		"pc", fmt.Sprintf("0x%04x", pc),
		"opcode", fmt.Sprintf("0x%04x", op.Opcode),
		"instr", op.Name(),
	)
}

func (d LogDiagnostics) Fault(pc uint16, op Operation, err error) {
	d.logger().Warn(
		"instruction fault",
		"pc", fmt.Sprintf("0x%04x", pc),
		"opcode", fmt.Sprintf("0x%04x", op.Opcode),
		"err", err,
	)
}

type multiDiagnostics []Diagnostics

// MultiDiagnostics fans events out to every non-nil sink.
func MultiDiagnostics(ds ...Diagnostics) Diagnostics {
	var m multiDiagnostics
	for _, d := range ds {
		if d != nil {
			m = append(m, d)
		}
	}
	return m
}

func (m multiDiagnostics) Executed(pc uint16, op Operation) {
	for _, d := range m {
		d.Executed(pc, op)
	}
}

func (m multiDiagnostics) Fault(pc uint16, op Operation, err error) {
	for _, d := range m {
		d.Fault(pc, op, err)
	}
}

// RandomSource supplies CXNN with uniformly distributed bytes.
type RandomSource interface {
	NextByte() uint8
}

type Random struct {
	rng *rand.Rand
}

// NewRandom returns a PCG backed source. A zero seed picks a random one.
func NewRandom(seed uint64) *Random {
	if seed == 0 {
		seed = rand.Uint64()
	}
	return &Random{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (r *Random) NextByte() uint8 {
	return uint8(r.rng.IntN(256))
}
