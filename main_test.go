package main

import (
	"testing"
	"time"

	"github.com/kapitanov/chip8/internal/machine"
	"github.com/kapitanov/chip8/internal/vm"
	"github.com/retroenv/retrogolib/assert"
)

func parseConfig(t *testing.T, args ...string) (machine.Config, error) {
	t.Helper()

	var opts options
	cmd := newRootCommand(&opts)
	assert.NoError(t, cmd.ParseFlags(args))
	return opts.machineConfig(cmd)
}

func TestDefaultFlags(t *testing.T) {
	config, err := parseConfig(t)
	assert.NoError(t, err)
	assert.Equal(t, machine.DefaultConfig(), config)
}

func TestQuirkOverrides(t *testing.T) {
	config, err := parseConfig(t, "--quirks", "cosmac", "--inc-i=false", "--jump-vx")
	assert.NoError(t, err)
	assert.Equal(t, vm.Quirks{ShiftUsesVY: true, JumpUsesVX: true}, config.Quirks)
}

func TestMachineFlags(t *testing.T) {
	config, err := parseConfig(t, "--ipf", "20", "--stack-limit", "0", "--memory", "strict", "--seed", "7", "--strict")
	assert.NoError(t, err)
	assert.Equal(t, 20, config.InstructionsPerFrame)
	assert.Equal(t, 0, config.StackLimit)
	assert.Equal(t, vm.AddressStrict, config.AddressMode)
	assert.Equal(t, uint64(7), config.Seed)
	assert.True(t, config.Strict)
}

func TestInvalidFlags(t *testing.T) {
	_, err := parseConfig(t, "--quirks", "xo-chip")
	assert.True(t, err != nil)

	_, err = parseConfig(t, "--memory", "clamp")
	assert.True(t, err != nil)
}

func TestFrameFlag(t *testing.T) {
	var opts options
	cmd := newRootCommand(&opts)
	assert.NoError(t, cmd.ParseFlags([]string{"--frame", "16ms", "--frontend", "headless", "--frames", "3"}))

	assert.Equal(t, 16*time.Millisecond, opts.frame)
	assert.Equal(t, frontendHeadless, opts.frontend)
	assert.Equal(t, 3, opts.frames)
}

func TestUnknownFrontend(t *testing.T) {
	_, err := newFrontend(options{frontend: "web"}, "test", nil)
	assert.True(t, err != nil)
}
