package hal

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"time"
	"unsafe"

	"github.com/kapitanov/chip8/internal/audio"
	"github.com/kapitanov/chip8/internal/vm"
	"github.com/veandco/go-sdl2/sdl"
)

const (
	WindowWidth  = 1024
	WindowHeight = 512

	// audio frames kept queued while the buzzer sounds
	queuedFrames = 3
)

// SDL is a window with keyboard input and a queued audio device for the
// buzzer.
type SDL struct {
	window          *sdl.Window
	renderer        *sdl.Renderer
	texture         *sdl.Texture
	backBuffer      []uint32
	backBufferPitch int

	pacer *Pacer

	audioDev  sdl.AudioDeviceID
	hasAudio  bool
	tone      *audio.Tone
	toneOn    bool
	samples   []int16
	audioData []byte
}

func NewSDL(title string, frame time.Duration, tone *audio.Tone) (*SDL, error) {
	if err := sdl.Init(sdl.INIT_VIDEO | sdl.INIT_EVENTS | sdl.INIT_AUDIO); err != nil {
		return nil, fmt.Errorf("failed to init sdl: %w", err)
	}

	window, err := sdl.CreateWindow(title, sdl.WINDOWPOS_UNDEFINED, sdl.WINDOWPOS_UNDEFINED, WindowWidth, WindowHeight, sdl.WINDOW_SHOWN|sdl.WINDOW_UTILITY)
	if err != nil {
		return nil, fmt.Errorf("failed to create sdl window: %w", err)
	}
	slog.Debug("hal: create window")
	window.Show()

	renderer, err := sdl.CreateRenderer(window, -1, sdl.RENDERER_ACCELERATED)
	if err != nil {
		return nil, fmt.Errorf("failed to create sdl renderer: %w", err)
	}
	err = renderer.SetLogicalSize(WindowWidth, WindowHeight)
	if err != nil {
		return nil, fmt.Errorf("failed to resize sdl renderer: %w", err)
	}
	slog.Debug("hal: create renderer")

	texture, err := renderer.CreateTexture(sdl.PIXELFORMAT_ARGB8888, sdl.TEXTUREACCESS_STREAMING, vm.ScreenWidth, vm.ScreenHeight)
	if err != nil {
		return nil, fmt.Errorf("failed to create sdl texture: %w", err)
	}
	slog.Debug("hal: create texture")

	h := &SDL{
		window:          window,
		renderer:        renderer,
		texture:         texture,
		backBuffer:      make([]uint32, vm.ScreenWidth*vm.ScreenHeight),
		backBufferPitch: int(vm.ScreenWidth) * int(unsafe.Sizeof(uint32(0))),
		pacer:           NewPacer(frame),
		tone:            tone,
	}

	// No sound device is not fatal, the buzzer stays silent.
	if err := h.openAudio(frame); err != nil {
		slog.Warn("hal: audio unavailable", "err", err)
	}

	return h, nil
}

func (h *SDL) openAudio(frame time.Duration) error {
	spec := &sdl.AudioSpec{
		Freq:     audio.SampleRate,
		Format:   sdl.AUDIO_S16LSB,
		Channels: 1,
		Samples:  512,
	}

	dev, err := sdl.OpenAudioDevice("", false, spec, nil, 0)
	if err != nil {
		return err
	}
	slog.Debug("hal: open audio device", "id", dev)

	perFrame := audio.SamplesPerFrame(frame)
	if perFrame < int(spec.Samples) {
		perFrame = int(spec.Samples)
	}

	h.audioDev = dev
	h.hasAudio = true
	h.samples = make([]int16, perFrame)
	h.audioData = make([]byte, 2*perFrame)

	sdl.PauseAudioDevice(dev, false)
	return nil
}

func (h *SDL) Shutdown() {
	if h.hasAudio {
		sdl.CloseAudioDevice(h.audioDev)
	}

	if err := h.texture.Destroy(); err != nil {
		slog.Error("failed to destroy sdl texture", "err", err)
	}

	if err := h.renderer.Destroy(); err != nil {
		slog.Error("failed to destroy sdl renderer", "err", err)
	}

	if err := h.window.Destroy(); err != nil {
		slog.Error("failed to destroy sdl window", "err", err)
	}

	sdl.Quit()
}

func (h *SDL) ReadInput(keyDown func(vm.Key), keyUp func(vm.Key)) error {
	for e := sdl.PollEvent(); e != nil; e = sdl.PollEvent() {
		switch e.GetType() {
		case sdl.QUIT:
			slog.Debug("hal: exit requested")
			return ErrQuit
		case sdl.KEYDOWN:
			err := h.processKeyDown(e.(*sdl.KeyboardEvent), keyDown)
			if err != nil {
				return err
			}

		case sdl.KEYUP:
			h.processKeyUp(e.(*sdl.KeyboardEvent), keyUp)
		}
	}

	return nil
}

func (h *SDL) processKeyDown(e *sdl.KeyboardEvent, callback func(vm.Key)) error {
	switch e.Keysym.Scancode {
	case sdl.SCANCODE_BACKSPACE:
		return ErrReboot
	case sdl.SCANCODE_ESCAPE:
		return ErrQuit
	case sdl.SCANCODE_P:
		if e.Repeat == 0 {
			return ErrPause
		}
		return nil
	}

	key, ok := scancodeKey(e.Keysym.Scancode)
	if ok {
		callback(key)
	}

	return nil
}

func (h *SDL) processKeyUp(e *sdl.KeyboardEvent, callback func(vm.Key)) {
	key, ok := scancodeKey(e.Keysym.Scancode)
	if ok {
		callback(key)
	}
}

// scancodeKey maps physical key positions, so the layout in keyLayout holds
// on any keyboard language.
func scancodeKey(code sdl.Scancode) (vm.Key, bool) {
	switch code {
	case sdl.SCANCODE_X:
		return vm.Key0, true
	case sdl.SCANCODE_1:
		return vm.Key1, true
	case sdl.SCANCODE_2:
		return vm.Key2, true
	case sdl.SCANCODE_3:
		return vm.Key3, true
	case sdl.SCANCODE_Q:
		return vm.Key4, true
	case sdl.SCANCODE_W:
		return vm.Key5, true
	case sdl.SCANCODE_E:
		return vm.Key6, true
	case sdl.SCANCODE_A:
		return vm.Key7, true
	case sdl.SCANCODE_S:
		return vm.Key8, true
	case sdl.SCANCODE_D:
		return vm.Key9, true
	case sdl.SCANCODE_Z:
		return vm.KeyA, true
	case sdl.SCANCODE_C:
		return vm.KeyB, true
	case sdl.SCANCODE_4:
		return vm.KeyC, true
	case sdl.SCANCODE_R:
		return vm.KeyD, true
	case sdl.SCANCODE_F:
		return vm.KeyE, true
	case sdl.SCANCODE_V:
		return vm.KeyF, true
	default:
		return 0, false
	}
}

func (h *SDL) Draw(gfx []uint8) error {
	const (
		bgColor = uint32(0x000000)
		fgColor = uint32(0xbea700)
	)

	for i, px := range gfx {
		color := bgColor
		if px != 0 {
			color = fgColor
		}
		h.backBuffer[i] = color
	}

	backBufferPtr := unsafe.Pointer(&h.backBuffer[0])
	if err := h.texture.Update(nil, backBufferPtr, h.backBufferPitch); err != nil {
		return fmt.Errorf("failed to update sdl texture: %w", err)
	}

	if err := h.renderer.Clear(); err != nil {
		return fmt.Errorf("failed to clear sdl renderer: %w", err)
	}

	if err := h.renderer.Copy(h.texture, nil, nil); err != nil {
		return fmt.Errorf("failed to copy sdl texture to renderer: %w", err)
	}

	h.renderer.Present()
	return nil
}

func (h *SDL) SetTone(on bool) error {
	h.toneOn = on
	if !h.hasAudio {
		return nil
	}

	if !on {
		sdl.ClearQueuedAudio(h.audioDev)
		h.tone.Rewind()
	}
	return h.queueTone()
}

// queueTone keeps a few frames of the waveform ahead of the device.
func (h *SDL) queueTone() error {
	if !h.hasAudio || !h.toneOn {
		return nil
	}

	target := uint32(queuedFrames * len(h.audioData))
	for sdl.GetQueuedAudioSize(h.audioDev) < target {
		h.tone.Fill(h.samples)
		for i, v := range h.samples {
			binary.LittleEndian.PutUint16(h.audioData[2*i:], uint16(v))
		}

		if err := sdl.QueueAudio(h.audioDev, h.audioData); err != nil {
			return fmt.Errorf("failed to queue sdl audio: %w", err)
		}
	}
	return nil
}

func (h *SDL) WaitForNextFrame() error {
	if err := h.queueTone(); err != nil {
		return err
	}

	h.pacer.Wait()
	return nil
}
