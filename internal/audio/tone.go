// Package audio synthesises the buzzer and records it to disk.
package audio

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
)

const (
	SampleRate    = 44100
	ToneFrequency = 440
	Amplitude     = 0x1000
)

// Tone is a looping waveform. The read position carries over between Fill
// calls so consecutive buffers join without clicks.
type Tone struct {
	samples []int16
	pos     int
}

// Square returns one period of a square wave at freq Hz.
func Square(freq int) *Tone {
	period := SampleRate / freq
	samples := make([]int16, period)
	for i := range samples {
		if i < period/2 {
			samples[i] = Amplitude
		} else {
			samples[i] = -Amplitude
		}
	}
	return &Tone{samples: samples}
}

// LoadTone reads a WAV or MP3 clip to loop as the buzzer. Only the first
// channel is kept and the clip is resampled to SampleRate.
func LoadTone(path string) (*Tone, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("tone: %w", err)
	}
	defer f.Close()

	var (
		samples []int16
		rate    int
	)

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".wav":
		samples, rate, err = decodeWAV(f)
	case ".mp3":
		samples, rate, err = decodeMP3(f)
	default:
		err = fmt.Errorf("unsupported file type %q", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("tone: %s: %w", path, err)
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("tone: %s: no samples", path)
	}

	slog.Debug("tone: loaded", "path", path, "samples", len(samples), "rate", rate)
	return &Tone{samples: resample(samples, rate, SampleRate)}, nil
}

func decodeWAV(r io.ReadSeeker) ([]int16, int, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, 0, fmt.Errorf("wav: not a valid wav file")
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("wav: %w", err)
	}

	chans := int(dec.NumChans)
	shift := int(dec.BitDepth) - 16

	samples := make([]int16, 0, len(buf.Data)/chans)
	for i := 0; i < len(buf.Data); i += chans {
		v := buf.Data[i]
		switch {
		case dec.BitDepth == 8:
			v = (v - 128) << 8
		case shift > 0:
			v >>= shift
		}
		samples = append(samples, int16(v))
	}
	return samples, int(dec.SampleRate), nil
}

func decodeMP3(r io.Reader) ([]int16, int, error) {
	dec, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, 0, fmt.Errorf("mp3: %w", err)
	}

	// The stream is always 16 bit little endian stereo. Keep the left
	// channel.
	data, err := io.ReadAll(dec)
	if err != nil {
		return nil, 0, fmt.Errorf("mp3: %w", err)
	}

	samples := make([]int16, 0, len(data)/4)
	for i := 0; i+1 < len(data); i += 4 {
		samples = append(samples, int16(uint16(data[i])|uint16(data[i+1])<<8))
	}
	return samples, dec.SampleRate(), nil
}

// resample converts between rates with nearest neighbour picking.
func resample(samples []int16, from, to int) []int16 {
	if from == to || from <= 0 {
		return samples
	}

	n := len(samples) * to / from
	out := make([]int16, n)
	for i := range out {
		out[i] = samples[i*from/to]
	}
	return out
}

// Clone returns a copy with its own read position.
func (t *Tone) Clone() *Tone {
	return &Tone{samples: slices.Clone(t.samples)}
}

// Fill writes the next len(buf) samples of the waveform.
func (t *Tone) Fill(buf []int16) {
	for i := range buf {
		buf[i] = t.samples[t.pos]
		t.pos = (t.pos + 1) % len(t.samples)
	}
}

// Rewind starts the waveform over.
func (t *Tone) Rewind() {
	t.pos = 0
}

func (t *Tone) Len() int {
	return len(t.samples)
}

// SamplesPerFrame is the number of samples covering one frame.
func SamplesPerFrame(frame time.Duration) int {
	return int(int64(SampleRate) * int64(frame) / int64(time.Second))
}
