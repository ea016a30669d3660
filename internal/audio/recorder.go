package audio

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/youpy/go-wav"
)

// MaxRecording is the longest stretch of audio a Recorder keeps. Frames past
// it are dropped.
const MaxRecording = 10 * time.Minute

// number of samples converted per WriteSamples call
const writeChunk = 4096

// Recorder captures the buzzer, one frame of samples per Record call. Samples
// are buffered in memory and written to disk on Close.
type Recorder struct {
	path      string
	tone      *Tone
	frame     []int16
	buffer    []int16
	limit     int
	truncated bool
}

func NewRecorder(path string, tone *Tone, frame time.Duration) *Recorder {
	return &Recorder{
		path:  path,
		tone:  tone.Clone(),
		frame: make([]int16, SamplesPerFrame(frame)),
		limit: SamplesPerFrame(MaxRecording),
	}
}

func (r *Recorder) Record(on bool) {
	if len(r.buffer)+len(r.frame) > r.limit {
		if !r.truncated {
			slog.Warn("recorder: recording limit reached, dropping further audio", "limit", MaxRecording)
			r.truncated = true
		}
		return
	}

	if on {
		r.tone.Fill(r.frame)
	} else {
		clear(r.frame)
		r.tone.Rewind()
	}
	r.buffer = append(r.buffer, r.frame...)
}

// Samples is the number of samples recorded so far.
func (r *Recorder) Samples() int {
	return len(r.buffer)
}

// Truncated reports whether frames were dropped at the recording limit.
func (r *Recorder) Truncated() bool {
	return r.truncated
}

func (r *Recorder) Close() (rerr error) {
	f, err := os.Create(r.path)
	if err != nil {
		return fmt.Errorf("recorder: %w", err)
	}
	defer func() {
		if err := f.Close(); err != nil && rerr == nil {
			rerr = fmt.Errorf("recorder: %w", err)
		}
	}()

	enc := wav.NewWriter(f, uint32(len(r.buffer)), 1, SampleRate, 16)
	if enc == nil {
		return fmt.Errorf("recorder: bad parameters for wav encoding")
	}

	slog.Info("recorder: writing audio", "path", r.path, "samples", len(r.buffer))

	chunk := make([]wav.Sample, 0, writeChunk)
	for start := 0; start < len(r.buffer); start += writeChunk {
		end := min(start+writeChunk, len(r.buffer))

		chunk = chunk[:0]
		for _, v := range r.buffer[start:end] {
			var s wav.Sample
			s.Values[0] = int(v)
			chunk = append(chunk, s)
		}
		if err := enc.WriteSamples(chunk); err != nil {
			return fmt.Errorf("recorder: %w", err)
		}
	}
	return nil
}
