// Package encode turns rendered float buffers into files: WAV through beep
// and MP3 through an external ffmpeg.
package encode

import (
	"fmt"
	"io"
	"os"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/wav"
)

// PCMStreamer plays a mono float buffer as a beep.Streamer, duplicating each
// sample on both channels.
type PCMStreamer struct {
	samples []float64
	pos     int
}

// NewStreamer wraps samples for beep.
func NewStreamer(samples []float64) *PCMStreamer {
	return &PCMStreamer{samples: samples}
}

// Stream implements beep.Streamer.
func (s *PCMStreamer) Stream(buf [][2]float64) (n int, ok bool) {
	if s.pos >= len(s.samples) {
		return 0, false
	}
	n = copyMono(buf, s.samples[s.pos:])
	s.pos += n
	return n, true
}

// Err implements beep.Streamer.
func (s *PCMStreamer) Err() error { return nil }

// Len implements beep.StreamSeeker.
func (s *PCMStreamer) Len() int { return len(s.samples) }

// Position implements beep.StreamSeeker.
func (s *PCMStreamer) Position() int { return s.pos }

// Seek implements beep.StreamSeeker.
func (s *PCMStreamer) Seek(p int) error {
	if p < 0 || p > len(s.samples) {
		return fmt.Errorf("seek %d out of range [0, %d]", p, len(s.samples))
	}
	s.pos = p
	return nil
}

func copyMono(dst [][2]float64, src []float64) int {
	n := min(len(dst), len(src))
	for i := 0; i < n; i++ {
		dst[i][0] = src[i]
		dst[i][1] = src[i]
	}
	return n
}

// Format is the WAV layout for a mono 16-bit buffer at rate.
func Format(rate int) beep.Format {
	return beep.Format{
		SampleRate:  beep.SampleRate(rate),
		NumChannels: 1,
		Precision:   2,
	}
}

// WriteWAV writes samples as a mono 16-bit WAV. beep clamps to [-1, 1] and
// truncates, so the PCM matches synth.Quantize.
func WriteWAV(w io.WriteSeeker, samples []float64, rate int) error {
	if err := wav.Encode(w, NewStreamer(samples), Format(rate)); err != nil {
		return fmt.Errorf("encode wav: %w", err)
	}
	return nil
}

// WriteWAVFile creates path and writes samples into it. A partial file is
// removed on failure.
func WriteWAVFile(path string, samples []float64, rate int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := WriteWAV(f, samples, rate); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}

// ReadWAV decodes a WAV file into mono float samples, averaging channels.
func ReadWAV(path string) ([]float64, beep.Format, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, beep.Format{}, fmt.Errorf("open %s: %w", path, err)
	}
	s, format, err := wav.Decode(f)
	if err != nil {
		f.Close()
		return nil, beep.Format{}, fmt.Errorf("decode wav %s: %w", path, err)
	}
	defer s.Close()

	out := make([]float64, 0, s.Len())
	buf := make([][2]float64, 4096)
	for {
		n, ok := s.Stream(buf)
		for _, frame := range buf[:n] {
			out = append(out, (frame[0]+frame[1])/2)
		}
		if !ok {
			break
		}
	}
	if err := s.Err(); err != nil {
		return nil, beep.Format{}, fmt.Errorf("read wav %s: %w", path, err)
	}
	return out, format, nil
}
