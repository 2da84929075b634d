package audio

import (
	"encoding/binary"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/wav"
)

// resampleQuality trades CPU for aliasing when converting session WAVs
// (22.05kHz mono) to the stream rate.
const resampleQuality = 4

// DecodeFile decodes an audio file to interleaved stereo int16 at 48kHz.
// WAV files are decoded in process; anything else goes through FFmpeg.
func DecodeFile(path string) ([]int16, error) {
	if strings.EqualFold(filepath.Ext(path), ".wav") {
		return decodeWAV(path)
	}
	return decodeFFmpeg(path)
}

func decodeWAV(path string) ([]int16, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	s, format, err := wav.Decode(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	defer s.Close()

	var src beep.Streamer = s
	if format.SampleRate != SampleRate {
		src = beep.Resample(resampleQuality, format.SampleRate, SampleRate, s)
	}

	est := s.Len()
	if format.SampleRate > 0 {
		est = int(int64(est) * SampleRate / int64(format.SampleRate))
	}
	out := make([]int16, 0, (est+1)*Channels)
	buf := make([][2]float64, 4096)
	for {
		n, ok := src.Stream(buf)
		for _, frame := range buf[:n] {
			out = append(out, toInt16(frame[0]), toInt16(frame[1]))
		}
		if !ok {
			break
		}
	}
	if err := s.Err(); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return out, nil
}

func toInt16(v float64) int16 {
	v = max(-1, min(1, v))
	return int16(v * 32767)
}

func decodeFFmpeg(path string) ([]int16, error) {
	cmd := exec.Command("ffmpeg",
		"-i", path,
		"-f", "s16le",
		"-acodec", "pcm_s16le",
		"-ar", "48000",
		"-ac", "2",
		"-loglevel", "error",
		"pipe:1",
	)

	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg decode %s: %w", path, err)
	}

	// Ensure even byte count for int16 alignment
	if len(out)%2 != 0 {
		out = out[:len(out)-1]
	}

	samples := make([]int16, len(out)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(out[i*2 : i*2+2]))
	}
	return samples, nil
}

// SamplesToBytes converts int16 samples to little-endian bytes.
func SamplesToBytes(samples []int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}
