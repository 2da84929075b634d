package audio

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/satindergrewal/ambisynth/internal/encode"
)

// --- Constants ---

func TestConstants(t *testing.T) {
	// 48kHz * 20ms = 960 samples per channel
	if got := SampleRate * int(FrameDuration/time.Millisecond) / 1000; got != FrameSize {
		t.Errorf("FrameSize mismatch: want %d, got %d", got, FrameSize)
	}
	if FrameSamples != FrameSize*Channels {
		t.Errorf("FrameSamples = %d, want %d", FrameSamples, FrameSize*Channels)
	}
	if FrameBytes != FrameSamples*2 {
		t.Errorf("FrameBytes = %d, want %d", FrameBytes, FrameSamples*2)
	}
}

// --- Smoothstep ---

func TestSmoothstepBoundaries(t *testing.T) {
	tests := []struct {
		input float64
		want  float64
	}{
		{-0.5, 0},
		{0, 0},
		{0.5, 0.5},
		{1, 1},
		{1.5, 1},
	}
	for _, tt := range tests {
		got := Smoothstep(tt.input)
		if got != tt.want {
			t.Errorf("Smoothstep(%v) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestSmoothstepMonotonic(t *testing.T) {
	prev := 0.0
	for i := 1; i <= 100; i++ {
		x := float64(i) / 100.0
		val := Smoothstep(x)
		if val < prev {
			t.Errorf("Smoothstep not monotonic: f(%v)=%v < f(%v)=%v", x, val, float64(i-1)/100.0, prev)
		}
		prev = val
	}
}

func TestSmoothstepSymmetry(t *testing.T) {
	// Smoothstep is symmetric around 0.5: f(0.5+d) + f(0.5-d) = 1
	for _, d := range []float64{0.1, 0.2, 0.3, 0.4, 0.5} {
		sum := Smoothstep(0.5+d) + Smoothstep(0.5-d)
		if diff := sum - 1.0; diff > 1e-10 || diff < -1e-10 {
			t.Errorf("Smoothstep symmetry broken at d=%v: sum=%v", d, sum)
		}
	}
}

// --- CrossfadeFrames ---

func TestCrossfadeAllOutgoing(t *testing.T) {
	out := []int16{1000, -1000, 500, -500}
	in := []int16{2000, -2000, 1500, -1500}
	result := CrossfadeFrames(out, in, 0)
	for i, v := range result {
		if v != out[i] {
			t.Errorf("At progress=0 sample[%d] = %d, want %d (all outgoing)", i, v, out[i])
		}
	}
}

func TestCrossfadeAllIncoming(t *testing.T) {
	out := []int16{1000, -1000, 500, -500}
	in := []int16{2000, -2000, 1500, -1500}
	result := CrossfadeFrames(out, in, 1)
	for i, v := range result {
		if v != in[i] {
			t.Errorf("At progress=1 sample[%d] = %d, want %d (all incoming)", i, v, in[i])
		}
	}
}

func TestCrossfadeMidpoint(t *testing.T) {
	out := []int16{1000, -1000}
	in := []int16{3000, -3000}
	result := CrossfadeFrames(out, in, 0.5)
	// At midpoint, smoothstep(0.5)=0.5, so average: (1000*0.5 + 3000*0.5) = 2000
	for i, want := range []int16{2000, -2000} {
		if result[i] != want {
			t.Errorf("At progress=0.5 sample[%d] = %d, want %d", i, result[i], want)
		}
	}
}

func TestCrossfadeClipping(t *testing.T) {
	out := []int16{32000, -32000}
	in := []int16{32000, -32000}
	result := CrossfadeFrames(out, in, 0.5)
	// Both loud at midpoint: 32000*0.5 + 32000*0.5 = 32000 (no clipping needed here)
	// But test with values that would overflow:
	out2 := []int16{32767, -32768}
	in2 := []int16{32767, -32768}
	result2 := CrossfadeFrames(out2, in2, 0.5)
	if result[0] > 32767 || result[0] < -32768 {
		t.Errorf("Clipping failed: got %d", result[0])
	}
	if result2[0] != 32767 {
		t.Errorf("Max values at midpoint: got %d, want 32767", result2[0])
	}
	if result2[1] != -32768 {
		t.Errorf("Min values at midpoint: got %d, want -32768", result2[1])
	}
}

// --- SamplesToBytes / round-trip ---

func TestSamplesToBytes(t *testing.T) {
	samples := []int16{0, 1, -1, 32767, -32768, 256}
	buf := SamplesToBytes(samples)
	if len(buf) != len(samples)*2 {
		t.Fatalf("SamplesToBytes length = %d, want %d", len(buf), len(samples)*2)
	}

	// Verify little-endian encoding manually for a few values
	// 256 = 0x0100 -> bytes [0x00, 0x01]
	idx := 5 * 2
	if buf[idx] != 0x00 || buf[idx+1] != 0x01 {
		t.Errorf("Sample 256 encoded as [%02x, %02x], want [00, 01]", buf[idx], buf[idx+1])
	}
}

func TestSamplesBytesRoundTrip(t *testing.T) {
	original := []int16{0, 1, -1, 32767, -32768, 12345, -6789}
	buf := SamplesToBytes(original)

	// Decode back
	recovered := make([]int16, len(buf)/2)
	for i := range recovered {
		recovered[i] = int16(uint16(buf[i*2]) | uint16(buf[i*2+1])<<8)
	}

	for i, v := range original {
		if recovered[i] != v {
			t.Errorf("Round-trip sample[%d]: got %d, want %d", i, recovered[i], v)
		}
	}
}

// --- Pipeline unit tests (non-I/O) ---

func TestNewPipeline(t *testing.T) {
	p := NewPipeline(8 * time.Second)
	if p == nil {
		t.Fatal("NewPipeline returned nil")
	}
	if p.crossfadeDur != 8*time.Second {
		t.Errorf("crossfadeDur = %v, want 8s", p.crossfadeDur)
	}
}

func TestPipelineQueueSize(t *testing.T) {
	p := NewPipeline(4 * time.Second)
	if p.QueueSize() != 0 {
		t.Errorf("Initial QueueSize = %d, want 0", p.QueueSize())
	}
}

func TestPipelineStatus(t *testing.T) {
	p := NewPipeline(4 * time.Second)
	track, pos, dur := p.Status()
	if track.ID != "" || pos != 0 || dur != 0 {
		t.Errorf("Initial status should be zero-valued, got track=%v pos=%v dur=%v", track, pos, dur)
	}
}

func TestPipelineSkipNonBlocking(t *testing.T) {
	p := NewPipeline(4 * time.Second)
	// Skip on empty channel should not block
	p.Skip()
	p.Skip() // second skip also shouldn't block (buffered channel of 1, first fills it)
}

func TestTrackInfoNilRelease(t *testing.T) {
	info := TrackInfo{ID: "x", Mode: "sleep", Path: "/tmp/x.wav"}
	if info.Release != nil {
		t.Fatal("zero TrackInfo should have no Release")
	}
	info.release() // nil Release must be a no-op
}

// --- Linear overlap ---

func TestOverlapLength(t *testing.T) {
	tests := []struct {
		prev, next, want int
	}{
		{100000, 100000, MaxOverlap},
		{100, 100000, 100},
		{100000, 1, 1},
		{0, 50, 0},
	}
	for _, tt := range tests {
		if got := OverlapLength(tt.prev, tt.next); got != tt.want {
			t.Errorf("OverlapLength(%d, %d) = %d, want %d", tt.prev, tt.next, got, tt.want)
		}
	}
}

func TestBlendLinearEndpoints(t *testing.T) {
	tail := []float64{1, 1, 1, 1, 1}
	head := []float64{-1, -1, -1, -1, -1}
	BlendLinear(tail, head)
	if tail[0] != 1 {
		t.Errorf("first blended sample = %v, want 1 (all tail)", tail[0])
	}
	if tail[4] != -1 {
		t.Errorf("last blended sample = %v, want -1 (all head)", tail[4])
	}
	if math.Abs(tail[2]) > 1e-12 {
		t.Errorf("midpoint = %v, want 0", tail[2])
	}
}

func TestBlendLinearSingleSample(t *testing.T) {
	tail := []float64{0.25}
	BlendLinear(tail, []float64{0.75})
	if tail[0] != 0.25 {
		t.Errorf("one-sample overlap = %v, want tail kept", tail[0])
	}
}

func TestCrossfadeConstantStaysConstant(t *testing.T) {
	a := make([]float64, 3000)
	b := make([]float64, 2000)
	for i := range a {
		a[i] = 1
	}
	for i := range b {
		b[i] = 1
	}
	out := Crossfade(a, b, 500)
	if len(out) != 4500 {
		t.Fatalf("len = %d, want 4500", len(out))
	}
	for i, v := range out {
		if math.Abs(v-1) > 1e-9 {
			t.Fatalf("out[%d] = %v, want 1", i, v)
		}
	}
}

func TestCrossfadeFallsBackToConcat(t *testing.T) {
	a := []float64{1, 2}
	b := []float64{3, 4, 5}
	for _, n := range []int{0, -1, 3} {
		out := Crossfade(a, b, n)
		if len(out) != 5 || out[0] != 1 || out[4] != 5 {
			t.Errorf("Crossfade(n=%d) = %v, want plain concatenation", n, out)
		}
	}
}

// --- Decoding ---

func TestDecodeWAVResamplesToStereo48k(t *testing.T) {
	const rate = 22050
	src := make([]float64, rate) // one second
	for i := range src {
		src[i] = 0.5 * math.Sin(2*math.Pi*220*float64(i)/rate)
	}
	path := filepath.Join(t.TempDir(), "session.wav")
	if err := encode.WriteWAVFile(path, src, rate); err != nil {
		t.Fatalf("WriteWAVFile: %v", err)
	}

	samples, err := DecodeFile(path)
	if err != nil {
		t.Fatalf("DecodeFile: %v", err)
	}
	frames := len(samples) / Channels
	if frames < SampleRate-SampleRate/50 || frames > SampleRate+SampleRate/50 {
		t.Errorf("decoded %d frames, want about %d", frames, SampleRate)
	}
	if len(samples)%Channels != 0 {
		t.Errorf("odd sample count %d", len(samples))
	}
	var peak int16
	for i := 0; i+1 < len(samples); i += 2 {
		if samples[i] != samples[i+1] {
			t.Fatalf("channels differ at frame %d: %d vs %d", i/2, samples[i], samples[i+1])
		}
		if samples[i] > peak {
			peak = samples[i]
		}
	}
	if peak < 15000 || peak > 17500 {
		amp := 0.5
		t.Errorf("peak = %d, want about %d", peak, int(amp*32767))
	}
}

func TestDecodeMissingFile(t *testing.T) {
	if _, err := DecodeFile(filepath.Join(t.TempDir(), "gone.wav")); err == nil {
		t.Error("DecodeFile on a missing file should fail")
	}
}

// --- Pipeline playback ---

func constantTrack(frames int, v int16) []int16 {
	s := make([]int16, frames*FrameSamples)
	for i := range s {
		s[i] = v
	}
	return s
}

func TestPipelineCrossfadesQueuedSessions(t *testing.T) {
	p := NewPipeline(4 * FrameDuration)
	p.decode = func(path string) ([]int16, error) {
		if path == "a" {
			return constantTrack(10, 1000), nil
		}
		return constantTrack(10, -1000), nil
	}

	var released atomic.Int32
	rel := func() { released.Add(1) }
	p.Enqueue(TrackInfo{ID: "a", Mode: "focus", Path: "a", Release: rel})
	p.Enqueue(TrackInfo{ID: "b", Mode: "calm", Path: "b", Release: rel})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	// 6 solo frames of a, 4 blended, then b from frame 4 to 10.
	var got [][]int16
	timeout := time.After(5 * time.Second)
	for len(got) < 16 {
		select {
		case f := <-p.Frames():
			got = append(got, f)
		case <-timeout:
			t.Fatalf("received %d frames, want 16", len(got))
		}
	}

	if got[0][0] != 1000 {
		t.Errorf("first frame = %d, want 1000", got[0][0])
	}
	if got[6][0] != 1000 {
		t.Errorf("first blended frame = %d, want 1000 at progress 0", got[6][0])
	}
	if v := got[8][0]; v >= 1000 || v <= -1000 {
		t.Errorf("mid-crossfade frame = %d, want strictly between the two sessions", v)
	}
	if got[15][0] != -1000 {
		t.Errorf("last frame = %d, want -1000", got[15][0])
	}

	select {
	case f := <-p.Frames():
		t.Errorf("unexpected extra frame %d", f[0])
	case <-time.After(100 * time.Millisecond):
	}

	if n := released.Load(); n != 2 {
		t.Errorf("released %d sessions, want 2", n)
	}
	if n := p.Played(); n != 2 {
		t.Errorf("Played = %d, want 2", n)
	}
	if track, _, dur := p.Status(); track.ID != "b" || dur != 10*FrameDuration {
		t.Errorf("Status = %s/%v, want b/%v", track.ID, dur, 10*FrameDuration)
	}

	cancel()
	for range p.Frames() {
	}
}

func TestPipelineReleasesFailedDecode(t *testing.T) {
	p := NewPipeline(0)
	p.decode = func(string) ([]int16, error) { return nil, errors.New("corrupt") }

	released := make(chan struct{})
	p.Enqueue(TrackInfo{ID: "bad", Path: "bad", Release: func() { close(released) }})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	select {
	case <-released:
	case <-time.After(2 * time.Second):
		t.Fatal("Release not called for a file that failed to decode")
	}
	if p.Played() != 0 {
		t.Errorf("Played = %d, want 0", p.Played())
	}
}

func TestCrossfadeFramesCapped(t *testing.T) {
	p := NewPipeline(8 * time.Second)
	if got := p.crossfadeFrames(100000); got != 400 {
		t.Errorf("crossfadeFrames = %d, want 400", got)
	}
	if got := p.crossfadeFrames(100); got != 50 {
		t.Errorf("crossfadeFrames on a short track = %d, want 50", got)
	}
}
