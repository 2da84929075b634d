package audio

import (
	"context"
	"sync"
	"time"

	"github.com/satindergrewal/ambisynth/internal/logger"
)

type decodedTrack struct {
	info    TrackInfo
	samples []int16
}

// Pipeline decodes queued sessions, crossfades between them and emits PCM
// frames at real-time rate.
type Pipeline struct {
	trackCh      chan TrackInfo
	frameCh      chan []int16
	skipCh       chan struct{}
	crossfadeDur time.Duration
	decode       func(path string) ([]int16, error)

	mu            sync.RWMutex
	currentTrack  TrackInfo
	trackPosition time.Duration
	trackDuration time.Duration
	played        int
}

// NewPipeline creates a pipeline that overlaps consecutive sessions by
// crossfadeDuration.
func NewPipeline(crossfadeDuration time.Duration) *Pipeline {
	return &Pipeline{
		trackCh:      make(chan TrackInfo, 8),
		frameCh:      make(chan []int16, 100),
		skipCh:       make(chan struct{}, 1),
		crossfadeDur: crossfadeDuration,
		decode:       DecodeFile,
	}
}

// Frames returns the channel of outgoing PCM frames (20ms each).
func (p *Pipeline) Frames() <-chan []int16 {
	return p.frameCh
}

// Enqueue adds a session to the playback queue. It blocks while the queue
// is full.
func (p *Pipeline) Enqueue(t TrackInfo) {
	p.trackCh <- t
}

// QueueSize returns the number of sessions waiting to be decoded.
func (p *Pipeline) QueueSize() int {
	return len(p.trackCh)
}

// Skip interrupts the current session.
func (p *Pipeline) Skip() {
	select {
	case p.skipCh <- struct{}{}:
	default:
	}
}

// Status returns the session on air and how far into it playback is.
func (p *Pipeline) Status() (track TrackInfo, position, duration time.Duration) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.currentTrack, p.trackPosition, p.trackDuration
}

// Played returns how many sessions have started playing.
func (p *Pipeline) Played() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.played
}

// Run starts the pipeline. Blocks until ctx is cancelled.
func (p *Pipeline) Run(ctx context.Context) {
	defer close(p.frameCh)

	ticker := time.NewTicker(FrameDuration)
	defer ticker.Stop()

	decodedCh := make(chan *decodedTrack, 4)
	go p.decodeLoop(ctx, decodedCh)

	var pending *decodedTrack
	var startFrame int

	for {
		dt := pending
		pending = nil
		if dt == nil {
			select {
			case <-ctx.Done():
				return
			case d, ok := <-decodedCh:
				if !ok {
					return
				}
				dt = d
				startFrame = 0
			}
		}

		next, nextStart := p.playTrack(ctx, ticker, decodedCh, dt, startFrame)
		pending, startFrame = next, nextStart
	}
}

// decodeLoop turns queued files into samples and hands each file back to
// its producer as soon as it is in memory.
func (p *Pipeline) decodeLoop(ctx context.Context, out chan<- *decodedTrack) {
	defer close(out)
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-p.trackCh:
			samples, err := p.decode(t.Path)
			t.release()
			if err != nil {
				logger.Error("decode failed", err, logger.Fields{"job_id": t.ID, "mode": t.Mode, "stage": "decode"})
				continue
			}
			select {
			case out <- &decodedTrack{info: t, samples: samples}:
			case <-ctx.Done():
				return
			}
		}
	}
}

// crossfadeFrames is the overlap in frames for a track of totalFrames,
// never more than half of it.
func (p *Pipeline) crossfadeFrames(totalFrames int) int {
	return min(int(p.crossfadeDur/FrameDuration), totalFrames/2)
}

// playTrack plays dt from startFrame and crossfades into the next decoded
// session if one is ready. It returns that session and the frame to resume
// it from, or nil when nothing was crossfaded.
func (p *Pipeline) playTrack(ctx context.Context, ticker *time.Ticker, decodedCh <-chan *decodedTrack, dt *decodedTrack, startFrame int) (*decodedTrack, int) {
	samples := dt.samples
	totalFrames := len(samples) / FrameSamples
	cfFrames := p.crossfadeFrames(totalFrames)
	cfStart := totalFrames - cfFrames

	p.setTrack(dt.info, totalFrames)
	logger.Info("now playing", logger.Fields{
		"job_id":      dt.info.ID,
		"mode":        dt.info.Mode,
		"time_of_day": dt.info.TimeOfDay,
		"duration":    time.Duration(totalFrames) * FrameDuration,
	})

	frame := func(i int) []int16 { return samples[i*FrameSamples : (i+1)*FrameSamples] }

	for i := startFrame; i < cfStart; i++ {
		if !p.sendFrame(ctx, ticker, frame(i)) {
			return nil, 0
		}
		p.updatePosition(i)
	}

	var next *decodedTrack
	select {
	case next = <-decodedCh:
	default:
	}

	if next == nil {
		for i := cfStart; i < totalFrames; i++ {
			if !p.sendFrame(ctx, ticker, frame(i)) {
				return nil, 0
			}
			p.updatePosition(i)
		}
		return nil, 0
	}

	n := 0
	for ; n < cfFrames; n++ {
		inPos := n * FrameSamples
		if inPos+FrameSamples > len(next.samples) {
			break
		}
		mixed := CrossfadeFrames(frame(cfStart+n), next.samples[inPos:inPos+FrameSamples], float64(n)/float64(cfFrames))
		if !p.sendFrame(ctx, ticker, mixed) {
			return nil, 0
		}
		p.updatePosition(cfStart + n)
	}

	logger.Debug("crossfaded", logger.Fields{"from": dt.info.ID, "to": next.info.ID, "frames": n})
	return next, n
}

// sendFrame waits for the ticker then sends a frame. Returns false on skip or cancel.
func (p *Pipeline) sendFrame(ctx context.Context, ticker *time.Ticker, frame []int16) bool {
	select {
	case <-ctx.Done():
		return false
	case <-p.skipCh:
		logger.Info("session skipped", nil)
		return false
	case <-ticker.C:
	}

	select {
	case p.frameCh <- frame:
		return true
	case <-ctx.Done():
		return false
	}
}

func (p *Pipeline) setTrack(info TrackInfo, totalFrames int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.currentTrack = info
	p.trackPosition = 0
	p.trackDuration = time.Duration(totalFrames) * FrameDuration
	p.played++
}

func (p *Pipeline) updatePosition(frameIdx int) {
	p.mu.Lock()
	p.trackPosition = time.Duration(frameIdx) * FrameDuration
	p.mu.Unlock()
}
