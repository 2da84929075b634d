// Package playback sends a rendered session to the local sound card.
// It is kept apart from the rest of the tree so that only the command
// links the platform audio backend.
package playback

import (
	"context"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/speaker"

	"github.com/satindergrewal/ambisynth/internal/encode"
)

// Play blocks until samples have been played or ctx is cancelled.
func Play(ctx context.Context, samples []float64, rate int) error {
	sr := beep.SampleRate(rate)
	if err := speaker.Init(sr, sr.N(time.Second/10)); err != nil {
		return err
	}
	defer speaker.Close()

	done := make(chan struct{})
	speaker.Play(beep.Seq(encode.NewStreamer(samples), beep.Callback(func() {
		close(done)
	})))

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		speaker.Clear()
		return ctx.Err()
	}
}
