// Package audio turns finished session files into a paced stream of 20ms
// PCM frames for the radio.
package audio

import "time"

const (
	SampleRate    = 48000
	Channels      = 2
	BitDepth      = 16
	FrameDuration = 20 * time.Millisecond
	FrameSize     = 960                  // samples per channel per 20ms frame
	FrameSamples  = FrameSize * Channels // total interleaved samples per frame
	FrameBytes    = FrameSamples * 2     // bytes per frame (int16 = 2 bytes)
)

// TrackInfo identifies a rendered session queued for the radio.
type TrackInfo struct {
	ID        string `json:"id"`
	Mode      string `json:"mode"`
	TimeOfDay string `json:"time_of_day"`
	Path      string `json:"-"`
	Name      string `json:"name"`

	// Release is called once the file has been decoded (or failed to decode)
	// so the producer can delete it.
	Release func() `json:"-"`
}

func (t TrackInfo) release() {
	if t.Release != nil {
		t.Release()
	}
}
