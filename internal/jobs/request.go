package jobs

import (
	"fmt"
	"slices"
	"time"

	apperr "github.com/satindergrewal/ambisynth/internal/errors"
	"github.com/satindergrewal/ambisynth/internal/synth"
)

// Format is the delivered container.
type Format string

const (
	FormatWAV Format = "wav"
	FormatMP3 Format = "mp3"
)

// AllowedMinutes are the session lengths accepted at intake.
var AllowedMinutes = []int{5, 10, 20, 25, 30, 35, 40, 50}

// Request is a session order as received from a client.
type Request struct {
	Mode      string `json:"mode" yaml:"mode"`
	Minutes   int    `json:"minutes" yaml:"minutes"`
	TimeOfDay string `json:"time_of_day,omitempty" yaml:"time_of_day,omitempty"` // empty: detect from clock
	Breaks    bool   `json:"breaks,omitempty" yaml:"breaks,omitempty"`
	Format    Format `json:"format,omitempty" yaml:"format,omitempty"` // empty: wav
}

// Validate rejects unknown modes, dayparts and formats, and lengths outside
// AllowedMinutes.
func (r Request) Validate() error {
	if _, err := synth.ParseMode(r.Mode); err != nil {
		return err
	}
	if r.TimeOfDay != "" {
		if _, err := synth.ParseTimeOfDay(r.TimeOfDay); err != nil {
			return err
		}
	}
	if !slices.Contains(AllowedMinutes, r.Minutes) {
		return apperr.Newf(apperr.CodeInvalidRequest, "minutes must be one of %v, got %d", AllowedMinutes, r.Minutes).
			WithMetadata("field", "minutes")
	}
	switch r.Format {
	case "", FormatWAV, FormatMP3:
	default:
		return apperr.Newf(apperr.CodeInvalidRequest, "unknown format %q", r.Format).
			WithMetadata("field", "format")
	}
	return nil
}

// synthRequest resolves r against the clock. Call Validate first.
func (r Request) synthRequest(now time.Time, tz string) synth.Request {
	tod := synth.TimeOfDay(r.TimeOfDay)
	if tod == "" {
		tod, _ = synth.DetectTimeOfDay(now, tz)
	}
	return synth.Request{
		Mode:            synth.Mode(r.Mode),
		DurationSeconds: float64(r.Minutes * 60),
		TimeOfDay:       tod,
		IncludeBreaks:   r.Breaks,
	}
}

func (r Request) format() Format {
	if r.Format == "" {
		return FormatWAV
	}
	return r.Format
}

// FileName is the delivered name of a session, e.g.
// ambient_focus_day_25min_breaks.mp3.
func FileName(req synth.Request, ext Format) string {
	name := fmt.Sprintf("ambient_%s_%s_%dmin", req.Mode, req.TimeOfDay, int(req.DurationSeconds/60))
	if req.IncludeBreaks {
		name += "_breaks"
	}
	return name + "." + string(ext)
}
