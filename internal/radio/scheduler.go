package radio

import (
	"context"
	"errors"
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"github.com/satindergrewal/ambisynth/internal/audio"
	apperr "github.com/satindergrewal/ambisynth/internal/errors"
	"github.com/satindergrewal/ambisynth/internal/jobs"
	"github.com/satindergrewal/ambisynth/internal/logger"
	"github.com/satindergrewal/ambisynth/internal/synth"
)

// Generator renders sessions. *jobs.Manager satisfies it.
type Generator interface {
	Submit(req jobs.Request) (string, error)
	Wait(ctx context.Context, id string, interval time.Duration) (jobs.Job, error)
	Remove(id string) error
}

// Player queues decoded sessions for broadcast. *audio.Pipeline satisfies it.
type Player interface {
	Enqueue(t audio.TrackInfo)
	QueueSize() int
	Skip()
}

// SchedulerConfig holds station parameters.
type SchedulerConfig struct {
	StartingMode   string
	SessionMinutes int
	BufferAhead    int    // sessions to keep rendered ahead of playback
	DwellMin       int    // min seconds per mode
	DwellMax       int    // max seconds per mode
	TimeZone       string // zone used to pick the time of day
}

// SchedulerStatus is the current state of the station.
type SchedulerStatus struct {
	CurrentMode    string  `json:"mode"`
	TimeOfDay      string  `json:"time_of_day"`
	AutoTimeOfDay  bool    `json:"auto_time_of_day"`
	AutoDJ         bool    `json:"auto_dj"`
	DwellRemaining float64 `json:"dwell_remaining"` // seconds
	QueueSize      int     `json:"queue_size"`
	SessionMinutes int     `json:"session_minutes"`
	Rendered       int     `json:"rendered"`
	LastSession    string  `json:"last_session,omitempty"`
}

// Scheduler moves the station through the mood graph and keeps the player
// supplied with rendered sessions.
type Scheduler struct {
	gen    Generator
	player Player
	cfg    SchedulerConfig

	rng        *rand.Rand
	now        func() time.Time
	idle       time.Duration // sleep while the buffer is full
	retryDelay time.Duration // sleep after a failed submit

	mu          sync.RWMutex
	currentMode synth.Mode
	todOverride synth.TimeOfDay // empty: follow the clock
	autoDJ      bool
	dwellEnd    time.Time
	rendered    int
	lastSession string

	modeOverrideCh chan synth.Mode
}

// NewScheduler creates a scheduler. An unknown starting mode falls back to
// focus.
func NewScheduler(gen Generator, player Player, cfg SchedulerConfig) *Scheduler {
	start, err := synth.ParseMode(cfg.StartingMode)
	if err != nil {
		start = synth.ModeFocus
	}
	if cfg.BufferAhead < 1 {
		cfg.BufferAhead = 1
	}
	if !slices.Contains(jobs.AllowedMinutes, cfg.SessionMinutes) {
		cfg.SessionMinutes = jobs.AllowedMinutes[0]
	}
	return &Scheduler{
		gen:            gen,
		player:         player,
		cfg:            cfg,
		rng:            synth.NewRand(),
		now:            time.Now,
		idle:           time.Second,
		retryDelay:     5 * time.Second,
		currentMode:    start,
		autoDJ:         true,
		modeOverrideCh: make(chan synth.Mode, 1),
	}
}

// Status returns the current station state.
func (s *Scheduler) Status() SchedulerStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return SchedulerStatus{
		CurrentMode:    string(s.currentMode),
		TimeOfDay:      string(s.timeOfDayLocked()),
		AutoTimeOfDay:  s.todOverride == "",
		AutoDJ:         s.autoDJ,
		DwellRemaining: max(0, s.dwellEnd.Sub(s.now()).Seconds()),
		QueueSize:      s.player.QueueSize(),
		SessionMinutes: s.cfg.SessionMinutes,
		Rendered:       s.rendered,
		LastSession:    s.lastSession,
	}
}

// SetMode manually overrides the current mode. The change applies to the
// next rendered session.
func (s *Scheduler) SetMode(mode string) error {
	m, err := synth.ParseMode(mode)
	if err != nil {
		return err
	}
	for {
		select {
		case s.modeOverrideCh <- m:
			return nil
		default:
		}
		// replace a pending override that has not been picked up yet
		select {
		case <-s.modeOverrideCh:
		default:
		}
	}
}

// SetTimeOfDay pins the daypart of future sessions. An empty value returns
// to detecting it from the clock.
func (s *Scheduler) SetTimeOfDay(tod string) error {
	var t synth.TimeOfDay
	if tod != "" {
		var err error
		if t, err = synth.ParseTimeOfDay(tod); err != nil {
			return err
		}
	}
	s.mu.Lock()
	s.todOverride = t
	s.mu.Unlock()
	return nil
}

// Skip skips the session on air.
func (s *Scheduler) Skip() {
	s.player.Skip()
}

// SetAutoDJ enables or disables automatic mode transitions.
func (s *Scheduler) SetAutoDJ(enabled bool) {
	s.mu.Lock()
	s.autoDJ = enabled
	if enabled {
		s.resetDwell()
	}
	s.mu.Unlock()
}

// SetSessionMinutes changes the length of future sessions.
func (s *Scheduler) SetSessionMinutes(minutes int) error {
	if !slices.Contains(jobs.AllowedMinutes, minutes) {
		return apperr.Newf(apperr.CodeInvalidRequest, "minutes must be one of %v, got %d", jobs.AllowedMinutes, minutes).
			WithMetadata("field", "minutes")
	}
	s.mu.Lock()
	s.cfg.SessionMinutes = minutes
	s.mu.Unlock()
	logger.Info("session length changed", logger.Fields{"minutes": minutes})
	return nil
}

// Run starts the station loop. Blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	s.mu.Lock()
	s.resetDwell()
	mode := s.currentMode
	s.mu.Unlock()

	logger.Info("radio started", logger.Fields{"mode": mode, "buffer_ahead": s.cfg.BufferAhead})

	for ctx.Err() == nil {
		select {
		case m := <-s.modeOverrideCh:
			s.mu.Lock()
			s.currentMode = m
			s.resetDwell()
			s.mu.Unlock()
			logger.Info("mode set manually", logger.Fields{"mode": m})
		default:
		}

		s.mu.RLock()
		due := s.autoDJ && s.now().After(s.dwellEnd)
		s.mu.RUnlock()
		if due {
			s.transition()
		}

		if s.player.QueueSize() < s.cfg.BufferAhead {
			s.renderNext(ctx)
		} else {
			sleep(ctx, s.idle)
		}
	}
}

func (s *Scheduler) renderNext(ctx context.Context) {
	s.mu.RLock()
	mode := s.currentMode
	tod := s.timeOfDayLocked()
	minutes := s.cfg.SessionMinutes
	s.mu.RUnlock()

	req := jobs.Request{
		Mode:      string(mode),
		Minutes:   minutes,
		TimeOfDay: string(tod),
		Format:    jobs.FormatWAV,
	}
	id, err := s.gen.Submit(req)
	if err != nil {
		logger.Error("submit radio session", err, logger.Fields{"mode": string(mode)})
		sleep(ctx, s.retryDelay)
		return
	}

	job, err := s.gen.Wait(ctx, id, time.Second)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			logger.Error("radio session failed", err, logger.Fields{"job_id": id, "mode": string(mode)})
		}
		s.remove(id)
		return
	}

	name := SessionName(mode, tod, id)
	s.player.Enqueue(audio.TrackInfo{
		ID:        id,
		Mode:      string(mode),
		TimeOfDay: string(tod),
		Path:      job.WAVPath,
		Name:      name,
		Release:   func() { s.remove(id) },
	})

	s.mu.Lock()
	s.rendered++
	s.lastSession = name
	s.mu.Unlock()
	logger.Info("radio session queued", logger.Fields{"job_id": id, "name": name})
}

func (s *Scheduler) remove(id string) {
	if err := s.gen.Remove(id); err != nil {
		logger.Warn("remove radio session", logger.Fields{"job_id": id, "error": err.Error()})
	}
}

func (s *Scheduler) transition() {
	s.mu.Lock()
	defer s.mu.Unlock()

	options := Neighbors(s.currentMode, s.timeOfDayLocked())
	if len(options) == 0 {
		s.resetDwell()
		return
	}

	next := options[s.rng.IntN(len(options))]
	logger.Info("radio transition", logger.Fields{"from": s.currentMode, "to": next})
	s.currentMode = next
	s.resetDwell()
}

// timeOfDayLocked returns the pinned daypart or the one for the configured
// zone. Must be called with mu held.
func (s *Scheduler) timeOfDayLocked() synth.TimeOfDay {
	if s.todOverride != "" {
		return s.todOverride
	}
	tod, _ := synth.DetectTimeOfDay(s.now(), s.cfg.TimeZone)
	return tod
}

// resetDwell sets a new random dwell timer. Must be called with mu held.
func (s *Scheduler) resetDwell() {
	spread := s.cfg.DwellMax - s.cfg.DwellMin
	if spread <= 0 {
		spread = 1
	}
	dwell := s.cfg.DwellMin + s.rng.IntN(spread)
	s.dwellEnd = s.now().Add(time.Duration(dwell) * time.Second)
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
