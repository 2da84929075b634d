// Package jobs runs session renders in the background. A Manager queues
// requests, renders them on a pool of workers, writes the WAV, optionally
// transcodes it to MP3 and reports progress to subscribers.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/satindergrewal/ambisynth/internal/analysis"
	"github.com/satindergrewal/ambisynth/internal/encode"
	apperr "github.com/satindergrewal/ambisynth/internal/errors"
	"github.com/satindergrewal/ambisynth/internal/logger"
	"github.com/satindergrewal/ambisynth/internal/synth"
)

// Status is the lifecycle state of a job.
type Status string

const (
	StatusQueued  Status = "queued"
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	StatusFailed  Status = "failed"
)

// Terminal reports whether no further events follow s.
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusFailed
}

// Stage is the step a running job is in.
type Stage string

const (
	StageSynthesizing Stage = "synthesizing"
	StageWritingWAV   Stage = "writing wav"
	StageTranscoding  Stage = "transcoding"
)

const (
	queueSize      = 64
	subscriberSize = 16
)

// Job is a snapshot of one render order.
type Job struct {
	ID        string           `json:"id"`
	Request   Request          `json:"request"`
	TimeOfDay synth.TimeOfDay  `json:"time_of_day"`
	Status    Status           `json:"status"`
	Stage     Stage            `json:"stage,omitempty"`
	Scale     string           `json:"scale,omitempty"`
	Phases    int              `json:"phases,omitempty"`
	Report    *analysis.Report `json:"report,omitempty"`
	WAVPath   string           `json:"-"`
	MP3Path   string           `json:"-"`
	FileName  string           `json:"file_name,omitempty"`
	Error     string           `json:"error,omitempty"`
	ErrorCode string           `json:"error_code,omitempty"`
	Created   time.Time        `json:"created"`
	Finished  time.Time        `json:"finished,omitempty"`

	err error
}

// Err returns the failure of a failed job.
func (j Job) Err() error { return j.err }

// Path is the file to deliver for a finished job.
func (j Job) Path() string {
	if j.Request.format() == FormatMP3 {
		return j.MP3Path
	}
	return j.WAVPath
}

// Event is a progress notification for one job.
type Event struct {
	JobID  string    `json:"job_id"`
	Status Status    `json:"status"`
	Stage  Stage     `json:"stage,omitempty"`
	Error  string    `json:"error,omitempty"`
	Time   time.Time `json:"time"`
}

// Encoder converts a WAV file to MP3.
type Encoder interface {
	ToMP3(ctx context.Context, wavPath, mp3Path string) error
}

// Renderer synthesizes one session. Implementations need not be safe for
// concurrent use; every worker gets its own.
type Renderer interface {
	Render(req synth.Request) (*synth.Track, error)
}

// Config holds manager settings.
type Config struct {
	OutputDir     string
	Workers       int
	MaxMinutes    int
	TimeZone      string
	EncodeRetries int
	RetryDelay    time.Duration // base backoff between encode attempts
}

// Manager owns the job table and the worker pool.
type Manager struct {
	cfg   Config
	enc   Encoder
	queue chan string

	newRenderer func() Renderer
	now         func() time.Time

	mu   sync.RWMutex
	jobs map[string]*Job
	subs map[string]map[chan Event]struct{}
}

// NewManager creates a job manager. enc may be nil when only WAV output is
// served.
func NewManager(cfg Config, enc Encoder) *Manager {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	maxSeconds := float64(cfg.MaxMinutes * 60)
	return &Manager{
		cfg:   cfg,
		enc:   enc,
		queue: make(chan string, queueSize),
		newRenderer: func() Renderer {
			return synth.NewEngine(nil, maxSeconds)
		},
		now:  time.Now,
		jobs: make(map[string]*Job),
		subs: make(map[string]map[chan Event]struct{}),
	}
}

// SetRendererFactory replaces the synth engine used by workers. Call it
// before Run.
func (m *Manager) SetRendererFactory(fn func() Renderer) {
	m.newRenderer = fn
}

// Run starts the worker pool. Blocks until ctx is cancelled and in-flight
// renders have finished.
func (m *Manager) Run(ctx context.Context) error {
	if err := os.MkdirAll(m.cfg.OutputDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < m.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r := m.newRenderer()
			for {
				select {
				case <-ctx.Done():
					return
				case id := <-m.queue:
					m.process(ctx, r, id)
				}
			}
		}()
	}
	logger.Info("job workers started", logger.Fields{"workers": m.cfg.Workers, "dir": m.cfg.OutputDir})
	wg.Wait()
	return nil
}

// Submit validates req and queues it. The returned id identifies the job.
func (m *Manager) Submit(req Request) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}
	sreq := req.synthRequest(m.now(), m.cfg.TimeZone)

	job := &Job{
		ID:        uuid.NewString(),
		Request:   req,
		TimeOfDay: sreq.TimeOfDay,
		Status:    StatusQueued,
		FileName:  FileName(sreq, req.format()),
		Created:   m.now(),
	}

	m.mu.Lock()
	m.jobs[job.ID] = job
	m.mu.Unlock()

	select {
	case m.queue <- job.ID:
	default:
		m.mu.Lock()
		delete(m.jobs, job.ID)
		m.mu.Unlock()
		return "", apperr.New(apperr.CodeResourceExhausted, "render queue is full")
	}

	logger.Info("session queued", logger.Fields{
		"job_id": job.ID, "mode": req.Mode, "minutes": req.Minutes, "time_of_day": string(sreq.TimeOfDay),
	})
	m.publish(job)
	return job.ID, nil
}

// Get returns a snapshot of job id.
func (m *Manager) Get(id string) (Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	j, ok := m.jobs[id]
	if !ok {
		return Job{}, apperr.Newf(apperr.CodeNotFound, "session %s not found", id)
	}
	return *j, nil
}

// List returns snapshots of every job, oldest first.
func (m *Manager) List() []Job {
	m.mu.RLock()
	out := make([]Job, 0, len(m.jobs))
	for _, j := range m.jobs {
		out = append(out, *j)
	}
	m.mu.RUnlock()
	sort.Slice(out, func(a, b int) bool { return out[a].Created.Before(out[b].Created) })
	return out
}

// Wait polls until job id is finished. A failed job returns its error.
func (m *Manager) Wait(ctx context.Context, id string, interval time.Duration) (Job, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		j, err := m.Get(id)
		if err != nil {
			return Job{}, err
		}
		switch j.Status {
		case StatusDone:
			return j, nil
		case StatusFailed:
			return j, j.err
		}
		select {
		case <-ctx.Done():
			return j, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Reencode retries the MP3 step from the WAV kept on disk.
func (m *Manager) Reencode(ctx context.Context, id string) error {
	m.mu.Lock()
	j, ok := m.jobs[id]
	if !ok {
		m.mu.Unlock()
		return apperr.Newf(apperr.CodeNotFound, "session %s not found", id)
	}
	if !j.Status.Terminal() || j.WAVPath == "" {
		m.mu.Unlock()
		return apperr.Newf(apperr.CodeInvalidRequest, "session %s has no rendered audio yet", id)
	}
	j.Request.Format = FormatMP3
	j.FileName = FileName(j.request(), FormatMP3)
	j.Status, j.Stage, j.Error, j.ErrorCode, j.err = StatusRunning, StageTranscoding, "", "", nil
	m.mu.Unlock()

	m.publishID(id)
	if err := m.transcode(ctx, id); err != nil {
		m.fail(id, err)
		return err
	}
	m.finish(id)
	return nil
}

// Remove drops job id and deletes its files.
func (m *Manager) Remove(id string) error {
	m.mu.Lock()
	j, ok := m.jobs[id]
	if ok {
		delete(m.jobs, id)
	}
	m.mu.Unlock()
	if !ok {
		return apperr.Newf(apperr.CodeNotFound, "session %s not found", id)
	}
	if j.WAVPath == "" {
		return nil
	}
	if err := os.RemoveAll(filepath.Dir(j.WAVPath)); err != nil {
		return fmt.Errorf("remove session %s: %w", id, err)
	}
	return nil
}

// Subscribe returns a channel of progress events for job id. The channel is
// closed after the terminal event or on Unsubscribe. Slow readers miss
// intermediate events.
func (m *Manager) Subscribe(id string) (<-chan Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return nil, apperr.Newf(apperr.CodeNotFound, "session %s not found", id)
	}
	ch := make(chan Event, subscriberSize)
	ch <- eventOf(j)
	if j.Status.Terminal() {
		close(ch)
		return ch, nil
	}
	if m.subs[id] == nil {
		m.subs[id] = make(map[chan Event]struct{})
	}
	m.subs[id][ch] = struct{}{}
	return ch, nil
}

// Unsubscribe stops delivery to ch and closes it.
func (m *Manager) Unsubscribe(id string, ch <-chan Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for c := range m.subs[id] {
		if c == ch {
			delete(m.subs[id], c)
			close(c)
		}
	}
	if len(m.subs[id]) == 0 {
		delete(m.subs, id)
	}
}

func (m *Manager) process(ctx context.Context, r Renderer, id string) {
	j, ok := m.update(id, func(j *Job) {
		j.Status, j.Stage = StatusRunning, StageSynthesizing
	})
	if !ok {
		return
	}

	sreq := j.request()
	start := m.now()
	track, err := r.Render(sreq)
	if err != nil {
		m.fail(id, err)
		return
	}
	report := analysis.Analyze(track.Samples, track.SampleRate)
	logger.Info("session rendered", logger.Fields{
		"job_id":  id,
		"mode":    string(sreq.Mode),
		"scale":   track.Scale.Name(),
		"phases":  len(track.Phases),
		"took":    m.now().Sub(start),
		"summary": report.String(),
	})

	dir := filepath.Join(m.cfg.OutputDir, id)
	wavPath := filepath.Join(dir, FileName(sreq, FormatWAV))
	m.update(id, func(j *Job) {
		j.Stage = StageWritingWAV
		j.Scale = track.Scale.Name()
		j.Phases = len(track.Phases)
		j.Report = &report
	})
	if err := os.MkdirAll(dir, 0o755); err != nil {
		m.fail(id, apperr.Wrap(err, apperr.CodeInternal, "create session dir"))
		return
	}
	if err := encode.WriteWAVFile(wavPath, track.Samples, track.SampleRate); err != nil {
		m.fail(id, apperr.Wrap(err, apperr.CodeInternal, "write wav"))
		return
	}
	track = nil // release the buffer before transcoding
	m.update(id, func(j *Job) { j.WAVPath = wavPath })

	if j.Request.format() == FormatMP3 {
		m.update(id, func(j *Job) { j.Stage = StageTranscoding })
		if err := m.transcode(ctx, id); err != nil {
			m.fail(id, err)
			return
		}
	}
	m.finish(id)
}

func (m *Manager) transcode(ctx context.Context, id string) error {
	if m.enc == nil {
		return apperr.New(apperr.CodeEncodingFailed, "mp3 encoding is not configured")
	}
	j, err := m.Get(id)
	if err != nil {
		return err
	}
	mp3Path := filepath.Join(filepath.Dir(j.WAVPath), FileName(j.request(), FormatMP3))

	cfg := RetryConfig{MaxRetries: m.cfg.EncodeRetries, BaseDelay: m.cfg.RetryDelay}
	err = Retry(ctx, cfg, func() error {
		err := m.enc.ToMP3(ctx, j.WAVPath, mp3Path)
		if err != nil {
			logger.Warn("mp3 encode failed", logger.Fields{"job_id": id, "error": err.Error()})
		}
		return err
	})
	if err != nil {
		return err
	}
	m.update(id, func(j *Job) { j.MP3Path = mp3Path })
	return nil
}

func (m *Manager) finish(id string) {
	j, ok := m.update(id, func(j *Job) {
		j.Status, j.Stage = StatusDone, ""
		j.Finished = m.now()
	})
	if ok {
		logger.Info("session ready", logger.Fields{"job_id": id, "file": j.FileName})
	}
}

func (m *Manager) fail(id string, err error) {
	code := apperr.CodeOf(err)
	if code == apperr.CodeUnknown {
		code = apperr.CodeInternal
	}
	j, ok := m.update(id, func(j *Job) {
		j.Status = StatusFailed
		j.Error = err.Error()
		j.ErrorCode = code.String()
		j.Finished = m.now()
		j.err = err
	})
	if !ok {
		return
	}
	if errors.Is(err, context.Canceled) {
		logger.Warn("session cancelled", logger.Fields{"job_id": id})
		return
	}
	logger.Error("session failed", err, logger.Fields{"job_id": id, "mode": j.Request.Mode, "stage": string(j.Stage)})
}

// update applies fn to job id under the lock, publishes the result and
// returns a snapshot.
func (m *Manager) update(id string, fn func(*Job)) (Job, bool) {
	m.mu.Lock()
	j, ok := m.jobs[id]
	if !ok {
		m.mu.Unlock()
		return Job{}, false
	}
	fn(j)
	snap := *j
	m.publishLocked(j)
	m.mu.Unlock()
	return snap, true
}

func (m *Manager) publish(j *Job) {
	m.mu.Lock()
	m.publishLocked(j)
	m.mu.Unlock()
}

func (m *Manager) publishID(id string) {
	m.mu.Lock()
	if j, ok := m.jobs[id]; ok {
		m.publishLocked(j)
	}
	m.mu.Unlock()
}

// publishLocked fans an event out without blocking. Must be called with mu
// held.
func (m *Manager) publishLocked(j *Job) {
	ev := eventOf(j)
	terminal := j.Status.Terminal()
	for ch := range m.subs[j.ID] {
		select {
		case ch <- ev:
		default:
			if terminal {
				// make room so the final event is never lost
				<-ch
				ch <- ev
			}
		}
		if terminal {
			close(ch)
		}
	}
	if terminal {
		delete(m.subs, j.ID)
	}
}

func eventOf(j *Job) Event {
	return Event{JobID: j.ID, Status: j.Status, Stage: j.Stage, Error: j.Error, Time: time.Now()}
}

func (j *Job) request() synth.Request {
	r := j.Request.synthRequest(j.Created, "")
	r.TimeOfDay = j.TimeOfDay
	return r
}
