package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/satindergrewal/ambisynth/internal/audio"
	"github.com/satindergrewal/ambisynth/internal/config"
	"github.com/satindergrewal/ambisynth/internal/encode"
	apperr "github.com/satindergrewal/ambisynth/internal/errors"
	"github.com/satindergrewal/ambisynth/internal/jobs"
	"github.com/satindergrewal/ambisynth/internal/logger"
	"github.com/satindergrewal/ambisynth/internal/radio"
	"github.com/satindergrewal/ambisynth/internal/stream"
	"github.com/satindergrewal/ambisynth/internal/synth"
)

// station is the radio side of the service.
type station struct {
	pipeline    *audio.Pipeline
	broadcaster *stream.Broadcaster
	webrtc      *stream.WebRTCHandler
	sched       *radio.Scheduler
}

type server struct {
	cfg     config.Config
	mgr     *jobs.Manager
	station *station // nil when the radio is disabled
}

func serve(ctx context.Context, cfg config.Config) error {
	tc := encode.NewTranscoder(cfg.FFmpegPath, cfg.MP3Bitrate)
	if !tc.Available() {
		logger.Warn("ffmpeg not found, mp3 output and the http stream are unavailable", logger.Fields{"path": cfg.FFmpegPath})
	}

	mgr := jobs.NewManager(jobsConfig(cfg), tc)
	go func() {
		if err := mgr.Run(ctx); err != nil {
			logger.Error("job workers stopped", err, nil)
		}
	}()

	s := &server{cfg: cfg, mgr: mgr}
	if cfg.RadioEnabled {
		s.station = startStation(ctx, cfg)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: s.routes(), ReadHeaderTimeout: 10 * time.Second}

	go func() {
		<-ctx.Done()
		logger.Info("shutting down", nil)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("ambisynth listening", logger.Fields{"addr": addr, "radio": cfg.RadioEnabled, "version": version})
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// startStation wires the radio: its own single-worker job manager renders
// WAV sessions into a subdirectory, the pipeline paces them and the
// broadcaster fans frames out to listeners.
func startStation(ctx context.Context, cfg config.Config) *station {
	rcfg := jobsConfig(cfg)
	rcfg.OutputDir = filepath.Join(cfg.OutputDir, "radio")
	rcfg.Workers = 1
	gen := jobs.NewManager(rcfg, nil)
	go func() {
		if err := gen.Run(ctx); err != nil {
			logger.Error("radio workers stopped", err, nil)
		}
	}()

	pipeline := audio.NewPipeline(cfg.CrossfadeDuration)
	go pipeline.Run(ctx)

	broadcaster := stream.NewBroadcaster()
	go broadcaster.Run(ctx, pipeline.Frames())

	sched := radio.NewScheduler(gen, pipeline, radio.SchedulerConfig{
		StartingMode:   cfg.StartingMode,
		SessionMinutes: cfg.SessionMinutes,
		BufferAhead:    cfg.BufferAhead,
		DwellMin:       cfg.DwellMin,
		DwellMax:       cfg.DwellMax,
		TimeZone:       cfg.TimeZone,
	})
	go sched.Run(ctx)

	return &station{
		pipeline:    pipeline,
		broadcaster: broadcaster,
		webrtc:      stream.NewWebRTCHandler(broadcaster),
		sched:       sched,
	}
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "version": version})
	})
	mux.HandleFunc("GET /api/modes", s.handleModes)

	mux.HandleFunc("POST /api/sessions", s.handleCreateSession)
	mux.HandleFunc("GET /api/sessions", s.handleListSessions)
	mux.HandleFunc("GET /api/sessions/{id}", s.handleGetSession)
	mux.HandleFunc("DELETE /api/sessions/{id}", s.handleDeleteSession)
	mux.HandleFunc("GET /api/sessions/{id}/audio", s.handleSessionAudio)
	mux.HandleFunc("POST /api/sessions/{id}/encode", s.handleReencode)
	mux.HandleFunc("GET /api/sessions/{id}/events", s.handleSessionEvents)

	if st := s.station; st != nil {
		mux.Handle("/stream", stream.NewHTTPHandler(st.broadcaster, s.cfg.FFmpegPath, ""))
		mux.Handle("/offer", st.webrtc)
		mux.HandleFunc("GET /api/status", s.handleStatus)
		mux.HandleFunc("POST /api/mode", s.handleSetMode)
		mux.HandleFunc("POST /api/skip", s.handleSkip)
		mux.HandleFunc("POST /api/autodj", s.handleAutoDJ)
		mux.HandleFunc("POST /api/config", s.handleRadioConfig)
	} else {
		off := func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "radio disabled", http.StatusServiceUnavailable)
		}
		for _, p := range []string{"/stream", "/offer", "/api/status", "/api/mode", "/api/skip", "/api/autodj", "/api/config"} {
			mux.HandleFunc(p, off)
		}
	}

	return cors(mux)
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		if r.Method == http.MethodOptions && r.URL.Path != "/offer" {
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status := apperr.HTTPStatus(err)
	body := map[string]any{"error": err.Error(), "code": apperr.CodeOf(err).String()}
	var ae *apperr.AppError
	if errors.As(err, &ae) {
		body["error"] = ae.Message
		if len(ae.Metadata) > 0 {
			body["metadata"] = ae.Metadata
		}
	}
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", err, nil)
	}
	writeJSON(w, status, body)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return apperr.Wrap(err, apperr.CodeInvalidRequest, "invalid JSON body")
	}
	return nil
}

// --- Sessions ---

type modeInfo struct {
	Name      string       `json:"name"`
	Subdued   bool         `json:"subdued"`
	Neighbors []synth.Mode `json:"neighbors"`
}

func (s *server) handleModes(w http.ResponseWriter, r *http.Request) {
	modes := make([]modeInfo, 0, len(synth.Modes))
	for _, m := range synth.Modes {
		info := modeInfo{Name: string(m), Subdued: m.Subdued()}
		if n, ok := radio.MoodGraph[m]; ok {
			info.Neighbors = n.Adjacent
		}
		modes = append(modes, info)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"modes":        modes,
		"minutes":      jobs.AllowedMinutes,
		"times_of_day": synth.TimesOfDay,
		"formats":      []jobs.Format{jobs.FormatWAV, jobs.FormatMP3},
	})
}

func (s *server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req jobs.Request
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	id, err := s.mgr.Submit(req)
	if err != nil {
		writeError(w, err)
		return
	}
	j, err := s.mgr.Get(id)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Location", "/api/sessions/"+id)
	writeJSON(w, http.StatusAccepted, j)
}

func (s *server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.mgr.List())
}

func (s *server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	j, err := s.mgr.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, j)
}

func (s *server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.mgr.Remove(r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleSessionAudio(w http.ResponseWriter, r *http.Request) {
	j, err := s.mgr.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if j.Status != jobs.StatusDone || j.Path() == "" {
		writeJSON(w, http.StatusConflict, map[string]any{"error": "session has no audio yet", "status": j.Status})
		return
	}
	ctype := "audio/wav"
	if filepath.Ext(j.Path()) == ".mp3" {
		ctype = "audio/mpeg"
	}
	w.Header().Set("Content-Type", ctype)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, j.FileName))
	http.ServeFile(w, r, j.Path())
}

func (s *server) handleReencode(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.mgr.Reencode(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	j, err := s.mgr.Get(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, j)
}

// handleSessionEvents streams progress events as JSON websocket messages
// until the job reaches a terminal status.
func (s *server) handleSessionEvents(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	events, err := s.mgr.Subscribe(id)
	if err != nil {
		writeError(w, err)
		return
	}
	defer s.mgr.Unsubscribe(id, events)

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		logger.Warn("websocket accept", logger.Fields{"job_id": id, "error": err.Error()})
		return
	}
	defer func() { _ = conn.CloseNow() }()

	// the client never sends; CloseRead notices when it goes away
	ctx := conn.CloseRead(r.Context())
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				_ = conn.Close(websocket.StatusNormalClosure, "done")
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := wsjson.Write(writeCtx, conn, ev)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

// --- Radio ---

func (s *server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st := s.station
	track, pos, dur := st.pipeline.Status()
	writeJSON(w, http.StatusOK, map[string]any{
		"radio":            st.sched.Status(),
		"session":          track,
		"position":         pos.Seconds(),
		"duration":         dur.Seconds(),
		"played":           st.pipeline.Played(),
		"broadcast":        st.broadcaster.Stats(),
		"webrtc_listeners": st.webrtc.PeerCount(),
	})
}

func (s *server) handleSetMode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mode      string  `json:"mode"`
		TimeOfDay *string `json:"time_of_day"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.TimeOfDay != nil {
		if err := s.station.sched.SetTimeOfDay(*req.TimeOfDay); err != nil {
			writeError(w, err)
			return
		}
	}
	if req.Mode != "" {
		if err := s.station.sched.SetMode(req.Mode); err != nil {
			writeError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "mode": req.Mode})
}

func (s *server) handleSkip(w http.ResponseWriter, r *http.Request) {
	s.station.sched.Skip()
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *server) handleAutoDJ(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	s.station.sched.SetAutoDJ(req.Enabled)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "auto_dj": req.Enabled})
}

func (s *server) handleRadioConfig(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionMinutes int `json:"session_minutes"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := s.station.sched.SetSessionMinutes(req.SessionMinutes); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "session_minutes": req.SessionMinutes})
}
