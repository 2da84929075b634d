package stream

import (
	"context"
	"io"
	"net/http"
	"os/exec"

	"github.com/satindergrewal/ambisynth/internal/audio"
	"github.com/satindergrewal/ambisynth/internal/logger"
)

// StationName is announced to HTTP listeners.
const StationName = "ambisynth radio"

const defaultStreamBitrate = "192k"

// HTTPHandler serves a chunked MP3 stream. Each connection runs its own
// ffmpeg process encoding PCM to MP3 in real time.
type HTTPHandler struct {
	broadcaster *Broadcaster
	ffmpegPath  string
	bitrate     string
}

// NewHTTPHandler creates an HTTP stream handler. Empty ffmpegPath and
// bitrate select "ffmpeg" on PATH and 192k.
func NewHTTPHandler(b *Broadcaster, ffmpegPath, bitrate string) *HTTPHandler {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if bitrate == "" {
		bitrate = defaultStreamBitrate
	}
	return &HTTPHandler{broadcaster: b, ffmpegPath: ffmpegPath, bitrate: bitrate}
}

func (h *HTTPHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}
	bin, err := exec.LookPath(h.ffmpegPath)
	if err != nil {
		http.Error(w, "mp3 stream unavailable", http.StatusServiceUnavailable)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	cmd := exec.CommandContext(ctx, bin,
		"-f", "s16le",
		"-ar", "48000",
		"-ac", "2",
		"-i", "pipe:0",
		"-codec:a", "libmp3lame",
		"-b:a", h.bitrate,
		"-f", "mp3",
		"-fflags", "nobuffer",
		"-flush_packets", "1",
		"-loglevel", "error",
		"pipe:1",
	)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		logger.Error("http stream stdin", err, nil)
		return
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		logger.Error("http stream stdout", err, nil)
		return
	}
	if err := cmd.Start(); err != nil {
		logger.Error("http stream ffmpeg start", err, nil)
		http.Error(w, "mp3 stream unavailable", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Cache-Control", "no-cache, no-store")
	w.Header().Set("Connection", "close")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("ICY-Name", StationName)

	listener := h.broadcaster.Subscribe()
	defer h.broadcaster.Unsubscribe(listener)

	logger.Info("http listener connected", logger.Fields{"listeners": h.broadcaster.ListenerCount(), "remote": r.RemoteAddr})
	defer func() {
		logger.Info("http listener disconnected", logger.Fields{"remote": r.RemoteAddr, "dropped": listener.Dropped()})
	}()

	go func() {
		defer stdin.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case <-listener.Done():
				return
			case frame := <-listener.C:
				if _, err := stdin.Write(audio.SamplesToBytes(frame)); err != nil {
					return
				}
			}
		}
	}()

	buf := make([]byte, 4096)
	for {
		n, err := stdout.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				break
			}
			flusher.Flush()
		}
		if err != nil {
			if err != io.EOF {
				logger.Warn("http stream read", logger.Fields{"error": err.Error()})
			}
			break
		}
	}

	cancel()
	_ = cmd.Wait()
}
