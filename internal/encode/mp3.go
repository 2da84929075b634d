package encode

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	apperr "github.com/satindergrewal/ambisynth/internal/errors"
)

// DefaultBitrate is the MP3 bitrate passed to ffmpeg.
const DefaultBitrate = "128k"

// Transcoder converts WAV files to MP3 with an external ffmpeg.
type Transcoder struct {
	FFmpegPath string
	Bitrate    string
}

// NewTranscoder returns a Transcoder with defaults filled in.
func NewTranscoder(ffmpegPath, bitrate string) *Transcoder {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if bitrate == "" {
		bitrate = DefaultBitrate
	}
	return &Transcoder{FFmpegPath: ffmpegPath, Bitrate: bitrate}
}

// Available reports whether the ffmpeg binary can be found.
func (t *Transcoder) Available() bool {
	_, err := exec.LookPath(t.FFmpegPath)
	return err == nil
}

// ToMP3 encodes wavPath into mp3Path. The WAV is left in place so a failed
// encode can be retried without re-rendering; a partial MP3 is removed.
func (t *Transcoder) ToMP3(ctx context.Context, wavPath, mp3Path string) error {
	bin, err := exec.LookPath(t.FFmpegPath)
	if err != nil {
		return apperr.Wrap(err, apperr.CodeEncodingFailed, "ffmpeg not found").
			WithMetadata("ffmpeg", t.FFmpegPath)
	}

	cmd := exec.CommandContext(ctx, bin,
		"-y",
		"-loglevel", "error",
		"-i", wavPath,
		"-codec:a", "libmp3lame",
		"-b:a", t.Bitrate,
		mp3Path,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		os.Remove(mp3Path)
		return apperr.Wrapf(err, apperr.CodeEncodingFailed, "ffmpeg mp3 %s", filepath.Base(mp3Path)).
			WithMetadata("stderr", strings.TrimSpace(stderr.String()))
	}
	return nil
}
