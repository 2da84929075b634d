package batch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperr "github.com/satindergrewal/ambisynth/internal/errors"
	"github.com/satindergrewal/ambisynth/internal/jobs"
)

const planYAML = `
output_dir: ./sessions
defaults:
  format: mp3
  time_of_day: night
sessions:
  - mode: focus
    minutes: 25
    breaks: true
  - mode: sleep
    minutes: 50
    format: wav
  - mode: sleep
    minutes: 50
    format: wav
`

func TestParseAppliesDefaults(t *testing.T) {
	plan, err := Parse([]byte(planYAML))
	require.NoError(t, err)
	require.Len(t, plan.Sessions, 3)

	assert.Equal(t, jobs.Request{Mode: "focus", Minutes: 25, TimeOfDay: "night", Breaks: true, Format: jobs.FormatMP3}, plan.Sessions[0])
	assert.Equal(t, jobs.FormatWAV, plan.Sessions[1].Format)
	assert.Equal(t, "./sessions", plan.OutputDir)
}

func TestParseRejects(t *testing.T) {
	tests := map[string]string{
		"empty":         "output_dir: x\n",
		"unknown key":   "sessions:\n  - mode: focus\n    minutes: 5\n    tempo: 90\n",
		"bad minutes":   "sessions:\n  - mode: focus\n    minutes: 7\n",
		"bad mode":      "sessions:\n  - mode: disco\n    minutes: 5\n",
		"not yaml list": "sessions: focus\n",
	}
	for name, doc := range tests {
		_, err := Parse([]byte(doc))
		assert.Equal(t, apperr.CodeInvalidRequest, apperr.CodeOf(err), name)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

type fakeRunner struct {
	dir  string
	fail map[string]bool // by mode
	n    int
	jobs map[string]jobs.Job
}

func (f *fakeRunner) Submit(req jobs.Request) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}
	f.n++
	id := string(rune('a' + f.n))
	ext := req.Format
	if ext == "" {
		ext = jobs.FormatWAV
	}
	path := filepath.Join(f.dir, id+"."+string(ext))
	if err := os.WriteFile(path, []byte(req.Mode), 0o644); err != nil {
		return "", err
	}
	j := jobs.Job{ID: id, Request: req, FileName: "ambient_" + req.Mode + "." + string(ext), Status: jobs.StatusDone}
	if ext == jobs.FormatMP3 {
		j.MP3Path = path
	} else {
		j.WAVPath = path
	}
	f.jobs[id] = j
	return id, nil
}

func (f *fakeRunner) Wait(_ context.Context, id string, _ time.Duration) (jobs.Job, error) {
	j := f.jobs[id]
	if f.fail[j.Request.Mode] {
		return j, apperr.New(apperr.CodeEncodingFailed, "ffmpeg missing")
	}
	return j, nil
}

func TestRunCopiesResults(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out")
	plan := &Plan{
		OutputDir: out,
		Sessions: []jobs.Request{
			{Mode: "sleep", Minutes: 5},
			{Mode: "sleep", Minutes: 10},
			{Mode: "focus", Minutes: 5, Format: jobs.FormatMP3},
			{Mode: "calm", Minutes: 5},
		},
	}
	r := &fakeRunner{dir: t.TempDir(), fail: map[string]bool{"focus": true}, jobs: map[string]jobs.Job{}}

	results, err := Run(context.Background(), r, plan)
	require.NoError(t, err)
	require.Len(t, results, 4)

	assert.Equal(t, filepath.Join(out, "ambient_sleep.wav"), results[0].Path)
	assert.Equal(t, filepath.Join(out, "ambient_sleep_2.wav"), results[1].Path)
	assert.Error(t, results[2].Err)
	assert.Empty(t, results[2].Path)
	assert.NoError(t, results[3].Err)

	data, err := os.ReadFile(results[3].Path)
	require.NoError(t, err)
	assert.Equal(t, "calm", string(data))
}

func TestUniqueName(t *testing.T) {
	used := map[string]int{}
	assert.Equal(t, "a.wav", uniqueName("a.wav", used))
	assert.Equal(t, "a_2.wav", uniqueName("a.wav", used))
	assert.Equal(t, "a_3.wav", uniqueName("a.wav", used))
	assert.Equal(t, "b.mp3", uniqueName("b.mp3", used))
}
