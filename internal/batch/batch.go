// Package batch renders a list of sessions described in a YAML plan.
//
//	output_dir: ./sessions
//	defaults:
//	  format: mp3
//	sessions:
//	  - mode: focus
//	    minutes: 25
//	    breaks: true
//	  - mode: sleep
//	    minutes: 50
//	    time_of_day: night
package batch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	apperr "github.com/satindergrewal/ambisynth/internal/errors"
	"github.com/satindergrewal/ambisynth/internal/jobs"
	"github.com/satindergrewal/ambisynth/internal/logger"
)

// Plan is a batch of sessions sharing an output directory.
type Plan struct {
	OutputDir string         `yaml:"output_dir"`
	Defaults  jobs.Request   `yaml:"defaults"`
	Sessions  []jobs.Request `yaml:"sessions"`
}

// Runner queues and awaits renders. *jobs.Manager satisfies it.
type Runner interface {
	Submit(req jobs.Request) (string, error)
	Wait(ctx context.Context, id string, interval time.Duration) (jobs.Job, error)
}

// Result is the outcome of one planned session.
type Result struct {
	Request jobs.Request
	JobID   string
	Path    string // copy in the plan's output dir
	Err     error
}

// Load reads and validates a plan. Unknown keys are rejected.
func Load(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan: %w", err)
	}
	return Parse(data)
}

// Parse decodes a plan from YAML, applies defaults to every session and
// validates the result.
func Parse(data []byte) (*Plan, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var plan Plan
	if err := dec.Decode(&plan); err != nil && err != io.EOF {
		return nil, apperr.Wrap(err, apperr.CodeInvalidRequest, "parse plan")
	}
	if len(plan.Sessions) == 0 {
		return nil, apperr.New(apperr.CodeInvalidRequest, "plan has no sessions")
	}
	if plan.OutputDir == "" {
		plan.OutputDir = "."
	}

	var problems []string
	for i := range plan.Sessions {
		plan.Sessions[i] = withDefaults(plan.Sessions[i], plan.Defaults)
		if err := plan.Sessions[i].Validate(); err != nil {
			problems = append(problems, fmt.Sprintf("session %d: %v", i+1, err))
		}
	}
	if len(problems) > 0 {
		return nil, apperr.New(apperr.CodeInvalidRequest, strings.Join(problems, "; "))
	}
	return &plan, nil
}

func withDefaults(r, d jobs.Request) jobs.Request {
	if r.Mode == "" {
		r.Mode = d.Mode
	}
	if r.Minutes == 0 {
		r.Minutes = d.Minutes
	}
	if r.TimeOfDay == "" {
		r.TimeOfDay = d.TimeOfDay
	}
	if r.Format == "" {
		r.Format = d.Format
	}
	r.Breaks = r.Breaks || d.Breaks
	return r
}

// Run submits every session, waits for all of them and copies finished
// files into the plan's output directory. It returns one Result per session
// in plan order; individual failures do not stop the batch.
func Run(ctx context.Context, r Runner, plan *Plan) ([]Result, error) {
	if err := os.MkdirAll(plan.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	results := make([]Result, len(plan.Sessions))
	for i, req := range plan.Sessions {
		results[i].Request = req
		id, err := r.Submit(req)
		if err != nil {
			results[i].Err = err
			continue
		}
		results[i].JobID = id
	}

	used := make(map[string]int)
	for i := range results {
		res := &results[i]
		if res.Err != nil {
			continue
		}
		j, err := r.Wait(ctx, res.JobID, 500*time.Millisecond)
		if err != nil {
			res.Err = err
			logger.Error("batch session failed", err, logger.Fields{"job_id": res.JobID, "index": i + 1})
			continue
		}
		dst := filepath.Join(plan.OutputDir, uniqueName(j.FileName, used))
		if err := copyFile(j.Path(), dst); err != nil {
			res.Err = err
			continue
		}
		res.Path = dst
		logger.Info("batch session written", logger.Fields{"index": i + 1, "path": dst})
	}
	return results, ctx.Err()
}

// uniqueName appends _2, _3 ... to repeated names.
func uniqueName(name string, used map[string]int) string {
	used[name]++
	if n := used[name]; n > 1 {
		ext := filepath.Ext(name)
		return fmt.Sprintf("%s_%d%s", strings.TrimSuffix(name, ext), n, ext)
	}
	return name
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copy %s: %w", dst, err)
	}
	return out.Close()
}
