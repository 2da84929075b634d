package logger

import (
	"bytes"
	"errors"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev, flags := log.Writer(), log.Flags()
	log.SetOutput(&buf)
	log.SetFlags(0)
	t.Cleanup(func() {
		log.SetOutput(prev)
		log.SetFlags(flags)
	})
	return &buf
}

func TestFormatFieldsSorted(t *testing.T) {
	got := formatFields(Fields{"mode": "sleep", "minutes": 5, "peak": 0.91234, "took": 1500 * time.Microsecond})
	assert.Equal(t, "{minutes=5, mode=sleep, peak=0.91, took=2ms}", got)
	assert.Equal(t, "", formatFields(nil))
}

func TestLevels(t *testing.T) {
	buf := captureLog(t)

	Info("session rendered", Fields{"mode": "calm"})
	Warn("encode retry", nil)
	Debug("phase", Fields{"index": 2})
	Error("encode failed", errors.New("exit status 1"), Fields{"job_id": "abc"})

	out := buf.String()
	assert.Contains(t, out, "[INFO] session rendered {mode=calm}")
	assert.Contains(t, out, "[WARN] encode retry")
	assert.Contains(t, out, "[DEBUG] phase {index=2}")
	assert.Contains(t, out, "[ERROR] encode failed: exit status 1 {job_id=abc}")
}

func TestInitWithoutDSN(t *testing.T) {
	captureLog(t)
	flush, err := Init("", "development", "dev")
	require.NoError(t, err)
	flush()
}
