package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder(t *testing.T) {
	r := NewRecorder()
	r.ObserveTrial("full", false, 20*time.Millisecond)
	r.ObserveTrial("full", true, 5*time.Millisecond)
	r.ObserveTrial("full", false, 10*time.Millisecond)
	r.SetBestScore("full", 0.81)
	r.ObserveStage("full", "train", 2*time.Second, nil)
	r.ObserveStage("full", "predict", time.Second, errors.New("boom"))

	assert.Equal(t, 2.0, testutil.ToFloat64(r.trials.WithLabelValues("full", "complete")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.trials.WithLabelValues("full", "failed")))
	assert.Equal(t, 0.81, testutil.ToFloat64(r.bestScore.WithLabelValues("full")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.stageRuns.WithLabelValues("full", "predict", "error")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.stageDuration.WithLabelValues("full", "train")))
}

func TestWriteTextfile(t *testing.T) {
	r := NewRecorder()
	r.SetRows("iot", "isolate", 99)

	path := filepath.Join(t.TempDir(), "textfile", "catnat.prom")
	require.NoError(t, r.WriteTextfile(path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(raw), `catnat_stage_rows{profile="iot",stage="isolate"} 99`))
}

func TestNilRecorder(t *testing.T) {
	var r *Recorder
	r.ObserveTrial("full", false, time.Second)
	r.SetBestScore("full", 1)
	r.ObserveStage("full", "clean", time.Second, nil)
	assert.NoError(t, r.WriteTextfile("/nonexistent/catnat.prom"))
	assert.Nil(t, r.Registry())
}
