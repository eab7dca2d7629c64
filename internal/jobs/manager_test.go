package jobs

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobLifecycle(t *testing.T) {
	m := NewManager()
	job, ctx := m.Start(context.Background(), "clean", "full", "clean and reduce")
	assert.Equal(t, JobRunning, job.GetStatus())
	assert.Equal(t, m.RunID(), job.RunID)

	job.Logf("wrote %d rows", 10)
	job.SetProgress(0.5)
	assert.Equal(t, 0.5, job.GetProgress())

	job.Finish(nil)
	assert.Equal(t, JobCompleted, job.GetStatus())
	assert.Equal(t, 1.0, job.GetProgress())
	assert.Error(t, ctx.Err())
	require.Len(t, job.GetLogs(), 1)
	assert.Contains(t, job.GetLogs()[0], "wrote 10 rows")
}

func TestJobFailureAndSummary(t *testing.T) {
	m := NewManager()
	clean, _ := m.Start(context.Background(), "clean", "full", "")
	clean.Finish(nil)
	train, _ := m.Start(context.Background(), "train", "full", "")
	train.Finish(errors.New("no completed trials"))

	summary := m.Summary()
	require.Len(t, summary, 2)
	assert.Equal(t, "clean", summary[0].Stage)
	assert.Equal(t, JobCompleted, summary[0].Status)
	assert.Equal(t, JobFailed, summary[1].Status)
	assert.Equal(t, "no completed trials", summary[1].Error)
}

func TestFinishWithCanceledContext(t *testing.T) {
	m := NewManager()
	job, ctx := m.Start(context.Background(), "train", "iot", "")

	job.Finish(context.Canceled)
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
	assert.Equal(t, JobCancelled, job.GetStatus())
}

func TestSummaryKeepsProfileExecutionOrder(t *testing.T) {
	m := NewManager()
	for _, run := range [][2]string{
		{"clean", "iot"}, {"isolate", "iot"}, {"clean", "full"}, {"isolate", "full"}, {"predict", "iot"},
	} {
		job, _ := m.Start(context.Background(), run[0], run[1], "")
		job.Finish(nil)
	}

	var got []string
	for _, s := range m.Summary() {
		got = append(got, s.Profile+" "+s.Stage)
	}
	assert.Equal(t, []string{"iot clean", "iot isolate", "iot predict", "full clean", "full isolate"}, got)
}

func TestListJobsKeepsOrder(t *testing.T) {
	m := NewManager()
	for _, stage := range []string{"clean", "isolate", "train", "predict"} {
		m.CreateJob(stage, "full", "")
	}
	var stages []string
	for _, job := range m.ListJobs() {
		stages = append(stages, job.Stage)
	}
	assert.Equal(t, []string{"clean", "isolate", "train", "predict"}, stages)
}
