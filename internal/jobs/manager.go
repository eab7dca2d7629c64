package jobs

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
)

// Job tracks one pipeline stage run for one feature profile.
type Job struct {
	ID          string
	RunID       string
	Stage       string
	Profile     string
	Status      JobStatus
	Progress    float64
	StartTime   time.Time
	EndTime     *time.Time
	Error       error
	Result      any
	Description string
	Logs        []string
	cancelFunc  func()
	mu          sync.RWMutex
}

// Manager holds the jobs of one pipeline run. Every job it creates carries
// the same RunID.
type Manager struct {
	runID string
	jobs  map[string]*Job
	order []string
	mu    sync.RWMutex
}

func NewManager() *Manager {
	return &Manager{
		runID: uuid.NewString(),
		jobs:  make(map[string]*Job),
	}
}

func (m *Manager) RunID() string {
	return m.runID
}

func (m *Manager) CreateJob(stage, profile, description string) *Job {
	m.mu.Lock()
	defer m.mu.Unlock()

	job := &Job{
		ID:          uuid.NewString(),
		RunID:       m.runID,
		Stage:       stage,
		Profile:     profile,
		Status:      JobPending,
		StartTime:   time.Now(),
		Description: description,
		Logs:        []string{},
	}

	m.jobs[job.ID] = job
	m.order = append(m.order, job.ID)
	return job
}

// Start creates a running job whose context is cancelled when the job finishes.
func (m *Manager) Start(ctx context.Context, stage, profile, description string) (*Job, context.Context) {
	job := m.CreateJob(stage, profile, description)
	ctx, cancel := context.WithCancel(ctx)
	job.SetCancelFunc(cancel)
	job.SetStatus(JobRunning)
	return job, ctx
}

// ListJobs returns jobs in creation order.
func (m *Manager) ListJobs() []*Job {
	m.mu.RLock()
	defer m.mu.RUnlock()

	jobs := make([]*Job, 0, len(m.order))
	for _, id := range m.order {
		jobs = append(jobs, m.jobs[id])
	}
	return jobs
}

// StageSummary is one line of a run summary.
type StageSummary struct {
	Stage    string
	Profile  string
	Status   JobStatus
	Duration time.Duration
	Error    string
}

// Summary lists every job grouped by profile, in execution order.
func (m *Manager) Summary() []StageSummary {
	jobs := m.ListJobs()
	out := make([]StageSummary, 0, len(jobs))
	for _, job := range jobs {
		job.mu.RLock()
		s := StageSummary{
			Stage:   job.Stage,
			Profile: job.Profile,
			Status:  job.Status,
		}
		if job.EndTime != nil {
			s.Duration = job.EndTime.Sub(job.StartTime)
		}
		if job.Error != nil {
			s.Error = job.Error.Error()
		}
		job.mu.RUnlock()
		out = append(out, s)
	}
	rank := make(map[string]int)
	for _, s := range out {
		if _, seen := rank[s.Profile]; !seen {
			rank[s.Profile] = len(rank)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return rank[out[i].Profile] < rank[out[j].Profile] })
	return out
}

func (j *Job) SetStatus(status JobStatus) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	if status == JobCompleted || status == JobFailed || status == JobCancelled {
		now := time.Now()
		j.EndTime = &now
	}
}

func (j *Job) SetProgress(progress float64) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if progress < 0 {
		progress = 0
	}
	if progress > 1 {
		progress = 1
	}
	j.Progress = progress
}

func (j *Job) AddLog(message string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	timestamp := time.Now().Format("15:04:05")
	j.Logs = append(j.Logs, fmt.Sprintf("[%s] %s", timestamp, message))
}

func (j *Job) Logf(format string, args ...any) {
	j.AddLog(fmt.Sprintf(format, args...))
}

func (j *Job) SetError(err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Error = err
	j.Status = JobFailed
	if errors.Is(err, context.Canceled) {
		j.Status = JobCancelled
	}
	now := time.Now()
	j.EndTime = &now
}

func (j *Job) SetResult(result any) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Result = result
}

// Finish marks the job completed, or failed when err is not nil, and
// releases its context.
func (j *Job) Finish(err error) {
	if err != nil {
		j.SetError(err)
	} else {
		j.SetProgress(1)
		j.SetStatus(JobCompleted)
	}
	j.mu.RLock()
	cancel := j.cancelFunc
	j.mu.RUnlock()
	if cancel != nil {
		cancel()
	}
}

func (j *Job) SetCancelFunc(cancelFunc func()) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.cancelFunc = cancelFunc
}

func (j *Job) GetStatus() JobStatus {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status
}

func (j *Job) GetProgress() float64 {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Progress
}

func (j *Job) GetLogs() []string {
	j.mu.RLock()
	defer j.mu.RUnlock()
	logs := make([]string, len(j.Logs))
	copy(logs, j.Logs)
	return logs
}
