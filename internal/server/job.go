package server

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cwbudde/rotosolve/internal/store"
)

// JobState represents the current state of a job
type JobState string

const (
	StatePending   JobState = "pending"
	StateRunning   JobState = "running"
	StateCompleted JobState = "completed"
	StateFailed    JobState = "failed"
	StateCancelled JobState = "cancelled"
)

// Done reports whether the state is terminal
func (s JobState) Done() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// JobConfig is an alias to avoid duplication with store.JobConfig
type JobConfig = store.JobConfig

// Job represents a training job
type Job struct {
	ID          string     `json:"id"`
	State       JobState   `json:"state"`
	Config      JobConfig  `json:"config"`
	Params      []float64  `json:"params,omitempty"`
	Cost        float64    `json:"cost"`
	InitialCost float64    `json:"initialCost"`
	Sweeps      int        `json:"sweeps"`
	Evaluations int        `json:"evaluations"`
	Converged   bool       `json:"converged"`
	ResumedFrom string     `json:"resumedFrom,omitempty"`
	StartTime   time.Time  `json:"startTime"`
	EndTime     *time.Time `json:"endTime,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// clone returns a copy that shares no memory with j
func (j *Job) clone() *Job {
	c := *j
	c.Params = append([]float64(nil), j.Params...)
	if j.EndTime != nil {
		end := *j.EndTime
		c.EndTime = &end
	}
	return &c
}

// JobManager manages the lifecycle of jobs
type JobManager struct {
	mu          sync.RWMutex
	jobs        map[string]*Job
	cancels     map[string]context.CancelFunc
	broadcaster *EventBroadcaster
}

// NewJobManager creates a new JobManager
func NewJobManager() *JobManager {
	return &JobManager{
		jobs:        make(map[string]*Job),
		cancels:     make(map[string]context.CancelFunc),
		broadcaster: NewEventBroadcaster(),
	}
}

// CreateJob creates a new pending job with the given configuration
func (jm *JobManager) CreateJob(config JobConfig) *Job {
	return jm.createJob("", config)
}

// createJob registers a pending job under id, or under a fresh UUID if id is empty
func (jm *JobManager) createJob(id string, config JobConfig) *Job {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	if id == "" {
		id = uuid.New().String()
	}
	job := &Job{
		ID:        id,
		State:     StatePending,
		Config:    config,
		StartTime: time.Now(),
	}

	jm.jobs[job.ID] = job
	return job.clone()
}

// GetJob returns a snapshot of a job by ID
func (jm *JobManager) GetJob(id string) (*Job, bool) {
	jm.mu.RLock()
	defer jm.mu.RUnlock()

	job, exists := jm.jobs[id]
	if !exists {
		return nil, false
	}
	return job.clone(), true
}

// ListJobs returns snapshots of all jobs, oldest first
func (jm *JobManager) ListJobs() []*Job {
	jm.mu.RLock()
	defer jm.mu.RUnlock()

	jobs := make([]*Job, 0, len(jm.jobs))
	for _, job := range jm.jobs {
		jobs = append(jobs, job.clone())
	}
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].StartTime.Before(jobs[j].StartTime)
	})
	return jobs
}

// UpdateJob atomically updates a job using the provided function
func (jm *JobManager) UpdateJob(id string, updateFn func(*Job)) error {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	job, exists := jm.jobs[id]
	if !exists {
		return fmt.Errorf("job not found: %s", id)
	}

	updateFn(job)
	return nil
}

// GetRunningJobs returns all jobs currently in the running state
func (jm *JobManager) GetRunningJobs() []*Job {
	jm.mu.RLock()
	defer jm.mu.RUnlock()

	runningJobs := make([]*Job, 0)
	for _, job := range jm.jobs {
		if job.State == StateRunning {
			runningJobs = append(runningJobs, job.clone())
		}
	}
	return runningJobs
}

// setCancel registers the function that stops a job's worker
func (jm *JobManager) setCancel(id string, cancel context.CancelFunc) {
	jm.mu.Lock()
	defer jm.mu.Unlock()
	jm.cancels[id] = cancel
}

// releaseCancel drops the cancel function once the worker has exited
func (jm *JobManager) releaseCancel(id string) {
	jm.mu.Lock()
	defer jm.mu.Unlock()
	if cancel, ok := jm.cancels[id]; ok {
		cancel()
		delete(jm.cancels, id)
	}
}

// CancelJob asks a pending or running job to stop after its current sweep.
// It returns false if the job does not exist or has already finished.
func (jm *JobManager) CancelJob(id string) bool {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	job, exists := jm.jobs[id]
	if !exists || job.State.Done() {
		return false
	}
	if cancel, ok := jm.cancels[id]; ok {
		cancel()
	}
	return true
}
