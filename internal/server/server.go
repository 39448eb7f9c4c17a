package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cwbudde/rotosolve/internal/objective"
	"github.com/cwbudde/rotosolve/internal/store"
)

// Defaults applied to fields a create request leaves empty
const (
	DefaultObjective = "ring"
	DefaultDim       = 4
	DefaultSweeps    = 100
)

// CreateJobRequest is the body of POST /api/v1/jobs.
// When ResumeFrom names a checkpointed job, the new job continues from its
// parameters and every omitted field is taken from its saved configuration.
type CreateJobRequest struct {
	JobConfig
	ResumeFrom string `json:"resumeFrom,omitempty"`
}

// Server represents the HTTP server
type Server struct {
	jobManager      *JobManager
	checkpointStore store.Store
	addr            string

	mu     sync.Mutex
	server *http.Server

	// workers run under baseCtx so Shutdown can stop them
	baseCtx context.Context
	stop    context.CancelFunc
	workers sync.WaitGroup
}

// NewServer creates a new HTTP server.
// checkpointStore may be nil, in which case nothing is persisted and
// resumeFrom requests are rejected.
func NewServer(addr string, checkpointStore store.Store) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		jobManager:      NewJobManager(),
		checkpointStore: checkpointStore,
		addr:            addr,
		baseCtx:         ctx,
		stop:            cancel,
	}
}

// Handler returns the routed handler with middleware applied
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/v1/jobs", s.handleJobs)
	mux.HandleFunc("/api/v1/jobs/", s.handleJobsWithID)
	mux.Handle("/metrics", promhttp.Handler())

	return s.loggingMiddleware(s.corsMiddleware(mux))
}

// Start listens on the configured address and serves until Shutdown
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	return s.Serve(ln)
}

// Serve serves HTTP on ln and blocks until the server stops
func (s *Server) Serve(ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	// Streams of jobs that never broadcast a final state still have to end
	srv.RegisterOnShutdown(s.jobManager.broadcaster.CloseAll)

	s.mu.Lock()
	if s.baseCtx.Err() != nil {
		// Shutdown already ran
		s.mu.Unlock()
		ln.Close()
		return nil
	}
	s.server = srv
	s.mu.Unlock()

	slog.Info("Starting HTTP server", "addr", ln.Addr().String())
	err := srv.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown cancels running jobs, waits for their workers to save a final
// checkpoint and then stops the HTTP server. Workers go first: open streams
// only end once their job reaches a final state.
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("Shutting down HTTP server", "running_jobs", len(s.jobManager.GetRunningJobs()))

	s.stop()
	done := make(chan struct{})
	go func() {
		s.workers.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		err = fmt.Errorf("waiting for job workers: %w", ctx.Err())
	}

	s.mu.Lock()
	srv := s.server
	s.mu.Unlock()
	if srv != nil {
		if shutdownErr := srv.Shutdown(ctx); shutdownErr != nil && err == nil {
			err = shutdownErr
		}
	}
	return err
}

// Wait blocks until all job workers have exited
func (s *Server) Wait() {
	s.workers.Wait()
}

// handleJobs handles /api/v1/jobs
func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleCreateJob(w, r)
	case http.MethodGet:
		s.handleListJobs(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleJobsWithID handles /api/v1/jobs/:id/*
func (s *Server) handleJobsWithID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/v1/jobs/")
	parts := strings.Split(path, "/")
	if len(parts) == 0 || parts[0] == "" {
		http.Error(w, "Job ID required", http.StatusBadRequest)
		return
	}

	jobID := parts[0]

	sub := ""
	if len(parts) > 1 {
		sub = parts[1]
	}

	switch sub {
	case "", "status":
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		s.handleGetJobStatus(w, r, jobID)
	case "cancel":
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		s.handleCancelJob(w, r, jobID)
	case "stream":
		s.handleJobStream(w, r, jobID)
	case "trace":
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		s.handleGetTrace(w, r, jobID)
	default:
		http.Error(w, "Not found", http.StatusNotFound)
	}
}

// handleCreateJob handles POST /api/v1/jobs
func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var req CreateJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Invalid JSON: %v", err), http.StatusBadRequest)
		return
	}

	var resume *store.Checkpoint
	if req.ResumeFrom != "" {
		cp, status, err := s.loadResumeCheckpoint(req.ResumeFrom)
		if err != nil {
			http.Error(w, err.Error(), status)
			return
		}
		resume = cp
		req.JobConfig = inheritConfig(req.JobConfig, cp.Config)
	}

	config := applyDefaults(req.JobConfig)
	if err := config.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if _, err := objective.New(config.Objective, config.Dim, config.Seed); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if resume != nil {
		if err := resume.IsCompatible(config); err != nil {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
	}

	job := s.jobManager.CreateJob(config)
	s.startWorker(job.ID, resume)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(job)
}

// loadResumeCheckpoint returns the checkpoint to resume from and the HTTP
// status to report if it cannot be used
func (s *Server) loadResumeCheckpoint(jobID string) (*store.Checkpoint, int, error) {
	if s.checkpointStore == nil {
		return nil, http.StatusBadRequest, errors.New("resume requires a checkpoint store")
	}
	cp, err := s.checkpointStore.LoadCheckpoint(jobID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, http.StatusNotFound, err
	}
	if err != nil {
		return nil, http.StatusInternalServerError, err
	}
	return cp, http.StatusOK, nil
}

// inheritConfig fills the fields a resume request left empty from the
// configuration saved with the checkpoint
func inheritConfig(config, saved JobConfig) JobConfig {
	if config.Objective == "" {
		config.Objective = saved.Objective
	}
	if config.Dim <= 0 {
		config.Dim = saved.Dim
	}
	if config.Seed == 0 {
		config.Seed = saved.Seed
	}
	if config.Sweeps <= 0 {
		config.Sweeps = saved.Sweeps
	}
	if config.Tolerance == 0 {
		config.Tolerance = saved.Tolerance
	}
	if config.Patience <= 0 {
		config.Patience = saved.Patience
	}
	if config.CheckpointInterval <= 0 {
		config.CheckpointInterval = saved.CheckpointInterval
	}
	return config
}

// applyDefaults fills the fields a request left empty
func applyDefaults(config JobConfig) JobConfig {
	if config.Objective == "" {
		config.Objective = DefaultObjective
	}
	if config.Dim <= 0 {
		config.Dim = DefaultDim
	}
	if config.Sweeps <= 0 {
		config.Sweeps = DefaultSweeps
	}
	return config
}

// startWorker runs the job in the background under the server's context
func (s *Server) startWorker(jobID string, resume *store.Checkpoint) {
	ctx, cancel := context.WithCancel(s.baseCtx)
	s.jobManager.setCancel(jobID, cancel)

	s.workers.Add(1)
	go func() {
		defer s.workers.Done()
		if err := runJob(ctx, s.jobManager, s.checkpointStore, jobID, resume); err != nil {
			slog.Debug("Worker exited with error", "job_id", jobID, "error", err)
		}
	}()
}

// handleListJobs handles GET /api/v1/jobs
func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	jobs := s.jobManager.ListJobs()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(jobs)
}

// StatusResponse is the body of GET /api/v1/jobs/:id/status
type StatusResponse struct {
	*Job
	Elapsed        float64 `json:"elapsed"`        // seconds
	EvalsPerSecond float64 `json:"evalsPerSecond"` // objective evaluations per second
}

// handleGetJobStatus handles GET /api/v1/jobs/:id/status
func (s *Server) handleGetJobStatus(w http.ResponseWriter, r *http.Request, jobID string) {
	job, exists := s.jobManager.GetJob(jobID)
	if !exists {
		http.Error(w, "Job not found", http.StatusNotFound)
		return
	}

	var elapsed time.Duration
	if job.EndTime != nil {
		elapsed = job.EndTime.Sub(job.StartTime)
	} else {
		elapsed = time.Since(job.StartTime)
	}

	eps := float64(0)
	if elapsed.Seconds() > 0 {
		eps = float64(job.Evaluations) / elapsed.Seconds()
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(StatusResponse{
		Job:            job,
		Elapsed:        elapsed.Seconds(),
		EvalsPerSecond: eps,
	})
}

// handleGetTrace handles GET /api/v1/jobs/:id/trace.
// The trace is read from the store, so jobs of earlier server runs are served
// too. ?last=N limits the response to the N most recent sweeps.
func (s *Server) handleGetTrace(w http.ResponseWriter, r *http.Request, jobID string) {
	if s.checkpointStore == nil {
		http.Error(w, "Trace not available without a checkpoint store", http.StatusNotFound)
		return
	}

	last := 0
	if v := r.URL.Query().Get("last"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			http.Error(w, fmt.Sprintf("Invalid last: %q", v), http.StatusBadRequest)
			return
		}
		last = n
	}

	tr, err := store.NewTraceReader(s.checkpointStore.JobDir(jobID))
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "Trace not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	defer tr.Close()

	entries, err := tr.ReadAll()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if last > 0 && len(entries) > last {
		entries = entries[len(entries)-last:]
	}
	if entries == nil {
		entries = []store.TraceEntry{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(entries)
}

// handleCancelJob handles POST /api/v1/jobs/:id/cancel
func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request, jobID string) {
	if _, exists := s.jobManager.GetJob(jobID); !exists {
		http.Error(w, "Job not found", http.StatusNotFound)
		return
	}
	if !s.jobManager.CancelJob(jobID) {
		http.Error(w, "Job already finished", http.StatusConflict)
		return
	}

	slog.Info("Cancellation requested", "job_id", jobID)

	job, _ := s.jobManager.GetJob(jobID)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(job)
}

// corsMiddleware adds CORS headers
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		slog.Debug("HTTP request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}
