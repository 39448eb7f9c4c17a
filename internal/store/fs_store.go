package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
)

const checkpointFile = "checkpoint.json"

// FSStore implements the Store interface using filesystem-based persistence.
// Checkpoints are stored in a directory structure: <baseDir>/jobs/<jobID>/
//
// Writes go through a temp file and rename, so concurrent readers never see a
// partial checkpoint and no locking is needed.
type FSStore struct {
	baseDir string
}

// NewFSStore creates a new filesystem-based store.
// The baseDir will be created if it doesn't exist.
func NewFSStore(baseDir string) (*FSStore, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	return &FSStore{baseDir: baseDir}, nil
}

// BaseDir returns the root directory of the store
func (s *FSStore) BaseDir() string {
	return s.baseDir
}

// JobDir returns the directory path for a given job ID.
func (s *FSStore) JobDir(jobID string) string {
	return filepath.Join(s.baseDir, "jobs", jobID)
}

func (s *FSStore) checkpointPath(jobID string) string {
	return filepath.Join(s.JobDir(jobID), checkpointFile)
}

// SaveCheckpoint atomically saves a checkpoint for the given job.
func (s *FSStore) SaveCheckpoint(jobID string, checkpoint *Checkpoint) error {
	if jobID == "" {
		return fmt.Errorf("jobID cannot be empty")
	}
	if checkpoint == nil {
		return fmt.Errorf("checkpoint cannot be nil")
	}

	if err := os.MkdirAll(s.JobDir(jobID), 0755); err != nil {
		return fmt.Errorf("failed to create job directory: %w", err)
	}

	data, err := json.MarshalIndent(checkpoint, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize checkpoint: %w", err)
	}

	path := s.checkpointPath(jobID)
	if err := writeFileAtomic(path, data); err != nil {
		return err
	}

	slog.Debug("Checkpoint saved", "job_id", jobID, "sweep", checkpoint.Sweep, "path", path)
	return nil
}

// writeFileAtomic writes data next to path and renames it into place
func writeFileAtomic(path string, data []byte) error {
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp checkpoint file: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename checkpoint file: %w", err)
	}
	return nil
}

// LoadCheckpoint retrieves the checkpoint for the given job.
func (s *FSStore) LoadCheckpoint(jobID string) (*Checkpoint, error) {
	if jobID == "" {
		return nil, fmt.Errorf("jobID cannot be empty")
	}

	data, err := os.ReadFile(s.checkpointPath(jobID))
	if errors.Is(err, os.ErrNotExist) {
		return nil, &NotFoundError{JobID: jobID}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint file: %w", err)
	}

	var checkpoint Checkpoint
	if err := json.Unmarshal(data, &checkpoint); err != nil {
		return nil, fmt.Errorf("failed to deserialize checkpoint: %w", err)
	}

	slog.Debug("Checkpoint loaded", "job_id", jobID, "sweep", checkpoint.Sweep)
	return &checkpoint, nil
}

// ListCheckpoints returns metadata for all available checkpoints, oldest first.
// Directories without a readable checkpoint are skipped.
func (s *FSStore) ListCheckpoints() ([]CheckpointInfo, error) {
	entries, err := os.ReadDir(filepath.Join(s.baseDir, "jobs"))
	if errors.Is(err, os.ErrNotExist) {
		return []CheckpointInfo{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read jobs directory: %w", err)
	}

	infos := []CheckpointInfo{}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		checkpoint, err := s.LoadCheckpoint(entry.Name())
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			slog.Warn("Failed to load checkpoint for listing", "job_id", entry.Name(), "error", err)
			continue
		}
		infos = append(infos, checkpoint.ToInfo())
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Timestamp.Before(infos[j].Timestamp)
	})

	slog.Debug("Listed checkpoints", "count", len(infos))
	return infos, nil
}

// DeleteCheckpoint removes the job directory with all its artifacts.
func (s *FSStore) DeleteCheckpoint(jobID string) error {
	if jobID == "" {
		return fmt.Errorf("jobID cannot be empty")
	}

	jobDir := s.JobDir(jobID)
	if _, err := os.Stat(jobDir); errors.Is(err, os.ErrNotExist) {
		return &NotFoundError{JobID: jobID}
	} else if err != nil {
		return fmt.Errorf("failed to stat job directory: %w", err)
	}

	if err := os.RemoveAll(jobDir); err != nil {
		return fmt.Errorf("failed to remove job directory: %w", err)
	}

	slog.Debug("Checkpoint deleted", "job_id", jobID, "path", jobDir)
	return nil
}
