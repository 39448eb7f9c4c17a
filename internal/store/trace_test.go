package store

import (
	"errors"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func TestTraceWriter_WriteAndRead(t *testing.T) {
	jobDir := filepath.Join(t.TempDir(), "jobs", "trace-job")

	tw, err := NewTraceWriter(jobDir, false)
	if err != nil {
		t.Fatalf("NewTraceWriter failed: %v", err)
	}
	if tw.Path() != filepath.Join(jobDir, "trace.jsonl") {
		t.Errorf("Unexpected trace path %s", tw.Path())
	}

	now := time.Now()
	costs := []float64{0.5, -1.2, -1.9}
	for i, c := range costs {
		if err := tw.Write(TraceEntry{Sweep: i + 1, Cost: c, Evaluations: 10 * (i + 1), Timestamp: now}); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	tr, err := NewTraceReader(jobDir)
	if err != nil {
		t.Fatalf("NewTraceReader failed: %v", err)
	}
	defer tr.Close()

	entries, err := tr.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(entries) != len(costs) {
		t.Fatalf("Expected %d entries, got %d", len(costs), len(entries))
	}
	for i, e := range entries {
		if e.Sweep != i+1 || e.Cost != costs[i] || e.Evaluations != 10*(i+1) {
			t.Errorf("Entry %d mismatch: %+v", i, e)
		}
		if e.Params != nil {
			t.Errorf("Entry %d should have no params", i)
		}
	}
}

func TestTraceWriter_AppendAndTruncate(t *testing.T) {
	jobDir := t.TempDir()

	write := func(appendMode bool, sweeps ...int) {
		tw, err := NewTraceWriter(jobDir, appendMode)
		if err != nil {
			t.Fatalf("NewTraceWriter failed: %v", err)
		}
		for _, s := range sweeps {
			tw.Write(TraceEntry{Sweep: s})
		}
		if err := tw.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
	}
	count := func() int {
		tr, err := NewTraceReader(jobDir)
		if err != nil {
			t.Fatalf("NewTraceReader failed: %v", err)
		}
		defer tr.Close()
		entries, err := tr.ReadAll()
		if err != nil {
			t.Fatalf("ReadAll failed: %v", err)
		}
		return len(entries)
	}

	write(false, 1, 2)
	write(true, 3, 4, 5)
	if n := count(); n != 5 {
		t.Errorf("Expected 5 entries after append, got %d", n)
	}

	write(false, 1)
	if n := count(); n != 1 {
		t.Errorf("Expected 1 entry after truncate, got %d", n)
	}
}

func TestTraceWriter_FlushMakesEntriesVisible(t *testing.T) {
	jobDir := t.TempDir()

	tw, err := NewTraceWriter(jobDir, false)
	if err != nil {
		t.Fatalf("NewTraceWriter failed: %v", err)
	}
	defer tw.Close()

	tw.Write(TraceEntry{Sweep: 1, Cost: 2, Params: []float64{0.1, -0.2}})
	if err := tw.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	tr, err := NewTraceReader(jobDir)
	if err != nil {
		t.Fatalf("NewTraceReader failed: %v", err)
	}
	defer tr.Close()

	entry, err := tr.Read()
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(entry.Params) != 2 || entry.Params[1] != -0.2 {
		t.Errorf("Params not round-tripped: %v", entry.Params)
	}
	if _, err := tr.Read(); err != io.EOF {
		t.Errorf("Expected io.EOF, got %v", err)
	}
}

func TestTraceReader_NotFound(t *testing.T) {
	_, err := NewTraceReader(filepath.Join(t.TempDir(), "nothing"))
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestDeleteTrace(t *testing.T) {
	jobDir := t.TempDir()

	tw, err := NewTraceWriter(jobDir, false)
	if err != nil {
		t.Fatalf("NewTraceWriter failed: %v", err)
	}
	tw.Write(TraceEntry{Sweep: 1})
	tw.Close()

	if err := DeleteTrace(jobDir); err != nil {
		t.Fatalf("DeleteTrace failed: %v", err)
	}
	if _, err := NewTraceReader(jobDir); !errors.Is(err, ErrNotFound) {
		t.Error("Trace should be gone")
	}
	if err := DeleteTrace(jobDir); err != nil {
		t.Errorf("Deleting a missing trace should succeed, got %v", err)
	}
}

func TestTraceWriter_ConcurrentWrites(t *testing.T) {
	jobDir := t.TempDir()

	tw, err := NewTraceWriter(jobDir, false)
	if err != nil {
		t.Fatalf("NewTraceWriter failed: %v", err)
	}

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				tw.Write(TraceEntry{Sweep: g*50 + i, Params: []float64{float64(g), float64(i)}})
			}
		}(g)
	}
	wg.Wait()
	if err := tw.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	tr, err := NewTraceReader(jobDir)
	if err != nil {
		t.Fatalf("NewTraceReader failed: %v", err)
	}
	defer tr.Close()

	entries, err := tr.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll failed (interleaved lines?): %v", err)
	}
	if len(entries) != 400 {
		t.Errorf("Expected 400 entries, got %d", len(entries))
	}
}
