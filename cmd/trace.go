package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cwbudde/rotosolve/internal/store"
)

var traceEvery int

var traceCmd = &cobra.Command{
	Use:   "trace [job-id]",
	Short: "Print the sweep trace of a saved job",
	Long: `Reads the sweep trace of a job from --data-dir and prints one row per
sweep with its cost and the objective evaluations spent so far.
The last sweep is always printed, even when --every skips it.`,
	Args: cobra.ExactArgs(1),
	RunE: runTrace,
}

func init() {
	traceCmd.Flags().IntVar(&traceEvery, "every", 1, "Print every Nth sweep")
	rootCmd.AddCommand(traceCmd)
}

func runTrace(cmd *cobra.Command, args []string) error {
	if traceEvery < 1 {
		return fmt.Errorf("--every must be at least 1, got %d", traceEvery)
	}

	checkpointStore, err := store.NewFSStore(dataDir)
	if err != nil {
		return fmt.Errorf("failed to create checkpoint store: %w", err)
	}

	tr, err := store.NewTraceReader(checkpointStore.JobDir(args[0]))
	if err != nil {
		return fmt.Errorf("failed to open trace: %w", err)
	}
	defer tr.Close()

	return printTrace(os.Stdout, tr, traceEvery)
}

// printTrace streams the trace as a table, keeping every Nth sweep and the last one
func printTrace(out io.Writer, tr *store.TraceReader, every int) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SWEEP\tCOST\tEVALUATIONS\tTIMESTAMP")
	fmt.Fprintln(w, "-----\t----\t-----------\t---------")

	row := func(e *store.TraceEntry) {
		fmt.Fprintf(w, "%d\t%.9f\t%d\t%s\n", e.Sweep, e.Cost, e.Evaluations, e.Timestamp.Format("2006-01-02 15:04:05.000"))
	}

	var last *store.TraceEntry
	printed, total := false, 0
	for {
		entry, err := tr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		total++
		last, printed = entry, false
		if (total-1)%every == 0 {
			row(entry)
			printed = true
		}
	}
	if last != nil && !printed {
		row(last)
	}
	w.Flush()

	fmt.Fprintf(out, "\nTotal sweeps in trace: %d\n", total)
	return nil
}
