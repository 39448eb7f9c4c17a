package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/cwbudde/rotosolve/internal/server"
)

var (
	serverURL string
)

var statusCmd = &cobra.Command{
	Use:   "status [job-id]",
	Short: "Query server status or specific job",
	Long: `Queries the server for job status information.
If no job-id is provided, lists all jobs.
If job-id is provided, shows detailed status for that job.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&serverURL, "server", "http://localhost:8080", "Server URL")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return listJobs(os.Stdout, fmt.Sprintf("%s/api/v1/jobs", serverURL))
	}
	jobID := args[0]
	return getJobStatus(os.Stdout, fmt.Sprintf("%s/api/v1/jobs/%s/status", serverURL, jobID), jobID)
}

// getJSON fetches url and decodes the body into v
func getJSON(url string, v any) (int, error) {
	resp, err := http.Get(url)
	if err != nil {
		return 0, fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return resp.StatusCode, fmt.Errorf("server returned error: %s", string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
	}
	return resp.StatusCode, nil
}

func listJobs(w io.Writer, url string) error {
	var jobs []server.Job
	if _, err := getJSON(url, &jobs); err != nil {
		return err
	}

	if len(jobs) == 0 {
		fmt.Fprintln(w, "No jobs found")
		return nil
	}

	fmt.Fprintf(w, "Found %d job(s):\n\n", len(jobs))
	for _, job := range jobs {
		fmt.Fprintf(w, "Job ID: %s\n", job.ID)
		fmt.Fprintf(w, "  State: %s\n", job.State)
		fmt.Fprintf(w, "  Objective: %s (dim %d)\n", job.Config.Objective, job.Config.Dim)
		if job.Sweeps > 0 {
			fmt.Fprintf(w, "  Cost: %.6f -> %.6f after %d sweeps\n", job.InitialCost, job.Cost, job.Sweeps)
		}
		fmt.Fprintln(w)
	}

	return nil
}

func getJobStatus(w io.Writer, url, jobID string) error {
	var status server.StatusResponse
	code, err := getJSON(url, &status)
	if code == http.StatusNotFound {
		return fmt.Errorf("job not found: %s", jobID)
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "Job: %s\n", status.ID)
	fmt.Fprintf(w, "State: %s\n", status.State)
	if status.ResumedFrom != "" {
		fmt.Fprintf(w, "Resumed from: %s\n", status.ResumedFrom)
	}
	fmt.Fprintln(w)

	config := status.Config
	fmt.Fprintln(w, "Configuration:")
	fmt.Fprintf(w, "  Objective: %s\n", config.Objective)
	fmt.Fprintf(w, "  Dimension: %d\n", config.Dim)
	fmt.Fprintf(w, "  Seed: %d\n", config.Seed)
	fmt.Fprintf(w, "  Sweeps: %d\n", config.Sweeps)
	if config.Tolerance > 0 {
		fmt.Fprintf(w, "  Tolerance: %g (patience %d)\n", config.Tolerance, config.Patience)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Progress:")
	fmt.Fprintf(w, "  Sweeps: %d\n", status.Sweeps)
	if status.Sweeps > 0 {
		fmt.Fprintf(w, "  Initial Cost: %.9f\n", status.InitialCost)
		fmt.Fprintf(w, "  Cost: %.9f\n", status.Cost)
		fmt.Fprintf(w, "  Improvement: %.9f\n", status.InitialCost-status.Cost)
	}
	if status.Converged {
		fmt.Fprintln(w, "  Converged: yes")
	}

	elapsed := time.Duration(status.Elapsed * float64(time.Second))
	fmt.Fprintf(w, "  Elapsed: %s\n", elapsed.Round(time.Millisecond))

	if status.EvalsPerSecond > 0 {
		fmt.Fprintf(w, "  Throughput: %.0f evaluations/sec\n", status.EvalsPerSecond)
	}

	if status.Error != "" {
		fmt.Fprintf(w, "\nError: %s\n", status.Error)
	}

	return nil
}
