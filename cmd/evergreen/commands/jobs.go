package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/HollandsP/Evergreen-sub003/config"
	"github.com/HollandsP/Evergreen-sub003/db"
	"github.com/HollandsP/Evergreen-sub003/errors"
	"github.com/HollandsP/Evergreen-sub003/logger"
	"github.com/HollandsP/Evergreen-sub003/sched"
)

// JobsCmd represents the jobs command - generation job management
var JobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Manage generation jobs",
	Long: `Inspect and manage generation jobs.

Job management commands:
  evergreen jobs ls             # List jobs
  evergreen jobs status <id>    # Show job details
  evergreen jobs cancel <id>    # Cancel a queued job
  evergreen jobs rm <id>        # Remove a job record
  evergreen jobs cleanup        # Remove old terminal jobs`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// JobsLsCmd lists generation jobs
var JobsLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List generation jobs",
	Long: `List generation jobs, optionally filtered by state.

State filters:
  pending    - Jobs waiting on dependencies or retry backoff
  ready      - Jobs eligible for dispatch
  running    - Jobs currently at a provider
  completed  - Successfully completed jobs
  failed     - Jobs that failed terminally
  cancelled  - Jobs cancelled by a caller

Examples:
  evergreen jobs ls                   # List all jobs
  evergreen jobs ls --state running   # List only running jobs
  evergreen jobs ls --limit 50        # Show up to 50 jobs`,
	RunE: func(cmd *cobra.Command, args []string) error {
		stateFilter, _ := cmd.Flags().GetString("state")
		limit, _ := cmd.Flags().GetInt("limit")
		return runJobsLs(stateFilter, limit)
	},
}

// JobsStatusCmd shows the status of a generation job
var JobsStatusCmd = &cobra.Command{
	Use:   "status <job-id>",
	Short: "Show status of a generation job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runJobsStatus(args[0])
	},
}

// JobsCancelCmd cancels a job that has not started running
var JobsCancelCmd = &cobra.Command{
	Use:   "cancel <job-id>",
	Short: "Cancel a pending or ready job",
	Long: `Cancel a job that has not started running. Jobs that depend on the
cancelled job fail when the scheduler next evaluates them.

Running jobs cannot be cancelled from the CLI; cancellation of in-flight
provider calls is only available through the embedding application.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runJobsCancel(args[0])
	},
}

// JobsRmCmd removes a job record
var JobsRmCmd = &cobra.Command{
	Use:   "rm <job-id>",
	Short: "Remove a job record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runJobsRm(args[0])
	},
}

// JobsCleanupCmd removes old terminal job records
var JobsCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove terminal jobs older than the retention window",
	RunE: func(cmd *cobra.Command, args []string) error {
		olderThan, _ := cmd.Flags().GetDuration("older-than")
		return runJobsCleanup(olderThan)
	},
}

func init() {
	JobsLsCmd.Flags().String("state", "", "Filter by state (pending, ready, running, completed, failed, cancelled)")
	JobsLsCmd.Flags().Int("limit", 20, "Maximum number of jobs to display")
	JobsCleanupCmd.Flags().Duration("older-than", 7*24*time.Hour, "Remove terminal jobs older than this")

	JobsCmd.AddCommand(JobsLsCmd)
	JobsCmd.AddCommand(JobsStatusCmd)
	JobsCmd.AddCommand(JobsCancelCmd)
	JobsCmd.AddCommand(JobsRmCmd)
	JobsCmd.AddCommand(JobsCleanupCmd)
}

func openStore() (*sched.Store, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to load config")
	}

	database, err := db.Open(cfg.Database.Path, logger.Logger)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to open database")
	}
	if err := sched.InitSchema(database); err != nil {
		database.Close()
		return nil, nil, err
	}

	return sched.NewStore(database), func() { database.Close() }, nil
}

func runJobsLs(stateFilter string, limit int) error {
	store, closeDB, err := openStore()
	if err != nil {
		return err
	}
	defer closeDB()

	var state *sched.State
	if stateFilter != "" {
		if !sched.IsValidState(stateFilter) {
			return errors.Newf("invalid state filter: %q", stateFilter)
		}
		s := sched.State(stateFilter)
		state = &s
	}

	jobs, err := store.ListJobs(state, limit)
	if err != nil {
		return errors.Wrap(err, "failed to list jobs")
	}

	if len(jobs) == 0 {
		fmt.Println("No jobs found")
		return nil
	}

	fmt.Printf("%-36s %-10s %-8s %-8s %-10s %s\n", "JOB ID", "STATE", "KIND", "PRIORITY", "COST", "CREATED")
	fmt.Printf("%-36s %-10s %-8s %-8s %-10s %s\n", "------", "-----", "----", "--------", "----", "-------")

	for _, job := range jobs {
		cost := fmt.Sprintf("$%.3f", job.CostEstimate)
		if job.State == sched.StateCompleted {
			cost = fmt.Sprintf("$%.3f", job.CostActual)
		}
		fmt.Printf("%-36s %-10s %-8s %-8s %-10s %s\n",
			job.ID,
			job.State,
			job.Kind,
			job.Priority.String(),
			cost,
			job.CreatedAt.Format("2006-01-02 15:04"))
	}

	fmt.Printf("\nTotal: %d job(s)\n", len(jobs))
	return nil
}

func runJobsStatus(jobID string) error {
	store, closeDB, err := openStore()
	if err != nil {
		return err
	}
	defer closeDB()

	job, err := store.GetJob(jobID)
	if err != nil {
		return err
	}

	fmt.Printf("Job ID: %s\n", job.ID)
	fmt.Printf("  Kind: %s\n", job.Kind)
	fmt.Printf("  Priority: %s\n", job.Priority.String())
	fmt.Printf("  State: %s\n", job.State)
	fmt.Printf("  Provider: %s / %s\n", job.Request.Provider, job.Request.Model)
	if len(job.Dependencies) > 0 {
		fmt.Printf("  Dependencies: %v\n", job.Dependencies)
	}
	fmt.Println()

	fmt.Printf("Cost Estimate: $%.3f\n", job.CostEstimate)
	if job.CostActual > 0 || job.State == sched.StateCompleted {
		fmt.Printf("Actual Cost: $%.3f\n", job.CostActual)
	}
	if job.CacheHit {
		fmt.Println("Served from cache")
	}
	if job.Attempt > 0 {
		fmt.Printf("Attempts: %d/%d\n", job.Attempt+1, job.MaxRetries+1)
	}
	fmt.Println()

	if job.Response != "" {
		fmt.Printf("Response: %s\n", job.Response)
	}
	if job.Error != "" {
		fmt.Printf("Error: %s\n", job.Error)
	}
	if job.BlockedBy != "" {
		fmt.Printf("Blocked By: %s\n", job.BlockedBy)
	}

	fmt.Printf("Created: %s\n", job.CreatedAt.Format("2006-01-02 15:04:05"))
	if job.StartedAt != nil {
		fmt.Printf("Started: %s\n", job.StartedAt.Format("2006-01-02 15:04:05"))
	}
	if job.CompletedAt != nil {
		fmt.Printf("Completed: %s\n", job.CompletedAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}

func runJobsCancel(jobID string) error {
	store, closeDB, err := openStore()
	if err != nil {
		return err
	}
	defer closeDB()

	job, err := store.GetJob(jobID)
	if err != nil {
		return err
	}
	switch job.State {
	case sched.StateRunning:
		return errors.Newf("job %s is running; in-flight cancellation requires the embedding application", jobID)
	case sched.StateCompleted, sched.StateFailed, sched.StateCancelled:
		return errors.Newf("job %s already %s", jobID, job.State)
	}

	if err := store.CancelJob(job, "cancelled via CLI"); err != nil {
		return err
	}
	fmt.Printf("Cancelled job %s\n", jobID)
	return nil
}

func runJobsRm(jobID string) error {
	store, closeDB, err := openStore()
	if err != nil {
		return err
	}
	defer closeDB()

	if err := store.DeleteJob(jobID); err != nil {
		return err
	}
	fmt.Printf("Removed job %s\n", jobID)
	return nil
}

func runJobsCleanup(olderThan time.Duration) error {
	store, closeDB, err := openStore()
	if err != nil {
		return err
	}
	defer closeDB()

	removed, err := store.CleanupOldJobs(olderThan)
	if err != nil {
		return err
	}
	fmt.Printf("Removed %d job(s) older than %s\n", removed, olderThan)
	return nil
}
