package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/HollandsP/Evergreen-sub003/sched"
)

// StatsCmd shows job store statistics
var StatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show job store statistics",
	Long: `Display job counts per state and aggregate cost from the job store.

Throughput and cache numbers live in the daemon process; this command reads
what the store alone can answer.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStats()
	},
}

func runStats() error {
	store, closeDB, err := openStore()
	if err != nil {
		return err
	}
	defer closeDB()

	counts, err := store.CountByState()
	if err != nil {
		return err
	}

	total := 0
	for _, n := range counts {
		total += n
	}

	fmt.Println("Job store:")
	for _, state := range []sched.State{
		sched.StatePending, sched.StateReady, sched.StateRunning,
		sched.StateCompleted, sched.StateFailed, sched.StateCancelled,
	} {
		if counts[state] == 0 {
			continue
		}
		fmt.Printf("  %-10s %d\n", state, counts[state])
	}
	fmt.Printf("  %-10s %d\n", "total", total)

	completed, err := store.ListByState(sched.StateCompleted)
	if err != nil {
		return err
	}
	var spend float64
	cacheHits := 0
	for _, job := range completed {
		spend += job.CostActual
		if job.CacheHit {
			cacheHits++
		}
	}
	if len(completed) > 0 {
		fmt.Printf("\nCompleted jobs: %d (%d from cache)\n", len(completed), cacheHits)
		fmt.Printf("Total spend: $%.3f\n", spend)
	}

	return nil
}
