package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/nsefeed/internal/scheduler"
	"github.com/wonny/nsefeed/internal/scheduler/jobs"
)

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "Scheduled downloads",
	Long: `Start the scheduler or manage its jobs.

Registered jobs:
  eod_snapshot    - end-of-day archives and FII/DII flows (SCHEDULER_EOD_SPEC)
  symbol_refresh  - every index membership list (SCHEDULER_SYMBOLS_SPEC)

With DATABASE_URL set, eod_snapshot also writes its tables to the warehouse.

Subcommands:
  start   - run the scheduler until Ctrl+C
  list    - registered jobs and their next run
  run     - run one job now

Example:
  go run ./cmd/nse scheduler start
  go run ./cmd/nse scheduler list
  go run ./cmd/nse scheduler run eod_snapshot`,
}

var (
	schedulerStartCmd = &cobra.Command{
		Use:   "start",
		Short: "Start the scheduler",
		Args:  cobra.NoArgs,
		RunE:  runScheduler,
	}

	schedulerListCmd = &cobra.Command{
		Use:   "list",
		Short: "Registered jobs",
		Args:  cobra.NoArgs,
		RunE:  listJobs,
	}

	schedulerRunCmd = &cobra.Command{
		Use:   "run [job_name]",
		Short: "Run a job now",
		Args:  cobra.ExactArgs(1),
		RunE:  runJob,
	}
)

func init() {
	rootCmd.AddCommand(schedulerCmd)
	schedulerCmd.AddCommand(schedulerStartCmd)
	schedulerCmd.AddCommand(schedulerListCmd)
	schedulerCmd.AddCommand(schedulerRunCmd)
}

// initScheduler registers every job on a new scheduler
func initScheduler(a *app) (*scheduler.Scheduler, error) {
	sched := scheduler.New(a.log, a.cfg.Scheduler.MaxRetries, a.cfg.Scheduler.RetryDelay)

	var exporter jobs.Exporter
	if a.sink != nil {
		exporter = a.sink
	}

	if err := sched.AddJob(jobs.NewEODSnapshotJob(a.client, exporter, a.cfg.Scheduler.EODSpec, a.log)); err != nil {
		return nil, err
	}
	if err := sched.AddJob(jobs.NewSymbolRefreshJob(a.client, a.cfg.Scheduler.SymbolsSpec, a.log)); err != nil {
		return nil, err
	}

	return sched, nil
}

func runScheduler(cmd *cobra.Command, args []string) error {
	return withApp(cmd.Context(), func(a *app) error {
		sched, err := initScheduler(a)
		if err != nil {
			return fmt.Errorf("init scheduler: %w", err)
		}

		sched.Start()

		PrintSuccess(os.Stdout, "Scheduler started")
		fmt.Println("\nRegistered jobs:")
		PrintList(os.Stdout, sched.GetAllJobs())
		fmt.Println("\nPress Ctrl+C to stop")

		<-cmd.Context().Done()

		fmt.Println("\nShutting down scheduler...")
		sched.Stop()
		fmt.Println("Scheduler stopped")
		return nil
	})
}

func listJobs(cmd *cobra.Command, args []string) error {
	return withApp(cmd.Context(), func(a *app) error {
		sched, err := initScheduler(a)
		if err != nil {
			return fmt.Errorf("init scheduler: %w", err)
		}

		// Entries only get a next run once cron is started
		sched.Start()
		defer sched.Stop()

		stats := sched.GetJobStats()
		widths := []int{16, 20, 19}
		PrintTableHeader(os.Stdout, []string{"JOB", "SCHEDULE", "NEXT RUN"}, widths)
		for _, name := range sched.GetAllJobs() {
			next := "-"
			if s := stats[name]; s.NextRun != nil {
				next = s.NextRun.Format("2006-01-02 15:04:05")
			}
			PrintTableRow(os.Stdout, []string{name, stats[name].Schedule, next}, widths)
		}
		return nil
	})
}

func runJob(cmd *cobra.Command, args []string) error {
	jobName := args[0]

	return withApp(cmd.Context(), func(a *app) error {
		sched, err := initScheduler(a)
		if err != nil {
			return fmt.Errorf("init scheduler: %w", err)
		}

		fmt.Printf("Running job: %s\n", jobName)
		result, err := sched.RunJob(cmd.Context(), jobName)
		if err != nil {
			return err
		}

		fmt.Printf("   run %s, %d attempt(s), %s\n", result.RunID, result.Attempts, result.Duration.Round(time.Millisecond))
		if !result.Success {
			return fmt.Errorf("job %s failed: %s", jobName, result.Error)
		}
		PrintSuccess(os.Stdout, fmt.Sprintf("%s completed", jobName))
		return nil
	})
}
