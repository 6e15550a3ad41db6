package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/aegis-pulse/internal/scheduler"
	"github.com/wonny/aegis-pulse/internal/scheduler/jobs"
)

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "스케줄러 관리",
	Long: `스케줄러를 시작하거나 작업을 관리합니다.

Subcommands:
  start   - 스케줄러 시작
  list    - 등록된 작업 목록
  run     - 특정 작업 즉시 실행 (완료까지 대기)

Example:
  go run ./cmd/pulse scheduler start
  go run ./cmd/pulse scheduler list
  go run ./cmd/pulse scheduler run retention`,
}

var (
	schedulerStartCmd = &cobra.Command{
		Use:   "start",
		Short: "스케줄러 시작",
		Long: `스케줄러를 시작하고 등록된 모든 작업을 스케줄합니다.

등록되는 작업:
- sentiment_collection: CRON_SCHEDULE (기본 매일 09:00, 전체 파이프라인)
- ranking_refresh: 15분마다 (저장된 게시물 재랭킹)
- retention: 매일 03:30 (보존 기간 지난 게시물 삭제)

스케줄러는 Ctrl+C로 종료할 수 있습니다.`,
		RunE: runScheduler,
	}

	schedulerListCmd = &cobra.Command{
		Use:   "list",
		Short: "등록된 작업 목록",
		RunE:  listJobs,
	}

	schedulerRunCmd = &cobra.Command{
		Use:   "run [job_name]",
		Short: "특정 작업 즉시 실행",
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

// registeredJobs builds the scheduled job set of one app
func registeredJobs(a *app) []scheduler.Job {
	return []scheduler.Job{
		jobs.NewSentimentCollectionJob(a.pipeline, a.cfg.Cron.Schedule, a.log),
		jobs.NewRankingRefreshJob(a.pipeline, "", a.log),
		jobs.NewRetentionJob(a.pipeline, "", a.log),
	}
}

func initScheduler(a *app) (*scheduler.Scheduler, error) {
	opts := scheduler.DefaultOptions()
	if a.cfg.Cron.RequestTimeout > 0 {
		opts.JobTimeout = a.cfg.Cron.RequestTimeout
	}

	sched := scheduler.New(opts, a.log)
	for _, job := range registeredJobs(a) {
		if err := sched.AddJob(job); err != nil {
			return nil, err
		}
	}
	return sched, nil
}

func runScheduler(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Aegis Pulse Scheduler ===")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	a, err := newApp(ctx)
	cancel()
	if err != nil {
		return err
	}
	defer a.close()

	sched, err := initScheduler(a)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	sched.Start()

	PrintSuccess("Scheduler started successfully")
	fmt.Println("\nRegistered jobs:")
	printJobs(sched)
	fmt.Println("\nPress Ctrl+C to stop")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	fmt.Println("\nShutting down scheduler...")
	sched.Stop()
	printStats(sched)

	return nil
}

func listJobs(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}

	// Schedules only: no storage connection needed
	a := &app{cfg: cfg, log: log}
	sched := scheduler.New(scheduler.DefaultOptions(), log)
	for _, job := range registeredJobs(a) {
		if err := sched.AddJob(job); err != nil {
			return err
		}
	}

	fmt.Println("Registered jobs:")
	printJobs(sched)
	return nil
}

func runJob(cmd *cobra.Command, args []string) error {
	jobName := args[0]

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	for _, job := range registeredJobs(a) {
		if job.Name() != jobName {
			continue
		}
		fmt.Printf("Running job: %s\n", jobName)
		start := time.Now()
		if err := job.Run(ctx); err != nil {
			PrintError(err.Error())
			return err
		}
		PrintSuccess(fmt.Sprintf("%s completed in %.2fs", jobName, time.Since(start).Seconds()))
		return nil
	}

	return fmt.Errorf("job %s not found", jobName)
}

func printJobs(sched *scheduler.Scheduler) {
	stats := sched.GetJobStats()
	widths := []int{22, 18, 20}
	PrintTableHeader([]string{"JOB", "SCHEDULE", "NEXT RUN"}, widths)
	for _, name := range sched.GetAllJobs() {
		st := stats[name]
		next := "-"
		if st.NextRun != nil {
			next = st.NextRun.Format("2006-01-02 15:04:05")
		}
		PrintTableRow([]string{name, st.Schedule, next}, widths)
	}
}

func printStats(sched *scheduler.Scheduler) {
	stats := sched.GetJobStats()
	names := make([]string, 0, len(stats))
	for name := range stats {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Println("Job Statistics:")
	for _, name := range names {
		st := stats[name]
		fmt.Printf("📊 %s\n", name)
		PrintKeyValue("Total Runs", fmt.Sprintf("%d", st.TotalRuns), 12)
		PrintKeyValue("Success", fmt.Sprintf("%d (%.1f%%)", st.SuccessCount, st.SuccessRate*100), 12)
		PrintKeyValue("Failures", fmt.Sprintf("%d", st.FailureCount), 12)
		if st.LastRun != nil {
			PrintKeyValue("Last Run", st.LastRun.Format("2006-01-02 15:04:05"), 12)
		}
	}
}
