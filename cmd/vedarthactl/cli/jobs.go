package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/thetaxjournal/accountsvedartha/internal/payroll"
	"github.com/thetaxjournal/accountsvedartha/jobs"
)

// JobsCLI wraps manual management helpers for Asynq jobs.
type JobsCLI struct {
	client    *jobs.Client
	inspector *asynq.Inspector
}

// NewJobsCLI initialises the CLI helpers using the provided Redis address.
func NewJobsCLI(redisAddr string) (*JobsCLI, error) {
	if redisAddr == "" {
		return nil, errors.New("jobs cli: redis address is required")
	}
	opt := asynq.RedisClientOpt{Addr: redisAddr}
	return &JobsCLI{client: jobs.NewClient(opt), inspector: asynq.NewInspector(opt)}, nil
}

// Close releases underlying resources.
func (c *JobsCLI) Close() error {
	var err error
	if c.inspector != nil {
		if closeErr := c.inspector.Close(); closeErr != nil {
			err = closeErr
		}
	}
	if c.client != nil {
		if closeErr := c.client.Close(); closeErr != nil {
			err = closeErr
		}
	}
	return err
}

// TriggerPayroll enqueues a payroll run for month.
func (c *JobsCLI) TriggerPayroll(ctx context.Context, month string, corrective bool) (string, error) {
	if c == nil || c.client == nil {
		return "", errors.New("jobs cli: client not configured")
	}
	return c.client.EnqueuePayrollRun(ctx, payroll.RunInput{Month: month, Corrective: corrective, RequestedBy: "vedarthactl"})
}

// QueueStats summarises the current queue state.
type QueueStats struct {
	Queue     string `json:"queue"`
	Pending   int    `json:"pending"`
	Active    int    `json:"active"`
	Scheduled int    `json:"scheduled"`
	Retry     int    `json:"retry"`
	Archived  int    `json:"archived"`
}

// InspectQueue reports the metrics of the payroll queue.
func (c *JobsCLI) InspectQueue(ctx context.Context) (QueueStats, error) {
	if c == nil || c.inspector == nil {
		return QueueStats{}, errors.New("jobs cli: inspector not configured")
	}
	stats := QueueStats{Queue: jobs.QueuePayroll}
	info, err := c.inspector.GetQueueInfo(jobs.QueuePayroll)
	if errors.Is(err, asynq.ErrQueueNotFound) {
		return stats, nil
	}
	if err != nil {
		return QueueStats{}, err
	}
	if info != nil {
		stats.Pending = info.Pending
		stats.Active = info.Active
		stats.Scheduled = info.Scheduled
		stats.Retry = info.Retry
		stats.Archived = info.Archived
	}
	return stats, nil
}

func newJobsCommand() *cobra.Command {
	var redisAddr string
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Queue and inspect background payroll runs",
	}
	cmd.PersistentFlags().StringVar(&redisAddr, "redis", os.Getenv("REDIS_ADDR"), "Redis address (default $REDIS_ADDR)")

	var (
		month      string
		corrective bool
	)
	run := &cobra.Command{
		Use:   "run-payroll",
		Short: "Queue a payroll run for --month",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := NewJobsCLI(redisAddr)
			if err != nil {
				return err
			}
			defer c.Close()
			id, err := c.TriggerPayroll(cmd.Context(), month, corrective)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "queued %s\n", id)
			return err
		},
	}
	run.Flags().StringVar(&month, "month", "", "month to run, YYYY-MM")
	run.Flags().BoolVar(&corrective, "corrective", false, "recommit an already committed month")
	_ = run.MarkFlagRequired("month")

	stats := &cobra.Command{
		Use:   "stats",
		Short: "Show payroll queue counters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := NewJobsCLI(redisAddr)
			if err != nil {
				return err
			}
			defer c.Close()
			s, err := c.InspectQueue(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), s)
		},
	}
	cmd.AddCommand(run, stats)
	return cmd
}
