package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/thetaxjournal/accountsvedartha/internal/jobs"
	"github.com/thetaxjournal/accountsvedartha/internal/payroll"
	"github.com/thetaxjournal/accountsvedartha/internal/shared"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// QueuePayroll isolates payroll runs from other work.
	QueuePayroll = "payroll"
	// TaskPayrollRun computes and commits one month of payroll.
	TaskPayrollRun = "payroll:run"
)

// PayrollRunPayload mirrors payroll.RunInput on the wire.
type PayrollRunPayload struct {
	Month       string `json:"month"`
	Corrective  bool   `json:"corrective"`
	RequestedBy string `json:"requested_by"`
}

// NewPayrollRunTask constructs an Asynq task for a payroll run. The task id is
// derived from the month so a month cannot be queued twice at once.
func NewPayrollRunTask(in payroll.RunInput) (*asynq.Task, error) {
	month, err := shared.ParseMonth(in.Month)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(PayrollRunPayload{Month: month.String(), Corrective: in.Corrective, RequestedBy: in.RequestedBy})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPayrollRun, body,
		asynq.Queue(QueuePayroll),
		asynq.TaskID(PayrollRunTaskID(month.String())),
		asynq.MaxRetry(5),
	), nil
}

// PayrollRunTaskID is the asynq task id of the run for month ("YYYY-MM").
func PayrollRunTaskID(month string) string {
	return TaskPayrollRun + ":" + month
}

// PayrollRunner is the slice of payroll.Service the job needs.
type PayrollRunner interface {
	RunPayroll(ctx context.Context, in payroll.RunInput) (payroll.RunResult, error)
}

// PayrollRunJob executes queued payroll runs.
type PayrollRunJob struct {
	runner  PayrollRunner
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
}

// NewPayrollRunJob constructs the job handler. metrics may be nil.
func NewPayrollRunJob(runner PayrollRunner, logger *slog.Logger, metrics *jobmetrics.Metrics) *PayrollRunJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &PayrollRunJob{runner: runner, logger: logger, metrics: metrics}
}

// Handle processes TaskPayrollRun tasks. Rejected inputs and missing settings are
// not retried; a held month lock is.
func (j *PayrollRunJob) Handle(ctx context.Context, t *asynq.Task) error {
	tracker := j.metrics.Track(TaskPayrollRun)
	var payload PayrollRunPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return tracker.End(fmt.Errorf("payroll run payload: %v: %w", err, asynq.SkipRetry))
	}

	result, err := j.runner.RunPayroll(ctx, payroll.RunInput{
		Month:       payload.Month,
		Corrective:  payload.Corrective,
		RequestedBy: payload.RequestedBy,
	})
	if err != nil {
		if errors.Is(err, shared.ErrValidation) || errors.Is(err, shared.ErrConfiguration) {
			j.logger.Warn("payroll run rejected", slog.String("month", payload.Month), slog.Any("error", err))
			return tracker.End(fmt.Errorf("%w: %w", err, asynq.SkipRetry))
		}
		return tracker.End(err)
	}
	j.logger.Info("payroll run completed",
		slog.String("month", payload.Month),
		slog.String("run_id", result.Run.ID),
		slog.Int("items", len(result.Items)),
	)
	return tracker.End(nil)
}
