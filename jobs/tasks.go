package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/duka-erp/duka-erp/internal/notify"
	"github.com/duka-erp/duka-erp/internal/shared"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskDebtReminder delivers one debt reminder over a channel.
	TaskDebtReminder = "debt:reminder"
	// TaskOverdueScan fans reminder tasks out over every overdue debt.
	TaskOverdueScan = "debt:overdue_scan"
)

// DebtReminderPayload identifies the debt and channel for one reminder.
type DebtReminderPayload struct {
	DebtID  int64  `json:"debt_id"`
	Channel string `json:"channel"`
}

// NewDebtReminderTask constructs the reminder task. The task id doubles as
// a dedupe key so a debt is reminded once per channel per window.
func NewDebtReminderTask(payload DebtReminderPayload) (*asynq.Task, []asynq.Option, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, err
	}
	opts := []asynq.Option{
		asynq.Queue(QueueDefault),
		asynq.TaskID(shared.ReminderDedupeKey(payload.DebtID, payload.Channel)),
		asynq.MaxRetry(3),
	}
	return asynq.NewTask(TaskDebtReminder, data), opts, nil
}

// NewOverdueScanTask constructs the nightly scan task.
func NewOverdueScanTask() *asynq.Task {
	return asynq.NewTask(TaskOverdueScan, nil)
}

// Tasks holds the dependencies the job handlers run against.
type Tasks struct {
	notifier *notify.Service
	source   notify.ReminderSource
	client   *Client
	logger   *slog.Logger
}

// NewTasks constructs Tasks.
func NewTasks(notifier *notify.Service, source notify.ReminderSource, client *Client, logger *slog.Logger) *Tasks {
	return &Tasks{notifier: notifier, source: source, client: client, logger: logger}
}

// HandleDebtReminder processes TaskDebtReminder tasks. A vanished debt or
// a gateway refusal is logged and swallowed; retrying cannot fix either.
func (t *Tasks) HandleDebtReminder(ctx context.Context, task *asynq.Task) error {
	var payload DebtReminderPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	err := t.notifier.SendReminder(ctx, payload.DebtID, notify.Channel(payload.Channel))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, shared.ErrNotFound), errors.Is(err, shared.ErrValidation):
		t.logger.Warn("debt reminder skipped", "debt_id", payload.DebtID, "err", err)
		return nil
	default:
		t.logger.Warn("debt reminder delivery failed", "debt_id", payload.DebtID, "channel", payload.Channel, "err", err)
		return nil
	}
}

// HandleOverdueScan enqueues one reminder task per overdue debt.
func (t *Tasks) HandleOverdueScan(ctx context.Context, _ *asynq.Task) error {
	reminders, err := t.source.OverdueReminders(ctx)
	if err != nil {
		return err
	}
	enqueued := 0
	for _, reminder := range reminders {
		_, err := t.client.EnqueueDebtReminder(ctx, DebtReminderPayload{DebtID: reminder.DebtID, Channel: string(notify.ChannelSMS)})
		switch {
		case err == nil:
			enqueued++
		case errors.Is(err, asynq.ErrTaskIDConflict):
			// Already queued this window.
		default:
			t.logger.Warn("enqueue reminder failed", "debt_id", reminder.DebtID, "err", err)
		}
	}
	t.logger.Info("overdue scan complete", "overdue", len(reminders), "enqueued", enqueued)
	return nil
}
