package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/duka-erp/duka-erp/internal/notify"
	"github.com/duka-erp/duka-erp/internal/shared"
)

type fakeReminderSource struct {
	reminders map[int64]notify.Reminder
	sent      []int64
}

func (f *fakeReminderSource) ReminderForDebt(_ context.Context, debtID int64) (notify.Reminder, error) {
	reminder, ok := f.reminders[debtID]
	if !ok {
		return notify.Reminder{}, shared.ErrNotFound
	}
	return reminder, nil
}

func (f *fakeReminderSource) OverdueReminders(context.Context) ([]notify.Reminder, error) {
	var out []notify.Reminder
	for _, r := range f.reminders {
		out = append(out, r)
	}
	return out, nil
}

type fakeGateway struct {
	sent []string
	fail bool
}

func (f *fakeGateway) Send(_ context.Context, _ notify.Channel, phone, _ string) error {
	if f.fail {
		return errors.New("gateway refused")
	}
	f.sent = append(f.sent, phone)
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestNewDebtReminderTaskCarriesDedupeID(t *testing.T) {
	task, opts, err := NewDebtReminderTask(DebtReminderPayload{DebtID: 42, Channel: "sms"})
	require.NoError(t, err)
	require.Equal(t, TaskDebtReminder, task.Type())

	var payload DebtReminderPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	require.Equal(t, int64(42), payload.DebtID)
	require.Equal(t, "sms", payload.Channel)

	// The task id is the dedupe key, so a second enqueue within the
	// retention window conflicts instead of duplicating the reminder.
	wantID := asynq.TaskID(shared.ReminderDedupeKey(42, "sms"))
	require.Contains(t, opts, wantID)
}

func TestHandleDebtReminderDelivers(t *testing.T) {
	source := &fakeReminderSource{reminders: map[int64]notify.Reminder{
		7: {DebtID: 7, CustomerName: "Asha", Phone: "+255712000001", Amount: 5000, Remaining: 5000, DueDate: time.Now().Add(24 * time.Hour)},
	}}
	gateway := &fakeGateway{}
	notifier := notify.NewService(source, gateway, nil, discardLogger(), "+255")
	tasks := NewTasks(notifier, source, nil, discardLogger())

	task, _, err := NewDebtReminderTask(DebtReminderPayload{DebtID: 7, Channel: "sms"})
	require.NoError(t, err)
	require.NoError(t, tasks.HandleDebtReminder(context.Background(), task))
	require.Equal(t, []string{"+255712000001"}, gateway.sent)
}

func TestHandleDebtReminderSkipsBadPayload(t *testing.T) {
	tasks := NewTasks(nil, nil, nil, discardLogger())

	task := asynq.NewTask(TaskDebtReminder, []byte("{"))
	err := tasks.HandleDebtReminder(context.Background(), task)
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestHandleDebtReminderSwallowsMissingDebt(t *testing.T) {
	source := &fakeReminderSource{reminders: map[int64]notify.Reminder{}}
	notifier := notify.NewService(source, &fakeGateway{}, nil, discardLogger(), "+255")
	tasks := NewTasks(notifier, source, nil, discardLogger())

	task, _, err := NewDebtReminderTask(DebtReminderPayload{DebtID: 99, Channel: "sms"})
	require.NoError(t, err)
	require.NoError(t, tasks.HandleDebtReminder(context.Background(), task))
}

func TestHandleDebtReminderSwallowsGatewayFailure(t *testing.T) {
	source := &fakeReminderSource{reminders: map[int64]notify.Reminder{
		7: {DebtID: 7, CustomerName: "Asha", Phone: "+255712000001", Amount: 5000, Remaining: 5000, DueDate: time.Now()},
	}}
	notifier := notify.NewService(source, &fakeGateway{fail: true}, nil, discardLogger(), "+255")
	tasks := NewTasks(notifier, source, nil, discardLogger())

	task, _, err := NewDebtReminderTask(DebtReminderPayload{DebtID: 7, Channel: "sms"})
	require.NoError(t, err)
	require.NoError(t, tasks.HandleDebtReminder(context.Background(), task))
}
