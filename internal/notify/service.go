package notify

import (
	"context"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/duka-erp/duka-erp/internal/observability"
	"github.com/duka-erp/duka-erp/internal/shared"
)

// ReminderSource abstracts reminder row loading for the service.
type ReminderSource interface {
	ReminderForDebt(ctx context.Context, debtID int64) (Reminder, error)
	OverdueReminders(ctx context.Context) ([]Reminder, error)
}

// Concurrent sends towards the gateway during a bulk run.
const bulkSendLimit = 5

// Service sends debt reminders through the gateway.
type Service struct {
	source      ReminderSource
	gateway     Gateway
	metrics     *observability.Metrics
	logger      *slog.Logger
	countryCode string
}

// NewService builds Service. metrics may be nil.
func NewService(source ReminderSource, gateway Gateway, metrics *observability.Metrics, logger *slog.Logger, countryCode string) *Service {
	return &Service{source: source, gateway: gateway, metrics: metrics, logger: logger, countryCode: countryCode}
}

// SendReminder delivers one reminder for a debt over the channel.
func (s *Service) SendReminder(ctx context.Context, debtID int64, channel Channel) error {
	if !ValidChannel(channel) {
		return &shared.ValidationError{Field: "channel", Reason: "must be sms or whatsapp"}
	}
	reminder, err := s.source.ReminderForDebt(ctx, debtID)
	if err != nil {
		return err
	}
	return s.deliver(ctx, reminder, channel)
}

// BulkResult summarises a bulk reminder run.
type BulkResult struct {
	Total   int `json:"total"`
	Sent    int `json:"sent"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// SendOverdueReminders fans reminders out to every overdue debtor with a
// phone number. Individual failures are counted, never fatal.
func (s *Service) SendOverdueReminders(ctx context.Context, channel Channel) (BulkResult, error) {
	if !ValidChannel(channel) {
		return BulkResult{}, &shared.ValidationError{Field: "channel", Reason: "must be sms or whatsapp"}
	}
	reminders, err := s.source.OverdueReminders(ctx)
	if err != nil {
		return BulkResult{}, err
	}
	var sent, skipped, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(bulkSendLimit)
	for _, reminder := range reminders {
		g.Go(func() error {
			if reminder.Phone == "" {
				skipped.Add(1)
				return nil
			}
			if err := s.deliver(gctx, reminder, channel); err != nil {
				failed.Add(1)
				if s.logger != nil {
					s.logger.Warn("reminder delivery failed", "debt_id", reminder.DebtID, "channel", channel, "err", err)
				}
				return nil
			}
			sent.Add(1)
			return nil
		})
	}
	_ = g.Wait()
	return BulkResult{
		Total:   len(reminders),
		Sent:    int(sent.Load()),
		Skipped: int(skipped.Load()),
		Failed:  int(failed.Load()),
	}, nil
}

func (s *Service) deliver(ctx context.Context, reminder Reminder, channel Channel) error {
	if reminder.Phone == "" {
		return &shared.ValidationError{Field: "phone", Reason: "customer has no phone number"}
	}
	phone, err := NormalizePhone(reminder.Phone, s.countryCode)
	if err != nil {
		return err
	}
	err = s.gateway.Send(ctx, channel, phone, reminder.Message(channel))
	if s.metrics != nil {
		outcome := "sent"
		if err != nil {
			outcome = "failed"
		}
		s.metrics.RemindersSent.WithLabelValues(string(channel), outcome).Inc()
	}
	return err
}
