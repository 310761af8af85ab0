package notify

import (
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/duka-erp/duka-erp/internal/debts"
)

// Reminder carries everything needed to compose one debt reminder.
type Reminder struct {
	DebtID       int64
	CustomerName string
	Phone        string
	Amount       float64
	Remaining    float64
	DueDate      time.Time
	Status       debts.Status
	Overdue      bool
}

var amounts = message.NewPrinter(language.English)

func tzs(v float64) string {
	return amounts.Sprintf("TZS %.0f", v)
}

// Message renders the Swahili reminder for the channel. WhatsApp gets the
// decorated markdown variant, SMS the plain one.
func (r Reminder) Message(channel Channel) string {
	if channel == ChannelWhatsApp {
		return r.whatsAppMessage()
	}
	return r.smsMessage()
}

func (r Reminder) smsMessage() string {
	due := r.DueDate.Format("02/01/2006")
	switch {
	case r.Status == debts.StatusPaid:
		return amounts.Sprintf("Habari %s, deni lako la %s limekwisha lipwa. Asante kwa kufanya biashara nasi.", r.CustomerName, tzs(r.Amount))
	case r.Overdue:
		return amounts.Sprintf("Habari %s, deni lako la %s lilikwisha muda wake tarehe %s. Tafadhali lipa haraka ili tusiwe na shida.", r.CustomerName, tzs(r.Remaining), due)
	default:
		return amounts.Sprintf("Habari %s, una deni la %s linalotakiwa kulipwa kabla ya %s. Tafadhali lipa kwa wakati.", r.CustomerName, tzs(r.Remaining), due)
	}
}

func (r Reminder) whatsAppMessage() string {
	due := r.DueDate.Format("02/01/2006")
	switch {
	case r.Status == debts.StatusPaid:
		return amounts.Sprintf("🔔 *Habari %s*\n\n✅ Deni lako la *%s* limekwisha lipwa.\n\nAsante kwa kufanya biashara nasi! 🙏", r.CustomerName, tzs(r.Amount))
	case r.Overdue:
		return amounts.Sprintf("🚨 *Habari %s*\n\n⚠️ Deni lako la *%s* lilikwisha muda wake tarehe %s.\n\nTafadhali lipa haraka ili tusiwe na shida. 🏦", r.CustomerName, tzs(r.Remaining), due)
	default:
		return amounts.Sprintf("💰 *Habari %s*\n\nUna deni la *%s* linalotakiwa kulipwa kabla ya %s.\n\nTafadhali lipa kwa wakati. ⏰", r.CustomerName, tzs(r.Remaining), due)
	}
}
