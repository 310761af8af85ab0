package shared

import "fmt"

// ReminderDedupeKey builds redis keys that suppress duplicate debt
// reminders within a send window.
func ReminderDedupeKey(debtID int64, channel string) string {
	return fmt.Sprintf("notify:debt:%d:%s", debtID, channel)
}
