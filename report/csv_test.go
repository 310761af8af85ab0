package report

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestCSVStreamerFlushInterval(t *testing.T) {
	var buf bytes.Buffer
	streamer := newCSVStreamer(&buf)
	for i := 0; i < csvFlushEvery; i++ {
		if err := streamer.writeRow([]string{"row"}); err != nil {
			t.Fatalf("write row: %v", err)
		}
	}
	if streamer.pendingLines != 0 {
		t.Fatalf("expected pending lines reset to 0, got %d", streamer.pendingLines)
	}
	if err := streamer.writeRow([]string{"next"}); err != nil {
		t.Fatalf("write row: %v", err)
	}
	if streamer.pendingLines != 1 {
		t.Fatalf("expected pending lines 1, got %d", streamer.pendingLines)
	}
	if err := streamer.Close(); err != nil {
		t.Fatalf("close streamer: %v", err)
	}
}

func TestWriteSalesCSVIncludesMetadataAndTotals(t *testing.T) {
	rows := []SaleRow{
		{ID: 1, Date: time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC), Customer: "Asha", Amount: 5000, Profit: 2000, Method: "cash", Status: "paid", CreatedBy: 1},
		{ID: 2, Date: time.Date(2026, time.March, 11, 0, 0, 0, 0, time.UTC), Customer: "", Amount: 3000, Profit: 1200, Method: "credit", Status: "credit", CreatedBy: 2},
	}
	var buf bytes.Buffer
	from := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, time.March, 31, 0, 0, 0, 0, time.UTC)
	if err := writeSalesCSV(&buf, rows, from, to); err != nil {
		t.Fatalf("writeSalesCSV: %v", err)
	}
	content := buf.String()
	if !strings.Contains(content, "\r\n") {
		t.Fatalf("expected CRLF line endings")
	}
	if !strings.Contains(content, "# Report: Sales Report") {
		t.Fatalf("missing report comment:\n%s", content)
	}
	if !strings.Contains(content, "# Period: 2026-03-01 to 2026-03-31") {
		t.Fatalf("missing period comment:\n%s", content)
	}
	if !strings.Contains(content, "Sale ID,Date,Customer,Amount,Profit,Payment Method,Status,Created By") {
		t.Fatalf("missing header row:\n%s", content)
	}
	if !strings.Contains(content, "1,2026-03-10,Asha,5000.00,2000.00,cash,paid,1") {
		t.Fatalf("missing sale row:\n%s", content)
	}
	if !strings.Contains(content, "Totals,,,8000.00,3200.00,,,") {
		t.Fatalf("missing totals row:\n%s", content)
	}
}

func TestWriteExpendituresCSVTotals(t *testing.T) {
	rows := []ExpenditureRow{
		{ID: 1, Date: time.Date(2026, time.January, 5, 0, 0, 0, 0, time.UTC), Category: "rent", Description: "January rent", Amount: 150000, CreatedBy: 1},
		{ID: 2, Date: time.Date(2026, time.January, 9, 0, 0, 0, 0, time.UTC), Category: "supplies", Description: "Ink refills", Amount: 30000, CreatedBy: 1},
	}
	var buf bytes.Buffer
	if err := writeExpendituresCSV(&buf, rows, time.Time{}, time.Time{}); err != nil {
		t.Fatalf("writeExpendituresCSV: %v", err)
	}
	content := buf.String()
	if !strings.Contains(content, "# Period: All time") {
		t.Fatalf("missing period comment:\n%s", content)
	}
	if !strings.Contains(content, "Totals,,,,180000.00,") {
		t.Fatalf("missing totals row:\n%s", content)
	}
}
