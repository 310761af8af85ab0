package report

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

const (
	csvFlushEvery = 200
	csvBufferSize = 32 * 1024
)

type csvStreamer struct {
	buf          *bufio.Writer
	csv          *csv.Writer
	flushEvery   int
	pendingLines int
}

func newCSVStreamer(w io.Writer) *csvStreamer {
	buf := bufio.NewWriterSize(w, csvBufferSize)
	writer := csv.NewWriter(buf)
	writer.UseCRLF = true
	return &csvStreamer{buf: buf, csv: writer, flushEvery: csvFlushEvery}
}

func (s *csvStreamer) writeComment(line string) error {
	if s == nil || s.buf == nil {
		return fmt.Errorf("csv streamer not initialised")
	}
	if !strings.HasSuffix(line, "\r\n") {
		line = strings.TrimSuffix(line, "\n")
		line += "\r\n"
	}
	if _, err := s.buf.WriteString(line); err != nil {
		return err
	}
	return nil
}

func (s *csvStreamer) writeRow(row []string) error {
	if s == nil || s.csv == nil {
		return fmt.Errorf("csv streamer not initialised")
	}
	if err := s.csv.Write(row); err != nil {
		return err
	}
	s.pendingLines++
	if s.flushEvery > 0 && s.pendingLines >= s.flushEvery {
		return s.Flush()
	}
	return nil
}

func (s *csvStreamer) Flush() error {
	if s == nil || s.csv == nil || s.buf == nil {
		return fmt.Errorf("csv streamer not initialised")
	}
	s.csv.Flush()
	if err := s.csv.Error(); err != nil {
		return err
	}
	if err := s.buf.Flush(); err != nil {
		return err
	}
	s.pendingLines = 0
	return nil
}

func (s *csvStreamer) Close() error {
	return s.Flush()
}

func writeSalesCSV(w io.Writer, rows []SaleRow, from, to time.Time) error {
	streamer := newCSVStreamer(w)
	if err := writeMetadata(streamer, "Sales Report", from, to); err != nil {
		return err
	}
	if err := streamer.writeRow([]string{"Sale ID", "Date", "Customer", "Amount", "Profit", "Payment Method", "Status", "Created By"}); err != nil {
		return err
	}
	var totalAmount, totalProfit float64
	for _, row := range rows {
		if err := streamer.writeRow([]string{
			strconv.FormatInt(row.ID, 10),
			row.Date.Format("2006-01-02"),
			row.Customer,
			formatDecimal(row.Amount),
			formatDecimal(row.Profit),
			row.Method,
			row.Status,
			strconv.FormatInt(row.CreatedBy, 10),
		}); err != nil {
			return err
		}
		totalAmount += row.Amount
		totalProfit += row.Profit
	}
	if err := streamer.writeRow([]string{"", "", "", "", "", "", "", ""}); err != nil {
		return err
	}
	if err := streamer.writeRow([]string{"Totals", "", "", formatDecimal(totalAmount), formatDecimal(totalProfit), "", "", ""}); err != nil {
		return err
	}
	return streamer.Close()
}

func writeExpendituresCSV(w io.Writer, rows []ExpenditureRow, from, to time.Time) error {
	streamer := newCSVStreamer(w)
	if err := writeMetadata(streamer, "Expenditure Report", from, to); err != nil {
		return err
	}
	if err := streamer.writeRow([]string{"ID", "Date", "Category", "Description", "Amount", "Created By"}); err != nil {
		return err
	}
	var total float64
	for _, row := range rows {
		if err := streamer.writeRow([]string{
			strconv.FormatInt(row.ID, 10),
			row.Date.Format("2006-01-02"),
			row.Category,
			row.Description,
			formatDecimal(row.Amount),
			strconv.FormatInt(row.CreatedBy, 10),
		}); err != nil {
			return err
		}
		total += row.Amount
	}
	if err := streamer.writeRow([]string{"", "", "", "", "", ""}); err != nil {
		return err
	}
	if err := streamer.writeRow([]string{"Totals", "", "", "", formatDecimal(total), ""}); err != nil {
		return err
	}
	return streamer.Close()
}

func writeMetadata(streamer *csvStreamer, reportName string, from, to time.Time) error {
	if err := streamer.writeComment(fmt.Sprintf("# Report: %s", reportName)); err != nil {
		return err
	}
	rangeLine := "All time"
	switch {
	case !from.IsZero() && !to.IsZero():
		rangeLine = fmt.Sprintf("%s to %s", from.Format("2006-01-02"), to.Format("2006-01-02"))
	case !from.IsZero():
		rangeLine = "From " + from.Format("2006-01-02")
	case !to.IsZero():
		rangeLine = "Until " + to.Format("2006-01-02")
	}
	return streamer.writeComment(fmt.Sprintf("# Period: %s", rangeLine))
}

func formatDecimal(v float64) string {
	return fmt.Sprintf("%.2f", v)
}
