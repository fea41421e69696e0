// Package export renders a submission's error ledger as a downloadable
// spreadsheet so submitters can fix findings in the tool they uploaded from.
package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/US-JOET/ev-chart-open-source-sub001/internal/domain"
	"github.com/US-JOET/ev-chart-open-source-sub001/internal/repository"
)

// Format selects the spreadsheet flavor of a ledger export.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

var ledgerHeaders = []string{"error_row", "header_name", "description", "logged_at"}

// LedgerExporter streams a submission's ledger entries to a writer.
type LedgerExporter struct {
	ledger repository.LedgerRepository
}

// NewLedgerExporter creates a LedgerExporter over the given ledger store.
func NewLedgerExporter(ledger repository.LedgerRepository) *LedgerExporter {
	return &LedgerExporter{ledger: ledger}
}

// ContentType returns the MIME type for the format.
func ContentType(format Format) string {
	if format == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv"
}

// FileName builds a download name for the submission's ledger export.
func FileName(submissionID uuid.UUID, format Format) string {
	return fmt.Sprintf("submission-%s-errors.%s", submissionID.String(), format)
}

// Write renders the submission's ledger in the requested format.
func (e *LedgerExporter) Write(ctx context.Context, w io.Writer, submissionID uuid.UUID, format Format) error {
	entries, err := e.ledger.ListBySubmission(ctx, submissionID)
	if err != nil {
		return fmt.Errorf("loading error ledger: %w", err)
	}

	if format == FormatXLSX {
		return writeXLSX(w, entries)
	}
	return writeCSV(w, entries)
}

// ParseFormat maps a request parameter to a Format, defaulting to CSV.
func ParseFormat(raw string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "csv":
		return FormatCSV, nil
	case "xlsx":
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", raw)
	}
}

func writeCSV(w io.Writer, entries []domain.LedgerEntry) error {
	csvWriter := csv.NewWriter(w)
	if err := csvWriter.Write(ledgerHeaders); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, entry := range entries {
		if err := csvWriter.Write(ledgerRow(entry)); err != nil {
			return fmt.Errorf("write ledger row: %w", err)
		}
	}
	csvWriter.Flush()
	if err := csvWriter.Error(); err != nil {
		return fmt.Errorf("flush export: %w", err)
	}
	return nil
}

func writeXLSX(w io.Writer, entries []domain.LedgerEntry) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	sheet := f.GetSheetName(0)

	header := make([]any, len(ledgerHeaders))
	for i, h := range ledgerHeaders {
		header[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, entry := range entries {
		row := ledgerRow(entry)
		cells := make([]any, len(row))
		for c, v := range row {
			cells[c] = v
		}
		axis := fmt.Sprintf("A%d", i+2)
		if err := f.SetSheetRow(sheet, axis, &cells); err != nil {
			return fmt.Errorf("write ledger row: %w", err)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return fmt.Errorf("render workbook: %w", err)
	}
	if _, err := w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("stream workbook: %w", err)
	}
	return nil
}

func ledgerRow(entry domain.LedgerEntry) []string {
	row := ""
	if entry.ErrorRow != nil {
		row = strconv.Itoa(*entry.ErrorRow)
	}
	logged := ""
	if !entry.CreatedAt.IsZero() {
		logged = entry.CreatedAt.UTC().Format("2006-01-02T15:04:05Z")
	}
	return []string{row, entry.HeaderName, entry.Description, logged}
}
