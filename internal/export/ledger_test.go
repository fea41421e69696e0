package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/US-JOET/ev-chart-open-source-sub001/internal/domain"
)

type stubLedger struct{ entries []domain.LedgerEntry }

func (l *stubLedger) Append(_ context.Context, entry domain.LedgerEntry) error {
	l.entries = append(l.entries, entry)
	return nil
}

func (l *stubLedger) ListBySubmission(context.Context, uuid.UUID) ([]domain.LedgerEntry, error) {
	return l.entries, nil
}

func (l *stubLedger) HasEntries(context.Context, uuid.UUID) (bool, error) {
	return len(l.entries) > 0, nil
}

func sampleEntries() []domain.LedgerEntry {
	row := 4
	return []domain.LedgerEntry{
		{
			ErrorRow:    &row,
			HeaderName:  "num_ports",
			Description: `value "many" for column num_ports is not an integer`,
			CreatedAt:   time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		},
		{
			HeaderName:  "station_name",
			Description: "required column station_name is missing from the import",
		},
	}
}

func TestLedgerExportCSV(t *testing.T) {
	exporter := NewLedgerExporter(&stubLedger{entries: sampleEntries()})

	var buf bytes.Buffer
	if err := exporter.Write(context.Background(), &buf, uuid.New(), FormatCSV); err != nil {
		t.Fatalf("export returned error: %v", err)
	}

	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("reading export: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header plus 2 rows, got %d", len(rows))
	}
	if rows[0][0] != "error_row" || rows[0][2] != "description" {
		t.Fatalf("unexpected header %v", rows[0])
	}
	if rows[1][0] != "4" || rows[1][1] != "num_ports" {
		t.Fatalf("unexpected row %v", rows[1])
	}
	if rows[2][0] != "" {
		t.Fatalf("column finding must have an empty row cell, got %v", rows[2])
	}
}

func TestLedgerExportXLSX(t *testing.T) {
	exporter := NewLedgerExporter(&stubLedger{entries: sampleEntries()})

	var buf bytes.Buffer
	if err := exporter.Write(context.Background(), &buf, uuid.New(), FormatXLSX); err != nil {
		t.Fatalf("export returned error: %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("opening workbook: %v", err)
	}
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		t.Fatalf("reading workbook: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header plus 2 rows, got %d", len(rows))
	}
	if rows[1][2] == "" || !strings.Contains(rows[1][2], "not an integer") {
		t.Fatalf("description not carried: %v", rows[1])
	}
}

func TestParseFormat(t *testing.T) {
	if f, err := ParseFormat(""); err != nil || f != FormatCSV {
		t.Fatalf("empty format must default to csv, got %v %v", f, err)
	}
	if f, err := ParseFormat("XLSX"); err != nil || f != FormatXLSX {
		t.Fatalf("format should be case-insensitive, got %v %v", f, err)
	}
	if _, err := ParseFormat("pdf"); err == nil {
		t.Fatalf("expected unsupported format error")
	}
}
