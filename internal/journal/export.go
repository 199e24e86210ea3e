package journal

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/parquet-go/parquet-go"
)

// row is the parquet layout of an Entry
type row struct {
	ID        string `parquet:"id"`
	AtMillis  int64  `parquet:"at_unix_ms"`
	Station   string `parquet:"station"`
	Mode      string `parquet:"mode"`
	Code      string `parquet:"code"`
	MemberID  int64  `parquet:"member_id"`
	Outcome   string `parquet:"outcome"`
	Detail    string `parquet:"detail"`
	Discarded bool   `parquet:"discarded"`
	ElapsedNS int64  `parquet:"elapsed_ns"`
}

func toRow(e Entry) row {
	return row{
		ID:        e.ID,
		AtMillis:  e.At.UnixMilli(),
		Station:   e.Station,
		Mode:      e.Mode,
		Code:      e.Code,
		MemberID:  e.MemberID,
		Outcome:   string(e.Outcome),
		Detail:    e.Detail,
		Discarded: e.Discarded,
		ElapsedNS: int64(e.Elapsed),
	}
}

func (r row) entry() Entry {
	return Entry{
		ID:        r.ID,
		At:        time.UnixMilli(r.AtMillis),
		Station:   r.Station,
		Mode:      r.Mode,
		Code:      r.Code,
		MemberID:  r.MemberID,
		Outcome:   Outcome(r.Outcome),
		Detail:    r.Detail,
		Discarded: r.Discarded,
		Elapsed:   time.Duration(r.ElapsedNS),
	}
}

// ExportParquet writes entries to a parquet file at path
func ExportParquet(entries []Entry, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create export file: %w", err)
	}
	defer file.Close()

	rows := make([]row, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, toRow(e))
	}

	writer := parquet.NewGenericWriter[row](file)
	if _, err := writer.Write(rows); err != nil {
		return fmt.Errorf("failed to write entries: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finish parquet file: %w", err)
	}
	return file.Close()
}

// ReadParquet loads entries previously written by ExportParquet
func ReadParquet(path string) ([]Entry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open export file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	pf, err := parquet.OpenFile(file, info.Size())
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet file: %w", err)
	}

	reader := parquet.NewGenericReader[row](pf)
	defer reader.Close()

	rows := make([]row, reader.NumRows())
	n, err := reader.Read(rows)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to read entries: %w", err)
	}

	entries := make([]Entry, 0, n)
	for _, r := range rows[:n] {
		entries = append(entries, r.entry())
	}
	return entries, nil
}
