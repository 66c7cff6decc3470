package feed

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// CSVFeeder reads ticks from a CSV file with a header row and
// timestamp,symbol,price columns. Timestamps are RFC3339 or integer
// unix milliseconds.
type CSVFeeder struct {
	reader *csv.Reader
	file   *os.File
	line   int
}

// NewCSVFeeder opens the file and consumes the header row.
func NewCSVFeeder(filePath string) (*CSVFeeder, error) {
	// #nosec G304 -- file path is operator provided via CLI flags.
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open csv file: %w", err)
	}

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = 3
	if _, err := reader.Read(); err != nil {
		file.Close()
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	return &CSVFeeder{
		reader: reader,
		file:   file,
		line:   1,
	}, nil
}

// Next returns the next tick, or io.EOF at end of file.
func (f *CSVFeeder) Next() (*Tick, error) {
	record, err := f.reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("read csv record: %w", err)
	}
	f.line++

	ts, err := parseTimestamp(record[0])
	if err != nil {
		return nil, fmt.Errorf("line %d: %w", f.line, err)
	}
	price, err := decimal.NewFromString(record[2])
	if err != nil {
		return nil, fmt.Errorf("line %d: parse price %q: %w", f.line, record[2], err)
	}

	return &Tick{
		Timestamp: ts,
		Symbol:    record[1],
		Price:     price,
	}, nil
}

// Close releases the underlying file.
func (f *CSVFeeder) Close() error {
	return f.file.Close()
}

func parseTimestamp(raw string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		return ts, nil
	}
	millis, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q", raw)
	}
	return time.UnixMilli(millis).UTC(), nil
}
