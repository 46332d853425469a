package ledger

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Header is the first row of a CSV ledger.
var Header = []string{"ID", "Name", "Dept", "Subject", "Timestamp"}

// CSVLedger appends entries to a CSV file, writing Header when the file is
// created.
type CSVLedger struct {
	mu   sync.Mutex
	path string
}

// NewCSVLedger prepares a CSV ledger at path. The file itself is created on
// the first Append.
func NewCSVLedger(path string) (*CSVLedger, error) {
	if path == "" {
		return nil, fmt.Errorf("ledger path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create ledger directory: %w", err)
	}
	return &CSVLedger{path: path}, nil
}

// Path returns the CSV file path.
func (l *CSVLedger) Path() string {
	return l.path
}

// Append writes one row.
func (l *CSVLedger) Append(entry Entry) error {
	if err := entry.validate(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open ledger: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat ledger: %w", err)
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(Header); err != nil {
			return fmt.Errorf("failed to write ledger header: %w", err)
		}
	}
	row := []string{entry.ID, entry.Name, entry.Group, entry.Subject, entry.Timestamp.Format(TimeLayout)}
	if err := w.Write(row); err != nil {
		return fmt.Errorf("failed to write ledger row: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to write ledger row: %w", err)
	}
	return f.Sync()
}

// List reads every row in file order. A missing file is an empty ledger.
func (l *CSVLedger) List() ([]Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []Entry{}, nil
		}
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(Header)

	entries := []Entry{}
	for line := 1; ; line++ {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read ledger: %w", err)
		}
		if line == 1 && rec[0] == Header[0] {
			continue
		}
		ts, err := time.ParseInLocation(TimeLayout, rec[4], time.Local)
		if err != nil {
			return nil, fmt.Errorf("ledger line %d: %w", line, err)
		}
		entries = append(entries, Entry{ID: rec[0], Name: rec[1], Group: rec[2], Subject: rec[3], Timestamp: ts})
	}
	return entries, nil
}

// Close is a no-op; the file is opened per call.
func (l *CSVLedger) Close() error {
	return nil
}
