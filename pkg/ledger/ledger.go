// Package ledger records attendance entries written after a successful
// verification.
package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/MrCodeEU/faceattend/pkg/config"
)

// Backend names.
const (
	BackendCSV    = "csv"
	BackendSQLite = "sqlite"
)

// TimeLayout is the timestamp format of the CSV ledger.
const TimeLayout = "2006-01-02 15:04:05"

// ErrInvalidEntry is returned when an entry lacks an identity or subject.
var ErrInvalidEntry = errors.New("invalid attendance entry")

// Entry is one attendance row.
type Entry struct {
	ID        string
	Name      string
	Group     string
	Subject   string
	Timestamp time.Time
}

func (e Entry) validate() error {
	if e.ID == "" || e.Subject == "" {
		return fmt.Errorf("%w: id=%q subject=%q", ErrInvalidEntry, e.ID, e.Subject)
	}
	return nil
}

// Ledger is an append-only attendance log.
type Ledger interface {
	Append(entry Entry) error
	List() ([]Entry, error)
	Close() error
}

// New opens the ledger backend selected in cfg.
func New(cfg config.LedgerConfig) (Ledger, error) {
	switch cfg.Backend {
	case BackendCSV, "":
		return NewCSVLedger(cfg.Path)
	case BackendSQLite:
		return NewSQLLedger(cfg.Path)
	default:
		return nil, fmt.Errorf("unknown ledger backend: %s", cfg.Backend)
	}
}
