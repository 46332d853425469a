package ledger

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Record is the database row of an attendance entry.
type Record struct {
	ID         uint   `gorm:"primaryKey"`
	IdentityID string `gorm:"index;not null"`
	Name       string
	Dept       string
	Subject    string    `gorm:"index;not null"`
	Timestamp  time.Time `gorm:"index"`
}

// TableName overrides the default table name.
func (Record) TableName() string {
	return "attendance"
}

// SQLLedger stores entries in a SQLite database.
type SQLLedger struct {
	db *gorm.DB
}

// NewSQLLedger opens or creates the database at path and migrates the schema.
func NewSQLLedger(path string) (*SQLLedger, error) {
	if path == "" {
		return nil, fmt.Errorf("ledger path is empty")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create ledger directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite ledger: %w", err)
	}
	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, fmt.Errorf("failed to auto-migrate SQLite ledger: %w", err)
	}
	return &SQLLedger{db: db}, nil
}

// Append inserts one entry.
func (l *SQLLedger) Append(entry Entry) error {
	if err := entry.validate(); err != nil {
		return err
	}
	rec := Record{
		IdentityID: entry.ID,
		Name:       entry.Name,
		Dept:       entry.Group,
		Subject:    entry.Subject,
		Timestamp:  entry.Timestamp,
	}
	if err := l.db.Create(&rec).Error; err != nil {
		return fmt.Errorf("failed to save attendance: %w", err)
	}
	return nil
}

// List returns every entry in insertion order.
func (l *SQLLedger) List() ([]Entry, error) {
	var recs []Record
	if err := l.db.Order("id").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("failed to list attendance: %w", err)
	}
	entries := make([]Entry, 0, len(recs))
	for _, r := range recs {
		entries = append(entries, Entry{
			ID:        r.IdentityID,
			Name:      r.Name,
			Group:     r.Dept,
			Subject:   r.Subject,
			Timestamp: r.Timestamp,
		})
	}
	return entries, nil
}

// Close closes the database connection.
func (l *SQLLedger) Close() error {
	sqlDB, err := l.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
