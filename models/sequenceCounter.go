package models

import (
	"fmt"
	"time"
)

// SequenceCounter issues gap-free document numbers per (prefix, year).
type SequenceCounter struct {
	ID            uint      `json:"id" gorm:"primaryKey"`
	Prefix        string    `json:"prefix" gorm:"size:10;not null;uniqueIndex:idx_sequence_counters_prefix_year,priority:1"`
	Year          int       `json:"year" gorm:"not null;uniqueIndex:idx_sequence_counters_prefix_year,priority:2"`
	CurrentNumber int       `json:"current_number" gorm:"not null"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// FormatDocumentNumber renders PREFIX-YYYY-NNNN; the counter widens past 9999.
func FormatDocumentNumber(prefix string, year, n int) string {
	return fmt.Sprintf("%s-%d-%04d", prefix, year, n)
}
