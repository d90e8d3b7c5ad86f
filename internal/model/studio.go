package model

import "time"

// BatchStatus is the per-studio state within a daily scrape run.
type BatchStatus string

const (
	BatchStatusUnset      BatchStatus = ""
	BatchStatusProcessing BatchStatus = "processing"
	BatchStatusCompleted  BatchStatus = "completed"
	BatchStatusFailed     BatchStatus = "failed"
)

// Terminal reports whether a studio in this status has exited the run,
// given the retry cap.
func (s BatchStatus) Terminal(retryCount, retryCap int) bool {
	switch s {
	case BatchStatusCompleted:
		return true
	case BatchStatusFailed:
		return retryCount >= retryCap
	}
	return false
}

// Studio represents one scrape-able studio location.
type Studio struct {
	Code            string `gorm:"primaryKey;size:16"` // lower-cased canonical form
	Name            string `gorm:"size:128;not null"`
	BatchStatus     BatchStatus
	RetryCount      int `gorm:"not null;default:0"`
	LastError       string
	LastProcessedAt *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
