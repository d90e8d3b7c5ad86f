package model

import "time"

// Lesson represents one class occurrence at a studio.
// Identity is the (StudioCode, StartsAt) pair; scrapes overwrite in place.
type Lesson struct {
	StudioCode  string    `gorm:"primaryKey;size:16"`
	StartsAt    time.Time `gorm:"primaryKey"`
	LessonDate  string    `gorm:"size:10;index;not null"` // YYYY-MM-DD
	StartTime   string    `gorm:"size:5;not null"`        // HH:MM
	EndTime     string    `gorm:"size:5"`
	Name        string    `gorm:"size:128;not null"`
	Instructor  string    `gorm:"size:64"`
	StatusText  string    `gorm:"size:64"`
	Available   bool      `gorm:"not null"`
	Program     string    `gorm:"size:16;index"`
	LastUpdated time.Time `gorm:"not null"`
	ExpiresAt   time.Time `gorm:"index;not null"` // TTL backstop, a few days past the lesson date
}
