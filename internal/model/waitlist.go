package model

import "time"

// WaitlistStatus is the lifecycle state of a watched lesson.
type WaitlistStatus string

const (
	WaitlistStatusActive    WaitlistStatus = "active"
	WaitlistStatusPaused    WaitlistStatus = "paused"
	WaitlistStatusExpired   WaitlistStatus = "expired"
	WaitlistStatusCancelled WaitlistStatus = "cancelled"
	WaitlistStatusCompleted WaitlistStatus = "completed"
)

// Terminal reports whether no further transitions are allowed.
func (s WaitlistStatus) Terminal() bool {
	switch s {
	case WaitlistStatusExpired, WaitlistStatusCancelled, WaitlistStatusCompleted:
		return true
	}
	return false
}

// Waitlist is one user-watched lesson occurrence. The lesson snapshot
// fields are denormalized so entries render without a join against the
// lessons table, which is cleared on every run.
type Waitlist struct {
	UserID     string `gorm:"primaryKey;size:64"`
	WaitlistID string `gorm:"primaryKey;size:192"` // studioCode#date#startTime#className

	StudioCode string `gorm:"size:16;not null;index"`
	StudioName string `gorm:"size:128"`
	LessonDate string `gorm:"size:10;not null"` // YYYY-MM-DD
	StartTime  string `gorm:"size:5;not null"`  // HH:MM
	EndTime    string `gorm:"size:5"`
	LessonName string `gorm:"size:128;not null"`
	Instructor string `gorm:"size:64"`

	Status       WaitlistStatus `gorm:"size:16;not null;index:idx_waitlists_status_starts"`
	StartsAt     time.Time      `gorm:"not null;index:idx_waitlists_status_starts"`
	AutoResumeAt *time.Time
	ExpiresAt    time.Time `gorm:"index;not null"` // lesson time + safety buffer
	CreatedAt    time.Time
	UpdatedAt    time.Time

	Notifications []WaitlistNotification `gorm:"foreignKey:UserID,WaitlistID;references:UserID,WaitlistID"`
}

// WaitlistNotification is one sent availability alert. Append-only.
type WaitlistNotification struct {
	ID             string    `gorm:"primaryKey;size:36"`
	UserID         string    `gorm:"size:64;not null;index:idx_notifications_entry"`
	WaitlistID     string    `gorm:"size:192;not null;index:idx_notifications_entry"`
	SentAt         time.Time `gorm:"not null"`
	AvailableSlots int
	TotalSlots     int
}
