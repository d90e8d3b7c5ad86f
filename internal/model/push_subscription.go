package model

import "time"

// PushSubscription holds a user's browser push subscription. The user id
// is the opaque recipient handle the waitlist monitor notifies through.
type PushSubscription struct {
	UserID    string    `gorm:"primaryKey;size:64"`
	Endpoint  string    `gorm:"size:512;not null"`
	P256DH    string    `gorm:"column:p256dh;not null"`
	Auth      string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time
}
