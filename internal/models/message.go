package models

import "time"

// MaxMessageLength is the longest warble accepted, in characters.
const MaxMessageLength = 140

// Message is a short text post owned by a single user.
type Message struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Text      string    `gorm:"size:140;not null" json:"text"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	User      User      `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"user"`
	CreatedAt time.Time `gorm:"not null;index" json:"timestamp"`
	// Liked reports whether the requesting user liked this message; not persisted.
	Liked bool `gorm:"-" json:"liked"`
}

// TableName specifies the table name for GORM
func (Message) TableName() string {
	return "messages"
}
