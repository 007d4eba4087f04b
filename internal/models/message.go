package models

import "time"

// Message types recorded in the log.
const (
	MessageBroadcast = "BROADCAST"
	MessageDM        = "DM"
	MessageChannel   = "CHANNEL"
	MessageLeft      = "LEFT"
)

// Message is one append-only log entry. ID comes from the shared "messages"
// counter rather than the table's own sequence, so ids are never reused
// within the lifetime of the store.
type Message struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement:false"`
	Type      string    `gorm:"size:16;not null;index"`
	FromAgent *string   `gorm:"size:64;index"`
	ToAgent   *string   `gorm:"size:64;index"`
	Channel   *string   `gorm:"size:64;index"`
	Content   string    `gorm:"type:text"`
	Priority  string    `gorm:"size:8;default:normal"`
	Timestamp time.Time `gorm:"index"`
}

// Counter is a named monotonic sequence.
type Counter struct {
	Name  string `gorm:"primaryKey;size:32"`
	Value uint64 `gorm:"not null;default:0"`
}

// MessageCounter names the counter that assigns Message.ID.
const MessageCounter = "messages"
