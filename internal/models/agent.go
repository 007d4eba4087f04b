package models

import "time"

// Agent is one directory row: the agent currently known by Name and where
// its terminal lives. PaneID and StablePane are nullable; an absent address
// is stored as NULL, never as an empty string.
type Agent struct {
	ID           string  `gorm:"primaryKey;size:96"`
	Name         string  `gorm:"size:64;not null;uniqueIndex"`
	Group        string  `gorm:"column:agent_group;size:64;not null;index"`
	Description  string  `gorm:"type:text"`
	PaneID       *string `gorm:"size:32;index"`
	StablePane   *string `gorm:"size:128;index"`
	RegisteredAt time.Time
}
