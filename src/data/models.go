package data

import "time"

// Setting represents a configuration setting stored in the database
type Setting struct {
	ID     uint   `gorm:"primaryKey"`
	Name   string `gorm:"size:64;uniqueIndex;not null"`
	Value  string `gorm:"type:text;not null"`
	Active uint8  `gorm:"not null;default:1"`
}

// ThreadAttribution records who asked the question filed as a forum thread.
type ThreadAttribution struct {
	ID              uint64 `gorm:"primaryKey;autoIncrement"`
	ThreadID        string `gorm:"size:64;uniqueIndex;not null"`
	SubmitterID     string `gorm:"size:64;index"`
	SubmitterHandle string `gorm:"size:128"`
	Question        string `gorm:"type:text"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
