// Package domain defines the persisted document counters.
package domain

import "time"

// Counter holds the last issued sequence value for one document kind.
type Counter struct {
	Kind      string    `gorm:"primaryKey;type:varchar(32)"`
	Value     int64     `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (Counter) TableName() string { return "counters" }
