package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// AuditLog is one append-only record of a committed engine write.
type AuditLog struct {
	ID            snowflake.ID      `gorm:"primaryKey" json:"id"`
	Action        string            `gorm:"type:varchar(64);not null;index" json:"action"`
	TargetType    string            `gorm:"type:varchar(32);not null;index:idx_audit_target,priority:1" json:"target_type"`
	TargetID      string            `gorm:"type:varchar(32);not null;index:idx_audit_target,priority:2" json:"target_id"`
	CorrelationID string            `gorm:"type:varchar(64)" json:"correlation_id,omitempty"`
	Metadata      datatypes.JSONMap `gorm:"not null" json:"metadata,omitempty"`
	CreatedAt     time.Time         `gorm:"not null;index" json:"created_at"`
}

func (AuditLog) TableName() string { return "audit_logs" }
