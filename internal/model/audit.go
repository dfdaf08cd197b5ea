package model

import (
	"time"
)

// FulfillmentAudit 履约流程的追加式审计日志，与档案表解耦
type FulfillmentAudit struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	Email     string    `gorm:"size:255;index:idx_audit_email_time,priority:1;not null" json:"email"`
	RunID     string    `gorm:"size:27;index" json:"run_id"`
	EventID   string    `gorm:"size:191" json:"event_id,omitempty"`
	Stage     string    `gorm:"size:50;not null" json:"stage"`
	Status    string    `gorm:"size:20;not null" json:"status"` // ok, failed
	Detail    string    `gorm:"type:text" json:"detail,omitempty"`
	CreatedAt time.Time `gorm:"index:idx_audit_email_time,priority:2" json:"created_at"`
}

func (FulfillmentAudit) TableName() string {
	return "fulfillment_audits"
}
