package model

import (
	"time"
)

const (
	EventStatusProcessing = "processing"
	EventStatusCompleted  = "completed"
	EventStatusFailed     = "failed"
)

// WebhookEvent 记录支付事件的处理状态，用于去重与幂等重放
type WebhookEvent struct {
	ID              int64      `gorm:"primaryKey" json:"id"`
	EventID         string     `gorm:"size:191;uniqueIndex;not null" json:"event_id"`
	EventType       string     `gorm:"size:100;not null" json:"event_type"`
	Email           string     `gorm:"size:255;index" json:"email"`
	PriceID         string     `gorm:"size:191" json:"price_id"`
	Status          string     `gorm:"size:20;default:processing;index" json:"status"`
	PaymentRecorded bool       `gorm:"default:false" json:"payment_recorded"`
	Attempts        int        `gorm:"default:1" json:"attempts"`
	LastStage       string     `gorm:"size:50" json:"last_stage,omitempty"`
	LastError       string     `gorm:"type:text" json:"last_error,omitempty"`
	ProcessedAt     *time.Time `json:"processed_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func (WebhookEvent) TableName() string {
	return "webhook_events"
}
