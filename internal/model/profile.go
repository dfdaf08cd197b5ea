package model

import (
	"strings"
	"time"
)

const (
	PlanSingle    = "single"
	PlanRecurring = "recurring"

	// 档案就绪信号：前端注册步骤完成后置为 ready
	ProfileStatusPending = "pending"
	ProfileStatusReady   = "ready"
)

// UserProfile 以规范化邮箱为自然键，每个邮箱最多一行
type UserProfile struct {
	ID              int64      `gorm:"primaryKey" json:"id"`
	Email           string     `gorm:"size:255;uniqueIndex;not null" json:"email"`
	Name            string     `gorm:"size:100" json:"name"`
	WeightKg        float64    `gorm:"default:0" json:"weight_kg"`
	Goal            string     `gorm:"size:100" json:"goal"`
	CalorieTarget   int        `gorm:"default:0" json:"calorie_target"`
	MealCount       int        `gorm:"default:0" json:"meal_count"`
	Foods           string     `gorm:"type:text" json:"foods"`
	Preferences     string     `gorm:"type:text" json:"preferences"`
	Status          string     `gorm:"size:20;default:pending" json:"status"`
	Paid            bool       `gorm:"default:false" json:"paid"`
	PlanType        string     `gorm:"size:20" json:"plan_type"`
	Credits         int        `gorm:"default:0" json:"credits"`
	ArtifactURL     string     `gorm:"size:1000" json:"artifact_url"`
	LastGeneratedAt *time.Time `json:"last_generated_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func (UserProfile) TableName() string {
	return "user_profiles"
}

// NormalizeEmail 小写并去除首尾空白
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
