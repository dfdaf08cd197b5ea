package testutil

import (
	"fmt"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/qs3c/dieta_server/internal/model"
)

// TestProfile 创建已就绪、已支付的测试档案
func TestProfile(t *testing.T, db *gorm.DB, opts ...func(*model.UserProfile)) *model.UserProfile {
	t.Helper()

	profile := &model.UserProfile{
		Email:         fmt.Sprintf("test_%d@example.com", time.Now().UnixNano()),
		Name:          "Test User",
		WeightKg:      80,
		Goal:          "lose fat",
		CalorieTarget: 2000,
		MealCount:     4,
		Status:        model.ProfileStatusReady,
		Paid:          true,
		PlanType:      model.PlanSingle,
		Credits:       1,
	}

	for _, opt := range opts {
		opt(profile)
	}

	if err := db.Create(profile).Error; err != nil {
		t.Fatalf("Failed to create test profile: %v", err)
	}

	return profile
}

// WithProfileEmail 设置邮箱
func WithProfileEmail(email string) func(*model.UserProfile) {
	return func(p *model.UserProfile) {
		p.Email = email
	}
}

// WithWeight 设置体重
func WithWeight(kg float64) func(*model.UserProfile) {
	return func(p *model.UserProfile) {
		p.WeightKg = kg
	}
}

// WithGoal 设置目标
func WithGoal(goal string) func(*model.UserProfile) {
	return func(p *model.UserProfile) {
		p.Goal = goal
	}
}

// WithCalories 设置热量目标
func WithCalories(kcal int) func(*model.UserProfile) {
	return func(p *model.UserProfile) {
		p.CalorieTarget = kcal
	}
}

// WithMeals 设置餐数
func WithMeals(n int) func(*model.UserProfile) {
	return func(p *model.UserProfile) {
		p.MealCount = n
	}
}

// WithPayment 设置支付状态与额度
func WithPayment(paid bool, plan string, credits int) func(*model.UserProfile) {
	return func(p *model.UserProfile) {
		p.Paid = paid
		p.PlanType = plan
		p.Credits = credits
	}
}

// WithProfileStatus 设置就绪状态
func WithProfileStatus(status string) func(*model.UserProfile) {
	return func(p *model.UserProfile) {
		p.Status = status
	}
}

// WithArtifactURL 设置已有的访问链接
func WithArtifactURL(url string) func(*model.UserProfile) {
	return func(p *model.UserProfile) {
		p.ArtifactURL = url
	}
}

// TestWebhookEvent 创建测试事件记录
func TestWebhookEvent(t *testing.T, db *gorm.DB, eventID, status string) *model.WebhookEvent {
	t.Helper()

	ev := &model.WebhookEvent{
		EventID:   eventID,
		EventType: "checkout.session.completed",
		Email:     "buyer@example.com",
		Status:    status,
		Attempts:  1,
	}

	if err := db.Create(ev).Error; err != nil {
		t.Fatalf("Failed to create test webhook event: %v", err)
	}

	return ev
}
