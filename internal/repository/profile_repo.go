package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/qs3c/dieta_server/internal/model"
)

var emailConflict = []clause.Column{{Name: "email"}}

type ProfileRepository struct {
	db *gorm.DB
}

func NewProfileRepository(db *gorm.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// WithTx 返回绑定到事务的仓库
func (r *ProfileRepository) WithTx(tx *gorm.DB) *ProfileRepository {
	return &ProfileRepository{db: tx}
}

func (r *ProfileRepository) GetByEmail(ctx context.Context, email string) (*model.UserProfile, error) {
	var profile model.UserProfile
	err := r.db.WithContext(ctx).Where("email = ?", email).First(&profile).Error
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// EnsurePending 首次接触时建档，已存在则不做任何修改
func (r *ProfileRepository) EnsurePending(ctx context.Context, email string) error {
	profile := model.UserProfile{
		Email:  email,
		Status: model.ProfileStatusPending,
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: emailConflict, DoNothing: true}).
		Create(&profile).Error
}

// RecordPayment 标记已支付并累加额度。eventID 非空时在同一事务中把事件标记为已入账，
// 重新认领的事件据此跳过入账。
func (r *ProfileRepository) RecordPayment(ctx context.Context, email, plan string, credits int, eventID string) error {
	now := time.Now()
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		profile := model.UserProfile{
			Email:    email,
			Status:   model.ProfileStatusPending,
			Paid:     true,
			PlanType: plan,
			Credits:  credits,
		}
		err := tx.Clauses(clause.OnConflict{
			Columns: emailConflict,
			DoUpdates: clause.Assignments(map[string]interface{}{
				"paid":       true,
				"plan_type":  plan,
				"credits":    gorm.Expr("user_profiles.credits + ?", credits),
				"updated_at": now,
			}),
		}).Create(&profile).Error
		if err != nil {
			return err
		}

		if eventID == "" {
			return nil
		}
		return tx.Model(&model.WebhookEvent{}).
			Where("event_id = ?", eventID).
			Updates(map[string]interface{}{
				"payment_recorded": true,
				"updated_at":       now,
			}).Error
	})
}

// ReserveCredit 预扣一次额度，额度已用完时返回 false。
// 条件更新保证并发请求中只有持有额度的一方成功。
func (r *ProfileRepository) ReserveCredit(ctx context.Context, email string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.UserProfile{}).
		Where("email = ? AND credits > 0", email).
		Updates(map[string]interface{}{
			"credits":    gorm.Expr("credits - 1"),
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// RefundCredit 归还预扣的额度
func (r *ProfileRepository) RefundCredit(ctx context.Context, email string) error {
	return r.db.WithContext(ctx).Model(&model.UserProfile{}).
		Where("email = ?", email).
		Updates(map[string]interface{}{
			"credits":    gorm.Expr("credits + 1"),
			"updated_at": time.Now(),
		}).Error
}

// SaveArtifact 写入当前访问链接
func (r *ProfileRepository) SaveArtifact(ctx context.Context, email, link string, at time.Time) error {
	updates := map[string]interface{}{
		"artifact_url":      link,
		"last_generated_at": at,
		"updated_at":        time.Now(),
	}

	profile := model.UserProfile{
		Email:           email,
		Status:          model.ProfileStatusPending,
		ArtifactURL:     link,
		LastGeneratedAt: &at,
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: emailConflict, DoUpdates: clause.Assignments(updates)}).
		Create(&profile).Error
}

// SaveProfile 注册档案属性并置为 ready，不触碰支付相关字段。空值属性不覆盖已存储的值。
func (r *ProfileRepository) SaveProfile(ctx context.Context, attrs *model.UserProfile) error {
	updates := map[string]interface{}{
		"status":     model.ProfileStatusReady,
		"updated_at": time.Now(),
	}
	if attrs.Name != "" {
		updates["name"] = attrs.Name
	}
	if attrs.WeightKg > 0 {
		updates["weight_kg"] = attrs.WeightKg
	}
	if attrs.Goal != "" {
		updates["goal"] = attrs.Goal
	}
	if attrs.CalorieTarget > 0 {
		updates["calorie_target"] = attrs.CalorieTarget
	}
	if attrs.MealCount > 0 {
		updates["meal_count"] = attrs.MealCount
	}
	if attrs.Foods != "" {
		updates["foods"] = attrs.Foods
	}
	if attrs.Preferences != "" {
		updates["preferences"] = attrs.Preferences
	}

	profile := model.UserProfile{
		Email:         attrs.Email,
		Name:          attrs.Name,
		WeightKg:      attrs.WeightKg,
		Goal:          attrs.Goal,
		CalorieTarget: attrs.CalorieTarget,
		MealCount:     attrs.MealCount,
		Foods:         attrs.Foods,
		Preferences:   attrs.Preferences,
		Status:        model.ProfileStatusReady,
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: emailConflict, DoUpdates: clause.Assignments(updates)}).
		Create(&profile).Error
}
