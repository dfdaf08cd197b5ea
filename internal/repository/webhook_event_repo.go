package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/qs3c/dieta_server/internal/model"
)

type WebhookEventRepository struct {
	db *gorm.DB
}

func NewWebhookEventRepository(db *gorm.DB) *WebhookEventRepository {
	return &WebhookEventRepository{db: db}
}

// ClaimFunc 在认领事务内执行，返回错误时认领随事务回滚
type ClaimFunc func(tx *gorm.DB, current *model.WebhookEvent) error

// Claim 认领事件处理权。首次投递直接插入；已存在时仅当上次失败或处理超时才重新认领。
// 并发投递中只有一方返回 claimed=true。
func (r *WebhookEventRepository) Claim(ctx context.Context, event *model.WebhookEvent, staleAfter time.Duration) (bool, *model.WebhookEvent, error) {
	return r.ClaimWith(ctx, event, staleAfter, nil)
}

// ClaimWith 与 Claim 相同，认领成功后在同一事务中执行 fn。
// fn 失败时不留下认领记录（重新认领的事件恢复原状态），重投仍可再次认领。
func (r *WebhookEventRepository) ClaimWith(ctx context.Context, event *model.WebhookEvent, staleAfter time.Duration, fn ClaimFunc) (bool, *model.WebhookEvent, error) {
	var (
		claimed bool
		current model.WebhookEvent
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		record := *event
		record.ID = 0
		record.Status = model.EventStatusProcessing
		record.Attempts = 1
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "event_id"}},
			DoNothing: true,
		}).Create(&record)
		if res.Error != nil {
			return res.Error
		}

		claimed = res.RowsAffected == 1
		if !claimed {
			now := time.Now()
			res = tx.Model(&model.WebhookEvent{}).
				Where("event_id = ? AND (status = ? OR (status = ? AND updated_at < ?))",
					event.EventID, model.EventStatusFailed, model.EventStatusProcessing, now.Add(-staleAfter)).
				Updates(map[string]interface{}{
					"status":     model.EventStatusProcessing,
					"attempts":   gorm.Expr("attempts + 1"),
					"last_error": "",
					"updated_at": now,
				})
			if res.Error != nil {
				return res.Error
			}
			claimed = res.RowsAffected == 1
		}

		if err := tx.Where("event_id = ?", event.EventID).First(&current).Error; err != nil {
			return err
		}
		if claimed && fn != nil {
			return fn(tx, &current)
		}
		return nil
	})
	if err != nil {
		return false, nil, err
	}
	return claimed, &current, nil
}

func (r *WebhookEventRepository) GetByEventID(ctx context.Context, eventID string) (*model.WebhookEvent, error) {
	var ev model.WebhookEvent
	if err := r.db.WithContext(ctx).Where("event_id = ?", eventID).First(&ev).Error; err != nil {
		return nil, err
	}
	return &ev, nil
}

func (r *WebhookEventRepository) MarkCompleted(ctx context.Context, eventID, stage string) error {
	now := time.Now()
	return r.db.WithContext(ctx).Model(&model.WebhookEvent{}).
		Where("event_id = ?", eventID).
		Updates(map[string]interface{}{
			"status":       model.EventStatusCompleted,
			"last_stage":   stage,
			"last_error":   "",
			"processed_at": now,
			"updated_at":   now,
		}).Error
}

func (r *WebhookEventRepository) MarkFailed(ctx context.Context, eventID, stage, reason string) error {
	return r.db.WithContext(ctx).Model(&model.WebhookEvent{}).
		Where("event_id = ?", eventID).
		Updates(map[string]interface{}{
			"status":     model.EventStatusFailed,
			"last_stage": stage,
			"last_error": reason,
			"updated_at": time.Now(),
		}).Error
}

// ListFailed 最近失败的事件，供运维排查
func (r *WebhookEventRepository) ListFailed(ctx context.Context, limit int) ([]model.WebhookEvent, error) {
	var events []model.WebhookEvent
	err := r.db.WithContext(ctx).
		Where("status = ?", model.EventStatusFailed).
		Order("updated_at DESC").
		Limit(limit).
		Find(&events).Error
	return events, err
}
