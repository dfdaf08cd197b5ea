package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/qs3c/dieta_server/internal/model"
)

type AuditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) Append(ctx context.Context, entry *model.FulfillmentAudit) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// ListByEmail 按时间顺序返回某个邮箱的审计记录
func (r *AuditRepository) ListByEmail(ctx context.Context, email string, limit int) ([]model.FulfillmentAudit, error) {
	var entries []model.FulfillmentAudit
	query := r.db.WithContext(ctx).Where("email = ?", email).Order("created_at ASC, id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&entries).Error
	return entries, err
}

func (r *AuditRepository) ListByRun(ctx context.Context, runID string) ([]model.FulfillmentAudit, error) {
	var entries []model.FulfillmentAudit
	err := r.db.WithContext(ctx).Where("run_id = ?", runID).Order("id ASC").Find(&entries).Error
	return entries, err
}
