package repository

import (
	"context"
	"errors"
	"time"

	"bankrecon/internal/model"

	"gorm.io/gorm"
)

var (
	ErrBatchNotFound = errors.New("导入批次不存在")
)

// HistoryFilter 导入历史的查询条件
type HistoryFilter struct {
	Status string
	Limit  int
	Offset int
}

type HistoryRepository struct {
	db *gorm.DB
}

func NewHistoryRepository(db *gorm.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// Create 创建批次审计记录
// import_batch_no 上有唯一索引，同一批次号重复创建会直接报错
func (r *HistoryRepository) Create(ctx context.Context, history *model.BankImportHistory) error {
	return r.db.WithContext(ctx).Create(history).Error
}

// GetByBatchNo 按批次号查询，未找到返回 ErrBatchNotFound
func (r *HistoryRepository) GetByBatchNo(ctx context.Context, batchNo string) (*model.BankImportHistory, error) {
	var history model.BankImportHistory
	err := r.db.WithContext(ctx).Where("import_batch_no = ?", batchNo).First(&history).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBatchNotFound
		}
		return nil, err
	}
	return &history, nil
}

// UpdateFields 按批次号做字段级更新
// import_batch_no 和 created_at 不允许出现在 fields 中（服务层已剔除）
func (r *HistoryRepository) UpdateFields(ctx context.Context, batchNo string, fields map[string]interface{}) error {
	result := r.db.WithContext(ctx).
		Model(&model.BankImportHistory{}).
		Where("import_batch_no = ?", batchNo).
		Updates(fields)

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		var count int64
		if err := r.db.WithContext(ctx).
			Model(&model.BankImportHistory{}).
			Where("import_batch_no = ?", batchNo).
			Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ErrBatchNotFound
		}
	}

	return nil
}

// List 按条件分页查询，最近的批次在前
func (r *HistoryRepository) List(ctx context.Context, filter *HistoryFilter) ([]*model.BankImportHistory, int64, error) {
	var histories []*model.BankImportHistory
	var total int64

	query := r.db.WithContext(ctx).Model(&model.BankImportHistory{})

	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	err := query.Count(&total).Error
	if err != nil {
		return nil, 0, err
	}

	err = query.
		Order("created_at DESC").
		Offset(filter.Offset).
		Limit(filter.Limit).
		Find(&histories).Error

	return histories, total, err
}

// ListStaleProcessing 查询长时间停留在 processing 状态的批次（僵死批次）
func (r *HistoryRepository) ListStaleProcessing(ctx context.Context, before time.Time, limit int) ([]*model.BankImportHistory, error) {
	var histories []*model.BankImportHistory
	err := r.db.WithContext(ctx).
		Where("status = ? AND updated_at < ?", model.ImportStatusProcessing, before).
		Limit(limit).
		Find(&histories).Error
	return histories, err
}
