package repository

import (
	"context"
	"errors"
	"time"

	"bankrecon/internal/model"

	"gorm.io/gorm"
)

var (
	ErrTransactionNotFound  = errors.New("交易不存在")
	ErrDuplicateFingerprint = errors.New("交易指纹冲突")
)

// TransactionFilter 已导入交易的查询条件
type TransactionFilter struct {
	ImportBatchNo string
	DateFrom      *time.Time
	DateTo        *time.Time
	Type          string // deposit / withdrawal
	IsConfirmed   *bool
	Limit         int
	Offset        int
}

type TransactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// GetByID 按主键查询，未找到返回 ErrTransactionNotFound
func (r *TransactionRepository) GetByID(ctx context.Context, id int64) (*model.ImportedBankTransaction, error) {
	var trans model.ImportedBankTransaction
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&trans).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	return &trans, nil
}

// GetByHash 按指纹查询，未找到返回 (nil, nil)
func (r *TransactionRepository) GetByHash(ctx context.Context, hash string) (*model.ImportedBankTransaction, error) {
	var trans model.ImportedBankTransaction
	err := r.db.WithContext(ctx).Where("transaction_hash = ?", hash).First(&trans).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &trans, nil
}

// GetByFitID 按银行参照号查询，未找到返回 (nil, nil)
func (r *TransactionRepository) GetByFitID(ctx context.Context, fitID string) (*model.ImportedBankTransaction, error) {
	var trans model.ImportedBankTransaction
	err := r.db.WithContext(ctx).Where("fit_id = ?", fitID).First(&trans).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &trans, nil
}

// ListByHashes 批量存在性查询
// 整批一条 WHERE IN，查询次数与批次大小无关
func (r *TransactionRepository) ListByHashes(ctx context.Context, hashes []string) ([]*model.ImportedBankTransaction, error) {
	if len(hashes) == 0 {
		return nil, nil
	}
	var transactions []*model.ImportedBankTransaction
	err := r.db.WithContext(ctx).
		Where("transaction_hash IN ?", hashes).
		Find(&transactions).Error
	return transactions, err
}

// InsertBatch 批量插入交易，并在同一事务内写入导入结果事件
// 全部成功或全部回滚：任何一行撞上唯一索引，整批都不会落库，
// 调用方用 skip_duplicates=true 重试即可排除冲突行
func (r *TransactionRepository) InsertBatch(ctx context.Context, rows []*model.ImportedBankTransaction, outboxMsg *model.OutboxMessage) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(rows) > 0 {
			if err := tx.Create(rows).Error; err != nil {
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					return ErrDuplicateFingerprint
				}
				return err
			}
		}
		if outboxMsg != nil {
			if err := tx.Create(outboxMsg).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// UpdateFields 按主键做字段级更新（匹配字段组 / 确认字段组各自调用）
// 不触碰 map 之外的任何列
func (r *TransactionRepository) UpdateFields(ctx context.Context, id int64, fields map[string]interface{}) error {
	result := r.db.WithContext(ctx).
		Model(&model.ImportedBankTransaction{}).
		Where("id = ?", id).
		Updates(fields)

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		// 可能是行不存在，也可能是新值与旧值相同，需要区分
		var count int64
		if err := r.db.WithContext(ctx).
			Model(&model.ImportedBankTransaction{}).
			Where("id = ?", id).
			Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ErrTransactionNotFound
		}
	}

	return nil
}

// List 按条件分页查询
// total 是对同一条件的独立 count，与当前页大小无关
func (r *TransactionRepository) List(ctx context.Context, filter *TransactionFilter) ([]*model.ImportedBankTransaction, int64, error) {
	var transactions []*model.ImportedBankTransaction
	var total int64

	query := r.db.WithContext(ctx).Model(&model.ImportedBankTransaction{})

	if filter.ImportBatchNo != "" {
		query = query.Where("import_batch_no = ?", filter.ImportBatchNo)
	}
	if filter.DateFrom != nil {
		query = query.Where("date >= ?", *filter.DateFrom)
	}
	if filter.DateTo != nil {
		query = query.Where("date <= ?", *filter.DateTo)
	}
	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type)
	}
	if filter.IsConfirmed != nil {
		query = query.Where("is_confirmed = ?", *filter.IsConfirmed)
	}

	err := query.Count(&total).Error
	if err != nil {
		return nil, 0, err
	}

	err = query.
		Order("date DESC, created_at DESC").
		Offset(filter.Offset).
		Limit(filter.Limit).
		Find(&transactions).Error

	return transactions, total, err
}
