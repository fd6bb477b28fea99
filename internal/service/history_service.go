package service

import (
	"context"
	"fmt"
	"time"

	"bankrecon/internal/model"
	"bankrecon/internal/repository"

	"gorm.io/gorm"
)

// historyStore 批次审计记录的持久化接口
type historyStore interface {
	Create(ctx context.Context, history *model.BankImportHistory) error
	GetByBatchNo(ctx context.Context, batchNo string) (*model.BankImportHistory, error)
	UpdateFields(ctx context.Context, batchNo string, fields map[string]interface{}) error
	List(ctx context.Context, filter *repository.HistoryFilter) ([]*model.BankImportHistory, int64, error)
}

// HistoryService 导入批次审计
// 与导入编排器互相独立：两者不在同一事务里，标准用法是两阶段 ——
// 导入前以 processing 创建记录，导入返回后回填最终状态和计数
type HistoryService struct {
	historyRepo historyStore
}

func NewHistoryService(db *gorm.DB) *HistoryService {
	return &HistoryService{
		historyRepo: repository.NewHistoryRepository(db),
	}
}

// CreateImportHistory 创建批次记录，返回批次号
func (s *HistoryService) CreateImportHistory(ctx context.Context, history *model.BankImportHistory) (string, error) {
	if history.ImportBatchNo == "" {
		return "", fmt.Errorf("导入批次号不能为空")
	}
	if history.Status == "" {
		history.Status = model.ImportStatusProcessing
	}

	if err := s.historyRepo.Create(ctx, history); err != nil {
		return "", fmt.Errorf("创建导入历史失败: %w", err)
	}
	return history.ImportBatchNo, nil
}

// UpdateImportHistory 部分字段更新
// 批次号和创建时间不可变，出现在 fields 里会被丢弃；入参 map 本身不会被修改
func (s *HistoryService) UpdateImportHistory(ctx context.Context, batchNo string, fields map[string]interface{}) error {
	updates := make(map[string]interface{}, len(fields)+1)
	for k, v := range fields {
		switch k {
		case "id", "import_batch_no", "created_at":
			continue
		}
		updates[k] = v
	}
	if len(updates) == 0 {
		return nil
	}
	updates["updated_at"] = time.Now()

	return s.historyRepo.UpdateFields(ctx, batchNo, updates)
}

// GetImportHistory 分页查询批次记录，最近的在前
func (s *HistoryService) GetImportHistory(ctx context.Context, filter *repository.HistoryFilter) ([]*model.BankImportHistory, int64, error) {
	if filter.Limit <= 0 {
		filter.Limit = 20
	}
	return s.historyRepo.List(ctx, filter)
}

// GetImportBatch 按批次号查询单条记录
func (s *HistoryService) GetImportBatch(ctx context.Context, batchNo string) (*model.BankImportHistory, error) {
	return s.historyRepo.GetByBatchNo(ctx, batchNo)
}
