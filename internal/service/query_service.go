package service

import (
	"context"

	"bankrecon/internal/model"
	"bankrecon/internal/repository"

	"gorm.io/gorm"
)

// transactionLister 已导入交易的只读查询接口
type transactionLister interface {
	GetByID(ctx context.Context, id int64) (*model.ImportedBankTransaction, error)
	List(ctx context.Context, filter *repository.TransactionFilter) ([]*model.ImportedBankTransaction, int64, error)
}

// QueryService 已导入交易的只读查询
type QueryService struct {
	transactionRepo transactionLister
}

func NewQueryService(db *gorm.DB) *QueryService {
	return &QueryService{
		transactionRepo: repository.NewTransactionRepository(db),
	}
}

// GetImportedTransactions 按条件分页查询，默认按交易日期倒序
// total 对同一条件独立计数，部分页时分页元数据依然正确
func (s *QueryService) GetImportedTransactions(ctx context.Context, filter *repository.TransactionFilter) ([]*model.ImportedBankTransaction, int64, error) {
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	return s.transactionRepo.List(ctx, filter)
}

// GetTransaction 按主键查询单笔交易
func (s *QueryService) GetTransaction(ctx context.Context, id int64) (*model.ImportedBankTransaction, error) {
	return s.transactionRepo.GetByID(ctx, id)
}
