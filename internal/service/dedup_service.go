package service

import (
	"context"
	"fmt"

	"bankrecon/internal/model"
	"bankrecon/internal/repository"
	"bankrecon/pkg/fingerprint"

	"gorm.io/gorm"
)

// transactionFinder 重复检查所需的只读查询
// 用接口隔离是为了让服务逻辑可以在单元测试里用内存假实现替换
type transactionFinder interface {
	GetByHash(ctx context.Context, hash string) (*model.ImportedBankTransaction, error)
	GetByFitID(ctx context.Context, fitID string) (*model.ImportedBankTransaction, error)
	ListByHashes(ctx context.Context, hashes []string) ([]*model.ImportedBankTransaction, error)
}

// DuplicateCheckResult 单笔重复检查结果
type DuplicateCheckResult struct {
	IsDuplicate     bool                           `json:"is_duplicate"`
	Existing        *model.ImportedBankTransaction `json:"existing,omitempty"` // 命中的已导入行
	TransactionHash string                         `json:"transaction_hash"`
}

// DedupService 重复检测器：只读，不修改任何状态
type DedupService struct {
	transactionRepo transactionFinder
}

func NewDedupService(db *gorm.DB) *DedupService {
	return &DedupService{
		transactionRepo: repository.NewTransactionRepository(db),
	}
}

// Hash 计算交易指纹（暴露给调用方做关联展示）
func (s *DedupService) Hash(t *model.BankTransaction) string {
	return fingerprint.Generate(t.Date, t.Amount, t.Content, t.ReferenceNumber)
}

// CheckDuplicate 单笔重复检查
// 先按指纹查；未命中且携带银行参照号时，再按参照号查一次 ——
// 同一条对账单行被银行用不同摘要格式重新导出时，指纹会变但参照号不变
func (s *DedupService) CheckDuplicate(ctx context.Context, t *model.BankTransaction) (*DuplicateCheckResult, error) {
	hash := s.Hash(t)

	existing, err := s.transactionRepo.GetByHash(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("按指纹查询失败: %w", err)
	}
	if existing != nil {
		return &DuplicateCheckResult{
			IsDuplicate:     true,
			Existing:        existing,
			TransactionHash: hash,
		}, nil
	}

	if t.ReferenceNumber != "" {
		existingByFitID, err := s.transactionRepo.GetByFitID(ctx, t.ReferenceNumber)
		if err != nil {
			return nil, fmt.Errorf("按参照号查询失败: %w", err)
		}
		if existingByFitID != nil {
			return &DuplicateCheckResult{
				IsDuplicate:     true,
				Existing:        existingByFitID,
				TransactionHash: hash,
			}, nil
		}
	}

	return &DuplicateCheckResult{
		IsDuplicate:     false,
		TransactionHash: hash,
	}, nil
}

// CheckDuplicates 批量重复检查
// 先算出全部指纹，整批发一条 IN 查询，再逐笔归类 ——
// 数据库往返次数是 O(1) 而不是 O(n)
//
// 注意：批量路径不做参照号回退（与单笔路径的既有差异，改动会影响
// 可观测的重复计数，未经产品确认前保持现状）
func (s *DedupService) CheckDuplicates(ctx context.Context, transactions []*model.BankTransaction) (map[string]*DuplicateCheckResult, error) {
	results := make(map[string]*DuplicateCheckResult, len(transactions))
	if len(transactions) == 0 {
		return results, nil
	}

	hashes := make([]string, 0, len(transactions))
	for _, t := range transactions {
		hash := s.Hash(t)
		hashes = append(hashes, hash)
		// 同批内指纹相同的交易共享同一个结果项
		if _, ok := results[hash]; !ok {
			results[hash] = &DuplicateCheckResult{TransactionHash: hash}
		}
	}

	existingTransactions, err := s.transactionRepo.ListByHashes(ctx, hashes)
	if err != nil {
		return nil, fmt.Errorf("批量存在性查询失败: %w", err)
	}

	for _, existing := range existingTransactions {
		if result, ok := results[existing.TransactionHash]; ok {
			result.IsDuplicate = true
			result.Existing = existing
		}
	}

	return results, nil
}
