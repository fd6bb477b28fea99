package service

import (
	"context"
	"fmt"
	"time"

	"bankrecon/internal/model"
	"bankrecon/internal/repository"

	"gorm.io/gorm"
)

// transactionUpdater 字段级更新接口
type transactionUpdater interface {
	UpdateFields(ctx context.Context, id int64, fields map[string]interface{}) error
}

// MatchUpdate 匹配信息更新
// 指针字段为 nil 表示不更新该列；重复调用直接覆盖上一次的匹配，不保留历史
type MatchUpdate struct {
	MatchedInvoiceID *string
	MatchConfidence  *string
	MatchReason      *string
}

// MatchService 匹配关联与人工确认
//
// 两组字段由不同操作各自写入，互不重叠：
//   - UpdateTransactionMatch 只写 matched_invoice_id / match_confidence / match_reason
//   - ConfirmTransaction     只写 is_confirmed / confirmed_at / confirmed_by
//
// 因此两者并发执行也不存在读改写冲突
type MatchService struct {
	transactionRepo transactionUpdater
}

func NewMatchService(db *gorm.DB) *MatchService {
	return &MatchService{
		transactionRepo: repository.NewTransactionRepository(db),
	}
}

// UpdateTransactionMatch 更新交易的发票匹配信息
// matched_invoice_id 是外部发票的弱引用，本系统不校验其存在性
func (s *MatchService) UpdateTransactionMatch(ctx context.Context, transactionID int64, update *MatchUpdate) error {
	fields := make(map[string]interface{})

	if update.MatchedInvoiceID != nil {
		fields["matched_invoice_id"] = *update.MatchedInvoiceID
	}
	if update.MatchConfidence != nil {
		if !model.ValidMatchConfidence(*update.MatchConfidence) {
			return fmt.Errorf("匹配置信度不合法: %s", *update.MatchConfidence)
		}
		fields["match_confidence"] = *update.MatchConfidence
	}
	if update.MatchReason != nil {
		fields["match_reason"] = *update.MatchReason
	}

	if len(fields) == 0 {
		return nil
	}
	fields["updated_at"] = time.Now()

	return s.transactionRepo.UpdateFields(ctx, transactionID, fields)
}

// ConfirmTransaction 人工确认交易
// 单向转换：pending -> confirmed，没有反向操作
func (s *MatchService) ConfirmTransaction(ctx context.Context, transactionID int64, confirmedBy string) error {
	now := time.Now()
	fields := map[string]interface{}{
		"is_confirmed": true,
		"confirmed_at": &now,
		"confirmed_by": confirmedBy,
		"updated_at":   now,
	}
	return s.transactionRepo.UpdateFields(ctx, transactionID, fields)
}
