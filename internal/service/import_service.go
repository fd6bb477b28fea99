package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"bankrecon/internal/config"
	"bankrecon/internal/infrastructure/lock"
	"bankrecon/internal/model"
	"bankrecon/internal/repository"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// duplicateChecker 编排器消费的重复检测接口
type duplicateChecker interface {
	Hash(t *model.BankTransaction) string
	CheckDuplicates(ctx context.Context, transactions []*model.BankTransaction) (map[string]*DuplicateCheckResult, error)
}

// batchInserter 批量落库接口：整批交易与结果事件在同一事务内写入
type batchInserter interface {
	InsertBatch(ctx context.Context, rows []*model.ImportedBankTransaction, outboxMsg *model.OutboxMessage) error
}

// ImportOptions 一次导入批次的参数
// ImportBatchNo 由调用方在导入前生成，失败后仍可凭它关联审计记录
type ImportOptions struct {
	ImportBatchNo  string
	FileName       string
	FileType       string // csv / ofx
	BankType       string
	SkipDuplicates bool // 默认 true：重复交易跳过不入库
}

// DuplicateDetail 重复交易明细（信息性输出，不是错误）
type DuplicateDetail struct {
	Date               time.Time       `json:"date"`
	Content            string          `json:"content"`
	Amount             decimal.Decimal `json:"amount"`
	ExistingImportDate time.Time       `json:"existing_import_date"` // 首次导入时间
	ExistingFileName   string          `json:"existing_file_name,omitempty"`
}

// ImportResult 一次导入批次的结构化结果
type ImportResult struct {
	Success          bool              `json:"success"`
	ImportBatchNo    string            `json:"import_batch_no"`
	Created          int               `json:"created"`
	Skipped          int               `json:"skipped"`
	Duplicates       int               `json:"duplicates"`
	DuplicateDetails []DuplicateDetail `json:"duplicate_details,omitempty"`
	Errors           []string          `json:"errors,omitempty"`
}

// ImportService 导入编排器
//
// 【关键点】导入是整个系统最核心的操作，需要保证：
// 1. 幂等性：同一批交易带 skip_duplicates=true 重跑，第二次 created=0
// 2. 原子性：批量插入和结果事件要么都落库要么都回滚
// 3. 并发安全：同一源文件的重复提交由分布式锁挡掉；
//    跨文件的指纹竞争由唯一索引兜底（失败方整批回滚，调用方重试）
type ImportService struct {
	dedup           duplicateChecker
	transactionRepo batchInserter
	redisClient     *redis.Client
	cfg             *config.Config
}

func NewImportService(db *gorm.DB, redisClient *redis.Client, cfg *config.Config) *ImportService {
	return &ImportService{
		dedup:           NewDedupService(db),
		transactionRepo: repository.NewTransactionRepository(db),
		redisClient:     redisClient,
		cfg:             cfg,
	}
}

// ImportTransactions 执行一次导入批次
//
// 流程：
// 1. 校验入参（校验失败不碰存储，直接返回失败结果）
// 2. 按源文件名加分布式锁
// 3. 批量重复检查 -> 逐笔归类（同批内指纹相同的后续行也计为重复）
// 4. 非重复子集批量插入（单事务，全部成功或全部回滚）
//
// 插入失败时 Success=false、Created=0，但插入前已归类出的重复仍会报告，
// 调用方据此能区分"早已导入"和"这次没导进去"
func (s *ImportService) ImportTransactions(ctx context.Context, transactions []*model.BankTransaction, opts *ImportOptions) (*ImportResult, error) {
	result := &ImportResult{
		Success:       true,
		ImportBatchNo: opts.ImportBatchNo,
	}

	if opts.ImportBatchNo == "" {
		return nil, fmt.Errorf("导入批次号不能为空")
	}

	// 入参校验：在计算指纹之前拒绝缺字段的交易
	if errs := validateTransactions(transactions); len(errs) > 0 {
		result.Success = false
		result.Errors = errs
		return result, nil
	}

	// 同一源文件的重复提交在这里短暂重试等待（100ms x 30 次），超出窗口
	// 直接报错由调用方稍后重试；锁过期时间要覆盖最大批次的插入耗时
	if s.redisClient != nil && opts.FileName != "" {
		lockTTL := time.Duration(s.cfg.Business.ImportLockSeconds) * time.Second
		importLock := lock.NewImportLock(s.redisClient, opts.FileName, uuid.NewString(), lockTTL)
		if err := importLock.Lock(ctx, 100*time.Millisecond, 30); err != nil {
			return nil, fmt.Errorf("获取导入锁失败: %w", err)
		}
		defer importLock.Unlock(ctx)
	}

	// 批量重复检查
	duplicateResults, err := s.dedup.CheckDuplicates(ctx, transactions)
	if err != nil {
		return nil, fmt.Errorf("重复检查失败: %w", err)
	}

	toInsert := make([]*model.ImportedBankTransaction, 0, len(transactions))
	seenHashes := make(map[string]bool, len(transactions))
	now := time.Now()

	for _, t := range transactions {
		hash := s.dedup.Hash(t)
		duplicateCheck := duplicateResults[hash]

		// 同批内指纹相同的后续行也按重复处理：批量检查只看已入库集合，
		// 若两行都进插入集合，唯一索引必然拒绝、整批回滚，而重试时库里
		// 依然没有这批指纹，skip_duplicates=true 的重试永远无法收敛
		storeDuplicate := duplicateCheck != nil && duplicateCheck.IsDuplicate
		batchDuplicate := seenHashes[hash]

		if storeDuplicate || batchDuplicate {
			result.Duplicates++
			detail := DuplicateDetail{
				Date:               t.Date,
				Content:            t.Content,
				Amount:             t.Amount,
				ExistingImportDate: now,
				ExistingFileName:   opts.FileName, // 同批重复：首行就在当前文件里
			}
			if storeDuplicate && duplicateCheck.Existing != nil {
				detail.ExistingImportDate = duplicateCheck.Existing.ImportedAt
				detail.ExistingFileName = duplicateCheck.Existing.FileName
			}
			result.DuplicateDetails = append(result.DuplicateDetails, detail)

			// skip_duplicates=false 是显式的重处理开关：重复行照样尝试入库，
			// 真重复的指纹相同，会被唯一索引拒绝并导致整批失败
			if opts.SkipDuplicates {
				result.Skipped++
				continue
			}
		}

		seenHashes[hash] = true
		toInsert = append(toInsert, &model.ImportedBankTransaction{
			TransactionHash: hash,
			FitID:           t.ReferenceNumber,
			Date:            t.Date,
			Amount:          t.Amount,
			Content:         t.Content,
			Balance:         t.Balance,
			Type:            t.Type,
			Memo:            t.Memo,
			CustomerName:    t.CustomerName,
			ImportBatchNo:   opts.ImportBatchNo,
			ImportedAt:      now,
			FileName:        opts.FileName,
			FileType:        opts.FileType,
			BankType:        opts.BankType,
			IsConfirmed:     false,
			MatchConfidence: model.MatchConfidenceNone,
		})
	}

	// 批量插入 + 结果事件，单事务
	outboxMsg := s.buildResultMessage(opts, len(toInsert), result)
	if err := s.transactionRepo.InsertBatch(ctx, toInsert, outboxMsg); err != nil {
		log.Printf("[ImportService] 批量插入失败: batchNo=%s, rows=%d, err=%v",
			opts.ImportBatchNo, len(toInsert), err)
		result.Success = false
		result.Errors = append(result.Errors, err.Error())
		return result, nil
	}

	result.Created = len(toInsert)

	log.Printf("[ImportService] 导入完成: batchNo=%s, created=%d, skipped=%d, duplicates=%d",
		opts.ImportBatchNo, result.Created, result.Skipped, result.Duplicates)

	return result, nil
}

// buildResultMessage 组装导入结果事件（与插入同事务落库，异步投递）
func (s *ImportService) buildResultMessage(opts *ImportOptions, created int, result *ImportResult) *model.OutboxMessage {
	if s.cfg == nil || s.cfg.Kafka.Topic.ImportResult == "" {
		return nil
	}

	payload := map[string]interface{}{
		"import_batch_no": opts.ImportBatchNo,
		"file_name":       opts.FileName,
		"file_type":       opts.FileType,
		"bank_type":       opts.BankType,
		"created":         created,
		"skipped":         result.Skipped,
		"duplicates":      result.Duplicates,
		"imported_at":     time.Now().Format(time.RFC3339),
	}
	payloadBytes, _ := json.Marshal(payload)

	return &model.OutboxMessage{
		MessageKey: opts.ImportBatchNo,
		Topic:      s.cfg.Kafka.Topic.ImportResult,
		Payload:    string(payloadBytes),
		Status:     model.OutboxStatusPending,
	}
}

// validateTransactions 逐笔校验必填字段
func validateTransactions(transactions []*model.BankTransaction) []string {
	var errs []string
	for i, t := range transactions {
		if t == nil {
			errs = append(errs, fmt.Sprintf("第%d笔交易为空", i+1))
			continue
		}
		if t.Date.IsZero() {
			errs = append(errs, fmt.Sprintf("第%d笔交易缺少日期", i+1))
		}
		if t.Content == "" {
			errs = append(errs, fmt.Sprintf("第%d笔交易缺少摘要", i+1))
		}
		if t.Type != model.DirectionDeposit && t.Type != model.DirectionWithdrawal {
			errs = append(errs, fmt.Sprintf("第%d笔交易方向不合法: %s", i+1, t.Type))
		}
	}
	return errs
}
