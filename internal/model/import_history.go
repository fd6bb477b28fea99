package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// 导入批次状态
// status 是调用方维护的自由字段，核心服务不做状态机校验；
// 常量对应标准两阶段流程：processing -> completed / partial / failed
const (
	ImportStatusProcessing = "processing" // 批次已登记，导入进行中
	ImportStatusCompleted  = "completed"  // 全部新交易入库成功
	ImportStatusPartial    = "partial"    // 入库成功但存在重复被跳过
	ImportStatusFailed     = "failed"     // 批量插入失败（含唯一索引冲突）
)

// BankImportHistory 导入批次审计表
// 每次导入一条记录，批次号由调用方在导入前生成，便于失败后关联排查
type BankImportHistory struct {
	ID            int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	ImportBatchNo string `gorm:"type:varchar(64);uniqueIndex;not null" json:"import_batch_no"`
	FileName      string `gorm:"type:varchar(255);not null" json:"file_name"`
	FileSize      int64  `gorm:"not null;default:0" json:"file_size"`
	FileType      string `gorm:"type:varchar(8);not null" json:"file_type"` // csv / ofx
	BankType      string `gorm:"type:varchar(32)" json:"bank_type,omitempty"`
	BankName      string `gorm:"type:varchar(64)" json:"bank_name,omitempty"`

	// 解析统计（调用方提供）
	TotalCount            int             `gorm:"not null;default:0" json:"total_count"`
	DepositCount          int             `gorm:"not null;default:0" json:"deposit_count"`
	WithdrawalCount       int             `gorm:"not null;default:0" json:"withdrawal_count"`
	TotalDepositAmount    decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0" json:"total_deposit_amount"`
	TotalWithdrawalAmount decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0" json:"total_withdrawal_amount"`

	// 导入结果统计（导入完成后回填）
	DuplicateCount      int `gorm:"not null;default:0" json:"duplicate_count"`
	NewTransactionCount int `gorm:"not null;default:0" json:"new_transaction_count"`

	Status string `gorm:"type:varchar(20);index;not null" json:"status"`
	Errors string `gorm:"type:text" json:"errors,omitempty"` // 失败原因，多条以换行分隔

	CreatedAt time.Time `gorm:"autoCreateTime;index:idx_import_history_created_at,sort:desc" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (BankImportHistory) TableName() string {
	return "bank_import_history"
}
