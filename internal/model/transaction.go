package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================================
// 交易方向 / 匹配置信度常量
// ============================================================================

const (
	DirectionDeposit    = "deposit"    // 入金
	DirectionWithdrawal = "withdrawal" // 出金
)

const (
	MatchConfidenceHigh   = "high"
	MatchConfidenceMedium = "medium"
	MatchConfidenceLow    = "low"
	MatchConfidenceNone   = "none"
)

// ValidMatchConfidence 校验置信度取值是否合法
func ValidMatchConfidence(confidence string) bool {
	switch confidence {
	case MatchConfidenceHigh, MatchConfidenceMedium, MatchConfidenceLow, MatchConfidenceNone:
		return true
	}
	return false
}

// BankTransaction 上游解析器产出的标准化交易记录（入参，不直接落库）
// 文件格式解析不在本系统范围内，调用方负责把 CSV/OFX 解析成该结构
type BankTransaction struct {
	Date            time.Time        `json:"date" binding:"required"`                          // 交易日期（只取日期部分）
	Amount          decimal.Decimal  `json:"amount" binding:"required"`                        // 金额
	Content         string           `json:"content" binding:"required"`                       // 摘要/内容
	Balance         *decimal.Decimal `json:"balance,omitempty"`                                // 交易后余额（可选）
	Type            string           `json:"type" binding:"required,oneof=deposit withdrawal"` // 方向
	Memo            string           `json:"memo,omitempty"`                                   // 备注
	CustomerName    string           `json:"customer_name,omitempty"`                          // 对方名称
	ReferenceNumber string           `json:"reference_number,omitempty"`                       // 银行参照号（如 OFX 的 FITID，可选）
}

// ============================================================================
// 已导入交易实体
// ============================================================================

// ImportedBankTransaction 已导入银行交易表
//
// 【重要】去重设计原则：
// 1. transaction_hash 由交易内容推导，全局唯一 —— 去重的第一键
// 2. fit_id 为银行分配的参照号 —— 去重的第二键（仅单笔检查时回退使用）
// 3. 并发导入下的哈希竞争完全由唯一索引兜底，插入失败即整批失败
type ImportedBankTransaction struct {
	ID              int64            `gorm:"primaryKey;autoIncrement" json:"id"`
	TransactionHash string           `gorm:"type:varchar(32);uniqueIndex;not null" json:"transaction_hash"` // 内容指纹（sha256 前128位，hex）
	FitID           string           `gorm:"type:varchar(64);index" json:"fit_id,omitempty"`                // 银行参照号（可空）
	Date            time.Time        `gorm:"index:idx_imported_tx_date,sort:desc;not null" json:"date"`
	Amount          decimal.Decimal  `gorm:"type:decimal(18,2);not null" json:"amount"`
	Content         string           `gorm:"type:varchar(512);not null" json:"content"`
	Balance         *decimal.Decimal `gorm:"type:decimal(18,2)" json:"balance,omitempty"`
	Type            string           `gorm:"type:varchar(16);not null" json:"type"` // deposit / withdrawal
	Memo            string           `gorm:"type:varchar(256)" json:"memo,omitempty"`
	CustomerName    string           `gorm:"type:varchar(128)" json:"customer_name,omitempty"`

	// 导入批次信息（创建时写入一次，之后不再变更）
	ImportBatchNo string    `gorm:"type:varchar(64);index;not null" json:"import_batch_no"`
	ImportedAt    time.Time `gorm:"not null" json:"imported_at"`
	FileName      string    `gorm:"type:varchar(255)" json:"file_name"`
	FileType      string    `gorm:"type:varchar(8)" json:"file_type"` // csv / ofx
	BankType      string    `gorm:"type:varchar(32)" json:"bank_type,omitempty"`

	// 确认字段组（仅 ConfirmTransaction 写入）
	IsConfirmed bool       `gorm:"not null;default:false" json:"is_confirmed"`
	ConfirmedAt *time.Time `json:"confirmed_at,omitempty"`
	ConfirmedBy string     `gorm:"type:varchar(64)" json:"confirmed_by,omitempty"`

	// 匹配字段组（仅 UpdateTransactionMatch 写入，与确认字段组互不重叠）
	MatchedInvoiceID string `gorm:"type:varchar(64);index" json:"matched_invoice_id,omitempty"` // 外部发票弱引用，本系统不校验
	MatchConfidence  string `gorm:"type:varchar(8);not null;default:none" json:"match_confidence"`
	MatchReason      string `gorm:"type:varchar(256)" json:"match_reason,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (ImportedBankTransaction) TableName() string {
	return "imported_bank_transaction"
}
