package handler

import (
	"errors"
	"log"
	"strconv"
	"strings"
	"time"

	"bankrecon/internal/config"
	"bankrecon/internal/model"
	"bankrecon/internal/repository"
	"bankrecon/internal/service"
	"bankrecon/pkg/idgen"
	"bankrecon/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Handler 统一处理器，包含所有服务依赖
type Handler struct {
	cfg            *config.Config
	dedupService   *service.DedupService
	importService  *service.ImportService
	historyService *service.HistoryService
	queryService   *service.QueryService
	matchService   *service.MatchService
}

// NewHandler 创建处理器实例
func NewHandler(db *gorm.DB, rdb *redis.Client, cfg *config.Config) *Handler {
	return &Handler{
		cfg:            cfg,
		dedupService:   service.NewDedupService(db),
		importService:  service.NewImportService(db, rdb, cfg),
		historyService: service.NewHistoryService(db),
		queryService:   service.NewQueryService(db),
		matchService:   service.NewMatchService(db),
	}
}

// ============================================================
// 导入相关接口
// ============================================================

// ImportRequest 导入请求
// transactions 是上游解析器产出的标准化交易，文件解析不在本服务内做
type ImportRequest struct {
	FileName       string                   `json:"file_name" binding:"required"`
	FileType       string                   `json:"file_type" binding:"required,oneof=csv ofx"`
	FileSize       int64                    `json:"file_size"`
	BankType       string                   `json:"bank_type"`
	BankName       string                   `json:"bank_name"`
	SkipDuplicates *bool                    `json:"skip_duplicates"` // 缺省为 true
	Transactions   []*model.BankTransaction `json:"transactions" binding:"required"`
}

// ImportTransactions 执行导入批次
// POST /api/v1/import/execute
//
// 【关键点】两阶段审计：
// 1. 导入前以 processing 状态登记批次（批次号先生成，失败也能关联排查）
// 2. 导入返回后回填 completed / partial / failed 和最终计数
func (h *Handler) ImportTransactions(c *gin.Context) {
	var req ImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	skipDuplicates := true
	if req.SkipDuplicates != nil {
		skipDuplicates = *req.SkipDuplicates
	}

	batchNo := idgen.GenerateImportBatchNo()
	ctx := c.Request.Context()

	// 阶段一：登记批次
	history := &model.BankImportHistory{
		ImportBatchNo: batchNo,
		FileName:      req.FileName,
		FileSize:      req.FileSize,
		FileType:      req.FileType,
		BankType:      req.BankType,
		BankName:      req.BankName,
		Status:        model.ImportStatusProcessing,
	}
	fillParseStats(history, req.Transactions)

	if _, err := h.historyService.CreateImportHistory(ctx, history); err != nil {
		response.ServerError(c, err.Error())
		return
	}

	// 阶段二：执行导入
	result, err := h.importService.ImportTransactions(ctx, req.Transactions, &service.ImportOptions{
		ImportBatchNo:  batchNo,
		FileName:       req.FileName,
		FileType:       req.FileType,
		BankType:       req.BankType,
		SkipDuplicates: skipDuplicates,
	})
	if err != nil {
		h.finalizeHistory(c, batchNo, map[string]interface{}{
			"status": model.ImportStatusFailed,
			"errors": err.Error(),
		})
		response.ServerError(c, err.Error())
		return
	}

	// 回填批次状态
	status := model.ImportStatusCompleted
	if !result.Success {
		status = model.ImportStatusFailed
	} else if result.Duplicates > 0 {
		status = model.ImportStatusPartial
	}
	h.finalizeHistory(c, batchNo, map[string]interface{}{
		"status":                status,
		"duplicate_count":       result.Duplicates,
		"new_transaction_count": result.Created,
		"errors":                strings.Join(result.Errors, "\n"),
	})

	if !result.Success {
		response.BusinessError(c, response.CodeImportFailed, "导入失败")
		return
	}

	response.Success(c, gin.H{
		"import_batch_no": batchNo,
		"status":          status,
		"result":          result,
	})
}

func (h *Handler) finalizeHistory(c *gin.Context, batchNo string, fields map[string]interface{}) {
	if err := h.historyService.UpdateImportHistory(c.Request.Context(), batchNo, fields); err != nil {
		// 审计回填失败不影响导入结果本身，僵死批次由后台任务兜底
		log.Printf("[Handler] 回填导入历史失败: batchNo=%s, err=%v", batchNo, err)
	}
}

// fillParseStats 统计解析结果，写入批次记录
func fillParseStats(history *model.BankImportHistory, transactions []*model.BankTransaction) {
	history.TotalCount = len(transactions)
	depositTotal := decimal.Zero
	withdrawalTotal := decimal.Zero
	for _, t := range transactions {
		if t == nil {
			continue
		}
		switch t.Type {
		case model.DirectionDeposit:
			history.DepositCount++
			depositTotal = depositTotal.Add(t.Amount)
		case model.DirectionWithdrawal:
			history.WithdrawalCount++
			withdrawalTotal = withdrawalTotal.Add(t.Amount)
		}
	}
	history.TotalDepositAmount = depositTotal
	history.TotalWithdrawalAmount = withdrawalTotal
}

// GetImportHistory 查询导入历史
// GET /api/v1/import/history?status=xxx&limit=20&offset=0
func (h *Handler) GetImportHistory(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	items, total, err := h.historyService.GetImportHistory(c.Request.Context(), &repository.HistoryFilter{
		Status: c.Query("status"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, gin.H{
		"items": items,
		"total": total,
	})
}

// GetImportBatch 按批次号查询单条导入记录
// GET /api/v1/import/detail?batch_no=xxx
func (h *Handler) GetImportBatch(c *gin.Context) {
	batchNo := c.Query("batch_no")
	if batchNo == "" {
		response.ParamError(c, "batch_no 参数错误")
		return
	}

	history, err := h.historyService.GetImportBatch(c.Request.Context(), batchNo)
	if err != nil {
		if errors.Is(err, repository.ErrBatchNotFound) {
			response.BusinessError(c, response.CodeBatchNotFound, err.Error())
			return
		}
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, history)
}

// ============================================================
// 重复检查接口
// ============================================================

// CheckDuplicate 单笔重复检查
// POST /api/v1/transaction/check-duplicate
func (h *Handler) CheckDuplicate(c *gin.Context) {
	var req model.BankTransaction
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	result, err := h.dedupService.CheckDuplicate(c.Request.Context(), &req)
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, result)
}

// CheckDuplicates 批量重复检查
// POST /api/v1/transaction/check-duplicates
func (h *Handler) CheckDuplicates(c *gin.Context) {
	var req []*model.BankTransaction
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	results, err := h.dedupService.CheckDuplicates(c.Request.Context(), req)
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, results)
}

// ============================================================
// 交易查询/匹配/确认接口
// ============================================================

// ListTransactions 查询已导入交易列表
// GET /api/v1/transaction/list?import_batch_no=&date_from=&date_to=&type=&is_confirmed=&limit=&offset=
func (h *Handler) ListTransactions(c *gin.Context) {
	filter := &repository.TransactionFilter{
		ImportBatchNo: c.Query("import_batch_no"),
		Type:          c.Query("type"),
	}

	if v := c.Query("date_from"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			response.ParamError(c, "date_from 参数错误")
			return
		}
		filter.DateFrom = &t
	}
	if v := c.Query("date_to"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			response.ParamError(c, "date_to 参数错误")
			return
		}
		filter.DateTo = &t
	}
	if v := c.Query("is_confirmed"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			response.ParamError(c, "is_confirmed 参数错误")
			return
		}
		filter.IsConfirmed = &b
	}

	filter.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(h.cfg.Business.DefaultPageSize)))
	filter.Offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))

	items, total, err := h.queryService.GetImportedTransactions(c.Request.Context(), filter)
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, gin.H{
		"items": items,
		"total": total,
	})
}

// GetTransaction 查询单笔交易
// GET /api/v1/transaction/detail?id=xxx
func (h *Handler) GetTransaction(c *gin.Context) {
	id, err := strconv.ParseInt(c.Query("id"), 10, 64)
	if err != nil {
		response.ParamError(c, "id 参数错误")
		return
	}

	trans, err := h.queryService.GetTransaction(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrTransactionNotFound) {
			response.BusinessError(c, response.CodeTransactionNotFound, err.Error())
			return
		}
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, trans)
}

// MatchRequest 匹配更新请求
type MatchRequest struct {
	TransactionID    int64   `json:"transaction_id" binding:"required"`
	MatchedInvoiceID *string `json:"matched_invoice_id"`
	MatchConfidence  *string `json:"match_confidence"`
	MatchReason      *string `json:"match_reason"`
}

// UpdateTransactionMatch 更新交易匹配信息
// POST /api/v1/transaction/match
func (h *Handler) UpdateTransactionMatch(c *gin.Context) {
	var req MatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	err := h.matchService.UpdateTransactionMatch(c.Request.Context(), req.TransactionID, &service.MatchUpdate{
		MatchedInvoiceID: req.MatchedInvoiceID,
		MatchConfidence:  req.MatchConfidence,
		MatchReason:      req.MatchReason,
	})
	if err != nil {
		if errors.Is(err, repository.ErrTransactionNotFound) {
			response.BusinessError(c, response.CodeTransactionNotFound, err.Error())
			return
		}
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, gin.H{
		"message": "匹配信息已更新",
	})
}

// ConfirmRequest 确认请求
type ConfirmRequest struct {
	TransactionID int64  `json:"transaction_id" binding:"required"`
	ConfirmedBy   string `json:"confirmed_by"`
}

// ConfirmTransaction 人工确认交易
// POST /api/v1/transaction/confirm
func (h *Handler) ConfirmTransaction(c *gin.Context) {
	var req ConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	err := h.matchService.ConfirmTransaction(c.Request.Context(), req.TransactionID, req.ConfirmedBy)
	if err != nil {
		if errors.Is(err, repository.ErrTransactionNotFound) {
			response.BusinessError(c, response.CodeTransactionNotFound, err.Error())
			return
		}
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, gin.H{
		"message": "交易已确认",
	})
}
