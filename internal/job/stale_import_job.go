package job

import (
	"context"
	"log"
	"time"

	"bankrecon/internal/config"
	"bankrecon/internal/model"
	"bankrecon/internal/repository"

	"gorm.io/gorm"
)

// StaleImportJob 僵死批次清理任务
//
// 两阶段审计流程里，进程在"登记批次"和"回填结果"之间崩溃会留下
// 永远停在 processing 的记录。这里定期扫描并标记为 failed，
// 让操作员能在历史列表里发现并重新导入
type StaleImportJob struct {
	db          *gorm.DB
	historyRepo *repository.HistoryRepository
	cfg         *config.Config
	stopCh      chan struct{}
	interval    time.Duration
	batchSize   int
}

func NewStaleImportJob(db *gorm.DB, cfg *config.Config) *StaleImportJob {
	return &StaleImportJob{
		db:          db,
		historyRepo: repository.NewHistoryRepository(db),
		cfg:         cfg,
		stopCh:      make(chan struct{}),
		interval:    time.Minute,
		batchSize:   100,
	}
}

func (j *StaleImportJob) Start(ctx context.Context) {
	log.Println("[StaleImportJob] 僵死批次清理任务启动")

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[StaleImportJob] 收到停止信号，任务退出")
			return
		case <-j.stopCh:
			log.Println("[StaleImportJob] 任务停止")
			return
		case <-ticker.C:
			j.failStaleImports(ctx)
		}
	}
}

func (j *StaleImportJob) Stop() {
	close(j.stopCh)
}

func (j *StaleImportJob) failStaleImports(ctx context.Context) {
	staleMinutes := j.cfg.Business.StaleImportMinutes
	if staleMinutes <= 0 {
		staleMinutes = 30
	}
	before := time.Now().Add(-time.Duration(staleMinutes) * time.Minute)

	histories, err := j.historyRepo.ListStaleProcessing(ctx, before, j.batchSize)
	if err != nil {
		log.Printf("[StaleImportJob] 查询僵死批次失败: %v", err)
		return
	}

	if len(histories) == 0 {
		return
	}

	log.Printf("[StaleImportJob] 发现 %d 个僵死批次", len(histories))

	failedCount := 0
	for _, history := range histories {
		err := j.historyRepo.UpdateFields(ctx, history.ImportBatchNo, map[string]interface{}{
			"status": model.ImportStatusFailed,
			"errors": "导入超时未回填结果，已由后台任务标记为失败",
		})
		if err != nil {
			log.Printf("[StaleImportJob] 标记批次失败: batchNo=%s, err=%v", history.ImportBatchNo, err)
			continue
		}
		failedCount++
		log.Printf("[StaleImportJob] 批次已标记为失败: batchNo=%s, fileName=%s",
			history.ImportBatchNo, history.FileName)
	}

	log.Printf("[StaleImportJob] 本次标记 %d 个僵死批次", failedCount)
}
