package handler

import (
	"bankrecon/internal/config"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// SetupRouter 配置路由
func SetupRouter(db *gorm.DB, rdb *redis.Client, cfg *config.Config) *gin.Engine {
	// 设置 gin 为发布模式（减少日志输出）
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// 注册中间件
	r.Use(RecoveryMiddleware())
	r.Use(LoggerMiddleware())
	r.Use(CORSMiddleware())

	// 创建处理器
	h := NewHandler(db, rdb, cfg)

	// API 路由组
	api := r.Group("/api/v1")
	{
		// 导入相关
		imp := api.Group("/import")
		{
			imp.POST("/execute", h.ImportTransactions)
			imp.GET("/history", h.GetImportHistory)
			imp.GET("/detail", h.GetImportBatch)
		}

		// 交易相关
		transaction := api.Group("/transaction")
		{
			transaction.POST("/check-duplicate", h.CheckDuplicate)
			transaction.POST("/check-duplicates", h.CheckDuplicates)
			transaction.GET("/list", h.ListTransactions)
			transaction.GET("/detail", h.GetTransaction)
			transaction.POST("/match", h.UpdateTransactionMatch)
			transaction.POST("/confirm", h.ConfirmTransaction)
		}
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}
