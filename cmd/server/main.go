package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/Venterweb3-wq/zodiak/internal/config"
	"github.com/Venterweb3-wq/zodiak/internal/gateway"
	"github.com/Venterweb3-wq/zodiak/internal/handler"
	"github.com/Venterweb3-wq/zodiak/internal/infrastructure/cache"
	"github.com/Venterweb3-wq/zodiak/internal/infrastructure/database"
	"github.com/Venterweb3-wq/zodiak/internal/infrastructure/mq"
	"github.com/Venterweb3-wq/zodiak/internal/job"
	"github.com/Venterweb3-wq/zodiak/internal/service"
	"github.com/Venterweb3-wq/zodiak/pkg/idgen"
)

func main() {
	// 加载配置
	cfg := config.LoadConfig("config/config.yaml")

	// 初始化 ID 生成器
	idgen.Init(int64(cfg.Business.WorkerID))

	// 初始化 MySQL
	db := database.InitMySQL(&cfg.MySQL)

	// 初始化 Redis
	redisClient := cache.InitRedis(&cfg.Redis)

	// 初始化 Kafka
	mq.InitKafka(&cfg.Kafka)
	defer mq.CloseKafka()

	// 创建上下文（用于优雅关闭）
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 后台任务：发件箱投递
	outboxSender := job.NewOutboxSender(db, cfg)
	go outboxSender.Start(ctx)

	// 后台任务：每个策略一个发放调度器
	holder := "scheduler-" + strconv.Itoa(cfg.Business.WorkerID)
	payoutService := service.NewPayoutService(db, redisClient, cfg.Kafka.PayoutTopicPrefix, holder)
	for _, profile := range service.StrategyRegistry {
		scheduler := job.NewPayoutSchedulerJob(payoutService, profile)
		go scheduler.Start(ctx)
	}

	// 后台任务：返佣计提
	referralJob := job.NewReferralAccrualJob(service.NewReferralService(db))
	go referralJob.Start(ctx)

	// 后台任务：临时钱包过期
	walletService := service.NewWalletService(db, gateway.NewClient(&cfg.Gateway), cfg.Business.WalletExpiryHours)
	expiryJob := job.NewWalletExpiryJob(walletService)
	go expiryJob.Start(ctx)

	// 设置路由
	router := handler.SetupRouter(db, redisClient, cfg)

	// 启动 HTTP 服务
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Printf("服务启动，监听端口: %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("服务启动失败: %v", err)
		}
	}()

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("正在关闭服务...")

	// 取消上下文，停止后台任务
	cancel()

	// 关闭 HTTP 服务（等待最多5秒）
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("服务关闭异常: %v", err)
	}

	log.Println("服务已关闭")
}
