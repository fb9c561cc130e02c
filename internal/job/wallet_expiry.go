package job

import (
	"context"
	"log"
	"time"

	"github.com/Venterweb3-wq/zodiak/internal/service"
)

// WalletExpiryJob 临时钱包过期任务
// 批量把超过充值有效期仍未收到充值的钱包置为 expired。
type WalletExpiryJob struct {
	svc      *service.WalletService
	stopCh   chan struct{}
	interval time.Duration
}

func NewWalletExpiryJob(svc *service.WalletService) *WalletExpiryJob {
	return &WalletExpiryJob{
		svc:      svc,
		stopCh:   make(chan struct{}),
		interval: time.Minute,
	}
}

func (j *WalletExpiryJob) Start(ctx context.Context) {
	log.Println("[WalletExpiry] 临时钱包过期任务启动")

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[WalletExpiry] 收到停止信号，任务退出")
			return
		case <-j.stopCh:
			log.Println("[WalletExpiry] 任务停止")
			return
		case <-ticker.C:
			expired, err := j.svc.ExpireWallets(ctx)
			if err != nil {
				log.Printf("[WalletExpiry] 过期处理失败: %v", err)
				continue
			}
			if expired > 0 {
				log.Printf("[WalletExpiry] 本轮过期 %d 个临时钱包", expired)
			}
		}
	}
}

func (j *WalletExpiryJob) Stop() {
	close(j.stopCh)
}
