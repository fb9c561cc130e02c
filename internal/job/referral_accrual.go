package job

import (
	"context"
	"log"
	"time"

	"github.com/Venterweb3-wq/zodiak/internal/service"
)

// ReferralAccrualJob 返佣计提任务
// 每小时扫一轮；扫描窗口由返佣设置决定并刻意和上一轮重叠，
// 重复计提被五元组唯一键挡掉，所以跑得勤一点没有副作用。
type ReferralAccrualJob struct {
	svc      *service.ReferralService
	stopCh   chan struct{}
	interval time.Duration
}

func NewReferralAccrualJob(svc *service.ReferralService) *ReferralAccrualJob {
	return &ReferralAccrualJob{
		svc:      svc,
		stopCh:   make(chan struct{}),
		interval: time.Hour,
	}
}

func (j *ReferralAccrualJob) Start(ctx context.Context) {
	log.Println("[ReferralAccrual] 返佣计提任务启动")

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[ReferralAccrual] 收到停止信号，任务退出")
			return
		case <-j.stopCh:
			log.Println("[ReferralAccrual] 任务停止")
			return
		case <-ticker.C:
			if _, err := j.svc.ProcessAccruals(ctx); err != nil {
				log.Printf("[ReferralAccrual] 返佣跑批失败: %v", err)
			}
		}
	}
}

func (j *ReferralAccrualJob) Stop() {
	close(j.stopCh)
}
