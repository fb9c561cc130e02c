package job

import (
	"context"
	"log"
	"time"

	"github.com/Venterweb3-wq/zodiak/internal/service"
)

// PayoutSchedulerJob 收益发放调度任务
// 每个策略一个实例，按策略档案声明的间隔跑批。
// 任务本身不保证只跑一次——重跑的幂等性在 (account, period) 唯一键上。
type PayoutSchedulerJob struct {
	svc      *service.PayoutService
	profile  *service.StrategyProfile
	stopCh   chan struct{}
	interval time.Duration
}

func NewPayoutSchedulerJob(svc *service.PayoutService, profile *service.StrategyProfile) *PayoutSchedulerJob {
	return &PayoutSchedulerJob{
		svc:      svc,
		profile:  profile,
		stopCh:   make(chan struct{}),
		interval: profile.RunInterval,
	}
}

func (j *PayoutSchedulerJob) Start(ctx context.Context) {
	log.Printf("[PayoutScheduler:%s] 发放调度任务启动, interval=%s", j.profile.Key, j.interval)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("[PayoutScheduler:%s] 收到停止信号，任务退出", j.profile.Key)
			return
		case <-j.stopCh:
			log.Printf("[PayoutScheduler:%s] 任务停止", j.profile.Key)
			return
		case <-ticker.C:
			if _, err := j.svc.GeneratePayouts(ctx, j.profile.Key); err != nil {
				log.Printf("[PayoutScheduler:%s] 发放跑批失败: %v", j.profile.Key, err)
			}
		}
	}
}

func (j *PayoutSchedulerJob) Stop() {
	close(j.stopCh)
}
