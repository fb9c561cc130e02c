package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// ============================================================================
// 分布式锁
// ============================================================================
//
// 幂等性的正确性保证始终在数据库唯一键上（payout 的 (account, period)、
// 返佣的五元组、提现扣款的条件更新）。这里的锁只用来降低并发冲突的概率：
// 同一账户的重复提现请求、同一周期的调度重跑，先被锁挡掉一轮，
// 漏过去的仍会被唯一键拒绝。
//
// 加锁：SET key value NX EX timeout
// 释放：Lua 脚本先验证 value 再删除，避免误删他人持有的锁。
//
// ============================================================================

var ErrLockFailed = errors.New("获取分布式锁失败")

// DistributedLock 分布式锁
type DistributedLock struct {
	client     *redis.Client
	key        string
	value      string // 锁持有者标识（释放时验证）
	expiration time.Duration
}

// NewDistributedLock 创建分布式锁
func NewDistributedLock(client *redis.Client, key, value string, expiration time.Duration) *DistributedLock {
	return &DistributedLock{
		client:     client,
		key:        key,
		value:      value,
		expiration: expiration,
	}
}

// TryLock 尝试获取锁（非阻塞）
func (l *DistributedLock) TryLock(ctx context.Context) (bool, error) {
	success, err := l.client.SetNX(ctx, l.key, l.value, l.expiration).Result()
	if err != nil {
		return false, err
	}
	return success, nil
}

// Lock 阻塞式获取锁（带重试）
func (l *DistributedLock) Lock(ctx context.Context, retryInterval time.Duration, maxRetries int) error {
	for i := 0; i < maxRetries; i++ {
		success, err := l.TryLock(ctx)
		if err != nil {
			return err
		}
		if success {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryInterval):
		}
	}
	return ErrLockFailed
}

// Unlock 释放锁
// Lua 脚本保证"检查+删除"的原子性：锁过期后被他人持有时不会误删。
func (l *DistributedLock) Unlock(ctx context.Context) error {
	script := `
		if redis.call("GET", KEYS[1]) == ARGV[1] then
			return redis.call("DEL", KEYS[1])
		else
			return 0
		end
	`
	_, err := l.client.Eval(ctx, script, []string{l.key}, l.value).Result()
	return err
}

// NewWithdrawLock 创建提现锁（按账户维度）
// 同一账户的提现请求串行化，不同账户互不影响。
func NewWithdrawLock(client *redis.Client, accountID int64, requestID string) *DistributedLock {
	key := fmt.Sprintf("withdraw:lock:account:%d", accountID)
	return NewDistributedLock(client, key, requestID, 30*time.Second)
}

// NewSchedulerLock 创建调度任务锁（按策略+周期维度）
// 多实例部署时同一周期只有一个实例真正跑批，其余直接跳过本轮。
func NewSchedulerLock(client *redis.Client, strategy, period, holder string) *DistributedLock {
	key := fmt.Sprintf("payout:lock:%s:%s", strategy, period)
	return NewDistributedLock(client, key, holder, 5*time.Minute)
}
