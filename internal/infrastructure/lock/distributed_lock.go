package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// ============================================================================
// 分布式锁实现
// ============================================================================
//
// 【为什么导入需要分布式锁？】
//
// 场景：操作员把同一个对账单文件连续上传两次（页面卡顿导致重复提交）
//
// 如果没有锁，两次导入会同时通过重复检查（此时库里都还没有这批指纹），
// 然后同时批量插入 —— 后写的一方撞上唯一索引，整批失败，用户看到报错。
// 按文件名加锁后，第二次导入会在一个较短的重试窗口内等待；第一次很快
// 完成时重复检查命中、安静跳过，窗口内没拿到锁则直接报错，调用方稍后重试。
//
// 注意：锁只消除"同一文件重复提交"这种最常见的竞争。不同文件携带相同
// 交易的并发导入仍可能双双通过检查，这种竞争由 transaction_hash 唯一
// 索引兜底，失败方整批回滚后用 skip_duplicates=true 重试即可。
//
// 【Redis 分布式锁原理】
//
// 加锁：SET key value NX EX timeout
//   - NX: 只有 key 不存在时才设置（保证互斥）
//   - EX: 设置过期时间（防止死锁）
//   - value: 锁持有者标识（释放时验证，防止误删别人的锁）
//
// 释放锁：使用 Lua 脚本保证原子性
//   - 先检查 value 是否是自己的
//   - 再删除 key
//
// ============================================================================

var (
	ErrLockFailed  = errors.New("获取分布式锁失败")
	ErrLockExpired = errors.New("锁已过期")
)

// DistributedLock 分布式锁
type DistributedLock struct {
	client     *redis.Client
	key        string        // 锁的 key
	value      string        // 锁的 value（用于验证锁的持有者）
	expiration time.Duration // 锁的过期时间
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
	// SET key value NX EX timeout
	// NX: 只有 key 不存在时才设置
	// EX: 设置过期时间，防止死锁（持有锁的进程崩溃时，锁会自动释放）
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
		// 等待一段时间后重试
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryInterval):
			// 继续重试
		}
	}
	return ErrLockFailed
}

// Unlock 释放锁
//
// 【关键点】使用 Lua 脚本保证"检查+删除"操作的原子性
//
// 为什么要检查 value？
//
//	场景：A 获取锁 -> A 处理超时，锁自动过期 -> B 获取锁 -> A 执行完毕，调用 Unlock
//	如果不检查 value，A 会把 B 的锁删掉！
func (l *DistributedLock) Unlock(ctx context.Context) error {
	// Lua 脚本：检查 value 是否匹配，匹配则删除
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

// NewImportLock 创建导入锁（按源文件维度）
//
// 【设计思考】为什么按文件名加锁？
//
// 方案1：全局锁（所有导入共用一把锁）
//   - 优点：实现简单
//   - 缺点：并发度极低，导入A银行文件时，B银行文件也要排队
//
// 方案2：按文件名加锁（每个源文件独立一把锁）  <-- 我们的选择
//   - 优点：不同文件可以并发导入
//   - 缺点：同一文件不能并发导入（这正是我们想要的！）
//
// value 使用调用方生成的唯一标识（uuid），便于追踪是哪次请求持有锁
func NewImportLock(client *redis.Client, fileName string, owner string, expiration time.Duration) *DistributedLock {
	key := fmt.Sprintf("import:lock:file:%s", fileName)
	return NewDistributedLock(client, key, owner, expiration)
}
