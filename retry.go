package akshare

import (
	"context"
	"time"
)

// RetryConfig 重试配置
type RetryConfig struct {
	MaxRetries int           //最大重试次数,不含第一次
	Delay      time.Duration //首次重试等待时间
	Backoff    float64       //每次重试等待时间的倍数
}

func (this RetryConfig) init() RetryConfig {
	if this.MaxRetries < 0 {
		this.MaxRetries = 0
	}
	if this.Delay <= 0 {
		this.Delay = time.Second
	}
	if this.Backoff < 1 {
		this.Backoff = 1
	}
	return this
}

var (
	// APIRetryConfig 接口调用的重试配置
	APIRetryConfig = RetryConfig{MaxRetries: 3, Delay: time.Second * 5, Backoff: 1.5}
	// DatabaseRetryConfig 数据库连接的重试配置
	DatabaseRetryConfig = RetryConfig{MaxRetries: 3, Delay: time.Second * 2, Backoff: 2}
	// FetchRetryConfig 拉取行情数据的重试配置,网络差的时候需要更多次数
	FetchRetryConfig = RetryConfig{MaxRetries: 5, Delay: time.Second * 3, Backoff: 1.5}
)

// Retry 执行op,失败后按配置退避重试
// 只有可恢复的错误(网络/限流)会重试,其他错误立即返回
// 每次失败的分类都会记录到stats里面
func Retry(ctx context.Context, cfg RetryConfig, stats *Stats, op func() error) error {
	cfg = cfg.init()
	delay := cfg.Delay
	for i := 0; ; i++ {
		err := op()
		if err == nil {
			return nil
		}

		kind := Classify(err)
		if stats != nil {
			stats.Record(kind)
		}
		if !kind.Recoverable() || i >= cfg.MaxRetries {
			return err
		}

		//退避等待,第k次失败等待 Delay*Backoff^k
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay = time.Duration(float64(delay) * cfg.Backoff)
	}
}
