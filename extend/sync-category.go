package extend

import (
	"context"
	"fmt"

	"github.com/injoyai/base/chans"
	"github.com/injoyai/logs"
	akshare "github.com/xionghao1012/AKShare-Stock-Sync"
)

// SyncCategoryConfig 分类快照同步配置
type SyncCategoryConfig struct {
	Categories []akshare.Category  //要同步的分类,为空则全部
	Limit      int                 //并发数
	Retry      akshare.RetryConfig //重试配置
}

// NewSyncCategory 按分类同步数据源快照,每个数据源整表替换
func NewSyncCategory(cfg SyncCategoryConfig) *SyncCategory {
	if len(cfg.Categories) == 0 {
		cfg.Categories = akshare.AllCategories
	}
	if cfg.Limit <= 0 {
		cfg.Limit = 2
	}
	if cfg.Retry.MaxRetries == 0 && cfg.Retry.Delay == 0 {
		cfg.Retry = akshare.APIRetryConfig
	}
	return &SyncCategory{
		Config: cfg,
		stats:  akshare.NewStats(),
	}
}

type SyncCategory struct {
	Config SyncCategoryConfig
	stats  *akshare.Stats
}

func (this *SyncCategory) Name() string {
	return "同步分类数据快照"
}

func (this *SyncCategory) Stats() *akshare.Stats {
	return this.stats
}

// Run 同步配置的所有分类
func (this *SyncCategory) Run(ctx context.Context, m *akshare.Manage) error {
	for _, category := range this.Config.Categories {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := this.RunCategory(ctx, m, category); err != nil {
			return err
		}
	}
	return nil
}

// RunCategory 同步一个分类下的全部数据源
// 单个数据源失败只记录,不影响其他数据源
func (this *SyncCategory) RunCategory(ctx context.Context, m *akshare.Manage, category akshare.Category) error {

	//1. 获取分类下的数据源,未知分类直接报错
	sources, err := category.Sources()
	if err != nil {
		return err
	}

	limit := chans.NewWaitLimit(this.Config.Limit)
	for _, v := range sources {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		limit.Add()
		go func(source *akshare.Source) {
			defer limit.Done()

			//2. 拉取数据,带重试
			var records []map[string]interface{}
			err := akshare.Retry(ctx, this.Config.Retry, this.stats, func() error {
				return m.Do(func(c *akshare.Client) (err error) {
					records, err = source.Fetch(c)
					return
				})
			})
			if err != nil {
				logs.Err(fmt.Sprintf("[%s] %s 拉取失败: %v", category, source.Name, err))
				return
			}
			if len(records) == 0 {
				logs.Debug(fmt.Sprintf("[%s] %s 没有数据", category, source.Name))
				return
			}

			//3. 整表替换快照
			n, err := m.Snapshot.Replace(category, source.Name, records)
			if err != nil {
				this.stats.Record(akshare.Classify(err))
				logs.Err(fmt.Sprintf("[%s] %s 保存失败: %v", category, source.Name, err))
				return
			}
			logs.Info(fmt.Sprintf("[%s] %s 同步成功: %d条", category, source.Name, n))
		}(v)
	}
	limit.Wait()
	return nil
}

// Schedule 按各分类的间隔注册定时同步,需要m.Cron已启动
func (this *SyncCategory) Schedule(m *akshare.Manage) error {
	for _, category := range this.Config.Categories {
		category := category
		spec := fmt.Sprintf("@every %s", category.Interval())
		_, err := m.Cron.AddFunc(spec, func() {
			ctx, cancel := context.WithTimeout(context.Background(), category.Interval())
			defer cancel()
			logs.PrintErr(this.RunCategory(ctx, m, category))
		})
		if err != nil {
			return err
		}
		logs.Info(fmt.Sprintf("已注册定时任务: %s 每%s同步一次", category, category.Interval()))
	}
	return nil
}
