package extend

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/injoyai/conv"
	"github.com/injoyai/logs"
	akshare "github.com/xionghao1012/AKShare-Stock-Sync"
)

// SyncState 引擎状态
type SyncState string

const (
	StateIdle        SyncState = "idle"
	StateRunning     SyncState = "running"
	StateCompleted   SyncState = "completed"
	StateInterrupted SyncState = "interrupted"
	StateFailed      SyncState = "failed"
)

// SyncConfig 批量同步配置
type SyncConfig struct {
	Codes        []string              //指定代码,为空则同步全部
	Stocks       []*akshare.StockModel //指定列表,为空则使用代码库,方便测试
	StartCode    string                //从这个代码开始(含),优先于进度文件
	MaxCount     int                   //最多同步数量,0不限制
	Dir          string                //进度文件目录
	Retry        akshare.RetryConfig   //单只股票的重试配置
	Interval     time.Duration         //每只股票之间的间隔
	RestEvery    int                   //每N只额外休息一次
	RestFor      time.Duration         //额外休息时长
	LogEvery     int                   //每N只打印一次进度
	StaleAfter   time.Duration         //进度过期时间,过期则从头开始
	SkipUpToDate bool                  //数据已是最新则跳过
	EndDate      string                //结束日期YYYYMMDD,为空则今天
}

func (this *SyncConfig) init() {
	if this.Dir == "" {
		this.Dir = "./data"
	}
	if this.Retry.MaxRetries == 0 && this.Retry.Delay == 0 {
		this.Retry = akshare.FetchRetryConfig
		if s := os.Getenv("SYNC_MAX_RETRIES"); s != "" {
			this.Retry.MaxRetries = conv.Int(s)
		}
		if s := os.Getenv("SYNC_RETRY_DELAY"); s != "" {
			if d, err := time.ParseDuration(s); err == nil {
				this.Retry.Delay = d
			}
		}
		if s := os.Getenv("SYNC_BACKOFF"); s != "" {
			this.Retry.Backoff = conv.Float64(s)
		}
	}
	if this.Interval <= 0 {
		this.Interval = time.Second * 2
		if s := os.Getenv("SYNC_PAUSE"); s != "" {
			if d, err := time.ParseDuration(s); err == nil {
				this.Interval = d
			}
		}
	}
	if this.RestEvery <= 0 {
		this.RestEvery = conv.Int(envDefault("SYNC_REST_EVERY", "10"))
	}
	if this.RestFor <= 0 {
		this.RestFor = time.Second * 3
		if s := os.Getenv("SYNC_REST_FOR"); s != "" {
			if d, err := time.ParseDuration(s); err == nil {
				this.RestFor = d
			}
		}
	}
	if this.LogEvery <= 0 {
		this.LogEvery = conv.Int(envDefault("SYNC_LOG_EVERY", "50"))
	}
	if this.StaleAfter <= 0 {
		this.StaleAfter = time.Hour * 24
		if s := os.Getenv("SYNC_STALE_AFTER"); s != "" {
			if d, err := time.ParseDuration(s); err == nil {
				this.StaleAfter = d
			}
		}
	}
}

func envDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// NewSyncStock 批量同步A股历史数据,支持断点续传
func NewSyncStock(cfg SyncConfig) *SyncStock {
	cfg.init()
	return &SyncStock{
		Config:     cfg,
		checkpoint: NewCheckpoint(cfg.Dir),
		stats:      akshare.NewStats(),
		state:      StateIdle,
		fetch: func(c *akshare.Client, code, start, end string) ([]*akshare.KlineData, error) {
			return c.History(code, start, end)
		},
	}
}

type SyncStock struct {
	Config     SyncConfig
	checkpoint *Checkpoint
	stats      *akshare.Stats
	fetch      func(c *akshare.Client, code, start, end string) ([]*akshare.KlineData, error)

	mu    sync.Mutex
	state SyncState
}

func (this *SyncStock) Name() string {
	return "同步A股历史数据"
}

func (this *SyncStock) State() SyncState {
	this.mu.Lock()
	defer this.mu.Unlock()
	return this.state
}

func (this *SyncStock) setState(s SyncState) {
	this.mu.Lock()
	defer this.mu.Unlock()
	this.state = s
}

// start 同一个进度文件只能有一个引擎在跑
func (this *SyncStock) start() error {
	this.mu.Lock()
	defer this.mu.Unlock()
	if this.state == StateRunning {
		return fmt.Errorf("同步任务已在运行中")
	}
	this.state = StateRunning
	return nil
}

func (this *SyncStock) Stats() *akshare.Stats {
	return this.stats
}

// worklist 解析工作列表,固定按代码升序,续传定位依赖这个顺序
func (this *SyncStock) worklist(m *akshare.Manage) []*akshare.StockModel {
	list := this.Config.Stocks
	switch {
	case len(list) > 0:
	case len(this.Config.Codes) > 0:
		for _, code := range this.Config.Codes {
			if stock := m.Codes.Get(code); stock != nil {
				list = append(list, stock)
			} else {
				list = append(list, &akshare.StockModel{Code: code})
			}
		}
	default:
		list = m.Codes.GetStocks()
	}
	ls := make([]*akshare.StockModel, len(list))
	copy(ls, list)
	sort.Slice(ls, func(i, j int) bool { return ls[i].Code < ls[j].Code })
	return ls
}

// Run 执行批量同步
// 存在有效进度时从上次的下一只继续,处理完每只股票都会保存进度,
// ctx取消时保存进度后返回,属于正常中断,再次Run会继续
func (this *SyncStock) Run(ctx context.Context, m *akshare.Manage) error {
	if err := this.start(); err != nil {
		return err
	}

	//1. 解析工作列表
	list := this.worklist(m)
	if len(list) == 0 {
		this.setState(StateFailed)
		return fmt.Errorf("股票列表为空")
	}

	//2. 定位起始位置
	progress, cursor := this.resolveCursor(list)
	items := list[cursor:]
	if this.Config.MaxCount > 0 && len(items) > this.Config.MaxCount {
		items = items[:this.Config.MaxCount]
	}

	logs.Info(fmt.Sprintf("开始同步,共%d只股票", len(items)))

	//3. 逐只同步
	total := len(items)
	for i, stock := range items {
		select {
		case <-ctx.Done():
			//正常中断,保存进度后退出,下次继续
			logs.Info(fmt.Sprintf("同步中断,已处理%d只股票,成功%d,失败%d", i, progress.SuccessCount, progress.FailedCount))
			logs.PrintErr(this.checkpoint.Save(progress))
			logs.PrintErr(this.checkpoint.SaveFailed(progress.Failed))
			this.setState(StateInterrupted)
			return ctx.Err()
		default:
		}

		rows, err := this.syncOne(ctx, m, stock)
		if err != nil && ctx.Err() != nil {
			//拉取或退避过程中被取消,不算该股票失败,进度停在上一只,下次重新处理这只
			logs.Info(fmt.Sprintf("同步中断,已处理%d只股票,成功%d,失败%d", i, progress.SuccessCount, progress.FailedCount))
			logs.PrintErr(this.checkpoint.Save(progress))
			logs.PrintErr(this.checkpoint.SaveFailed(progress.Failed))
			this.setState(StateInterrupted)
			return ctx.Err()
		}
		if err != nil {
			progress.FailedCount++
			progress.AddFailed(stock.Code, stock.Name, err.Error())
			logs.Err(fmt.Sprintf("[%d/%d] %s(%s) 同步失败: %v", i+1, total, stock.Code, stock.Name, err))
		} else {
			progress.SuccessCount++
			progress.ClearFailed(stock.Code)
			logs.Debug(fmt.Sprintf("[%d/%d] %s(%s) 同步成功: %d条", i+1, total, stock.Code, stock.Name, rows))
		}

		//4. 保存进度,崩溃后最多重复处理一只股票
		progress.LastCode = stock.Code
		logs.PrintErr(this.checkpoint.Save(progress))

		//5. 进度日志
		if (i+1)%this.Config.LogEvery == 0 {
			logs.Info(fmt.Sprintf("进度: %d/%d (%.1f%%), 成功%d, 失败%d",
				i+1, total, float64(i+1)/float64(total)*100, progress.SuccessCount, progress.FailedCount))
		}

		//6. 限速,每只之间暂停,每N只额外休息
		if i+1 < total {
			if !sleep(ctx, this.Config.Interval) {
				continue
			}
			if (i+1)%this.Config.RestEvery == 0 {
				logs.Debug(fmt.Sprintf("已处理%d只股票,休息%v...", i+1, this.Config.RestFor))
				sleep(ctx, this.Config.RestFor)
			}
		}
	}

	//7. 完成,保存失败列表供重试
	logs.PrintErr(this.checkpoint.SaveFailed(progress.Failed))
	logs.Info(fmt.Sprintf("同步完成,成功%d,失败%d", progress.SuccessCount, progress.FailedCount))
	for _, v := range progress.Failed {
		logs.Info(fmt.Sprintf("失败: %s(%s) %s", v.Code, v.Name, v.Reason))
	}
	if errStats := this.stats.Snapshot(); len(errStats) > 0 {
		logs.Info("错误统计:", errStats)
	}
	this.setState(StateCompleted)
	return nil
}

// resolveCursor 根据进度文件和配置确定起始位置
// 返回进度对象和工作列表的起始下标
func (this *SyncStock) resolveCursor(list []*akshare.StockModel) (*Progress, int) {

	//指定了起始代码,从该代码开始(含),不使用进度文件的计数
	if this.Config.StartCode != "" {
		for i, v := range list {
			if v.Code >= this.Config.StartCode {
				return &Progress{}, i
			}
		}
		return &Progress{}, len(list)
	}

	progress := this.checkpoint.Load()
	if progress == nil {
		return &Progress{}, 0
	}

	//进度过期,股票列表可能已经变化,只做参考,从头开始
	if progress.Stale(this.Config.StaleAfter) {
		logs.Info(fmt.Sprintf("进度文件已超过%v未更新,忽略,从头开始", this.Config.StaleAfter))
		return &Progress{}, 0
	}

	for i, v := range list {
		if v.Code == progress.LastCode {
			if i == len(list)-1 {
				//上次已经同步到最后一只,开始新一轮
				logs.Info("上次已同步完成,开始新一轮同步")
				return &Progress{}, 0
			}
			logs.Info(fmt.Sprintf("从上次位置继续,上次同步到%s,剩余%d只", progress.LastCode, len(list)-i-1))
			return progress, i + 1
		}
	}

	//进度里的代码已不在列表中,列表变化了,从头开始
	logs.Info(fmt.Sprintf("股票列表中未找到上次的代码%s,从头开始", progress.LastCode))
	return &Progress{}, 0
}

// syncOne 同步单只股票,返回写入条数
// 拉取失败按重试配置退避重试,校验失败和写入失败不重试
func (this *SyncStock) syncOne(ctx context.Context, m *akshare.Manage, stock *akshare.StockModel) (int, error) {

	//代码校验
	if err := akshare.ValidateCode(stock.Code); err != nil {
		this.stats.Record(akshare.KindData)
		return 0, err
	}

	//数据已是最新则跳过,算成功
	if this.Config.SkipUpToDate && m.History.UpToDate(stock.Code, time.Now()) {
		logs.Debug(stock.Code, "数据已是最新,跳过")
		return 0, nil
	}

	start := stock.StartDate()
	end := this.Config.EndDate
	if end == "" {
		end = time.Now().Format("20060102")
	}

	//拉取数据,带退避重试
	var list []*akshare.KlineData
	err := akshare.Retry(ctx, this.Config.Retry, this.stats, func() error {
		return m.Do(func(c *akshare.Client) (err error) {
			list, err = this.fetch(c, stock.Code, start, end)
			return
		})
	})
	if err != nil {
		return 0, err
	}

	//区间内无交易数据,不算失败
	if len(list) == 0 {
		logs.Debug(stock.Code, "没有数据")
		return 0, nil
	}

	//校验数据,校验失败按数据错误处理,不再重试
	if err := akshare.ValidateKlines(list); err != nil {
		this.stats.Record(akshare.KindData)
		return 0, err
	}

	//写入数据库,事务失败会整体回滚,不会留下半截数据
	n, err := m.History.UpsertAll(stock.Code, list)
	if err != nil {
		this.stats.Record(akshare.Classify(err))
		return 0, err
	}
	return n, nil
}

// RetryFailed 只重试失败列表里的股票,成功的从列表移除
// 列表清空后删除失败文件
func (this *SyncStock) RetryFailed(ctx context.Context, m *akshare.Manage) error {
	if err := this.start(); err != nil {
		return err
	}

	failed := this.checkpoint.LoadFailed()
	if len(failed) == 0 {
		logs.Info("没有失败的股票需要重试")
		this.setState(StateCompleted)
		return nil
	}

	logs.Info(fmt.Sprintf("开始重试%d只失败的股票", len(failed)))

	still := []*FailedStock(nil)
	success := 0
	for i, v := range failed {
		select {
		case <-ctx.Done():
			still = append(still, failed[i:]...)
			logs.PrintErr(this.checkpoint.SaveFailed(still))
			this.setState(StateInterrupted)
			return ctx.Err()
		default:
		}

		stock := m.Codes.Get(v.Code)
		if stock == nil {
			stock = &akshare.StockModel{Code: v.Code, Name: v.Name}
		}

		rows, err := this.syncOne(ctx, m, stock)
		if err != nil && ctx.Err() != nil {
			//被取消的不算重试失败,保留原因,剩余的下次继续
			still = append(still, failed[i:]...)
			logs.PrintErr(this.checkpoint.SaveFailed(still))
			this.reconcileProgress(still, success)
			this.setState(StateInterrupted)
			return ctx.Err()
		}
		if err != nil {
			v.Reason = err.Error()
			still = append(still, v)
			logs.Err(fmt.Sprintf("[%d/%d] %s(%s) 重试仍然失败: %v", i+1, len(failed), v.Code, v.Name, err))
		} else {
			success++
			logs.Info(fmt.Sprintf("[%d/%d] %s(%s) 重试成功: %d条", i+1, len(failed), v.Code, v.Name, rows))
		}

		//重试的间隔更保守一些,每5只休息一次
		if i+1 < len(failed) {
			if !sleep(ctx, this.Config.Interval) {
				continue
			}
			if (i+1)%5 == 0 {
				sleep(ctx, this.Config.RestFor)
			}
		}
	}

	if err := this.checkpoint.SaveFailed(still); err != nil {
		logs.Err(err)
	}
	this.reconcileProgress(still, success)
	logs.Info(fmt.Sprintf("重试完成,成功%d,仍然失败%d", success, len(still)))
	this.setState(StateCompleted)
	return nil
}

// reconcileProgress 重试后同步进度文件里的失败记录,保持两个文件一致
func (this *SyncStock) reconcileProgress(still []*FailedStock, success int) {
	progress := this.checkpoint.Load()
	if progress == nil {
		return
	}
	progress.Failed = still
	progress.FailedCount = len(still)
	progress.SuccessCount += success
	logs.PrintErr(this.checkpoint.Save(progress))
}

// SyncDate 同步所有股票指定日期的数据,日期格式YYYYMMDD
func (this *SyncStock) SyncDate(ctx context.Context, m *akshare.Manage, date string) error {
	if err := akshare.ValidateDate(date); err != nil {
		return err
	}
	if err := this.start(); err != nil {
		return err
	}

	list := this.worklist(m)
	logs.Info(fmt.Sprintf("开始同步%d只股票%s的数据", len(list), date))

	success, failed := 0, 0
	for i, stock := range list {
		select {
		case <-ctx.Done():
			this.setState(StateInterrupted)
			return ctx.Err()
		default:
		}

		err := func() error {
			if err := akshare.ValidateCode(stock.Code); err != nil {
				return err
			}
			var ls []*akshare.KlineData
			err := akshare.Retry(ctx, this.Config.Retry, this.stats, func() error {
				return m.Do(func(c *akshare.Client) (err error) {
					ls, err = this.fetch(c, stock.Code, date, date)
					return
				})
			})
			if err != nil {
				return err
			}
			if len(ls) == 0 {
				//当天无数据不算失败
				return nil
			}
			if err := akshare.ValidateKlines(ls); err != nil {
				this.stats.Record(akshare.KindData)
				return err
			}
			_, err = m.History.UpsertDate(stock.Code, ls[0].Date, ls)
			return err
		}()
		if err != nil && ctx.Err() != nil {
			this.setState(StateInterrupted)
			return ctx.Err()
		}
		if err != nil {
			failed++
			logs.Err(fmt.Sprintf("[%d/%d] %s 同步失败: %v", i+1, len(list), stock.Code, err))
		} else {
			success++
		}

		if i+1 < len(list) {
			if !sleep(ctx, this.Config.Interval) {
				continue
			}
			if (i+1)%this.Config.RestEvery == 0 {
				sleep(ctx, this.Config.RestFor)
			}
		}
		if (i+1)%100 == 0 {
			logs.Info(fmt.Sprintf("进度: %d/%d, 成功%d, 失败%d", i+1, len(list), success, failed))
		}
	}

	logs.Info(fmt.Sprintf("按日期同步完成,成功%d,失败%d", success, failed))
	this.setState(StateCompleted)
	return nil
}

// sleep 可取消的等待,被取消返回false
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
