package extend

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	akshare "github.com/xionghao1012/AKShare-Stock-Sync"
)

func testManage(t *testing.T) *akshare.Manage {
	history, err := akshare.NewHistorySqlite(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { history.Close() })

	pool, err := akshare.NewPool(func() (*akshare.Client, error) {
		return akshare.NewClient(&akshare.ClientConfig{BaseURL: "http://127.0.0.1:1"}), nil
	}, 1)
	if err != nil {
		t.Fatal(err)
	}

	return &akshare.Manage{
		Pool:    pool,
		History: history,
		Codes:   &akshare.Codes{Map: map[string]*akshare.StockModel{}},
	}
}

func testStocks() []*akshare.StockModel {
	return []*akshare.StockModel{
		{Code: "000001", Name: "平安银行", ListDate: "1991-04-03"},
		{Code: "000002", Name: "万科A", ListDate: "1991-01-29"},
		{Code: "000004", Name: "国华网安", ListDate: "1991-01-14"},
	}
}

func testSync(t *testing.T, cfg SyncConfig) *SyncStock {
	if cfg.Dir == "" {
		cfg.Dir = t.TempDir()
	}
	cfg.Interval = time.Millisecond
	cfg.RestFor = time.Millisecond
	if cfg.Retry.MaxRetries == 0 && cfg.Retry.Delay == 0 {
		cfg.Retry = akshare.RetryConfig{Delay: time.Millisecond}
	}
	return NewSyncStock(cfg)
}

// 固定返回一条K线
func okFetch(seen *[]string) func(c *akshare.Client, code, start, end string) ([]*akshare.KlineData, error) {
	return func(c *akshare.Client, code, start, end string) ([]*akshare.KlineData, error) {
		*seen = append(*seen, code)
		return []*akshare.KlineData{{
			Date: "2024-01-02", Open: 10, Close: 10.5, High: 10.8, Low: 9.9,
			Volume: 100000, Amount: 1050000,
		}}, nil
	}
}

func TestSyncStock_Run(t *testing.T) {
	m := testManage(t)
	syncer := testSync(t, SyncConfig{Stocks: testStocks()})

	//000002返回数据错误,其他成功
	syncer.fetch = func(c *akshare.Client, code, start, end string) ([]*akshare.KlineData, error) {
		if code == "000002" {
			return nil, akshare.NewError(akshare.KindData, "数据格式错误")
		}
		if start != "19910403" && code == "000001" {
			t.Error("起始日期应该是上市日期:", start)
		}
		return []*akshare.KlineData{{
			Date: "2024-01-02", Open: 10, Close: 10.5, High: 10.8, Low: 9.9,
			Volume: 100000, Amount: 1050000,
		}}, nil
	}

	if err := syncer.Run(context.Background(), m); err != nil {
		t.Fatal(err)
	}
	if syncer.State() != StateCompleted {
		t.Error("状态错误:", syncer.State())
	}

	progress := syncer.checkpoint.Load()
	if progress == nil {
		t.Fatal("应该保存进度")
	}
	if progress.SuccessCount != 2 || progress.FailedCount != 1 {
		t.Error("计数错误:", progress.SuccessCount, progress.FailedCount)
	}
	if progress.LastCode != "000004" {
		t.Error("最后代码错误:", progress.LastCode)
	}

	failed := syncer.checkpoint.LoadFailed()
	if len(failed) != 1 || failed[0].Code != "000002" {
		t.Error("失败列表错误:", failed)
	}

	//数据落库
	count, err := m.History.Count("000001")
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Error("数据条数错误:", count)
	}
}

func TestSyncStock_EmptyResult(t *testing.T) {
	m := testManage(t)
	syncer := testSync(t, SyncConfig{Stocks: testStocks()[:1]})
	//区间内无数据算成功
	syncer.fetch = func(c *akshare.Client, code, start, end string) ([]*akshare.KlineData, error) {
		return nil, nil
	}

	if err := syncer.Run(context.Background(), m); err != nil {
		t.Fatal(err)
	}
	progress := syncer.checkpoint.Load()
	if progress.SuccessCount != 1 || progress.FailedCount != 0 {
		t.Error("空数据应该算成功:", progress.SuccessCount, progress.FailedCount)
	}
}

func TestSyncStock_Resume(t *testing.T) {
	m := testManage(t)
	dir := t.TempDir()

	//第一轮的进度:同步到000001
	cp := NewCheckpoint(dir)
	if err := cp.Save(&Progress{LastCode: "000001", SuccessCount: 1}); err != nil {
		t.Fatal(err)
	}

	seen := []string(nil)
	syncer := testSync(t, SyncConfig{Stocks: testStocks(), Dir: dir})
	syncer.fetch = okFetch(&seen)

	if err := syncer.Run(context.Background(), m); err != nil {
		t.Fatal(err)
	}
	if len(seen) != 2 || seen[0] != "000002" || seen[1] != "000004" {
		t.Error("应该只处理上次之后的股票:", seen)
	}
	//计数在上次基础上累加
	progress := syncer.checkpoint.Load()
	if progress.SuccessCount != 3 {
		t.Error("计数应该累加:", progress.SuccessCount)
	}
}

func TestSyncStock_ResumeStale(t *testing.T) {
	m := testManage(t)
	dir := t.TempDir()

	//进度文件超过24小时,应该从头开始
	bs := []byte(`{"last_code":"000002","success_count":2,"last_update":"2020-01-01T00:00:00Z"}`)
	if err := os.WriteFile(filepath.Join(dir, progressFilename), bs, 0666); err != nil {
		t.Fatal(err)
	}

	seen := []string(nil)
	syncer := testSync(t, SyncConfig{Stocks: testStocks(), Dir: dir})
	syncer.fetch = okFetch(&seen)

	if err := syncer.Run(context.Background(), m); err != nil {
		t.Fatal(err)
	}
	if len(seen) != 3 {
		t.Error("过期进度应该从头开始:", seen)
	}
}

func TestSyncStock_ResumeLastItem(t *testing.T) {
	m := testManage(t)
	dir := t.TempDir()

	//上次已经同步到最后一只,开始新一轮
	cp := NewCheckpoint(dir)
	if err := cp.Save(&Progress{LastCode: "000004", SuccessCount: 3}); err != nil {
		t.Fatal(err)
	}

	seen := []string(nil)
	syncer := testSync(t, SyncConfig{Stocks: testStocks(), Dir: dir})
	syncer.fetch = okFetch(&seen)

	if err := syncer.Run(context.Background(), m); err != nil {
		t.Fatal(err)
	}
	if len(seen) != 3 {
		t.Error("应该开始新一轮:", seen)
	}
	progress := syncer.checkpoint.Load()
	if progress.SuccessCount != 3 {
		t.Error("新一轮应该重新计数:", progress.SuccessCount)
	}
}

func TestSyncStock_ResumeUnknownCode(t *testing.T) {
	m := testManage(t)
	dir := t.TempDir()

	//进度里的代码已不在列表中(股票列表变化),从头开始
	cp := NewCheckpoint(dir)
	if err := cp.Save(&Progress{LastCode: "999999", SuccessCount: 5}); err != nil {
		t.Fatal(err)
	}

	seen := []string(nil)
	syncer := testSync(t, SyncConfig{Stocks: testStocks(), Dir: dir})
	syncer.fetch = okFetch(&seen)

	if err := syncer.Run(context.Background(), m); err != nil {
		t.Fatal(err)
	}
	if len(seen) != 3 {
		t.Error("找不到上次代码应该从头开始:", seen)
	}
}

func TestSyncStock_StartCode(t *testing.T) {
	m := testManage(t)

	seen := []string(nil)
	syncer := testSync(t, SyncConfig{Stocks: testStocks(), StartCode: "000002"})
	syncer.fetch = okFetch(&seen)

	if err := syncer.Run(context.Background(), m); err != nil {
		t.Fatal(err)
	}
	if len(seen) != 2 || seen[0] != "000002" {
		t.Error("应该从指定代码开始(含):", seen)
	}
}

func TestSyncStock_MaxCount(t *testing.T) {
	m := testManage(t)

	seen := []string(nil)
	syncer := testSync(t, SyncConfig{Stocks: testStocks(), MaxCount: 2})
	syncer.fetch = okFetch(&seen)

	if err := syncer.Run(context.Background(), m); err != nil {
		t.Fatal(err)
	}
	if len(seen) != 2 {
		t.Error("应该只处理指定数量:", seen)
	}
}

func TestSyncStock_Cancel(t *testing.T) {
	m := testManage(t)
	syncer := testSync(t, SyncConfig{Stocks: testStocks()})
	seen := []string(nil)
	syncer.fetch = okFetch(&seen)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := syncer.Run(ctx, m)
	if err != context.Canceled {
		t.Error("应该返回取消错误:", err)
	}
	if syncer.State() != StateInterrupted {
		t.Error("状态应该是中断:", syncer.State())
	}
	//中断时保存进度
	if syncer.checkpoint.Load() == nil {
		t.Error("中断时应该保存进度")
	}
}

func TestSyncStock_CancelDuringFetch(t *testing.T) {
	m := testManage(t)
	syncer := testSync(t, SyncConfig{Stocks: testStocks()})

	//处理000002的过程中被取消
	ctx, cancel := context.WithCancel(context.Background())
	syncer.fetch = func(c *akshare.Client, code, start, end string) ([]*akshare.KlineData, error) {
		if code == "000002" {
			cancel()
			return nil, ctx.Err()
		}
		return []*akshare.KlineData{{
			Date: "2024-01-02", Open: 10, Close: 10.5, High: 10.8, Low: 9.9,
			Volume: 100000, Amount: 1050000,
		}}, nil
	}

	err := syncer.Run(ctx, m)
	if err != context.Canceled {
		t.Error("应该返回取消错误:", err)
	}
	if syncer.State() != StateInterrupted {
		t.Error("状态应该是中断:", syncer.State())
	}

	//中断不算失败,进度停在上一只,下次重新处理被打断的那只
	progress := syncer.checkpoint.Load()
	if progress == nil {
		t.Fatal("中断时应该保存进度")
	}
	if progress.FailedCount != 0 || len(progress.Failed) != 0 {
		t.Error("被取消的股票不应该记为失败:", progress.FailedCount, progress.Failed)
	}
	if progress.LastCode != "000001" {
		t.Error("进度不应该越过被打断的股票:", progress.LastCode)
	}
	if progress.SuccessCount != 1 {
		t.Error("计数错误:", progress.SuccessCount)
	}
	if syncer.checkpoint.LoadFailed() != nil {
		t.Error("失败列表应该为空")
	}
}

func TestSyncStock_SkipUpToDate(t *testing.T) {
	m := testManage(t)

	//数据库里已有最近的数据
	recent := time.Now().Format("2006-01-02")
	if _, err := m.History.UpsertAll("000001", []*akshare.KlineData{{
		Date: recent, Open: 10, Close: 10.5, High: 10.8, Low: 9.9, Volume: 1, Amount: 1,
	}}); err != nil {
		t.Fatal(err)
	}

	seen := []string(nil)
	syncer := testSync(t, SyncConfig{Stocks: testStocks()[:1], SkipUpToDate: true})
	syncer.fetch = okFetch(&seen)

	if err := syncer.Run(context.Background(), m); err != nil {
		t.Fatal(err)
	}
	if len(seen) != 0 {
		t.Error("数据已是最新不应该拉取:", seen)
	}
	progress := syncer.checkpoint.Load()
	if progress.SuccessCount != 1 {
		t.Error("跳过也算成功:", progress.SuccessCount)
	}
}

func TestSyncStock_InvalidCode(t *testing.T) {
	m := testManage(t)
	syncer := testSync(t, SyncConfig{Stocks: []*akshare.StockModel{{Code: "bad"}}})
	seen := []string(nil)
	syncer.fetch = okFetch(&seen)

	if err := syncer.Run(context.Background(), m); err != nil {
		t.Fatal(err)
	}
	if len(seen) != 0 {
		t.Error("无效代码不应该拉取数据")
	}
	progress := syncer.checkpoint.Load()
	if progress.FailedCount != 1 {
		t.Error("无效代码应该算失败:", progress.FailedCount)
	}
	if syncer.Stats().Snapshot()["DataError"] != 1 {
		t.Error("应该记录数据错误:", syncer.Stats().Snapshot())
	}
}

func TestSyncStock_RetryFailed(t *testing.T) {
	m := testManage(t)
	dir := t.TempDir()

	cp := NewCheckpoint(dir)
	if err := cp.SaveFailed([]*FailedStock{
		{Code: "000002", Name: "万科A", Reason: "网络错误"},
		{Code: "000004", Name: "国华网安", Reason: "网络错误"},
	}); err != nil {
		t.Fatal(err)
	}

	syncer := testSync(t, SyncConfig{Dir: dir})
	//000002成功,000004仍然失败
	syncer.fetch = func(c *akshare.Client, code, start, end string) ([]*akshare.KlineData, error) {
		if code == "000004" {
			return nil, akshare.NewError(akshare.KindData, "数据格式错误")
		}
		return []*akshare.KlineData{{
			Date: "2024-01-02", Open: 10, Close: 10.5, High: 10.8, Low: 9.9,
			Volume: 100000, Amount: 1050000,
		}}, nil
	}

	if err := syncer.RetryFailed(context.Background(), m); err != nil {
		t.Fatal(err)
	}
	failed := syncer.checkpoint.LoadFailed()
	if len(failed) != 1 || failed[0].Code != "000004" {
		t.Error("成功的应该从失败列表移除:", failed)
	}
}

func TestSyncStock_RetryFailed_AllSuccess(t *testing.T) {
	m := testManage(t)
	dir := t.TempDir()

	cp := NewCheckpoint(dir)
	if err := cp.SaveFailed([]*FailedStock{{Code: "000002", Name: "万科A", Reason: "网络错误"}}); err != nil {
		t.Fatal(err)
	}

	seen := []string(nil)
	syncer := testSync(t, SyncConfig{Dir: dir})
	syncer.fetch = okFetch(&seen)

	if err := syncer.RetryFailed(context.Background(), m); err != nil {
		t.Fatal(err)
	}
	//全部成功后删除失败文件
	if syncer.checkpoint.LoadFailed() != nil {
		t.Error("全部成功应该删除失败文件")
	}
	if _, err := os.Stat(filepath.Join(dir, failedFilename)); !os.IsNotExist(err) {
		t.Error("失败文件应该被删除")
	}
}

func TestSyncStock_RetryFailed_Reconcile(t *testing.T) {
	m := testManage(t)
	dir := t.TempDir()

	//上一轮的进度和失败列表
	cp := NewCheckpoint(dir)
	p := &Progress{LastCode: "000004", SuccessCount: 2, FailedCount: 1}
	p.AddFailed("000002", "万科A", "网络错误")
	if err := cp.Save(p); err != nil {
		t.Fatal(err)
	}
	if err := cp.SaveFailed(p.Failed); err != nil {
		t.Fatal(err)
	}

	seen := []string(nil)
	syncer := testSync(t, SyncConfig{Dir: dir})
	syncer.fetch = okFetch(&seen)

	if err := syncer.RetryFailed(context.Background(), m); err != nil {
		t.Fatal(err)
	}

	//两个文件保持一致,进度文件里的失败记录也被清掉
	progress := syncer.checkpoint.Load()
	if progress == nil {
		t.Fatal("进度文件应该还在")
	}
	if progress.FailedCount != 0 || len(progress.Failed) != 0 {
		t.Error("重试成功后进度文件应该清掉失败记录:", progress.FailedCount, progress.Failed)
	}
	if progress.SuccessCount != 3 {
		t.Error("成功计数应该累加:", progress.SuccessCount)
	}
}

func TestSyncStock_RetryFailed_Cancel(t *testing.T) {
	m := testManage(t)
	dir := t.TempDir()

	cp := NewCheckpoint(dir)
	if err := cp.SaveFailed([]*FailedStock{
		{Code: "000002", Name: "万科A", Reason: "网络错误"},
		{Code: "000004", Name: "国华网安", Reason: "数据格式错误"},
	}); err != nil {
		t.Fatal(err)
	}

	//处理第一只的过程中被取消
	ctx, cancel := context.WithCancel(context.Background())
	syncer := testSync(t, SyncConfig{Dir: dir})
	syncer.fetch = func(c *akshare.Client, code, start, end string) ([]*akshare.KlineData, error) {
		cancel()
		return nil, ctx.Err()
	}

	err := syncer.RetryFailed(ctx, m)
	if err != context.Canceled {
		t.Error("应该返回取消错误:", err)
	}
	if syncer.State() != StateInterrupted {
		t.Error("状态应该是中断:", syncer.State())
	}

	//被取消的保留原来的失败原因,下次继续
	failed := syncer.checkpoint.LoadFailed()
	if len(failed) != 2 {
		t.Fatal("失败列表不应该丢失:", failed)
	}
	if failed[0].Reason != "网络错误" || failed[1].Reason != "数据格式错误" {
		t.Error("应该保留原来的失败原因:", failed[0].Reason, failed[1].Reason)
	}
}

func TestSyncStock_SyncDate(t *testing.T) {
	m := testManage(t)
	syncer := testSync(t, SyncConfig{Stocks: testStocks()})
	syncer.fetch = func(c *akshare.Client, code, start, end string) ([]*akshare.KlineData, error) {
		if start != "20240102" || end != "20240102" {
			t.Error("日期区间错误:", start, end)
		}
		return []*akshare.KlineData{{
			Date: "2024-01-02", Open: 10, Close: 10.5, High: 10.8, Low: 9.9,
			Volume: 100000, Amount: 1050000,
		}}, nil
	}

	if err := syncer.SyncDate(context.Background(), m, "20240102"); err != nil {
		t.Fatal(err)
	}
	total, err := m.History.Total()
	if err != nil {
		t.Fatal(err)
	}
	if total != 3 {
		t.Error("数据条数错误:", total)
	}

	//日期格式错误直接返回
	if err := syncer.SyncDate(context.Background(), m, "2024-01-02"); err == nil {
		t.Error("日期格式错误应该报错")
	}
}

func TestSyncStock_Exclusive(t *testing.T) {
	syncer := testSync(t, SyncConfig{})
	syncer.setState(StateRunning)
	if err := syncer.Run(context.Background(), testManage(t)); err == nil {
		t.Error("运行中不应该重复启动")
	}
}
