package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/injoyai/conv"
	"github.com/injoyai/logs"
	akshare "github.com/xionghao1012/AKShare-Stock-Sync"
	"github.com/xionghao1012/AKShare-Stock-Sync/extend"
)

const usage = `A股历史数据同步工具

用法:
  akstock continue [起始代码] [数量]   从指定代码(或上次进度)继续同步
  akstock retry                        重试失败的股票
  akstock status                       查看同步状态
  akstock reset                        清除进度,下次从头开始
  akstock date <日期YYYYMMDD>          同步所有股票指定日期的数据
  akstock codes                        更新股票代码库
  akstock category [分类]              同步分类数据快照,缺省全部分类
  akstock daemon                       常驻运行,交易日自动同步

环境变量:
  AK_BASE_URL     数据源地址,默认 http://127.0.0.1:8080
  DB_DSN          MySQL连接,缺省使用sqlite
  SYNC_PAUSE      每只股票之间的间隔,默认2s
`

func main() {
	logs.SetFormatter(logs.TimeFormatter)

	if len(os.Args) < 2 {
		fmt.Print(usage)
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "status":
		//查看状态不需要连接数据源
		syncer := extend.NewSyncStock(extend.SyncConfig{})
		m, err := akshare.NewManage(nil)
		if err != nil {
			logs.Err("初始化失败:", err)
			fmt.Print(syncer.Report(nil).String())
			return
		}
		defer m.Close()
		fmt.Print(syncer.Report(m).String())

	case "continue":
		cfg := extend.SyncConfig{}
		if len(args) > 0 {
			cfg.StartCode = args[0]
		}
		if len(args) > 1 {
			cfg.MaxCount = conv.Int(args[1])
		}
		if cfg.StartCode != "" {
			if err := akshare.ValidateCode(cfg.StartCode); err != nil {
				logs.Err(err)
				return
			}
			if !confirm(fmt.Sprintf("将从%s开始同步,是否继续?", cfg.StartCode)) {
				return
			}
		}
		m, err := akshare.NewManage(nil)
		logs.PanicErr(err)
		defer m.Close()
		logs.PrintErr(extend.NewSyncStock(cfg).Run(ctx, m))

	case "reset":
		if !confirm("将清除同步进度和失败列表,是否继续?") {
			return
		}
		extend.NewCheckpoint("").Reset()
		logs.Info("已清除")

	case "retry":
		m, err := akshare.NewManage(nil)
		logs.PanicErr(err)
		defer m.Close()
		logs.PrintErr(extend.NewSyncStock(extend.SyncConfig{}).RetryFailed(ctx, m))

	case "date":
		if len(args) == 0 {
			logs.Err("缺少日期参数,格式YYYYMMDD")
			return
		}
		m, err := akshare.NewManage(nil)
		logs.PanicErr(err)
		defer m.Close()
		logs.PrintErr(extend.NewSyncStock(extend.SyncConfig{}).SyncDate(ctx, m, args[0]))

	case "codes":
		m, err := akshare.NewManage(nil)
		logs.PanicErr(err)
		defer m.Close()
		logs.PrintErr(m.Codes.Update())
		logs.Info("代码库更新完成,股票数量:", len(m.Codes.GetStocks()))

	case "category":
		categories := []akshare.Category(nil)
		if len(args) > 0 {
			category := akshare.Category(args[0])
			if _, err := category.Sources(); err != nil {
				logs.Err(err)
				return
			}
			categories = append(categories, category)
		}
		m, err := akshare.NewManage(nil)
		logs.PanicErr(err)
		defer m.Close()
		logs.PrintErr(extend.NewSyncCategory(extend.SyncCategoryConfig{Categories: categories}).Run(ctx, m))

	case "daemon":
		m, err := akshare.NewManage(nil)
		logs.PanicErr(err)
		defer m.Close()

		//交易日下午收盘后同步当天数据
		m.AddWorkdayTask("0 30 15 * * *", func(m *akshare.Manage) {
			logs.PrintErr(extend.NewSyncStock(extend.SyncConfig{SkipUpToDate: true}).Run(ctx, m))
		})
		//分类快照按各自间隔同步
		logs.PanicErr(extend.NewSyncCategory(extend.SyncCategoryConfig{}).Schedule(m))
		m.Cron.Start()

		logs.Info("进入常驻模式,Ctrl+C退出")
		<-ctx.Done()
		logs.Info("退出")

	default:
		fmt.Print(usage)
	}
}

// confirm 二次确认
func confirm(msg string) bool {
	fmt.Printf("%s [y/N]: ", msg)
	reader := bufio.NewReader(os.Stdin)
	line, _ := reader.ReadString('\n')
	line = strings.ToLower(strings.TrimSpace(line))
	return line == "y" || line == "yes"
}
