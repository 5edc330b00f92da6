package extend

import (
	"fmt"
	"strings"

	"github.com/injoyai/logs"
	akshare "github.com/xionghao1012/AKShare-Stock-Sync"
)

// Report 同步状态汇总,进度文件加数据库统计
type Report struct {
	State      SyncState      `json:"state"`
	Progress   *Progress      `json:"progress,omitempty"`
	Failed     []*FailedStock `json:"failed,omitempty"`
	StockCount int            `json:"stockCount"`
	KlineTotal int64          `json:"klineTotal"`
	Errors     map[string]int `json:"errors,omitempty"`
}

// Report 汇总当前同步状态
func (this *SyncStock) Report(m *akshare.Manage) *Report {
	r := &Report{
		State:    this.State(),
		Progress: this.checkpoint.Load(),
		Failed:   this.checkpoint.LoadFailed(),
		Errors:   this.stats.Snapshot(),
	}
	if m != nil {
		r.StockCount = len(m.Codes.GetStocks())
		total, err := m.History.Total()
		logs.PrintErr(err)
		r.KlineTotal = total
	}
	return r
}

func (this *Report) String() string {
	sb := strings.Builder{}
	sb.WriteString("========== 同步状态 ==========\n")
	sb.WriteString(fmt.Sprintf("状态: %s\n", this.State))
	sb.WriteString(fmt.Sprintf("股票数量: %d\n", this.StockCount))
	sb.WriteString(fmt.Sprintf("K线总数: %d\n", this.KlineTotal))
	if this.Progress != nil {
		sb.WriteString(fmt.Sprintf("上次同步到: %s\n", this.Progress.LastCode))
		sb.WriteString(fmt.Sprintf("成功: %d, 失败: %d\n", this.Progress.SuccessCount, this.Progress.FailedCount))
		sb.WriteString(fmt.Sprintf("更新时间: %s\n", this.Progress.LastUpdate.Format("2006-01-02 15:04:05")))
	} else {
		sb.WriteString("暂无进度记录\n")
	}
	if len(this.Failed) > 0 {
		sb.WriteString(fmt.Sprintf("失败列表(%d):\n", len(this.Failed)))
		for _, v := range this.Failed {
			sb.WriteString(fmt.Sprintf("  %s(%s): %s\n", v.Code, v.Name, v.Reason))
		}
	}
	if len(this.Errors) > 0 {
		sb.WriteString("错误统计:\n")
		for kind, count := range this.Errors {
			sb.WriteString(fmt.Sprintf("  %s: %d\n", kind, count))
		}
	}
	return sb.String()
}
