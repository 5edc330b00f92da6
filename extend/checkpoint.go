package extend

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/injoyai/logs"
)

const (
	progressFilename = "sync_progress.json"
	failedFilename   = "failed_stocks.json"
)

// FailedStock 同步失败的股票
type FailedStock struct {
	Code   string `json:"code"`   //代码
	Name   string `json:"name"`   //名称
	Reason string `json:"reason"` //失败原因
}

// Progress 一次批量同步的进度,每处理一只股票就落盘一次
// 进程被杀后最多丢失一只股票的进度
type Progress struct {
	LastCode     string         `json:"last_code"`     //最后处理的代码
	SuccessCount int            `json:"success_count"` //成功数量
	FailedCount  int            `json:"failed_count"`  //失败数量
	Failed       []*FailedStock `json:"failed_stocks"` //失败列表
	LastUpdate   time.Time      `json:"last_update"`   //最后更新时间
}

// AddFailed 记录失败,同一个代码只保留最后一次的原因
func (this *Progress) AddFailed(code, name, reason string) {
	for _, v := range this.Failed {
		if v.Code == code {
			v.Name = name
			v.Reason = reason
			return
		}
	}
	this.Failed = append(this.Failed, &FailedStock{Code: code, Name: name, Reason: reason})
}

// ClearFailed 成功后从失败列表移除
func (this *Progress) ClearFailed(code string) {
	for i, v := range this.Failed {
		if v.Code == code {
			this.Failed = append(this.Failed[:i], this.Failed[i+1:]...)
			return
		}
	}
}

// Stale 进度是否已过期,过期的进度只做参考,股票列表可能已经变化
func (this *Progress) Stale(threshold time.Duration) bool {
	if threshold <= 0 {
		threshold = time.Hour * 24
	}
	return time.Since(this.LastUpdate) > threshold
}

// NewCheckpoint 进度文件存储,文件是可读的JSON,方便人工排查
func NewCheckpoint(dir string) *Checkpoint {
	if dir == "" {
		dir = "./data"
	}
	_ = os.MkdirAll(dir, 0777)
	return &Checkpoint{
		filename:       filepath.Join(dir, progressFilename),
		failedFilename: filepath.Join(dir, failedFilename),
	}
}

type Checkpoint struct {
	filename       string //进度文件
	failedFilename string //失败列表文件
}

// Load 加载进度,文件不存在或者损坏返回nil,按无进度处理
func (this *Checkpoint) Load() *Progress {
	bs, err := os.ReadFile(this.filename)
	if err != nil {
		return nil
	}
	p := new(Progress)
	if err := json.Unmarshal(bs, p); err != nil {
		logs.Err("进度文件损坏,忽略:", err)
		return nil
	}
	return p
}

// Save 保存进度,每只股票处理完都会调用
func (this *Checkpoint) Save(p *Progress) error {
	p.LastUpdate = time.Now()
	bs, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(this.filename, bs, 0666)
}

// Reset 清除进度,下次从头开始
func (this *Checkpoint) Reset() {
	_ = os.Remove(this.filename)
	_ = os.Remove(this.failedFilename)
}

// LoadFailed 加载失败列表,供重试使用
func (this *Checkpoint) LoadFailed() []*FailedStock {
	bs, err := os.ReadFile(this.failedFilename)
	if err != nil {
		return nil
	}
	ls := []*FailedStock(nil)
	if err := json.Unmarshal(bs, &ls); err != nil {
		logs.Err("失败列表文件损坏,忽略:", err)
		return nil
	}
	return ls
}

// SaveFailed 保存失败列表,列表为空时删除文件
func (this *Checkpoint) SaveFailed(ls []*FailedStock) error {
	if len(ls) == 0 {
		err := os.Remove(this.failedFilename)
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	bs, err := json.MarshalIndent(ls, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(this.failedFilename, bs, 0666)
}
