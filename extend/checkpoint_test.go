package extend

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestCheckpoint_SaveLoad(t *testing.T) {
	dir := t.TempDir()
	cp := NewCheckpoint(dir)

	if p := cp.Load(); p != nil {
		t.Error("文件不存在应该返回nil")
	}

	p := &Progress{
		LastCode:     "000004",
		SuccessCount: 2,
		FailedCount:  1,
	}
	p.AddFailed("000002", "万科A", "数据格式错误")
	if err := cp.Save(p); err != nil {
		t.Fatal(err)
	}

	loaded := cp.Load()
	if loaded == nil {
		t.Fatal("应该能加载进度")
	}
	if loaded.LastCode != "000004" || loaded.SuccessCount != 2 || loaded.FailedCount != 1 {
		t.Error("进度内容错误:", loaded)
	}
	if len(loaded.Failed) != 1 || loaded.Failed[0].Code != "000002" {
		t.Error("失败列表错误:", loaded.Failed)
	}
	if loaded.LastUpdate.IsZero() {
		t.Error("保存时应该写入更新时间")
	}
}

func TestCheckpoint_Corrupt(t *testing.T) {
	dir := t.TempDir()
	cp := NewCheckpoint(dir)

	if err := os.WriteFile(filepath.Join(dir, progressFilename), []byte("{损坏的json"), 0666); err != nil {
		t.Fatal(err)
	}
	if p := cp.Load(); p != nil {
		t.Error("损坏的文件应该按无进度处理")
	}
}

func TestCheckpoint_Reset(t *testing.T) {
	dir := t.TempDir()
	cp := NewCheckpoint(dir)

	if err := cp.Save(&Progress{LastCode: "000001"}); err != nil {
		t.Fatal(err)
	}
	if err := cp.SaveFailed([]*FailedStock{{Code: "000002"}}); err != nil {
		t.Fatal(err)
	}

	cp.Reset()
	if cp.Load() != nil {
		t.Error("重置后应该没有进度")
	}
	if cp.LoadFailed() != nil {
		t.Error("重置后应该没有失败列表")
	}
}

func TestCheckpoint_SaveFailed(t *testing.T) {
	dir := t.TempDir()
	cp := NewCheckpoint(dir)

	ls := []*FailedStock{
		{Code: "000002", Name: "万科A", Reason: "网络错误"},
		{Code: "000004", Name: "国华网安", Reason: "数据格式错误"},
	}
	if err := cp.SaveFailed(ls); err != nil {
		t.Fatal(err)
	}
	loaded := cp.LoadFailed()
	if len(loaded) != 2 {
		t.Fatal("失败列表数量错误:", len(loaded))
	}
	if loaded[0].Code != "000002" || loaded[1].Reason != "数据格式错误" {
		t.Error("失败列表内容错误:", loaded)
	}

	//空列表会删除文件
	if err := cp.SaveFailed(nil); err != nil {
		t.Fatal(err)
	}
	if cp.LoadFailed() != nil {
		t.Error("空列表应该删除文件")
	}
	if _, err := os.Stat(filepath.Join(dir, failedFilename)); !os.IsNotExist(err) {
		t.Error("失败文件应该被删除")
	}

	//重复删除不报错
	if err := cp.SaveFailed(nil); err != nil {
		t.Error(err)
	}
}

func TestProgress_AddFailed(t *testing.T) {
	p := new(Progress)
	p.AddFailed("000002", "万科A", "网络错误")
	p.AddFailed("000004", "国华网安", "数据格式错误")
	//同一只股票只保留最后一次的原因
	p.AddFailed("000002", "万科A", "接口限流")

	if len(p.Failed) != 2 {
		t.Fatal("失败列表应该去重:", len(p.Failed))
	}
	if p.Failed[0].Reason != "接口限流" {
		t.Error("应该保留最后一次的原因:", p.Failed[0])
	}

	p.ClearFailed("000002")
	if len(p.Failed) != 1 || p.Failed[0].Code != "000004" {
		t.Error("移除错误:", p.Failed)
	}
	//移除不存在的代码不报错
	p.ClearFailed("999999")
}

func TestProgress_Stale(t *testing.T) {
	p := &Progress{LastUpdate: time.Now()}
	if p.Stale(time.Hour * 24) {
		t.Error("刚更新的进度不应该过期")
	}

	p.LastUpdate = time.Now().Add(-time.Hour * 25)
	if !p.Stale(time.Hour * 24) {
		t.Error("超过24小时应该过期")
	}

	//threshold为0使用默认24小时
	if !p.Stale(0) {
		t.Error("默认阈值应该是24小时")
	}
	p.LastUpdate = time.Now().Add(-time.Hour)
	if p.Stale(0) {
		t.Error("1小时前的进度不应该过期")
	}
}
