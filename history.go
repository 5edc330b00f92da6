package akshare

import (
	"os"
	"path/filepath"
	"time"

	"github.com/injoyai/conv"
	"xorm.io/core"
	"xorm.io/xorm"
)

func NewHistoryMysql(dsn string) (*History, error) {
	db, err := xorm.NewEngine("mysql", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMapper(core.SameMapper{})
	return NewHistory(db)
}

func NewHistorySqlite(filenames ...string) (*History, error) {
	defaultFilename := filepath.Join(DefaultDatabaseDir, "history.db")
	filename := conv.Default(defaultFilename, filenames...)

	dir, _ := filepath.Split(filename)
	_ = os.MkdirAll(dir, 0777)

	db, err := xorm.NewEngine("sqlite", filename)
	if err != nil {
		return nil, err
	}
	db.SetMapper(core.SameMapper{})
	db.DB().SetMaxOpenConns(1)

	return NewHistory(db)
}

// NewHistory A股历史行情的存储,按(代码,日期)唯一
func NewHistory(db *xorm.Engine) (*History, error) {
	if err := db.Sync2(new(KlineModel)); err != nil {
		return nil, err
	}
	return &History{db: db}, nil
}

type History struct {
	db *xorm.Engine
}

// UpsertAll 全量覆盖一只股票的历史数据
// 先删后插,在同一个事务里,重复执行结果一致
func (this *History) UpsertAll(code string, ls []*KlineData) (int, error) {
	err := NewSessionFunc(this.db, func(session *xorm.Session) error {
		if _, err := session.Where("Code=?", code).Delete(new(KlineModel)); err != nil {
			return err
		}
		for _, v := range ls {
			if _, err := session.Insert(toKlineModel(code, v)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, WrapError(KindPersistence, err, "写入历史数据: "+code)
	}
	return len(ls), nil
}

// UpsertDate 覆盖一只股票单个日期的数据
func (this *History) UpsertDate(code, date string, ls []*KlineData) (int, error) {
	err := NewSessionFunc(this.db, func(session *xorm.Session) error {
		if _, err := session.Where("Code=? and Date=?", code, date).Delete(new(KlineModel)); err != nil {
			return err
		}
		for _, v := range ls {
			if _, err := session.Insert(toKlineModel(code, v)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, WrapError(KindPersistence, err, "写入单日数据: "+code+" "+date)
	}
	return len(ls), nil
}

// LatestDate 最新一条数据的日期,无数据返回空
func (this *History) LatestDate(code string) (string, error) {
	last := new(KlineModel)
	has, err := this.db.Where("Code=?", code).Desc("Date").Get(last)
	if err != nil {
		return "", WrapError(KindPersistence, err, "查询最新日期: "+code)
	}
	if !has {
		return "", nil
	}
	return last.Date, nil
}

// Count 一只股票的数据条数
func (this *History) Count(code string) (int64, error) {
	n, err := this.db.Where("Code=?", code).Count(new(KlineModel))
	if err != nil {
		return 0, WrapError(KindPersistence, err, "查询数据条数: "+code)
	}
	return n, nil
}

// Total 全部数据条数
func (this *History) Total() (int64, error) {
	n, err := this.db.Count(new(KlineModel))
	if err != nil {
		return 0, WrapError(KindPersistence, err, "查询数据总数")
	}
	return n, nil
}

// UpToDate 数据是否已经是最新,最近3天内有数据就认为是最新的,避免重复拉取
func (this *History) UpToDate(code string, now time.Time) bool {
	latest, err := this.LatestDate(code)
	if err != nil || latest == "" {
		return false
	}
	t, err := time.ParseInLocation("2006-01-02", latest, time.Local)
	if err != nil {
		return false
	}
	return IntegerDay(now).Sub(IntegerDay(t)) <= time.Hour*24*3
}

func (this *History) Close() error {
	return this.db.Close()
}

// KlineModel 历史行情数据
type KlineModel struct {
	ID        int64   `json:"id"`                    //主键
	Code      string  `json:"code" xorm:"index"`     //代码
	Date      string  `json:"date" xorm:"index"`     //日期 2006-01-02
	Open      float64 `json:"open"`                  //开盘
	Close     float64 `json:"close"`                 //收盘
	High      float64 `json:"high"`                  //最高
	Low       float64 `json:"low"`                   //最低
	Volume    int64   `json:"volume"`                //成交量
	Amount    float64 `json:"amount"`                //成交额
	Amplitude float64 `json:"amplitude"`             //振幅
	PctChg    float64 `json:"pctChg"`                //涨跌幅
	Change    float64 `json:"change"`                //涨跌额
	Turnover  float64 `json:"turnover"`              //换手率
	InDate    int64   `json:"inDate" xorm:"created"` //创建时间
}

func (*KlineModel) TableName() string {
	return "stock_zh_a_hist"
}

func toKlineModel(code string, v *KlineData) *KlineModel {
	return &KlineModel{
		Code:      code,
		Date:      v.Date,
		Open:      v.Open,
		Close:     v.Close,
		High:      v.High,
		Low:       v.Low,
		Volume:    v.Volume,
		Amount:    v.Amount,
		Amplitude: v.Amplitude,
		PctChg:    v.PctChg,
		Change:    v.Change,
		Turnover:  v.Turnover,
	}
}
