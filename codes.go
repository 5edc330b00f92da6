package akshare

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/injoyai/conv"
	"github.com/injoyai/logs"
	"github.com/robfig/cron/v3"
	"xorm.io/core"
	"xorm.io/xorm"
)

func NewCodesMysql(c *Client, dsn string) (*Codes, error) {

	//连接数据库
	db, err := xorm.NewEngine("mysql", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMapper(core.SameMapper{})

	return NewCodes(c, db)
}

func NewCodesSqlite(c *Client, filenames ...string) (*Codes, error) {

	//如果没有指定文件名,则使用默认
	defaultFilename := filepath.Join(DefaultDatabaseDir, "codes.db")
	filename := conv.Default(defaultFilename, filenames...)
	filename = conv.Select(filename == "", defaultFilename, filename)

	//如果文件夹不存在就创建
	dir, _ := filepath.Split(filename)
	_ = os.MkdirAll(dir, 0777)

	//连接数据库
	db, err := xorm.NewEngine("sqlite", filename)
	if err != nil {
		return nil, err
	}
	db.SetMapper(core.SameMapper{})
	db.DB().SetMaxOpenConns(1)

	return NewCodes(c, db)
}

func NewCodes(c *Client, db *xorm.Engine) (*Codes, error) {

	if err := db.Sync2(new(StockModel)); err != nil {
		return nil, err
	}
	if err := db.Sync2(new(UpdateModel)); err != nil {
		return nil, err
	}

	update := new(UpdateModel)
	{ //查询或者插入一条数据
		has, err := db.Where("`Key`=?", "stocks").Get(update)
		if err != nil {
			return nil, err
		} else if !has {
			update.Key = "stocks"
			if _, err := db.Insert(update); err != nil {
				return nil, err
			}
		}
	}

	cc := &Codes{
		Client: c,
		db:     db,
	}

	{ //设置定时器,每天早上9点更新数据
		task := cron.New(cron.WithSeconds())
		task.AddFunc("10 0 9 * * *", func() {
			for i := 0; i < 3; i++ {
				err := cc.Update()
				if err == nil {
					return
				}
				logs.Err(err)
				<-time.After(time.Minute * 5)
			}
		})
		task.Start()
	}

	{ //判断是否更新过,更新过则不更新
		now := time.Now()
		node := time.Date(now.Year(), now.Month(), now.Day(), 9, 0, 0, 0, time.Local)
		updateTime := time.Unix(update.Time, 0)
		if now.Sub(node) > 0 {
			//当前时间在9点之后,且更新时间在9点之前,需要更新
			if updateTime.Sub(node) < 0 {
				return cc, cc.Update()
			}
		} else {
			//当前时间在9点之前,且更新时间在上个节点之前
			if updateTime.Sub(node.Add(time.Hour*24)) < 0 {
				return cc, cc.Update()
			}
		}
	}

	//从缓存中加载
	return cc, cc.Update(true)
}

type Codes struct {
	*Client                        //客户端
	db      *xorm.Engine           //数据库实例
	Map     map[string]*StockModel //股票缓存
	list    []*StockModel          //列表方式缓存,按代码升序
}

// GetName 获取股票名称
func (this *Codes) GetName(code string) string {
	if v, ok := this.Map[code]; ok {
		return v.Name
	}
	return "未知"
}

// GetStocks 获取股票列表,按代码升序,续传的定位依赖这个顺序
func (this *Codes) GetStocks(limits ...int) []*StockModel {
	limit := conv.Default(-1, limits...)
	if limit > 0 && limit < len(this.list) {
		return this.list[:limit]
	}
	return this.list
}

func (this *Codes) Get(code string) *StockModel {
	return this.Map[code]
}

// Update 更新数据,从服务器或者数据库
func (this *Codes) Update(byDB ...bool) error {
	stocks, err := this.GetCodes(len(byDB) > 0 && byDB[0])
	if err != nil {
		return err
	}
	sort.Slice(stocks, func(i, j int) bool { return stocks[i].Code < stocks[j].Code })
	stockMap := make(map[string]*StockModel)
	for _, v := range stocks {
		stockMap[v.Code] = v
	}
	this.Map = stockMap
	this.list = stocks
	//更新时间
	_, err = this.db.Where("`Key`=?", "stocks").Update(&UpdateModel{Time: time.Now().Unix()})
	return err
}

// GetCodes 更新股票列表并返回结果
func (this *Codes) GetCodes(byDatabase bool) ([]*StockModel, error) {

	//1. 查询数据库所有股票
	list := []*StockModel(nil)
	if err := this.db.Find(&list); err != nil {
		return nil, err
	}

	//如果是从缓存读取,则返回结果
	if byDatabase {
		return list, nil
	}

	if this.Client == nil {
		return nil, errors.New("client is nil")
	}

	mStock := make(map[string]*StockModel, len(list))
	for _, v := range list {
		mStock[v.Code] = v
	}

	//2. 从服务器获取所有股票代码
	insert := []*StockModel(nil)
	update := []*StockModel(nil)
	resp, err := this.Client.StockList()
	if err != nil {
		return nil, err
	}
	for _, v := range resp {
		if v.Code == "" {
			continue
		}
		if old, ok := mStock[v.Code]; ok {
			//名称会变,例STxxx
			if old.Name != v.Name || old.ListDate != v.ListDate {
				old.Name = v.Name
				old.ListDate = v.ListDate
				update = append(update, old)
			}
		} else {
			stock := &StockModel{
				Code:     v.Code,
				Name:     v.Name,
				Exchange: v.Exchange,
				ListDate: v.ListDate,
			}
			insert = append(insert, stock)
			list = append(list, stock)
			mStock[v.Code] = stock
		}
	}

	//3. 插入或者更新数据库
	err = NewSessionFunc(this.db, func(session *xorm.Session) error {
		for _, v := range insert {
			if _, err := session.Insert(v); err != nil {
				return err
			}
		}
		for _, v := range update {
			if _, err := session.Where("Code=?", v.Code).Cols("Name,ListDate").Update(v); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, WrapError(KindPersistence, err, "更新股票列表")
	}

	return list, nil
}

type UpdateModel struct {
	Key  string
	Time int64 //更新时间
}

func (*UpdateModel) TableName() string {
	return "update"
}

// StockModel 股票基础信息,同步的工作列表来源
type StockModel struct {
	ID       int64  `json:"id"`                      //主键
	Code     string `json:"code" xorm:"index"`       //代码
	Name     string `json:"name"`                    //名称,有时候名称会变,例STxxx
	Exchange string `json:"exchange" xorm:"index"`   //交易所
	ListDate string `json:"listDate"`                //上市日期 2006-01-02
	EditDate int64  `json:"editDate" xorm:"updated"` //修改时间
	InDate   int64  `json:"inDate" xorm:"created"`   //创建时间
}

func (*StockModel) TableName() string {
	return "stock_info"
}

// StartDate 历史数据的开始日期,YYYYMMDD
// 上市日期无效的时候使用默认日期19900101
func (this *StockModel) StartDate() string {
	if this.ListDate != "" {
		if t, err := time.Parse("2006-01-02", this.ListDate); err == nil {
			return t.Format("20060102")
		}
		if err := ValidateDate(this.ListDate); err == nil {
			return this.ListDate
		}
		logs.Debug("上市日期格式错误:", this.ListDate, "使用默认日期")
	}
	return "19900101"
}

func NewSessionFunc(db *xorm.Engine, fn func(session *xorm.Session) error) error {
	session := db.NewSession()
	defer session.Close()
	if err := session.Begin(); err != nil {
		session.Rollback()
		return err
	}
	if err := fn(session); err != nil {
		session.Rollback()
		return err
	}
	if err := session.Commit(); err != nil {
		session.Rollback()
		return err
	}
	return nil
}
