package akshare

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/injoyai/conv"
	"github.com/robfig/cron/v3"
)

const (
	DefaultDatabaseDir = "./data/database"
)

// ManageConfig 数据管理器配置,零值可用
// 环境变量可以覆盖默认值,参考 env 函数的调用处
type ManageConfig struct {
	Number           int    //拉取会话数量
	BaseURL          string //AKShare网关地址
	Mysql            string //MySQL的DSN,非空则全部使用MySQL
	CodesFilename    string //代码数据库位置(sqlite)
	WorkdayFilename  string //工作日数据库位置(sqlite)
	HistoryFilename  string //历史行情数据库位置(sqlite)
	SnapshotFilename string //分类快照数据库位置(sqlite)
}

func (this *ManageConfig) init() {
	if this.Number <= 0 {
		this.Number = conv.Int(env("AK_SESSIONS", "1"))
	}
	if this.BaseURL == "" {
		this.BaseURL = env("AK_BASE_URL", DefaultBaseURL)
	}
	if this.Mysql == "" {
		this.Mysql = mysqlDSN()
	}
	if this.CodesFilename == "" {
		this.CodesFilename = filepath.Join(DefaultDatabaseDir, "codes.db")
	}
	if this.WorkdayFilename == "" {
		this.WorkdayFilename = filepath.Join(DefaultDatabaseDir, "workday.db")
	}
	if this.HistoryFilename == "" {
		this.HistoryFilename = filepath.Join(DefaultDatabaseDir, "history.db")
	}
	if this.SnapshotFilename == "" {
		this.SnapshotFilename = filepath.Join(DefaultDatabaseDir, "snapshot.db")
	}
}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// mysqlDSN 从环境变量拼接MySQL连接串,未配置则返回空(使用sqlite)
func mysqlDSN() string {
	if dsn := os.Getenv("DB_DSN"); dsn != "" {
		return dsn
	}
	host := os.Getenv("DB_HOST")
	if host == "" {
		return ""
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4",
		env("DB_USER", "root"),
		os.Getenv("DB_PASSWORD"),
		host,
		env("DB_PORT", "3306"),
		env("DB_NAME", "stock"),
	)
}

// NewManage 初始化数据管理器,聚合客户端/代码库/交易日历/行情存储
func NewManage(cfg *ManageConfig) (*Manage, error) {
	//初始化配置
	if cfg == nil {
		cfg = &ManageConfig{}
	}
	cfg.init()

	//通用客户端
	commonClient := NewClient(&ClientConfig{BaseURL: cfg.BaseURL})

	var (
		codes    *Codes
		workday  *Workday
		history  *History
		snapshot *Snapshot
		err      error
	)

	if cfg.Mysql != "" {
		//代码管理
		if codes, err = NewCodesMysql(commonClient, cfg.Mysql); err != nil {
			return nil, err
		}
		//工作日管理
		if workday, err = NewWorkdayMysql(commonClient, cfg.Mysql); err != nil {
			return nil, err
		}
		//历史行情存储
		if history, err = NewHistoryMysql(cfg.Mysql); err != nil {
			return nil, err
		}
		//分类快照存储
		if snapshot, err = NewSnapshotMysql(cfg.Mysql); err != nil {
			return nil, err
		}
	} else {
		if codes, err = NewCodesSqlite(commonClient, cfg.CodesFilename); err != nil {
			return nil, err
		}
		if workday, err = NewWorkdaySqlite(commonClient, cfg.WorkdayFilename); err != nil {
			return nil, err
		}
		if history, err = NewHistorySqlite(cfg.HistoryFilename); err != nil {
			return nil, err
		}
		if snapshot, err = NewSnapshotSqlite(cfg.SnapshotFilename); err != nil {
			return nil, err
		}
	}

	//会话池
	p, err := NewPool(func() (*Client, error) {
		return NewClient(&ClientConfig{BaseURL: cfg.BaseURL}), nil
	}, cfg.Number)
	if err != nil {
		return nil, err
	}

	return &Manage{
		Pool:     p,
		Config:   cfg,
		Codes:    codes,
		Workday:  workday,
		History:  history,
		Snapshot: snapshot,
		Cron:     cron.New(cron.WithSeconds()),
	}, nil
}

type Manage struct {
	*Pool
	Config   *ManageConfig
	Codes    *Codes
	Workday  *Workday
	History  *History
	Snapshot *Snapshot
	Cron     *cron.Cron
}

// RangeStocks 遍历所有股票
func (this *Manage) RangeStocks(f func(stock *StockModel)) {
	for _, v := range this.Codes.GetStocks() {
		f(v)
	}
}

// AddWorkdayTask 添加工作日任务,非交易日不执行
func (this *Manage) AddWorkdayTask(spec string, f func(m *Manage)) {
	this.Cron.AddFunc(spec, func() {
		if this.Workday.TodayIs() {
			f(this)
		}
	})
}

func (this *Manage) Close() error {
	if this.Pool != nil {
		this.Pool.Close()
	}
	if this.History != nil {
		this.History.Close()
	}
	if this.Snapshot != nil {
		this.Snapshot.Close()
	}
	return nil
}
