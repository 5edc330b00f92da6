package akshare

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/injoyai/conv"
	"xorm.io/core"
	"xorm.io/xorm"
)

func NewSnapshotMysql(dsn string) (*Snapshot, error) {
	db, err := xorm.NewEngine("mysql", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMapper(core.SameMapper{})
	return NewSnapshot(db)
}

func NewSnapshotSqlite(filenames ...string) (*Snapshot, error) {
	defaultFilename := filepath.Join(DefaultDatabaseDir, "snapshot.db")
	filename := conv.Default(defaultFilename, filenames...)

	dir, _ := filepath.Split(filename)
	_ = os.MkdirAll(dir, 0777)

	db, err := xorm.NewEngine("sqlite", filename)
	if err != nil {
		return nil, err
	}
	db.SetMapper(core.SameMapper{})
	db.DB().SetMaxOpenConns(1)

	return NewSnapshot(db)
}

// NewSnapshot 各分类数据源的快照存储
// 不同接口的列不固定,记录按JSON原样保存,整表替换
func NewSnapshot(db *xorm.Engine) (*Snapshot, error) {
	if err := db.Sync2(new(SnapshotModel)); err != nil {
		return nil, err
	}
	return &Snapshot{db: db}, nil
}

type Snapshot struct {
	db *xorm.Engine
}

// Replace 覆盖一个数据源的全部记录,先删后插,同一个事务
func (this *Snapshot) Replace(category Category, source string, records []map[string]interface{}) (int, error) {
	err := NewSessionFunc(this.db, func(session *xorm.Session) error {
		if _, err := session.Where("Category=? and Source=?", string(category), source).Delete(new(SnapshotModel)); err != nil {
			return err
		}
		for i, record := range records {
			bs, err := json.Marshal(record)
			if err != nil {
				return err
			}
			m := &SnapshotModel{
				Category: string(category),
				Source:   source,
				Seq:      i,
				Record:   string(bs),
			}
			if _, err := session.Insert(m); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, WrapError(KindPersistence, err, "写入快照: "+string(category)+"/"+source)
	}
	return len(records), nil
}

// Count 一个数据源的记录条数
func (this *Snapshot) Count(category Category, source string) (int64, error) {
	n, err := this.db.Where("Category=? and Source=?", string(category), source).Count(new(SnapshotModel))
	if err != nil {
		return 0, WrapError(KindPersistence, err, "查询快照条数")
	}
	return n, nil
}

func (this *Snapshot) Close() error {
	return this.db.Close()
}

// SnapshotModel 数据源快照的一条记录
type SnapshotModel struct {
	ID       int64  `json:"id"`                      //主键
	Category string `json:"category" xorm:"index"`   //分类
	Source   string `json:"source" xorm:"index"`     //数据源
	Seq      int    `json:"seq"`                     //原始顺序
	Record   string `json:"record" xorm:"text"`      //记录内容,JSON
	InDate   int64  `json:"inDate" xorm:"created"`   //创建时间
}

func (*SnapshotModel) TableName() string {
	return "category_snapshot"
}
