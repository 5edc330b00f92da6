package akshare

import (
	"errors"
	"testing"
)

func TestCategory_Sources(t *testing.T) {
	for _, category := range AllCategories {
		sources, err := category.Sources()
		if err != nil {
			t.Error(category, err)
			continue
		}
		if len(sources) == 0 {
			t.Error(category, "应该至少有一个数据源")
		}
		for _, v := range sources {
			if v.Name == "" || v.API == "" {
				t.Error(category, "数据源信息不完整:", v)
			}
		}
		if category.Interval() <= 0 {
			t.Error(category, "同步间隔应该大于0")
		}
	}
}

func TestCategory_Unknown(t *testing.T) {
	_, err := Category("crypto").Sources()
	if err == nil {
		t.Fatal("未知分类应该报错")
	}
	e := new(UnknownCategoryError)
	if !errors.As(err, &e) {
		t.Error("错误类型不对:", err)
	}
	if e.Category != "crypto" {
		t.Error("分类错误:", e.Category)
	}
	t.Log(err)
}
