package akshare

import (
	"fmt"
	"time"
)

// Category 数据分类,封闭枚举
// 未知分类是显式错误,不会出现运行时查不到函数的情况
type Category string

const (
	CategoryStock    Category = "stock"    //股票
	CategoryFutures  Category = "futures"  //期货
	CategoryFund     Category = "fund"     //基金
	CategoryBond     Category = "bond"     //债券
	CategoryForex    Category = "forex"    //外汇
	CategoryMacro    Category = "macro"    //宏观
	CategoryNews     Category = "news"     //新闻
	CategoryIndustry Category = "industry" //行业
)

var AllCategories = []Category{
	CategoryStock,
	CategoryFutures,
	CategoryFund,
	CategoryBond,
	CategoryForex,
	CategoryMacro,
	CategoryNews,
	CategoryIndustry,
}

// UnknownCategoryError 未知的数据分类
type UnknownCategoryError struct {
	Category Category
}

func (this *UnknownCategoryError) Error() string {
	return fmt.Sprintf("未知的数据分类: %s", this.Category)
}

// Source 一个数据源,对应akshare的一个接口
type Source struct {
	Name   string            //名称,也是快照表里的来源标识
	API    string            //akshare接口名
	Desc   string            //说明
	Params map[string]string //固定参数
}

// Fetch 拉取该数据源的全量记录
func (this *Source) Fetch(c *Client) ([]map[string]interface{}, error) {
	return c.Records(this.API, this.Params)
}

// Sources 分类下的数据源列表
func (this Category) Sources() ([]*Source, error) {
	switch this {
	case CategoryStock:
		return []*Source{
			{Name: "stock_info", API: "stock_info_sz_name_code", Desc: "股票基本信息", Params: map[string]string{"symbol": "A股列表"}},
			{Name: "stock_individual_info_em", API: "stock_individual_info_em", Desc: "个股信息", Params: map[string]string{"symbol": "000001"}},
			{Name: "stock_financial_abstract", API: "stock_financial_abstract", Desc: "财务摘要", Params: map[string]string{"symbol": "000001"}},
		}, nil
	case CategoryFutures:
		return []*Source{
			{Name: "futures_main_sina", API: "futures_main_sina", Desc: "期货主力合约"},
			{Name: "futures_zh_spot", API: "futures_zh_spot", Desc: "期货现货数据", Params: map[string]string{"symbol": "RB"}},
			{Name: "roll_yield_bar", API: "get_roll_yield_bar", Desc: "期货收益率", Params: map[string]string{"type_method": "date", "var": "RB"}},
		}, nil
	case CategoryFund:
		return []*Source{
			{Name: "fund_etf_category_sina", API: "fund_etf_category_sina", Desc: "ETF分类", Params: map[string]string{"symbol": "股票型"}},
			{Name: "fund_open_fund_info_em", API: "fund_open_fund_info_em", Desc: "开放式基金信息"},
		}, nil
	case CategoryBond:
		return []*Source{
			{Name: "bond_zh_us_rate", API: "bond_zh_us_rate", Desc: "中美国债收益率"},
			{Name: "bond_china_yield", API: "bond_china_yield", Desc: "中国国债收益率"},
		}, nil
	case CategoryForex:
		return []*Source{
			{Name: "currency_boc_sina", API: "currency_boc_sina", Desc: "中行外汇牌价"},
			{Name: "currency_latest", API: "currency_latest", Desc: "实时汇率"},
		}, nil
	case CategoryMacro:
		return []*Source{
			{Name: "macro_china_gdp", API: "macro_china_gdp", Desc: "中国GDP数据"},
			{Name: "macro_china_cpi", API: "macro_china_cpi", Desc: "中国CPI数据"},
			{Name: "macro_china_ppi", API: "macro_china_ppi", Desc: "中国PPI数据"},
			{Name: "macro_china_pmi", API: "macro_china_pmi", Desc: "中国PMI数据"},
		}, nil
	case CategoryNews:
		return []*Source{
			{Name: "stock_news_em", API: "stock_news_em", Desc: "股票新闻", Params: map[string]string{"symbol": "000001"}},
			{Name: "news_cctv", API: "news_cctv", Desc: "央视新闻"},
		}, nil
	case CategoryIndustry:
		return []*Source{
			{Name: "stock_board_industry_name_em", API: "stock_board_industry_name_em", Desc: "行业板块"},
			{Name: "stock_board_concept_name_em", API: "stock_board_concept_name_em", Desc: "概念板块"},
		}, nil
	}
	return nil, &UnknownCategoryError{Category: this}
}

// Interval 该分类的定时同步间隔
func (this Category) Interval() time.Duration {
	switch this {
	case CategoryStock:
		return time.Minute * 5
	case CategoryFutures:
		return time.Minute * 3
	case CategoryFund:
		return time.Minute * 10
	case CategoryBond:
		return time.Minute * 30
	case CategoryForex:
		return time.Minute
	case CategoryMacro:
		return time.Hour
	case CategoryNews:
		return time.Minute * 15
	case CategoryIndustry:
		return time.Minute * 30
	}
	return time.Minute * 5
}
