package akshare

import (
	"github.com/injoyai/conv"
)

// BjStockList 获取北交所A股列表
// 部分网关版本没有这个接口,404按无数据处理
func (this *Client) BjStockList() ([]*StockInfo, error) {
	rows, err := this.Records("stock_info_bj_name_code", nil)
	if err != nil {
		return nil, err
	}
	ls := []*StockInfo(nil)
	for _, row := range rows {
		ls = append(ls, &StockInfo{
			Code:     conv.String(row["证券代码"]),
			Name:     conv.String(row["证券简称"]),
			Exchange: "bj",
			ListDate: shortDate(conv.String(row["上市日期"])),
		})
	}
	return ls, nil
}
