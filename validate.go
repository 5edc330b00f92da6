package akshare

import (
	"math"
	"time"
)

// ValidateCode 校验股票代码,6位数字
func ValidateCode(code string) error {
	if len(code) != 6 {
		return NewError(KindData, "股票代码格式错误: %s", code)
	}
	for _, c := range code {
		if c < '0' || c > '9' {
			return NewError(KindData, "股票代码格式错误: %s", code)
		}
	}
	return nil
}

// ValidateDate 校验日期格式,YYYYMMDD
func ValidateDate(date string) error {
	if len(date) != 8 {
		return NewError(KindData, "日期格式错误: %s", date)
	}
	if _, err := time.Parse("20060102", date); err != nil {
		return NewError(KindData, "日期格式错误: %s", date)
	}
	return nil
}

// ValidateKlines 校验K线数据,至少一行,价格和成交量必须是非负的有限数
func ValidateKlines(ls []*KlineData) error {
	if len(ls) == 0 {
		return NewError(KindData, "数据为空")
	}
	for _, v := range ls {
		if v.Date == "" {
			return NewError(KindData, "日期为空")
		}
		for _, f := range []float64{v.Open, v.Close, v.High, v.Low, float64(v.Volume), v.Amount, v.Amplitude, v.Turnover} {
			if math.IsNaN(f) || math.IsInf(f, 0) {
				return NewError(KindData, "数值无效: %s %s", v.Date, "非有限数")
			}
			if f < 0 {
				return NewError(KindData, "数值无效: %s 价格或成交量为负", v.Date)
			}
		}
		//涨跌幅和涨跌额可以为负,只需要是有限数
		for _, f := range []float64{v.PctChg, v.Change} {
			if math.IsNaN(f) || math.IsInf(f, 0) {
				return NewError(KindData, "数值无效: %s %s", v.Date, "非有限数")
			}
		}
	}
	return nil
}
