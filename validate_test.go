package akshare

import (
	"math"
	"testing"
)

func TestValidateCode(t *testing.T) {
	for _, code := range []string{"000001", "600519", "300750"} {
		if err := ValidateCode(code); err != nil {
			t.Error(code, err)
		}
	}
	for _, code := range []string{"", "00001", "0000011", "00000a", "sh0001", "００００11"} {
		if err := ValidateCode(code); err == nil {
			t.Error(code, "应该校验失败")
		} else if Classify(err) != KindData {
			t.Error(code, "应该是数据错误")
		}
	}
}

func TestValidateDate(t *testing.T) {
	for _, date := range []string{"19900101", "20240229", "20260831"} {
		if err := ValidateDate(date); err != nil {
			t.Error(date, err)
		}
	}
	for _, date := range []string{"", "2024-01-01", "20241301", "20240230", "2024011"} {
		if err := ValidateDate(date); err == nil {
			t.Error(date, "应该校验失败")
		}
	}
}

func TestValidateKlines(t *testing.T) {
	valid := &KlineData{
		Date: "2024-01-02", Open: 10, Close: 10.5, High: 10.8, Low: 9.9,
		Volume: 100000, Amount: 1050000, Amplitude: 9.0, PctChg: 5.0, Change: 0.5, Turnover: 1.2,
	}
	if err := ValidateKlines([]*KlineData{valid}); err != nil {
		t.Error(err)
	}

	if err := ValidateKlines(nil); err == nil {
		t.Error("空数据应该校验失败")
	}

	//跌的时候涨跌幅为负是正常的
	down := *valid
	down.PctChg, down.Change = -5.0, -0.5
	if err := ValidateKlines([]*KlineData{&down}); err != nil {
		t.Error(err)
	}

	bad := *valid
	bad.Open = math.NaN()
	if err := ValidateKlines([]*KlineData{&bad}); err == nil {
		t.Error("NaN应该校验失败")
	}

	bad = *valid
	bad.Volume = -1
	if err := ValidateKlines([]*KlineData{&bad}); err == nil {
		t.Error("负成交量应该校验失败")
	}

	bad = *valid
	bad.Date = ""
	if err := ValidateKlines([]*KlineData{&bad}); err == nil {
		t.Error("空日期应该校验失败")
	}

	bad = *valid
	bad.Change = math.Inf(1)
	if err := ValidateKlines([]*KlineData{&bad}); err == nil {
		t.Error("无穷大应该校验失败")
	}
}
