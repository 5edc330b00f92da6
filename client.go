package akshare

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/injoyai/conv"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"
)

const (
	DefaultBaseURL = "http://127.0.0.1:8080"
	DefaultTimeout = time.Second * 30
)

type ClientConfig struct {
	BaseURL string        //AKShare网关地址
	Timeout time.Duration //单次请求超时
}

func (this *ClientConfig) init() {
	if this.BaseURL == "" {
		this.BaseURL = conv.Select(os.Getenv("AK_BASE_URL") == "", DefaultBaseURL, os.Getenv("AK_BASE_URL"))
	}
	if this.Timeout <= 0 {
		this.Timeout = DefaultTimeout
		if s := os.Getenv("AK_TIMEOUT"); s != "" {
			if d, err := time.ParseDuration(s); err == nil {
				this.Timeout = d
			}
		}
	}
	this.BaseURL = strings.TrimSuffix(this.BaseURL, "/")
}

// NewClient AKShare数据网关客户端,接口为 /api/public/<接口名>
func NewClient(cfg *ClientConfig) *Client {
	if cfg == nil {
		cfg = &ClientConfig{}
	}
	cfg.init()
	return &Client{
		Config: cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
	}
}

type Client struct {
	Config *ClientConfig
	http   *http.Client
}

// Records 通用请求,返回记录列表,列名和akshare保持一致
// 404或者空数组表示无数据,不算错误
func (this *Client) Records(api string, params map[string]string) ([]map[string]interface{}, error) {
	u := fmt.Sprintf("%s/api/public/%s", this.Config.BaseURL, api)
	if len(params) > 0 {
		q := url.Values{}
		for k, v := range params {
			q.Set(k, v)
		}
		u += "?" + q.Encode()
	}

	resp, err := this.http.Get(u)
	if err != nil {
		return nil, WrapError(KindNetwork, err, api)
	}
	defer resp.Body.Close()

	bs, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, WrapError(KindNetwork, err, api)
	}
	//部分数据源(例sina)返回GBK编码
	if strings.Contains(strings.ToLower(resp.Header.Get("Content-Type")), "gbk") {
		bs = GBKToUTF8(bs)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		//接口存在但无数据
		return nil, nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, NewError(KindRateLimit, "接口限流: %s", api)
	case resp.StatusCode != http.StatusOK:
		msg := strings.ToLower(string(bs))
		for _, word := range rateLimitWords {
			if strings.Contains(msg, word) {
				return nil, NewError(KindRateLimit, "接口限流: %s", api)
			}
		}
		return nil, NewError(KindNetwork, "请求失败: %s 状态码%d", api, resp.StatusCode)
	}

	if len(bytes.TrimSpace(bs)) == 0 {
		return nil, nil
	}
	list := []map[string]interface{}(nil)
	if err := json.Unmarshal(bs, &list); err != nil {
		return nil, WrapError(KindData, err, "解析响应失败: "+api)
	}
	return list, nil
}

// KlineData A股历史行情的一条记录
type KlineData struct {
	Date      string  //日期 2006-01-02
	Open      float64 //开盘
	Close     float64 //收盘
	High      float64 //最高
	Low       float64 //最低
	Volume    int64   //成交量,手
	Amount    float64 //成交额,元
	Amplitude float64 //振幅,%
	PctChg    float64 //涨跌幅,%
	Change    float64 //涨跌额
	Turnover  float64 //换手率,%
}

var klineColumns = []string{"日期", "开盘", "收盘", "最高", "最低", "成交量", "成交额", "振幅", "涨跌幅", "涨跌额", "换手率"}

// History 获取A股日线历史数据,日期格式YYYYMMDD,闭区间
// 返回空切片表示区间内无交易数据
func (this *Client) History(code, startDate, endDate string) ([]*KlineData, error) {
	rows, err := this.Records("stock_zh_a_hist", map[string]string{
		"symbol":     code,
		"period":     "daily",
		"start_date": startDate,
		"end_date":   endDate,
		"adjust":     "",
	})
	if err != nil {
		return nil, err
	}

	ls := []*KlineData(nil)
	for _, row := range rows {
		for _, col := range klineColumns {
			if _, ok := row[col]; !ok {
				return nil, NewError(KindData, "列缺失: %s", col)
			}
		}
		ls = append(ls, &KlineData{
			Date:      shortDate(conv.String(row["日期"])),
			Open:      conv.Float64(row["开盘"]),
			Close:     conv.Float64(row["收盘"]),
			High:      conv.Float64(row["最高"]),
			Low:       conv.Float64(row["最低"]),
			Volume:    conv.Int64(row["成交量"]),
			Amount:    conv.Float64(row["成交额"]),
			Amplitude: conv.Float64(row["振幅"]),
			PctChg:    conv.Float64(row["涨跌幅"]),
			Change:    conv.Float64(row["涨跌额"]),
			Turnover:  conv.Float64(row["换手率"]),
		})
	}
	return ls, nil
}

// StockInfo 股票基础信息
type StockInfo struct {
	Code     string //代码
	Name     string //简称
	Exchange string //交易所 sh/sz
	ListDate string //上市日期 2006-01-02
}

// StockList 获取沪深京三市的A股列表
func (this *Client) StockList() ([]*StockInfo, error) {
	ls := []*StockInfo(nil)

	//深市
	rows, err := this.Records("stock_info_sz_name_code", map[string]string{"symbol": "A股列表"})
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		ls = append(ls, &StockInfo{
			Code:     conv.String(row["A股代码"]),
			Name:     conv.String(row["A股简称"]),
			Exchange: "sz",
			ListDate: shortDate(conv.String(row["A股上市日期"])),
		})
	}

	//沪市
	rows, err = this.Records("stock_info_sh_name_code", map[string]string{"symbol": "主板A股"})
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		ls = append(ls, &StockInfo{
			Code:     conv.String(row["证券代码"]),
			Name:     conv.String(row["证券简称"]),
			Exchange: "sh",
			ListDate: shortDate(conv.String(row["上市日期"])),
		})
	}

	//北交所
	bj, err := this.BjStockList()
	if err != nil {
		return nil, err
	}
	ls = append(ls, bj...)

	return ls, nil
}

// TradeDates 获取交易日历,返回日期列表 2006-01-02
func (this *Client) TradeDates() ([]string, error) {
	rows, err := this.Records("tool_trade_date_hist_sina", nil)
	if err != nil {
		return nil, err
	}
	ls := []string(nil)
	for _, row := range rows {
		if d := shortDate(conv.String(row["trade_date"])); d != "" {
			ls = append(ls, d)
		}
	}
	return ls, nil
}

// shortDate 接口返回的日期可能带时间(例2024-01-02T00:00:00.000),只取日期部分
func shortDate(s string) string {
	if len(s) > 10 {
		return s[:10]
	}
	return s
}

// GBKToUTF8 GBK转UTF8
func GBKToUTF8(text []byte) []byte {
	r := bytes.NewReader(text)
	decoder := transform.NewReader(r, simplifiedchinese.GBK.NewDecoder())
	content, _ := io.ReadAll(decoder)
	return bytes.ReplaceAll(content, []byte{0x00}, []byte{})
}
