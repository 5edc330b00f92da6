package akshare

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"golang.org/x/text/encoding/simplifiedchinese"
)

func testClient(handler http.Handler) (*Client, func()) {
	srv := httptest.NewServer(handler)
	c := NewClient(&ClientConfig{BaseURL: srv.URL})
	return c, srv.Close
}

func TestClient_History(t *testing.T) {
	c, closer := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/public/stock_zh_a_hist" {
			http.NotFound(w, r)
			return
		}
		if r.URL.Query().Get("symbol") != "000001" {
			t.Error("参数错误:", r.URL.Query())
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"日期":"2024-01-02T00:00:00.000","开盘":10.0,"收盘":10.5,"最高":10.8,"最低":9.9,"成交量":100000,"成交额":1050000.0,"振幅":9.0,"涨跌幅":5.0,"涨跌额":0.5,"换手率":1.2}]`))
	}))
	defer closer()

	ls, err := c.History("000001", "20240101", "20240131")
	if err != nil {
		t.Fatal(err)
	}
	if len(ls) != 1 {
		t.Fatal("数据条数错误:", len(ls))
	}
	k := ls[0]
	if k.Date != "2024-01-02" {
		t.Error("日期应该去掉时间部分:", k.Date)
	}
	if k.Open != 10.0 || k.Close != 10.5 || k.Volume != 100000 || k.PctChg != 5.0 {
		t.Error("数据解析错误:", k)
	}
}

func TestClient_History_MissingColumn(t *testing.T) {
	c, closer := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"日期":"2024-01-02","开盘":10.0}]`))
	}))
	defer closer()

	_, err := c.History("000001", "20240101", "20240131")
	if err == nil {
		t.Fatal("缺列应该报错")
	}
	if Classify(err) != KindData {
		t.Error("应该是数据错误:", err)
	}
}

func TestClient_History_Empty(t *testing.T) {
	c, closer := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer closer()

	ls, err := c.History("000001", "20240101", "20240131")
	if err != nil {
		t.Fatal(err)
	}
	if len(ls) != 0 {
		t.Error("应该返回空数据")
	}
}

func TestClient_Records_RateLimit(t *testing.T) {
	c, closer := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer closer()

	_, err := c.Records("stock_zh_a_hist", nil)
	if err == nil {
		t.Fatal("应该报错")
	}
	if Classify(err) != KindRateLimit {
		t.Error("应该是限流错误:", err)
	}
}

func TestClient_Records_RateLimitWords(t *testing.T) {
	c, closer := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"detail":"访问频繁,请稍后再试"}`))
	}))
	defer closer()

	_, err := c.Records("stock_zh_a_hist", nil)
	if Classify(err) != KindRateLimit {
		t.Error("应该是限流错误:", err)
	}
}

func TestClient_Records_NotFound(t *testing.T) {
	c, closer := testClient(http.HandlerFunc(http.NotFound))
	defer closer()

	ls, err := c.Records("not_exist", nil)
	if err != nil || ls != nil {
		t.Error("404应该当作无数据:", ls, err)
	}
}

func TestClient_Records_BadJSON(t *testing.T) {
	c, closer := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>not json</html>`))
	}))
	defer closer()

	_, err := c.Records("stock_zh_a_hist", nil)
	if Classify(err) != KindData {
		t.Error("应该是数据错误:", err)
	}
}

func TestClient_Records_Network(t *testing.T) {
	c := NewClient(&ClientConfig{BaseURL: "http://127.0.0.1:1"})
	_, err := c.Records("stock_zh_a_hist", nil)
	if err == nil {
		t.Fatal("应该报错")
	}
	if Classify(err) != KindNetwork {
		t.Error("应该是网络错误:", err)
	}
}

func TestClient_Records_GBK(t *testing.T) {
	gbk, err := simplifiedchinese.GBK.NewEncoder().Bytes([]byte(`[{"名称":"平安银行"}]`))
	if err != nil {
		t.Fatal(err)
	}
	c, closer := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=gbk")
		w.Write(gbk)
	}))
	defer closer()

	rows, err := c.Records("currency_boc_sina", nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0]["名称"] != "平安银行" {
		t.Error("GBK解码错误:", rows)
	}
}

func TestClient_StockList(t *testing.T) {
	c, closer := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/public/stock_info_sz_name_code":
			w.Write([]byte(`[{"A股代码":"000001","A股简称":"平安银行","A股上市日期":"1991-04-03"}]`))
		case "/api/public/stock_info_sh_name_code":
			w.Write([]byte(`[{"证券代码":"600519","证券简称":"贵州茅台","上市日期":"2001-08-27"}]`))
		case "/api/public/stock_info_bj_name_code":
			w.Write([]byte(`[{"证券代码":"430047","证券简称":"诺思兰德","上市日期":"2021-11-15"}]`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer closer()

	ls, err := c.StockList()
	if err != nil {
		t.Fatal(err)
	}
	if len(ls) != 3 {
		t.Fatal("数量错误:", len(ls))
	}
	if ls[0].Code != "000001" || ls[0].Exchange != "sz" || ls[0].ListDate != "1991-04-03" {
		t.Error("深市解析错误:", ls[0])
	}
	if ls[1].Code != "600519" || ls[1].Exchange != "sh" {
		t.Error("沪市解析错误:", ls[1])
	}
	if ls[2].Code != "430047" || ls[2].Exchange != "bj" {
		t.Error("北交所解析错误:", ls[2])
	}
}

func TestShortDate(t *testing.T) {
	if shortDate("2024-01-02T00:00:00.000") != "2024-01-02" {
		t.Error("应该截断时间部分")
	}
	if shortDate("2024-01-02") != "2024-01-02" {
		t.Error("不应该改变短日期")
	}
	if shortDate("") != "" {
		t.Error("空串应该原样返回")
	}
}
