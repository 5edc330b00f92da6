package main

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/injoyai/logs"
	akshare "github.com/xionghao1012/AKShare-Stock-Sync"
	"github.com/xionghao1012/AKShare-Stock-Sync/extend"
)

var (
	manager     *akshare.Manage
	taskManager = NewTaskManager()

	syncMu sync.Mutex
	syncer = extend.NewSyncStock(extend.SyncConfig{})
)

func init() {
	logs.SetFormatter(logs.TimeFormatter)

	var err error
	manager, err = akshare.NewManage(nil)
	logs.PanicErr(err)
	logs.Info("数据管理器初始化成功,股票数量:", len(manager.Codes.GetStocks()))
	manager.Cron.Start()
}

// Response 统一响应结构
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

// 返回成功响应
func successResponse(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	json.NewEncoder(w).Encode(Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

// 返回错误响应
func errorResponse(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	json.NewEncoder(w).Encode(Response{
		Code:    -1,
		Message: message,
		Data:    nil,
	})
}

// 健康检查
func handleHealth(w http.ResponseWriter, r *http.Request) {
	successResponse(w, map[string]interface{}{
		"status": "ok",
		"time":   time.Now().Format("2006-01-02 15:04:05"),
	})
}

// 同步状态,进度文件加数据库统计
func handleStatus(w http.ResponseWriter, r *http.Request) {
	syncMu.Lock()
	report := syncer.Report(manager)
	syncMu.Unlock()
	successResponse(w, report)
}

// 搜索股票,按代码或名称模糊匹配
func handleSearch(w http.ResponseWriter, r *http.Request) {
	keyword := strings.ToUpper(r.URL.Query().Get("keyword"))
	if keyword == "" {
		errorResponse(w, "搜索关键词不能为空")
		return
	}

	results := []*akshare.StockModel{}
	for _, v := range manager.Codes.GetStocks() {
		if strings.Contains(strings.ToUpper(v.Code), keyword) ||
			strings.Contains(strings.ToUpper(v.Name), keyword) {
			results = append(results, v)
		}
		if len(results) >= 50 {
			break
		}
	}
	successResponse(w, results)
}

// 获取历史K线,直接从数据源拉取
func handleKline(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if err := akshare.ValidateCode(code); err != nil {
		errorResponse(w, err.Error())
		return
	}
	start := r.URL.Query().Get("start")
	if start == "" {
		start = "19900101"
	}
	end := r.URL.Query().Get("end")
	if end == "" {
		end = time.Now().Format("20060102")
	}

	var list []*akshare.KlineData
	err := manager.Do(func(c *akshare.Client) (err error) {
		list, err = c.History(code, start, end)
		return
	})
	if err != nil {
		errorResponse(w, err.Error())
		return
	}
	successResponse(w, list)
}

// 本地数据概况
func handleStockData(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if err := akshare.ValidateCode(code); err != nil {
		errorResponse(w, err.Error())
		return
	}

	latest, err := manager.History.LatestDate(code)
	if err != nil {
		errorResponse(w, err.Error())
		return
	}
	count, err := manager.History.Count(code)
	if err != nil {
		errorResponse(w, err.Error())
		return
	}
	successResponse(w, map[string]interface{}{
		"code":   code,
		"name":   manager.Codes.GetName(code),
		"latest": latest,
		"count":  count,
	})
}

// 查询是否交易日,默认今天
func handleWorkday(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	t := time.Now()
	if date != "" {
		var err error
		t, err = time.Parse("20060102", date)
		if err != nil {
			errorResponse(w, "date格式错误,应为YYYYMMDD")
			return
		}
	}
	successResponse(w, map[string]interface{}{
		"date":    t.Format("20060102"),
		"workday": manager.Workday.Is(t),
	})
}

// 启动批量同步任务
func handleSyncContinue(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		errorResponse(w, "只支持POST请求")
		return
	}

	var req struct {
		StartCode string `json:"start_code"`
		MaxCount  int    `json:"max_count"`
	}
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&req)
	}

	syncMu.Lock()
	eng := extend.NewSyncStock(extend.SyncConfig{
		StartCode: req.StartCode,
		MaxCount:  req.MaxCount,
	})
	syncer = eng
	syncMu.Unlock()

	taskID, err := taskManager.RunExclusive("sync_stock", func(ctx context.Context) error {
		return eng.Run(ctx, manager)
	})
	if err != nil {
		errorResponse(w, err.Error())
		return
	}
	successResponse(w, map[string]string{"task_id": taskID})
}

// 重试失败的股票
func handleSyncRetry(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		errorResponse(w, "只支持POST请求")
		return
	}

	syncMu.Lock()
	eng := extend.NewSyncStock(extend.SyncConfig{})
	syncer = eng
	syncMu.Unlock()

	taskID, err := taskManager.RunExclusive("sync_stock", func(ctx context.Context) error {
		return eng.RetryFailed(ctx, manager)
	})
	if err != nil {
		errorResponse(w, err.Error())
		return
	}
	successResponse(w, map[string]string{"task_id": taskID})
}

// 同步指定日期的数据
func handleSyncDate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		errorResponse(w, "只支持POST请求")
		return
	}

	var req struct {
		Date string `json:"date"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorResponse(w, "请求参数错误: "+err.Error())
		return
	}
	if err := akshare.ValidateDate(req.Date); err != nil {
		errorResponse(w, err.Error())
		return
	}

	syncMu.Lock()
	eng := extend.NewSyncStock(extend.SyncConfig{})
	syncer = eng
	syncMu.Unlock()

	taskID, err := taskManager.RunExclusive("sync_stock", func(ctx context.Context) error {
		return eng.SyncDate(ctx, manager, req.Date)
	})
	if err != nil {
		errorResponse(w, err.Error())
		return
	}
	successResponse(w, map[string]string{"task_id": taskID})
}

// 数据分类列表
func handleCategories(w http.ResponseWriter, r *http.Request) {
	list := []map[string]interface{}{}
	for _, v := range akshare.AllCategories {
		sources, _ := v.Sources()
		list = append(list, map[string]interface{}{
			"category": v,
			"interval": v.Interval().String(),
			"sources":  len(sources),
		})
	}
	successResponse(w, list)
}

// 同步一个分类的数据快照
func handleSyncCategory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		errorResponse(w, "只支持POST请求")
		return
	}

	var req struct {
		Category string `json:"category"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorResponse(w, "请求参数错误: "+err.Error())
		return
	}

	category := akshare.Category(req.Category)
	if _, err := category.Sources(); err != nil {
		errorResponse(w, err.Error())
		return
	}

	eng := extend.NewSyncCategory(extend.SyncCategoryConfig{
		Categories: []akshare.Category{category},
	})
	taskID, err := taskManager.RunExclusive("sync_category_"+req.Category, func(ctx context.Context) error {
		return eng.Run(ctx, manager)
	})
	if err != nil {
		errorResponse(w, err.Error())
		return
	}
	successResponse(w, map[string]string{"task_id": taskID})
}

func handleListTasks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		errorResponse(w, "只支持GET请求")
		return
	}
	successResponse(w, taskManager.List())
}

func handleTaskOperations(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/tasks/")
	path = strings.Trim(path, "/")
	if path == "" {
		http.NotFound(w, r)
		return
	}

	parts := strings.Split(path, "/")
	id := parts[0]

	if len(parts) == 2 && parts[1] == "cancel" {
		if r.Method != http.MethodPost {
			errorResponse(w, "取消任务仅支持POST")
			return
		}
		if ok := taskManager.Cancel(id); !ok {
			errorResponse(w, "任务不存在或已结束")
			return
		}
		successResponse(w, map[string]string{
			"task_id": id,
			"status":  string(TaskStatusCancelled),
		})
		return
	}

	if r.Method != http.MethodGet {
		errorResponse(w, "只支持GET请求")
		return
	}

	if task, ok := taskManager.Get(id); ok {
		successResponse(w, task)
		return
	}
	errorResponse(w, "任务不存在")
}

func main() {
	http.HandleFunc("/api/health", handleHealth)
	http.HandleFunc("/api/status", handleStatus)
	http.HandleFunc("/api/search", handleSearch)
	http.HandleFunc("/api/kline", handleKline)
	http.HandleFunc("/api/stock-data", handleStockData)
	http.HandleFunc("/api/workday", handleWorkday)
	http.HandleFunc("/api/sync/continue", handleSyncContinue)
	http.HandleFunc("/api/sync/retry", handleSyncRetry)
	http.HandleFunc("/api/sync/date", handleSyncDate)
	http.HandleFunc("/api/sync/category", handleSyncCategory)
	http.HandleFunc("/api/categories", handleCategories)
	http.HandleFunc("/api/tasks", handleListTasks)
	http.HandleFunc("/api/tasks/", handleTaskOperations)

	addr := ":8001"
	logs.Info("服务启动成功,访问 http://localhost" + addr)
	logs.PanicErr(http.ListenAndServe(addr, nil))
}
