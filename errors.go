package akshare

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"
)

// ErrorKind 错误分类,决定是否可以重试
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindNetwork
	KindRateLimit
	KindPersistence
	KindData
	KindSystem
)

func (this ErrorKind) String() string {
	switch this {
	case KindNetwork:
		return "NetworkError"
	case KindRateLimit:
		return "RateLimitError"
	case KindPersistence:
		return "PersistenceError"
	case KindData:
		return "DataError"
	case KindSystem:
		return "SystemError"
	}
	return "UnknownError"
}

// Recoverable 是否可以重试,只有网络错误和限流错误可以重试
func (this ErrorKind) Recoverable() bool {
	return this == KindNetwork || this == KindRateLimit
}

// Error 带分类的错误
type Error struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (this *Error) Error() string {
	if this.Err != nil {
		if this.Msg != "" {
			return fmt.Sprintf("%s: %s: %v", this.Kind, this.Msg, this.Err)
		}
		return fmt.Sprintf("%s: %v", this.Kind, this.Err)
	}
	return fmt.Sprintf("%s: %s", this.Kind, this.Msg)
}

func (this *Error) Unwrap() error {
	return this.Err
}

func NewError(kind ErrorKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// WrapError 包装错误并指定分类,msg为上下文说明
func WrapError(kind ErrorKind, err error, msg string) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// 限流相关的关键词,接口返回的报错信息不规范,只能靠关键词识别
var rateLimitWords = []string{
	"限流",
	"访问频繁",
	"请求过于频繁",
	"too many requests",
	"rate limit",
	"429",
}

// Classify 对错误进行分类,优先级:
// 已分类 > 网络 > 数据库 > 数据 > 限流 > 系统 > 未知
func Classify(err error) ErrorKind {
	if err == nil {
		return KindUnknown
	}

	//已经分类过的错误直接返回
	e := new(Error)
	if errors.As(err, &e) {
		return e.Kind
	}

	msg := strings.ToLower(err.Error())

	//1. 网络错误
	var netErr net.Error
	switch {
	case errors.As(err, &netErr),
		errors.As(err, new(*net.OpError)),
		errors.As(err, new(*url.Error)),
		errors.As(err, new(*net.DNSError)),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ETIMEDOUT):
		return KindNetwork
	case strings.Contains(msg, "connection refused"),
		strings.Contains(msg, "connection reset"),
		strings.Contains(msg, "no such host"):
		return KindNetwork
	}

	//2. 数据库错误
	switch {
	case errors.Is(err, sql.ErrConnDone),
		errors.Is(err, sql.ErrTxDone),
		errors.Is(err, sql.ErrNoRows),
		errors.Is(err, driver.ErrBadConn):
		return KindPersistence
	case strings.Contains(msg, "sql"),
		strings.Contains(msg, "database"),
		strings.Contains(msg, "constraint"),
		strings.Contains(msg, "数据库"):
		return KindPersistence
	}

	//3. 数据错误
	switch {
	case errors.As(err, new(*strconv.NumError)),
		errors.As(err, new(*json.SyntaxError)),
		errors.As(err, new(*json.UnmarshalTypeError)),
		errors.As(err, new(*time.ParseError)):
		return KindData
	case strings.Contains(msg, "列缺失"),
		strings.Contains(msg, "数据格式"),
		strings.Contains(msg, "invalid"):
		return KindData
	}

	//4. 限流错误
	for _, word := range rateLimitWords {
		if strings.Contains(msg, word) {
			return KindRateLimit
		}
	}

	//5. 系统错误
	switch {
	case errors.As(err, new(*os.PathError)),
		errors.As(err, new(*os.LinkError)),
		errors.As(err, new(*os.SyscallError)),
		errors.As(err, new(syscall.Errno)):
		return KindSystem
	case strings.Contains(msg, "out of memory"),
		strings.Contains(msg, "no space left"):
		return KindSystem
	}

	return KindUnknown
}

// Stats 错误统计,显式传递,不使用全局变量,方便测试和并发使用
type Stats struct {
	mu     sync.Mutex
	counts map[ErrorKind]int
}

func NewStats() *Stats {
	return &Stats{counts: make(map[ErrorKind]int)}
}

func (this *Stats) Record(kind ErrorKind) {
	this.mu.Lock()
	defer this.mu.Unlock()
	this.counts[kind]++
}

// Snapshot 返回各分类的出现次数
func (this *Stats) Snapshot() map[string]int {
	this.mu.Lock()
	defer this.mu.Unlock()
	m := make(map[string]int, len(this.counts))
	for k, v := range this.counts {
		m[k.String()] = v
	}
	return m
}

func (this *Stats) Total() int {
	this.mu.Lock()
	defer this.mu.Unlock()
	total := 0
	for _, v := range this.counts {
		total += v
	}
	return total
}

func (this *Stats) Reset() {
	this.mu.Lock()
	defer this.mu.Unlock()
	this.counts = make(map[ErrorKind]int)
}
