package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

type TaskStatus string

const (
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusSuccess   TaskStatus = "success"
	TaskStatusFailed    TaskStatus = "failed"
	TaskStatusCancelled TaskStatus = "cancelled"
)

type Task struct {
	ID        string     `json:"id"`
	Type      string     `json:"type"`
	Status    TaskStatus `json:"status"`
	Error     string     `json:"error,omitempty"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
	cancel    context.CancelFunc
}

type TaskManager struct {
	mu    sync.RWMutex
	tasks map[string]*Task
}

func NewTaskManager() *TaskManager {
	return &TaskManager{
		tasks: make(map[string]*Task),
	}
}

// Run 启动一个后台任务
func (tm *TaskManager) Run(taskType string, fn func(ctx context.Context) error) string {
	tm.mu.Lock()
	ctx, cancel := context.WithCancel(context.Background())
	id := uuid.New().String()
	task := &Task{
		ID:        id,
		Type:      taskType,
		Status:    TaskStatusRunning,
		StartedAt: time.Now(),
		cancel:    cancel,
	}
	tm.tasks[id] = task
	tm.mu.Unlock()

	go func() {
		err := fn(ctx)

		tm.mu.Lock()
		defer tm.mu.Unlock()

		now := time.Now()
		task.EndedAt = &now

		if task.Status == TaskStatusCancelled {
			return
		}
		if err != nil {
			task.Status = TaskStatusFailed
			task.Error = err.Error()
			return
		}
		task.Status = TaskStatusSuccess
	}()

	return id
}

// RunExclusive 同类型任务同时只允许一个在跑
// 同步任务共用进度文件,并发跑会互相覆盖进度
func (tm *TaskManager) RunExclusive(taskType string, fn func(ctx context.Context) error) (string, error) {
	tm.mu.RLock()
	for _, task := range tm.tasks {
		if task.Type == taskType && task.Status == TaskStatusRunning {
			tm.mu.RUnlock()
			return "", fmt.Errorf("任务%s已在运行中: %s", taskType, task.ID)
		}
	}
	tm.mu.RUnlock()
	return tm.Run(taskType, fn), nil
}

func (tm *TaskManager) Cancel(id string) bool {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	task, ok := tm.tasks[id]
	if !ok {
		return false
	}

	if task.Status != TaskStatusRunning {
		return false
	}

	task.Status = TaskStatusCancelled
	if task.cancel != nil {
		task.cancel()
	}
	now := time.Now()
	task.EndedAt = &now
	return true
}

func (tm *TaskManager) Get(id string) (*Task, bool) {
	tm.mu.RLock()
	defer tm.mu.RUnlock()

	task, ok := tm.tasks[id]
	return task, ok
}

func (tm *TaskManager) List() []*Task {
	tm.mu.RLock()
	defer tm.mu.RUnlock()

	list := make([]*Task, 0, len(tm.tasks))
	for _, task := range tm.tasks {
		list = append(list, task)
	}
	return list
}
