package workerpool

import (
	log "log/slog"
	"sync"
)

// Task 任务函数
type Task func()

// Pool 固定数量 worker 的任务池
type Pool struct {
	name      string
	taskQueue chan Task
	wg        sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// New workers 个 worker，队列长度 queueSize
func New(name string, workers, queueSize int) *Pool {
	if workers <= 0 {
		workers = 1
	}
	p := &Pool{
		name:      name,
		taskQueue: make(chan Task, queueSize),
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	log.Info("Worker pool started", "pool", name, "workers", workers, "queue_size", queueSize)
	return p
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	for task := range p.taskQueue {
		p.run(id, task)
	}
}

func (p *Pool) run(id int, task Task) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("Task panic recovered", "pool", p.name, "worker_id", id, "panic", r)
		}
	}()
	task()
}

// Submit 队列满时阻塞，池已关闭返回 false
func (p *Pool) Submit(task Task) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return false
	}
	p.taskQueue <- task
	return true
}

// TrySubmit 队列满时立即返回 false
func (p *Pool) TrySubmit(task Task) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return false
	}
	select {
	case p.taskQueue <- task:
		return true
	default:
		return false
	}
}

// Shutdown 停止接收新任务，等待队列中的任务执行完
func (p *Pool) Shutdown() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.taskQueue)
	p.mu.Unlock()

	p.wg.Wait()
	log.Info("Worker pool shutdown completed", "pool", p.name)
}
