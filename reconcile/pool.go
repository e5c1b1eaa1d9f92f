package reconcile

import (
	"sync"

	"position-sync-go/logs"
)

// Task 一个后台对账单元。
type Task func()

// Pool 有界后台任务池。读路径通过 Submit 提交对账任务后立即返回；
// Drain 等待全部已提交任务完成，用于确定性关停与测试断言。
type Pool struct {
	tasks   chan Task
	workers sync.WaitGroup
	pending sync.WaitGroup
	logger  *logs.Logger

	mu     sync.Mutex
	closed bool
}

// NewPool 启动 workers 个工作协程，队列容量为 queue。
func NewPool(workers, queue int, logger *logs.Logger) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if queue <= 0 {
		queue = workers * 4
	}
	p := &Pool{
		tasks:  make(chan Task, queue),
		logger: logger,
	}
	for i := 0; i < workers; i++ {
		p.workers.Add(1)
		go p.run()
	}
	return p
}

func (p *Pool) run() {
	defer p.workers.Done()
	for task := range p.tasks {
		task()
		p.pending.Done()
	}
}

// Submit 尝试入队；池已关闭或队列饱和时丢弃并返回 false。
// 对账任务丢失只影响时效，下一次读会重新触发。
func (p *Pool) Submit(task Task) bool {
	if task == nil {
		return false
	}
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return false
	}
	p.pending.Add(1)
	select {
	case p.tasks <- task:
		p.mu.Unlock()
		return true
	default:
		p.pending.Done()
		p.mu.Unlock()
		p.logger.Warn("reconcile queue saturated, task dropped")
		return false
	}
}

// Drain 阻塞直到全部已提交任务执行完毕。
func (p *Pool) Drain() {
	p.pending.Wait()
}

// Close 先排空再停止工作协程；进行中的任务会等待，不会被中止。
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	p.pending.Wait()
	close(p.tasks)
	p.workers.Wait()
}
