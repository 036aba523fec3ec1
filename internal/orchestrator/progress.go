package orchestrator

import (
	"encoding/json"
	"sync"

	"golang.org/x/time/rate"

	"github.com/veritas-mfg/tobacco-aps/internal/queue"
)

// progressEvent is the payload published on a task's progress subject.
type progressEvent struct {
	TaskID   string `json:"taskId"`
	Stage    string `json:"stage"`
	Progress int    `json:"progress"`
}

// progressPublisher coalesces NATS progress publishes per task at a fixed
// rate so a many-thousand-order batch, which could otherwise emit one
// event per LogicalOrder, doesn't flood the bus — repurposed from the
// teacher's per-key RateLimiterService, there used for M3 API throttling.
type progressPublisher struct {
	nats     Publisher
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func newProgressPublisher(nats Publisher) *progressPublisher {
	return &progressPublisher{nats: nats, limiters: make(map[string]*rate.Limiter)}
}

const maxProgressEventsPerSecond = 5

func (p *progressPublisher) limiterFor(taskID string) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()
	l, ok := p.limiters[taskID]
	if !ok {
		l = rate.NewLimiter(rate.Limit(maxProgressEventsPerSecond), maxProgressEventsPerSecond)
		p.limiters[taskID] = l
	}
	return l
}

// publish sends a progress event if the per-task rate budget allows it.
// force bypasses the limiter — used for the terminal 100% event so a
// client never misses completion.
func (p *progressPublisher) publish(taskID, stage string, progress int, force bool) {
	if !force && !p.limiterFor(taskID).Allow() {
		return
	}
	payload, err := json.Marshal(progressEvent{TaskID: taskID, Stage: stage, Progress: progress})
	if err != nil {
		return
	}
	_ = p.nats.Publish(queue.GetTaskProgressSubject(taskID), payload)
}

// forget drops a task's limiter once it reaches a terminal state.
func (p *progressPublisher) forget(taskID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.limiters, taskID)
}
