package queue

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Memory is an in-process Broker. Jobs are delivered highest priority
// first, then in publish order. Rejected jobs are kept in a dead-letter
// list. Nothing survives a restart.
type Memory struct {
	mu     sync.Mutex
	items  []memItem
	dead   []Job
	seq    uint64
	wake   chan struct{}
	timers []*time.Timer
	closed bool
}

type memItem struct {
	job Job
	seq uint64
}

// NewMemory creates an empty Memory broker
func NewMemory() *Memory {
	return &Memory{wake: make(chan struct{}, 1)}
}

// Publish queues job, after delay when positive
func (m *Memory) Publish(_ context.Context, job Job, delay time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if delay > 0 {
		m.timers = append(m.timers, time.AfterFunc(delay, func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			if !m.closed {
				m.pushLocked(job)
			}
		}))
		return nil
	}
	m.pushLocked(job)
	return nil
}

func (m *Memory) pushLocked(job Job) {
	m.seq++
	m.items = append(m.items, memItem{job: job, seq: m.seq})
	sort.SliceStable(m.items, func(i, j int) bool {
		if m.items[i].job.Priority != m.items[j].job.Priority {
			return m.items[i].job.Priority > m.items[j].job.Priority
		}
		return m.items[i].seq < m.items[j].seq
	})
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

func (m *Memory) pop() (Job, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.items) == 0 {
		return Job{}, false
	}
	it := m.items[0]
	m.items = m.items[1:]
	return it.job, true
}

// Len returns the number of jobs ready for delivery
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

// DeadLetters returns the jobs rejected without requeue, oldest first
func (m *Memory) DeadLetters() []Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Job(nil), m.dead...)
}

func (m *Memory) deadLetter(job Job) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dead = append(m.dead, job)
}

// Consume streams jobs until ctx is done or the broker closes. A job
// nacked with requeue goes back to the queue; without, it is dead-lettered.
func (m *Memory) Consume(ctx context.Context) (<-chan Delivery, error) {
	out := make(chan Delivery)
	go func() {
		defer close(out)
		for {
			job, ok := m.pop()
			if !ok {
				select {
				case <-ctx.Done():
					return
				case <-m.wake:
					if m.isClosed() {
						return
					}
					continue
				}
			}

			d := Delivery{
				Job: job,
				ack: func() error { return nil },
				nack: func(requeue bool) error {
					if requeue {
						return m.Publish(context.Background(), job, 0)
					}
					m.deadLetter(job)
					return nil
				},
			}
			select {
			case out <- d:
			case <-ctx.Done():
				_ = m.Publish(context.Background(), job, 0)
				return
			}
		}
	}()
	return out, nil
}

func (m *Memory) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Close stops pending delayed publishes and ends consumers
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	for _, t := range m.timers {
		t.Stop()
	}
	m.timers = nil
	select {
	case m.wake <- struct{}{}:
	default:
	}
	return nil
}
