// Package schedule runs delayed callbacks that can be cancelled.
package schedule

import (
	"sort"
	"sync"
	"time"
)

// Task is a scheduled callback.
type Task interface {
	// Cancel stops the task. It reports false if the task already ran or was cancelled.
	Cancel() bool
}

// Scheduler runs fn once after d has elapsed.
type Scheduler interface {
	After(d time.Duration, fn func()) Task
}

// Real schedules on the runtime timer.
type Real struct{}

func (Real) After(d time.Duration, fn func()) Task {
	return &timerTask{t: time.AfterFunc(d, fn)}
}

type timerTask struct{ t *time.Timer }

func (t *timerTask) Cancel() bool { return t.t.Stop() }

// Manual is a Scheduler driven by Advance. Callbacks run on the goroutine calling Advance.
type Manual struct {
	mu    sync.Mutex
	now   time.Duration
	seq   int
	tasks []*manualTask
}

type manualTask struct {
	m     *Manual
	due   time.Duration
	seq   int
	fn    func()
	state int // 0 pending, 1 fired, 2 cancelled
}

func NewManual() *Manual { return &Manual{} }

func (m *Manual) After(d time.Duration, fn func()) Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d < 0 {
		d = 0
	}
	m.seq++
	t := &manualTask{m: m, due: m.now + d, seq: m.seq, fn: fn}
	m.tasks = append(m.tasks, t)
	return t
}

func (t *manualTask) Cancel() bool {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	if t.state != 0 {
		return false
	}
	t.state = 2
	t.m.removeLocked(t)
	return true
}

func (m *Manual) removeLocked(t *manualTask) {
	for i, x := range m.tasks {
		if x == t {
			m.tasks = append(m.tasks[:i], m.tasks[i+1:]...)
			return
		}
	}
}

// Advance moves the clock forward and runs every task that became due, in due order.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now + d
	m.mu.Unlock()
	for {
		m.mu.Lock()
		sort.SliceStable(m.tasks, func(i, j int) bool {
			if m.tasks[i].due == m.tasks[j].due {
				return m.tasks[i].seq < m.tasks[j].seq
			}
			return m.tasks[i].due < m.tasks[j].due
		})
		if len(m.tasks) == 0 || m.tasks[0].due > target {
			m.now = target
			m.mu.Unlock()
			return
		}
		t := m.tasks[0]
		m.tasks = m.tasks[1:]
		t.state = 1
		if t.due > m.now {
			m.now = t.due
		}
		m.mu.Unlock()
		t.fn()
	}
}

// Pending returns the number of tasks not yet run or cancelled.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tasks)
}
