package task

import (
	"fmt"
	"sync"
)

// List holds a workspace's tasks in creation order. Tasks are never removed;
// they only change status in place. List is safe for concurrent use.
type List struct {
	mu    sync.RWMutex
	order []string
	tasks map[string]*Task
}

// NewList returns a list seeded with tasks, typically from a checkpoint.
func NewList(tasks ...Task) *List {
	l := &List{tasks: make(map[string]*Task, len(tasks))}
	for _, t := range tasks {
		l.order = append(l.order, t.ID)
		l.tasks[t.ID] = &t
	}
	return l
}

// Add appends t.
func (l *List) Add(t Task) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.addLocked(t)
}

func (l *List) addLocked(t Task) error {
	if _, ok := l.tasks[t.ID]; ok {
		return fmt.Errorf("task %s already exists", t.ID)
	}
	l.order = append(l.order, t.ID)
	l.tasks[t.ID] = &t
	return nil
}

// AddIfNoneRunning appends t only when no task with the same origin is
// running. The check and the insert happen under one lock.
func (l *List) AddIfNoneRunning(t Task) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, existing := range l.tasks {
		if existing.Origin == t.Origin && existing.Status == StatusRunning {
			return false, nil
		}
	}
	if err := l.addLocked(t); err != nil {
		return false, err
	}
	return true, nil
}

// Merge folds tasks from another copy of the list into l. Unknown tasks are
// appended. Known tasks are replaced only when the other copy changed them
// later.
func (l *List) Merge(tasks []Task) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, t := range tasks {
		cur, ok := l.tasks[t.ID]
		if !ok {
			_ = l.addLocked(t)
			continue
		}
		if t.UpdatedAt.After(cur.UpdatedAt) {
			*cur = t
		}
	}
}

// Get returns a copy of the task with the given id.
func (l *List) Get(id string) (Task, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	t, ok := l.tasks[id]
	if !ok {
		return Task{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return *t, nil
}

// Update runs fn against a copy of the task and stores the copy only if fn
// returns nil.
func (l *List) Update(id string, fn func(*Task) error) (Task, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	t, ok := l.tasks[id]
	if !ok {
		return Task{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	next := *t
	if err := fn(&next); err != nil {
		return *t, err
	}
	*t = next
	return next, nil
}

// All returns copies of every task in creation order.
func (l *List) All() []Task {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Task, 0, len(l.order))
	for _, id := range l.order {
		out = append(out, *l.tasks[id])
	}
	return out
}

// Running returns the running tasks with the given origin.
func (l *List) Running(origin Origin) []Task {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []Task
	for _, id := range l.order {
		if t := l.tasks[id]; t.Origin == origin && t.Status == StatusRunning {
			out = append(out, *t)
		}
	}
	return out
}

func (l *List) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.order)
}
