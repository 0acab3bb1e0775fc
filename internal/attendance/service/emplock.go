package service

import "sync"

// employeeLocks is the engine's only serialization point: one mutex per
// employee_id, created lazily and never removed (employees are archived by
// an external directory event, not by the engine). Admits for different
// employees proceed fully in parallel.
type employeeLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newEmployeeLocks() *employeeLocks {
	return &employeeLocks{locks: make(map[string]*sync.Mutex)}
}

func (l *employeeLocks) get(employeeID string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.locks[employeeID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[employeeID] = m
	}
	return m
}
