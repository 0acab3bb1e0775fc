package memory

import (
	"context"
	"sync"
)

// Directory is an in-memory badge→employee map standing in for the external
// HR directory in tests and dev.
type Directory struct {
	mu     sync.RWMutex
	badges map[string]string
}

func NewDirectory(badges map[string]string) *Directory {
	m := make(map[string]string, len(badges))
	for b, e := range badges {
		m[b] = e
	}
	return &Directory{badges: m}
}

func (d *Directory) ResolveBadge(_ context.Context, badge string) (string, bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	emp, ok := d.badges[badge]
	return emp, ok, nil
}

func (d *Directory) RemapBadge(_ context.Context, badge, employeeID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.badges[badge] = employeeID
	return nil
}
