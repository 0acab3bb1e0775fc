package store

import "context"

// Directory resolves employee badges. Employee records are owned by an
// external HR directory; the engine only needs the badge→employee lookup
// plus the remap hook used when badges are reissued.
type Directory interface {
	ResolveBadge(ctx context.Context, badge string) (employeeID string, ok bool, err error)
	RemapBadge(ctx context.Context, badge, employeeID string) error
}
