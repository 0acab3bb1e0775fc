package sqlite_test

import (
	"context"
	"testing"

	"github.com/autonex/punchd/internal/attendance/store/sqlite"
)

func TestDirectory_ResolveAndRemap(t *testing.T) {
	conn := openTestDB(t)
	dir := sqlite.NewDirectory(conn, newTestWriter(t, conn))
	ctx := context.Background()

	_, ok, err := dir.ResolveBadge(ctx, "B-1001")
	if err != nil {
		t.Fatalf("ResolveBadge: %v", err)
	}
	if ok {
		t.Fatal("expected unknown badge before mapping")
	}

	if err := dir.RemapBadge(ctx, "B-1001", "emp-alice"); err != nil {
		t.Fatalf("RemapBadge: %v", err)
	}
	emp, ok, err := dir.ResolveBadge(ctx, "B-1001")
	if err != nil || !ok {
		t.Fatalf("ResolveBadge after map: ok=%v err=%v", ok, err)
	}
	if emp != "emp-alice" {
		t.Errorf("expected emp-alice, got %q", emp)
	}

	// Reissuing the badge to another employee overwrites the mapping.
	if err := dir.RemapBadge(ctx, "B-1001", "emp-bob"); err != nil {
		t.Fatalf("RemapBadge reissue: %v", err)
	}
	emp, _, _ = dir.ResolveBadge(ctx, "B-1001")
	if emp != "emp-bob" {
		t.Errorf("expected emp-bob after reissue, got %q", emp)
	}
}
