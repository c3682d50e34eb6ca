package history

import (
	"context"
	"fmt"
	"testing"
)

func TestInMemoryRecentNewestFirst(t *testing.T) {
	s := NewInMemoryStore(0)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if err := s.Save(ctx, Record{Voice: fmt.Sprintf("v%d", i)}); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
	}

	got, err := s.Recent(ctx, 3)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("Recent(3) returned %d records, want 3", len(got))
	}
	if got[0].Voice != "v4" || got[2].Voice != "v2" {
		t.Fatalf("Recent(3) order = [%s %s %s], want newest first", got[0].Voice, got[1].Voice, got[2].Voice)
	}
	if got[0].ID == "" || got[0].CreatedAt.IsZero() {
		t.Fatalf("Save() did not assign ID/CreatedAt: %+v", got[0])
	}
}

func TestInMemoryBounded(t *testing.T) {
	s := NewInMemoryStore(3)
	ctx := context.Background()
	for i := 0; i < 10; i++ {
		if err := s.Save(ctx, Record{Voice: fmt.Sprintf("v%d", i)}); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
	}
	got, err := s.Recent(ctx, 0)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("store kept %d records, want capacity 3", len(got))
	}
	if got[0].Voice != "v9" {
		t.Fatalf("newest record = %s, want v9", got[0].Voice)
	}
}
