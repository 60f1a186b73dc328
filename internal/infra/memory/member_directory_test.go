package memory

import (
	"context"
	"testing"
	"time"
)

type countingLoader struct {
	MemberLoader
	calls int
}

func (l *countingLoader) LoadMembers(ctx context.Context, memberIDs []string) (map[string]string, error) {
	l.calls++
	return l.MemberLoader.LoadMembers(ctx, memberIDs)
}

func TestMemberDirectoryCaches(t *testing.T) {
	loader := &countingLoader{
		MemberLoader: NewStaticMemberLoader(map[string]string{"u1": "Alice", "u2": "Bob"}),
	}
	directory := NewMemberDirectory(loader, time.Minute)

	names, err := directory.Resolve(context.Background(), []string{"u1", "u2"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if names["u1"] != "Alice" || names["u2"] != "Bob" {
		t.Fatalf("unexpected names %+v", names)
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader called once, got %d", loader.calls)
	}

	if _, err := directory.Resolve(context.Background(), []string{"u1", "u2"}); err != nil {
		t.Fatalf("resolve 2: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls %d", loader.calls)
	}
}

func TestUnknownMembersFallBackToID(t *testing.T) {
	directory := NewMemberDirectory(NewStaticMemberLoader(nil), time.Minute)
	names, err := directory.Resolve(context.Background(), []string{"ghost"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if names["ghost"] != "ghost" {
		t.Fatalf("expected fallback to raw ID, got %+v", names)
	}
}
