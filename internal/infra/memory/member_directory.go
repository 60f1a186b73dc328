package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// MemberLoader fetches display names from the portal's membership
// backend (the directory only consumes names for view assembly).
type MemberLoader interface {
	LoadMembers(ctx context.Context, memberIDs []string) (map[string]string, error)
}

// MemberDirectory caches resolved names with TTL so view assembly does
// not hammer the membership backend on every poll.
type MemberDirectory struct {
	loader MemberLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group

	mu    sync.RWMutex
	cache map[string]cachedName
}

type cachedName struct {
	name      string
	expiresAt time.Time
}

func NewMemberDirectory(loader MemberLoader, ttl time.Duration) *MemberDirectory {
	return &MemberDirectory{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		cache:  make(map[string]cachedName),
	}
}

func (d *MemberDirectory) Resolve(ctx context.Context, memberIDs []string) (map[string]string, error) {
	now := d.clock()
	out := make(map[string]string, len(memberIDs))
	var misses []string

	d.mu.RLock()
	for _, id := range memberIDs {
		if entry, ok := d.cache[id]; ok && entry.expiresAt.After(now) {
			out[id] = entry.name
		} else {
			misses = append(misses, id)
		}
	}
	d.mu.RUnlock()

	if len(misses) == 0 {
		return out, nil
	}

	sort.Strings(misses)
	result, err, _ := d.sf.Do(strings.Join(misses, ","), func() (interface{}, error) {
		loaded, err := d.loader.LoadMembers(ctx, misses)
		if err != nil {
			return nil, err
		}
		expires := d.clock().Add(d.ttl)
		d.mu.Lock()
		for id, name := range loaded {
			d.cache[id] = cachedName{name: name, expiresAt: expires}
		}
		d.mu.Unlock()
		return loaded, nil
	})
	if err != nil {
		return nil, err
	}
	for id, name := range result.(map[string]string) {
		out[id] = name
	}
	return out, nil
}

// StaticMemberLoader serves names from a fixed map; IDs without an entry
// resolve to themselves (useful for tests/demos).
type StaticMemberLoader struct {
	names map[string]string
}

func NewStaticMemberLoader(names map[string]string) *StaticMemberLoader {
	if names == nil {
		names = map[string]string{}
	}
	return &StaticMemberLoader{names: names}
}

func (l *StaticMemberLoader) LoadMembers(_ context.Context, memberIDs []string) (map[string]string, error) {
	out := make(map[string]string, len(memberIDs))
	for _, id := range memberIDs {
		if name, ok := l.names[id]; ok {
			out[id] = name
		} else {
			out[id] = id
		}
	}
	return out, nil
}
