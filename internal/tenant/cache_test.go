package tenant

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakeFetcher struct {
	calls    atomic.Int32
	profiles map[string]Profile
	err      error
}

func (f *fakeFetcher) Fetch(ctx context.Context, calleeNumber string) (Profile, error) {
	f.calls.Add(1)
	if f.err != nil {
		return Profile{}, f.err
	}
	p, ok := f.profiles[calleeNumber]
	if !ok {
		return Profile{}, errors.New("not found")
	}
	return p, nil
}

func TestCacheMissThenHit(t *testing.T) {
	f := &fakeFetcher{profiles: map[string]Profile{
		"+390612345678": {TenantID: "hotel-1", Name: "Hotel Roma"},
	}}
	c := NewCache(f, nil, time.Minute)

	for i := 0; i < 3; i++ {
		p, err := c.Get(context.Background(), "+390612345678")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if p.TenantID != "hotel-1" {
			t.Errorf("tenant = %s, want hotel-1", p.TenantID)
		}
	}

	if f.calls.Load() != 1 {
		t.Errorf("expected 1 fetch for 3 reads, got %d", f.calls.Load())
	}
}

func TestCacheExpiredEntryRefetched(t *testing.T) {
	f := &fakeFetcher{profiles: map[string]Profile{
		"+39061": {TenantID: "hotel-1"},
	}}
	c := NewCache(f, nil, time.Nanosecond)

	c.Get(context.Background(), "+39061")
	time.Sleep(time.Millisecond)
	c.Get(context.Background(), "+39061")

	if f.calls.Load() != 2 {
		t.Errorf("expected expired entry to refetch, got %d fetches", f.calls.Load())
	}
}

func TestCacheServesStaleOnFetchFailure(t *testing.T) {
	f := &fakeFetcher{profiles: map[string]Profile{
		"+39061": {TenantID: "hotel-1"},
	}}
	c := NewCache(f, nil, time.Nanosecond)

	if _, err := c.Get(context.Background(), "+39061"); err != nil {
		t.Fatalf("warm-up Get() error = %v", err)
	}

	time.Sleep(time.Millisecond)
	f.err = errors.New("config service down")

	p, err := c.Get(context.Background(), "+39061")
	if err != nil {
		t.Fatalf("expected stale entry to be served, got %v", err)
	}
	if p.TenantID != "hotel-1" {
		t.Errorf("tenant = %s, want hotel-1", p.TenantID)
	}
}

func TestCacheFetchFailureNoEntry(t *testing.T) {
	f := &fakeFetcher{err: errors.New("down")}
	c := NewCache(f, nil, time.Minute)

	if _, err := c.Get(context.Background(), "+39061"); err == nil {
		t.Fatal("expected error when fetch fails with no cached entry")
	}
}

func TestCacheConcurrentReads(t *testing.T) {
	f := &fakeFetcher{profiles: map[string]Profile{
		"+39061": {TenantID: "hotel-1"},
	}}
	c := NewCache(f, nil, time.Minute)
	c.Get(context.Background(), "+39061")

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := c.Get(context.Background(), "+39061")
			if err != nil || p.TenantID != "hotel-1" {
				t.Errorf("concurrent Get() = %+v, %v", p, err)
			}
		}()
	}
	wg.Wait()
}
