package querycache

import (
	"context"
	"testing"
	"time"

	"github.com/goliatone/go-query-cache/cache"
	"github.com/goliatone/go-query-cache/pkg/testsupport"
)

func TestShouldPrefetch(t *testing.T) {
	now := time.Date(2023, 11, 14, 12, 0, 0, 0, time.UTC)
	fulfilled := cache.Entry{Status: cache.StatusFulfilled, FulfilledAt: now.Add(-60 * time.Second)}
	fresh := cache.Entry{Status: cache.StatusFulfilled, FulfilledAt: now}
	pending := cache.Entry{Status: cache.StatusPending}

	tests := []struct {
		name  string
		entry cache.Entry
		opts  PrefetchOptions
		want  bool
	}{
		{name: "default fetches missing entry", entry: cache.Entry{}, opts: PrefetchOptions{}, want: true},
		{name: "default skips fulfilled entry", entry: fulfilled, opts: PrefetchOptions{}, want: false},
		{name: "default fetches rejected never-fulfilled entry", entry: cache.Entry{Status: cache.StatusRejected}, opts: PrefetchOptions{}, want: true},
		{name: "force fetches fulfilled entry", entry: fulfilled, opts: PrefetchOptions{Force: true}, want: true},
		{name: "force skips pending entry", entry: pending, opts: PrefetchOptions{Force: true}, want: false},
		{name: "age policy fetches missing entry", entry: cache.Entry{}, opts: IfOlderThan(30 * time.Second), want: true},
		{name: "age policy fetches entry over threshold", entry: fulfilled, opts: IfOlderThan(30 * time.Second), want: true},
		{name: "age policy fetches entry exactly at threshold", entry: fulfilled, opts: IfOlderThan(60 * time.Second), want: true},
		{name: "age policy skips fresh entry", entry: fulfilled, opts: IfOlderThan(2 * time.Minute), want: false},
		{name: "zero age threshold always fetches", entry: fresh, opts: IfOlderThan(0), want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ShouldPrefetch(tt.entry, tt.opts, now); got != tt.want {
				t.Errorf("ShouldPrefetch() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPrefetchFetchesColdKey(t *testing.T) {
	st := newScriptedTransport()
	c := newTestClient(t, st)

	c.Prefetch("getUser", "1", PrefetchOptions{})

	testsupport.Eventually(t, time.Second, func() bool {
		e, ok := c.QueryState("getUser", "1")
		return ok && e.Status == cache.StatusFulfilled
	})
}

func TestPrefetchSkipsWarmKey(t *testing.T) {
	st := newScriptedTransport()
	c := newTestClient(t, st)

	c.RunQuery(context.Background(), "getUser", "1", QueryOptions{})
	c.Prefetch("getUser", "1", PrefetchOptions{})

	testsupport.Never(t, 100*time.Millisecond, func() bool {
		return st.count("getUser", "1") > 1
	})
}

func TestPrefetchHonorsAgePolicy(t *testing.T) {
	clock := newFakeClock()
	st := newScriptedTransport()
	c := newTestClient(t, st, withClock(clock.Now))

	c.RunQuery(context.Background(), "getUser", "1", QueryOptions{})

	clock.Advance(30 * time.Second)
	c.Prefetch("getUser", "1", IfOlderThan(time.Minute))
	testsupport.Never(t, 100*time.Millisecond, func() bool {
		return st.count("getUser", "1") > 1
	})

	clock.Advance(time.Minute)
	c.Prefetch("getUser", "1", IfOlderThan(time.Minute))
	testsupport.Eventually(t, time.Second, func() bool {
		return st.count("getUser", "1") == 2
	})
}

func TestPrefetchAfterCloseIsNoOp(t *testing.T) {
	st := newScriptedTransport()
	c, err := New(testRegistry(), st.do)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	c.Close()

	c.Prefetch("getUser", "1", PrefetchOptions{})
	testsupport.Never(t, 100*time.Millisecond, func() bool {
		return st.count("getUser", "1") > 0
	})
}
