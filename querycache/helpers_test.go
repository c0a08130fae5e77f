package querycache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-query-cache/cache"
	"github.com/goliatone/go-query-cache/endpoint"
)

// fakeRequest is what the test endpoints hand to the scripted transport.
type fakeRequest struct {
	Op  string
	Arg any
}

// scriptedTransport records every call per op+argument and delegates to a
// swappable handler.
type scriptedTransport struct {
	mu      sync.Mutex
	calls   map[string]int
	handler func(ctx context.Context, req any) (cache.Result, error)
}

func newScriptedTransport() *scriptedTransport {
	st := &scriptedTransport{calls: make(map[string]int)}
	st.handler = func(_ context.Context, req any) (cache.Result, error) {
		r := req.(fakeRequest)
		return cache.Result{Data: fmt.Sprintf("%s(%v)", r.Op, r.Arg)}, nil
	}
	return st
}

func (st *scriptedTransport) do(ctx context.Context, req any) (cache.Result, error) {
	r := req.(fakeRequest)
	st.mu.Lock()
	st.calls[r.Op+":"+fmt.Sprint(r.Arg)]++
	h := st.handler
	st.mu.Unlock()
	return h(ctx, req)
}

func (st *scriptedTransport) setHandler(h func(ctx context.Context, req any) (cache.Result, error)) {
	st.mu.Lock()
	st.handler = h
	st.mu.Unlock()
}

// count returns how many calls hit one op+argument pair.
func (st *scriptedTransport) count(op string, arg any) int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.calls[op+":"+fmt.Sprint(arg)]
}

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2023, 11, 14, 12, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.t = f.t.Add(d)
	f.mu.Unlock()
}

func buildFor(op string) func(arg any) (any, error) {
	return func(arg any) (any, error) {
		return fakeRequest{Op: op, Arg: arg}, nil
	}
}

func userTag(_ any, _ *cache.Error, arg any) []cache.Tag {
	return []cache.Tag{cache.NewTagID("User", fmt.Sprint(arg))}
}

// testRegistry declares the shared endpoints: a per-user query, a
// listing query with an ID-less tag, and mutations invalidating one user
// or the whole type.
func testRegistry() *endpoint.Registry {
	return endpoint.NewRegistry("User", "Post").MustRegister(
		endpoint.Query("getUser", buildFor("getUser")).
			WithProvides(endpoint.TagsFrom(userTag)),
		endpoint.Query("listUsers", buildFor("listUsers")).
			WithProvides(endpoint.Tags("User")),
		endpoint.Mutation("updateUser", buildFor("updateUser")).
			WithInvalidates(endpoint.TagsFrom(userTag)),
		endpoint.Mutation("clearUsers", buildFor("clearUsers")).
			WithInvalidates(endpoint.Tags("User")),
	)
}

func newTestClient(t *testing.T, st *scriptedTransport, opts ...Option) *Client {
	t.Helper()
	return newTestClientWith(t, testRegistry(), st, opts...)
}

func newTestClientWith(t *testing.T, reg *endpoint.Registry, st *scriptedTransport, opts ...Option) *Client {
	t.Helper()
	c, err := New(reg, st.do, opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}
