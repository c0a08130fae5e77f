package querycache

import (
	"context"
	"reflect"
	"testing"

	"github.com/goliatone/go-query-cache/cache"
)

func TestJSONApplierApply(t *testing.T) {
	applier := NewJSONApplier()

	tests := []struct {
		name    string
		data    any
		patches []cache.Patch
		want    any
	}{
		{
			name:    "replace field",
			data:    map[string]any{"name": "Ada", "age": float64(36)},
			patches: []cache.Patch{cache.Replace("name", "Grace")},
			want:    map[string]any{"name": "Grace", "age": float64(36)},
		},
		{
			name:    "add field",
			data:    map[string]any{"name": "Ada"},
			patches: []cache.Patch{cache.Add("role", "admin")},
			want:    map[string]any{"name": "Ada", "role": "admin"},
		},
		{
			name:    "remove field",
			data:    map[string]any{"name": "Ada", "role": "admin"},
			patches: []cache.Patch{cache.Remove("role")},
			want:    map[string]any{"name": "Ada"},
		},
		{
			name:    "nested path",
			data:    map[string]any{"user": map[string]any{"name": "Ada"}},
			patches: []cache.Patch{cache.Replace("user.name", "Grace")},
			want:    map[string]any{"user": map[string]any{"name": "Grace"}},
		},
		{
			name:    "array element",
			data:    map[string]any{"tags": []any{"a", "b"}},
			patches: []cache.Patch{cache.Replace("tags.1", "c")},
			want:    map[string]any{"tags": []any{"a", "c"}},
		},
		{
			name:    "whole value replace",
			data:    map[string]any{"name": "Ada"},
			patches: []cache.Patch{cache.Replace("", map[string]any{"name": "Grace"})},
			want:    map[string]any{"name": "Grace"},
		},
		{
			name:    "whole value remove",
			data:    map[string]any{"name": "Ada"},
			patches: []cache.Patch{cache.Remove("")},
			want:    nil,
		},
		{
			name: "patches apply in order",
			data: map[string]any{"n": float64(1)},
			patches: []cache.Patch{
				cache.Replace("n", float64(2)),
				cache.Replace("n", float64(3)),
			},
			want: map[string]any{"n": float64(3)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := applier.Apply(tt.data, tt.patches)
			if err != nil {
				t.Fatalf("Apply() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Apply() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestJSONApplierRejectsUnknownOp(t *testing.T) {
	applier := NewJSONApplier()
	if _, err := applier.Apply(map[string]any{}, []cache.Patch{{Op: "merge", Path: "x"}}); err == nil {
		t.Error("Apply() = nil error for unknown op")
	}
}

func userFixtureClient(t *testing.T) *Client {
	t.Helper()
	st := newScriptedTransport()
	st.setHandler(func(_ context.Context, _ any) (cache.Result, error) {
		return cache.Result{Data: map[string]any{
			"name": "Ada",
			"age":  float64(36),
		}}, nil
	})
	c := newTestClient(t, st)
	if _, err := c.RunQuery(context.Background(), "getUser", "1", QueryOptions{}); err != nil {
		t.Fatalf("RunQuery() error = %v", err)
	}
	return c
}

func TestPatchQueryResult(t *testing.T) {
	c := userFixtureClient(t)

	inverse, err := c.PatchQueryResult("getUser", "1", []cache.Patch{
		cache.Replace("name", "Grace"),
		cache.Add("role", "admin"),
	})
	if err != nil {
		t.Fatalf("PatchQueryResult() error = %v", err)
	}

	entry, _ := c.QueryState("getUser", "1")
	got := entry.Data.(map[string]any)
	if got["name"] != "Grace" || got["role"] != "admin" {
		t.Errorf("patched data = %v", got)
	}
	// The entry's lifecycle state is untouched by patching.
	if entry.Status != cache.StatusFulfilled {
		t.Errorf("status = %v, want fulfilled", entry.Status)
	}

	// Applying the inverse set rolls the edit back.
	if _, err := c.PatchQueryResult("getUser", "1", inverse); err != nil {
		t.Fatalf("rollback error = %v", err)
	}
	entry, _ = c.QueryState("getUser", "1")
	want := map[string]any{"name": "Ada", "age": float64(36)}
	if !reflect.DeepEqual(entry.Data, want) {
		t.Errorf("rolled-back data = %v, want %v", entry.Data, want)
	}
}

func TestPatchQueryResultWholeValue(t *testing.T) {
	c := userFixtureClient(t)

	inverse, err := c.PatchQueryResult("getUser", "1", []cache.Patch{
		cache.Replace("", map[string]any{"name": "Grace"}),
	})
	if err != nil {
		t.Fatalf("PatchQueryResult() error = %v", err)
	}

	if _, err := c.PatchQueryResult("getUser", "1", inverse); err != nil {
		t.Fatalf("rollback error = %v", err)
	}
	entry, _ := c.QueryState("getUser", "1")
	want := map[string]any{"name": "Ada", "age": float64(36)}
	if !reflect.DeepEqual(entry.Data, want) {
		t.Errorf("rolled-back data = %v, want %v", entry.Data, want)
	}
}

func TestPatchQueryResultMissingEntryIsNoOp(t *testing.T) {
	c := newTestClient(t, newScriptedTransport())

	inverse, err := c.PatchQueryResult("getUser", "absent", []cache.Patch{
		cache.Replace("name", "x"),
	})
	if err != nil {
		t.Fatalf("PatchQueryResult() error = %v", err)
	}
	if inverse != nil {
		t.Errorf("inverse = %v, want nil for missing entry", inverse)
	}
}

func TestPatchQueryResultEmptyPatchSet(t *testing.T) {
	c := userFixtureClient(t)

	if _, err := c.PatchQueryResult("getUser", "1", nil); err != nil {
		t.Fatalf("PatchQueryResult() error = %v", err)
	}
	entry, _ := c.QueryState("getUser", "1")
	if entry.Data.(map[string]any)["name"] != "Ada" {
		t.Errorf("data changed by empty patch set: %v", entry.Data)
	}
}

func TestUpdateQueryResult(t *testing.T) {
	c := userFixtureClient(t)

	res, err := c.UpdateQueryResult("getUser", "1", func(draft any) any {
		m := draft.(map[string]any)
		m["name"] = "Grace"
		return m
	})
	if err != nil {
		t.Fatalf("UpdateQueryResult() error = %v", err)
	}

	entry, _ := c.QueryState("getUser", "1")
	if entry.Data.(map[string]any)["name"] != "Grace" {
		t.Errorf("updated data = %v", entry.Data)
	}
	if len(res.Forward) == 0 || len(res.Inverse) == 0 {
		t.Fatalf("patch sets = %+v, want forward and inverse", res)
	}

	// The inverse set restores the pre-recipe value.
	if _, err := c.PatchQueryResult("getUser", "1", res.Inverse); err != nil {
		t.Fatalf("rollback error = %v", err)
	}
	entry, _ = c.QueryState("getUser", "1")
	if entry.Data.(map[string]any)["name"] != "Ada" {
		t.Errorf("rolled-back data = %v", entry.Data)
	}
}

func TestUpdateQueryResultDraftDoesNotAliasCache(t *testing.T) {
	c := userFixtureClient(t)

	before, _ := c.QueryState("getUser", "1")
	original := before.Data.(map[string]any)

	c.UpdateQueryResult("getUser", "1", func(draft any) any {
		draft.(map[string]any)["name"] = "Mallory"
		return draft
	})

	// The recipe edits a copy; the pre-update value stays intact, which
	// is what makes the inverse patch set trustworthy.
	if original["name"] != "Ada" {
		t.Errorf("recipe mutated the cached value: %v", original)
	}
}

func TestUpdateQueryResultMissingEntryIsNoOp(t *testing.T) {
	c := newTestClient(t, newScriptedTransport())

	called := false
	res, err := c.UpdateQueryResult("getUser", "absent", func(draft any) any {
		called = true
		return draft
	})
	if err != nil {
		t.Fatalf("UpdateQueryResult() error = %v", err)
	}
	if called {
		t.Error("recipe ran for a missing entry")
	}
	if len(res.Forward) != 0 || len(res.Inverse) != 0 {
		t.Errorf("patch sets = %+v, want empty", res)
	}
}

func TestInversePatchesAreOrderAware(t *testing.T) {
	c := userFixtureClient(t)

	// Two sequential edits to the same path: the inverse must restore the
	// original value, not the intermediate one.
	inverse, err := c.PatchQueryResult("getUser", "1", []cache.Patch{
		cache.Replace("name", "Grace"),
		cache.Replace("name", "Mallory"),
	})
	if err != nil {
		t.Fatalf("PatchQueryResult() error = %v", err)
	}

	if _, err := c.PatchQueryResult("getUser", "1", inverse); err != nil {
		t.Fatalf("rollback error = %v", err)
	}
	entry, _ := c.QueryState("getUser", "1")
	if entry.Data.(map[string]any)["name"] != "Ada" {
		t.Errorf("rolled-back name = %v, want Ada", entry.Data.(map[string]any)["name"])
	}
}
