package querycache

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/goliatone/go-query-cache/cache"
)

// Applier applies structural patches to cached data, producing a new
// value. The engine never edits cached data in place.
type Applier interface {
	Apply(data any, patches []cache.Patch) (any, error)
}

// Differ is the structural-diff collaborator behind UpdateQueryResult:
// given the values before and after a mutation recipe, it produces the
// forward patch set and the inverse set that undoes it. The engine only
// passes values through; diffing strategy is entirely the collaborator's.
type Differ interface {
	Diff(before, after any) (forward, inverse []cache.Patch, err error)
}

// PatchResult carries the patch sets produced by UpdateQueryResult. The
// inverse set rolls the update back, which is how optimistic updates are
// undone when their mutation fails.
type PatchResult struct {
	Forward []cache.Patch
	Inverse []cache.Patch
}

// jsonApplier edits cached data through its JSON form using dot-notation
// paths.
type jsonApplier struct{}

// NewJSONApplier returns the default patch applier. Data is round-tripped
// through JSON, so applying a patch to a struct yields generic maps and
// slices.
func NewJSONApplier() Applier {
	return jsonApplier{}
}

// Apply applies the patches in order and returns the edited value.
func (jsonApplier) Apply(data any, patches []cache.Patch) (any, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("querycache: marshal data for patching: %w", err)
	}

	for _, p := range patches {
		if p.Path == "" {
			switch p.Op {
			case cache.PatchReplace, cache.PatchAdd:
				if raw, err = json.Marshal(p.Value); err != nil {
					return nil, fmt.Errorf("querycache: marshal patch value: %w", err)
				}
			case cache.PatchRemove:
				raw = []byte("null")
			default:
				return nil, fmt.Errorf("querycache: unknown patch op %q", p.Op)
			}
			continue
		}

		switch p.Op {
		case cache.PatchReplace, cache.PatchAdd:
			if raw, err = sjson.SetBytes(raw, p.Path, p.Value); err != nil {
				return nil, fmt.Errorf("querycache: apply %s at %q: %w", p.Op, p.Path, err)
			}
		case cache.PatchRemove:
			if raw, err = sjson.DeleteBytes(raw, p.Path); err != nil {
				return nil, fmt.Errorf("querycache: apply remove at %q: %w", p.Path, err)
			}
		default:
			return nil, fmt.Errorf("querycache: unknown patch op %q", p.Op)
		}
	}

	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("querycache: unmarshal patched data: %w", err)
	}
	return out, nil
}

// replaceDiffer is the default Differ: a whole-value replace in both
// directions. Applications needing fine-grained patches install their own
// Differ through WithDiffer.
type replaceDiffer struct{}

// NewReplaceDiffer returns the default whole-value differ.
func NewReplaceDiffer() Differ {
	return replaceDiffer{}
}

func (replaceDiffer) Diff(before, after any) ([]cache.Patch, []cache.Patch, error) {
	return []cache.Patch{cache.Replace("", after)},
		[]cache.Patch{cache.Replace("", before)},
		nil
}

// PatchQueryResult applies externally provided patches to a cached
// entry's data and returns the inverse patch set that undoes them. When
// no entry exists for the key, it is a no-op returning an empty set.
func (c *Client) PatchQueryResult(name string, arg any, patches []cache.Patch) ([]cache.Patch, error) {
	if c.closed.Load() {
		return nil, cache.ErrClientClosed
	}
	if len(patches) == 0 {
		return nil, nil
	}

	key := c.keys.SerializeKey(name, arg)
	entry, ok := c.store.Entry(key)
	if !ok {
		return nil, nil
	}

	inverse, err := c.inversePatches(entry.Data, patches)
	if err != nil {
		return nil, err
	}

	next, err := c.applier.Apply(entry.Data, patches)
	if err != nil {
		return nil, err
	}

	c.store.Dispatch(cache.QueryPatched{Key: key, Data: next})
	return inverse, nil
}

// UpdateQueryResult runs a mutation recipe against a deep copy of the
// cached data, diffs the outcome through the Differ collaborator, and
// stores the updated value. When no entry exists for the key, it is a
// no-op returning empty patch sets.
func (c *Client) UpdateQueryResult(name string, arg any, recipe func(draft any) any) (PatchResult, error) {
	if c.closed.Load() {
		return PatchResult{}, cache.ErrClientClosed
	}

	key := c.keys.SerializeKey(name, arg)
	entry, ok := c.store.Entry(key)
	if !ok {
		return PatchResult{}, nil
	}

	before, err := deepCopy(entry.Data)
	if err != nil {
		return PatchResult{}, err
	}
	draft, err := deepCopy(entry.Data)
	if err != nil {
		return PatchResult{}, err
	}

	after := recipe(draft)
	forward, inverse, err := c.differ.Diff(before, after)
	if err != nil {
		return PatchResult{}, err
	}

	c.store.Dispatch(cache.QueryPatched{Key: key, Data: after})
	return PatchResult{Forward: forward, Inverse: inverse}, nil
}

// inversePatches computes the undo set for patches against the current
// data, in reverse application order.
func (c *Client) inversePatches(data any, patches []cache.Patch) ([]cache.Patch, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("querycache: marshal data for inverse: %w", err)
	}

	inverse := make([]cache.Patch, 0, len(patches))
	for _, p := range patches {
		if p.Path == "" {
			var whole any
			if err := json.Unmarshal(raw, &whole); err != nil {
				return nil, fmt.Errorf("querycache: unmarshal data for inverse: %w", err)
			}
			inverse = append(inverse, cache.Replace("", whole))
			continue
		}

		prev := gjson.GetBytes(raw, p.Path)
		switch {
		case prev.Exists():
			inverse = append(inverse, cache.Replace(p.Path, prev.Value()))
		case p.Op == cache.PatchAdd || p.Op == cache.PatchReplace:
			inverse = append(inverse, cache.Remove(p.Path))
		}

		// Track the running state so later inverses see earlier edits.
		if raw, err = applyRaw(raw, p); err != nil {
			return nil, err
		}
	}

	// Undo in reverse application order.
	for i, j := 0, len(inverse)-1; i < j; i, j = i+1, j-1 {
		inverse[i], inverse[j] = inverse[j], inverse[i]
	}
	return inverse, nil
}

func applyRaw(raw []byte, p cache.Patch) ([]byte, error) {
	var err error
	switch p.Op {
	case cache.PatchReplace, cache.PatchAdd:
		raw, err = sjson.SetBytes(raw, p.Path, p.Value)
	case cache.PatchRemove:
		raw, err = sjson.DeleteBytes(raw, p.Path)
	default:
		return nil, fmt.Errorf("querycache: unknown patch op %q", p.Op)
	}
	if err != nil {
		return nil, fmt.Errorf("querycache: apply %s at %q: %w", p.Op, p.Path, err)
	}
	return raw, nil
}

// deepCopy snapshots a value through msgpack so recipes can never alias
// cached data. Structs come back as generic maps, mirroring the JSON
// applier's behavior.
func deepCopy(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	raw, err := msgpack.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("querycache: snapshot data: %w", err)
	}
	var out any
	if err := msgpack.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("querycache: restore snapshot: %w", err)
	}
	return out, nil
}
