package querycache

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/goliatone/go-query-cache/cache"
	"github.com/goliatone/go-query-cache/endpoint"
)

// refetchConcurrency bounds the invalidation fan-out.
const refetchConcurrency = 8

// tagIndex maps provided entity tags to the cache keys whose latest
// fulfillment produced them. Forward lookup is type -> id -> keys; the
// reverse list per key lets a new fulfillment replace the previous
// associations instead of accumulating them.
type tagIndex struct {
	mu      sync.RWMutex
	forward map[string]map[string]map[string]struct{}
	reverse map[string][]cache.Tag
}

func newTagIndex() *tagIndex {
	return &tagIndex{
		forward: make(map[string]map[string]map[string]struct{}),
		reverse: make(map[string][]cache.Tag),
	}
}

// replace swaps the provided-tag set of a key for the given tags.
func (i *tagIndex) replace(key string, tags []cache.Tag) {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.removeLocked(key)
	if len(tags) == 0 {
		return
	}

	for _, t := range tags {
		byID, ok := i.forward[t.Type]
		if !ok {
			byID = make(map[string]map[string]struct{})
			i.forward[t.Type] = byID
		}
		keys, ok := byID[t.ID]
		if !ok {
			keys = make(map[string]struct{})
			byID[t.ID] = keys
		}
		keys[key] = struct{}{}
	}
	i.reverse[key] = tags
}

// remove drops every association of a key.
func (i *tagIndex) remove(key string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.removeLocked(key)
}

func (i *tagIndex) removeLocked(key string) {
	for _, t := range i.reverse[key] {
		if byID, ok := i.forward[t.Type]; ok {
			if keys, ok := byID[t.ID]; ok {
				delete(keys, key)
				if len(keys) == 0 {
					delete(byID, t.ID)
				}
			}
			if len(byID) == 0 {
				delete(i.forward, t.Type)
			}
		}
	}
	delete(i.reverse, key)
}

// keysFor returns the union of cache keys whose provided tags intersect
// the invalidation targets. An ID-less target hits every ID of its type;
// an ID-carrying target hits that ID plus ID-less provided tags of the
// same type.
func (i *tagIndex) keysFor(targets []cache.Tag) []string {
	i.mu.RLock()
	defer i.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, target := range targets {
		byID, ok := i.forward[target.Type]
		if !ok {
			continue
		}
		if target.ID == "" {
			for _, keys := range byID {
				for k := range keys {
					seen[k] = struct{}{}
				}
			}
			continue
		}
		for k := range byID[target.ID] {
			seen[k] = struct{}{}
		}
		for k := range byID[""] {
			seen[k] = struct{}{}
		}
	}

	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	return out
}

// resolveTags evaluates a tag descriptor against an execution outcome.
// Tags referencing an unregistered type are reported through the logger
// and kept; the registry's closed set is a guard rail, not a gate.
func (c *Client) resolveTags(desc endpoint.TagDescriptor, result any, qerr *cache.Error, arg any) []cache.Tag {
	var tags []cache.Tag
	if desc.Fn != nil {
		tags = desc.Fn(result, qerr, arg)
	} else if len(desc.Tags) > 0 {
		// The pipeline appends context tags and compacts in place, so a
		// caller-built static slice must never be handed out directly.
		tags = append([]cache.Tag(nil), desc.Tags...)
	}
	if len(tags) == 0 {
		return nil
	}

	for _, t := range tags {
		if !c.registry.HasTagType(t.Type) {
			c.log.Warn("tag type not registered", zap.String("type", t.Type), zap.String("tag", t.String()))
		}
	}
	return tags
}

// invalidate schedules a forced refetch of every cached query whose
// provided tags intersect the targets, regardless of subscriber state.
// The fan-out runs in the background; mutation callers do not wait on it.
func (c *Client) invalidate(targets []cache.Tag) {
	keys := c.tags.keysFor(targets)
	if len(keys) == 0 {
		return
	}

	c.background.Add(1)
	go func() {
		defer c.background.Done()

		g := new(errgroup.Group)
		g.SetLimit(refetchConcurrency)
		for _, key := range keys {
			rt, ok := c.runtimes.Load(key)
			if !ok {
				continue
			}
			g.Go(func() error {
				if _, err := c.RunQuery(context.Background(), rt.endpoint, rt.args, QueryOptions{Force: true}); err != nil {
					c.logRefetchError(key, err)
				}
				return nil
			})
		}
		_ = g.Wait()
	}()
}
