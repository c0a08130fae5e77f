package querycache

import (
	"context"

	"github.com/goliatone/go-query-cache/cache"
)

type providedTagsContextKey struct{}

// WithProvidedTags attaches additional provided tags to the context for a
// query dispatch. The tags are merged into the endpoint's own provides
// descriptor when the query fulfills, so callers can register ad-hoc
// invalidation targets without changing the endpoint definition.
func WithProvidedTags(ctx context.Context, tags ...cache.Tag) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if len(tags) == 0 {
		return ctx
	}

	combined := dedupeTags(append(providedTagsFromContext(ctx), tags...))
	if len(combined) == 0 {
		return ctx
	}

	return context.WithValue(ctx, providedTagsContextKey{}, combined)
}

func providedTagsFromContext(ctx context.Context) []cache.Tag {
	if ctx == nil {
		return nil
	}
	if tags, ok := ctx.Value(providedTagsContextKey{}).([]cache.Tag); ok {
		return append([]cache.Tag(nil), tags...)
	}
	return nil
}

// dedupeTags returns the tags with duplicates dropped, preserving order.
// It always allocates: the input may share backing storage with an
// endpoint definition's static descriptor, which must stay untouched.
func dedupeTags(tags []cache.Tag) []cache.Tag {
	if len(tags) < 2 {
		return tags
	}

	seen := make(map[cache.Tag]struct{}, len(tags))
	out := make([]cache.Tag, 0, len(tags))
	for _, t := range tags {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
