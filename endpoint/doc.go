// Package endpoint holds the declarative endpoint definitions the query
// cache engine executes: queries that fetch data and mutations that alter
// it, each described by how to build its transport request, how to
// transform its response, which entity tags it provides or invalidates,
// and optional lifecycle hooks.
//
// Definitions are registered into a Registry, which enforces the
// structural invariants at registration time: queries cannot declare
// Invalidates, mutations cannot declare Provides, and exactly one of
// BuildRequest and Execute must be set. The registry also carries the
// closed set of tag types the endpoints may reference.
//
//	reg := endpoint.NewRegistry("User", "Post")
//	err := reg.Register(
//		endpoint.Query("getUser", func(arg any) (any, error) {
//			return fmt.Sprintf("/users/%v", arg), nil
//		}).WithProvides(endpoint.TagsFrom(func(result any, _ *cache.Error, arg any) []cache.Tag {
//			return []cache.Tag{cache.NewTagID("User", fmt.Sprint(arg))}
//		})),
//		endpoint.Mutation("updateUser", func(arg any) (any, error) {
//			return arg, nil
//		}).WithInvalidates(endpoint.Tags("User")),
//	)
package endpoint
