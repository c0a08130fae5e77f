package endpoint

import (
	"context"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/goliatone/go-query-cache/cache"
)

// Kind discriminates the two endpoint variants.
type Kind string

const (
	// KindQuery marks an endpoint that fetches data and may provide tags.
	KindQuery Kind = "query"

	// KindMutation marks an endpoint that alters data and may invalidate tags.
	KindMutation Kind = "mutation"
)

// TransportFunc is handed to custom executors so they can invoke the
// underlying transport directly, including for nested calls.
type TransportFunc func(ctx context.Context, req any) (cache.Result, error)

// ExecuteFunc is a fully custom executor that replaces the
// BuildRequest+transport pipeline for an endpoint.
type ExecuteFunc func(ctx context.Context, arg any, do TransportFunc) (cache.Result, error)

// TransformFunc rewrites a successful transport result before it is
// cached. Returning an error is treated as an unexpected failure.
type TransformFunc func(data any, meta cache.Meta, arg any) (any, error)

// TagsFunc computes tags from an execution outcome. Exactly one of result
// and err is meaningful, depending on whether the execution fulfilled.
type TagsFunc func(result any, err *cache.Error, arg any) []cache.Tag

// TagDescriptor declares either a static tag list or a function of the
// execution outcome. The zero value means "no tags".
type TagDescriptor struct {
	Tags []cache.Tag
	Fn   TagsFunc
}

// Tags builds a static descriptor from tag types and full tags. Strings
// are shorthand for an ID-less tag of that type.
func Tags(tags ...any) TagDescriptor {
	out := make([]cache.Tag, 0, len(tags))
	for _, t := range tags {
		switch v := t.(type) {
		case cache.Tag:
			out = append(out, v)
		case string:
			out = append(out, cache.NewTag(v))
		}
	}
	return TagDescriptor{Tags: out}
}

// TagsFrom builds a descriptor that computes tags from the result.
func TagsFrom(fn TagsFunc) TagDescriptor {
	return TagDescriptor{Fn: fn}
}

// IsZero reports whether the descriptor declares anything.
func (d TagDescriptor) IsZero() bool {
	return d.Fn == nil && len(d.Tags) == 0
}

// HookContext is the per-execution mutable context shared by the three
// lifecycle hooks of a single request. It is never shared across requests.
type HookContext struct {
	// Name is the endpoint being executed.
	Name string

	// RequestID identifies this specific execution.
	RequestID string

	// Arg is the caller-supplied argument.
	Arg any

	// Values is scratch space for cross-hook data passing: stash a value
	// in OnStart, read it back in OnSuccess or OnError.
	Values map[string]any
}

// Hooks are the optional lifecycle callbacks of an endpoint. OnStart runs
// synchronously before the transport call; OnSuccess and OnError run
// after resolution. Panics inside hooks are not recovered.
type Hooks struct {
	OnStart   func(hc *HookContext)
	OnSuccess func(hc *HookContext, result any, meta cache.Meta)
	OnError   func(hc *HookContext, err *cache.Error)
}

// Definition is the immutable declarative description of one endpoint.
// Exactly one of BuildRequest and Execute must be set. Queries must not
// declare Invalidates; mutations must not declare Provides. Validate
// enforces these invariants at registration time.
type Definition struct {
	Name string
	Kind Kind

	// BuildRequest maps the caller argument to a transport request.
	BuildRequest func(arg any) (any, error)

	// Execute replaces the whole request pipeline for this endpoint. It
	// receives a callback into the underlying transport.
	Execute ExecuteFunc

	// Transform rewrites a successful result before caching. Nil means
	// identity.
	Transform TransformFunc

	Provides    TagDescriptor
	Invalidates TagDescriptor

	Hooks Hooks
}

// Validate checks the definition's structural invariants.
func (d Definition) Validate() error {
	return validation.ValidateStruct(&d,
		validation.Field(&d.Name, validation.Required),
		validation.Field(&d.Kind, validation.Required, validation.In(KindQuery, KindMutation)),
		validation.Field(&d.BuildRequest, validation.By(func(any) error {
			return d.validateExecutor()
		})),
		validation.Field(&d.Provides, validation.By(func(any) error {
			if d.Kind == KindMutation && !d.Provides.IsZero() {
				return errMutationProvides
			}
			return nil
		})),
		validation.Field(&d.Invalidates, validation.By(func(any) error {
			if d.Kind == KindQuery && !d.Invalidates.IsZero() {
				return errQueryInvalidates
			}
			return nil
		})),
	)
}

func (d Definition) validateExecutor() error {
	hasBuild := d.BuildRequest != nil
	hasExecute := d.Execute != nil
	if hasBuild == hasExecute {
		return errExecutorShape
	}
	return nil
}

// Query is a convenience constructor for a query definition.
func Query(name string, build func(arg any) (any, error)) Definition {
	return Definition{Name: name, Kind: KindQuery, BuildRequest: build}
}

// Mutation is a convenience constructor for a mutation definition.
func Mutation(name string, build func(arg any) (any, error)) Definition {
	return Definition{Name: name, Kind: KindMutation, BuildRequest: build}
}

// WithProvides returns a copy of the definition with a provides descriptor.
func (d Definition) WithProvides(desc TagDescriptor) Definition {
	d.Provides = desc
	return d
}

// WithInvalidates returns a copy of the definition with an invalidates
// descriptor.
func (d Definition) WithInvalidates(desc TagDescriptor) Definition {
	d.Invalidates = desc
	return d
}

// WithTransform returns a copy of the definition with a response transform.
func (d Definition) WithTransform(fn TransformFunc) Definition {
	d.Transform = fn
	return d
}

// WithHooks returns a copy of the definition with lifecycle hooks.
func (d Definition) WithHooks(h Hooks) Definition {
	d.Hooks = h
	return d
}

// WithExecute returns a copy of the definition with a custom executor,
// clearing BuildRequest.
func (d Definition) WithExecute(fn ExecuteFunc) Definition {
	d.Execute = fn
	d.BuildRequest = nil
	return d
}
