package cache

// PatchOp is the operation of one structural patch.
type PatchOp string

const (
	// PatchReplace sets the value at a path, overwriting what is there.
	PatchReplace PatchOp = "replace"

	// PatchAdd sets the value at a path expected to be absent.
	PatchAdd PatchOp = "add"

	// PatchRemove deletes the value at a path.
	PatchRemove PatchOp = "remove"
)

// Patch is one structural edit on cached data. Path uses dot notation
// ("user.name", "items.0.id"); an empty path addresses the whole value.
type Patch struct {
	Op    PatchOp
	Path  string
	Value any
}

// Replace builds a replace patch.
func Replace(path string, value any) Patch {
	return Patch{Op: PatchReplace, Path: path, Value: value}
}

// Add builds an add patch.
func Add(path string, value any) Patch {
	return Patch{Op: PatchAdd, Path: path, Value: value}
}

// Remove builds a remove patch.
func Remove(path string) Patch {
	return Patch{Op: PatchRemove, Path: path}
}
