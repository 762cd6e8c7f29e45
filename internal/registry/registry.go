// Package registry provides storage-object registration and reference resolution.
// It maps the names and keys referenced in SQL and asset content to the known
// objects of a single retrieval pass, so lineage edges can point at stable keys.
package registry

import (
	"github.com/leapstack-labs/mclineage/pkg/core"
	"golang.org/x/text/cases"
)

// MatchKind records which attribute of an object a reference matched.
type MatchKind int

const (
	// MatchNone means the reference did not match any object.
	MatchNone MatchKind = iota
	// MatchName means the reference equals the object's display name.
	MatchName
	// MatchKey means the reference equals the object's stable key.
	MatchKey
)

// String returns the string representation of the match kind.
func (m MatchKind) String() string {
	switch m {
	case MatchName:
		return "name"
	case MatchKey:
		return "key"
	default:
		return "none"
	}
}

// fold normalizes a reference for case-insensitive comparison.
func fold(s string) string {
	return cases.Fold().String(s)
}

// ObjectRegistry resolves textual references against a snapshot of storage objects.
// It is built once per run and is read-only afterwards.
type ObjectRegistry struct {
	// objects keeps registration order for All
	objects []*core.StorageObject

	// byName maps folded display names to objects: "mastersubscribers" → DE_Subscribers
	// Note: if two objects share a display name, the first registered wins
	byName map[string]*core.StorageObject

	// byKey maps folded stable keys to objects: "de_subscribers" → DE_Subscribers
	byKey map[string]*core.StorageObject
}

// NewObjectRegistry creates a registry over the given objects.
// Objects without a key cannot be addressed and are ignored.
func NewObjectRegistry(objects []core.StorageObject) *ObjectRegistry {
	r := &ObjectRegistry{
		byName: make(map[string]*core.StorageObject, len(objects)),
		byKey:  make(map[string]*core.StorageObject, len(objects)),
	}
	for i := range objects {
		r.register(&objects[i])
	}
	return r
}

func (r *ObjectRegistry) register(obj *core.StorageObject) {
	if obj.Key == "" {
		return
	}
	key := fold(obj.Key)
	if _, dup := r.byKey[key]; dup {
		return
	}
	r.byKey[key] = obj
	r.objects = append(r.objects, obj)

	if obj.Name != "" {
		name := fold(obj.Name)
		if _, taken := r.byName[name]; !taken {
			r.byName[name] = obj
		}
	}
}

// Resolve matches a reference against the registry.
// Display names are tried before keys: user-facing SQL almost always uses the
// display name, so a name hit wins even when the token is also another object's key.
func (r *ObjectRegistry) Resolve(ref string) (*core.StorageObject, MatchKind, bool) {
	if ref == "" {
		return nil, MatchNone, false
	}
	folded := fold(ref)

	// 1. Exact match on display name
	if obj, ok := r.byName[folded]; ok {
		return obj, MatchName, true
	}

	// 2. Exact match on stable key
	if obj, ok := r.byKey[folded]; ok {
		return obj, MatchKey, true
	}

	return nil, MatchNone, false
}

// Get returns the object registered under the given key.
func (r *ObjectRegistry) Get(key string) (*core.StorageObject, bool) {
	obj, ok := r.byKey[fold(key)]
	return obj, ok
}

// All returns the registered objects in registration order.
func (r *ObjectRegistry) All() []*core.StorageObject {
	out := make([]*core.StorageObject, len(r.objects))
	copy(out, r.objects)
	return out
}

// Count returns the number of registered objects.
func (r *ObjectRegistry) Count() int {
	return len(r.objects)
}

// TransformIndex resolves pipeline step references to transforms.
// Steps name transforms by key or by display name, so both are indexed.
type TransformIndex struct {
	byKey  map[string]*core.Transform
	byName map[string]*core.Transform
}

// NewTransformIndex indexes the given transforms.
func NewTransformIndex(transforms []core.Transform) *TransformIndex {
	idx := &TransformIndex{
		byKey:  make(map[string]*core.Transform, len(transforms)),
		byName: make(map[string]*core.Transform, len(transforms)),
	}
	for i := range transforms {
		t := &transforms[i]
		if t.Key == "" {
			continue
		}
		if _, dup := idx.byKey[fold(t.Key)]; !dup {
			idx.byKey[fold(t.Key)] = t
		}
		if t.Name != "" {
			if _, taken := idx.byName[fold(t.Name)]; !taken {
				idx.byName[fold(t.Name)] = t
			}
		}
	}
	return idx
}

// Resolve finds a transform by key first, then by display name.
// Step references are usually object ids, so keys take priority here.
func (idx *TransformIndex) Resolve(ref string) (*core.Transform, bool) {
	if ref == "" {
		return nil, false
	}
	folded := fold(ref)
	if t, ok := idx.byKey[folded]; ok {
		return t, true
	}
	t, ok := idx.byName[folded]
	return t, ok
}
