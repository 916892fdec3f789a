package config

import (
	"sort"
	"strings"
)

// Tree is a nested string-keyed value tree addressed by dotted paths.
// Set merges at intermediate levels instead of overwriting, so writing
// "a.b.c" never erases an already present sibling "a.b.d".
type Tree struct {
	root map[string]any
}

// NewTree returns an empty tree.
func NewTree() *Tree {
	return &Tree{root: map[string]any{}}
}

// TreeFromMap builds a tree from an already nested map, deep-copying it.
func TreeFromMap(m map[string]any) *Tree {
	t := NewTree()
	for k, v := range m {
		t.root[k] = deepCopyValue(v)
	}
	return t
}

// Set assigns the value at the dotted path, creating intermediate objects
// as needed. An existing scalar on the path is replaced by an object; an
// existing object is descended into, keeping its other children.
func (t *Tree) Set(path string, value any) {
	segs := strings.Split(path, ".")
	node := t.root
	for _, seg := range segs[:len(segs)-1] {
		child, ok := node[seg].(map[string]any)
		if !ok {
			child = map[string]any{}
			node[seg] = child
		}
		node = child
	}
	node[segs[len(segs)-1]] = deepCopyValue(value)
}

// Get returns the value at the dotted path. Intermediate nodes are
// returned as map[string]any.
func (t *Tree) Get(path string) (any, bool) {
	segs := strings.Split(path, ".")
	var cur any = t.root
	for _, seg := range segs {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[seg]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// Root returns a deep copy of the tree as a nested map.
func (t *Tree) Root() map[string]any {
	return deepCopyValue(t.root).(map[string]any)
}

// Merge sets every leaf of the nested map under the given path prefix.
// Siblings already present in the tree are preserved.
func (t *Tree) Merge(prefix string, m map[string]any) {
	for key, val := range m {
		path := key
		if prefix != "" {
			path = prefix + "." + key
		}
		if child, ok := val.(map[string]any); ok {
			t.Merge(path, child)
			continue
		}
		t.Set(path, val)
	}
}

// Flatten returns all leaves keyed by dotted path, sorted for stable
// iteration.
func (t *Tree) Flatten() map[string]any {
	out := map[string]any{}
	flattenInto(out, "", t.root)
	return out
}

// Paths returns the sorted dotted paths of all leaves.
func (t *Tree) Paths() []string {
	flat := t.Flatten()
	paths := make([]string, 0, len(flat))
	for p := range flat {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

func flattenInto(out map[string]any, prefix string, node map[string]any) {
	for k, v := range node {
		path := k
		if prefix != "" {
			path = prefix + "." + k
		}
		if child, ok := v.(map[string]any); ok {
			flattenInto(out, path, child)
			continue
		}
		out[path] = v
	}
}

func deepCopyValue(v any) any {
	switch tv := v.(type) {
	case map[string]any:
		cp := make(map[string]any, len(tv))
		for k, e := range tv {
			cp[k] = deepCopyValue(e)
		}
		return cp
	case []any:
		cp := make([]any, len(tv))
		for i, e := range tv {
			cp[i] = deepCopyValue(e)
		}
		return cp
	default:
		return v
	}
}
