package config

import (
	"strings"
	"testing"

	"pgregory.net/rapid"
)

func TestTreeSet_PreservesSiblings(t *testing.T) {
	tr := NewTree()
	tr.Set("a.b.d", 1)
	tr.Set("a.b.c", 2)
	if v, ok := tr.Get("a.b.d"); !ok || v != 1 {
		t.Fatalf("sibling a.b.d lost after setting a.b.c: %v %v", v, ok)
	}
	if v, ok := tr.Get("a.b.c"); !ok || v != 2 {
		t.Fatalf("a.b.c not set: %v %v", v, ok)
	}
}

func TestTreeSet_ScalarPromotedToObject(t *testing.T) {
	tr := NewTree()
	tr.Set("a.b", "scalar")
	tr.Set("a.b.c", 1)
	if v, ok := tr.Get("a.b.c"); !ok || v != 1 {
		t.Fatalf("expected a.b.c=1 after promotion, got %v %v", v, ok)
	}
}

func TestTreeMerge_NestedMap(t *testing.T) {
	tr := NewTree()
	tr.Set("zap.cloud.region", "us-east-1")
	tr.Merge("zap", map[string]any{
		"cloud": map[string]any{"provider": "aws"},
	})
	if v, ok := tr.Get("zap.cloud.region"); !ok || v != "us-east-1" {
		t.Fatalf("merge erased sibling region: %v %v", v, ok)
	}
	if v, ok := tr.Get("zap.cloud.provider"); !ok || v != "aws" {
		t.Fatalf("merge did not set provider: %v %v", v, ok)
	}
}

func TestTreeGet_MissingPath(t *testing.T) {
	tr := NewTree()
	tr.Set("a.b", 1)
	if _, ok := tr.Get("a.b.c"); ok {
		t.Fatal("expected miss when descending through scalar")
	}
	if _, ok := tr.Get("x.y"); ok {
		t.Fatal("expected miss for absent path")
	}
}

func TestTreeFlatten(t *testing.T) {
	tr := NewTree()
	tr.Set("a.b", 1)
	tr.Set("a.c", 2)
	tr.Set("d", 3)
	flat := tr.Flatten()
	if len(flat) != 3 || flat["a.b"] != 1 || flat["a.c"] != 2 || flat["d"] != 3 {
		t.Fatalf("unexpected flatten result: %#v", flat)
	}
}

// Property: after any sequence of Set calls, every path whose prefix chain
// was not overwritten by a later conflicting write still reads back the
// last value written to it.
func TestTreeSetGet_Property(t *testing.T) {
	segGen := rapid.SampledFrom([]string{"a", "b", "c", "d"})
	rapid.Check(t, func(t *rapid.T) {
		tr := NewTree()
		want := map[string]int{}
		n := rapid.IntRange(1, 20).Draw(t, "writes")
		for i := 0; i < n; i++ {
			depth := rapid.IntRange(1, 3).Draw(t, "depth")
			segs := make([]string, depth)
			for j := range segs {
				segs[j] = segGen.Draw(t, "seg")
			}
			path := strings.Join(segs, ".")
			tr.Set(path, i)
			// A write shadows previously written paths that pass through
			// this leaf, and is shadowed by none.
			for p := range want {
				if strings.HasPrefix(p, path+".") || strings.HasPrefix(path, p+".") {
					delete(want, p)
				}
			}
			want[path] = i
		}
		for p, v := range want {
			got, ok := tr.Get(p)
			if !ok || got != v {
				t.Fatalf("path %q: want %d, got %v (ok=%v)", p, v, got, ok)
			}
		}
	})
}
