package config

import (
	"reflect"
	"sort"
)

// Option describes one configurable key of a plugin schema.
type Option struct {
	Type        string   `yaml:"type"`
	Default     any      `yaml:"default"`
	Enum        []string `yaml:"enum,omitempty"`
	Description string   `yaml:"description,omitempty"`
}

// Schema maps dotted key paths to their option descriptions. Nested
// objects are expressed through the dotted paths themselves, so
// "cloud.provider" and "cloud.region" are two leaves of one object.
type Schema map[string]Option

// Clone returns a deep copy of the schema.
func (s Schema) Clone() Schema {
	cp := make(Schema, len(s))
	for k, opt := range s {
		o := opt
		o.Default = deepCopyValue(opt.Default)
		if opt.Enum != nil {
			o.Enum = append([]string(nil), opt.Enum...)
		}
		cp[k] = o
	}
	return cp
}

// Keys returns the sorted dotted keys of the schema.
func (s Schema) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// equalSchemas reports whether two schemas are identical, which makes a
// re-registration a no-op rather than a conflict.
func equalSchemas(a, b Schema) bool {
	return reflect.DeepEqual(a, b)
}
