package config

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gauntletsec/gauntlet/internal/errs"
)

// Manager composes the schema registry, file-provided values, and CLI
// overrides into one resolved value per (plugin, dotted key).
//
// Registration and loading happen once at construction time; after that
// every method is a pure read, so concurrent resolution is safe without
// locking.
type Manager struct {
	schemas   map[string]Schema
	files     *Tree
	overrides *Tree
}

// NewManager returns a manager with no schemas, file values, or overrides.
func NewManager() *Manager {
	return &Manager{
		schemas:   map[string]Schema{},
		files:     NewTree(),
		overrides: NewTree(),
	}
}

// RegisterSchema records the schema for a plugin. Registering an identical
// schema again is a no-op; a conflicting re-registration fails. Schema keys
// are namespaced per plugin, so two plugins may declare the same key name.
func (m *Manager) RegisterSchema(plugin string, schema Schema) error {
	existing, ok := m.schemas[plugin]
	if ok {
		if equalSchemas(existing, schema) {
			return nil
		}
		return &errs.ConfigurationError{
			Plugin: plugin,
			Reason: "conflicting schema re-registration",
		}
	}
	m.schemas[plugin] = schema.Clone()
	return nil
}

// ApplyFile merges file-provided values into the manager. Later files win
// over earlier ones key by key; untouched sibling keys are preserved.
func (m *Manager) ApplyFile(fc FileConfig) {
	for plugin, values := range fc.Plugins {
		m.files.Merge(plugin, values)
	}
}

// SetOverride records a CLI override, the highest-precedence source.
func (m *Manager) SetOverride(plugin, dottedKey string, value any) {
	m.overrides.Set(plugin+"."+dottedKey, value)
}

// Resolve returns the value for the plugin's dotted key using strict
// precedence: CLI override > file value > schema default. String values
// from files and defaults are expanded against the environment; an absent
// variable leaves the literal ${VAR} placeholder in place. The precedence
// holds independently for every leaf key at any nesting depth.
func (m *Manager) Resolve(plugin, dottedKey string) (any, error) {
	if v, ok := m.overrides.Get(plugin + "." + dottedKey); ok {
		return v, nil
	}
	if v, ok := m.files.Get(plugin + "." + dottedKey); ok {
		return expandValue(v), nil
	}
	if schema, ok := m.schemas[plugin]; ok {
		if opt, ok := schema[dottedKey]; ok {
			return expandValue(opt.Default), nil
		}
	}
	return nil, &errs.ConfigurationError{
		Plugin: plugin,
		Key:    dottedKey,
		Reason: "key not defined by schema, file, or override",
	}
}

// ResolveAll resolves every key declared by the plugin's schema, plus any
// file or override keys not covered by the schema. Factories use it to
// bind all values eagerly at construction time.
func (m *Manager) ResolveAll(plugin string) (map[string]any, error) {
	schema, ok := m.schemas[plugin]
	if !ok {
		return nil, &errs.ConfigurationError{Plugin: plugin, Reason: "no schema registered"}
	}
	out := map[string]any{}
	for _, key := range schema.Keys() {
		v, err := m.Resolve(plugin, key)
		if err != nil {
			return nil, err
		}
		out[key] = v
	}
	for path := range m.files.Flatten() {
		if p, key, ok := splitPluginPath(path, plugin); ok && p == plugin {
			if _, seen := out[key]; !seen {
				v, err := m.Resolve(plugin, key)
				if err != nil {
					return nil, err
				}
				out[key] = v
			}
		}
	}
	for path := range m.overrides.Flatten() {
		if p, key, ok := splitPluginPath(path, plugin); ok && p == plugin {
			if _, seen := out[key]; !seen {
				v, err := m.Resolve(plugin, key)
				if err != nil {
					return nil, err
				}
				out[key] = v
			}
		}
	}
	return out, nil
}

// ExportSchema returns a deep copy of the full registry with defaults
// embedded. It is a pure read intended for introspection commands.
func (m *Manager) ExportSchema() map[string]Schema {
	out := make(map[string]Schema, len(m.schemas))
	for plugin, schema := range m.schemas {
		out[plugin] = schema.Clone()
	}
	return out
}

func splitPluginPath(path, plugin string) (string, string, bool) {
	prefix := plugin + "."
	if len(path) > len(prefix) && path[:len(prefix)] == prefix {
		return plugin, path[len(prefix):], true
	}
	return "", "", false
}

// ResolveString resolves a key and coerces it to a string.
func (m *Manager) ResolveString(plugin, key string) (string, error) {
	v, err := m.Resolve(plugin, key)
	if err != nil {
		return "", err
	}
	switch tv := v.(type) {
	case string:
		return tv, nil
	case nil:
		return "", nil
	default:
		return fmt.Sprintf("%v", tv), nil
	}
}

// ResolveInt resolves a key and coerces it to an int.
func (m *Manager) ResolveInt(plugin, key string) (int, error) {
	v, err := m.Resolve(plugin, key)
	if err != nil {
		return 0, err
	}
	switch tv := v.(type) {
	case int:
		return tv, nil
	case int64:
		return int(tv), nil
	case float64:
		return int(tv), nil
	case string:
		n, convErr := strconv.Atoi(tv)
		if convErr != nil {
			return 0, &errs.ConfigurationError{Plugin: plugin, Key: key, Reason: fmt.Sprintf("expected integer, got %q", tv)}
		}
		return n, nil
	default:
		return 0, &errs.ConfigurationError{Plugin: plugin, Key: key, Reason: fmt.Sprintf("expected integer, got %T", v)}
	}
}

// ResolveBool resolves a key and coerces it to a bool.
func (m *Manager) ResolveBool(plugin, key string) (bool, error) {
	v, err := m.Resolve(plugin, key)
	if err != nil {
		return false, err
	}
	switch tv := v.(type) {
	case bool:
		return tv, nil
	case string:
		b, convErr := strconv.ParseBool(tv)
		if convErr != nil {
			return false, &errs.ConfigurationError{Plugin: plugin, Key: key, Reason: fmt.Sprintf("expected boolean, got %q", tv)}
		}
		return b, nil
	default:
		return false, &errs.ConfigurationError{Plugin: plugin, Key: key, Reason: fmt.Sprintf("expected boolean, got %T", v)}
	}
}

// ResolveDuration resolves a key holding either a Go duration string or a
// number of seconds.
func (m *Manager) ResolveDuration(plugin, key string) (time.Duration, error) {
	v, err := m.Resolve(plugin, key)
	if err != nil {
		return 0, err
	}
	switch tv := v.(type) {
	case string:
		d, convErr := time.ParseDuration(tv)
		if convErr != nil {
			return 0, &errs.ConfigurationError{Plugin: plugin, Key: key, Reason: fmt.Sprintf("expected duration, got %q", tv)}
		}
		return d, nil
	case int:
		return time.Duration(tv) * time.Second, nil
	case int64:
		return time.Duration(tv) * time.Second, nil
	case float64:
		return time.Duration(tv * float64(time.Second)), nil
	default:
		return 0, &errs.ConfigurationError{Plugin: plugin, Key: key, Reason: fmt.Sprintf("expected duration, got %T", v)}
	}
}

// ResolveStringSlice resolves a key holding a list of strings.
func (m *Manager) ResolveStringSlice(plugin, key string) ([]string, error) {
	v, err := m.Resolve(plugin, key)
	if err != nil {
		return nil, err
	}
	switch tv := v.(type) {
	case []string:
		return append([]string(nil), tv...), nil
	case []any:
		out := make([]string, 0, len(tv))
		for _, e := range tv {
			out = append(out, fmt.Sprintf("%v", e))
		}
		return out, nil
	case nil:
		return nil, nil
	default:
		return nil, &errs.ConfigurationError{Plugin: plugin, Key: key, Reason: fmt.Sprintf("expected list of strings, got %T", v)}
	}
}
