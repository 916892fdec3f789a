// Package config implements Gauntlet's hierarchical configuration: each
// plugin registers a declarative schema once, and every dotted key then
// resolves through a strict precedence of CLI override > file value >
// environment expansion > schema default. Resolution is a pure read over
// already-loaded state, so concurrent lookups need no locking.
package config
