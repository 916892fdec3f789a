// Package gauntlet provides the command-line interface for the Gauntlet
// scanner. It configures subcommands (scan, config, infra, etc.), parses
// flags, and executes the selected command.
//
// Typical usage from a main package:
//
//	package main
//	import "github.com/gauntletsec/gauntlet/cmd/gauntlet"
//	func main() { gauntlet.Execute() }
package gauntlet
