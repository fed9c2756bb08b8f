// Package cmd implements the command-line interface of redisimp.
//
// The package is organized into several subpackages:
//
//   - imp: The import command copying source shards into a destination
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See redisimp -help for a list of all commands.
package cmd
