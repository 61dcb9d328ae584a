// Package cmd implements the command-line interface for IgniteCache, an
// embedded in-process cache. It provides a hierarchical command structure
// that drives a cache inside the CLI process itself, plus version and
// upgrade commands.
//
// The package is organized into subpackages:
//
//   - kv: Commands for cache operations (set, get, del, invoke, repl, bench)
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See ignitecache -help for a list of all commands.
package cmd
