package kv

import (
	"fmt"
	"strings"

	"github.com/Kaychang/ignitecache/lib/cacheentry"
)

// entryProcessorByName resolves the small set of demo entry processors the
// CLI exposes. A real embedder of lib/cache supplies its own
// cacheentry.EntryProcessor; these exist to exercise the atomic update path
// from the command line.
func entryProcessorByName(name string) (cacheentry.EntryProcessor, error) {
	switch name {
	case "upper":
		return func(oldVal []byte, found bool) ([]byte, bool) {
			return []byte(strings.ToUpper(string(oldVal))), true
		}, nil
	case "lower":
		return func(oldVal []byte, found bool) ([]byte, bool) {
			return []byte(strings.ToLower(string(oldVal))), true
		}, nil
	default:
		return nil, fmt.Errorf("unknown entry processor %q, expected upper or lower", name)
	}
}
