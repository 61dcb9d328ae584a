// Package interceptor implements the Interceptor collaborator (spec.md
// §6): hooks that can veto or rewrite a put/remove before it commits and
// observe it afterward, mirroring Ignite's CacheInterceptor.
package interceptor

import "github.com/Kaychang/ignitecache/lib/cacheentry"

// Passthrough never vetoes or rewrites anything, so it behaves like having
// no interceptor at all (a nil cfg.Interceptor, which the entry skips). It
// exists as an explicit value for configurations that want to compose it
// into a Chain; nothing installs it automatically.
type Passthrough struct{}

func (Passthrough) OnBeforePut(_ cacheentry.EntryView, newVal []byte) ([]byte, bool) {
	return newVal, true
}

func (Passthrough) OnBeforeRemove(_ cacheentry.EntryView) (bool, []byte) {
	return false, nil
}

func (Passthrough) OnAfterPut(cacheentry.EntryView)    {}
func (Passthrough) OnAfterRemove(cacheentry.EntryView) {}

// Chain runs a sequence of interceptors in order. A before-hook short
// circuits the chain the moment one link vetoes the operation; the value
// it rewrote so far is what later links (and the eventual commit) see.
// After-hooks always run on every link, in order, regardless of what
// earlier links returned for the before-hooks.
type Chain []cacheentry.Interceptor

func (c Chain) OnBeforePut(view cacheentry.EntryView, newVal []byte) ([]byte, bool) {
	val := newVal
	for _, link := range c {
		var ok bool
		val, ok = link.OnBeforePut(view, val)
		if !ok {
			return val, false
		}
	}
	return val, true
}

func (c Chain) OnBeforeRemove(view cacheentry.EntryView) (bool, []byte) {
	val := view.Value
	for _, link := range c {
		cancel, rewritten := link.OnBeforeRemove(view)
		if cancel {
			return true, rewritten
		}
		if rewritten != nil {
			val = rewritten
		}
	}
	return false, val
}

func (c Chain) OnAfterPut(view cacheentry.EntryView) {
	for _, link := range c {
		link.OnAfterPut(view)
	}
}

func (c Chain) OnAfterRemove(view cacheentry.EntryView) {
	for _, link := range c {
		link.OnAfterRemove(view)
	}
}
