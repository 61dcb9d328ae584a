package dr

import (
	"github.com/Kaychang/ignitecache/lib/cacheentry"
	"github.com/Kaychang/ignitecache/lib/version"
)

// LatestWins implements cacheentry.ConflictResolver for DR: it keeps
// whichever side has the more recent conflict version under Comparator,
// falling back to ordinary version comparison when neither side carries one
// (the local-only case, where DR conflict resolution degenerates to the
// same version check InnerUpdate already does without a resolver).
type LatestWins struct {
	Comparator version.Comparator
}

// Resolve implements cacheentry.ConflictResolver.
func (r LatestWins) Resolve(oldVal []byte, oldVer version.Version, newVal []byte, newVer version.Version) (cacheentry.ConflictResolution, []byte) {
	oldCmp, oldHas := oldVer.ConflictVersion()
	newCmp, newHas := newVer.ConflictVersion()
	if !oldHas {
		oldCmp = oldVer
	}
	if !newHas {
		newCmp = newVer
	}

	if r.Comparator.Greater(newCmp, oldCmp) {
		return cacheentry.ConflictUseNew, newVal
	}
	return cacheentry.ConflictUseOld, nil
}
