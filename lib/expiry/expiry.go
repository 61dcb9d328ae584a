// Package expiry implements the ExpiryPolicy collaborator cacheentry uses
// to compute TTLs at create, update and access time (spec.md §6). It plays
// the role Apache Ignite's ExpiryPolicyFactory family plays for
// GridCacheMapEntry: a small set of named policies a cache picks one of at
// configuration time, plus TTLNotChanged/TTLEternal passthrough semantics.
package expiry

import "github.com/Kaychang/ignitecache/lib/cacheentry"

// Eternal never expires anything; every call reports TTLEternal. This is
// the default when a cache configures no expiry policy.
type Eternal struct{}

func (Eternal) ForCreate() cacheentry.TTL { return cacheentry.TTLEternal }
func (Eternal) ForUpdate() cacheentry.TTL { return cacheentry.TTLEternal }
func (Eternal) ForAccess() cacheentry.TTL { return cacheentry.TTLEternal }

// Fixed applies the same TTL (in nanoseconds) on create and update and
// leaves the expire time untouched on access. A zero CreateTTL or
// UpdateTTL demotes that operation to a delete, matching
// cacheentry.computeTTL's ttlRes==0 case.
type Fixed struct {
	CreateTTL cacheentry.TTL
	UpdateTTL cacheentry.TTL
}

func (f Fixed) ForCreate() cacheentry.TTL { return f.CreateTTL }
func (f Fixed) ForUpdate() cacheentry.TTL { return f.UpdateTTL }
func (Fixed) ForAccess() cacheentry.TTL   { return cacheentry.TTLNotChanged }

// Sliding resets the expire time to Duration on every create, update and
// access, so a key survives as long as it keeps being touched. This is the
// policy behind Ignite's "touched" / accessed-based expiry.
type Sliding struct {
	Duration cacheentry.TTL
}

func (s Sliding) ForCreate() cacheentry.TTL { return s.Duration }
func (s Sliding) ForUpdate() cacheentry.TTL { return s.Duration }
func (s Sliding) ForAccess() cacheentry.TTL { return s.Duration }

// CreatedOnly sets a TTL only at creation time; updates and accesses never
// extend or shorten it, so the key expires Duration after it was first
// written regardless of how often it changes afterward.
type CreatedOnly struct {
	Duration cacheentry.TTL
}

func (c CreatedOnly) ForCreate() cacheentry.TTL { return c.Duration }
func (CreatedOnly) ForUpdate() cacheentry.TTL   { return cacheentry.TTLNotChanged }
func (CreatedOnly) ForAccess() cacheentry.TTL   { return cacheentry.TTLNotChanged }
