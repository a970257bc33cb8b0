// Package cache provides the read-through cache used by station and user
// queries, together with the key serialization and pattern rules shared by
// every backend.
//
// # Overview
//
// The package exports a small set of pieces:
//
//   - Store: a byte-oriented backend (see internal/cacheinfra for the
//     sturdyc and Redis implementations)
//   - Service and GetOrSet: typed read-through access with TTL tiers
//   - KeySerializer: builds stable cache keys from a namespace and arguments
//   - MatchPattern: the glob rules used by RemoveByPattern
//
// # Basic Usage
//
//	svc, err := cache.NewService(store, cache.DefaultConfig())
//	key := cache.NewDefaultKeySerializer().SerializeKey("stations:list", criteria)
//	page, err := cache.GetOrSet(ctx, svc, key, svc.TTL(cache.TierShort), func(ctx context.Context) (Page, error) {
//		return compute(ctx, criteria)
//	})
//
// # Failure Handling
//
// The cache never fails a read. If the store returns an error the value is
// fetched from the source and nothing is written. A fetch that fails, or
// that finishes after its context was cancelled, is never cached.
//
// Two concurrent misses on the same key both fetch and both write; the last
// write wins.
//
// # Key Serialization Strategy
//
// The default key serializer uses reflection to handle various Go types:
//
//   - Basic types: strconv formatting, shortest round-trip floats
//   - encoding.TextMarshaler values (uuid, decimal, time): their text form
//   - Slices/arrays: recursive serialization of elements
//   - Maps: sorted key=value pairs for deterministic output
//   - Structs: exported fields in declaration order, renamed or skipped with
//     the cachekey tag
//
// Keys are shared between processes through Redis, so nothing
// process-specific such as a function address ever ends up in a key.
//
// Keys always start with their namespace ("stations:list", "userstats:...")
// so invalidation can select a whole category with a pattern like
// "stations:list*". NewKeySerializer keeps that property when it folds an
// oversized key into a hash.
package cache
