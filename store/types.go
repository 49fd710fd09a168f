package store

import "github.com/veil-one/veil"

// Move references for all storage types into this package
// for shorter names everywhere.

type KVStore = veil.KVStore
type ReadOnlyKVStore = veil.ReadOnlyKVStore
type Iterator = veil.Iterator
type CacheableKVStore = veil.CacheableKVStore
type KVCacheWrap = veil.KVCacheWrap
type Batch = veil.Batch
type Model = veil.Model

// SetDeleter is a minimal interface for writing,
// the write-side subset of KVStore.
type SetDeleter interface {
	Set(key, value []byte) error
	Delete(key []byte) error
}
