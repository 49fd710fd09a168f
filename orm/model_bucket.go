package orm

import (
	"reflect"

	"github.com/veil-one/veil"
	"github.com/veil-one/veil/errors"
)

// ModelBucket is implemented by buckets that operate on Models rather
// than raw bytes.
type ModelBucket interface {
	// One queries the database for a single model instance. Lookup is
	// done by the primary index key. Result is loaded into given
	// destination model.
	// This method returns ErrNotFound if the entity does not exist in
	// the database.
	// If given model type cannot be used to contain stored entity,
	// ErrType is returned.
	One(db veil.ReadOnlyKVStore, key []byte, dest Model) error

	// ByIndex returns the primary keys of all entities that are
	// indexed under given secondary index value.
	ByIndex(db veil.ReadOnlyKVStore, indexName string, indexValue []byte) ([][]byte, error)

	// Put saves given model in the database. When the key is nil and
	// the bucket has an id sequence configured, a new key is
	// generated. The key used is always returned.
	Put(db veil.KVStore, key []byte, m Model) ([]byte, error)

	// Delete removes an entity with given primary key from the
	// database. It returns ErrNotFound if an entity with given key
	// does not exist.
	Delete(db veil.KVStore, key []byte) error

	// Has returns nil if an entity with given primary key exists, or
	// ErrNotFound.
	Has(db veil.ReadOnlyKVStore, key []byte) error

	// Register registers this buckets content to be accessible via
	// read-only queries under the given name.
	Register(name string, r veil.QueryRouter)
}

// ModelBucketOption is implemented by any function that can configure
// ModelBucket during creation.
type ModelBucketOption func(mb *modelBucket)

// WithIDSequence configures the bucket to use given sequence instance
// for generating ids of entities saved with a nil key.
func WithIDSequence(s Sequence) ModelBucketOption {
	return func(mb *modelBucket) {
		mb.idSeq = &s
	}
}

// Indexer calculates the secondary index key for a given model. Nil
// result with no error means the model is not indexed.
type Indexer func(Model) ([]byte, error)

// WithIndex configures the bucket to maintain a secondary index.
func WithIndex(name string, indexer Indexer) ModelBucketOption {
	return func(mb *modelBucket) {
		mb.indexes = append(mb.indexes, bucketIndex{name: name, indexer: indexer})
	}
}

type bucketIndex struct {
	name    string
	indexer Indexer
}

// NewModelBucket returns a ModelBucket instance that operates directly
// on the KVStore. Models are stored under `<bucket>:<key>` and index
// entries under `_i.<bucket>_<index>:<value>:<key>`.
//
// Given model type must not be a pointer.
func NewModelBucket(name string, m Model, opts ...ModelBucketOption) ModelBucket {
	kt := reflect.TypeOf(m)
	if kt.Kind() == reflect.Ptr {
		kt = kt.Elem()
	}
	mb := &modelBucket{
		name:  name,
		model: kt,
	}
	for _, fn := range opts {
		fn(mb)
	}
	return mb
}

type modelBucket struct {
	name    string
	model   reflect.Type
	idSeq   *Sequence
	indexes []bucketIndex
}

var _ ModelBucket = (*modelBucket)(nil)

func (mb *modelBucket) dbKey(key []byte) []byte {
	return append([]byte(mb.name+":"), key...)
}

func (mb *modelBucket) indexPrefix(index string, value []byte) []byte {
	raw := append([]byte("_i."+mb.name+"_"+index+":"), value...)
	return append(raw, ':')
}

func (mb *modelBucket) indexKey(index string, value, key []byte) []byte {
	return append(mb.indexPrefix(index, value), key...)
}

func (mb *modelBucket) One(db veil.ReadOnlyKVStore, key []byte, dest Model) error {
	raw, err := db.Get(mb.dbKey(key))
	if err != nil {
		return err
	}
	if raw == nil {
		return errors.Wrapf(errors.ErrNotFound, "%T not in the store", dest)
	}

	dt := reflect.TypeOf(dest)
	if dt.Kind() != reflect.Ptr || dt.Elem() != mb.model {
		return errors.Wrapf(errors.ErrType, "%s cannot be represented as %T", mb.model.Name(), dest)
	}
	if err := dest.Unmarshal(raw); err != nil {
		return errors.Wrapf(err, "cannot unmarshal %s", mb.model.Name())
	}
	return nil
}

func (mb *modelBucket) ByIndex(db veil.ReadOnlyKVStore, indexName string, indexValue []byte) ([][]byte, error) {
	var known bool
	for _, idx := range mb.indexes {
		if idx.name == indexName {
			known = true
			break
		}
	}
	if !known {
		return nil, errors.Wrapf(errors.ErrInput, "no index with name %q", indexName)
	}

	prefix := mb.indexPrefix(indexName, indexValue)
	it, err := db.Iterator(prefix, prefixEnd(prefix))
	if err != nil {
		return nil, err
	}
	defer it.Release()

	var keys [][]byte
	for {
		_, value, err := it.Next()
		if err != nil {
			if errors.ErrIteratorDone.Is(err) {
				return keys, nil
			}
			return nil, err
		}
		keys = append(keys, value)
	}
}

func (mb *modelBucket) Put(db veil.KVStore, key []byte, m Model) ([]byte, error) {
	mt := reflect.TypeOf(m)
	if mt.Kind() != reflect.Ptr || mt.Elem() != mb.model {
		return nil, errors.Wrapf(errors.ErrType, "cannot store %T in bucket of %s", m, mb.model.Name())
	}
	if err := m.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid model")
	}

	if len(key) == 0 {
		if mb.idSeq == nil {
			return nil, errors.Wrap(errors.ErrInput, "key is required")
		}
		var err error
		key, err = mb.idSeq.NextVal(db)
		if err != nil {
			return nil, errors.Wrap(err, "ID sequence")
		}
	}

	if err := mb.dropIndexEntries(db, key); err != nil {
		return nil, err
	}

	raw, err := m.Marshal()
	if err != nil {
		return nil, errors.Wrapf(err, "cannot marshal %s", mb.model.Name())
	}
	if err := db.Set(mb.dbKey(key), raw); err != nil {
		return nil, errors.Wrap(err, "cannot store in the database")
	}

	for _, idx := range mb.indexes {
		value, err := idx.indexer(m)
		if err != nil {
			return nil, errors.Wrapf(err, "index %q", idx.name)
		}
		if value == nil {
			continue
		}
		if err := db.Set(mb.indexKey(idx.name, value, key), key); err != nil {
			return nil, errors.Wrapf(err, "cannot store index %q", idx.name)
		}
	}
	return key, nil
}

func (mb *modelBucket) Delete(db veil.KVStore, key []byte) error {
	if err := mb.Has(db, key); err != nil {
		return err
	}
	if err := mb.dropIndexEntries(db, key); err != nil {
		return err
	}
	return db.Delete(mb.dbKey(key))
}

func (mb *modelBucket) Has(db veil.ReadOnlyKVStore, key []byte) error {
	if len(key) == 0 {
		// nil key is a special case that would refer to the whole
		// bucket
		return errors.ErrNotFound
	}
	ok, err := db.Has(mb.dbKey(key))
	if err != nil {
		return err
	}
	if !ok {
		return errors.ErrNotFound
	}
	return nil
}

// dropIndexEntries removes all index entries that refer to the entity
// stored under given primary key. New handles are written by Put after
// this cleanup, so updates never leave stale index entries behind.
func (mb *modelBucket) dropIndexEntries(db veil.KVStore, key []byte) error {
	if len(mb.indexes) == 0 {
		return nil
	}
	raw, err := db.Get(mb.dbKey(key))
	if err != nil {
		return err
	}
	if raw == nil {
		return nil
	}
	old := reflect.New(mb.model).Interface().(Model)
	if err := old.Unmarshal(raw); err != nil {
		return errors.Wrapf(err, "cannot unmarshal %s", mb.model.Name())
	}
	for _, idx := range mb.indexes {
		value, err := idx.indexer(old)
		if err != nil {
			return errors.Wrapf(err, "index %q", idx.name)
		}
		if value == nil {
			continue
		}
		if err := db.Delete(mb.indexKey(idx.name, value, key)); err != nil {
			return errors.Wrapf(err, "cannot drop index %q", idx.name)
		}
	}
	return nil
}

func (mb *modelBucket) Register(name string, r veil.QueryRouter) {
	root := "/" + name
	r.Register(root, &bucketQuery{mb: mb})
}

type bucketQuery struct {
	mb *modelBucket
}

func (q *bucketQuery) Query(db veil.ReadOnlyKVStore, mod string, data []byte) ([]veil.Model, error) {
	switch mod {
	case veil.KeyQueryMod:
		raw, err := db.Get(q.mb.dbKey(data))
		if err != nil {
			return nil, err
		}
		if raw == nil {
			return nil, nil
		}
		return []veil.Model{veil.Pair(data, raw)}, nil
	case veil.PrefixQueryMod:
		prefix := q.mb.dbKey(data)
		it, err := db.Iterator(prefix, prefixEnd(prefix))
		if err != nil {
			return nil, err
		}
		defer it.Release()
		var res []veil.Model
		for {
			key, value, err := it.Next()
			if err != nil {
				if errors.ErrIteratorDone.Is(err) {
					return res, nil
				}
				return nil, err
			}
			res = append(res, veil.Pair(key, value))
		}
	default:
		return nil, errors.Wrapf(errors.ErrInput, "unknown query mod: %q", mod)
	}
}

// prefixEnd returns the smallest key that is greater than all keys
// with given prefix.
func prefixEnd(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return end[:i+1]
		}
	}
	// prefix is all 0xff, no upper bound
	return nil
}
