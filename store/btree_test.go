package store

import (
	"bytes"
	"testing"

	"github.com/veil-one/veil/errors"
)

func TestBTreeCacheGetSet(t *testing.T) {
	base := MemStore()

	k, v := []byte("french"), []byte("fry")

	if err := base.Set(k, v); err != nil {
		t.Fatalf("cannot set: %s", err)
	}
	got, err := base.Get(k)
	if err != nil {
		t.Fatalf("cannot get: %s", err)
	}
	if !bytes.Equal(v, got) {
		t.Fatalf("want %q, got %q", v, got)
	}
	has, err := base.Has(k)
	if err != nil || !has {
		t.Fatalf("want has, got %v %v", has, err)
	}

	// now CacheWrap and make sure we can see the parent data
	cache := base.CacheWrap()
	got, err = cache.Get(k)
	if err != nil {
		t.Fatalf("cannot get through cache: %s", err)
	}
	if !bytes.Equal(v, got) {
		t.Fatalf("want %q, got %q", v, got)
	}

	// write in the cache is not visible in the parent until Write
	k2, v2 := []byte("LA"), []byte("Dodgers")
	if err := cache.Set(k2, v2); err != nil {
		t.Fatalf("cannot set in cache: %s", err)
	}
	if has, _ := base.Has(k2); has {
		t.Fatal("cache write leaked into the parent")
	}
	if err := cache.Write(); err != nil {
		t.Fatalf("cannot write cache: %s", err)
	}
	got, err = base.Get(k2)
	if err != nil || !bytes.Equal(v2, got) {
		t.Fatalf("want %q, got %q (%v)", v2, got, err)
	}
}

func TestBTreeCacheDiscard(t *testing.T) {
	base := MemStore()
	k, v := []byte("a"), []byte("1")
	if err := base.Set(k, v); err != nil {
		t.Fatalf("cannot set: %s", err)
	}

	cache := base.CacheWrap()
	if err := cache.Set([]byte("b"), []byte("2")); err != nil {
		t.Fatalf("cannot set: %s", err)
	}
	if err := cache.Delete(k); err != nil {
		t.Fatalf("cannot delete: %s", err)
	}

	// deletions and writes are visible through the cache
	if has, _ := cache.Has(k); has {
		t.Fatal("delete not visible in cache")
	}
	if has, _ := cache.Has([]byte("b")); !has {
		t.Fatal("write not visible in cache")
	}

	cache.Discard()

	// after discard the parent is untouched
	if has, _ := base.Has(k); !has {
		t.Fatal("discarded delete modified the parent")
	}
	if has, _ := base.Has([]byte("b")); has {
		t.Fatal("discarded write modified the parent")
	}
}

func TestBTreeCacheIterator(t *testing.T) {
	base := MemStore()
	for _, pair := range [][2]string{
		{"a", "1"}, {"c", "3"}, {"e", "5"},
	} {
		if err := base.Set([]byte(pair[0]), []byte(pair[1])); err != nil {
			t.Fatalf("cannot set: %s", err)
		}
	}

	cache := base.CacheWrap()
	// overwrite, insert and delete in the cache layer
	if err := cache.Set([]byte("c"), []byte("three")); err != nil {
		t.Fatalf("cannot set: %s", err)
	}
	if err := cache.Set([]byte("b"), []byte("2")); err != nil {
		t.Fatalf("cannot set: %s", err)
	}
	if err := cache.Delete([]byte("e")); err != nil {
		t.Fatalf("cannot delete: %s", err)
	}

	cases := map[string]struct {
		reverse bool
		want    [][2]string
	}{
		"ascending combines both layers": {
			want: [][2]string{{"a", "1"}, {"b", "2"}, {"c", "three"}},
		},
		"descending combines both layers": {
			reverse: true,
			want:    [][2]string{{"c", "three"}, {"b", "2"}, {"a", "1"}},
		},
	}

	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			var (
				it  Iterator
				err error
			)
			if tc.reverse {
				it, err = cache.ReverseIterator(nil, nil)
			} else {
				it, err = cache.Iterator(nil, nil)
			}
			if err != nil {
				t.Fatalf("cannot create iterator: %s", err)
			}
			defer it.Release()

			for i, want := range tc.want {
				key, value, err := it.Next()
				if err != nil {
					t.Fatalf("step %d: %s", i, err)
				}
				if string(key) != want[0] || string(value) != want[1] {
					t.Fatalf("step %d: want %q=%q, got %q=%q", i, want[0], want[1], key, value)
				}
			}
			if _, _, err := it.Next(); !errors.ErrIteratorDone.Is(err) {
				t.Fatalf("want iterator done, got %v", err)
			}
		})
	}
}

func TestSliceIterator(t *testing.T) {
	models := []Model{
		{Key: []byte("a"), Value: []byte("1")},
		{Key: []byte("b"), Value: []byte("2")},
	}
	it := NewSliceIterator(models)

	k, v, err := it.Next()
	if err != nil || string(k) != "a" || string(v) != "1" {
		t.Fatalf("unexpected first: %q %q %v", k, v, err)
	}
	k, v, err = it.Next()
	if err != nil || string(k) != "b" || string(v) != "2" {
		t.Fatalf("unexpected second: %q %q %v", k, v, err)
	}
	if _, _, err := it.Next(); !errors.ErrIteratorDone.Is(err) {
		t.Fatalf("want iterator done, got %v", err)
	}

	it = NewSliceIterator(models)
	it.Release()
	if _, _, err := it.Next(); !errors.ErrIteratorDone.Is(err) {
		t.Fatalf("want iterator done after release, got %v", err)
	}
}
