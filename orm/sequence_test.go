package orm

import (
	"bytes"
	"testing"

	"github.com/veil-one/veil/store"
)

func TestSequence(t *testing.T) {
	db := store.MemStore()
	s := NewSequence("escrow", "id")

	if latest, _, err := s.Latest(db); err != nil || latest != 0 {
		t.Fatalf("fresh sequence must be 0, got %d (%v)", latest, err)
	}

	var prev []byte
	for i := int64(1); i <= 10; i++ {
		val, err := s.NextInt(db)
		if err != nil {
			t.Fatalf("cannot increment: %s", err)
		}
		if val != i {
			t.Fatalf("want %d, got %d", i, val)
		}
		_, raw, err := s.Latest(db)
		if err != nil {
			t.Fatalf("cannot read latest: %s", err)
		}
		if prev != nil && bytes.Compare(prev, raw) >= 0 {
			t.Fatal("byte representation must be strictly increasing")
		}
		prev = raw
	}
}

func TestSequencesIndependent(t *testing.T) {
	db := store.MemStore()
	a := NewSequence("escrow", "id")
	b := NewSequence("other", "id")

	if _, err := a.NextVal(db); err != nil {
		t.Fatalf("cannot increment: %s", err)
	}
	if _, err := a.NextVal(db); err != nil {
		t.Fatalf("cannot increment: %s", err)
	}
	val, err := b.NextInt(db)
	if err != nil {
		t.Fatalf("cannot increment: %s", err)
	}
	if val != 1 {
		t.Fatalf("sequences must not share state, got %d", val)
	}
}
