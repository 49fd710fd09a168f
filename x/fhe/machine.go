package fhe

import (
	"crypto/ed25519"
	"encoding/binary"

	"github.com/fxamacker/cbor/v2"
	"golang.org/x/crypto/nacl/secretbox"
	"golang.org/x/crypto/sha3"

	"github.com/veil-one/veil"
	"github.com/veil-one/veil/errors"
	"github.com/veil-one/veil/orm"
)

const (
	valuePrefix = "fhe:"
	aclPrefix   = "fheacl:"

	nonceSize = 24
	// plaintext values are unsigned 64 bit integers
	plainSize = 8
)

var handleSeq = orm.NewSequence("fhe", "handle")

// Oracle is the encrypted-value capability consumed by the ledger and
// the escrow extension. Every operation that produces a handle mints a
// fresh one with an empty permission set.
type Oracle interface {
	// FromExternal converts a client submitted bundle into an internal
	// handle. The proof must be a valid attestation over the bundle or
	// ErrInvalidProof is returned and nothing is stored.
	FromExternal(db veil.KVStore, bundle, proof []byte) (Handle, error)

	// Add returns a handle to a+b (mod 2^64).
	Add(db veil.KVStore, a, b Handle) (Handle, error)
	// Sub returns a handle to a-b (mod 2^64). Callers must guarantee
	// via Select that the plaintext never underflows.
	Sub(db veil.KVStore, a, b Handle) (Handle, error)
	// Ge returns a handle to the encrypted bit a >= b.
	Ge(db veil.KVStore, a, b Handle) (Handle, error)
	// Select returns a handle to the value of ifTrue when cond is an
	// encrypted 1, and to the value of ifFalse otherwise. This is the
	// only conditional primitive; never branch on a decrypted bit.
	Select(db veil.KVStore, cond, ifTrue, ifFalse Handle) (Handle, error)
	// Zero returns a fresh handle to an encrypted zero.
	Zero(db veil.KVStore) (Handle, error)

	// Grant appends given principal to the permission set of the
	// handle. Granting twice is a noop.
	Grant(db veil.KVStore, h Handle, addr veil.Address) error
	// Allowed checks if given principal may request decryption.
	Allowed(db veil.ReadOnlyKVStore, h Handle, addr veil.Address) (bool, error)
	// Decrypt reveals the value behind the handle to an authorized
	// requester. This models the coprocessor's authorized decryption.
	Decrypt(db veil.ReadOnlyKVStore, h Handle, requester veil.Address) (uint64, error)
}

// Machine is the reference Oracle implementation. Values are sealed at
// rest with the key from the configuration; a production deployment
// keeps this key inside the coprocessor.
type Machine struct{}

var _ Oracle = Machine{}

// envelope is the wire format of a sealed value, both at rest and in
// external bundles.
type envelope struct {
	Nonce []byte `cbor:"1,keyasint"`
	Box   []byte `cbor:"2,keyasint"`
}

func (m Machine) FromExternal(db veil.KVStore, bundle, proof []byte) (Handle, error) {
	conf, err := loadConfig(db)
	if err != nil {
		return nil, err
	}

	var attested bool
	for _, pub := range conf.Attestors {
		if ed25519.Verify(ed25519.PublicKey(pub), bundle, proof) {
			attested = true
			break
		}
	}
	if !attested {
		return nil, errors.Wrap(ErrInvalidProof, "attestation does not verify")
	}

	var env envelope
	if err := cbor.Unmarshal(bundle, &env); err != nil {
		return nil, errors.Wrap(ErrInvalidProof, "malformed bundle")
	}
	value, err := openEnvelope(conf, env)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidProof, "malformed ciphertext")
	}

	return mint(db, conf, value)
}

func (m Machine) Add(db veil.KVStore, a, b Handle) (Handle, error) {
	return binop(db, a, b, func(x, y uint64) uint64 { return x + y })
}

func (m Machine) Sub(db veil.KVStore, a, b Handle) (Handle, error) {
	return binop(db, a, b, func(x, y uint64) uint64 { return x - y })
}

func (m Machine) Ge(db veil.KVStore, a, b Handle) (Handle, error) {
	return binop(db, a, b, func(x, y uint64) uint64 {
		// constant time x >= y: borrow-out of x-y
		borrow := ((^x & y) | ((^x | y) & (x - y))) >> 63
		return borrow ^ 1
	})
}

func (m Machine) Select(db veil.KVStore, cond, ifTrue, ifFalse Handle) (Handle, error) {
	conf, err := loadConfig(db)
	if err != nil {
		return nil, err
	}
	c, err := open(db, conf, cond)
	if err != nil {
		return nil, err
	}
	a, err := open(db, conf, ifTrue)
	if err != nil {
		return nil, err
	}
	b, err := open(db, conf, ifFalse)
	if err != nil {
		return nil, err
	}
	// constant time select, mask is all ones when c == 1
	mask := -(c & 1)
	return mint(db, conf, (a&mask)|(b&^mask))
}

func (m Machine) Zero(db veil.KVStore) (Handle, error) {
	conf, err := loadConfig(db)
	if err != nil {
		return nil, err
	}
	return mint(db, conf, 0)
}

func (m Machine) Grant(db veil.KVStore, h Handle, addr veil.Address) error {
	if err := h.Validate(); err != nil {
		return err
	}
	if err := addr.Validate(); err != nil {
		return err
	}
	ok, err := db.Has(valueKey(h))
	if err != nil {
		return err
	}
	if !ok {
		return errors.Wrapf(ErrUnknownHandle, "%s", h)
	}
	return db.Set(aclKey(h, addr), []byte{1})
}

func (m Machine) Allowed(db veil.ReadOnlyKVStore, h Handle, addr veil.Address) (bool, error) {
	return db.Has(aclKey(h, addr))
}

func (m Machine) Decrypt(db veil.ReadOnlyKVStore, h Handle, requester veil.Address) (uint64, error) {
	ok, err := m.Allowed(db, h, requester)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, errors.Wrapf(ErrDecryptDenied, "%s", requester)
	}
	conf, err := loadConfig(db)
	if err != nil {
		return 0, err
	}
	return open(db, conf, h)
}

// Mint seals a plaintext value and stores it under a fresh handle with
// an empty permission set. This is the trusted issuance path used by
// genesis initialization and tests.
func (m Machine) Mint(db veil.KVStore, value uint64) (Handle, error) {
	conf, err := loadConfig(db)
	if err != nil {
		return nil, err
	}
	return mint(db, conf, value)
}

// MakeBundle builds an external bundle for given plaintext value. It
// represents the client side encryption that the coprocessor SDK
// performs; available here for genesis tooling and tests. The salt
// must differ between bundles to avoid nonce reuse.
func (m Machine) MakeBundle(db veil.ReadOnlyKVStore, value uint64, salt []byte) ([]byte, error) {
	conf, err := loadConfig(db)
	if err != nil {
		return nil, err
	}
	env := seal(conf, append([]byte("fhe/bundle"), salt...), value)
	return cbor.Marshal(env)
}

// Attest signs a bundle with given attestor key. It stands in for the
// coprocessor verifying the zero knowledge validity proof and vouching
// for the bundle.
func Attest(priv ed25519.PrivateKey, bundle []byte) []byte {
	return ed25519.Sign(priv, bundle)
}

func binop(db veil.KVStore, a, b Handle, fn func(x, y uint64) uint64) (Handle, error) {
	conf, err := loadConfig(db)
	if err != nil {
		return nil, err
	}
	x, err := open(db, conf, a)
	if err != nil {
		return nil, err
	}
	y, err := open(db, conf, b)
	if err != nil {
		return nil, err
	}
	return mint(db, conf, fn(x, y))
}

func valueKey(h Handle) []byte {
	return append([]byte(valuePrefix), h...)
}

func aclKey(h Handle, addr veil.Address) []byte {
	key := append([]byte(aclPrefix), h...)
	key = append(key, ':')
	return append(key, addr...)
}

// mint seals the value under a sequence-derived nonce and stores it
// under a fresh handle. Nonces must never repeat for the same key;
// deriving them from the sequence keeps the state machine
// deterministic.
func mint(db veil.KVStore, conf Config, value uint64) (Handle, error) {
	n, err := handleSeq.NextVal(db)
	if err != nil {
		return nil, errors.Wrap(err, "handle sequence")
	}

	env := seal(conf, append([]byte("fhe/nonce"), n...), value)
	raw, err := cbor.Marshal(env)
	if err != nil {
		return nil, errors.Wrap(err, "cannot marshal envelope")
	}

	sum := sha3.Sum256(append(n, raw...))
	handle := Handle(sum[:])
	if err := db.Set(valueKey(handle), raw); err != nil {
		return nil, errors.Wrap(err, "cannot store value")
	}
	return handle, nil
}

func seal(conf Config, nonceSeed []byte, value uint64) envelope {
	var nonce [nonceSize]byte
	seed := sha3.Sum256(nonceSeed)
	copy(nonce[:], seed[:nonceSize])

	var key [32]byte
	copy(key[:], conf.SealKey)

	var plain [plainSize]byte
	binary.BigEndian.PutUint64(plain[:], value)

	box := secretbox.Seal(nil, plain[:], &nonce, &key)
	return envelope{Nonce: nonce[:], Box: box}
}

func open(db veil.ReadOnlyKVStore, conf Config, h Handle) (uint64, error) {
	if err := h.Validate(); err != nil {
		return 0, err
	}
	raw, err := db.Get(valueKey(h))
	if err != nil {
		return 0, err
	}
	if raw == nil {
		return 0, errors.Wrapf(ErrUnknownHandle, "%s", h)
	}
	var env envelope
	if err := cbor.Unmarshal(raw, &env); err != nil {
		return 0, errors.Wrap(err, "corrupted envelope")
	}
	return openEnvelope(conf, env)
}

func openEnvelope(conf Config, env envelope) (uint64, error) {
	if len(env.Nonce) != nonceSize {
		return 0, errors.Wrap(errors.ErrInput, "invalid nonce size")
	}
	var nonce [nonceSize]byte
	copy(nonce[:], env.Nonce)

	var key [32]byte
	copy(key[:], conf.SealKey)

	plain, ok := secretbox.Open(nil, env.Box, &nonce, &key)
	if !ok {
		return 0, errors.Wrap(errors.ErrInput, "cannot open box")
	}
	if len(plain) != plainSize {
		return 0, errors.Wrap(errors.ErrInput, "invalid plaintext size")
	}
	return binary.BigEndian.Uint64(plain), nil
}
