package fhe

import (
	"crypto/ed25519"
	"encoding/hex"

	"github.com/fxamacker/cbor/v2"

	"github.com/veil-one/veil"
	"github.com/veil-one/veil/errors"
)

var configKey = []byte("_c.fhe")

// Config holds the oracle configuration: the key sealing values at
// rest and the public keys of the coprocessors whose attestations are
// accepted by FromExternal.
type Config struct {
	SealKey   []byte   `cbor:"1,keyasint"`
	Attestors [][]byte `cbor:"2,keyasint"`
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if len(c.SealKey) != 32 {
		return errors.Wrap(errors.ErrInput, "seal key must be 32 bytes")
	}
	if len(c.Attestors) == 0 {
		return errors.Wrap(errors.ErrEmpty, "attestors")
	}
	for i, pub := range c.Attestors {
		if len(pub) != ed25519.PublicKeySize {
			return errors.Wrapf(errors.ErrInput, "attestor %d: invalid public key size", i)
		}
	}
	return nil
}

// SaveConfig persists the oracle configuration.
func SaveConfig(db veil.KVStore, c Config) error {
	if err := c.Validate(); err != nil {
		return errors.Wrap(err, "invalid config")
	}
	raw, err := cbor.Marshal(&c)
	if err != nil {
		return errors.Wrap(err, "cannot marshal config")
	}
	return db.Set(configKey, raw)
}

func loadConfig(db veil.ReadOnlyKVStore) (Config, error) {
	var c Config
	raw, err := db.Get(configKey)
	if err != nil {
		return c, err
	}
	if raw == nil {
		return c, errors.Wrap(errors.ErrNotFound, "fhe is not configured")
	}
	if err := cbor.Unmarshal(raw, &c); err != nil {
		return c, errors.Wrap(err, "corrupted config")
	}
	return c, nil
}

// Initializer fulfils the Initializer interface to load data from the
// genesis file.
type Initializer struct{}

var _ veil.Initializer = (*Initializer)(nil)

// FromGenesis initializes the oracle configuration from genesis
// options. Expected format:
//
//   "fhe": {
//     "seal_key": "<64 hex chars>",
//     "attestors": ["<64 hex chars>", ...]
//   }
func (*Initializer) FromGenesis(opts veil.Options, db veil.KVStore) error {
	var conf struct {
		SealKey   string   `json:"seal_key"`
		Attestors []string `json:"attestors"`
	}
	if err := opts.ReadOptions("fhe", &conf); err != nil {
		return errors.Wrap(err, "cannot read fhe options")
	}
	if conf.SealKey == "" {
		return nil
	}

	key, err := hex.DecodeString(conf.SealKey)
	if err != nil {
		return errors.Wrap(errors.ErrInput, "seal key is not valid hex")
	}
	c := Config{SealKey: key}
	for i, enc := range conf.Attestors {
		pub, err := hex.DecodeString(enc)
		if err != nil {
			return errors.Wrapf(errors.ErrInput, "attestor %d is not valid hex", i)
		}
		c.Attestors = append(c.Attestors, pub)
	}
	return SaveConfig(db, c)
}
