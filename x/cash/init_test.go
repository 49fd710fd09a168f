package cash

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veil-one/veil"
	"github.com/veil-one/veil/store"
	"github.com/veil-one/veil/veiltest"
	"github.com/veil-one/veil/x/fhe"
)

func TestGenesisInitializer(t *testing.T) {
	db := store.MemStore()
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	conf := fhe.Config{
		SealKey:   bytes.Repeat([]byte{0x42}, 32),
		Attestors: [][]byte{pub},
	}
	require.NoError(t, fhe.SaveConfig(db, conf))

	alice := veiltest.RandomAddr(t)
	bob := veiltest.RandomAddr(t)
	opts := veil.Options{
		"cash": json.RawMessage(fmt.Sprintf(`[
			{"address": %q, "amount": 1000},
			{"address": %q, "amount": 50}
		]`, alice, bob)),
	}

	var ini Initializer
	require.NoError(t, ini.FromGenesis(opts, db))

	oracle := fhe.Machine{}
	ctrl := NewController(oracle)
	assert.Equal(t, uint64(1000), balanceOf(t, db, oracle, ctrl, alice))
	assert.Equal(t, uint64(50), balanceOf(t, db, oracle, ctrl, bob))

	supply, err := ctrl.ConfidentialTotalSupply(db)
	require.NoError(t, err)
	require.NoError(t, supply.Validate())

	// the supply handle is not granted to anyone
	_, err = oracle.Decrypt(db, supply, alice)
	assert.True(t, fhe.ErrDecryptDenied.Is(err), "unexpected error: %v", err)
}

func TestGenesisInitializerEmpty(t *testing.T) {
	db := store.MemStore()

	var ini Initializer
	require.NoError(t, ini.FromGenesis(veil.Options{}, db))

	supply, err := NewController(fhe.Machine{}).ConfidentialTotalSupply(db)
	require.NoError(t, err)
	assert.True(t, supply.IsZero())
}
