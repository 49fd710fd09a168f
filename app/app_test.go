package app

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veil-one/veil"
	"github.com/veil-one/veil/store"
	"github.com/veil-one/veil/veiltest"
	"github.com/veil-one/veil/x/cash"
	"github.com/veil-one/veil/x/escrow"
	"github.com/veil-one/veil/x/fhe"
)

// TestApplicationEscrowFlow wires the full application together and
// walks an escrow from genesis to payout, transaction by transaction.
func TestApplicationEscrowFlow(t *testing.T) {
	db := store.MemStore()
	auth := &veiltest.CtxAuth{Key: "auth"}
	oracle := fhe.Machine{}
	ctrl := cash.NewController(oracle)

	router := NewRouter()
	cash.RegisterRoutes(router, auth, oracle, ctrl)
	escrow.RegisterRoutes(router, auth, oracle, ctrl)
	exec := NewExecutor(db, router)

	alice := veiltest.NewCondition()
	bob := veiltest.NewCondition()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	sealKey := make([]byte, 32)
	_, err = rand.Read(sealKey)
	require.NoError(t, err)

	gen, err := ParseGenesis([]byte(fmt.Sprintf(`{
		"chain_id": "test-chain",
		"app_options": {
			"fhe": {"seal_key": %q, "attestors": [%q]},
			"cash": [{"address": %q, "amount": 500}]
		}
	}`, hex.EncodeToString(sealKey), hex.EncodeToString(pub), alice.Address())))
	require.NoError(t, err)
	assert.Equal(t, "test-chain", gen.ChainID)

	ini := ChainInitializers(&fhe.Initializer{}, &cash.Initializer{})
	require.NoError(t, ini.FromGenesis(gen.AppOptions, db))

	now := time.Now()
	asAlice := auth.SetConditions(veil.WithBlockTime(context.Background(), now), alice)
	deadline := veil.AsUnixTime(now.Add(7 * 24 * time.Hour))

	bundle, err := oracle.MakeBundle(db, 100, []byte("app-test"))
	require.NoError(t, err)
	res, err := exec.DeliverTx(asAlice, &veiltest.Tx{Msg: &escrow.CreateMsg{
		Beneficiary:  bob.Address(),
		AmountBundle: bundle,
		AmountProof:  fhe.Attest(priv, bundle),
		ReleaseAfter: deadline,
	}})
	require.NoError(t, err)
	id := res.Data
	assert.Equal(t, veiltest.SequenceID(1), id)

	status, err := escrow.GetStatus(db, id)
	require.NoError(t, err)
	assert.Equal(t, escrow.StatusCreated, status)

	_, err = exec.DeliverTx(asAlice, &veiltest.Tx{Msg: &escrow.DepositMsg{EscrowID: id}})
	require.NoError(t, err)
	status, err = escrow.GetStatus(db, id)
	require.NoError(t, err)
	assert.Equal(t, escrow.StatusFunded, status)

	// a stranger's release attempt is rejected and changes nothing
	mallory := auth.SetConditions(veil.WithBlockTime(context.Background(), now), veiltest.NewCondition())
	_, err = exec.DeliverTx(mallory, &veiltest.Tx{Msg: &escrow.ReleaseMsg{EscrowID: id}})
	require.Error(t, err)
	status, err = escrow.GetStatus(db, id)
	require.NoError(t, err)
	assert.Equal(t, escrow.StatusFunded, status)

	_, err = exec.DeliverTx(asAlice, &veiltest.Tx{Msg: &escrow.ReleaseMsg{EscrowID: id}})
	require.NoError(t, err)
	status, err = escrow.GetStatus(db, id)
	require.NoError(t, err)
	assert.Equal(t, escrow.StatusReleased, status)

	// the beneficiary ends up with the amount, the depositor without it
	balance := func(owner veil.Address) uint64 {
		h, err := ctrl.ConfidentialBalanceOf(db, owner)
		require.NoError(t, err)
		if h.IsZero() {
			return 0
		}
		v, err := oracle.Decrypt(db, h, owner)
		require.NoError(t, err)
		return v
	}
	assert.Equal(t, uint64(400), balance(alice.Address()))
	assert.Equal(t, uint64(100), balance(bob.Address()))

	// once released, a refund can never succeed
	late := auth.SetConditions(veil.WithBlockTime(context.Background(), deadline.Time().Add(time.Hour)), alice)
	_, err = exec.DeliverTx(late, &veiltest.Tx{Msg: &escrow.RefundMsg{EscrowID: id}})
	assert.True(t, escrow.ErrInvalidStatus.Is(err), "unexpected error: %v", err)
}

func TestParseGenesisRejectsGarbage(t *testing.T) {
	_, err := ParseGenesis([]byte("not json"))
	assert.Error(t, err)

	var raw json.RawMessage
	gen, err := ParseGenesis([]byte(`{"chain_id": "c", "app_options": {}}`))
	require.NoError(t, err)
	require.NoError(t, gen.AppOptions.ReadOptions("missing", &raw))
	assert.Nil(t, raw)
}
