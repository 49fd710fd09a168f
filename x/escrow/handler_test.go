package escrow

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veil-one/veil"
	"github.com/veil-one/veil/errors"
	"github.com/veil-one/veil/store"
	"github.com/veil-one/veil/veiltest"
	"github.com/veil-one/veil/x/cash"
	"github.com/veil-one/veil/x/fhe"
)

type fixture struct {
	db       veil.KVStore
	oracle   fhe.Machine
	ctrl     cash.CashController
	attestor ed25519.PrivateKey

	alice veil.Condition // depositor
	bob   veil.Condition // beneficiary

	create  CreateHandler
	deposit DepositHandler
	release ReleaseHandler
	refund  RefundHandler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := store.MemStore()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	conf := fhe.Config{
		SealKey:   bytes.Repeat([]byte{0x5a}, 32),
		Attestors: [][]byte{pub},
	}
	require.NoError(t, fhe.SaveConfig(db, conf))

	oracle := fhe.Machine{}
	ctrl := cash.NewController(oracle)
	f := fixture{
		db:       db,
		oracle:   oracle,
		ctrl:     ctrl,
		attestor: priv,
		alice:    veiltest.NewCondition(),
		bob:      veiltest.NewCondition(),
	}

	auth := &veiltest.Auth{Signer: f.alice}
	bucket := NewBucket()
	f.create = CreateHandler{auth: auth, bucket: bucket, oracle: oracle}
	f.deposit = DepositHandler{auth: auth, bucket: bucket, oracle: oracle, ctrl: ctrl}
	f.release = ReleaseHandler{auth: auth, bucket: bucket, ctrl: ctrl}
	f.refund = RefundHandler{auth: auth, bucket: bucket, ctrl: ctrl}
	return &f
}

func (f *fixture) at(t time.Time) veil.Context {
	return veil.WithBlockTime(context.Background(), t)
}

// fund issues an initial balance the way the cash genesis does.
func (f *fixture) fund(t *testing.T, owner veil.Address, amount uint64) {
	t.Helper()

	h, err := f.oracle.Mint(f.db, amount)
	require.NoError(t, err)
	require.NoError(t, f.oracle.Grant(f.db, h, owner))
	b := cash.Balance{Owner: owner, Amount: h}
	_, err = cash.NewBalanceBucket().Put(f.db, owner, &b)
	require.NoError(t, err)
}

func (f *fixture) balance(t *testing.T, owner veil.Address) uint64 {
	t.Helper()

	h, err := f.ctrl.ConfidentialBalanceOf(f.db, owner)
	require.NoError(t, err)
	if h.IsZero() {
		return 0
	}
	v, err := f.oracle.Decrypt(f.db, h, owner)
	require.NoError(t, err)
	return v
}

// createMsg builds a valid creation message for given amount.
func (f *fixture) createMsg(t *testing.T, amount uint64, releaseAfter veil.UnixTime, salt string) *CreateMsg {
	t.Helper()

	bundle, err := f.oracle.MakeBundle(f.db, amount, []byte(salt))
	require.NoError(t, err)
	return &CreateMsg{
		Beneficiary:  f.bob.Address(),
		AmountBundle: bundle,
		AmountProof:  fhe.Attest(f.attestor, bundle),
		ReleaseAfter: releaseAfter,
	}
}

func (f *fixture) mustCreate(t *testing.T, ctx veil.Context, amount uint64, releaseAfter veil.UnixTime, salt string) []byte {
	t.Helper()

	res, err := f.create.Deliver(ctx, f.db, &veiltest.Tx{Msg: f.createMsg(t, amount, releaseAfter, salt)})
	require.NoError(t, err)
	return res.Data
}

func (f *fixture) status(t *testing.T, id []byte) Status {
	t.Helper()

	s, err := GetStatus(f.db, id)
	require.NoError(t, err)
	return s
}

func TestCreateEscrow(t *testing.T) {
	f := newFixture(t)
	now := time.Now()
	ctx := f.at(now)
	deadline := veil.AsUnixTime(now.Add(7 * 24 * time.Hour))

	id := f.mustCreate(t, ctx, 100, deadline, "s1")
	assert.Equal(t, veiltest.SequenceID(1), id)
	assert.Equal(t, StatusCreated, f.status(t, id))

	// ids are strictly increasing and never reused
	id2 := f.mustCreate(t, ctx, 50, deadline, "s2")
	assert.Equal(t, veiltest.SequenceID(2), id2)

	// both parties may decrypt the agreed amount
	h, err := GetAmountHandle(f.db, id)
	require.NoError(t, err)
	v, err := f.oracle.Decrypt(f.db, h, f.alice.Address())
	require.NoError(t, err)
	assert.Equal(t, uint64(100), v)
	v, err = f.oracle.Decrypt(f.db, h, f.bob.Address())
	require.NoError(t, err)
	assert.Equal(t, uint64(100), v)

	// a stranger may fetch the handle but not decrypt it
	_, err = f.oracle.Decrypt(f.db, h, veiltest.RandomAddr(t))
	assert.True(t, fhe.ErrDecryptDenied.Is(err), "unexpected error: %v", err)
}

func TestCreateEscrowValidation(t *testing.T) {
	f := newFixture(t)
	now := time.Now()
	ctx := f.at(now)
	future := veil.AsUnixTime(now.Add(time.Hour))

	t.Run("missing beneficiary", func(t *testing.T) {
		msg := f.createMsg(t, 10, future, "s1")
		msg.Beneficiary = nil
		_, err := f.create.Deliver(ctx, f.db, &veiltest.Tx{Msg: msg})
		assert.True(t, ErrInvalidBeneficiary.Is(err), "unexpected error: %v", err)
	})
	t.Run("deadline in the past", func(t *testing.T) {
		msg := f.createMsg(t, 10, veil.AsUnixTime(now.Add(-time.Hour)), "s2")
		_, err := f.create.Deliver(ctx, f.db, &veiltest.Tx{Msg: msg})
		assert.True(t, ErrInvalidReleaseTime.Is(err), "unexpected error: %v", err)
	})
	t.Run("deadline exactly now", func(t *testing.T) {
		msg := f.createMsg(t, 10, veil.AsUnixTime(now), "s3")
		_, err := f.create.Deliver(ctx, f.db, &veiltest.Tx{Msg: msg})
		assert.True(t, ErrInvalidReleaseTime.Is(err), "unexpected error: %v", err)
	})
	t.Run("forged proof", func(t *testing.T) {
		msg := f.createMsg(t, 10, future, "s4")
		msg.AmountProof = []byte("forged proof bytes")
		_, err := f.create.Deliver(ctx, f.db, &veiltest.Tx{Msg: msg})
		assert.True(t, fhe.ErrInvalidProof.Is(err), "unexpected error: %v", err)
	})

	// none of the rejected attempts may allocate an id
	assert.Equal(t, StatusNone, f.status(t, veiltest.SequenceID(1)))
}

func TestDepositAuthorizationAndStatus(t *testing.T) {
	now := time.Now()
	deadline := veil.AsUnixTime(now.Add(time.Hour))

	cases := map[string]struct {
		signer     func(f *fixture) veil.Condition
		prepare    func(t *testing.T, f *fixture, ctx veil.Context, id []byte)
		escrowID   func(id []byte) []byte
		wantErr    *errors.Error
		wantStatus Status
	}{
		"depositor on created escrow": {
			wantStatus: StatusFunded,
		},
		"beneficiary may not deposit": {
			signer:     func(f *fixture) veil.Condition { return f.bob },
			wantErr:    errors.ErrUnauthorized,
			wantStatus: StatusCreated,
		},
		"stranger may not deposit": {
			signer:     func(f *fixture) veil.Condition { return veiltest.NewCondition() },
			wantErr:    errors.ErrUnauthorized,
			wantStatus: StatusCreated,
		},
		"unknown escrow": {
			escrowID:   func([]byte) []byte { return veiltest.SequenceID(42) },
			wantErr:    ErrNoEscrow,
			wantStatus: StatusCreated,
		},
		"double deposit": {
			prepare: func(t *testing.T, f *fixture, ctx veil.Context, id []byte) {
				_, err := f.deposit.Deliver(ctx, f.db, &veiltest.Tx{Msg: &DepositMsg{EscrowID: id}})
				require.NoError(t, err)
			},
			wantErr:    ErrInvalidStatus,
			wantStatus: StatusFunded,
		},
		"deposit on released escrow": {
			prepare: func(t *testing.T, f *fixture, ctx veil.Context, id []byte) {
				_, err := f.deposit.Deliver(ctx, f.db, &veiltest.Tx{Msg: &DepositMsg{EscrowID: id}})
				require.NoError(t, err)
				_, err = f.release.Deliver(ctx, f.db, &veiltest.Tx{Msg: &ReleaseMsg{EscrowID: id}})
				require.NoError(t, err)
			},
			wantErr:    ErrInvalidStatus,
			wantStatus: StatusReleased,
		},
	}
	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			f := newFixture(t)
			ctx := f.at(now)
			f.fund(t, f.alice.Address(), 500)
			id := f.mustCreate(t, ctx, 100, deadline, "s1")

			if tc.prepare != nil {
				tc.prepare(t, f, ctx, id)
			}

			deposit := f.deposit
			if tc.signer != nil {
				deposit.auth = &veiltest.Auth{Signer: tc.signer(f)}
			}
			escrowID := id
			if tc.escrowID != nil {
				escrowID = tc.escrowID(id)
			}

			_, err := deposit.Deliver(ctx, f.db, &veiltest.Tx{Msg: &DepositMsg{EscrowID: escrowID}})
			if tc.wantErr == nil {
				require.NoError(t, err)
			} else {
				assert.True(t, tc.wantErr.Is(err), "unexpected error: %v", err)
			}
			assert.Equal(t, tc.wantStatus, f.status(t, id))
		})
	}
}

// TestEscrowLifecycleRelease walks the happy deposit-then-release path
// and checks that a refund is rejected afterwards.
func TestEscrowLifecycleRelease(t *testing.T) {
	f := newFixture(t)
	now := time.Now()
	ctx := f.at(now)
	deadline := veil.AsUnixTime(now.Add(7 * 24 * time.Hour))
	f.fund(t, f.alice.Address(), 500)

	id := f.mustCreate(t, ctx, 100, deadline, "s1")
	self := Condition(id).Address()

	res, err := f.deposit.Deliver(ctx, f.db, &veiltest.Tx{Msg: &DepositMsg{EscrowID: id}})
	require.NoError(t, err)
	assert.Equal(t, StatusFunded, f.status(t, id))
	assert.Equal(t, uint64(400), f.balance(t, f.alice.Address()))
	assert.Equal(t, uint64(100), f.balance(t, self))
	require.Len(t, res.Events, 2)
	assert.Equal(t, "cash/transfer", res.Events[0].Type)
	assert.Equal(t, []veil.EventAttribute{
		{Key: "from", Value: f.alice.Address().String()},
		{Key: "to", Value: self.String()},
	}, res.Events[0].Attributes)
	assert.Equal(t, "escrow/funded", res.Events[1].Type)

	res, err = f.release.Deliver(ctx, f.db, &veiltest.Tx{Msg: &ReleaseMsg{EscrowID: id}})
	require.NoError(t, err)
	assert.Equal(t, StatusReleased, f.status(t, id))
	assert.Equal(t, uint64(0), f.balance(t, self))
	assert.Equal(t, uint64(100), f.balance(t, f.bob.Address()))

	// the payout is a ledger move and must be notified as one
	require.Len(t, res.Events, 2)
	assert.Equal(t, "cash/transfer", res.Events[0].Type)
	assert.Equal(t, []veil.EventAttribute{
		{Key: "from", Value: self.String()},
		{Key: "to", Value: f.bob.Address().String()},
	}, res.Events[0].Attributes)
	assert.Equal(t, "escrow/released", res.Events[1].Type)

	// release and refund are mutually exclusive
	late := f.at(deadline.Time().Add(time.Hour))
	_, err = f.refund.Deliver(late, f.db, &veiltest.Tx{Msg: &RefundMsg{EscrowID: id}})
	assert.True(t, ErrInvalidStatus.Is(err), "unexpected error: %v", err)
	assert.Equal(t, StatusReleased, f.status(t, id))
}

// TestEscrowLifecycleRefund checks the timeout path: refunds are
// rejected before the deadline and restore the depositor balance
// afterwards.
func TestEscrowLifecycleRefund(t *testing.T) {
	f := newFixture(t)
	now := time.Now()
	ctx := f.at(now)
	deadline := veil.AsUnixTime(now.Add(7 * 24 * time.Hour))
	f.fund(t, f.alice.Address(), 500)

	id := f.mustCreate(t, ctx, 100, deadline, "s1")
	_, err := f.deposit.Deliver(ctx, f.db, &veiltest.Tx{Msg: &DepositMsg{EscrowID: id}})
	require.NoError(t, err)
	assert.Equal(t, uint64(400), f.balance(t, f.alice.Address()))

	// too early
	ok, err := CanRefund(ctx, f.db, id)
	require.NoError(t, err)
	assert.False(t, ok)
	_, err = f.refund.Deliver(ctx, f.db, &veiltest.Tx{Msg: &RefundMsg{EscrowID: id}})
	assert.True(t, ErrTimeoutNotReached.Is(err), "unexpected error: %v", err)
	assert.Equal(t, StatusFunded, f.status(t, id))

	// at the deadline the refund becomes admissible
	late := f.at(deadline.Time())
	ok, err = CanRefund(late, f.db, id)
	require.NoError(t, err)
	assert.True(t, ok)
	res, err := f.refund.Deliver(late, f.db, &veiltest.Tx{Msg: &RefundMsg{EscrowID: id}})
	require.NoError(t, err)
	assert.Equal(t, StatusRefunded, f.status(t, id))
	assert.Equal(t, uint64(500), f.balance(t, f.alice.Address()))
	assert.Equal(t, uint64(0), f.balance(t, Condition(id).Address()))

	// the refund is a ledger move and must be notified as one
	require.Len(t, res.Events, 2)
	assert.Equal(t, "cash/transfer", res.Events[0].Type)
	assert.Equal(t, []veil.EventAttribute{
		{Key: "from", Value: Condition(id).Address().String()},
		{Key: "to", Value: f.alice.Address().String()},
	}, res.Events[0].Attributes)
	assert.Equal(t, "escrow/refunded", res.Events[1].Type)

	// refund and release are mutually exclusive
	_, err = f.release.Deliver(late, f.db, &veiltest.Tx{Msg: &ReleaseMsg{EscrowID: id}})
	assert.True(t, ErrInvalidStatus.Is(err), "unexpected error: %v", err)
	assert.Equal(t, StatusRefunded, f.status(t, id))
}

// TestDepositInsufficientFunds checks the silent zero transfer: an
// underfunded deposit still moves the escrow to Funded but the wallet
// balances stay put.
func TestDepositInsufficientFunds(t *testing.T) {
	f := newFixture(t)
	now := time.Now()
	ctx := f.at(now)
	deadline := veil.AsUnixTime(now.Add(time.Hour))
	f.fund(t, f.alice.Address(), 50)

	id := f.mustCreate(t, ctx, 100, deadline, "s1")
	self := Condition(id).Address()

	_, err := f.deposit.Deliver(ctx, f.db, &veiltest.Tx{Msg: &DepositMsg{EscrowID: id}})
	require.NoError(t, err)
	assert.Equal(t, StatusFunded, f.status(t, id))
	assert.Equal(t, uint64(50), f.balance(t, f.alice.Address()))
	assert.Equal(t, uint64(0), f.balance(t, self))

	// the release then pays out the zero the escrow actually holds
	_, err = f.release.Deliver(ctx, f.db, &veiltest.Tx{Msg: &ReleaseMsg{EscrowID: id}})
	require.NoError(t, err)
	assert.Equal(t, StatusReleased, f.status(t, id))
	assert.Equal(t, uint64(0), f.balance(t, f.bob.Address()))
}

// TestEventsCarryNoAmount inspects every event emitted along the full
// lifecycle for amount leakage.
func TestEventsCarryNoAmount(t *testing.T) {
	f := newFixture(t)
	now := time.Now()
	ctx := f.at(now)
	deadline := veil.AsUnixTime(now.Add(time.Hour))
	f.fund(t, f.alice.Address(), 500)

	var events []veil.Event
	res, err := f.create.Deliver(ctx, f.db, &veiltest.Tx{Msg: f.createMsg(t, 100, deadline, "s1")})
	require.NoError(t, err)
	events = append(events, res.Events...)
	id := res.Data

	res, err = f.deposit.Deliver(ctx, f.db, &veiltest.Tx{Msg: &DepositMsg{EscrowID: id}})
	require.NoError(t, err)
	events = append(events, res.Events...)

	res, err = f.release.Deliver(ctx, f.db, &veiltest.Tx{Msg: &ReleaseMsg{EscrowID: id}})
	require.NoError(t, err)
	events = append(events, res.Events...)

	allowed := map[string]bool{
		"id": true, "depositor": true, "beneficiary": true,
		"release_after": true, "from": true, "to": true,
	}
	for _, ev := range events {
		for _, attr := range ev.Attributes {
			assert.True(t, allowed[attr.Key], "event %s leaks attribute %s=%s", ev.Type, attr.Key, attr.Value)
			assert.NotEqual(t, "100", attr.Value, "event %s leaks the amount", ev.Type)
		}
	}
}

func TestRegisteredQueryAndIndexes(t *testing.T) {
	f := newFixture(t)
	now := time.Now()
	ctx := f.at(now)
	deadline := veil.AsUnixTime(now.Add(time.Hour))

	id := f.mustCreate(t, ctx, 100, deadline, "s1")
	id2 := f.mustCreate(t, ctx, 50, deadline, "s2")

	qr := veil.NewQueryRouter()
	RegisterQuery(qr)
	qh := qr.Handler("/escrows")
	require.NotNil(t, qh)

	models, err := qh.Query(f.db, veil.KeyQueryMod, id)
	require.NoError(t, err)
	require.Len(t, models, 1)
	var esc Escrow
	require.NoError(t, esc.Unmarshal(models[0].Value))
	assert.Equal(t, f.bob.Address(), esc.Beneficiary)

	models, err = qh.Query(f.db, veil.KeyQueryMod, veiltest.SequenceID(9))
	require.NoError(t, err)
	assert.Len(t, models, 0)

	keys, err := NewBucket().ByIndex(f.db, "depositor", f.alice.Address())
	require.NoError(t, err)
	assert.Equal(t, [][]byte{id, id2}, keys)

	keys, err = NewBucket().ByIndex(f.db, "beneficiary", veiltest.RandomAddr(t))
	require.NoError(t, err)
	assert.Len(t, keys, 0)
}

func TestQueries(t *testing.T) {
	f := newFixture(t)
	now := time.Now()
	ctx := f.at(now)
	deadline := veil.AsUnixTime(now.Add(1000 * time.Second))
	f.fund(t, f.alice.Address(), 500)

	id := f.mustCreate(t, ctx, 100, deadline, "s1")

	details, err := GetDetails(f.db, id)
	require.NoError(t, err)
	assert.Equal(t, f.alice.Address(), details.Depositor)
	assert.Equal(t, f.bob.Address(), details.Beneficiary)
	assert.Equal(t, deadline, details.ReleaseAfter)
	assert.Equal(t, StatusCreated, details.Status)

	remaining, err := TimeUntilRefund(ctx, f.db, id)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), remaining)

	remaining, err = TimeUntilRefund(f.at(deadline.Time().Add(time.Hour)), f.db, id)
	require.NoError(t, err)
	assert.Equal(t, int64(0), remaining)

	_, err = GetDetails(f.db, veiltest.SequenceID(9))
	assert.True(t, ErrNoEscrow.Is(err), "unexpected error: %v", err)
	_, err = GetAmountHandle(f.db, veiltest.SequenceID(9))
	assert.True(t, ErrNoEscrow.Is(err), "unexpected error: %v", err)

	// a released escrow has no refund countdown, matching CanRefund
	_, err = f.deposit.Deliver(ctx, f.db, &veiltest.Tx{Msg: &DepositMsg{EscrowID: id}})
	require.NoError(t, err)
	_, err = f.release.Deliver(ctx, f.db, &veiltest.Tx{Msg: &ReleaseMsg{EscrowID: id}})
	require.NoError(t, err)
	ok, err := CanRefund(ctx, f.db, id)
	require.NoError(t, err)
	assert.False(t, ok)
	_, err = TimeUntilRefund(ctx, f.db, id)
	assert.True(t, ErrInvalidStatus.Is(err), "unexpected error: %v", err)
}
