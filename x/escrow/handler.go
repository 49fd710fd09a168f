package escrow

import (
	"encoding/binary"
	"strconv"

	"github.com/veil-one/veil"
	"github.com/veil-one/veil/errors"
	"github.com/veil-one/veil/orm"
	"github.com/veil-one/veil/x"
	"github.com/veil-one/veil/x/cash"
	"github.com/veil-one/veil/x/fhe"
)

const (
	createCost  int64 = 400
	depositCost int64 = 300
	releaseCost int64 = 200
	refundCost  int64 = 200
)

// RegisterRoutes will instantiate and register all handlers in this
// package.
func RegisterRoutes(r veil.Registry, auth x.Authenticator, oracle fhe.Oracle, ctrl cash.Controller) {
	bucket := NewBucket()
	r.Handle(&CreateMsg{}, CreateHandler{auth: auth, bucket: bucket, oracle: oracle})
	r.Handle(&DepositMsg{}, DepositHandler{auth: auth, bucket: bucket, oracle: oracle, ctrl: ctrl})
	r.Handle(&ReleaseMsg{}, ReleaseHandler{auth: auth, bucket: bucket, ctrl: ctrl})
	r.Handle(&RefundMsg{}, RefundHandler{auth: auth, bucket: bucket, ctrl: ctrl})
}

// RegisterQuery registers the escrow bucket under /escrows.
func RegisterQuery(qr veil.QueryRouter) {
	NewBucket().Register("escrows", qr)
}

// CreateHandler opens new escrows.
type CreateHandler struct {
	auth   x.Authenticator
	bucket orm.ModelBucket
	oracle fhe.Oracle
}

var _ veil.Handler = CreateHandler{}

func (h CreateHandler) Check(ctx veil.Context, db veil.KVStore, tx veil.Tx) (*veil.CheckResult, error) {
	if _, _, err := h.validate(ctx, tx); err != nil {
		return nil, err
	}
	return &veil.CheckResult{GasAllocated: createCost}, nil
}

func (h CreateHandler) Deliver(ctx veil.Context, db veil.KVStore, tx veil.Tx) (*veil.DeliverResult, error) {
	msg, depositor, err := h.validate(ctx, tx)
	if err != nil {
		return nil, err
	}

	amount, err := h.oracle.FromExternal(db, msg.AmountBundle, msg.AmountProof)
	if err != nil {
		return nil, errors.Wrap(err, "amount")
	}

	esc := Escrow{
		Depositor:    depositor,
		Beneficiary:  msg.Beneficiary,
		Amount:       amount,
		ReleaseAfter: msg.ReleaseAfter,
		Status:       StatusCreated,
	}
	id, err := h.bucket.Put(db, nil, &esc)
	if err != nil {
		return nil, errors.Wrap(err, "cannot store escrow")
	}

	// Both parties, the escrow itself and the ledger may request
	// decryption of the agreed amount.
	for _, addr := range []veil.Address{
		depositor,
		msg.Beneficiary,
		Condition(id).Address(),
		cash.LedgerAddress(),
	} {
		if err := h.oracle.Grant(db, amount, addr); err != nil {
			return nil, errors.Wrap(err, "cannot grant amount")
		}
	}

	ev := veil.NewEvent("escrow/created",
		"id", idString(id),
		"depositor", depositor.String(),
		"beneficiary", msg.Beneficiary.String(),
		"release_after", strconv.FormatInt(int64(msg.ReleaseAfter), 10),
	)
	return &veil.DeliverResult{Data: id, Events: []veil.Event{ev}}, nil
}

func (h CreateHandler) validate(ctx veil.Context, tx veil.Tx) (*CreateMsg, veil.Address, error) {
	var msg CreateMsg
	if err := veil.LoadMsg(tx, &msg); err != nil {
		return nil, nil, err
	}
	if !veil.InTheFuture(ctx, msg.ReleaseAfter.Time()) {
		return nil, nil, errors.Wrap(ErrInvalidReleaseTime, "deadline must be in the future")
	}
	signer := x.MainSigner(ctx, h.auth)
	if signer == nil {
		return nil, nil, errors.Wrap(errors.ErrUnauthorized, "no signer")
	}
	return &msg, signer.Address(), nil
}

// DepositHandler moves the agreed amount from the depositor's wallet
// into the escrow wallet.
type DepositHandler struct {
	auth   x.Authenticator
	bucket orm.ModelBucket
	oracle fhe.Oracle
	ctrl   cash.Controller
}

var _ veil.Handler = DepositHandler{}

func (h DepositHandler) Check(ctx veil.Context, db veil.KVStore, tx veil.Tx) (*veil.CheckResult, error) {
	if _, _, _, err := h.validate(ctx, db, tx); err != nil {
		return nil, err
	}
	return &veil.CheckResult{GasAllocated: depositCost}, nil
}

func (h DepositHandler) Deliver(ctx veil.Context, db veil.KVStore, tx veil.Tx) (*veil.DeliverResult, error) {
	msg, esc, caller, err := h.validate(ctx, db, tx)
	if err != nil {
		return nil, err
	}

	// The ledger call is conditional, so the escrow becomes Funded even
	// when the depositor's balance was insufficient and an encrypted
	// zero moved. Failing instead would reveal the balance through
	// control flow.
	self := Condition(msg.EscrowID).Address()
	moved, err := h.ctrl.ConfidentialTransferFrom(ctx, db, caller, esc.Depositor, self, esc.Amount)
	if err != nil {
		return nil, err
	}
	if err := h.oracle.Grant(db, moved, self); err != nil {
		return nil, err
	}

	esc.Status = StatusFunded
	if _, err := h.bucket.Put(db, msg.EscrowID, esc); err != nil {
		return nil, errors.Wrap(err, "cannot update escrow")
	}

	events := []veil.Event{
		cash.TransferEvent(esc.Depositor, self),
		veil.NewEvent("escrow/funded", "id", idString(msg.EscrowID)),
	}
	return &veil.DeliverResult{Events: events}, nil
}

func (h DepositHandler) validate(ctx veil.Context, db veil.KVStore, tx veil.Tx) (*DepositMsg, *Escrow, veil.Address, error) {
	var msg DepositMsg
	if err := veil.LoadMsg(tx, &msg); err != nil {
		return nil, nil, nil, err
	}
	esc, err := loadEscrow(db, h.bucket, msg.EscrowID)
	if err != nil {
		return nil, nil, nil, err
	}
	if !h.auth.HasAddress(ctx, esc.Depositor) {
		return nil, nil, nil, errors.Wrap(errors.ErrUnauthorized, "only the depositor may deposit")
	}
	if esc.Status != StatusCreated {
		return nil, nil, nil, errors.Wrapf(ErrInvalidStatus, "cannot deposit on %s escrow", esc.Status)
	}
	return &msg, esc, esc.Depositor, nil
}

// ReleaseHandler pays a funded escrow out to the beneficiary.
type ReleaseHandler struct {
	auth   x.Authenticator
	bucket orm.ModelBucket
	ctrl   cash.Controller
}

var _ veil.Handler = ReleaseHandler{}

func (h ReleaseHandler) Check(ctx veil.Context, db veil.KVStore, tx veil.Tx) (*veil.CheckResult, error) {
	if _, _, err := h.validate(ctx, db, tx); err != nil {
		return nil, err
	}
	return &veil.CheckResult{GasAllocated: releaseCost}, nil
}

func (h ReleaseHandler) Deliver(ctx veil.Context, db veil.KVStore, tx veil.Tx) (*veil.DeliverResult, error) {
	msg, esc, err := h.validate(ctx, db, tx)
	if err != nil {
		return nil, err
	}

	self := Condition(msg.EscrowID).Address()
	if _, err := h.ctrl.ConfidentialTransfer(db, self, esc.Beneficiary, esc.Amount); err != nil {
		return nil, err
	}

	esc.Status = StatusReleased
	if _, err := h.bucket.Put(db, msg.EscrowID, esc); err != nil {
		return nil, errors.Wrap(err, "cannot update escrow")
	}

	events := []veil.Event{
		cash.TransferEvent(self, esc.Beneficiary),
		veil.NewEvent("escrow/released", "id", idString(msg.EscrowID)),
	}
	return &veil.DeliverResult{Events: events}, nil
}

func (h ReleaseHandler) validate(ctx veil.Context, db veil.KVStore, tx veil.Tx) (*ReleaseMsg, *Escrow, error) {
	var msg ReleaseMsg
	if err := veil.LoadMsg(tx, &msg); err != nil {
		return nil, nil, err
	}
	esc, err := loadEscrow(db, h.bucket, msg.EscrowID)
	if err != nil {
		return nil, nil, err
	}
	if !h.auth.HasAddress(ctx, esc.Depositor) {
		return nil, nil, errors.Wrap(errors.ErrUnauthorized, "only the depositor may release")
	}
	if esc.Status != StatusFunded {
		return nil, nil, errors.Wrapf(ErrInvalidStatus, "cannot release %s escrow", esc.Status)
	}
	return &msg, esc, nil
}

// RefundHandler returns the funds of a funded escrow to the depositor
// once the deadline has passed.
type RefundHandler struct {
	auth   x.Authenticator
	bucket orm.ModelBucket
	ctrl   cash.Controller
}

var _ veil.Handler = RefundHandler{}

func (h RefundHandler) Check(ctx veil.Context, db veil.KVStore, tx veil.Tx) (*veil.CheckResult, error) {
	if _, _, err := h.validate(ctx, db, tx); err != nil {
		return nil, err
	}
	return &veil.CheckResult{GasAllocated: refundCost}, nil
}

func (h RefundHandler) Deliver(ctx veil.Context, db veil.KVStore, tx veil.Tx) (*veil.DeliverResult, error) {
	msg, esc, err := h.validate(ctx, db, tx)
	if err != nil {
		return nil, err
	}

	self := Condition(msg.EscrowID).Address()
	if _, err := h.ctrl.ConfidentialTransfer(db, self, esc.Depositor, esc.Amount); err != nil {
		return nil, err
	}

	esc.Status = StatusRefunded
	if _, err := h.bucket.Put(db, msg.EscrowID, esc); err != nil {
		return nil, errors.Wrap(err, "cannot update escrow")
	}

	events := []veil.Event{
		cash.TransferEvent(self, esc.Depositor),
		veil.NewEvent("escrow/refunded", "id", idString(msg.EscrowID)),
	}
	return &veil.DeliverResult{Events: events}, nil
}

func (h RefundHandler) validate(ctx veil.Context, db veil.KVStore, tx veil.Tx) (*RefundMsg, *Escrow, error) {
	var msg RefundMsg
	if err := veil.LoadMsg(tx, &msg); err != nil {
		return nil, nil, err
	}
	esc, err := loadEscrow(db, h.bucket, msg.EscrowID)
	if err != nil {
		return nil, nil, err
	}
	if !h.auth.HasAddress(ctx, esc.Depositor) {
		return nil, nil, errors.Wrap(errors.ErrUnauthorized, "only the depositor may refund")
	}
	if esc.Status != StatusFunded {
		return nil, nil, errors.Wrapf(ErrInvalidStatus, "cannot refund %s escrow", esc.Status)
	}
	if !veil.IsExpired(ctx, esc.ReleaseAfter) {
		return nil, nil, errors.Wrapf(ErrTimeoutNotReached, "deadline %s", esc.ReleaseAfter)
	}
	return &msg, esc, nil
}

func loadEscrow(db veil.ReadOnlyKVStore, bucket orm.ModelBucket, id []byte) (*Escrow, error) {
	var esc Escrow
	switch err := bucket.One(db, id, &esc); {
	case err == nil:
		return &esc, nil
	case errors.ErrNotFound.Is(err):
		return nil, errors.Wrapf(ErrNoEscrow, "id %s", idString(id))
	default:
		return nil, err
	}
}

func idString(id []byte) string {
	if len(id) != 8 {
		return "(invalid)"
	}
	return strconv.FormatUint(binary.BigEndian.Uint64(id), 10)
}
