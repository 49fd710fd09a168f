package cash

import (
	"strconv"

	"github.com/veil-one/veil"
	"github.com/veil-one/veil/errors"
	"github.com/veil-one/veil/x"
	"github.com/veil-one/veil/x/fhe"
)

const (
	sendCost        int64 = 300
	setOperatorCost int64 = 50
)

// RegisterRoutes will instantiate and register all handlers in this
// package.
func RegisterRoutes(r veil.Registry, auth x.Authenticator, oracle fhe.Oracle, ctrl Controller) {
	r.Handle(&SendMsg{}, SendHandler{auth: auth, oracle: oracle, ctrl: ctrl})
	r.Handle(&SetOperatorMsg{}, SetOperatorHandler{auth: auth, ctrl: ctrl})
}

// TransferEvent builds the notification of a confidential transfer.
// Every ledger move must emit one, no matter which extension drove it.
// It carries the endpoints and never an amount.
func TransferEvent(from, to veil.Address) veil.Event {
	return veil.NewEvent("cash/transfer",
		"from", from.String(),
		"to", to.String(),
	)
}

// SendHandler processes confidential transfers.
type SendHandler struct {
	auth   x.Authenticator
	oracle fhe.Oracle
	ctrl   Controller
}

var _ veil.Handler = SendHandler{}

func (h SendHandler) Check(ctx veil.Context, db veil.KVStore, tx veil.Tx) (*veil.CheckResult, error) {
	if _, _, err := h.validate(ctx, tx); err != nil {
		return nil, err
	}
	return &veil.CheckResult{GasAllocated: sendCost}, nil
}

func (h SendHandler) Deliver(ctx veil.Context, db veil.KVStore, tx veil.Tx) (*veil.DeliverResult, error) {
	msg, caller, err := h.validate(ctx, tx)
	if err != nil {
		return nil, err
	}

	source := msg.Source
	if source == nil {
		source = caller
	}

	amount, err := h.oracle.FromExternal(db, msg.AmountBundle, msg.AmountProof)
	if err != nil {
		return nil, errors.Wrap(err, "amount")
	}
	if _, err := h.ctrl.ConfidentialTransferFrom(ctx, db, caller, source, msg.Destination, amount); err != nil {
		return nil, err
	}

	ev := TransferEvent(source, msg.Destination)
	return &veil.DeliverResult{Events: []veil.Event{ev}}, nil
}

// validate extracts the message and the main signer. Operator
// authorization against the source wallet is state dependent and is
// left to the controller.
func (h SendHandler) validate(ctx veil.Context, tx veil.Tx) (*SendMsg, veil.Address, error) {
	var msg SendMsg
	if err := veil.LoadMsg(tx, &msg); err != nil {
		return nil, nil, err
	}
	signer := x.MainSigner(ctx, h.auth)
	if signer == nil {
		return nil, nil, errors.Wrap(errors.ErrUnauthorized, "no signer")
	}
	return &msg, signer.Address(), nil
}

// SetOperatorHandler processes spending delegations.
type SetOperatorHandler struct {
	auth x.Authenticator
	ctrl Controller
}

var _ veil.Handler = SetOperatorHandler{}

func (h SetOperatorHandler) Check(ctx veil.Context, db veil.KVStore, tx veil.Tx) (*veil.CheckResult, error) {
	if _, _, err := h.validate(ctx, tx); err != nil {
		return nil, err
	}
	return &veil.CheckResult{GasAllocated: setOperatorCost}, nil
}

func (h SetOperatorHandler) Deliver(ctx veil.Context, db veil.KVStore, tx veil.Tx) (*veil.DeliverResult, error) {
	msg, holder, err := h.validate(ctx, tx)
	if err != nil {
		return nil, err
	}
	if err := h.ctrl.SetOperator(db, holder, msg.Spender, msg.Until); err != nil {
		return nil, err
	}
	ev := veil.NewEvent("cash/operator",
		"holder", holder.String(),
		"spender", msg.Spender.String(),
		"until", strconv.FormatInt(int64(msg.Until), 10),
	)
	return &veil.DeliverResult{Events: []veil.Event{ev}}, nil
}

func (h SetOperatorHandler) validate(ctx veil.Context, tx veil.Tx) (*SetOperatorMsg, veil.Address, error) {
	var msg SetOperatorMsg
	if err := veil.LoadMsg(tx, &msg); err != nil {
		return nil, nil, err
	}
	signer := x.MainSigner(ctx, h.auth)
	if signer == nil {
		return nil, nil, errors.Wrap(errors.ErrUnauthorized, "no signer")
	}
	return &msg, signer.Address(), nil
}
