/*
Package actor provides a way to change chain state via RPC client.

This layer builds on top of the basic RPC client and [invoker] package, it
simplifies creating, signing and sending transactions to the network (since
that's the only way chain state is changed). It's generic enough to be used for
any contract and contract-specific packages build on top of it.
*/
package actor

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/nspcc-dev/pesto-go/pkg/core/state"
	"github.com/nspcc-dev/pesto-go/pkg/core/transaction"
	"github.com/nspcc-dev/pesto-go/pkg/neorpc/result"
	"github.com/nspcc-dev/pesto-go/pkg/rpcclient/invoker"
	"github.com/nspcc-dev/pesto-go/pkg/rpcclient/waiter"
	"github.com/nspcc-dev/pesto-go/pkg/smartcontract"
	"github.com/nspcc-dev/pesto-go/pkg/vm/stackitem"
	"github.com/nspcc-dev/pesto-go/pkg/vm/vmstate"
	"github.com/nspcc-dev/pesto-go/pkg/wallet"
)

// RPCActor is an interface required from the RPC client to successfully
// create and send transactions.
type RPCActor interface {
	invoker.RPCInvoke
	waiter.RPCPollingBased

	GetFactory(name string) (*result.Factory, error)
	GetNonce(addr common.Address) (uint64, error)
	GetVersion() (*result.Version, error)
	SendRawTransaction(tx *transaction.Transaction) (common.Hash, error)
}

// ErrExecFailed is returned by methods awaiting the execution result when the
// transaction ends up in FAULT state.
var ErrExecFailed = errors.New("execution failed")

// Actor keeps a connection to the RPC endpoint and allows to perform
// state-changing actions on behalf of the account. It also provides an
// Invoker interface to perform test calls with the same sender and a Waiter
// to wait for transaction results.
//
// Actor-specific APIs follow the naming scheme where "Make" prefix is used
// for methods that create transactions, while "Send" prefix is used by
// methods that directly transmit created transactions to the RPC server.
type Actor struct {
	invoker.Invoker
	waiter.Waiter

	client  RPCActor
	account *wallet.Account
	version *result.Version
}

// Options are used to create Actor with non-standard waiter settings.
type Options struct {
	// Poll configures the waiter (polling is only used when the client
	// doesn't support websocket events).
	Poll waiter.PollConfig
}

// New creates an Actor instance using the specified RPC interface and the
// account. Upon Actor instance creation a GetVersion call is made and the
// result of it is cached forever (chain id is used for all transactions).
func New(ra RPCActor, acc *wallet.Account) (*Actor, error) {
	return NewTuned(ra, acc, Options{})
}

// NewTuned is the same as New, but allows to change default options.
func NewTuned(ra RPCActor, acc *wallet.Account, opts Options) (*Actor, error) {
	if acc == nil {
		return nil, errors.New("account is required")
	}
	if !acc.CanSign() {
		return nil, fmt.Errorf("account %s can't sign transactions", acc.Address)
	}
	version, err := ra.GetVersion()
	if err != nil {
		return nil, err
	}
	sender := acc.Address
	return &Actor{
		Invoker: *invoker.New(ra, &sender),
		Waiter:  waiter.New(ra, opts.Poll),
		client:  ra,
		account: acc,
		version: version,
	}, nil
}

// Sender returns the address of the account used for transactions.
func (a *Actor) Sender() common.Address {
	return a.account.Address
}

// ChainID returns the chain id used for transactions.
func (a *Actor) ChainID() uint64 {
	return a.version.Protocol.ChainID
}

// GetVersion returns version data from the RPC endpoint cached on actor
// creation.
func (a *Actor) GetVersion() result.Version {
	return *a.version
}

// Client returns the underlying RPC client.
func (a *Actor) Client() RPCActor {
	return a.client
}

// MakeUnsignedCall creates an unsigned transaction calling the contract
// method. Parameters are converted with smartcontract.NewParameterFromValue.
func (a *Actor) MakeUnsignedCall(contract common.Address, method string, params ...any) (*transaction.Transaction, error) {
	args, err := toStackItems(params)
	if err != nil {
		return nil, err
	}
	return a.fill(transaction.NewInvokeTX(contract, method, args))
}

// MakeUnsignedDeploy creates an unsigned transaction deploying a new
// instance of the named contract factory.
func (a *Actor) MakeUnsignedDeploy(factory string, params ...any) (*transaction.Transaction, error) {
	args, err := toStackItems(params)
	if err != nil {
		return nil, err
	}
	return a.fill(transaction.NewDeployTX(factory, args))
}

// MakeCall creates a signed transaction calling the contract method.
func (a *Actor) MakeCall(contract common.Address, method string, params ...any) (*transaction.Transaction, error) {
	tx, err := a.MakeUnsignedCall(contract, method, params...)
	if err != nil {
		return nil, err
	}
	return tx, a.Sign(tx)
}

// MakeDeploy creates a signed deployment transaction.
func (a *Actor) MakeDeploy(factory string, params ...any) (*transaction.Transaction, error) {
	tx, err := a.MakeUnsignedDeploy(factory, params...)
	if err != nil {
		return nil, err
	}
	return tx, a.Sign(tx)
}

// Sign signs the transaction with the actor account.
func (a *Actor) Sign(tx *transaction.Transaction) error {
	if err := a.account.SignTx(tx); err != nil {
		return fmt.Errorf("failed to sign transaction: %w", err)
	}
	return nil
}

// Send sends the signed transaction. It returns the transaction hash and the
// chain height the transaction is expected to be included at (to be used with
// Wait).
func (a *Actor) Send(tx *transaction.Transaction) (common.Hash, uint32, error) {
	h, err := a.client.SendRawTransaction(tx)
	if err != nil {
		return tx.Hash(), 0, err
	}
	count, err := a.client.GetBlockCount()
	if err != nil {
		return h, 0, err
	}
	return h, count - 1, nil
}

// SendCall creates, signs and sends a transaction calling the contract method.
func (a *Actor) SendCall(contract common.Address, method string, params ...any) (common.Hash, uint32, error) {
	tx, err := a.MakeCall(contract, method, params...)
	if err != nil {
		return common.Hash{}, 0, err
	}
	return a.Send(tx)
}

// SendDeploy creates, signs and sends a deployment transaction.
func (a *Actor) SendDeploy(factory string, params ...any) (common.Hash, uint32, error) {
	tx, err := a.MakeDeploy(factory, params...)
	if err != nil {
		return common.Hash{}, 0, err
	}
	return a.Send(tx)
}

// SendCallAndWait sends the call and waits for its execution result. FAULT
// results are returned along with the ErrExecFailed error.
func (a *Actor) SendCallAndWait(contract common.Address, method string, params ...any) (*state.AppExecResult, error) {
	aer, err := a.Wait(a.SendCall(contract, method, params...))
	return checkHalt(aer, err)
}

// Wait is the same as Waiter.Wait, but accepts the Send* results as is.
func (a *Actor) Wait(h common.Hash, until uint32, err error) (*state.AppExecResult, error) {
	return a.Waiter.Wait(h, until, err)
}

func (a *Actor) fill(tx *transaction.Transaction) (*transaction.Transaction, error) {
	nonce, err := a.client.GetNonce(a.account.Address)
	if err != nil {
		return nil, fmt.Errorf("failed to get nonce: %w", err)
	}
	tx.ChainID = a.version.Protocol.ChainID
	tx.Sender = a.account.Address
	tx.Nonce = nonce
	return tx, nil
}

func checkHalt(aer *state.AppExecResult, err error) (*state.AppExecResult, error) {
	if err != nil {
		return nil, err
	}
	if aer.VMState != vmstate.Halt {
		return aer, fmt.Errorf("%w: %s", ErrExecFailed, aer.FaultException)
	}
	return aer, nil
}

func toStackItems(params []any) ([]stackitem.Item, error) {
	ps, err := smartcontract.NewParametersFromValues(params...)
	if err != nil {
		return nil, fmt.Errorf("failed to convert parameters: %w", err)
	}
	return smartcontract.ToStackItems(ps)
}
