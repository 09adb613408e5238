/*
Package erc20 contains RPC wrappers for ERC-20 token contracts like the
PestoToken.

TokenReader provides safe read-only methods, Token adds state-changing ones
on top of it using an Actor.
*/
package erc20

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/nspcc-dev/pesto-go/pkg/core/state"
	"github.com/nspcc-dev/pesto-go/pkg/core/transaction"
	"github.com/nspcc-dev/pesto-go/pkg/neorpc/result"
	"github.com/nspcc-dev/pesto-go/pkg/rpcclient/unwrap"
	"github.com/nspcc-dev/pesto-go/pkg/vm/stackitem"
)

// MaxValidDecimals is the maximum sane value of the decimals method result.
const MaxValidDecimals = 77

// Invoker is used by TokenReader to call various methods.
type Invoker interface {
	Call(contract common.Address, method string, params ...any) (*result.Invoke, error)
}

// Actor is used by Token to create and send transactions.
type Actor interface {
	Invoker

	MakeCall(contract common.Address, method string, params ...any) (*transaction.Transaction, error)
	SendCall(contract common.Address, method string, params ...any) (common.Hash, uint32, error)
}

// TokenReader is a reader interface for ERC-20 methods.
type TokenReader struct {
	invoker Invoker
	addr    common.Address
}

// Token provides full ERC-20 interface, both safe and state-changing methods.
type Token struct {
	TokenReader

	actor Actor
}

// TransferEvent represents a Transfer event.
type TransferEvent struct {
	From  common.Address
	To    common.Address
	Value *uint256.Int
}

// ApprovalEvent represents an Approval event.
type ApprovalEvent struct {
	Owner   common.Address
	Spender common.Address
	Value   *uint256.Int
}

// NewReader creates an instance of TokenReader for the contract with the given
// address using the given invoker.
func NewReader(invoker Invoker, addr common.Address) *TokenReader {
	return &TokenReader{invoker, addr}
}

// New creates an instance of Token for the contract with the given address
// using the given actor.
func New(actor Actor, addr common.Address) *Token {
	return &Token{*NewReader(actor, addr), actor}
}

// Address returns the token contract address.
func (t *TokenReader) Address() common.Address {
	return t.addr
}

// Name returns the full token name.
func (t *TokenReader) Name() (string, error) {
	return unwrap.UTF8String(t.invoker.Call(t.addr, "name"))
}

// Symbol returns a short token identifier.
func (t *TokenReader) Symbol() (string, error) {
	return unwrap.UTF8String(t.invoker.Call(t.addr, "symbol"))
}

// Decimals returns the number of decimals used by token, values higher than
// MaxValidDecimals are treated as an error.
func (t *TokenReader) Decimals() (uint8, error) {
	dec, err := unwrap.Uint8(t.invoker.Call(t.addr, "decimals"))
	if err != nil {
		return 0, err
	}
	if dec > MaxValidDecimals {
		return 0, fmt.Errorf("invalid decimals: %d", dec)
	}
	return dec, nil
}

// TotalSupply returns the amount of minted tokens.
func (t *TokenReader) TotalSupply() (*uint256.Int, error) {
	return unwrap.Uint256(t.invoker.Call(t.addr, "totalSupply"))
}

// BalanceOf returns the token balance of the given account.
func (t *TokenReader) BalanceOf(account common.Address) (*uint256.Int, error) {
	return unwrap.Uint256(t.invoker.Call(t.addr, "balanceOf", account))
}

// Allowance returns the amount spender is still allowed to withdraw from the
// owner.
func (t *TokenReader) Allowance(owner, spender common.Address) (*uint256.Int, error) {
	return unwrap.Uint256(t.invoker.Call(t.addr, "allowance", owner, spender))
}

// Transfer moves the amount of tokens from the actor account to the given
// one. It returns the transaction hash and the height to wait for, the
// transaction may still fail on execution.
func (t *Token) Transfer(to common.Address, amount *uint256.Int) (common.Hash, uint32, error) {
	return t.actor.SendCall(t.addr, "transfer", to, amount)
}

// TransferTransaction creates a signed transfer transaction without sending
// it.
func (t *Token) TransferTransaction(to common.Address, amount *uint256.Int) (*transaction.Transaction, error) {
	return t.actor.MakeCall(t.addr, "transfer", to, amount)
}

// Approve sets the amount spender can withdraw from the actor account.
func (t *Token) Approve(spender common.Address, amount *uint256.Int) (common.Hash, uint32, error) {
	return t.actor.SendCall(t.addr, "approve", spender, amount)
}

// ApproveTransaction creates a signed approve transaction without sending it.
func (t *Token) ApproveTransaction(spender common.Address, amount *uint256.Int) (*transaction.Transaction, error) {
	return t.actor.MakeCall(t.addr, "approve", spender, amount)
}

// TransferFrom moves the amount of tokens from the given account using the
// allowance of the actor account.
func (t *Token) TransferFrom(from, to common.Address, amount *uint256.Int) (common.Hash, uint32, error) {
	return t.actor.SendCall(t.addr, "transferFrom", from, to, amount)
}

// IncreaseAllowance atomically increases the allowance granted to spender.
func (t *Token) IncreaseAllowance(spender common.Address, added *uint256.Int) (common.Hash, uint32, error) {
	return t.actor.SendCall(t.addr, "increaseAllowance", spender, added)
}

// DecreaseAllowance atomically decreases the allowance granted to spender.
func (t *Token) DecreaseAllowance(spender common.Address, subtracted *uint256.Int) (common.Hash, uint32, error) {
	return t.actor.SendCall(t.addr, "decreaseAllowance", spender, subtracted)
}

// TransferEventsFromApplicationLog retrieves all Transfer events emitted by
// the given contract from the provided execution result.
func TransferEventsFromApplicationLog(aer *state.AppExecResult, contract common.Address) ([]*TransferEvent, error) {
	var res []*TransferEvent
	err := walkEvents(aer, contract, "Transfer", func(arr []stackitem.Item) error {
		e := new(TransferEvent)
		if err := e.fromItems(arr); err != nil {
			return err
		}
		res = append(res, e)
		return nil
	})
	return res, err
}

// ApprovalEventsFromApplicationLog retrieves all Approval events emitted by
// the given contract from the provided execution result.
func ApprovalEventsFromApplicationLog(aer *state.AppExecResult, contract common.Address) ([]*ApprovalEvent, error) {
	var res []*ApprovalEvent
	err := walkEvents(aer, contract, "Approval", func(arr []stackitem.Item) error {
		e := new(ApprovalEvent)
		if err := e.fromItems(arr); err != nil {
			return err
		}
		res = append(res, e)
		return nil
	})
	return res, err
}

// FromStackItem converts the provided [stackitem.Array] to TransferEvent.
func (e *TransferEvent) FromStackItem(item *stackitem.Array) error {
	if item == nil {
		return errors.New("nil item")
	}
	return e.fromItems(item.Value().([]stackitem.Item))
}

func (e *TransferEvent) fromItems(arr []stackitem.Item) error {
	var err error
	e.From, e.To, e.Value, err = decodeTriple(arr, "From", "To")
	return err
}

// FromStackItem converts the provided [stackitem.Array] to ApprovalEvent.
func (e *ApprovalEvent) FromStackItem(item *stackitem.Array) error {
	if item == nil {
		return errors.New("nil item")
	}
	return e.fromItems(item.Value().([]stackitem.Item))
}

func (e *ApprovalEvent) fromItems(arr []stackitem.Item) error {
	var err error
	e.Owner, e.Spender, e.Value, err = decodeTriple(arr, "Owner", "Spender")
	return err
}

func decodeTriple(arr []stackitem.Item, first, second string) (common.Address, common.Address, *uint256.Int, error) {
	if len(arr) != 3 {
		return common.Address{}, common.Address{}, nil, errors.New("wrong number of event parameters")
	}
	a, err := stackitem.ToAddress(arr[0])
	if err != nil {
		return common.Address{}, common.Address{}, nil, fmt.Errorf("invalid %s: %w", first, err)
	}
	b, err := stackitem.ToAddress(arr[1])
	if err != nil {
		return common.Address{}, common.Address{}, nil, fmt.Errorf("invalid %s: %w", second, err)
	}
	v, err := stackitem.ToUint256(arr[2])
	if err != nil {
		return common.Address{}, common.Address{}, nil, fmt.Errorf("invalid Value: %w", err)
	}
	return a, b, v, nil
}

func walkEvents(aer *state.AppExecResult, contract common.Address, name string, f func([]stackitem.Item) error) error {
	if aer == nil {
		return errors.New("nil application log")
	}
	for i, e := range aer.Events {
		if e.Contract != contract || e.Name != name {
			continue
		}
		if e.Item == nil {
			return fmt.Errorf("event #%d: nil item", i)
		}
		if err := f(e.Item.Value().([]stackitem.Item)); err != nil {
			return fmt.Errorf("failed to decode event #%d: %w", i, err)
		}
	}
	return nil
}
