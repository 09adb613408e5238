/*
Package erc721 contains RPC wrappers for ERC-721 non-fungible token
contracts like the PestoNftToken.
*/
package erc721

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

// InterfaceID is an ERC-165 interface identifier.
type InterfaceID [4]byte

// Well-known interface identifiers.
var (
	InterfaceERC165 = InterfaceID{0x01, 0xff, 0xc9, 0xa7}
	InterfaceERC721 = InterfaceID{0x80, 0xac, 0x58, 0xcd}
)

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

// TokenReader is a reader interface for ERC-721 methods.
type TokenReader struct {
	invoker Invoker
	addr    common.Address
}

// Token provides both safe and state-changing ERC-721 methods.
type Token struct {
	TokenReader

	actor Actor
}

// TransferEvent represents a Transfer event, From is zero for minted tokens.
type TransferEvent struct {
	From    common.Address
	To      common.Address
	TokenID *uint256.Int
}

// ApprovalEvent represents an Approval event.
type ApprovalEvent struct {
	Owner    common.Address
	Approved common.Address
	TokenID  *uint256.Int
}

// ApprovalForAllEvent represents an ApprovalForAll event.
type ApprovalForAllEvent struct {
	Owner    common.Address
	Operator common.Address
	Approved bool
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

// Name returns the collection name.
func (t *TokenReader) Name() (string, error) {
	return unwrap.UTF8String(t.invoker.Call(t.addr, "name"))
}

// Symbol returns a short collection identifier.
func (t *TokenReader) Symbol() (string, error) {
	return unwrap.UTF8String(t.invoker.Call(t.addr, "symbol"))
}

// TotalSupply returns the number of minted tokens.
func (t *TokenReader) TotalSupply() (*uint256.Int, error) {
	return unwrap.Uint256(t.invoker.Call(t.addr, "totalSupply"))
}

// SupportsInterface checks whether the contract implements the given
// interface.
func (t *TokenReader) SupportsInterface(id InterfaceID) (bool, error) {
	return unwrap.Bool(t.invoker.Call(t.addr, "supportsInterface", [4]byte(id)))
}

// BalanceOf returns the number of tokens owned by the account.
func (t *TokenReader) BalanceOf(owner common.Address) (*uint256.Int, error) {
	return unwrap.Uint256(t.invoker.Call(t.addr, "balanceOf", owner))
}

// OwnerOf returns the owner of the token, it fails for tokens not minted.
func (t *TokenReader) OwnerOf(id *uint256.Int) (common.Address, error) {
	return unwrap.Address(t.invoker.Call(t.addr, "ownerOf", id))
}

// GetApproved returns the address approved for the token, zero address if
// there is none.
func (t *TokenReader) GetApproved(id *uint256.Int) (common.Address, error) {
	return unwrap.Address(t.invoker.Call(t.addr, "getApproved", id))
}

// IsApprovedForAll checks whether the operator manages all tokens of the
// owner.
func (t *TokenReader) IsApprovedForAll(owner, operator common.Address) (bool, error) {
	return unwrap.Bool(t.invoker.Call(t.addr, "isApprovedForAll", owner, operator))
}

// Approve allows the given account to transfer the token.
func (t *Token) Approve(to common.Address, id *uint256.Int) (common.Hash, uint32, error) {
	return t.actor.SendCall(t.addr, "approve", to, id)
}

// SetApprovalForAll grants or revokes the operator right to manage all tokens
// of the actor account.
func (t *Token) SetApprovalForAll(operator common.Address, approved bool) (common.Hash, uint32, error) {
	return t.actor.SendCall(t.addr, "setApprovalForAll", operator, approved)
}

// TransferFrom moves the token without checking the receiver.
func (t *Token) TransferFrom(from, to common.Address, id *uint256.Int) (common.Hash, uint32, error) {
	return t.actor.SendCall(t.addr, "transferFrom", from, to, id)
}

// TransferFromTransaction creates a signed transferFrom transaction without
// sending it.
func (t *Token) TransferFromTransaction(from, to common.Address, id *uint256.Int) (*transaction.Transaction, error) {
	return t.actor.MakeCall(t.addr, "transferFrom", from, to, id)
}

// SafeTransferFrom moves the token, contract receivers must accept it via
// onERC721Received. Data is passed to the receiver if not nil.
func (t *Token) SafeTransferFrom(from, to common.Address, id *uint256.Int, data []byte) (common.Hash, uint32, error) {
	if data == nil {
		return t.actor.SendCall(t.addr, "safeTransferFrom", from, to, id)
	}
	return t.actor.SendCall(t.addr, "safeTransferFrom", from, to, id, data)
}

// MintCollectionNFT mints the token to the collector, it's only allowed for
// the contract owner.
func (t *Token) MintCollectionNFT(collector common.Address, id *uint256.Int) (common.Hash, uint32, error) {
	return t.actor.SendCall(t.addr, "mintCollectionNFT", collector, id)
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

// ApprovalForAllEventsFromApplicationLog retrieves all ApprovalForAll events
// emitted by the given contract from the provided execution result.
func ApprovalForAllEventsFromApplicationLog(aer *state.AppExecResult, contract common.Address) ([]*ApprovalForAllEvent, error) {
	var res []*ApprovalForAllEvent
	err := walkEvents(aer, contract, "ApprovalForAll", func(arr []stackitem.Item) error {
		e := new(ApprovalForAllEvent)
		if err := e.fromItems(arr); err != nil {
			return err
		}
		res = append(res, e)
		return nil
	})
	return res, err
}

func (e *TransferEvent) fromItems(arr []stackitem.Item) error {
	var err error
	e.From, e.To, e.TokenID, err = decodeTriple(arr, "From", "To")
	return err
}

func (e *ApprovalEvent) fromItems(arr []stackitem.Item) error {
	var err error
	e.Owner, e.Approved, e.TokenID, err = decodeTriple(arr, "Owner", "Approved")
	return err
}

func (e *ApprovalForAllEvent) fromItems(arr []stackitem.Item) error {
	if len(arr) != 3 {
		return errors.New("wrong number of event parameters")
	}
	var err error
	if e.Owner, err = stackitem.ToAddress(arr[0]); err != nil {
		return fmt.Errorf("invalid Owner: %w", err)
	}
	if e.Operator, err = stackitem.ToAddress(arr[1]); err != nil {
		return fmt.Errorf("invalid Operator: %w", err)
	}
	if e.Approved, err = arr[2].TryBool(); err != nil {
		return fmt.Errorf("invalid Approved: %w", err)
	}
	return nil
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
	id, err := stackitem.ToUint256(arr[2])
	if err != nil {
		return common.Address{}, common.Address{}, nil, fmt.Errorf("invalid TokenID: %w", err)
	}
	return a, b, id, nil
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
