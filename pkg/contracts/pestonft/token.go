// Package pestonft implements PestoNftToken, an owner-minted ERC-721
// collection.
package pestonft

import (
	"bytes"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/nspcc-dev/pesto-go/pkg/contracts/nativeutil"
	"github.com/nspcc-dev/pesto-go/pkg/core/interop"
	"github.com/nspcc-dev/pesto-go/pkg/core/interop/contract"
	"github.com/nspcc-dev/pesto-go/pkg/core/interop/runtime"
	"github.com/nspcc-dev/pesto-go/pkg/core/interop/storage"
	"github.com/nspcc-dev/pesto-go/pkg/smartcontract"
	"github.com/nspcc-dev/pesto-go/pkg/smartcontract/manifest"
	"github.com/nspcc-dev/pesto-go/pkg/vm/stackitem"
)

// Collection metadata.
const (
	FactoryName = "PestoNftToken"
	Name        = "PestoNftToken"
	Symbol      = "NONFUN"
)

// ERC-165 interface identifiers.
var (
	InterfaceIDERC165 = [4]byte{0x01, 0xff, 0xc9, 0xa7}
	InterfaceIDERC721 = [4]byte{0x80, 0xac, 0x58, 0xcd}
)

const (
	prefixOwner            = 0x01
	prefixBalance          = 0x02
	prefixTokenApproval    = 0x03
	prefixOperatorApproval = 0x04
)

var (
	ownerKey       = []byte{0x05}
	totalSupplyKey = []byte{0x06}
)

// Token is an ERC-721 collection contract.
type Token struct {
	interop.ContractMD
	ownable nativeutil.Ownable
}

// New returns the PestoNftToken contract implementation.
func New() *Token {
	t := &Token{
		ContractMD: *interop.NewContractMD(FactoryName),
		ownable:    nativeutil.Ownable{Key: ownerKey},
	}

	t.AddConstructor(nativeutil.NewMethodAndPrice(t.construct, nativeutil.PriceWrite))

	desc := nativeutil.NewSafeDescriptor("name", smartcontract.StringType)
	t.AddMethod(nativeutil.NewMethodAndPrice(t.name, nativeutil.PriceRead), desc)

	desc = nativeutil.NewSafeDescriptor("symbol", smartcontract.StringType)
	t.AddMethod(nativeutil.NewMethodAndPrice(t.symbol, nativeutil.PriceRead), desc)

	desc = nativeutil.NewSafeDescriptor("totalSupply", smartcontract.Uint256Type)
	t.AddMethod(nativeutil.NewMethodAndPrice(t.totalSupply, nativeutil.PriceRead), desc)

	desc = nativeutil.NewSafeDescriptor("supportsInterface", smartcontract.BoolType,
		manifest.NewParameter("interfaceId", smartcontract.Bytes4Type))
	t.AddMethod(nativeutil.NewMethodAndPrice(t.supportsInterface, nativeutil.PriceRead), desc)

	desc = nativeutil.NewSafeDescriptor("balanceOf", smartcontract.Uint256Type,
		manifest.NewParameter("owner", smartcontract.AddressType))
	t.AddMethod(nativeutil.NewMethodAndPrice(t.balanceOf, nativeutil.PriceRead), desc)

	desc = nativeutil.NewSafeDescriptor("ownerOf", smartcontract.AddressType,
		manifest.NewParameter("tokenId", smartcontract.Uint256Type))
	t.AddMethod(nativeutil.NewMethodAndPrice(t.ownerOf, nativeutil.PriceRead), desc)

	desc = nativeutil.NewDescriptor("approve", smartcontract.VoidType,
		manifest.NewParameter("to", smartcontract.AddressType),
		manifest.NewParameter("tokenId", smartcontract.Uint256Type))
	t.AddMethod(nativeutil.NewMethodAndPrice(t.approve, nativeutil.PriceWrite), desc)

	desc = nativeutil.NewSafeDescriptor("getApproved", smartcontract.AddressType,
		manifest.NewParameter("tokenId", smartcontract.Uint256Type))
	t.AddMethod(nativeutil.NewMethodAndPrice(t.getApproved, nativeutil.PriceRead), desc)

	desc = nativeutil.NewDescriptor("setApprovalForAll", smartcontract.VoidType,
		manifest.NewParameter("operator", smartcontract.AddressType),
		manifest.NewParameter("approved", smartcontract.BoolType))
	t.AddMethod(nativeutil.NewMethodAndPrice(t.setApprovalForAll, nativeutil.PriceWrite), desc)

	desc = nativeutil.NewSafeDescriptor("isApprovedForAll", smartcontract.BoolType,
		manifest.NewParameter("owner", smartcontract.AddressType),
		manifest.NewParameter("operator", smartcontract.AddressType))
	t.AddMethod(nativeutil.NewMethodAndPrice(t.isApprovedForAll, nativeutil.PriceRead), desc)

	desc = nativeutil.NewDescriptor("transferFrom", smartcontract.VoidType,
		manifest.NewParameter("from", smartcontract.AddressType),
		manifest.NewParameter("to", smartcontract.AddressType),
		manifest.NewParameter("tokenId", smartcontract.Uint256Type))
	t.AddMethod(nativeutil.NewMethodAndPrice(t.transferFrom, nativeutil.PriceWrite), desc)

	desc = nativeutil.NewDescriptor("safeTransferFrom", smartcontract.VoidType,
		manifest.NewParameter("from", smartcontract.AddressType),
		manifest.NewParameter("to", smartcontract.AddressType),
		manifest.NewParameter("tokenId", smartcontract.Uint256Type))
	t.AddMethod(nativeutil.NewMethodAndPrice(t.safeTransferFrom, nativeutil.PriceWrite), desc)

	desc = nativeutil.NewDescriptor("safeTransferFrom", smartcontract.VoidType,
		manifest.NewParameter("from", smartcontract.AddressType),
		manifest.NewParameter("to", smartcontract.AddressType),
		manifest.NewParameter("tokenId", smartcontract.Uint256Type),
		manifest.NewParameter("data", smartcontract.BytesType))
	t.AddMethod(nativeutil.NewMethodAndPrice(t.safeTransferFrom, nativeutil.PriceWrite), desc)

	desc = nativeutil.NewDescriptor("mintCollectionNFT", smartcontract.VoidType,
		manifest.NewParameter("collector", smartcontract.AddressType),
		manifest.NewParameter("tokenId", smartcontract.Uint256Type))
	t.AddMethod(nativeutil.NewMethodAndPrice(t.mintCollectionNFT, nativeutil.PriceWrite), desc)

	t.AddEvent("Transfer",
		manifest.NewParameter("from", smartcontract.AddressType),
		manifest.NewParameter("to", smartcontract.AddressType),
		manifest.NewParameter("tokenId", smartcontract.Uint256Type))
	t.AddEvent("Approval",
		manifest.NewParameter("owner", smartcontract.AddressType),
		manifest.NewParameter("approved", smartcontract.AddressType),
		manifest.NewParameter("tokenId", smartcontract.Uint256Type))
	t.AddEvent("ApprovalForAll",
		manifest.NewParameter("owner", smartcontract.AddressType),
		manifest.NewParameter("operator", smartcontract.AddressType),
		manifest.NewParameter("approved", smartcontract.BoolType))
	t.AddStandard(manifest.ERC721StandardName)

	t.ownable.Register(&t.ContractMD)
	return t
}

// Metadata implements the interop.Contract interface.
func (t *Token) Metadata() *interop.ContractMD {
	return &t.ContractMD
}

func makeOwnerKey(id *uint256.Int) []byte {
	return storage.Key([]byte{prefixOwner}, nativeutil.TokenKey(id))
}

func makeBalanceKey(addr common.Address) []byte {
	return storage.Key([]byte{prefixBalance}, addr.Bytes())
}

func makeTokenApprovalKey(id *uint256.Int) []byte {
	return storage.Key([]byte{prefixTokenApproval}, nativeutil.TokenKey(id))
}

func makeOperatorKey(owner, operator common.Address) []byte {
	return storage.Key([]byte{prefixOperatorApproval}, owner.Bytes(), operator.Bytes())
}

func (t *Token) construct(ic *interop.Context, _ []stackitem.Item) stackitem.Item {
	t.ownable.SetOwner(ic, ic.Caller())
	return stackitem.Null{}
}

func (t *Token) name(_ *interop.Context, _ []stackitem.Item) stackitem.Item {
	return stackitem.Make(Name)
}

func (t *Token) symbol(_ *interop.Context, _ []stackitem.Item) stackitem.Item {
	return stackitem.Make(Symbol)
}

func (t *Token) totalSupply(ic *interop.Context, _ []stackitem.Item) stackitem.Item {
	return stackitem.Make(storage.GetUint256(ic, totalSupplyKey))
}

func (t *Token) supportsInterface(_ *interop.Context, args []stackitem.Item) stackitem.Item {
	id := nativeutil.ToBytes(args[0])
	return stackitem.Make(bytes.Equal(id, InterfaceIDERC165[:]) || bytes.Equal(id, InterfaceIDERC721[:]))
}

func (t *Token) balanceOf(ic *interop.Context, args []stackitem.Item) stackitem.Item {
	owner := nativeutil.ToAddress(args[0])
	interop.Require(!nativeutil.IsZero(owner), "ERC721: address zero is not a valid owner")
	return stackitem.Make(storage.GetUint256(ic, makeBalanceKey(owner)))
}

func (t *Token) ownerOf(ic *interop.Context, args []stackitem.Item) stackitem.Item {
	return stackitem.Make(t.requireOwner(ic, nativeutil.ToUint256(args[0])))
}

// requireOwner returns the owner of the minted token and reverts for
// nonexistent ones.
func (t *Token) requireOwner(ic *interop.Context, id *uint256.Int) common.Address {
	owner := storage.GetAddress(ic, makeOwnerKey(id))
	interop.Require(!nativeutil.IsZero(owner), "ERC721: invalid token ID")
	return owner
}

func (t *Token) approve(ic *interop.Context, args []stackitem.Item) stackitem.Item {
	to := nativeutil.ToAddress(args[0])
	id := nativeutil.ToUint256(args[1])
	owner := t.requireOwner(ic, id)
	interop.Require(to != owner, "ERC721: approval to current owner")
	caller := ic.Caller()
	interop.Require(caller == owner || t.isOperator(ic, owner, caller),
		"ERC721: approve caller is not token owner or approved for all")
	t.setApproval(ic, owner, to, id)
	return stackitem.Null{}
}

func (t *Token) getApproved(ic *interop.Context, args []stackitem.Item) stackitem.Item {
	id := nativeutil.ToUint256(args[0])
	t.requireOwner(ic, id)
	return stackitem.Make(storage.GetAddress(ic, makeTokenApprovalKey(id)))
}

func (t *Token) setApprovalForAll(ic *interop.Context, args []stackitem.Item) stackitem.Item {
	operator := nativeutil.ToAddress(args[0])
	approved := nativeutil.ToBool(args[1])
	owner := ic.Caller()
	interop.Require(owner != operator, "ERC721: approve to caller")
	storage.PutBool(ic, makeOperatorKey(owner, operator), approved)
	runtime.Notify(ic, "ApprovalForAll", stackitem.Make(owner), stackitem.Make(operator), stackitem.Make(approved))
	return stackitem.Null{}
}

func (t *Token) isApprovedForAll(ic *interop.Context, args []stackitem.Item) stackitem.Item {
	owner := nativeutil.ToAddress(args[0])
	operator := nativeutil.ToAddress(args[1])
	return stackitem.Make(t.isOperator(ic, owner, operator))
}

func (t *Token) isOperator(ic *interop.Context, owner, operator common.Address) bool {
	return storage.GetBool(ic, makeOperatorKey(owner, operator))
}

func (t *Token) transferFrom(ic *interop.Context, args []stackitem.Item) stackitem.Item {
	from := nativeutil.ToAddress(args[0])
	to := nativeutil.ToAddress(args[1])
	id := nativeutil.ToUint256(args[2])
	t.checkAuthorized(ic, id)
	t.move(ic, from, to, id)
	return stackitem.Null{}
}

// safeTransferFrom serves both overloads, data is empty for the 3-argument one.
func (t *Token) safeTransferFrom(ic *interop.Context, args []stackitem.Item) stackitem.Item {
	from := nativeutil.ToAddress(args[0])
	to := nativeutil.ToAddress(args[1])
	id := nativeutil.ToUint256(args[2])
	var data []byte
	if len(args) == 4 {
		data = nativeutil.ToBytes(args[3])
	}
	t.checkAuthorized(ic, id)
	t.move(ic, from, to, id)
	t.checkOnERC721Received(ic, from, to, id, data)
	return stackitem.Null{}
}

func (t *Token) mintCollectionNFT(ic *interop.Context, args []stackitem.Item) stackitem.Item {
	t.ownable.CheckOwner(ic)
	to := nativeutil.ToAddress(args[0])
	id := nativeutil.ToUint256(args[1])
	interop.Require(!nativeutil.IsZero(to), "ERC721: mint to the zero address")
	interop.Require(nativeutil.IsZero(storage.GetAddress(ic, makeOwnerKey(id))), "ERC721: token already minted")

	storage.PutAddress(ic, makeOwnerKey(id), to)
	t.addBalance(ic, to, 1)
	supply := storage.GetUint256(ic, totalSupplyKey)
	storage.PutUint256(ic, totalSupplyKey, nativeutil.Add(supply, uint256.NewInt(1)))
	runtime.Notify(ic, "Transfer", stackitem.Make(common.Address{}), stackitem.Make(to), stackitem.Make(id))
	return stackitem.Null{}
}

// checkAuthorized reverts unless the caller owns the token or is approved to
// manage it.
func (t *Token) checkAuthorized(ic *interop.Context, id *uint256.Int) {
	owner := t.requireOwner(ic, id)
	caller := ic.Caller()
	ok := caller == owner ||
		t.isOperator(ic, owner, caller) ||
		storage.GetAddress(ic, makeTokenApprovalKey(id)) == caller
	interop.Require(ok, "ERC721: caller is not token owner or approved")
}

func (t *Token) move(ic *interop.Context, from, to common.Address, id *uint256.Int) {
	owner := t.requireOwner(ic, id)
	interop.Require(owner == from, "ERC721: transfer from incorrect owner")
	interop.Require(!nativeutil.IsZero(to), "ERC721: transfer to the zero address")

	storage.Delete(ic, makeTokenApprovalKey(id))
	t.addBalance(ic, from, -1)
	t.addBalance(ic, to, 1)
	storage.PutAddress(ic, makeOwnerKey(id), to)
	runtime.Notify(ic, "Transfer", stackitem.Make(from), stackitem.Make(to), stackitem.Make(id))
}

func (t *Token) addBalance(ic *interop.Context, addr common.Address, diff int) {
	key := makeBalanceKey(addr)
	bal := storage.GetUint256(ic, key)
	if diff < 0 {
		bal = nativeutil.Sub(bal, uint256.NewInt(uint64(-diff)))
	} else {
		bal = nativeutil.Add(bal, uint256.NewInt(uint64(diff)))
	}
	storage.PutUint256(ic, key, bal)
}

func (t *Token) setApproval(ic *interop.Context, owner, to common.Address, id *uint256.Int) {
	storage.PutAddress(ic, makeTokenApprovalKey(id), to)
	runtime.Notify(ic, "Approval", stackitem.Make(owner), stackitem.Make(to), stackitem.Make(id))
}

// checkOnERC721Received calls the receiver hook of contract recipients and
// requires the receiver selector back. Transfers to accounts aren't checked.
func (t *Token) checkOnERC721Received(ic *interop.Context, from, to common.Address, id *uint256.Int, data []byte) {
	if !contract.IsContract(ic, to) {
		return
	}
	const reason = "ERC721: transfer to non ERC721Receiver implementer"
	interop.Require(contract.HasMethod(ic, to, manifest.MethodOnERC721Received, 4), reason)
	if data == nil {
		data = []byte{}
	}
	res := contract.Call(ic, to, manifest.MethodOnERC721Received,
		stackitem.Make(ic.Caller()), stackitem.Make(from), stackitem.Make(id), stackitem.Make(data))
	sel, err := res.TryBytes()
	interop.Require(err == nil && bytes.Equal(sel, ReceiverSelector[:]), reason)
}

// ReceiverSelector is the value onERC721Received must return to accept a
// token.
var ReceiverSelector = [4]byte{0x15, 0x0b, 0x7a, 0x02}
