// Package pesto implements PestoToken, a fixed-supply ERC-20 token.
package pesto

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/nspcc-dev/pesto-go/pkg/contracts/nativeutil"
	"github.com/nspcc-dev/pesto-go/pkg/core/interop"
	"github.com/nspcc-dev/pesto-go/pkg/core/interop/runtime"
	"github.com/nspcc-dev/pesto-go/pkg/core/interop/storage"
	"github.com/nspcc-dev/pesto-go/pkg/encoding/fixedn"
	"github.com/nspcc-dev/pesto-go/pkg/smartcontract"
	"github.com/nspcc-dev/pesto-go/pkg/smartcontract/manifest"
	"github.com/nspcc-dev/pesto-go/pkg/vm/stackitem"
)

// Token metadata.
const (
	FactoryName = "PestoToken"
	Name        = "PestoToken"
	Symbol      = "PESTO"
	Decimals    = 18
)

// InitialSupply is the amount minted to the deployer, 1 000 000 tokens.
var InitialSupply = fixedn.MustParseUnits("1000000", Decimals)

const (
	prefixBalance   = 0x14
	prefixAllowance = 0x15
)

var totalSupplyKey = []byte{0x0b}

// Token is an ERC-20 token contract.
type Token struct {
	interop.ContractMD
}

// New returns the PestoToken contract implementation.
func New() *Token {
	t := &Token{ContractMD: *interop.NewContractMD(FactoryName)}

	t.AddConstructor(nativeutil.NewMethodAndPrice(t.construct, nativeutil.PriceWrite))

	desc := nativeutil.NewSafeDescriptor("name", smartcontract.StringType)
	t.AddMethod(nativeutil.NewMethodAndPrice(t.name, nativeutil.PriceRead), desc)

	desc = nativeutil.NewSafeDescriptor("symbol", smartcontract.StringType)
	t.AddMethod(nativeutil.NewMethodAndPrice(t.symbol, nativeutil.PriceRead), desc)

	desc = nativeutil.NewSafeDescriptor("decimals", smartcontract.Uint256Type)
	t.AddMethod(nativeutil.NewMethodAndPrice(t.decimals, nativeutil.PriceRead), desc)

	desc = nativeutil.NewSafeDescriptor("totalSupply", smartcontract.Uint256Type)
	t.AddMethod(nativeutil.NewMethodAndPrice(t.totalSupply, nativeutil.PriceRead), desc)

	desc = nativeutil.NewSafeDescriptor("balanceOf", smartcontract.Uint256Type,
		manifest.NewParameter("owner", smartcontract.AddressType))
	t.AddMethod(nativeutil.NewMethodAndPrice(t.balanceOf, nativeutil.PriceRead), desc)

	desc = nativeutil.NewDescriptor("transfer", smartcontract.BoolType,
		manifest.NewParameter("to", smartcontract.AddressType),
		manifest.NewParameter("amount", smartcontract.Uint256Type))
	t.AddMethod(nativeutil.NewMethodAndPrice(t.transfer, nativeutil.PriceWrite), desc)

	desc = nativeutil.NewSafeDescriptor("allowance", smartcontract.Uint256Type,
		manifest.NewParameter("owner", smartcontract.AddressType),
		manifest.NewParameter("spender", smartcontract.AddressType))
	t.AddMethod(nativeutil.NewMethodAndPrice(t.allowance, nativeutil.PriceRead), desc)

	desc = nativeutil.NewDescriptor("approve", smartcontract.BoolType,
		manifest.NewParameter("spender", smartcontract.AddressType),
		manifest.NewParameter("amount", smartcontract.Uint256Type))
	t.AddMethod(nativeutil.NewMethodAndPrice(t.approve, nativeutil.PriceWrite), desc)

	desc = nativeutil.NewDescriptor("transferFrom", smartcontract.BoolType,
		manifest.NewParameter("from", smartcontract.AddressType),
		manifest.NewParameter("to", smartcontract.AddressType),
		manifest.NewParameter("amount", smartcontract.Uint256Type))
	t.AddMethod(nativeutil.NewMethodAndPrice(t.transferFrom, nativeutil.PriceWrite), desc)

	desc = nativeutil.NewDescriptor("increaseAllowance", smartcontract.BoolType,
		manifest.NewParameter("spender", smartcontract.AddressType),
		manifest.NewParameter("addedValue", smartcontract.Uint256Type))
	t.AddMethod(nativeutil.NewMethodAndPrice(t.increaseAllowance, nativeutil.PriceWrite), desc)

	desc = nativeutil.NewDescriptor("decreaseAllowance", smartcontract.BoolType,
		manifest.NewParameter("spender", smartcontract.AddressType),
		manifest.NewParameter("subtractedValue", smartcontract.Uint256Type))
	t.AddMethod(nativeutil.NewMethodAndPrice(t.decreaseAllowance, nativeutil.PriceWrite), desc)

	t.AddEvent("Transfer",
		manifest.NewParameter("from", smartcontract.AddressType),
		manifest.NewParameter("to", smartcontract.AddressType),
		manifest.NewParameter("value", smartcontract.Uint256Type))
	t.AddEvent("Approval",
		manifest.NewParameter("owner", smartcontract.AddressType),
		manifest.NewParameter("spender", smartcontract.AddressType),
		manifest.NewParameter("value", smartcontract.Uint256Type))
	t.AddStandard(manifest.ERC20StandardName)
	return t
}

// Metadata implements the interop.Contract interface.
func (t *Token) Metadata() *interop.ContractMD {
	return &t.ContractMD
}

func makeBalanceKey(addr common.Address) []byte {
	return storage.Key([]byte{prefixBalance}, addr.Bytes())
}

func makeAllowanceKey(owner, spender common.Address) []byte {
	return storage.Key([]byte{prefixAllowance}, owner.Bytes(), spender.Bytes())
}

func (t *Token) construct(ic *interop.Context, _ []stackitem.Item) stackitem.Item {
	t.mint(ic, ic.Caller(), InitialSupply)
	return stackitem.Null{}
}

func (t *Token) name(_ *interop.Context, _ []stackitem.Item) stackitem.Item {
	return stackitem.Make(Name)
}

func (t *Token) symbol(_ *interop.Context, _ []stackitem.Item) stackitem.Item {
	return stackitem.Make(Symbol)
}

func (t *Token) decimals(_ *interop.Context, _ []stackitem.Item) stackitem.Item {
	return stackitem.Make(Decimals)
}

func (t *Token) totalSupply(ic *interop.Context, _ []stackitem.Item) stackitem.Item {
	return stackitem.Make(storage.GetUint256(ic, totalSupplyKey))
}

func (t *Token) balanceOf(ic *interop.Context, args []stackitem.Item) stackitem.Item {
	owner := nativeutil.ToAddress(args[0])
	return stackitem.Make(storage.GetUint256(ic, makeBalanceKey(owner)))
}

func (t *Token) allowance(ic *interop.Context, args []stackitem.Item) stackitem.Item {
	owner := nativeutil.ToAddress(args[0])
	spender := nativeutil.ToAddress(args[1])
	return stackitem.Make(storage.GetUint256(ic, makeAllowanceKey(owner, spender)))
}

func (t *Token) transfer(ic *interop.Context, args []stackitem.Item) stackitem.Item {
	to := nativeutil.ToAddress(args[0])
	amount := nativeutil.ToUint256(args[1])
	t.move(ic, ic.Caller(), to, amount)
	return stackitem.Make(true)
}

func (t *Token) approve(ic *interop.Context, args []stackitem.Item) stackitem.Item {
	spender := nativeutil.ToAddress(args[0])
	amount := nativeutil.ToUint256(args[1])
	t.setAllowance(ic, ic.Caller(), spender, amount)
	return stackitem.Make(true)
}

func (t *Token) transferFrom(ic *interop.Context, args []stackitem.Item) stackitem.Item {
	from := nativeutil.ToAddress(args[0])
	to := nativeutil.ToAddress(args[1])
	amount := nativeutil.ToUint256(args[2])
	t.spendAllowance(ic, from, ic.Caller(), amount)
	t.move(ic, from, to, amount)
	return stackitem.Make(true)
}

func (t *Token) increaseAllowance(ic *interop.Context, args []stackitem.Item) stackitem.Item {
	owner := ic.Caller()
	spender := nativeutil.ToAddress(args[0])
	added := nativeutil.ToUint256(args[1])
	current := storage.GetUint256(ic, makeAllowanceKey(owner, spender))
	t.setAllowance(ic, owner, spender, nativeutil.Add(current, added))
	return stackitem.Make(true)
}

func (t *Token) decreaseAllowance(ic *interop.Context, args []stackitem.Item) stackitem.Item {
	owner := ic.Caller()
	spender := nativeutil.ToAddress(args[0])
	subtracted := nativeutil.ToUint256(args[1])
	current := storage.GetUint256(ic, makeAllowanceKey(owner, spender))
	interop.Require(!current.Lt(subtracted), "ERC20: decreased allowance below zero")
	t.setAllowance(ic, owner, spender, new(uint256.Int).Sub(current, subtracted))
	return stackitem.Make(true)
}

func (t *Token) mint(ic *interop.Context, to common.Address, amount *uint256.Int) {
	interop.Require(!nativeutil.IsZero(to), "ERC20: mint to the zero address")
	supply := storage.GetUint256(ic, totalSupplyKey)
	storage.PutUint256(ic, totalSupplyKey, nativeutil.Add(supply, amount))
	key := makeBalanceKey(to)
	storage.PutUint256(ic, key, nativeutil.Add(storage.GetUint256(ic, key), amount))
	runtime.Notify(ic, "Transfer", stackitem.Make(common.Address{}), stackitem.Make(to), stackitem.Make(amount))
}

func (t *Token) move(ic *interop.Context, from, to common.Address, amount *uint256.Int) {
	interop.Require(!nativeutil.IsZero(from), "ERC20: transfer from the zero address")
	interop.Require(!nativeutil.IsZero(to), "ERC20: transfer to the zero address")

	fromKey := makeBalanceKey(from)
	fromBalance := storage.GetUint256(ic, fromKey)
	interop.Require(!fromBalance.Lt(amount), "ERC20: transfer amount exceeds balance")
	storage.PutUint256(ic, fromKey, new(uint256.Int).Sub(fromBalance, amount))

	// Total supply is fixed, so the recipient balance can't overflow.
	toKey := makeBalanceKey(to)
	storage.PutUint256(ic, toKey, new(uint256.Int).Add(storage.GetUint256(ic, toKey), amount))

	runtime.Notify(ic, "Transfer", stackitem.Make(from), stackitem.Make(to), stackitem.Make(amount))
}

func (t *Token) setAllowance(ic *interop.Context, owner, spender common.Address, amount *uint256.Int) {
	interop.Require(!nativeutil.IsZero(owner), "ERC20: approve from the zero address")
	interop.Require(!nativeutil.IsZero(spender), "ERC20: approve to the zero address")
	storage.PutUint256(ic, makeAllowanceKey(owner, spender), amount)
	runtime.Notify(ic, "Approval", stackitem.Make(owner), stackitem.Make(spender), stackitem.Make(amount))
}

// spendAllowance decreases the allowance, the maximum value means unlimited
// allowance and is never decreased.
func (t *Token) spendAllowance(ic *interop.Context, owner, spender common.Address, amount *uint256.Int) {
	key := makeAllowanceKey(owner, spender)
	current := storage.GetUint256(ic, key)
	if current.Eq(maxUint256) {
		return
	}
	interop.Require(!current.Lt(amount), "ERC20: insufficient allowance")
	t.setAllowance(ic, owner, spender, new(uint256.Int).Sub(current, amount))
}

var maxUint256 = new(uint256.Int).SetAllOne()
