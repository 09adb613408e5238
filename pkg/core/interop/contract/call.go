// Package contract implements contract deployment and cross-contract calls.
package contract

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/nspcc-dev/pesto-go/pkg/core/interop"
	"github.com/nspcc-dev/pesto-go/pkg/core/state"
	"github.com/nspcc-dev/pesto-go/pkg/core/storage"
	"github.com/nspcc-dev/pesto-go/pkg/smartcontract"
	"github.com/nspcc-dev/pesto-go/pkg/smartcontract/manifest"
	"github.com/nspcc-dev/pesto-go/pkg/vm/stackitem"
)

// CreateAddress returns the address of a contract deployed by the sender
// with the given nonce.
func CreateAddress(sender common.Address, nonce uint64) common.Address {
	return crypto.CreateAddress(sender, nonce)
}

// IsContract checks whether there is a contract deployed at the address.
func IsContract(ic *interop.Context, addr common.Address) bool {
	_, err := ic.GetContract(addr)
	return err == nil
}

// Deploy creates a new instance of the contract from the named factory and
// runs its constructor. The contract address is derived from the transaction
// sender and nonce.
func Deploy(ic *interop.Context, factory string, args []stackitem.Item) common.Address {
	if ic.Tx == nil {
		interop.Revert("deployment outside of transaction")
	}
	impl, err := ic.Factories.GetFactory(factory)
	if err != nil {
		interop.Revert("%s", err)
	}
	md := impl.Metadata()
	params := []manifest.Parameter{}
	if md.Constructor != nil {
		params = md.Constructor.MD.Parameters
	}
	checkArgs(manifest.MethodConstructor, params, args)

	addr := CreateAddress(ic.Tx.Sender, ic.Tx.Nonce)
	if _, err := ic.GetContract(addr); err == nil {
		interop.Revert("contract %s already exists", addr)
	} else if !errors.Is(err, storage.ErrKeyNotFound) {
		panic(err)
	}
	cs := &state.Contract{
		Address:    addr,
		Factory:    md.Name,
		Deployer:   ic.Tx.Sender,
		TxHash:     ic.Tx.Hash(),
		BlockIndex: ic.BlockHeight(),
		Manifest:   md.Manifest,
	}
	if err := ic.DAO.PutContractState(cs); err != nil {
		panic(fmt.Errorf("can't save contract state: %w", err))
	}
	if md.Constructor != nil {
		ic.PushFrame(cs, impl, false)
		ic.GasConsumed += md.Constructor.Price
		md.Constructor.Func(ic, args)
		ic.PopFrame()
	}
	return addr
}

// Call invokes the method of the contract deployed at addr. The executing
// contract (or the transaction sender) becomes the caller.
func Call(ic *interop.Context, addr common.Address, method string, args ...stackitem.Item) stackitem.Item {
	cs, err := ic.GetContract(addr)
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			interop.Revert("call to non-contract address %s", addr)
		}
		panic(err)
	}
	impl, err := ic.Factories.GetFactory(cs.Factory)
	if err != nil {
		panic(fmt.Errorf("contract %s: %w", addr, err))
	}
	if method == manifest.MethodConstructor {
		interop.Revert("constructor can't be called")
	}
	m, ok := impl.Metadata().GetMethod(method, len(args))
	if !ok {
		interop.Revert("method %q with %d parameters not found in %s", method, len(args), cs.Factory)
	}
	checkArgs(method, m.MD.Parameters, args)

	ic.PushFrame(cs, impl, m.MD.Safe)
	ic.GasConsumed += m.Price
	res := m.Func(ic, args)
	ic.PopFrame()

	if m.MD.ReturnType == smartcontract.VoidType {
		return stackitem.Null{}
	}
	if err := m.MD.ReturnType.CheckItem(res); err != nil {
		panic(fmt.Errorf("method %s returned invalid value: %w", method, err))
	}
	return res
}

// HasMethod checks whether the contract deployed at addr has the method with
// the given number of parameters.
func HasMethod(ic *interop.Context, addr common.Address, method string, paramCount int) bool {
	cs, err := ic.GetContract(addr)
	if err != nil {
		return false
	}
	return cs.Manifest.ABI.GetMethod(method, paramCount) != nil
}

func checkArgs(method string, params []manifest.Parameter, args []stackitem.Item) {
	if len(params) != len(args) {
		interop.Revert("invalid argument count for %s: %d (expected %d)", method, len(args), len(params))
	}
	for i := range params {
		if err := params[i].Type.CheckItem(args[i]); err != nil {
			interop.Revert("invalid argument %q for %s: %s", params[i].Name, method, err)
		}
	}
}
