package neotest

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/nspcc-dev/pesto-go/pkg/core/state"
	"github.com/nspcc-dev/pesto-go/pkg/core/transaction"
	"github.com/nspcc-dev/pesto-go/pkg/vm/stackitem"
	"github.com/nspcc-dev/pesto-go/pkg/vm/vmstate"
	"github.com/stretchr/testify/require"
)

// ContractInvoker is a client for a specific contract.
type ContractInvoker struct {
	*Executor
	Hash    common.Address
	Signers []Signer
}

// NewInvoker creates a new ContractInvoker for the contract with address h
// and the specified signers, the executor owner is used by default.
func (e *Executor) NewInvoker(h common.Address, signers ...Signer) *ContractInvoker {
	if len(signers) == 0 {
		signers = []Signer{e.Owner}
	}
	return &ContractInvoker{
		Executor: e,
		Hash:     h,
		Signers:  signers,
	}
}

// OwnerInvoker creates a new ContractInvoker sending transactions on behalf
// of the executor owner.
func (e *Executor) OwnerInvoker(h common.Address) *ContractInvoker {
	return e.NewInvoker(h, e.Owner)
}

// WithSigners creates a new client with the provided signer, the first one
// sends transactions.
func (c *ContractInvoker) WithSigners(signers ...Signer) *ContractInvoker {
	newC := *c
	newC.Signers = signers
	return &newC
}

// Sender returns the signer sending transactions.
func (c *ContractInvoker) Sender() Signer {
	return c.Signers[0]
}

// TestInvoke invokes the method in a read-only mode on behalf of the sender.
func (c *ContractInvoker) TestInvoke(t testing.TB, method string, args ...any) *state.Execution {
	return c.Chain.Call(c.Sender().Address(), c.Hash, method, Args(args...))
}

// Call invokes the method in a read-only mode, checks that it succeeded and
// returns the result.
func (c *ContractInvoker) Call(t testing.TB, method string, args ...any) stackitem.Item {
	res := c.TestInvoke(t, method, args...)
	require.Equal(t, vmstate.Halt, res.VMState, res.FaultException)
	require.Len(t, res.Stack, 1)
	return res.Stack[0]
}

// CallFail invokes the method in a read-only mode and checks that it fails
// with the message.
func (c *ContractInvoker) CallFail(t testing.TB, message string, method string, args ...any) {
	res := c.TestInvoke(t, method, args...)
	require.Equal(t, vmstate.Fault, res.VMState)
	require.Contains(t, res.FaultException, message)
}

// PrepareInvoke creates a new signed invocation transaction.
func (c *ContractInvoker) PrepareInvoke(t testing.TB, method string, args ...any) *transaction.Transaction {
	return c.NewTx(t, c.Sender(), c.Hash, method, args...)
}

// PrepareInvokeNoSign creates a new unsigned invocation transaction.
func (c *ContractInvoker) PrepareInvokeNoSign(t testing.TB, method string, args ...any) *transaction.Transaction {
	return c.NewUnsignedTx(t, c.Sender().Address(), c.Hash, method, args...)
}

// Invoke invokes the method with the args, persists the transaction and
// checks the result. Void methods produce nil result. It returns the
// transaction hash.
func (c *ContractInvoker) Invoke(t testing.TB, result any, method string, args ...any) common.Hash {
	tx := c.PrepareInvoke(t, method, args...)
	c.AddNewBlock(t, tx)
	c.CheckHalt(t, tx.Hash(), stackitem.Make(result))
	return tx.Hash()
}

// InvokeAndCheck invokes the method with the args, persists the transaction
// and checks the result using the provided function. It returns the
// transaction hash.
func (c *ContractInvoker) InvokeAndCheck(t testing.TB, checkResult func(t testing.TB, stack []stackitem.Item), method string, args ...any) common.Hash {
	tx := c.PrepareInvoke(t, method, args...)
	c.AddNewBlock(t, tx)
	aer := c.CheckHalt(t, tx.Hash())
	if checkResult != nil {
		checkResult(t, aer.Stack)
	}
	return tx.Hash()
}

// InvokeFail invokes the method with the args, persists the transaction and
// checks the error message. It returns the transaction hash.
func (c *ContractInvoker) InvokeFail(t testing.TB, message string, method string, args ...any) common.Hash {
	tx := c.PrepareInvoke(t, method, args...)
	c.AddNewBlock(t, tx)
	c.CheckFault(t, tx.Hash(), message)
	return tx.Hash()
}
