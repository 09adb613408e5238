package neotest

import (
	"fmt"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/nspcc-dev/pesto-go/pkg/core"
	"github.com/nspcc-dev/pesto-go/pkg/core/block"
	"github.com/nspcc-dev/pesto-go/pkg/core/state"
	"github.com/nspcc-dev/pesto-go/pkg/core/transaction"
	"github.com/nspcc-dev/pesto-go/pkg/vm/stackitem"
	"github.com/nspcc-dev/pesto-go/pkg/vm/vmstate"
	"github.com/stretchr/testify/require"
)

// Executor is a wrapper over chain state.
type Executor struct {
	Chain *core.Blockchain
	// Signers are accounts known to the test, the first one is the default
	// sender of transactions.
	Signers []Signer
	// Owner is the default sender, Signers[0].
	Owner Signer
	// Contracts maps deployed contract addresses to factory names.
	Contracts map[common.Address]string
}

// NewExecutor creates a new executor instance from the provided blockchain
// and signers.
func NewExecutor(t testing.TB, bc *core.Blockchain, signers ...Signer) *Executor {
	require.NotEmpty(t, signers, "at least one signer is required")
	return &Executor{
		Chain:     bc,
		Signers:   signers,
		Owner:     signers[0],
		Contracts: make(map[common.Address]string),
	}
}

// Signer returns the i-th signer.
func (e *Executor) Signer(i int) Signer {
	return e.Signers[i]
}

// TopBlock returns the block with the highest index.
func (e *Executor) TopBlock(t testing.TB) *block.Block {
	b, err := e.Chain.GetBlock(e.Chain.CurrentBlockHash())
	require.NoError(t, err)
	return b
}

// NewAccount returns a new signer for a random account, it's added to the
// executor signers.
func (e *Executor) NewAccount(t testing.TB) Signer {
	s := NewAccount(t)
	e.Signers = append(e.Signers, s)
	return s
}

// Args converts Go values to stack items.
func Args(args ...any) []stackitem.Item {
	res := make([]stackitem.Item, len(args))
	for i := range args {
		res[i] = stackitem.Make(args[i])
	}
	return res
}

// NewUnsignedTx creates a new unsigned invocation transaction of signer.
func (e *Executor) NewUnsignedTx(t testing.TB, signer common.Address, contract common.Address, method string, args ...any) *transaction.Transaction {
	tx := transaction.NewInvokeTX(contract, method, Args(args...))
	tx.ChainID = e.Chain.GetConfig().ChainID
	tx.Sender = signer
	tx.Nonce = e.Chain.GetNonce(signer)
	return tx
}

// NewTx creates a new signed invocation transaction.
func (e *Executor) NewTx(t testing.TB, signer Signer, contract common.Address, method string, args ...any) *transaction.Transaction {
	tx := e.NewUnsignedTx(t, signer.Address(), contract, method, args...)
	e.SignTx(t, tx, signer)
	return tx
}

// NewDeployTx creates a new signed deployment transaction.
func (e *Executor) NewDeployTx(t testing.TB, signer Signer, factory string, args ...any) *transaction.Transaction {
	tx := transaction.NewDeployTX(factory, Args(args...))
	tx.ChainID = e.Chain.GetConfig().ChainID
	tx.Sender = signer.Address()
	tx.Nonce = e.Chain.GetNonce(tx.Sender)
	e.SignTx(t, tx, signer)
	return tx
}

// SignTx signs a transaction using the provided signer.
func (e *Executor) SignTx(t testing.TB, tx *transaction.Transaction, signer Signer) {
	require.NoError(t, signer.SignTx(tx))
}

// DeployContract deploys a contract from the factory on behalf of the owner
// and checks that the deployment succeeded. It returns the contract address.
func (e *Executor) DeployContract(t testing.TB, factory string, args ...any) common.Address {
	return e.DeployContractBy(t, e.Owner, factory, args...)
}

// DeployContractBy deploys a contract on behalf of the signer.
func (e *Executor) DeployContractBy(t testing.TB, signer Signer, factory string, args ...any) common.Address {
	tx := e.NewDeployTx(t, signer, factory, args...)
	e.AddNewBlock(t, tx)
	aer := e.CheckHalt(t, tx.Hash())
	addr, err := stackitem.ToAddress(aer.Stack[0])
	require.NoError(t, err)
	e.Contracts[addr] = factory
	return addr
}

// DeployContractCheckFAULT deploys a contract and checks that the deployment
// failed with the given message.
func (e *Executor) DeployContractCheckFAULT(t testing.TB, factory string, errMessage string, args ...any) {
	tx := e.NewDeployTx(t, e.Owner, factory, args...)
	e.AddNewBlock(t, tx)
	e.CheckFault(t, tx.Hash(), errMessage)
}

// AddNewBlock creates a new block with the given transactions and adds it
// to the chain.
func (e *Executor) AddNewBlock(t testing.TB, txs ...*transaction.Transaction) *block.Block {
	b, err := e.Chain.AddBlock(txs...)
	require.NoError(t, err)
	return b
}

// GenerateNewBlocks adds the specified number of empty blocks to the chain.
func (e *Executor) GenerateNewBlocks(t testing.TB, count int) []*block.Block {
	blocks := make([]*block.Block, count)
	for i := range count {
		blocks[i] = e.AddNewBlock(t)
	}
	return blocks
}

// GetTxExecResult returns the application execution result for the specified
// transaction.
func (e *Executor) GetTxExecResult(t testing.TB, h common.Hash) *state.AppExecResult {
	aer, err := e.Chain.GetAppExecResult(h)
	require.NoError(t, err)
	return aer
}

// GetTransaction returns a transaction and its height by the specified hash.
func (e *Executor) GetTransaction(t testing.TB, h common.Hash) (*transaction.Transaction, uint32) {
	tx, height, err := e.Chain.GetTransaction(h)
	require.NoError(t, err)
	return tx, height
}

// GetBlockByIndex returns a block by the specified index.
func (e *Executor) GetBlockByIndex(t testing.TB, idx uint32) *block.Block {
	h, err := e.Chain.GetHeaderHash(idx)
	require.NoError(t, err)
	b, err := e.Chain.GetBlock(h)
	require.NoError(t, err)
	return b
}

// CheckHalt checks that the transaction is persisted with HALT state and
// the result stack matches the expected one if given.
func (e *Executor) CheckHalt(t testing.TB, h common.Hash, stack ...stackitem.Item) *state.AppExecResult {
	aer := e.GetTxExecResult(t, h)
	require.Equal(t, vmstate.Halt, aer.VMState, aer.FaultException)
	if len(stack) != 0 {
		CheckStack(t, stack, aer.Stack)
	}
	return aer
}

// CheckFault checks that the transaction is persisted with FAULT state.
// The raised exception is also checked to contain the specified substring.
func (e *Executor) CheckFault(t testing.TB, h common.Hash, s string) {
	aer := e.GetTxExecResult(t, h)
	require.Equal(t, vmstate.Fault, aer.VMState)
	require.Contains(t, aer.FaultException, s)
}

// CheckStack compares result stacks item by item.
func CheckStack(t testing.TB, expected, actual []stackitem.Item) {
	require.Equal(t, len(expected), len(actual), "stack length mismatch")
	for i := range expected {
		require.True(t, expected[i].Equals(actual[i]), "item %d: expected %s, got %s", i, expected[i], actual[i])
	}
}

// CheckTxNotificationEvent checks that the specified event was emitted at
// the specified position during transaction execution. Negative index
// corresponds to backwards enumeration.
func (e *Executor) CheckTxNotificationEvent(t testing.TB, h common.Hash, index int, expected state.NotificationEvent) {
	aer := e.GetTxExecResult(t, h)
	l := len(aer.Events)
	if index < 0 {
		index = l + index
	}
	require.True(t, 0 <= index && index < l, fmt.Errorf("notification index is out of range: want %d, len is %d", index, l))
	ev := aer.Events[index]
	require.Equal(t, expected.Contract, ev.Contract, "contract")
	require.Equal(t, expected.Name, ev.Name, "event name")
	CheckStack(t, expected.Item.Value().([]stackitem.Item), ev.Item.Value().([]stackitem.Item))
}

// CheckTxEmits checks that the transaction emitted the named event of the
// contract with the given arguments at any position.
func (e *Executor) CheckTxEmits(t testing.TB, h common.Hash, contract common.Address, name string, args ...any) {
	aer := e.GetTxExecResult(t, h)
	expected := stackitem.NewArray(Args(args...))
	for _, ev := range aer.Events {
		if ev.Contract == contract && ev.Name == name && expected.Equals(ev.Item) {
			return
		}
	}
	require.Failf(t, "event not found", "%s%s of %s wasn't emitted by %s", name, expected, contract, h)
}

// Balance returns the result of balanceOf call of the token contract.
func (e *Executor) Balance(t testing.TB, token common.Address, acc common.Address) *big.Int {
	res := e.Chain.Call(common.Address{}, token, "balanceOf", Args(acc))
	require.Equal(t, vmstate.Halt, res.VMState, res.FaultException)
	require.Len(t, res.Stack, 1)
	bal, err := res.Stack[0].TryInteger()
	require.NoError(t, err)
	return bal
}

// CheckTokenBalanceChanges runs f and checks that it changed token balances
// of the accounts by the given amounts. Amounts can be of any integer type
// stackitem.Make accepts.
func (e *Executor) CheckTokenBalanceChanges(t testing.TB, token common.Address, accounts []common.Address, changes []any, f func()) {
	require.Equal(t, len(accounts), len(changes), "accounts and changes must have the same length")
	before := make([]*big.Int, len(accounts))
	for i := range accounts {
		before[i] = e.Balance(t, token, accounts[i])
	}
	f()
	for i := range accounts {
		expected, err := stackitem.Make(changes[i]).TryInteger()
		require.NoError(t, err)
		diff := new(big.Int).Sub(e.Balance(t, token, accounts[i]), before[i])
		require.Equal(t, 0, expected.Cmp(diff), "balance change of %s: expected %s, got %s", accounts[i], expected, diff)
	}
}
