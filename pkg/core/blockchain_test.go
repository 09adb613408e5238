package core_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/nspcc-dev/pesto-go/pkg/config"
	"github.com/nspcc-dev/pesto-go/pkg/contracts"
	"github.com/nspcc-dev/pesto-go/pkg/contracts/pesto"
	"github.com/nspcc-dev/pesto-go/pkg/contracts/pestonft"
	"github.com/nspcc-dev/pesto-go/pkg/core"
	"github.com/nspcc-dev/pesto-go/pkg/core/block"
	"github.com/nspcc-dev/pesto-go/pkg/core/interop/contract"
	"github.com/nspcc-dev/pesto-go/pkg/core/state"
	"github.com/nspcc-dev/pesto-go/pkg/core/storage"
	"github.com/nspcc-dev/pesto-go/pkg/core/storage/dbconfig"
	"github.com/nspcc-dev/pesto-go/pkg/core/transaction"
	"github.com/nspcc-dev/pesto-go/pkg/neotest"
	"github.com/nspcc-dev/pesto-go/pkg/neotest/chain"
	"github.com/nspcc-dev/pesto-go/pkg/vm/stackitem"
	"github.com/nspcc-dev/pesto-go/pkg/vm/vmstate"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestBlockchain_Genesis(t *testing.T) {
	bc, _ := chain.NewSingle(t)
	require.Equal(t, uint32(0), bc.BlockHeight())

	h, err := bc.GetHeaderHash(0)
	require.NoError(t, err)
	require.Equal(t, h, bc.CurrentBlockHash())
	b, err := bc.GetBlock(h)
	require.NoError(t, err)
	require.Equal(t, uint64(core.GenesisTimestamp), b.Timestamp)
	require.Equal(t, common.Hash{}, b.PrevHash)
	require.Empty(t, b.Transactions)

	_, err = bc.GetHeaderHash(1)
	require.Error(t, err)

	// Genesis is the same for every chain of the network.
	bc2, _ := chain.NewSingle(t)
	require.Equal(t, h, bc2.CurrentBlockHash())
}

func TestBlockchain_Resume(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chain.bolt")
	open := func() storage.Store {
		st, err := storage.NewBoltDBStore(dbconfig.BoltDBOptions{FilePath: path})
		require.NoError(t, err)
		return st
	}

	bc, signers := chain.NewSingleWithCustomConfigAndStore(t, nil, open(), false)
	e := neotest.NewExecutor(t, bc, signers...)
	token := e.DeployContract(t, pesto.FactoryName)
	e.NewInvoker(token).Invoke(t, true, "transfer", signers[1].Address(), 42)
	height, top := bc.BlockHeight(), bc.CurrentBlockHash()
	nonce := bc.GetNonce(signers[0].Address())
	bc.Close()

	bc, _ = chain.NewSingleWithCustomConfigAndStore(t, nil, open(), false)
	require.Equal(t, height, bc.BlockHeight())
	require.Equal(t, top, bc.CurrentBlockHash())
	require.Equal(t, nonce, bc.GetNonce(signers[0].Address()))
	e = neotest.NewExecutor(t, bc, signers...)
	require.Equal(t, int64(42), e.Balance(t, token, signers[1].Address()).Int64())

	// The chain keeps growing after restart.
	e.GenerateNewBlocks(t, 1)
	require.Equal(t, height+1, bc.BlockHeight())
	bc.Close()

	cfg := config.Default().Blockchain()
	cfg.Magic++
	st := open()
	_, err := core.NewBlockchain(st, cfg, contracts.NewDefault(), zaptest.NewLogger(t))
	require.ErrorContains(t, err, "network")
	require.NoError(t, st.Close())
}

func TestBlockchain_NewBlockchainBadConfig(t *testing.T) {
	cfg := config.Default().Blockchain()
	_, err := core.NewBlockchain(storage.NewMemoryStore(), cfg, contracts.NewDefault(), nil)
	require.Error(t, err)

	cfg.ChainID = 0
	_, err = core.NewBlockchain(storage.NewMemoryStore(), cfg, contracts.NewDefault(), zaptest.NewLogger(t))
	require.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestBlockchain_AddBlockInvalidTx(t *testing.T) {
	bc, signers := chain.NewSingle(t)
	e := neotest.NewExecutor(t, bc, signers...)
	token := e.DeployContract(t, pesto.FactoryName)
	acc := signers[0]
	height := bc.BlockHeight()

	newTx := func(modify func(tx *transaction.Transaction)) *transaction.Transaction {
		tx := e.NewUnsignedTx(t, acc.Address(), token, "transfer", signers[1].Address(), 1)
		if modify != nil {
			modify(tx)
		}
		tx.Invalidate()
		e.SignTx(t, tx, acc)
		return tx
	}
	check := func(t *testing.T, target error, txs ...*transaction.Transaction) {
		_, err := bc.AddBlock(txs...)
		require.ErrorIs(t, err, target)
		require.Equal(t, height, bc.BlockHeight())
		require.Error(t, bc.VerifyTx(txs[len(txs)-1]))
	}

	t.Run("chain id", func(t *testing.T) {
		check(t, core.ErrInvalidChainID, newTx(func(tx *transaction.Transaction) { tx.ChainID++ }))
	})
	t.Run("nonce", func(t *testing.T) {
		check(t, core.ErrInvalidNonce, newTx(func(tx *transaction.Transaction) { tx.Nonce += 5 }))
	})
	t.Run("structure", func(t *testing.T) {
		check(t, core.ErrInvalidTransaction, newTx(func(tx *transaction.Transaction) { tx.Method = "" }))
	})
	t.Run("signature", func(t *testing.T) {
		tx := newTx(nil)
		tx.Signature = make([]byte, transaction.SignatureLength)
		check(t, transaction.ErrInvalidSignature, tx)

		tx = newTx(nil)
		tx.Sender = signers[1].Address()
		tx.Invalidate()
		check(t, transaction.ErrInvalidSignature, tx)
	})
	t.Run("whole block is rejected", func(t *testing.T) {
		good := newTx(nil)
		// Both use the current nonce, only the first one can consume it.
		bad := newTx(func(tx *transaction.Transaction) {
			tx.Args = neotest.Args(signers[1].Address(), 2)
		})
		_, err := bc.AddBlock(good, bad)
		require.ErrorIs(t, err, core.ErrInvalidNonce)
		require.Equal(t, height, bc.BlockHeight())
		require.Equal(t, good.Nonce, bc.GetNonce(acc.Address()))
		_, _, err = bc.GetTransaction(good.Hash())
		require.Error(t, err)
	})
	t.Run("duplicate", func(t *testing.T) {
		tx := newTx(nil)
		require.NoError(t, bc.VerifyTx(tx))
		e.AddNewBlock(t, tx)
		_, err := bc.AddBlock(tx)
		require.ErrorIs(t, err, core.ErrAlreadyExists)
		height = bc.BlockHeight()
	})
}

func TestBlockchain_TooManyTransactions(t *testing.T) {
	bc, signers := chain.NewSingleWithCustomConfig(t, func(c *config.Blockchain) {
		c.MaxTransactionsPerBlock = 1
	})
	e := neotest.NewExecutor(t, bc, signers...)
	tx1 := e.NewDeployTx(t, signers[0], pesto.FactoryName)
	tx2 := e.NewDeployTx(t, signers[1], pesto.FactoryName)
	_, err := bc.AddBlock(tx1, tx2)
	require.ErrorIs(t, err, core.ErrTooManyTransactions)
	e.AddNewBlock(t, tx1)
	e.AddNewBlock(t, tx2)
}

func TestBlockchain_Fault(t *testing.T) {
	bc, signers := chain.NewSingle(t)
	e := neotest.NewExecutor(t, bc, signers...)
	sender := signers[0].Address()

	tx := e.NewDeployTx(t, signers[0], "Unknown")
	e.AddNewBlock(t, tx)
	e.CheckFault(t, tx.Hash(), "unknown contract factory")

	aer := e.GetTxExecResult(t, tx.Hash())
	require.Empty(t, aer.Stack)
	require.Empty(t, aer.Events)
	require.Equal(t, uint64(1), bc.GetNonce(sender))
	_, err := bc.GetContractState(contract.CreateAddress(sender, 0))
	require.Error(t, err)

	// Events and state changes of the failed transaction are discarded.
	token := e.DeployContract(t, pesto.FactoryName)
	nft := e.DeployContract(t, pestonft.FactoryName)
	e.NewInvoker(nft).Invoke(t, nil, "mintCollectionNFT", sender, 1)
	h := e.NewInvoker(nft).InvokeFail(t, "ERC721: transfer to non ERC721Receiver implementer",
		"safeTransferFrom", sender, token, 1)
	require.Empty(t, e.GetTxExecResult(t, h).Events)
	require.True(t, stackitem.Make(sender).Equals(e.NewInvoker(nft).Call(t, "ownerOf", 1)))
}

func TestBlockchain_Deploy(t *testing.T) {
	bc, signers := chain.NewSingle(t)
	e := neotest.NewExecutor(t, bc, signers...)
	sender := signers[0].Address()
	nonce := bc.GetNonce(sender)

	tx := e.NewDeployTx(t, signers[0], pesto.FactoryName)
	b := e.AddNewBlock(t, tx)
	aer := e.CheckHalt(t, tx.Hash(), stackitem.Make(contract.CreateAddress(sender, nonce)))
	require.Positive(t, aer.GasConsumed)

	cs, err := bc.GetContractState(contract.CreateAddress(sender, nonce))
	require.NoError(t, err)
	require.Equal(t, pesto.FactoryName, cs.Factory)
	require.Equal(t, sender, cs.Deployer)
	require.Equal(t, tx.Hash(), cs.TxHash)
	require.Equal(t, b.Index, cs.BlockIndex)
	require.True(t, cs.Manifest.IsStandardSupported("ERC-20"))

	e.DeployContract(t, pestonft.FactoryName)
	css, err := bc.GetContracts()
	require.NoError(t, err)
	require.Len(t, css, 2)

	ctr, err := bc.GetFactory(pesto.FactoryName)
	require.NoError(t, err)
	require.Equal(t, pesto.FactoryName, ctr.Name)
	_, err = bc.GetFactory("Unknown")
	require.Error(t, err)
	require.Len(t, bc.GetFactories(), 3)

	e.DeployContractCheckFAULT(t, pesto.FactoryName, "invalid argument count", 1)
}

func TestBlockchain_Call(t *testing.T) {
	bc, signers := chain.NewSingle(t)
	e := neotest.NewExecutor(t, bc, signers...)
	token := e.DeployContract(t, pesto.FactoryName)
	inv := e.NewInvoker(token)
	height := bc.BlockHeight()

	res := inv.TestInvoke(t, "transfer", signers[1].Address(), 5)
	require.Equal(t, vmstate.Halt, res.VMState)
	require.Len(t, res.Events, 1)
	require.Equal(t, 0, e.Balance(t, token, signers[1].Address()).Sign())
	require.Equal(t, height, bc.BlockHeight())

	inv.CallFail(t, "constructor can't be called", "constructor")
	inv.CallFail(t, "not found", "unknown")
	e.NewInvoker(common.Address{1}).CallFail(t, "call to non-contract address", "name")
}

func TestBlockchain_MineBlocks(t *testing.T) {
	bc, _ := chain.NewSingle(t)
	h, err := bc.MineBlocks(3)
	require.NoError(t, err)
	require.Equal(t, uint32(3), h)

	var prev uint64
	for i := uint32(0); i <= h; i++ {
		hash, err := bc.GetHeaderHash(i)
		require.NoError(t, err)
		hdr, err := bc.GetHeader(hash)
		require.NoError(t, err)
		require.Equal(t, i, hdr.Index)
		require.Greater(t, hdr.Timestamp, prev)
		prev = hdr.Timestamp
	}
}

func TestBlockchain_GetTransaction(t *testing.T) {
	bc, signers := chain.NewSingle(t)
	e := neotest.NewExecutor(t, bc, signers...)
	tx := e.NewDeployTx(t, signers[0], pesto.FactoryName)
	b := e.AddNewBlock(t, tx)

	actual, idx, err := bc.GetTransaction(tx.Hash())
	require.NoError(t, err)
	require.Equal(t, b.Index, idx)
	require.Equal(t, tx.Hash(), actual.Hash())

	aer, err := bc.GetAppExecResult(tx.Hash())
	require.NoError(t, err)
	require.Equal(t, tx.Hash(), aer.Container)
	require.Equal(t, b.Index, aer.BlockIndex)

	_, _, err = bc.GetTransaction(common.Hash{1})
	require.Error(t, err)
}

func TestBlockchain_Subscriptions(t *testing.T) {
	bc, signers := chain.NewSingle(t)
	e := neotest.NewExecutor(t, bc, signers...)

	blockCh := make(chan *block.Block, 4)
	execCh := make(chan *state.AppExecResult, 4)
	notificationCh := make(chan *state.ContainedNotificationEvent, 4)
	bc.SubscribeForBlocks(blockCh)
	bc.SubscribeForExecutions(execCh)
	bc.SubscribeForNotifications(notificationCh)

	tx := e.NewDeployTx(t, signers[0], pesto.FactoryName)
	b := e.AddNewBlock(t, tx)

	select {
	case actual := <-blockCh:
		require.Equal(t, b.Hash(), actual.Hash())
	case <-time.After(time.Second):
		t.Fatal("no block event")
	}
	select {
	case aer := <-execCh:
		require.Equal(t, tx.Hash(), aer.Container)
		require.Equal(t, vmstate.Halt, aer.VMState)
	case <-time.After(time.Second):
		t.Fatal("no execution event")
	}
	select {
	case ev := <-notificationCh:
		require.Equal(t, "Transfer", ev.Name)
		require.Equal(t, tx.Hash(), ev.Container)
	case <-time.After(time.Second):
		t.Fatal("no notification event")
	}

	// Failed transactions produce execution events only.
	failed := e.NewDeployTx(t, signers[0], "Unknown")
	e.AddNewBlock(t, failed)
	<-blockCh
	aer := <-execCh
	require.Equal(t, vmstate.Fault, aer.VMState)
	require.Zero(t, len(notificationCh))

	bc.UnsubscribeFromBlocks(blockCh)
	bc.UnsubscribeFromExecutions(execCh)
	bc.UnsubscribeFromNotifications(notificationCh)
	e.GenerateNewBlocks(t, 1)
	require.Never(t, func() bool { return len(blockCh) != 0 }, 100*time.Millisecond, 10*time.Millisecond)
}

func TestBlockchain_GetNotifications(t *testing.T) {
	bc, signers := chain.NewSingle(t)
	e := neotest.NewExecutor(t, bc, signers...)
	token := e.DeployContract(t, pesto.FactoryName)
	nft := e.DeployContract(t, pestonft.FactoryName)
	tokenInvoker := e.NewInvoker(token)
	for i := 1; i <= 3; i++ {
		tokenInvoker.Invoke(t, true, "transfer", signers[1].Address(), i)
	}
	tokenInvoker.InvokeFail(t, "ERC20: transfer to the zero address", "transfer", common.Address{}, 1)
	tokenInvoker.Invoke(t, true, "approve", signers[1].Address(), 10)
	e.GenerateNewBlocks(t, 2)
	end := bc.BlockHeight()

	all, err := bc.GetNotifications(0, end, core.NotificationFilter{}, 0)
	require.NoError(t, err)
	// Deploy Transfer, OwnershipTransferred, three transfers and approval.
	require.Len(t, all, 6)

	transfers, err := bc.GetNotifications(0, end, core.NotificationFilter{Contract: &token, Name: "Transfer"}, 0)
	require.NoError(t, err)
	require.Len(t, transfers, 4)
	for i := 1; i < len(transfers); i++ {
		require.True(t, transfers[i-1].BlockIndex < transfers[i].BlockIndex)
	}
	require.True(t, stackitem.Make(3).Equals(transfers[3].Item.Value().([]stackitem.Item)[2]))

	limited, err := bc.GetNotifications(0, end+100, core.NotificationFilter{Contract: &token}, 2)
	require.NoError(t, err)
	require.Len(t, limited, 2)

	ownership, err := bc.GetNotifications(0, end, core.NotificationFilter{Contract: &nft}, 0)
	require.NoError(t, err)
	require.Len(t, ownership, 1)
	require.Equal(t, "OwnershipTransferred", ownership[0].Name)

	none, err := bc.GetNotifications(0, end, core.NotificationFilter{Name: "Unknown"}, 0)
	require.NoError(t, err)
	require.Empty(t, none)

	_, err = bc.GetNotifications(end, 0, core.NotificationFilter{}, 0)
	require.Error(t, err)
}

func TestNotificationFilter_Matches(t *testing.T) {
	addr := common.Address{1}
	ev := &state.NotificationEvent{Contract: addr, Name: "Transfer"}
	require.True(t, core.NotificationFilter{}.Matches(ev))
	require.True(t, core.NotificationFilter{Contract: &addr, Name: "Transfer"}.Matches(ev))
	require.False(t, core.NotificationFilter{Name: "Approval"}.Matches(ev))
	other := common.Address{2}
	require.False(t, core.NotificationFilter{Contract: &other}.Matches(ev))
}
