package actor_test

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/nspcc-dev/pesto-go/pkg/contracts/pesto"
	"github.com/nspcc-dev/pesto-go/pkg/contracts/staking"
	"github.com/nspcc-dev/pesto-go/pkg/neorpc"
	"github.com/nspcc-dev/pesto-go/pkg/neotest/chain"
	"github.com/nspcc-dev/pesto-go/pkg/rpcclient/actor"
	"github.com/nspcc-dev/pesto-go/pkg/rpcclient/local"
	"github.com/nspcc-dev/pesto-go/pkg/vm/vmstate"
	"github.com/nspcc-dev/pesto-go/pkg/wallet"
	"github.com/stretchr/testify/require"
)

func newActor(t *testing.T, i int) (*local.Client, *actor.Actor) {
	bc, _ := chain.NewSingle(t)
	c := local.New(context.Background(), bc)
	accs, err := actor.Signers(c)
	require.NoError(t, err)
	a, err := actor.New(c, accs[i])
	require.NoError(t, err)
	return c, a
}

func TestNew(t *testing.T) {
	bc, _ := chain.NewSingle(t)
	c := local.New(context.Background(), bc)

	_, err := actor.New(c, nil)
	require.Error(t, err)
	_, err = actor.New(c, &wallet.Account{Address: common.Address{1}})
	require.Error(t, err)

	accs, err := actor.Signers(c)
	require.NoError(t, err)
	require.Equal(t, int(bc.GetConfig().DevAccounts.Count), len(accs))

	a, err := actor.New(c, accs[0])
	require.NoError(t, err)
	require.Equal(t, accs[0].Address, a.Sender())
	require.Equal(t, accs[0].Address, *a.Invoker.Sender())
	require.Equal(t, bc.GetConfig().ChainID, a.ChainID())
	require.Equal(t, bc.GetConfig().ChainID, a.GetVersion().Protocol.ChainID)
	require.Equal(t, c, a.Client())
}

func TestMakeCall(t *testing.T) {
	c, a := newActor(t, 1)
	contract := common.Address{1, 2, 3}

	tx, err := a.MakeUnsignedCall(contract, "transfer", a.Sender(), 10)
	require.NoError(t, err)
	require.Equal(t, a.Sender(), tx.Sender)
	require.Equal(t, a.ChainID(), tx.ChainID)
	require.Equal(t, uint64(0), tx.Nonce)
	require.Equal(t, contract, tx.Contract)
	require.Equal(t, "transfer", tx.Method)
	require.Equal(t, 2, len(tx.Args))
	require.Error(t, c.Chain().VerifyTx(tx))

	require.NoError(t, a.Sign(tx))
	require.NoError(t, c.Chain().VerifyTx(tx))

	_, err = a.MakeCall(contract, "transfer", struct{}{})
	require.Error(t, err)
}

func TestFactory(t *testing.T) {
	c, a := newActor(t, 0)

	_, err := a.Factory("Unknown")
	require.ErrorIs(t, err, neorpc.ErrUnknownFactory)

	f, err := a.Factory(pesto.FactoryName)
	require.NoError(t, err)
	require.Equal(t, pesto.FactoryName, f.Name())
	require.Equal(t, pesto.FactoryName, f.Info().Name)
	require.Error(t, f.CheckArgs(1))

	addr, aer, err := f.Deploy()
	require.NoError(t, err)
	require.Equal(t, vmstate.Halt, aer.VMState)
	cs, err := c.GetContractState(addr)
	require.NoError(t, err)
	require.Equal(t, a.Sender(), cs.Deployer)
	require.Equal(t, aer.Container, cs.TxHash)

	sf, err := a.Factory(staking.FactoryName)
	require.NoError(t, err)
	require.Error(t, sf.CheckArgs(addr, addr))
	require.Error(t, sf.CheckArgs(addr, "not an address", 10))
	require.NoError(t, sf.CheckArgs(addr, addr, 10))
	_, _, err = sf.Deploy(addr, addr)
	require.Error(t, err)

	saddr, _, err := sf.Deploy(addr, addr, 10)
	require.NoError(t, err)
	require.NotEqual(t, addr, saddr)
}

func TestSendCallAndWait(t *testing.T) {
	_, a := newActor(t, 0)
	f, err := a.Factory(pesto.FactoryName)
	require.NoError(t, err)
	addr, _, err := f.Deploy()
	require.NoError(t, err)

	aer, err := a.SendCallAndWait(addr, "transfer", common.Address{1}, 5)
	require.NoError(t, err)
	require.Equal(t, vmstate.Halt, aer.VMState)

	tooMuch := new(big.Int).Lsh(big.NewInt(1), 200)
	aer, err = a.SendCallAndWait(addr, "transfer", common.Address{1}, tooMuch)
	require.ErrorIs(t, err, actor.ErrExecFailed)
	require.Equal(t, vmstate.Fault, aer.VMState)

	h, until, err := a.SendCall(addr, "approve", common.Address{2}, 1)
	require.NoError(t, err)
	aer, err = a.Wait(h, until, err)
	require.NoError(t, err)
	require.Equal(t, h, aer.Container)
	require.Equal(t, until, aer.BlockIndex)

	res, err := a.Call(addr, "allowance", a.Sender(), common.Address{2})
	require.NoError(t, err)
	require.Equal(t, vmstate.Halt, res.VMState)
}
