package staking_test

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/nspcc-dev/pesto-go/pkg/contracts/pesto"
	"github.com/nspcc-dev/pesto-go/pkg/contracts/pestonft"
	stakingc "github.com/nspcc-dev/pesto-go/pkg/contracts/staking"
	"github.com/nspcc-dev/pesto-go/pkg/neotest/chain"
	"github.com/nspcc-dev/pesto-go/pkg/rpcclient/actor"
	"github.com/nspcc-dev/pesto-go/pkg/rpcclient/erc20"
	"github.com/nspcc-dev/pesto-go/pkg/rpcclient/erc721"
	"github.com/nspcc-dev/pesto-go/pkg/rpcclient/invoker"
	"github.com/nspcc-dev/pesto-go/pkg/rpcclient/local"
	"github.com/nspcc-dev/pesto-go/pkg/rpcclient/staking"
	"github.com/nspcc-dev/pesto-go/pkg/vm/vmstate"
	"github.com/stretchr/testify/require"
)

const rate = 10

func deploy(t *testing.T, a *actor.Actor, name string, args ...any) common.Address {
	f, err := a.Factory(name)
	require.NoError(t, err)
	addr, _, err := f.Deploy(args...)
	require.NoError(t, err)
	return addr
}

func TestContract(t *testing.T) {
	bc, _ := chain.NewSingle(t)
	c := local.New(context.Background(), bc)
	accs, err := actor.Signers(c)
	require.NoError(t, err)
	owner, err := actor.New(c, accs[0])
	require.NoError(t, err)
	user, err := actor.New(c, accs[1])
	require.NoError(t, err)

	nftAddr := deploy(t, owner, pestonft.FactoryName)
	tokenAddr := deploy(t, owner, pesto.FactoryName)
	addr := deploy(t, owner, stakingc.FactoryName, nftAddr, tokenAddr, rate)

	nft := erc721.New(owner, nftAddr)
	_, err = owner.Wait(nft.MintCollectionNFT(user.Sender(), uint256.NewInt(1)))
	require.NoError(t, err)
	_, err = owner.Wait(erc20.New(owner, tokenAddr).Transfer(addr, uint256.NewInt(1_000_000)))
	require.NoError(t, err)
	_, err = user.Wait(erc721.New(user, nftAddr).Approve(addr, uint256.NewInt(1)))
	require.NoError(t, err)

	r := staking.NewReader(invoker.New(c, nil), addr)
	require.Equal(t, addr, r.Address())
	got, err := r.NFT()
	require.NoError(t, err)
	require.Equal(t, nftAddr, got)
	got, err = r.RewardToken()
	require.NoError(t, err)
	require.Equal(t, tokenAddr, got)
	got, err = r.Owner()
	require.NoError(t, err)
	require.Equal(t, owner.Sender(), got)
	rt, err := r.RewardRate()
	require.NoError(t, err)
	require.Equal(t, uint256.NewInt(rate), rt)

	s := staking.New(user, addr)
	aer, err := user.Wait(s.Stake(uint256.NewInt(1)))
	require.NoError(t, err)
	require.Equal(t, vmstate.Halt, aer.VMState, aer.FaultException)
	stakedAt := aer.BlockIndex
	staked, err := staking.StakedEventsFromApplicationLog(aer, addr)
	require.NoError(t, err)
	require.Equal(t, []*staking.StakeEvent{{User: user.Sender(), TokenID: uint256.NewInt(1)}}, staked)

	staker, err := r.StakerOf(uint256.NewInt(1))
	require.NoError(t, err)
	require.Equal(t, user.Sender(), staker)
	ids, err := r.StakedTokens(user.Sender())
	require.NoError(t, err)
	require.Equal(t, []*uint256.Int{uint256.NewInt(1)}, ids)

	_, err = c.MineBlocks(3)
	require.NoError(t, err)
	earned, err := r.Earned(user.Sender())
	require.NoError(t, err)
	require.Equal(t, uint64(rate*(bc.BlockHeight()-stakedAt)), earned.Uint64())

	aer, err = user.Wait(s.ClaimRewards())
	require.NoError(t, err)
	require.Equal(t, vmstate.Halt, aer.VMState, aer.FaultException)
	paid, err := staking.RewardPaidEventsFromApplicationLog(aer, addr)
	require.NoError(t, err)
	require.Equal(t, []*staking.RewardPaidEvent{{User: user.Sender(), Reward: uint256.NewInt(uint64(rate * (aer.BlockIndex - stakedAt)))}}, paid)

	aer, err = user.Wait(s.SetRewardRate(uint256.NewInt(1)))
	require.NoError(t, err)
	require.Equal(t, vmstate.Fault, aer.VMState)
	aer, err = owner.Wait(staking.New(owner, addr).SetRewardRate(uint256.NewInt(1)))
	require.NoError(t, err)
	require.Equal(t, vmstate.Halt, aer.VMState, aer.FaultException)

	aer, err = user.Wait(s.Unstake(uint256.NewInt(1)))
	require.NoError(t, err)
	require.Equal(t, vmstate.Halt, aer.VMState, aer.FaultException)
	unstaked, err := staking.UnstakedEventsFromApplicationLog(aer, addr)
	require.NoError(t, err)
	require.Equal(t, 1, len(unstaked))
	holder, err := erc721.NewReader(invoker.New(c, nil), nftAddr).OwnerOf(uint256.NewInt(1))
	require.NoError(t, err)
	require.Equal(t, user.Sender(), holder)
	ids, err = r.StakedTokens(user.Sender())
	require.NoError(t, err)
	require.Empty(t, ids)

	tx, err := s.StakeTransaction(uint256.NewInt(1))
	require.NoError(t, err)
	require.Equal(t, "stake", tx.Method)
}
