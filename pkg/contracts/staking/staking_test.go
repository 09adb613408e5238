package staking_test

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/nspcc-dev/pesto-go/pkg/contracts/pesto"
	"github.com/nspcc-dev/pesto-go/pkg/contracts/pestonft"
	"github.com/nspcc-dev/pesto-go/pkg/contracts/staking"
	"github.com/nspcc-dev/pesto-go/pkg/neotest"
	"github.com/nspcc-dev/pesto-go/pkg/neotest/chain"
	"github.com/nspcc-dev/pesto-go/pkg/vm/stackitem"
	"github.com/stretchr/testify/require"
)

const (
	rate       = 10
	poolSupply = 1_000_000
)

type stakingSuite struct {
	e        *neotest.Executor
	nft      common.Address
	token    common.Address
	hash     common.Address
	owner    *neotest.ContractInvoker
	user     *neotest.ContractInvoker
	ownerAcc common.Address
	userAcc  common.Address
}

// newStakingSuite deploys the NFT collection, the reward token and the
// staking contract, funds the staking pool and gives NFT 1..3 to the owner
// and 4..5 to the user. Both accounts approve the staking contract for
// all of their NFTs.
func newStakingSuite(t *testing.T) *stakingSuite {
	bc, signers := chain.NewSingle(t)
	e := neotest.NewExecutor(t, bc, signers...)
	s := &stakingSuite{
		e:        e,
		nft:      e.DeployContract(t, pestonft.FactoryName),
		token:    e.DeployContract(t, pesto.FactoryName),
		ownerAcc: signers[0].Address(),
		userAcc:  signers[1].Address(),
	}
	s.hash = e.DeployContract(t, staking.FactoryName, s.nft, s.token, rate)
	s.owner = e.NewInvoker(s.hash, signers[0])
	s.user = e.NewInvoker(s.hash, signers[1])

	nft := e.NewInvoker(s.nft, signers[0])
	for i := 1; i <= 3; i++ {
		nft.Invoke(t, nil, "mintCollectionNFT", s.ownerAcc, i)
	}
	for i := 4; i <= 5; i++ {
		nft.Invoke(t, nil, "mintCollectionNFT", s.userAcc, i)
	}
	nft.Invoke(t, nil, "setApprovalForAll", s.hash, true)
	nft.WithSigners(signers[1]).Invoke(t, nil, "setApprovalForAll", s.hash, true)
	e.NewInvoker(s.token, signers[0]).Invoke(t, true, "transfer", s.hash, poolSupply)
	return s
}

// height returns the index of the block containing the transaction.
func (s *stakingSuite) height(t *testing.T, h common.Hash) int {
	_, idx := s.e.GetTransaction(t, h)
	return int(idx)
}

func (s *stakingSuite) earned(t *testing.T, acc common.Address) stackitem.Item {
	return s.owner.Call(t, "earned", acc)
}

func (s *stakingSuite) nftOwner(t *testing.T, id int) stackitem.Item {
	return s.e.NewInvoker(s.nft).Call(t, "ownerOf", id)
}

func TestStaking_Views(t *testing.T) {
	s := newStakingSuite(t)
	require.True(t, stackitem.Make(s.nft).Equals(s.owner.Call(t, "nft")))
	require.True(t, stackitem.Make(s.token).Equals(s.owner.Call(t, "rewardToken")))
	require.True(t, stackitem.Make(rate).Equals(s.owner.Call(t, "rewardRate")))
	require.True(t, stackitem.Make(s.ownerAcc).Equals(s.owner.Call(t, "owner")))
	require.True(t, stackitem.Make(common.Address{}).Equals(s.owner.Call(t, "stakerOf", 1)))
	require.True(t, stackitem.Make([]stackitem.Item{}).Equals(s.owner.Call(t, "stakedTokens", s.ownerAcc)))
	require.True(t, stackitem.Make(0).Equals(s.earned(t, s.ownerAcc)))
}

func TestStaking_Stake(t *testing.T) {
	s := newStakingSuite(t)
	h := s.owner.Invoke(t, nil, "stake", 1)
	s.e.CheckTxEmits(t, h, s.hash, "Staked", s.ownerAcc, 1)
	s.e.CheckTxEmits(t, h, s.nft, "Transfer", s.ownerAcc, s.hash, 1)

	require.True(t, stackitem.Make(s.hash).Equals(s.nftOwner(t, 1)))
	require.True(t, stackitem.Make(s.ownerAcc).Equals(s.owner.Call(t, "stakerOf", 1)))

	s.owner.Invoke(t, nil, "stake", 3)
	expected := stackitem.Make([]stackitem.Item{stackitem.Make(1), stackitem.Make(3)})
	require.True(t, expected.Equals(s.owner.Call(t, "stakedTokens", s.ownerAcc)))
}

func TestStaking_StakeNotOwned(t *testing.T) {
	s := newStakingSuite(t)
	s.user.InvokeFail(t, "ERC721: transfer from incorrect owner", "stake", 1)
	s.user.InvokeFail(t, "ERC721: invalid token ID", "stake", 100)
}

func TestStaking_StakeNotApproved(t *testing.T) {
	s := newStakingSuite(t)
	s.e.NewInvoker(s.nft, s.e.Signer(1)).Invoke(t, nil, "setApprovalForAll", s.hash, false)
	s.user.InvokeFail(t, "ERC721: caller is not token owner or approved", "stake", 4)
	require.True(t, stackitem.Make(s.userAcc).Equals(s.nftOwner(t, 4)))
}

func TestStaking_Earned(t *testing.T) {
	s := newStakingSuite(t)
	h := s.owner.Invoke(t, nil, "stake", 1)
	staked := s.height(t, h)

	s.e.GenerateNewBlocks(t, 5)
	top := int(s.e.Chain.BlockHeight())
	require.Equal(t, staked+5, top)
	require.True(t, stackitem.Make(rate*5).Equals(s.earned(t, s.ownerAcc)))

	// Every staked NFT accrues the rate.
	h = s.owner.Invoke(t, nil, "stake", 2)
	second := s.height(t, h)
	s.e.GenerateNewBlocks(t, 3)
	top = int(s.e.Chain.BlockHeight())
	expected := rate*(top-staked) + rate*(top-second)
	require.True(t, stackitem.Make(expected).Equals(s.earned(t, s.ownerAcc)))
	require.True(t, stackitem.Make(0).Equals(s.earned(t, s.userAcc)))
}

func TestStaking_ClaimRewards(t *testing.T) {
	s := newStakingSuite(t)
	s.owner.InvokeFail(t, "Staking: no rewards", "claimRewards")

	h := s.user.Invoke(t, nil, "stake", 4)
	staked := s.height(t, h)
	s.e.GenerateNewBlocks(t, 4)

	claim := s.user.PrepareInvoke(t, "claimRewards")
	claimHeight := int(s.e.Chain.BlockHeight()) + 1
	reward := rate * (claimHeight - staked)
	s.e.CheckTokenBalanceChanges(t, s.token,
		[]common.Address{s.hash, s.userAcc},
		[]any{-reward, reward},
		func() {
			s.e.AddNewBlock(t, claim)
			s.e.CheckHalt(t, claim.Hash(), stackitem.Null{})
		})
	s.e.CheckTxEmits(t, claim.Hash(), s.hash, "RewardPaid", s.userAcc, reward)
	s.e.CheckTxEmits(t, claim.Hash(), s.token, "Transfer", s.hash, s.userAcc, reward)
	require.True(t, stackitem.Make(0).Equals(s.earned(t, s.userAcc)))
}

func TestStaking_ClaimEmptyPool(t *testing.T) {
	bc, signers := chain.NewSingle(t)
	e := neotest.NewExecutor(t, bc, signers...)
	nft := e.DeployContract(t, pestonft.FactoryName)
	token := e.DeployContract(t, pesto.FactoryName)
	h := e.DeployContract(t, staking.FactoryName, nft, token, rate)

	nftInvoker := e.NewInvoker(nft)
	nftInvoker.Invoke(t, nil, "mintCollectionNFT", e.Owner.Address(), 1)
	nftInvoker.Invoke(t, nil, "approve", h, 1)
	inv := e.NewInvoker(h)
	stakeTx := inv.Invoke(t, nil, "stake", 1)
	_, staked := e.GetTransaction(t, stakeTx)
	e.GenerateNewBlocks(t, 2)
	inv.InvokeFail(t, "ERC20: transfer amount exceeds balance", "claimRewards")

	// Nothing is lost on failure.
	expected := rate * int(e.Chain.BlockHeight()-staked)
	require.True(t, stackitem.Make(expected).Equals(inv.Call(t, "earned", e.Owner.Address())))
}

func TestStaking_Unstake(t *testing.T) {
	s := newStakingSuite(t)
	h := s.owner.Invoke(t, nil, "stake", 2)
	staked := s.height(t, h)
	s.e.GenerateNewBlocks(t, 2)

	s.user.InvokeFail(t, "Staking: not the staker", "unstake", 2)
	h = s.owner.Invoke(t, nil, "unstake", 2)
	unstaked := s.height(t, h)
	s.e.CheckTxEmits(t, h, s.hash, "Unstaked", s.ownerAcc, 2)
	s.e.CheckTxEmits(t, h, s.nft, "Transfer", s.hash, s.ownerAcc, 2)

	require.True(t, stackitem.Make(s.ownerAcc).Equals(s.nftOwner(t, 2)))
	require.True(t, stackitem.Make(common.Address{}).Equals(s.owner.Call(t, "stakerOf", 2)))
	require.True(t, stackitem.Make([]stackitem.Item{}).Equals(s.owner.Call(t, "stakedTokens", s.ownerAcc)))

	// Rewards stop accruing after unstake but stay claimable.
	s.e.GenerateNewBlocks(t, 3)
	require.True(t, stackitem.Make(rate*(unstaked-staked)).Equals(s.earned(t, s.ownerAcc)))
	s.owner.Invoke(t, nil, "claimRewards")

	s.owner.InvokeFail(t, "Staking: not the staker", "unstake", 2)
}

func TestStaking_SetRewardRate(t *testing.T) {
	s := newStakingSuite(t)
	h := s.owner.Invoke(t, nil, "stake", 1)
	staked := s.height(t, h)
	s.e.GenerateNewBlocks(t, 2)

	s.user.InvokeFail(t, "Ownable: caller is not the owner", "setRewardRate", 100)
	h = s.owner.Invoke(t, nil, "setRewardRate", 100)
	changed := s.height(t, h)
	s.e.CheckTxEmits(t, h, s.hash, "RewardRateUpdated", rate, 100)
	require.True(t, stackitem.Make(100).Equals(s.owner.Call(t, "rewardRate")))

	s.e.GenerateNewBlocks(t, 2)
	top := int(s.e.Chain.BlockHeight())
	expected := rate*(changed-staked) + 100*(top-changed)
	require.True(t, stackitem.Make(expected).Equals(s.earned(t, s.ownerAcc)))
}

func TestStaking_OnERC721Received(t *testing.T) {
	s := newStakingSuite(t)
	// Safe transfers of the collection stake the NFT for its previous owner.
	nft := s.e.NewInvoker(s.nft, s.e.Signer(0))
	h := nft.Invoke(t, nil, "safeTransferFrom", s.ownerAcc, s.hash, 3)
	s.e.CheckTxEmits(t, h, s.hash, "Staked", s.ownerAcc, 3)
	require.True(t, stackitem.Make(s.hash).Equals(s.nftOwner(t, 3)))
	require.True(t, stackitem.Make(s.ownerAcc).Equals(s.owner.Call(t, "stakerOf", 3)))
	expected := stackitem.Make([]stackitem.Item{stackitem.Make(3)})
	require.True(t, expected.Equals(s.owner.Call(t, "stakedTokens", s.ownerAcc)))

	s.e.GenerateNewBlocks(t, 2)
	require.True(t, stackitem.Make(rate*2).Equals(s.earned(t, s.ownerAcc)))
	s.user.InvokeFail(t, "Staking: not the staker", "unstake", 3)
	s.owner.Invoke(t, nil, "unstake", 3)
	require.True(t, stackitem.Make(s.ownerAcc).Equals(s.nftOwner(t, 3)))

	other := s.e.DeployContract(t, pestonft.FactoryName)
	otherInvoker := s.e.NewInvoker(other)
	otherInvoker.Invoke(t, nil, "mintCollectionNFT", s.ownerAcc, 1)
	otherInvoker.InvokeFail(t, "Staking: unsupported NFT", "safeTransferFrom", s.ownerAcc, s.hash, 1)

	s.owner.InvokeFail(t, "Staking: unsupported NFT", "onERC721Received", s.ownerAcc, s.ownerAcc, 1, []byte{})
}

func TestStaking_RewardRateBound(t *testing.T) {
	s := newStakingSuite(t)
	maxRate := new(uint256.Int).SubUint64(new(uint256.Int).Lsh(uint256.NewInt(1), 128), 1)
	tooHigh := new(uint256.Int).AddUint64(maxRate, 1)

	s.owner.InvokeFail(t, "Staking: reward rate too high", "setRewardRate", tooHigh)
	s.e.DeployContractCheckFAULT(t, staking.FactoryName, "Staking: reward rate too high", s.nft, s.token, tooHigh)

	s.owner.Invoke(t, nil, "setRewardRate", maxRate)
	h := s.user.Invoke(t, nil, "stake", 4)
	staked := s.height(t, h)
	s.e.GenerateNewBlocks(t, 5)

	// Accrual at the highest rate never blocks getting the NFT back.
	h = s.user.Invoke(t, nil, "unstake", 4)
	blocks := uint64(s.height(t, h) - staked)
	require.True(t, stackitem.Make(s.userAcc).Equals(s.nftOwner(t, 4)))
	expected := new(uint256.Int).Mul(maxRate, uint256.NewInt(blocks))
	require.True(t, stackitem.Make(expected).Equals(s.earned(t, s.userAcc)))
}

func TestStaking_MissingContracts(t *testing.T) {
	bc, signers := chain.NewSingle(t)
	e := neotest.NewExecutor(t, bc, signers...)
	nft := common.HexToAddress("0xcd3b766ccdd6ae721141f452c550ca635964ce71")
	token := common.HexToAddress("0x2546bcd3c84621e976d8185a91a922ae77ecec30")
	h := e.DeployContract(t, staking.FactoryName, nft, token, rate)
	e.NewInvoker(h).InvokeFail(t, "call to non-contract address", "stake", 1)
}

func TestStaking_InvalidConstructorArgs(t *testing.T) {
	bc, signers := chain.NewSingle(t)
	e := neotest.NewExecutor(t, bc, signers...)
	e.DeployContractCheckFAULT(t, staking.FactoryName, "invalid argument count", common.Address{}, common.Address{})
	e.DeployContractCheckFAULT(t, staking.FactoryName, "invalid argument", []byte{1}, common.Address{}, 1)
}
