// Package staking implements the NFT staking contract paying ERC-20 rewards.
//
// Every staked NFT earns rate base units of the reward token per block. The
// contract tracks the reward accumulated by a single NFT since deployment
// and checkpoints it per account on every stake, unstake and claim, so rate
// changes apply from the block they're made in.
package staking

import (
	"encoding/binary"
	"slices"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/nspcc-dev/pesto-go/pkg/contracts/nativeutil"
	"github.com/nspcc-dev/pesto-go/pkg/contracts/pestonft"
	"github.com/nspcc-dev/pesto-go/pkg/core/interop"
	"github.com/nspcc-dev/pesto-go/pkg/core/interop/contract"
	"github.com/nspcc-dev/pesto-go/pkg/core/interop/runtime"
	"github.com/nspcc-dev/pesto-go/pkg/core/interop/storage"
	"github.com/nspcc-dev/pesto-go/pkg/smartcontract"
	"github.com/nspcc-dev/pesto-go/pkg/smartcontract/manifest"
	"github.com/nspcc-dev/pesto-go/pkg/vm/stackitem"
)

// FactoryName is the name Staking is registered under.
const FactoryName = "Staking"

const (
	prefixStaker     = 0x10
	prefixCount      = 0x11
	prefixRewards    = 0x12
	prefixPaid       = 0x13
	prefixStakedList = 0x14
)

// maxRewardRate bounds the rate so that the reward accumulated over the
// whole uint32 height range times any NFT count fits into 256 bits.
var maxRewardRate = new(uint256.Int).SubUint64(new(uint256.Int).Lsh(uint256.NewInt(1), 128), 1)

var (
	nftKey        = []byte{0x01}
	tokenKey      = []byte{0x02}
	rateKey       = []byte{0x03}
	ownerKey      = []byte{0x04}
	accKey        = []byte{0x05}
	lastUpdateKey = []byte{0x06}
)

// Staking is an NFT staking contract.
type Staking struct {
	interop.ContractMD
	ownable nativeutil.Ownable
}

// New returns the Staking contract implementation.
func New() *Staking {
	s := &Staking{
		ContractMD: *interop.NewContractMD(FactoryName),
		ownable:    nativeutil.Ownable{Key: ownerKey},
	}

	s.AddConstructor(nativeutil.NewMethodAndPrice(s.construct, nativeutil.PriceWrite),
		manifest.NewParameter("nft", smartcontract.AddressType),
		manifest.NewParameter("rewardToken", smartcontract.AddressType),
		manifest.NewParameter("rate", smartcontract.Uint256Type))

	desc := nativeutil.NewDescriptor("stake", smartcontract.VoidType,
		manifest.NewParameter("tokenId", smartcontract.Uint256Type))
	s.AddMethod(nativeutil.NewMethodAndPrice(s.stake, nativeutil.PriceWrite), desc)

	desc = nativeutil.NewDescriptor("unstake", smartcontract.VoidType,
		manifest.NewParameter("tokenId", smartcontract.Uint256Type))
	s.AddMethod(nativeutil.NewMethodAndPrice(s.unstake, nativeutil.PriceWrite), desc)

	desc = nativeutil.NewDescriptor("claimRewards", smartcontract.VoidType)
	s.AddMethod(nativeutil.NewMethodAndPrice(s.claimRewards, nativeutil.PriceWrite), desc)

	desc = nativeutil.NewSafeDescriptor("earned", smartcontract.Uint256Type,
		manifest.NewParameter("account", smartcontract.AddressType))
	s.AddMethod(nativeutil.NewMethodAndPrice(s.earned, nativeutil.PriceRead), desc)

	desc = nativeutil.NewSafeDescriptor("stakedTokens", smartcontract.Uint256ArrayType,
		manifest.NewParameter("account", smartcontract.AddressType))
	s.AddMethod(nativeutil.NewMethodAndPrice(s.stakedTokens, nativeutil.PriceRead), desc)

	desc = nativeutil.NewSafeDescriptor("stakerOf", smartcontract.AddressType,
		manifest.NewParameter("tokenId", smartcontract.Uint256Type))
	s.AddMethod(nativeutil.NewMethodAndPrice(s.stakerOf, nativeutil.PriceRead), desc)

	desc = nativeutil.NewSafeDescriptor("nft", smartcontract.AddressType)
	s.AddMethod(nativeutil.NewMethodAndPrice(s.nft, nativeutil.PriceRead), desc)

	desc = nativeutil.NewSafeDescriptor("rewardToken", smartcontract.AddressType)
	s.AddMethod(nativeutil.NewMethodAndPrice(s.rewardToken, nativeutil.PriceRead), desc)

	desc = nativeutil.NewSafeDescriptor("rewardRate", smartcontract.Uint256Type)
	s.AddMethod(nativeutil.NewMethodAndPrice(s.rewardRate, nativeutil.PriceRead), desc)

	desc = nativeutil.NewDescriptor("setRewardRate", smartcontract.VoidType,
		manifest.NewParameter("rate", smartcontract.Uint256Type))
	s.AddMethod(nativeutil.NewMethodAndPrice(s.setRewardRate, nativeutil.PriceWrite), desc)

	desc = nativeutil.NewDescriptor(manifest.MethodOnERC721Received, smartcontract.Bytes4Type,
		manifest.NewParameter("operator", smartcontract.AddressType),
		manifest.NewParameter("from", smartcontract.AddressType),
		manifest.NewParameter("tokenId", smartcontract.Uint256Type),
		manifest.NewParameter("data", smartcontract.BytesType))
	s.AddMethod(nativeutil.NewMethodAndPrice(s.onERC721Received, nativeutil.PriceRead), desc)

	s.AddEvent("Staked",
		manifest.NewParameter("user", smartcontract.AddressType),
		manifest.NewParameter("tokenId", smartcontract.Uint256Type))
	s.AddEvent("Unstaked",
		manifest.NewParameter("user", smartcontract.AddressType),
		manifest.NewParameter("tokenId", smartcontract.Uint256Type))
	s.AddEvent("RewardPaid",
		manifest.NewParameter("user", smartcontract.AddressType),
		manifest.NewParameter("reward", smartcontract.Uint256Type))
	s.AddEvent("RewardRateUpdated",
		manifest.NewParameter("oldRate", smartcontract.Uint256Type),
		manifest.NewParameter("newRate", smartcontract.Uint256Type))
	s.AddStandard(manifest.ERC721ReceiverStandardName)

	s.ownable.Register(&s.ContractMD)
	return s
}

// Metadata implements the interop.Contract interface.
func (s *Staking) Metadata() *interop.ContractMD {
	return &s.ContractMD
}

func accountKey(prefix byte, addr common.Address) []byte {
	return storage.Key([]byte{prefix}, addr.Bytes())
}

func (s *Staking) construct(ic *interop.Context, args []stackitem.Item) stackitem.Item {
	storage.PutAddress(ic, nftKey, nativeutil.ToAddress(args[0]))
	storage.PutAddress(ic, tokenKey, nativeutil.ToAddress(args[1]))
	storage.PutUint256(ic, rateKey, checkRate(nativeutil.ToUint256(args[2])))
	putHeight(ic, ic.BlockHeight())
	s.ownable.SetOwner(ic, ic.Caller())
	return stackitem.Null{}
}

func checkRate(rate *uint256.Int) *uint256.Int {
	interop.Require(!rate.Gt(maxRewardRate), "Staking: reward rate too high")
	return rate
}

func getHeight(ic *interop.Context) uint32 {
	b := storage.Get(ic, lastUpdateKey)
	if len(b) != 4 {
		return 0
	}
	return binary.BigEndian.Uint32(b)
}

func putHeight(ic *interop.Context, h uint32) {
	storage.Put(ic, lastUpdateKey, binary.BigEndian.AppendUint32(nil, h))
}

// rewardPerNFT returns the reward accumulated by a single NFT staked since
// deployment up to the current block.
func (s *Staking) rewardPerNFT(ic *interop.Context) *uint256.Int {
	acc := storage.GetUint256(ic, accKey)
	last := getHeight(ic)
	h := ic.BlockHeight()
	if h <= last {
		return acc
	}
	rate := storage.GetUint256(ic, rateKey)
	return nativeutil.Add(acc, nativeutil.Mul(rate, uint256.NewInt(uint64(h-last))))
}

// updateReward checkpoints the global accumulator and the account rewards.
func (s *Staking) updateReward(ic *interop.Context, account common.Address) {
	acc := s.rewardPerNFT(ic)
	storage.PutUint256(ic, accKey, acc)
	putHeight(ic, ic.BlockHeight())
	if nativeutil.IsZero(account) {
		return
	}
	storage.PutUint256(ic, accountKey(prefixRewards, account), s.earnedAt(ic, account, acc))
	storage.PutUint256(ic, accountKey(prefixPaid, account), acc)
}

func (s *Staking) earnedAt(ic *interop.Context, account common.Address, acc *uint256.Int) *uint256.Int {
	count := storage.GetUint256(ic, accountKey(prefixCount, account))
	paid := storage.GetUint256(ic, accountKey(prefixPaid, account))
	pending := nativeutil.Mul(count, nativeutil.Sub(acc, paid))
	return nativeutil.Add(storage.GetUint256(ic, accountKey(prefixRewards, account)), pending)
}

func (s *Staking) stake(ic *interop.Context, args []stackitem.Item) stackitem.Item {
	id := nativeutil.ToUint256(args[0])
	user := ic.Caller()
	s.updateReward(ic, user)

	nft := storage.GetAddress(ic, nftKey)
	contract.Call(ic, nft, "transferFrom", stackitem.Make(user), stackitem.Make(ic.Self()), stackitem.Make(id))
	s.addStake(ic, user, id)
	return stackitem.Null{}
}

// addStake records user as the staker of id. Rewards must be checkpointed
// before.
func (s *Staking) addStake(ic *interop.Context, user common.Address, id *uint256.Int) {
	storage.PutAddress(ic, storage.Key([]byte{prefixStaker}, nativeutil.TokenKey(id)), user)
	storage.PutBool(ic, storage.Key([]byte{prefixStakedList}, user.Bytes(), nativeutil.TokenKey(id)), true)
	countKey := accountKey(prefixCount, user)
	storage.PutUint256(ic, countKey, nativeutil.Add(storage.GetUint256(ic, countKey), uint256.NewInt(1)))
	runtime.Notify(ic, "Staked", stackitem.Make(user), stackitem.Make(id))
}

func (s *Staking) unstake(ic *interop.Context, args []stackitem.Item) stackitem.Item {
	id := nativeutil.ToUint256(args[0])
	user := ic.Caller()
	stakerKey := storage.Key([]byte{prefixStaker}, nativeutil.TokenKey(id))
	interop.Require(storage.GetAddress(ic, stakerKey) == user, "Staking: not the staker")
	s.updateReward(ic, user)

	storage.Delete(ic, stakerKey)
	storage.Delete(ic, storage.Key([]byte{prefixStakedList}, user.Bytes(), nativeutil.TokenKey(id)))
	countKey := accountKey(prefixCount, user)
	storage.PutUint256(ic, countKey, nativeutil.Sub(storage.GetUint256(ic, countKey), uint256.NewInt(1)))

	nft := storage.GetAddress(ic, nftKey)
	contract.Call(ic, nft, "safeTransferFrom", stackitem.Make(ic.Self()), stackitem.Make(user), stackitem.Make(id))
	runtime.Notify(ic, "Unstaked", stackitem.Make(user), stackitem.Make(id))
	return stackitem.Null{}
}

func (s *Staking) claimRewards(ic *interop.Context, _ []stackitem.Item) stackitem.Item {
	user := ic.Caller()
	s.updateReward(ic, user)
	rewardsKey := accountKey(prefixRewards, user)
	reward := storage.GetUint256(ic, rewardsKey)
	interop.Require(!reward.IsZero(), "Staking: no rewards")
	storage.PutUint256(ic, rewardsKey, new(uint256.Int))

	token := storage.GetAddress(ic, tokenKey)
	res := contract.Call(ic, token, "transfer", stackitem.Make(user), stackitem.Make(reward))
	ok, err := res.TryBool()
	interop.Require(err == nil && ok, "Staking: reward transfer failed")
	runtime.Notify(ic, "RewardPaid", stackitem.Make(user), stackitem.Make(reward))
	return stackitem.Null{}
}

func (s *Staking) earned(ic *interop.Context, args []stackitem.Item) stackitem.Item {
	account := nativeutil.ToAddress(args[0])
	return stackitem.Make(s.earnedAt(ic, account, s.rewardPerNFT(ic)))
}

func (s *Staking) stakedTokens(ic *interop.Context, args []stackitem.Item) stackitem.Item {
	account := nativeutil.ToAddress(args[0])
	var ids []*uint256.Int
	storage.Find(ic, storage.Key([]byte{prefixStakedList}, account.Bytes()), func(k, _ []byte) bool {
		ids = append(ids, new(uint256.Int).SetBytes(k))
		return true
	})
	items := make([]stackitem.Item, 0, len(ids))
	for _, id := range ids {
		items = append(items, stackitem.Make(id))
	}
	return stackitem.NewArray(items)
}

func (s *Staking) stakerOf(ic *interop.Context, args []stackitem.Item) stackitem.Item {
	id := nativeutil.ToUint256(args[0])
	return stackitem.Make(storage.GetAddress(ic, storage.Key([]byte{prefixStaker}, nativeutil.TokenKey(id))))
}

func (s *Staking) nft(ic *interop.Context, _ []stackitem.Item) stackitem.Item {
	return stackitem.Make(storage.GetAddress(ic, nftKey))
}

func (s *Staking) rewardToken(ic *interop.Context, _ []stackitem.Item) stackitem.Item {
	return stackitem.Make(storage.GetAddress(ic, tokenKey))
}

func (s *Staking) rewardRate(ic *interop.Context, _ []stackitem.Item) stackitem.Item {
	return stackitem.Make(storage.GetUint256(ic, rateKey))
}

func (s *Staking) setRewardRate(ic *interop.Context, args []stackitem.Item) stackitem.Item {
	s.ownable.CheckOwner(ic)
	rate := checkRate(nativeutil.ToUint256(args[0]))
	s.updateReward(ic, common.Address{})
	old := storage.GetUint256(ic, rateKey)
	storage.PutUint256(ic, rateKey, rate)
	runtime.Notify(ic, "RewardRateUpdated", stackitem.Make(old), stackitem.Make(rate))
	return stackitem.Null{}
}

// onERC721Received stakes NFTs of the collection sent with safeTransferFrom
// on behalf of their previous owner.
func (s *Staking) onERC721Received(ic *interop.Context, args []stackitem.Item) stackitem.Item {
	interop.Require(ic.Caller() == storage.GetAddress(ic, nftKey), "Staking: unsupported NFT")
	from := nativeutil.ToAddress(args[1])
	interop.Require(!nativeutil.IsZero(from), "Staking: mint to the pool")
	s.updateReward(ic, from)
	s.addStake(ic, from, nativeutil.ToUint256(args[2]))
	return stackitem.Make(slices.Clone(pestonft.ReceiverSelector[:]))
}
