/*
Package staking contains RPC wrappers for the NFT Staking contract.

Stakers approve their NFTs to the contract and call stake. Rewards are paid
in the reward token and accrue per staked NFT and block.
*/
package staking

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/nspcc-dev/pesto-go/pkg/core/state"
	"github.com/nspcc-dev/pesto-go/pkg/core/transaction"
	"github.com/nspcc-dev/pesto-go/pkg/neorpc/result"
	"github.com/nspcc-dev/pesto-go/pkg/rpcclient/unwrap"
	"github.com/nspcc-dev/pesto-go/pkg/vm/stackitem"
)

// Invoker is used by ContractReader to call various methods.
type Invoker interface {
	Call(contract common.Address, method string, params ...any) (*result.Invoke, error)
}

// Actor is used by Contract to create and send transactions.
type Actor interface {
	Invoker

	MakeCall(contract common.Address, method string, params ...any) (*transaction.Transaction, error)
	SendCall(contract common.Address, method string, params ...any) (common.Hash, uint32, error)
}

// ContractReader provides safe Staking methods.
type ContractReader struct {
	invoker Invoker
	addr    common.Address
}

// Contract provides full Staking interface.
type Contract struct {
	ContractReader

	actor Actor
}

// StakeEvent represents Staked and Unstaked events.
type StakeEvent struct {
	User    common.Address
	TokenID *uint256.Int
}

// RewardPaidEvent represents a RewardPaid event.
type RewardPaidEvent struct {
	User   common.Address
	Reward *uint256.Int
}

// NewReader creates an instance of ContractReader for the contract with the
// given address using the given invoker.
func NewReader(invoker Invoker, addr common.Address) *ContractReader {
	return &ContractReader{invoker, addr}
}

// New creates an instance of Contract using the given actor.
func New(actor Actor, addr common.Address) *Contract {
	return &Contract{*NewReader(actor, addr), actor}
}

// Address returns the contract address.
func (c *ContractReader) Address() common.Address {
	return c.addr
}

// NFT returns the address of the staked collection.
func (c *ContractReader) NFT() (common.Address, error) {
	return unwrap.Address(c.invoker.Call(c.addr, "nft"))
}

// RewardToken returns the address of the token rewards are paid in.
func (c *ContractReader) RewardToken() (common.Address, error) {
	return unwrap.Address(c.invoker.Call(c.addr, "rewardToken"))
}

// RewardRate returns the reward paid per staked token and block.
func (c *ContractReader) RewardRate() (*uint256.Int, error) {
	return unwrap.Uint256(c.invoker.Call(c.addr, "rewardRate"))
}

// Owner returns the contract owner allowed to change the rate.
func (c *ContractReader) Owner() (common.Address, error) {
	return unwrap.Address(c.invoker.Call(c.addr, "owner"))
}

// Earned returns the amount of rewards the account can claim.
func (c *ContractReader) Earned(account common.Address) (*uint256.Int, error) {
	return unwrap.Uint256(c.invoker.Call(c.addr, "earned", account))
}

// StakerOf returns the account that staked the token, zero address if it's
// not staked.
func (c *ContractReader) StakerOf(id *uint256.Int) (common.Address, error) {
	return unwrap.Address(c.invoker.Call(c.addr, "stakerOf", id))
}

// StakedTokens returns the list of tokens staked by the account.
func (c *ContractReader) StakedTokens(account common.Address) ([]*uint256.Int, error) {
	arr, err := unwrap.Array(c.invoker.Call(c.addr, "stakedTokens", account))
	if err != nil {
		return nil, err
	}
	res := make([]*uint256.Int, len(arr))
	for i := range arr {
		res[i], err = stackitem.ToUint256(arr[i])
		if err != nil {
			return nil, fmt.Errorf("item #%d: %w", i, err)
		}
	}
	return res, nil
}

// Stake stakes the token approved to the contract.
func (c *Contract) Stake(id *uint256.Int) (common.Hash, uint32, error) {
	return c.actor.SendCall(c.addr, "stake", id)
}

// StakeTransaction creates a signed stake transaction without sending it.
func (c *Contract) StakeTransaction(id *uint256.Int) (*transaction.Transaction, error) {
	return c.actor.MakeCall(c.addr, "stake", id)
}

// Unstake returns the token to its staker.
func (c *Contract) Unstake(id *uint256.Int) (common.Hash, uint32, error) {
	return c.actor.SendCall(c.addr, "unstake", id)
}

// ClaimRewards transfers all earned rewards to the actor account.
func (c *Contract) ClaimRewards() (common.Hash, uint32, error) {
	return c.actor.SendCall(c.addr, "claimRewards")
}

// SetRewardRate changes the reward rate, it's only allowed for the owner.
func (c *Contract) SetRewardRate(rate *uint256.Int) (common.Hash, uint32, error) {
	return c.actor.SendCall(c.addr, "setRewardRate", rate)
}

// StakedEventsFromApplicationLog retrieves all Staked events of the contract.
func StakedEventsFromApplicationLog(aer *state.AppExecResult, contract common.Address) ([]*StakeEvent, error) {
	return stakeEvents(aer, contract, "Staked")
}

// UnstakedEventsFromApplicationLog retrieves all Unstaked events of the
// contract.
func UnstakedEventsFromApplicationLog(aer *state.AppExecResult, contract common.Address) ([]*StakeEvent, error) {
	return stakeEvents(aer, contract, "Unstaked")
}

// RewardPaidEventsFromApplicationLog retrieves all RewardPaid events of the
// contract.
func RewardPaidEventsFromApplicationLog(aer *state.AppExecResult, contract common.Address) ([]*RewardPaidEvent, error) {
	var res []*RewardPaidEvent
	err := walkEvents(aer, contract, "RewardPaid", func(arr []stackitem.Item) error {
		user, amount, err := decodePair(arr)
		if err != nil {
			return err
		}
		res = append(res, &RewardPaidEvent{User: user, Reward: amount})
		return nil
	})
	return res, err
}

func stakeEvents(aer *state.AppExecResult, contract common.Address, name string) ([]*StakeEvent, error) {
	var res []*StakeEvent
	err := walkEvents(aer, contract, name, func(arr []stackitem.Item) error {
		user, id, err := decodePair(arr)
		if err != nil {
			return err
		}
		res = append(res, &StakeEvent{User: user, TokenID: id})
		return nil
	})
	return res, err
}

func decodePair(arr []stackitem.Item) (common.Address, *uint256.Int, error) {
	if len(arr) != 2 {
		return common.Address{}, nil, errors.New("wrong number of event parameters")
	}
	user, err := stackitem.ToAddress(arr[0])
	if err != nil {
		return common.Address{}, nil, fmt.Errorf("invalid user: %w", err)
	}
	v, err := stackitem.ToUint256(arr[1])
	if err != nil {
		return common.Address{}, nil, fmt.Errorf("invalid value: %w", err)
	}
	return user, v, nil
}

func walkEvents(aer *state.AppExecResult, contract common.Address, name string, f func([]stackitem.Item) error) error {
	if aer == nil {
		return errors.New("nil application log")
	}
	for i, e := range aer.Events {
		if e.Contract != contract || e.Name != name {
			continue
		}
		if e.Item == nil {
			return fmt.Errorf("event #%d: nil item", i)
		}
		if err := f(e.Item.Value().([]stackitem.Item)); err != nil {
			return fmt.Errorf("failed to decode event #%d: %w", i, err)
		}
	}
	return nil
}
