/*
Package local provides an RPC-like client served directly by an in-process
development chain. It has the same method set as rpcclient.Client (so it can
back actor, invoker and waiter) and reports errors the way a remote node
does, with neorpc error codes.
*/
package local

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/nspcc-dev/pesto-go/pkg/config"
	"github.com/nspcc-dev/pesto-go/pkg/core"
	"github.com/nspcc-dev/pesto-go/pkg/core/block"
	"github.com/nspcc-dev/pesto-go/pkg/core/interop"
	"github.com/nspcc-dev/pesto-go/pkg/core/state"
	"github.com/nspcc-dev/pesto-go/pkg/core/transaction"
	"github.com/nspcc-dev/pesto-go/pkg/io"
	"github.com/nspcc-dev/pesto-go/pkg/neorpc"
	"github.com/nspcc-dev/pesto-go/pkg/neorpc/result"
	"github.com/nspcc-dev/pesto-go/pkg/smartcontract"
)

// Client wraps a running core.Blockchain.
type Client struct {
	chain *core.Blockchain
	ctx   context.Context
}

// New creates a client for the given chain. The chain is expected to be
// running, ctx bounds the client lifetime.
func New(ctx context.Context, chain *core.Blockchain) *Client {
	return &Client{chain: chain, ctx: ctx}
}

// Context returns client context.
func (c *Client) Context() context.Context {
	return c.ctx
}

// Chain returns the underlying chain.
func (c *Client) Chain() *core.Blockchain {
	return c.chain
}

// GetApplicationLog returns the execution result of the transaction.
func (c *Client) GetApplicationLog(hash common.Hash) (*state.AppExecResult, error) {
	aer, err := c.chain.GetAppExecResult(hash)
	if err != nil {
		return nil, neorpc.WrapErrorWithData(neorpc.ErrUnknownTransaction, err.Error())
	}
	return aer, nil
}

// GetBestBlockHash returns the hash of the current top block.
func (c *Client) GetBestBlockHash() (common.Hash, error) {
	return c.chain.CurrentBlockHash(), nil
}

// GetBlockCount returns the number of blocks in the chain.
func (c *Client) GetBlockCount() (uint32, error) {
	return c.chain.BlockHeight() + 1, nil
}

// GetBlockHash returns the hash of the block with the given index.
func (c *Client) GetBlockHash(index uint32) (common.Hash, error) {
	h, err := c.chain.GetHeaderHash(index)
	if err != nil {
		return common.Hash{}, neorpc.WrapErrorWithData(neorpc.ErrUnknownBlock, err.Error())
	}
	return h, nil
}

// GetBlockByIndex returns the block with the given index.
func (c *Client) GetBlockByIndex(index uint32) (*block.Block, error) {
	h, err := c.GetBlockHash(index)
	if err != nil {
		return nil, err
	}
	return c.GetBlockByHash(h)
}

// GetBlockByHash returns the block with the given hash.
func (c *Client) GetBlockByHash(hash common.Hash) (*block.Block, error) {
	b, err := c.chain.GetBlock(hash)
	if err != nil {
		return nil, neorpc.WrapErrorWithData(neorpc.ErrUnknownBlock, err.Error())
	}
	return b, nil
}

// GetBlockByIndexVerbose returns the block with the given index along with
// its metadata.
func (c *Client) GetBlockByIndexVerbose(index uint32) (*result.Block, error) {
	b, err := c.GetBlockByIndex(index)
	if err != nil {
		return nil, err
	}
	raw, err := io.ToByteArray(b)
	if err != nil {
		return nil, err
	}
	height := c.chain.BlockHeight()
	res := &result.Block{
		Block: *b,
		BlockMetadata: result.BlockMetadata{
			Size:          len(raw),
			Confirmations: height - b.Index + 1,
		},
	}
	if b.Index < height {
		if next, err := c.chain.GetHeaderHash(b.Index + 1); err == nil {
			res.NextBlockHash = &next
		}
	}
	return res, nil
}

// GetContractState returns deployed contract information.
func (c *Client) GetContractState(addr common.Address) (*state.Contract, error) {
	cs, err := c.chain.GetContractState(addr)
	if err != nil {
		return nil, neorpc.WrapErrorWithData(neorpc.ErrUnknownContract, err.Error())
	}
	return cs, nil
}

func newFactory(md *interop.ContractMD) result.Factory {
	return result.Factory{Name: md.Name, Manifest: md.Manifest}
}

// GetFactories returns all contract factories known to the chain.
func (c *Client) GetFactories() ([]result.Factory, error) {
	mds := c.chain.GetFactories()
	res := make([]result.Factory, 0, len(mds))
	for _, md := range mds {
		res = append(res, newFactory(md))
	}
	return res, nil
}

// GetFactory returns contract factory by name.
func (c *Client) GetFactory(name string) (*result.Factory, error) {
	md, err := c.chain.GetFactory(name)
	if err != nil {
		return nil, neorpc.WrapErrorWithData(neorpc.ErrUnknownFactory, err.Error())
	}
	f := newFactory(md)
	return &f, nil
}

// GetNonce returns the next nonce of the account.
func (c *Client) GetNonce(addr common.Address) (uint64, error) {
	return c.chain.GetNonce(addr), nil
}

// GetNotifications returns notifications from the given range matching the
// filter. The whole chain is scanned by default and the result is limited by
// config.DefaultMaxNotifications.
func (c *Client) GetNotifications(rng *neorpc.NotificationsRange, filter *neorpc.NotificationFilter) (*result.Notifications, error) {
	var (
		start uint32
		end   = c.chain.BlockHeight()
		limit = config.DefaultMaxNotifications
		f     core.NotificationFilter
	)
	if rng != nil {
		if rng.Start != nil {
			start = *rng.Start
		}
		if rng.End != nil {
			end = *rng.End
		}
		if rng.Limit != nil {
			if *rng.Limit <= 0 {
				return nil, neorpc.WrapErrorWithData(neorpc.ErrInvalidParams, "limit should be positive")
			}
			limit = min(limit, *rng.Limit)
		}
	}
	if start > end {
		return nil, neorpc.WrapErrorWithData(neorpc.ErrInvalidParams, "start index is greater than end")
	}
	if filter != nil {
		if err := filter.IsValid(); err != nil {
			return nil, neorpc.WrapErrorWithData(neorpc.ErrInvalidParams, err.Error())
		}
		f.Contract = filter.Contract
		if filter.Name != nil {
			f.Name = *filter.Name
		}
	}
	ntfs, err := c.chain.GetNotifications(start, end, f, limit)
	if err != nil {
		return nil, neorpc.NewInternalServerError(err.Error())
	}
	if ntfs == nil {
		ntfs = []state.ContainedNotificationEvent{}
	}
	return &result.Notifications{Notifications: ntfs, Truncated: len(ntfs) == limit}, nil
}

// GetVersion returns chain parameters. Nonce is always zero for local
// clients.
func (c *Client) GetVersion() (*result.Version, error) {
	cfg := c.chain.GetConfig()
	return &result.Version{
		UserAgent: fmt.Sprintf(config.UserAgentFormat, config.Version),
		Protocol: result.Protocol{
			Network:                 cfg.Magic,
			ChainID:                 cfg.ChainID,
			MaxTransactionsPerBlock: cfg.MaxTransactionsPerBlock,
			DevAccountsSeed:         cfg.DevAccounts.Seed,
			DevAccountsCount:        cfg.DevAccounts.Count,
		},
		RPC: result.RPC{
			MaxNotifications: config.DefaultMaxNotifications,
			DevMethods:       true,
		},
	}, nil
}

// InvokeFunction performs a read-only call.
func (c *Client) InvokeFunction(contract common.Address, method string, params []smartcontract.Parameter, sender *common.Address) (*result.Invoke, error) {
	args, err := smartcontract.ToStackItems(params)
	if err != nil {
		return nil, neorpc.WrapErrorWithData(neorpc.ErrInvalidParams, err.Error())
	}
	var from common.Address
	if sender != nil {
		from = *sender
	}
	return &result.Invoke{Execution: *c.chain.Call(from, contract, method, args)}, nil
}

// SendRawTransaction seals the transaction into a new block.
func (c *Client) SendRawTransaction(tx *transaction.Transaction) (common.Hash, error) {
	_, err := c.chain.AddBlock(tx)
	if err != nil {
		return common.Hash{}, relayError(err)
	}
	return tx.Hash(), nil
}

// MineBlocks seals n empty blocks.
func (c *Client) MineBlocks(n int) (uint32, error) {
	if n <= 0 {
		return 0, neorpc.WrapErrorWithData(neorpc.ErrInvalidParams, "number of blocks should be positive")
	}
	height, err := c.chain.MineBlocks(n)
	if err != nil {
		return 0, neorpc.NewInternalServerError(err.Error())
	}
	return height, nil
}

func relayError(err error) error {
	switch {
	case errors.Is(err, core.ErrAlreadyExists):
		return neorpc.WrapErrorWithData(neorpc.ErrAlreadyExists, err.Error())
	case errors.Is(err, core.ErrInvalidNonce):
		return neorpc.WrapErrorWithData(neorpc.ErrInvalidNonce, err.Error())
	case errors.Is(err, transaction.ErrInvalidSignature):
		return neorpc.WrapErrorWithData(neorpc.ErrInvalidSignature, err.Error())
	case errors.Is(err, core.ErrInvalidChainID), errors.Is(err, core.ErrInvalidTransaction),
		errors.Is(err, core.ErrTooManyTransactions):
		return neorpc.WrapErrorWithData(neorpc.ErrValidationFailed, err.Error())
	default:
		return neorpc.WrapErrorWithData(neorpc.ErrUnknown, err.Error())
	}
}
