package rpcclient

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/nspcc-dev/pesto-go/pkg/core/block"
	"github.com/nspcc-dev/pesto-go/pkg/core/state"
	"github.com/nspcc-dev/pesto-go/pkg/core/transaction"
	"github.com/nspcc-dev/pesto-go/pkg/io"
	"github.com/nspcc-dev/pesto-go/pkg/neorpc"
	"github.com/nspcc-dev/pesto-go/pkg/neorpc/result"
	"github.com/nspcc-dev/pesto-go/pkg/smartcontract"
)

// GetApplicationLog returns the execution result of the transaction with the
// specified hash.
func (c *Client) GetApplicationLog(hash common.Hash) (*state.AppExecResult, error) {
	var (
		params = []any{hash}
		resp   = new(state.AppExecResult)
	)
	if err := c.performRequest("getapplicationlog", params, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// GetBestBlockHash returns the hash of the tallest block in the blockchain.
func (c *Client) GetBestBlockHash() (common.Hash, error) {
	var resp common.Hash
	if err := c.performRequest("getbestblockhash", nil, &resp); err != nil {
		return resp, err
	}
	return resp, nil
}

// GetBlockCount returns the number of blocks in the blockchain.
func (c *Client) GetBlockCount() (uint32, error) {
	var resp uint32
	if err := c.performRequest("getblockcount", nil, &resp); err != nil {
		return resp, err
	}
	return resp, nil
}

// GetBlockHash returns the hash of the block with the specified index.
func (c *Client) GetBlockHash(index uint32) (common.Hash, error) {
	var resp common.Hash
	if err := c.performRequest("getblockhash", []any{index}, &resp); err != nil {
		return resp, err
	}
	return resp, nil
}

// GetBlockByIndex returns a block by its height.
func (c *Client) GetBlockByIndex(index uint32) (*block.Block, error) {
	return c.getBlock(index)
}

// GetBlockByHash returns a block by its hash.
func (c *Client) GetBlockByHash(hash common.Hash) (*block.Block, error) {
	return c.getBlock(hash)
}

func (c *Client) getBlock(param any) (*block.Block, error) {
	var resp string
	if err := c.performRequest("getblock", []any{param}, &resp); err != nil {
		return nil, err
	}
	raw, err := hexutil.Decode(resp)
	if err != nil {
		return nil, fmt.Errorf("bad block encoding: %w", err)
	}
	b := new(block.Block)
	if err := io.FromByteArray(b, raw); err != nil {
		return nil, err
	}
	return b, nil
}

// GetBlockByIndexVerbose returns a block wrapper with additional metadata by
// its height.
func (c *Client) GetBlockByIndexVerbose(index uint32) (*result.Block, error) {
	return c.getBlockVerbose(index)
}

// GetBlockByHashVerbose returns a block wrapper with additional metadata by
// its hash.
func (c *Client) GetBlockByHashVerbose(hash common.Hash) (*result.Block, error) {
	return c.getBlockVerbose(hash)
}

func (c *Client) getBlockVerbose(param any) (*result.Block, error) {
	var (
		params = []any{param, true}
		resp   = new(result.Block)
	)
	if err := c.performRequest("getblock", params, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// GetContractState queries contract information by its address.
func (c *Client) GetContractState(addr common.Address) (*state.Contract, error) {
	var resp = new(state.Contract)
	if err := c.performRequest("getcontractstate", []any{addr}, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// GetFactories returns the list of contract factories known to the node.
func (c *Client) GetFactories() ([]result.Factory, error) {
	var resp []result.Factory
	if err := c.performRequest("getfactories", nil, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// GetFactory returns contract factory by its name, neorpc.ErrUnknownFactory
// is returned for unknown names.
func (c *Client) GetFactory(name string) (*result.Factory, error) {
	var resp = new(result.Factory)
	if err := c.performRequest("getfactory", []any{name}, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// GetNonce returns the next nonce to be used by the account.
func (c *Client) GetNonce(addr common.Address) (uint64, error) {
	var resp uint64
	if err := c.performRequest("getnonce", []any{addr}, &resp); err != nil {
		return 0, err
	}
	return resp, nil
}

// GetNotifications returns notifications emitted in the specified block range
// that match the filter. Both parameters are optional.
func (c *Client) GetNotifications(rng *neorpc.NotificationsRange, filter *neorpc.NotificationFilter) (*result.Notifications, error) {
	var (
		params = []any{rng}
		resp   = new(result.Notifications)
	)
	if filter != nil {
		params = append(params, filter)
	}
	if err := c.performRequest("getnotifications", params, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// GetVersion returns the version information about the queried node.
func (c *Client) GetVersion() (*result.Version, error) {
	var resp = new(result.Version)
	if err := c.performRequest("getversion", nil, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// InvokeFunction performs a read-only call of the contract method with the
// given parameters. The sender is optional, the zero address is used by
// default.
func (c *Client) InvokeFunction(contract common.Address, method string, params []smartcontract.Parameter, sender *common.Address) (*result.Invoke, error) {
	var p = []any{contract, method, params}
	if params == nil {
		p[2] = []smartcontract.Parameter{}
	}
	if sender != nil {
		p = append(p, *sender)
	}
	var resp = new(result.Invoke)
	if err := c.performRequest("invokefunction", p, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// SendRawTransaction sends the signed transaction to the node. The node seals
// it into a new block before answering, so the result is available right
// after this call returns.
func (c *Client) SendRawTransaction(tx *transaction.Transaction) (common.Hash, error) {
	var (
		params = []any{hexutil.Encode(tx.Bytes())}
		resp   = new(result.RelayResult)
	)
	if err := c.performRequest("sendrawtransaction", params, resp); err != nil {
		return common.Hash{}, err
	}
	return resp.Hash, nil
}

// MineBlocks asks the node to seal n empty blocks and returns the new chain
// height. It's only available on nodes with development methods enabled.
func (c *Client) MineBlocks(n int) (uint32, error) {
	var resp uint32
	if err := c.performRequest("mineblocks", []any{n}, &resp); err != nil {
		return 0, err
	}
	return resp, nil
}
