package result

import "github.com/ethereum/go-ethereum/common"

// RelayResult is the result of `sendrawtransaction` RPC call, the
// transaction is already sealed into a block when it's returned.
type RelayResult struct {
	Hash common.Hash `json:"hash"`
}
