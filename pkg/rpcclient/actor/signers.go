package actor

import (
	"errors"

	"github.com/nspcc-dev/pesto-go/pkg/neorpc/result"
	"github.com/nspcc-dev/pesto-go/pkg/wallet"
)

// RPCVersion is the part of RPC client needed to enumerate signers.
type RPCVersion interface {
	GetVersion() (*result.Version, error)
}

// Signers returns development accounts known to the node (derived from the
// seed the node reports). The first one is the default deployer.
func Signers(c RPCVersion) ([]*wallet.Account, error) {
	v, err := c.GetVersion()
	if err != nil {
		return nil, err
	}
	if v.Protocol.DevAccountsCount == 0 {
		return nil, errors.New("node has no development accounts")
	}
	return wallet.DevAccounts(v.Protocol.DevAccountsSeed, v.Protocol.DevAccountsCount)
}
