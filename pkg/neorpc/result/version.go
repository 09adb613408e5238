package result

import (
	"github.com/nspcc-dev/pesto-go/pkg/config/netmode"
)

type (
	// Version model used for reporting server version
	// info.
	Version struct {
		// Nonce is a random node instance identifier regenerated on every
		// start.
		Nonce     uint32   `json:"nonce"`
		UserAgent string   `json:"useragent"`
		Protocol  Protocol `json:"protocol"`
		RPC       RPC      `json:"rpc"`
	}

	// RPC represents the RPC server configuration.
	RPC struct {
		MaxNotifications int `json:"maxnotifications"`
		// DevMethods is true when chain-manipulating methods like
		// mineblocks are enabled.
		DevMethods bool `json:"devmethods"`
	}

	// Protocol represents network-dependent parameters.
	Protocol struct {
		Network                 netmode.Magic `json:"network"`
		ChainID                 uint64        `json:"chainid"`
		MaxTransactionsPerBlock int           `json:"maxtransactionsperblock"`
		// DevAccountsSeed and DevAccountsCount allow clients to derive the
		// same development accounts the node knows.
		DevAccountsSeed  string `json:"devaccountsseed"`
		DevAccountsCount int    `json:"devaccountscount"`
	}
)
