package config

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/nspcc-dev/pesto-go/pkg/config/netmode"
)

const (
	// DefaultDevAccountsSeed is the seed dev accounts are derived from unless
	// configured otherwise. These keys are public knowledge, never use them
	// outside of development networks.
	DefaultDevAccountsSeed = "pesto development accounts"
	// DefaultDevAccountsCount is the default number of derived dev accounts.
	DefaultDevAccountsCount = 20
	// MaxDevAccountsCount is the maximum allowed number of derived dev accounts.
	MaxDevAccountsCount = 256
	// DefaultMaxTransactionsPerBlock is the default limit of transactions
	// sealed into a single block.
	DefaultMaxTransactionsPerBlock = 512
)

type (
	// ProtocolConfiguration represents the protocol config.
	ProtocolConfiguration struct {
		// Magic is the network identifier.
		Magic netmode.Magic `yaml:"Magic"`
		// ChainID is included into every transaction and checked by the chain.
		ChainID uint64 `yaml:"ChainID"`
		// DevAccounts describes deterministic development accounts known to
		// every participant of the network.
		DevAccounts DevAccounts `yaml:"DevAccounts"`
		// MaxTransactionsPerBlock limits the number of transactions in a block.
		MaxTransactionsPerBlock int `yaml:"MaxTransactionsPerBlock"`
		// Deployments holds default constructor parameters of deployment presets.
		Deployments Deployments `yaml:"Deployments"`
	}

	// DevAccounts is a set of deterministic development accounts.
	DevAccounts struct {
		Seed  string `yaml:"Seed"`
		Count int    `yaml:"Count"`
	}

	// Deployments contains deployment presets.
	Deployments struct {
		Staking StakingDeployment `yaml:"Staking"`
	}

	// StakingDeployment is a set of Staking contract constructor parameters.
	StakingDeployment struct {
		NFT   string `yaml:"NFT"`
		Token string `yaml:"Token"`
		Rate  uint64 `yaml:"Rate"`
	}
)

// DefaultDeployments returns deployment presets used when configuration
// doesn't override them.
func DefaultDeployments() Deployments {
	return Deployments{
		Staking: StakingDeployment{
			NFT:   "0xcd3b766ccdd6ae721141f452c550ca635964ce71",
			Token: "0x12970e6868f88f6557b76120662c1b3e50a646bf",
			Rate:  1,
		},
	}
}

// Validate checks ProtocolConfiguration for internal consistency and returns
// an error if anything inappropriate found.
func (p *ProtocolConfiguration) Validate() error {
	if p.ChainID == 0 {
		return fmt.Errorf("%w: ChainID must be non-zero", ErrInvalidConfig)
	}
	if p.DevAccounts.Seed == "" {
		return fmt.Errorf("%w: empty DevAccounts.Seed", ErrInvalidConfig)
	}
	if p.DevAccounts.Count <= 0 || p.DevAccounts.Count > MaxDevAccountsCount {
		return fmt.Errorf("%w: DevAccounts.Count must be in [1, %d] range", ErrInvalidConfig, MaxDevAccountsCount)
	}
	if p.MaxTransactionsPerBlock <= 0 {
		return fmt.Errorf("%w: MaxTransactionsPerBlock must be positive", ErrInvalidConfig)
	}
	return p.Deployments.Staking.Validate()
}

// Validate checks that preset addresses are well-formed.
func (s StakingDeployment) Validate() error {
	for _, a := range []string{s.NFT, s.Token} {
		if a != "" && !common.IsHexAddress(a) {
			return fmt.Errorf("%w: bad Staking deployment address %q", ErrInvalidConfig, a)
		}
	}
	return nil
}
