package config

import "fmt"

// Ledger contains core node-specific settings that are not
// a part of the ProtocolConfiguration (which is common for every node on the
// network).
type Ledger struct {
	// ContractCacheSize is the number of contract states cached in memory.
	ContractCacheSize int `yaml:"ContractCacheSize"`
}

// Blockchain is a set of settings for core.Blockchain to use, it includes protocol
// settings and local node-specific ones.
type Blockchain struct {
	ProtocolConfiguration
	Ledger
}

// Validate checks Ledger for internal consistency.
func (l Ledger) Validate() error {
	if l.ContractCacheSize <= 0 {
		return fmt.Errorf("%w: ContractCacheSize must be positive", ErrInvalidConfig)
	}
	return nil
}
