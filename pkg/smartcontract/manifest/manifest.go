package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"slices"
)

const (
	// MaxManifestSize is a max length for a valid contract manifest.
	MaxManifestSize = math.MaxUint16

	// ERC20StandardName represents the name of ERC-20 token standard.
	ERC20StandardName = "ERC-20"
	// ERC721StandardName represents the name of ERC-721 non-fungible token standard.
	ERC721StandardName = "ERC-721"
	// ERC721ReceiverStandardName represents the name of ERC-721 token
	// receiver interface.
	ERC721ReceiverStandardName = "ERC-721-Receiver"
	// OwnableStandardName represents the name of single-owner access
	// control interface.
	OwnableStandardName = "Ownable"
)

// Manifest represens contract metadata.
type Manifest struct {
	// Name is a contract's name.
	Name string `json:"name"`
	// ABI is a contract's ABI.
	ABI ABI `json:"abi"`
	// SupportedStandards is a list of standards supported by the contract.
	SupportedStandards []string `json:"supportedstandards"`
	// Extra is an implementation-defined user data.
	Extra json.RawMessage `json:"extra,omitempty"`
}

// NewManifest returns new manifest with necessary fields initialized.
func NewManifest(name string) *Manifest {
	return &Manifest{
		Name: name,
		ABI: ABI{
			Methods: []Method{},
			Events:  []Event{},
		},
		SupportedStandards: []string{},
	}
}

// IsValid checks manifest internal consistency and correctness.
func (m *Manifest) IsValid() error {
	if m.Name == "" {
		return errors.New("no name")
	}
	for i := range m.SupportedStandards {
		if m.SupportedStandards[i] == "" {
			return errors.New("invalid nameless supported standard")
		}
	}
	if stringsHaveDups(m.SupportedStandards) {
		return errors.New("duplicate supported standards")
	}
	err := m.ABI.IsValid()
	if err != nil {
		return fmt.Errorf("ABI: %w", err)
	}
	if len(m.Extra) != 0 && !json.Valid(m.Extra) {
		return errors.New("invalid extra")
	}
	return nil
}

// IsStandardSupported denotes whether the specified standard is supported by the contract.
func (m *Manifest) IsStandardSupported(standard string) bool {
	return slices.Contains(m.SupportedStandards, standard)
}

func stringsHaveDups(strings []string) bool {
	sorted := slices.Clone(strings)
	slices.Sort(sorted)
	for i := 1; i < len(sorted); i++ {
		if sorted[i] == sorted[i-1] {
			return true
		}
	}
	return false
}
