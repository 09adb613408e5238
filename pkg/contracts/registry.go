// Package contracts contains the registry of contract factories known to the
// chain.
package contracts

import (
	"fmt"
	"slices"

	"github.com/nspcc-dev/pesto-go/pkg/contracts/pesto"
	"github.com/nspcc-dev/pesto-go/pkg/contracts/pestonft"
	"github.com/nspcc-dev/pesto-go/pkg/contracts/staking"
	"github.com/nspcc-dev/pesto-go/pkg/core/interop"
	"github.com/nspcc-dev/pesto-go/pkg/smartcontract/manifest/standard"
)

// Registry is a set of contract factories keyed by name.
type Registry struct {
	byName map[string]interop.Contract
	names  []string
}

// NewRegistry returns registry with the given contracts. Contract manifests
// are checked for consistency and compliance with the standards they claim.
func NewRegistry(cs ...interop.Contract) (*Registry, error) {
	r := &Registry{byName: make(map[string]interop.Contract, len(cs))}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// NewDefault returns registry with all contracts shipped with the node.
func NewDefault() *Registry {
	r, err := NewRegistry(pesto.New(), pestonft.New(), staking.New())
	if err != nil {
		panic(err)
	}
	return r
}

// Register adds the contract factory to the registry.
func (r *Registry) Register(c interop.Contract) error {
	md := c.Metadata()
	if _, ok := r.byName[md.Name]; ok {
		return fmt.Errorf("duplicate contract factory %s", md.Name)
	}
	if err := md.Manifest.IsValid(); err != nil {
		return fmt.Errorf("%s: invalid manifest: %w", md.Name, err)
	}
	if err := standard.CheckSupported(&md.Manifest); err != nil {
		return fmt.Errorf("%s: %w", md.Name, err)
	}
	r.byName[md.Name] = c
	r.names = append(r.names, md.Name)
	slices.Sort(r.names)
	return nil
}

// GetFactory implements the interop.Factories interface.
func (r *Registry) GetFactory(name string) (interop.Contract, error) {
	c, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", interop.ErrUnknownFactory, name)
	}
	return c, nil
}

// Names returns sorted factory names.
func (r *Registry) Names() []string {
	return slices.Clone(r.names)
}

// List returns metadata of all factories sorted by name.
func (r *Registry) List() []*interop.ContractMD {
	res := make([]*interop.ContractMD, 0, len(r.names))
	for _, n := range r.names {
		res = append(res, r.byName[n].Metadata())
	}
	return res
}
