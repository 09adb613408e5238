package actor

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/nspcc-dev/pesto-go/pkg/core/state"
	"github.com/nspcc-dev/pesto-go/pkg/neorpc/result"
	"github.com/nspcc-dev/pesto-go/pkg/smartcontract/manifest"
	"github.com/nspcc-dev/pesto-go/pkg/vm/stackitem"
)

// ContractFactory deploys new instances of a contract known to the chain.
type ContractFactory struct {
	actor   *Actor
	factory result.Factory
}

// Factory returns contract factory by its name. It fails for factories
// unknown to the chain.
func (a *Actor) Factory(name string) (*ContractFactory, error) {
	f, err := a.client.GetFactory(name)
	if err != nil {
		return nil, fmt.Errorf("failed to get %s factory: %w", name, err)
	}
	return &ContractFactory{actor: a, factory: *f}, nil
}

// Name returns factory name.
func (f *ContractFactory) Name() string {
	return f.factory.Name
}

// Info returns factory name and manifest.
func (f *ContractFactory) Info() result.Factory {
	return f.factory
}

// CheckArgs checks constructor arguments against the factory manifest.
func (f *ContractFactory) CheckArgs(args ...any) error {
	var params []manifest.Parameter
	if ctor := f.factory.Constructor(); ctor != nil {
		params = ctor.Parameters
	}
	if len(args) != len(params) {
		return fmt.Errorf("%s constructor expects %d arguments, got %d", f.factory.Name, len(params), len(args))
	}
	items, err := toStackItems(args)
	if err != nil {
		return err
	}
	for i := range items {
		if err := params[i].Type.CheckItem(items[i]); err != nil {
			return fmt.Errorf("argument %d (%s): %w", i, params[i].Name, err)
		}
	}
	return nil
}

// Deploy creates a new contract instance with the given constructor
// arguments, waits for the deployment and returns the contract address.
func (f *ContractFactory) Deploy(args ...any) (common.Address, *state.AppExecResult, error) {
	if err := f.CheckArgs(args...); err != nil {
		return common.Address{}, nil, err
	}
	aer, err := checkHalt(f.actor.Wait(f.actor.SendDeploy(f.factory.Name, args...)))
	if err != nil {
		return common.Address{}, aer, err
	}
	if len(aer.Stack) != 1 {
		return common.Address{}, aer, fmt.Errorf("unexpected deployment result stack of %d items", len(aer.Stack))
	}
	addr, err := stackitem.ToAddress(aer.Stack[0])
	if err != nil {
		return common.Address{}, aer, fmt.Errorf("bad deployment result: %w", err)
	}
	return addr, aer, nil
}
