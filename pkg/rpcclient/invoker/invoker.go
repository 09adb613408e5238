/*
Package invoker provides a convenient wrapper to perform read-only calls of
contract methods. Calls never produce transactions and don't change the chain
state.
*/
package invoker

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/nspcc-dev/pesto-go/pkg/neorpc/result"
	"github.com/nspcc-dev/pesto-go/pkg/smartcontract"
)

// RPCInvoke is a set of RPC methods needed to execute things at the current
// blockchain height.
type RPCInvoke interface {
	InvokeFunction(contract common.Address, method string, params []smartcontract.Parameter, sender *common.Address) (*result.Invoke, error)
}

// Invoker allows to test-execute things using RPC client. Its API simplifies
// reusing the same sender for a series of invocations and at the same time
// uses regular Go types for call parameters. It doesn't do anything with the
// result of invocation, that's left for upper (contract) layer to deal with.
type Invoker struct {
	client RPCInvoke
	sender *common.Address
}

// New creates an Invoker. The sender is optional, when it's set calls are
// performed on its behalf (affecting methods checking the caller).
func New(client RPCInvoke, sender *common.Address) *Invoker {
	return &Invoker{client: client, sender: sender}
}

// Sender returns invoker's sender, nil if not set.
func (v *Invoker) Sender() *common.Address {
	return v.sender
}

// Call invokes a method of the contract with the given parameters. Parameters
// are converted with smartcontract.NewParameterFromValue.
func (v *Invoker) Call(contract common.Address, method string, params ...any) (*result.Invoke, error) {
	ps, err := smartcontract.NewParametersFromValues(params...)
	if err != nil {
		return nil, fmt.Errorf("failed to convert parameters: %w", err)
	}
	return v.client.InvokeFunction(contract, method, ps, v.sender)
}
