// Package interop contains the execution context of contract methods along
// with the contract metadata structures.
package interop

import (
	"errors"
	"fmt"
	"slices"

	"github.com/ethereum/go-ethereum/common"
	"github.com/nspcc-dev/pesto-go/pkg/core/block"
	"github.com/nspcc-dev/pesto-go/pkg/core/dao"
	"github.com/nspcc-dev/pesto-go/pkg/core/state"
	"github.com/nspcc-dev/pesto-go/pkg/core/transaction"
	"github.com/nspcc-dev/pesto-go/pkg/smartcontract"
	"github.com/nspcc-dev/pesto-go/pkg/smartcontract/manifest"
	"github.com/nspcc-dev/pesto-go/pkg/vm/stackitem"
	"go.uber.org/zap"
)

// MaxCallDepth is the maximum depth of nested contract calls.
const MaxCallDepth = 64

// ErrUnknownFactory is returned for contract factories not known to the chain.
var ErrUnknownFactory = errors.New("unknown contract factory")

// Method is a signature for a contract method implementation. It panics
// (usually via Revert) to abort the execution.
type Method = func(ic *Context, args []stackitem.Item) stackitem.Item

// MethodAndPrice is a contract method with its descriptor and execution
// price.
type MethodAndPrice struct {
	Func  Method
	MD    manifest.Method
	Price int64
}

// Contract is an interface for contract implementations. A single
// implementation serves all deployed instances of the contract, instance
// state lives in the instance storage.
type Contract interface {
	Metadata() *ContractMD
}

// Factories provides contract implementations by factory name.
type Factories interface {
	GetFactory(name string) (Contract, error)
}

// ContractMD represents contract factory metadata.
type ContractMD struct {
	Name        string
	Manifest    manifest.Manifest
	Constructor *MethodAndPrice
	Methods     []MethodAndPrice
}

// NewContractMD returns Contract with the specified list of methods.
func NewContractMD(name string) *ContractMD {
	return &ContractMD{
		Name:     name,
		Manifest: *manifest.NewManifest(name),
	}
}

// AddMethod adds a new method to a contract.
func (c *ContractMD) AddMethod(md *MethodAndPrice, desc *manifest.Method) {
	md.MD = *desc
	c.Manifest.ABI.Methods = append(c.Manifest.ABI.Methods, *desc)
	c.Methods = append(c.Methods, *md)
}

// AddConstructor sets the function called once on deployment, its parameters
// are published in the manifest as a "constructor" pseudo-method.
func (c *ContractMD) AddConstructor(md *MethodAndPrice, params ...manifest.Parameter) {
	desc := manifest.Method{
		Name:       manifest.MethodConstructor,
		Parameters: params,
		ReturnType: smartcontract.VoidType,
	}
	if desc.Parameters == nil {
		desc.Parameters = []manifest.Parameter{}
	}
	md.MD = desc
	c.Manifest.ABI.Methods = append(c.Manifest.ABI.Methods, desc)
	c.Constructor = md
}

// AddEvent adds a new event to a contract.
func (c *ContractMD) AddEvent(name string, ps ...manifest.Parameter) {
	c.Manifest.ABI.Events = append(c.Manifest.ABI.Events, manifest.Event{
		Name:       name,
		Parameters: ps,
	})
}

// AddStandard marks the contract as compliant with the standard.
func (c *ContractMD) AddStandard(name string) {
	c.Manifest.SupportedStandards = append(c.Manifest.SupportedStandards, name)
}

// GetMethod returns method with the provided name and parameter count.
func (c *ContractMD) GetMethod(name string, paramCount int) (MethodAndPrice, bool) {
	i := slices.IndexFunc(c.Methods, func(m MethodAndPrice) bool {
		return m.MD.Name == name && len(m.MD.Parameters) == paramCount
	})
	if i < 0 {
		return MethodAndPrice{}, false
	}
	return c.Methods[i], true
}

// frame is a single contract invocation.
type frame struct {
	contract *state.Contract
	impl     Contract
	caller   common.Address
	readOnly bool
}

// Context represents context in which contract methods are executed.
type Context struct {
	Block         *block.Block
	Tx            *transaction.Transaction
	DAO           *dao.Simple
	Factories     Factories
	Notifications []state.NotificationEvent
	Log           *zap.Logger
	GasConsumed   int64

	getContract func(*dao.Simple, common.Address) (*state.Contract, error)
	frames      []frame
}

// NewContext returns new interop context.
func NewContext(d *dao.Simple, factories Factories, getContract func(*dao.Simple, common.Address) (*state.Contract, error),
	b *block.Block, tx *transaction.Transaction, log *zap.Logger) *Context {
	return &Context{
		Block:         b,
		Tx:            tx,
		DAO:           d,
		Factories:     factories,
		Notifications: make([]state.NotificationEvent, 0),
		Log:           log,
		getContract:   getContract,
	}
}

// GetContract returns a deployed contract state by its address.
func (ic *Context) GetContract(addr common.Address) (*state.Contract, error) {
	return ic.getContract(ic.DAO, addr)
}

// BlockHeight returns the index of the block transaction is executed in.
func (ic *Context) BlockHeight() uint32 {
	return ic.Block.Index
}

// Sender returns the account that sent the transaction being executed.
func (ic *Context) Sender() common.Address {
	if ic.Tx == nil {
		return common.Address{}
	}
	return ic.Tx.Sender
}

// CurrentContract returns the state of the executing contract, it's nil
// outside of any contract.
func (ic *Context) CurrentContract() *state.Contract {
	if len(ic.frames) == 0 {
		return nil
	}
	return ic.frames[len(ic.frames)-1].contract
}

// Self returns the address of the executing contract.
func (ic *Context) Self() common.Address {
	if cs := ic.CurrentContract(); cs != nil {
		return cs.Address
	}
	return common.Address{}
}

// Caller returns the address of the account or contract that called the
// executing contract, it's the transaction sender for the first frame.
func (ic *Context) Caller() common.Address {
	if len(ic.frames) == 0 {
		return ic.Sender()
	}
	return ic.frames[len(ic.frames)-1].caller
}

// ReadOnly tells whether the executing frame is not allowed to modify
// storage.
func (ic *Context) ReadOnly() bool {
	return len(ic.frames) != 0 && ic.frames[len(ic.frames)-1].readOnly
}

// CallDepth returns the number of active contract frames.
func (ic *Context) CallDepth() int {
	return len(ic.frames)
}

// PushFrame enters the contract. Caller of the new frame is the executing
// contract or the transaction sender.
func (ic *Context) PushFrame(cs *state.Contract, impl Contract, readOnly bool) {
	if len(ic.frames) >= MaxCallDepth {
		Revert("call stack is too deep")
	}
	caller := ic.Self()
	if len(ic.frames) == 0 {
		caller = ic.Sender()
	} else {
		readOnly = readOnly || ic.ReadOnly()
	}
	ic.frames = append(ic.frames, frame{
		contract: cs,
		impl:     impl,
		caller:   caller,
		readOnly: readOnly,
	})
}

// PopFrame leaves the current contract.
func (ic *Context) PopFrame() {
	ic.frames = ic.frames[:len(ic.frames)-1]
}

// AddNotification appends an event emitted by the executing contract.
func (ic *Context) AddNotification(name string, item *stackitem.Array) {
	ic.Notifications = append(ic.Notifications, state.NotificationEvent{
		Contract: ic.Self(),
		Name:     name,
		Item:     item,
	})
}

// RevertError is the reason of an aborted execution.
type RevertError struct {
	Reason string
}

// Error implements the error interface.
func (e *RevertError) Error() string {
	return e.Reason
}

// Revert aborts the execution with the formatted reason.
func Revert(format string, args ...any) {
	panic(&RevertError{Reason: fmt.Sprintf(format, args...)})
}

// Require reverts the execution with the reason if cond is false.
func Require(cond bool, reason string) {
	if !cond {
		panic(&RevertError{Reason: reason})
	}
}

// Run executes f recovering from any panic inside it. Execution errors are
// returned along with the partial call stack being reset.
func (ic *Context) Run(f func() stackitem.Item) (res stackitem.Item, err error) {
	defer func() {
		if r := recover(); r != nil {
			ic.frames = ic.frames[:0]
			res = nil
			switch e := r.(type) {
			case *RevertError:
				err = e
			case error:
				err = e
			default:
				err = fmt.Errorf("panic: %v", r)
			}
			if ic.Log != nil {
				ic.Log.Debug("execution aborted", zap.Error(err))
			}
		}
	}()
	return f(), nil
}
