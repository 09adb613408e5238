package nativeutil

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/nspcc-dev/pesto-go/pkg/core/interop"
	"github.com/nspcc-dev/pesto-go/pkg/core/interop/runtime"
	"github.com/nspcc-dev/pesto-go/pkg/core/interop/storage"
	"github.com/nspcc-dev/pesto-go/pkg/smartcontract"
	"github.com/nspcc-dev/pesto-go/pkg/smartcontract/manifest"
	"github.com/nspcc-dev/pesto-go/pkg/vm/stackitem"
)

// Ownable implements single-owner access control, the owner is kept in the
// contract storage under Key.
type Ownable struct {
	Key []byte
}

// Register adds Ownable methods and event to the contract metadata.
func (o *Ownable) Register(md *interop.ContractMD) {
	desc := NewSafeDescriptor("owner", smartcontract.AddressType)
	md.AddMethod(NewMethodAndPrice(o.owner, PriceRead), desc)

	desc = NewDescriptor("transferOwnership", smartcontract.VoidType,
		manifest.NewParameter("newOwner", smartcontract.AddressType))
	md.AddMethod(NewMethodAndPrice(o.transferOwnership, PriceWrite), desc)

	desc = NewDescriptor("renounceOwnership", smartcontract.VoidType)
	md.AddMethod(NewMethodAndPrice(o.renounceOwnership, PriceWrite), desc)

	md.AddEvent("OwnershipTransferred",
		manifest.NewParameter("previousOwner", smartcontract.AddressType),
		manifest.NewParameter("newOwner", smartcontract.AddressType))
	md.AddStandard(manifest.OwnableStandardName)
}

// Owner returns the current owner.
func (o *Ownable) Owner(ic *interop.Context) common.Address {
	return storage.GetAddress(ic, o.Key)
}

// CheckOwner reverts unless the caller is the owner.
func (o *Ownable) CheckOwner(ic *interop.Context) {
	interop.Require(o.Owner(ic) == ic.Caller(), "Ownable: caller is not the owner")
}

// SetOwner changes the owner and emits OwnershipTransferred.
func (o *Ownable) SetOwner(ic *interop.Context, newOwner common.Address) {
	old := o.Owner(ic)
	storage.PutAddress(ic, o.Key, newOwner)
	runtime.Notify(ic, "OwnershipTransferred", stackitem.Make(old), stackitem.Make(newOwner))
}

func (o *Ownable) owner(ic *interop.Context, _ []stackitem.Item) stackitem.Item {
	return stackitem.Make(o.Owner(ic))
}

func (o *Ownable) transferOwnership(ic *interop.Context, args []stackitem.Item) stackitem.Item {
	o.CheckOwner(ic)
	newOwner := ToAddress(args[0])
	interop.Require(!IsZero(newOwner), "Ownable: new owner is the zero address")
	o.SetOwner(ic, newOwner)
	return stackitem.Null{}
}

func (o *Ownable) renounceOwnership(ic *interop.Context, _ []stackitem.Item) stackitem.Item {
	o.CheckOwner(ic)
	o.SetOwner(ic, common.Address{})
	return stackitem.Null{}
}
