package neorpc

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/nspcc-dev/pesto-go/pkg/core/interop/runtime"
	"github.com/nspcc-dev/pesto-go/pkg/vm/vmstate"
)

type (
	// BlockFilter is a wrapper structure for the block event filter. It allows
	// to filter blocks by block index (allowing blocks since/till the
	// specified index inclusively). nil value treated as missing filter.
	BlockFilter struct {
		Since *uint32 `json:"since,omitempty"`
		Till  *uint32 `json:"till,omitempty"`
	}
	// NotificationFilter is a wrapper structure representing a filter used for
	// notifications generated during transaction execution. Notifications can
	// be filtered by contract address and/or by event name. nil value treated
	// as missing filter.
	NotificationFilter struct {
		Contract *common.Address `json:"contract,omitempty"`
		Name     *string         `json:"name,omitempty"`
	}
	// ExecutionFilter is a wrapper structure used for transaction execution
	// events. It allows to choose failing or successful transactions based on
	// their VM state and/or to choose execution event with the specified
	// container. nil value treated as missing filter.
	ExecutionFilter struct {
		State     *string      `json:"state,omitempty"`
		Container *common.Hash `json:"container,omitempty"`
	}
	// NotificationsRange is a set of getnotifications parameters.
	NotificationsRange struct {
		// Start is the first block to scan, 0 by default.
		Start *uint32 `json:"start,omitempty"`
		// End is the last block to scan, the current height by default.
		End *uint32 `json:"end,omitempty"`
		// Limit is the maximum number of returned notifications, the server
		// limit is used by default.
		Limit *int `json:"limit,omitempty"`
	}
)

// SubscriptionFilter is an interface for all subscription filters.
type SubscriptionFilter interface {
	// IsValid checks whether the filter is valid and returns
	// a specific [ErrInvalidSubscriptionFilter] error if not.
	IsValid() error
}

// ErrInvalidSubscriptionFilter is returned when the subscription filter is invalid.
var ErrInvalidSubscriptionFilter = errors.New("invalid subscription filter")

// Copy creates a deep copy of the BlockFilter. It handles nil BlockFilter correctly.
func (f *BlockFilter) Copy() *BlockFilter {
	if f == nil {
		return nil
	}
	var res = new(BlockFilter)
	if f.Since != nil {
		res.Since = new(uint32)
		*res.Since = *f.Since
	}
	if f.Till != nil {
		res.Till = new(uint32)
		*res.Till = *f.Till
	}
	return res
}

// IsValid implements SubscriptionFilter interface.
func (f BlockFilter) IsValid() error {
	if f.Since != nil && f.Till != nil && *f.Since > *f.Till {
		return fmt.Errorf("%w: BlockFilter since is greater than till", ErrInvalidSubscriptionFilter)
	}
	return nil
}

// Copy creates a deep copy of the NotificationFilter. It handles nil
// NotificationFilter correctly.
func (f *NotificationFilter) Copy() *NotificationFilter {
	if f == nil {
		return nil
	}
	var res = new(NotificationFilter)
	if f.Contract != nil {
		res.Contract = new(common.Address)
		*res.Contract = *f.Contract
	}
	if f.Name != nil {
		res.Name = new(string)
		*res.Name = *f.Name
	}
	return res
}

// IsValid implements SubscriptionFilter interface.
func (f NotificationFilter) IsValid() error {
	if f.Name != nil && len(*f.Name) > runtime.MaxEventNameLen {
		return fmt.Errorf("%w: NotificationFilter name parameter must be less than %d", ErrInvalidSubscriptionFilter, runtime.MaxEventNameLen)
	}
	return nil
}

// Copy creates a deep copy of the ExecutionFilter. It handles nil ExecutionFilter correctly.
func (f *ExecutionFilter) Copy() *ExecutionFilter {
	if f == nil {
		return nil
	}
	var res = new(ExecutionFilter)
	if f.State != nil {
		res.State = new(string)
		*res.State = *f.State
	}
	if f.Container != nil {
		res.Container = new(common.Hash)
		*res.Container = *f.Container
	}
	return res
}

// IsValid implements SubscriptionFilter interface.
func (f ExecutionFilter) IsValid() error {
	if f.State != nil {
		if *f.State != vmstate.Halt.String() && *f.State != vmstate.Fault.String() {
			return fmt.Errorf("%w: ExecutionFilter state parameter must be either %s or %s", ErrInvalidSubscriptionFilter, vmstate.Halt, vmstate.Fault)
		}
	}
	return nil
}
