package core

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/nspcc-dev/pesto-go/pkg/core/state"
	"github.com/nspcc-dev/pesto-go/pkg/vm/vmstate"
)

// NotificationFilter selects notifications by the emitting contract and the
// event name, zero values match anything.
type NotificationFilter struct {
	Contract *common.Address
	Name     string
}

// Matches checks whether the notification satisfies the filter.
func (f NotificationFilter) Matches(ev *state.NotificationEvent) bool {
	return (f.Contract == nil || *f.Contract == ev.Contract) &&
		(f.Name == "" || f.Name == ev.Name)
}

// GetNotifications returns up to limit notifications of successful
// transactions in blocks from start to end inclusive. Blocks are filtered
// with their bloom first, so only the matching ones are read completely.
func (bc *Blockchain) GetNotifications(start, end uint32, f NotificationFilter, limit int) ([]state.ContainedNotificationEvent, error) {
	if start > end {
		return nil, errors.New("start index is greater than end")
	}
	if h := bc.BlockHeight(); end > h {
		end = h
	}
	var res []state.ContainedNotificationEvent
	for i := start; i <= end && (limit <= 0 || len(res) < limit); i++ {
		h, err := bc.GetHeaderHash(i)
		if err != nil {
			return nil, fmt.Errorf("block %d: %w", i, err)
		}
		hdr, txes, err := bc.dao.GetHeader(h)
		if err != nil {
			return nil, fmt.Errorf("block %d: %w", i, err)
		}
		if !hdr.Bloom.MayContain(f.Contract, f.Name) {
			continue
		}
		for _, txh := range txes {
			aer, err := bc.GetAppExecResult(txh)
			if err != nil {
				return nil, fmt.Errorf("transaction %s: %w", txh, err)
			}
			if aer.VMState != vmstate.Halt {
				continue
			}
			for j := range aer.Events {
				if !f.Matches(&aer.Events[j]) {
					continue
				}
				res = append(res, state.ContainedNotificationEvent{
					Container:         aer.Container,
					BlockIndex:        aer.BlockIndex,
					NotificationEvent: aer.Events[j],
				})
				if limit > 0 && len(res) == limit {
					return res, nil
				}
			}
		}
	}
	return res, nil
}
