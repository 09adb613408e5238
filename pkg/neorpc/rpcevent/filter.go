// Package rpcevent contains the event filtering logic shared by the RPC server
// and the websocket client.
package rpcevent

import (
	"github.com/nspcc-dev/pesto-go/pkg/core/block"
	"github.com/nspcc-dev/pesto-go/pkg/core/state"
	"github.com/nspcc-dev/pesto-go/pkg/neorpc"
)

type (
	// Comparator is an interface required from notification event filter to be able to
	// filter notifications.
	Comparator interface {
		EventID() neorpc.EventID
		Filter() any
	}
	// Container is an interface required from notification event to be able to
	// pass filter.
	Container interface {
		EventID() neorpc.EventID
		EventPayload() any
	}
)

// Matches filters our given Container against Comparator filter.
func Matches(f Comparator, r Container) bool {
	expectedEvent := f.EventID()
	filter := f.Filter()
	if r.EventID() != expectedEvent {
		return false
	}
	if filter == nil {
		return true
	}
	switch f.EventID() {
	case neorpc.BlockEventID:
		filt := filter.(neorpc.BlockFilter)
		b := r.EventPayload().(*block.Block)
		sinceOk := filt.Since == nil || *filt.Since <= b.Index
		tillOk := filt.Till == nil || b.Index <= *filt.Till
		return sinceOk && tillOk
	case neorpc.NotificationEventID:
		filt := filter.(neorpc.NotificationFilter)
		notification := r.EventPayload().(*state.ContainedNotificationEvent)
		contractOk := filt.Contract == nil || notification.Contract == *filt.Contract
		nameOk := filt.Name == nil || notification.Name == *filt.Name
		return contractOk && nameOk
	case neorpc.ExecutionEventID:
		filt := filter.(neorpc.ExecutionFilter)
		applog := r.EventPayload().(*state.AppExecResult)
		stateOK := filt.State == nil || applog.VMState.String() == *filt.State
		containerOK := filt.Container == nil || applog.Container == *filt.Container
		return stateOK && containerOK
	}
	return false
}
