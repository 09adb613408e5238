package rpcsrv

import (
	"github.com/gorilla/websocket"
	"github.com/nspcc-dev/pesto-go/pkg/neorpc"
	"go.uber.org/atomic"
)

type (
	// subscriber is an event subscriber.
	subscriber struct {
		writer    chan<- *websocket.PreparedMessage
		overflown atomic.Bool
		// These work like slots as there is not a lot of them (it's
		// cheaper doing it this way rather than creating a map).
		feeds [maxFeeds]feed
	}
	// feed stores subscriber's desired event ID with filter.
	feed struct {
		event  neorpc.EventID
		filter any
	}
)

// EventID implements rpcevent.Comparator interface and returns notification ID.
func (f feed) EventID() neorpc.EventID {
	return f.event
}

// Filter implements rpcevent.Comparator interface and returns notification filter.
func (f feed) Filter() any {
	return f.filter
}

const (
	// Maximum number of subscriptions per one client.
	maxFeeds = 16

	// This sets notification messages buffer depth. Events are generated
	// in bursts (every block brings its executions and notifications at
	// once) while networking is comparatively slow. The channel is about
	// sending pointers, so it's doesn't cost a lot in terms of memory used.
	notificationBufSize = 1024
)
