package rpcclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/nspcc-dev/pesto-go/pkg/core/block"
	"github.com/nspcc-dev/pesto-go/pkg/core/state"
	"github.com/nspcc-dev/pesto-go/pkg/neorpc"
	"github.com/nspcc-dev/pesto-go/pkg/neorpc/rpcevent"
)

// WSClient is a websocket-enabled RPC client that can be used with appropriate
// servers. It's supposed to be faster than Client because it has persistent
// connection to the server and at the same time it exposes some functionality
// that is only provided via websockets (like event subscription mechanism).
//
// Events are delivered to receiver channels in the order they arrive from
// the server, a receiver not reading its channel blocks all the other ones.
// Receiver channels are closed when the connection is lost or the server
// reports a missed event.
type WSClient struct {
	Client

	ws          *websocket.Conn
	done        chan struct{}
	requests    chan *neorpc.Request
	shutdown    chan struct{}
	closeCalled sync.Once

	closeErrLock sync.RWMutex
	closeErr     error

	subscriptionsLock sync.RWMutex
	receivers         map[string]notificationReceiver

	respLock     sync.RWMutex
	respChannels map[uint64]chan *neorpc.Response
}

// notificationReceiver is a server events receiver. It stores the desired
// event ID, filter and a channel for matching events.
type notificationReceiver interface {
	rpcevent.Comparator
	// Receiver returns the receiver channel, it's used to avoid closing a
	// channel shared by several subscriptions twice.
	Receiver() any
	// Send passes the matching event to the receiver, it blocks until the
	// event is accepted or the client is shut down.
	Send(payload any, shutdown <-chan struct{})
	// Close closes the receiver channel.
	Close()
}

// receiver is a generic notificationReceiver implementation.
type receiver[T any] struct {
	event  neorpc.EventID
	filter any
	ch     chan<- T
}

// EventID implements rpcevent.Comparator interface.
func (r *receiver[T]) EventID() neorpc.EventID {
	return r.event
}

// Filter implements rpcevent.Comparator interface.
func (r *receiver[T]) Filter() any {
	return r.filter
}

// Receiver implements notificationReceiver interface.
func (r *receiver[T]) Receiver() any {
	return r.ch
}

// Send implements notificationReceiver interface.
func (r *receiver[T]) Send(payload any, shutdown <-chan struct{}) {
	select {
	case r.ch <- payload.(T):
	case <-shutdown:
	}
}

// Close implements notificationReceiver interface.
func (r *receiver[T]) Close() {
	close(r.ch)
}

// requestResponse is a combined type for request and response since we can get
// any of them here.
type requestResponse struct {
	neorpc.Response
	Method    string            `json:"method"`
	RawParams []json.RawMessage `json:"params,omitempty"`
}

const (
	// Message limit for receiving side.
	wsReadLimit = 10 * 1024 * 1024

	// Disconnection timeout.
	wsPongLimit = 60 * time.Second

	// Ping period for connection liveness check.
	wsPingPeriod = wsPongLimit / 2

	// Write deadline.
	wsWriteLimit = wsPingPeriod / 2
)

var (
	// ErrNilNotificationReceiver is returned when notification receiver channel is nil.
	ErrNilNotificationReceiver = errors.New("nil notification receiver")
	// ErrWSConnLost is a WSClient-specific error that will be returned for any
	// requests after disconnection (including intentional ones via
	// (*WSClient).Close).
	ErrWSConnLost = errors.New("connection lost")
)

// NewWS returns a new WSClient ready to use (with established websocket
// connection). You need to use websocket URL for it like `ws://1.2.3.4/ws`.
func NewWS(ctx context.Context, endpoint string, opts Options) (*WSClient, error) {
	wsc := &WSClient{
		shutdown:     make(chan struct{}),
		done:         make(chan struct{}),
		requests:     make(chan *neorpc.Request),
		receivers:    make(map[string]notificationReceiver),
		respChannels: make(map[uint64]chan *neorpc.Response),
	}
	err := initClient(ctx, &wsc.Client, endpoint, opts)
	if err != nil {
		return nil, err
	}

	dialer := websocket.Dialer{HandshakeTimeout: wsc.opts.DialTimeout}
	ws, resp, err := dialer.DialContext(ctx, endpoint, nil)
	if resp != nil && resp.Body != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			err = fmt.Errorf("%w (HTTP %d)", err, resp.StatusCode)
		}
		return nil, err
	}
	wsc.ws = ws
	wsc.requestF = wsc.makeWsRequest
	go wsc.wsReader()
	go wsc.wsWriter()
	return wsc, nil
}

// Close closes connection to the remote side rendering this client instance
// unusable.
func (c *WSClient) Close() {
	c.closeCalled.Do(func() {
		c.setCloseErr(ErrWSConnLost)
		// Closing shutdown channel sends a signal to wsWriter to break out of the
		// loop. In doing so it does ws.Close() closing the network connection
		// which in turn makes wsReader receive an err from ws.ReadJSON() and also
		// break out of the loop closing c.done channel in its shutdown sequence.
		close(c.shutdown)
		// Call to cancel will send signal to all users of Context().
		c.Client.ctxCancel()
	})
	<-c.done
}

func (c *WSClient) wsReader() {
	c.ws.SetReadLimit(wsReadLimit)
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(wsPongLimit))
	})
	var connCloseErr error
readloop:
	for {
		rr := new(requestResponse)
		err := c.ws.SetReadDeadline(time.Now().Add(wsPongLimit))
		if err != nil {
			connCloseErr = fmt.Errorf("failed to set response read deadline: %w", err)
			break readloop
		}
		err = c.ws.ReadJSON(rr)
		if err != nil {
			// Timeout/connection loss/malformed response.
			connCloseErr = fmt.Errorf("failed to read JSON response (timeout/connection loss/malformed response): %w", err)
			break readloop
		}
		if rr.ID == nil && rr.Method != "" {
			event, err := neorpc.GetEventIDFromString(rr.Method)
			if err != nil {
				// Bad event received.
				connCloseErr = fmt.Errorf("failed to parse event ID from string %s: %w", rr.Method, err)
				break readloop
			}
			if event != neorpc.MissedEventID && len(rr.RawParams) != 1 {
				// Bad event received.
				connCloseErr = fmt.Errorf("bad event received: %s / %d", event, len(rr.RawParams))
				break readloop
			}
			var val any
			switch event {
			case neorpc.BlockEventID:
				val = new(block.Block)
			case neorpc.ExecutionEventID:
				val = new(state.AppExecResult)
			case neorpc.NotificationEventID:
				val = new(state.ContainedNotificationEvent)
			case neorpc.MissedEventID:
				// No value.
			default:
				// Bad event received.
				connCloseErr = fmt.Errorf("unknown event received: %d", event)
				break readloop
			}
			if event != neorpc.MissedEventID {
				err = json.Unmarshal(rr.RawParams[0], val)
				if err != nil {
					// Bad event received.
					connCloseErr = fmt.Errorf("failed to unmarshal event of type %s from JSON: %w", event, err)
					break readloop
				}
			}
			if event == neorpc.MissedEventID {
				c.subscriptionsLock.Lock()
				c.closeReceivers()
				c.receivers = make(map[string]notificationReceiver)
				c.subscriptionsLock.Unlock()
				continue readloop
			}
			c.notifySubscribers(&neorpc.Notification{
				JSONRPC: neorpc.JSONRPCVersion,
				Event:   event,
				Payload: []any{val},
			})
		} else if rr.ID != nil && (rr.Error != nil || rr.Result != nil) {
			id, err := strconv.ParseUint(string(rr.ID), 10, 64)
			if err != nil {
				connCloseErr = fmt.Errorf("failed to retrieve response ID from JSON: %w", err)
				break readloop // Malformed response (invalid response ID).
			}
			ch := c.getResponseChannel(id)
			if ch == nil {
				connCloseErr = fmt.Errorf("unknown response channel for response %d", id)
				break readloop // Unknown response (unexpected response ID).
			}
			select {
			case <-c.shutdown:
				break readloop
			case ch <- &rr.Response:
			}
		} else {
			// Malformed response, neither valid request, nor valid response.
			connCloseErr = errors.New("malformed response")
			break readloop
		}
	}
	if connCloseErr != nil {
		c.setCloseErr(connCloseErr)
	}
	close(c.done)
	c.respLock.Lock()
	for _, ch := range c.respChannels {
		close(ch)
	}
	c.respChannels = nil
	c.respLock.Unlock()
	c.subscriptionsLock.Lock()
	c.closeReceivers()
	c.receivers = nil
	c.subscriptionsLock.Unlock()
	c.Client.ctxCancel()
}

// closeReceivers closes all receiver channels once, it must be called with
// subscriptionsLock held.
func (c *WSClient) closeReceivers() {
	closed := make(map[any]struct{})
	for _, r := range c.receivers {
		if _, ok := closed[r.Receiver()]; ok {
			continue
		}
		closed[r.Receiver()] = struct{}{}
		r.Close()
	}
}

// notifySubscribers sends the event to all receivers with matching filters.
func (c *WSClient) notifySubscribers(ntf *neorpc.Notification) {
	c.subscriptionsLock.RLock()
	var matched []notificationReceiver
	for _, r := range c.receivers {
		if rpcevent.Matches(r, ntf) {
			matched = append(matched, r)
		}
	}
	c.subscriptionsLock.RUnlock()
	for _, r := range matched {
		r.Send(ntf.EventPayload(), c.shutdown)
	}
}

func (c *WSClient) wsWriter() {
	pingTicker := time.NewTicker(wsPingPeriod)
	defer c.ws.Close()
	defer pingTicker.Stop()
	var connCloseErr error
writeloop:
	for {
		select {
		case <-c.shutdown:
			return
		case <-c.done:
			return
		case req, ok := <-c.requests:
			if !ok {
				return
			}
			if err := c.ws.SetWriteDeadline(time.Now().Add(c.opts.RequestTimeout)); err != nil {
				connCloseErr = fmt.Errorf("failed to set request write deadline: %w", err)
				break writeloop
			}
			if err := c.ws.WriteJSON(req); err != nil {
				connCloseErr = fmt.Errorf("failed to write JSON request (%s / %d): %w", req.Method, len(req.Params), err)
				break writeloop
			}
		case <-pingTicker.C:
			if err := c.ws.SetWriteDeadline(time.Now().Add(wsWriteLimit)); err != nil {
				connCloseErr = fmt.Errorf("failed to set ping write deadline: %w", err)
				break writeloop
			}
			if err := c.ws.WriteMessage(websocket.PingMessage, []byte{}); err != nil {
				connCloseErr = fmt.Errorf("failed to write ping message: %w", err)
				break writeloop
			}
		}
	}
	if connCloseErr != nil {
		c.setCloseErr(connCloseErr)
	}
}

func (c *WSClient) unregisterRespChannel(id uint64) {
	c.respLock.Lock()
	defer c.respLock.Unlock()
	if ch, ok := c.respChannels[id]; ok {
		delete(c.respChannels, id)
		close(ch)
	}
}

func (c *WSClient) getResponseChannel(id uint64) chan *neorpc.Response {
	c.respLock.RLock()
	defer c.respLock.RUnlock()
	return c.respChannels[id]
}

func (c *WSClient) makeWsRequest(r *neorpc.Request) (*neorpc.Response, error) {
	ch := make(chan *neorpc.Response)
	c.respLock.Lock()
	select {
	case <-c.done:
		c.respLock.Unlock()
		return nil, fmt.Errorf("%w: before registering response channel", c.getCloseErr())
	default:
		c.respChannels[r.ID] = ch
		c.respLock.Unlock()
	}
	select {
	case <-c.done:
		return nil, fmt.Errorf("%w: before sending the request", c.getCloseErr())
	case c.requests <- r:
	}
	select {
	case <-c.done:
		return nil, fmt.Errorf("%w: while waiting for the response", c.getCloseErr())
	case resp, ok := <-ch:
		if !ok {
			return nil, fmt.Errorf("%w: while trying to receive the response", c.getCloseErr())
		}
		c.unregisterRespChannel(r.ID)
		return resp, nil
	}
}

func (c *WSClient) performSubscription(params []any, rcvr notificationReceiver) (string, error) {
	var resp string

	if err := c.performRequest("subscribe", params, &resp); err != nil {
		return "", err
	}

	c.subscriptionsLock.Lock()
	defer c.subscriptionsLock.Unlock()
	if c.receivers == nil {
		return "", ErrWSConnLost
	}
	c.receivers[resp] = rcvr
	return resp, nil
}

// ReceiveBlocks registers provided channel as a receiver for new blocks. The
// filter is optional, it allows to receive blocks in the since/till range
// only. The channel is not closed on unsubscription.
func (c *WSClient) ReceiveBlocks(flt *neorpc.BlockFilter, rcvr chan<- *block.Block) (string, error) {
	if rcvr == nil {
		return "", ErrNilNotificationReceiver
	}
	params := []any{"block_added"}
	var filter any
	if flt != nil {
		if err := flt.IsValid(); err != nil {
			return "", err
		}
		params = append(params, *flt)
		filter = *flt
	}
	return c.performSubscription(params, &receiver[*block.Block]{
		event:  neorpc.BlockEventID,
		filter: filter,
		ch:     rcvr,
	})
}

// ReceiveExecutions registers provided channel as a receiver for transaction
// execution results. The filter is optional, it allows to select results by
// VM state and/or transaction hash.
func (c *WSClient) ReceiveExecutions(flt *neorpc.ExecutionFilter, rcvr chan<- *state.AppExecResult) (string, error) {
	if rcvr == nil {
		return "", ErrNilNotificationReceiver
	}
	params := []any{"transaction_executed"}
	var filter any
	if flt != nil {
		if err := flt.IsValid(); err != nil {
			return "", err
		}
		params = append(params, *flt)
		filter = *flt
	}
	return c.performSubscription(params, &receiver[*state.AppExecResult]{
		event:  neorpc.ExecutionEventID,
		filter: filter,
		ch:     rcvr,
	})
}

// ReceiveExecutionNotifications registers provided channel as a receiver for
// contract notifications. The filter is optional, it allows to select events
// by contract address and/or name.
func (c *WSClient) ReceiveExecutionNotifications(flt *neorpc.NotificationFilter, rcvr chan<- *state.ContainedNotificationEvent) (string, error) {
	if rcvr == nil {
		return "", ErrNilNotificationReceiver
	}
	params := []any{"notification_from_execution"}
	var filter any
	if flt != nil {
		if err := flt.IsValid(); err != nil {
			return "", err
		}
		params = append(params, *flt)
		filter = *flt
	}
	return c.performSubscription(params, &receiver[*state.ContainedNotificationEvent]{
		event:  neorpc.NotificationEventID,
		filter: filter,
		ch:     rcvr,
	})
}

// Unsubscribe removes subscription for the given event stream. It does not
// close the receiver channel.
func (c *WSClient) Unsubscribe(id string) error {
	c.subscriptionsLock.RLock()
	_, ok := c.receivers[id]
	c.subscriptionsLock.RUnlock()
	if !ok {
		return errors.New("no subscription with this ID")
	}
	return c.performUnsubscription(id)
}

// UnsubscribeAll removes all active subscriptions of the current client.
func (c *WSClient) UnsubscribeAll() error {
	c.subscriptionsLock.RLock()
	ids := make([]string, 0, len(c.receivers))
	for id := range c.receivers {
		ids = append(ids, id)
	}
	c.subscriptionsLock.RUnlock()
	for _, id := range ids {
		if err := c.performUnsubscription(id); err != nil {
			return err
		}
	}
	return nil
}

func (c *WSClient) performUnsubscription(id string) error {
	var resp bool
	if err := c.performRequest("unsubscribe", []any{id}, &resp); err != nil {
		return err
	}
	if !resp {
		return errors.New("unsubscribe method returned false result")
	}
	c.subscriptionsLock.Lock()
	delete(c.receivers, id)
	c.subscriptionsLock.Unlock()
	return nil
}

// GetError returns the reason of WS connection closing. It returns nil in case
// if connection was closed by the server or by the client via Close.
func (c *WSClient) GetError() error {
	c.closeErrLock.RLock()
	defer c.closeErrLock.RUnlock()

	if c.closeErr != nil && errors.Is(c.closeErr, ErrWSConnLost) {
		return nil
	}
	return c.closeErr
}

func (c *WSClient) setCloseErr(err error) {
	c.closeErrLock.Lock()
	defer c.closeErrLock.Unlock()

	if c.closeErr == nil {
		c.closeErr = err
	}
}

func (c *WSClient) getCloseErr() error {
	c.closeErrLock.RLock()
	defer c.closeErrLock.RUnlock()

	if c.closeErr == nil {
		return ErrWSConnLost
	}
	if errors.Is(c.closeErr, ErrWSConnLost) {
		return c.closeErr
	}
	return fmt.Errorf("%w: %w", ErrWSConnLost, c.closeErr)
}
