package core

import (
	"github.com/nspcc-dev/pesto-go/pkg/core/block"
	"github.com/nspcc-dev/pesto-go/pkg/core/state"
)

// SubscribeForBlocks adds given channel to new block event broadcasting, so
// when there is a new block added to the chain you'll receive it via this
// channel. Make sure it's read from regularly as not reading these events
// might affect other Blockchain functions. Run must be running.
func (bc *Blockchain) SubscribeForBlocks(ch chan *block.Block) {
	bc.subCh <- ch
}

// SubscribeForExecutions adds given channel to new transaction execution
// event broadcasting, so when an in-block transaction execution happens you'll
// receive the result of it via this channel.
func (bc *Blockchain) SubscribeForExecutions(ch chan *state.AppExecResult) {
	bc.subCh <- ch
}

// SubscribeForNotifications adds given channel to new notifications event
// broadcasting, so when an in-block transaction execution generates a
// notification you'll receive it via this channel. Only notifications from
// successful transactions are broadcasted.
func (bc *Blockchain) SubscribeForNotifications(ch chan *state.ContainedNotificationEvent) {
	bc.subCh <- ch
}

// UnsubscribeFromBlocks unsubscribes given channel from new block
// notifications, you can close it afterwards. Passing non-subscribed channel
// is a no-op, but the method can read from this channel (discarding any
// read data).
func (bc *Blockchain) UnsubscribeFromBlocks(ch chan *block.Block) {
unsubloop:
	for {
		select {
		case <-ch:
		case bc.unsubCh <- ch:
			break unsubloop
		}
	}
}

// UnsubscribeFromExecutions unsubscribes given channel from new execution
// notifications, you can close it afterwards.
func (bc *Blockchain) UnsubscribeFromExecutions(ch chan *state.AppExecResult) {
unsubloop:
	for {
		select {
		case <-ch:
		case bc.unsubCh <- ch:
			break unsubloop
		}
	}
}

// UnsubscribeFromNotifications unsubscribes given channel from new
// execution-generated notifications, you can close it afterwards.
func (bc *Blockchain) UnsubscribeFromNotifications(ch chan *state.ContainedNotificationEvent) {
unsubloop:
	for {
		select {
		case <-ch:
		case bc.unsubCh <- ch:
			break unsubloop
		}
	}
}

// notificationDispatcher manages subscription to events and broadcasts new events.
func (bc *Blockchain) notificationDispatcher() {
	var (
		// These are just sets of subscribers, though modelled as maps
		// for ease of management (not a lot of subscriptions is really
		// expected, but maps are convenient for adding/deleting elements).
		blockFeed        = make(map[chan *block.Block]bool)
		executionFeed    = make(map[chan *state.AppExecResult]bool)
		notificationFeed = make(map[chan *state.ContainedNotificationEvent]bool)
	)
	for {
		select {
		case <-bc.stopCh:
			return
		case sub := <-bc.subCh:
			switch ch := sub.(type) {
			case chan *block.Block:
				blockFeed[ch] = true
			case chan *state.AppExecResult:
				executionFeed[ch] = true
			case chan *state.ContainedNotificationEvent:
				notificationFeed[ch] = true
			default:
				panic("bad subscription type")
			}
		case unsub := <-bc.unsubCh:
			switch ch := unsub.(type) {
			case chan *block.Block:
				delete(blockFeed, ch)
			case chan *state.AppExecResult:
				delete(executionFeed, ch)
			case chan *state.ContainedNotificationEvent:
				delete(notificationFeed, ch)
			default:
				panic("bad unsubscription type")
			}
		case event := <-bc.events:
			// We don't want to waste time looping through transactions when there are no
			// subscribers.
			if len(executionFeed) != 0 || len(notificationFeed) != 0 {
				for _, aer := range event.appExecResults {
					for ch := range executionFeed {
						ch <- aer
					}
					for i := range aer.Events {
						ev := &state.ContainedNotificationEvent{
							Container:         aer.Container,
							BlockIndex:        aer.BlockIndex,
							NotificationEvent: aer.Events[i],
						}
						for ch := range notificationFeed {
							ch <- ev
						}
					}
				}
			}
			for ch := range blockFeed {
				ch <- event.block
			}
		}
	}
}
