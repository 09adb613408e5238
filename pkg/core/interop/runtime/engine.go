// Package runtime provides contract runtime services like notifications.
package runtime

import (
	"github.com/nspcc-dev/pesto-go/pkg/core/interop"
	"github.com/nspcc-dev/pesto-go/pkg/vm/stackitem"
	"go.uber.org/zap"
)

// MaxEventNameLen is the maximum length of a name for event.
const MaxEventNameLen = 32

// Notify emits an event of the executing contract. The event must be
// declared in the contract manifest and its arguments must match the
// declaration.
func Notify(ic *interop.Context, name string, args ...stackitem.Item) {
	if len(name) > MaxEventNameLen {
		interop.Revert("event name must be less than %d", MaxEventNameLen)
	}
	cs := ic.CurrentContract()
	if cs == nil {
		interop.Revert("notification outside of contract")
	}
	ev := cs.Manifest.ABI.GetEvent(name)
	if ev == nil {
		interop.Revert("event %s doesn't exist in %s", name, cs.Factory)
	}
	if err := ev.CheckCompliance(args); err != nil {
		interop.Revert("notification %s is invalid: %s", name, err)
	}
	ic.AddNotification(name, stackitem.NewArray(args))
}

// Log writes a contract debug message.
func Log(ic *interop.Context, msg string) {
	if ic.Log == nil {
		return
	}
	ic.Log.Info("runtime log",
		zap.Stringer("contract", ic.Self()),
		zap.String("msg", msg))
}
