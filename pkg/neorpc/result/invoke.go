package result

import (
	"github.com/nspcc-dev/pesto-go/pkg/core/state"
)

// Invoke represents a read-only contract invocation result returned by
// invokefunction. It has the same JSON representation as the execution part
// of an application log: VM state, consumed gas, result stack, notifications
// and the fault exception.
type Invoke struct {
	state.Execution
}
