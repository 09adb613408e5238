package result

import "github.com/nspcc-dev/pesto-go/pkg/core/state"

// Notifications is the result of `getnotifications` RPC call.
type Notifications struct {
	Notifications []state.ContainedNotificationEvent `json:"notifications"`
	// Truncated is set when the result was cut by the limit, so there may
	// be more matching notifications in the requested range.
	Truncated bool `json:"truncated"`
}
