package state

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/nspcc-dev/pesto-go/pkg/io"
	"github.com/nspcc-dev/pesto-go/pkg/vm/stackitem"
	"github.com/nspcc-dev/pesto-go/pkg/vm/vmstate"
)

// NotificationEvent is a tuple of the contract that has emitted the Item as a
// notification and the item itself.
type NotificationEvent struct {
	Contract common.Address   `json:"contract"`
	Name     string           `json:"eventname"`
	Item     *stackitem.Array `json:"state"`
}

// AppExecResult represents the result of the transaction execution, gathering
// together all resulting notifications, state, stack and other metadata.
type AppExecResult struct {
	Container  common.Hash
	BlockIndex uint32
	Execution
}

// Execution represents the result of a single contract method or deployment
// execution.
type Execution struct {
	VMState        vmstate.State
	GasConsumed    int64
	Stack          []stackitem.Item
	Events         []NotificationEvent
	FaultException string
}

// ContainedNotificationEvent represents a wrapper for a notification from
// transaction execution.
type ContainedNotificationEvent struct {
	// Container is the hash of the transaction that emitted the event.
	Container common.Hash `json:"container"`
	// BlockIndex is the height of the block containing the transaction.
	BlockIndex uint32 `json:"blockindex"`
	NotificationEvent
}

// EncodeBinary implements the io.Serializable interface.
func (ne *NotificationEvent) EncodeBinary(w *io.BinWriter) {
	w.WriteBytes(ne.Contract[:])
	w.WriteString(ne.Name)
	stackitem.EncodeBinary(ne.Item, w)
}

// DecodeBinary implements the io.Serializable interface.
func (ne *NotificationEvent) DecodeBinary(r *io.BinReader) {
	r.ReadBytes(ne.Contract[:])
	ne.Name = r.ReadString()
	item := stackitem.DecodeBinary(r)
	if r.Err != nil {
		return
	}
	arr, ok := item.(*stackitem.Array)
	if !ok {
		r.Err = errors.New("Array expected")
		return
	}
	ne.Item = arr
}

// EncodeBinary implements the io.Serializable interface.
func (aer *AppExecResult) EncodeBinary(w *io.BinWriter) {
	w.WriteBytes(aer.Container[:])
	w.WriteU32LE(aer.BlockIndex)
	w.WriteB(byte(aer.VMState))
	w.WriteU64LE(uint64(aer.GasConsumed))
	w.WriteVarUint(uint64(len(aer.Stack)))
	for _, it := range aer.Stack {
		stackitem.EncodeBinary(it, w)
	}
	io.WriteArray(w, aer.Events)
	w.WriteString(aer.FaultException)
}

// DecodeBinary implements the io.Serializable interface.
func (aer *AppExecResult) DecodeBinary(r *io.BinReader) {
	r.ReadBytes(aer.Container[:])
	aer.BlockIndex = r.ReadU32LE()
	aer.VMState = vmstate.State(r.ReadB())
	aer.GasConsumed = int64(r.ReadU64LE())
	sz := r.ReadVarUint()
	if r.Err == nil && sz > stackitem.MaxArraySize {
		r.Err = errors.New("invalid format")
	}
	if r.Err != nil {
		return
	}
	arr := make([]stackitem.Item, sz)
	for i := range arr {
		arr[i] = stackitem.DecodeBinary(r)
		if r.Err != nil {
			return
		}
	}
	aer.Stack = arr
	aer.Events = io.ReadArray[NotificationEvent](r)
	aer.FaultException = r.ReadString()
}

// notificationEventAux is an auxiliary struct for NotificationEvent JSON
// marshalling.
type notificationEventAux struct {
	Contract common.Address  `json:"contract"`
	Name     string          `json:"eventname"`
	Item     json.RawMessage `json:"state"`
}

// MarshalJSON implements the json.Marshaler interface.
func (ne NotificationEvent) MarshalJSON() ([]byte, error) {
	item, err := stackitem.ToJSONWithTypes(ne.Item)
	if err != nil {
		item = []byte(fmt.Sprintf(`"error: %v"`, err))
	}
	return json.Marshal(&notificationEventAux{
		Contract: ne.Contract,
		Name:     ne.Name,
		Item:     item,
	})
}

// UnmarshalJSON implements the json.Unmarshaler interface.
func (ne *NotificationEvent) UnmarshalJSON(data []byte) error {
	aux := new(notificationEventAux)
	if err := json.Unmarshal(data, aux); err != nil {
		return err
	}
	item, err := stackitem.FromJSONWithTypes(aux.Item)
	if err != nil {
		return err
	}
	arr, ok := item.(*stackitem.Array)
	if !ok {
		return errors.New("failed to convert notification event state to Array")
	}
	ne.Contract = aux.Contract
	ne.Name = aux.Name
	ne.Item = arr
	return nil
}

// containedNotificationEventAux is needed because NotificationEvent defines
// its own MarshalJSON which would be promoted otherwise.
type containedNotificationEventAux struct {
	Container  common.Hash `json:"container"`
	BlockIndex uint32      `json:"blockindex"`
	notificationEventAux
}

// MarshalJSON implements the json.Marshaler interface.
func (ce ContainedNotificationEvent) MarshalJSON() ([]byte, error) {
	item, err := stackitem.ToJSONWithTypes(ce.Item)
	if err != nil {
		return nil, err
	}
	return json.Marshal(&containedNotificationEventAux{
		Container:  ce.Container,
		BlockIndex: ce.BlockIndex,
		notificationEventAux: notificationEventAux{
			Contract: ce.Contract,
			Name:     ce.Name,
			Item:     item,
		},
	})
}

// UnmarshalJSON implements the json.Unmarshaler interface.
func (ce *ContainedNotificationEvent) UnmarshalJSON(data []byte) error {
	aux := new(containedNotificationEventAux)
	if err := json.Unmarshal(data, aux); err != nil {
		return err
	}
	item, err := stackitem.FromJSONWithTypes(aux.Item)
	if err != nil {
		return err
	}
	arr, ok := item.(*stackitem.Array)
	if !ok {
		return errors.New("failed to convert notification event state to Array")
	}
	ce.Container = aux.Container
	ce.BlockIndex = aux.BlockIndex
	ce.Contract = aux.Contract
	ce.Name = aux.Name
	ce.Item = arr
	return nil
}

// appExecResultAux is an auxiliary struct for JSON marshalling.
type appExecResultAux struct {
	Container  common.Hash `json:"txhash"`
	BlockIndex uint32      `json:"blockindex"`
}

// MarshalJSON implements the json.Marshaler interface.
func (aer *AppExecResult) MarshalJSON() ([]byte, error) {
	h, err := json.Marshal(&appExecResultAux{
		Container:  aer.Container,
		BlockIndex: aer.BlockIndex,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal hash: %w", err)
	}
	exec, err := json.Marshal(aer.Execution)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal execution: %w", err)
	}

	if h[len(h)-1] != '}' || exec[0] != '{' {
		return nil, errors.New("can't merge internal jsons")
	}
	h[len(h)-1] = ','
	h = append(h, exec[1:]...)
	return h, nil
}

// UnmarshalJSON implements the json.Unmarshaler interface.
func (aer *AppExecResult) UnmarshalJSON(data []byte) error {
	aux := new(appExecResultAux)
	if err := json.Unmarshal(data, aux); err != nil {
		return err
	}
	if err := json.Unmarshal(data, &aer.Execution); err != nil {
		return err
	}
	aer.Container = aux.Container
	aer.BlockIndex = aux.BlockIndex
	return nil
}

// executionAux represents an auxiliary struct for Execution JSON marshalling.
type executionAux struct {
	VMState        vmstate.State       `json:"vmstate"`
	GasConsumed    int64               `json:"gasconsumed,string"`
	Stack          json.RawMessage     `json:"stack"`
	Events         []NotificationEvent `json:"notifications"`
	FaultException *string             `json:"exception"`
}

// MarshalJSON implements the json.Marshaler interface.
func (e Execution) MarshalJSON() ([]byte, error) {
	arr := make([]json.RawMessage, len(e.Stack))
	for i := range arr {
		data, err := stackitem.ToJSONWithTypes(e.Stack[i])
		if err != nil {
			data = []byte(fmt.Sprintf(`"error: %v"`, err))
		}
		arr[i] = data
	}
	st, err := json.Marshal(arr)
	if err != nil {
		return nil, err
	}
	var exception *string
	if e.FaultException != "" {
		exception = &e.FaultException
	}
	events := e.Events
	if events == nil {
		events = []NotificationEvent{}
	}
	return json.Marshal(&executionAux{
		VMState:        e.VMState,
		GasConsumed:    e.GasConsumed,
		Stack:          st,
		Events:         events,
		FaultException: exception,
	})
}

// UnmarshalJSON implements the json.Unmarshaler interface.
func (e *Execution) UnmarshalJSON(data []byte) error {
	aux := new(executionAux)
	if err := json.Unmarshal(data, aux); err != nil {
		return err
	}
	var arr []json.RawMessage
	if err := json.Unmarshal(aux.Stack, &arr); err == nil {
		st := make([]stackitem.Item, 0, len(arr))
		for i := range arr {
			var s string
			if err := json.Unmarshal(arr[i], &s); err == nil {
				// Item that failed to serialize.
				st = nil
				break
			}
			it, err := stackitem.FromJSONWithTypes(arr[i])
			if err != nil {
				return err
			}
			st = append(st, it)
		}
		e.Stack = st
	}
	e.VMState = aux.VMState
	e.GasConsumed = aux.GasConsumed
	e.Events = aux.Events
	if aux.FaultException != nil {
		e.FaultException = *aux.FaultException
	}
	return nil
}
