package state

import (
	"encoding/json"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/nspcc-dev/pesto-go/pkg/io"
	"github.com/nspcc-dev/pesto-go/pkg/smartcontract"
	"github.com/nspcc-dev/pesto-go/pkg/smartcontract/manifest"
	"github.com/nspcc-dev/pesto-go/pkg/vm/stackitem"
	"github.com/nspcc-dev/pesto-go/pkg/vm/vmstate"
	"github.com/stretchr/testify/require"
)

func testEvent() NotificationEvent {
	return NotificationEvent{
		Contract: common.Address{1},
		Name:     "Transfer",
		Item: stackitem.NewArray([]stackitem.Item{
			stackitem.Make(common.Address{}),
			stackitem.Make(common.Address{2}),
			stackitem.Make(100),
		}),
	}
}

func TestContractEncodeDecode(t *testing.T) {
	m := manifest.NewManifest("PestoToken")
	m.ABI.Methods = append(m.ABI.Methods, manifest.Method{
		Name:       "name",
		Parameters: []manifest.Parameter{},
		ReturnType: smartcontract.StringType,
		Safe:       true,
	})
	c := &Contract{
		Address:    common.Address{1, 2},
		Factory:    "PestoToken",
		Deployer:   common.Address{3},
		TxHash:     common.Hash{4},
		BlockIndex: 5,
		Manifest:   *m,
	}
	data, err := io.ToByteArray(c)
	require.NoError(t, err)
	actual := new(Contract)
	require.NoError(t, io.FromByteArray(actual, data))
	require.Equal(t, c, actual)

	require.Error(t, io.FromByteArray(new(Contract), data[:len(data)-2]))
}

func TestAppExecResultEncodeDecode(t *testing.T) {
	aer := &AppExecResult{
		Container:  common.Hash{1},
		BlockIndex: 10,
		Execution: Execution{
			VMState: vmstate.Halt,
			Stack:   []stackitem.Item{stackitem.Make(true)},
			Events:  []NotificationEvent{testEvent()},
		},
	}
	data, err := io.ToByteArray(aer)
	require.NoError(t, err)
	actual := new(AppExecResult)
	require.NoError(t, io.FromByteArray(actual, data))
	require.Equal(t, aer.Container, actual.Container)
	require.Equal(t, aer.BlockIndex, actual.BlockIndex)
	require.Equal(t, aer.VMState, actual.VMState)
	require.Equal(t, 1, len(actual.Stack))
	require.True(t, aer.Stack[0].Equals(actual.Stack[0]))
	require.Equal(t, 1, len(actual.Events))
	require.True(t, aer.Events[0].Item.Equals(actual.Events[0].Item))

	fault := &AppExecResult{
		Container: common.Hash{2},
		Execution: Execution{
			VMState:        vmstate.Fault,
			Stack:          []stackitem.Item{},
			Events:         []NotificationEvent{},
			FaultException: "ERC20: transfer amount exceeds balance",
		},
	}
	data, err = io.ToByteArray(fault)
	require.NoError(t, err)
	actual = new(AppExecResult)
	require.NoError(t, io.FromByteArray(actual, data))
	require.Equal(t, fault, actual)
}

func TestAppExecResultJSON(t *testing.T) {
	aer := &AppExecResult{
		Container:  common.Hash{1},
		BlockIndex: 3,
		Execution: Execution{
			VMState:        vmstate.Fault,
			GasConsumed:    100,
			Stack:          []stackitem.Item{stackitem.Make(1)},
			Events:         []NotificationEvent{testEvent()},
			FaultException: "boom",
		},
	}
	data, err := json.Marshal(aer)
	require.NoError(t, err)
	require.Contains(t, string(data), `"vmstate":"FAULT"`)
	require.Contains(t, string(data), `"exception":"boom"`)
	require.Contains(t, string(data), `"gasconsumed":"100"`)

	actual := new(AppExecResult)
	require.NoError(t, json.Unmarshal(data, actual))
	require.Equal(t, aer.Container, actual.Container)
	require.Equal(t, aer.BlockIndex, actual.BlockIndex)
	require.Equal(t, aer.FaultException, actual.FaultException)
	require.Equal(t, aer.GasConsumed, actual.GasConsumed)
	require.Equal(t, aer.VMState, actual.VMState)
	require.True(t, aer.Stack[0].Equals(actual.Stack[0]))
	require.Equal(t, aer.Events[0].Name, actual.Events[0].Name)
	require.True(t, aer.Events[0].Item.Equals(actual.Events[0].Item))

	halt := &AppExecResult{Execution: Execution{VMState: vmstate.Halt}}
	data, err = json.Marshal(halt)
	require.NoError(t, err)
	require.Contains(t, string(data), `"exception":null`)
	require.Contains(t, string(data), `"notifications":[]`)
}

func TestContainedNotificationEventJSON(t *testing.T) {
	ce := ContainedNotificationEvent{
		Container:         common.Hash{7},
		BlockIndex:        2,
		NotificationEvent: testEvent(),
	}
	data, err := json.Marshal(ce)
	require.NoError(t, err)
	require.Contains(t, string(data), `"container"`)
	require.Contains(t, string(data), `"eventname":"Transfer"`)

	actual := new(ContainedNotificationEvent)
	require.NoError(t, json.Unmarshal(data, actual))
	require.Equal(t, ce.Container, actual.Container)
	require.Equal(t, ce.BlockIndex, actual.BlockIndex)
	require.Equal(t, ce.Contract, actual.Contract)
	require.True(t, ce.Item.Equals(actual.Item))

	require.Error(t, json.Unmarshal([]byte(`{"state":{"type":"Integer","value":"1"}}`), actual))
}
