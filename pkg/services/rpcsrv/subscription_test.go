package rpcsrv

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/nspcc-dev/pesto-go/pkg/config"
	"github.com/nspcc-dev/pesto-go/pkg/contracts/pesto"
	"github.com/nspcc-dev/pesto-go/pkg/core/block"
	"github.com/nspcc-dev/pesto-go/pkg/core/state"
	"github.com/nspcc-dev/pesto-go/pkg/neorpc"
	"github.com/nspcc-dev/pesto-go/pkg/neotest"
	"github.com/nspcc-dev/pesto-go/pkg/vm/stackitem"
	"github.com/nspcc-dev/pesto-go/pkg/vm/vmstate"
	"github.com/stretchr/testify/require"
)

type wsEvent struct {
	Event   neorpc.EventID    `json:"method"`
	Payload []json.RawMessage `json:"params"`
}

func wsURL(httpURL string) string {
	return "ws" + strings.TrimPrefix(httpURL, "http") + "/ws"
}

func dialWS(t *testing.T, httpURL string) (*websocket.Conn, <-chan []byte) {
	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	ws, r, err := dialer.Dial(wsURL(httpURL), nil)
	require.NoError(t, err)
	r.Body.Close()

	// All server messages go through this channel, responses and events
	// are then taken from it in order.
	respMsgs := make(chan []byte, 16)
	readerExit := make(chan struct{})
	go func() {
		defer close(readerExit)
		defer close(respMsgs)
		for {
			_, msg, err := ws.ReadMessage()
			if err != nil {
				return
			}
			respMsgs <- msg
		}
	}()
	t.Cleanup(func() {
		ws.Close()
		<-readerExit
	})
	return ws, respMsgs
}

func initCleanServerAndWSClient(t *testing.T) (*neotest.Executor, *websocket.Conn, <-chan []byte) {
	bc, signers, srv := initServer(t)
	ws, respMsgs := dialWS(t, srv.URL)
	return neotest.NewExecutor(t, bc, signers...), ws, respMsgs
}

func readWSMessage(t *testing.T, msgs <-chan []byte) []byte {
	select {
	case msg, ok := <-msgs:
		require.True(t, ok, "connection closed")
		return msg
	case <-time.After(5 * time.Second):
		require.FailNow(t, "timeout waiting for websocket message")
	}
	return nil
}

func callWSGetRaw(t *testing.T, ws *websocket.Conn, msg string, msgs <-chan []byte) *neorpc.Response {
	require.NoError(t, ws.SetWriteDeadline(time.Now().Add(time.Second)))
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(msg)))

	resp := new(neorpc.Response)
	require.NoError(t, json.Unmarshal(readWSMessage(t, msgs), resp))
	return resp
}

func getNotification(t *testing.T, msgs <-chan []byte) *wsEvent {
	ev := new(wsEvent)
	require.NoError(t, json.Unmarshal(readWSMessage(t, msgs), ev))
	return ev
}

func subscribe(t *testing.T, ws *websocket.Conn, msgs <-chan []byte, params string) string {
	resp := callWSGetRaw(t, ws, fmt.Sprintf(`{"jsonrpc": "2.0", "method": "subscribe", "params": %s, "id": 1}`, params), msgs)
	require.Nil(t, resp.Error)
	require.NotNil(t, resp.Result)
	var subID string
	require.NoError(t, json.Unmarshal(resp.Result, &subID))
	return subID
}

func unsubscribe(t *testing.T, ws *websocket.Conn, msgs <-chan []byte, id string) {
	resp := callWSGetRaw(t, ws, fmt.Sprintf(`{"jsonrpc": "2.0", "method": "unsubscribe", "params": ["%s"], "id": 1}`, id), msgs)
	require.Nil(t, resp.Error)
	require.NotNil(t, resp.Result)
	var success bool
	require.NoError(t, json.Unmarshal(resp.Result, &success))
	require.True(t, success)
}

func TestSubscriptions(t *testing.T) {
	e, ws, msgs := initCleanServerAndWSClient(t)

	var subIDs = []string{
		subscribe(t, ws, msgs, `["block_added"]`),
		subscribe(t, ws, msgs, `["transaction_executed"]`),
		subscribe(t, ws, msgs, `["notification_from_execution"]`),
	}
	require.Equal(t, []string{"0", "1", "2"}, subIDs)

	tx := e.NewDeployTx(t, e.Owner, pesto.FactoryName)
	b := e.AddNewBlock(t, tx)

	ev := getNotification(t, msgs)
	require.Equal(t, neorpc.ExecutionEventID, ev.Event)
	aer := new(state.AppExecResult)
	require.NoError(t, json.Unmarshal(ev.Payload[0], aer))
	require.Equal(t, tx.Hash(), aer.Container)
	require.Equal(t, vmstate.Halt, aer.VMState)

	ev = getNotification(t, msgs)
	require.Equal(t, neorpc.NotificationEventID, ev.Event)
	ntf := new(state.ContainedNotificationEvent)
	require.NoError(t, json.Unmarshal(ev.Payload[0], ntf))
	require.Equal(t, tx.Hash(), ntf.Container)
	require.Equal(t, "Transfer", ntf.Name)

	ev = getNotification(t, msgs)
	require.Equal(t, neorpc.BlockEventID, ev.Event)
	actual := new(block.Block)
	require.NoError(t, json.Unmarshal(ev.Payload[0], actual))
	require.Equal(t, b.Hash(), actual.Hash())

	for _, id := range subIDs {
		unsubscribe(t, ws, msgs, id)
	}
	e.AddNewBlock(t)
	// Nothing is delivered after unsubscription, so the next message is
	// the response.
	resp := callWSGetRaw(t, ws, `{"jsonrpc": "2.0", "method": "getblockcount", "params": [], "id": 1}`, msgs)
	require.Nil(t, resp.Error)
	require.Equal(t, json.RawMessage(`3`), resp.Result)
}

func TestFilteredSubscriptions(t *testing.T) {
	t.Run("block since", func(t *testing.T) {
		e, ws, msgs := initCleanServerAndWSClient(t)
		subscribe(t, ws, msgs, `["block_added", {"since": 3}]`)
		e.GenerateNewBlocks(t, 3)
		ev := getNotification(t, msgs)
		require.Equal(t, neorpc.BlockEventID, ev.Event)
		b := new(block.Block)
		require.NoError(t, json.Unmarshal(ev.Payload[0], b))
		require.Equal(t, uint32(3), b.Index)
	})
	t.Run("notification name", func(t *testing.T) {
		e, ws, msgs := initCleanServerAndWSClient(t)
		token := e.DeployContract(t, pesto.FactoryName)
		subscribe(t, ws, msgs, fmt.Sprintf(`["notification_from_execution", {"contract": "%s", "name": "Approval"}]`, token))

		e.AddNewBlock(t, e.NewTx(t, e.Owner, token, "transfer", e.Signer(1).Address(), 1))
		e.AddNewBlock(t, e.NewTx(t, e.Owner, token, "approve", e.Signer(1).Address(), 1))

		ev := getNotification(t, msgs)
		require.Equal(t, neorpc.NotificationEventID, ev.Event)
		ntf := new(state.ContainedNotificationEvent)
		require.NoError(t, json.Unmarshal(ev.Payload[0], ntf))
		require.Equal(t, token, ntf.Contract)
		require.Equal(t, "Approval", ntf.Name)
		require.Equal(t, uint32(3), ntf.BlockIndex)
	})
	t.Run("execution state", func(t *testing.T) {
		e, ws, msgs := initCleanServerAndWSClient(t)
		token := e.DeployContract(t, pesto.FactoryName)
		subscribe(t, ws, msgs, `["transaction_executed", {"state": "FAULT"}]`)

		e.AddNewBlock(t, e.NewTx(t, e.Owner, token, "transfer", e.Signer(1).Address(), 1))
		faultTx := e.NewTx(t, e.Signer(2), token, "transfer", e.Owner.Address(), 1)
		e.AddNewBlock(t, faultTx)

		ev := getNotification(t, msgs)
		require.Equal(t, neorpc.ExecutionEventID, ev.Event)
		aer := new(state.AppExecResult)
		require.NoError(t, json.Unmarshal(ev.Payload[0], aer))
		require.Equal(t, faultTx.Hash(), aer.Container)
		require.Equal(t, vmstate.Fault, aer.VMState)
		require.Equal(t, 0, len(aer.Stack))
	})
	t.Run("execution container", func(t *testing.T) {
		e, ws, msgs := initCleanServerAndWSClient(t)
		tx1 := e.NewDeployTx(t, e.Owner, pesto.FactoryName)
		tx2 := e.NewDeployTx(t, e.Signer(1), pesto.FactoryName)
		subscribe(t, ws, msgs, fmt.Sprintf(`["transaction_executed", {"container": "%s"}]`, tx2.Hash()))
		e.AddNewBlock(t, tx1, tx2)

		ev := getNotification(t, msgs)
		aer := new(state.AppExecResult)
		require.NoError(t, json.Unmarshal(ev.Payload[0], aer))
		require.Equal(t, tx2.Hash(), aer.Container)
		addr, err := stackitem.ToAddress(aer.Stack[0])
		require.NoError(t, err)
		require.NotEqual(t, addr, e.Owner.Address())
	})
}

func TestBadSubUnsub(t *testing.T) {
	var testCases = map[string]string{
		"no params":                   `{"jsonrpc": "2.0", "method": "subscribe", "params": [], "id": 1}`,
		"bad (non-string) event":      `{"jsonrpc": "2.0", "method": "subscribe", "params": [1], "id": 1}`,
		"bad (wrong) event":           `{"jsonrpc": "2.0", "method": "subscribe", "params": ["block_removed"], "id": 1}`,
		"missed event":                `{"jsonrpc": "2.0", "method": "subscribe", "params": ["event_missed"], "id": 1}`,
		"block invalid filter":        `{"jsonrpc": "2.0", "method": "subscribe", "params": ["block_added", {"primary": 1}], "id": 1}`,
		"block since > till":          `{"jsonrpc": "2.0", "method": "subscribe", "params": ["block_added", {"since": 2, "till": 1}], "id": 1}`,
		"notification invalid filter": `{"jsonrpc": "2.0", "method": "subscribe", "params": ["notification_from_execution", {"contract": 1}], "id": 1}`,
		"execution invalid state":     `{"jsonrpc": "2.0", "method": "subscribe", "params": ["transaction_executed", {"state": "NONE"}], "id": 1}`,
		"unsub no params":             `{"jsonrpc": "2.0", "method": "unsubscribe", "params": [], "id": 1}`,
		"unsub bad id":                `{"jsonrpc": "2.0", "method": "unsubscribe", "params": ["vasiliy"], "id": 1}`,
		"unsub not subscribed":        `{"jsonrpc": "2.0", "method": "unsubscribe", "params": ["0"], "id": 1}`,
		"unsub out of range":          `{"jsonrpc": "2.0", "method": "unsubscribe", "params": ["100500"], "id": 1}`,
	}
	_, ws, msgs := initCleanServerAndWSClient(t)
	for name, msg := range testCases {
		t.Run(name, func(t *testing.T) {
			resp := callWSGetRaw(t, ws, msg, msgs)
			require.NotNil(t, resp.Error)
			require.Nil(t, resp.Result)
			require.Equal(t, int64(neorpc.InvalidParamsCode), resp.Error.Code)
		})
	}
}

func TestMaxSubscriptions(t *testing.T) {
	_, ws, msgs := initCleanServerAndWSClient(t)
	for i := range maxFeeds + 1 {
		resp := callWSGetRaw(t, ws, `{"jsonrpc": "2.0", "method": "subscribe", "params": ["block_added"], "id": 1}`, msgs)
		if i < maxFeeds {
			require.Nil(t, resp.Error)
			require.Equal(t, json.RawMessage(fmt.Sprintf(`"%d"`, i)), resp.Result)
		} else {
			require.NotNil(t, resp.Error)
			require.Equal(t, int64(neorpc.InternalServerErrorCode), resp.Error.Code)
		}
	}
	// Freed slot is reused.
	unsubscribe(t, ws, msgs, "3")
	require.Equal(t, "3", subscribe(t, ws, msgs, `["transaction_executed"]`))
}

func TestWSClientsLimit(t *testing.T) {
	for name, limit := range map[string]int{"default": 0, "1": 1} {
		t.Run(name, func(t *testing.T) {
			_, _, _, srv := initServerWithConfig(t, func(c *config.RPC) { c.MaxWebSocketClients = limit })
			effective := limit
			if effective == 0 {
				effective = config.DefaultMaxWebSocketClients
			}
			dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
			conns := make([]*websocket.Conn, 0, effective)
			for range effective {
				ws, r, err := dialer.Dial(wsURL(srv.URL), nil)
				require.NoError(t, err)
				r.Body.Close()
				conns = append(conns, ws)
			}
			t.Cleanup(func() {
				for _, ws := range conns {
					ws.Close()
				}
			})
			// Registration is done after the upgrade, make sure the
			// server has processed all of them.
			require.Eventually(t, func() bool {
				_, r, err := dialer.Dial(wsURL(srv.URL), nil)
				if r != nil {
					r.Body.Close()
				}
				return err != nil && r != nil && r.StatusCode == http.StatusInternalServerError
			}, 5*time.Second, 50*time.Millisecond)
		})
	}
}
