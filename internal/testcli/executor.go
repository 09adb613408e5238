/*
Package testcli contains auxiliary code to test CLI commands.
*/
package testcli

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/nspcc-dev/pesto-go/cli/app"
	"github.com/nspcc-dev/pesto-go/cli/input"
	"github.com/nspcc-dev/pesto-go/pkg/config"
	"github.com/nspcc-dev/pesto-go/pkg/core"
	"github.com/nspcc-dev/pesto-go/pkg/core/state"
	"github.com/nspcc-dev/pesto-go/pkg/neotest/chain"
	"github.com/nspcc-dev/pesto-go/pkg/services/rpcsrv"
	"github.com/nspcc-dev/pesto-go/pkg/vm/vmstate"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli"
	"go.uber.org/zap/zaptest"
	"golang.org/x/term"
)

// UnitTestConfig is the path to the unit test network configuration relative
// to CLI packages.
const UnitTestConfig = "../../config/protocol.unit_testnet.yml"

// Executor represents context for a test instance.
// It can be safely used in multiple tests, but not in parallel.
type Executor struct {
	// CLI is a cli application to test.
	CLI *cli.App
	// Chain is a blockchain instance (can be empty).
	Chain *core.Blockchain
	// RPC is an RPC server to query (can be empty).
	RPC *rpcsrv.Server
	// Endpoint is the RPC server address (empty if there is no server).
	Endpoint string
	// Out contains command output.
	Out *bytes.Buffer
	// Err contains command errors.
	Err *bytes.Buffer
	// In contains command input.
	In *bytes.Buffer
}

// NewExecutor creates an executor. If needChain is set a chain with an RPC
// server is started for it.
func NewExecutor(t *testing.T, needChain bool) *Executor {
	e := &Executor{
		CLI: app.New(),
		Out: bytes.NewBuffer(nil),
		Err: bytes.NewBuffer(nil),
		In:  bytes.NewBuffer(nil),
	}
	e.CLI.Writer = e.Out
	e.CLI.ErrWriter = e.Err
	if needChain {
		e.Chain, _ = chain.NewSingle(t)
		cfg := config.Default().ApplicationConfiguration.RPC
		cfg.Enabled = true
		cfg.EnableDevMethods = true
		cfg.Addresses = []string{"127.0.0.1:0"}
		e.RPC = rpcsrv.New(e.Chain, cfg, "/PESTO-GO:test/", zaptest.NewLogger(t), make(chan error, 2))
		e.RPC.Start()
		e.Endpoint = "http://" + e.RPC.Addresses()[0]
	}
	t.Cleanup(func() {
		e.Close()
	})
	return e
}

// Close stops the executor's services.
func (e *Executor) Close() {
	input.Terminal = nil
	if e.RPC != nil {
		e.RPC.Shutdown()
	}
}

// GetNextLine returns the next line of the command output.
func (e *Executor) GetNextLine(t *testing.T) string {
	line, err := e.Out.ReadString('\n')
	require.NoError(t, err)
	return strings.TrimSuffix(line, "\n")
}

// CheckNextLine checks that the next output line matches the regexp.
func (e *Executor) CheckNextLine(t *testing.T, expected string) {
	line := e.GetNextLine(t)
	require.Regexp(t, expected, line)
}

// CheckEOF checks that the command output has no more lines.
func (e *Executor) CheckEOF(t *testing.T) {
	_, err := e.Out.ReadString('\n')
	require.True(t, errors.Is(err, io.EOF))
}

// CheckAddress reads the address printed after the given line prefix.
func (e *Executor) CheckAddress(t *testing.T, prefix string) common.Address {
	line := e.GetNextLine(t)
	require.True(t, strings.HasPrefix(line, prefix), line)
	s := strings.TrimPrefix(line, prefix)
	require.True(t, common.IsHexAddress(s), s)
	return common.HexToAddress(s)
}

// CheckHalt checks that the transaction is executed successfully.
func (e *Executor) CheckHalt(t *testing.T, h common.Hash) *state.AppExecResult {
	aer, err := e.Chain.GetAppExecResult(h)
	require.NoError(t, err)
	require.Equal(t, vmstate.Halt, aer.VMState, aer.FaultException)
	return aer
}

func setExitFunc() <-chan int {
	ch := make(chan int, 1)
	cli.OsExiter = func(code int) {
		ch <- code
	}
	return ch
}

func checkExit(t *testing.T, ch <-chan int, code int) {
	select {
	case c := <-ch:
		require.Equal(t, code, c)
	default:
		if code != 0 {
			require.Fail(t, "no exit was called")
		}
	}
}

// RunWithError runs command and checks that is exits with error.
func (e *Executor) RunWithError(t *testing.T, args ...string) {
	ch := setExitFunc()
	require.Error(t, e.run(args...))
	checkExit(t, ch, 1)
}

// RunWithErrorCheck runs command and checks that it exits with an error
// containing the given message.
func (e *Executor) RunWithErrorCheck(t *testing.T, msg string, args ...string) {
	ch := setExitFunc()
	err := e.run(args...)
	require.Error(t, err)
	require.Contains(t, err.Error(), msg)
	checkExit(t, ch, 1)
}

// RunUsageError runs command and checks that it fails to parse flags with an
// error containing the given message. Such errors don't trigger exit.
func (e *Executor) RunUsageError(t *testing.T, msg string, args ...string) {
	ch := setExitFunc()
	err := e.run(args...)
	require.Error(t, err)
	require.Contains(t, err.Error(), msg)
	checkExit(t, ch, 0)
}

// Run runs command and checks that there were no errors.
func (e *Executor) Run(t *testing.T, args ...string) {
	ch := setExitFunc()
	require.NoError(t, e.run(args...))
	checkExit(t, ch, 0)
}

func (e *Executor) run(args ...string) error {
	e.Out.Reset()
	e.Err.Reset()
	input.Terminal = term.NewTerminal(input.ReadWriter{
		Reader: e.In,
		Writer: io.Discard,
	}, "")
	err := e.CLI.Run(args)
	input.Terminal = nil
	e.In.Reset()
	return err
}
