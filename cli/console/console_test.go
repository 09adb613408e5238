package console

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/chzyer/readline"
	"github.com/nspcc-dev/pesto-go/pkg/contracts/pesto"
	"github.com/nspcc-dev/pesto-go/pkg/neotest/chain"
	"github.com/nspcc-dev/pesto-go/pkg/rpcclient/actor"
	"github.com/nspcc-dev/pesto-go/pkg/rpcclient/local"
	"github.com/nspcc-dev/pesto-go/pkg/wallet"
	"github.com/stretchr/testify/require"
)

// syncBuffer is a bytes.Buffer safe for concurrent use.
type syncBuffer struct {
	lock sync.Mutex
	buf  bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.buf.String()
}

type executor struct {
	accs []*wallet.Account
	con  *Console
	out  *syncBuffer
}

func newTestConsole(t *testing.T, lines ...string) *executor {
	bc, signers := chain.NewSingle(t)
	c := local.New(context.Background(), bc)
	accs := make([]*wallet.Account, len(signers))
	for i := range signers {
		accs[i] = signers[i].Account()
	}
	a, err := actor.New(c, accs[0])
	require.NoError(t, err)

	out := new(syncBuffer)
	con, err := NewWithConfig(c, a, &readline.Config{
		Prompt:         "> ",
		Stdin:          readline.NewCancelableStdin(strings.NewReader(strings.Join(lines, "\n") + "\n")),
		Stdout:         out,
		Stderr:         out,
		FuncIsTerminal: func() bool { return false },
	})
	require.NoError(t, err)
	return &executor{accs: accs, con: con, out: out}
}

func (e *executor) run(t *testing.T) string {
	require.NoError(t, e.con.Run())
	return e.out.String()
}

func TestConsoleContracts(t *testing.T) {
	to := "0x00000000000000000000000000000000000000aa"
	e := newTestConsole(t,
		"factories",
		"deploy "+pesto.FactoryName,
		"call "+pesto.FactoryName+" symbol",
		"invoke "+pesto.FactoryName+" transfer "+to+" 5",
		"call "+pesto.FactoryName+" balanceOf "+to,
		"events "+pesto.FactoryName+" Transfer",
		"events --limit 1",
	)
	out := e.run(t)

	require.Contains(t, out, "Signer: "+e.accs[0].Address.Hex()+"\n")
	require.Contains(t, out, "\tmethod: balanceOf(address) -> uint256 (safe)\n")
	require.Contains(t, out, "Deploying contract from: "+e.accs[0].Address.Hex()+"\n")
	require.Regexp(t, pesto.FactoryName+" deployed to: 0x[0-9a-fA-F]{40}\n", out)
	require.Contains(t, out, "VM state: HALT\n")
	require.NotContains(t, out, "VM state: FAULT")
	require.Regexp(t, "Transaction: 0x[0-9a-f]{64}\n", out)
	require.Regexp(t, "\t0x[0-9a-fA-F]{40} Transfer ", out)
	require.Contains(t, out, "\t5\n")
	require.Regexp(t, "Block [0-9]+, transaction 0x[0-9a-f]{64}:\n", out)
	require.Contains(t, out, "More notifications are available")
	require.NotContains(t, out, "Error:")
}

func TestConsoleSignersAndMine(t *testing.T) {
	e := newTestConsole(t,
		"signers",
		"signers 3",
		"mine",
		"mine 2",
		"deploy "+pesto.FactoryName,
		"exit",
		"signers 5",
	)
	out := e.run(t)

	require.Contains(t, out, "* 0 "+e.accs[0].Address.Hex()+"\n")
	require.Contains(t, out, "  1 "+e.accs[1].Address.Hex()+"\n")
	require.Contains(t, out, "Signer: "+e.accs[3].Address.Hex()+"\n")
	require.Contains(t, out, "Height: 1\n")
	require.Contains(t, out, "Height: 3\n")
	require.Contains(t, out, "Deploying contract from: "+e.accs[3].Address.Hex()+"\n")
	require.Contains(t, out, "Bye!\n")
	require.NotContains(t, out, "Signer: "+e.accs[5].Address.Hex())
}

func TestConsoleErrors(t *testing.T) {
	e := newTestConsole(t,
		"deploy",
		"deploy Unknown",
		"call",
		"call Unknown symbol",
		"call 0x00000000000000000000000000000000000000aa symbol ]",
		`call "unterminated`,
		"signers 100",
		"signers x",
		"mine 0",
		"events Unknown",
		"",
	)
	out := e.run(t)

	require.Contains(t, out, "Error: missing argument: <factory>\n")
	require.Contains(t, out, "Unknown contract factory")
	require.Contains(t, out, "Error: missing argument: <contract> and <method> are required\n")
	require.Contains(t, out, `"Unknown" is neither an address nor a deployed factory name`)
	require.Contains(t, out, "unable to parse arguments")
	require.Contains(t, out, "Error: failed to parse arguments")
	require.Contains(t, out, "signer index should be in [0, ")
	require.Contains(t, out, "block count should be a positive integer")
	require.Equal(t, 2, strings.Count(out, "is neither an address"))
}
