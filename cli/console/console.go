package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/ethereum/go-ethereum/common"
	"github.com/kballard/go-shellquote"
	"github.com/nspcc-dev/pesto-go/cli/cmdargs"
	"github.com/nspcc-dev/pesto-go/cli/options"
	"github.com/nspcc-dev/pesto-go/cli/smartcontract"
	"github.com/nspcc-dev/pesto-go/pkg/config"
	"github.com/nspcc-dev/pesto-go/pkg/core/state"
	"github.com/nspcc-dev/pesto-go/pkg/neorpc"
	"github.com/nspcc-dev/pesto-go/pkg/rpcclient/actor"
	"github.com/nspcc-dev/pesto-go/pkg/wallet"
	"github.com/urfave/cli"
)

const (
	clientKey           = "client"
	actorKey            = "actor"
	signersKey          = "signers"
	deployedKey         = "deployed"
	exitFuncKey         = "exitFunc"
	readlineInstanceKey = "readlineKey"

	prompt = "\033[32mPESTO >\033[0m "
)

var commands = []cli.Command{
	{
		Name:   "exit",
		Usage:  "Exit the console",
		Action: handleExit,
	},
	{
		Name:      "deploy",
		Usage:     "Deploy a contract from the named factory",
		UsageText: `deploy <factory> [<arg>...]`,
		Description: `deploy <factory> [<arg>...]

The address of the latest contract deployed from the factory can be
referenced by the factory name in other commands, example:
> deploy PestoToken
> call PestoToken symbol`,
		Action: handleDeploy,
	},
	{
		Name:      "call",
		Usage:     "Invoke a contract method without creating a transaction",
		UsageText: `call <contract> <method> [<arg>...]`,
		Description: `call <contract> <method> [<arg>...]

<contract> is a contract address or a name of the factory it was deployed
from in this session, example:
> call PestoToken balanceOf 0xcd3b766ccdd6ae721141f452c550ca635964ce71`,
		Action: handleCall,
	},
	{
		Name:      "invoke",
		Usage:     "Send a transaction invoking a contract method",
		UsageText: `invoke <contract> <method> [<arg>...]`,
		Description: `invoke <contract> <method> [<arg>...]

example:
> invoke PestoToken transfer 0xcd3b766ccdd6ae721141f452c550ca635964ce71 100`,
		Action: handleInvoke,
	},
	{
		Name:   "factories",
		Usage:  "List contract factories known to the node",
		Action: handleFactories,
	},
	{
		Name:      "signers",
		Usage:     "List development accounts or switch the signer",
		UsageText: `signers [<index>]`,
		Description: `signers [<index>]

Without arguments lists node development accounts marking the current
signer with '*'. With an index switches the signer, example:
> signers 3`,
		Action: handleSigners,
	},
	{
		Name:      "mine",
		Usage:     "Seal empty blocks",
		UsageText: `mine [<n>]`,
		Description: `mine [<n>]

<n> is the number of blocks to seal, 1 by default.`,
		Action: handleMine,
	},
	{
		Name:      "events",
		Usage:     "Print notifications emitted by contracts",
		UsageText: `events [--start n] [--end n] [--limit n] [<contract> [<event>]]`,
		Flags: []cli.Flag{
			cli.UintFlag{
				Name:  "start",
				Usage: "first block to scan",
			},
			cli.UintFlag{
				Name:  "end",
				Usage: "last block to scan (current height by default)",
			},
			cli.IntFlag{
				Name:  "limit",
				Usage: "maximum number of notifications to print",
			},
		},
		Action: handleEvents,
	},
}

var completer *readline.PrefixCompleter

func init() {
	var pcItems []readline.PrefixCompleterInterface
	for _, c := range commands {
		if !c.Hidden {
			var flagsItems []readline.PrefixCompleterInterface
			for _, f := range c.Flags {
				names := strings.SplitN(f.GetName(), ", ", 2) // only long name will be offered
				flagsItems = append(flagsItems, readline.PcItem("--"+names[0]))
			}
			pcItems = append(pcItems, readline.PcItem(c.Name, flagsItems...))
		}
	}
	completer = readline.NewPrefixCompleter(pcItems...)
}

// Various errors.
var (
	ErrMissingParameter = errors.New("missing argument")
	ErrInvalidParameter = errors.New("can't parse argument")
)

// NewCommands returns 'console' command.
func NewCommands() []cli.Command {
	flags := slices.Concat([]cli.Flag{
		options.Config,
		options.ConfigFile,
		options.RelativePath,
		options.Debug,
		cli.StringFlag{
			Name:  "history",
			Usage: "file to keep the command history in",
		},
	}, options.Network, options.RPC, options.Signer)
	return []cli.Command{{
		Name:      "console",
		Usage:     "start an interactive console",
		UsageText: "pesto-go console [-r endpoint] [-a index | -k keystore] [--history file]",
		Description: `Starts an interactive session for deploying and invoking contracts. Without
   the --rpc-endpoint option commands are run against a fresh in-process
   development chain. Type 'help' to see available commands.`,
		Action: startConsole,
		Flags:  flags,
	}}
}

// Console is an interactive shell running commands against a node.
type Console struct {
	shell *cli.App
	done  bool
}

// NewWithConfig returns a new Console instance working with the client on
// behalf of the actor. c is used to configure readline.
func NewWithConfig(client options.Client, a *actor.Actor, c *readline.Config) (*Console, error) {
	if c.AutoComplete == nil {
		// Autocomplete commands/flags on TAB.
		c.AutoComplete = completer
	}
	if c.Prompt == "" {
		c.Prompt = prompt
	}
	l, err := readline.NewEx(c)
	if err != nil {
		return nil, fmt.Errorf("failed to create readline instance: %w", err)
	}
	ctl := cli.NewApp()
	ctl.Name = "Pesto console"

	// Note: need to set empty `ctl.HelpName` and `ctl.UsageText`, otherwise
	// `filepath.Base(os.Args[0])` will be used which is `pesto-go`.
	ctl.HelpName = ""
	ctl.UsageText = ""

	ctl.Writer = l.Stdout()
	ctl.ErrWriter = l.Stderr()
	ctl.Version = config.Version
	ctl.Usage = "Pesto contracts console"

	// Override default error handler in order not to exit on error.
	ctl.ExitErrHandler = func(*cli.Context, error) {}
	ctl.Commands = commands

	con := &Console{shell: ctl}
	ctl.Metadata = map[string]any{
		clientKey:           client,
		actorKey:            a,
		deployedKey:         make(map[string]common.Address),
		readlineInstanceKey: l,
		exitFuncKey:         func() { con.done = true },
	}
	return con, nil
}

func getClientFromContext(app *cli.App) options.Client {
	return app.Metadata[clientKey].(options.Client)
}

func getActorFromContext(app *cli.App) *actor.Actor {
	return app.Metadata[actorKey].(*actor.Actor)
}

func getDeployedFromContext(app *cli.App) map[string]common.Address {
	return app.Metadata[deployedKey].(map[string]common.Address)
}

func getReadlineInstanceFromContext(app *cli.App) *readline.Instance {
	return app.Metadata[readlineInstanceKey].(*readline.Instance)
}

// getSigners returns dev accounts of the node, they're fetched once.
func getSigners(app *cli.App) ([]*wallet.Account, error) {
	if accs, ok := app.Metadata[signersKey].([]*wallet.Account); ok {
		return accs, nil
	}
	accs, err := actor.Signers(getClientFromContext(app))
	if err != nil {
		return nil, err
	}
	app.Metadata[signersKey] = accs
	return accs, nil
}

func startConsole(ctx *cli.Context) error {
	if err := cmdargs.EnsureNone(ctx); err != nil {
		return err
	}
	log, logCloser, err := options.GetChainLogger(ctx)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	defer logCloser()

	// The client lives as long as the session.
	gctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c, closer, exitErr := options.GetClient(gctx, ctx, log)
	if exitErr != nil {
		return exitErr
	}
	defer closer()
	a, exitErr := options.GetActor(ctx, c)
	if exitErr != nil {
		return exitErr
	}

	con, err := NewWithConfig(c, a, &readline.Config{
		HistoryFile: ctx.String("history"),
		Stdout:      ctx.App.Writer,
		Stderr:      ctx.App.ErrWriter,
	})
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	return con.Run()
}

// Run waits for user input and executes the passed commands until the input
// ends or 'exit' is entered.
func (c *Console) Run() error {
	l := getReadlineInstanceFromContext(c.shell)
	defer l.Close()
	fmt.Fprintf(c.shell.Writer, "Signer: %s\n", getActorFromContext(c.shell).Sender().Hex())
	for !c.done {
		line, err := l.Readline()
		if errors.Is(err, io.EOF) || errors.Is(err, readline.ErrInterrupt) {
			return nil // OK, stop execution.
		}
		if err != nil {
			return fmt.Errorf("failed to read input: %w", err) // Critical error, stop execution.
		}

		args, err := shellquote.Split(line)
		if err != nil {
			writeErr(c.shell.ErrWriter, fmt.Errorf("failed to parse arguments: %w", err))
			continue // Not a critical error, continue execution.
		}
		if len(args) == 0 {
			continue
		}

		err = c.shell.Run(append([]string{"pesto"}, args...))
		if err != nil {
			writeErr(c.shell.ErrWriter, err) // Various command/flags parsing errors and execution errors.
		}
	}
	return nil
}

func handleExit(c *cli.Context) error {
	exit := c.App.Metadata[exitFuncKey].(func())
	fmt.Fprintln(c.App.Writer, "Bye!")
	exit()
	return nil
}

// resolveContract returns the address given explicitly or the address of the
// contract deployed from the named factory.
func resolveContract(app *cli.App, s string) (common.Address, error) {
	if common.IsHexAddress(s) {
		return common.HexToAddress(s), nil
	}
	if addr, ok := getDeployedFromContext(app)[s]; ok {
		return addr, nil
	}
	return common.Address{}, fmt.Errorf("%w: %q is neither an address nor a deployed factory name", ErrInvalidParameter, s)
}

// parseCall returns the contract, method and parameters from the command
// arguments.
func parseCall(c *cli.Context) (common.Address, string, []any, error) {
	args := c.Args()
	if len(args) < 2 {
		return common.Address{}, "", nil, fmt.Errorf("%w: <contract> and <method> are required", ErrMissingParameter)
	}
	addr, err := resolveContract(c.App, args[0])
	if err != nil {
		return common.Address{}, "", nil, err
	}
	params, exitErr := cmdargs.GetParamsFromContext(c, 2)
	if exitErr != nil {
		return common.Address{}, "", nil, exitErr
	}
	return addr, args[1], params, nil
}

func handleDeploy(c *cli.Context) error {
	if !c.Args().Present() {
		writeErr(c.App.ErrWriter, fmt.Errorf("%w: <factory>", ErrMissingParameter))
		return nil
	}
	name := c.Args().First()
	params, exitErr := cmdargs.GetParamsFromContext(c, 1)
	if exitErr != nil {
		writeErr(c.App.ErrWriter, exitErr)
		return nil
	}
	addr, err := smartcontract.Deploy(c.App.Writer, getActorFromContext(c.App), name, params...)
	if err != nil {
		writeErr(c.App.ErrWriter, err)
		return nil
	}
	getDeployedFromContext(c.App)[name] = addr
	return nil
}

func handleCall(c *cli.Context) error {
	addr, method, params, err := parseCall(c)
	if err != nil {
		writeErr(c.App.ErrWriter, err)
		return nil
	}
	res, err := getActorFromContext(c.App).Call(addr, method, params...)
	if err != nil {
		writeErr(c.App.ErrWriter, err)
		return nil
	}
	smartcontract.PrintExecution(c.App.Writer, &res.Execution)
	return nil
}

func handleInvoke(c *cli.Context) error {
	addr, method, params, err := parseCall(c)
	if err != nil {
		writeErr(c.App.ErrWriter, err)
		return nil
	}
	a := getActorFromContext(c.App)
	aer, err := a.Wait(a.SendCall(addr, method, params...))
	if err != nil {
		writeErr(c.App.ErrWriter, err)
		return nil
	}
	smartcontract.PrintAppExecResult(c.App.Writer, aer)
	return nil
}

func handleFactories(c *cli.Context) error {
	fs, err := getClientFromContext(c.App).GetFactories()
	if err != nil {
		writeErr(c.App.ErrWriter, err)
		return nil
	}
	smartcontract.PrintFactories(c.App.Writer, fs)
	return nil
}

func handleSigners(c *cli.Context) error {
	accs, err := getSigners(c.App)
	if err != nil {
		writeErr(c.App.ErrWriter, err)
		return nil
	}
	if c.Args().Present() {
		i, err := strconv.Atoi(c.Args().First())
		if err != nil || i < 0 || i >= len(accs) {
			writeErr(c.App.ErrWriter, fmt.Errorf("%w: signer index should be in [0, %d)", ErrInvalidParameter, len(accs)))
			return nil
		}
		a, err := actor.New(getClientFromContext(c.App), accs[i])
		if err != nil {
			writeErr(c.App.ErrWriter, err)
			return nil
		}
		c.App.Metadata[actorKey] = a
		fmt.Fprintf(c.App.Writer, "Signer: %s\n", a.Sender().Hex())
		return nil
	}
	current := getActorFromContext(c.App).Sender()
	for i, acc := range accs {
		mark := " "
		if acc.Address == current {
			mark = "*"
		}
		fmt.Fprintf(c.App.Writer, "%s %d %s\n", mark, i, acc.Address.Hex())
	}
	return nil
}

func handleMine(c *cli.Context) error {
	n := 1
	if c.Args().Present() {
		var err error
		n, err = strconv.Atoi(c.Args().First())
		if err != nil || n <= 0 {
			writeErr(c.App.ErrWriter, fmt.Errorf("%w: block count should be a positive integer", ErrInvalidParameter))
			return nil
		}
	}
	height, err := getClientFromContext(c.App).MineBlocks(n)
	if err != nil {
		writeErr(c.App.ErrWriter, err)
		return nil
	}
	fmt.Fprintf(c.App.Writer, "Height: %d\n", height)
	return nil
}

func handleEvents(c *cli.Context) error {
	var (
		rng    neorpc.NotificationsRange
		filter *neorpc.NotificationFilter
		args   = c.Args()
	)
	if c.IsSet("start") {
		start := uint32(c.Uint("start"))
		rng.Start = &start
	}
	if c.IsSet("end") {
		end := uint32(c.Uint("end"))
		rng.End = &end
	}
	if c.IsSet("limit") {
		limit := c.Int("limit")
		rng.Limit = &limit
	}
	if len(args) > 0 {
		addr, err := resolveContract(c.App, args[0])
		if err != nil {
			writeErr(c.App.ErrWriter, err)
			return nil
		}
		filter = &neorpc.NotificationFilter{Contract: &addr}
		if len(args) > 1 {
			name := args[1]
			filter.Name = &name
		}
	}
	res, err := getClientFromContext(c.App).GetNotifications(&rng, filter)
	if err != nil {
		writeErr(c.App.ErrWriter, err)
		return nil
	}
	for _, ev := range res.Notifications {
		fmt.Fprintf(c.App.Writer, "Block %d, transaction %s:\n", ev.BlockIndex, ev.Container.Hex())
		smartcontract.PrintEvents(c.App.Writer, []state.NotificationEvent{ev.NotificationEvent})
	}
	if res.Truncated {
		fmt.Fprintln(c.App.Writer, "More notifications are available, use --start or --limit to get them")
	}
	return nil
}

func writeErr(w io.Writer, err error) {
	fmt.Fprintf(w, "Error: %s\n", err)
}
