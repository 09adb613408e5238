package smartcontract

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/nspcc-dev/pesto-go/cli/cmdargs"
	"github.com/nspcc-dev/pesto-go/cli/flags"
	"github.com/nspcc-dev/pesto-go/cli/options"
	"github.com/nspcc-dev/pesto-go/pkg/config"
	"github.com/nspcc-dev/pesto-go/pkg/contracts/staking"
	"github.com/nspcc-dev/pesto-go/pkg/core/state"
	"github.com/nspcc-dev/pesto-go/pkg/neorpc/result"
	"github.com/nspcc-dev/pesto-go/pkg/rpcclient/actor"
	"github.com/nspcc-dev/pesto-go/pkg/smartcontract/manifest"
	"github.com/urfave/cli"
)

var (
	errNoFactory      = errors.New("no contract factory name was provided")
	errNoAddress      = errors.New("no contract address was provided")
	errNoMethod       = errors.New("no method was provided")
	errNoTxHash       = errors.New("no transaction hash was provided")
	errInvalidAddr    = errors.New("invalid contract address")
	errInvalidHash    = errors.New("invalid transaction hash")
	errNonPositive    = errors.New("reward rate must be positive")
	errBadStakingAddr = errors.New("invalid staking deployment address")
)

// nodeFlags are the flags needed to reach a node or create an in-process one.
var nodeFlags = slices.Concat([]cli.Flag{
	options.Config,
	options.ConfigFile,
	options.RelativePath,
	options.Debug,
}, options.Network, options.RPC)

var signerFlags = slices.Concat(nodeFlags, options.Signer)

// NewCommands returns 'contract' command.
func NewCommands() []cli.Command {
	deployStakingFlags := slices.Concat([]cli.Flag{
		flags.AddressFlag{
			Name:  "nft",
			Usage: "NFT contract address (defaults to the configured preset)",
		},
		flags.AddressFlag{
			Name:  "token",
			Usage: "reward token contract address (defaults to the configured preset)",
		},
		cli.Uint64Flag{
			Name:  "rate",
			Usage: "reward rate per staked NFT and block (defaults to the configured preset)",
		},
	}, signerFlags)
	return []cli.Command{{
		Name:  "contract",
		Usage: "deploy and invoke smart contracts",
		Subcommands: []cli.Command{
			{
				Name:      "deploy",
				Usage:     "deploy a new contract instance from the named factory",
				UsageText: "pesto-go contract deploy [-r endpoint] [-a index | -k keystore] <factory> [<arg>...]",
				Description: `Deploys a new instance of the contract factory known to the node with the
   given constructor arguments and waits for the deployment. Without the
   --rpc-endpoint option the contract is deployed to a fresh in-process
   development chain.

` + cmdargs.ParamsParsingDoc,
				Action: contractDeploy,
				Flags:  signerFlags,
			},
			{
				Name:      "deploy-staking",
				Usage:     "deploy Staking contract with the preset parameters",
				UsageText: "pesto-go contract deploy-staking [-r endpoint] [-a index | -k keystore] [--nft address] [--token address] [--rate n]",
				Action:    contractDeployStaking,
				Flags:     deployStakingFlags,
			},
			{
				Name:      "factories",
				Usage:     "list contract factories known to the node",
				UsageText: "pesto-go contract factories [-r endpoint]",
				Action:    listFactories,
				Flags:     nodeFlags,
			},
			{
				Name:      "call",
				Usage:     "invoke a contract method without creating a transaction",
				UsageText: "pesto-go contract call [-r endpoint] [-a index | -k keystore] <address> <method> [<arg>...]",
				Description: `Performs a read-only call of the contract method and prints the result.

` + cmdargs.ParamsParsingDoc,
				Action: contractCall,
				Flags:  signerFlags,
			},
			{
				Name:      "invoke",
				Usage:     "send a transaction invoking a contract method",
				UsageText: "pesto-go contract invoke [-r endpoint] [-a index | -k keystore] <address> <method> [<arg>...]",
				Description: `Sends a transaction invoking the contract method, waits for its execution
   and prints the result including emitted events.

` + cmdargs.ParamsParsingDoc,
				Action: contractInvoke,
				Flags:  signerFlags,
			},
			{
				Name:      "applog",
				Usage:     "print transaction execution result",
				UsageText: "pesto-go contract applog -r endpoint <txhash>",
				Action:    getApplicationLog,
				Flags:     nodeFlags,
			},
		},
	}}
}

// withClient runs f with a node client created for the command context.
func withClient(ctx *cli.Context, f func(c options.Client) error) error {
	log, logCloser, err := options.GetChainLogger(ctx)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	defer logCloser()

	gctx, cancel := options.GetAwaitableContext(ctx)
	defer cancel()

	c, closer, exitErr := options.GetClient(gctx, ctx, log)
	if exitErr != nil {
		return exitErr
	}
	defer closer()
	return f(c)
}

// withActor is similar to withClient, but also creates an actor for the
// chosen signer.
func withActor(ctx *cli.Context, f func(a *actor.Actor) error) error {
	return withClient(ctx, func(c options.Client) error {
		a, err := options.GetActor(ctx, c)
		if err != nil {
			return err
		}
		return f(a)
	})
}

func contractDeploy(ctx *cli.Context) error {
	if !ctx.Args().Present() {
		return cli.NewExitError(errNoFactory, 1)
	}
	name := ctx.Args().First()
	args, exitErr := cmdargs.GetParamsFromContext(ctx, 1)
	if exitErr != nil {
		return exitErr
	}
	return withActor(ctx, func(a *actor.Actor) error {
		_, err := Deploy(ctx.App.Writer, a, name, args...)
		if err != nil {
			return cli.NewExitError(err, 1)
		}
		return nil
	})
}

func contractDeployStaking(ctx *cli.Context) error {
	if err := cmdargs.EnsureNone(ctx); err != nil {
		return err
	}
	preset, err := stakingPreset(ctx)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	if nft, ok := flags.GetAddress(ctx, "nft"); ok {
		preset.NFT = nft.Hex()
	}
	if token, ok := flags.GetAddress(ctx, "token"); ok {
		preset.Token = token.Hex()
	}
	if ctx.IsSet("rate") {
		preset.Rate = ctx.Uint64("rate")
	}
	if !common.IsHexAddress(preset.NFT) || !common.IsHexAddress(preset.Token) {
		return cli.NewExitError(errBadStakingAddr, 1)
	}
	if preset.Rate == 0 {
		return cli.NewExitError(errNonPositive, 1)
	}
	return withActor(ctx, func(a *actor.Actor) error {
		_, err := Deploy(ctx.App.Writer, a, staking.FactoryName,
			common.HexToAddress(preset.NFT), common.HexToAddress(preset.Token), preset.Rate)
		if err != nil {
			return cli.NewExitError(err, 1)
		}
		return nil
	})
}

// Deploy deploys a contract from the named factory on behalf of the actor
// printing deployment progress to w. It returns the new contract address.
func Deploy(w io.Writer, a *actor.Actor, factory string, args ...any) (common.Address, error) {
	fmt.Fprintf(w, "Deploying contract from: %s\n", a.Sender().Hex())
	f, err := a.Factory(factory)
	if err != nil {
		return common.Address{}, err
	}
	fmt.Fprintf(w, "Deploying %s contract...\n", f.Name())
	addr, _, err := f.Deploy(args...)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to deploy %s: %w", f.Name(), err)
	}
	fmt.Fprintf(w, "%s deployed to: %s\n", f.Name(), addr.Hex())
	return addr, nil
}

func listFactories(ctx *cli.Context) error {
	if err := cmdargs.EnsureNone(ctx); err != nil {
		return err
	}
	return withClient(ctx, func(c options.Client) error {
		fs, err := c.GetFactories()
		if err != nil {
			return cli.NewExitError(err, 1)
		}
		PrintFactories(ctx.App.Writer, fs)
		return nil
	})
}

// PrintFactories writes factory names along with their method and event
// signatures.
func PrintFactories(w io.Writer, fs []result.Factory) {
	for i := range fs {
		fmt.Fprintln(w, fs[i].Name)
		if ctor := fs[i].Constructor(); ctor != nil {
			fmt.Fprintf(w, "\tconstructor: %s\n", ctor.Signature())
		}
		for _, m := range fs[i].Manifest.ABI.Methods {
			if m.Name == manifest.MethodConstructor {
				continue
			}
			var safe string
			if m.Safe {
				safe = " (safe)"
			}
			fmt.Fprintf(w, "\tmethod: %s -> %s%s\n", m.Signature(), m.ReturnType, safe)
		}
		for _, e := range fs[i].Manifest.ABI.Events {
			fmt.Fprintf(w, "\tevent: %s\n", e.Signature())
		}
	}
}

// stakingPreset returns Staking deployment parameters from the node
// configuration. Built-in defaults are used for remote nodes if there is no
// local configuration.
func stakingPreset(ctx *cli.Context) (config.StakingDeployment, error) {
	cfg, err := options.GetConfigFromContext(ctx)
	if err != nil {
		if len(ctx.String(options.RPCEndpointFlag)) != 0 {
			return config.DefaultDeployments().Staking, nil
		}
		return config.StakingDeployment{}, err
	}
	return cfg.ProtocolConfiguration.Deployments.Staking, nil
}

// parseCallArgs returns the contract address, method and call parameters
// from the command arguments.
func parseCallArgs(ctx *cli.Context) (common.Address, string, []any, error) {
	args := ctx.Args()
	switch len(args) {
	case 0:
		return common.Address{}, "", nil, cli.NewExitError(errNoAddress, 1)
	case 1:
		return common.Address{}, "", nil, cli.NewExitError(errNoMethod, 1)
	}
	if !common.IsHexAddress(args[0]) {
		return common.Address{}, "", nil, cli.NewExitError(fmt.Errorf("%w: %s", errInvalidAddr, args[0]), 1)
	}
	params, exitErr := cmdargs.GetParamsFromContext(ctx, 2)
	if exitErr != nil {
		return common.Address{}, "", nil, exitErr
	}
	return common.HexToAddress(args[0]), args[1], params, nil
}

func contractCall(ctx *cli.Context) error {
	addr, method, params, err := parseCallArgs(ctx)
	if err != nil {
		return err
	}
	return withActor(ctx, func(a *actor.Actor) error {
		res, err := a.Call(addr, method, params...)
		if err != nil {
			return cli.NewExitError(err, 1)
		}
		PrintExecution(ctx.App.Writer, &res.Execution)
		return nil
	})
}

func contractInvoke(ctx *cli.Context) error {
	addr, method, params, err := parseCallArgs(ctx)
	if err != nil {
		return err
	}
	return withActor(ctx, func(a *actor.Actor) error {
		aer, err := a.Wait(a.SendCall(addr, method, params...))
		if err != nil {
			return cli.NewExitError(err, 1)
		}
		PrintAppExecResult(ctx.App.Writer, aer)
		return nil
	})
}

func getApplicationLog(ctx *cli.Context) error {
	args := ctx.Args()
	if len(args) == 0 {
		return cli.NewExitError(errNoTxHash, 1)
	}
	h, err := parseHash(args[0])
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	return withClient(ctx, func(c options.Client) error {
		aer, err := c.GetApplicationLog(h)
		if err != nil {
			return cli.NewExitError(err, 1)
		}
		PrintAppExecResult(ctx.App.Writer, aer)
		return nil
	})
}

func parseHash(s string) (common.Hash, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if len(s) != 2*common.HashLength {
		return common.Hash{}, fmt.Errorf("%w: %s", errInvalidHash, s)
	}
	return common.HexToHash(s), nil
}

// PrintAppExecResult writes transaction execution result.
func PrintAppExecResult(w io.Writer, aer *state.AppExecResult) {
	fmt.Fprintf(w, "Transaction: %s\n", aer.Container.Hex())
	fmt.Fprintf(w, "Block: %d\n", aer.BlockIndex)
	PrintExecution(w, &aer.Execution)
}

// PrintExecution writes VM state, result stack, exception and events of the
// execution.
func PrintExecution(w io.Writer, e *state.Execution) {
	fmt.Fprintf(w, "VM state: %s\n", e.VMState)
	fmt.Fprintf(w, "Gas consumed: %d\n", e.GasConsumed)
	if e.FaultException != "" {
		fmt.Fprintf(w, "Exception: %s\n", e.FaultException)
	}
	if len(e.Stack) != 0 {
		fmt.Fprintln(w, "Stack:")
		for _, item := range e.Stack {
			fmt.Fprintf(w, "\t%s\n", marshalOrError(item))
		}
	}
	if len(e.Events) != 0 {
		fmt.Fprintln(w, "Events:")
		PrintEvents(w, e.Events)
	}
}

// PrintEvents writes notification events one per line.
func PrintEvents(w io.Writer, evs []state.NotificationEvent) {
	for i := range evs {
		fmt.Fprintf(w, "\t%s %s %s\n", evs[i].Contract.Hex(), evs[i].Name, marshalOrError(evs[i].Item))
	}
}

func marshalOrError(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("<%s>", err)
	}
	return string(b)
}
