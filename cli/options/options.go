/*
Package options contains a set of common CLI options and helper functions to use them.
*/
package options

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/nspcc-dev/pesto-go/cli/input"
	"github.com/nspcc-dev/pesto-go/pkg/config"
	"github.com/nspcc-dev/pesto-go/pkg/config/netmode"
	"github.com/nspcc-dev/pesto-go/pkg/contracts"
	"github.com/nspcc-dev/pesto-go/pkg/core"
	"github.com/nspcc-dev/pesto-go/pkg/core/state"
	"github.com/nspcc-dev/pesto-go/pkg/core/storage"
	"github.com/nspcc-dev/pesto-go/pkg/io"
	"github.com/nspcc-dev/pesto-go/pkg/neorpc"
	"github.com/nspcc-dev/pesto-go/pkg/neorpc/result"
	"github.com/nspcc-dev/pesto-go/pkg/rpcclient"
	"github.com/nspcc-dev/pesto-go/pkg/rpcclient/actor"
	"github.com/nspcc-dev/pesto-go/pkg/rpcclient/local"
	"github.com/nspcc-dev/pesto-go/pkg/wallet"
	"github.com/urfave/cli"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	// DefaultTimeout is the default timeout used for RPC requests.
	DefaultTimeout = 10 * time.Second
	// DefaultAwaitableTimeout is the default timeout used for commands that
	// send transactions and wait for their execution.
	DefaultAwaitableTimeout = time.Minute
)

// RPCEndpointFlag is a long flag name for an RPC endpoint. It can be used to
// check for flag presence in the context.
const RPCEndpointFlag = "rpc-endpoint"

// Network is a set of flags for choosing the network to operate on.
var Network = []cli.Flag{
	cli.BoolFlag{Name: "devnet", Usage: "use development network configuration (default, if --config-file option is not specified)"},
	cli.BoolFlag{Name: "unittest", Hidden: true},
}

// RPC is a set of flags used for RPC connections (endpoint and timeout).
var RPC = []cli.Flag{
	cli.StringFlag{
		Name:  RPCEndpointFlag + ", r",
		Usage: "RPC node address (in-process development chain is used if not set)",
	},
	cli.DurationFlag{
		Name:  "timeout, s",
		Value: DefaultTimeout,
		Usage: "Timeout for the operation",
	},
}

// Signer is a set of flags used to choose the transaction sender.
var Signer = []cli.Flag{
	cli.IntFlag{
		Name:  "account, a",
		Usage: "index of the node development account to sign transactions with",
	},
	cli.StringFlag{
		Name:  "keystore, k",
		Usage: "path to the keystore file with the signing key (overrides --account)",
	},
}

// Config is a flag for commands that use node configuration.
var Config = cli.StringFlag{
	Name:  "config-path",
	Usage: "path to directory with per-network configuration files (may be overridden by --config-file option for the configuration file)",
}

// ConfigFile is a flag for commands that use node configuration and provide
// path to the specific config file instead of config path.
var ConfigFile = cli.StringFlag{
	Name:  "config-file",
	Usage: "path to the node configuration file (overrides --config-path option)",
}

// RelativePath is a flag for commands that use node configuration and provide
// a prefix to all relative paths in config files.
var RelativePath = cli.StringFlag{
	Name:  "relative-path",
	Usage: "a prefix to all relative paths in the node configuration file",
}

// Debug is a flag for commands that allow node in debug mode usage.
var Debug = cli.BoolFlag{
	Name:  "debug, d",
	Usage: "enable debug logging (LOTS of output, overrides configuration)",
}

var errNoEndpoint = errors.New("no RPC endpoint specified, use option '--" + RPCEndpointFlag + "' or '-r'")

// Client is the node API used by commands. It's implemented by both the RPC
// client and the in-process chain client.
type Client interface {
	actor.RPCActor

	GetContractState(addr common.Address) (*state.Contract, error)
	GetFactories() ([]result.Factory, error)
	GetNotifications(rng *neorpc.NotificationsRange, filter *neorpc.NotificationFilter) (*result.Notifications, error)
	MineBlocks(n int) (uint32, error)
}

var (
	_ Client = (*rpcclient.Client)(nil)
	_ Client = (*local.Client)(nil)
)

// GetNetwork examines Context's flags and returns the appropriate network. It
// defaults to DevNet if no flags are given.
func GetNetwork(ctx *cli.Context) netmode.Magic {
	var net = netmode.DevNet
	if ctx.Bool("unittest") {
		net = netmode.UnitTestNet
	}
	return net
}

// GetTimeoutContext returns a context.Context with the default or a user-set timeout.
func GetTimeoutContext(ctx *cli.Context) (context.Context, func()) {
	dur := ctx.Duration("timeout")
	if dur == 0 {
		dur = DefaultTimeout
	}
	return context.WithTimeout(context.Background(), dur)
}

// GetAwaitableContext is similar to GetTimeoutContext, but uses a longer
// default suitable for transaction awaiting.
func GetAwaitableContext(ctx *cli.Context) (context.Context, func()) {
	if !ctx.IsSet("timeout") {
		return context.WithTimeout(context.Background(), DefaultAwaitableTimeout)
	}
	return GetTimeoutContext(ctx)
}

// GetRPCClient returns an RPC client instance for the given Context.
func GetRPCClient(gctx context.Context, ctx *cli.Context) (*rpcclient.Client, cli.ExitCoder) {
	endpoint := ctx.String(RPCEndpointFlag)
	if len(endpoint) == 0 {
		return nil, cli.NewExitError(errNoEndpoint, 1)
	}
	c, err := rpcclient.New(gctx, endpoint, rpcclient.Options{})
	if err != nil {
		return nil, cli.NewExitError(err, 1)
	}
	err = c.Init()
	if err != nil {
		c.Close()
		return nil, cli.NewExitError(err, 1)
	}
	return c, nil
}

// GetClient returns a node client for the given Context. It's an RPC client
// if the endpoint is specified. Otherwise a fresh in-memory development chain
// is created from the configuration and the client works with it directly.
// The returned function releases client resources.
func GetClient(gctx context.Context, ctx *cli.Context, log *zap.Logger) (Client, func(), cli.ExitCoder) {
	if len(ctx.String(RPCEndpointFlag)) != 0 {
		c, err := GetRPCClient(gctx, ctx)
		if err != nil {
			return nil, nil, err
		}
		return c, c.Close, nil
	}
	cfg, err := GetConfigFromContext(ctx)
	if err != nil {
		return nil, nil, cli.NewExitError(err, 1)
	}
	bc, err := NewLocalChain(cfg, log)
	if err != nil {
		return nil, nil, cli.NewExitError(err, 1)
	}
	return local.New(gctx, bc), bc.Close, nil
}

// NewLocalChain creates and starts a development chain with in-memory
// storage using the given configuration.
func NewLocalChain(cfg config.Config, log *zap.Logger) (*core.Blockchain, error) {
	bc, err := core.NewBlockchain(storage.NewMemoryStore(), cfg.Blockchain(), contracts.NewDefault(), log)
	if err != nil {
		return nil, fmt.Errorf("could not initialize blockchain: %w", err)
	}
	go bc.Run()
	return bc, nil
}

// GetSigner returns the signing account chosen by the Signer flags. Keystore
// password is requested from the user.
func GetSigner(ctx *cli.Context, c actor.RPCVersion) (*wallet.Account, error) {
	if path := ctx.String("keystore"); path != "" {
		pass, err := input.ReadPassword(ctx.App.Writer, "Enter keystore password > ")
		if err != nil {
			return nil, fmt.Errorf("error reading password: %w", err)
		}
		return wallet.NewAccountFromKeystore(path, pass)
	}
	accs, err := actor.Signers(c)
	if err != nil {
		return nil, fmt.Errorf("failed to get signers: %w", err)
	}
	i := ctx.Int("account")
	if i < 0 || i >= len(accs) {
		return nil, fmt.Errorf("account index %d is out of range [0, %d)", i, len(accs))
	}
	return accs[i], nil
}

// GetActor combines GetSigner with actor creation.
func GetActor(ctx *cli.Context, c Client) (*actor.Actor, cli.ExitCoder) {
	acc, err := GetSigner(ctx, c)
	if err != nil {
		return nil, cli.NewExitError(err, 1)
	}
	a, err := actor.New(c, acc)
	if err != nil {
		return nil, cli.NewExitError(fmt.Errorf("failed to create Actor: %w", err), 1)
	}
	return a, nil
}

// GetConfigFromContext looks at the path and the mode flags in the given config and
// returns an appropriate config.
func GetConfigFromContext(ctx *cli.Context) (config.Config, error) {
	var (
		configFile   = ctx.String("config-file")
		relativePath = ctx.String("relative-path")
	)
	if len(configFile) != 0 {
		return config.LoadFile(configFile, relativePath)
	}
	var configPath = config.DefaultConfigPath
	if argCp := ctx.String("config-path"); argCp != "" {
		configPath = argCp
	}
	return config.Load(configPath, GetNetwork(ctx), relativePath)
}

// GetChainLogger returns a logger for the in-process chain created by
// GetClient. It's quiet unless debug output is requested.
func GetChainLogger(ctx *cli.Context) (*zap.Logger, func(), error) {
	if !ctx.Bool("debug") || len(ctx.String(RPCEndpointFlag)) != 0 {
		return zap.NewNop(), func() {}, nil
	}
	cfg, err := GetConfigFromContext(ctx)
	if err != nil {
		return nil, nil, err
	}
	log, _, closer, err := HandleLoggingParams(true, cfg.ApplicationConfiguration)
	if err != nil {
		return nil, nil, err
	}
	return log, func() {
		_ = log.Sync()
		if closer != nil {
			_ = closer()
		}
	}, nil
}

// HandleLoggingParams reads logging parameters.
// If a user selected debug level -- function enables it.
// If logPath is configured -- function creates a dir and a rotated file for
// logging, the returned closer closes it.
func HandleLoggingParams(debug bool, cfg config.ApplicationConfiguration) (*zap.Logger, *zap.AtomicLevel, func() error, error) {
	var (
		level = zapcore.InfoLevel
		err   error
	)
	if len(cfg.LogLevel) > 0 {
		level, err = zapcore.ParseLevel(cfg.LogLevel)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("log setting: %w", err)
		}
	}
	if debug {
		level = zapcore.DebugLevel
	}

	cc := zap.NewProductionConfig()
	cc.DisableCaller = true
	cc.DisableStacktrace = true
	cc.EncoderConfig.EncodeDuration = zapcore.StringDurationEncoder
	cc.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	cc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cc.Encoding = "console"
	if cfg.LogEncoding != "" {
		cc.Encoding = cfg.LogEncoding
	}
	cc.Level = zap.NewAtomicLevelAt(level)
	cc.Sampling = nil

	logPath := cfg.LogPath
	if logPath == "" {
		log, err := cc.Build()
		return log, &cc.Level, nil, err
	}

	if err := io.MakeDirForFile(logPath, "logger"); err != nil {
		return nil, nil, nil, err
	}
	rw := &lumberjack.Logger{
		Filename:   logPath,
		MaxSize:    cfg.LogRotation.MaxSize, // megabytes
		MaxAge:     cfg.LogRotation.MaxAge,  // days
		MaxBackups: cfg.LogRotation.MaxBackups,
		Compress:   cfg.LogRotation.Compress,
	}
	var enc zapcore.Encoder
	if cc.Encoding == "json" {
		enc = zapcore.NewJSONEncoder(cc.EncoderConfig)
	} else {
		enc = zapcore.NewConsoleEncoder(cc.EncoderConfig)
	}
	log := zap.New(zapcore.NewCore(enc, zapcore.AddSync(rw), cc.Level))
	return log, &cc.Level, rw.Close, nil
}
