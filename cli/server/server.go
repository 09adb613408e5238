package server

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"slices"

	"github.com/nspcc-dev/pesto-go/cli/cmdargs"
	"github.com/nspcc-dev/pesto-go/cli/options"
	"github.com/nspcc-dev/pesto-go/pkg/config"
	"github.com/nspcc-dev/pesto-go/pkg/contracts"
	"github.com/nspcc-dev/pesto-go/pkg/core"
	"github.com/nspcc-dev/pesto-go/pkg/core/storage"
	"github.com/nspcc-dev/pesto-go/pkg/services/metrics"
	"github.com/nspcc-dev/pesto-go/pkg/services/rpcsrv"
	"github.com/urfave/cli"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"
)

var errNilLogger = errors.New("nil logger")

// NewCommands returns 'node' and 'db' commands.
func NewCommands() []cli.Command {
	cfgFlags := slices.Concat([]cli.Flag{
		options.Config,
		options.ConfigFile,
		options.RelativePath,
		options.Debug,
	}, options.Network)
	dumpFlags := slices.Concat(cfgFlags, []cli.Flag{
		cli.UintFlag{
			Name:  "start, s",
			Usage: "block number to start from",
		},
		cli.UintFlag{
			Name:  "count, c",
			Usage: "number of blocks to dump (all blocks starting from --start by default)",
		},
		cli.StringFlag{
			Name:  "out, o",
			Usage: "output file (stdout if not given)",
		},
		cli.BoolFlag{
			Name:  "compress",
			Usage: "compress the dump with LZ4",
		},
	})
	restoreFlags := slices.Concat(cfgFlags, []cli.Flag{
		cli.UintFlag{
			Name:  "count, c",
			Usage: "number of blocks to restore (all dumped blocks by default)",
		},
		cli.StringFlag{
			Name:  "in, i",
			Usage: "input file (stdin if not given)",
		},
	})
	return []cli.Command{
		{
			Name:      "node",
			Usage:     "start a Pesto development node",
			UsageText: "pesto-go node [--config-path path] [-d] [--devnet | --unittest] [--config-file file]",
			Description: `Runs the development chain with JSON-RPC and monitoring services enabled
   in the configuration. SIGINT and SIGTERM stop the node gracefully, SIGHUP
   rereads the configuration file and applies its log level.`,
			Action: startServer,
			Flags:  cfgFlags,
		},
		{
			Name:  "db",
			Usage: "database manipulations",
			Subcommands: []cli.Command{
				{
					Name:      "dump",
					Usage:     "dump blocks to the file",
					UsageText: "pesto-go db dump [-o file] [-s start] [-c count] [--compress] [--config-path path] [--devnet | --unittest] [--config-file file]",
					Action:    dumpDB,
					Flags:     dumpFlags,
				},
				{
					Name:      "restore",
					Usage:     "restore blocks from the file",
					UsageText: "pesto-go db restore [-i file] [-c count] [--config-path path] [--devnet | --unittest] [--config-file file]",
					Description: `Replays dumped blocks into the chain from the configured database. Blocks
   the chain already has are skipped, compressed dumps are detected
   automatically.`,
					Action: restoreDB,
					Flags:  restoreFlags,
				},
			},
		},
	}
}

// initBlockChain opens the configured storage and creates a chain on top of
// it. The chain loop is not started.
func initBlockChain(cfg config.Config, log *zap.Logger) (*core.Blockchain, error) {
	if log == nil {
		return nil, errNilLogger
	}
	store, err := storage.NewStore(cfg.ApplicationConfiguration.DBConfiguration)
	if err != nil {
		return nil, fmt.Errorf("could not initialize storage: %w", err)
	}
	chain, err := core.NewBlockchain(store, cfg.Blockchain(), contracts.NewDefault(), log)
	if err != nil {
		errText := "could not initialize blockchain: %w"
		if errCloser := store.Close(); errCloser != nil {
			errText += fmt.Sprintf("; failed to close the DB: %s", errCloser)
		}
		return nil, fmt.Errorf(errText, err)
	}
	return chain, nil
}

// node is a running chain along with services exposing it.
type node struct {
	chain      *core.Blockchain
	rpc        *rpcsrv.Server
	prometheus *metrics.Service
	pprof      *metrics.Service
	errChan    chan error
	log        *zap.Logger
}

// newNode creates the chain and services for the given configuration.
func newNode(cfg config.Config, log *zap.Logger) (*node, error) {
	chain, err := initBlockChain(cfg, log)
	if err != nil {
		return nil, err
	}
	errChan := make(chan error, 2)
	return &node{
		chain:      chain,
		rpc:        rpcsrv.New(chain, cfg.ApplicationConfiguration.RPC, cfg.GenerateUserAgent(), log, errChan),
		prometheus: metrics.NewPrometheusService(cfg.ApplicationConfiguration.Prometheus, log),
		pprof:      metrics.NewPprofService(cfg.ApplicationConfiguration.Pprof, log),
		errChan:    errChan,
		log:        log,
	}, nil
}

// start runs the chain loop and services. Already started services are
// stopped if any of them fails.
func (n *node) start() error {
	if err := n.prometheus.Start(); err != nil {
		n.shutdown()
		return fmt.Errorf("failed to start Prometheus service: %w", err)
	}
	if err := n.pprof.Start(); err != nil {
		n.shutdown()
		return fmt.Errorf("failed to start Pprof service: %w", err)
	}
	go n.chain.Run()
	n.rpc.Start()
	n.log.Info("node started", zap.Uint32("height", n.chain.BlockHeight()),
		zap.Strings("rpc", n.rpc.Addresses()))
	return nil
}

func (n *node) shutdown() {
	n.rpc.Shutdown()
	n.prometheus.ShutDown()
	n.pprof.ShutDown()
	n.chain.Close()
}

// run serves until ctx is done or any service fails, then stops everything.
// Every value received from hup triggers reload.
func (n *node) run(ctx context.Context, hup <-chan os.Signal, reload func() error) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		select {
		case err := <-n.errChan:
			return fmt.Errorf("node service failed: %w", err)
		case <-gctx.Done():
			return nil
		}
	})
	g.Go(func() error {
		for {
			select {
			case sig := <-hup:
				n.log.Info("signal received", zap.Stringer("name", sig))
				if err := reload(); err != nil {
					n.log.Warn("failed to reload configuration", zap.Error(err))
				}
			case <-gctx.Done():
				return nil
			}
		}
	})
	g.Go(func() error {
		<-gctx.Done()
		n.log.Info("shutting down the node")
		n.shutdown()
		return nil
	})
	return g.Wait()
}

// logLevelReloader returns a function rereading the log level from the
// configuration into level. The debug flag always wins.
func logLevelReloader(ctx *cli.Context, level *zap.AtomicLevel, log *zap.Logger) func() error {
	return func() error {
		cfg, err := options.GetConfigFromContext(ctx)
		if err != nil {
			return err
		}
		newLevel := zapcore.InfoLevel
		if cfg.ApplicationConfiguration.LogLevel != "" {
			newLevel, err = zapcore.ParseLevel(cfg.ApplicationConfiguration.LogLevel)
			if err != nil {
				return fmt.Errorf("log setting: %w", err)
			}
		}
		if ctx.Bool("debug") {
			newLevel = zapcore.DebugLevel
		}
		if newLevel != level.Level() {
			log.Info("changing log level", zap.Stringer("old", level.Level()), zap.Stringer("new", newLevel))
			level.SetLevel(newLevel)
		}
		return nil
	}
}

func startServer(ctx *cli.Context) error {
	if err := cmdargs.EnsureNone(ctx); err != nil {
		return err
	}
	cfg, err := options.GetConfigFromContext(ctx)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	log, level, logCloser, err := options.HandleLoggingParams(ctx.Bool("debug"), cfg.ApplicationConfiguration)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	defer func() {
		_ = log.Sync()
		if logCloser != nil {
			_ = logCloser()
		}
	}()

	grace, cancel := signal.NotifyContext(context.Background(), os.Interrupt, sigterm)
	defer cancel()
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, sighup)
	defer signal.Stop(hup)

	n, err := newNode(cfg, log)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	if err := n.start(); err != nil {
		return cli.NewExitError(err, 1)
	}
	if err := n.run(grace, hup, logLevelReloader(ctx, level, log)); err != nil {
		return cli.NewExitError(err, 1)
	}
	return nil
}
