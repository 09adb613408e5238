package server

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	gio "io"
	"os"

	"github.com/nspcc-dev/pesto-go/cli/cmdargs"
	"github.com/nspcc-dev/pesto-go/cli/options"
	"github.com/nspcc-dev/pesto-go/pkg/config"
	"github.com/nspcc-dev/pesto-go/pkg/core/block"
	"github.com/nspcc-dev/pesto-go/pkg/core/chaindump"
	"github.com/nspcc-dev/pesto-go/pkg/io"
	"github.com/pierrec/lz4"
	"github.com/urfave/cli"
	"go.uber.org/zap"
)

// lz4Magic is the LZ4 frame magic number as it's stored in the stream.
var lz4Magic = []byte{0x04, 0x22, 0x4d, 0x18}

// Dump file layout: start index (uint32 LE), block count (uint32 LE) and
// then count blocks each prefixed with its size (uint32 LE). The whole
// stream may be wrapped into an LZ4 frame.

var errDumpTooHigh = errors.New("dump is too high")

// commandLogger creates a logger for db commands using the configuration
// logging settings.
func commandLogger(ctx *cli.Context, cfg config.Config) (*zap.Logger, func(), error) {
	log, _, logCloser, err := options.HandleLoggingParams(ctx.Bool("debug"), cfg.ApplicationConfiguration)
	if err != nil {
		return nil, nil, err
	}
	return log, func() {
		_ = log.Sync()
		if logCloser != nil {
			_ = logCloser()
		}
	}, nil
}

func dumpDB(ctx *cli.Context) error {
	if err := cmdargs.EnsureNone(ctx); err != nil {
		return err
	}
	cfg, err := options.GetConfigFromContext(ctx)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	log, closer, err := commandLogger(ctx, cfg)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	defer closer()

	chain, err := initBlockChain(cfg, log)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	defer chain.Close()

	var (
		start      = uint32(ctx.Uint("start"))
		count      = uint32(ctx.Uint("count"))
		chainCount = chain.BlockHeight() + 1
	)
	if start >= chainCount {
		return cli.NewExitError(fmt.Errorf("chain is not that high (%d) to start from %d", chainCount-1, start), 1)
	}
	if count == 0 {
		count = chainCount - start
	}
	if start+count > chainCount {
		return cli.NewExitError(fmt.Errorf("chain is not that high (%d) to dump %d blocks starting from %d", chainCount-1, count, start), 1)
	}

	var outStream gio.Writer = os.Stdout
	if out := ctx.String("out"); out != "" {
		f, err := os.Create(out)
		if err != nil {
			return cli.NewExitError(fmt.Errorf("can't create output file: %w", err), 1)
		}
		defer f.Close()
		outStream = f
	}
	var zw *lz4.Writer
	if ctx.Bool("compress") {
		zw = lz4.NewWriter(outStream)
		outStream = zw
	}
	bw := bufio.NewWriter(outStream)
	writer := io.NewBinWriterFromIO(bw)
	writer.WriteU32LE(start)
	writer.WriteU32LE(count)
	if err := chaindump.Dump(chain, writer, start, count); err != nil {
		return cli.NewExitError(err, 1)
	}
	if err := bw.Flush(); err != nil {
		return cli.NewExitError(fmt.Errorf("failed to write dump: %w", err), 1)
	}
	if zw != nil {
		if err := zw.Close(); err != nil {
			return cli.NewExitError(fmt.Errorf("failed to finish compression: %w", err), 1)
		}
	}
	log.Info("blocks dumped", zap.Uint32("start", start), zap.Uint32("count", count))
	return nil
}

// dumpReader wraps r into an LZ4 reader if the stream is compressed.
func dumpReader(r gio.Reader) (gio.Reader, error) {
	br := bufio.NewReader(r)
	magic, err := br.Peek(len(lz4Magic))
	if err != nil && !errors.Is(err, gio.EOF) {
		return nil, err
	}
	if bytes.Equal(magic, lz4Magic) {
		return lz4.NewReader(br), nil
	}
	return br, nil
}

func restoreDB(ctx *cli.Context) error {
	if err := cmdargs.EnsureNone(ctx); err != nil {
		return err
	}
	cfg, err := options.GetConfigFromContext(ctx)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	log, closer, err := commandLogger(ctx, cfg)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	defer closer()

	var inStream gio.Reader = os.Stdin
	if in := ctx.String("in"); in != "" {
		f, err := os.Open(in)
		if err != nil {
			return cli.NewExitError(fmt.Errorf("can't open input file: %w", err), 1)
		}
		defer f.Close()
		inStream = f
	}
	inStream, err = dumpReader(inStream)
	if err != nil {
		return cli.NewExitError(fmt.Errorf("can't read dump: %w", err), 1)
	}
	reader := io.NewBinReaderFromIO(inStream)
	start := reader.ReadU32LE()
	dumpCount := reader.ReadU32LE()
	if reader.Err != nil {
		return cli.NewExitError(fmt.Errorf("bad dump header: %w", reader.Err), 1)
	}

	chain, err := initBlockChain(cfg, log)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	defer chain.Close()

	height := chain.BlockHeight()
	if start > height+1 {
		return cli.NewExitError(fmt.Errorf("%w: chain height is %d, dump starts from %d", errDumpTooHigh, height, start), 1)
	}
	var skip uint32
	// Genesis is only checked, so it's not skipped for an empty chain.
	if start <= height && height != 0 {
		skip = height + 1 - start
	}
	count := uint32(ctx.Uint("count"))
	if count == 0 || count > dumpCount {
		count = dumpCount
	}
	if skip >= count {
		log.Info("nothing to restore", zap.Uint32("height", height))
		return nil
	}
	count -= skip

	var restored uint32
	err = chaindump.Restore(chain, reader, skip, count, func(b *block.Block) error {
		restored++
		if b.Index%1000 == 0 {
			log.Info("restoring", zap.Uint32("block", b.Index))
		}
		return nil
	})
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	log.Info("blocks restored", zap.Uint32("count", restored), zap.Uint32("height", chain.BlockHeight()))
	return nil
}
