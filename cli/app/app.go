package app

import (
	"fmt"
	"os"
	"runtime"

	"github.com/nspcc-dev/pesto-go/cli/console"
	"github.com/nspcc-dev/pesto-go/cli/server"
	"github.com/nspcc-dev/pesto-go/cli/smartcontract"
	"github.com/nspcc-dev/pesto-go/pkg/config"
	"github.com/urfave/cli"
)

func versionPrinter(c *cli.Context) {
	_, _ = fmt.Fprintf(c.App.Writer, "PestoGo\nVersion: %s\nGoVersion: %s\n",
		config.Version,
		runtime.Version(),
	)
}

// New creates a PestoGo instance of [cli.App] with all commands included.
func New() *cli.App {
	cli.VersionPrinter = versionPrinter
	ctl := cli.NewApp()
	ctl.Name = "pesto-go"
	ctl.Version = config.Version
	ctl.Usage = "Pesto contracts development node and deployment tool"
	ctl.ErrWriter = os.Stdout

	ctl.Commands = append(ctl.Commands, server.NewCommands()...)
	ctl.Commands = append(ctl.Commands, smartcontract.NewCommands()...)
	ctl.Commands = append(ctl.Commands, console.NewCommands()...)
	return ctl
}
