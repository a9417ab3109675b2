package main

import (
	"fmt"
	"os"

	cli "github.com/spf13/pflag"

	"iveri/internal/ipc"
)

func main() {
	socket := cli.StringP("socket", "s", ipc.DefaultSocketPath, "Control socket of the running assistant")
	cli.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: iveri-ctl [--socket path] [trigger|ping]\n")
		cli.PrintDefaults()
	}
	cli.Parse()

	cmd := ipc.CmdTrigger
	if cli.NArg() > 0 {
		cmd = cli.Arg(0)
	}

	if err := ipc.SendCommand(*socket, cmd, cli.Args()[min(1, cli.NArg()):]...); err != nil {
		fmt.Fprintln(os.Stderr, "iveri not running:", err)
		os.Exit(1)
	}
}
