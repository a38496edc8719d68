package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gaborage/go-netreq/internal/commands"
)

var version = "dev" // Will be set during build

func main() {
	rootCmd := &cobra.Command{
		Use:   "netreq",
		Short: "Run HTTP(S) requests across network interfaces with redirects and retries",
		Long: `netreq drives the network request processor: it selects an interface,
acquires an address, performs the exchange and follows redirects, retrying on
the same interface or moving to the next one when an attempt fails.

It also ships the fixture server the access scenarios are run against.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		commands.NewRunCommand(),
		commands.NewServeCommand(),
		commands.NewVersionCommand(version),
	)

	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, commands.ErrCasesFailed) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}
