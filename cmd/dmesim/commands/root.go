package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// This can be set with -ldflags "-X github.com/distworks/mutexkit/cmd/dmesim/commands.version=x.x.x"
var version = "0.0.0"

var RootCmd = &cobra.Command{
	Use:   "dmesim",
	Short: "dmesim runs a decentralized mutual-exclusion cluster in lock step",
	Long: `dmesim drives a set of dme agents over the in-memory broadcast fabric,
one logical instant at a time, and reports the grant trace, per-agent event
counters and the replica-agreement check.`,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Println(version)
	},
}

func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	RootCmd.AddCommand(versionCmd)
}
