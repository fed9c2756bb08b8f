package cmd

import (
	"fmt"
	"os"

	"github.com/ValentinKolb/redisimp/cmd/imp"
	"github.com/spf13/cobra"
)

const (
	Version = "1.0.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "redisimp",
		Short: "import keys from redis shards",
		Long: fmt.Sprintf(`redisimp (v%s)

Copies keys from one or more redis shards into a destination server or
cluster, either overwriting existing keys or only filling in missing ones.`, Version),
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of redisimp",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("redisimp v%s\n", Version)
		},
	}
)

func init() {
	// Add Commands
	RootCmd.AddCommand(imp.ImportCmd)
	RootCmd.AddCommand(versionCmd)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
