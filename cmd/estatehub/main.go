// Command estatehub runs the marketplace API server and its maintenance tasks.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/estatehub/marketplace/internal/cli"
)

// Version information, set at build time.
var (
	version = "dev"
	commit  = "none"
)

type rootOptions struct {
	configPath string
	envFile    string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "estatehub",
		Short:         "EstateHub real-estate marketplace server",
		Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to the YAML configuration file")
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before the environment is read")

	root.AddCommand(
		newServeCmd(opts),
		newMigrateCmd(opts),
		newScrapeCmd(opts),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "estatehub %s (commit: %s)\n", version, commit)
		},
	}
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		cli.NewPrinter(os.Stderr).Error("%v", err)
		os.Exit(1)
	}
}
