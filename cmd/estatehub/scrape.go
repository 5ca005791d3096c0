package main

import (
	"github.com/spf13/cobra"

	"github.com/estatehub/marketplace/internal/cli"
)

func newScrapeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "scrape",
		Short: "Run every configured listing source once and import the results",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := loadConfig(opts)
			if err != nil {
				return err
			}
			svc, err := bootstrap(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer svc.close()

			run, err := svc.app.Scraper.Run(cmd.Context())
			if err != nil {
				return err
			}
			cli.NewPrinter(cmd.OutOrStdout()).ScrapeRun(run)
			return nil
		},
	}
}
