package main

import (
	"github.com/spf13/cobra"

	"github.com/estatehub/marketplace/internal/app/storage/postgres"
	"github.com/estatehub/marketplace/internal/cli"
)

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back the database schema",
	}
	for _, direction := range []postgres.Direction{postgres.Up, postgres.Down} {
		direction := direction
		cmd.AddCommand(&cobra.Command{
			Use:   string(direction),
			Short: "Migrate the schema " + string(direction),
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return migrate(cmd, opts, direction)
			},
		})
	}
	return cmd
}

func migrate(cmd *cobra.Command, opts *rootOptions, direction postgres.Direction) error {
	cfg, _, err := loadConfig(opts)
	if err != nil {
		return err
	}
	db, err := openDatabase(cmd.Context(), cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := postgres.Migrate(db.DB, direction); err != nil {
		return err
	}
	cli.NewPrinter(cmd.OutOrStdout()).Success("schema migrated %s", direction)
	return nil
}
