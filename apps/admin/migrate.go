package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/RouahImad/Project-epg-sub000/storage/database"
)

var runMigrationsFunc = database.RunMigrations // mockable

func (cli *commandLine) migrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate COMMAND [ARGS]",
		Short: "Run database migrations",
		Long: `Run a database migration command:
  up             migrate to the most recent version
  up-by-one      migrate up by a single version
  up-to VERSION  migrate up to VERSION
  down           roll back by a single version
  down-to VERSION roll back to VERSION
  redo           re-run the latest migration
  reset          roll back all migrations
  status         print the status of all migrations
  version        print the current version`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := runMigrationsFunc(cli.db, args[0], args[1:]...); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "migrate %s: done\n", args[0])
			return nil
		},
	}
}
