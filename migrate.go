package main

import (
	"errors"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"autoapply/database"
)

var migrateDescribe bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the submission history tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !appConfig.Database.Enabled() {
			return errors.New("DB_NAME is not set")
		}
		db, err := database.Connect(appConfig.Database)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := database.Migrate(cmd.Context(), db); err != nil {
			return err
		}
		logger.Info("database ready", zap.String("db", appConfig.Database.DBName))

		if !migrateDescribe {
			return nil
		}
		cols, err := database.DescribeTable(cmd.Context(), db, "submissions")
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), cols)
	},
}

func init() {
	migrateCmd.Flags().BoolVar(&migrateDescribe, "describe", false, "print the submissions table columns after migrating")
}
