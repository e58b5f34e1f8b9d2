package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the embedded database migrations",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadAppConfig(cfgFile)
		if err != nil {
			return err
		}
		client, err := openDatabase(cmd.Context(), cfg.Database)
		if err != nil {
			return err
		}
		defer client.Close()
		if err := client.Migrate(cmd.Context()); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s migrations applied (%s)\n", color.GreenString("ok"), cfg.Database.Driver)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
