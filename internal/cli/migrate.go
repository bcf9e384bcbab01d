package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bigkaa/goartstore/index-module/internal/database"
)

// NewMigrateCommand — применение всех лестниц миграций (index, alias, auth).
func NewMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Применить миграции схемы БД",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			if err := database.Migrate(cfg, logger); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "миграции применены")
			return nil
		},
	}
}
