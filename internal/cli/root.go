// Пакет cli — офлайн-утилита обслуживания Index Module (index-tool).
// Команды работают с той же конфигурацией IM_*, что и сервис.
package cli

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/bigkaa/goartstore/index-module/internal/config"
)

// loadConfig загружает конфигурацию и настраивает логирование.
// Переопределяется в тестах.
var loadConfig = func() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	return cfg, config.SetupLogger(cfg), nil
}

// NewRootCommand создаёт корневую команду index-tool.
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "index-tool",
		Short:         "Обслуживание Index Module",
		Long:          "Миграции схемы, перенос записей между раскладками индекса, учётные записи Basic и выпуск GUID.",
		Version:       config.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(NewMigrateCommand())
	cmd.AddCommand(NewCopyLayoutCommand())
	cmd.AddCommand(NewUserCommand())
	cmd.AddCommand(NewMintCommand())

	return cmd
}
