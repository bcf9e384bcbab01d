package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/bigkaa/goartstore/index-module/internal/config"
	"github.com/bigkaa/goartstore/index-module/internal/database"
	"github.com/bigkaa/goartstore/index-module/internal/layoutcopy"
	"github.com/bigkaa/goartstore/index-module/internal/repository"
)

type copyLayoutOptions struct {
	from       string
	to         string
	collectors int
	inserters  int
	pageSize   int
}

func (o *copyLayoutOptions) validate() error {
	for _, l := range []string{o.from, o.to} {
		if l != config.IndexDriverMulti && l != config.IndexDriverSingle {
			return fmt.Errorf("недопустимая раскладка %q: допустимые %s, %s", l, config.IndexDriverMulti, config.IndexDriverSingle)
		}
	}
	if o.from == o.to {
		return fmt.Errorf("исходная и целевая раскладки совпадают: %s", o.from)
	}
	if o.collectors < 1 || o.inserters < 1 || o.pageSize < 1 {
		return fmt.Errorf("collectors, inserters и page-size должны быть положительными")
	}
	return nil
}

// NewCopyLayoutCommand — перенос всех записей из одной раскладки индекса в другую.
func NewCopyLayoutCommand() *cobra.Command {
	opts := &copyLayoutOptions{}

	cmd := &cobra.Command{
		Use:   "copy-layout",
		Short: "Перенести записи между раскладками индекса",
		Long: `Читает все записи исходной раскладки страницами (collectors параллельных читателей)
и записывает их в целевую (inserters параллельных писателей).
Записи, уже существующие в целевой раскладке, пропускаются.`,
		Args: cobra.NoArgs,
		PreRunE: func(*cobra.Command, []string) error {
			return opts.validate()
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			// Целевая схема должна существовать до переноса
			if err := database.MigrateLadder(cfg, database.IndexLadder(opts.to), logger); err != nil {
				return err
			}

			pool, err := database.Connect(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer pool.Close()

			src, err := repository.NewIndexStore(pool, opts.from)
			if err != nil {
				return err
			}
			dst, err := repository.NewIndexStore(pool, opts.to)
			if err != nil {
				return err
			}

			res, err := layoutcopy.New(src, dst, layoutcopy.Options{
				Collectors: opts.collectors,
				Inserters:  opts.inserters,
				PageSize:   opts.pageSize,
			}, logger).Run(ctx)
			if err != nil {
				return err
			}
			logger.Info("Перенос завершён",
				slog.String("from", opts.from),
				slog.String("to", opts.to),
				slog.Int64("copied", res.Copied),
				slog.Int64("skipped", res.Skipped),
			)
			fmt.Fprintf(cmd.OutOrStdout(), "перенесено: %d, пропущено: %d\n", res.Copied, res.Skipped)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.from, "from", config.IndexDriverMulti, "исходная раскладка (multi|single)")
	cmd.Flags().StringVar(&opts.to, "to", config.IndexDriverSingle, "целевая раскладка (multi|single)")
	cmd.Flags().IntVar(&opts.collectors, "collectors", 4, "количество читателей")
	cmd.Flags().IntVar(&opts.inserters, "inserters", 4, "количество писателей")
	cmd.Flags().IntVar(&opts.pageSize, "page-size", 500, "размер страницы чтения")

	return cmd
}
