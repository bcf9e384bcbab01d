package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bigkaa/goartstore/index-module/internal/domain/guid"
)

// NewMintCommand — выпуск GUID без обращения к БД.
func NewMintCommand() *cobra.Command {
	var (
		count  int
		prefix string
	)
	cmd := &cobra.Command{
		Use:   "mint",
		Short: "Выпустить GUID",
		Long:  "Печатает count новых GUID, по одному в строке. Количество приводится к [0, 10000].",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, g := range guid.MintGUIDs(count, prefix) {
				fmt.Fprintln(cmd.OutOrStdout(), g)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 1, "количество")
	cmd.Flags().StringVar(&prefix, "prefix", "", "префикс, добавляемый к каждому GUID")
	return cmd
}
