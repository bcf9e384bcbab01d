package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bigkaa/goartstore/index-module/internal/auth"
	"github.com/bigkaa/goartstore/index-module/internal/database"
	"github.com/bigkaa/goartstore/index-module/internal/repository"
)

// NewUserCommand — управление учётными записями Basic.
func NewUserCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Учётные записи Basic-аутентификации",
	}
	cmd.AddCommand(newUserAddCommand(), newUserRemoveCommand())
	return cmd
}

// withUsers открывает пул и передаёт репозиторий пользователей в fn.
func withUsers(cmd *cobra.Command, fn func(users repository.AuthRepository) error) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	pool, err := database.Connect(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer pool.Close()
	return fn(repository.NewAuthRepositoryFromPool(pool))
}

func newUserAddCommand() *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "add <username>",
		Short: "Создать пользователя или сменить пароль",
		Args:  cobra.ExactArgs(1),
		PreRunE: func(*cobra.Command, []string) error {
			if password == "" {
				return fmt.Errorf("--password обязателен")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return withUsers(cmd, func(users repository.AuthRepository) error {
				if err := users.Upsert(cmd.Context(), args[0], auth.HashPassword(password)); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "пользователь %s сохранён\n", args[0])
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&password, "password", "", "пароль")
	return cmd
}

func newUserRemoveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <username>",
		Short: "Удалить пользователя",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withUsers(cmd, func(users repository.AuthRepository) error {
				if err := users.Delete(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "пользователь %s удалён\n", args[0])
				return nil
			})
		},
	}
}
