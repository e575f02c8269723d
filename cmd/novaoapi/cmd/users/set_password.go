package users

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dwnilii/novao/cmd/novaoapi/internal/auth"
	"github.com/dwnilii/novao/cmd/novaoapi/internal/db/bunx"
	"github.com/dwnilii/novao/cmd/novaoapi/internal/repository"
)

var (
	setPasswordValue string
	setPasswordStdin bool
)

var setPasswordCmd = &cobra.Command{
	Use:   "set-password <name>",
	Short: "Replace a portal user's password",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		password, err := readPassword(cmd.InOrStdin(), cmd.OutOrStdout(), setPasswordValue, setPasswordStdin)
		if err != nil {
			return err
		}
		hash, err := auth.HashSecret(password)
		if err != nil {
			return err
		}

		users, db, err := openUserRepository()
		if err != nil {
			return err
		}
		defer bunx.Close(db)

		user, err := users.GetByName(cmd.Context(), args[0])
		if err != nil {
			if errors.Is(err, repository.ErrUserNotFound) {
				return fmt.Errorf("user %q not found", args[0])
			}
			return fmt.Errorf("failed to load user: %w", err)
		}
		if err := users.UpdatePasswordHash(cmd.Context(), user.ID, hash); err != nil {
			return fmt.Errorf("failed to update password: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Password updated for %s\n", user.Name)
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a portal user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		users, db, err := openUserRepository()
		if err != nil {
			return err
		}
		defer bunx.Close(db)

		user, err := users.GetByName(cmd.Context(), args[0])
		if err != nil {
			if errors.Is(err, repository.ErrUserNotFound) {
				return fmt.Errorf("user %q not found", args[0])
			}
			return fmt.Errorf("failed to load user: %w", err)
		}
		if err := users.Delete(cmd.Context(), user.ID); err != nil {
			return fmt.Errorf("failed to delete user: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", user.Name)
		return nil
	},
}

func init() {
	setPasswordCmd.Flags().StringVar(&setPasswordValue, "password", "", "New password (use --stdin to avoid shell history)")
	setPasswordCmd.Flags().BoolVar(&setPasswordStdin, "stdin", false, "Read password from stdin instead of --password flag")
}
