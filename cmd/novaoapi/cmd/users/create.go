package users

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dwnilii/novao/cmd/novaoapi/internal/auth"
	"github.com/dwnilii/novao/cmd/novaoapi/internal/db/bunx"
	"github.com/dwnilii/novao/cmd/novaoapi/internal/db/models"
	"github.com/dwnilii/novao/cmd/novaoapi/internal/repository"
)

var (
	nameFlag         string
	passwordFlag     string
	stdinFlag        bool
	uuidFlag         string
	planFlag         string
	totalFlag        int64
	expiryFlag       string
	subscriptionFlag string
	subLinkFlag      string
	configFlag       string
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a portal user",
	RunE: func(cmd *cobra.Command, args []string) error {
		if nameFlag == "" {
			return fmt.Errorf("--name flag is required")
		}

		password, err := readPassword(cmd.InOrStdin(), cmd.OutOrStdout(), passwordFlag, stdinFlag)
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

		user := &models.User{
			Name:         nameFlag,
			UUID:         uuidFlag,
			PasswordHash: hash,
			Subscription: subscriptionFlag,
			Total:        totalFlag,
			Config:       configFlag,
			SubLink:      subLinkFlag,
			ExpiryDate:   expiryFlag,
			PlanTitle:    planFlag,
		}
		if err := users.Create(cmd.Context(), user); err != nil {
			if errors.Is(err, repository.ErrUserExists) {
				return fmt.Errorf("user %q already exists", nameFlag)
			}
			return fmt.Errorf("failed to create user: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "User created successfully!")
		fmt.Fprintln(out, "----------------------------------------")
		fmt.Fprintf(out, "User ID: %s\n", user.ID)
		fmt.Fprintf(out, "Name: %s\n", user.Name)
		fmt.Fprintf(out, "Client UUID: %s\n", user.UUID)
		fmt.Fprintf(out, "Registered: %s\n", user.Registered)
		fmt.Fprintln(out, "----------------------------------------")
		return nil
	},
}

func init() {
	createCmd.Flags().StringVar(&nameFlag, "name", "", "Login name of the user")
	createCmd.Flags().StringVar(&passwordFlag, "password", "", "Password for the user (use --stdin to avoid shell history)")
	createCmd.Flags().BoolVar(&stdinFlag, "stdin", false, "Read password from stdin instead of --password flag")
	createCmd.Flags().StringVar(&uuidFlag, "uuid", "", "Panel client UUID (generated when empty)")
	createCmd.Flags().StringVar(&planFlag, "plan", "", "Plan title shown in the portal")
	createCmd.Flags().Int64Var(&totalFlag, "total", 0, "Traffic allowance in bytes")
	createCmd.Flags().StringVar(&expiryFlag, "expiry", "", "Expiry date (YYYY-MM-DD)")
	createCmd.Flags().StringVar(&subscriptionFlag, "subscription", "", "Subscription name")
	createCmd.Flags().StringVar(&subLinkFlag, "sublink", "", "Subscription link")
	createCmd.Flags().StringVar(&configFlag, "client-config", "", "Client configuration link")
}
