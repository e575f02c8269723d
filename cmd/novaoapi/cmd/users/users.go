package users

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/uptrace/bun"

	"github.com/dwnilii/novao/cmd/novaoapi/internal/config"
	"github.com/dwnilii/novao/cmd/novaoapi/internal/db/bunx"
	"github.com/dwnilii/novao/cmd/novaoapi/internal/repository"
)

// UsersCmd is the parent command for portal user management
var UsersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage portal users",
	Long:  `Commands for managing portal users directly against the database.`,
}

func init() {
	UsersCmd.AddCommand(createCmd)
	UsersCmd.AddCommand(listCmd)
	UsersCmd.AddCommand(setPasswordCmd)
	UsersCmd.AddCommand(deleteCmd)
}

// openUserRepository loads configuration and connects to the portal database.
// The caller closes the returned DB.
func openUserRepository() (*repository.BunUserRepository, *bun.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	db, err := bunx.NewDB(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return repository.NewBunUserRepository(db), db, nil
}

// readPassword returns flagValue, or the first line of in when fromStdin is set.
func readPassword(in io.Reader, out io.Writer, flagValue string, fromStdin bool) (string, error) {
	password := flagValue
	if fromStdin {
		scanner := bufio.NewScanner(in)
		fmt.Fprint(out, "Enter password: ")
		if scanner.Scan() {
			password = strings.TrimRight(scanner.Text(), "\r")
		}
		if err := scanner.Err(); err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
	}
	if password == "" {
		return "", fmt.Errorf("password is required (use --password or --stdin)")
	}
	return password, nil
}
