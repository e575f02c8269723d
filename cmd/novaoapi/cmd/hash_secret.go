package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dwnilii/novao/cmd/novaoapi/internal/auth"
)

var hashSecretCmd = &cobra.Command{
	Use:   "hash-secret",
	Short: "Print the bcrypt hash of a secret read from stdin",
	Long: `Reads one line from stdin and prints its bcrypt hash, suitable for
NOVAO_ADMIN_PASSWORD_HASH or NOVAO_ADMIN_PIN_HASH.`,
	// No configuration is needed to hash a value.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		scanner := bufio.NewScanner(os.Stdin)
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return fmt.Errorf("failed to read secret: %w", err)
			}
			return fmt.Errorf("no secret on stdin")
		}
		secret := strings.TrimRight(scanner.Text(), "\r")
		if secret == "" {
			return fmt.Errorf("secret must not be empty")
		}

		hash, err := auth.HashSecret(secret)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), hash)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(hashSecretCmd)
}
