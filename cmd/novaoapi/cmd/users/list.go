package users

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dwnilii/novao/cmd/novaoapi/internal/db/bunx"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List portal users",
	RunE: func(cmd *cobra.Command, args []string) error {
		users, db, err := openUserRepository()
		if err != nil {
			return err
		}
		defer bunx.Close(db)

		list, err := users.List(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to list users: %w", err)
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tPLAN\tUSAGE\tTOTAL\tEXPIRY\tREGISTERED")
		for _, u := range list {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\t%s\n",
				u.ID,
				u.Name,
				u.PlanTitle,
				u.Usage,
				u.Total,
				u.ExpiryDate,
				u.Registered,
			)
		}
		return w.Flush()
	},
}
