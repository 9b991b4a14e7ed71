package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/odyssey-erp/coopledger/internal/platform/db"
)

func newMigrateCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the PostgreSQL schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			ledger, err := e.open(cmd.Context())
			if err != nil {
				return err
			}
			defer ledger.Close(e.logger)

			applied, err := db.Migrate(cmd.Context(), ledger.Pool)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "applied %d migration(s), schema at v%d\n", applied, db.LatestVersion())
			return nil
		},
	}
}
