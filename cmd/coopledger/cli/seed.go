package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSeedCommand(e *env) *cobra.Command {
	var tenant, actor int64
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Install the default cooperative chart of accounts for a tenant",
		RunE: func(cmd *cobra.Command, args []string) error {
			ledger, err := e.open(cmd.Context())
			if err != nil {
				return err
			}
			defer ledger.Close(e.logger)

			res, err := ledger.Accounts.SeedDefaults(cmd.Context(), tenant, actor)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "tenant %d: %d created, %d existing, %d linked\n",
				tenant, res.Created, res.Existing, res.Linked)
			return nil
		},
	}
	cmd.Flags().Int64Var(&tenant, "tenant", 0, "Tenant id")
	cmd.Flags().Int64Var(&actor, "actor", 0, "Actor recorded in the audit log")
	_ = cmd.MarkFlagRequired("tenant")
	return cmd
}
