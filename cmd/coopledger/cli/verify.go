package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/odyssey-erp/coopledger/jobs"
)

func newVerifyCommand(e *env) *cobra.Command {
	var (
		tenant  int64
		enqueue bool
	)
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Recompute and check the hash chain of one tenant, or all tenants",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if enqueue {
				client := jobs.NewClient(e.cfg.RedisOptions().AsynqOpt())
				defer client.Close()
				info, err := client.EnqueueChainVerify(cmd.Context(), tenant)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "enqueued %s (%s)\n", info.Type, info.ID)
				return nil
			}

			ledger, err := e.open(cmd.Context())
			if err != nil {
				return err
			}
			defer ledger.Close(e.logger)

			job := jobs.NewChainVerifyJob(ledger.Journal, e.logger, nil)
			result, err := job.Run(cmd.Context(), tenant)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "verified %d tenant(s), %d entries\n", result.Verified, result.Entries)
			if len(result.Violated) > 0 {
				return fmt.Errorf("hash chain violated for tenant(s) %v", result.Violated)
			}
			return nil
		},
	}
	cmd.Flags().Int64Var(&tenant, "tenant", 0, "Tenant id; zero verifies every tenant")
	cmd.Flags().BoolVar(&enqueue, "enqueue", false, "Queue the verification for the worker instead of running it here")
	return cmd
}

func newSnapshotCommand(e *env) *cobra.Command {
	var (
		tenant, period int64
		enqueue        bool
	)
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Write closing balances for a closed period, or every closed period missing one",
		RunE: func(cmd *cobra.Command, args []string) error {
			if period != 0 && tenant == 0 {
				return errors.New("--tenant is required with --period")
			}
			out := cmd.OutOrStdout()
			if enqueue {
				client := jobs.NewClient(e.cfg.RedisOptions().AsynqOpt())
				defer client.Close()
				info, err := client.EnqueuePeriodSnapshot(cmd.Context(), tenant, period)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "enqueued %s (%s)\n", info.Type, info.ID)
				return nil
			}

			ledger, err := e.open(cmd.Context())
			if err != nil {
				return err
			}
			defer ledger.Close(e.logger)

			if period == 0 {
				written, err := ledger.Reports.SnapshotMissing(cmd.Context())
				fmt.Fprintf(out, "wrote %d snapshot(s)\n", written)
				return err
			}
			snap, err := ledger.Reports.SnapshotPeriod(cmd.Context(), tenant, period)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "period %d closed at %s: %d account balance(s)\n",
				period, snap.EndDate.Format("2006-01-02"), len(snap.Balances))
			return nil
		},
	}
	cmd.Flags().Int64Var(&tenant, "tenant", 0, "Tenant id")
	cmd.Flags().Int64Var(&period, "period", 0, "Period id; zero sweeps every closed period")
	cmd.Flags().BoolVar(&enqueue, "enqueue", false, "Queue the snapshot for the worker instead of writing it here")
	return cmd
}
