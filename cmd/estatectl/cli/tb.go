package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/odyssey-erp/estate-ledger/internal/accounting/reports"
	"github.com/odyssey-erp/estate-ledger/internal/accounting/statements"
)

func newTrialBalanceCommand(open Opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tb",
		Short: "Trial balance tooling",
	}

	var (
		asOf      string
		basis     string
		residence string
		asJSON    bool
	)
	printCmd := &cobra.Command{
		Use:   "print",
		Short: "Print the trial balance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			parsedBasis, err := reports.ParseBasis(basis)
			if err != nil {
				return err
			}
			date, err := reports.ParseDate("as-of", asOf, time.Now().UTC())
			if err != nil {
				return err
			}
			return withEnv(cmd, open, func(ctx context.Context, env *Env) error {
				if env.Balances == nil {
					return errors.New("estatectl: ledger not available")
				}
				tb, err := env.Balances.TrialBalance(ctx, statements.Query{Basis: parsedBasis, AsOf: date, ResidenceID: residence})
				if err != nil {
					return err
				}
				if asJSON {
					enc := json.NewEncoder(cmd.OutOrStdout())
					enc.SetIndent("", "  ")
					return enc.Encode(tb)
				}
				return writeTrialBalance(cmd, tb)
			})
		},
	}
	printCmd.Flags().StringVar(&asOf, "as-of", "", "cut-off date (YYYY-MM-DD), defaults to today")
	printCmd.Flags().StringVar(&basis, "basis", string(reports.BasisAccrual), "accrual or cash")
	printCmd.Flags().StringVar(&residence, "residence", "", "limit to one residence")
	printCmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")

	cmd.AddCommand(printCmd)
	return cmd
}

func writeTrialBalance(cmd *cobra.Command, tb reports.TrialBalance) error {
	fmt.Fprintf(cmd.OutOrStdout(), "trial balance as of %s (%s)\n", tb.AsOf.Format(reports.DateLayout), tb.Basis)
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CODE\tNAME\tDEBIT\tCREDIT\tBALANCE\t")
	for _, group := range tb.Groups {
		for _, row := range group.Rows {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t\n", row.Code, row.Name,
				row.Debit.StringFixed(2), row.Credit.StringFixed(2), row.Balance.StringFixed(2))
		}
	}
	fmt.Fprintf(tw, "\tTOTAL\t%s\t%s\t\t\n", tb.TotalDebit.StringFixed(2), tb.TotalCredit.StringFixed(2))
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "balanced: %t\n", tb.Balanced)
	return nil
}
