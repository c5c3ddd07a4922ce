package cli

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/SscSPs/geexpress_backend/internal/core/domain"
)

// DebtsCmd returns the debts command
func DebtsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "debts",
		Short: "Audit courier debt balances",
	}
	cmd.AddCommand(debtsReconcileCmd())
	return cmd
}

func debtsReconcileCmd() *cobra.Command {
	var fix bool

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Compare stored debt balances with the sum of pending debts",
		Long: `Recompute every courier's debt balance from their pending debt records and
report the couriers whose stored balance differs. With --fix the stored
balances are rewritten to the computed value.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := openBackend(cmd.Context())
			if err != nil {
				return err
			}
			defer b.close()

			drifts, err := b.services.Debt.ReconcileDebtBalances(cmd.Context(), fix)
			printDrifts(cmd.OutOrStdout(), drifts, fix)
			return err
		},
	}
	cmd.Flags().BoolVar(&fix, "fix", false, "rewrite drifting balances")
	return cmd
}

func printDrifts(w io.Writer, drifts []domain.DebtDrift, fixed bool) {
	if len(drifts) == 0 {
		fmt.Fprintf(w, "%s all debt balances match pending debts\n", color.New(color.FgGreen).Sprint("✓"))
		return
	}

	label := color.New(color.FgYellow).Sprint("DRIFT")
	if fixed {
		label = color.New(color.FgGreen).Sprint("FIXED")
	}
	for _, d := range drifts {
		fmt.Fprintf(w, "  %s %s (%s): stored %s, pending %s\n",
			label, d.DriverName, d.DriverID, d.Stored.StringFixed(0), d.Computed.StringFixed(0))
	}
	fmt.Fprintf(w, "%d courier(s) out of balance\n", len(drifts))
}
