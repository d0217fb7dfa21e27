package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"budgetbook/internal/clock"
	"budgetbook/internal/core"
	"budgetbook/internal/services"
)

func newMaterializeCommand(g *globals) *cobra.Command {
	var date string
	var owner string
	var specID int64

	cmd := &cobra.Command{
		Use:   "materialize",
		Short: "Persist every recurring occurrence due up to a date",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			today := clock.Today(g.clk)
			if date != "" {
				d, err := core.ParseDate(date)
				if err != nil {
					return usageError("invalid --date %q: %v", date, err)
				}
				today = d
			}
			if specID != 0 && owner == "" {
				return usageError("--spec requires --owner")
			}

			cfg, repo, err := g.open(cmd)
			if err != nil {
				return err
			}
			defer repo.Close()

			proc := services.NewRecurringProcessor(repo,
				services.NewProjector(cfg.MaxIterationsPerSpec, cfg.HorizonMaxMonths), nil)
			out := cmd.OutOrStdout()

			if specID != 0 {
				res, err := proc.MaterializeSpec(cmd.Context(), core.OwnerID(owner), specID, today)
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "DATE\tINDEX\tDESCRIPTION\tAMOUNT")
				for _, e := range res.Emitted {
					fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", e.Date, e.OccurrenceIndex, e.Description,
						core.FormatCents(e.Amount.Signed(e.Kind)))
				}
				if err := tw.Flush(); err != nil {
					return err
				}
				fmt.Fprintf(out, "spec %d: emitted %d, finalized %t\n", res.SpecID, len(res.Emitted), res.Finalized)
				return nil
			}

			sum, err := proc.MaterializeAll(cmd.Context(), today)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "as of %s: specs %d, emitted %d, finalized %d, failed %d\n",
				today, sum.Specs, sum.Emitted, sum.Finalized, sum.Failed)
			if sum.Failed > 0 {
				return fmt.Errorf("%d specs failed to materialize", sum.Failed)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "materialize as of this day, YYYY-MM-DD (default today)")
	cmd.Flags().StringVar(&owner, "owner", "", "owner id, required with --spec")
	cmd.Flags().Int64Var(&specID, "spec", 0, "materialize a single spec")

	return cmd
}
