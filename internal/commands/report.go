package commands

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"budgetbook/internal/core"
	"budgetbook/internal/services"
)

func newReportCommand(g *globals) *cobra.Command {
	var owner, from, to, kind string
	var rootCategory, accountID int64
	var horizon int

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print monthly totals and the category matrix for a date range",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req := services.ReportRequest{RootCategoryID: rootCategory, AccountID: accountID}
			var err error
			if req.From, err = core.ParseDate(from); err != nil {
				return usageError("invalid --from %q: %v", from, err)
			}
			if req.To, err = core.ParseDate(to); err != nil {
				return usageError("invalid --to %q: %v", to, err)
			}
			if kind != "" {
				if req.Kind, err = core.ParseKind(kind); err != nil {
					return usageError("invalid --kind: %v", err)
				}
			}
			if cmd.Flags().Changed("horizon") {
				req.HorizonMonths = &horizon
			}

			cfg, repo, err := g.open(cmd)
			if err != nil {
				return err
			}
			defer repo.Close()

			reports := services.NewReportService(repo,
				services.NewProjector(cfg.MaxIterationsPerSpec, cfg.HorizonMaxMonths),
				g.clk, cfg.HorizonDefaultMonths, cfg.HorizonMaxMonths)
			rep, err := reports.Report(cmd.Context(), core.OwnerID(owner), req)
			if err != nil {
				return err
			}
			return printReport(cmd.OutOrStdout(), rep)
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "owner id (required)")
	cmd.Flags().StringVar(&from, "from", "", "first day, YYYY-MM-DD (required)")
	cmd.Flags().StringVar(&to, "to", "", "last day, YYYY-MM-DD (required)")
	cmd.Flags().StringVar(&kind, "kind", "", "income or expense")
	cmd.Flags().Int64Var(&rootCategory, "root", 0, "root category to break down by description")
	cmd.Flags().Int64Var(&accountID, "account", 0, "restrict to one account")
	cmd.Flags().IntVar(&horizon, "horizon", 0, "months of projections to include")
	_ = cmd.MarkFlagRequired("owner")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")

	return cmd
}

func printReport(w io.Writer, rep core.Report) error {
	fmt.Fprintf(w, "Report %s .. %s (horizon %d months)\n\n", rep.From, rep.To, rep.HorizonMonths)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "MONTH\tINCOME\tEXPENSE\tNET\t")
	for _, m := range rep.Monthly {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t\n", m.Month, m.Income, m.Expense, core.FormatCents(m.Net()))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if err := printMatrix(w, "By category", rep.ByCategory); err != nil {
		return err
	}
	if rep.ByDescription != nil {
		if err := printMatrix(w, "By description", *rep.ByDescription); err != nil {
			return err
		}
	}
	if rep.Truncated {
		fmt.Fprintln(w, "\nwarning: projection stopped early, totals are incomplete")
	}
	return nil
}

func printMatrix(w io.Writer, title string, m core.MonthMatrix) error {
	if len(m.Rows) == 0 {
		return nil
	}
	fmt.Fprintf(w, "\n%s\n", title)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprint(tw, "NAME")
	for _, ym := range m.Months {
		fmt.Fprintf(tw, "\t%s", ym)
	}
	fmt.Fprintln(tw, "\tTOTAL")
	for _, row := range m.Rows {
		fmt.Fprint(tw, row.Key)
		for _, c := range row.Cells {
			fmt.Fprintf(tw, "\t%s", c)
		}
		fmt.Fprintf(tw, "\t%s\n", row.Total)
	}
	return tw.Flush()
}
