package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"budgetbook/internal/core"
	"budgetbook/internal/services"
)

func newProjectCommand(g *globals) *cobra.Command {
	var owner string
	var specID int64
	var until string

	cmd := &cobra.Command{
		Use:   "project",
		Short: "List the future occurrences of a recurrence spec without persisting them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var untilDate core.Date
			if until != "" {
				d, err := core.ParseDate(until)
				if err != nil {
					return usageError("invalid --until %q: %v", until, err)
				}
				untilDate = d
			}

			cfg, repo, err := g.open(cmd)
			if err != nil {
				return err
			}
			defer repo.Close()

			specs := services.NewSpecService(repo,
				services.NewProjector(cfg.MaxIterationsPerSpec, cfg.HorizonMaxMonths),
				g.clk, nil, cfg.HorizonDefaultMonths)
			occ, err := specs.Project(cmd.Context(), core.OwnerID(owner), specID, untilDate)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "INDEX\tDATE\tDESCRIPTION\tKIND\tAMOUNT")
			for _, o := range occ {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", o.Index, o.Date, o.Description, o.Kind, o.Amount)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "owner id (required)")
	cmd.Flags().Int64Var(&specID, "spec", 0, "spec id (required)")
	cmd.Flags().StringVar(&until, "until", "", "last day to project, YYYY-MM-DD (default: the configured horizon)")
	_ = cmd.MarkFlagRequired("owner")
	_ = cmd.MarkFlagRequired("spec")

	return cmd
}
