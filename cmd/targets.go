// File: cmd/targets.go
package cmd

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/chromehand/internal/driver"
)

func newTargetsCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "targets",
		Short: "Spawn (or reuse) the browser and list its debug targets.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m := opts.newManager()
			defer m.Quit()

			targets, err := driver.DoValueRetry(cmd.Context(), m,
				func(ctx context.Context, d *driver.Driver) ([]driver.Target, error) {
					return d.ListTargets(ctx)
				}, false)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 2, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTYPE\tTITLE\tURL")
			for _, target := range targets {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", target.ID, target.Type, target.Title, target.URL)
			}
			return w.Flush()
		},
	}
}
