// File: cmd/eval.go
package cmd

import (
	"context"
	"fmt"

	json "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"github.com/xkilldash9x/chromehand/internal/driver"
)

func newEvalCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "eval <script>",
		Short: "Evaluate a JavaScript expression in the first debug target.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m := opts.newManager()
			defer m.Quit()

			value, err := driver.DoValueRetry(cmd.Context(), m,
				func(ctx context.Context, d *driver.Driver) (any, error) {
					ch, err := d.OpenChannel(ctx, 0)
					if err != nil {
						return nil, err
					}
					defer ch.Close()
					return ch.EvalValue(ctx, args[0])
				}, false)
			if err != nil {
				return err
			}

			switch v := value.(type) {
			case string:
				fmt.Fprintln(cmd.OutOrStdout(), v)
			default:
				out, err := json.MarshalToString(v)
				if err != nil {
					return fmt.Errorf("rendering result: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), out)
			}
			return nil
		},
	}
}
