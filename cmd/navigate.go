// File: cmd/navigate.go
package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/chromehand/internal/actions"
	"github.com/xkilldash9x/chromehand/internal/driver"
	"github.com/xkilldash9x/chromehand/internal/observability"
	"github.com/xkilldash9x/chromehand/internal/retry"
)

func newNavigateCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "navigate <url>",
		Short: "Point the first debug target at a URL and wait for the page to settle.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m := opts.newManager()
			defer m.Quit()

			return m.DoRetry(cmd.Context(), func(ctx context.Context, d *driver.Driver) error {
				ch, err := d.OpenChannel(ctx, 0)
				if err != nil {
					return err
				}
				defer ch.Close()

				ui := actions.NewUI(ch, uiPolicy(opts), observability.GetLogger())
				return ui.Navigate(ctx, args[0])
			}, false)
		},
	}
}

func uiPolicy(opts *rootOptions) retry.Policy {
	return retry.Policy{
		Attempts: opts.cfg.Retry.UIAttempts,
		Delay:    opts.cfg.Retry.UIDelay,
	}
}
