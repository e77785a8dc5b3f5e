// File: cmd/screenshot.go
package cmd

import (
	"context"
	"fmt"
	"image/png"
	"os"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/chromehand/internal/actions"
	"github.com/xkilldash9x/chromehand/internal/driver"
	"github.com/xkilldash9x/chromehand/internal/observability"
)

func newScreenshotCommand(opts *rootOptions) *cobra.Command {
	var (
		output   string
		selector string
	)

	cmd := &cobra.Command{
		Use:   "screenshot <url>",
		Short: "Navigate to a URL and capture the viewport (or one element) as PNG.",
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
				if err := ui.Navigate(ctx, args[0]); err != nil {
					return err
				}

				img, err := ui.Screenshot(ctx, selector)
				if err != nil {
					return err
				}

				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("creating %s: %w", output, err)
				}
				defer f.Close()
				if err := png.Encode(f, img); err != nil {
					return fmt.Errorf("writing %s: %w", output, err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "wrote", output)
				return nil
			}, false)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "screenshot.png", "output file")
	cmd.Flags().StringVar(&selector, "selector", "", "capture only the first element matching this CSS selector")
	return cmd
}
