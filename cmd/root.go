// File: cmd/root.go
package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/chromehand/internal/config"
	"github.com/xkilldash9x/chromehand/internal/driver"
	"github.com/xkilldash9x/chromehand/internal/observability"
)

// rootOptions carries the persistent flag values for one command run.
// A fresh instance per NewRootCommand keeps runs independent, so flags
// never leak between executions in tests.
type rootOptions struct {
	cfgFile      string
	port         int
	headless     bool
	browserPath  string
	keepExisting bool

	cfg *config.Config
}

// NewRootCommand builds the chromehand command tree.
func NewRootCommand() *cobra.Command {
	root, _ := newRootCmd()
	return root
}

// newRootCmd also returns the options struct so tests can inspect the
// resolved configuration after PersistentPreRunE.
func newRootCmd() (*cobra.Command, *rootOptions) {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "chromehand",
		Short:         "chromehand drives a Chromium-family browser over its remote-debugging protocol.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.cfgFile)
			if err != nil {
				return err
			}

			// Flags beat file and environment when explicitly set.
			flags := cmd.Flags()
			if flags.Changed("port") {
				cfg.Browser.Port = opts.port
			}
			if flags.Changed("headless") {
				cfg.Browser.Headless = opts.headless
			}
			if flags.Changed("browser") {
				cfg.Browser.Path = opts.browserPath
			}
			if flags.Changed("keep-existing") {
				cfg.Browser.KillExisting = !opts.keepExisting
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			observability.InitializeLogger(cfg.Logger)
			opts.cfg = cfg
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&opts.cfgFile, "config", "c", "", "config file (default is ./config.yaml)")
	pf.IntVarP(&opts.port, "port", "p", config.DefaultDebugPort, "remote debugging port")
	pf.BoolVar(&opts.headless, "headless", false, "run the browser without a window")
	pf.StringVar(&opts.browserPath, "browser", "", "path to the browser binary")
	pf.BoolVar(&opts.keepExisting, "keep-existing", false, "do not kill same-named browser processes before spawning")

	root.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	root.AddCommand(
		newTargetsCommand(opts),
		newEvalCommand(opts),
		newNavigateCommand(opts),
		newScreenshotCommand(opts),
		newVersionCommand(),
	)
	return root, opts
}

// newManager builds the driver manager every subcommand works through.
func (o *rootOptions) newManager() *driver.Manager {
	return driver.NewManager(o.cfg.Browser, o.cfg.Retry, observability.GetLogger())
}

// Execute runs the command tree under ctx.
func Execute(ctx context.Context) error {
	root := NewRootCommand()
	if err := root.ExecuteContext(ctx); err != nil {
		observability.GetLogger().Error("command failed", zap.Error(err))
		fmt.Fprintln(root.ErrOrStderr(), "Error:", err)
		return err
	}
	return nil
}
