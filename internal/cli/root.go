package cli

import (
	"context"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/billsight/billsight-client/internal/pkg/config"
	"github.com/billsight/billsight-client/pkg/logger"
)

type appKey struct{}

// RootCmd builds the command tree. deps is passed to NewApp when a command
// runs.
func RootCmd(deps Deps) *cobra.Command {
	root, _ := newRoot(deps)
	return root
}

// Execute runs the command tree and releases the App afterwards, whether or
// not the command failed.
func Execute(ctx context.Context, deps Deps) error {
	root, app := newRoot(deps)
	defer func() {
		if *app != nil {
			_ = (*app).Close()
		}
	}()
	return root.ExecuteContext(ctx)
}

func newRoot(deps Deps) (*cobra.Command, **App) {
	var current *App
	root := &cobra.Command{
		Use:           "billsight",
		Short:         "Submit bills for extraction and manage billsight accounts",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cmd.Context())
			if err != nil {
				return err
			}
			if url, _ := cmd.Flags().GetString("api-url"); url != "" {
				cfg.APIURL = url
			}
			if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
				cfg.LogLevel = lvl
			}

			log := logger.Init(logger.Options{
				Level:  cfg.LogLevel,
				Pretty: cfg.LogPretty && isatty.IsTerminal(os.Stderr.Fd()),
				Output: cmd.ErrOrStderr(),
			})

			app, err := NewApp(cmd.Context(), cfg, log, deps)
			if err != nil {
				return err
			}
			current = app
			cmd.SetContext(context.WithValue(cmd.Context(), appKey{}, app))
			return nil
		},
	}

	root.PersistentFlags().String("api-url", "", "service base URL (overrides BILLSIGHT_API_URL)")
	root.PersistentFlags().String("log-level", "", "log level: trace, debug, info, warn, error")

	root.AddCommand(
		LoginCmd(),
		LogoutCmd(),
		WhoamiCmd(),
		HealthCmd(),
		ProcessCmd(),
		AnalyzeCmd(),
		UsersCmd(),
	)
	return root, &current
}

func appFrom(cmd *cobra.Command) *App {
	app, _ := cmd.Context().Value(appKey{}).(*App)
	return app
}
