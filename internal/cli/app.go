// Package cli wires the client core to a cobra command tree.
package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/billsight/billsight-client/internal/core/domain"
	"github.com/billsight/billsight-client/internal/core/ports"
	"github.com/billsight/billsight-client/internal/core/service"
	"github.com/billsight/billsight-client/internal/infrastructure/download"
	"github.com/billsight/billsight-client/internal/infrastructure/filesource"
	"github.com/billsight/billsight-client/internal/infrastructure/remote"
	"github.com/billsight/billsight-client/internal/infrastructure/tokenstore"
	"github.com/billsight/billsight-client/internal/metrics"
	"github.com/billsight/billsight-client/internal/pkg/config"
)

// App holds the wired components for one command invocation.
type App struct {
	Config   *config.Config
	Log      zerolog.Logger
	Remote   *remote.Client
	Session  *service.SessionStore
	Auth     *service.AuthGateway
	Roster   *service.AdminRoster
	Workflow *service.SubmissionWorkflow
	Files    *filesource.Source

	closers []func() error
}

// Deps overrides the infrastructure App would otherwise build from config.
type Deps struct {
	// Fs defaults to the OS filesystem.
	Fs afero.Fs
	// TokenStore replaces the store selected by TOKEN_STORE.
	TokenStore ports.TokenStore
}

func NewApp(ctx context.Context, cfg *config.Config, log zerolog.Logger, deps Deps) (*App, error) {
	fs := deps.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}

	app := &App{Config: cfg, Log: log}

	store := deps.TokenStore
	if store == nil {
		var err error
		store, err = app.tokenStore(ctx, fs)
		if err != nil {
			return nil, err
		}
	}

	client, err := remote.New(remote.Config{BaseURL: cfg.APIURL, Timeout: cfg.Timeout}, log)
	if err != nil {
		_ = app.Close()
		return nil, err
	}

	app.Remote = client
	app.Session = service.NewSessionStore(store)
	app.Auth = service.NewAuthGateway(client, app.Session, log)
	app.Roster = service.NewAdminRoster(app.Auth)
	app.Workflow = service.NewSubmissionWorkflow(client, download.NewSaver(fs, cfg.DownloadDir, log), app.Session, log)
	app.Files = filesource.New(fs)
	return app, nil
}

func (a *App) tokenStore(ctx context.Context, fs afero.Fs) (ports.TokenStore, error) {
	switch a.Config.Token.Store {
	case config.TokenStoreRedis:
		rc := a.Config.Token.Redis
		client, err := tokenstore.Connect(ctx, tokenstore.RedisConfig{Addr: rc.Addr, DB: rc.DB})
		if err != nil {
			return nil, fmt.Errorf("token store: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		return tokenstore.NewRedisStore(client, rc.Key, rc.TTL), nil
	default:
		return tokenstore.NewFileStore(fs, a.Config.Token.File), nil
	}
}

// Close releases connections opened by NewApp and flushes metrics when
// METRICS_FILE is set.
func (a *App) Close() error {
	var errs []error
	if a.Config.MetricsFile != "" {
		if err := metrics.WriteTextfile(a.Config.MetricsFile); err != nil {
			errs = append(errs, fmt.Errorf("write metrics: %w", err))
		}
	}
	for _, c := range a.closers {
		errs = append(errs, c())
	}
	a.closers = nil
	return errors.Join(errs...)
}

// errNotLoggedIn is returned by commands that need a session.
var errNotLoggedIn = errors.New("not logged in; run 'billsight login' first")

// restore re-validates the persisted token. Network failures are reported
// but leave the token in place for the next attempt.
func (a *App) restore(ctx context.Context) (*domain.User, error) {
	user, err := a.Auth.Restore(ctx)
	switch {
	case err == nil:
		return user, nil
	case errors.Is(err, domain.ErrUnauthorized):
		a.Log.Debug().Err(err).Msg("stored session discarded")
		return nil, nil
	default:
		return nil, err
	}
}

// requireSession restores the session and fails when nobody is logged in.
func (a *App) requireSession(ctx context.Context) (*domain.User, error) {
	user, err := a.restore(ctx)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, errNotLoggedIn
	}
	return user, nil
}
