package main

import (
	"book-portal/internal/adapter"
	"book-portal/internal/config"
	"book-portal/internal/core"
	"book-portal/internal/core/model"
	"book-portal/pkg/http_client"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// app carries what every subcommand needs.
type app struct {
	cfg    config.Config
	log    *slog.Logger
	out    io.Writer
	client *adapter.CatalogClient
}

func main() {
	if err := newRootCmd(config.Load(), os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(cfg config.Config, out io.Writer) *cobra.Command {
	a := &app{cfg: cfg, out: out}

	root := &cobra.Command{
		Use:          "portal",
		Short:        "Client for the catalog and social-reading service",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			a.log = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: a.cfg.LogLevel}))
			a.client = adapter.NewCatalogClient(a.cfg.APIURL, http_client.CreateHTTPClient(a.cfg.HTTPTimeout), a.log)
		},
	}
	pf := root.PersistentFlags()
	pf.StringVar(&a.cfg.APIURL, "api", cfg.APIURL, "Base URL of the remote service")
	pf.IntVar(&a.cfg.PageSize, "page-size", cfg.PageSize, "Default page size")
	pf.StringVar(&a.cfg.CredentialsPath, "credentials", cfg.CredentialsPath, "File holding the session credential")

	root.AddCommand(
		newServeCmd(a),
		newStubCmd(a),
		newLoginCmd(a, false),
		newLoginCmd(a, true),
		newLogoutCmd(a),
		newWhoamiCmd(a),
		newBooksCmd(a),
		newQueueCmd(a),
		newFormatsCmd(a),
		newShelvesCmd(a),
	)
	return root
}

// sessionStore restores the persisted session. nav receives the login route
// whenever the session is lost.
func (a *app) sessionStore(ctx context.Context, nav core.Navigator) (*core.SessionStore, error) {
	s := core.NewSessionStore(adapter.NewCredentialFile(a.cfg.CredentialsPath), nav, a.log)
	if err := s.Init(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// cliNavigator only reports session loss; page navigation has no address bar
// to update on a terminal.
func (a *app) cliNavigator() core.Navigator {
	return core.NavigatorFunc(func(to string) {
		if to == core.RouteLogin {
			fmt.Fprintln(a.out, "La sesión no es válida. Ejecuta `portal login`.")
		}
	})
}

// userError turns a classified failure into the stable message shown to users.
func userError(err error) error {
	if err == nil {
		return nil
	}
	k := model.KindOf(err)
	var ve model.ValidationError
	if errors.As(err, &ve) && ve.Field != "" {
		return fmt.Errorf("%s (%s)", model.Message(k), ve.Field)
	}
	return errors.New(model.Message(k))
}
