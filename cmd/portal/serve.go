package main

import (
	"book-portal/internal/adapter"
	"book-portal/internal/web"
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

func newServeCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the local UI server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			nav := web.NewNavigator()
			session, err := a.sessionStore(ctx, nav)
			if err != nil {
				return err
			}
			nav.Take()
			srv := web.NewServer(web.Deps{
				Session:    session,
				Navigator:  nav,
				Auth:       a.client,
				Catalog:    a.client,
				Moderation: a.client,
				Formats:    a.client,
				Shelves:    a.client,
				PageSize:   a.cfg.PageSize,
				Log:        a.log,
			})
			return listen(ctx, a, addr, srv.Routes())
		},
	}
	cmd.Flags().StringVar(&addr, "addr", a.cfg.Addr, "Listen address")
	return cmd
}

func newStubCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "stub",
		Short: "Run an in-memory stand-in for the remote service, seeded with demo data",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cat := adapter.NewMemoryCatalog()
			if err := adapter.SeedDemo(cat); err != nil {
				return err
			}
			return listen(ctx, a, addr, adapter.NewStubServer(cat, a.cfg.StubSecret, a.log).Routes())
		},
	}
	cmd.Flags().StringVar(&addr, "addr", a.cfg.StubAddr, "Listen address")
	return cmd
}

func listen(ctx context.Context, a *app, addr string, h http.Handler) error {
	srv := &http.Server{Addr: addr, Handler: h, ReadHeaderTimeout: 5 * time.Second}
	errc := make(chan error, 1)
	go func() {
		a.log.Info("listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		a.log.Info("shutting down", "addr", addr)
		return srv.Shutdown(shutdownCtx)
	}
}
