package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rendis/jobflow/internal/api"
	"github.com/rendis/jobflow/pkg/mcp"
)

func (a *app) serveCommand() *cobra.Command {
	var withMCP bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and event streams",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runServe(cmd.Context(), withMCP)
		},
	}
	cmd.Flags().StringVar(&a.flags.ListenAddr, "listen-addr", "", "TCP listen address")
	cmd.Flags().BoolVar(&withMCP, "mcp", false, "also serve MCP on stdio")
	return cmd
}

func (a *app) runServe(ctx context.Context, withMCP bool) error {
	rt, err := a.openRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	if err := rt.scheduler.Start(ctx); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              a.cfg.ListenAddr,
		Handler:           api.NewServer(api.Deps{Workspace: rt.ws, Logger: a.logger}).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 2)
	go func() {
		a.logger.Info("http listening", "addr", a.cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	if withMCP {
		go func() {
			s := mcp.NewDesignerServer(mcp.DesignerServerDeps{Workspace: rt.ws, Logger: a.logger, Version: version})
			if err := s.Serve(ctx); err != nil && ctx.Err() == nil {
				errCh <- fmt.Errorf("mcp: %w", err)
			}
		}()
	}

	if err := writePID(); err != nil {
		a.logger.Warn("cannot write pid file", "error", err)
	}
	defer os.Remove(pidPath())

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			a.logger.Info("shutting down")
			return srv.Shutdown(shutdownCtx)
		case err := <-errCh:
			return err
		case <-hup:
			a.reload(ctx, rt)
		}
	}
}

// reload re-reads the settings file. Catalog changes apply immediately;
// other changes are reported as needing a restart.
func (a *app) reload(ctx context.Context, rt *runtime) {
	next, err := loadConfig(a.configPath)
	if err != nil {
		a.logger.Error("reload failed", "error", err)
		return
	}
	diff := diffConfigs(a.cfg, next)
	if diff.CatalogChanged {
		if err := rt.ws.LoadCatalog(ctx, next.CatalogFiles...); err != nil {
			a.logger.Error("catalog reload failed", "error", err)
			next.CatalogFiles = a.cfg.CatalogFiles
		} else {
			a.logger.Info("catalog reloaded", "files", next.CatalogFiles)
		}
	}
	if len(diff.RestartNeeded) > 0 {
		a.logger.Warn("settings changed that need a restart", "fields", diff.RestartNeeded)
	}
	a.cfg.CatalogFiles = next.CatalogFiles
}

func writePID() error {
	return os.WriteFile(pidPath(), []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func (a *app) mcpCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the MCP tools on stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := a.openRuntime(ctx)
			if err != nil {
				return err
			}
			defer rt.Close()
			if err := rt.scheduler.Start(ctx); err != nil {
				return err
			}
			return mcp.NewDesignerServer(mcp.DesignerServerDeps{Workspace: rt.ws, Logger: a.logger, Version: version}).Serve(ctx)
		},
	}
}
