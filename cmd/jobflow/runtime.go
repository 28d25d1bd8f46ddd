package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rendis/jobflow/internal/scheduler"
	"github.com/rendis/jobflow/internal/store"
	"github.com/rendis/jobflow/internal/streaming"
	"github.com/rendis/jobflow/internal/workspace"
)

// runtime is the wired server stack shared by serve and mcp.
type runtime struct {
	store     *store.LibSQLStore
	hub       streaming.EventHub
	ws        *workspace.Workspace
	scheduler *scheduler.Scheduler
}

// openRuntime opens the store, connects the event hub, loads the catalog
// and registers the housekeeping jobs. The scheduler is not started.
func (a *app) openRuntime(ctx context.Context) (*runtime, error) {
	if err := os.MkdirAll(filepath.Dir(a.cfg.DBPath), 0o700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	st, err := store.NewLibSQLStore(dbURI(a.cfg.DBPath))
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	rt := &runtime{store: st}
	if a.cfg.EventHub == hubRedis {
		hub, err := streaming.NewRedisHub(streaming.RedisOptions{URL: a.cfg.RedisURL, Logger: a.logger})
		if err != nil {
			rt.Close()
			return nil, err
		}
		rt.hub = hub
	} else {
		rt.hub = streaming.NewMemoryHub()
	}

	rt.ws, err = workspace.New(workspace.Options{Store: st, Hub: rt.hub, Logger: a.logger})
	if err != nil {
		rt.Close()
		return nil, err
	}
	if err := rt.ws.LoadCatalog(ctx, a.cfg.CatalogFiles...); err != nil {
		rt.Close()
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	rt.scheduler = scheduler.NewScheduler(a.logger)
	if err := rt.ws.Housekeeping(rt.scheduler, a.cfg.SessionIdleTimeout.Duration, a.cfg.VacuumSchedule); err != nil {
		rt.Close()
		return nil, fmt.Errorf("housekeeping: %w", err)
	}

	a.logger.InfoContext(ctx, "jobflow ready", "db", a.cfg.DBPath, "event_hub", a.cfg.EventHub)
	return rt, nil
}

// Close stops the scheduler and releases the hub and store.
func (rt *runtime) Close() {
	if rt.scheduler != nil {
		_ = rt.scheduler.Stop()
	}
	if c, ok := rt.hub.(interface{ Close() error }); ok {
		_ = c.Close()
	}
	_ = rt.store.Close()
}

// dbURI turns a plain path into the file URI libSQL expects.
func dbURI(path string) string {
	if strings.HasPrefix(path, "file:") || strings.Contains(path, "://") {
		return path
	}
	return "file:" + path
}
