package main

import (
	"context"
	"errors"

	"github.com/danmuck/paramctl/internal/config"
	"github.com/danmuck/paramctl/internal/engine"
	"github.com/danmuck/paramctl/internal/observability"
	"github.com/danmuck/paramctl/internal/remote"
	"github.com/danmuck/paramctl/internal/syncer"
	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// daemon owns the engine and the stores its backends share.
type daemon struct {
	cfg    config.Config
	logger zerolog.Logger
	db     *badger.DB
	engine *engine.Engine
}

func openDaemon(cfg config.Config, logger zerolog.Logger) (*daemon, error) {
	d := &daemon{cfg: cfg, logger: logger}

	all := syncer.NewRegistry()
	if err := all.Register(syncer.MemoryType, syncer.NewMemoryBackend); err != nil {
		return nil, err
	}
	if cfg.UsesBadger() {
		store := cfg.BadgerStore()
		store.Logger = &logger
		db, err := syncer.OpenBadger(store)
		if err != nil {
			return nil, err
		}
		d.db = db
		if err := all.Register(syncer.BadgerType, syncer.NewBadgerFactory(db)); err != nil {
			d.close()
			return nil, err
		}
	}
	backends, err := all.Restrict(cfg.Location())
	if err != nil {
		d.close()
		return nil, err
	}

	opts := engine.Options{
		TuningAllowed: cfg.Engine.TuningAllowed,
		AutoSync:      cfg.Engine.AutoSync,
		Logger:        &logger,
	}
	e, err := engine.LoadFiles(cfg.Structure, cfg.Settings, backends, opts)
	if err != nil {
		d.close()
		return nil, err
	}
	d.engine = e
	return d, nil
}

// run serves the remote channel and, when configured, the admin endpoint
// until ctx is done or either fails.
func (d *daemon) run(ctx context.Context) error {
	srvCfg := remote.DefaultServerConfig()
	srvCfg.ReadTimeout = d.cfg.Server.ReadTimeout
	srvCfg.Logger = &d.logger
	transport := remote.NewTransport(d.cfg.Server.Host, d.cfg.Server.Port)
	srv := remote.NewServer(transport, remote.NewCommands(d.engine), srvCfg)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.ListenAndServe(gctx)
	})
	if d.cfg.Admin.Addr != "" {
		router := observability.NewAdminRouter(d.logger, d.engine.StatusMap)
		g.Go(func() error {
			return observability.ServeAdmin(gctx, d.cfg.Admin.Addr, router, d.logger)
		})
	}
	d.logger.Info().
		Str("remote", transport.String()).
		Str("admin", d.cfg.Admin.Addr).
		Msg("paramctl running")
	return g.Wait()
}

func (d *daemon) close() error {
	var errs []error
	if d.engine != nil {
		errs = append(errs, d.engine.Close())
	}
	if d.db != nil {
		errs = append(errs, d.db.Close())
	}
	return errors.Join(errs...)
}
