package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"

	"github.com/poyrazK/zonekeeper/internal/adapters/redis"
	"github.com/poyrazK/zonekeeper/internal/adapters/repository"
	"github.com/poyrazK/zonekeeper/internal/core/ports"
	"github.com/poyrazK/zonekeeper/internal/core/services"
	"github.com/poyrazK/zonekeeper/internal/dns/nsec3"
	"github.com/poyrazK/zonekeeper/internal/dns/rdata"
	"github.com/poyrazK/zonekeeper/internal/infrastructure/config"
	"github.com/poyrazK/zonekeeper/internal/infrastructure/logging"
)

// errChecksFailed makes the process exit 1 without an extra error line;
// the report already said why.
var errChecksFailed = errors.New("zone check reported errors")

// backend is everything the commands need from zone storage.
type backend interface {
	ports.ZoneDataSource
	ports.DNSSECAdminRepository
	ports.ZoneWriter
}

var (
	loadConfig = config.Load

	// openBackend connects to PostgreSQL. Tests swap in the memory store.
	openBackend = func(ctx context.Context, cfg *config.AppConfig) (backend, func() error, error) {
		if cfg.DatabaseURL == "" {
			return nil, nil, errors.New("ZONEKEEPER_DATABASE_URL is not set")
		}
		db, err := sql.Open("pgx", cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("unable to open database: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("unable to reach database: %w", err)
		}
		return repository.NewPostgresRepository(db), db.Close, nil
	}
)

type app struct {
	cfg     *config.AppConfig
	logger  *slog.Logger
	verbose bool
	closers []func() error
}

// engine is the wired rectify and check core over one backend.
type engine struct {
	store     backend
	keeper    *services.KeeperService
	rectifier *services.RectifyService
	checker   *services.CheckService
	dnssec    *services.DNSSECService
	coord     *redis.Coordinator
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "zonekeeper",
		Short:         "Rectify and check DNSSEC ordering data of stored zones",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.close()
		},
	}
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		newRectifyZoneCmd(a),
		newRectifyAllZonesCmd(a),
		newCheckZoneCmd(a),
		newCheckAllZonesCmd(a),
		newCheckFileCmd(a),
		newListZoneCmd(a),
		newShowOrderingCmd(a),
		newLoadZoneCmd(a),
		newSecureZoneCmd(a),
		newSetNSEC3Cmd(a),
		newUnsetNSEC3Cmd(a),
		newSetPresignedCmd(a),
		newServeCmd(a),
		newWatchInvalidationsCmd(a),
	)
	return root
}

func (a *app) init() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if a.verbose {
		cfg.LogLevel = "debug"
	}
	logger, sync, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logger
	// fsync on a terminal or pipe fails with EINVAL; nothing to report.
	a.closers = append(a.closers, func() error {
		_ = sync()
		return nil
	})
	return nil
}

func (a *app) close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *app) engineConfig() services.Config {
	return services.Config{
		MaxENTEntries: a.cfg.MaxENTEntries,
		DirectDNSKey:  a.cfg.DirectDNSKey,
		Workers:       a.cfg.Workers,
	}
}

// newEngine wires the services over store. Redis coordination is added when configured.
func (a *app) newEngine(store backend) *engine {
	e := &engine{store: store}
	e.keeper = services.NewKeeperService(store, a.cfg.MaxNSEC3Iterations, a.logger)

	var opts []services.RectifyOption
	if a.cfg.RedisAddr != "" {
		e.coord = redis.NewCoordinator(a.cfg.RedisAddr, a.cfg.RedisPassword, a.cfg.RedisDB, a.cfg.LockTTL(), a.logger)
		a.closers = append(a.closers, e.coord.Close)
		opts = append(opts, services.WithLocker(e.coord), services.WithNotifier(e.coord))
	}

	e.rectifier = services.NewRectifyService(store, e.keeper, nsec3.NewHasher(), a.engineConfig(), a.logger, opts...)
	e.checker = services.NewCheckService(store, e.keeper, rdata.NewCanonicalizer(), a.engineConfig(), a.logger)
	e.dnssec = services.NewDNSSECService(store, a.logger)
	return e
}

// connect opens the configured backend and wires the engine over it.
func (a *app) connect(ctx context.Context) (*engine, error) {
	store, closeFn, err := openBackend(ctx, a.cfg)
	if err != nil {
		return nil, err
	}
	if closeFn != nil {
		a.closers = append(a.closers, closeFn)
	}
	return a.newEngine(store), nil
}
