package daemon

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/matheus3301/camlog/internal/api"
	"github.com/matheus3301/camlog/internal/blob"
	"github.com/matheus3301/camlog/internal/bus"
	"github.com/matheus3301/camlog/internal/compress"
	"github.com/matheus3301/camlog/internal/config"
	"github.com/matheus3301/camlog/internal/ident"
	"github.com/matheus3301/camlog/internal/lock"
	"github.com/matheus3301/camlog/internal/logging"
	"github.com/matheus3301/camlog/internal/netwatch"
	"github.com/matheus3301/camlog/internal/profile"
	"github.com/matheus3301/camlog/internal/queue"
	"github.com/matheus3301/camlog/internal/remote"
	"github.com/matheus3301/camlog/internal/snapshot"
	"github.com/matheus3301/camlog/internal/status"
	"github.com/matheus3301/camlog/internal/store"
	intsync "github.com/matheus3301/camlog/internal/sync"
	"github.com/matheus3301/camlog/internal/uploader"
)

// Params holds the resolved profile configuration passed to the fx module.
type Params struct {
	ProfileName string
	SocketPath  string // optional override for testing; empty = use default
	ConfigPath  string // optional override; empty = ~/.camlog/config.toml
}

// Module returns the fx module for the daemon, composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideConfig,
			provideLogger,
			provideBus,
			provideStateMachine,
			provideLock,
			provideStore,
			provideBlobStore,
			provideClock,
			provideIDs,
			provideQueue,
			providePersister,
			provideRemote,
			provideNetwatch,
			provideUploader,
			provideJournal,
			provideSyncEngine,
			provideControl,
			NewServer,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideConfig(p Params) (*config.Config, error) {
	path := p.ConfigPath
	if path == "" {
		path = profile.ConfigPath()
	}
	return config.LoadOrDefault(path)
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(profile.LogPath(p.ProfileName), p.ProfileName)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := profile.EnsureDir(p.ProfileName); err != nil {
		return nil, err
	}
	logger.Info("acquiring profile lock", zap.String("profile", p.ProfileName))
	l, err := lock.Acquire(profile.Dir(p.ProfileName))
	if err != nil {
		return nil, err
	}
	logger.Info("profile lock acquired")
	return l, nil
}

// provideStore depends on the lock so the database is never opened by a
// second daemon.
func provideStore(p Params, _ *lock.Lock, logger *zap.Logger) (*store.DB, error) {
	dbPath := profile.DBPath(p.ProfileName)
	db, result, err := store.OpenMigrated(dbPath)
	if err != nil {
		return nil, err
	}
	if result.Changed {
		logger.Info("schema migrated", zap.Uint("from", result.From), zap.Uint("version", result.Version))
	}
	logger.Info("store initialized", zap.String("path", dbPath), zap.Uint("schema", result.Version))
	return db, nil
}

func provideBlobStore(p Params, cfg *config.Config, db *store.DB, logger *zap.Logger) (*blob.Store, error) {
	s, err := blob.Open(context.Background(), cfg, db, profile.KeyPath(p.ProfileName))
	if err != nil {
		return nil, err
	}
	logger.Info("photo store ready",
		zap.String("type", cfg.Blob.Type),
		zap.Bool("sealed", cfg.Encryption.Enabled))
	return s, nil
}

func provideClock() ident.Clock {
	return ident.RealClock{}
}

func provideIDs(clock ident.Clock) ident.Generator {
	return ident.NewGenerator(clock)
}

func provideQueue(cfg *config.Config, blobs *blob.Store, ids ident.Generator, clock ident.Clock, b *bus.Bus, logger *zap.Logger) *queue.Queue {
	opts := compress.Options{TargetKB: cfg.Capture.TargetKB, MaxDimension: cfg.Capture.MaxDimension}
	return queue.New(blobs, ids, clock, opts, b, logger.Named("queue"))
}

func providePersister(db *store.DB, q *queue.Queue, blobs *blob.Store, ids ident.Generator, clock ident.Clock, b *bus.Bus, logger *zap.Logger) *snapshot.Persister {
	p := snapshot.NewPersister(snapshot.NewDBKV(db), q, blobs, ids, clock, b, logger.Named("snapshot"))
	q.SetSaver(p)
	return p
}

func provideRemote(cfg *config.Config, logger *zap.Logger) *remote.Client {
	if !cfg.Remote.Configured() {
		logger.Warn("remote endpoint not configured, running local-only")
	}
	return remote.New(cfg.Remote, logger.Named("remote"))
}

func provideNetwatch(cfg *config.Config, b *bus.Bus, logger *zap.Logger) *netwatch.Watcher {
	return netwatch.NewFromConfig(cfg, b, logger.Named("netwatch"))
}

func provideUploader(q *queue.Queue, blobs *blob.Store, rc *remote.Client, nw *netwatch.Watcher, p *snapshot.Persister, m *status.Machine, b *bus.Bus, logger *zap.Logger) *uploader.Synchronizer {
	return uploader.New(q, blobs, rc, nw, p, m, b, logger.Named("uploader"))
}

func provideJournal(db *store.DB) *intsync.Journal {
	return intsync.NewJournal(db)
}

func provideSyncEngine(up *uploader.Synchronizer, j *intsync.Journal, b *bus.Bus, logger *zap.Logger) *intsync.Engine {
	return intsync.NewEngine(up, j, b, logger.Named("sync"))
}

func provideControl(p Params, q *queue.Queue, up *uploader.Synchronizer, rc *remote.Client, nw *netwatch.Watcher, m *status.Machine, j *intsync.Journal, clock ident.Clock, logger *zap.Logger) *api.Control {
	return api.NewControl(api.Deps{
		Profile:  p.ProfileName,
		Queue:    q,
		Uploader: up,
		Remote:   rc,
		Net:      nw,
		Machine:  m,
		Journal:  j,
		Clock:    clock,
		Logger:   logger.Named("api"),
	})
}

type lifecycleParams struct {
	fx.In

	Server    *Server
	Lock      *lock.Lock
	DB        *store.DB
	Persister *snapshot.Persister
	Netwatch  *netwatch.Watcher
	Uploader  *uploader.Synchronizer
	Engine    *intsync.Engine
	Logger    *zap.Logger
}

func registerLifecycle(lc fx.Lifecycle, lp lifecycleParams) {
	logger := lp.Logger
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			res, err := lp.Persister.Restore(ctx)
			if err != nil {
				return err
			}
			logger.Info("snapshot restored",
				zap.Bool("found", res.Found),
				zap.Bool("corrupt", res.Corrupt),
				zap.Bool("migrated", res.Migrated),
				zap.Int("extracted", res.Stats.Extracted),
				zap.Int("missing_photos", res.Missing),
				zap.Int("orphans_swept", res.Orphans))

			lp.Netwatch.Start(context.Background())
			lp.Engine.Start(context.Background())

			// Start gRPC server in background.
			go func() {
				if err := lp.Server.Start(); err != nil {
					logger.Error("gRPC server error", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			lp.Server.Stop(ctx)
			lp.Engine.Stop()
			lp.Uploader.Stop()
			lp.Netwatch.Stop()
			if err := lp.Persister.Flush(ctx); err != nil {
				logger.Warn("final snapshot flush failed", zap.Error(err))
			}
			if err := lp.DB.Close(); err != nil {
				logger.Warn("error closing store", zap.Error(err))
			}
			if err := lp.Lock.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			return nil
		},
	})
}
