// Package server wires configuration, storage, token issuing and the gRPC
// and HTTP transports into a runnable application.
package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/redisx"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/config"
	"github.com/dmitrijs2005/gophauth/internal/server/httpapi"
	"github.com/dmitrijs2005/gophauth/internal/server/metrics"
	"github.com/dmitrijs2005/gophauth/internal/server/password"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/sessions"
	"github.com/dmitrijs2005/gophauth/internal/server/services"

	gs "github.com/dmitrijs2005/gophauth/internal/server/grpc"
)

type App struct {
	config  *config.Config
	logger  logging.Logger
	storage *repomanager.Storage
	metrics *metrics.Metrics
	auth    *services.AuthService
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {

	logger := logging.NewJSON(os.Stdout, c.LogLevel)

	storage, err := openStorage(ctx, c, logger)
	if err != nil {
		return nil, fmt.Errorf("storage init error: %w", err)
	}

	hasher, err := password.NewHasher(hasherParams(c))
	if err != nil {
		_ = storage.Close()
		return nil, fmt.Errorf("hasher init error: %w", err)
	}

	issuer, err := auth.NewIssuer(c.TokenScheme, c.SecretKey, c.PasetoKeyHex, auth.Config{
		Issuer:     c.TokenIssuer,
		AccessTTL:  c.AccessTokenValidityDuration,
		RefreshTTL: c.RefreshTokenValidityDuration,
	})
	if err != nil {
		_ = storage.Close()
		return nil, fmt.Errorf("token issuer init error: %w", err)
	}

	m := metrics.New()
	svc := services.NewAuthService(storage, hasher, issuer, services.Options{
		ReservedWords: c.ReservedWords,
		Logger:        logger,
		Metrics:       m,
	})

	return &App{config: c, logger: logger, storage: storage, metrics: m, auth: svc}, nil
}

func hasherParams(c *config.Config) password.Params {
	p := password.DefaultParams()
	if c.Argon2MemoryKiB != 0 {
		p.MemoryKiB = c.Argon2MemoryKiB
	}
	if c.Argon2Iterations != 0 {
		p.Iterations = c.Argon2Iterations
	}
	if c.Argon2Parallelism != 0 {
		p.Parallelism = c.Argon2Parallelism
	}
	return p
}

// openStorage connects the configured backends. Postgres migrations run
// here, before any transport accepts traffic.
func openStorage(ctx context.Context, c *config.Config, logger logging.Logger) (*repomanager.Storage, error) {
	if c.SessionBackend == config.SessionsMemory {
		logger.Warn(ctx, "Using in-memory storage, data is lost on restart")
		return repomanager.NewMemoryStorage(), nil
	}

	db, err := repomanager.OpenPostgres(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, err
	}

	m := repomanager.NewPostgresRepositoryManager()
	if err := m.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}
	storage := repomanager.NewPostgresStorage(db, m)

	if c.SessionBackend == config.SessionsRedis {
		rdb, err := redisx.New(ctx, c.RedisAddr, c.RedisPassword, c.RedisDB)
		if err != nil {
			_ = storage.Close()
			return nil, err
		}
		storage.WithSessions(sessions.NewRedisRepository(rdb), rdb.Close)
	}

	return storage, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {

	s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.auth)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {

	router := httpapi.NewRouter(app.auth, httpapi.Options{
		Cookie:         app.config.Cookie,
		AllowedOrigins: app.config.AllowedOrigins,
		Metrics:        app.metrics,
		Logger:         app.logger,
	})
	s := httpapi.NewServer(app.config.EndpointAddrHTTP, app.logger, router)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// sweepSessions drops expired sessions every interval until ctx is done.
func (app *App) sweepSessions(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			n, err := app.storage.Sessions().DeleteExpired(ctx, now)
			if err != nil {
				app.logger.Error(ctx, "session sweep failed", "error", err)
				continue
			}
			if n > 0 {
				app.logger.Info(ctx, "expired sessions removed", "count", n)
			}
		}
	}
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	if d := app.config.SessionSweepInterval; d > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			app.sweepSessions(ctx, d)
		}()
	}

	wg.Wait()

	if err := app.storage.Close(); err != nil {
		app.logger.Error(ctx, "storage close failed", "error", err)
	}
	app.logger.Info(ctx, "Stopped")
}
