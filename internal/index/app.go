// Package index runs the metadata index: a JSON API over echo backed by
// PostgreSQL, plus a gRPC health endpoint.
package index

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/helix/internal/index/auth"
	"github.com/dmitrijs2005/helix/internal/index/config"
	"github.com/dmitrijs2005/helix/internal/index/health"
	"github.com/dmitrijs2005/helix/internal/index/httpapi"
	"github.com/dmitrijs2005/helix/internal/index/repositories/repomanager"
	"github.com/dmitrijs2005/helix/internal/index/services"
	"github.com/dmitrijs2005/helix/internal/logging"
	"github.com/redis/go-redis/v9"
)

const challengeCacheSize = 10_000

type App struct {
	config   *config.Config
	logger   logging.Logger
	db       *sql.DB
	http     *httpapi.Server
	health   *health.Server
	closers  []func() error
	stopOnce sync.Once
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.New(os.Stdout, c.LogLevel, c.LogFormat)

	db, err := repomanager.OpenPostgres(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	app := &App{config: c, logger: logger, db: db}
	app.closers = append(app.closers, db.Close)

	m := repomanager.NewPostgresRepositoryManager()
	if err := m.RunMigrations(ctx, db); err != nil {
		app.Close()
		return nil, fmt.Errorf("db migration error: %w", err)
	}

	challenges, err := app.challengeStore(ctx)
	if err != nil {
		app.Close()
		return nil, err
	}

	as := services.NewAuthService(db, m, challenges, c.SecretKey, c.TokenValidityDuration, c.ChallengeValidityDuration, logger)
	fs := services.NewFileService(db, m, logger)
	ss := services.NewShareService(db, m, logger)

	app.http = httpapi.NewServer(c.EndpointAddrHTTP, as, fs, ss, logger)
	app.health = health.NewServer(c.EndpointAddrGRPC, db, 0, logger)
	return app, nil
}

func (app *App) challengeStore(ctx context.Context) (auth.ChallengeStore, error) {
	if app.config.RedisAddr == "" {
		return auth.NewMemoryChallenges(challengeCacheSize, app.config.ChallengeValidityDuration), nil
	}

	rdb := redis.NewClient(&redis.Options{Addr: app.config.RedisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis init error: %w", err)
	}
	app.closers = append(app.closers, rdb.Close)
	app.logger.Info(ctx, "Login challenges stored in redis", "address", app.config.RedisAddr)
	return auth.NewRedisChallenges(rdb, app.config.ChallengeValidityDuration), nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run serves until a signal arrives, ctx is cancelled or either server
// fails, then releases the database and redis connections.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")
	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup
	for _, run := range []func(context.Context) error{app.http.Run, app.health.Run} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := run(ctx); err != nil {
				app.logger.Error(ctx, err.Error())
				cancelFunc()
			}
		}()
	}

	wg.Wait()
	app.Close()
	app.logger.Info(context.Background(), "App stopped")
}

func (app *App) Close() {
	app.stopOnce.Do(func() {
		for i := len(app.closers) - 1; i >= 0; i-- {
			if err := app.closers[i](); err != nil {
				app.logger.Warn(context.Background(), "close failed", "error", err)
			}
		}
	})
}
