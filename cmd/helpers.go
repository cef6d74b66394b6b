package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/hiddenpicture/internal/config"
	"github.com/robalobadob/hiddenpicture/internal/db"
	"github.com/robalobadob/hiddenpicture/internal/game"
	"github.com/robalobadob/hiddenpicture/internal/session"
	"github.com/robalobadob/hiddenpicture/internal/store"
)

// setupLogging applies the configured level and console output.
func setupLogging(c *config.Config) {
	if lvl, err := zerolog.ParseLevel(c.Log.Level); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}
	if c.Log.Pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}

func sessionOptions(c *config.Config) session.Options {
	return session.Options{
		CanvasWidth:  c.Canvas.Width,
		CanvasHeight: c.Canvas.Height,
		Params: game.Params{
			HitRadius:   c.Game.HitRadius,
			Padding:     c.Game.Padding,
			PreviewSize: c.Game.PreviewSize,
		},
		RingWidth: c.Game.RingWidth,
	}
}

// backend holds the open storage handles. The SQLite database is always
// opened since accounts live there; game state goes to the configured store.
type backend struct {
	db    *sql.DB
	redis *redis.Client
	store store.Store
}

func openBackend(ctx context.Context, c *config.Config) (*backend, error) {
	database, err := db.Open(c.Store.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	b := &backend{db: database}

	switch c.Store.Backend {
	case "memory":
		b.store = store.NewMemoryStore()
	case "sqlite":
		b.store = store.NewSQLiteStore(database)
	case "redis":
		b.redis = redis.NewClient(&redis.Options{
			Addr:     c.Redis.Addr,
			Password: c.Redis.Password,
			DB:       c.Redis.DB,
		})
		if err := b.redis.Ping(ctx).Err(); err != nil {
			b.Close()
			return nil, fmt.Errorf("connecting to redis at %s: %w", c.Redis.Addr, err)
		}
		b.store = store.NewRedisStore(b.redis, c.Redis.Prefix, c.Redis.TTL)
	default:
		b.Close()
		return nil, fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	log.Info().Str("backend", c.Store.Backend).Str("database", c.Store.DatabasePath).Msg("storage ready")
	return b, nil
}

func (b *backend) Close() {
	if b.redis != nil {
		if err := b.redis.Close(); err != nil {
			log.Warn().Err(err).Msg("closing redis")
		}
	}
	if b.db != nil {
		if err := b.db.Close(); err != nil {
			log.Warn().Err(err).Msg("closing database")
		}
	}
}
